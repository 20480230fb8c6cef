// Package cache stores catalog API responses in Redis and revalidates them
// with conditional requests.
//
// Every cached page is still revalidated against the server: the client sends
// If-None-Match (or If-Modified-Since) and only reuses the stored body when the
// server answers 304 Not Modified. Nothing is served without a round trip.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.KeyFor(req)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// plain request
//	}
//	if cache.CanRevalidate(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - catalog_cache_lookup_hits_total - lookups that found an entry to revalidate
//   - catalog_cache_lookup_misses_total - lookups without an entry
//   - catalog_cache_revalidated_total - 304 responses served from an entry
//   - catalog_cache_errors_total{operation} - Redis failures
package cache
