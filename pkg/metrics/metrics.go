// Package metrics exposes the catalog loader's Prometheus metrics.
// The collectors themselves live next to the code that updates them
// (client, cache, ratelimit, pagination, scroll, loader) and register with the
// default registry through promauto.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the registerer every catalog metric is added to.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{endpoint, status} (Counter): Requests by endpoint (browse, search) and HTTP status
//   - catalog_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - catalog_errors_total{class} (Counter): Fetch failures by class (network, client, server, rate_limit, decode)
//
// Retry Metrics (pkg/client):
//   - catalog_retries_total{error_class} (Counter): Retry attempts
//   - catalog_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - catalog_retry_exhausted_total{error_class} (Counter): Requests that used every attempt
//
// Rate Limit Metrics (pkg/ratelimit):
//   - catalog_rate_limit_remaining (Gauge): Requests left in the server window
//   - catalog_rate_limit_blocks_total (Counter): Requests held until the window resets
//   - catalog_rate_limit_throttles_total (Counter): Requests delayed in the warning band
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_lookup_hits_total (Counter): Lookups that found a page to revalidate
//   - catalog_cache_lookup_misses_total (Counter): Lookups without a stored page
//   - catalog_cache_revalidated_total (Counter): 304 responses served from the cache (saved transfers)
//   - catalog_cache_errors_total{operation} (Counter): Redis failures
//
// Prefetch Metrics (pkg/pagination):
//   - catalog_prefetch_pages_total{result} (Counter): Prefetched pages by result
//   - catalog_prefetch_duration_seconds (Histogram): Duration of a prefetch run
//
// Scroll Metrics (pkg/scroll):
//   - catalog_scroll_events_total (Counter): Scroll events handled
//   - catalog_scroll_near_bottom_total (Counter): Near-bottom signals emitted
//   - catalog_scroll_subscribers (Gauge): Active subscriptions
//
// Loader Metrics (pkg/loader):
//   - catalog_loader_requests_total{mode} (Counter): Fetches issued by mode
//   - catalog_loader_responses_total{outcome} (Counter): Completions (applied, failed, stale)
//   - catalog_loader_fetch_duration_seconds{mode} (Histogram): Fetch duration by mode
//   - catalog_loader_result_items (Gauge): Size of the last updated result set
//   - catalog_loader_duplicate_items_total (Counter): Item IDs seen twice
//
// Example Prometheus Queries:
//
//   # Share of responses discarded as stale
//   rate(catalog_loader_responses_total{outcome="stale"}[5m]) /
//   sum(rate(catalog_loader_responses_total[5m]))
//
//   # Revalidation rate
//   rate(catalog_cache_revalidated_total[5m]) / rate(catalog_requests_total[5m])
//
//   # P95 search latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket{endpoint="search"}[5m]))
