//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-loader/internal/testutil"
	"github.com/Sternrassler/catalog-loader/pkg/cache"
	"github.com/Sternrassler/catalog-loader/pkg/client"
	"github.com/Sternrassler/catalog-loader/pkg/loader"
	"github.com/Sternrassler/catalog-loader/pkg/pagination"
	"github.com/Sternrassler/catalog-loader/pkg/ratelimit"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newClient(t *testing.T, baseURL string, rdb *redis.Client) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Redis = rdb
	cfg.RequestsPerSecond = 0

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestRevalidation covers the conditional request flow:
// first fetch stores the page, second fetch sends If-None-Match and is
// answered from the cache on 304.
func TestRevalidation(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockCatalog(45)
	defer mock.Close()
	mock.EnableETags()

	c := newClient(t, mock.URL(), redisClient)
	ctx := context.Background()
	cur := pagination.Cursor{PageSize: 20}
	hits := promtestutil.ToFloat64(cache.LookupHits)
	revalidated := promtestutil.ToFloat64(cache.Revalidated)

	first, err := c.Browse(ctx, cur)
	if err != nil {
		t.Fatalf("First Browse failed: %v", err)
	}
	if len(first.Items) != 20 {
		t.Fatalf("Expected 20 items, got %d", len(first.Items))
	}

	key := "catalog:products:limit=20:skip=0"
	ttl, err := redisClient.TTL(ctx, key).Result()
	if err != nil {
		t.Fatalf("TTL lookup failed: %v", err)
	}
	if ttl <= 0 || ttl > 60*time.Second {
		t.Errorf("Expected TTL from max-age=60, got %v", ttl)
	}

	second, err := c.Browse(ctx, cur)
	if err != nil {
		t.Fatalf("Second Browse failed: %v", err)
	}
	if mock.GetConditionalCount() != 1 {
		t.Errorf("Expected 1 conditional request, got %d", mock.GetConditionalCount())
	}
	if len(second.Items) != len(first.Items) || second.Items[19] != first.Items[19] {
		t.Errorf("Revalidated page differs from the original")
	}

	// A lookup hit still reaches the server; only the 304 saves the transfer.
	if mock.GetRequestCount() != 2 {
		t.Errorf("Expected 2 server requests, got %d", mock.GetRequestCount())
	}
	if got := promtestutil.ToFloat64(cache.LookupHits) - hits; got != 1 {
		t.Errorf("Expected 1 lookup hit, got %v", got)
	}
	if got := promtestutil.ToFloat64(cache.Revalidated) - revalidated; got != 1 {
		t.Errorf("Expected 1 revalidated response, got %v", got)
	}
}

// TestNoValidatorNotCached checks that pages without ETag or Last-Modified are
// never stored.
func TestNoValidatorNotCached(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockCatalog(10)
	defer mock.Close()

	c := newClient(t, mock.URL(), redisClient)
	ctx := context.Background()

	if _, err := c.Search(ctx, "item"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if _, err := c.Search(ctx, "item"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if n := mock.GetConditionalCount(); n != 0 {
		t.Errorf("Expected no conditional requests, got %d", n)
	}
	keys, err := redisClient.Keys(ctx, cache.KeyPrefix+":*").Result()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no cached pages, got %v", keys)
	}
}

// TestSharedRateLimitState checks that a Retry-After seen by one client holds
// requests of another client sharing the same Redis.
func TestSharedRateLimitState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockCatalog(10)
	defer mock.Close()
	mock.SetResponse("/products/search", testutil.NewRateLimitResponse(30))

	a := newClient(t, mock.URL(), redisClient)
	b := newClient(t, mock.URL(), redisClient)
	ctx := context.Background()

	_, err := a.Search(ctx, "item")
	if client.ClassOf(err) != client.ErrorClassRateLimit {
		t.Fatalf("Expected rate_limit error, got %v", err)
	}

	remaining, err := redisClient.Get(ctx, ratelimit.RedisKeyRemaining).Int()
	if err != nil {
		t.Fatalf("Rate limit state not stored: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", remaining)
	}

	before := mock.GetRequestCount()
	_, err = b.Browse(ctx, pagination.Cursor{PageSize: 5})
	if !errors.Is(err, client.ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited from second client, got %v", err)
	}
	if mock.GetRequestCount() != before {
		t.Error("Held request reached the server")
	}
}

// TestLoaderOverCachedClient runs a browse/search/browse session through the
// Redis-backed client.
func TestLoaderOverCachedClient(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockCatalog(35)
	defer mock.Close()
	mock.EnableETags()

	c := newClient(t, mock.URL(), redisClient)
	ctrl, err := loader.New(loader.Config{Fetcher: c, PageSize: 20})
	if err != nil {
		t.Fatalf("Failed to create loader: %v", err)
	}
	defer ctrl.Stop()

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ctrl.Wait()
	if !ctrl.AdvancePage() {
		t.Fatal("AdvancePage refused after first page")
	}
	ctrl.Wait()

	snap := ctrl.Snapshot()
	if len(snap.Items) != 35 || !snap.Exhausted {
		t.Fatalf("Expected 35 items and exhaustion, got %d (exhausted=%v)", len(snap.Items), snap.Exhausted)
	}

	ctrl.SetSearchTerm("item 3")
	ctrl.Wait()
	if n := len(ctrl.Snapshot().Items); n != 7 {
		t.Errorf("Expected 7 search results (Item 3, Item 30-35), got %d", n)
	}

	ctrl.SetSearchTerm("")
	ctrl.Wait()
	snap = ctrl.Snapshot()
	if len(snap.Items) != 20 || snap.Offset != 0 {
		t.Errorf("Expected fresh first page, got %d items at offset %d", len(snap.Items), snap.Offset)
	}
	if mock.GetConditionalCount() != 1 {
		t.Errorf("Expected first page to be revalidated once, got %d", mock.GetConditionalCount())
	}
}

// TestRedisUnavailable checks that a dead Redis fails requests as network
// errors without reaching the server.
func TestRedisUnavailable(t *testing.T) {
	mock := testutil.NewMockCatalog(10)
	defer mock.Close()

	dead := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer dead.Close()

	c := newClient(t, mock.URL(), dead)

	_, err := c.Search(context.Background(), "item")
	if err == nil {
		t.Fatal("Expected rate limit state lookup to fail against dead Redis")
	}
	if client.ClassOf(err) != client.ErrorClassNetwork {
		t.Errorf("Expected network error class, got %q (%v)", client.ClassOf(err), err)
	}
	if mock.GetRequestCount() != 0 {
		t.Errorf("Expected no server requests, got %d", mock.GetRequestCount())
	}
}
