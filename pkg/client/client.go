// Package client is the HTTP client for the remote catalog API. It builds the
// browse and search requests, paces and gates them against the server's rate
// limit, revalidates cached pages, and classifies failures.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-loader/pkg/cache"
	"github.com/Sternrassler/catalog-loader/pkg/catalog"
	"github.com/Sternrassler/catalog-loader/pkg/logging"
	"github.com/Sternrassler/catalog-loader/pkg/pagination"
	"github.com/Sternrassler/catalog-loader/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"endpoint"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog fetch failures by class",
	}, []string{"class"})
)

// Endpoint labels.
const (
	EndpointBrowse = "browse"
	EndpointSearch = "search"
)

// maxErrorBody bounds how much of an error response is kept in the message.
const maxErrorBody = 512

// Client fetches catalog pages.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	tracker    *ratelimit.Tracker
	pacer      *ratelimit.Pacer
	cache      *cache.Manager
	retry      RetryConfig
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog API, e.g. "https://dummyjson.com".
	BaseURL string

	// Resource is the collection path segment ("products").
	// Browse hits /{Resource}, search hits /{Resource}/search.
	Resource string

	// ItemsKey is the envelope field holding the item array.
	ItemsKey string

	UserAgent string
	Timeout   time.Duration

	// Redis enables response revalidation caching and shares rate limit
	// state between processes. Optional.
	Redis *redis.Client

	// Client-side pacing. RequestsPerSecond <= 0 disables it.
	RequestsPerSecond float64
	Burst             int

	// MaxRetries is the number of transport retries for transient failures.
	// Zero keeps the single-attempt policy.
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns the configuration for the public dummyjson catalog.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://dummyjson.com",
		Resource:          "products",
		ItemsKey:          catalog.DefaultItemsKey,
		UserAgent:         "catalog-loader/0.1.0",
		Timeout:           15 * time.Second,
		RequestsPerSecond: 10,
		Burst:             5,
		MaxRetries:        0,
		InitialBackoff:    500 * time.Millisecond,
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if strings.Trim(cfg.Resource, "/") == "" {
		return nil, fmt.Errorf("resource is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	logger := logging.NewLogger(logging.ComponentClient)

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		config:     cfg,
		tracker:    ratelimit.NewTracker(cfg.Redis, logger),
		pacer:      ratelimit.NewPacer(cfg.RequestsPerSecond, cfg.Burst),
		retry:      retry,
		logger:     logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// BrowseURL returns GET /{resource}?limit={pageSize}&skip={offset}.
func (c *Client) BrowseURL(cur pagination.Cursor) string {
	u := c.baseURL.JoinPath(c.config.Resource)
	q := url.Values{}
	q.Set("limit", strconv.Itoa(cur.PageSize))
	q.Set("skip", strconv.Itoa(cur.Offset))
	u.RawQuery = q.Encode()
	return u.String()
}

// SearchURL returns GET /{resource}/search?q={term}. No pagination parameters
// are sent.
func (c *Client) SearchURL(term string) string {
	u := c.baseURL.JoinPath(c.config.Resource, "search")
	q := url.Values{}
	q.Set("q", term)
	u.RawQuery = q.Encode()
	return u.String()
}

// Browse fetches one page in browse mode.
func (c *Client) Browse(ctx context.Context, cur pagination.Cursor) (*catalog.Page, error) {
	if err := cur.Validate(); err != nil {
		return nil, err
	}
	return c.fetch(ctx, c.BrowseURL(cur))
}

// FetchPage implements pagination.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, cur pagination.Cursor) (*catalog.Page, error) {
	return c.Browse(ctx, cur)
}

// Search fetches the single-shot result for term.
func (c *Client) Search(ctx context.Context, term string) (*catalog.Page, error) {
	return c.fetch(ctx, c.SearchURL(term))
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*catalog.Page, error) {
	var page *catalog.Page
	err := retryWithBackoff(ctx, c.retry, c.logger, func() error {
		p, err := c.fetchOnce(ctx, rawURL)
		if err != nil {
			var ce *CatalogError
			if errors.As(err, &ce) {
				catalogErrorsTotal.WithLabelValues(string(ce.Class)).Inc()
			}
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) (*catalog.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &CatalogError{Class: classifyErr(err), Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if class := classifyStatus(resp.StatusCode); class != "" {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := resp.Status
		if len(body) > 0 {
			msg = fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		return nil, &CatalogError{StatusCode: resp.StatusCode, Class: class, Message: msg}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CatalogError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read body", Err: err}
	}

	page, err := catalog.DecodePage(body, c.config.ItemsKey)
	if err != nil {
		return nil, &CatalogError{StatusCode: resp.StatusCode, Class: ErrorClassDecode, Message: "decode page", Err: err}
	}
	return page, nil
}

// Do sends req through pacing, rate limit gating and the revalidation cache.
// Non-2xx responses are returned as-is; classification happens in the caller.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	allowed, err := c.tracker.ShouldAllowRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		catalogRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, ErrRateLimited
	}

	var (
		key    cache.Key
		cached *cache.Entry
	)
	if c.cache != nil {
		key = cache.KeyFor(req)
		cached, err = c.cache.Get(ctx, key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if cache.CanRevalidate(cached) {
			cache.AddConditionalHeaders(req, cached)
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", cached.ETag).
				Msg("Making conditional request")
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", req.URL.String()).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		catalogRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, err
	}

	if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	catalogRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		resp.Body.Close()
		cache.Revalidated.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cached page")
		return cache.ToResponse(cached, req), nil
	}

	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry, err := cache.FromResponse(resp)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		if entry.ETag != "" || !entry.LastModified.IsZero() {
			if err := c.cache.Set(ctx, key, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			}
		}
	}

	return resp, nil
}

func endpointLabel(path string) string {
	if strings.HasSuffix(strings.TrimSuffix(path, "/"), "/search") {
		return EndpointSearch
	}
	return EndpointBrowse
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Tracker returns the rate limit tracker.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
