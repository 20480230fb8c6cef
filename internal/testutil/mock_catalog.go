// Package testutil provides a mock catalog API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-loader/pkg/catalog"
)

// MockResponse is a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog serves a dummyjson-style catalog from memory.
//
//	GET /products?limit=N&skip=M
//	GET /products/search?q=term
type MockCatalog struct {
	server *httptest.Server

	mu        sync.RWMutex
	items     []catalog.Item
	overrides map[string]func(w http.ResponseWriter, r *http.Request)
	etags     bool

	RequestCount     int
	ConditionalCount int
	Queries          []string
}

// NewMockCatalog starts a server holding n generated items. Item i has ID i+1
// and title "Item <i+1>".
func NewMockCatalog(n int) *MockCatalog {
	m := &MockCatalog{
		items:     GenerateItems(n),
		overrides: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.RequestCount++
		m.Queries = append(m.Queries, r.URL.RequestURI())
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			m.ConditionalCount++
		}
		handler, overridden := m.overrides[r.URL.Path]
		m.mu.Unlock()

		if overridden {
			handler(w, r)
			return
		}
		m.serve(w, r)
	}))

	return m
}

// GenerateItems returns n items with sequential IDs starting at 1.
func GenerateItems(n int) []catalog.Item {
	items := make([]catalog.Item, n)
	for i := range items {
		items[i] = catalog.Item{
			ID:        int64(i + 1),
			Title:     fmt.Sprintf("Item %d", i+1),
			Price:     float64(i+1) * 1.5,
			Thumbnail: fmt.Sprintf("https://cdn.example.test/%d.png", i+1),
		}
	}
	return items
}

// URL returns the server base URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// SetItems replaces the catalog contents.
func (m *MockCatalog) SetItems(items []catalog.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// EnableETags makes the default handler emit ETags and answer matching
// If-None-Match requests with 304.
func (m *MockCatalog) EnableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = true
}

// SetHandler overrides the handler for a path.
func (m *MockCatalog) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[path] = handler
}

// SetResponse overrides a path with a canned response.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// ClearHandler removes an override.
func (m *MockCatalog) ClearHandler(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, path)
}

// GetRequestCount returns the number of requests served.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockCatalog) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetQueries returns the request URIs seen so far.
func (m *MockCatalog) GetQueries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Queries...)
}

func (m *MockCatalog) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	items := m.items
	etags := m.etags
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-RateLimit-Limit", "100")
	w.Header().Set("X-RateLimit-Remaining", "99")
	w.Header().Set("X-RateLimit-Reset", "10")

	var page catalog.Page
	switch {
	case r.URL.Path == "/products/search":
		q := strings.ToLower(r.URL.Query().Get("q"))
		matches := []catalog.Item{}
		for _, it := range items {
			if strings.Contains(strings.ToLower(it.Title), q) {
				matches = append(matches, it)
			}
		}
		page = catalog.Page{Items: matches, Total: len(matches), Limit: len(matches)}
	case r.URL.Path == "/products":
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit < 0 {
			limit = 30
		}
		skip, err := strconv.Atoi(r.URL.Query().Get("skip"))
		if err != nil || skip < 0 {
			skip = 0
		}
		page = catalog.Page{Items: []catalog.Item{}, Total: len(items), Skip: skip, Limit: limit}
		if skip < len(items) {
			end := skip + limit
			if end > len(items) {
				end = len(items)
			}
			page.Items = items[skip:end]
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
		return
	}

	body, err := json.Marshal(map[string]any{
		"products": page.Items,
		"total":    page.Total,
		"skip":     page.Skip,
		"limit":    page.Limit,
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if etags {
		etag := fmt.Sprintf(`"%d-%d"`, len(body), len(items))
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "max-age=60")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message":"internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 response with Retry-After.
func NewRateLimitResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"too many requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  strconv.Itoa(retryAfter),
		},
	}
}

// NewMalformedResponse creates a 200 response with an invalid body.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}
