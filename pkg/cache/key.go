package cache

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces all cache keys in Redis.
const KeyPrefix = "catalog"

// Key identifies a cached catalog response.
type Key struct {
	// Path is the request path, e.g. "/products/search".
	Path string

	// Query holds the request query parameters.
	Query url.Values
}

// KeyFor builds the key for an outgoing request.
func KeyFor(req *http.Request) Key {
	return Key{
		Path:  req.URL.Path,
		Query: req.URL.Query(),
	}
}

// String returns a deterministic Redis key.
//
//	catalog:products:limit=20:skip=40
//	catalog:products/search:q=phone
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if p := strings.Trim(k.Path, "/"); p != "" {
		parts = append(parts, p)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := append([]string(nil), k.Query[name]...)
		sort.Strings(values)
		for _, v := range values {
			parts = append(parts, name+"="+url.QueryEscape(v))
		}
	}

	return strings.Join(parts, ":")
}
