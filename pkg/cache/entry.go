package cache

import (
	"net/http"
	"time"
)

// Entry is a cached catalog response.
type Entry struct {
	Body         []byte      `json:"body"`
	ETag         string      `json:"etag"`
	LastModified time.Time   `json:"last_modified"`
	StatusCode   int         `json:"status_code"`
	Header       http.Header `json:"header"`
	StoredAt     time.Time   `json:"stored_at"`

	// Expires bounds how long the entry is kept in Redis.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true once the entry should no longer be revalidated.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
