package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/catalog-loader/pkg/catalog"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts fail.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrRateLimited is returned when the tracker holds a request because the
	// server's window is exhausted.
	ErrRateLimited = errors.New("request held: catalog rate limit exhausted")
)

// ErrorClass classifies fetch failures.
type ErrorClass string

const (
	// ErrorClassNetwork covers transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassClient covers 4xx responses other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer covers 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit covers 429 responses and locally held requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassDecode covers malformed payloads.
	ErrorClassDecode ErrorClass = "decode"
)

// CatalogError is a classified fetch failure.
type CatalogError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error (status %d): %s: %v", e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CatalogError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same request may succeed.
func (e *CatalogError) Transient() bool {
	return isTransientClass(e.Class)
}

func isTransientClass(class ErrorClass) bool {
	switch class {
	case ErrorClassNetwork, ErrorClassServer, ErrorClassRateLimit:
		return true
	default:
		return false
	}
}

// IsTransient reports whether err is a fetch failure worth retrying.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Transient()
	}
	return false
}

// ClassOf returns the class of err, or "" when err is not a CatalogError.
func ClassOf(err error) ErrorClass {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ""
}

// classifyStatus maps an HTTP status to an error class. Success codes return "".
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyErr maps a transport or decode error to an error class. Anything
// that is not a decode or local rate limit failure is a network failure.
func classifyErr(err error) ErrorClass {
	switch {
	case errors.Is(err, catalog.ErrMalformedPage):
		return ErrorClassDecode
	case errors.Is(err, ErrRateLimited):
		return ErrorClassRateLimit
	default:
		return ErrorClassNetwork
	}
}
