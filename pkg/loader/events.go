package loader

import "github.com/Sternrassler/catalog-loader/pkg/catalog"

// Event is an input to Reduce.
type Event interface {
	event()
}

// ScrollNearBottom asks for the next browse page.
type ScrollNearBottom struct{}

// SearchTermChanged switches to search mode, or back to browse mode when Term
// is empty.
type SearchTermChanged struct {
	Term string
}

// FetchCompleted carries a successful response.
type FetchCompleted struct {
	Request Request
	Items   []catalog.Item

	// Total is the catalog size reported by the server, 0 when unknown.
	Total int
}

// FetchFailed carries a failed response.
type FetchFailed struct {
	Request Request
	Err     error
}

// RetryRequested re-issues the last failed request.
type RetryRequested struct{}

// Refresh fetches the current page or search result if it is not loaded yet.
type Refresh struct{}

func (ScrollNearBottom) event()  {}
func (SearchTermChanged) event() {}
func (FetchCompleted) event()    {}
func (FetchFailed) event()       {}
func (RetryRequested) event()    {}
func (Refresh) event()           {}
