// Package loader drives an incrementally loaded catalog list. A Controller
// turns scroll signals and search term changes into catalog requests and
// merges the responses into an ordered result set.
//
// All transitions go through Reduce, a pure function over State. Exactly one
// of browse mode (paginated) or search mode (single query) is active at a
// time, and switching modes always starts from an empty result set at offset 0.
package loader

import (
	"fmt"

	"github.com/Sternrassler/catalog-loader/pkg/catalog"
	"github.com/Sternrassler/catalog-loader/pkg/pagination"
)

// Mode is the active loading mode.
type Mode int

const (
	// ModeBrowse pages through the whole catalog.
	ModeBrowse Mode = iota

	// ModeSearch runs a single unpaginated query.
	ModeSearch
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeBrowse:
		return "browse"
	case ModeSearch:
		return "search"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Trigger says how a response is merged into the result set.
type Trigger int

const (
	// TriggerPage appends the batch.
	TriggerPage Trigger = iota

	// TriggerSearch replaces the result set with the batch.
	TriggerSearch
)

// String implements fmt.Stringer.
func (t Trigger) String() string {
	switch t {
	case TriggerPage:
		return "page"
	case TriggerSearch:
		return "search"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// Request is a fetch issued by the reducer. Seq increases with every request;
// Epoch changes on every search term change.
type Request struct {
	Seq     uint64
	Epoch   uint64
	Mode    Mode
	Cursor  pagination.Cursor
	Term    string
	Trigger Trigger
}

// State is the complete loader state.
type State struct {
	Mode   Mode
	Term   string
	Cursor pagination.Cursor
	Items  []catalog.Item

	// Epoch identifies the current mode session.
	Epoch uint64

	// Seq is the last issued sequence number.
	Seq uint64

	// Pending is the sequence number of the outstanding request of this
	// epoch, or 0.
	Pending uint64

	// Applied is the highest sequence number applied in this epoch.
	Applied uint64

	// Loaded is set once the page at Cursor (or the search result) has been
	// applied.
	Loaded bool

	// Exhausted is set when browsing reached the end of the catalog, or when
	// a search result has been applied.
	Exhausted bool

	// Failed is the last request that failed in this epoch, if it has not
	// been re-issued since.
	Failed *Request
	Err    error
}

// NewState returns the initial browse state.
func NewState(pageSize int) (State, error) {
	cur, err := pagination.NewCursor(pageSize)
	if err != nil {
		return State{}, err
	}
	return State{Mode: ModeBrowse, Cursor: cur, Items: []catalog.Item{}}, nil
}

// InFlight reports whether a request of the current epoch is outstanding.
func (s State) InFlight() bool {
	return s.Pending != 0
}

// CanAdvance reports whether a near-bottom signal would load the next page.
func (s State) CanAdvance() bool {
	return s.Mode == ModeBrowse && !s.InFlight() && s.Loaded && !s.Exhausted
}

// CanRetry reports whether the last failed request can be re-issued.
func (s State) CanRetry() bool {
	return s.Failed != nil && s.Failed.Epoch == s.Epoch && !s.InFlight()
}

// Accepts reports whether a response to req would be applied. Responses from
// an earlier epoch, or superseded by a newer request, are stale.
func (s State) Accepts(req Request) bool {
	return req.Epoch == s.Epoch && req.Seq == s.Pending && req.Seq > s.Applied
}
