package loader

import (
	"github.com/Sternrassler/catalog-loader/pkg/catalog"
	"github.com/Sternrassler/catalog-loader/pkg/pagination"
)

// Reduce applies ev to s and returns the next state together with the request
// to issue, if any. s itself is never modified.
func Reduce(s State, ev Event) (State, *Request) {
	switch ev := ev.(type) {
	case ScrollNearBottom:
		if s.Mode == ModeBrowse && s.CanRetry() {
			// The cursor still points at the failed page.
			return s.issue()
		}
		if !s.CanAdvance() {
			return s, nil
		}
		s.Cursor = s.Cursor.Next()
		s.Loaded = false
		return s.issue()

	case SearchTermChanged:
		s.Epoch++
		s.Term = ev.Term
		s.Mode = ModeBrowse
		if ev.Term != "" {
			s.Mode = ModeSearch
		}
		s.Cursor = s.Cursor.Reset()
		s.Items = []catalog.Item{}
		s.Pending = 0
		s.Applied = 0
		s.Loaded = false
		s.Exhausted = false
		s.Failed = nil
		s.Err = nil
		return s.issue()

	case Refresh:
		if s.InFlight() || (s.Mode == ModeBrowse && s.Loaded) {
			return s, nil
		}
		return s.issue()

	case RetryRequested:
		if !s.CanRetry() {
			return s, nil
		}
		return s.issue()

	case FetchCompleted:
		if !s.Accepts(ev.Request) {
			return s, nil
		}
		s.Pending = 0
		s.Applied = ev.Request.Seq
		s.Items = Apply(s.Items, ev.Items, ev.Request.Trigger)
		s.Loaded = true
		s.Failed = nil
		s.Err = nil
		s.Exhausted = s.Mode == ModeSearch || exhausted(ev.Request.Cursor, len(ev.Items), ev.Total)
		return s, nil

	case FetchFailed:
		if !s.Accepts(ev.Request) {
			return s, nil
		}
		failed := ev.Request
		s.Pending = 0
		s.Failed = &failed
		s.Err = ev.Err
		return s, nil

	default:
		return s, nil
	}
}

// issue builds the request for the current state and marks it pending.
func (s State) issue() (State, *Request) {
	s.Seq++
	req := Request{
		Seq:    s.Seq,
		Epoch:  s.Epoch,
		Mode:   s.Mode,
		Cursor: s.Cursor,
		Term:   s.Term,
	}
	if s.Mode == ModeSearch {
		req.Trigger = TriggerSearch
	}
	s.Pending = req.Seq
	s.Failed = nil
	return s, &req
}

// exhausted reports whether a browse page of n items at cur ended the catalog.
func exhausted(cur pagination.Cursor, n, total int) bool {
	if n == 0 {
		return true
	}
	return total > 0 && cur.Offset+n >= total
}
