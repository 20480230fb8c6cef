package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-loader/pkg/catalog"
	"github.com/Sternrassler/catalog-loader/pkg/logging"
	"github.com/Sternrassler/catalog-loader/pkg/pagination"
	"github.com/Sternrassler/catalog-loader/pkg/scroll"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	loaderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_loader_requests_total",
		Help: "Total fetches issued by the loader by mode",
	}, []string{"mode"})

	loaderResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_loader_responses_total",
		Help: "Total fetch completions by outcome (applied, failed, stale)",
	}, []string{"outcome"})

	loaderFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_loader_fetch_duration_seconds",
		Help:    "Duration of loader fetches by mode",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"mode"})

	loaderResultItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_loader_result_items",
		Help: "Number of items in the most recently updated result set",
	})
)

var (
	// ErrAlreadyStarted is returned by Start on a running controller.
	ErrAlreadyStarted = errors.New("loader already started")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("loader stopped")
)

// Fetcher performs the two catalog request shapes. *client.Client implements it.
type Fetcher interface {
	Browse(ctx context.Context, cur pagination.Cursor) (*catalog.Page, error)
	Search(ctx context.Context, term string) (*catalog.Page, error)
}

// Config configures a Controller.
type Config struct {
	Fetcher  Fetcher
	PageSize int

	// Monitor delivers near-bottom signals. Optional; without it pages are
	// only advanced through AdvancePage.
	Monitor *scroll.Monitor

	// OnChange is called with a snapshot after every state transition. It
	// runs while the controller is locked and must not call back into it.
	OnChange func(Snapshot)

	// DuplicateWindow bounds how many item IDs are remembered for duplicate
	// detection. Defaults to DefaultDuplicateWindow.
	DuplicateWindow int

	// Logger defaults to the "loader" component logger.
	Logger *zerolog.Logger
}

// DefaultPageSize matches the catalog API's usual page.
const DefaultPageSize = 20

// Snapshot is a read-only view of the controller state for rendering.
type Snapshot struct {
	Mode      Mode
	Term      string
	Offset    int
	PageSize  int
	Items     []catalog.Item
	InFlight  bool
	Exhausted bool
	CanRetry  bool
	Err       error
}

// Controller serializes loader events through Reduce and runs the fetches
// they produce.
type Controller struct {
	fetcher  Fetcher
	monitor  *scroll.Monitor
	onChange func(Snapshot)
	logger   zerolog.Logger
	session  string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	dups    *duplicateDetector
	sub     *scroll.Subscription
	started bool
	stopped bool
}

// New creates a controller in browse mode at offset 0. No request is issued
// until Start, FetchCurrentPage or SetSearchTerm is called.
func New(cfg Config) (*Controller, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	state, err := NewState(cfg.PageSize)
	if err != nil {
		return nil, err
	}
	dups, err := newDuplicateDetector(cfg.DuplicateWindow)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(logging.ComponentLoader)
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	session := uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		fetcher:  cfg.Fetcher,
		monitor:  cfg.Monitor,
		onChange: cfg.OnChange,
		logger:   logger.With().Str("session", session).Logger(),
		session:  session,
		ctx:      ctx,
		cancel:   cancel,
		state:    state,
		dups:     dups,
	}, nil
}

// Session returns the controller's session id.
func (c *Controller) Session() string {
	return c.session
}

// Start subscribes to the scroll monitor and issues the initial browse fetch.
// The controller stops when ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	if c.monitor != nil {
		c.sub = c.monitor.Subscribe(func(scroll.Metrics) {
			c.AdvancePage()
		})
	}
	c.mu.Unlock()

	c.logger.Info().Int("page_size", c.Snapshot().PageSize).Msg("Loader started")

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.ctx.Done():
		}
	}()

	c.dispatch(Refresh{})
	return nil
}

// Stop releases the scroll subscription and cancels in-flight fetches.
// Responses arriving afterwards are dropped. Stop is idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	sub.Close()
	c.cancel()
	c.logger.Info().Msg("Loader stopped")
}

// Wait blocks until every issued fetch has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// SetSearchTerm switches to search mode for term, or back to browse mode when
// term is empty. The result set is cleared and the offset reset before the
// fetch is issued.
func (c *Controller) SetSearchTerm(term string) {
	c.dispatch(SearchTermChanged{Term: term})
}

// AdvancePage requests the next browse page. After a failed page it re-issues
// that page instead, so no page is skipped. It reports false when in search
// mode, while a page is loading, or once the catalog is exhausted.
func (c *Controller) AdvancePage() bool {
	return c.dispatch(ScrollNearBottom{}) != nil
}

// FetchCurrentPage issues the request for the current page or search term if
// it has not been loaded yet.
func (c *Controller) FetchCurrentPage() bool {
	return c.dispatch(Refresh{}) != nil
}

// Retry re-issues the last failed request of the current mode.
func (c *Controller) Retry() bool {
	return c.dispatch(RetryRequested{}) != nil
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotOf(c.state)
}

func snapshotOf(s State) Snapshot {
	return Snapshot{
		Mode:      s.Mode,
		Term:      s.Term,
		Offset:    s.Cursor.Offset,
		PageSize:  s.Cursor.PageSize,
		Items:     slices.Clone(s.Items),
		InFlight:  s.InFlight(),
		Exhausted: s.Exhausted,
		CanRetry:  s.CanRetry(),
		Err:       s.Err,
	}
}

// dispatch runs ev through Reduce and starts the resulting fetch.
func (c *Controller) dispatch(ev Event) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil
	}

	prev := c.state
	next, req := Reduce(prev, ev)

	if next.Epoch != prev.Epoch {
		c.dups.Reset()
		c.logger.Debug().
			Str("mode", next.Mode.String()).
			Str("term", next.Term).
			Uint64("epoch", next.Epoch).
			Msg("Mode switched")
	}

	switch ev := ev.(type) {
	case FetchCompleted:
		if !prev.Accepts(ev.Request) {
			c.logStale(ev.Request, prev)
			return nil
		}
		if ev.Request.Trigger == TriggerSearch {
			c.dups.Reset()
		}
		if dups := c.dups.Observe(ev.Items); len(dups) > 0 {
			c.logger.Warn().
				Ints64("ids", dups).
				Str("cursor", ev.Request.Cursor.String()).
				Msg("Duplicate items in result set")
		}
		loaderResponsesTotal.WithLabelValues("applied").Inc()
		loaderResultItems.Set(float64(len(next.Items)))
		c.logger.Debug().
			Str("mode", ev.Request.Mode.String()).
			Uint64("seq", ev.Request.Seq).
			Int("batch", len(ev.Items)).
			Int("items", len(next.Items)).
			Bool("exhausted", next.Exhausted).
			Msg("Batch applied")

	case FetchFailed:
		if !prev.Accepts(ev.Request) {
			c.logStale(ev.Request, prev)
			return nil
		}
		loaderResponsesTotal.WithLabelValues("failed").Inc()
		c.logger.Error().
			Err(ev.Err).
			Str("mode", ev.Request.Mode.String()).
			Str("term", ev.Request.Term).
			Str("cursor", ev.Request.Cursor.String()).
			Uint64("seq", ev.Request.Seq).
			Msg("Catalog fetch failed")

	default:
		if req == nil && next.Epoch == prev.Epoch {
			return nil
		}
	}

	c.state = next
	if c.onChange != nil {
		c.onChange(snapshotOf(next))
	}
	if req != nil {
		c.issue(*req)
	}
	return req
}

func (c *Controller) logStale(req Request, s State) {
	loaderResponsesTotal.WithLabelValues("stale").Inc()
	c.logger.Debug().
		Uint64("seq", req.Seq).
		Uint64("epoch", req.Epoch).
		Uint64("current_epoch", s.Epoch).
		Uint64("pending", s.Pending).
		Msg("Discarding stale response")
}

// issue runs req on its own goroutine. Must be called with c.mu held.
func (c *Controller) issue(req Request) {
	loaderRequestsTotal.WithLabelValues(req.Mode.String()).Inc()
	c.logger.Debug().
		Str("mode", req.Mode.String()).
		Str("term", req.Term).
		Str("cursor", req.Cursor.String()).
		Uint64("seq", req.Seq).
		Msg("Issuing fetch")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		start := time.Now()
		page, err := c.fetch(req)
		loaderFetchDuration.WithLabelValues(req.Mode.String()).Observe(time.Since(start).Seconds())

		if err != nil {
			c.dispatch(FetchFailed{Request: req, Err: err})
			return
		}
		c.dispatch(FetchCompleted{Request: req, Items: page.Items, Total: page.Total})
	}()
}

func (c *Controller) fetch(req Request) (*catalog.Page, error) {
	var (
		page *catalog.Page
		err  error
	)
	if req.Mode == ModeSearch {
		page, err = c.fetcher.Search(c.ctx, req.Term)
	} else {
		page, err = c.fetcher.Browse(c.ctx, req.Cursor)
	}
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = &catalog.Page{Items: []catalog.Item{}}
	}
	return page, nil
}
