// Package scroll detects when the viewport of a rendering surface has reached
// the bottom of its document and notifies subscribers.
package scroll

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	scrollEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_scroll_events_total",
		Help: "Total scroll events handled",
	})

	scrollNearBottomTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_scroll_near_bottom_total",
		Help: "Total near-bottom signals emitted",
	})

	scrollSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_scroll_subscribers",
		Help: "Number of active scroll subscriptions",
	})
)

// Metrics describes the viewport at the time of a scroll event.
type Metrics struct {
	ScrollPosition float64
	ViewportHeight float64
	DocumentHeight float64
}

// NearBottom reports whether the bottom of the viewport is within threshold of
// the bottom of the document.
func (m Metrics) NearBottom(threshold float64) bool {
	return m.ScrollPosition+m.ViewportHeight+threshold >= m.DocumentHeight
}

// ViewportProvider reports the current viewport metrics.
type ViewportProvider interface {
	Viewport() Metrics
}

// ViewportFunc adapts a function to ViewportProvider.
type ViewportFunc func() Metrics

// Viewport implements ViewportProvider.
func (f ViewportFunc) Viewport() Metrics {
	return f()
}

// Listener is called with the metrics that triggered a near-bottom signal.
type Listener func(Metrics)

// Monitor fans out near-bottom signals to its subscribers. The host calls
// HandleScroll on every scroll event.
type Monitor struct {
	provider  ViewportProvider
	threshold float64
	logger    zerolog.Logger

	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]Listener
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithThreshold sets the distance from the bottom that counts as near. The
// default of 0 requires the viewport to touch the bottom exactly.
func WithThreshold(px float64) Option {
	return func(m *Monitor) {
		if px >= 0 {
			m.threshold = px
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// NewMonitor creates a monitor reading metrics from provider.
func NewMonitor(provider ViewportProvider, opts ...Option) *Monitor {
	m := &Monitor{
		provider:  provider,
		logger:    zerolog.Nop(),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers fn for near-bottom signals. The returned subscription
// must be closed to stop receiving them.
func (m *Monitor) Subscribe(fn Listener) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	scrollSubscribers.Inc()

	m.logger.Debug().Uint64("subscription", id).Msg("Scroll listener attached")
	return &Subscription{monitor: m, id: id}
}

// Subscribers returns the number of active subscriptions.
func (m *Monitor) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// HandleScroll reads the viewport and notifies every subscriber when it is
// near the bottom. It reports whether a signal was emitted. Repeated calls at
// the bottom emit repeated signals.
func (m *Monitor) HandleScroll() bool {
	scrollEventsTotal.Inc()

	metrics := m.provider.Viewport()
	if !metrics.NearBottom(m.threshold) {
		return false
	}

	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	scrollNearBottomTotal.Inc()
	m.logger.Debug().
		Float64("scroll_position", metrics.ScrollPosition).
		Float64("viewport_height", metrics.ViewportHeight).
		Float64("document_height", metrics.DocumentHeight).
		Int("listeners", len(listeners)).
		Msg("Near bottom")

	for _, fn := range listeners {
		fn(metrics)
	}
	return true
}

func (m *Monitor) remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listeners[id]; !ok {
		return
	}
	delete(m.listeners, id)
	scrollSubscribers.Dec()
	m.logger.Debug().Uint64("subscription", id).Msg("Scroll listener detached")
}

// Subscription is a registered listener.
type Subscription struct {
	monitor *Monitor
	id      uint64
	once    sync.Once
}

// Close removes the listener. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.monitor.remove(s.id)
	})
}
