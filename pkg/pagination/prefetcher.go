package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-loader/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	prefetchPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_prefetch_pages_total",
		Help: "Pages fetched by the prefetcher by result",
	}, []string{"result"})

	prefetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_prefetch_duration_seconds",
		Help:    "Duration of a full prefetch run",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// ErrNoPage is returned when a PageFetcher reports neither a page nor an error.
var ErrNoPage = errors.New("fetcher returned no page")

// Config holds prefetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests.
	MaxConcurrency int
	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultConfig returns a conservative configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single browse page.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor Cursor) (*catalog.Page, error)
}

// PageResult is the outcome of one page fetch.
type PageResult struct {
	Index int
	Items []catalog.Item
	Error error
}

// Prefetcher fetches a run of browse pages in parallel.
type Prefetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewPrefetcher creates a new prefetcher.
func NewPrefetcher(fetcher PageFetcher, config Config) *Prefetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Prefetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchPages fetches up to maxPages pages starting at start and returns their
// items in offset order. The first page is fetched alone to learn the catalog
// total so that no requests are issued past the end.
func (p *Prefetcher) FetchPages(ctx context.Context, start Cursor, maxPages int) ([]catalog.Item, error) {
	if err := start.Validate(); err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		return []catalog.Item{}, nil
	}

	begin := time.Now()
	defer func() {
		prefetchDuration.Observe(time.Since(begin).Seconds())
	}()

	first, err := p.fetcher.FetchPage(ctx, start)
	if err == nil && first == nil {
		err = ErrNoPage
	}
	if err != nil {
		prefetchPagesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch first page: %w", err)
	}
	prefetchPagesTotal.WithLabelValues("ok").Inc()

	pages := maxPages
	if first.Exhausted() {
		pages = 1
	} else if first.Total > 0 {
		remaining := first.Total - start.Offset
		if n := (remaining + start.PageSize - 1) / start.PageSize; n < pages {
			pages = n
		}
	}

	log.Info().
		Str("start", start.String()).
		Int("pages", pages).
		Int("total", first.Total).
		Msg("Starting parallel prefetch")

	results := make([][]catalog.Item, pages)
	fetched := make([]bool, pages)
	results[0] = first.Items
	fetched[0] = true

	if pages > 1 {
		queue := make(chan int, pages-1)
		out := make(chan PageResult, pages-1)
		for i := 1; i < pages; i++ {
			queue <- i
		}
		close(queue)

		var wg sync.WaitGroup
		workers := p.config.MaxConcurrency
		if workers > pages-1 {
			workers = pages - 1
		}
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go p.worker(ctx, start, queue, out, &wg, w)
		}

		go func() {
			wg.Wait()
			close(out)
		}()

		var failed *PageResult
		for res := range out {
			if res.Error != nil {
				prefetchPagesTotal.WithLabelValues("error").Inc()
				if failed == nil || res.Index < failed.Index {
					r := res
					failed = &r
				}
				continue
			}
			prefetchPagesTotal.WithLabelValues("ok").Inc()
			results[res.Index] = res.Items
			fetched[res.Index] = true
		}

		if failed != nil {
			items := flatten(results[:failed.Index], fetched)
			log.Warn().
				Err(failed.Error).
				Int("page", failed.Index).
				Int("items", len(items)).
				Msg("Prefetch stopped at failed page - returning partial results")
			return items, fmt.Errorf("page %d (partial data: %d items): %w", failed.Index, len(items), failed.Error)
		}
	}

	items := flatten(results, fetched)
	log.Info().
		Int("pages", pages).
		Int("items", len(items)).
		Dur("duration", time.Since(begin)).
		Msg("Prefetch complete")

	return items, nil
}

func (p *Prefetcher) worker(ctx context.Context, start Cursor, queue <-chan int, out chan<- PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for idx := range queue {
		if ctx.Err() != nil {
			out <- PageResult{Index: idx, Error: ctx.Err()}
			continue
		}

		cur := Cursor{Offset: start.Offset + idx*start.PageSize, PageSize: start.PageSize}
		pageCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		page, err := p.fetcher.FetchPage(pageCtx, cur)
		cancel()
		if err == nil && page == nil {
			err = ErrNoPage
		}

		if err != nil {
			log.Debug().
				Err(err).
				Int("worker_id", workerID).
				Str("cursor", cur.String()).
				Msg("Page fetch failed")
			out <- PageResult{Index: idx, Error: err}
			continue
		}

		out <- PageResult{Index: idx, Items: page.Items}
	}
}

// flatten concatenates pages, stopping at the first page not fetched.
func flatten(pages [][]catalog.Item, fetched []bool) []catalog.Item {
	items := []catalog.Item{}
	for i, page := range pages {
		if !fetched[i] {
			break
		}
		items = append(items, page...)
	}
	return items
}
