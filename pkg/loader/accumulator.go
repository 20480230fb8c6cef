package loader

import (
	"fmt"

	"github.com/Sternrassler/catalog-loader/pkg/catalog"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var duplicateItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "catalog_loader_duplicate_items_total",
	Help: "Total items received whose ID was already in the result set",
})

// DefaultDuplicateWindow is the number of item IDs remembered for duplicate
// detection.
const DefaultDuplicateWindow = 4096

// Apply merges batch into results. TriggerSearch replaces the result set,
// TriggerPage appends to it. The returned slice never shares its backing
// array with results or batch. Items are not deduplicated.
func Apply(results, batch []catalog.Item, trigger Trigger) []catalog.Item {
	if trigger == TriggerSearch {
		out := make([]catalog.Item, len(batch))
		copy(out, batch)
		return out
	}
	out := make([]catalog.Item, 0, len(results)+len(batch))
	out = append(out, results...)
	return append(out, batch...)
}

// duplicateDetector remembers recently seen item IDs. It reports repeats
// without removing them from the result set.
type duplicateDetector struct {
	seen *lru.Cache[int64, struct{}]
}

func newDuplicateDetector(size int) (*duplicateDetector, error) {
	if size <= 0 {
		size = DefaultDuplicateWindow
	}
	seen, err := lru.New[int64, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create duplicate detector: %w", err)
	}
	return &duplicateDetector{seen: seen}, nil
}

// Observe records batch and returns the IDs that were already seen, including
// repeats within batch.
func (d *duplicateDetector) Observe(batch []catalog.Item) []int64 {
	var dups []int64
	for _, it := range batch {
		if d.seen.Contains(it.ID) {
			dups = append(dups, it.ID)
			continue
		}
		d.seen.Add(it.ID, struct{}{})
	}
	if len(dups) > 0 {
		duplicateItemsTotal.Add(float64(len(dups)))
	}
	return dups
}

// Reset forgets every ID.
func (d *duplicateDetector) Reset() {
	d.seen.Purge()
}
