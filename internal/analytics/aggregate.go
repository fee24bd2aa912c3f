// Package analytics turns raw click events into per-window statistics and
// suspicious-click counts.
package analytics

import (
	"sort"

	"github.com/shortify/shortify/internal/classify"
	"github.com/shortify/shortify/internal/model"
)

// DefaultTopNReferer is the number of referers kept verbatim.
const DefaultTopNReferer = 5

// Aggregate computes the window statistics for one identifier.
//
// Timestamps are bucketed in the display timezone. Events with a malformed
// timestamp are left out of the hour and day buckets but still count towards
// the total, referer and device buckets. Referers outside the top-N are summed
// into "other"; ties at the cut-off keep the referer seen first.
func Aggregate(events []model.ClickEvent, topN int) model.Stats {
	if topN <= 0 {
		topN = DefaultTopNReferer
	}

	stats := model.Stats{
		Total:          len(events),
		ClicksByHour:   make(map[string]int),
		ClicksByDay:    make(map[string]int),
		ClicksByDevice: make(map[string]int),
	}

	referers := newOrderedCounter()
	for _, e := range events {
		if t, ok := e.Time(); ok {
			stats.ClicksByHour[classify.HourKey(t)]++
			stats.ClicksByDay[classify.DayKey(t)]++
		}
		referers.add(e.RefererOrDirect(), 1)
		stats.ClicksByDevice[classify.Device(e.UserAgent)]++
	}

	stats.ClicksByReferer = compactTopN(referers, topN)
	return stats
}

func compactTopN(c *orderedCounter, topN int) map[string]int {
	out := make(map[string]int)
	top := c.mostCommon(topN)
	keep := make(map[string]bool, len(top))
	for _, kv := range top {
		keep[kv.Key] = true
	}

	other := 0
	for _, key := range c.order {
		if keep[key] {
			out[key] = c.counts[key]
		} else {
			other += c.counts[key]
		}
	}
	if other > 0 {
		out[model.OtherReferer] += other
	}
	return out
}

// KeyCount is one ranked counter entry.
type KeyCount struct {
	Key   string
	Count int
}

// orderedCounter counts keys and remembers first-seen order for stable ranking.
type orderedCounter struct {
	counts map[string]int
	order  []string
}

func newOrderedCounter() *orderedCounter {
	return &orderedCounter{counts: make(map[string]int)}
}

func (c *orderedCounter) add(key string, n int) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

// mostCommon returns up to n entries by descending count, first-seen first on ties.
// n <= 0 returns every entry.
func (c *orderedCounter) mostCommon(n int) []KeyCount {
	ranked := make([]KeyCount, 0, len(c.order))
	for _, key := range c.order {
		ranked = append(ranked, KeyCount{Key: key, Count: c.counts[key]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Counter is the exported form of the ordered counter, used for global rankings.
type Counter struct {
	inner *orderedCounter
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{inner: newOrderedCounter()}
}

// Add increments key by n.
func (c *Counter) Add(key string, n int) {
	c.inner.add(key, n)
}

// Get returns the count for key.
func (c *Counter) Get(key string) int {
	return c.inner.counts[key]
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int {
	return len(c.inner.order)
}

// MostCommon returns up to n entries by descending count; ties keep insertion order.
func (c *Counter) MostCommon(n int) []KeyCount {
	return c.inner.mostCommon(n)
}

// Map returns a copy of the counts.
func (c *Counter) Map() map[string]int {
	out := make(map[string]int, len(c.inner.counts))
	for k, v := range c.inner.counts {
		out[k] = v
	}
	return out
}
