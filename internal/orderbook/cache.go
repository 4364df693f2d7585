// Package orderbook implements the concurrent, single-writer-per-key,
// many-reader order-book snapshot store. The locking discipline here
// mirrors the rest of this codebase's shared-cache primitives: one mutex
// guards only map lookups and pointer-sized writes, and published snapshot
// values are treated as deeply immutable so readers never need to copy
// level arrays.
package orderbook

import (
	"sort"
	"sync"

	"cyclearb/internal/market"
)

// Level is an immutable (price, size) pair within a published snapshot.
type Level struct {
	Price float64
	Size  float64
}

// Snapshot is an immutable, fully-sorted view of one market's book at the
// moment it was published.
type Snapshot struct {
	Exchange    string
	Market      string
	Bids        []Level // descending by price; equal-price levels are not merged
	Asks        []Level // ascending by price; equal-price levels are not merged
	TimestampMs int64
}

type cacheKey struct {
	exchange string
	market   string
}

// Cache is a concurrent map of (exchange, market) -> *Snapshot. Publication
// is atomic with respect to readers: a reader either observes the previous
// snapshot in full or the new one in full, never a torn mix.
type Cache struct {
	mu   sync.RWMutex
	rows map[cacheKey]*Snapshot
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{rows: make(map[cacheKey]*Snapshot)}
}

// Update filters non-positive price/size levels, sorts bids descending and
// asks ascending, and publishes the result under (exchange, market). If
// either side ends up empty after filtering, the update is rejected as a
// no-op and the previous snapshot (if any) is left in place. This is a
// single-level publish: it does not recurse, unlike the known defect this
// store intentionally does not reproduce.
func (c *Cache) Update(exchange, market string, raw market.RawOrderbook) bool {
	bids := filterSort(raw.Bids, true)
	asks := filterSort(raw.Asks, false)

	if len(bids) == 0 || len(asks) == 0 {
		return false
	}

	snap := &Snapshot{
		Exchange:    exchange,
		Market:      market,
		Bids:        bids,
		Asks:        asks,
		TimestampMs: raw.TimestampMs,
	}

	c.mu.Lock()
	c.rows[cacheKey{exchange, market}] = snap
	c.mu.Unlock()
	return true
}

func filterSort(levels []market.Level, descending bool) []Level {
	out := make([]Level, 0, len(levels))
	for _, l := range levels {
		if l.Price > 0 && l.Size > 0 {
			out = append(out, Level{Price: l.Price, Size: l.Size})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// Snapshot returns the currently published snapshot for (exchange, market),
// or nil if none is present.
func (c *Cache) Snapshot(exchange, market string) *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rows[cacheKey{exchange, market}]
}

// SnapshotMany returns a mapping from market code to snapshot for every
// requested market currently present under exchange. Missing markets are
// simply absent from the result; callers must treat absence as a rejection
// cause, never as a stale read. The whole read happens under one lock
// acquisition so the result is a consistent, frozen point-in-time slice.
func (c *Cache) SnapshotMany(exchange string, markets []string) map[string]*Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*Snapshot, len(markets))
	for _, m := range markets {
		if snap, ok := c.rows[cacheKey{exchange, m}]; ok {
			out[m] = snap
		}
	}
	return out
}

// HasData reports whether at least one market is populated.
func (c *Cache) HasData() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows) > 0
}

// Markets returns the number of currently populated (exchange, market)
// entries, used for metrics reporting.
func (c *Cache) Markets() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}
