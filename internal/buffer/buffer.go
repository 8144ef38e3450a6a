// Package buffer implements the memory tier: a bounded-recency window over
// recently ingested observations, answering nearest-timestamp queries fast
// and without touching the durable store.
package buffer

import (
	"sync"
	"time"

	"github.com/avolkov/pricevault/internal/model"
)

const defaultCapacity = 256

// Buffer is a thread-safe insertion-ordered ring holding observations whose
// IngestedAt is within MaxAge of now. Entries are appended at the tail and
// expire from the head; insertion order proxies IngestedAt order, so eviction
// stops at the first live entry. The ring doubles its capacity when full.
//
// A miss here is not authoritative: the caller falls through to the durable
// tier.
type Buffer struct {
	mu       sync.Mutex
	buf      []model.PriceObservation
	head     int // oldest entry
	tail     int // next write position
	count    int
	capacity int
	maxAge   time.Duration
	now      func() time.Time

	// Stats
	totalAdded   int64
	totalEvicted int64
	resizeCount  int
}

// New creates a buffer that retains observations for maxAge.
func New(maxAge time.Duration) *Buffer {
	return &Buffer{
		buf:      make([]model.PriceObservation, defaultCapacity),
		capacity: defaultCapacity,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Add appends an observation and evicts entries that have aged out of the
// window.
func (b *Buffer) Add(obs model.PriceObservation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		b.grow()
	}

	b.buf[b.tail] = obs
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.totalAdded++

	b.evictExpired()
}

// Query returns the live observation for symbol whose ObservedAt is closest
// to targetTS within tolerance seconds. Ties go to the most recently ingested
// entry. ok is false when no candidate qualifies.
func (b *Buffer) Query(symbol string, targetTS, tolerance int64) (model.PriceObservation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evictExpired()

	var (
		best     model.PriceObservation
		bestDiff int64
		found    bool
	)

	for i := 0; i < b.count; i++ {
		e := b.buf[(b.head+i)%b.capacity]
		if e.Symbol != symbol {
			continue
		}

		diff := e.ObservedAt - targetTS
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			continue
		}

		if !found || diff < bestDiff || (diff == bestDiff && e.IngestedAt >= best.IngestedAt) {
			best = e
			bestDiff = diff
			found = true
		}
	}

	return best, found
}

// Sweep evicts aged-out entries and returns how many were removed.
func (b *Buffer) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	before := b.totalEvicted
	b.evictExpired()
	return int(b.totalEvicted - before)
}

// Len returns the number of live entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:        b.count,
		Capacity:     b.capacity,
		TotalAdded:   b.totalAdded,
		TotalEvicted: b.totalEvicted,
		ResizeCount:  b.resizeCount,
	}
}

// Stats contains buffer statistics.
type Stats struct {
	Count        int
	Capacity     int
	TotalAdded   int64
	TotalEvicted int64
	ResizeCount  int
}

// evictExpired pops entries older than maxAge from the head.
// Must be called with lock held.
func (b *Buffer) evictExpired() {
	cutoff := b.now().Add(-b.maxAge).Unix()
	for b.count > 0 && b.buf[b.head].IngestedAt < cutoff {
		b.buf[b.head] = model.PriceObservation{} // Clear for GC
		b.head = (b.head + 1) % b.capacity
		b.count--
		b.totalEvicted++
	}
}

// grow doubles the ring capacity. Must be called with lock held.
func (b *Buffer) grow() {
	newCapacity := b.capacity * 2
	newBuf := make([]model.PriceObservation, newCapacity)

	if b.count > 0 {
		if b.head < b.tail {
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity = newCapacity
	b.resizeCount++
}
