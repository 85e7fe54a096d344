package feature

import (
	"sync"
	"time"
)

// Window tracks recent request timestamps per IP inside a sliding time window.
// Memory is bounded twice: each IP keeps at most limit timestamps, and at most
// maxIPs addresses are tracked at once. Pruning only ever compares timestamps of
// the same IP, so sources with skewed clocks do not disturb each other.
type Window struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	span   time.Duration
	limit  int
	maxIPs int
}

// NewWindow creates a tracker. limit and maxIPs below 1 are treated as 1.
func NewWindow(span time.Duration, limit, maxIPs int) *Window {
	if limit < 1 {
		limit = 1
	}
	if maxIPs < 1 {
		maxIPs = 1
	}
	return &Window{
		hits:   make(map[string][]time.Time),
		span:   span,
		limit:  limit,
		maxIPs: maxIPs,
	}
}

// Add records a hit for ip at ts and returns how many hits for ip fall inside the
// window ending at ts, ts included. Entries older than the span relative to ts are dropped.
func (w *Window) Add(ip string, ts time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	hist, exists := w.hits[ip]
	if !exists && len(w.hits) >= w.maxIPs {
		// Table full. Drop the address that has been quiet the longest.
		w.evictStalest()
	}

	kept := hist[:0]
	for _, t := range hist {
		if ts.Sub(t) <= w.span {
			kept = append(kept, t)
		}
	}
	kept = append(kept, ts)
	if len(kept) > w.limit {
		kept = kept[len(kept)-w.limit:]
	}
	w.hits[ip] = kept
	return len(kept)
}

// Reset forgets every hit for ip
func (w *Window) Reset(ip string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hits, ip)
}

// count returns the stored hits for ip without pruning
func (w *Window) count(ip string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits[ip])
}

// Len returns the number of tracked addresses
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}

// evictStalest removes the address with the oldest most recent hit.
// Caller must hold lock.
func (w *Window) evictStalest() {
	var stalest string
	var oldest time.Time
	for ip, hist := range w.hits {
		if len(hist) == 0 {
			stalest = ip
			break
		}
		last := hist[len(hist)-1]
		if stalest == "" || last.Before(oldest) {
			stalest, oldest = ip, last
		}
	}
	delete(w.hits, stalest)
}
