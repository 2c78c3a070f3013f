package ratelimit

import (
	"sync"
	"time"
)

// bucketsPerWindow is the granularity of each key's window.
const bucketsPerWindow = 60

// CheckResult is the outcome of one Allow call, shaped for the
// X-RateLimit-* and Retry-After response headers.
type CheckResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64

	// Reset is when the oldest counted request leaves the window. Zero when
	// nothing is counted.
	Reset      time.Time
	RetryAfter time.Duration
}

// Limiter admits at most Limit requests per key within a rolling window.
type Limiter struct {
	mu      sync.Mutex
	limit   int64
	window  time.Duration
	windows map[string]*SlidingWindow
	now     func() time.Time
}

// New creates a Limiter allowing requests per window for every key.
func New(requests int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   int64(requests),
		window:  window,
		windows: make(map[string]*SlidingWindow),
		now:     time.Now,
	}
}

// Allow counts a request for key and reports whether it is admitted.
// Rejected requests are not counted.
func (l *Limiter) Allow(key string) CheckResult {
	now := l.now()

	l.mu.Lock()
	limit, window := l.limit, l.window
	sw, ok := l.windows[key]
	if !ok {
		sw = NewSlidingWindow(window, bucketSize(window))
		l.windows[key] = sw
	}
	l.mu.Unlock()

	count, added := sw.TryAdd(now, limit)
	res := CheckResult{
		Allowed:   added,
		Limit:     limit,
		Remaining: max(limit-count, 0),
	}
	if oldest := sw.Oldest(now); !oldest.IsZero() {
		res.Reset = oldest.Add(window)
	}
	if !added && !res.Reset.IsZero() {
		res.RetryAfter = res.Reset.Sub(now)
	}
	return res
}

// Update changes the limit and window. Existing counts are discarded when
// the window changes.
func (l *Limiter) Update(requests int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.limit = int64(requests)
	if window != l.window {
		l.window = window
		l.windows = make(map[string]*SlidingWindow)
	}
}

// Cleanup drops the windows of keys with no request inside the window and
// returns how many were dropped.
func (l *Limiter) Cleanup() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, sw := range l.windows {
		if sw.Sum(now) == 0 {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func bucketSize(window time.Duration) time.Duration {
	size := window / bucketsPerWindow
	if size < time.Millisecond {
		size = time.Millisecond
	}
	return size
}
