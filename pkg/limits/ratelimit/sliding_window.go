package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow counts events over a rolling time period.
//
// Counts are kept in fixed-granularity buckets, so a 1-minute window with
// 1-second buckets holds at most 60 of them. Buckets older than the window
// are pruned on every access.
type SlidingWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []bucket
	head       int
	mu         sync.Mutex
}

type bucket struct {
	timestamp time.Time
	value     int64
}

// NewSlidingWindow creates a sliding window counter with window/bucketSize
// buckets.
func NewSlidingWindow(window time.Duration, bucketSize time.Duration) *SlidingWindow {
	numBuckets := int(window / bucketSize)
	if numBuckets == 0 {
		numBuckets = 1
	}
	return &SlidingWindow{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]bucket, numBuckets),
	}
}

// Add increments the counter at now by value.
func (sw *SlidingWindow) Add(now time.Time, value int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(now)
	sw.findOrCreateBucketLocked(now).value += value
}

// TryAdd adds one event at now unless the window already holds limit
// events. It returns the count after the attempt and whether it was added.
func (sw *SlidingWindow) TryAdd(now time.Time, limit int64) (int64, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(now)
	sum := sw.sumLocked()
	if sum >= limit {
		return sum, false
	}
	sw.findOrCreateBucketLocked(now).value++
	return sum + 1, true
}

// Sum returns the count within the window ending at now.
func (sw *SlidingWindow) Sum(now time.Time) int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(now)
	return sw.sumLocked()
}

// Oldest returns the start of the oldest bucket still in the window, or the
// zero time when the window is empty.
func (sw *SlidingWindow) Oldest(now time.Time) time.Time {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(now)
	var oldest time.Time
	for _, b := range sw.buckets {
		if !b.timestamp.IsZero() && (oldest.IsZero() || b.timestamp.Before(oldest)) {
			oldest = b.timestamp
		}
	}
	return oldest
}

// Reset clears all buckets.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	for i := range sw.buckets {
		sw.buckets[i] = bucket{}
	}
	sw.head = 0
}

func (sw *SlidingWindow) sumLocked() int64 {
	var sum int64
	for _, b := range sw.buckets {
		if !b.timestamp.IsZero() {
			sum += b.value
		}
	}
	return sum
}

// pruneLocked removes buckets older than the window.
func (sw *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-sw.window)
	for i := range sw.buckets {
		if !sw.buckets[i].timestamp.IsZero() && !sw.buckets[i].timestamp.After(cutoff) {
			sw.buckets[i] = bucket{}
		}
	}
}

// findOrCreateBucketLocked returns the bucket for now, reusing an empty slot
// or the oldest one.
func (sw *SlidingWindow) findOrCreateBucketLocked(now time.Time) *bucket {
	bucketTime := now.Truncate(sw.bucketSize)

	if sw.buckets[sw.head].timestamp.Equal(bucketTime) {
		return &sw.buckets[sw.head]
	}
	for i := range sw.buckets {
		if sw.buckets[i].timestamp.Equal(bucketTime) {
			return &sw.buckets[i]
		}
	}

	target := -1
	for i := range sw.buckets {
		if sw.buckets[i].timestamp.IsZero() {
			target = i
			break
		}
	}
	if target == -1 {
		target = 0
		for i := 1; i < len(sw.buckets); i++ {
			if sw.buckets[i].timestamp.Before(sw.buckets[target].timestamp) {
				target = i
			}
		}
	}

	sw.buckets[target] = bucket{timestamp: bucketTime}
	sw.head = target
	return &sw.buckets[target]
}
