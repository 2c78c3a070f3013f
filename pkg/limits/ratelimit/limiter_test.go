package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestSlidingWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	sw := NewSlidingWindow(time.Minute, time.Second)

	sw.Add(start, 3)
	sw.Add(start.Add(30*time.Second), 2)

	tests := []struct {
		name string
		at   time.Time
		want int64
	}{
		{"both buckets", start.Add(45 * time.Second), 5},
		{"first expired", start.Add(61 * time.Second), 2},
		{"all expired", start.Add(2 * time.Minute), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sw.Sum(tt.at); got != tt.want {
				t.Errorf("Sum() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSlidingWindowTryAdd(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	sw := NewSlidingWindow(time.Minute, time.Second)

	for i := 1; i <= 3; i++ {
		count, ok := sw.TryAdd(now, 3)
		if !ok || count != int64(i) {
			t.Fatalf("TryAdd #%d = (%d, %v)", i, count, ok)
		}
	}
	if count, ok := sw.TryAdd(now, 3); ok || count != 3 {
		t.Errorf("TryAdd over limit = (%d, %v), want (3, false)", count, ok)
	}
	if got := sw.Oldest(now); !got.Equal(now) {
		t.Errorf("Oldest() = %v", got)
	}

	sw.Reset()
	if sw.Sum(now) != 0 {
		t.Error("Sum after Reset != 0")
	}
}

func TestLimiterAllow(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := New(2, time.Minute)
	l.now = func() time.Time { return now }

	if res := l.Allow("sk-a"); !res.Allowed || res.Remaining != 1 || res.Limit != 2 {
		t.Errorf("first = %+v", res)
	}
	if res := l.Allow("sk-a"); !res.Allowed || res.Remaining != 0 {
		t.Errorf("second = %+v", res)
	}

	res := l.Allow("sk-a")
	if res.Allowed {
		t.Fatal("third request allowed")
	}
	if res.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", res.RetryAfter)
	}

	if !l.Allow("sk-b").Allowed {
		t.Error("other key limited")
	}

	now = now.Add(time.Minute + time.Second)
	if !l.Allow("sk-a").Allowed {
		t.Error("request after window not allowed")
	}
}

func TestLimiterCleanup(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := New(10, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(30 * time.Second)
	l.Allow("b")

	now = now.Add(40 * time.Second)
	if removed := l.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestLimiterUpdate(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := New(1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Update(5, time.Minute)
	if !l.Allow("a").Allowed {
		t.Error("raised limit not applied")
	}

	l.Update(5, time.Hour)
	if l.Len() != 0 {
		t.Errorf("window change kept %d keys", l.Len())
	}
}

func TestLimiterConcurrent(t *testing.T) {
	l := New(100, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed = %d, want 100", allowed)
	}
}
