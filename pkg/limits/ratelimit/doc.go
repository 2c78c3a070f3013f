// Package ratelimit limits gateway callers with per-key sliding windows.
//
// Each key (an API key, or the remote IP when keys are not required) owns a
// SlidingWindow that counts requests over the configured window. A request is
// admitted while the count is below the limit:
//
//	limiter := ratelimit.New(60, time.Minute)
//	if res := limiter.Allow(key); !res.Allowed {
//	    w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
//	    // answer 429
//	}
//
// Windows of keys that have been quiet for a whole window hold no counts and
// are dropped by Cleanup, which the scheduler runs periodically.
package ratelimit
