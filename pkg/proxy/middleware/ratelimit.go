package middleware

import (
	"math"
	"net/http"
	"strconv"

	"kiro-hq/gateway/pkg/limits/ratelimit"
	"kiro-hq/gateway/pkg/proxy"
	"kiro-hq/gateway/pkg/proxy/types"
)

// RateLimitMiddleware admits a bounded number of requests per caller within
// a sliding window. Callers are identified by API key, or by client IP when
// they sent none. Every response carries X-RateLimit-Limit and
// X-RateLimit-Remaining; a refused request gets 429 with Retry-After.
func RateLimitMiddleware(limiter *ratelimit.Limiter, observer RejectionObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := proxy.ExtractAPIKey(r)
			if key == "" {
				key = "ip:" + proxy.ClientIP(r)
			}

			res := limiter.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Reset.IsZero() {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))
			}

			if !res.Allowed {
				if observer != nil {
					observer.ObserveRejection(ReasonRateLimited)
				}
				retry := strconv.Itoa(max(int(math.Ceil(res.RetryAfter.Seconds())), 1))
				w.Header().Set("Retry-After", retry)
				_ = proxy.WriteError(w, proxy.ProtocolForPath(r.URL.Path), http.StatusTooManyRequests,
					"Rate limit exceeded. Retry after "+retry+" seconds.", types.CodeRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
