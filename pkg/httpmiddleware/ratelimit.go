package httpmiddleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimit limits each client IP to maxRequests per window using a fixed
// window counter. A zero or negative maxRequests disables the limiter.
func RateLimit(maxRequests int, window time.Duration) Middleware {
	if maxRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	rl := &rateLimiter{
		max:    maxRequests,
		window: window,
		counts: make(map[string]int),
		start:  time.Now(),
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !rl.allow(host) {
				w.Header().Set("Retry-After", rl.window.String())
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type rateLimiter struct {
	max    int
	window time.Duration

	mu     sync.Mutex
	counts map[string]int
	start  time.Time
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.start) >= rl.window {
		rl.counts = make(map[string]int)
		rl.start = now
	}

	if rl.counts[key] >= rl.max {
		return false
	}
	rl.counts[key]++
	return true
}
