package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"clinicbook/internal/domain/audit"
	"clinicbook/internal/transport/http/api"
)

// RateLimit applies a per-client token bucket to sensitive endpoints. Limit
// hits are security events and land in the audit ledger.
func RateLimit(perMinute int, ledger *audit.Ledger) func(http.Handler) http.Handler {
	limiter := &clientLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		clients: map[string]*rate.Limiter{},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !limiter.allow(key) {
				if ledger != nil {
					ledger.LogRateLimited(key, r.RemoteAddr, r.URL.Path)
				}
				w.Header().Set("Retry-After", "60")
				api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

func (c *clientLimiter) allow(key string) bool {
	c.mu.Lock()
	limiter, ok := c.clients[key]
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.clients[key] = limiter
	}
	c.mu.Unlock()
	return limiter.Allow()
}

func clientKey(r *http.Request) string {
	if actor, ok := GetActor(r.Context()); ok {
		return actor.ActorID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
