package http

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkrupp/jobhunter/internal/infra/logging"
)

const rateLimiterIdleTTL = 5 * time.Minute

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	// Rate is the sustained number of requests per second allowed per client IP
	Rate float64 `env:"RATE" default:"1"`
	// Burst is the number of requests a client may make at once
	Burst int `env:"BURST" default:"5"`
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	now      func() time.Time
}

// NewRateLimiter creates a RateLimiter. Idle entries are pruned lazily on access.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:      cfg,
		limiters: make(map[string]*clientLimiter),
		now:      time.Now,
	}
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	for key, l := range rl.limiters {
		if now.Sub(l.lastSeen) > rateLimiterIdleTTL {
			delete(rl.limiters, key)
		}
	}

	l, ok := rl.limiters[ip]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.cfg.Rate), rl.cfg.Burst)}
		rl.limiters[ip] = l
	}

	l.lastSeen = now

	return l.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
// onReject, if not nil, is called for every rejected request.
func (rl *RateLimiter) Middleware(next http.Handler, log logging.Logger, onReject func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if !rl.Allow(ip) {
			log.WarnContext(r.Context(), "rate limit exceeded", "ip", ip)

			if onReject != nil {
				onReject()
			}

			retryAfter := 1
			if rl.cfg.Rate > 0 {
				retryAfter = max(int(1/rl.cfg.Rate), 1)
			}

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			WriteError(w, http.StatusTooManyRequests, "Too many login attempts, try again later")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
