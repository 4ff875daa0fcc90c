package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/harliandi/heicconv/pkg/metrics"
)

// RateLimiter keeps one token bucket per client. Idle clients are pruned
// lazily from Allow, so no background goroutine is needed.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rps requests per second per client with bursts of
// up to burst requests.
func NewRateLimiter(rps, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     5 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether a request from key may proceed, consuming a token
// if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > time.Minute {
		rl.sweep(now)
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) sweep(now time.Time) {
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.ttl {
			delete(rl.clients, key)
		}
	}
	rl.lastSweep = now
}

// clientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ipPrefix keeps only the first group of an address for metric labels.
func ipPrefix(ip string) string {
	parsed := net.ParseIP(ip)
	switch {
	case parsed == nil:
		return "unknown"
	case parsed.To4() != nil:
		first, _, _ := strings.Cut(parsed.To4().String(), ".")
		return first + ".0.0.0"
	default:
		first, _, _ := strings.Cut(parsed.String(), ":")
		return first + "::"
	}
}

// RateLimit returns middleware that answers 429 when a client exceeds its
// budget.
func RateLimit(rps, burst int, logger zerolog.Logger) func(http.Handler) http.Handler {
	rl := NewRateLimiter(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if !rl.Allow(ip) {
				logger.Warn().Str("client", ip).Msg("rate limit exceeded")
				metrics.RecordRateLimitExceeded(ipPrefix(ip))
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
