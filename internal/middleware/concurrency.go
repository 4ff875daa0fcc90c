package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/harliandi/heicconv/pkg/metrics"
)

// ConcurrencyLimiter caps the number of requests in flight.
type ConcurrencyLimiter struct {
	semaphore chan struct{}
	active    atomic.Int64
	max       int
}

// NewConcurrencyLimiter creates a new concurrency limiter
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	if max < 1 {
		max = 1
	}
	return &ConcurrencyLimiter{
		semaphore: make(chan struct{}, max),
		max:       max,
	}
}

// Acquire tries to take a slot without blocking.
func (cl *ConcurrencyLimiter) Acquire() bool {
	select {
	case cl.semaphore <- struct{}{}:
		metrics.UpdateConcurrency(int(cl.active.Add(1)))
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire.
func (cl *ConcurrencyLimiter) Release() {
	<-cl.semaphore
	metrics.UpdateConcurrency(int(cl.active.Add(-1)))
}

// Active returns the number of slots in use.
func (cl *ConcurrencyLimiter) Active() int {
	return int(cl.active.Load())
}

// ConcurrencyLimit returns middleware that answers 503 once max requests are
// already being served.
func ConcurrencyLimit(max int, logger zerolog.Logger) func(http.Handler) http.Handler {
	cl := NewConcurrencyLimiter(max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cl.Acquire() {
				logger.Warn().Int("max", cl.max).Str("path", r.URL.Path).Msg("concurrency limit reached")
				metrics.RecordConcurrencyLimitExceeded()
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "service busy, please try again")
				return
			}

			defer cl.Release()
			next.ServeHTTP(w, r)
		})
	}
}
