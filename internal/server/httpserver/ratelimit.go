package httpserver

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/nonceguard-go/pkg/cmap"
)

// limiterIdleTTL is how long a client's limiter survives without requests.
const limiterIdleTTL = 10 * time.Minute

// RateLimiterRegistry manages one token-bucket limiter per client IP.
type RateLimiterRegistry struct {
	limiters *cmap.Map[string, *limiterEntry]
	limit    rate.Limit
	burst    int
	now      func() time.Time

	sweepMu   sync.Mutex
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

// NewRateLimiterRegistry creates a registry handing out limiters that allow
// rps requests per second with the given burst.
func NewRateLimiterRegistry(rps float64, burst int) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters:  cmap.New[string, *limiterEntry](),
		limit:     rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow reports whether the client may make a request now.
func (r *RateLimiterRegistry) Allow(clientIP string) bool {
	now := r.now()
	return r.GetOrCreate(clientIP, now).AllowN(now, 1)
}

// GetOrCreate retrieves an existing rate limiter or creates a new one.
func (r *RateLimiterRegistry) GetOrCreate(clientIP string, now time.Time) *rate.Limiter {
	entry, created := r.limiters.GetOrCreate(clientIP, func() *limiterEntry {
		return &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
	})
	entry.lastSeen.Store(now.UnixNano())

	if created {
		r.maybeSweep(now)
	}
	return entry.limiter
}

// Len returns the number of tracked clients.
func (r *RateLimiterRegistry) Len() int {
	return r.limiters.Len()
}

// maybeSweep drops limiters idle for longer than limiterIdleTTL, at most
// once per limiterIdleTTL.
func (r *RateLimiterRegistry) maybeSweep(now time.Time) {
	r.sweepMu.Lock()
	if now.Sub(r.lastSweep) <= limiterIdleTTL {
		r.sweepMu.Unlock()
		return
	}
	r.lastSweep = now
	r.sweepMu.Unlock()

	cutoff := now.Add(-limiterIdleTTL).UnixNano()
	r.limiters.DeleteFunc(func(_ string, e *limiterEntry) bool {
		return e.lastSeen.Load() < cutoff
	})
}
