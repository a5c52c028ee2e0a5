package webhook

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRateLimit is the fallback number of deliveries per hook per window.
	DefaultRateLimit = 60

	defaultRateWindow = time.Minute
	defaultRateTTL    = 5 * time.Minute
	defaultRateCap    = 4096
)

// RateLimiter paces deliveries per hook address with a token bucket that
// refills limit tokens per window. Idle hooks expire after the TTL and the
// number of tracked hooks is capped.
type RateLimiter struct {
	mu     sync.Mutex
	hooks  map[string]*hookLimiter
	window time.Duration
	ttl    time.Duration
	cap    int
}

type hookLimiter struct {
	limiter  *rate.Limiter
	limit    int
	lastSeen time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateWindow sets the period over which limit deliveries are allowed.
func WithRateWindow(d time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		if d > 0 {
			rl.window = d
		}
	}
}

// WithRateTTL evicts hooks untouched for longer than d. Zero disables eviction.
func WithRateTTL(d time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		if d >= 0 {
			rl.ttl = d
		}
	}
}

// WithRateCap bounds the number of tracked hooks. Zero disables the cap.
func WithRateCap(n int) RateLimiterOption {
	return func(rl *RateLimiter) {
		if n >= 0 {
			rl.cap = n
		}
	}
}

// NewRateLimiter constructs a limiter with one minute windows.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		hooks:  make(map[string]*hookLimiter),
		window: defaultRateWindow,
		ttl:    defaultRateTTL,
		cap:    defaultRateCap,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Delay consumes a token for hook when one is available at now and returns
// zero. Otherwise nothing is consumed and the wait until a token frees up is
// returned. Limits <= 0 use DefaultRateLimit.
func (rl *RateLimiter) Delay(hook string, limit int, now time.Time) time.Duration {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.pruneLocked(now)

	h := rl.hooks[hook]
	if h == nil || h.limit != limit {
		every := rl.window / time.Duration(limit)
		h = &hookLimiter{limiter: rate.NewLimiter(rate.Every(every), limit), limit: limit}
		rl.hooks[hook] = h
	}
	h.lastSeen = now
	rl.enforceCapLocked()

	reservation := h.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
	}
	return delay
}

// Len returns the number of tracked hooks.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.hooks)
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	if rl.ttl <= 0 {
		return
	}
	for hook, h := range rl.hooks {
		if now.Sub(h.lastSeen) > rl.ttl {
			delete(rl.hooks, hook)
		}
	}
}

func (rl *RateLimiter) enforceCapLocked() {
	if rl.cap <= 0 || len(rl.hooks) <= rl.cap {
		return
	}
	hooks := make([]string, 0, len(rl.hooks))
	for hook := range rl.hooks {
		hooks = append(hooks, hook)
	}
	sort.Slice(hooks, func(i, j int) bool {
		return rl.hooks[hooks[i]].lastSeen.Before(rl.hooks[hooks[j]].lastSeen)
	})
	for _, hook := range hooks[:len(hooks)-rl.cap] {
		delete(rl.hooks, hook)
	}
}
