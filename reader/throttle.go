package reader

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitExceededError is returned when a source is asked for again
// before its minimum interval has passed.
type RateLimitExceededError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("limit exceeded for %s, try after %.1f sec", e.Key, e.RetryAfter.Seconds())
}

// Throttle enforces a minimum interval between attempts per key. It never
// waits: an early attempt is rejected and the slot stays with the earlier one.
type Throttle struct {
	mu        sync.Mutex
	interval  time.Duration
	overrides map[string]time.Duration
	limiters  map[string]*rate.Limiter
	now       func() time.Time
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval:  interval,
		overrides: make(map[string]time.Duration),
		limiters:  make(map[string]*rate.Limiter),
		now:       time.Now,
	}
}

// SetInterval overrides the interval for one key. It must be called before
// the first Allow for that key.
func (t *Throttle) SetInterval(key string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides[key] = d
	delete(t.limiters, key)
}

func (t *Throttle) intervalFor(key string) time.Duration {
	if d, ok := t.overrides[key]; ok {
		return d
	}
	return t.interval
}

// Allow takes the slot for key or returns *RateLimitExceededError.
func (t *Throttle) Allow(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	interval := t.intervalFor(key)
	if interval <= 0 {
		return nil
	}

	lim, ok := t.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(interval), 1)
		t.limiters[key] = lim
	}

	now := t.now()
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return &RateLimitExceededError{Key: key, RetryAfter: interval}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &RateLimitExceededError{Key: key, RetryAfter: delay}
	}
	return nil
}
