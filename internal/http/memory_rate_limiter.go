package httpx

import (
	"sync"
	"time"
)

const rateLimiterSweepInterval = 5 * time.Minute

// fixedWindow is the hit count of one key inside its current window.
type fixedWindow struct {
	hits    int
	resetAt time.Time
}

type memoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]fixedWindow
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

// NewMemoryRateLimiter returns a process-local limiter. Expired windows are
// swept in the background until Close.
func NewMemoryRateLimiter() RateLimiter {
	rl := newMemoryRateLimiter(time.Now)
	go rl.sweep(rateLimiterSweepInterval)
	return rl
}

func newMemoryRateLimiter(now func() time.Time) *memoryRateLimiter {
	return &memoryRateLimiter{
		windows: make(map[string]fixedWindow),
		now:     now,
		stop:    make(chan struct{}),
	}
}

func (rl *memoryRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = fixedWindow{resetAt: now.Add(window)}
	}
	if w.hits >= limit {
		return rateDecision{allowed: false, count: w.hits, resetAt: w.resetAt}
	}
	w.hits++
	rl.windows[key] = w
	return rateDecision{allowed: true, count: w.hits, resetAt: w.resetAt}
}

func (rl *memoryRateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictExpired(rl.now())
		}
	}
}

func (rl *memoryRateLimiter) evictExpired(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.stopped.Do(func() { close(rl.stop) })
}
