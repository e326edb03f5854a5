package command

import (
	"sync"
	"time"
)

// RateLimiter limits chat messages and commands per player.
type RateLimiter struct {
	mu       sync.Mutex
	counts   map[string]*userLimit
	config   RateLimitConfig
	now      func() time.Time
	stopOnce sync.Once
	stop     chan struct{}
}

type userLimit struct {
	count     int
	windowEnd time.Time
	last      time.Time
}

// RateLimitConfig configures rate limiting behavior.
type RateLimitConfig struct {
	MaxPerWindow     int
	WindowDuration   time.Duration
	CooldownDuration time.Duration
}

// DefaultRateLimitConfig allows bursts of chat while stopping spam.
var DefaultRateLimitConfig = RateLimitConfig{
	MaxPerWindow:     10,
	WindowDuration:   5 * time.Second,
	CooldownDuration: 100 * time.Millisecond,
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		counts: make(map[string]*userLimit),
		config: cfg,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow reports whether name may send another message now.
func (rl *RateLimiter) Allow(name string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit, ok := rl.counts[name]
	if !ok {
		rl.counts[name] = &userLimit{count: 1, windowEnd: now.Add(rl.config.WindowDuration), last: now}
		return true
	}

	if now.Sub(limit.last) < rl.config.CooldownDuration {
		return false
	}
	if now.After(limit.windowEnd) {
		limit.count = 1
		limit.windowEnd = now.Add(rl.config.WindowDuration)
		limit.last = now
		return true
	}
	if limit.count >= rl.config.MaxPerWindow {
		return false
	}
	limit.count++
	limit.last = now
	return true
}

// Forget drops a player's state, e.g. when they leave.
func (rl *RateLimiter) Forget(name string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.counts, name)
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-5 * time.Minute)
			for name, limit := range rl.counts {
				if limit.last.Before(cutoff) {
					delete(rl.counts, name)
				}
			}
			rl.mu.Unlock()
		}
	}
}
