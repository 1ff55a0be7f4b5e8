package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxTrackedLogins bounds memory when many distinct ip/login pairs fail.
const maxTrackedLogins = 10000

// RateLimiter throttles login attempts per client IP and login name using a
// fixed window. It complements the per-account lockout kept in the database,
// which cannot see attempts against unknown accounts.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	windows *expirable.LRU[string, *loginWindow]
}

type loginWindow struct {
	started     time.Time
	failures    int
	lockedUntil time.Time
}

// RateLimitConfig contains configuration for the rate limiter.
type RateLimitConfig struct {
	MaxAttempts     int           // failures allowed inside one window (default 5)
	WindowDuration  time.Duration // default 15m
	LockoutDuration time.Duration // default 30m
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = 15 * time.Minute
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = 30 * time.Minute
	}
	return c
}

// NewRateLimiter creates a limiter. Records expire once both the window and
// any lockout have passed.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		windows: expirable.NewLRU[string, *loginWindow](maxTrackedLogins, nil, cfg.WindowDuration+cfg.LockoutDuration),
	}
}

// Stop forgets every tracked attempt.
func (rl *RateLimiter) Stop() {
	rl.windows.Purge()
}

func limiterKey(ip, login string) string {
	return ip + "|" + strings.ToLower(strings.TrimSpace(login))
}

// Allow reports whether another attempt may be made and, if not, how long
// the caller must wait.
func (rl *RateLimiter) Allow(ip, login string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows.Get(limiterKey(ip, login))
	if !ok {
		return true, 0
	}
	now := rl.now()
	switch {
	case now.Before(w.lockedUntil):
		return false, w.lockedUntil.Sub(now)
	case now.Sub(w.started) > rl.cfg.WindowDuration:
		return true, 0
	case w.failures >= rl.cfg.MaxAttempts:
		return false, rl.cfg.LockoutDuration
	}
	return true, 0
}

// RecordFailure counts a failed attempt and reports whether it triggered a
// lockout.
func (rl *RateLimiter) RecordFailure(ip, login string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := limiterKey(ip, login)
	now := rl.now()
	w, ok := rl.windows.Get(key)
	if !ok || now.Sub(w.started) > rl.cfg.WindowDuration {
		w = &loginWindow{started: now}
		rl.windows.Add(key, w)
	}

	w.failures++
	if w.failures < rl.cfg.MaxAttempts {
		return false, 0
	}
	w.lockedUntil = now.Add(rl.cfg.LockoutDuration)
	return true, rl.cfg.LockoutDuration
}

// RecordSuccess clears the failures for a successful login.
func (rl *RateLimiter) RecordSuccess(ip, login string) {
	rl.mu.Lock()
	rl.windows.Remove(limiterKey(ip, login))
	rl.mu.Unlock()
}
