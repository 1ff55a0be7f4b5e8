package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(maxAttempts int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     maxAttempts,
		WindowDuration:  10 * time.Minute,
		LockoutDuration: 30 * time.Minute,
	})
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter_LocksAfterMaxFailures(t *testing.T) {
	rl, clock := newTestLimiter(3)
	defer rl.Stop()

	for i := 0; i < 2; i++ {
		locked, _ := rl.RecordFailure("10.0.0.7", "amina")
		require.False(t, locked)
		allowed, _ := rl.Allow("10.0.0.7", "amina")
		require.True(t, allowed, "attempt %d", i+2)
	}

	locked, retry := rl.RecordFailure("10.0.0.7", "amina")
	assert.True(t, locked)
	assert.Equal(t, 30*time.Minute, retry)

	clock.Advance(5 * time.Minute)
	allowed, retry := rl.Allow("10.0.0.7", "amina")
	assert.False(t, allowed)
	assert.Equal(t, 25*time.Minute, retry)

	clock.Advance(26 * time.Minute)
	allowed, _ = rl.Allow("10.0.0.7", "amina")
	assert.True(t, allowed, "lockout should have passed")
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl, clock := newTestLimiter(3)

	rl.RecordFailure("10.0.0.7", "amina")
	rl.RecordFailure("10.0.0.7", "amina")
	clock.Advance(11 * time.Minute)

	locked, _ := rl.RecordFailure("10.0.0.7", "amina")
	assert.False(t, locked, "failures from an expired window do not count")
}

func TestRateLimiter_SuccessClearsFailures(t *testing.T) {
	rl, _ := newTestLimiter(2)

	rl.RecordFailure("10.0.0.7", "amina")
	rl.RecordSuccess("10.0.0.7", "amina")
	locked, _ := rl.RecordFailure("10.0.0.7", "amina")
	assert.False(t, locked)
}

func TestRateLimiter_Keys(t *testing.T) {
	rl, _ := newTestLimiter(2)

	rl.RecordFailure("10.0.0.7", "Amina@Library.org")
	rl.RecordFailure("10.0.0.7", " amina@library.org")

	allowed, _ := rl.Allow("10.0.0.7", "AMINA@LIBRARY.ORG")
	assert.False(t, allowed, "login case should not matter")

	allowed, _ = rl.Allow("10.0.0.7", "kofi")
	assert.True(t, allowed, "other logins are independent")
	allowed, _ = rl.Allow("10.0.0.8", "amina@library.org")
	assert.True(t, allowed, "other addresses are independent")

	rl.Stop()
	allowed, _ = rl.Allow("10.0.0.7", "amina@library.org")
	assert.True(t, allowed)
}

func TestRateLimiter_Defaults(t *testing.T) {
	cfg := RateLimitConfig{}.withDefaults()
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.WindowDuration)
	assert.Equal(t, 30*time.Minute, cfg.LockoutDuration)
}
