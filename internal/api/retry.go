package api

import (
	"context"
	"time"
)

// Cooldown retry defaults.
const (
	DefaultCooldownDelay      = time.Second
	DefaultMaxCooldownRetries = 5
)

// CooldownPolicy configures how rate-limited requests are handled.
type CooldownPolicy struct {
	// AutoRetry re-issues rate-limited requests instead of failing.
	AutoRetry bool
	// MaxRetries caps the number of re-issued requests per call.
	MaxRetries int
	// Delay is the fixed wait before every retry.
	Delay time.Duration
}

// DefaultCooldownPolicy returns the default cooldown configuration with
// auto-retry disabled.
func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{
		AutoRetry:  false,
		MaxRetries: DefaultMaxCooldownRetries,
		Delay:      DefaultCooldownDelay,
	}
}

// ShouldRetry reports whether another request may be issued after attempts
// requests have been rate limited.
func (p CooldownPolicy) ShouldRetry(attempts int) bool {
	if !p.AutoRetry {
		return false
	}
	return attempts <= p.MaxRetries
}

// Wait blocks for the cooldown delay or until ctx is done.
func (p CooldownPolicy) Wait(ctx context.Context) error {
	return Sleep(ctx, p.Delay)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
