package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"refund-automation/pkg/logger"
)

// Config bounds the retry loop.
type Config struct {
	MaxRetries int           // attempts after the first try
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // ceiling for the backoff
}

// permanentError wraps an error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so Do returns it immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, the attempts are exhausted, fn returns a
// permanent error, or ctx is cancelled. Backoff doubles per attempt up to
// MaxDelay, jittered to 50-100% of the computed delay.
func Do(ctx context.Context, cfg Config, name string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.BaseDelay << (attempt - 1)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			delay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))

			logger.Warn().
				Str("operation", name).
				Int("attempt", attempt).
				Dur("delay_ms", delay).
				Err(lastErr).
				Msg("Retrying after failure")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var p *permanentError
		if errors.As(lastErr, &p) {
			return p.err
		}
	}
	return lastErr
}
