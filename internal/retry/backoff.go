// Package retry provides the delay policies used to pace reconnection
// to the console server and to retry binding the web listener.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help.
// Return [Permanent](err) from the operation function to stop retrying
// immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  The backoff loop will return
// the inner error immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff describes how long to wait between attempts.  With
// Multiplier 1 and Jitter off it is a fixed delay.
type Backoff struct {
	// InitialDelay is the delay before the first retry (default 1s).
	InitialDelay time.Duration
	// MaxDelay caps the backoff duration (default 60s).
	MaxDelay time.Duration
	// Multiplier increases the delay each attempt (default 2.0).
	Multiplier float64
	// MaxAttempts is the total number of tries including the first.
	// Set to 0 for unlimited retries (until context cancelled).
	MaxAttempts int
	// Jitter adds ±25% randomisation to prevent thundering herd.
	Jitter bool
}

// DefaultBackoff returns a reasonable default configuration.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
		Jitter:       true,
	}
}

// Fixed returns an unlimited backoff that always waits d.
func Fixed(d time.Duration) *Backoff {
	return &Backoff{
		InitialDelay: d,
		MaxDelay:     d,
		Multiplier:   1,
	}
}

// Delay returns the wait before retry number attempt (1-based: the
// wait after the first failure is Delay(1)).
func (b *Backoff) Delay(attempt int) time.Duration {
	delay, multiplier, maxDelay := b.params()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(delay) * math.Pow(multiplier, float64(attempt-1))
	if d > float64(maxDelay) {
		d = float64(maxDelay)
	}
	wait := time.Duration(d)
	if b.Jitter {
		wait = addJitter(wait)
	}
	return wait
}

// Do executes fn repeatedly until it succeeds, returns a permanent
// error, or the retry budget (attempts / context) is exhausted.
//
// The attempt parameter passed to fn is 1-based.  On success fn should
// return nil.  To abort retrying, wrap the error with [Permanent].
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}

		// Permanent errors are never retried.
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}

		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return fmt.Errorf("max retries (%d) exceeded: %w", b.MaxAttempts, err)
		}

		t := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func (b *Backoff) params() (delay time.Duration, multiplier float64, maxDelay time.Duration) {
	delay = b.InitialDelay
	if delay == 0 {
		delay = time.Second
	}
	multiplier = b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxDelay = b.MaxDelay
	if maxDelay == 0 {
		maxDelay = 60 * time.Second
	}
	if maxDelay < delay {
		maxDelay = delay
	}
	return delay, multiplier, maxDelay
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
