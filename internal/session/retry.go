package session

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/stemsi/exstem-proctor/internal/store"
)

// RetryPolicy bounds the retries of a terminal write.
type RetryPolicy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy is used when Options.Retry is zero.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	InitialWait: 200 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Multiplier:  2,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.InitialWait < 0 {
		p.InitialWait = 0
	}
	if p.MaxWait < p.InitialWait {
		p.MaxWait = p.InitialWait
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultRetryPolicy.Multiplier
	}
	return p
}

// do runs fn until it succeeds, the error is permanent, or attempts run out.
// onRetry is called before each wait.
func (p RetryPolicy) do(ctx context.Context, fn func(context.Context) error, onRetry func(attempt int, err error)) error {
	var lastErr error
	for attempt := range p.MaxAttempts {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		// Last attempt, don't sleep.
		if attempt == p.MaxAttempts-1 {
			break
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
	return lastErr
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Missing rows and terminal rows will not change on retry.
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrTerminal) {
		return false
	}
	return true
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	wait := float64(p.InitialWait) * math.Pow(p.Multiplier, float64(attempt))
	if wait > float64(p.MaxWait) {
		wait = float64(p.MaxWait)
	}

	// ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
