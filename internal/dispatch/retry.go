package dispatch

import (
	"context"
	"time"

	"github.com/joseph-ayodele/homework-solver/internal/common"
)

// RetryPolicy defines how often and how patiently one major question is retried.
type RetryPolicy struct {
	// MaxAttempts counts the first call too (default: 3)
	MaxAttempts int

	// InitialBackoff is the wait before the first retry (default: 2s)
	InitialBackoff time.Duration

	// MaxBackoff caps every wait (default: 30s)
	MaxBackoff time.Duration

	// Multiplier is applied to the backoff on each retry (default: 2)
	Multiplier float64

	// Retryable decides whether an error is worth another attempt (default: common.IsTransient)
	Retryable func(error) bool

	// Sleep waits between attempts; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default retry constants.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultMultiplier     = 2.0
)

// DefaultRetryPolicy retries transient errors three times in total, 2s then 4s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Multiplier:     DefaultMultiplier,
		Retryable:      common.IsTransient,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.InitialBackoff < 0 {
		p.InitialBackoff = 0
	}
	if p.Retryable == nil {
		p.Retryable = common.IsTransient
	}
	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}
	return p
}

// CalculateBackoff returns the wait after the given failed attempt (1-based), capped at MaxBackoff.
func (p RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	p = p.withDefaults()
	backoff := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= p.Multiplier
		if backoff >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	if d := time.Duration(backoff); d < p.MaxBackoff {
		return d
	}
	return p.MaxBackoff
}

// Do calls fn until it succeeds, returns a non-retryable error, or attempts run out.
// It returns the number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	p = p.withDefaults()
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err == nil {
				err = common.TransientDispatchError("cancelled before call", cerr)
			}
			return attempt - 1, err
		}
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if !p.Retryable(err) || attempt == p.MaxAttempts {
			return attempt, err
		}
		if serr := p.Sleep(ctx, p.CalculateBackoff(attempt)); serr != nil {
			return attempt, err
		}
	}
	return p.MaxAttempts, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
