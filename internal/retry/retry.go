// Package retry implements bounded exponential backoff for transient provider
// failures. One retried unit is a single provider operation, never a whole
// declaration.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/convergekit/converge/internal/errors"
)

const (
	DefaultMaxRetries  = 3
	DefaultCallTimeout = 30 * time.Second
)

type Policy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  DefaultMaxRetries,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    15 * time.Second,
		CallTimeout: DefaultCallTimeout,
	}
}

// Do runs op under the per-call timeout, retrying transient failures up to
// MaxRetries with exponential backoff and jitter. A call that exceeds its
// timeout counts as transient. Non-transient errors return immediately.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy().BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultPolicy().MaxDelay
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		lastErr = runOnce(ctx, policy.CallTimeout, op)
		if lastErr == nil {
			return nil
		}
		if !Transient(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.CodeTimeout, "retry cancelled")
		case <-time.After(backoff(attempt, policy.BaseDelay, policy.MaxDelay)):
		}
	}
	return lastErr
}

func runOnce(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := op(callCtx)
	if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return errors.Wrap(err, errors.CodeProviderTransient, "provider call exceeded per-call timeout")
	}
	return err
}

// Transient reports whether err is classified retryable by its adapter.
func Transient(err error) bool {
	return errors.Is(err, errors.CodeProviderTransient)
}

func backoff(attempt int, base, max time.Duration) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt))
	if d > float64(max) {
		d = float64(max)
	}
	// Half fixed, half jitter, so delays grow but never synchronize.
	return time.Duration(d/2 + rand.Float64()*d/2)
}
