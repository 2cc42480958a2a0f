// Package retry runs an operation until it succeeds, the attempt budget is
// spent or the context is cancelled.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy is a fixed-delay retry budget.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// OnRetry is called before each wait with the failed attempt (1-based),
	// its error and the upcoming delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Fixed returns a policy with retries extra attempts separated by delay,
// matching a scheduler's per-task retry budget.
func Fixed(retries int, delay time.Duration) *Policy {
	return &Policy{
		MaxAttempts: retries + 1,
		Delay:       delay,
	}
}

// ExecuteWithCondition runs fn with the policy. An error for which shouldRetry
// returns false is returned immediately and unwrapped.
func (p *Policy) ExecuteWithCondition(ctx context.Context, fn func(ctx context.Context) error, shouldRetry func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, p.Delay)
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}
