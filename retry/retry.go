// Package retry implements the bounded exponential-backoff policy applied to
// every embedding and generation service call. Transient failures (timeouts,
// rate limits) are retried up to the policy's attempt budget; anything else
// fails immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

// Policy configures retry behavior for external service calls.
type Policy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultPolicy returns the default retry policy: up to 3 attempts with
// exponential backoff starting at 100ms.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// TransientError marks an error as retryable. Service boundaries wrap
// timeout and rate-limit failures in a TransientError so the policy can
// distinguish them from fatal errors such as invalid input.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable. Returns nil if err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked retryable anywhere in its chain.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// MarkTransient classifies a service-boundary error: timeouts and rate-limit
// style failures come back wrapped as transient, anything else (invalid
// input, auth) is returned unchanged as fatal.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient(err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "429", "timeout", "temporarily", "unavailable", "connection re"} {
		if strings.Contains(msg, marker) {
			return Transient(err)
		}
	}
	return err
}

// Do runs fn under the policy. Transient errors are retried with exponential
// backoff and jitter until the attempt budget is exhausted; non-transient
// errors and context cancellation stop immediately. The last error is
// returned wrapped with the attempt count once retries exhaust.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := p.InitialDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}

		if attempt < p.MaxAttempts {
			select {
			case <-time.After(jitter(delay)):
				delay = min(time.Duration(float64(delay)*p.BackoffFactor), p.MaxDelay)
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", p.MaxAttempts, lastErr)
}

// jitter applies ±25% jitter to a delay.
func jitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	//nolint:gosec // Using weak RNG for jitter is acceptable, not security-critical
	j := time.Duration(float64(delay) * 0.25 * (2*rand.Float64() - 1))
	return delay + j
}

// Backoff returns the delay before the given zero-based attempt, without
// jitter. Exposed for callers that schedule their own waits.
func (p *Policy) Backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt)))
	return min(d, p.MaxDelay)
}
