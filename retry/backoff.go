// Package retry implements the retry/backoff controller applied to
// retryable routing and delivery failures.
package retry

import (
	"context"
	"time"

	"github.com/BaSui01/agentroute/types"
	"go.uber.org/zap"
)

// BackoffStrategy selects how the delay grows between attempts.
type BackoffStrategy string

const (
	// BackoffLinear waits baseDelay*(k-1) before attempt k.
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential waits min(maxDelay, baseDelay*2^(k-2)) before attempt k.
	BackoffExponential BackoffStrategy = "exponential"
	// BackoffFixed waits baseDelay before every retry attempt.
	BackoffFixed BackoffStrategy = "fixed"
)

// Policy configures the retry controller. Only errors the taxonomy marks
// retryable are ever re-attempted; MaxAttempts counts the first try.
type Policy struct {
	MaxAttempts int             `json:"max_attempts" yaml:"max_attempts"`
	Strategy    BackoffStrategy `json:"strategy" yaml:"strategy"`
	BaseDelay   time.Duration   `json:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration   `json:"max_delay" yaml:"max_delay"`

	// OnRetry, when set, is called before each backoff wait.
	OnRetry func(attempt int, err error, delay time.Duration) `json:"-" yaml:"-"`
}

// DefaultPolicy returns the policy applied when a coordination spec does not
// carry its own.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		Strategy:    BackoffExponential,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// normalized returns a copy with out-of-range fields clamped to sane values.
func (p *Policy) normalized() Policy {
	out := *p
	if out.MaxAttempts < 1 {
		out.MaxAttempts = 1
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = 100 * time.Millisecond
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 5 * time.Second
	}
	switch out.Strategy {
	case BackoffLinear, BackoffExponential, BackoffFixed:
	default:
		out.Strategy = BackoffExponential
	}
	return out
}

// Delay returns the backoff wait before attempt k (k >= 2). Attempt 1 never
// waits.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	n := p.normalized()
	switch n.Strategy {
	case BackoffLinear:
		d := n.BaseDelay * time.Duration(attempt-1)
		if d > n.MaxDelay {
			return n.MaxDelay
		}
		return d
	case BackoffFixed:
		return n.BaseDelay
	default: // exponential
		d := n.BaseDelay << (attempt - 2)
		if d > n.MaxDelay || d <= 0 {
			return n.MaxDelay
		}
		return d
	}
}

// Retryer re-runs an operation under a Policy, stopping on success, on a
// non-retryable error, or when attempts are exhausted.
type Retryer interface {
	// Do runs fn, retrying retryable failures per the policy.
	Do(ctx context.Context, fn func() error) error

	// DoWithResult runs fn and returns its result, retrying retryable
	// failures per the policy.
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

type backoffRetryer struct {
	policy Policy
	logger *zap.Logger
}

// NewRetryer creates a Retryer for the given policy. A nil policy uses
// DefaultPolicy; a nil logger is replaced with a nop logger.
func NewRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{
		policy: policy.normalized(),
		logger: logger.With(zap.String("component", "retryer")),
	}
}

// Do implements Retryer.Do.
func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// DoWithResult implements Retryer.DoWithResult. Backoff waits never hold
// caller locks: the wait is a plain select on the context and a timer.
func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.policy.Delay(attempt)

			r.logger.Debug("retrying after backoff",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, types.New(types.KindTimeout, "retry cancelled").
					WithCode(types.CodeDeliveryTimeout).
					WithCause(ctx.Err())
			case <-timer.C:
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !types.IsRetryable(err) {
			r.logger.Debug("error not retryable", zap.Error(err))
			return nil, err
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return nil, types.Newf(types.GetKind(lastErr), "%d attempts failed", r.policy.MaxAttempts).
		WithCode(types.CodeRetriesExhausted).
		WithCause(lastErr)
}
