package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowkit/types"
)

// Classifier decides whether a failure should trigger another attempt.
type Classifier func(err error) bool

// RetryAll retries on any failure. It is the default classifier.
func RetryAll(err error) bool { return err != nil }

// RetryTransient retries only failures the types taxonomy marks retryable.
func RetryTransient(err error) bool { return types.IsRetryable(err) }

// Retryer executes a function with backoff until it succeeds, the policy is
// exhausted, or the context is cancelled.
type Retryer interface {
	// Do executes fn, retrying per policy.
	Do(ctx context.Context, fn func() error) error

	// DoWithResult executes fn and returns its result, retrying per policy.
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

type backoffRetryer struct {
	policy     Policy
	classifier Classifier
	onRetry    func(attempt int, err error, delay time.Duration)
	logger     *zap.Logger
}

// Option configures a Retryer.
type Option func(*backoffRetryer)

// WithClassifier sets the retryable-failure predicate.
func WithClassifier(c Classifier) Option {
	return func(r *backoffRetryer) {
		if c != nil {
			r.classifier = c
		}
	}
}

// WithOnRetry registers a callback invoked before each backoff wait.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *backoffRetryer) { r.onRetry = fn }
}

// NewBackoffRetryer creates an exponential-backoff Retryer.
func NewBackoffRetryer(policy Policy, logger *zap.Logger, opts ...Option) Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &backoffRetryer{
		policy:     policy.normalized(),
		classifier: RetryAll,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.policy.Delay(attempt - 1)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.onRetry != nil {
				r.onRetry(attempt, lastErr, delay)
			}

			if err := Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !r.classifier(err) {
			r.logger.Debug("failure not retryable", zap.Error(err))
			return nil, err
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("failed after %d attempts: %w", r.policy.MaxRetries+1, lastErr)
}

// Sleep waits for d or until ctx is cancelled, whichever comes first. The
// wait is a timer suspension, never a busy loop.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// DoWithResultTyped is a type-safe wrapper around Retryer.DoWithResult.
func DoWithResultTyped[T any](r Retryer, ctx context.Context, fn func() (T, error)) (T, error) {
	result, err := r.DoWithResult(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
