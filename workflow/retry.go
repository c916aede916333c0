package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowkit/retry"
	"github.com/BaSui01/flowkit/types"
)

// RetryPrimitive re-invokes the wrapped primitive on failure using an
// exponential-backoff schedule. MaxRetries=3 allows at most 4 total
// invocations. Only failures the classifier marks retryable trigger another
// attempt; others propagate on first occurrence. The default classifier
// retries on any failure.
//
// When all attempts are exhausted the returned failure is a
// *types.Composite carrying the full attempt history.
type RetryPrimitive struct {
	name       string
	inner      Primitive
	policy     retry.Policy
	classifier retry.Classifier
	observer   *Observer
	logger     *zap.Logger
}

// RetryOption configures a RetryPrimitive.
type RetryOption func(*RetryPrimitive)

// WithRetryClassifier sets the retryable-failure predicate.
func WithRetryClassifier(c retry.Classifier) RetryOption {
	return func(p *RetryPrimitive) {
		if c != nil {
			p.classifier = c
		}
	}
}

// WithRetryObserver attaches an event observer.
func WithRetryObserver(obs *Observer) RetryOption {
	return func(p *RetryPrimitive) { p.observer = obs }
}

// WithRetryLogger attaches a logger.
func WithRetryLogger(logger *zap.Logger) RetryOption {
	return func(p *RetryPrimitive) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewRetry wraps inner with backoff retries.
func NewRetry(name string, inner Primitive, policy retry.Policy, opts ...RetryOption) *RetryPrimitive {
	p := &RetryPrimitive{
		name:       name,
		inner:      inner,
		policy:     policy,
		classifier: retry.RetryAll,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RetryPrimitive) Name() string { return p.name }

func (p *RetryPrimitive) Execute(ctx context.Context, input any) (any, error) {
	ctx, wc := EnsureContext(ctx)

	var attempts []types.Attempt

	for attempt := 0; attempt <= p.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.policy.Delay(attempt - 1)
			lastErr := attempts[len(attempts)-1].Err

			p.logger.Debug("retrying primitive",
				zap.String("primitive", p.name),
				zap.String("correlation_id", wc.CorrelationID()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			p.observer.retry(p.name, attempt, lastErr, delay)

			if err := retry.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		out, err := safeExecute(ctx, p.inner, input)
		if err == nil {
			if attempt > 0 {
				p.logger.Info("retry succeeded",
					zap.String("primitive", p.name),
					zap.Int("attempt", attempt))
			}
			return out, nil
		}
		attempts = append(attempts, types.NewAttempt(nameOf(p.inner), attempt+1, start, err))

		if !p.classifier(err) {
			return nil, err
		}
	}

	p.logger.Warn("retries exhausted",
		zap.String("primitive", p.name),
		zap.String("correlation_id", wc.CorrelationID()),
		zap.Int("attempts", len(attempts)))

	return nil, types.NewComposite(types.ErrRetryExhausted,
		fmt.Sprintf("primitive %s failed after %d attempts", p.name, len(attempts)),
		attempts)
}
