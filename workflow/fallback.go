package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowkit/types"
)

// FallbackPrimitive tries a primary primitive and, on failure, each fallback
// in order, returning the first success. Every candidate gets exactly one
// attempt; wrap a candidate in a RetryPrimitive to give it more.
//
// When every candidate fails the returned failure is a *types.Composite
// referencing all attempts, so the caller can diagnose the root cause.
type FallbackPrimitive struct {
	name      string
	primary   Primitive
	fallbacks []Primitive
	observer  *Observer
	logger    *zap.Logger
}

// FallbackOption configures a FallbackPrimitive.
type FallbackOption func(*FallbackPrimitive)

// WithFallbackObserver attaches an event observer.
func WithFallbackObserver(obs *Observer) FallbackOption {
	return func(p *FallbackPrimitive) { p.observer = obs }
}

// WithFallbackLogger attaches a logger.
func WithFallbackLogger(logger *zap.Logger) FallbackOption {
	return func(p *FallbackPrimitive) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewFallback creates a fallback chain: primary first, then each fallback in
// order.
func NewFallback(name string, primary Primitive, fallbacks []Primitive, opts ...FallbackOption) *FallbackPrimitive {
	p := &FallbackPrimitive{
		name:      name,
		primary:   primary,
		fallbacks: fallbacks,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *FallbackPrimitive) Name() string { return p.name }

func (p *FallbackPrimitive) Execute(ctx context.Context, input any) (any, error) {
	ctx, wc := EnsureContext(ctx)

	candidates := make([]Primitive, 0, len(p.fallbacks)+1)
	candidates = append(candidates, p.primary)
	candidates = append(candidates, p.fallbacks...)

	attempts := make([]types.Attempt, 0, len(candidates))
	for i, candidate := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := time.Now()
		out, err := safeExecute(ctx, candidate, input)
		if err == nil {
			if i > 0 {
				p.logger.Info("fallback succeeded",
					zap.String("primitive", p.name),
					zap.String("correlation_id", wc.CorrelationID()),
					zap.String("candidate", nameOf(candidate)),
					zap.Int("attempt", i+1))
			}
			return out, nil
		}

		attempts = append(attempts, types.NewAttempt(nameOf(candidate), i+1, start, err))
		p.logger.Warn("fallback candidate failed",
			zap.String("primitive", p.name),
			zap.String("correlation_id", wc.CorrelationID()),
			zap.String("candidate", nameOf(candidate)),
			zap.Error(err))
		if i < len(candidates)-1 {
			p.observer.fallback(p.name, nameOf(candidates[i+1]), err)
		}
	}

	return nil, types.NewComposite(types.ErrFallbackExhausted,
		fmt.Sprintf("primitive %s: all %d candidates failed", p.name, len(candidates)),
		attempts)
}
