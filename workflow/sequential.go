package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SequentialPrimitive chains primitives: the output of step i becomes the
// input of step i+1. The first failure short-circuits the chain (fail-fast);
// later steps are never invoked. All steps share the same workflow Context.
//
// When the chain contains CompensationPrimitives, the outermost chain owns a
// saga scope: on a step failure it invokes the registered compensations in
// reverse order before propagating the failure.
type SequentialPrimitive struct {
	name     string
	steps    []Primitive
	observer *Observer
	logger   *zap.Logger
}

// SequentialOption configures a SequentialPrimitive.
type SequentialOption func(*SequentialPrimitive)

// WithSequentialObserver attaches an event observer.
func WithSequentialObserver(obs *Observer) SequentialOption {
	return func(p *SequentialPrimitive) { p.observer = obs }
}

// WithSequentialLogger attaches a logger.
func WithSequentialLogger(logger *zap.Logger) SequentialOption {
	return func(p *SequentialPrimitive) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewSequential creates a sequential chain over the given steps.
func NewSequential(name string, steps []Primitive, opts ...SequentialOption) *SequentialPrimitive {
	p := &SequentialPrimitive{
		name:   name,
		steps:  steps,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SequentialPrimitive) Name() string { return p.name }

// Steps returns the chained steps in execution order.
func (p *SequentialPrimitive) Steps() []Primitive { return p.steps }

func (p *SequentialPrimitive) Execute(ctx context.Context, input any) (any, error) {
	ctx, wc := EnsureContext(ctx)

	// The outermost chain owns the saga scope; nested chains register into
	// it so compensation ordering spans the whole invocation.
	scope, inherited := sagaScopeFrom(ctx)
	if !inherited {
		scope = &sagaScope{}
		ctx = withSagaScope(ctx, scope)
	}

	current := input
	for i, step := range p.steps {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		out, err := safeExecute(ctx, step, current)
		if err != nil {
			p.logger.Warn("sequential step failed",
				zap.String("workflow", p.name),
				zap.String("correlation_id", wc.CorrelationID()),
				zap.Int("step", i+1),
				zap.String("step_name", nameOf(step)),
				zap.Error(err))

			stepErr := fmt.Errorf("step %d (%s) failed: %w", i+1, nameOf(step), err)
			if !inherited {
				if failures := runCompensations(ctx, scope.drain(), p.observer, p.logger); len(failures) > 0 {
					return nil, errors.Join(append([]error{stepErr}, failures...)...)
				}
			}
			return nil, stepErr
		}
		current = out
	}

	return current, nil
}
