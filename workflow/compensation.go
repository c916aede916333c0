package workflow

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/flowkit/types"
)

// sagaEntry pairs a successfully executed forward action with its
// compensating action and the forward result to feed it.
type sagaEntry struct {
	name       string
	compensate Primitive
	forward    any
}

// sagaScope collects compensations registered by CompensationPrimitives
// executed inside one sequential chain. The owning chain drains it in
// reverse order when a downstream step fails.
type sagaScope struct {
	mu      sync.Mutex
	entries []sagaEntry
}

func (s *sagaScope) register(e sagaEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *sagaScope) drain() []sagaEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries
	s.entries = nil
	return entries
}

type sagaScopeKey struct{}

func withSagaScope(ctx context.Context, s *sagaScope) context.Context {
	return context.WithValue(ctx, sagaScopeKey{}, s)
}

func sagaScopeFrom(ctx context.Context) (*sagaScope, bool) {
	s, ok := ctx.Value(sagaScopeKey{}).(*sagaScope)
	return s, ok && s != nil
}

// CompensationPrimitive pairs a forward action with a compensating action
// (saga pattern). Executing it runs the forward action; on success the
// compensation is registered with the enclosing sequential chain, which
// invokes it with the forward result if a downstream step later fails.
//
// Compensation failures are reported through the observer and attached to the
// chain's error, but they never re-fail the already-succeeded forward action
// and are never retried automatically. Callers who want compensation retries
// pass a retry-wrapped primitive as the compensating action.
type CompensationPrimitive struct {
	name       string
	forward    Primitive
	compensate Primitive
	logger     *zap.Logger
}

// NewCompensation creates a saga step from a forward and a compensating
// action.
func NewCompensation(name string, forward, compensate Primitive, logger *zap.Logger) *CompensationPrimitive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompensationPrimitive{
		name:       name,
		forward:    forward,
		compensate: compensate,
		logger:     logger,
	}
}

func (p *CompensationPrimitive) Name() string { return p.name }

func (p *CompensationPrimitive) Execute(ctx context.Context, input any) (any, error) {
	out, err := safeExecute(ctx, p.forward, input)
	if err != nil {
		return nil, err
	}

	if scope, ok := sagaScopeFrom(ctx); ok {
		scope.register(sagaEntry{name: p.name, compensate: p.compensate, forward: out})
	} else {
		// Outside a sequential chain there is no downstream failure to
		// observe, so the compensation can never fire.
		p.logger.Debug("compensation registered outside a sequential chain",
			zap.String("primitive", p.name))
	}

	return out, nil
}

// runCompensations executes drained saga entries in reverse registration
// order and returns one CompensationError per failed compensation.
func runCompensations(ctx context.Context, entries []sagaEntry, obs *Observer, logger *zap.Logger) []error {
	var failures []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		_, err := safeExecute(ctx, e.compensate, e.forward)
		obs.compensation(e.name, err)
		if err != nil {
			logger.Error("compensation failed",
				zap.String("primitive", e.name),
				zap.Error(err))
			failures = append(failures, &types.CompensationError{Name: e.name, Err: err})
			continue
		}
		logger.Info("compensation applied", zap.String("primitive", e.name))
	}
	return failures
}
