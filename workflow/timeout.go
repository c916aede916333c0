package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowkit/types"
)

// TimeoutPrimitive bounds the execution time of the wrapped primitive. If the
// wrapped call has not completed within timeout+grace, Execute returns a
// timeout failure and stops waiting.
//
// Cancellation is cooperative and best-effort: the wrapped primitive receives
// a cancelled context, but in-flight work it started may continue silently in
// the background. Wrapped operations must be safe to abandon.
type TimeoutPrimitive struct {
	name    string
	inner   Primitive
	timeout time.Duration
	grace   time.Duration
	logger  *zap.Logger
}

// NewTimeout wraps inner with an execution time bound. grace extends the wait
// past timeout before giving up; pass 0 for none.
func NewTimeout(name string, inner Primitive, timeout, grace time.Duration, logger *zap.Logger) *TimeoutPrimitive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeoutPrimitive{
		name:    name,
		inner:   inner,
		timeout: timeout,
		grace:   grace,
		logger:  logger,
	}
}

func (p *TimeoutPrimitive) Name() string { return p.name }

type timeoutResult struct {
	out any
	err error
}

func (p *TimeoutPrimitive) Execute(ctx context.Context, input any) (any, error) {
	ctx, wc := EnsureContext(ctx)

	limit := p.timeout + p.grace
	// A tighter workflow deadline wins over the configured bound.
	if budget, ok := wc.RemainingBudget(time.Now()); ok && budget < limit {
		limit = budget
	}

	callCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	// Buffered so the abandoned goroutine can finish without a receiver.
	resultCh := make(chan timeoutResult, 1)
	start := time.Now()
	go func() {
		out, err := safeExecute(callCtx, p.inner, input)
		resultCh <- timeoutResult{out: out, err: err}
	}()

	select {
	case <-callCtx.Done():
		p.logger.Warn("primitive timed out",
			zap.String("primitive", p.name),
			zap.String("correlation_id", wc.CorrelationID()),
			zap.Duration("limit", limit),
			zap.Duration("elapsed", time.Since(start)))
		return nil, newTimeoutError(p.name, limit, callCtx.Err())
	case res := <-resultCh:
		return res.out, res.err
	}
}

func newTimeoutError(name string, limit time.Duration, cause error) error {
	return types.NewTimeout(fmt.Sprintf("primitive %s exceeded %s", name, limit)).
		WithCause(cause).
		WithTarget(name)
}
