package workflow

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BaSui01/flowkit/types"
)

// BranchResult is the outcome of one parallel branch.
type BranchResult struct {
	Name   string
	Index  int
	Output any
	Err    error
}

// ParallelPrimitive fans the same input and workflow Context out to every
// branch concurrently and joins on all of them. The result is a
// []BranchResult ordered by branch position regardless of completion order.
//
// Parallel never fails fast: a branch failure is recorded in its slot and the
// remaining branches keep running, so partial results stay inspectable. The
// caller decides aggregate success. An optional cancel threshold makes this
// configurable: once that many branches have failed, the context handed to
// the still-running branches is cancelled.
type ParallelPrimitive struct {
	name            string
	branches        []Primitive
	cancelThreshold int
	logger          *zap.Logger
}

// ParallelOption configures a ParallelPrimitive.
type ParallelOption func(*ParallelPrimitive)

// WithCancelThreshold cancels the remaining branches once n branches have
// failed. n <= 0 (the default) disables cancellation.
func WithCancelThreshold(n int) ParallelOption {
	return func(p *ParallelPrimitive) { p.cancelThreshold = n }
}

// WithParallelLogger attaches a logger.
func WithParallelLogger(logger *zap.Logger) ParallelOption {
	return func(p *ParallelPrimitive) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParallel creates a parallel fan-out over the given branches.
func NewParallel(name string, branches []Primitive, opts ...ParallelOption) *ParallelPrimitive {
	p := &ParallelPrimitive{
		name:     name,
		branches: branches,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ParallelPrimitive) Name() string { return p.name }

// Execute runs all branches and returns their ordered []BranchResult. The
// returned error is non-nil only for structural problems (no branches), never
// for branch failures.
func (p *ParallelPrimitive) Execute(ctx context.Context, input any) (any, error) {
	if len(p.branches) == 0 {
		return nil, types.NewPermanent(types.ErrInvalidRequest, "parallel primitive has no branches")
	}

	ctx, wc := EnsureContext(ctx)

	branchCtx := ctx
	var cancel context.CancelFunc
	if p.cancelThreshold > 0 {
		branchCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	results := make([]BranchResult, len(p.branches))
	var failed atomic.Int64
	var wg sync.WaitGroup

	for i, branch := range p.branches {
		wg.Add(1)
		go func(idx int, b Primitive) {
			defer wg.Done()

			out, err := safeExecute(branchCtx, b, input)
			results[idx] = BranchResult{
				Name:   nameOf(b),
				Index:  idx,
				Output: out,
				Err:    err,
			}

			if err != nil {
				p.logger.Warn("parallel branch failed",
					zap.String("workflow", p.name),
					zap.String("correlation_id", wc.CorrelationID()),
					zap.String("branch", nameOf(b)),
					zap.Error(err))
				if p.cancelThreshold > 0 && failed.Add(1) >= int64(p.cancelThreshold) {
					cancel()
				}
			}
		}(i, branch)
	}

	wg.Wait()
	return results, nil
}

// Failures extracts the failed branch results from a parallel output.
func Failures(results []BranchResult) []BranchResult {
	var failed []BranchResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
