package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowkit/types"
)

func TestSequentialChainsOutputs(t *testing.T) {
	appendStep := func(name, suffix string) Primitive {
		return NewFunc(name, func(ctx context.Context, input any) (any, error) {
			return input.(string) + suffix, nil
		})
	}

	chain := NewSequential("chain", []Primitive{
		appendStep("s1", " -> s1"),
		appendStep("s2", " -> s2"),
		appendStep("s3", " -> s3"),
	})

	out, err := chain.Execute(context.Background(), "start")
	require.NoError(t, err)
	assert.Equal(t, "start -> s1 -> s2 -> s3", out)
}

func TestSequentialFailFast(t *testing.T) {
	boom := errors.New("boom")
	first := failing("first", boom)
	second := succeeding("second", "never")

	chain := NewSequential("chain", []Primitive{first, second})

	_, err := chain.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, first.callCount())
	// The failure short-circuits: the second step is never invoked.
	assert.Equal(t, 0, second.callCount())
}

func TestSequentialSharesWorkflowContext(t *testing.T) {
	var seen []string
	capture := func(name string) Primitive {
		return NewFunc(name, func(ctx context.Context, input any) (any, error) {
			wc, ok := FromContext(ctx)
			require.True(t, ok)
			seen = append(seen, wc.CorrelationID())
			return input, nil
		})
	}

	chain := NewSequential("chain", []Primitive{capture("a"), capture("b")})
	_, err := chain.Execute(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1])
}

func TestSequentialRunsCompensationsInReverseOrder(t *testing.T) {
	var undone []string
	undo := func(name string) Primitive {
		return NewFunc("undo-"+name, func(ctx context.Context, input any) (any, error) {
			undone = append(undone, name)
			return nil, nil
		})
	}

	chain := NewSequential("saga", []Primitive{
		NewCompensation("reserve", succeeding("reserve-fwd", "reservation-1"), undo("reserve"), nil),
		NewCompensation("charge", succeeding("charge-fwd", "charge-1"), undo("charge"), nil),
		failing("ship", errors.New("out of stock")),
	})

	_, err := chain.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, []string{"charge", "reserve"}, undone)
}

func TestSequentialCompensationReceivesForwardResult(t *testing.T) {
	var got any
	comp := NewFunc("undo", func(ctx context.Context, input any) (any, error) {
		got = input
		return nil, nil
	})

	chain := NewSequential("saga", []Primitive{
		NewCompensation("step", succeeding("fwd", "forward-result"), comp, nil),
		failing("later", errors.New("downstream")),
	})

	_, err := chain.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "forward-result", got)
}

func TestSequentialReportsCompensationFailure(t *testing.T) {
	var observed []error
	obs := &Observer{
		OnCompensation: func(primitive string, err error) {
			observed = append(observed, err)
		},
	}

	compErr := errors.New("undo failed")
	chain := NewSequential("saga", []Primitive{
		NewCompensation("step", succeeding("fwd", 1), failing("undo", compErr), nil),
		failing("later", errors.New("downstream")),
	}, WithSequentialObserver(obs))

	_, err := chain.Execute(context.Background(), nil)
	require.Error(t, err)

	// The original step failure stays visible alongside the compensation
	// failure.
	assert.Contains(t, err.Error(), "downstream")
	var ce *types.CompensationError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "step", ce.Name)

	require.Len(t, observed, 1)
	assert.ErrorIs(t, observed[0], compErr)
}

func TestNestedSequentialSharesSagaScope(t *testing.T) {
	var undone []string
	undo := func(name string) Primitive {
		return NewFunc("undo-"+name, func(ctx context.Context, input any) (any, error) {
			undone = append(undone, name)
			return nil, nil
		})
	}

	inner := NewSequential("inner", []Primitive{
		NewCompensation("inner-step", succeeding("fwd", "x"), undo("inner-step"), nil),
	})
	outer := NewSequential("outer", []Primitive{
		NewCompensation("outer-step", succeeding("fwd", "y"), undo("outer-step"), nil),
		inner,
		failing("final", errors.New("downstream")),
	})

	_, err := outer.Execute(context.Background(), nil)
	require.Error(t, err)
	// The outer chain owns the scope: inner registrations unwind too, in
	// reverse registration order.
	assert.Equal(t, []string{"inner-step", "outer-step"}, undone)
}

func TestCompensationOutsideChainIsInert(t *testing.T) {
	undo := failing("undo", errors.New("should not run"))
	p := NewCompensation("solo", succeeding("fwd", "ok"), undo, nil)

	out, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 0, undo.callCount())
}
