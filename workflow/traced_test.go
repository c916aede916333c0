package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracedPassesResultThrough(t *testing.T) {
	inner := succeeding("work", "result")
	p := NewTraced(inner, nil)

	out, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "result", out)
	assert.Equal(t, "work", p.Name())
}

func TestTracedPropagatesError(t *testing.T) {
	boom := errors.New("down")
	p := NewTraced(failing("work", boom), nil)

	_, err := p.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestTracedPreservesWorkflowContext(t *testing.T) {
	wc := NewContext()
	inner := NewFunc("work", func(ctx context.Context, input any) (any, error) {
		got, ok := FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, wc.CorrelationID(), got.CorrelationID())
		return nil, nil
	})

	_, err := NewTraced(inner, nil).Execute(IntoContext(context.Background(), wc), nil)
	require.NoError(t, err)
}
