package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowkit/types"
)

func TestTimeoutFastOperationPasses(t *testing.T) {
	inner := succeeding("quick", "result")
	p := NewTimeout("bounded", inner, time.Second, 0, nil)

	out, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "result", out)
}

func TestTimeoutOverrunReturnsTimeoutError(t *testing.T) {
	inner := NewFunc("slow", func(ctx context.Context, input any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	})
	p := NewTimeout("bounded", inner, 20*time.Millisecond, 0, nil)

	start := time.Now()
	_, err := p.Execute(context.Background(), nil)

	require.Error(t, err)
	assert.True(t, types.IsTimeout(err))
	assert.True(t, types.IsRetryable(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestTimeoutGracePeriodExtendsWait(t *testing.T) {
	inner := NewFunc("slowish", func(ctx context.Context, input any) (any, error) {
		time.Sleep(30 * time.Millisecond)
		return "made it", nil
	})
	// 10ms alone would fail; the 50ms grace lets the call finish.
	p := NewTimeout("bounded", inner, 10*time.Millisecond, 50*time.Millisecond, nil)

	out, err := p.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "made it", out)
}

func TestTimeoutHonorsWorkflowDeadline(t *testing.T) {
	inner := NewFunc("slow", func(ctx context.Context, input any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return nil, nil
		}
	})

	// The workflow deadline is tighter than the configured timeout.
	wc := NewContext().WithDeadline(time.Now().Add(20 * time.Millisecond))
	ctx := IntoContext(context.Background(), wc)

	p := NewTimeout("bounded", inner, time.Minute, 0, nil)
	start := time.Now()
	_, err := p.Execute(ctx, nil)

	require.Error(t, err)
	assert.True(t, types.IsTimeout(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestTimeoutAbandonedWorkKeepsRunning(t *testing.T) {
	finished := make(chan struct{})
	inner := NewFunc("stubborn", func(ctx context.Context, input any) (any, error) {
		// Ignores cancellation on purpose.
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return "late", nil
	})
	p := NewTimeout("bounded", inner, 10*time.Millisecond, 0, nil)

	_, err := p.Execute(context.Background(), nil)
	require.Error(t, err)

	// Best-effort cancellation: the wrapped side effect may still complete
	// in the background.
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned operation never completed")
	}
}
