package types

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		timeout   bool
		rateLimit bool
		permanent bool
	}{
		{
			name:      "transient upstream error",
			err:       NewTransient(ErrUpstreamError, "backend returned 503"),
			retryable: true,
		},
		{
			name:      "permanent validation error",
			err:       NewPermanent(ErrInvalidRequest, "missing field"),
			permanent: true,
		},
		{
			name:      "timeout",
			err:       NewTimeout("call exceeded 5s"),
			retryable: true,
			timeout:   true,
		},
		{
			name:      "rate limit",
			err:       NewRateLimit("429 from backend"),
			retryable: true,
			rateLimit: true,
		},
		{
			name:      "wrapped structured error",
			err:       fmt.Errorf("outer: %w", NewRateLimit("throttled")),
			retryable: true,
			rateLimit: true,
		},
		{
			name:      "context deadline",
			err:       context.DeadlineExceeded,
			retryable: true,
			timeout:   true,
		},
		{
			name: "plain error",
			err:  errors.New("something"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
			assert.Equal(t, tt.timeout, IsTimeout(tt.err))
			assert.Equal(t, tt.rateLimit, IsRateLimit(tt.err))
			assert.Equal(t, tt.permanent, IsPermanent(tt.err))
		})
	}
}

func TestErrorBuilders(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransient(ErrUpstreamError, "call failed").
		WithCause(cause).
		WithTarget("model-b").
		WithAttempts(4)

	assert.Equal(t, "model-b", err.Target)
	assert.Equal(t, 4, err.Attempts)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "UPSTREAM_ERROR")
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, ErrUpstreamError, GetCode(err))
}

func TestCompositeRetainsAttempts(t *testing.T) {
	now := time.Now()
	attempts := []Attempt{
		NewAttempt("model-a", 1, now, NewRateLimit("throttled")),
		NewAttempt("model-b", 2, now, NewPermanent(ErrUnauthorized, "bad key")),
		NewAttempt("model-a", 3, now, NewTimeout("too slow")),
	}
	c := NewComposite(ErrRotationExhausted, "all targets failed", attempts)

	require.Len(t, c.Attempts, 3)
	assert.Equal(t, []string{"model-a", "model-b"}, c.Targets())
	assert.True(t, c.Retryable())
	assert.True(t, IsRetryable(c))
	assert.Contains(t, c.Error(), "3 attempts")
	assert.Contains(t, c.Error(), "model-b#2")

	// errors.Is reaches through to the underlying attempt errors.
	var structured *Error
	assert.True(t, errors.As(c, &structured))
}

func TestCompositeAllPermanentNotRetryable(t *testing.T) {
	c := NewComposite(ErrFallbackExhausted, "all candidates failed", []Attempt{
		NewAttempt("a", 1, time.Now(), NewPermanent(ErrInvalidRequest, "bad input")),
	})
	assert.False(t, c.Retryable())
	assert.False(t, IsRetryable(c))
}

func TestCompensationError(t *testing.T) {
	cause := errors.New("delete failed")
	err := &CompensationError{Name: "release-hold", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "release-hold")
	assert.Contains(t, err.Error(), string(ErrCompensationFailed))
}
