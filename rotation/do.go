package rotation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/flowkit/retry"
	"github.com/BaSui01/flowkit/types"
)

// CallFunc performs one underlying request against the given target.
type CallFunc func(ctx context.Context, target string) (any, error)

// acquire picks the target for the next attempt, applying circuit gating:
// an Open circuit skips the presumed-unhealthy current target immediately,
// and HalfOpen admits a single probe while concurrent callers rotate past.
func (m *Manager) acquire() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshCircuitLocked()
	switch m.circuit {
	case CircuitOpen:
		return m.advanceLocked("circuit_open")
	case CircuitHalfOpen:
		if m.probeInFlight {
			return m.advanceLocked("halfopen_probe_in_flight")
		}
		m.probeInFlight = true
	}
	return m.order[m.idx]
}

func (m *Manager) limiterFor(target string) *rate.Limiter {
	if m.limiters == nil {
		return nil
	}
	return m.limiters[target]
}

// Do runs one logical request: it obtains the current target, invokes fn,
// reports the classified outcome, and keeps going with exponential backoff
// until fn succeeds, a permanent failure occurs, the context is cancelled, or
// every target in the rotation order has been tried and failed. Exhaustion is
// tracked per request, not in manager state, and yields a *types.Composite
// enumerating all attempted targets.
func (m *Manager) Do(ctx context.Context, fn CallFunc) (any, error) {
	attempted := make(map[string]bool, len(m.order))
	var attempts []types.Attempt

	for attemptNo := 0; ; attemptNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target := m.acquire()
		if lim := m.limiterFor(target); lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, err
			}
		}
		attempted[target] = true

		start := time.Now()
		out, err := fn(ctx, target)
		latency := time.Since(start)

		if err == nil {
			m.OnSuccess(target, latency)
			return out, nil
		}

		attempts = append(attempts, types.NewAttempt(target, attemptNo+1, start, err))
		rateLimited := types.IsRateLimit(err)
		if rateLimited {
			m.OnRateLimit(target, latency)
		} else {
			m.OnFailure(target, latency)
		}
		m.logger.Warn("target call failed",
			zap.String("target", target),
			zap.Int("attempt", attemptNo+1),
			zap.Bool("rate_limited", rateLimited),
			zap.Error(err))

		if types.IsPermanent(err) {
			return nil, err
		}

		if m.ShouldRotate() {
			reason := "max_consecutive_failures"
			if rateLimited {
				reason = "rate_limited"
			}
			m.Advance(reason)
		}

		if len(attempted) == len(m.order) {
			return nil, types.NewComposite(types.ErrRotationExhausted,
				fmt.Sprintf("all %d targets failed", len(m.order)),
				attempts)
		}

		if err := retry.Sleep(ctx, m.cfg.RetryPolicy.Delay(attemptNo)); err != nil {
			return nil, err
		}
	}
}
