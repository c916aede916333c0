// Package retry implements exponential-backoff retry policies. The Policy is
// a pure delay computation shared by the workflow retry primitive and the
// rotation manager; the Retryer drives an execution loop on top of it.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Jitter bounds. A jittered delay stays within [JitterMin, JitterMax] of the
// unjittered value so concurrent callers desynchronize without drifting far
// from the schedule.
const (
	JitterMin = 0.8
	JitterMax = 1.2
)

// Policy configures exponential backoff.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first
	// (MaxRetries=3 allows at most 4 total invocations). 0 disables retries.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay. Must be >= BaseDelay.
	MaxDelay time.Duration

	// ExponentialBase grows the delay each attempt. Defaults to 2.0.
	ExponentialBase float64

	// Jitter randomizes each delay by a uniform factor in
	// [JitterMin, JitterMax] to avoid synchronized retry storms.
	Jitter bool
}

// DefaultPolicy returns a policy suitable for most backend calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// normalized returns a copy with invalid fields replaced by defaults.
func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 1 * time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.ExponentialBase <= 1.0 {
		p.ExponentialBase = 2.0
	}
	return p
}

// Delay computes the backoff before retry number attempt (0-based: Delay(0)
// is the wait after the first failure). The result is always in
// [0, MaxDelay], jitter included.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter {
		delay *= JitterMin + rand.Float64()*(JitterMax-JitterMin)
		if delay > float64(p.MaxDelay) {
			delay = float64(p.MaxDelay)
		}
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
