package retry

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func policyFrom(baseDelayNs, maxDelayNs int64, expBase float64) Policy {
	base := time.Duration(baseDelayNs)
	max := time.Duration(maxDelayNs)
	if max < base {
		max = base
	}
	return Policy{
		MaxRetries:      3,
		BaseDelay:       base,
		MaxDelay:        max,
		ExponentialBase: expBase,
	}
}

func TestProperty_DelayBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("delay(attempt) stays within [0, MaxDelay], jitter included", prop.ForAll(
		func(baseNs, maxNs int64, expBase float64, attempt int, jitter bool) bool {
			p := policyFrom(baseNs, maxNs, expBase)
			p.Jitter = jitter
			d := p.Delay(attempt)
			return d >= 0 && d <= p.MaxDelay
		},
		gen.Int64Range(1, int64(10*time.Second)),
		gen.Int64Range(1, int64(120*time.Second)),
		gen.Float64Range(1.1, 5.0),
		gen.IntRange(0, 64),
		gen.Bool(),
	))

	properties.Property("unjittered delays grow monotonically", prop.ForAll(
		func(baseNs, maxNs int64, expBase float64, attempt int) bool {
			p := policyFrom(baseNs, maxNs, expBase)
			return p.Delay(attempt) <= p.Delay(attempt+1)
		},
		gen.Int64Range(1, int64(10*time.Second)),
		gen.Int64Range(1, int64(120*time.Second)),
		gen.Float64Range(1.1, 5.0),
		gen.IntRange(0, 32),
	))

	properties.Property("jittered delay stays within [0.8x, 1.2x] of unjittered", prop.ForAll(
		func(baseNs, maxNs int64, expBase float64, attempt int) bool {
			p := policyFrom(baseNs, maxNs, expBase)
			base := float64(p.Delay(attempt))
			p.Jitter = true
			jittered := float64(p.Delay(attempt))
			if jittered > base*JitterMax {
				return false
			}
			// Truncation to whole nanoseconds allows a 1ns undershoot, and
			// the upper clamp may pull a jittered value below JitterMin*base
			// when base itself sits at the cap.
			return jittered+1 >= base*JitterMin || jittered == float64(p.MaxDelay)
		},
		gen.Int64Range(1, int64(10*time.Second)),
		gen.Int64Range(1, int64(120*time.Second)),
		gen.Float64Range(1.1, 5.0),
		gen.IntRange(0, 32),
	))

	properties.TestingRun(t)
}
