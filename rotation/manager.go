package rotation

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/flowkit/retry"
)

// CircuitState is the circuit breaker state.
type CircuitState int

const (
	// CircuitClosed is normal operation: the current target serves traffic.
	CircuitClosed CircuitState = iota
	// CircuitOpen presumes the current target unhealthy: new invocations
	// skip it and rotate immediately instead of waiting for a failure.
	CircuitOpen
	// CircuitHalfOpen allows exactly one exploratory invocation to the
	// current target to decide whether to close or re-open.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "Closed"
	case CircuitOpen:
		return "Open"
	case CircuitHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// CircuitConfig configures the circuit breaker.
type CircuitConfig struct {
	// FailureThreshold opens the circuit after this many consecutive
	// failures of the current target. Defaults to 5.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays Open before the next
	// state evaluation moves it to HalfOpen. Defaults to 60s.
	RecoveryTimeout time.Duration
}

// DefaultCircuitConfig returns the default breaker configuration.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Config configures a Manager.
type Config struct {
	// Order is the fixed, non-empty rotation order of target identifiers.
	Order []string

	// MaxConsecutiveFailures rotates to the next target after this many
	// consecutive failures of the current one. Defaults to 3. It is meant
	// to be smaller than the circuit breaker threshold so rotation happens
	// before the circuit trips.
	MaxConsecutiveFailures int

	// RetryPolicy supplies the backoff delays Do applies between attempts,
	// uniformly regardless of which target is current.
	RetryPolicy retry.Policy

	// Circuit configures the circuit breaker.
	Circuit CircuitConfig

	// PerTargetRPS optionally paces dispatch to each target. 0 disables
	// pacing.
	PerTargetRPS float64
	// PerTargetBurst is the limiter burst when PerTargetRPS is set.
	// Defaults to 1.
	PerTargetBurst int

	// OnRotate fires after the current target advances.
	OnRotate func(from, to, reason string)

	// OnCircuitChange fires on every circuit state transition.
	OnCircuitChange func(from, to CircuitState)
}

// targetStats is the mutable per-target health record. Guarded by the
// manager mutex.
type targetStats struct {
	requests      int64
	successes     int64
	failures      int64
	rateLimitHits int64
	latency       time.Duration
	consecutive   int
}

// TargetMetrics is an immutable snapshot of one target's health.
type TargetMetrics struct {
	Target              string        `json:"target"`
	Requests            int64         `json:"requests"`
	Successes           int64         `json:"successes"`
	Failures            int64         `json:"failures"`
	RateLimitHits       int64         `json:"rate_limit_hits"`
	CumulativeLatency   time.Duration `json:"cumulative_latency"`
	SuccessRate         float64       `json:"success_rate"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}

// ErrEmptyRotationOrder rejects construction without targets.
var ErrEmptyRotationOrder = errors.New("rotation order must not be empty")

// Manager owns the rotation state for one pool of interchangeable backends.
// It is safe for concurrent use: every state transition (index advance,
// failure counters, circuit state) is applied under one mutex, so concurrent
// outcome reports cannot corrupt counters or double-rotate.
type Manager struct {
	mu sync.Mutex

	order    []string
	idx      int
	stats    map[string]*targetStats
	limiters map[string]*rate.Limiter

	circuit       CircuitState
	openedAt      time.Time
	probeInFlight bool

	// currentRateLimited is set when the current target reported a rate
	// limit and cleared on rotation or on a current-target success. A rate
	// limit rotates immediately, independent of the failure window.
	currentRateLimited bool

	cfg    Config
	logger *zap.Logger
}

// NewManager creates a rotation manager over cfg.Order.
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if len(cfg.Order) == 0 {
		return nil, ErrEmptyRotationOrder
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 3
	}
	if cfg.Circuit.FailureThreshold <= 0 {
		cfg.Circuit.FailureThreshold = DefaultCircuitConfig().FailureThreshold
	}
	if cfg.Circuit.RecoveryTimeout <= 0 {
		cfg.Circuit.RecoveryTimeout = DefaultCircuitConfig().RecoveryTimeout
	}
	if cfg.PerTargetBurst <= 0 {
		cfg.PerTargetBurst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		order:   append([]string(nil), cfg.Order...),
		stats:   make(map[string]*targetStats, len(cfg.Order)),
		circuit: CircuitClosed,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "rotation")),
	}
	for _, target := range m.order {
		m.stats[target] = &targetStats{}
	}
	if cfg.PerTargetRPS > 0 {
		m.limiters = make(map[string]*rate.Limiter, len(m.order))
		for _, target := range m.order {
			m.limiters[target] = rate.NewLimiter(rate.Limit(cfg.PerTargetRPS), cfg.PerTargetBurst)
		}
	}
	return m, nil
}

// Order returns the fixed rotation order.
func (m *Manager) Order() []string {
	return append([]string(nil), m.order...)
}

// Current returns the current target.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order[m.idx]
}

// State returns the circuit state, applying the lazy Open -> HalfOpen
// transition when the recovery timeout has elapsed.
func (m *Manager) State() CircuitState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCircuitLocked()
	return m.circuit
}

// ShouldRotate reports whether the manager should advance: either the
// current target has accumulated MaxConsecutiveFailures consecutive failures
// or it reported a rate limit. Independent of circuit state.
func (m *Manager) ShouldRotate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentRateLimited ||
		m.stats[m.order[m.idx]].consecutive >= m.cfg.MaxConsecutiveFailures
}

// Advance rotates to the next target in cyclic order and returns it.
func (m *Manager) Advance(reason string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advanceLocked(reason)
}

func (m *Manager) advanceLocked(reason string) string {
	from := m.order[m.idx]
	m.idx = (m.idx + 1) % len(m.order)
	to := m.order[m.idx]

	// Each target's failure count is independent; the incoming target
	// starts its window fresh.
	m.stats[to].consecutive = 0
	m.currentRateLimited = false

	if m.circuit != CircuitClosed {
		m.setCircuitLocked(CircuitClosed)
	}
	m.probeInFlight = false

	m.logger.Info("rotated to next target",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("reason", reason))
	if m.cfg.OnRotate != nil {
		m.cfg.OnRotate(from, to, reason)
	}
	return to
}

// OnSuccess reports a successful call to target.
func (m *Manager) OnSuccess(target string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[target]
	if !ok {
		return
	}
	s.requests++
	s.successes++
	s.latency += latency
	s.consecutive = 0

	if target == m.order[m.idx] {
		m.currentRateLimited = false
		if m.circuit == CircuitHalfOpen {
			// Trial call succeeded: close the circuit.
			m.probeInFlight = false
			m.setCircuitLocked(CircuitClosed)
		}
	}
}

// OnFailure reports a failed call to target.
func (m *Manager) OnFailure(target string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordFailureLocked(target, latency, false)
}

// OnRateLimit reports a rate-limited call to target. It counts as a failure
// for rotation purposes and additionally increments the rate-limit counter.
func (m *Manager) OnRateLimit(target string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordFailureLocked(target, latency, true)
}

func (m *Manager) recordFailureLocked(target string, latency time.Duration, rateLimited bool) {
	s, ok := m.stats[target]
	if !ok {
		return
	}
	s.requests++
	s.failures++
	s.latency += latency
	if rateLimited {
		s.rateLimitHits++
	}

	if target != m.order[m.idx] {
		// Stale report from a call issued before a rotation; it counts
		// toward that target's totals but not toward the current window.
		return
	}
	s.consecutive++
	if rateLimited {
		m.currentRateLimited = true
	}

	switch m.circuit {
	case CircuitHalfOpen:
		// Trial call failed: re-open and restart the recovery clock.
		m.probeInFlight = false
		m.openedAt = time.Now()
		m.setCircuitLocked(CircuitOpen)
	case CircuitClosed:
		if s.consecutive >= m.cfg.Circuit.FailureThreshold {
			m.openedAt = time.Now()
			m.setCircuitLocked(CircuitOpen)
		}
	}
}

// refreshCircuitLocked applies the time-based Open -> HalfOpen transition.
func (m *Manager) refreshCircuitLocked() {
	if m.circuit == CircuitOpen && time.Since(m.openedAt) >= m.cfg.Circuit.RecoveryTimeout {
		m.probeInFlight = false
		m.setCircuitLocked(CircuitHalfOpen)
	}
}

func (m *Manager) setCircuitLocked(to CircuitState) {
	from := m.circuit
	if from == to {
		return
	}
	m.circuit = to
	m.logger.Info("circuit state changed",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("target", m.order[m.idx]))
	if m.cfg.OnCircuitChange != nil {
		m.cfg.OnCircuitChange(from, to)
	}
}

// Metrics returns an immutable snapshot of every target's health, keyed by
// target identifier.
func (m *Manager) Metrics() map[string]TargetMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]TargetMetrics, len(m.order))
	for _, target := range m.order {
		s := m.stats[target]
		sm := TargetMetrics{
			Target:              target,
			Requests:            s.requests,
			Successes:           s.successes,
			Failures:            s.failures,
			RateLimitHits:       s.rateLimitHits,
			CumulativeLatency:   s.latency,
			ConsecutiveFailures: s.consecutive,
			SuccessRate:         1.0,
		}
		if s.requests > 0 {
			sm.SuccessRate = float64(s.successes) / float64(s.requests)
		}
		out[target] = sm
	}
	return out
}
