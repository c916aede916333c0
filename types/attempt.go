package types

import (
	"fmt"
	"strings"
	"time"
)

// Attempt records a single try against one target. Fallback, retry, and
// rotation keep the full attempt history so a terminal failure stays
// diagnosable.
type Attempt struct {
	Target    string        `json:"target"`
	Number    int           `json:"number"`
	Err       error         `json:"-"`
	ErrorText string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ms"`
	StartedAt time.Time     `json:"started_at"`
}

// NewAttempt builds an attempt record from a finished call.
func NewAttempt(target string, number int, startedAt time.Time, err error) Attempt {
	a := Attempt{
		Target:    target,
		Number:    number,
		Err:       err,
		Latency:   time.Since(startedAt),
		StartedAt: startedAt,
	}
	if err != nil {
		a.ErrorText = err.Error()
	}
	return a
}

// Composite aggregates the failures of multiple attempts, e.g. a fallback
// chain where every candidate failed or a rotation pass that exhausted all
// targets.
type Composite struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Attempts []Attempt `json:"attempts"`
	Elapsed  time.Duration
}

// NewComposite creates a composite failure over the given attempts.
func NewComposite(code ErrorCode, message string, attempts []Attempt) *Composite {
	var elapsed time.Duration
	for _, a := range attempts {
		elapsed += a.Latency
	}
	return &Composite{Code: code, Message: message, Attempts: attempts, Elapsed: elapsed}
}

// Error implements the error interface.
func (c *Composite) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (%d attempts", c.Code, c.Message, len(c.Attempts))
	if c.Elapsed > 0 {
		fmt.Fprintf(&b, ", %s elapsed", c.Elapsed.Round(time.Millisecond))
	}
	b.WriteString(")")
	for _, a := range c.Attempts {
		fmt.Fprintf(&b, "; %s#%d: %s", a.Target, a.Number, a.ErrorText)
	}
	return b.String()
}

// Unwrap exposes the underlying attempt errors to errors.Is/As.
func (c *Composite) Unwrap() []error {
	errs := make([]error, 0, len(c.Attempts))
	for _, a := range c.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Retryable reports whether any underlying attempt failure is retryable.
func (c *Composite) Retryable() bool {
	for _, a := range c.Attempts {
		if IsRetryable(a.Err) {
			return true
		}
	}
	return false
}

// Targets lists the distinct targets attempted, in first-seen order.
func (c *Composite) Targets() []string {
	seen := make(map[string]bool, len(c.Attempts))
	targets := make([]string, 0, len(c.Attempts))
	for _, a := range c.Attempts {
		if a.Target == "" || seen[a.Target] {
			continue
		}
		seen[a.Target] = true
		targets = append(targets, a.Target)
	}
	return targets
}

// CompensationError reports that a compensating action failed after its
// forward action had succeeded. It is surfaced separately from the original
// workflow failure and never retried automatically.
type CompensationError struct {
	Name string
	Err  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("[%s] compensation %q failed: %v", ErrCompensationFailed, e.Name, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}
