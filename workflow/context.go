package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MetaEntry is one metadata key/value pair. Metadata preserves append order.
type MetaEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Context carries per-invocation identity through a workflow call chain: a
// correlation id generated once per top-level invocation, an optional
// application-supplied session id, ordered append-only metadata, and an
// optional absolute deadline.
//
// A Context is never mutated after creation. Derivation methods (WithMetadata,
// WithSessionID, WithDeadline) return new copies, so a Context held by one
// branch of a workflow is unaffected by derivations in another.
type Context struct {
	correlationID string
	sessionID     string
	meta          []MetaEntry
	deadline      time.Time
}

// NewContext creates a workflow Context with a fresh correlation id.
func NewContext() *Context {
	return &Context{correlationID: uuid.NewString()}
}

// CorrelationID returns the invocation correlation id.
func (c *Context) CorrelationID() string { return c.correlationID }

// SessionID returns the application-supplied session id, or "".
func (c *Context) SessionID() string { return c.sessionID }

// Deadline returns the absolute workflow deadline. ok is false when none is
// set.
func (c *Context) Deadline() (t time.Time, ok bool) {
	return c.deadline, !c.deadline.IsZero()
}

// Metadata returns a copy of the metadata entries in append order.
func (c *Context) Metadata() []MetaEntry {
	out := make([]MetaEntry, len(c.meta))
	copy(out, c.meta)
	return out
}

// MetadataValue returns the last value appended for key.
func (c *Context) MetadataValue(key string) (string, bool) {
	for i := len(c.meta) - 1; i >= 0; i-- {
		if c.meta[i].Key == key {
			return c.meta[i].Value, true
		}
	}
	return "", false
}

// clone returns a copy sharing no mutable state with the receiver.
func (c *Context) clone() *Context {
	dup := *c
	dup.meta = make([]MetaEntry, len(c.meta), len(c.meta)+1)
	copy(dup.meta, c.meta)
	return &dup
}

// WithSessionID derives a Context with the given session id.
func (c *Context) WithSessionID(sessionID string) *Context {
	dup := c.clone()
	dup.sessionID = sessionID
	return dup
}

// WithMetadata derives a Context with one more metadata entry appended.
func (c *Context) WithMetadata(key, value string) *Context {
	dup := c.clone()
	dup.meta = append(dup.meta, MetaEntry{Key: key, Value: value})
	return dup
}

// WithDeadline derives a Context with the given absolute deadline.
func (c *Context) WithDeadline(deadline time.Time) *Context {
	dup := c.clone()
	dup.deadline = deadline
	return dup
}

// RemainingBudget returns the time left until the workflow deadline. ok is
// false when no deadline is set; a past deadline yields a zero budget.
func (c *Context) RemainingBudget(now time.Time) (time.Duration, bool) {
	if c.deadline.IsZero() {
		return 0, false
	}
	d := c.deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// workflowContextKey is the context.Context key for *Context.
type workflowContextKey struct{}

// IntoContext stores a workflow Context in ctx.
func IntoContext(ctx context.Context, wc *Context) context.Context {
	if wc == nil {
		return ctx
	}
	return context.WithValue(ctx, workflowContextKey{}, wc)
}

// FromContext retrieves the workflow Context from ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	wc, ok := ctx.Value(workflowContextKey{}).(*Context)
	return wc, ok && wc != nil
}

// EnsureContext returns ctx with a workflow Context attached, creating a
// fresh one when absent. Top-level entry points call this so nested
// primitives always observe the same correlation id.
func EnsureContext(ctx context.Context) (context.Context, *Context) {
	if wc, ok := FromContext(ctx); ok {
		return ctx, wc
	}
	wc := NewContext()
	return IntoContext(ctx, wc), wc
}
