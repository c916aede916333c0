package workflow

import (
	"context"
	"fmt"

	"github.com/BaSui01/flowkit/types"
)

// Primitive is the common execution contract. It represents any unit of work
// that can be executed with an input and produce an output or a classified
// failure. Composition primitives hold their children through this interface
// only, never through concrete types.
//
// Implementations must report every failure mode through the returned error;
// no panic may cross a primitive boundary.
type Primitive interface {
	Execute(ctx context.Context, input any) (any, error)
}

// PrimitiveFunc adapts a plain function to the Primitive interface.
type PrimitiveFunc func(ctx context.Context, input any) (any, error)

func (f PrimitiveFunc) Execute(ctx context.Context, input any) (any, error) {
	return f(ctx, input)
}

// Named is implemented by primitives that expose a name for logs and metrics.
type Named interface {
	Name() string
}

// nameOf returns the primitive's name, or a fallback for anonymous ones.
func nameOf(p Primitive) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return "anonymous"
}

// FuncPrimitive is a named function primitive.
type FuncPrimitive struct {
	name string
	fn   PrimitiveFunc
}

// NewFunc creates a named primitive from a function.
func NewFunc(name string, fn PrimitiveFunc) *FuncPrimitive {
	return &FuncPrimitive{name: name, fn: fn}
}

func (p *FuncPrimitive) Name() string { return p.name }

func (p *FuncPrimitive) Execute(ctx context.Context, input any) (any, error) {
	return p.fn(ctx, input)
}

// safeExecute invokes p and converts a panic into a permanent internal
// failure so it cannot cross the primitive boundary.
func safeExecute(ctx context.Context, p Primitive, input any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewPermanent(types.ErrInternalError,
				fmt.Sprintf("primitive %s panicked: %v", nameOf(p), r))
		}
	}()
	return p.Execute(ctx, input)
}
