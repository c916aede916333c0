// Package workflow provides composable execution primitives for
// orchestrating calls to interchangeable backend services.
//
// Everything is built on a single contract: a Primitive executes an input and
// returns an output or a classified failure. Composition operators
// (Sequential, Parallel) and recovery wrappers (Retry, Timeout, Fallback,
// Compensation, Cache, Router) all consume and produce Primitives, so any
// combination nests freely:
//
//	p := workflow.NewRetry("resilient-call",
//	    workflow.NewTimeout("bounded-call", backend, 5*time.Second, 0, nil),
//	    retry.DefaultPolicy(),
//	)
//
// A workflow Context carries per-invocation identity (correlation id, session
// id, metadata, deadline) through the call chain inside context.Context.
package workflow
