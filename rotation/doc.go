// Package rotation manages an ordered pool of interchangeable backend
// targets. The Manager tracks per-target health metrics, advances a "current
// target" pointer in fixed cyclic order when the current target keeps failing
// or reports rate limiting, and gates traffic through a three-state circuit
// breaker (Closed, Open, HalfOpen).
//
// Callers either drive the manager directly (Current, OnSuccess, OnFailure,
// OnRateLimit, ShouldRotate, Advance) or hand it the whole call loop via Do,
// which applies exponential backoff between attempts and fails terminally
// once every target has been tried within one logical request.
package rotation
