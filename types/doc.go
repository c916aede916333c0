// Package types defines the failure taxonomy shared by every flowkit
// primitive: structured errors with a kind and code, attempt records, and
// composite errors that aggregate multiple underlying failures.
package types
