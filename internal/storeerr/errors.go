// Package storeerr defines the store-level error taxonomy (spec §4.8):
// errors the resource store, search compiler, and listener engine raise,
// translated to HTTP responses once, at the boundary (spec §7).
package storeerr

import "fmt"

// ResourceTypeNotFound indicates an unknown type path.
type ResourceTypeNotFound struct {
	Path string
}

func (e *ResourceTypeNotFound) Error() string {
	return fmt.Sprintf("resource type not found for path %q", e.Path)
}

// ResourceNotFound indicates an unknown id within a known type.
type ResourceNotFound struct {
	Type string
	ID   string
}

func (e *ResourceNotFound) Error() string {
	return fmt.Sprintf("resource %q not found in type %q", e.ID, e.Type)
}

// WrongRevision indicates an optimistic-concurrency conflict: the caller's
// expected revision does not match the currently stored one.
type WrongRevision struct {
	ID      string
	Current string
	Update  string
}

func (e *WrongRevision) Error() string {
	return fmt.Sprintf("wrong revision for %q: current=%q update=%q", e.ID, e.Current, e.Update)
}

// UnexpectedError indicates a rowcount invariant was violated — a bug, not
// a client error (spec §4.4 step 4: rowcount > 1).
type UnexpectedError struct {
	Reason string
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected store error (invariant violated): %s", e.Reason)
}

// ValidationFailed wraps a schema.ValidationError-shaped failure for
// callers that only depend on storeerr, not schema.
type ValidationFailed struct {
	Path   string
	Reason string
}

func (e *ValidationFailed) Error() string {
	return fmt.Sprintf("validation failed at %q: %s", e.Path, e.Reason)
}
