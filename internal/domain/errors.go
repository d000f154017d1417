package domain

import "fmt"

// Error types for consistent error handling across the service layer.
// Every rejected transition gets its own type so callers (and the HTTP
// layer) can branch deterministically instead of parsing messages.

// ErrNotAuthenticated indicates the operation requires a signed-in identity
// and none was supplied.
type ErrNotAuthenticated struct{}

func (e *ErrNotAuthenticated) Error() string {
	return "not authenticated"
}

// ErrForbidden indicates the identity lacks the capability for the operation.
type ErrForbidden struct {
	Capability Capability
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: missing capability %s", e.Capability)
}

// ErrInvalidTransition indicates the requested state change is illegal from
// the current lifecycle state.
type ErrInvalidTransition struct {
	Event  string
	From   RequestState
	Reason string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition '%s' from state '%s': %s", e.Event, e.From, e.Reason)
}

// ErrRequestAlreadyPending indicates a new change request was attempted
// while one is still outstanding.
type ErrRequestAlreadyPending struct {
	PendingPlan Plan
}

func (e *ErrRequestAlreadyPending) Error() string {
	return fmt.Sprintf("a change request to plan '%s' is already pending", e.PendingPlan)
}

// ErrStoreUnavailable indicates a profile store read/write failed. The only
// error class the caller may retry verbatim.
type ErrStoreUnavailable struct {
	Op  string
	Err error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("profile store unavailable [%s]: %v", e.Op, e.Err)
}

func (e *ErrStoreUnavailable) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
