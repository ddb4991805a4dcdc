// Package shared contains common domain types, errors, and events used
// across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds for errors.Is() checking. Every typed domain error
// chains to exactly one of these so callers can classify without knowing
// the concrete error.
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")

	// Classification kinds (error taxonomy):
	// a Conflict rejects the request as currently invalid; a Precondition
	// is a caller logic error; a Transient failure may be retried with
	// backoff; a Scheduling failure is fatal for that one request only.
	ErrConflict     = errors.New("conflict")
	ErrPrecondition = errors.New("precondition failed")
	ErrTransient    = errors.New("transient failure")
	ErrScheduling   = errors.New("scheduling failure")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError is a typed domain error with context.
type DomainError struct {
	Domain  string // e.g. "graph", "phlock", "metrics"
	Op      string // operation that failed, e.g. "Follow", "AddMember"
	Kind    error  // base kind for errors.Is() checking
	Message string // human-readable message
	Err     error  // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both kind and cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new DomainError.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Follow graph errors.
var (
	ErrAlreadyFollowing     = NewDomainError("graph", "Follow", ErrConflict, "already following this user")
	ErrNotFollowing         = NewDomainError("graph", "Unfollow", ErrPrecondition, "not following this user")
	ErrRequestAlreadyExists = NewDomainError("graph", "Request", ErrConflict, "follow request already pending")
	ErrRequestNotFound      = NewDomainError("graph", "FindRequest", ErrNotFound, "follow request not found")
	ErrRequestNotPending    = NewDomainError("graph", "Respond", ErrPrecondition, "follow request is no longer pending")
	ErrEdgeNotFound         = NewDomainError("graph", "FindEdge", ErrNotFound, "follow edge not found")
	ErrSelfFollow           = NewDomainError("graph", "Follow", ErrInvalidInput, "cannot follow self")
	ErrUserNotFound         = NewDomainError("graph", "FindUser", ErrNotFound, "user not found")
)

// Phlock errors.
var (
	ErrInvalidPosition     = NewDomainError("phlock", "Validate", ErrConflict, "position must be between 1 and 5")
	ErrPhlockFull          = NewDomainError("phlock", "AddMember", ErrConflict, "phlock already has 5 members")
	ErrMustFollowFirst     = NewDomainError("phlock", "AddMember", ErrPrecondition, "must follow a user before adding them to the phlock")
	ErrNotInPhlock         = NewDomainError("phlock", "RemoveMember", ErrPrecondition, "user is not in the phlock")
	ErrSwapTargetNotMember = NewDomainError("phlock", "Swap", ErrPrecondition, "outgoing user is not in the phlock")
	ErrSwapNotFound        = NewDomainError("phlock", "FindSwap", ErrNotFound, "scheduled swap not found")
	ErrSwapNotPending      = NewDomainError("phlock", "CancelSwap", ErrPrecondition, "scheduled swap is no longer pending")
	ErrTooManyMembers      = NewDomainError("phlock", "Reorder", ErrConflict, "cannot order more than 5 members")
	ErrSchedulingFailed    = NewDomainError("phlock", "Schedule", ErrScheduling, "could not compute cutover instant")
)

// Cache / store errors.
var (
	ErrStoreTimeout = NewDomainError("store", "Query", ErrTransient, "store operation timed out")
	ErrCacheFailure = NewDomainError("cache", "Access", ErrTransient, "cache layer failure")
)

// IsNotFound checks for "not found" errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks whether the request was rejected as currently invalid.
// Conflicts are not retried automatically.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsPrecondition checks for caller logic errors; surfaced as-is.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

// IsRetryable checks whether the caller may retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
