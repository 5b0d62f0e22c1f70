/*
errors.go - Centralized error types for the invoice engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failed lifecycle action maps to exactly one of these categories.

ERROR CATEGORIES:
  1. Validation errors   - Required field missing on submit
  2. Policy violations   - Quantity edit rejected by reconciliation rules
  3. Authorization errors - Actor not in the approver set for the tier
  4. Routing errors      - Illegal send-back target level
  5. Persistence errors  - Store call failed (retryable)

USAGE:
  Callers branch on category with errors.Is():

    if errors.Is(err, engine.ErrPolicyViolation) {
        // report per-line, nothing was mutated
    }

SEE ALSO:
  - lifecycle.go: Produces these errors from action guards
  - quantity.go: Produces QuantityViolation
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when a required field is missing or
	// malformed. The document is not mutated.
	ErrValidation = errors.New("validation failed")

	// ErrPolicyViolation is returned when a line quantity edit breaks the
	// reconciliation policy. The prior accepted quantity is retained.
	ErrPolicyViolation = errors.New("quantity policy violation")

	// ErrUnauthorized is returned when the actor is not in the approver
	// set for the document's current flow level.
	ErrUnauthorized = errors.New("actor not authorized for flow level")

	// ErrRouting is returned when a send-back target level is illegal.
	ErrRouting = errors.New("invalid routing target")

	// ErrIllegalTransition is returned when the requested action is not
	// legal from the document's current state.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrPersistence is returned when the store call fails. The in-memory
	// document is unchanged and the whole action may be retried.
	ErrPersistence = errors.New("persistence failed")

	// ErrConflict is returned when the store detects that someone else
	// changed the document since it was read.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrNotFound is returned when a referenced document doesn't exist.
	ErrNotFound = errors.New("document not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the field that failed a precondition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// QuantityViolation reports a rejected quantity edit on one line.
type QuantityViolation struct {
	SerialNo    int
	Proposed    int64
	OriginalQty int64
	PdoType     PdoType
}

func (e *QuantityViolation) Error() string {
	return fmt.Sprintf(
		"line %d: cannot increase quantity beyond original value (%d) for PDO type '%s'",
		e.SerialNo, e.OriginalQty, e.PdoType)
}

func (e *QuantityViolation) Unwrap() error { return ErrPolicyViolation }

// AuthorizationError reports which actor was refused at which tier.
type AuthorizationError struct {
	Actor string
	Level FlowLevel
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %q is not an approver at flow level %d", e.Actor, e.Level)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// RoutingError reports an illegal send-back target.
type RoutingError struct {
	Current FlowLevel
	Target  FlowLevel
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("send-back target level %d is invalid from level %d", e.Target, e.Current)
}

func (e *RoutingError) Unwrap() error { return ErrRouting }

// TransitionError reports an action attempted from a state that does not
// permit it.
type TransitionError struct {
	Action Action
	State  State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("action %s is not allowed from state %s", e.Action, e.State)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// PersistenceError wraps a store failure. The action may be retried as a
// whole; the engine performed no partial commit.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	if errors.Is(e.Err, ErrConflict) {
		return e.Err
	}
	return ErrPersistence
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if retrying the whole action might succeed.
// Conflicts and store failures qualify; guard failures never do.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid caller input
// rather than a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPolicyViolation) ||
		errors.Is(err, ErrRouting) ||
		errors.Is(err, ErrIllegalTransition)
}
