/*
errors.go - Centralized error types for the mutation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages and HTTP handlers map these to responses; nothing
  downstream invents its own failure vocabulary.

ERROR CATEGORIES:
  1. Validation errors - malformed input, every violated field reported
  2. Authorization errors - caller is not a member, or role too low
  3. Transition errors - status change not in the entity's table
  4. Persistence errors - storage unreachable or optimistic-lock conflict
  5. Metric errors - computed aggregate outside its valid domain

PROPAGATION POLICY:
  Validation and authorization failures are terminal for a request.
  Only ErrPersistenceUnavailable is eligible for caller-initiated retry,
  because every write is all-or-nothing. ErrVersionConflict is internal:
  services re-read once and resolve it to success or IllegalTransition.

USAGE:
  if errors.Is(err, engine.ErrIllegalTransition) { ... }

SEE ALSO:
  - transition.go: Produces IllegalTransitionError
  - authz.go: Produces NotAMemberError / InsufficientRoleError
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the base of every schema validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrNotAMember is returned when the caller has no role binding
	// for the target farm.
	ErrNotAMember = errors.New("caller is not a member of this farm")

	// ErrInsufficientRole is returned when the caller's role is below
	// the minimum required for the action.
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrIllegalTransition is returned when a status change is not present
	// in the entity's transition table.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrNotFound is returned when a referenced record does not exist
	// (or belongs to a different farm, which is reported identically).
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned by stores when an optimistic update
	// observed a stale row version. Services re-read and decide again.
	ErrVersionConflict = errors.New("concurrent modification detected")

	// ErrPersistenceUnavailable is returned when the storage backend could
	// not be reached. Safe to retry: no partial write occurred.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrAnomalousMetric is returned when a computed aggregate falls outside
	// its valid domain (e.g. compliance above 100%).
	ErrAnomalousMetric = errors.New("anomalous metric")

	// ErrLastOwner is returned when removing or demoting the only owner
	// of a farm. Every farm has exactly one owner at all times.
	ErrLastOwner = errors.New("farm must retain exactly one owner")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldViolation describes a single violated constraint on one field.
type FieldViolation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Received   any    `json:"receivedValue"`
}

// ValidationError enumerates every violated field, not just the first.
// Validation is all-or-nothing: when this error is returned, no fields
// were passed downstream.
type ValidationError struct {
	Shape      string
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	fields := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		fields[i] = fmt.Sprintf("%s: %s", v.Field, v.Constraint)
	}
	return fmt.Sprintf("validation of %s failed: %s", e.Shape, strings.Join(fields, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotAMemberError identifies the caller and farm of a failed membership check.
type NotAMemberError struct {
	FarmID FarmID
	UserID UserID
}

func (e *NotAMemberError) Error() string {
	return fmt.Sprintf("user %s is not a member of farm %s", e.UserID, e.FarmID)
}

func (e *NotAMemberError) Unwrap() error { return ErrNotAMember }

// InsufficientRoleError reports the role the caller holds and the minimum
// the action requires.
type InsufficientRoleError struct {
	Action   Action
	Held     Role
	Required Role
}

func (e *InsufficientRoleError) Error() string {
	return fmt.Sprintf("action %s requires role %s, caller holds %s", e.Action, e.Required, e.Held)
}

func (e *InsufficientRoleError) Unwrap() error { return ErrInsufficientRole }

// IllegalTransitionError reports the current and attempted status so the
// caller can reconcile its view of the entity.
type IllegalTransitionError struct {
	Kind      EntityKind
	Current   Status
	Attempted Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Kind, e.Current, e.Attempted)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// AnomalousMetricError flags an aggregate outside its valid domain.
type AnomalousMetricError struct {
	Metric string
	Value  string
	Bound  string
}

func (e *AnomalousMetricError) Error() string {
	return fmt.Sprintf("%s value %s outside valid domain (%s)", e.Metric, e.Value, e.Bound)
}

func (e *AnomalousMetricError) Unwrap() error { return ErrAnomalousMetric }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on a caller retry.
// Only persistence outages qualify: writes are atomic, so nothing partial
// was applied.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistenceUnavailable)
}

// IsClientError returns true if the error is due to invalid client input
// or an action the caller is not permitted to take.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotAMember) ||
		errors.Is(err, ErrInsufficientRole) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrLastOwner)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
