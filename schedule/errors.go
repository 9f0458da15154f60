/*
errors.go - Centralized error kinds for the rotation engine

PURPOSE:
  All error kinds in one place. Domain packages wrap these sentinels with
  structured context so callers can branch on cause with errors.Is/As
  instead of parsing messages.

ERROR KINDS:
  ErrNotFound     - referenced entity does not exist
  ErrConflict     - write collides with existing state (double booking,
                    blocks already generated, occupied position)
  ErrInvalidState - operation not legal in the entity's current state
  ErrInfeasible   - request exceeds an entitlement or admission limit
  ErrAborted      - batch operation gave up under a safety bound

USAGE:
  if errors.Is(err, schedule.ErrNotFound) { ... }

  var denied *schedule.AdmissionDeniedError
  if errors.As(err, &denied) { log(denied.PercentAbsence) }

SEE ALSO:
  - admission/: AdmissionDeniedError producer
  - blocks/: GenerationAbortedError producer
*/
package schedule

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a write collides with existing state,
	// e.g. a vacation day already taken or a block set already generated.
	ErrConflict = errors.New("conflicting state")

	// ErrInvalidState is returned when an operation is not legal in the
	// entity's current lifecycle state.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrInfeasible is returned when a request exceeds an entitlement or
	// no admissible slot exists.
	ErrInfeasible = errors.New("request not feasible")

	// ErrAborted is returned when a batch operation hits a safety bound
	// and gives up for one unit of work.
	ErrAborted = errors.New("operation aborted")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies which entity was missing.
type NotFoundError struct {
	Kind string // "employee", "group", "block", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AdmissionDeniedError reports why one more absence was not admissible.
type AdmissionDeniedError struct {
	GroupID        GroupID
	Date           Date
	PercentAbsence decimal.Decimal
	MaxAllowed     decimal.Decimal
	SmallGroup     bool
}

func (e *AdmissionDeniedError) Error() string {
	if e.SmallGroup {
		return fmt.Sprintf("admission denied for group %s on %s: small group already has an absence", e.GroupID, e.Date)
	}
	return fmt.Sprintf("admission denied for group %s on %s: absence %s%% exceeds max %s%%",
		e.GroupID, e.Date, e.PercentAbsence.StringFixed(2), e.MaxAllowed.StringFixed(2))
}

func (e *AdmissionDeniedError) Unwrap() error { return ErrInfeasible }

// InfeasibleError reports an entitlement or planning limit that was exceeded.
type InfeasibleError struct {
	EmployeeID EmployeeID
	Reason     string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("infeasible for employee %s: %s", e.EmployeeID, e.Reason)
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }

// GenerationAbortedError reports a block-generation safety-bound abort for
// one group. Other groups in the same batch continue.
type GenerationAbortedError struct {
	GroupID   GroupID
	Year      int
	Candidate Date
}

func (e *GenerationAbortedError) Error() string {
	return fmt.Sprintf("block generation aborted for group %s year %d: candidate %s exceeds the one-year bound",
		e.GroupID, e.Year, e.Candidate)
}

func (e *GenerationAbortedError) Unwrap() error { return ErrAborted }

// InvalidStateError reports an operation attempted in the wrong lifecycle state.
type InvalidStateError struct {
	Kind  string
	ID    string
	State string
	Op    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %s: cannot %s", e.Kind, e.ID, e.State, e.Op)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict returns true if the error indicates a state collision.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsClientError returns true if the error is due to invalid client input
// rather than an internal fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInfeasible)
}
