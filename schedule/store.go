/*
store.go - Persistence contracts for the rotation engine

PURPOSE:
  Defines the interface between the engine and the database. Every read a
  scheduling decision depends on goes through Store so it can be made
  consistent inside the enclosing transaction.

KEY INTERFACES:
  Store:   CRUD + filtered queries over all engine records
  TxStore: Store plus WithTx for atomic multi-row operations

TRANSACTION CONTRACT:
  WithTx(ctx, fn) runs fn against a Store view whose reads observe its own
  writes. If fn returns an error the whole unit rolls back. The lifecycle
  sweep wraps each block in one such unit; the reservation and planner
  write paths wrap each operation in one.

IMPLEMENTATIONS:
  - schedule/store: in-memory, snapshot rollback (tests, dev)
  - store/sqlite:   production SQLite, BEGIN/COMMIT

SEE ALSO:
  - types.go: The records these methods move
  - blocks/, vacation/: The write paths that demand WithTx
*/
package schedule

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Full persistence surface
// =============================================================================

type Store interface {
	// Shift rules
	GetShiftRule(ctx context.Context, code RuleCode) (*ShiftRule, error)
	ListShiftRules(ctx context.Context) ([]ShiftRule, error)
	SaveShiftRule(ctx context.Context, rule ShiftRule) error

	// Employees
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	ListEmployeesByGroup(ctx context.Context, groupID GroupID) ([]Employee, error)
	SaveEmployee(ctx context.Context, emp Employee) error

	// Groups and areas
	GetGroup(ctx context.Context, id GroupID) (*Group, error)
	ListGroups(ctx context.Context) ([]Group, error)
	SaveGroup(ctx context.Context, g Group) error
	GetArea(ctx context.Context, id AreaID) (*Area, error)
	SaveArea(ctx context.Context, a Area) error

	// Holidays and inactive spans
	IsHoliday(ctx context.Context, d Date) (bool, error)
	ListHolidays(ctx context.Context, year int) ([]Holiday, error)
	SaveHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	// LatestSpanEnding returns the most recent active span whose name
	// contains nameContains and whose end date is on or before endBy.
	// Nil when no such span exists.
	LatestSpanEnding(ctx context.Context, nameContains string, endBy Date) (*Holiday, error)

	// Absence thresholds and manning
	PercentExceptionFor(ctx context.Context, groupID GroupID, d Date) (*PercentException, error)
	SavePercentException(ctx context.Context, e PercentException) error
	GlobalMaxPercent(ctx context.Context) (*decimal.Decimal, error)
	SaveGlobalMaxPercent(ctx context.Context, pct decimal.Decimal) error
	ManningOverrideFor(ctx context.Context, areaID AreaID, year int, month time.Month) (*ManningOverride, error)
	SaveManningOverride(ctx context.Context, o ManningOverride) error

	// Vacation records
	// CountAbsences counts distinct employees of the group with an active
	// vacation record on d.
	CountAbsences(ctx context.Context, groupID GroupID, d Date) (int, error)
	IsAbsentOn(ctx context.Context, employeeID EmployeeID, d Date) (bool, error)
	SaveVacationRecord(ctx context.Context, rec VacationRecord) error
	ListVacationRecords(ctx context.Context, employeeID EmployeeID, year int) ([]VacationRecord, error)
	// DeleteVacationRecords removes the year's records of the given origin
	// and returns how many were removed. Administrative reversal only.
	DeleteVacationRecords(ctx context.Context, origin RecordOrigin, year int) (int, error)

	// Reservation blocks
	SaveBlock(ctx context.Context, b ReservationBlock) error
	GetBlock(ctx context.Context, id BlockID) (*ReservationBlock, error)
	ListBlocks(ctx context.Context, groupID GroupID, year int) ([]ReservationBlock, error)
	ListBlocksForYear(ctx context.Context, year int) ([]ReservationBlock, error)
	ListBlocksInStates(ctx context.Context, states ...BlockState) ([]ReservationBlock, error)
	// DeleteBlocks removes a group/year's blocks and their assignments.
	// Administrative regenerate only.
	DeleteBlocks(ctx context.Context, groupID GroupID, year int) error

	// Block assignments
	SaveAssignment(ctx context.Context, a BlockAssignment) error
	GetAssignment(ctx context.Context, id AssignmentID) (*BlockAssignment, error)
	ListAssignments(ctx context.Context, blockID BlockID) ([]BlockAssignment, error)
	AssignmentsForEmployee(ctx context.Context, employeeID EmployeeID, year int) ([]BlockAssignment, error)
	SaveBlockChange(ctx context.Context, c BlockChange) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
