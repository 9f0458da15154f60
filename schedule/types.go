/*
types.go - Core domain records for the rotation engine

PURPOSE:
  Single place for the entities shared by every engine component: employees,
  groups/areas, shift rules, vacation records, reservation blocks and their
  assignments, holidays, and absence thresholds.

DESIGN:
  Records are plain structs keyed by typed string IDs. Relations are resolved
  through Store lookups, never through embedded object references, so there
  are no cyclic graphs to serialize or snapshot.

STATE NAMES:
  Block and assignment states keep the union's Spanish vocabulary (Activo,
  Asignado, NoRespondio, ...) because those strings appear in persisted rows,
  notifications, and the collective agreement paperwork. Identifiers in code
  are English.

SEE ALSO:
  - store.go: Persistence contracts over these records
  - errors.go: Typed failure kinds
*/
package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type GroupID string
type AreaID string
type BlockID string
type AssignmentID string
type RecordID string
type RuleCode string

// =============================================================================
// SHIFT RULES
// =============================================================================

// ShiftRule is a named repeating pattern of day codes. The sequence length is
// always a multiple of 7; each 7-code window is one crew week.
type ShiftRule struct {
	Code     RuleCode
	Sequence []string
}

// Valid reports whether the sequence respects the week-multiple invariant.
func (r ShiftRule) Valid() bool {
	return len(r.Sequence) > 0 && len(r.Sequence)%7 == 0
}

// Weeks returns how many phase-shifted crews the rule supports.
func (r ShiftRule) Weeks() int { return len(r.Sequence) / 7 }

// =============================================================================
// PEOPLE AND ORGANIZATION
// =============================================================================

type Employee struct {
	ID        EmployeeID
	Name      string
	Payroll   string // payroll number; empty = not yet on payroll
	GroupID   GroupID
	HireDate  Date
	Active    bool
	CreatedAt time.Time
}

type Group struct {
	ID              GroupID
	Name            string
	AreaID          AreaID
	RuleReference   string // e.g. "R0144_04"
	PersonsPerShift int    // reservation block capacity
	ShiftHours      int    // reservation block duration in hours
	Active          bool
}

type Area struct {
	ID       AreaID
	Name     string
	Manning  int // base required headcount
	Managers []EmployeeID
}

// =============================================================================
// VACATION RECORDS
// =============================================================================

type RecordKind string

const (
	KindAutomatic RecordKind = "automatic"
	KindAnnual    RecordKind = "annual"
)

type RecordOrigin string

const (
	OriginAutomatic RecordOrigin = "automatic"
	OriginManual    RecordOrigin = "manual"
)

type RecordState string

const (
	RecordActive   RecordState = "active"
	RecordCanceled RecordState = "canceled"
)

// VacationRecord is one employee-day of vacation. The (EmployeeID, Date)
// pair is unique among active records.
type VacationRecord struct {
	ID           RecordID
	EmployeeID   EmployeeID
	Date         Date
	Kind         RecordKind
	Origin       RecordOrigin
	State        RecordState
	Exchangeable bool
	CreatedAt    time.Time
}

// =============================================================================
// HOLIDAYS AND INACTIVE SPANS
// =============================================================================

// Holiday is a single inactive date or, when EndDate is set, a named span
// (Holy Week pauses rotation for a full week).
type Holiday struct {
	ID        string
	Name      string
	Date      Date
	EndDate   *Date
	Active    bool
	CreatedAt time.Time
}

// Covers reports whether d falls on the holiday (or inside its span).
func (h Holiday) Covers(d Date) bool {
	if h.EndDate != nil {
		return h.Date.BeforeOrEqual(d) && d.BeforeOrEqual(*h.EndDate)
	}
	return h.Date.Equal(d)
}

// =============================================================================
// ABSENCE THRESHOLDS
// =============================================================================

// PercentException overrides the global max-absence percentage for one
// group on one date.
type PercentException struct {
	ID         string
	GroupID    GroupID
	Date       Date
	MaxPercent decimal.Decimal
}

// ManningOverride replaces an area's base manning for one calendar month.
type ManningOverride struct {
	ID      string
	AreaID  AreaID
	Year    int
	Month   time.Month
	Manning int
	Active  bool
}

// =============================================================================
// RESERVATION BLOCKS
// =============================================================================

type BlockState string

const (
	BlockActive    BlockState = "Activo"
	BlockApproved  BlockState = "Aprobado"
	BlockCompleted BlockState = "Completado"
	BlockCanceled  BlockState = "Cancelado"
)

// ReservationBlock is a fixed-capacity time window during which its assigned
// employees may reserve vacation days. Exactly one block per group/year is
// the queue block; it is always the last one.
type ReservationBlock struct {
	ID             BlockID
	GroupID        GroupID
	GenerationYear int
	BlockNumber    int
	Start          time.Time
	End            time.Time
	Capacity       int
	IsQueue        bool
	State          BlockState
	ApprovedAt     *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

type AssignmentState string

const (
	AssignmentAssigned    AssignmentState = "Asignado"
	AssignmentReserved    AssignmentState = "Reservado"
	AssignmentCompleted   AssignmentState = "Completado"
	AssignmentTransferred AssignmentState = "Transferido"
	AssignmentNoResponse  AssignmentState = "NoRespondio"
)

// Open reports whether the assignment still occupies a live position in its
// block. Transferido rows are audit trail and never count toward capacity.
func (s AssignmentState) Open() bool { return s != AssignmentTransferred }

// BlockAssignment places one employee at one position of one block.
type BlockAssignment struct {
	ID           AssignmentID
	BlockID      BlockID
	EmployeeID   EmployeeID
	Position     int
	State        AssignmentState
	AssignedAt   time.Time
	CompletedAt  *time.Time
	Observations string
}

// BlockChange is the audit row written when an employee is manually moved
// between blocks.
type BlockChange struct {
	ID           string
	AssignmentID AssignmentID
	EmployeeID   EmployeeID
	FromBlockID  BlockID
	ToBlockID    BlockID
	Actor        string
	Reason       string
	ChangedAt    time.Time
}
