// Package store provides the in-memory Store implementation.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/rotation-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	// serializes WithTx units; individual methods stay usable inside fn
	txMu sync.Mutex

	rules       map[schedule.RuleCode]schedule.ShiftRule
	employees   map[schedule.EmployeeID]schedule.Employee
	groups      map[schedule.GroupID]schedule.Group
	areas       map[schedule.AreaID]schedule.Area
	holidays    map[string]schedule.Holiday
	exceptions  []schedule.PercentException
	maxPercent  *decimal.Decimal
	overrides   []schedule.ManningOverride
	records     map[schedule.RecordID]schedule.VacationRecord
	blocks      map[schedule.BlockID]schedule.ReservationBlock
	assignments map[schedule.AssignmentID]schedule.BlockAssignment
	changes     []schedule.BlockChange
}

func NewMemory() *Memory {
	return &Memory{
		rules:       make(map[schedule.RuleCode]schedule.ShiftRule),
		employees:   make(map[schedule.EmployeeID]schedule.Employee),
		groups:      make(map[schedule.GroupID]schedule.Group),
		areas:       make(map[schedule.AreaID]schedule.Area),
		holidays:    make(map[string]schedule.Holiday),
		records:     make(map[schedule.RecordID]schedule.VacationRecord),
		blocks:      make(map[schedule.BlockID]schedule.ReservationBlock),
		assignments: make(map[schedule.AssignmentID]schedule.BlockAssignment),
	}
}

// =============================================================================
// SHIFT RULES
// =============================================================================

func (m *Memory) GetShiftRule(_ context.Context, code schedule.RuleCode) (*schedule.ShiftRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[code]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListShiftRules(_ context.Context) ([]schedule.ShiftRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.ShiftRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) SaveShiftRule(_ context.Context, rule schedule.ShiftRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.Code] = rule
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id schedule.EmployeeID) (*schedule.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]schedule.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListEmployeesByGroup returns the group's active employees.
func (m *Memory) ListEmployeesByGroup(_ context.Context, groupID schedule.GroupID) ([]schedule.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.Employee
	for _, e := range m.employees {
		if e.GroupID == groupID && e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveEmployee(_ context.Context, emp schedule.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

// =============================================================================
// GROUPS AND AREAS
// =============================================================================

func (m *Memory) GetGroup(_ context.Context, id schedule.GroupID) (*schedule.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *Memory) ListGroups(_ context.Context) ([]schedule.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveGroup(_ context.Context, g schedule.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g
	return nil
}

func (m *Memory) GetArea(_ context.Context, id schedule.AreaID) (*schedule.Area, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.areas[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) SaveArea(_ context.Context, a schedule.Area) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.areas[a.ID] = a
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) IsHoliday(_ context.Context, d schedule.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.holidays {
		if h.Active && h.Covers(d) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListHolidays(_ context.Context, year int) ([]schedule.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.Holiday
	for _, h := range m.holidays {
		if h.Date.Year() == year || (h.EndDate != nil && h.EndDate.Year() == year) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) SaveHoliday(_ context.Context, h schedule.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holidays, id)
	return nil
}

func (m *Memory) LatestSpanEnding(_ context.Context, nameContains string, endBy schedule.Date) (*schedule.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *schedule.Holiday
	for _, h := range m.holidays {
		if !h.Active || h.EndDate == nil {
			continue
		}
		if !strings.Contains(strings.ToLower(h.Name), strings.ToLower(nameContains)) {
			continue
		}
		if h.EndDate.After(endBy) {
			continue
		}
		if best == nil || h.EndDate.After(*best.EndDate) {
			hc := h
			best = &hc
		}
	}
	return best, nil
}

// =============================================================================
// THRESHOLDS AND MANNING
// =============================================================================

func (m *Memory) PercentExceptionFor(_ context.Context, groupID schedule.GroupID, d schedule.Date) (*schedule.PercentException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.exceptions {
		if e.GroupID == groupID && e.Date.Equal(d) {
			ec := e
			return &ec, nil
		}
	}
	return nil, nil
}

func (m *Memory) SavePercentException(_ context.Context, e schedule.PercentException) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, old := range m.exceptions {
		if old.ID == e.ID {
			m.exceptions[i] = e
			return nil
		}
	}
	m.exceptions = append(m.exceptions, e)
	return nil
}

func (m *Memory) GlobalMaxPercent(_ context.Context) (*decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.maxPercent == nil {
		return nil, nil
	}
	p := *m.maxPercent
	return &p, nil
}

func (m *Memory) SaveGlobalMaxPercent(_ context.Context, pct decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxPercent = &pct
	return nil
}

func (m *Memory) ManningOverrideFor(_ context.Context, areaID schedule.AreaID, year int, month time.Month) (*schedule.ManningOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.overrides {
		if o.AreaID == areaID && o.Year == year && o.Month == month && o.Active {
			oc := o
			return &oc, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveManningOverride(_ context.Context, o schedule.ManningOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, old := range m.overrides {
		if old.ID == o.ID {
			m.overrides[i] = o
			return nil
		}
	}
	m.overrides = append(m.overrides, o)
	return nil
}

// =============================================================================
// VACATION RECORDS
// =============================================================================

func (m *Memory) CountAbsences(_ context.Context, groupID schedule.GroupID, d schedule.Date) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[schedule.EmployeeID]bool)
	for _, rec := range m.records {
		if rec.State != schedule.RecordActive || !rec.Date.Equal(d) {
			continue
		}
		emp, ok := m.employees[rec.EmployeeID]
		if !ok || emp.GroupID != groupID {
			continue
		}
		seen[rec.EmployeeID] = true
	}
	return len(seen), nil
}

func (m *Memory) IsAbsentOn(_ context.Context, employeeID schedule.EmployeeID, d schedule.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if rec.EmployeeID == employeeID && rec.State == schedule.RecordActive && rec.Date.Equal(d) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) SaveVacationRecord(_ context.Context, rec schedule.VacationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// uniqueness on (employee, date) among active records
	for _, old := range m.records {
		if old.ID != rec.ID && old.EmployeeID == rec.EmployeeID &&
			old.State == schedule.RecordActive && rec.State == schedule.RecordActive &&
			old.Date.Equal(rec.Date) {
			return schedule.ErrConflict
		}
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *Memory) ListVacationRecords(_ context.Context, employeeID schedule.EmployeeID, year int) ([]schedule.VacationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.VacationRecord
	for _, rec := range m.records {
		if rec.EmployeeID == employeeID && rec.Date.Year() == year {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) DeleteVacationRecords(_ context.Context, origin schedule.RecordOrigin, year int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, rec := range m.records {
		if rec.Origin == origin && rec.Date.Year() == year {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

// =============================================================================
// RESERVATION BLOCKS
// =============================================================================

func (m *Memory) SaveBlock(_ context.Context, b schedule.ReservationBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[b.ID] = b
	return nil
}

func (m *Memory) GetBlock(_ context.Context, id schedule.BlockID) (*schedule.ReservationBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) ListBlocks(_ context.Context, groupID schedule.GroupID, year int) ([]schedule.ReservationBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.ReservationBlock
	for _, b := range m.blocks {
		if b.GroupID == groupID && b.GenerationYear == year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockNumber < out[j].BlockNumber })
	return out, nil
}

func (m *Memory) ListBlocksForYear(_ context.Context, year int) ([]schedule.ReservationBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.ReservationBlock
	for _, b := range m.blocks {
		if b.GenerationYear == year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupID != out[j].GroupID {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].BlockNumber < out[j].BlockNumber
	})
	return out, nil
}

func (m *Memory) ListBlocksInStates(_ context.Context, states ...schedule.BlockState) ([]schedule.ReservationBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[schedule.BlockState]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	var out []schedule.ReservationBlock
	for _, b := range m.blocks {
		if want[b.State] {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupID != out[j].GroupID {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].BlockNumber < out[j].BlockNumber
	})
	return out, nil
}

func (m *Memory) DeleteBlocks(_ context.Context, groupID schedule.GroupID, year int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, b := range m.blocks {
		if b.GroupID != groupID || b.GenerationYear != year {
			continue
		}
		for aid, a := range m.assignments {
			if a.BlockID == id {
				delete(m.assignments, aid)
			}
		}
		delete(m.blocks, id)
	}
	return nil
}

// =============================================================================
// BLOCK ASSIGNMENTS
// =============================================================================

func (m *Memory) SaveAssignment(_ context.Context, a schedule.BlockAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// one open assignment per employee per block
	if a.State.Open() {
		for _, old := range m.assignments {
			if old.ID != a.ID && old.BlockID == a.BlockID &&
				old.EmployeeID == a.EmployeeID && old.State.Open() {
				return schedule.ErrConflict
			}
		}
	}
	m.assignments[a.ID] = a
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, id schedule.AssignmentID) (*schedule.BlockAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) ListAssignments(_ context.Context, blockID schedule.BlockID) ([]schedule.BlockAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.BlockAssignment
	for _, a := range m.assignments {
		if a.BlockID == blockID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *Memory) AssignmentsForEmployee(_ context.Context, employeeID schedule.EmployeeID, year int) ([]schedule.BlockAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.BlockAssignment
	for _, a := range m.assignments {
		if a.EmployeeID != employeeID {
			continue
		}
		b, ok := m.blocks[a.BlockID]
		if !ok || b.GenerationYear != year {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (m *Memory) SaveBlockChange(_ context.Context, c schedule.BlockChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, c)
	return nil
}

// BlockChanges returns the audit trail (test helper; not part of Store).
func (m *Memory) BlockChanges() []schedule.BlockChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.BlockChange, len(m.changes))
	copy(out, m.changes)
	return out
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback
// =============================================================================

// WithTx executes fn as one atomic unit. Units are serialized; on error the
// whole store is restored from a snapshot taken at entry.
func (m *Memory) WithTx(ctx context.Context, fn func(schedule.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	rules       map[schedule.RuleCode]schedule.ShiftRule
	employees   map[schedule.EmployeeID]schedule.Employee
	groups      map[schedule.GroupID]schedule.Group
	areas       map[schedule.AreaID]schedule.Area
	holidays    map[string]schedule.Holiday
	exceptions  []schedule.PercentException
	maxPercent  *decimal.Decimal
	overrides   []schedule.ManningOverride
	records     map[schedule.RecordID]schedule.VacationRecord
	blocks      map[schedule.BlockID]schedule.ReservationBlock
	assignments map[schedule.AssignmentID]schedule.BlockAssignment
	changes     []schedule.BlockChange
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memorySnapshot{
		rules:       copyMap(m.rules),
		employees:   copyMap(m.employees),
		groups:      copyMap(m.groups),
		areas:       copyMap(m.areas),
		holidays:    copyMap(m.holidays),
		exceptions:  append([]schedule.PercentException{}, m.exceptions...),
		maxPercent:  m.maxPercent,
		overrides:   append([]schedule.ManningOverride{}, m.overrides...),
		records:     copyMap(m.records),
		blocks:      copyMap(m.blocks),
		assignments: copyMap(m.assignments),
		changes:     append([]schedule.BlockChange{}, m.changes...),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = s.rules
	m.employees = s.employees
	m.groups = s.groups
	m.areas = s.areas
	m.holidays = s.holidays
	m.exceptions = s.exceptions
	m.maxPercent = s.maxPercent
	m.overrides = s.overrides
	m.records = s.records
	m.blocks = s.blocks
	m.assignments = s.assignments
	m.changes = s.changes
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
