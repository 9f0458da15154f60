/*
Package sqlite provides the SQLite-backed implementation of schedule.TxStore.

PURPOSE:
  Persists every engine record (shift rules, employees, groups, areas,
  holidays, thresholds, vacation records, reservation blocks, assignments)
  in a single SQLite file. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  shift_rules:        Named rotation sequences
  employees:          People, keyed to their shift group
  groups/areas:       Organization and manning baselines
  holidays:           Inactive dates and named spans (Holy Week)
  vacation_records:   One row per employee-day of vacation
  blocks:             Reservation block windows per group/year
  block_assignments:  Employee positions inside blocks
  block_changes:      Audit trail of manual transfers

UNIQUENESS:
  Two invariants are enforced at the index level rather than in Go:
  - idx_vacation_unique_day: an employee cannot hold two active vacation
    records on the same date
  - idx_assignment_open: an employee cannot occupy two live positions in
    the same block (Transferido rows are audit history and exempt)
  Violations surface as schedule.ErrConflict.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging) so readers do not
  block the single writer, and foreign keys are enforced.

USAGE:
  store, err := sqlite.New("./data/rotation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/rotation-engine/schedule"
)

const (
	dateLayout          = "2006-01-02"
	globalMaxPercentKey = "global_max_percent"
)

// Store implements schedule.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query helper can
// run inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Shift rules (rotation sequences, comma-joined day codes)
	CREATE TABLE IF NOT EXISTS shift_rules (
		code TEXT PRIMARY KEY,
		sequence TEXT NOT NULL
	);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		payroll TEXT NOT NULL DEFAULT '',
		group_id TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_group
		ON employees(group_id, active);

	-- Groups and areas
	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		area_id TEXT NOT NULL,
		rule_reference TEXT NOT NULL,
		persons_per_shift INTEGER NOT NULL DEFAULT 0,
		shift_hours INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS areas (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		manning INTEGER NOT NULL DEFAULT 0,
		managers TEXT NOT NULL DEFAULT ''
	);

	-- Holidays and inactive spans (end_date NULL for single dates)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		end_date TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date
		ON holidays(date);

	-- Absence thresholds
	CREATE TABLE IF NOT EXISTS percent_exceptions (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		date TEXT NOT NULL,
		max_percent TEXT NOT NULL,
		UNIQUE(group_id, date)
	);

	CREATE TABLE IF NOT EXISTS manning_overrides (
		id TEXT PRIMARY KEY,
		area_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		manning INTEGER NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE(area_id, year, month)
	);

	-- Engine-wide settings
	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Vacation records (one row per employee-day)
	CREATE TABLE IF NOT EXISTS vacation_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		origin TEXT NOT NULL,
		state TEXT NOT NULL,
		exchangeable BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: an employee cannot hold two active records on the same day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_vacation_unique_day
		ON vacation_records(employee_id, date)
		WHERE state = 'active';

	CREATE INDEX IF NOT EXISTS idx_vacation_date
		ON vacation_records(date, state);
	CREATE INDEX IF NOT EXISTS idx_vacation_employee
		ON vacation_records(employee_id, date);

	-- Reservation blocks
	CREATE TABLE IF NOT EXISTS blocks (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		generation_year INTEGER NOT NULL,
		block_number INTEGER NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		capacity INTEGER NOT NULL,
		is_queue BOOLEAN NOT NULL DEFAULT FALSE,
		state TEXT NOT NULL,
		approved_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_blocks_group_year
		ON blocks(group_id, generation_year);
	CREATE INDEX IF NOT EXISTS idx_blocks_state
		ON blocks(state);

	-- Block assignments
	CREATE TABLE IF NOT EXISTS block_assignments (
		id TEXT PRIMARY KEY,
		block_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		state TEXT NOT NULL,
		assigned_at TEXT NOT NULL,
		completed_at TEXT,
		observations TEXT NOT NULL DEFAULT ''
	);

	-- CRITICAL: one live position per employee per block
	CREATE UNIQUE INDEX IF NOT EXISTS idx_assignment_open
		ON block_assignments(block_id, employee_id)
		WHERE state != 'Transferido';

	CREATE INDEX IF NOT EXISTS idx_assignments_block
		ON block_assignments(block_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_employee
		ON block_assignments(employee_id);

	-- Transfer audit trail
	CREATE TABLE IF NOT EXISTS block_changes (
		id TEXT PRIMARY KEY,
		assignment_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		from_block_id TEXT NOT NULL,
		to_block_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		reason TEXT NOT NULL,
		changed_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SHIFT RULES
// =============================================================================

func (s *Store) GetShiftRule(ctx context.Context, code schedule.RuleCode) (*schedule.ShiftRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getShiftRule(ctx, s.db, code)
}

func getShiftRule(ctx context.Context, q dbtx, code schedule.RuleCode) (*schedule.ShiftRule, error) {
	var seq string
	err := q.QueryRowContext(ctx,
		"SELECT sequence FROM shift_rules WHERE code = ?", string(code),
	).Scan(&seq)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schedule.ShiftRule{Code: code, Sequence: strings.Split(seq, ",")}, nil
}

func (s *Store) ListShiftRules(ctx context.Context) ([]schedule.ShiftRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listShiftRules(ctx, s.db)
}

func listShiftRules(ctx context.Context, q dbtx) ([]schedule.ShiftRule, error) {
	rows, err := q.QueryContext(ctx, "SELECT code, sequence FROM shift_rules ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []schedule.ShiftRule
	for rows.Next() {
		var code, seq string
		if err := rows.Scan(&code, &seq); err != nil {
			return nil, err
		}
		rules = append(rules, schedule.ShiftRule{
			Code:     schedule.RuleCode(code),
			Sequence: strings.Split(seq, ","),
		})
	}
	return rules, rows.Err()
}

func (s *Store) SaveShiftRule(ctx context.Context, rule schedule.ShiftRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveShiftRule(ctx, s.db, rule)
}

func saveShiftRule(ctx context.Context, q dbtx, rule schedule.ShiftRule) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO shift_rules (code, sequence) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET sequence = excluded.sequence
	`, string(rule.Code), strings.Join(rule.Sequence, ","))
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeCols = "id, name, payroll, group_id, hire_date, active, created_at"

func (s *Store) GetEmployee(ctx context.Context, id schedule.EmployeeID) (*schedule.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, id)
}

func getEmployee(ctx context.Context, q dbtx, id schedule.EmployeeID) (*schedule.Employee, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+employeeCols+" FROM employees WHERE id = ?", string(id))
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return emp, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]schedule.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEmployees(ctx, s.db,
		"SELECT "+employeeCols+" FROM employees ORDER BY name")
}

func (s *Store) ListEmployeesByGroup(ctx context.Context, groupID schedule.GroupID) ([]schedule.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEmployeesByGroup(ctx, s.db, groupID)
}

func listEmployeesByGroup(ctx context.Context, q dbtx, groupID schedule.GroupID) ([]schedule.Employee, error) {
	return queryEmployees(ctx, q,
		"SELECT "+employeeCols+" FROM employees WHERE group_id = ? AND active = TRUE ORDER BY name",
		string(groupID))
}

func queryEmployees(ctx context.Context, q dbtx, query string, args ...any) ([]schedule.Employee, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []schedule.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (*schedule.Employee, error) {
	var emp schedule.Employee
	var hireDate, createdAt string
	if err := row.Scan(&emp.ID, &emp.Name, &emp.Payroll, &emp.GroupID,
		&hireDate, &emp.Active, &createdAt); err != nil {
		return nil, err
	}
	emp.HireDate = parseDate(hireDate)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

func (s *Store) SaveEmployee(ctx context.Context, emp schedule.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, emp)
}

func saveEmployee(ctx context.Context, q dbtx, emp schedule.Employee) error {
	createdAt := emp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO employees (id, name, payroll, group_id, hire_date, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			payroll = excluded.payroll,
			group_id = excluded.group_id,
			hire_date = excluded.hire_date,
			active = excluded.active
	`,
		string(emp.ID), emp.Name, emp.Payroll, string(emp.GroupID),
		formatDate(emp.HireDate), emp.Active,
		createdAt.Format(time.RFC3339),
	)
	return err
}

// =============================================================================
// GROUPS AND AREAS
// =============================================================================

func (s *Store) GetGroup(ctx context.Context, id schedule.GroupID) (*schedule.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getGroup(ctx, s.db, id)
}

func getGroup(ctx context.Context, q dbtx, id schedule.GroupID) (*schedule.Group, error) {
	var g schedule.Group
	err := q.QueryRowContext(ctx, `
		SELECT id, name, area_id, rule_reference, persons_per_shift, shift_hours, active
		FROM groups WHERE id = ?`, string(id),
	).Scan(&g.ID, &g.Name, &g.AreaID, &g.RuleReference,
		&g.PersonsPerShift, &g.ShiftHours, &g.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]schedule.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listGroups(ctx, s.db)
}

func listGroups(ctx context.Context, q dbtx) ([]schedule.Group, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, area_id, rule_reference, persons_per_shift, shift_hours, active
		FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []schedule.Group
	for rows.Next() {
		var g schedule.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.AreaID, &g.RuleReference,
			&g.PersonsPerShift, &g.ShiftHours, &g.Active); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Store) SaveGroup(ctx context.Context, g schedule.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveGroup(ctx, s.db, g)
}

func saveGroup(ctx context.Context, q dbtx, g schedule.Group) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO groups (id, name, area_id, rule_reference, persons_per_shift, shift_hours, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			area_id = excluded.area_id,
			rule_reference = excluded.rule_reference,
			persons_per_shift = excluded.persons_per_shift,
			shift_hours = excluded.shift_hours,
			active = excluded.active
	`,
		string(g.ID), g.Name, string(g.AreaID), g.RuleReference,
		g.PersonsPerShift, g.ShiftHours, g.Active,
	)
	return err
}

func (s *Store) GetArea(ctx context.Context, id schedule.AreaID) (*schedule.Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getArea(ctx, s.db, id)
}

func getArea(ctx context.Context, q dbtx, id schedule.AreaID) (*schedule.Area, error) {
	var a schedule.Area
	var managers string
	err := q.QueryRowContext(ctx,
		"SELECT id, name, manning, managers FROM areas WHERE id = ?", string(id),
	).Scan(&a.ID, &a.Name, &a.Manning, &managers)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Managers = splitManagers(managers)
	return &a, nil
}

func (s *Store) SaveArea(ctx context.Context, a schedule.Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveArea(ctx, s.db, a)
}

func saveArea(ctx context.Context, q dbtx, a schedule.Area) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO areas (id, name, manning, managers)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			manning = excluded.manning,
			managers = excluded.managers
	`, string(a.ID), a.Name, a.Manning, joinManagers(a.Managers))
	return err
}

func joinManagers(ids []schedule.EmployeeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func splitManagers(s string) []schedule.EmployeeID {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]schedule.EmployeeID, len(parts))
	for i, p := range parts {
		ids[i] = schedule.EmployeeID(p)
	}
	return ids
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) IsHoliday(ctx context.Context, d schedule.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return isHoliday(ctx, s.db, d)
}

func isHoliday(ctx context.Context, q dbtx, d schedule.Date) (bool, error) {
	day := formatDate(d)
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM holidays
		WHERE active = TRUE
		  AND ((end_date IS NULL AND date = ?)
		    OR (end_date IS NOT NULL AND date <= ? AND end_date >= ?))
	`, day, day, day).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

const holidayCols = "id, name, date, end_date, active, created_at"

func (s *Store) ListHolidays(ctx context.Context, year int) ([]schedule.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listHolidays(ctx, s.db, year)
}

func listHolidays(ctx context.Context, q dbtx, year int) ([]schedule.Holiday, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+holidayCols+` FROM holidays
		WHERE strftime('%Y', date) = ? OR (end_date IS NOT NULL AND strftime('%Y', end_date) = ?)
		ORDER BY date ASC
	`, fmt.Sprintf("%04d", year), fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []schedule.Holiday
	for rows.Next() {
		h, err := scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		holidays = append(holidays, *h)
	}
	return holidays, rows.Err()
}

func scanHoliday(row scanner) (*schedule.Holiday, error) {
	var h schedule.Holiday
	var date, createdAt string
	var endDate sql.NullString
	if err := row.Scan(&h.ID, &h.Name, &date, &endDate, &h.Active, &createdAt); err != nil {
		return nil, err
	}
	h.Date = parseDate(date)
	if endDate.Valid {
		d := parseDate(endDate.String)
		h.EndDate = &d
	}
	h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &h, nil
}

func (s *Store) SaveHoliday(ctx context.Context, h schedule.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveHoliday(ctx, s.db, h)
}

func saveHoliday(ctx context.Context, q dbtx, h schedule.Holiday) error {
	var endDate *string
	if h.EndDate != nil {
		e := formatDate(*h.EndDate)
		endDate = &e
	}
	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO holidays (id, name, date, end_date, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			date = excluded.date,
			end_date = excluded.end_date,
			active = excluded.active
	`, h.ID, h.Name, formatDate(h.Date), endDate, h.Active,
		createdAt.Format(time.RFC3339))
	return err
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteHoliday(ctx, s.db, id)
}

func deleteHoliday(ctx context.Context, q dbtx, id string) error {
	_, err := q.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

func (s *Store) LatestSpanEnding(ctx context.Context, nameContains string, endBy schedule.Date) (*schedule.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestSpanEnding(ctx, s.db, nameContains, endBy)
}

func latestSpanEnding(ctx context.Context, q dbtx, nameContains string, endBy schedule.Date) (*schedule.Holiday, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+holidayCols+` FROM holidays
		WHERE active = TRUE
		  AND end_date IS NOT NULL
		  AND end_date <= ?
		  AND lower(name) LIKE '%' || lower(?) || '%'
		ORDER BY end_date DESC
		LIMIT 1
	`, formatDate(endBy), nameContains)
	h, err := scanHoliday(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// =============================================================================
// ABSENCE THRESHOLDS AND MANNING
// =============================================================================

func (s *Store) PercentExceptionFor(ctx context.Context, groupID schedule.GroupID, d schedule.Date) (*schedule.PercentException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return percentExceptionFor(ctx, s.db, groupID, d)
}

func percentExceptionFor(ctx context.Context, q dbtx, groupID schedule.GroupID, d schedule.Date) (*schedule.PercentException, error) {
	var e schedule.PercentException
	var date, pct string
	err := q.QueryRowContext(ctx, `
		SELECT id, group_id, date, max_percent FROM percent_exceptions
		WHERE group_id = ? AND date = ?
	`, string(groupID), formatDate(d)).Scan(&e.ID, &e.GroupID, &date, &pct)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Date = parseDate(date)
	e.MaxPercent, err = decimal.NewFromString(pct)
	if err != nil {
		return nil, fmt.Errorf("bad max_percent for exception %s: %w", e.ID, err)
	}
	return &e, nil
}

func (s *Store) SavePercentException(ctx context.Context, e schedule.PercentException) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePercentException(ctx, s.db, e)
}

func savePercentException(ctx context.Context, q dbtx, e schedule.PercentException) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO percent_exceptions (id, group_id, date, max_percent)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(group_id, date) DO UPDATE SET
			max_percent = excluded.max_percent
	`, e.ID, string(e.GroupID), formatDate(e.Date), e.MaxPercent.String())
	return err
}

func (s *Store) GlobalMaxPercent(ctx context.Context) (*decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return globalMaxPercent(ctx, s.db)
}

func globalMaxPercent(ctx context.Context, q dbtx) (*decimal.Decimal, error) {
	var value string
	err := q.QueryRowContext(ctx,
		"SELECT value FROM config WHERE key = ?", globalMaxPercentKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pct, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("bad %s config value: %w", globalMaxPercentKey, err)
	}
	return &pct, nil
}

func (s *Store) SaveGlobalMaxPercent(ctx context.Context, pct decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveGlobalMaxPercent(ctx, s.db, pct)
}

func saveGlobalMaxPercent(ctx context.Context, q dbtx, pct decimal.Decimal) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, globalMaxPercentKey, pct.String())
	return err
}

func (s *Store) ManningOverrideFor(ctx context.Context, areaID schedule.AreaID, year int, month time.Month) (*schedule.ManningOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return manningOverrideFor(ctx, s.db, areaID, year, month)
}

func manningOverrideFor(ctx context.Context, q dbtx, areaID schedule.AreaID, year int, month time.Month) (*schedule.ManningOverride, error) {
	var o schedule.ManningOverride
	var m int
	err := q.QueryRowContext(ctx, `
		SELECT id, area_id, year, month, manning, active FROM manning_overrides
		WHERE area_id = ? AND year = ? AND month = ? AND active = TRUE
	`, string(areaID), year, int(month)).Scan(&o.ID, &o.AreaID, &o.Year, &m, &o.Manning, &o.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Month = time.Month(m)
	return &o, nil
}

func (s *Store) SaveManningOverride(ctx context.Context, o schedule.ManningOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveManningOverride(ctx, s.db, o)
}

func saveManningOverride(ctx context.Context, q dbtx, o schedule.ManningOverride) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO manning_overrides (id, area_id, year, month, manning, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(area_id, year, month) DO UPDATE SET
			manning = excluded.manning,
			active = excluded.active
	`, o.ID, string(o.AreaID), o.Year, int(o.Month), o.Manning, o.Active)
	return err
}

// =============================================================================
// VACATION RECORDS
// =============================================================================

func (s *Store) CountAbsences(ctx context.Context, groupID schedule.GroupID, d schedule.Date) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countAbsences(ctx, s.db, groupID, d)
}

func countAbsences(ctx context.Context, q dbtx, groupID schedule.GroupID, d schedule.Date) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT vr.employee_id)
		FROM vacation_records vr
		JOIN employees e ON e.id = vr.employee_id
		WHERE e.group_id = ? AND vr.date = ? AND vr.state = 'active'
	`, string(groupID), formatDate(d)).Scan(&count)
	return count, err
}

func (s *Store) IsAbsentOn(ctx context.Context, employeeID schedule.EmployeeID, d schedule.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return isAbsentOn(ctx, s.db, employeeID, d)
}

func isAbsentOn(ctx context.Context, q dbtx, employeeID schedule.EmployeeID, d schedule.Date) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vacation_records
		WHERE employee_id = ? AND date = ? AND state = 'active'
	`, string(employeeID), formatDate(d)).Scan(&count)
	return count > 0, err
}

func (s *Store) SaveVacationRecord(ctx context.Context, rec schedule.VacationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveVacationRecord(ctx, s.db, rec)
}

func saveVacationRecord(ctx context.Context, q dbtx, rec schedule.VacationRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO vacation_records (id, employee_id, date, kind, origin, state, exchangeable, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			exchangeable = excluded.exchangeable
	`,
		string(rec.ID), string(rec.EmployeeID), formatDate(rec.Date),
		string(rec.Kind), string(rec.Origin), string(rec.State),
		rec.Exchangeable, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("employee %s already has a vacation record on %s: %w",
				rec.EmployeeID, rec.Date, schedule.ErrConflict)
		}
		return fmt.Errorf("failed to save vacation record: %w", err)
	}
	return nil
}

func (s *Store) ListVacationRecords(ctx context.Context, employeeID schedule.EmployeeID, year int) ([]schedule.VacationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listVacationRecords(ctx, s.db, employeeID, year)
}

func listVacationRecords(ctx context.Context, q dbtx, employeeID schedule.EmployeeID, year int) ([]schedule.VacationRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, employee_id, date, kind, origin, state, exchangeable, created_at
		FROM vacation_records
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, string(employeeID),
		fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []schedule.VacationRecord
	for rows.Next() {
		var rec schedule.VacationRecord
		var date, createdAt string
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &date, &rec.Kind,
			&rec.Origin, &rec.State, &rec.Exchangeable, &createdAt); err != nil {
			return nil, err
		}
		rec.Date = parseDate(date)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) DeleteVacationRecords(ctx context.Context, origin schedule.RecordOrigin, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteVacationRecords(ctx, s.db, origin, year)
}

func deleteVacationRecords(ctx context.Context, q dbtx, origin schedule.RecordOrigin, year int) (int, error) {
	res, err := q.ExecContext(ctx, `
		DELETE FROM vacation_records
		WHERE origin = ? AND date >= ? AND date <= ?
	`, string(origin),
		fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// RESERVATION BLOCKS
// =============================================================================

const blockCols = "id, group_id, generation_year, block_number, start_at, end_at, capacity, is_queue, state, approved_at, completed_at, created_at"

func (s *Store) SaveBlock(ctx context.Context, b schedule.ReservationBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBlock(ctx, s.db, b)
}

func saveBlock(ctx context.Context, q dbtx, b schedule.ReservationBlock) error {
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO blocks (id, group_id, generation_year, block_number, start_at, end_at,
			capacity, is_queue, state, approved_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			approved_at = excluded.approved_at,
			completed_at = excluded.completed_at
	`,
		string(b.ID), string(b.GroupID), b.GenerationYear, b.BlockNumber,
		b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339),
		b.Capacity, b.IsQueue, string(b.State),
		formatTimePtr(b.ApprovedAt), formatTimePtr(b.CompletedAt),
		createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetBlock(ctx context.Context, id schedule.BlockID) (*schedule.ReservationBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBlock(ctx, s.db, id)
}

func getBlock(ctx context.Context, q dbtx, id schedule.BlockID) (*schedule.ReservationBlock, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+blockCols+" FROM blocks WHERE id = ?", string(id))
	b, err := scanBlock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) ListBlocks(ctx context.Context, groupID schedule.GroupID, year int) ([]schedule.ReservationBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBlocks(ctx, s.db, groupID, year)
}

func listBlocks(ctx context.Context, q dbtx, groupID schedule.GroupID, year int) ([]schedule.ReservationBlock, error) {
	return queryBlocks(ctx, q,
		"SELECT "+blockCols+" FROM blocks WHERE group_id = ? AND generation_year = ? ORDER BY block_number",
		string(groupID), year)
}

func (s *Store) ListBlocksForYear(ctx context.Context, year int) ([]schedule.ReservationBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBlocksForYear(ctx, s.db, year)
}

func listBlocksForYear(ctx context.Context, q dbtx, year int) ([]schedule.ReservationBlock, error) {
	return queryBlocks(ctx, q,
		"SELECT "+blockCols+" FROM blocks WHERE generation_year = ? ORDER BY group_id, block_number",
		year)
}

func (s *Store) ListBlocksInStates(ctx context.Context, states ...schedule.BlockState) ([]schedule.ReservationBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBlocksInStates(ctx, s.db, states...)
}

func listBlocksInStates(ctx context.Context, q dbtx, states ...schedule.BlockState) ([]schedule.ReservationBlock, error) {
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(states))
	args := make([]any, len(states))
	for i, st := range states {
		placeholders[i] = "?"
		args[i] = string(st)
	}
	query := "SELECT " + blockCols + " FROM blocks WHERE state IN (" +
		strings.Join(placeholders, ",") + ") ORDER BY end_at ASC"
	return queryBlocks(ctx, q, query, args...)
}

func queryBlocks(ctx context.Context, q dbtx, query string, args ...any) ([]schedule.ReservationBlock, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []schedule.ReservationBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

func scanBlock(row scanner) (*schedule.ReservationBlock, error) {
	var b schedule.ReservationBlock
	var start, end, createdAt string
	var approvedAt, completedAt sql.NullString
	if err := row.Scan(&b.ID, &b.GroupID, &b.GenerationYear, &b.BlockNumber,
		&start, &end, &b.Capacity, &b.IsQueue, &b.State,
		&approvedAt, &completedAt, &createdAt); err != nil {
		return nil, err
	}
	b.Start, _ = time.Parse(time.RFC3339, start)
	b.End, _ = time.Parse(time.RFC3339, end)
	b.ApprovedAt = parseTimePtr(approvedAt)
	b.CompletedAt = parseTimePtr(completedAt)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &b, nil
}

func (s *Store) DeleteBlocks(ctx context.Context, groupID schedule.GroupID, year int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteBlocks(ctx, s.db, groupID, year)
}

func deleteBlocks(ctx context.Context, q dbtx, groupID schedule.GroupID, year int) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM block_assignments WHERE block_id IN
			(SELECT id FROM blocks WHERE group_id = ? AND generation_year = ?)
	`, string(groupID), year)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		"DELETE FROM blocks WHERE group_id = ? AND generation_year = ?",
		string(groupID), year)
	return err
}

// =============================================================================
// BLOCK ASSIGNMENTS
// =============================================================================

const assignmentCols = "id, block_id, employee_id, position, state, assigned_at, completed_at, observations"

func (s *Store) SaveAssignment(ctx context.Context, a schedule.BlockAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAssignment(ctx, s.db, a)
}

func saveAssignment(ctx context.Context, q dbtx, a schedule.BlockAssignment) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO block_assignments (id, block_id, employee_id, position, state,
			assigned_at, completed_at, observations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			block_id = excluded.block_id,
			position = excluded.position,
			state = excluded.state,
			completed_at = excluded.completed_at,
			observations = excluded.observations
	`,
		string(a.ID), string(a.BlockID), string(a.EmployeeID), a.Position,
		string(a.State), a.AssignedAt.Format(time.RFC3339),
		formatTimePtr(a.CompletedAt), a.Observations,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("employee %s already holds a position in block %s: %w",
				a.EmployeeID, a.BlockID, schedule.ErrConflict)
		}
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, id schedule.AssignmentID) (*schedule.BlockAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAssignment(ctx, s.db, id)
}

func getAssignment(ctx context.Context, q dbtx, id schedule.AssignmentID) (*schedule.BlockAssignment, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+assignmentCols+" FROM block_assignments WHERE id = ?", string(id))
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) ListAssignments(ctx context.Context, blockID schedule.BlockID) ([]schedule.BlockAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAssignments(ctx, s.db, blockID)
}

func listAssignments(ctx context.Context, q dbtx, blockID schedule.BlockID) ([]schedule.BlockAssignment, error) {
	return queryAssignments(ctx, q,
		"SELECT "+assignmentCols+" FROM block_assignments WHERE block_id = ? ORDER BY position",
		string(blockID))
}

func (s *Store) AssignmentsForEmployee(ctx context.Context, employeeID schedule.EmployeeID, year int) ([]schedule.BlockAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return assignmentsForEmployee(ctx, s.db, employeeID, year)
}

func assignmentsForEmployee(ctx context.Context, q dbtx, employeeID schedule.EmployeeID, year int) ([]schedule.BlockAssignment, error) {
	return queryAssignments(ctx, q, `
		SELECT a.id, a.block_id, a.employee_id, a.position, a.state,
		       a.assigned_at, a.completed_at, a.observations
		FROM block_assignments a
		JOIN blocks b ON b.id = a.block_id
		WHERE a.employee_id = ? AND b.generation_year = ?
		ORDER BY b.block_number, a.position
	`, string(employeeID), year)
}

func queryAssignments(ctx context.Context, q dbtx, query string, args ...any) ([]schedule.BlockAssignment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []schedule.BlockAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func scanAssignment(row scanner) (*schedule.BlockAssignment, error) {
	var a schedule.BlockAssignment
	var assignedAt string
	var completedAt sql.NullString
	if err := row.Scan(&a.ID, &a.BlockID, &a.EmployeeID, &a.Position,
		&a.State, &assignedAt, &completedAt, &a.Observations); err != nil {
		return nil, err
	}
	a.AssignedAt, _ = time.Parse(time.RFC3339, assignedAt)
	a.CompletedAt = parseTimePtr(completedAt)
	return &a, nil
}

func (s *Store) SaveBlockChange(ctx context.Context, c schedule.BlockChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBlockChange(ctx, s.db, c)
}

func saveBlockChange(ctx context.Context, q dbtx, c schedule.BlockChange) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO block_changes (id, assignment_id, employee_id, from_block_id,
			to_block_id, actor, reason, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, string(c.AssignmentID), string(c.EmployeeID),
		string(c.FromBlockID), string(c.ToBlockID),
		c.Actor, c.Reason, c.ChangedAt.Format(time.RFC3339),
	)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. The Store view handed to
// fn routes every read and write through the transaction, so fn observes its
// own writes and nothing leaks on rollback.
func (s *Store) WithTx(ctx context.Context, fn func(schedule.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore delegates the full Store surface to the query helpers with a
// *sql.Tx. The enclosing WithTx holds the store mutex, so no locking here.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetShiftRule(ctx context.Context, code schedule.RuleCode) (*schedule.ShiftRule, error) {
	return getShiftRule(ctx, ts.tx, code)
}

func (ts *txStore) ListShiftRules(ctx context.Context) ([]schedule.ShiftRule, error) {
	return listShiftRules(ctx, ts.tx)
}

func (ts *txStore) SaveShiftRule(ctx context.Context, rule schedule.ShiftRule) error {
	return saveShiftRule(ctx, ts.tx, rule)
}

func (ts *txStore) GetEmployee(ctx context.Context, id schedule.EmployeeID) (*schedule.Employee, error) {
	return getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]schedule.Employee, error) {
	return queryEmployees(ctx, ts.tx, "SELECT "+employeeCols+" FROM employees ORDER BY name")
}

func (ts *txStore) ListEmployeesByGroup(ctx context.Context, groupID schedule.GroupID) ([]schedule.Employee, error) {
	return listEmployeesByGroup(ctx, ts.tx, groupID)
}

func (ts *txStore) SaveEmployee(ctx context.Context, emp schedule.Employee) error {
	return saveEmployee(ctx, ts.tx, emp)
}

func (ts *txStore) GetGroup(ctx context.Context, id schedule.GroupID) (*schedule.Group, error) {
	return getGroup(ctx, ts.tx, id)
}

func (ts *txStore) ListGroups(ctx context.Context) ([]schedule.Group, error) {
	return listGroups(ctx, ts.tx)
}

func (ts *txStore) SaveGroup(ctx context.Context, g schedule.Group) error {
	return saveGroup(ctx, ts.tx, g)
}

func (ts *txStore) GetArea(ctx context.Context, id schedule.AreaID) (*schedule.Area, error) {
	return getArea(ctx, ts.tx, id)
}

func (ts *txStore) SaveArea(ctx context.Context, a schedule.Area) error {
	return saveArea(ctx, ts.tx, a)
}

func (ts *txStore) IsHoliday(ctx context.Context, d schedule.Date) (bool, error) {
	return isHoliday(ctx, ts.tx, d)
}

func (ts *txStore) ListHolidays(ctx context.Context, year int) ([]schedule.Holiday, error) {
	return listHolidays(ctx, ts.tx, year)
}

func (ts *txStore) SaveHoliday(ctx context.Context, h schedule.Holiday) error {
	return saveHoliday(ctx, ts.tx, h)
}

func (ts *txStore) DeleteHoliday(ctx context.Context, id string) error {
	return deleteHoliday(ctx, ts.tx, id)
}

func (ts *txStore) LatestSpanEnding(ctx context.Context, nameContains string, endBy schedule.Date) (*schedule.Holiday, error) {
	return latestSpanEnding(ctx, ts.tx, nameContains, endBy)
}

func (ts *txStore) PercentExceptionFor(ctx context.Context, groupID schedule.GroupID, d schedule.Date) (*schedule.PercentException, error) {
	return percentExceptionFor(ctx, ts.tx, groupID, d)
}

func (ts *txStore) SavePercentException(ctx context.Context, e schedule.PercentException) error {
	return savePercentException(ctx, ts.tx, e)
}

func (ts *txStore) GlobalMaxPercent(ctx context.Context) (*decimal.Decimal, error) {
	return globalMaxPercent(ctx, ts.tx)
}

func (ts *txStore) SaveGlobalMaxPercent(ctx context.Context, pct decimal.Decimal) error {
	return saveGlobalMaxPercent(ctx, ts.tx, pct)
}

func (ts *txStore) ManningOverrideFor(ctx context.Context, areaID schedule.AreaID, year int, month time.Month) (*schedule.ManningOverride, error) {
	return manningOverrideFor(ctx, ts.tx, areaID, year, month)
}

func (ts *txStore) SaveManningOverride(ctx context.Context, o schedule.ManningOverride) error {
	return saveManningOverride(ctx, ts.tx, o)
}

func (ts *txStore) CountAbsences(ctx context.Context, groupID schedule.GroupID, d schedule.Date) (int, error) {
	return countAbsences(ctx, ts.tx, groupID, d)
}

func (ts *txStore) IsAbsentOn(ctx context.Context, employeeID schedule.EmployeeID, d schedule.Date) (bool, error) {
	return isAbsentOn(ctx, ts.tx, employeeID, d)
}

func (ts *txStore) SaveVacationRecord(ctx context.Context, rec schedule.VacationRecord) error {
	return saveVacationRecord(ctx, ts.tx, rec)
}

func (ts *txStore) ListVacationRecords(ctx context.Context, employeeID schedule.EmployeeID, year int) ([]schedule.VacationRecord, error) {
	return listVacationRecords(ctx, ts.tx, employeeID, year)
}

func (ts *txStore) DeleteVacationRecords(ctx context.Context, origin schedule.RecordOrigin, year int) (int, error) {
	return deleteVacationRecords(ctx, ts.tx, origin, year)
}

func (ts *txStore) SaveBlock(ctx context.Context, b schedule.ReservationBlock) error {
	return saveBlock(ctx, ts.tx, b)
}

func (ts *txStore) GetBlock(ctx context.Context, id schedule.BlockID) (*schedule.ReservationBlock, error) {
	return getBlock(ctx, ts.tx, id)
}

func (ts *txStore) ListBlocks(ctx context.Context, groupID schedule.GroupID, year int) ([]schedule.ReservationBlock, error) {
	return listBlocks(ctx, ts.tx, groupID, year)
}

func (ts *txStore) ListBlocksForYear(ctx context.Context, year int) ([]schedule.ReservationBlock, error) {
	return listBlocksForYear(ctx, ts.tx, year)
}

func (ts *txStore) ListBlocksInStates(ctx context.Context, states ...schedule.BlockState) ([]schedule.ReservationBlock, error) {
	return listBlocksInStates(ctx, ts.tx, states...)
}

func (ts *txStore) DeleteBlocks(ctx context.Context, groupID schedule.GroupID, year int) error {
	return deleteBlocks(ctx, ts.tx, groupID, year)
}

func (ts *txStore) SaveAssignment(ctx context.Context, a schedule.BlockAssignment) error {
	return saveAssignment(ctx, ts.tx, a)
}

func (ts *txStore) GetAssignment(ctx context.Context, id schedule.AssignmentID) (*schedule.BlockAssignment, error) {
	return getAssignment(ctx, ts.tx, id)
}

func (ts *txStore) ListAssignments(ctx context.Context, blockID schedule.BlockID) ([]schedule.BlockAssignment, error) {
	return listAssignments(ctx, ts.tx, blockID)
}

func (ts *txStore) AssignmentsForEmployee(ctx context.Context, employeeID schedule.EmployeeID, year int) ([]schedule.BlockAssignment, error) {
	return assignmentsForEmployee(ctx, ts.tx, employeeID, year)
}

func (ts *txStore) SaveBlockChange(ctx context.Context, c schedule.BlockChange) error {
	return saveBlockChange(ctx, ts.tx, c)
}

// =============================================================================
// HELPERS
// =============================================================================

func formatDate(d schedule.Date) string {
	return d.String()
}

func parseDate(s string) schedule.Date {
	d, _ := schedule.ParseDate(s)
	return d
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	f := t.Format(time.RFC3339)
	return &f
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
