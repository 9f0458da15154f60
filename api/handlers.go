/*
handlers.go - HTTP API handlers for the rotation engine

PURPOSE:
  Exposes the engine via REST. Handlers parse HTTP, validate input, delegate
  to the domain components, and serialize JSON.

ENDPOINTS:
  Employees:
    GET    /api/employees                     List employees
    POST   /api/employees                     Create employee
    GET    /api/employees/{id}                Get employee
    GET    /api/employees/{id}/calendar       Expanded shift calendar
    GET    /api/employees/{id}/entitlement    Vacation entitlement

  Groups:
    GET    /api/groups/{id}/admission         Absence admission check
    GET    /api/groups/{id}/blocks            Blocks for a year
    GET    /api/groups/{id}/blocks/current    Current and next block

  Reservations:
    POST   /api/reservations                  Confirm programmable days

  Blocks:
    POST   /api/blocks/transfers              Manual employee transfer

  Admin:
    POST   /api/admin/auto-assign             Run/simulate the auto planner
    DELETE /api/admin/auto-assign/{year}      Revert a year's automatic days
    POST   /api/admin/blocks/generate         Generate a year's blocks
    POST   /api/admin/blocks/approve          Approve a year's blocks
    DELETE /api/admin/blocks/{groupID}/{year} Regenerate (delete) blocks
    GET    /api/admin/blocks/non-responders   Non-responder report
    POST   /api/admin/sweep                   Run the lifecycle sweep now

  Holidays / rules: CRUD for calendar configuration.

ERROR HANDLING:
  Engine error kinds map to status codes: NotFound 404, Conflict 409,
  InvalidState/Infeasible 422, anything else 500. Input parse failures are
  400.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/rotation-engine/admission"
	"github.com/warp/rotation-engine/blocks"
	"github.com/warp/rotation-engine/entitlement"
	"github.com/warp/rotation-engine/roster"
	"github.com/warp/rotation-engine/schedule"
	"github.com/warp/rotation-engine/vacation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     schedule.TxStore
	Roster    *roster.Engine
	Admission *admission.Controller
	Planner   *vacation.Planner
	Reserver  *vacation.Reserver
	Blocks    *blocks.Scheduler
	Lifecycle *blocks.Lifecycle
	Clock     schedule.Clock
	Log       zerolog.Logger
}

// NewHandler wires the engine components over one store.
func NewHandler(store schedule.TxStore, rosterEngine *roster.Engine, notifier schedule.Notifier, clock schedule.Clock, log zerolog.Logger) *Handler {
	adm := admission.New(store, log)
	return &Handler{
		Store:     store,
		Roster:    rosterEngine,
		Admission: adm,
		Planner:   vacation.NewPlanner(store, rosterEngine, adm, clock, nil, log),
		Reserver:  vacation.NewReserver(store, rosterEngine, notifier, clock, log),
		Blocks:    blocks.NewScheduler(store, rosterEngine, notifier, clock, log),
		Lifecycle: blocks.NewLifecycle(store, notifier, clock, log),
		Clock:     clock,
		Log:       log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := schedule.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	hire, err := schedule.ParseDate(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date, want YYYY-MM-DD", err)
		return
	}

	emp := schedule.Employee{
		ID:        schedule.EmployeeID(req.ID),
		Name:      req.Name,
		Payroll:   req.Payroll,
		GroupID:   schedule.GroupID(req.GroupID),
		HireDate:  hire,
		Active:    true,
		CreatedAt: h.Clock.Now(),
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, statusFor(err), "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

func toEmployeeDTO(e schedule.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		Payroll:   e.Payroll,
		GroupID:   string(e.GroupID),
		HireDate:  e.HireDate.String(),
		Active:    e.Active,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

// GetCalendar expands an employee's shift calendar over ?from=..&to=..
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := schedule.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}

	from, err := schedule.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := schedule.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to before from", nil)
		return
	}

	group, err := h.Store.GetGroup(ctx, emp.GroupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get group", err)
		return
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "Group not found", nil)
		return
	}

	days := h.Roster.Schedule(ctx, group.RuleReference, from, to)
	writeJSON(w, http.StatusOK, toDayScheduleDTOs(days))
}

// GetEntitlement computes the employee's entitlement for ?year=.
func (h *Handler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	id := schedule.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}

	year := h.Clock.Now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		year, err = strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
	}

	seniority := entitlement.SeniorityYears(emp.HireDate, schedule.EndOfYear(year))
	ent := entitlement.Calculate(seniority)
	writeJSON(w, http.StatusOK, EntitlementDTO{
		EmployeeID:       string(emp.ID),
		Year:             year,
		SeniorityYears:   seniority,
		CompanyDays:      ent.CompanyDays,
		AutoDays:         ent.AutoDays,
		ProgrammableDays: ent.ProgrammableDays,
		TotalDays:        ent.TotalDays(),
	})
}

// =============================================================================
// GROUP HANDLERS
// =============================================================================

// CheckAdmission answers ?date=..&extra=<employeeID> for a group.
func (h *Handler) CheckAdmission(w http.ResponseWriter, r *http.Request) {
	groupID := schedule.GroupID(chi.URLParam(r, "id"))

	date, err := schedule.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	req := admission.Request{GroupID: groupID, Date: date}
	if extra := r.URL.Query().Get("extra"); extra != "" {
		id := schedule.EmployeeID(extra)
		req.ExtraEmployee = &id
	}

	decision, err := h.Admission.Check(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), "Admission check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdmissionDTO(decision))
}

func (h *Handler) ListGroupBlocks(w http.ResponseWriter, r *http.Request) {
	groupID := schedule.GroupID(chi.URLParam(r, "id"))

	year := h.Clock.Now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		y, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	blockList, err := h.Store.ListBlocks(r.Context(), groupID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list blocks", err)
		return
	}

	type blockWithAssignments struct {
		BlockDTO
		Assignments []AssignmentDTO `json:"assignments"`
	}
	out := make([]blockWithAssignments, 0, len(blockList))
	for _, b := range blockList {
		assignments, err := h.Store.ListAssignments(r.Context(), b.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
			return
		}
		dto := blockWithAssignments{BlockDTO: toBlockDTO(b)}
		for _, a := range assignments {
			dto.Assignments = append(dto.Assignments, toAssignmentDTO(a))
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CurrentBlock(w http.ResponseWriter, r *http.Request) {
	groupID := schedule.GroupID(chi.URLParam(r, "id"))

	current, next, err := h.Blocks.BlocksByDate(r.Context(), groupID, h.Clock.Now())
	if err != nil {
		writeError(w, statusFor(err), "Failed to resolve blocks", err)
		return
	}

	resp := struct {
		Current *BlockDTO `json:"current"`
		Next    *BlockDTO `json:"next"`
	}{}
	if current != nil {
		dto := toBlockDTO(*current)
		resp.Current = &dto
	}
	if next != nil {
		dto := toBlockDTO(*next)
		resp.Next = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	dates := make([]schedule.Date, 0, len(req.Dates))
	for _, s := range req.Dates {
		d, err := schedule.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date "+s, err)
			return
		}
		dates = append(dates, d)
	}

	result, err := h.Reserver.ReserveDays(r.Context(), vacation.ReserveRequest{
		EmployeeID: schedule.EmployeeID(req.EmployeeID),
		Year:       req.Year,
		Dates:      dates,
	})
	if err != nil {
		writeError(w, statusFor(err), "Reservation rejected", err)
		return
	}

	dto := ReserveResultDTO{
		EmployeeID:       string(result.EmployeeID),
		AssignmentID:     string(result.AssignmentID),
		ProgrammableDays: result.ProgrammableDays,
		AlreadyScheduled: result.AlreadyScheduled,
	}
	for _, id := range result.RecordIDs {
		dto.RecordIDs = append(dto.RecordIDs, string(id))
	}
	writeJSON(w, http.StatusCreated, dto)
}

// =============================================================================
// BLOCK TRANSFERS
// =============================================================================

func (h *Handler) TransferAssignment(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.Blocks.TransferEmployee(r.Context(),
		schedule.AssignmentID(req.AssignmentID),
		schedule.BlockID(req.TargetBlockID),
		req.Actor, req.Reason)
	if err != nil {
		writeError(w, statusFor(err), "Transfer rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(*created))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	var req AutoAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Year == 0 {
		req.Year = h.Clock.Now().Year()
	}

	ids := make([]schedule.EmployeeID, 0, len(req.EmployeeIDs))
	for _, id := range req.EmployeeIDs {
		ids = append(ids, schedule.EmployeeID(id))
	}

	summary, err := h.Planner.Plan(r.Context(), vacation.PlanRequest{
		Year:        req.Year,
		Simulate:    req.Simulate,
		EmployeeIDs: ids,
	})
	if err != nil {
		writeError(w, statusFor(err), "Automatic assignment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanSummaryDTO(summary))
}

func (h *Handler) RevertAutoAssign(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	removed, err := h.Planner.Revert(r.Context(), year)
	if err != nil {
		writeError(w, statusFor(err), "Revert failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) GenerateBlocks(w http.ResponseWriter, r *http.Request) {
	var req GenerateBlocksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := schedule.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date, want YYYY-MM-DD", err)
		return
	}

	ids := make([]schedule.GroupID, 0, len(req.GroupIDs))
	for _, id := range req.GroupIDs {
		ids = append(ids, schedule.GroupID(id))
	}

	summary, err := h.Blocks.Generate(r.Context(), blocks.GenerateRequest{
		Year:      req.Year,
		StartDate: start,
		GroupIDs:  ids,
	})
	if err != nil {
		writeError(w, statusFor(err), "Block generation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toGenerateSummaryDTO(summary))
}

func (h *Handler) ApproveBlocks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year int `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	approved, err := h.Blocks.ApproveBlocks(r.Context(), req.Year)
	if err != nil {
		writeError(w, statusFor(err), "Approval failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"approved": approved})
}

func (h *Handler) RegenerateBlocks(w http.ResponseWriter, r *http.Request) {
	groupID := schedule.GroupID(chi.URLParam(r, "groupID"))
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	if err := h.Blocks.RegenerateYear(r.Context(), groupID, year); err != nil {
		writeError(w, statusFor(err), "Regenerate failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) NonResponders(w http.ResponseWriter, r *http.Request) {
	year := h.Clock.Now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		y, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	rows, err := h.Blocks.NonResponders(r.Context(), year)
	if err != nil {
		writeError(w, statusFor(err), "Report failed", err)
		return
	}

	dtos := make([]NonResponderDTO, len(rows))
	for i, row := range rows {
		dtos[i] = NonResponderDTO{
			EmployeeID: string(row.EmployeeID),
			Name:       row.Name,
			Payroll:    row.Payroll,
			GroupID:    string(row.GroupID),
			BlockID:    string(row.BlockID),
			Position:   row.Position,
			Urgent:     row.Urgent,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Lifecycle.Sweep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepStatsDTO{
		BlocksExamined:        stats.BlocksExamined,
		BlocksCompleted:       stats.BlocksCompleted,
		ReservationsCompleted: stats.ReservationsCompleted,
		Cascaded:              stats.Cascaded,
		NoResponses:           stats.NoResponses,
	})
}

// =============================================================================
// HOLIDAY AND RULE HANDLERS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.Clock.Now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		y, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	holidays, err := h.Store.ListHolidays(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}

	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dto := HolidayDTO{ID: hol.ID, Name: hol.Name, Date: hol.Date.String(), Active: hol.Active}
		if hol.EndDate != nil {
			dto.EndDate = hol.EndDate.String()
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	hol := schedule.Holiday{
		ID:        req.ID,
		Name:      req.Name,
		Date:      date,
		Active:    true,
		CreatedAt: h.Clock.Now(),
	}
	if hol.ID == "" {
		hol.ID = req.Name + "-" + req.Date
	}
	if req.EndDate != "" {
		end, err := schedule.ParseDate(req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date", err)
			return
		}
		hol.EndDate = &end
	}

	if err := h.Store.SaveHoliday(r.Context(), hol); err != nil {
		writeError(w, statusFor(err), "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": hol.ID})
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListShiftRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = RuleDTO{Code: string(rule.Code), Sequence: rule.Sequence, Weeks: rule.Weeks()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateRule persists an administrative rule change and refreshes the
// in-memory calendar engine.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule := schedule.ShiftRule{Code: schedule.RuleCode(req.Code), Sequence: req.Sequence}
	if !rule.Valid() {
		writeError(w, http.StatusBadRequest, "Sequence length must be a positive multiple of 7", nil)
		return
	}

	if err := h.Store.SaveShiftRule(r.Context(), rule); err != nil {
		writeError(w, statusFor(err), "Failed to save rule", err)
		return
	}
	h.Roster.SetRule(rule)
	writeJSON(w, http.StatusOK, RuleDTO{Code: req.Code, Sequence: req.Sequence, Weeks: rule.Weeks()})
}
