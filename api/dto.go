/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP surface. These decouple the internal domain
  model from the external contract; dates travel as "2006-01-02" strings,
  timestamps as RFC3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/warp/rotation-engine/admission"
	"github.com/warp/rotation-engine/blocks"
	"github.com/warp/rotation-engine/roster"
	"github.com/warp/rotation-engine/schedule"
	"github.com/warp/rotation-engine/vacation"
)

// =============================================================================
// EMPLOYEES AND CALENDAR
// =============================================================================

type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Payroll   string `json:"payroll"`
	GroupID   string `json:"group_id"`
	HireDate  string `json:"hire_date"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateEmployeeRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Payroll  string `json:"payroll"`
	GroupID  string `json:"group_id"`
	HireDate string `json:"hire_date"`
}

type DayScheduleDTO struct {
	Date string `json:"date"`
	Code string `json:"code"`
	Rest bool   `json:"rest"`
}

func toDayScheduleDTOs(days []roster.DaySchedule) []DayScheduleDTO {
	out := make([]DayScheduleDTO, len(days))
	for i, d := range days {
		out[i] = DayScheduleDTO{Date: d.Date.String(), Code: d.Code, Rest: d.Rest}
	}
	return out
}

type EntitlementDTO struct {
	EmployeeID       string `json:"employee_id"`
	Year             int    `json:"year"`
	SeniorityYears   int    `json:"seniority_years"`
	CompanyDays      int    `json:"company_days"`
	AutoDays         int    `json:"auto_days"`
	ProgrammableDays int    `json:"programmable_days"`
	TotalDays        int    `json:"total_days"`
}

// =============================================================================
// ADMISSION
// =============================================================================

type AdmissionDTO struct {
	Admissible       bool   `json:"admissible"`
	GroupID          string `json:"group_id"`
	Date             string `json:"date"`
	ManningRequired  int    `json:"manning_required"`
	PersonnelTotal   int    `json:"personnel_total"`
	PersonnelAbsent  int    `json:"personnel_absent"`
	PercentAvailable string `json:"percent_available"`
	PercentAbsence   string `json:"percent_absence"`
	MaxAllowed       string `json:"max_allowed"`
	MinimumGroupSize int    `json:"minimum_group_size"`
	SmallGroup       bool   `json:"small_group"`
	Reason           string `json:"reason"`
}

func toAdmissionDTO(d admission.Decision) AdmissionDTO {
	return AdmissionDTO{
		Admissible:       d.Admissible,
		GroupID:          string(d.GroupID),
		Date:             d.Date.String(),
		ManningRequired:  d.ManningRequired,
		PersonnelTotal:   d.PersonnelTotal,
		PersonnelAbsent:  d.PersonnelAbsent,
		PercentAvailable: d.PercentAvailable.StringFixed(2),
		PercentAbsence:   d.PercentAbsence.StringFixed(2),
		MaxAllowed:       d.MaxAllowed.StringFixed(2),
		MinimumGroupSize: d.MinimumGroupSize,
		SmallGroup:       d.SmallGroup,
		Reason:           d.Reason,
	}
}

// =============================================================================
// AUTOMATIC ASSIGNMENT
// =============================================================================

type AutoAssignRequest struct {
	Year        int      `json:"year"`
	Simulate    bool     `json:"simulate"`
	EmployeeIDs []string `json:"employee_ids,omitempty"`
}

type OutcomeDTO struct {
	EmployeeID string   `json:"employee_id"`
	Name       string   `json:"name"`
	DaysNeeded int      `json:"days_needed"`
	Week       int      `json:"week,omitempty"`
	Days       []string `json:"days,omitempty"`
	Assigned   bool     `json:"assigned"`
	Skipped    bool     `json:"skipped"`
	Reason     string   `json:"reason,omitempty"`
}

type PlanSummaryDTO struct {
	Year      int          `json:"year"`
	Simulated bool         `json:"simulated"`
	Assigned  int          `json:"assigned"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Outcomes  []OutcomeDTO `json:"outcomes"`
}

func toPlanSummaryDTO(s vacation.Summary) PlanSummaryDTO {
	dto := PlanSummaryDTO{
		Year:      s.Year,
		Simulated: s.Simulated,
		Assigned:  s.Assigned,
		Skipped:   s.Skipped,
		Failed:    s.Failed,
		Outcomes:  make([]OutcomeDTO, len(s.Outcomes)),
	}
	for i, o := range s.Outcomes {
		days := make([]string, len(o.Days))
		for j, d := range o.Days {
			days[j] = d.String()
		}
		dto.Outcomes[i] = OutcomeDTO{
			EmployeeID: string(o.EmployeeID),
			Name:       o.Name,
			DaysNeeded: o.DaysNeeded,
			Week:       o.Week,
			Days:       days,
			Assigned:   o.Assigned,
			Skipped:    o.Skipped,
			Reason:     o.Reason,
		}
	}
	return dto
}

// =============================================================================
// BLOCKS
// =============================================================================

type GenerateBlocksRequest struct {
	Year      int      `json:"year"`
	StartDate string   `json:"start_date"`
	GroupIDs  []string `json:"group_ids,omitempty"`
}

type GroupResultDTO struct {
	GroupID  string   `json:"group_id"`
	Blocks   int      `json:"blocks"`
	Assigned int      `json:"assigned"`
	Queued   int      `json:"queued"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type GenerateSummaryDTO struct {
	Year    int              `json:"year"`
	Failed  int              `json:"failed"`
	Results []GroupResultDTO `json:"results"`
}

func toGenerateSummaryDTO(s blocks.GenerateSummary) GenerateSummaryDTO {
	dto := GenerateSummaryDTO{Year: s.Year, Failed: s.Failed(), Results: make([]GroupResultDTO, len(s.Results))}
	for i, r := range s.Results {
		g := GroupResultDTO{
			GroupID:  string(r.GroupID),
			Blocks:   r.Blocks,
			Assigned: r.Assigned,
			Queued:   r.Queued,
			Warnings: r.Warnings,
		}
		if r.Err != nil {
			g.Error = r.Err.Error()
		}
		dto.Results[i] = g
	}
	return dto
}

type BlockDTO struct {
	ID             string `json:"id"`
	GroupID        string `json:"group_id"`
	GenerationYear int    `json:"generation_year"`
	BlockNumber    int    `json:"block_number"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Capacity       int    `json:"capacity"`
	IsQueue        bool   `json:"is_queue"`
	State          string `json:"state"`
}

func toBlockDTO(b schedule.ReservationBlock) BlockDTO {
	return BlockDTO{
		ID:             string(b.ID),
		GroupID:        string(b.GroupID),
		GenerationYear: b.GenerationYear,
		BlockNumber:    b.BlockNumber,
		Start:          b.Start.Format(time.RFC3339),
		End:            b.End.Format(time.RFC3339),
		Capacity:       b.Capacity,
		IsQueue:        b.IsQueue,
		State:          string(b.State),
	}
}

type AssignmentDTO struct {
	ID          string `json:"id"`
	BlockID     string `json:"block_id"`
	EmployeeID  string `json:"employee_id"`
	Position    int    `json:"position"`
	State       string `json:"state"`
	AssignedAt  string `json:"assigned_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

func toAssignmentDTO(a schedule.BlockAssignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:         string(a.ID),
		BlockID:    string(a.BlockID),
		EmployeeID: string(a.EmployeeID),
		Position:   a.Position,
		State:      string(a.State),
		AssignedAt: a.AssignedAt.Format(time.RFC3339),
	}
	if a.CompletedAt != nil {
		dto.CompletedAt = a.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

type TransferRequest struct {
	AssignmentID  string `json:"assignment_id"`
	TargetBlockID string `json:"target_block_id"`
	Actor         string `json:"actor"`
	Reason        string `json:"reason"`
}

type NonResponderDTO struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Payroll    string `json:"payroll"`
	GroupID    string `json:"group_id"`
	BlockID    string `json:"block_id"`
	Position   int    `json:"position"`
	Urgent     bool   `json:"urgent"`
}

// =============================================================================
// RESERVATIONS
// =============================================================================

type ReserveRequest struct {
	EmployeeID string   `json:"employee_id"`
	Year       int      `json:"year"`
	Dates      []string `json:"dates"`
}

type ReserveResultDTO struct {
	EmployeeID       string   `json:"employee_id"`
	RecordIDs        []string `json:"record_ids"`
	AssignmentID     string   `json:"assignment_id,omitempty"`
	ProgrammableDays int      `json:"programmable_days"`
	AlreadyScheduled int      `json:"already_scheduled"`
}

// =============================================================================
// HOLIDAYS AND RULES
// =============================================================================

type HolidayDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Date    string `json:"date"`
	EndDate string `json:"end_date,omitempty"`
	Active  bool   `json:"active"`
}

type CreateHolidayRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Date    string `json:"date"`
	EndDate string `json:"end_date,omitempty"`
}

type RuleDTO struct {
	Code     string   `json:"code"`
	Sequence []string `json:"sequence"`
	Weeks    int      `json:"weeks"`
}

type SweepStatsDTO struct {
	BlocksExamined        int `json:"blocks_examined"`
	BlocksCompleted       int `json:"blocks_completed"`
	ReservationsCompleted int `json:"reservations_completed"`
	Cascaded              int `json:"cascaded"`
	NoResponses           int `json:"no_responses"`
}

// =============================================================================
// HELPERS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps engine error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case schedule.IsNotFound(err):
		return http.StatusNotFound
	case schedule.IsConflict(err):
		return http.StatusConflict
	case schedule.IsClientError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
