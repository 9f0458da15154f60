/*
planner.go - Automatic vacation assignment

PURPOSE:
  Picks, for each eligible employee, one week of the year and specific
  non-rest days inside it for the automatically-assigned vacation bucket,
  subject to absence admission control. Greedy, randomized first-fit:
  weeks are interchangeable, so the first week with enough admissible days
  wins.

ALGORITHM:
  1. daysNeeded = min(entitlement autoDays, 5); zero days = skipped.
  2. Candidate weeks = 1..52 minus the excluded set (default 51,52,1,2),
     shuffled.
  3. Scan each week's 7 days, skipping holidays, crew rest days, and days
     the employee already has, asking admission control a what-if question
     per day. The first week yielding daysNeeded admissible days is chosen.
  4. The chosen days are re-validated and committed in one transaction with
     a uniqueness check per (employee, day). Failures roll back only that
     employee.

MODES:
  Simulate plans without writing. Revert deletes a year's automatic records
  (administrative reversal of a bad run).

SEE ALSO:
  - admission/admission.go: the per-day gate
  - entitlement/entitlement.go: autoDays sizing
*/
package vacation

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/rotation-engine/admission"
	"github.com/warp/rotation-engine/entitlement"
	"github.com/warp/rotation-engine/roster"
	"github.com/warp/rotation-engine/schedule"
)

// MaxAutoDays caps automatically-assigned days regardless of entitlement.
const MaxAutoDays = 5

// DefaultExcludedWeeks are never planned: the holiday crunch around the
// turn of the year.
var DefaultExcludedWeeks = []int{51, 52, 1, 2}

// Planner performs the automatic assignment run.
type Planner struct {
	store     schedule.TxStore
	roster    *roster.Engine
	admission *admission.Controller
	clock     schedule.Clock
	rng       *rand.Rand
	excluded  map[int]bool
	log       zerolog.Logger
}

// NewPlanner builds a planner. rng may be nil; the clock then seeds one.
func NewPlanner(store schedule.TxStore, r *roster.Engine, adm *admission.Controller, clock schedule.Clock, rng *rand.Rand, log zerolog.Logger) *Planner {
	if rng == nil {
		rng = rand.New(rand.NewSource(clock.Now().UnixNano()))
	}
	excluded := make(map[int]bool, len(DefaultExcludedWeeks))
	for _, w := range DefaultExcludedWeeks {
		excluded[w] = true
	}
	return &Planner{
		store:     store,
		roster:    r,
		admission: adm,
		clock:     clock,
		rng:       rng,
		excluded:  excluded,
		log:       log.With().Str("component", "planner").Logger(),
	}
}

// SetExcludedWeeks replaces the excluded week set.
func (p *Planner) SetExcludedWeeks(weeks []int) {
	p.excluded = make(map[int]bool, len(weeks))
	for _, w := range weeks {
		p.excluded[w] = true
	}
}

// PlanRequest scopes one planning run.
type PlanRequest struct {
	Year        int
	Simulate    bool
	EmployeeIDs []schedule.EmployeeID // empty = every active employee
}

// Outcome is the per-employee result of a run.
type Outcome struct {
	EmployeeID schedule.EmployeeID
	Name       string
	DaysNeeded int
	Week       int
	Days       []schedule.Date
	Assigned   bool
	Skipped    bool
	Reason     string
}

// Summary aggregates a run.
type Summary struct {
	Year      int
	Simulated bool
	Assigned  int
	Skipped   int
	Failed    int
	Outcomes  []Outcome
}

// Plan runs the automatic assignment for a year.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (Summary, error) {
	sum := Summary{Year: req.Year, Simulated: req.Simulate}

	employees, err := p.targetEmployees(ctx, req.EmployeeIDs)
	if err != nil {
		return sum, err
	}

	for _, emp := range employees {
		out := p.planEmployee(ctx, emp, req.Year, req.Simulate)
		switch {
		case out.Assigned:
			sum.Assigned++
		case out.Skipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
		sum.Outcomes = append(sum.Outcomes, out)
	}

	p.log.Info().
		Int("year", req.Year).
		Bool("simulate", req.Simulate).
		Int("assigned", sum.Assigned).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Msg("automatic assignment run finished")

	return sum, nil
}

func (p *Planner) targetEmployees(ctx context.Context, ids []schedule.EmployeeID) ([]schedule.Employee, error) {
	if len(ids) == 0 {
		all, err := p.store.ListEmployees(ctx)
		if err != nil {
			return nil, err
		}
		var active []schedule.Employee
		for _, e := range all {
			if e.Active {
				active = append(active, e)
			}
		}
		return active, nil
	}

	var out []schedule.Employee
	for _, id := range ids {
		emp, err := p.store.GetEmployee(ctx, id)
		if err != nil {
			return nil, err
		}
		if emp == nil {
			return nil, &schedule.NotFoundError{Kind: "employee", ID: string(id)}
		}
		out = append(out, *emp)
	}
	return out, nil
}

func (p *Planner) planEmployee(ctx context.Context, emp schedule.Employee, year int, simulate bool) Outcome {
	out := Outcome{EmployeeID: emp.ID, Name: emp.Name}

	if emp.Payroll == "" || emp.GroupID == "" {
		out.Skipped = true
		out.Reason = "not eligible: missing payroll number or group"
		return out
	}

	seniority := entitlement.SeniorityYears(emp.HireDate, schedule.TodayAt(p.clock))
	autoDays := entitlement.Calculate(seniority).AutoDays
	if autoDays > MaxAutoDays {
		autoDays = MaxAutoDays
	}
	out.DaysNeeded = autoDays
	if autoDays <= 0 {
		out.Skipped = true
		out.Reason = "no automatically-assigned days for seniority"
		return out
	}

	group, err := p.store.GetGroup(ctx, emp.GroupID)
	if err != nil || group == nil {
		out.Reason = fmt.Sprintf("group %s not found", emp.GroupID)
		return out
	}

	week, days, err := p.findWeek(ctx, emp, group, year, autoDays)
	if err != nil {
		out.Reason = err.Error()
		return out
	}
	if week == 0 {
		out.Reason = "no week with enough admissible days"
		return out
	}
	out.Week = week
	out.Days = days

	if simulate {
		out.Assigned = true
		out.Reason = "simulated"
		return out
	}

	if err := p.commit(ctx, emp, days); err != nil {
		out.Week = 0
		out.Days = nil
		out.Reason = fmt.Sprintf("commit failed: %v", err)
		return out
	}
	out.Assigned = true
	return out
}

// findWeek scans shuffled candidate weeks and returns the first with enough
// admissible days, plus those days. Week 0 means none qualified.
func (p *Planner) findWeek(ctx context.Context, emp schedule.Employee, group *schedule.Group, year, needed int) (int, []schedule.Date, error) {
	weeks := p.candidateWeeks()

	for _, week := range weeks {
		start := schedule.WeekStart(year, week)
		var picked []schedule.Date

		for i := 0; i < 7 && len(picked) < needed; i++ {
			day := start.AddDays(i)

			ok, err := p.dayFits(ctx, emp, group, day)
			if err != nil {
				return 0, nil, err
			}
			if ok {
				picked = append(picked, day)
			}
		}

		if len(picked) >= needed {
			return week, picked[:needed], nil
		}
	}
	return 0, nil, nil
}

func (p *Planner) dayFits(ctx context.Context, emp schedule.Employee, group *schedule.Group, day schedule.Date) (bool, error) {
	holiday, err := p.store.IsHoliday(ctx, day)
	if err != nil {
		return false, err
	}
	if holiday {
		return false, nil
	}
	if p.roster.IsRestDay(ctx, group.RuleReference, day) {
		return false, nil
	}

	taken, err := p.store.IsAbsentOn(ctx, emp.ID, day)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	id := emp.ID
	decision, err := p.admission.Check(ctx, admission.Request{
		GroupID:       group.ID,
		Date:          day,
		ExtraEmployee: &id,
	})
	if err != nil {
		return false, err
	}
	return decision.Admissible, nil
}

func (p *Planner) candidateWeeks() []int {
	var weeks []int
	for w := 1; w <= 52; w++ {
		if !p.excluded[w] {
			weeks = append(weeks, w)
		}
	}
	p.rng.Shuffle(len(weeks), func(i, j int) { weeks[i], weeks[j] = weeks[j], weeks[i] })
	return weeks
}

// commit re-validates and writes the picked days atomically.
func (p *Planner) commit(ctx context.Context, emp schedule.Employee, days []schedule.Date) error {
	now := p.clock.Now()
	id := emp.ID

	return p.store.WithTx(ctx, func(tx schedule.Store) error {
		// re-validate against the transaction's view, not the outer store
		adm := admission.New(tx, p.log)
		for _, day := range days {
			decision, err := adm.Check(ctx, admission.Request{
				GroupID:       emp.GroupID,
				Date:          day,
				ExtraEmployee: &id,
			})
			if err != nil {
				return err
			}
			if !decision.Admissible {
				return decision.Err()
			}

			rec := schedule.VacationRecord{
				ID:           schedule.RecordID(uuid.NewString()),
				EmployeeID:   emp.ID,
				Date:         day,
				Kind:         schedule.KindAutomatic,
				Origin:       schedule.OriginAutomatic,
				State:        schedule.RecordActive,
				Exchangeable: false,
				CreatedAt:    now,
			}
			if err := tx.SaveVacationRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Revert deletes a year's automatic records. Returns how many were removed.
func (p *Planner) Revert(ctx context.Context, year int) (int, error) {
	n, err := p.store.DeleteVacationRecords(ctx, schedule.OriginAutomatic, year)
	if err != nil {
		return 0, err
	}
	p.log.Warn().Int("year", year).Int("removed", n).Msg("automatic assignments reverted")
	return n, nil
}
