/*
scheduler.go - Reservation block generation and assignment

PURPOSE:
  Once per year per group, partitions the group's eligible employees (oldest
  hire date first) into sequential fixed-capacity reservation windows
  ("blocks") and appends one overflow queue block. Employees later reserve
  their programmable vacation days during their block's window.

TIME GENERATION:
  Candidate block starts begin at 09:00 on the configured generation start
  date. A candidate landing on a holiday or on the group's crew rest day
  advances one day (hour retained) without consuming a block. A materialized
  block runs for the group's shift duration; the next candidate is the
  block's end, weekend-paused: Saturday at or after 01:00, or any time
  Sunday, snaps to the following Monday 09:00.

SAFETY BOUND:
  Generation for a group aborts (logged, reported per group, other groups
  continue) when a candidate date passes one year beyond the target year.

IDEMPOTENCY:
  Generation refuses to run for a group/year that already has blocks.

SEE ALSO:
  - lifecycle.go: the periodic sweep over generated blocks
  - vacation/reserve.go: flips assignments to Reservado
*/
package blocks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/rotation-engine/entitlement"
	"github.com/warp/rotation-engine/roster"
	"github.com/warp/rotation-engine/schedule"
)

// blockStartHour is the anchor hour for candidate block starts.
const blockStartHour = 9

// weekendPauseHour: a block ending on Saturday at or after this hour pauses
// until Monday.
const weekendPauseHour = 1

// Scheduler generates reservation blocks and their assignments.
type Scheduler struct {
	store    schedule.TxStore
	roster   *roster.Engine
	notifier schedule.Notifier
	clock    schedule.Clock
	log      zerolog.Logger
}

func NewScheduler(store schedule.TxStore, r *roster.Engine, notifier schedule.Notifier, clock schedule.Clock, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		roster:   r,
		notifier: notifier,
		clock:    clock,
		log:      log.With().Str("component", "blocks").Logger(),
	}
}

// GenerateRequest scopes one generation batch.
type GenerateRequest struct {
	Year      int
	StartDate schedule.Date            // first candidate day
	GroupIDs  []schedule.GroupID       // empty = every active group
}

// GroupResult is the per-group outcome of a batch.
type GroupResult struct {
	GroupID  schedule.GroupID
	Blocks   int
	Assigned int
	Queued   int
	Err      error
	Warnings []string
}

// GenerateSummary aggregates a batch.
type GenerateSummary struct {
	Year    int
	Results []GroupResult
}

// Failed counts groups that errored.
func (s GenerateSummary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Generate runs block generation for a year. Groups are processed
// sequentially; one group's failure never stops the batch.
func (s *Scheduler) Generate(ctx context.Context, req GenerateRequest) (GenerateSummary, error) {
	sum := GenerateSummary{Year: req.Year}

	if req.StartDate.Before(schedule.TodayAt(s.clock)) {
		return sum, &schedule.InvalidStateError{
			Kind: "generation", ID: fmt.Sprint(req.Year),
			State: "start date in the past", Op: "generate blocks",
		}
	}

	groups, err := s.targetGroups(ctx, req.GroupIDs)
	if err != nil {
		return sum, err
	}

	for _, group := range groups {
		res := s.generateGroup(ctx, group, req.Year, req.StartDate)
		if res.Err != nil {
			s.log.Error().Err(res.Err).Str("group", string(group.ID)).Int("year", req.Year).Msg("block generation failed for group")
		} else {
			s.log.Info().
				Str("group", string(group.ID)).
				Int("year", req.Year).
				Int("blocks", res.Blocks).
				Int("assigned", res.Assigned).
				Int("queued", res.Queued).
				Msg("blocks generated")
		}
		sum.Results = append(sum.Results, res)
	}
	return sum, nil
}

func (s *Scheduler) targetGroups(ctx context.Context, ids []schedule.GroupID) ([]schedule.Group, error) {
	if len(ids) == 0 {
		all, err := s.store.ListGroups(ctx)
		if err != nil {
			return nil, err
		}
		var active []schedule.Group
		for _, g := range all {
			if g.Active {
				active = append(active, g)
			}
		}
		return active, nil
	}

	var out []schedule.Group
	for _, id := range ids {
		g, err := s.store.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, &schedule.NotFoundError{Kind: "group", ID: string(id)}
		}
		out = append(out, *g)
	}
	return out, nil
}

func (s *Scheduler) generateGroup(ctx context.Context, group schedule.Group, year int, startDate schedule.Date) GroupResult {
	res := GroupResult{GroupID: group.ID}

	if group.PersonsPerShift <= 0 || group.ShiftHours <= 0 {
		res.Err = &schedule.InvalidStateError{
			Kind: "group", ID: string(group.ID),
			State: "missing capacity or shift duration", Op: "generate blocks",
		}
		return res
	}

	existing, err := s.store.ListBlocks(ctx, group.ID, year)
	if err != nil {
		res.Err = err
		return res
	}
	if len(existing) > 0 {
		res.Err = fmt.Errorf("blocks already generated for group %s year %d: %w", group.ID, year, schedule.ErrConflict)
		return res
	}

	eligible, err := s.eligibleEmployees(ctx, group.ID, year)
	if err != nil {
		res.Err = err
		return res
	}
	if len(eligible) == 0 {
		res.Warnings = append(res.Warnings, "no employees with programmable days")
		return res
	}

	capacity := group.PersonsPerShift
	regular := (len(eligible) + capacity - 1) / capacity
	total := regular + 1 // queue block is always last, even if empty

	blockTimes, err := s.blockWindows(ctx, group, year, startDate, total)
	if err != nil {
		res.Err = err
		return res
	}

	now := s.clock.Now()
	var blocks []schedule.ReservationBlock
	for i, w := range blockTimes {
		blocks = append(blocks, schedule.ReservationBlock{
			ID:             schedule.BlockID(uuid.NewString()),
			GroupID:        group.ID,
			GenerationYear: year,
			BlockNumber:    i + 1,
			Start:          w.start,
			End:            w.end,
			Capacity:       capacity,
			IsQueue:        i == total-1,
			State:          schedule.BlockActive,
			CreatedAt:      now,
		})
	}

	assignments := assignToBlocks(blocks, eligible, capacity, now)

	err = s.store.WithTx(ctx, func(tx schedule.Store) error {
		again, err := tx.ListBlocks(ctx, group.ID, year)
		if err != nil {
			return err
		}
		if len(again) > 0 {
			return fmt.Errorf("blocks already generated for group %s year %d: %w", group.ID, year, schedule.ErrConflict)
		}
		for _, b := range blocks {
			if err := tx.SaveBlock(ctx, b); err != nil {
				return err
			}
		}
		for _, a := range assignments {
			if err := tx.SaveAssignment(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		res.Err = err
		return res
	}

	res.Blocks = total
	res.Assigned = len(eligible)
	if len(eligible) > regular*capacity {
		res.Queued = len(eligible) - regular*capacity
	}
	return res
}

// eligibleEmployees filters and orders the group's employees by reservation
// priority: hire date ascending, payroll number ascending.
func (s *Scheduler) eligibleEmployees(ctx context.Context, groupID schedule.GroupID, year int) ([]schedule.Employee, error) {
	members, err := s.store.ListEmployeesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	cutoff := schedule.EndOfYear(year)
	var eligible []schedule.Employee
	for _, e := range members {
		if e.Payroll == "" || e.HireDate.IsZero() {
			continue
		}
		seniority := entitlement.SeniorityYears(e.HireDate, cutoff)
		if seniority < 1 {
			continue
		}
		if entitlement.ProgrammableDaysCapped(seniority) <= 0 {
			continue
		}
		eligible = append(eligible, e)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].HireDate.Equal(eligible[j].HireDate) {
			return eligible[i].HireDate.Before(eligible[j].HireDate)
		}
		return eligible[i].Payroll < eligible[j].Payroll
	})
	return eligible, nil
}

type window struct {
	start, end time.Time
}

// blockWindows walks candidate start times and materializes count windows.
func (s *Scheduler) blockWindows(ctx context.Context, group schedule.Group, year int, startDate schedule.Date, count int) ([]window, error) {
	candidate := startDate.At(blockStartHour)
	duration := time.Duration(group.ShiftHours) * time.Hour

	var out []window
	for len(out) < count {
		d := schedule.DateOf(candidate)
		if d.Year() > year+1 {
			return nil, &schedule.GenerationAbortedError{GroupID: group.ID, Year: year, Candidate: d}
		}

		skip, err := s.invalidDay(ctx, group, d)
		if err != nil {
			return nil, err
		}
		if skip {
			// advance a day, keep the hour, consume no block
			candidate = candidate.AddDate(0, 0, 1)
			continue
		}

		end := candidate.Add(duration)
		out = append(out, window{start: candidate, end: end})
		candidate = weekendPause(end)
	}
	return out, nil
}

func (s *Scheduler) invalidDay(ctx context.Context, group schedule.Group, d schedule.Date) (bool, error) {
	holiday, err := s.store.IsHoliday(ctx, d)
	if err != nil {
		return false, err
	}
	if holiday {
		return true, nil
	}
	return s.roster.IsRestDay(ctx, group.RuleReference, d), nil
}

// weekendPause snaps a block end falling into the weekend window to the
// following Monday 09:00: Saturday at or after 01:00, or any time Sunday.
func weekendPause(end time.Time) time.Time {
	switch end.Weekday() {
	case time.Saturday:
		if end.Hour() >= weekendPauseHour {
			return nextMonday(end)
		}
	case time.Sunday:
		return nextMonday(end)
	}
	return end
}

func nextMonday(t time.Time) time.Time {
	days := (int(time.Monday) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	m := t.AddDate(0, 0, days)
	return time.Date(m.Year(), m.Month(), m.Day(), blockStartHour, 0, 0, 0, m.Location())
}

// assignToBlocks fills regular blocks position 1..capacity in priority
// order; the remainder goes to the queue block at sequential positions.
func assignToBlocks(blocks []schedule.ReservationBlock, eligible []schedule.Employee, capacity int, now time.Time) []schedule.BlockAssignment {
	var out []schedule.BlockAssignment
	idx := 0

	for _, b := range blocks {
		if b.IsQueue {
			pos := 1
			for ; idx < len(eligible); idx++ {
				out = append(out, newAssignment(b.ID, eligible[idx].ID, pos, now))
				pos++
			}
			continue
		}
		for pos := 1; pos <= capacity && idx < len(eligible); pos++ {
			out = append(out, newAssignment(b.ID, eligible[idx].ID, pos, now))
			idx++
		}
	}
	return out
}

func newAssignment(blockID schedule.BlockID, employeeID schedule.EmployeeID, pos int, now time.Time) schedule.BlockAssignment {
	return schedule.BlockAssignment{
		ID:         schedule.AssignmentID(uuid.NewString()),
		BlockID:    blockID,
		EmployeeID: employeeID,
		Position:   pos,
		State:      schedule.AssignmentAssigned,
		AssignedAt: now,
	}
}
