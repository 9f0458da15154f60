/*
reserve.go - Reservation confirmation

PURPOSE:
  The employee-facing write path: during their reservation block, an
  employee picks specific programmable vacation days. The picks are checked
  against the capped programmable entitlement, day validity (no holidays, no
  crew rest days, no double booking), and absence admission, then committed
  in one transaction together with flipping the employee's block assignment
  for the generation year to Reservado.

NOTIFICATION:
  The confirmation notification is fire-and-forget; a delivery failure is
  logged and never fails the reservation.

SEE ALSO:
  - blocks/scheduler.go: creates the assignments this path flips
  - entitlement/entitlement.go: the 28-day-capped programmable budget
*/
package vacation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/rotation-engine/admission"
	"github.com/warp/rotation-engine/entitlement"
	"github.com/warp/rotation-engine/roster"
	"github.com/warp/rotation-engine/schedule"
)

// Reserver confirms programmable-day reservations.
type Reserver struct {
	store    schedule.TxStore
	roster   *roster.Engine
	notifier schedule.Notifier
	clock    schedule.Clock
	log      zerolog.Logger
}

func NewReserver(store schedule.TxStore, r *roster.Engine, notifier schedule.Notifier, clock schedule.Clock, log zerolog.Logger) *Reserver {
	return &Reserver{
		store:    store,
		roster:   r,
		notifier: notifier,
		clock:    clock,
		log:      log.With().Str("component", "reserver").Logger(),
	}
}

// ReserveRequest is one employee's confirmation of vacation days for the
// generation year.
type ReserveRequest struct {
	EmployeeID schedule.EmployeeID
	Year       int
	Dates      []schedule.Date
}

// ReserveResult reports what was written.
type ReserveResult struct {
	EmployeeID       schedule.EmployeeID
	RecordIDs        []schedule.RecordID
	AssignmentID     schedule.AssignmentID // empty when no block assignment was open
	ProgrammableDays int
	AlreadyScheduled int
}

// ReserveDays validates and commits a reservation.
func (r *Reserver) ReserveDays(ctx context.Context, req ReserveRequest) (ReserveResult, error) {
	res := ReserveResult{EmployeeID: req.EmployeeID}

	if len(req.Dates) == 0 {
		return res, &schedule.InfeasibleError{EmployeeID: req.EmployeeID, Reason: "no dates requested"}
	}

	emp, err := r.store.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return res, err
	}
	if emp == nil {
		return res, &schedule.NotFoundError{Kind: "employee", ID: string(req.EmployeeID)}
	}
	group, err := r.store.GetGroup(ctx, emp.GroupID)
	if err != nil {
		return res, err
	}
	if group == nil {
		return res, &schedule.NotFoundError{Kind: "group", ID: string(emp.GroupID)}
	}

	seniority := entitlement.SeniorityYears(emp.HireDate, schedule.EndOfYear(req.Year))
	res.ProgrammableDays = entitlement.ProgrammableDaysCapped(seniority)

	res.AlreadyScheduled, err = r.scheduledAnnualDays(ctx, emp.ID, req.Year)
	if err != nil {
		return res, err
	}

	if len(req.Dates) > res.ProgrammableDays {
		return res, &schedule.InfeasibleError{
			EmployeeID: emp.ID,
			Reason:     fmt.Sprintf("requested %d days, programmable budget is %d", len(req.Dates), res.ProgrammableDays),
		}
	}
	if res.AlreadyScheduled+len(req.Dates) > res.ProgrammableDays {
		return res, &schedule.InfeasibleError{
			EmployeeID: emp.ID,
			Reason: fmt.Sprintf("%d days already scheduled; %d more would exceed the budget of %d",
				res.AlreadyScheduled, len(req.Dates), res.ProgrammableDays),
		}
	}

	now := r.clock.Now()
	err = r.store.WithTx(ctx, func(tx schedule.Store) error {
		adm := admission.New(tx, r.log)

		for _, day := range req.Dates {
			if err := r.validateDay(ctx, tx, adm, emp, group, day); err != nil {
				return err
			}

			rec := schedule.VacationRecord{
				ID:           schedule.RecordID(uuid.NewString()),
				EmployeeID:   emp.ID,
				Date:         day,
				Kind:         schedule.KindAnnual,
				Origin:       schedule.OriginManual,
				State:        schedule.RecordActive,
				Exchangeable: true,
				CreatedAt:    now,
			}
			if err := tx.SaveVacationRecord(ctx, rec); err != nil {
				return err
			}
			res.RecordIDs = append(res.RecordIDs, rec.ID)
		}

		// flip the open block assignment for the generation year
		assignments, err := tx.AssignmentsForEmployee(ctx, emp.ID, req.Year)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.State != schedule.AssignmentAssigned {
				continue
			}
			a.State = schedule.AssignmentReserved
			completed := now
			a.CompletedAt = &completed
			if err := tx.SaveAssignment(ctx, a); err != nil {
				return err
			}
			res.AssignmentID = a.ID
			break
		}
		return nil
	})
	if err != nil {
		res.RecordIDs = nil
		res.AssignmentID = ""
		return res, err
	}

	gid := group.ID
	n := schedule.Notification{
		Type:       schedule.NotifyReservationMade,
		Title:      "Vacation reservation confirmed",
		Body:       fmt.Sprintf("%s reserved %d vacation day(s) for %d", emp.Name, len(req.Dates), req.Year),
		Recipients: []schedule.EmployeeID{emp.ID},
		GroupID:    &gid,
		Priority:   schedule.PriorityNormal,
	}
	if err := r.notifier.Notify(ctx, n); err != nil {
		r.log.Warn().Err(err).Str("employee", string(emp.ID)).Msg("reservation notification failed")
	}

	return res, nil
}

func (r *Reserver) validateDay(ctx context.Context, tx schedule.Store, adm *admission.Controller, emp *schedule.Employee, group *schedule.Group, day schedule.Date) error {
	holiday, err := tx.IsHoliday(ctx, day)
	if err != nil {
		return err
	}
	if holiday {
		return &schedule.InfeasibleError{EmployeeID: emp.ID, Reason: fmt.Sprintf("%s is a holiday", day)}
	}
	if r.roster.IsRestDay(ctx, group.RuleReference, day) {
		return &schedule.InfeasibleError{EmployeeID: emp.ID, Reason: fmt.Sprintf("%s is a rest day for the crew", day)}
	}

	taken, err := tx.IsAbsentOn(ctx, emp.ID, day)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("day %s already booked: %w", day, schedule.ErrConflict)
	}

	id := emp.ID
	decision, err := adm.Check(ctx, admission.Request{GroupID: group.ID, Date: day, ExtraEmployee: &id})
	if err != nil {
		return err
	}
	if !decision.Admissible {
		return decision.Err()
	}
	return nil
}

// scheduledAnnualDays counts the employee's active annual records in a year.
func (r *Reserver) scheduledAnnualDays(ctx context.Context, id schedule.EmployeeID, year int) (int, error) {
	records, err := r.store.ListVacationRecords(ctx, id, year)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range records {
		if rec.Kind == schedule.KindAnnual && rec.State == schedule.RecordActive {
			n++
		}
	}
	return n, nil
}
