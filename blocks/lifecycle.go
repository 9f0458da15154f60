/*
lifecycle.go - Periodic block state machine

PURPOSE:
  Completes blocks and assignments by time or by full completion, and
  cascades non-responsive employees from regular blocks into the group's
  queue block. The cascade guarantees no reservation silently disappears:
  every assignment ends Completado, Reservado-then-Completado, or a tracked
  NoRespondio that raised a human-visible alert.

TRANSITIONS (per block in Activo or Aprobado):
  now past block end:      Reservado -> Completado (stamped)
  block completes when:    now past end, or open assignments exist and all
                           are Completado/Reservado
  regular block completes: Asignado -> Transferido, new NoRespondio
                           assignment appended to the group's open queue
                           block; employee and area managers notified
  queue block completes:   Asignado -> NoRespondio in place (terminal);
                           one high-priority notification lists everyone

CONCURRENCY:
  Each block is processed in one storage transaction so a completing block
  and a concurrent reservation confirmation never interleave partially.
  Sweep is an explicit entry point; the host ticker lives in api/sweeper.go.

SEE ALSO:
  - api/sweeper.go: the 6-hour host loop
*/
package blocks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/rotation-engine/schedule"
)

// Lifecycle runs the periodic sweep.
type Lifecycle struct {
	store    schedule.TxStore
	notifier schedule.Notifier
	clock    schedule.Clock
	log      zerolog.Logger
}

func NewLifecycle(store schedule.TxStore, notifier schedule.Notifier, clock schedule.Clock, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		store:    store,
		notifier: notifier,
		clock:    clock,
		log:      log.With().Str("component", "lifecycle").Logger(),
	}
}

// SweepStats counts what one sweep did.
type SweepStats struct {
	BlocksExamined        int
	BlocksCompleted       int
	ReservationsCompleted int
	Cascaded              int
	NoResponses           int
}

// Sweep processes every Activo/Aprobado block once. Safe to call at any
// time; the host serializes invocations.
func (l *Lifecycle) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	blocks, err := l.store.ListBlocksInStates(ctx, schedule.BlockActive, schedule.BlockApproved)
	if err != nil {
		return stats, err
	}

	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.BlocksExamined++

		delta, pending, err := l.sweepBlock(ctx, block)
		if err != nil {
			l.log.Error().Err(err).Str("block", string(block.ID)).Msg("block sweep failed")
			continue
		}
		stats.BlocksCompleted += delta.BlocksCompleted
		stats.ReservationsCompleted += delta.ReservationsCompleted
		stats.Cascaded += delta.Cascaded
		stats.NoResponses += delta.NoResponses
		for _, n := range pending {
			if err := l.notifier.Notify(ctx, n); err != nil {
				l.log.Warn().Err(err).Str("type", string(n.Type)).Msg("sweep notification failed")
			}
		}
	}

	l.log.Info().
		Int("examined", stats.BlocksExamined).
		Int("completed", stats.BlocksCompleted).
		Int("reservations_completed", stats.ReservationsCompleted).
		Int("cascaded", stats.Cascaded).
		Int("no_responses", stats.NoResponses).
		Msg("lifecycle sweep finished")

	return stats, nil
}

// sweepBlock applies the transitions for one block inside one transaction.
// Counter deltas and notifications are returned so the caller only observes
// them after commit; both reset on transaction retry.
func (l *Lifecycle) sweepBlock(ctx context.Context, block schedule.ReservationBlock) (SweepStats, []schedule.Notification, error) {
	now := l.clock.Now()
	var delta SweepStats
	var pending []schedule.Notification

	err := l.store.WithTx(ctx, func(tx schedule.Store) error {
		delta = SweepStats{}
		pending = pending[:0]

		assignments, err := tx.ListAssignments(ctx, block.ID)
		if err != nil {
			return err
		}

		expired := now.After(block.End)

		if expired {
			for i, a := range assignments {
				if a.State != schedule.AssignmentReserved {
					continue
				}
				a.State = schedule.AssignmentCompleted
				t := now
				a.CompletedAt = &t
				if err := tx.SaveAssignment(ctx, a); err != nil {
					return err
				}
				assignments[i] = a
				delta.ReservationsCompleted++
			}
		}

		if !expired && !allOpenSettled(assignments) {
			return nil
		}

		if block.IsQueue {
			ns, err := l.completeQueueBlock(ctx, tx, block, assignments, now, &delta)
			if err != nil {
				return err
			}
			pending = append(pending, ns...)
		} else {
			ns, err := l.completeRegularBlock(ctx, tx, block, assignments, now, &delta)
			if err != nil {
				return err
			}
			pending = append(pending, ns...)
		}

		block.State = schedule.BlockCompleted
		t := now
		block.CompletedAt = &t
		if err := tx.SaveBlock(ctx, block); err != nil {
			return err
		}
		delta.BlocksCompleted++
		return nil
	})
	if err != nil {
		return SweepStats{}, nil, err
	}
	return delta, pending, nil
}

// allOpenSettled reports whether open (non-Transferido) assignments exist
// and every one of them is Completado or Reservado.
func allOpenSettled(assignments []schedule.BlockAssignment) bool {
	open := 0
	for _, a := range assignments {
		if !a.State.Open() {
			continue
		}
		open++
		if a.State != schedule.AssignmentCompleted && a.State != schedule.AssignmentReserved {
			return false
		}
	}
	return open > 0
}

// completeRegularBlock cascades still-Asignado employees into the group's
// open queue block: the origin row becomes Transferido and a NoRespondio
// assignment is appended to the queue. When no open queue block exists the
// assignment becomes NoRespondio in place, which the report surfaces as
// urgent.
func (l *Lifecycle) completeRegularBlock(ctx context.Context, tx schedule.Store, block schedule.ReservationBlock, assignments []schedule.BlockAssignment, now time.Time, delta *SweepStats) ([]schedule.Notification, error) {
	queue, err := l.openQueueBlock(ctx, tx, block.GroupID, block.GenerationYear)
	if err != nil {
		return nil, err
	}

	var nextPos int
	if queue != nil {
		queueAssignments, err := tx.ListAssignments(ctx, queue.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range queueAssignments {
			if a.State.Open() && a.Position > nextPos {
				nextPos = a.Position
			}
		}
	}

	managers, areaID, err := l.areaManagers(ctx, tx, block.GroupID)
	if err != nil {
		return nil, err
	}

	var pending []schedule.Notification
	for _, a := range assignments {
		if a.State != schedule.AssignmentAssigned {
			continue
		}

		if queue == nil {
			// no open queue block: terminal in place
			a.State = schedule.AssignmentNoResponse
			a.Observations = "no response; no open queue block available"
			if err := tx.SaveAssignment(ctx, a); err != nil {
				return nil, err
			}
			delta.NoResponses++
			l.log.Warn().
				Str("block", string(block.ID)).
				Str("employee", string(a.EmployeeID)).
				Msg("no open queue block for cascade")
			continue
		}

		a.State = schedule.AssignmentTransferred
		a.Observations = fmt.Sprintf("did not respond during block %d; moved to queue block", block.BlockNumber)
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return nil, err
		}

		nextPos++
		cascaded := schedule.BlockAssignment{
			ID:         schedule.AssignmentID(uuid.NewString()),
			BlockID:    queue.ID,
			EmployeeID: a.EmployeeID,
			Position:   nextPos,
			State:      schedule.AssignmentNoResponse,
			AssignedAt: now,
		}
		if err := tx.SaveAssignment(ctx, cascaded); err != nil {
			return nil, err
		}
		delta.Cascaded++

		gid := block.GroupID
		pending = append(pending, schedule.Notification{
			Type:       schedule.NotifyQueuePlacement,
			Title:      "Reservation window missed",
			Body:       fmt.Sprintf("Your reservation block ended without a reservation. You were moved to the queue block starting %s.", queue.Start.Format("2006-01-02 15:04")),
			Recipients: []schedule.EmployeeID{a.EmployeeID},
			GroupID:    &gid,
			Priority:   schedule.PriorityNormal,
		})
		if len(managers) > 0 {
			aid := areaID
			pending = append(pending, schedule.Notification{
				Type:       schedule.NotifyQueuePlacement,
				Title:      "Employee moved to queue block",
				Body:       fmt.Sprintf("An employee of group %s did not reserve during block %d and was moved to the queue block.", block.GroupID, block.BlockNumber),
				Recipients: managers,
				AreaID:     &aid,
				Priority:   schedule.PriorityNormal,
			})
		}
	}
	return pending, nil
}

// completeQueueBlock marks still-Asignado employees NoRespondio in place and
// raises one high-priority notification listing everyone affected: this is
// the last stop before manual intervention.
func (l *Lifecycle) completeQueueBlock(ctx context.Context, tx schedule.Store, block schedule.ReservationBlock, assignments []schedule.BlockAssignment, now time.Time, delta *SweepStats) ([]schedule.Notification, error) {
	var affected []string
	for _, a := range assignments {
		if a.State != schedule.AssignmentAssigned {
			continue
		}
		a.State = schedule.AssignmentNoResponse
		a.Observations = "did not respond during the queue block"
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return nil, err
		}
		delta.NoResponses++

		label := string(a.EmployeeID)
		if emp, err := tx.GetEmployee(ctx, a.EmployeeID); err == nil && emp != nil {
			label = fmt.Sprintf("%s (payroll %s)", emp.Name, emp.Payroll)
		}
		affected = append(affected, label)
	}

	if len(affected) == 0 {
		return nil, nil
	}

	managers, areaID, err := l.areaManagers(ctx, tx, block.GroupID)
	if err != nil {
		return nil, err
	}

	gid := block.GroupID
	aid := areaID
	n := schedule.Notification{
		Type:       schedule.NotifyNoResponse,
		Title:      fmt.Sprintf("Queue block closed with %d unresolved employee(s)", len(affected)),
		Body:       "The following employees never reserved and require manual handling: " + strings.Join(affected, "; "),
		Recipients: managers,
		GroupID:    &gid,
		AreaID:     &aid,
		Priority:   schedule.PriorityHigh,
	}
	return []schedule.Notification{n}, nil
}

// openQueueBlock finds the group/year's queue block if it is not yet
// completed.
func (l *Lifecycle) openQueueBlock(ctx context.Context, tx schedule.Store, groupID schedule.GroupID, year int) (*schedule.ReservationBlock, error) {
	blocks, err := tx.ListBlocks(ctx, groupID, year)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		if blocks[i].IsQueue && blocks[i].State != schedule.BlockCompleted && blocks[i].State != schedule.BlockCanceled {
			return &blocks[i], nil
		}
	}
	return nil, nil
}

// areaManagers resolves the manager recipients for a group's area.
func (l *Lifecycle) areaManagers(ctx context.Context, tx schedule.Store, groupID schedule.GroupID) ([]schedule.EmployeeID, schedule.AreaID, error) {
	group, err := tx.GetGroup(ctx, groupID)
	if err != nil || group == nil {
		return nil, "", err
	}
	area, err := tx.GetArea(ctx, group.AreaID)
	if err != nil || area == nil {
		return nil, group.AreaID, err
	}
	return area.Managers, area.ID, nil
}
