/*
admin.go - Administrative block operations

PURPOSE:
  Everything done to generated blocks outside the automatic sweep: approval,
  manual employee transfer with an audit trail, per-date queries, the
  non-responder report, and the explicit regenerate-year delete.

SEE ALSO:
  - scheduler.go: generation
  - lifecycle.go: automatic state transitions
*/
package blocks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/rotation-engine/schedule"
)

// ApproveBlocks moves every Activo block of a year to Aprobado and notifies
// each affected area. Returns how many blocks were approved.
func (s *Scheduler) ApproveBlocks(ctx context.Context, year int) (int, error) {
	blocks, err := s.store.ListBlocksForYear(ctx, year)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	approved := 0
	areas := make(map[schedule.AreaID]bool)

	err = s.store.WithTx(ctx, func(tx schedule.Store) error {
		for _, b := range blocks {
			if b.State != schedule.BlockActive {
				continue
			}
			b.State = schedule.BlockApproved
			t := now
			b.ApprovedAt = &t
			if err := tx.SaveBlock(ctx, b); err != nil {
				return err
			}
			approved++

			group, err := tx.GetGroup(ctx, b.GroupID)
			if err != nil {
				return err
			}
			if group != nil {
				areas[group.AreaID] = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for areaID := range areas {
		aid := areaID
		n := schedule.Notification{
			Type:     schedule.NotifyBlockApproved,
			Title:    fmt.Sprintf("Reservation blocks approved for %d", year),
			Body:     "The reservation block schedule for your area has been approved.",
			AreaID:   &aid,
			Priority: schedule.PriorityNormal,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Warn().Err(err).Str("area", string(areaID)).Msg("approval notification failed")
		}
	}

	s.log.Info().Int("year", year).Int("approved", approved).Msg("blocks approved")
	return approved, nil
}

// TransferEmployee moves an employee to another block: the origin assignment
// becomes Transferido, a new assignment is appended to the target block, and
// an audit row records who moved whom and why.
func (s *Scheduler) TransferEmployee(ctx context.Context, assignmentID schedule.AssignmentID, targetBlockID schedule.BlockID, actor, reason string) (*schedule.BlockAssignment, error) {
	now := s.clock.Now()
	var created *schedule.BlockAssignment

	err := s.store.WithTx(ctx, func(tx schedule.Store) error {
		origin, err := tx.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if origin == nil {
			return &schedule.NotFoundError{Kind: "assignment", ID: string(assignmentID)}
		}
		if origin.State != schedule.AssignmentAssigned && origin.State != schedule.AssignmentNoResponse {
			return &schedule.InvalidStateError{
				Kind: "assignment", ID: string(assignmentID),
				State: string(origin.State), Op: "transfer",
			}
		}

		target, err := tx.GetBlock(ctx, targetBlockID)
		if err != nil {
			return err
		}
		if target == nil {
			return &schedule.NotFoundError{Kind: "block", ID: string(targetBlockID)}
		}
		if target.State != schedule.BlockActive && target.State != schedule.BlockApproved {
			return &schedule.InvalidStateError{
				Kind: "block", ID: string(targetBlockID),
				State: string(target.State), Op: "receive transfer",
			}
		}

		existing, err := tx.ListAssignments(ctx, targetBlockID)
		if err != nil {
			return err
		}
		occupied, maxPos := 0, 0
		for _, a := range existing {
			if a.State.Open() {
				occupied++
			}
			if a.Position > maxPos {
				maxPos = a.Position
			}
		}
		if !target.IsQueue && occupied >= target.Capacity {
			return fmt.Errorf("block %s is full: %w", targetBlockID, schedule.ErrConflict)
		}

		origin.State = schedule.AssignmentTransferred
		origin.Observations = fmt.Sprintf("transferred to block %s by %s: %s", targetBlockID, actor, reason)
		if err := tx.SaveAssignment(ctx, *origin); err != nil {
			return err
		}

		next := schedule.BlockAssignment{
			ID:         schedule.AssignmentID(uuid.NewString()),
			BlockID:    targetBlockID,
			EmployeeID: origin.EmployeeID,
			Position:   maxPos + 1,
			State:      schedule.AssignmentAssigned,
			AssignedAt: now,
		}
		if err := tx.SaveAssignment(ctx, next); err != nil {
			return err
		}
		created = &next

		change := schedule.BlockChange{
			ID:           uuid.NewString(),
			AssignmentID: origin.ID,
			EmployeeID:   origin.EmployeeID,
			FromBlockID:  origin.BlockID,
			ToBlockID:    targetBlockID,
			Actor:        actor,
			Reason:       reason,
			ChangedAt:    now,
		}
		return tx.SaveBlockChange(ctx, change)
	})
	if err != nil {
		return nil, err
	}

	n := schedule.Notification{
		Type:       schedule.NotifyBlockTransfer,
		Title:      "Your reservation block changed",
		Body:       fmt.Sprintf("You have been moved to a different reservation block: %s", reason),
		Recipients: []schedule.EmployeeID{created.EmployeeID},
		Priority:   schedule.PriorityNormal,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("employee", string(created.EmployeeID)).Msg("transfer notification failed")
	}

	return created, nil
}

// RegenerateYear deletes a group's blocks and assignments for a year so a
// fresh generation can run. Explicit administrative operation; nothing else
// ever deletes blocks.
func (s *Scheduler) RegenerateYear(ctx context.Context, groupID schedule.GroupID, year int) error {
	existing, err := s.store.ListBlocks(ctx, groupID, year)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return &schedule.NotFoundError{Kind: "blocks", ID: fmt.Sprintf("%s/%d", groupID, year)}
	}

	if err := s.store.DeleteBlocks(ctx, groupID, year); err != nil {
		return err
	}

	gid := groupID
	n := schedule.Notification{
		Type:     schedule.NotifyBlocksRegenerated,
		Title:    fmt.Sprintf("Reservation blocks for %d removed", year),
		Body:     "The block schedule was deleted by an administrator and will be regenerated.",
		GroupID:  &gid,
		Priority: schedule.PriorityNormal,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("group", string(groupID)).Msg("regenerate notification failed")
	}

	s.log.Warn().Str("group", string(groupID)).Int("year", year).Int("deleted", len(existing)).Msg("blocks deleted for regeneration")
	return nil
}

// BlocksByDate returns the block in progress at the given instant (nil when
// none) and the next upcoming one for a group.
func (s *Scheduler) BlocksByDate(ctx context.Context, groupID schedule.GroupID, at time.Time) (current, next *schedule.ReservationBlock, err error) {
	blocks, err := s.store.ListBlocks(ctx, groupID, at.Year())
	if err != nil {
		return nil, nil, err
	}
	if len(blocks) == 0 {
		// generation year often precedes the vacation year
		blocks, err = s.store.ListBlocks(ctx, groupID, at.Year()-1)
		if err != nil {
			return nil, nil, err
		}
	}

	for i := range blocks {
		b := blocks[i]
		if !b.Start.After(at) && !b.End.Before(at) {
			current = &b
			continue
		}
		if b.Start.After(at) && (next == nil || b.Start.Before(next.Start)) {
			nb := b
			next = &nb
		}
	}
	return current, next, nil
}

// NonResponder is one row of the non-responder report.
type NonResponder struct {
	EmployeeID schedule.EmployeeID
	Name       string
	Payroll    string
	GroupID    schedule.GroupID
	BlockID    schedule.BlockID
	Position   int
	Urgent     bool // in the queue block: last stop before manual handling
}

// NonResponders reports every NoRespondio assignment for a year.
func (s *Scheduler) NonResponders(ctx context.Context, year int) ([]NonResponder, error) {
	blocks, err := s.store.ListBlocksForYear(ctx, year)
	if err != nil {
		return nil, err
	}

	var out []NonResponder
	for _, b := range blocks {
		assignments, err := s.store.ListAssignments(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range assignments {
			if a.State != schedule.AssignmentNoResponse {
				continue
			}
			row := NonResponder{
				EmployeeID: a.EmployeeID,
				GroupID:    b.GroupID,
				BlockID:    b.ID,
				Position:   a.Position,
				Urgent:     b.IsQueue,
			}
			emp, err := s.store.GetEmployee(ctx, a.EmployeeID)
			if err != nil {
				return nil, err
			}
			if emp != nil {
				row.Name = emp.Name
				row.Payroll = emp.Payroll
			}
			out = append(out, row)
		}
	}
	return out, nil
}
