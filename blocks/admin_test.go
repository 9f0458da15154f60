package blocks_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rotation-engine/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func (f *blockFixture) saveBlock(t *testing.T, b schedule.ReservationBlock) {
	t.Helper()
	require.NoError(t, f.store.SaveBlock(context.Background(), b))
}

func (f *blockFixture) saveAssignment(t *testing.T, a schedule.BlockAssignment) {
	t.Helper()
	require.NoError(t, f.store.SaveAssignment(context.Background(), a))
}

// =============================================================================
// APPROVAL
// =============================================================================

func TestApproveBlocks_MovesActiveToApproved(t *testing.T) {
	// GIVEN: a generated year plus one already-completed block
	// WHEN: approving
	// THEN: only Activo blocks flip, each stamped, and the area is notified

	f := newBlockFixture(t)
	f.addWorkers(t, 3)
	require.NoError(t, f.generate(t).Err)

	done := f.clock.Now()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "old", GroupID: "g1", GenerationYear: 2026, BlockNumber: 99,
		Start: utc(2025, time.October, 1, 9), End: utc(2025, time.October, 3, 9),
		Capacity: 2, State: schedule.BlockCompleted, CompletedAt: &done,
	})

	ctx := context.Background()
	n, err := f.sched.ApproveBlocks(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 3, n) // 2 regular + queue

	list, err := f.store.ListBlocks(ctx, "g1", 2026)
	require.NoError(t, err)
	for _, b := range list {
		if b.ID == "old" {
			assert.Equal(t, schedule.BlockCompleted, b.State)
			continue
		}
		assert.Equal(t, schedule.BlockApproved, b.State)
		assert.NotNil(t, b.ApprovedAt)
	}

	assert.Len(t, f.recorder.OfType(schedule.NotifyBlockApproved), 1)
}

// =============================================================================
// MANUAL TRANSFER
// =============================================================================

func TestTransferEmployee_MovesAndAudits(t *testing.T) {
	f := newBlockFixture(t)
	ctx := context.Background()

	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: utc(2025, time.November, 3, 9), End: utc(2025, time.November, 5, 9),
		Capacity: 1, State: schedule.BlockApproved,
	})
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b2", GroupID: "g1", GenerationYear: 2026, BlockNumber: 2,
		Start: utc(2025, time.November, 5, 9), End: utc(2025, time.November, 7, 9),
		Capacity: 1, State: schedule.BlockApproved,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentAssigned, AssignedAt: f.clock.Now(),
	})

	created, err := f.sched.TransferEmployee(ctx, "as1", "b2", "hr.lopez", "medical leave overlap")
	require.NoError(t, err)

	assert.Equal(t, schedule.BlockID("b2"), created.BlockID)
	assert.Equal(t, schedule.EmployeeID("e1"), created.EmployeeID)
	assert.Equal(t, 1, created.Position)
	assert.Equal(t, schedule.AssignmentAssigned, created.State)

	origin, err := f.store.GetAssignment(ctx, "as1")
	require.NoError(t, err)
	assert.Equal(t, schedule.AssignmentTransferred, origin.State)
	assert.Contains(t, origin.Observations, "hr.lopez")

	changes := f.store.BlockChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, schedule.BlockID("b1"), changes[0].FromBlockID)
	assert.Equal(t, schedule.BlockID("b2"), changes[0].ToBlockID)
	assert.Equal(t, "hr.lopez", changes[0].Actor)

	assert.Len(t, f.recorder.OfType(schedule.NotifyBlockTransfer), 1)
}

func TestTransferEmployee_RejectsFullTarget(t *testing.T) {
	f := newBlockFixture(t)

	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: utc(2025, time.November, 3, 9), End: utc(2025, time.November, 5, 9),
		Capacity: 1, State: schedule.BlockApproved,
	})
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b2", GroupID: "g1", GenerationYear: 2026, BlockNumber: 2,
		Start: utc(2025, time.November, 5, 9), End: utc(2025, time.November, 7, 9),
		Capacity: 1, State: schedule.BlockApproved,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentAssigned, AssignedAt: f.clock.Now(),
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as2", BlockID: "b2", EmployeeID: "e2", Position: 1,
		State: schedule.AssignmentAssigned, AssignedAt: f.clock.Now(),
	})

	_, err := f.sched.TransferEmployee(context.Background(), "as1", "b2", "hr.lopez", "swap")
	assert.ErrorIs(t, err, schedule.ErrConflict)

	// origin untouched after the rollback
	origin, err := f.store.GetAssignment(context.Background(), "as1")
	require.NoError(t, err)
	assert.Equal(t, schedule.AssignmentAssigned, origin.State)
}

func TestTransferEmployee_RejectsSettledOrigin(t *testing.T) {
	f := newBlockFixture(t)

	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: utc(2025, time.November, 3, 9), End: utc(2025, time.November, 5, 9),
		Capacity: 1, State: schedule.BlockApproved,
	})
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b2", GroupID: "g1", GenerationYear: 2026, BlockNumber: 2,
		Start: utc(2025, time.November, 5, 9), End: utc(2025, time.November, 7, 9),
		Capacity: 1, State: schedule.BlockApproved,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentReserved, AssignedAt: f.clock.Now(),
	})

	_, err := f.sched.TransferEmployee(context.Background(), "as1", "b2", "hr.lopez", "swap")
	assert.ErrorIs(t, err, schedule.ErrInvalidState)

	_, err = f.sched.TransferEmployee(context.Background(), "missing", "b2", "hr.lopez", "swap")
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

// =============================================================================
// REGENERATION
// =============================================================================

func TestRegenerateYear_DeletesAndNotifies(t *testing.T) {
	f := newBlockFixture(t)
	f.addWorkers(t, 3)
	require.NoError(t, f.generate(t).Err)
	ctx := context.Background()

	require.NoError(t, f.sched.RegenerateYear(ctx, "g1", 2026))

	list, err := f.store.ListBlocks(ctx, "g1", 2026)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Len(t, f.recorder.OfType(schedule.NotifyBlocksRegenerated), 1)

	// a second generation run is now allowed
	require.NoError(t, f.generate(t).Err)
}

func TestRegenerateYear_NothingToDelete(t *testing.T) {
	f := newBlockFixture(t)
	err := f.sched.RegenerateYear(context.Background(), "g1", 2026)
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestBlocksByDate_CurrentAndNext(t *testing.T) {
	f := newBlockFixture(t)
	ctx := context.Background()

	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2025, BlockNumber: 1,
		Start: utc(2025, time.November, 3, 9), End: utc(2025, time.November, 5, 9),
		Capacity: 2, State: schedule.BlockApproved,
	})
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b2", GroupID: "g1", GenerationYear: 2025, BlockNumber: 2,
		Start: utc(2025, time.November, 5, 9), End: utc(2025, time.November, 7, 9),
		Capacity: 2, State: schedule.BlockApproved,
	})

	// inside block 1's window
	current, next, err := f.sched.BlocksByDate(ctx, "g1", utc(2025, time.November, 4, 12))
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 1, current.BlockNumber)
	require.NotNil(t, next)
	assert.Equal(t, 2, next.BlockNumber)

	// before every window: no current, first block is next
	current, next, err = f.sched.BlocksByDate(ctx, "g1", utc(2025, time.November, 1, 12))
	require.NoError(t, err)
	assert.Nil(t, current)
	require.NotNil(t, next)
	assert.Equal(t, 1, next.BlockNumber)
}

func TestBlocksByDate_FallsBackToPreviousGenerationYear(t *testing.T) {
	// generation year 2026 blocks queried at a 2027 instant resolve through
	// the year-1 fallback
	f := newBlockFixture(t)
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: utc(2027, time.January, 4, 9), End: utc(2027, time.January, 6, 9),
		Capacity: 2, State: schedule.BlockApproved,
	})

	current, _, err := f.sched.BlocksByDate(context.Background(), "g1", utc(2027, time.January, 5, 12))
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, schedule.BlockID("b1"), current.ID)
}

func TestNonResponders_ReportsQueueRowsAsUrgent(t *testing.T) {
	f := newBlockFixture(t)
	f.addWorkers(t, 2)
	ctx := context.Background()

	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: utc(2025, time.November, 3, 9), End: utc(2025, time.November, 5, 9),
		Capacity: 2, State: schedule.BlockCompleted,
	})
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "bq", GroupID: "g1", GenerationYear: 2026, BlockNumber: 2, IsQueue: true,
		Start: utc(2025, time.November, 5, 9), End: utc(2025, time.November, 7, 9),
		Capacity: 2, State: schedule.BlockCompleted,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentNoResponse, AssignedAt: f.clock.Now(),
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as2", BlockID: "bq", EmployeeID: "e2", Position: 1,
		State: schedule.AssignmentNoResponse, AssignedAt: f.clock.Now(),
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as3", BlockID: "b1", EmployeeID: "e2", Position: 2,
		State: schedule.AssignmentCompleted, AssignedAt: f.clock.Now(),
	})

	rows, err := f.sched.NonResponders(ctx, 2026)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byEmployee := map[schedule.EmployeeID]bool{}
	for _, r := range rows {
		byEmployee[r.EmployeeID] = r.Urgent
		assert.NotEmpty(t, r.Name)
		assert.NotEmpty(t, r.Payroll)
	}
	assert.False(t, byEmployee["e1"], "regular block row")
	assert.True(t, byEmployee["e2"], "queue block row")
}
