package blocks_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rotation-engine/blocks"
	"github.com/warp/rotation-engine/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// pastWindow is a block window well before the fixture clock (2025-11-01).
func pastWindow() (time.Time, time.Time) {
	return utc(2025, time.October, 6, 9), utc(2025, time.October, 8, 9)
}

func futureWindow() (time.Time, time.Time) {
	return utc(2025, time.December, 1, 9), utc(2025, time.December, 3, 9)
}

// =============================================================================
// EXPIRY
// =============================================================================

func TestSweep_ExpiredBlockCompletesReservations(t *testing.T) {
	// GIVEN: an expired block whose only open assignment is Reservado
	// THEN: the reservation and the block both complete, stamped

	f := newBlockFixture(t)
	start, end := pastWindow()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: start, End: end, Capacity: 2, State: schedule.BlockApproved,
	})
	done := utc(2025, time.October, 7, 10)
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentReserved, AssignedAt: start, CompletedAt: &done,
	})

	stats, err := f.life.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.BlocksExamined)
	assert.Equal(t, 1, stats.BlocksCompleted)
	assert.Equal(t, 1, stats.ReservationsCompleted)
	assert.Zero(t, stats.Cascaded)

	a, err := f.store.GetAssignment(context.Background(), "as1")
	require.NoError(t, err)
	assert.Equal(t, schedule.AssignmentCompleted, a.State)

	b, err := f.store.GetBlock(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, schedule.BlockCompleted, b.State)
	require.NotNil(t, b.CompletedAt)
}

func TestSweep_PendingBlockIsLeftAlone(t *testing.T) {
	// not expired and an Asignado remains: nothing moves
	f := newBlockFixture(t)
	start, end := futureWindow()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: start, End: end, Capacity: 2, State: schedule.BlockApproved,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentAssigned, AssignedAt: f.clock.Now(),
	})

	stats, err := f.life.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.BlocksExamined)
	assert.Zero(t, stats.BlocksCompleted)

	b, err := f.store.GetBlock(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, schedule.BlockApproved, b.State)
}

func TestSweep_CompletesEarlyWhenAllOpenSettled(t *testing.T) {
	// GIVEN: a future-dated block where every open assignment is settled
	// THEN: it completes without waiting for expiry; the Reservado row keeps
	//       its state because the window had not ended

	f := newBlockFixture(t)
	start, end := futureWindow()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: start, End: end, Capacity: 2, State: schedule.BlockApproved,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentReserved, AssignedAt: f.clock.Now(),
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as2", BlockID: "b1", EmployeeID: "e2", Position: 2,
		State: schedule.AssignmentTransferred, AssignedAt: f.clock.Now(),
	})

	stats, err := f.life.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.BlocksCompleted)
	assert.Zero(t, stats.ReservationsCompleted)

	a, err := f.store.GetAssignment(context.Background(), "as1")
	require.NoError(t, err)
	assert.Equal(t, schedule.AssignmentReserved, a.State)
}

// =============================================================================
// CASCADE INTO THE QUEUE BLOCK
// =============================================================================

func TestSweep_CascadesNonRespondersToQueue(t *testing.T) {
	// GIVEN: an expired regular block with one Asignado and one Reservado,
	//        and an open queue block already holding a cascaded row
	// THEN: the non-responder moves to the queue after the existing row, the
	//       origin row becomes Transferido, and employee plus managers are
	//       notified

	f := newBlockFixture(t)
	f.addWorkers(t, 2)
	ctx := context.Background()

	start, end := pastWindow()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: start, End: end, Capacity: 2, State: schedule.BlockApproved,
	})
	qStart, qEnd := futureWindow()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "bq", GroupID: "g1", GenerationYear: 2026, BlockNumber: 2, IsQueue: true,
		Start: qStart, End: qEnd, Capacity: 2, State: schedule.BlockApproved,
	})

	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentAssigned, AssignedAt: start,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as2", BlockID: "b1", EmployeeID: "e2", Position: 2,
		State: schedule.AssignmentReserved, AssignedAt: start,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "asq", BlockID: "bq", EmployeeID: "e9", Position: 3,
		State: schedule.AssignmentNoResponse, AssignedAt: start,
	})

	stats, err := f.life.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.BlocksExamined)
	assert.Equal(t, 1, stats.BlocksCompleted, "queue block stays open")
	assert.Equal(t, 1, stats.ReservationsCompleted)
	assert.Equal(t, 1, stats.Cascaded)

	origin, err := f.store.GetAssignment(ctx, "as1")
	require.NoError(t, err)
	assert.Equal(t, schedule.AssignmentTransferred, origin.State)

	queueRows, err := f.store.ListAssignments(ctx, "bq")
	require.NoError(t, err)
	require.Len(t, queueRows, 2)
	cascaded := queueRows[1]
	assert.Equal(t, schedule.EmployeeID("e1"), cascaded.EmployeeID)
	assert.Equal(t, schedule.AssignmentNoResponse, cascaded.State)
	assert.Equal(t, 4, cascaded.Position, "appended after the highest open queue position")

	placements := f.recorder.OfType(schedule.NotifyQueuePlacement)
	require.Len(t, placements, 2)
	assert.Contains(t, placements[0].Recipients, schedule.EmployeeID("e1"))
	assert.Contains(t, placements[1].Recipients, schedule.EmployeeID("m1"))
}

func TestSweep_NoOpenQueueLeavesNonResponderInPlace(t *testing.T) {
	f := newBlockFixture(t)
	f.addWorkers(t, 1)
	ctx := context.Background()

	start, end := pastWindow()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: start, End: end, Capacity: 2, State: schedule.BlockApproved,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentAssigned, AssignedAt: start,
	})

	stats, err := f.life.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.NoResponses)
	assert.Zero(t, stats.Cascaded)
	assert.Equal(t, 1, stats.BlocksCompleted)

	a, err := f.store.GetAssignment(ctx, "as1")
	require.NoError(t, err)
	assert.Equal(t, schedule.AssignmentNoResponse, a.State)
	assert.NotEmpty(t, a.Observations)

	assert.Empty(t, f.recorder.OfType(schedule.NotifyQueuePlacement))
}

func TestSweep_RolledBackBlockDoesNotInflateStats(t *testing.T) {
	// GIVEN: an expired block whose cascade collides with an open queue row
	//        for the same employee, rolling the whole block transaction back
	// THEN: the sweep reports it as examined only; no counter reflects the
	//       undone Reservado completion and nothing in the store moved

	f := newBlockFixture(t)
	f.addWorkers(t, 2)
	ctx := context.Background()

	start, end := pastWindow()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: start, End: end, Capacity: 2, State: schedule.BlockApproved,
	})
	qStart, qEnd := futureWindow()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "bq", GroupID: "g1", GenerationYear: 2026, BlockNumber: 2, IsQueue: true,
		Start: qStart, End: qEnd, Capacity: 2, State: schedule.BlockApproved,
	})

	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentReserved, AssignedAt: start,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as2", BlockID: "b1", EmployeeID: "e2", Position: 2,
		State: schedule.AssignmentAssigned, AssignedAt: start,
	})
	// e2 already holds an open queue row, so cascading e2 again conflicts
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "asq", BlockID: "bq", EmployeeID: "e2", Position: 1,
		State: schedule.AssignmentAssigned, AssignedAt: start,
	})

	stats, err := f.life.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, blocks.SweepStats{BlocksExamined: 2}, stats, "only examined moves")

	a1, err := f.store.GetAssignment(ctx, "as1")
	require.NoError(t, err)
	assert.Equal(t, schedule.AssignmentReserved, a1.State, "completion rolled back")

	a2, err := f.store.GetAssignment(ctx, "as2")
	require.NoError(t, err)
	assert.Equal(t, schedule.AssignmentAssigned, a2.State)

	b, err := f.store.GetBlock(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, schedule.BlockApproved, b.State)

	assert.Empty(t, f.recorder.Sent)
}

// =============================================================================
// QUEUE BLOCK CLOSURE
// =============================================================================

func TestSweep_QueueBlockClosureAlertsManagers(t *testing.T) {
	// GIVEN: an expired queue block with two employees still Asignado
	// THEN: both become NoRespondio in place and managers get one
	//       high-priority notification naming each of them

	f := newBlockFixture(t)
	f.addWorkers(t, 2)
	ctx := context.Background()

	start, end := pastWindow()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "bq", GroupID: "g1", GenerationYear: 2026, BlockNumber: 3, IsQueue: true,
		Start: start, End: end, Capacity: 2, State: schedule.BlockApproved,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as1", BlockID: "bq", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentAssigned, AssignedAt: start,
	})
	f.saveAssignment(t, schedule.BlockAssignment{
		ID: "as2", BlockID: "bq", EmployeeID: "e2", Position: 2,
		State: schedule.AssignmentAssigned, AssignedAt: start,
	})

	stats, err := f.life.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.NoResponses)
	assert.Equal(t, 1, stats.BlocksCompleted)

	for _, id := range []schedule.AssignmentID{"as1", "as2"} {
		a, err := f.store.GetAssignment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, schedule.AssignmentNoResponse, a.State)
	}

	alerts := f.recorder.OfType(schedule.NotifyNoResponse)
	require.Len(t, alerts, 1)
	assert.Equal(t, schedule.PriorityHigh, alerts[0].Priority)
	assert.Contains(t, alerts[0].Recipients, schedule.EmployeeID("m1"))
	assert.Contains(t, alerts[0].Body, "Worker 1 (payroll 1001)")
	assert.Contains(t, alerts[0].Body, "Worker 2 (payroll 1002)")
}

func TestSweep_ExpiredEmptyQueueBlockJustCompletes(t *testing.T) {
	// nobody ever cascaded: the queue block completes silently
	f := newBlockFixture(t)
	start, end := pastWindow()
	f.saveBlock(t, schedule.ReservationBlock{
		ID: "bq", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1, IsQueue: true,
		Start: start, End: end, Capacity: 2, State: schedule.BlockApproved,
	})

	stats, err := f.life.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.BlocksCompleted)
	assert.Zero(t, stats.NoResponses)
	assert.Empty(t, f.recorder.Sent)
}
