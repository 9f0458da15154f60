package vacation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rotation-engine/schedule"
	"github.com/warp/rotation-engine/vacation"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newReserveFixture(t *testing.T) (*fixture, *vacation.Reserver, *schedule.Recorder) {
	t.Helper()
	f := newFixture(t)
	// 12 years by end of 2026: programmable budget of 7
	f.addEmployee(t, "e1", "1001", schedule.NewDate(2014, time.May, 1))
	rec := &schedule.Recorder{}
	r := vacation.NewReserver(f.store, f.roster, rec, f.clock, zerolog.Nop())
	return f, r, rec
}

func weekdays(start schedule.Date, n int) []schedule.Date {
	var out []schedule.Date
	for d := start; len(out) < n; d = d.AddDays(1) {
		if !d.IsWeekend() {
			out = append(out, d)
		}
	}
	return out
}

// =============================================================================
// RESERVATION CONFIRMATION
// =============================================================================

func TestReserveDays_CommitsAndFlipsAssignment(t *testing.T) {
	// GIVEN: an open block assignment for 2026 and three valid weekdays
	// WHEN: the employee confirms
	// THEN: exchangeable annual records are written, the assignment flips to
	//       Reservado, and the employee is notified

	f, r, recorder := newReserveFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveBlock(ctx, schedule.ReservationBlock{
		ID: "b1", GroupID: "g1", GenerationYear: 2026, BlockNumber: 1,
		Start: time.Date(2026, time.February, 2, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.February, 4, 9, 0, 0, 0, time.UTC),
		Capacity: 2, State: schedule.BlockApproved,
	}))
	require.NoError(t, f.store.SaveAssignment(ctx, schedule.BlockAssignment{
		ID: "as1", BlockID: "b1", EmployeeID: "e1", Position: 1,
		State: schedule.AssignmentAssigned, AssignedAt: f.clock.Now(),
	}))

	dates := weekdays(schedule.NewDate(2026, time.June, 1), 3)
	res, err := r.ReserveDays(ctx, vacation.ReserveRequest{EmployeeID: "e1", Year: 2026, Dates: dates})
	require.NoError(t, err)

	assert.Equal(t, 7, res.ProgrammableDays)
	assert.Zero(t, res.AlreadyScheduled)
	assert.Len(t, res.RecordIDs, 3)
	assert.Equal(t, schedule.AssignmentID("as1"), res.AssignmentID)

	records, err := f.store.ListVacationRecords(ctx, "e1", 2026)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, schedule.KindAnnual, rec.Kind)
		assert.Equal(t, schedule.OriginManual, rec.Origin)
		assert.True(t, rec.Exchangeable)
	}

	a, err := f.store.GetAssignment(ctx, "as1")
	require.NoError(t, err)
	assert.Equal(t, schedule.AssignmentReserved, a.State)
	require.NotNil(t, a.CompletedAt)

	sent := recorder.OfType(schedule.NotifyReservationMade)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Recipients, schedule.EmployeeID("e1"))
}

func TestReserveDays_NoOpenAssignmentStillCommits(t *testing.T) {
	f, r, _ := newReserveFixture(t)

	dates := weekdays(schedule.NewDate(2026, time.June, 1), 2)
	res, err := r.ReserveDays(context.Background(), vacation.ReserveRequest{EmployeeID: "e1", Year: 2026, Dates: dates})
	require.NoError(t, err)

	assert.Len(t, res.RecordIDs, 2)
	assert.Empty(t, res.AssignmentID)

	records, err := f.store.ListVacationRecords(context.Background(), "e1", 2026)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

// =============================================================================
// BUDGET ENFORCEMENT
// =============================================================================

func TestReserveDays_RejectsOverBudget(t *testing.T) {
	_, r, _ := newReserveFixture(t)

	dates := weekdays(schedule.NewDate(2026, time.June, 1), 8)
	_, err := r.ReserveDays(context.Background(), vacation.ReserveRequest{EmployeeID: "e1", Year: 2026, Dates: dates})

	var inf *schedule.InfeasibleError
	require.ErrorAs(t, err, &inf)
	assert.ErrorIs(t, err, schedule.ErrInfeasible)
}

func TestReserveDays_CountsAlreadyScheduledDays(t *testing.T) {
	// 5 annual days on the books leave room for only 2 more of the budget of 7
	f, r, _ := newReserveFixture(t)
	ctx := context.Background()

	for i, d := range weekdays(schedule.NewDate(2026, time.April, 6), 5) {
		require.NoError(t, f.store.SaveVacationRecord(ctx, schedule.VacationRecord{
			ID: schedule.RecordID(fmt.Sprintf("pre-%d", i)), EmployeeID: "e1", Date: d,
			Kind: schedule.KindAnnual, Origin: schedule.OriginManual, State: schedule.RecordActive,
		}))
	}

	dates := weekdays(schedule.NewDate(2026, time.June, 1), 3)
	res, err := r.ReserveDays(ctx, vacation.ReserveRequest{EmployeeID: "e1", Year: 2026, Dates: dates})
	assert.ErrorIs(t, err, schedule.ErrInfeasible)
	assert.Equal(t, 5, res.AlreadyScheduled)

	res, err = r.ReserveDays(ctx, vacation.ReserveRequest{EmployeeID: "e1", Year: 2026, Dates: dates[:2]})
	require.NoError(t, err)
	assert.Len(t, res.RecordIDs, 2)
}

func TestReserveDays_EmptyRequest(t *testing.T) {
	_, r, _ := newReserveFixture(t)
	_, err := r.ReserveDays(context.Background(), vacation.ReserveRequest{EmployeeID: "e1", Year: 2026})
	assert.ErrorIs(t, err, schedule.ErrInfeasible)
}

// =============================================================================
// DAY VALIDATION
// =============================================================================

func TestReserveDays_RejectsHolidayAndRestDay(t *testing.T) {
	f, r, _ := newReserveFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveHoliday(ctx, schedule.Holiday{
		ID: "h1", Name: "Plant shutdown", Date: schedule.NewDate(2026, time.June, 1), Active: true,
	}))

	_, err := r.ReserveDays(ctx, vacation.ReserveRequest{
		EmployeeID: "e1", Year: 2026, Dates: []schedule.Date{schedule.NewDate(2026, time.June, 1)},
	})
	assert.ErrorIs(t, err, schedule.ErrInfeasible)

	// 2026-06-06 is a Saturday, a rest day under N0439
	_, err = r.ReserveDays(ctx, vacation.ReserveRequest{
		EmployeeID: "e1", Year: 2026, Dates: []schedule.Date{schedule.NewDate(2026, time.June, 6)},
	})
	assert.ErrorIs(t, err, schedule.ErrInfeasible)
}

func TestReserveDays_ConflictRollsBackWholeRequest(t *testing.T) {
	// GIVEN: the second requested day is already booked
	// THEN: the request fails with a conflict and the first day is not kept

	f, r, _ := newReserveFixture(t)
	ctx := context.Background()

	booked := schedule.NewDate(2026, time.June, 2)
	require.NoError(t, f.store.SaveVacationRecord(ctx, schedule.VacationRecord{
		ID: "pre", EmployeeID: "e1", Date: booked,
		Kind: schedule.KindAnnual, Origin: schedule.OriginManual, State: schedule.RecordActive,
	}))

	res, err := r.ReserveDays(ctx, vacation.ReserveRequest{
		EmployeeID: "e1", Year: 2026,
		Dates: []schedule.Date{schedule.NewDate(2026, time.June, 1), booked},
	})
	assert.ErrorIs(t, err, schedule.ErrConflict)
	assert.Empty(t, res.RecordIDs)

	records, err := f.store.ListVacationRecords(ctx, "e1", 2026)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, schedule.RecordID("pre"), records[0].ID)
}

func TestReserveDays_UnknownEmployee(t *testing.T) {
	_, r, _ := newReserveFixture(t)
	_, err := r.ReserveDays(context.Background(), vacation.ReserveRequest{
		EmployeeID: "ghost", Year: 2026, Dates: []schedule.Date{schedule.NewDate(2026, time.June, 1)},
	})
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}
