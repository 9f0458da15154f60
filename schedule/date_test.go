package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rotation-engine/schedule"
)

func TestParseDate(t *testing.T) {
	d, err := schedule.ParseDate("2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 2026, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 2, d.Day())
	assert.Equal(t, "2026-03-02", d.String())

	_, err = schedule.ParseDate("02/03/2026")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := schedule.NewDate(2025, time.September, 15)
	assert.Equal(t, 0, schedule.DaysBetween(a, a))
	assert.Equal(t, 28, schedule.DaysBetween(a, a.AddDays(28)))
	assert.Equal(t, -7, schedule.DaysBetween(a, a.AddDays(-7)))

	// hour-of-day noise never changes the whole-day distance
	noisy := schedule.DateOf(time.Date(2025, time.September, 16, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, 1, schedule.DaysBetween(a, noisy))
}

func TestWeekStart_AlwaysMonday(t *testing.T) {
	for week := 1; week <= 52; week++ {
		d := schedule.WeekStart(2026, week)
		assert.Equal(t, time.Monday, d.Weekday(), "week %d", week)
	}

	// 2026-01-01 is a Thursday; week 1 snaps back to Monday 2025-12-29
	assert.True(t, schedule.WeekStart(2026, 1).Equal(schedule.NewDate(2025, time.December, 29)))
	assert.True(t, schedule.WeekStart(2026, 10).Equal(schedule.NewDate(2026, time.March, 2)))
}

func TestHolidayCovers(t *testing.T) {
	end := schedule.NewDate(2026, time.April, 5)
	span := schedule.Holiday{
		ID: "ss", Name: "Semana Santa", Date: schedule.NewDate(2026, time.March, 30),
		EndDate: &end, Active: true,
	}
	assert.True(t, span.Covers(schedule.NewDate(2026, time.March, 30)))
	assert.True(t, span.Covers(schedule.NewDate(2026, time.April, 2)))
	assert.True(t, span.Covers(end))
	assert.False(t, span.Covers(schedule.NewDate(2026, time.April, 6)))

	single := schedule.Holiday{ID: "d", Name: "Dia", Date: schedule.NewDate(2026, time.May, 1), Active: true}
	assert.True(t, single.Covers(schedule.NewDate(2026, time.May, 1)))
	assert.False(t, single.Covers(schedule.NewDate(2026, time.May, 2)))
}
