/*
admission.go - Percentage-based absence admission control

PURPOSE:
  Decides whether one more employee of a work group may be absent on a given
  date without breaching the allowed absence percentage of the area's
  manning. Gates both the automatic planner's day picks and reservation
  confirmations.

RESOLUTION ORDER:
  manning:      month-specific area override, else the area's base manning
  max percent:  date-specific group exception, else the global configured
                maximum, else 4.5

SMALL GROUPS:
  A group smaller than ceil(100 / maxPercent) cannot express the percentage
  meaningfully. There the rule collapses to: at most one person away at a
  time (single-person groups are always admissible).

  Zero or negative manning never divides; it reads as 100% availability.

OUTPUT:
  Check returns the full Decision (counts, percentages, thresholds) so
  callers can log and audit the reasoning, not just the verdict.

SEE ALSO:
  - vacation/planner.go: what-if checks per candidate day
  - vacation/reserve.go: confirmation-time checks
*/
package admission

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/rotation-engine/schedule"
)

var (
	defaultMaxPercent = decimal.NewFromFloat(4.5)
	hundred           = decimal.NewFromInt(100)
)

// Request describes one admission question.
type Request struct {
	GroupID schedule.GroupID
	Date    schedule.Date

	// ExtraEmployee simulates one additional absence for this employee,
	// unless an active record already counts them on the date.
	ExtraEmployee *schedule.EmployeeID
}

// Decision is the full reasoning behind an admission verdict.
type Decision struct {
	Admissible bool
	GroupID    schedule.GroupID
	Date       schedule.Date

	ManningRequired  int
	PersonnelTotal   int
	PersonnelAbsent  int // includes the simulated absence, if any
	PercentAvailable decimal.Decimal
	PercentAbsence   decimal.Decimal
	MaxAllowed       decimal.Decimal
	MinimumGroupSize int
	SmallGroup       bool
	Reason           string
}

// Err returns nil for admissible decisions, an AdmissionDeniedError otherwise.
func (d Decision) Err() error {
	if d.Admissible {
		return nil
	}
	return &schedule.AdmissionDeniedError{
		GroupID:        d.GroupID,
		Date:           d.Date,
		PercentAbsence: d.PercentAbsence,
		MaxAllowed:     d.MaxAllowed,
		SmallGroup:     d.SmallGroup,
	}
}

// Controller answers admission questions against the store.
type Controller struct {
	store schedule.Store
	log   zerolog.Logger
}

func New(store schedule.Store, log zerolog.Logger) *Controller {
	return &Controller{store: store, log: log.With().Str("component", "admission").Logger()}
}

// Check computes the admission decision for one group and date.
func (c *Controller) Check(ctx context.Context, req Request) (Decision, error) {
	d := Decision{GroupID: req.GroupID, Date: req.Date}

	group, err := c.store.GetGroup(ctx, req.GroupID)
	if err != nil {
		return d, err
	}
	if group == nil {
		return d, &schedule.NotFoundError{Kind: "group", ID: string(req.GroupID)}
	}

	d.ManningRequired, err = c.manningFor(ctx, group, req.Date)
	if err != nil {
		return d, err
	}

	members, err := c.store.ListEmployeesByGroup(ctx, req.GroupID)
	if err != nil {
		return d, err
	}
	d.PersonnelTotal = len(members)

	currentAbsent, err := c.store.CountAbsences(ctx, req.GroupID, req.Date)
	if err != nil {
		return d, err
	}
	d.PersonnelAbsent = currentAbsent
	if req.ExtraEmployee != nil {
		counted, err := c.store.IsAbsentOn(ctx, *req.ExtraEmployee, req.Date)
		if err != nil {
			return d, err
		}
		if !counted {
			d.PersonnelAbsent++
		}
	}

	d.PercentAvailable, d.PercentAbsence = availability(d.PersonnelTotal, d.PersonnelAbsent, d.ManningRequired)

	d.MaxAllowed, err = c.maxAllowedFor(ctx, req.GroupID, req.Date)
	if err != nil {
		return d, err
	}
	d.MinimumGroupSize = minimumGroupSize(d.MaxAllowed)

	if d.PersonnelTotal < d.MinimumGroupSize {
		// Small-group carve-out: at most one person away at a time. The
		// current count decides, not the simulated one.
		d.SmallGroup = true
		d.Admissible = d.PersonnelTotal == 1 || currentAbsent == 0
		if d.Admissible {
			d.Reason = "small group: no current absence"
		} else {
			d.Reason = "small group: an absence is already scheduled"
		}
	} else {
		d.Admissible = d.PercentAbsence.LessThanOrEqual(d.MaxAllowed)
		if d.Admissible {
			d.Reason = "absence percentage within threshold"
		} else {
			d.Reason = "absence percentage exceeds threshold"
		}
	}

	c.log.Debug().
		Str("group", string(req.GroupID)).
		Str("date", req.Date.String()).
		Int("total", d.PersonnelTotal).
		Int("absent", d.PersonnelAbsent).
		Str("pct_absence", d.PercentAbsence.StringFixed(2)).
		Str("max", d.MaxAllowed.StringFixed(2)).
		Bool("admissible", d.Admissible).
		Msg("admission check")

	return d, nil
}

// manningFor resolves required headcount: month override first, then the
// area's base manning.
func (c *Controller) manningFor(ctx context.Context, group *schedule.Group, d schedule.Date) (int, error) {
	override, err := c.store.ManningOverrideFor(ctx, group.AreaID, d.Year(), d.Month())
	if err != nil {
		return 0, err
	}
	if override != nil {
		return override.Manning, nil
	}

	area, err := c.store.GetArea(ctx, group.AreaID)
	if err != nil {
		return 0, err
	}
	if area == nil {
		return 0, &schedule.NotFoundError{Kind: "area", ID: string(group.AreaID)}
	}
	return area.Manning, nil
}

// maxAllowedFor resolves the absence threshold: date exception, then global
// configuration, then the hardcoded default.
func (c *Controller) maxAllowedFor(ctx context.Context, groupID schedule.GroupID, d schedule.Date) (decimal.Decimal, error) {
	exc, err := c.store.PercentExceptionFor(ctx, groupID, d)
	if err != nil {
		return decimal.Zero, err
	}
	if exc != nil {
		return exc.MaxPercent, nil
	}

	global, err := c.store.GlobalMaxPercent(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if global != nil {
		return *global, nil
	}
	return defaultMaxPercent, nil
}

// availability computes (percentAvailable, percentAbsence). Zero or negative
// manning reads as full availability.
func availability(total, absent, manning int) (decimal.Decimal, decimal.Decimal) {
	if manning <= 0 {
		return hundred, decimal.Zero
	}

	available := decimal.NewFromInt(int64(total - absent)).
		Div(decimal.NewFromInt(int64(manning))).
		Mul(hundred)
	if available.GreaterThan(hundred) {
		available = hundred
	}

	absence := hundred.Sub(available)
	if absence.IsNegative() {
		absence = decimal.Zero
	}
	return available, absence
}

// minimumGroupSize is the smallest group where the percentage test is
// meaningful: ceil(100 / maxPercent).
func minimumGroupSize(maxPercent decimal.Decimal) int {
	if maxPercent.LessThanOrEqual(decimal.Zero) {
		return math.MaxInt32
	}
	return int(hundred.Div(maxPercent).Ceil().IntPart())
}
