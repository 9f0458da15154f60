/*
entitlement.go - Seniority-tiered vacation entitlement

PURPOSE:
  Maps an employee's whole-year seniority to three day buckets: fixed
  company days, automatically-assigned days, and programmable days the
  employee reserves through the block process. Entitlement is recomputed on
  demand; it is never stored or mutated.

TIERS:
  years 1-5:  tabulated (auto, programmable) pairs
  years >=6:  auto fixed at 5; programmable = 5 + 2 per further 5 years

TWO PATHS:
  Calculate is uncapped and is what the calculator itself promises.
  ProgrammableDaysCapped applies the 28-day total cap the block reservation
  process enforces. Both exist in the collective agreement paperwork and are
  deliberately not unified.

SEE ALSO:
  - vacation/planner.go: consumes AutoDays
  - blocks/scheduler.go: consumes ProgrammableDaysCapped
*/
package entitlement

import "github.com/warp/rotation-engine/schedule"

// CompanyDays is fixed for every employee regardless of seniority.
const CompanyDays = 12

// TotalCap is the 28-day ceiling the block reservation path enforces.
const TotalCap = 28

// Entitlement is the computed day budget for one seniority level.
type Entitlement struct {
	CompanyDays      int
	AutoDays         int
	ProgrammableDays int
}

// TotalDays is the sum of all three buckets.
func (e Entitlement) TotalDays() int {
	return e.CompanyDays + e.AutoDays + e.ProgrammableDays
}

// tier pairs for years 1..5
var earlyTiers = map[int][2]int{
	1: {0, 0},
	2: {0, 2},
	3: {0, 4},
	4: {3, 3},
	5: {4, 4},
}

// Calculate maps whole-year seniority to an entitlement. No upper cap.
func Calculate(seniorityYears int) Entitlement {
	e := Entitlement{CompanyDays: CompanyDays}
	switch {
	case seniorityYears <= 0:
		// pre-anniversary employees get company days only
	case seniorityYears <= 5:
		t := earlyTiers[seniorityYears]
		e.AutoDays = t[0]
		e.ProgrammableDays = t[1]
	default:
		e.AutoDays = 5
		e.ProgrammableDays = 5 + 2*((seniorityYears-6)/5)
	}
	return e
}

// ProgrammableDaysCapped is the programmable bucket with the 28-day total
// cap applied. Used only by the block reservation path.
func ProgrammableDaysCapped(seniorityYears int) int {
	e := Calculate(seniorityYears)
	allowed := TotalCap - e.CompanyDays - e.AutoDays
	if e.ProgrammableDays > allowed {
		if allowed < 0 {
			return 0
		}
		return allowed
	}
	return e.ProgrammableDays
}

// SeniorityYears returns full elapsed years between hire and asOf,
// decremented by one when asOf falls before that year's hire anniversary.
// Never negative.
func SeniorityYears(hireDate, asOf schedule.Date) int {
	years := asOf.Year() - hireDate.Year()
	anniversary := schedule.NewDate(asOf.Year(), hireDate.Month(), hireDate.Day())
	if asOf.Before(anniversary) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
