/*
rules.go - Built-in shift rule presets

PURPOSE:
  Ships the union's negotiated rotation rules so a fresh deployment has a
  working calendar before any administrative configuration. Each rule is a
  whole number of weeks of day codes; "D" is a rest day.

USAGE:
  engine := roster.New(factory.BuiltinRules(), store)

  // or persist them so admins can edit through the API:
  factory.SeedRules(ctx, store)

SEE ALSO:
  - roster/roster.go: The engine consuming these rules
*/
package factory

import (
	"context"

	"github.com/warp/rotation-engine/schedule"
)

// BuiltinRules returns the negotiated rotation rule presets.
func BuiltinRules() []schedule.ShiftRule {
	return []schedule.ShiftRule{
		{Code: "R0144", Sequence: []string{"1", "1", "1", "1", "1", "D", "D", "D", "3", "3", "3", "3", "3", "D", "2", "2", "D", "D", "2", "2", "3", "3", "D", "2", "2", "D", "1", "1"}},
		{Code: "N0439", Sequence: []string{"1", "1", "1", "1", "1", "D", "D"}},
		{Code: "R0135", Sequence: []string{"1", "1", "1", "1", "1", "D", "D", "D", "1", "1", "1", "1", "1", "D"}},
		{Code: "R0229", Sequence: []string{"D", "1", "1", "1", "1", "1", "D", "1", "1", "D", "D", "1", "1", "1", "1", "D", "1", "1", "D", "1", "1", "2", "2", "2", "2", "2", "D", "D"}},
		{Code: "R0154", Sequence: []string{"2", "2", "2", "2", "2", "D", "D", "D", "1", "1", "1", "1", "1", "D"}},
		{Code: "R0267", Sequence: []string{"2", "2", "D", "2", "2", "2", "D", "1", "1", "1", "1", "1", "D", "D", "D", "3", "3", "3", "D", "1", "1"}},
		{Code: "R0130", Sequence: []string{"1", "1", "1", "1", "1", "D", "D", "D", "3", "3", "D", "2", "2", "2", "2", "2", "D", "3", "3", "3", "3", "3", "D", "2", "2", "D", "1", "1"}},
		{Code: "N0440", Sequence: []string{"2", "2", "2", "2", "2", "D", "D"}},
		{Code: "N0A01", Sequence: []string{"1", "1", "1", "D", "1", "1", "D"}},
		{Code: "R0133", Sequence: []string{"1", "1", "1", "1", "1", "D", "D", "2", "2", "2", "2", "2", "D", "D"}},
		{Code: "R0228", Sequence: []string{"1", "1", "1", "1", "1", "D", "D", "2", "2", "2", "2", "2", "D", "D", "D", "1", "1", "1", "1", "1", "D", "2", "2", "2", "2", "2", "D", "D"}},
	}
}

// SeedRules persists the presets, skipping codes that already exist so
// administrative edits survive restarts.
func SeedRules(ctx context.Context, store schedule.Store) error {
	for _, r := range BuiltinRules() {
		existing, err := store.GetShiftRule(ctx, r.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := store.SaveShiftRule(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
