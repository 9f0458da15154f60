/*
roster.go - Shift rotation calendar engine

PURPOSE:
  Maps any calendar date to a shift code for a work group. A group follows a
  named rule (a repeating pattern of day codes, always a whole number of
  weeks) at a phase offset determined by its group number: group g reads the
  base pattern starting (g-1)*7 positions in.

KEY CONCEPTS:
  Rule reference: "R0144_04" = rule R0144, group 4. A bare "R0144" means
  group 1. Unknown rules and malformed references degrade to a default shift
  code at calendar time instead of failing; a missing calendar is worse than
  a slightly wrong one on the shop floor.

  Rotation anchor: day offsets are measured from a fixed reference date.
  The absolute value of the offset indexes into the group pattern, so two
  dates equidistant before and after the anchor share a code. Preserved
  behavior; do not rely on it.

  Holy Week pause: rotation crews pause during the Holy Week inactive span.
  Dates after the most recent span's end are pulled back one week before the
  offset is computed, so the week after the pause repeats the pause week's
  pattern.

DESIGN:
  The rule table is injected at construction and read-mostly afterwards.
  Administrative rule updates go through the storage collaborator and then
  SetRule; nothing mutates package state.

SEE ALSO:
  - factory/rules.go: Built-in rule presets
  - schedule/store.go: LatestSpanEnding (Holy Week lookup)
*/
package roster

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/warp/rotation-engine/schedule"
)

// DefaultShiftCode is returned when a reference cannot be resolved.
const DefaultShiftCode = "1"

// holyWeekSpanDays is how far dates past the span are pulled back.
const holyWeekSpanDays = 7

const holyWeekName = "Semana Santa"

// rotationAnchor is the fixed reference date for day-offset math.
var rotationAnchor = schedule.NewDate(2025, time.September, 15)

// RuleReference is a parsed rule identifier.
type RuleReference struct {
	Rule  schedule.RuleCode
	Group int
}

// SpanSource resolves named inactive spans. schedule.Store satisfies it.
type SpanSource interface {
	LatestSpanEnding(ctx context.Context, nameContains string, endBy schedule.Date) (*schedule.Holiday, error)
}

// Engine resolves shift codes for rule references and dates.
type Engine struct {
	mu    sync.RWMutex
	rules map[schedule.RuleCode][]string
	spans SpanSource // nil disables the Holy Week adjustment
}

// New builds an engine over the given rules. Rules violating the
// week-multiple invariant are dropped.
func New(rules []schedule.ShiftRule, spans SpanSource) *Engine {
	e := &Engine{
		rules: make(map[schedule.RuleCode][]string, len(rules)),
		spans: spans,
	}
	for _, r := range rules {
		if r.Valid() {
			e.rules[r.Code] = append([]string{}, r.Sequence...)
		}
	}
	return e
}

// SetRule adds or replaces one rule. Invalid rules are rejected.
func (e *Engine) SetRule(r schedule.ShiftRule) bool {
	if !r.Valid() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[r.Code] = append([]string{}, r.Sequence...)
	return true
}

// Rules returns the codes currently loaded.
func (e *Engine) Rules() []schedule.RuleCode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]schedule.RuleCode, 0, len(e.rules))
	for c := range e.rules {
		out = append(out, c)
	}
	return out
}

// ParseReference splits an identifier into rule code and group number.
// One part = group 1. Two parts = rule + group, where a non-numeric or
// non-positive group falls back to 1. Anything else, or an unknown rule
// code, is no match.
func (e *Engine) ParseReference(identifier string) (RuleReference, bool) {
	if identifier == "" {
		return RuleReference{}, false
	}

	parts := strings.Split(identifier, "_")
	var code schedule.RuleCode
	group := 1

	switch len(parts) {
	case 1:
		code = schedule.RuleCode(parts[0])
	case 2:
		code = schedule.RuleCode(parts[0])
		if n, err := strconv.Atoi(parts[1]); err == nil && n >= 1 {
			group = n
		}
	default:
		return RuleReference{}, false
	}

	e.mu.RLock()
	_, known := e.rules[code]
	e.mu.RUnlock()
	if !known {
		return RuleReference{}, false
	}
	return RuleReference{Rule: code, Group: group}, true
}

// BuildGroupPattern rotates the rule's base sequence left by (group-1)*7
// positions, modulo the sequence length. Output length equals input length.
func (e *Engine) BuildGroupPattern(code schedule.RuleCode, group int) []string {
	e.mu.RLock()
	base, ok := e.rules[code]
	e.mu.RUnlock()
	if !ok {
		return nil
	}

	n := len(base)
	out := make([]string, n)
	start := ((group-1)*7%n + n) % n
	for i := 0; i < n; i++ {
		out[i] = base[(start+i)%n]
	}
	return out
}

// ShiftCodeFor returns the shift code for a rule identifier on a date.
// Unresolvable references return DefaultShiftCode.
func (e *Engine) ShiftCodeFor(ctx context.Context, identifier string, d schedule.Date) string {
	ref, ok := e.ParseReference(identifier)
	if !ok {
		return DefaultShiftCode
	}
	return e.ShiftCodeForRef(ctx, ref, d)
}

// ShiftCodeForRef is ShiftCodeFor with an already-parsed reference.
func (e *Engine) ShiftCodeForRef(ctx context.Context, ref RuleReference, d schedule.Date) string {
	pattern := e.BuildGroupPattern(ref.Rule, ref.Group)
	if len(pattern) == 0 {
		return DefaultShiftCode
	}

	adjusted := e.adjustForHolyWeek(ctx, d)
	offset := schedule.DaysBetween(rotationAnchor, adjusted)
	if offset < 0 {
		offset = -offset
	}
	return pattern[offset%len(pattern)]
}

// IsRestDay reports whether the group's crew rests on d.
func (e *Engine) IsRestDay(ctx context.Context, identifier string, d schedule.Date) bool {
	return IsRestCode(e.ShiftCodeFor(ctx, identifier, d))
}

// adjustForHolyWeek pulls a date back one week when it falls after the most
// recent Holy Week span, so post-pause weeks repeat the pause week's pattern.
func (e *Engine) adjustForHolyWeek(ctx context.Context, d schedule.Date) schedule.Date {
	if e.spans == nil {
		return d
	}
	span, err := e.spans.LatestSpanEnding(ctx, holyWeekName, d)
	if err != nil || span == nil || span.EndDate == nil {
		return d
	}
	if d.After(*span.EndDate) {
		return d.AddDays(-holyWeekSpanDays)
	}
	return d
}

// IsRestCode reports whether a shift code means no scheduled work.
func IsRestCode(code string) bool {
	return code == "D" || code == "0"
}

// =============================================================================
// CALENDAR EXPANSION
// =============================================================================

// DaySchedule is one expanded calendar day.
type DaySchedule struct {
	Date schedule.Date
	Code string
	Rest bool
}

// Schedule expands a rule identifier over [from, to] inclusive.
func (e *Engine) Schedule(ctx context.Context, identifier string, from, to schedule.Date) []DaySchedule {
	var out []DaySchedule
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		code := e.ShiftCodeFor(ctx, identifier, d)
		out = append(out, DaySchedule{Date: d, Code: code, Rest: IsRestCode(code)})
	}
	return out
}
