/*
punishment.go - Absence tier pipeline and late-memo check

PURPOSE:
  Classifies every absence of the period into exactly one penalty tier and,
  independently, penalizes memos filed after their deadline.

ABSENCE EVENTS:
  Booking-level: a lesson with status teacher_absent or cancelled_by_teacher,
  or change_time when an approved request covers its start.
  Slot-level: a matched recurring-slot occurrence of an approved request,
  timestamp inside the period. An occurrence at the same instant as a
  booking-level absence is the same lesson seen twice and is dropped.

  Events are sorted by (At, ID) before classification. The per-request
  lead-time cap depends on that order.

TIERS (first match wins):
  1. trial            trial-package booking           pct of slot
  2. slot_first_three slot flagged first-three        pct of slot
  3. first_three      student's first 3 paid lessons  pct of slot
  4. over_limit       covered, request cap reached    flat
  5. lead time        covered by an approved request  pct / flat by notice
                        < 1h, < 2h, < 3h  -> pct of slot
                        >= 3h             -> flat
  6. without_leave    anything else                   pct of slot

  "Covered" means an approved request whose window contains the event and
  whose CreatedTime is strictly before it. A request created at or after the
  lesson start gives no notice and covers nothing.

LEAD-TIME CAP:
  Each request places at most LeadTimeCapPerRequest events in the lead-time
  tiers. Booking and slot events of the same request share the cap, in
  timestamp order. The rest go to over_limit.

LATE MEMO:
  Completed + memoed lessons whose MemoTime is after the deadline: the local
  day after the lesson at 08:00 (trial) or 12:00 (standard/premium). A lesson
  without a package or without a memo time never matches.

SEE ALSO:
  - generic/rules.go: The pipeline evaluator
  - facts.go: FirstThree is assembled there
*/
package payroll

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/compensation-engine/generic"
)

// =============================================================================
// TIERS
// =============================================================================

type Tier string

const (
	TierTrial          Tier = "trial"
	TierSlotFirstThree Tier = "slot_first_three"
	TierFirstThree     Tier = "first_three"
	TierOverLimit      Tier = "over_limit"
	TierWithin1h       Tier = "within_1h"
	TierWithin2h       Tier = "within_2h"
	TierWithin3h       Tier = "within_3h"
	TierOver3h         Tier = "over_3h"
	TierWithoutLeave   Tier = "without_leave"
)

// =============================================================================
// ABSENCE EVENTS
// =============================================================================

// absenceEvent is one absent lesson or one absent recurring-slot occurrence.
// Exactly one of Lesson and Slot is set.
type absenceEvent struct {
	ID     string
	At     time.Time
	Lesson *Lesson
	Slot   *MatchedSlot

	// Request owns the slot occurrence. Nil for booking-level events.
	Request *AbsenceRequest
}

// SlotEventID identifies one occurrence of a recurring slot.
func SlotEventID(slotID string, at time.Time) string {
	return slotID + "@" + at.UTC().Format(time.RFC3339)
}

// isAbsenceEligible reports whether a lesson counts as a teacher absence.
// A time change is only an absence when approved leave covers it.
func isAbsenceEligible(l Lesson, absences []AbsenceRequest) bool {
	if l.IsTeacherAbsence() {
		return true
	}
	if l.Status != StatusChangeTime {
		return false
	}
	for _, abs := range absences {
		if abs.Contains(l.StartTime) {
			return true
		}
	}
	return false
}

func absenceEvents(f *Facts) []absenceEvent {
	var events []absenceEvent
	bookingStarts := make(map[int64]bool)

	for i := range f.Lessons {
		l := &f.Lessons[i]
		if !f.Period.Contains(l.StartTime) || !isAbsenceEligible(*l, f.Absences) {
			continue
		}
		bookingStarts[l.StartTime.UnixNano()] = true
		events = append(events, absenceEvent{ID: l.ID, At: l.StartTime, Lesson: l})
	}

	seen := make(map[string]bool)
	for i := range f.Absences {
		req := &f.Absences[i]
		for j := range req.MatchedSlots {
			slot := &req.MatchedSlots[j]
			if !f.Period.Contains(slot.Timestamp) || bookingStarts[slot.Timestamp.UnixNano()] {
				continue
			}
			id := SlotEventID(slot.SlotID, slot.Timestamp)
			if seen[id] {
				continue
			}
			seen[id] = true
			events = append(events, absenceEvent{ID: id, At: slot.Timestamp, Slot: slot, Request: req})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].At.Equal(events[j].At) {
			return events[i].At.Before(events[j].At)
		}
		return events[i].ID < events[j].ID
	})
	return events
}

// coveringRequest returns the approved request that gave notice for the
// event, preferring the request that owns a slot occurrence.
func coveringRequest(e absenceEvent, absences []AbsenceRequest) *AbsenceRequest {
	covers := func(r *AbsenceRequest) bool {
		return r.Contains(e.At) && r.CreatedTime.Before(e.At)
	}
	if e.Request != nil && covers(e.Request) {
		return e.Request
	}
	for i := range absences {
		if covers(&absences[i]) {
			return &absences[i]
		}
	}
	return nil
}

// LeadTimeTier buckets the notice given by a request. Lower bounds are
// inclusive: exactly one hour is < 2h.
func LeadTimeTier(lead time.Duration) Tier {
	switch {
	case lead < time.Hour:
		return TierWithin1h
	case lead < 2*time.Hour:
		return TierWithin2h
	case lead < 3*time.Hour:
		return TierWithin3h
	default:
		return TierOver3h
	}
}

// =============================================================================
// PIPELINE
// =============================================================================

// newAbsencePipeline builds the ordered tier rules for one computation.
// The lead-time cap state lives in the closure, so a pipeline must not be
// reused across teachers or periods.
func newAbsencePipeline(f *Facts) generic.Pipeline[absenceEvent, Tier] {
	used := make(map[string]int)

	return generic.Pipeline[absenceEvent, Tier]{
		Fallback: TierWithoutLeave,
		Rules: []generic.Rule[absenceEvent, Tier]{
			{
				Name: "trial",
				Match: func(e absenceEvent) (Tier, bool) {
					return TierTrial, e.Lesson != nil && e.Lesson.PackageType.IsTrial()
				},
			},
			{
				Name: "slot_first_three",
				Match: func(e absenceEvent) (Tier, bool) {
					return TierSlotFirstThree, e.Slot != nil && e.Slot.IsFirstThreeBookingsOfStudent
				},
			},
			{
				Name: "first_three",
				Match: func(e absenceEvent) (Tier, bool) {
					return TierFirstThree, e.Lesson != nil &&
						e.Lesson.PackageType.IsPaid() && f.FirstThree[e.Lesson.ID]
				},
			},
			{
				Name: "over_limit",
				Match: func(e absenceEvent) (Tier, bool) {
					req := coveringRequest(e, f.Absences)
					return TierOverLimit, req != nil && used[req.ID] >= LeadTimeCapPerRequest
				},
			},
			{
				Name: "lead_time",
				Match: func(e absenceEvent) (Tier, bool) {
					req := coveringRequest(e, f.Absences)
					if req == nil {
						return "", false
					}
					used[req.ID]++
					return LeadTimeTier(e.At.Sub(req.CreatedTime)), true
				},
			},
		},
	}
}

// =============================================================================
// PUNISHMENT CALCULATOR
// =============================================================================

// CalculatePunishment classifies every absence event and checks memo deadlines.
func CalculatePunishment(f *Facts) Punishment {
	var p Punishment
	table := f.Rates.Table
	pipeline := newAbsencePipeline(f)

	for _, e := range absenceEvents(f) {
		tier, _ := pipeline.Classify(e)
		line, amount := p.tierLine(tier, f.Rates)
		line.add(e.ID, amount)
	}

	for _, l := range f.Lessons {
		if f.Period.Contains(l.StartTime) && isLateMemo(l, f.Rates.Zone) {
			p.LateMemo.add(l.ID, table.LateMemoPunish)
		}
	}

	p.Total = generic.Sum(
		p.Trial.Amount,
		p.FirstThree.Amount,
		p.SlotFirstThree.Amount,
		p.Within1h.Amount,
		p.Within2h.Amount,
		p.Within3h.Amount,
		p.Over3h.Amount,
		p.OverLimit.Amount,
		p.WithoutLeave.Amount,
		p.LateMemo.Amount,
	)
	return p
}

func (p *Punishment) tierLine(tier Tier, r Rates) (*Line, decimal.Decimal) {
	t := r.Table
	switch tier {
	case TierTrial:
		return &p.Trial, r.OfSlot(t.PercentAbsentPunishTrial)
	case TierSlotFirstThree:
		return &p.SlotFirstThree, r.OfSlot(t.PercentAbsentPunishFirst3Slot)
	case TierFirstThree:
		return &p.FirstThree, r.OfSlot(t.PercentAbsentPunishFirst3Slot)
	case TierOverLimit:
		return &p.OverLimit, t.OverLimitPunish
	case TierWithin1h:
		return &p.Within1h, r.OfSlot(t.PercentAbsentPunish1h)
	case TierWithin2h:
		return &p.Within2h, r.OfSlot(t.PercentAbsentPunish2h)
	case TierWithin3h:
		return &p.Within3h, r.OfSlot(t.PercentAbsentPunish3h)
	case TierOver3h:
		return &p.Over3h, t.AbsentPunishGreater3h
	default:
		return &p.WithoutLeave, r.OfSlot(t.PercentAbsentPunish)
	}
}

// ClassifiedEvents is the number of absence events across all tiers.
// Late memos are not absences and are not counted.
func (p Punishment) ClassifiedEvents() int {
	return p.Trial.Count + p.FirstThree.Count + p.SlotFirstThree.Count +
		p.Within1h.Count + p.Within2h.Count + p.Within3h.Count + p.Over3h.Count +
		p.OverLimit.Count + p.WithoutLeave.Count
}

// =============================================================================
// LATE MEMO
// =============================================================================

// MemoDeadline returns the memo deadline of a lesson, or false when the
// lesson has no package to decide it.
func MemoDeadline(l Lesson, zone *time.Location) (time.Time, bool) {
	switch {
	case l.PackageType.IsTrial():
		return generic.NextDayAt(l.StartTime, zone, TrialMemoDeadlineHour), true
	case l.PackageType.IsPaid():
		return generic.NextDayAt(l.StartTime, zone, PaidMemoDeadlineHour), true
	default:
		return time.Time{}, false
	}
}

func isLateMemo(l Lesson, zone *time.Location) bool {
	if !l.IsPaidCompletion() || l.MemoTime == nil {
		return false
	}
	deadline, ok := MemoDeadline(l, zone)
	return ok && l.MemoTime.After(deadline)
}
