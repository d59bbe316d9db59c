package payroll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// LEAD-TIME TIERS
// =============================================================================

func TestLeadTimeTier_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		lead time.Duration
		want Tier
	}{
		{"no notice", 0, TierWithin1h},
		{"just under 1h", 59*time.Minute + 59*time.Second, TierWithin1h},
		{"exactly 1h", time.Hour, TierWithin2h},
		{"just under 2h", 2*time.Hour - time.Second, TierWithin2h},
		{"exactly 2h", 2 * time.Hour, TierWithin3h},
		{"exactly 3h", 3 * time.Hour, TierOver3h},
		{"two days", 48 * time.Hour, TierOver3h},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LeadTimeTier(tt.lead))
		})
	}
}

func TestPunishment_RequestCreatedExactlyOneHourBefore_UnderTwoHours(t *testing.T) {
	// GIVEN: An approved request created exactly 60 minutes before the lesson
	// WHEN: The absence is classified
	// THEN: It lands in the < 2h tier, not < 1h

	f := testFacts(t,
		[]Lesson{lesson("l1", at(4, 10, 0), StatusTeacherAbsent, PackageStandard)},
		[]AbsenceRequest{approved("r1", at(4, 0, 0), at(5, 0, 0), at(4, 9, 0))},
	)

	p := CalculatePunishment(f)

	assert.Equal(t, 0, p.Within1h.Count)
	assert.Equal(t, 1, p.Within2h.Count)
	assert.Equal(t, []string{"l1"}, p.Within2h.Items)
	assertAmount(t, "60000", p.Within2h.Amount)
	assertAmount(t, "60000", p.Total)
}

// =============================================================================
// OVER-LIMIT CAP
// =============================================================================

func TestPunishment_OverLimit_OnlyFirstTwoPerRequestGetLeadTime(t *testing.T) {
	// GIVEN: One approved request, filed days ahead, covering four absences
	// WHEN: The absences are classified
	// THEN: The first two by time are > 3h, the other two are over-limit

	lessons := []Lesson{
		lesson("l4", at(4, 12, 0), StatusTeacherAbsent, PackageStandard),
		lesson("l2", at(4, 10, 0), StatusTeacherAbsent, PackageStandard),
		lesson("l1", at(4, 9, 0), StatusCancelledByTeacher, PackageStandard),
		lesson("l3", at(4, 11, 0), StatusTeacherAbsent, PackageStandard),
	}
	f := testFacts(t, lessons,
		[]AbsenceRequest{approved("r1", at(4, 0, 0), at(5, 0, 0), at(1, 0, 0))},
	)

	p := CalculatePunishment(f)

	assert.Equal(t, []string{"l1", "l2"}, p.Over3h.Items)
	assert.Equal(t, []string{"l3", "l4"}, p.OverLimit.Items)
	assertAmount(t, "40000", p.Over3h.Amount)
	assertAmount(t, "100000", p.OverLimit.Amount)
	assertAmount(t, "140000", p.Total)
}

func TestPunishment_OverLimit_CapIsPerRequest(t *testing.T) {
	// GIVEN: Two requests on different days, three and two absences
	// WHEN: The absences are classified
	// THEN: Each request gets its own cap of two

	lessons := []Lesson{
		lesson("a1", at(4, 9, 0), StatusTeacherAbsent, PackageStandard),
		lesson("a2", at(4, 10, 0), StatusTeacherAbsent, PackageStandard),
		lesson("a3", at(4, 11, 0), StatusTeacherAbsent, PackageStandard),
		lesson("b1", at(5, 9, 0), StatusTeacherAbsent, PackageStandard),
		lesson("b2", at(5, 10, 0), StatusTeacherAbsent, PackageStandard),
	}
	f := testFacts(t, lessons, []AbsenceRequest{
		approved("r1", at(4, 0, 0), at(5, 0, 0), at(1, 0, 0)),
		approved("r2", at(5, 0, 0), at(6, 0, 0), at(2, 0, 0)),
	})

	p := CalculatePunishment(f)

	assert.Equal(t, []string{"a1", "a2", "b1", "b2"}, p.Over3h.Items)
	assert.Equal(t, []string{"a3"}, p.OverLimit.Items)
}

func TestPunishment_OverLimit_SharedByBookingAndSlotEvents(t *testing.T) {
	// GIVEN: One request with a booking absence between two matched slots
	// WHEN: The absences are classified
	// THEN: The cap counts them in time order, regardless of kind

	slotA := MatchedSlot{SlotID: "slot-a", Timestamp: at(4, 9, 0)}
	slotB := MatchedSlot{SlotID: "slot-b", Timestamp: at(4, 11, 0)}
	f := testFacts(t,
		[]Lesson{lesson("l1", at(4, 10, 0), StatusTeacherAbsent, PackageStandard)},
		[]AbsenceRequest{approved("r1", at(4, 0, 0), at(5, 0, 0), at(1, 0, 0), slotA, slotB)},
	)

	p := CalculatePunishment(f)

	assert.Equal(t, []string{SlotEventID("slot-a", at(4, 9, 0)), "l1"}, p.Over3h.Items)
	assert.Equal(t, []string{SlotEventID("slot-b", at(4, 11, 0))}, p.OverLimit.Items)
}

// =============================================================================
// FIRST-THREE EXEMPTION
// =============================================================================

func TestPunishment_FirstThree_WinsWithoutAnyRequest(t *testing.T) {
	// GIVEN: The teacher's first booking with a student, absent, no request filed
	// WHEN: The absence is classified
	// THEN: It is in the first-three tier, not without-leave

	f := testFacts(t,
		[]Lesson{lesson("l1", at(4, 10, 0), StatusTeacherAbsent, PackagePremium)},
		nil,
	)
	f.FirstThree["l1"] = true

	p := CalculatePunishment(f)

	assert.Equal(t, []string{"l1"}, p.FirstThree.Items)
	assert.Equal(t, 0, p.WithoutLeave.Count)
	assertAmount(t, "10000", p.FirstThree.Amount)
}

func TestPunishment_FirstThree_WinsOverApprovedRequest(t *testing.T) {
	f := testFacts(t,
		[]Lesson{lesson("l1", at(4, 10, 0), StatusTeacherAbsent, PackageStandard)},
		[]AbsenceRequest{approved("r1", at(4, 0, 0), at(5, 0, 0), at(1, 0, 0))},
	)
	f.FirstThree["l1"] = true

	p := CalculatePunishment(f)

	assert.Equal(t, 1, p.FirstThree.Count)
	assert.Equal(t, 0, p.Over3h.Count)
}

func TestPunishment_SlotFirstThree_TrackedSeparatelyAndOutsideCap(t *testing.T) {
	// GIVEN: A request with a first-three slot and two covered bookings after it
	// WHEN: The absences are classified
	// THEN: The slot is exempt-tier and does not use up the request's cap

	slot := MatchedSlot{SlotID: "slot-a", Timestamp: at(4, 8, 0), IsFirstThreeBookingsOfStudent: true}
	f := testFacts(t,
		[]Lesson{
			lesson("l1", at(4, 9, 0), StatusTeacherAbsent, PackageStandard),
			lesson("l2", at(4, 10, 0), StatusTeacherAbsent, PackageStandard),
		},
		[]AbsenceRequest{approved("r1", at(4, 0, 0), at(5, 0, 0), at(1, 0, 0), slot)},
	)

	p := CalculatePunishment(f)

	assert.Equal(t, []string{SlotEventID("slot-a", at(4, 8, 0))}, p.SlotFirstThree.Items)
	assert.Equal(t, 0, p.FirstThree.Count)
	assert.Equal(t, []string{"l1", "l2"}, p.Over3h.Items)
	assert.Equal(t, 0, p.OverLimit.Count)
}

// =============================================================================
// OTHER TIERS
// =============================================================================

func TestPunishment_TrialAbsence(t *testing.T) {
	f := testFacts(t,
		[]Lesson{lesson("l1", at(4, 10, 0), StatusTeacherAbsent, PackageTrial)},
		[]AbsenceRequest{approved("r1", at(4, 0, 0), at(5, 0, 0), at(1, 0, 0))},
	)

	p := CalculatePunishment(f)

	assert.Equal(t, []string{"l1"}, p.Trial.Items)
	assertAmount(t, "100000", p.Trial.Amount)
}

func TestPunishment_WithoutLeave(t *testing.T) {
	f := testFacts(t,
		[]Lesson{lesson("l1", at(4, 10, 0), StatusCancelledByTeacher, PackageStandard)},
		nil,
	)

	p := CalculatePunishment(f)

	assert.Equal(t, []string{"l1"}, p.WithoutLeave.Items)
	assertAmount(t, "150000", p.Total)
}

func TestPunishment_RequestCreatedAtOrAfterStart_CoversNothing(t *testing.T) {
	// GIVEN: Requests created at and after the lesson start
	// WHEN: The absences are classified
	// THEN: Neither gave notice, both are without leave

	f := testFacts(t,
		[]Lesson{
			lesson("l1", at(4, 10, 0), StatusTeacherAbsent, PackageStandard),
			lesson("l2", at(5, 10, 0), StatusTeacherAbsent, PackageStandard),
		},
		[]AbsenceRequest{
			approved("r1", at(4, 0, 0), at(5, 0, 0), at(4, 10, 0)),
			approved("r2", at(5, 0, 0), at(6, 0, 0), at(5, 11, 0)),
		},
	)

	p := CalculatePunishment(f)

	assert.Equal(t, []string{"l1", "l2"}, p.WithoutLeave.Items)
}

func TestPunishment_ChangeTime_OnlyAnAbsenceWhenCovered(t *testing.T) {
	// GIVEN: Two time changes, one inside an approved request
	// WHEN: The absences are classified
	// THEN: Only the covered one is an absence event

	f := testFacts(t,
		[]Lesson{
			lesson("covered", at(4, 10, 0), StatusChangeTime, PackageStandard),
			lesson("free", at(6, 10, 0), StatusChangeTime, PackageStandard),
		},
		[]AbsenceRequest{approved("r1", at(4, 0, 0), at(5, 0, 0), at(1, 0, 0))},
	)

	p := CalculatePunishment(f)

	assert.Equal(t, 1, p.ClassifiedEvents())
	assert.Equal(t, []string{"covered"}, p.Over3h.Items)
}

func TestPunishment_MissingPackage_FallsThroughToLeaveRules(t *testing.T) {
	f := testFacts(t,
		[]Lesson{lesson("l1", at(4, 10, 0), StatusTeacherAbsent, "")},
		nil,
	)
	f.FirstThree["l1"] = true

	p := CalculatePunishment(f)

	assert.Equal(t, 0, p.Trial.Count)
	assert.Equal(t, 0, p.FirstThree.Count)
	assert.Equal(t, []string{"l1"}, p.WithoutLeave.Items)
}

func TestPunishment_SlotAtBookingStart_CountedOnce(t *testing.T) {
	// GIVEN: A booking absence and a matched slot at the same instant
	// WHEN: The absences are classified
	// THEN: The lesson is counted once, as the booking

	slot := MatchedSlot{SlotID: "slot-a", Timestamp: at(4, 10, 0)}
	f := testFacts(t,
		[]Lesson{lesson("l1", at(4, 10, 0), StatusTeacherAbsent, PackageStandard)},
		[]AbsenceRequest{approved("r1", at(4, 0, 0), at(5, 0, 0), at(1, 0, 0), slot)},
	)

	p := CalculatePunishment(f)

	assert.Equal(t, 1, p.ClassifiedEvents())
	assert.Equal(t, []string{"l1"}, p.Over3h.Items)
}

func TestPunishment_SlotOutsidePeriod_Ignored(t *testing.T) {
	slot := MatchedSlot{SlotID: "slot-a", Timestamp: at(16, 10, 0)}
	f := testFacts(t, nil,
		[]AbsenceRequest{approved("r1", at(15, 0, 0), at(17, 0, 0), at(1, 0, 0), slot)},
	)

	p := CalculatePunishment(f)

	assert.Equal(t, 0, p.ClassifiedEvents())
	assert.True(t, p.Total.IsZero())
}

func TestPunishment_ExhaustiveClassification(t *testing.T) {
	// GIVEN: A mix of every kind of absence and some non-absences
	// WHEN: The punishment is computed
	// THEN: Every absence event lands in exactly one tier

	lessons := []Lesson{
		lesson("trial", at(3, 9, 0), StatusTeacherAbsent, PackageTrial),
		lesson("first", at(3, 10, 0), StatusTeacherAbsent, PackageStandard),
		lesson("lead1", at(4, 9, 0), StatusTeacherAbsent, PackageStandard),
		lesson("lead2", at(4, 10, 0), StatusCancelledByTeacher, PackageStandard),
		lesson("over", at(4, 11, 0), StatusTeacherAbsent, PackageStandard),
		lesson("change", at(4, 12, 0), StatusChangeTime, PackageStandard),
		lesson("nopkg", at(6, 9, 0), StatusTeacherAbsent, ""),
		lesson("leave", at(6, 10, 0), StatusCancelledByTeacher, PackagePremium),
		lesson("done", at(7, 9, 0), StatusCompleted, PackageStandard),
		lesson("student", at(7, 10, 0), StatusStudentAbsent, PackageStandard),
		lesson("byStudent", at(7, 11, 0), StatusCancelledByStudent, PackageStandard),
		lesson("uncovered", at(7, 12, 0), StatusChangeTime, PackageStandard),
	}
	slots := []MatchedSlot{
		{SlotID: "s-first", Timestamp: at(4, 8, 0), IsFirstThreeBookingsOfStudent: true},
		{SlotID: "s-over", Timestamp: at(4, 13, 0)},
		{SlotID: "s-dup", Timestamp: at(4, 9, 0)},
	}
	f := testFacts(t, lessons,
		[]AbsenceRequest{approved("r1", at(4, 0, 0), at(5, 0, 0), at(1, 0, 0), slots...)},
	)
	f.FirstThree["first"] = true

	events := absenceEvents(f)
	p := CalculatePunishment(f)

	// 8 booking events + 2 slot events (s-dup collapses into lead1)
	require.Len(t, events, 10)
	assert.Equal(t, len(events), p.ClassifiedEvents())
	assert.Equal(t, 1, p.Trial.Count)
	assert.Equal(t, 1, p.FirstThree.Count)
	assert.Equal(t, 1, p.SlotFirstThree.Count)
	assert.Equal(t, []string{"lead1", "lead2"}, p.Over3h.Items)
	assert.Equal(t, []string{"over", "change", SlotEventID("s-over", at(4, 13, 0))}, p.OverLimit.Items)
	assert.Equal(t, []string{"nopkg", "leave"}, p.WithoutLeave.Items)
}

// =============================================================================
// LATE MEMO
// =============================================================================

func memoed(id string, start time.Time, pkg PackageType, memoAt *time.Time) Lesson {
	l := lesson(id, start, StatusCompleted, pkg)
	l.HasMemo = true
	l.MemoTime = memoAt
	return l
}

func ptr(t time.Time) *time.Time { return &t }

func TestPunishment_LateMemo_Deadlines(t *testing.T) {
	// GIVEN: Memos filed around the trial (08:00) and paid (12:00) deadlines
	// WHEN: Late memos are checked
	// THEN: Only memos strictly after the deadline are penalized

	f := testFacts(t, []Lesson{
		memoed("trial-ok", at(4, 15, 0), PackageTrial, ptr(at(5, 8, 0))),
		memoed("trial-late", at(4, 16, 0), PackageTrial, ptr(at(5, 8, 1))),
		memoed("paid-ok", at(4, 17, 0), PackageStandard, ptr(at(5, 12, 0))),
		memoed("paid-late", at(4, 18, 0), PackagePremium, ptr(at(5, 12, 30))),
		memoed("no-package", at(4, 19, 0), "", ptr(at(9, 0, 0))),
		memoed("no-time", at(4, 20, 0), PackageStandard, nil),
	}, nil)

	p := CalculatePunishment(f)

	assert.Equal(t, []string{"trial-late", "paid-late"}, p.LateMemo.Items)
	assertAmount(t, "20000", p.LateMemo.Amount)
	assert.Equal(t, 0, p.ClassifiedEvents(), "late memos are not absences")
}

func TestPunishment_LateMemo_UsesLocalDay(t *testing.T) {
	// GIVEN: A location at UTC+7 and a lesson at 20:00 UTC (03:00 next day local)
	// WHEN: The memo is filed at 04:00 UTC two days later (11:00 local)
	// THEN: It is on time: the deadline is 12:00 local on the day after the local lesson date

	f := testFacts(t, []Lesson{
		memoed("l1", at(4, 20, 0), PackageStandard, ptr(at(6, 4, 0))),
	}, nil)
	f.Rates.Zone = time.FixedZone("UTC+7", 7*60*60)

	p := CalculatePunishment(f)

	assert.Equal(t, 0, p.LateMemo.Count)

	deadline, ok := MemoDeadline(f.Lessons[0], f.Rates.Zone)
	require.True(t, ok)
	assert.True(t, deadline.Equal(at(6, 5, 0)))
}
