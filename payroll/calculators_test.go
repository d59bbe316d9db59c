package payroll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/compensation-engine/generic"
)

// =============================================================================
// RATE RESOLUTION
// =============================================================================

func TestResolveRates_SlotIsHalfHourly(t *testing.T) {
	rates, err := ResolveRates(Teacher{ID: "t1", HourlyRate: d("200000")}, &Location{ID: "loc"})
	require.NoError(t, err)

	assertAmount(t, "100000", rates.SlotRate)
	assert.Equal(t, time.UTC, rates.Zone)
}

func TestResolveRates_NegativeValuesSurfaced(t *testing.T) {
	_, err := ResolveRates(Teacher{ID: "t1", HourlyRate: d("-1")}, &Location{ID: "loc"})
	var rateErr *RateError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "hourly_rate", rateErr.Field)
	assert.ErrorIs(t, err, generic.ErrInvalidRate)

	table := testTable()
	table.OverLimitPunish = d("-5")
	_, err = ResolveRates(Teacher{ID: "t1", HourlyRate: d("1")}, &Location{ID: "loc", Rates: table})
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "over_limit_punish", rateErr.Field)
}

func TestResolveRates_MissingLocation(t *testing.T) {
	_, err := ResolveRates(Teacher{ID: "t1", LocationID: "gone"}, nil)
	assert.ErrorIs(t, err, generic.ErrLocationNotFound)
	assert.True(t, generic.IsNotFound(err))
}

func TestResolveRates_BadZone(t *testing.T) {
	_, err := ResolveRates(Teacher{ID: "t1"}, &Location{ID: "loc", TimeZone: "Mars/Olympus"})
	assert.ErrorIs(t, err, generic.ErrInvalidRate)
}

// =============================================================================
// BASE SALARY
// =============================================================================

func TestBase_Categories(t *testing.T) {
	// GIVEN: Two memoed completions, one without memo, one student absence,
	//        and one lesson outside the period
	// WHEN: Base salary is computed
	// THEN: A1 pays full slots, A1' is listed at zero, A2 pays 50%

	noMemo := lesson("no-memo", at(4, 11, 0), StatusCompleted, PackageStandard)
	f := testFacts(t, []Lesson{
		completed("a", at(4, 9, 0)),
		completed("b", at(4, 10, 0)),
		noMemo,
		lesson("absent", at(4, 12, 0), StatusStudentAbsent, PackageStandard),
		lesson("confirmed", at(4, 13, 0), StatusConfirmed, PackageStandard),
		completed("outside", at(16, 9, 0)),
	}, nil)

	b := CalculateBase(f)

	assert.Equal(t, []string{"a", "b"}, b.Completed.Items)
	assert.Equal(t, []string{"no-memo"}, b.CompletedWithoutMemo.Items)
	assert.True(t, b.CompletedWithoutMemo.Amount.IsZero())
	assert.Equal(t, []string{"absent"}, b.StudentAbsent.Items)
	assertAmount(t, "50000", b.StudentAbsent.Amount)
	assertAmount(t, "250000", b.Total)
}

// =============================================================================
// BONUS
// =============================================================================

func TestBonus_Weekend_UsesLocalWeekday(t *testing.T) {
	// GIVEN: Friday 20:00 UTC, which is Saturday 03:00 at UTC+7
	// WHEN: Bonus is computed for a UTC+7 location
	// THEN: The lesson earns the weekend bonus

	f := testFacts(t, []Lesson{completed("fri-night", at(7, 20, 0))}, nil)

	b := CalculateBonus(f)
	assert.Equal(t, 0, b.Weekend.Count, "Friday in UTC")

	f.Rates.Zone = time.FixedZone("UTC+7", 7*60*60)
	b = CalculateBonus(f)
	assert.Equal(t, []string{"fri-night"}, b.Weekend.Items)
	assertAmount(t, "50000", b.Weekend.Amount)
}

func TestBonus_Weekend_RequiresMemo(t *testing.T) {
	f := testFacts(t, []Lesson{
		completed("sat", at(8, 10, 0)),
		lesson("sun-no-memo", at(9, 10, 0), StatusCompleted, PackageStandard),
	}, nil)

	b := CalculateBonus(f)

	assert.Equal(t, []string{"sat"}, b.Weekend.Items)
}

func TestBonus_Substitute(t *testing.T) {
	sub := completed("sub", at(4, 10, 0))
	sub.IsSubstituteTeaching = true
	f := testFacts(t, []Lesson{sub, completed("regular", at(4, 11, 0))}, nil)

	b := CalculateBonus(f)

	assert.Equal(t, []string{"sub"}, b.Substitute.Items)
	assertAmount(t, "20000", b.Substitute.Amount)
}

func TestBonus_Conversion_OrderDateMustBeInPeriod(t *testing.T) {
	f := testFacts(t, nil, nil)
	f.ConversionOrders = []Order{
		{ID: "o-in", StudentID: "s1", PaidClasses: 30, CreatedAt: at(10, 12, 0)},
		{ID: "o-before", StudentID: "s2", PaidClasses: 40, CreatedAt: at(1, 0, 0).Add(-time.Second)},
		{ID: "o-after", StudentID: "s3", PaidClasses: 30, CreatedAt: at(16, 0, 0)},
	}

	b := CalculateBonus(f)

	assert.Equal(t, []string{"o-in"}, b.Conversion.Items)
	assertAmount(t, "100000", b.Conversion.Amount)
}

func TestBonus_Referral_MilestoneInPeriod(t *testing.T) {
	f := testFacts(t, nil, nil)
	f.ReferralMilestones = []Lesson{
		completed("ref-100th", at(12, 9, 0)),
		completed("old-100th", at(1, 0, 0).AddDate(0, -1, 0)),
	}

	b := CalculateBonus(f)

	assert.Equal(t, []string{"ref-100th"}, b.Referral.Items)
	assertAmount(t, "300000", b.Referral.Amount)
}

func TestBonus_Attendance(t *testing.T) {
	tests := []struct {
		name     string
		lessons  []Lesson
		absences []AbsenceRequest
		want     bool
	}{
		{
			name:    "fifty paid lessons, nothing else",
			lessons: weekdayLessons(AttendanceMinLessons),
			want:    true,
		},
		{
			name:    "one lesson short",
			lessons: weekdayLessons(AttendanceMinLessons - 1),
			want:    false,
		},
		{
			name: "teacher absence",
			lessons: append(weekdayLessons(AttendanceMinLessons),
				lesson("absent", at(14, 20, 0), StatusTeacherAbsent, PackageStandard)),
			want: false,
		},
		{
			name:     "approved leave overlapping the period",
			lessons:  weekdayLessons(AttendanceMinLessons),
			absences: []AbsenceRequest{approved("r1", at(15, 20, 0), at(20, 0, 0), at(1, 0, 0))},
			want:     false,
		},
		{
			name:     "leave outside the period",
			lessons:  weekdayLessons(AttendanceMinLessons),
			absences: []AbsenceRequest{approved("r1", at(16, 0, 0), at(20, 0, 0), at(1, 0, 0))},
			want:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := CalculateBonus(testFacts(t, tt.lessons, tt.absences))
			if tt.want {
				assert.Equal(t, 1, b.Attendance.Count)
				assertAmount(t, "200000", b.Attendance.Amount)
			} else {
				assert.Equal(t, 0, b.Attendance.Count)
			}
		})
	}
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestCalculate_TotalIsBasePlusBonusMinusPunishment(t *testing.T) {
	sat := completed("sat", at(8, 10, 0))
	f := testFacts(t, []Lesson{
		sat,
		completed("mon", at(10, 10, 0)),
		lesson("gone", at(11, 10, 0), StatusTeacherAbsent, PackageStandard),
	}, nil)

	rec := Calculate(f)

	assertAmount(t, "200000", rec.BaseSalary.Total)
	assertAmount(t, "50000", rec.Bonus.Total)
	assertAmount(t, "150000", rec.Punishment.Total)
	assertAmount(t, "100000", rec.TotalSalary)
	assert.Equal(t, RecordID("t1", testPeriod), rec.ID)
}

func TestCalculate_NegativeTotalIsNotClamped(t *testing.T) {
	f := testFacts(t, []Lesson{
		lesson("x1", at(4, 10, 0), StatusCancelledByTeacher, PackageStandard),
		lesson("x2", at(5, 10, 0), StatusCancelledByTeacher, PackageStandard),
	}, nil)

	rec := Calculate(f)

	assertAmount(t, "-300000", rec.TotalSalary)
	assert.True(t, rec.TotalSalary.IsNegative())
}

func TestRecordID_Deterministic(t *testing.T) {
	local := generic.Period{
		Start: testPeriod.Start.In(time.FixedZone("UTC+7", 7*60*60)),
		End:   testPeriod.End.In(time.FixedZone("UTC+7", 7*60*60)),
	}

	assert.Equal(t, RecordID("t1", testPeriod), RecordID("t1", local))
	assert.NotEqual(t, RecordID("t1", testPeriod), RecordID("t2", testPeriod))
}
