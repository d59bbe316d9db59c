package payroll

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/compensation-engine/generic"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// March 2025: the 1st is a Saturday, the 3rd a Monday.
var testPeriod = generic.Period{
	Start: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC),
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}

// testTable: slot rate is 100,000 at the test hourly rate of 200,000.
func testTable() RateTable {
	return RateTable{
		PercentSalaryStudentAbsent:    d("50"),
		WeekendBonus:                  d("50000"),
		ConversionBonus:               d("100000"),
		AttendanceBonus:               d("200000"),
		ReferralBonus:                 d("300000"),
		PercentSubstituteBonus:        d("20"),
		PercentAbsentPunishTrial:      d("100"),
		PercentAbsentPunishFirst3Slot: d("10"),
		PercentAbsentPunish1h:         d("80"),
		PercentAbsentPunish2h:         d("60"),
		PercentAbsentPunish3h:         d("40"),
		AbsentPunishGreater3h:         d("20000"),
		PercentAbsentPunish:           d("150"),
		OverLimitPunish:               d("50000"),
		LateMemoPunish:                d("10000"),
	}
}

func testFacts(t *testing.T, lessons []Lesson, absences []AbsenceRequest) *Facts {
	t.Helper()
	teacher := Teacher{ID: "t1", LocationID: "loc", HourlyRate: d("200000"), Active: true}
	rates, err := ResolveRates(teacher, &Location{ID: "loc", Rates: testTable()})
	require.NoError(t, err)

	SortLessons(lessons)
	return &Facts{
		Teacher:    teacher,
		Rates:      rates,
		Period:     testPeriod,
		Lessons:    lessons,
		Absences:   absences,
		FirstThree: make(map[string]bool),
	}
}

func lesson(id string, start time.Time, status LessonStatus, pkg PackageType) Lesson {
	return Lesson{
		ID:          id,
		TeacherID:   "t1",
		StudentID:   "s1",
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		Status:      status,
		PackageType: pkg,
	}
}

func completed(id string, start time.Time) Lesson {
	l := lesson(id, start, StatusCompleted, PackageStandard)
	l.HasMemo = true
	return l
}

func approved(id string, start, end, created time.Time, slots ...MatchedSlot) AbsenceRequest {
	return AbsenceRequest{
		ID:           id,
		TeacherID:    "t1",
		StartTime:    start,
		EndTime:      end,
		Status:       AbsenceApproved,
		CreatedTime:  created,
		MatchedSlots: slots,
	}
}

// weekdayLessons returns n completed, memoed lessons spread over the
// weekdays of the test period, six per day.
func weekdayLessons(n int) []Lesson {
	var out []Lesson
	for day := 3; len(out) < n; day++ {
		if generic.IsWeekendIn(at(day, 0, 0), time.UTC) {
			continue
		}
		for hour := 8; hour < 14 && len(out) < n; hour++ {
			out = append(out, completed(lessonID(len(out)), at(day, hour, 0)))
		}
	}
	return out
}

func lessonID(i int) string {
	return fmt.Sprintf("lesson-%02d", i)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}
