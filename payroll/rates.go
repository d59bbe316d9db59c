package payroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/compensation-engine/generic"
)

// =============================================================================
// RATE CONFIG RESOLVER
// =============================================================================

var two = decimal.NewFromInt(2)

// Rates is the resolved rate config of one teacher: the teacher's hourly
// rate joined with the location's table and time zone.
type Rates struct {
	HourlyRate decimal.Decimal
	SlotRate   decimal.Decimal // hourly / 2, one 30-minute slot
	Zone       *time.Location
	Table      RateTable
}

// RateError reports a rate that cannot be used. It is surfaced, not clamped.
type RateError struct {
	TeacherID string
	Field     string
	Value     decimal.Decimal
}

func (e *RateError) Error() string {
	if e.TeacherID == "" {
		return fmt.Sprintf("invalid rate: %s = %s", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid rate for teacher %s: %s = %s", e.TeacherID, e.Field, e.Value)
}

func (e *RateError) Unwrap() error {
	return generic.ErrInvalidRate
}

// ResolveRates joins a teacher with its location. Pure lookup.
func ResolveRates(t Teacher, loc *Location) (Rates, error) {
	if loc == nil {
		return Rates{}, fmt.Errorf("%w: %q for teacher %s", generic.ErrLocationNotFound, t.LocationID, t.ID)
	}
	if t.HourlyRate.IsNegative() {
		return Rates{}, &RateError{TeacherID: t.ID, Field: "hourly_rate", Value: t.HourlyRate}
	}
	if err := loc.Rates.Validate(); err != nil {
		var re *RateError
		if errors.As(err, &re) {
			re.TeacherID = t.ID
		}
		return Rates{}, err
	}

	zone, err := generic.LoadZone(loc.TimeZone)
	if err != nil {
		return Rates{}, fmt.Errorf("%w: location %s: %v", generic.ErrInvalidRate, loc.ID, err)
	}

	return Rates{
		HourlyRate: t.HourlyRate,
		SlotRate:   t.HourlyRate.Div(two),
		Zone:       zone,
		Table:      loc.Rates,
	}, nil
}

// OfSlot returns pct percent of one slot.
func (r Rates) OfSlot(pct decimal.Decimal) decimal.Decimal {
	return generic.Percent(r.SlotRate, pct)
}

// Validate rejects negative rates. The first offending field is reported.
func (t RateTable) Validate() error {
	for _, f := range t.fields() {
		if f.value.IsNegative() {
			return &RateError{Field: f.name, Value: f.value}
		}
	}
	return nil
}

type rateField struct {
	name  string
	value decimal.Decimal
}

func (t RateTable) fields() []rateField {
	return []rateField{
		{"percent_salary_student_absent", t.PercentSalaryStudentAbsent},
		{"weekend_bonus", t.WeekendBonus},
		{"conversion_bonus", t.ConversionBonus},
		{"attendance_bonus", t.AttendanceBonus},
		{"referral_bonus", t.ReferralBonus},
		{"percent_substitute_bonus", t.PercentSubstituteBonus},
		{"percent_absent_punish_trial", t.PercentAbsentPunishTrial},
		{"percent_absent_punish_first_3_slot", t.PercentAbsentPunishFirst3Slot},
		{"percent_absent_punish_1h", t.PercentAbsentPunish1h},
		{"percent_absent_punish_2h", t.PercentAbsentPunish2h},
		{"percent_absent_punish_3h", t.PercentAbsentPunish3h},
		{"absent_punish_greater_3h", t.AbsentPunishGreater3h},
		{"percent_absent_punish", t.PercentAbsentPunish},
		{"over_limit_punish", t.OverLimitPunish},
		{"late_memo_punish", t.LateMemoPunish},
	}
}
