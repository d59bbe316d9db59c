package payroll

import (
	"github.com/shopspring/decimal"
	"github.com/warp/compensation-engine/generic"
)

var zero = decimal.Zero

// =============================================================================
// BONUS CALCULATOR - Five independent, additive categories
// =============================================================================

// CalculateBonus computes weekend, conversion, attendance, referral and
// substitute-teaching bonuses for the period.
func CalculateBonus(f *Facts) Bonus {
	var b Bonus
	table := f.Rates.Table
	substitutePay := f.Rates.OfSlot(table.PercentSubstituteBonus)

	for _, l := range f.Lessons {
		if !f.Period.Contains(l.StartTime) || !l.IsPaidCompletion() {
			continue
		}
		if generic.IsWeekendIn(l.StartTime, f.Rates.Zone) {
			b.Weekend.add(l.ID, table.WeekendBonus)
		}
		if l.IsSubstituteTeaching {
			b.Substitute.add(l.ID, substitutePay)
		}
	}

	// Conversion looks back over the teacher's whole trial history; only
	// the order date has to fall in this period.
	converted := make(map[string]bool)
	for _, o := range f.ConversionOrders {
		if converted[o.StudentID] || !f.Period.Contains(o.CreatedAt) {
			continue
		}
		converted[o.StudentID] = true
		b.Conversion.add(o.ID, table.ConversionBonus)
	}

	if qualifiesForAttendance(f) {
		b.Attendance.add(f.Period.Key(), table.AttendanceBonus)
	}

	for _, milestone := range f.ReferralMilestones {
		if f.Period.Contains(milestone.StartTime) {
			b.Referral.add(milestone.ID, table.ReferralBonus)
		}
	}

	b.Total = generic.Sum(
		b.Weekend.Amount,
		b.Conversion.Amount,
		b.Attendance.Amount,
		b.Referral.Amount,
		b.Substitute.Amount,
	)
	return b
}

// qualifiesForAttendance: no teacher-caused absence, at least
// AttendanceMinLessons paid lessons, and no approved leave in the period.
func qualifiesForAttendance(f *Facts) bool {
	paid := 0
	for _, l := range f.Lessons {
		if !f.Period.Contains(l.StartTime) {
			continue
		}
		if l.IsTeacherAbsence() {
			return false
		}
		if l.IsPaidCompletion() {
			paid++
		}
	}
	if paid < AttendanceMinLessons {
		return false
	}
	for _, abs := range f.Absences {
		if abs.Overlaps(f.Period) {
			return false
		}
	}
	return true
}
