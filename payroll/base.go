package payroll

// =============================================================================
// BASE SALARY CALCULATOR
// =============================================================================

// CalculateBase converts the period's lessons into base pay.
//
//	A1  completed + memo   -> one slot rate each
//	A1' completed, no memo -> listed for audit, unpaid
//	A2  student absent     -> slot rate * PercentSalaryStudentAbsent / 100
func CalculateBase(f *Facts) BaseSalary {
	var b BaseSalary
	studentAbsentPay := f.Rates.OfSlot(f.Rates.Table.PercentSalaryStudentAbsent)

	for _, l := range f.Lessons {
		if !f.Period.Contains(l.StartTime) {
			continue
		}
		switch {
		case l.IsPaidCompletion():
			b.Completed.add(l.ID, f.Rates.SlotRate)
		case l.Status == StatusCompleted:
			b.CompletedWithoutMemo.add(l.ID, zero)
		case l.Status == StatusStudentAbsent:
			b.StudentAbsent.add(l.ID, studentAbsentPay)
		}
	}

	b.Total = b.Completed.Amount.Add(b.StudentAbsent.Amount)
	return b
}
