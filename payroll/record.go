package payroll

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/compensation-engine/generic"
)

// =============================================================================
// COMPENSATION RECORD - The engine's only output
// =============================================================================

// Line is one sub-category of a breakdown: how many items contributed,
// what they were worth, and which lesson/slot/order ids they were.
type Line struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
	Items  []string        `json:"items"`
}

func (l *Line) add(id string, amount decimal.Decimal) {
	l.Count++
	l.Amount = l.Amount.Add(amount)
	if id != "" {
		l.Items = append(l.Items, id)
	}
}

// BaseSalary: A1 (completed + memo) and A2 (student absent) are paid;
// CompletedWithoutMemo (A1') is kept for audit only.
type BaseSalary struct {
	Total                decimal.Decimal `json:"total"`
	Completed            Line            `json:"completed"`
	CompletedWithoutMemo Line            `json:"completed_without_memo"`
	StudentAbsent        Line            `json:"student_absent"`
}

type Bonus struct {
	Total      decimal.Decimal `json:"total"`
	Weekend    Line            `json:"weekend"`
	Conversion Line            `json:"conversion"`
	Attendance Line            `json:"attendance"`
	Referral   Line            `json:"referral"`
	Substitute Line            `json:"substitute"`
}

type Punishment struct {
	Total          decimal.Decimal `json:"total"`
	Trial          Line            `json:"trial"`
	FirstThree     Line            `json:"first_three"`
	SlotFirstThree Line            `json:"slot_first_three"`
	Within1h       Line            `json:"within_1h"`
	Within2h       Line            `json:"within_2h"`
	Within3h       Line            `json:"within_3h"`
	Over3h         Line            `json:"over_3h"`
	OverLimit      Line            `json:"over_limit"`
	WithoutLeave   Line            `json:"without_leave"`
	LateMemo       Line            `json:"late_memo"`
}

// Record is the compensation of one teacher for one period.
//
// INVARIANT: TotalSalary == BaseSalary.Total + Bonus.Total - Punishment.Total
//
// The record is a cache of a pure computation. It carries no wall-clock
// fields, so recomputing with unchanged inputs yields identical bytes.
type Record struct {
	ID          string          `json:"id"`
	TeacherID   string          `json:"teacher_id"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	TotalSalary decimal.Decimal `json:"total_salary"`
	BaseSalary  BaseSalary      `json:"base_salary"`
	Bonus       Bonus           `json:"bonus"`
	Punishment  Punishment      `json:"punishment"`
}

// Period returns the record's key period.
func (r Record) Period() generic.Period {
	return generic.Period{Start: r.PeriodStart, End: r.PeriodEnd}
}

var recordNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("compensation-record"))

// RecordID derives the stable id of the record for (teacher, period).
func RecordID(teacherID string, p generic.Period) string {
	return uuid.NewSHA1(recordNamespace, []byte(teacherID+"|"+p.Key())).String()
}

// =============================================================================
// BATCH RUNS - Audit of each batch invocation
// =============================================================================

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// TeacherFailure records why one teacher was skipped in a run.
type TeacherFailure struct {
	TeacherID string `json:"teacher_id"`
	Error     string `json:"error"`
}

// Run is the audit row of one batch invocation.
type Run struct {
	ID          string           `json:"id"`
	PeriodStart time.Time        `json:"period_start"`
	PeriodEnd   time.Time        `json:"period_end"`
	Status      RunStatus        `json:"status"`
	Teachers    int              `json:"teachers"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	Failures    []TeacherFailure `json:"failures,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}
