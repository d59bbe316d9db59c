/*
Package payroll computes teacher compensation per pay period.

PURPOSE:
  Reconciles lesson records, approved absence requests and recurring-slot
  annotations into one auditable CompensationRecord per (teacher, period):
  base salary + bonus - punishment.

PIPELINE:
  Source (read-only) -> Assembler (Facts) -> Base / Bonus / Punishment
  -> Aggregator (sum + upsert) -> Batch (all active teachers)

INPUTS ARE FINISHED FACTS:
  Lessons, absence requests and slot annotations are owned by other
  subsystems (booking lifecycle, absence approval, regular calendar).
  This package never mutates them; it only reads their final state.

KEY TYPES IN THIS FILE (types.go):
  - Lesson: one 30-minute slot of teaching with its final status
  - AbsenceRequest: a teacher's leave request and its matched recurring slots
  - Teacher, Location, RateTable: reference data
  - Order: a student's package purchase (conversion bonus)

SEE ALSO:
  - record.go: The engine's only output
  - rates.go: RateTable -> Rates resolution
  - punishment.go: The absence tier pipeline
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/compensation-engine/generic"
)

// =============================================================================
// LESSONS
// =============================================================================

type LessonStatus string

const (
	StatusCompleted          LessonStatus = "completed"
	StatusStudentAbsent      LessonStatus = "student_absent"
	StatusTeacherAbsent      LessonStatus = "teacher_absent"
	StatusCancelledByTeacher LessonStatus = "cancelled_by_teacher"
	StatusCancelledByStudent LessonStatus = "cancelled_by_student"
	StatusChangeTime         LessonStatus = "change_time"
	StatusConfirmed          LessonStatus = "confirmed"
	StatusTeaching           LessonStatus = "teaching"
	StatusTeacherConfirmed   LessonStatus = "teacher_confirmed"
)

type PackageType string

const (
	PackageTrial    PackageType = "trial"
	PackageStandard PackageType = "standard"
	PackagePremium  PackageType = "premium"
)

// IsTrial reports whether the lesson belongs to a trial package.
func (p PackageType) IsTrial() bool { return p == PackageTrial }

// IsPaid reports whether the lesson belongs to a standard or premium package.
// A lesson whose package reference is missing is neither trial nor paid.
func (p PackageType) IsPaid() bool { return p == PackageStandard || p == PackagePremium }

// Lesson is a single 30-minute slot, assembled from booking, calendar,
// package and memo by the booking subsystem.
type Lesson struct {
	ID                   string       `json:"id"`
	TeacherID            string       `json:"teacher_id"`
	StudentID            string       `json:"student_id"`
	StartTime            time.Time    `json:"start_time"`
	EndTime              time.Time    `json:"end_time"`
	Status               LessonStatus `json:"status"`
	PackageType          PackageType  `json:"package_type,omitempty"`
	HasMemo              bool         `json:"has_memo"`
	MemoTime             *time.Time   `json:"memo_time,omitempty"`
	IsSubstituteTeaching bool         `json:"is_substitute_teaching"`
	IsRegularBooking     bool         `json:"is_regular_booking"`
}

// IsPaidCompletion is a completed lesson with a memo: the unit of base pay.
func (l Lesson) IsPaidCompletion() bool {
	return l.Status == StatusCompleted && l.HasMemo
}

// IsTeacherAbsence is an absence caused by the teacher.
func (l Lesson) IsTeacherAbsence() bool {
	return l.Status == StatusTeacherAbsent || l.Status == StatusCancelledByTeacher
}

// =============================================================================
// ABSENCE REQUESTS
// =============================================================================

type AbsenceStatus string

const (
	AbsencePending   AbsenceStatus = "pending"
	AbsenceApproved  AbsenceStatus = "approved"
	AbsenceRejected  AbsenceStatus = "rejected"
	AbsenceWithdrawn AbsenceStatus = "withdrawn"
)

// RecurringSlot is a weekly teaching commitment owned by the regular
// calendar workflow. The engine never walks slots directly; it sees their
// occurrences only as MatchedSlot entries of approved absence requests.
type RecurringSlot struct {
	SlotID          string        `json:"slot_id"`
	TeacherID       string        `json:"teacher_id"`
	StudentID       string        `json:"student_id"`
	TimestampInWeek time.Duration `json:"timestamp_in_week"` // offset from Monday 00:00
	Status          string        `json:"status"`
}

// MatchedSlot is a recurring-slot occurrence inside an absence request,
// resolved by the absence workflow at approval time.
type MatchedSlot struct {
	SlotID                        string    `json:"slot_id"`
	Timestamp                     time.Time `json:"timestamp"`
	IsFirstThreeBookingsOfStudent bool      `json:"is_first_three_bookings_of_student"`
}

// AbsenceRequest is a teacher's leave request over [StartTime, EndTime).
type AbsenceRequest struct {
	ID           string        `json:"id"`
	TeacherID    string        `json:"teacher_id"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Status       AbsenceStatus `json:"status"`
	CreatedTime  time.Time     `json:"created_time"`
	MatchedSlots []MatchedSlot `json:"matched_slots,omitempty"`
}

// IsApproved reports whether the request is in its final approved state.
func (a AbsenceRequest) IsApproved() bool { return a.Status == AbsenceApproved }

// Contains reports whether t falls inside the request window and the
// request is approved.
func (a AbsenceRequest) Contains(t time.Time) bool {
	return a.IsApproved() && !t.Before(a.StartTime) && t.Before(a.EndTime)
}

// Overlaps reports whether an approved request intersects the period.
func (a AbsenceRequest) Overlaps(p generic.Period) bool {
	return a.IsApproved() && p.Overlaps(a.StartTime, a.EndTime)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// Teacher carries the per-teacher half of the rate config.
type Teacher struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	LocationID string          `json:"location_id"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Active     bool            `json:"active"`
	ReferredBy string          `json:"referred_by,omitempty"`
}

// Location carries the per-location half of the rate config.
type Location struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	TimeZone string    `json:"time_zone"`
	Rates    RateTable `json:"rates"`
}

// RateTable holds bonus and punishment rates for a location.
// Percent* fields are percentages of the slot rate; the rest are flat amounts.
type RateTable struct {
	PercentSalaryStudentAbsent decimal.Decimal `json:"percent_salary_student_absent"`

	WeekendBonus           decimal.Decimal `json:"weekend_bonus"`
	ConversionBonus        decimal.Decimal `json:"conversion_bonus"`
	AttendanceBonus        decimal.Decimal `json:"attendance_bonus"`
	ReferralBonus          decimal.Decimal `json:"referral_bonus"`
	PercentSubstituteBonus decimal.Decimal `json:"percent_substitute_bonus"`

	PercentAbsentPunishTrial      decimal.Decimal `json:"percent_absent_punish_trial"`
	PercentAbsentPunishFirst3Slot decimal.Decimal `json:"percent_absent_punish_first_3_slot"`
	PercentAbsentPunish1h         decimal.Decimal `json:"percent_absent_punish_1h"`
	PercentAbsentPunish2h         decimal.Decimal `json:"percent_absent_punish_2h"`
	PercentAbsentPunish3h         decimal.Decimal `json:"percent_absent_punish_3h"`
	AbsentPunishGreater3h         decimal.Decimal `json:"absent_punish_greater_3h"`
	PercentAbsentPunish           decimal.Decimal `json:"percent_absent_punish"`

	OverLimitPunish decimal.Decimal `json:"over_limit_punish"`
	LateMemoPunish  decimal.Decimal `json:"late_memo_punish"`
}

// Order is a student's package purchase.
type Order struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	PaidClasses int       `json:"paid_classes"`
	CreatedAt   time.Time `json:"created_at"`
}

// =============================================================================
// RULE CONSTANTS
// =============================================================================

const (
	// FirstThreeLimit is how many of a student's first non-trial lessons are exempt.
	FirstThreeLimit = 3

	// ConversionMinClasses is the order size that turns a trial into a conversion.
	ConversionMinClasses = 30

	// ReferralMilestone is the referee's completed-lesson count that pays the referrer.
	ReferralMilestone = 100

	// AttendanceMinLessons is the paid-lesson floor for the attendance bonus.
	AttendanceMinLessons = 50

	// LeadTimeCapPerRequest is how many absences per request get lead-time tiers.
	LeadTimeCapPerRequest = 2

	// Memo deadlines, local hour of the day after the lesson.
	TrialMemoDeadlineHour = 8
	PaidMemoDeadlineHour  = 12
)
