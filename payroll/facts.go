package payroll

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/compensation-engine/generic"
)

// =============================================================================
// FACTS - Everything the calculators need, assembled once per teacher
// =============================================================================

// Facts is the explicit input of the three calculators. Once assembled,
// Base, Bonus and Punishment are pure functions of it.
type Facts struct {
	Teacher Teacher
	Rates   Rates
	Period  generic.Period

	// Lessons with StartTime in the period, sorted by (StartTime, ID).
	Lessons []Lesson

	// Approved absence requests overlapping the period, sorted by (CreatedTime, ID).
	Absences []AbsenceRequest

	// FirstThree holds the ids of each student's first three non-trial
	// lessons with this teacher, for every student absent in the period.
	FirstThree map[string]bool

	// ConversionOrders holds, per converted trial student, the first order
	// with ConversionMinClasses or more. Not period-scoped.
	ConversionOrders []Order

	// ReferralMilestones holds each referee's ReferralMilestone-th
	// completed lesson. Not period-scoped.
	ReferralMilestones []Lesson
}

// Assembler reads a teacher's facts from a Source.
type Assembler struct {
	Source Source
}

// Assemble loads and orders every fact for one teacher and period.
func (a *Assembler) Assemble(ctx context.Context, t Teacher, rates Rates, period generic.Period) (*Facts, error) {
	lessons, err := a.Source.LessonsInRange(ctx, t.ID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	SortLessons(lessons)

	absences, err := a.Source.ApprovedAbsences(ctx, t.ID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("load absences: %w", err)
	}
	approved := make([]AbsenceRequest, 0, len(absences))
	for _, abs := range absences {
		if abs.IsApproved() {
			approved = append(approved, abs)
		}
	}
	sort.SliceStable(approved, func(i, j int) bool {
		if !approved[i].CreatedTime.Equal(approved[j].CreatedTime) {
			return approved[i].CreatedTime.Before(approved[j].CreatedTime)
		}
		return approved[i].ID < approved[j].ID
	})

	facts := &Facts{
		Teacher:    t,
		Rates:      rates,
		Period:     period,
		Lessons:    lessons,
		Absences:   approved,
		FirstThree: make(map[string]bool),
	}

	if err := a.loadFirstThree(ctx, facts); err != nil {
		return nil, err
	}
	if err := a.loadConversions(ctx, facts); err != nil {
		return nil, err
	}
	if err := a.loadReferrals(ctx, facts); err != nil {
		return nil, err
	}
	return facts, nil
}

func (a *Assembler) loadFirstThree(ctx context.Context, f *Facts) error {
	seen := make(map[string]bool)
	for _, l := range f.Lessons {
		if !l.PackageType.IsPaid() || l.StudentID == "" || seen[l.StudentID] {
			continue
		}
		if !isAbsenceEligible(l, f.Absences) {
			continue
		}
		seen[l.StudentID] = true

		first, err := a.Source.FirstNonTrialLessons(ctx, f.Teacher.ID, l.StudentID, FirstThreeLimit)
		if err != nil {
			return fmt.Errorf("load first lessons of student %s: %w", l.StudentID, err)
		}
		for _, fl := range first {
			f.FirstThree[fl.ID] = true
		}
	}
	return nil
}

func (a *Assembler) loadConversions(ctx context.Context, f *Facts) error {
	students, err := a.Source.CompletedTrialStudents(ctx, f.Teacher.ID)
	if err != nil {
		return fmt.Errorf("load trial students: %w", err)
	}
	sort.Strings(students)

	for _, studentID := range students {
		order, err := a.Source.FirstQualifyingOrder(ctx, studentID, ConversionMinClasses)
		if err != nil {
			return fmt.Errorf("load first order of student %s: %w", studentID, err)
		}
		if order != nil {
			f.ConversionOrders = append(f.ConversionOrders, *order)
		}
	}
	return nil
}

func (a *Assembler) loadReferrals(ctx context.Context, f *Facts) error {
	referees, err := a.Source.Referees(ctx, f.Teacher.ID)
	if err != nil {
		return fmt.Errorf("load referees: %w", err)
	}
	sort.Slice(referees, func(i, j int) bool { return referees[i].ID < referees[j].ID })

	for _, ref := range referees {
		lesson, err := a.Source.NthCompletedLesson(ctx, ref.ID, ReferralMilestone)
		if err != nil {
			return fmt.Errorf("load milestone of referee %s: %w", ref.ID, err)
		}
		if lesson != nil {
			f.ReferralMilestones = append(f.ReferralMilestones, *lesson)
		}
	}
	return nil
}

// SortLessons orders lessons by (StartTime, ID).
func SortLessons(lessons []Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		if !lessons[i].StartTime.Equal(lessons[j].StartTime) {
			return lessons[i].StartTime.Before(lessons[j].StartTime)
		}
		return lessons[i].ID < lessons[j].ID
	})
}
