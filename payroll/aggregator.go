package payroll

import (
	"context"
	"fmt"

	"github.com/warp/compensation-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// TEACHER ERROR
// =============================================================================

// TeacherError ties a computation failure to the teacher it happened for.
type TeacherError struct {
	TeacherID string
	Err       error
}

func (e *TeacherError) Error() string {
	return fmt.Sprintf("teacher %s: %v", e.TeacherID, e.Err)
}

func (e *TeacherError) Unwrap() error {
	return e.Err
}

// =============================================================================
// COMPENSATION AGGREGATOR
// =============================================================================

// Aggregator computes one record per (teacher, period) and owns the
// record store. It is the only writer of compensation records.
type Aggregator struct {
	Source  Source
	Records RecordStore
	Logger  *zap.Logger
}

func NewAggregator(source Source, records RecordStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{Source: source, Records: records, Logger: logger}
}

// Compute recomputes and upserts the record of one teacher for one period.
// Nothing is written when any input is missing or invalid.
func (a *Aggregator) Compute(ctx context.Context, teacherID string, period generic.Period) (*Record, error) {
	if teacherID == "" {
		return nil, fmt.Errorf("%w: empty teacher id", generic.ErrInvalidID)
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}

	facts, err := a.Facts(ctx, teacherID, period)
	if err != nil {
		return nil, &TeacherError{TeacherID: teacherID, Err: err}
	}

	rec := Calculate(facts)

	existing, err := a.Records.GetRecord(ctx, teacherID, rec.Period())
	if err != nil {
		return nil, &TeacherError{TeacherID: teacherID, Err: fmt.Errorf("get record: %w", err)}
	}
	if err := a.Records.UpsertRecord(ctx, rec); err != nil {
		return nil, &TeacherError{TeacherID: teacherID, Err: fmt.Errorf("upsert record: %w", err)}
	}

	a.Logger.Debug("compensation record saved",
		zap.String("teacher_id", teacherID),
		zap.String("period", period.Key()),
		zap.Bool("overwrite", existing != nil),
		zap.String("total_salary", rec.TotalSalary.String()),
	)
	return &rec, nil
}

// Facts resolves the teacher's rates and assembles its inputs without
// writing anything. Used by Compute and by previews.
func (a *Aggregator) Facts(ctx context.Context, teacherID string, period generic.Period) (*Facts, error) {
	teacher, err := a.Source.GetTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return nil, fmt.Errorf("%w: %s", generic.ErrTeacherNotFound, teacherID)
	}

	loc, err := a.Source.GetLocation(ctx, teacher.LocationID)
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	rates, err := ResolveRates(*teacher, loc)
	if err != nil {
		return nil, err
	}

	assembler := &Assembler{Source: a.Source}
	return assembler.Assemble(ctx, *teacher, rates, period)
}

// Calculate is the pure part of the aggregation: three calculators and a sum.
// The total is not clamped; a negative salary is a valid result.
func Calculate(f *Facts) Record {
	period := f.Period.UTC()

	base := CalculateBase(f)
	bonus := CalculateBonus(f)
	punishment := CalculatePunishment(f)

	return Record{
		ID:          RecordID(f.Teacher.ID, period),
		TeacherID:   f.Teacher.ID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		TotalSalary: base.Total.Add(bonus.Total).Sub(punishment.Total),
		BaseSalary:  base,
		Bonus:       bonus,
		Punishment:  punishment,
	}
}
