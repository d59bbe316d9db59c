/*
store.go - Persistence contracts between the engine and its collaborators

PURPOSE:
  Defines what the engine reads (Source), what it writes (RecordStore,
  RunStore), and how fixtures and reference data get in (Writer).
  Implementations: store/memory (tests), store/sqlite (default),
  store/postgres (pgx).

READ-ONLY CONTRACT:
  Source never exposes a write. Lessons, absence requests and orders are
  finished facts owned by other subsystems.

NOT-FOUND CONVENTION:
  Single-row lookups return (nil, nil) when the row does not exist. The
  caller decides whether absence is an error (a missing teacher is; a
  student without a qualifying order is not).

ORDERING:
  Every list is returned in a deterministic order (time ascending, then id)
  so that computations are reproducible byte for byte.

SEE ALSO:
  - facts.go: The only consumer of Source
  - aggregator.go: The only writer of records
*/
package payroll

import (
	"context"
	"time"

	"github.com/warp/compensation-engine/generic"
)

// =============================================================================
// SOURCE - Read-only facts consumed by the engine
// =============================================================================

type Source interface {
	// GetTeacher returns nil when the teacher does not exist.
	GetTeacher(ctx context.Context, id string) (*Teacher, error)

	// GetLocation returns nil when the location does not exist.
	GetLocation(ctx context.Context, id string) (*Location, error)

	// ListActiveTeachers returns all currently active teachers, ordered by id.
	ListActiveTeachers(ctx context.Context) ([]Teacher, error)

	// LessonsInRange returns the teacher's lessons with StartTime in [from, to).
	LessonsInRange(ctx context.Context, teacherID string, from, to time.Time) ([]Lesson, error)

	// ApprovedAbsences returns approved requests overlapping [from, to).
	ApprovedAbsences(ctx context.Context, teacherID string, from, to time.Time) ([]AbsenceRequest, error)

	// CompletedTrialStudents returns every student the teacher has ever
	// completed a trial lesson with. No time bound.
	CompletedTrialStudents(ctx context.Context, teacherID string) ([]string, error)

	// FirstQualifyingOrder returns the student's earliest order with at
	// least minClasses paid classes, or nil.
	FirstQualifyingOrder(ctx context.Context, studentID string, minClasses int) (*Order, error)

	// FirstNonTrialLessons returns up to n of the earliest non-trial lessons
	// between teacher and student, by StartTime.
	FirstNonTrialLessons(ctx context.Context, teacherID, studentID string, n int) ([]Lesson, error)

	// Referees returns the teachers referred by teacherID.
	Referees(ctx context.Context, teacherID string) ([]Teacher, error)

	// NthCompletedLesson returns the teacher's n-th completed lesson by
	// StartTime, or nil if fewer exist.
	NthCompletedLesson(ctx context.Context, teacherID string, n int) (*Lesson, error)
}

// =============================================================================
// RECORD STORE - Owned exclusively by the Aggregator
// =============================================================================

// RecordFilter narrows ListRecords. Zero values mean "no filter".
type RecordFilter struct {
	TeacherID string
	Period    *generic.Period
	Limit     int
	Offset    int
}

type RecordStore interface {
	// GetRecord returns nil when no record exists for the key.
	GetRecord(ctx context.Context, teacherID string, period generic.Period) (*Record, error)

	// UpsertRecord inserts or overwrites in full the record for
	// (TeacherID, PeriodStart, PeriodEnd). Never partial.
	UpsertRecord(ctx context.Context, rec Record) error

	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
}

// =============================================================================
// RUN STORE - Batch audit
// =============================================================================

type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// IsRunComplete reports whether a completed run exists for the period.
	IsRunComplete(ctx context.Context, period generic.Period) (bool, error)
}

// =============================================================================
// WRITER - Reference data and fixtures
// =============================================================================

// Writer loads collaborator data. The engine never calls it; the API,
// seeds and tests do.
type Writer interface {
	SaveTeacher(ctx context.Context, t Teacher) error
	SaveLocation(ctx context.Context, l Location) error
	SaveLesson(ctx context.Context, l Lesson) error
	SaveAbsence(ctx context.Context, a AbsenceRequest) error
	SaveOrder(ctx context.Context, o Order) error
}

// Store is everything a backing store provides.
type Store interface {
	Source
	RecordStore
	RunStore
	Writer
}
