// Package memory provides an in-memory payroll.Store for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/compensation-engine/generic"
	"github.com/warp/compensation-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	teachers  map[string]payroll.Teacher
	locations map[string]payroll.Location
	lessons   map[string]payroll.Lesson
	absences  map[string]payroll.AbsenceRequest
	orders    map[string]payroll.Order
	records   map[recordKey]payroll.Record
	runs      map[string]payroll.Run
}

type recordKey struct {
	TeacherID string
	Start     int64
	End       int64
}

func keyOf(teacherID string, p generic.Period) recordKey {
	return recordKey{TeacherID: teacherID, Start: p.Start.UnixNano(), End: p.End.UnixNano()}
}

func New() *Store {
	return &Store{
		teachers:  make(map[string]payroll.Teacher),
		locations: make(map[string]payroll.Location),
		lessons:   make(map[string]payroll.Lesson),
		absences:  make(map[string]payroll.AbsenceRequest),
		orders:    make(map[string]payroll.Order),
		records:   make(map[recordKey]payroll.Record),
		runs:      make(map[string]payroll.Run),
	}
}

var _ payroll.Store = (*Store)(nil)

// =============================================================================
// WRITER
// =============================================================================

func (s *Store) SaveTeacher(_ context.Context, t payroll.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teachers[t.ID] = t
	return nil
}

func (s *Store) SaveLocation(_ context.Context, l payroll.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[l.ID] = l
	return nil
}

func (s *Store) SaveLesson(_ context.Context, l payroll.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[l.ID] = l
	return nil
}

func (s *Store) SaveAbsence(_ context.Context, a payroll.AbsenceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.MatchedSlots = append([]payroll.MatchedSlot(nil), a.MatchedSlots...)
	s.absences[a.ID] = a
	return nil
}

func (s *Store) SaveOrder(_ context.Context, o payroll.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

// =============================================================================
// SOURCE
// =============================================================================

func (s *Store) GetTeacher(_ context.Context, id string) (*payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teachers[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) GetLocation(_ context.Context, id string) (*payroll.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locations[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *Store) ListActiveTeachers(_ context.Context) ([]payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.Teacher
	for _, t := range s.teachers {
		if t.Active {
			out = append(out, t)
		}
	}
	sortTeachers(out)
	return out, nil
}

func (s *Store) LessonsInRange(_ context.Context, teacherID string, from, to time.Time) ([]payroll.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.Lesson
	for _, l := range s.lessons {
		if l.TeacherID == teacherID && !l.StartTime.Before(from) && l.StartTime.Before(to) {
			out = append(out, l)
		}
	}
	payroll.SortLessons(out)
	return out, nil
}

func (s *Store) ApprovedAbsences(_ context.Context, teacherID string, from, to time.Time) ([]payroll.AbsenceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.AbsenceRequest
	for _, a := range s.absences {
		if a.TeacherID == teacherID && a.IsApproved() && a.StartTime.Before(to) && a.EndTime.After(from) {
			a.MatchedSlots = append([]payroll.MatchedSlot(nil), a.MatchedSlots...)
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedTime.Equal(out[j].CreatedTime) {
			return out[i].CreatedTime.Before(out[j].CreatedTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CompletedTrialStudents(_ context.Context, teacherID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, l := range s.lessons {
		if l.TeacherID != teacherID || l.Status != payroll.StatusCompleted || !l.PackageType.IsTrial() {
			continue
		}
		if l.StudentID == "" || seen[l.StudentID] {
			continue
		}
		seen[l.StudentID] = true
		out = append(out, l.StudentID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) FirstQualifyingOrder(_ context.Context, studentID string, minClasses int) (*payroll.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var first *payroll.Order
	for _, o := range s.orders {
		if o.StudentID != studentID || o.PaidClasses < minClasses {
			continue
		}
		if first == nil || o.CreatedAt.Before(first.CreatedAt) ||
			(o.CreatedAt.Equal(first.CreatedAt) && o.ID < first.ID) {
			first = &o
		}
	}
	return first, nil
}

func (s *Store) FirstNonTrialLessons(_ context.Context, teacherID, studentID string, n int) ([]payroll.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.Lesson
	for _, l := range s.lessons {
		if l.TeacherID == teacherID && l.StudentID == studentID && l.PackageType.IsPaid() {
			out = append(out, l)
		}
	}
	payroll.SortLessons(out)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *Store) Referees(_ context.Context, teacherID string) ([]payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.Teacher
	for _, t := range s.teachers {
		if t.ReferredBy != "" && t.ReferredBy == teacherID {
			out = append(out, t)
		}
	}
	sortTeachers(out)
	return out, nil
}

func (s *Store) NthCompletedLesson(_ context.Context, teacherID string, n int) (*payroll.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var completed []payroll.Lesson
	for _, l := range s.lessons {
		if l.TeacherID == teacherID && l.Status == payroll.StatusCompleted {
			completed = append(completed, l)
		}
	}
	if n <= 0 || len(completed) < n {
		return nil, nil
	}
	payroll.SortLessons(completed)
	l := completed[n-1]
	return &l, nil
}

// =============================================================================
// RECORD STORE
// =============================================================================

func (s *Store) GetRecord(_ context.Context, teacherID string, period generic.Period) (*payroll.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[keyOf(teacherID, period)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) UpsertRecord(_ context.Context, rec payroll.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[keyOf(rec.TeacherID, rec.Period())] = rec
	return nil
}

func (s *Store) ListRecords(_ context.Context, filter payroll.RecordFilter) ([]payroll.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.Record
	for _, rec := range s.records {
		if filter.TeacherID != "" && rec.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Period != nil &&
			(!rec.PeriodStart.Equal(filter.Period.Start) || !rec.PeriodEnd.Equal(filter.Period.End)) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.After(out[j].PeriodStart)
		}
		return out[i].TeacherID < out[j].TeacherID
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

// =============================================================================
// RUN STORE
// =============================================================================

func (s *Store) SaveRun(_ context.Context, run payroll.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Failures = append([]payroll.TeacherFailure(nil), run.Failures...)
	s.runs[run.ID] = run
	return nil
}

func (s *Store) ListRuns(_ context.Context, limit int) ([]payroll.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]payroll.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, 0), nil
}

func (s *Store) IsRunComplete(_ context.Context, period generic.Period) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if r.Status == payroll.RunCompleted &&
			r.PeriodStart.Equal(period.Start) && r.PeriodEnd.Equal(period.End) {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func sortTeachers(ts []payroll.Teacher) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
