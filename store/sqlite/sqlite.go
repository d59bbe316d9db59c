/*
Package sqlite provides a SQLite-backed implementation of payroll.Store.

PURPOSE:
  Default persistence for the engine: reference data, the finished facts it
  reads (lessons, absence requests, orders), the compensation records it
  writes and the batch run audit. The PostgreSQL store mirrors this layout.

INTERFACES IMPLEMENTED:
  payroll.Source:      Read-only facts for the Assembler
  payroll.RecordStore: Compensation records, upserted by (teacher, period)
  payroll.RunStore:    Batch audit rows
  payroll.Writer:      Fixtures and reference data

KEY TABLES:
  teachers, locations:  Rate config (location rates as JSON)
  lessons:              One row per 30-minute slot
  absence_requests:     Matched recurring slots as JSON
  orders:               Package purchases (conversion bonus)
  compensation_records: Record payload as JSON + indexed key columns
  payroll_runs:         One row per batch invocation

TIME ENCODING:
  Every instant is stored as fixed-width UTC text (timeLayout). Fixed width
  makes lexicographic order equal chronological order, so range filters and
  ORDER BY work on the text column directly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

MIGRATION:
  Schema is applied on New() from the embedded goose migrations.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - payroll/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - store/postgres: pgx implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/warp/compensation-engine/generic"
	"github.com/warp/compensation-engine/payroll"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is RFC 3339 with a fixed nine-digit fraction.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements payroll.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ payroll.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// =============================================================================
// WRITER (payroll.Writer interface)
// =============================================================================

// SaveTeacher inserts or replaces a teacher.
func (s *Store) SaveTeacher(ctx context.Context, t payroll.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teachers (id, name, location_id, hourly_rate, active, referred_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			location_id = excluded.location_id,
			hourly_rate = excluded.hourly_rate,
			active = excluded.active,
			referred_by = excluded.referred_by,
			updated_at = excluded.updated_at
	`, t.ID, t.Name, t.LocationID, t.HourlyRate.String(), t.Active, t.ReferredBy, now, now)
	if err != nil {
		return fmt.Errorf("failed to save teacher: %w", err)
	}
	return nil
}

// SaveLocation inserts or replaces a location and its rate table.
func (s *Store) SaveLocation(ctx context.Context, l payroll.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ratesJSON, err := json.Marshal(l.Rates)
	if err != nil {
		return fmt.Errorf("failed to encode rates: %w", err)
	}

	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, time_zone, rates_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			time_zone = excluded.time_zone,
			rates_json = excluded.rates_json,
			updated_at = excluded.updated_at
	`, l.ID, l.Name, l.TimeZone, string(ratesJSON), now, now)
	if err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}
	return nil
}

// SaveLesson inserts or replaces a lesson.
func (s *Store) SaveLesson(ctx context.Context, l payroll.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var memoTime sql.NullString
	if l.MemoTime != nil {
		memoTime = sql.NullString{String: formatTime(*l.MemoTime), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lessons (id, teacher_id, student_id, start_time, end_time, status, package_type,
			has_memo, memo_time, is_substitute_teaching, is_regular_booking)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			teacher_id = excluded.teacher_id,
			student_id = excluded.student_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			status = excluded.status,
			package_type = excluded.package_type,
			has_memo = excluded.has_memo,
			memo_time = excluded.memo_time,
			is_substitute_teaching = excluded.is_substitute_teaching,
			is_regular_booking = excluded.is_regular_booking
	`,
		l.ID, l.TeacherID, l.StudentID,
		formatTime(l.StartTime), formatTime(l.EndTime),
		string(l.Status), string(l.PackageType),
		l.HasMemo, memoTime, l.IsSubstituteTeaching, l.IsRegularBooking,
	)
	if err != nil {
		return fmt.Errorf("failed to save lesson: %w", err)
	}
	return nil
}

// SaveAbsence inserts or replaces an absence request.
func (s *Store) SaveAbsence(ctx context.Context, a payroll.AbsenceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := make([]payroll.MatchedSlot, len(a.MatchedSlots))
	for i, slot := range a.MatchedSlots {
		slot.Timestamp = slot.Timestamp.UTC()
		slots[i] = slot
	}
	slotsJSON, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to encode matched slots: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO absence_requests (id, teacher_id, start_time, end_time, status, created_time, matched_slots_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			teacher_id = excluded.teacher_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			status = excluded.status,
			created_time = excluded.created_time,
			matched_slots_json = excluded.matched_slots_json
	`,
		a.ID, a.TeacherID, formatTime(a.StartTime), formatTime(a.EndTime),
		string(a.Status), formatTime(a.CreatedTime), string(slotsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save absence request: %w", err)
	}
	return nil
}

// SaveOrder inserts or replaces an order.
func (s *Store) SaveOrder(ctx context.Context, o payroll.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, student_id, paid_classes, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			student_id = excluded.student_id,
			paid_classes = excluded.paid_classes,
			created_at = excluded.created_at
	`, o.ID, o.StudentID, o.PaidClasses, formatTime(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// =============================================================================
// SOURCE (payroll.Source interface)
// =============================================================================

const teacherColumns = `id, name, location_id, hourly_rate, active, referred_by`

const lessonColumns = `id, teacher_id, student_id, start_time, end_time, status, package_type,
	has_memo, memo_time, is_substitute_teaching, is_regular_booking`

// GetTeacher returns nil when the teacher does not exist.
func (s *Store) GetTeacher(ctx context.Context, id string) (*payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE id = ?`, id)
	t, err := scanTeacher(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher: %w", err)
	}
	return &t, nil
}

// GetLocation returns nil when the location does not exist.
func (s *Store) GetLocation(ctx context.Context, id string) (*payroll.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var l payroll.Location
	var ratesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, time_zone, rates_json FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.TimeZone, &ratesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	if err := json.Unmarshal([]byte(ratesJSON), &l.Rates); err != nil {
		return nil, fmt.Errorf("failed to decode rates of location %s: %w", id, err)
	}
	return &l, nil
}

// ListActiveTeachers returns active teachers ordered by id.
func (s *Store) ListActiveTeachers(ctx context.Context) ([]payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTeachers(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE active ORDER BY id`)
}

// Referees returns the teachers referred by teacherID.
func (s *Store) Referees(ctx context.Context, teacherID string) ([]payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if teacherID == "" {
		return nil, nil
	}
	return s.queryTeachers(ctx,
		`SELECT `+teacherColumns+` FROM teachers WHERE referred_by = ? ORDER BY id`, teacherID)
}

// LessonsInRange returns the teacher's lessons with start_time in [from, to).
func (s *Store) LessonsInRange(ctx context.Context, teacherID string, from, to time.Time) ([]payroll.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLessons(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE teacher_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time ASC, id ASC
	`, teacherID, formatTime(from), formatTime(to))
}

// ApprovedAbsences returns approved requests overlapping [from, to).
func (s *Store) ApprovedAbsences(ctx context.Context, teacherID string, from, to time.Time) ([]payroll.AbsenceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, teacher_id, start_time, end_time, status, created_time, matched_slots_json
		FROM absence_requests
		WHERE teacher_id = ? AND status = ? AND start_time < ? AND end_time > ?
		ORDER BY created_time ASC, id ASC
	`, teacherID, string(payroll.AbsenceApproved), formatTime(to), formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("failed to query absence requests: %w", err)
	}
	defer rows.Close()

	var out []payroll.AbsenceRequest
	for rows.Next() {
		var a payroll.AbsenceRequest
		var status, start, end, created, slotsJSON string
		if err := rows.Scan(&a.ID, &a.TeacherID, &start, &end, &status, &created, &slotsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan absence request: %w", err)
		}
		a.Status = payroll.AbsenceStatus(status)
		a.StartTime = parseTime(start)
		a.EndTime = parseTime(end)
		a.CreatedTime = parseTime(created)
		if err := json.Unmarshal([]byte(slotsJSON), &a.MatchedSlots); err != nil {
			return nil, fmt.Errorf("failed to decode matched slots of %s: %w", a.ID, err)
		}
		for i := range a.MatchedSlots {
			a.MatchedSlots[i].Timestamp = a.MatchedSlots[i].Timestamp.UTC()
		}
		if len(a.MatchedSlots) == 0 {
			a.MatchedSlots = nil
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CompletedTrialStudents returns every student the teacher completed a trial with.
func (s *Store) CompletedTrialStudents(ctx context.Context, teacherID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT student_id FROM lessons
		WHERE teacher_id = ? AND status = ? AND package_type = ? AND student_id <> ''
		ORDER BY student_id
	`, teacherID, string(payroll.StatusCompleted), string(payroll.PackageTrial))
	if err != nil {
		return nil, fmt.Errorf("failed to query trial students: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// FirstQualifyingOrder returns the student's earliest order with at least
// minClasses paid classes, or nil.
func (s *Store) FirstQualifyingOrder(ctx context.Context, studentID string, minClasses int) (*payroll.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var o payroll.Order
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, paid_classes, created_at FROM orders
		WHERE student_id = ? AND paid_classes >= ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, studentID, minClasses).Scan(&o.ID, &o.StudentID, &o.PaidClasses, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get first order: %w", err)
	}
	o.CreatedAt = parseTime(createdAt)
	return &o, nil
}

// FirstNonTrialLessons returns up to n of the earliest standard/premium
// lessons between teacher and student.
func (s *Store) FirstNonTrialLessons(ctx context.Context, teacherID, studentID string, n int) ([]payroll.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLessons(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE teacher_id = ? AND student_id = ? AND package_type IN (?, ?)
		ORDER BY start_time ASC, id ASC
		LIMIT ?
	`, teacherID, studentID, string(payroll.PackageStandard), string(payroll.PackagePremium), n)
}

// NthCompletedLesson returns the teacher's n-th completed lesson, or nil.
func (s *Store) NthCompletedLesson(ctx context.Context, teacherID string, n int) (*payroll.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil, nil
	}
	lessons, err := s.queryLessons(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE teacher_id = ? AND status = ?
		ORDER BY start_time ASC, id ASC
		LIMIT 1 OFFSET ?
	`, teacherID, string(payroll.StatusCompleted), n-1)
	if err != nil || len(lessons) == 0 {
		return nil, err
	}
	return &lessons[0], nil
}

// =============================================================================
// RECORD STORE (payroll.RecordStore interface)
// =============================================================================

// GetRecord returns nil when no record exists for the key.
func (s *Store) GetRecord(ctx context.Context, teacherID string, period generic.Period) (*payroll.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload_json FROM compensation_records
		WHERE teacher_id = ? AND period_start = ? AND period_end = ?
	`, teacherID, formatTime(period.Start), formatTime(period.End)).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return decodeRecord(payload)
}

// UpsertRecord writes the full record, replacing any previous one for the key.
func (s *Store) UpsertRecord(ctx context.Context, rec payroll.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compensation_records (id, teacher_id, period_start, period_end,
			total_salary, payload_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(teacher_id, period_start, period_end) DO UPDATE SET
			id = excluded.id,
			total_salary = excluded.total_salary,
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at
	`,
		rec.ID, rec.TeacherID, formatTime(rec.PeriodStart), formatTime(rec.PeriodEnd),
		rec.TotalSalary.String(), string(payload), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

// ListRecords returns records newest period first, then by teacher.
func (s *Store) ListRecords(ctx context.Context, filter payroll.RecordFilter) ([]payroll.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.TeacherID != "" {
		where = append(where, "teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	if filter.Period != nil {
		where = append(where, "period_start = ? AND period_end = ?")
		args = append(args, formatTime(filter.Period.Start), formatTime(filter.Period.End))
	}

	query := `SELECT payload_json FROM compensation_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY period_start DESC, teacher_id ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []payroll.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// =============================================================================
// RUN STORE (payroll.RunStore interface)
// =============================================================================

// SaveRun inserts or updates a batch run.
func (s *Store) SaveRun(ctx context.Context, r payroll.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	failuresJSON, err := json.Marshal(r.Failures)
	if err != nil {
		return fmt.Errorf("failed to encode failures: %w", err)
	}
	var completedAt sql.NullString
	if r.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*r.CompletedAt), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payroll_runs (id, period_start, period_end, status, teachers,
			succeeded, failed, failures_json, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			teachers = excluded.teachers,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			failures_json = excluded.failures_json,
			completed_at = excluded.completed_at
	`,
		r.ID, formatTime(r.PeriodStart), formatTime(r.PeriodEnd), string(r.Status), r.Teachers,
		r.Succeeded, r.Failed, string(failuresJSON), formatTime(r.StartedAt), completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]payroll.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, period_start, period_end, status, teachers, succeeded, failed,
			failures_json, started_at, completed_at
		FROM payroll_runs
		ORDER BY started_at DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.Run
	for rows.Next() {
		var r payroll.Run
		var start, end, status, failuresJSON, startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&r.ID, &start, &end, &status, &r.Teachers, &r.Succeeded, &r.Failed,
			&failuresJSON, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		r.PeriodStart = parseTime(start)
		r.PeriodEnd = parseTime(end)
		r.Status = payroll.RunStatus(status)
		r.StartedAt = parseTime(startedAt)
		if completedAt.Valid {
			t := parseTime(completedAt.String)
			r.CompletedAt = &t
		}
		if err := json.Unmarshal([]byte(failuresJSON), &r.Failures); err != nil {
			return nil, fmt.Errorf("failed to decode failures of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// IsRunComplete reports whether a completed run exists for the period.
func (s *Store) IsRunComplete(ctx context.Context, period generic.Period) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payroll_runs
		WHERE period_start = ? AND period_end = ? AND status = ?
	`, formatTime(period.Start), formatTime(period.End), string(payroll.RunCompleted)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryTeachers(ctx context.Context, query string, args ...any) ([]payroll.Teacher, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query teachers: %w", err)
	}
	defer rows.Close()

	var out []payroll.Teacher
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTeacher(row scanner) (payroll.Teacher, error) {
	var t payroll.Teacher
	var rate string
	if err := row.Scan(&t.ID, &t.Name, &t.LocationID, &rate, &t.Active, &t.ReferredBy); err != nil {
		return payroll.Teacher{}, err
	}
	hourly, err := decimal.NewFromString(rate)
	if err != nil {
		return payroll.Teacher{}, fmt.Errorf("%w: hourly rate %q of teacher %s", generic.ErrInvalidRate, rate, t.ID)
	}
	t.HourlyRate = hourly
	return t, nil
}

func (s *Store) queryLessons(ctx context.Context, query string, args ...any) ([]payroll.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var out []payroll.Lesson
	for rows.Next() {
		var l payroll.Lesson
		var start, end, status, pkg string
		var memoTime sql.NullString
		if err := rows.Scan(&l.ID, &l.TeacherID, &l.StudentID, &start, &end, &status, &pkg,
			&l.HasMemo, &memoTime, &l.IsSubstituteTeaching, &l.IsRegularBooking); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		l.StartTime = parseTime(start)
		l.EndTime = parseTime(end)
		l.Status = payroll.LessonStatus(status)
		l.PackageType = payroll.PackageType(pkg)
		if memoTime.Valid {
			t := parseTime(memoTime.String)
			l.MemoTime = &t
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func decodeRecord(payload string) (*payroll.Record, error) {
	var rec payroll.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t.UTC()
}
