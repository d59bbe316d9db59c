/*
Package postgres provides a PostgreSQL-backed payroll.Store using pgx.

PURPOSE:
  Production persistence. Same tables and semantics as store/sqlite, with
  native TIMESTAMPTZ, NUMERIC and JSONB columns and database-level
  concurrency control instead of a process mutex.

CONNECTION:
  A pgxpool.Pool is shared by every worker of the batch driver. Migrations
  run through database/sql, bridged from the pool with stdlib.OpenDBFromPool.

MONEY:
  NUMERIC columns are written from and read back as decimal text, so no
  value ever passes through float64.

SEE ALSO:
  - store/sqlite: Reference layout and the test suite both stores satisfy
*/
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/warp/compensation-engine/generic"
	"github.com/warp/compensation-engine/payroll"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	pool *pgxpool.Pool
}

var _ payroll.Store = (*Store)(nil)

// New connects to dsn, checks the connection and applies migrations.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Truncate empties every table. Test databases only.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		TRUNCATE locations, teachers, lessons, absence_requests, orders,
			compensation_records, payroll_runs
	`)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	// goose works on *sql.DB
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// =============================================================================
// WRITER
// =============================================================================

func (s *Store) SaveTeacher(ctx context.Context, t payroll.Teacher) error {
	query := `
		INSERT INTO teachers (id, name, location_id, hourly_rate, active, referred_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			location_id = EXCLUDED.location_id,
			hourly_rate = EXCLUDED.hourly_rate,
			active = EXCLUDED.active,
			referred_by = EXCLUDED.referred_by,
			updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query, t.ID, t.Name, t.LocationID, t.HourlyRate.String(), t.Active, t.ReferredBy)
	if err != nil {
		return fmt.Errorf("save teacher: %w", err)
	}
	return nil
}

func (s *Store) SaveLocation(ctx context.Context, l payroll.Location) error {
	rates, err := json.Marshal(l.Rates)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	query := `
		INSERT INTO locations (id, name, time_zone, rates)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			time_zone = EXCLUDED.time_zone,
			rates = EXCLUDED.rates,
			updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, l.ID, l.Name, l.TimeZone, string(rates)); err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

func (s *Store) SaveLesson(ctx context.Context, l payroll.Lesson) error {
	var memoTime *time.Time
	if l.MemoTime != nil {
		t := l.MemoTime.UTC()
		memoTime = &t
	}
	query := `
		INSERT INTO lessons (id, teacher_id, student_id, start_time, end_time, status, package_type,
			has_memo, memo_time, is_substitute_teaching, is_regular_booking)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			teacher_id = EXCLUDED.teacher_id,
			student_id = EXCLUDED.student_id,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			status = EXCLUDED.status,
			package_type = EXCLUDED.package_type,
			has_memo = EXCLUDED.has_memo,
			memo_time = EXCLUDED.memo_time,
			is_substitute_teaching = EXCLUDED.is_substitute_teaching,
			is_regular_booking = EXCLUDED.is_regular_booking
	`
	_, err := s.pool.Exec(ctx, query,
		l.ID, l.TeacherID, l.StudentID, l.StartTime.UTC(), l.EndTime.UTC(),
		string(l.Status), string(l.PackageType), l.HasMemo, memoTime,
		l.IsSubstituteTeaching, l.IsRegularBooking,
	)
	if err != nil {
		return fmt.Errorf("save lesson: %w", err)
	}
	return nil
}

func (s *Store) SaveAbsence(ctx context.Context, a payroll.AbsenceRequest) error {
	slots := make([]payroll.MatchedSlot, len(a.MatchedSlots))
	for i, slot := range a.MatchedSlots {
		slot.Timestamp = slot.Timestamp.UTC()
		slots[i] = slot
	}
	slotsJSON, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode matched slots: %w", err)
	}
	query := `
		INSERT INTO absence_requests (id, teacher_id, start_time, end_time, status, created_time, matched_slots)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			teacher_id = EXCLUDED.teacher_id,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			status = EXCLUDED.status,
			created_time = EXCLUDED.created_time,
			matched_slots = EXCLUDED.matched_slots
	`
	_, err = s.pool.Exec(ctx, query,
		a.ID, a.TeacherID, a.StartTime.UTC(), a.EndTime.UTC(),
		string(a.Status), a.CreatedTime.UTC(), string(slotsJSON),
	)
	if err != nil {
		return fmt.Errorf("save absence request: %w", err)
	}
	return nil
}

func (s *Store) SaveOrder(ctx context.Context, o payroll.Order) error {
	query := `
		INSERT INTO orders (id, student_id, paid_classes, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			student_id = EXCLUDED.student_id,
			paid_classes = EXCLUDED.paid_classes,
			created_at = EXCLUDED.created_at
	`
	if _, err := s.pool.Exec(ctx, query, o.ID, o.StudentID, o.PaidClasses, o.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// =============================================================================
// SOURCE
// =============================================================================

const teacherColumns = `id, name, location_id, hourly_rate::text, active, referred_by`

const lessonColumns = `id, teacher_id, student_id, start_time, end_time, status, package_type,
	has_memo, memo_time, is_substitute_teaching, is_regular_booking`

func (s *Store) GetTeacher(ctx context.Context, id string) (*payroll.Teacher, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE id = $1`, id)
	t, err := scanTeacher(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	return &t, nil
}

func (s *Store) GetLocation(ctx context.Context, id string) (*payroll.Location, error) {
	var l payroll.Location
	var rates []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, time_zone, rates FROM locations WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.TimeZone, &rates)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	if err := json.Unmarshal(rates, &l.Rates); err != nil {
		return nil, fmt.Errorf("decode rates of location %s: %w", id, err)
	}
	return &l, nil
}

func (s *Store) ListActiveTeachers(ctx context.Context) ([]payroll.Teacher, error) {
	return s.queryTeachers(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE active ORDER BY id`)
}

func (s *Store) Referees(ctx context.Context, teacherID string) ([]payroll.Teacher, error) {
	if teacherID == "" {
		return nil, nil
	}
	return s.queryTeachers(ctx,
		`SELECT `+teacherColumns+` FROM teachers WHERE referred_by = $1 ORDER BY id`, teacherID)
}

func (s *Store) LessonsInRange(ctx context.Context, teacherID string, from, to time.Time) ([]payroll.Lesson, error) {
	return s.queryLessons(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE teacher_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time, id
	`, teacherID, from.UTC(), to.UTC())
}

func (s *Store) ApprovedAbsences(ctx context.Context, teacherID string, from, to time.Time) ([]payroll.AbsenceRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, teacher_id, start_time, end_time, status, created_time, matched_slots
		FROM absence_requests
		WHERE teacher_id = $1 AND status = $2 AND start_time < $3 AND end_time > $4
		ORDER BY created_time, id
	`, teacherID, string(payroll.AbsenceApproved), to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("query absence requests: %w", err)
	}
	defer rows.Close()

	var out []payroll.AbsenceRequest
	for rows.Next() {
		var a payroll.AbsenceRequest
		var status string
		var slots []byte
		if err := rows.Scan(&a.ID, &a.TeacherID, &a.StartTime, &a.EndTime, &status, &a.CreatedTime, &slots); err != nil {
			return nil, fmt.Errorf("scan absence request: %w", err)
		}
		a.Status = payroll.AbsenceStatus(status)
		a.StartTime = a.StartTime.UTC()
		a.EndTime = a.EndTime.UTC()
		a.CreatedTime = a.CreatedTime.UTC()
		if err := json.Unmarshal(slots, &a.MatchedSlots); err != nil {
			return nil, fmt.Errorf("decode matched slots of %s: %w", a.ID, err)
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

func (s *Store) CompletedTrialStudents(ctx context.Context, teacherID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT student_id FROM lessons
		WHERE teacher_id = $1 AND status = $2 AND package_type = $3 AND student_id <> ''
		ORDER BY student_id
	`, teacherID, string(payroll.StatusCompleted), string(payroll.PackageTrial))
	if err != nil {
		return nil, fmt.Errorf("query trial students: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) FirstQualifyingOrder(ctx context.Context, studentID string, minClasses int) (*payroll.Order, error) {
	var o payroll.Order
	err := s.pool.QueryRow(ctx, `
		SELECT id, student_id, paid_classes, created_at FROM orders
		WHERE student_id = $1 AND paid_classes >= $2
		ORDER BY created_at, id
		LIMIT 1
	`, studentID, minClasses).Scan(&o.ID, &o.StudentID, &o.PaidClasses, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get first order: %w", err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

func (s *Store) FirstNonTrialLessons(ctx context.Context, teacherID, studentID string, n int) ([]payroll.Lesson, error) {
	return s.queryLessons(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE teacher_id = $1 AND student_id = $2 AND package_type IN ($3, $4)
		ORDER BY start_time, id
		LIMIT $5
	`, teacherID, studentID, string(payroll.PackageStandard), string(payroll.PackagePremium), n)
}

func (s *Store) NthCompletedLesson(ctx context.Context, teacherID string, n int) (*payroll.Lesson, error) {
	if n <= 0 {
		return nil, nil
	}
	lessons, err := s.queryLessons(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE teacher_id = $1 AND status = $2
		ORDER BY start_time, id
		LIMIT 1 OFFSET $3
	`, teacherID, string(payroll.StatusCompleted), n-1)
	if err != nil || len(lessons) == 0 {
		return nil, err
	}
	return &lessons[0], nil
}

// =============================================================================
// RECORD STORE
// =============================================================================

func (s *Store) GetRecord(ctx context.Context, teacherID string, period generic.Period) (*payroll.Record, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT payload FROM compensation_records
		WHERE teacher_id = $1 AND period_start = $2 AND period_end = $3
	`, teacherID, period.Start.UTC(), period.End.UTC()).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return decodeRecord(payload)
}

func (s *Store) UpsertRecord(ctx context.Context, rec payroll.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	query := `
		INSERT INTO compensation_records (id, teacher_id, period_start, period_end, total_salary, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (teacher_id, period_start, period_end) DO UPDATE SET
			id = EXCLUDED.id,
			total_salary = EXCLUDED.total_salary,
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`
	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.TeacherID, rec.PeriodStart.UTC(), rec.PeriodEnd.UTC(),
		rec.TotalSalary.String(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context, filter payroll.RecordFilter) ([]payroll.Record, error) {
	var where []string
	var args []any
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		where = append(where, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if filter.Period != nil {
		args = append(args, filter.Period.Start.UTC(), filter.Period.End.UTC())
		where = append(where, fmt.Sprintf("period_start = $%d AND period_end = $%d", len(args)-1, len(args)))
	}

	query := `SELECT payload FROM compensation_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY period_start DESC, teacher_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []payroll.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
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
// RUN STORE
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, r payroll.Run) error {
	failures, err := json.Marshal(r.Failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}
	var completedAt *time.Time
	if r.CompletedAt != nil {
		t := r.CompletedAt.UTC()
		completedAt = &t
	}
	query := `
		INSERT INTO payroll_runs (id, period_start, period_end, status, teachers,
			succeeded, failed, failures, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			teachers = EXCLUDED.teachers,
			succeeded = EXCLUDED.succeeded,
			failed = EXCLUDED.failed,
			failures = EXCLUDED.failures,
			completed_at = EXCLUDED.completed_at
	`
	_, err = s.pool.Exec(ctx, query,
		r.ID, r.PeriodStart.UTC(), r.PeriodEnd.UTC(), string(r.Status), r.Teachers,
		r.Succeeded, r.Failed, string(failures), r.StartedAt.UTC(), completedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]payroll.Run, error) {
	query := `
		SELECT id::text, period_start, period_end, status, teachers, succeeded, failed,
			failures, started_at, completed_at
		FROM payroll_runs
		ORDER BY started_at DESC, id
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.Run
	for rows.Next() {
		var r payroll.Run
		var status string
		var failures []byte
		if err := rows.Scan(&r.ID, &r.PeriodStart, &r.PeriodEnd, &status, &r.Teachers,
			&r.Succeeded, &r.Failed, &failures, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = payroll.RunStatus(status)
		r.PeriodStart = r.PeriodStart.UTC()
		r.PeriodEnd = r.PeriodEnd.UTC()
		r.StartedAt = r.StartedAt.UTC()
		if r.CompletedAt != nil {
			t := r.CompletedAt.UTC()
			r.CompletedAt = &t
		}
		if err := json.Unmarshal(failures, &r.Failures); err != nil {
			return nil, fmt.Errorf("decode failures of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) IsRunComplete(ctx context.Context, period generic.Period) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payroll_runs
			WHERE period_start = $1 AND period_end = $2 AND status = $3
		)
	`, period.Start.UTC(), period.End.UTC(), string(payroll.RunCompleted)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check run: %w", err)
	}
	return exists, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) queryTeachers(ctx context.Context, query string, args ...any) ([]payroll.Teacher, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query teachers: %w", err)
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

func scanTeacher(row pgx.Row) (payroll.Teacher, error) {
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
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	var out []payroll.Lesson
	for rows.Next() {
		var l payroll.Lesson
		var status, pkg string
		if err := rows.Scan(&l.ID, &l.TeacherID, &l.StudentID, &l.StartTime, &l.EndTime, &status, &pkg,
			&l.HasMemo, &l.MemoTime, &l.IsSubstituteTeaching, &l.IsRegularBooking); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		l.Status = payroll.LessonStatus(status)
		l.PackageType = payroll.PackageType(pkg)
		l.StartTime = l.StartTime.UTC()
		l.EndTime = l.EndTime.UTC()
		if l.MemoTime != nil {
			t := l.MemoTime.UTC()
			l.MemoTime = &t
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func decodeRecord(payload []byte) (*payroll.Record, error) {
	var rec payroll.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}
