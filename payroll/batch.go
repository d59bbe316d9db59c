/*
batch.go - Batch driver: every active teacher, one period

PURPOSE:
  Enumerates the active teachers and runs the Aggregator once per teacher
  over a bounded worker pool. Each run leaves an audit row in the RunStore.

ISOLATION:
  Teachers share nothing but read-only reference data and write disjoint
  record keys, so workers need no coordination. A failing teacher (error
  or panic) is logged, recorded in the run and skipped; the batch continues.

CANCELLATION:
  A cancelled context stops dispatching new teachers. A teacher already
  started runs to completion, so no record is ever half written. The run
  is then marked failed and the context error is returned with it.

RUN STATUS:
  running   -> saved before the first teacher is dispatched
  completed -> every teacher was attempted (individual failures allowed)
  failed    -> cancelled before every teacher was attempted
*/
package payroll

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/compensation-engine/generic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 4

type Batch struct {
	Aggregator *Aggregator
	Runs       RunStore
	Workers    int
	Logger     *zap.Logger

	// Now is overridable for tests.
	Now func() time.Time
}

func NewBatch(agg *Aggregator, runs RunStore, workers int, logger *zap.Logger) *Batch {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batch{
		Aggregator: agg,
		Runs:       runs,
		Workers:    workers,
		Logger:     logger,
		Now:        time.Now,
	}
}

// Run computes every active teacher's record for the period.
func (b *Batch) Run(ctx context.Context, period generic.Period) (*Run, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	utc := period.UTC()

	teachers, err := b.Aggregator.Source.ListActiveTeachers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active teachers: %w", err)
	}

	run := &Run{
		ID:          uuid.NewString(),
		PeriodStart: utc.Start,
		PeriodEnd:   utc.End,
		Status:      RunRunning,
		Teachers:    len(teachers),
		StartedAt:   b.Now().UTC(),
	}
	if err := b.Runs.SaveRun(ctx, *run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}

	log := b.Logger.With(zap.String("run_id", run.ID), zap.String("period", utc.Key()))
	log.Info("payroll run started", zap.Int("teachers", len(teachers)), zap.Int("workers", b.Workers))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(b.Workers)

	// Records must not be cut off mid-write by the caller's deadline.
	workCtx := context.WithoutCancel(ctx)

	for _, t := range teachers {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := b.computeOne(workCtx, t.ID, period)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				run.Failed++
				run.Failures = append(run.Failures, TeacherFailure{TeacherID: t.ID, Error: err.Error()})
				log.Error("teacher computation failed", zap.String("teacher_id", t.ID), zap.Error(err))
				return nil
			}
			run.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(run.Failures, func(i, j int) bool {
		return run.Failures[i].TeacherID < run.Failures[j].TeacherID
	})

	done := b.Now().UTC()
	run.CompletedAt = &done
	run.Status = RunCompleted
	cancelErr := ctx.Err()
	if cancelErr != nil && run.Succeeded+run.Failed < run.Teachers {
		run.Status = RunFailed
	} else {
		cancelErr = nil
	}

	if err := b.Runs.SaveRun(workCtx, *run); err != nil {
		return run, fmt.Errorf("save run: %w", err)
	}

	log.Info("payroll run finished",
		zap.String("status", string(run.Status)),
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed),
		zap.Duration("elapsed", done.Sub(run.StartedAt)),
	)
	return run, cancelErr
}

// computeOne runs a single teacher and turns a panic into an error.
func (b *Batch) computeOne(ctx context.Context, teacherID string, period generic.Period) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TeacherError{TeacherID: teacherID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	_, err = b.Aggregator.Compute(ctx, teacherID, period)
	return err
}

// RunCircle runs the circle containing now in the given zone.
func (b *Batch) RunCircle(ctx context.Context, now time.Time, zone *time.Location) (*Run, error) {
	return b.Run(ctx, generic.CircleFor(now, zone))
}

// CloseCircle runs the circle before the one containing now, unless a
// completed run already exists for it. Returns nil when nothing was run.
func (b *Batch) CloseCircle(ctx context.Context, now time.Time, zone *time.Location) (*Run, error) {
	previous := generic.CircleFor(now, zone).PreviousCircle()
	done, err := b.Runs.IsRunComplete(ctx, previous.UTC())
	if err != nil {
		return nil, fmt.Errorf("check run: %w", err)
	}
	if done {
		return nil, nil
	}
	return b.Run(ctx, previous)
}
