/*
scheduler.go - Automated circle-close scheduler

PURPOSE:
  Periodically checks whether a pay circle has closed and, if so, runs the
  batch for it once. A circle runs 1st-15th or 16th-end of month in the
  configured time zone.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick asks the batch driver to close the previous circle
  - Circles with a completed run in payroll_runs are skipped, so restarts
    and multiple ticks per circle are harmless
  - A failed run (cancelled or interrupted) is retried on the next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether scheduler is active

USAGE:
  scheduler := NewCircleScheduler(batch, zone, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRun endpoint (manual batch)
  - payroll/batch.go: CloseCircle
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/compensation-engine/payroll"
	"go.uber.org/zap"
)

// CircleScheduler closes pay circles automatically.
type CircleScheduler struct {
	Batch         *payroll.Batch
	Zone          *time.Location
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Now is overridable for tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCircleScheduler creates a new scheduler.
func NewCircleScheduler(batch *payroll.Batch, zone *time.Location, logger *zap.Logger) *CircleScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircleScheduler{
		Batch:         batch,
		Zone:          zone,
		Logger:        logger,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (cs *CircleScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.Logger.Info("scheduler disabled, not starting")
		return
	}
	if cs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cs.cancel = cancel
	cs.stop = make(chan struct{})
	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.wg.Add(1)

	go cs.run(ctx)

	cs.Logger.Info("scheduler started", zap.Duration("interval", cs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check to finish.
// Teachers already dispatched complete; no new ones start.
func (cs *CircleScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker == nil {
		return
	}
	cs.ticker.Stop()
	cs.cancel()
	close(cs.stop)
	cs.wg.Wait()
	cs.ticker = nil
	cs.Logger.Info("scheduler stopped")
}

func (cs *CircleScheduler) run(ctx context.Context) {
	defer cs.wg.Done()

	// Run immediately on start
	cs.checkAndProcess(ctx)

	for {
		select {
		case <-cs.ticker.C:
			cs.checkAndProcess(ctx)
		case <-cs.stop:
			return
		}
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (cs *CircleScheduler) RunNow(ctx context.Context) (*payroll.Run, error) {
	return cs.Batch.CloseCircle(ctx, cs.Now(), cs.Zone)
}

func (cs *CircleScheduler) checkAndProcess(ctx context.Context) {
	run, err := cs.RunNow(ctx)
	if err != nil {
		cs.Logger.Error("close circle failed", zap.Error(err))
		return
	}
	if run == nil {
		cs.Logger.Debug("previous circle already closed")
		return
	}
	cs.Logger.Info("circle closed",
		zap.String("run_id", run.ID),
		zap.Time("period_start", run.PeriodStart),
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed),
	)
}

// NextCheck returns when the next scheduled check will occur.
func (cs *CircleScheduler) NextCheck() time.Time {
	return cs.Now().Add(cs.CheckInterval)
}
