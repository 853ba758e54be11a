/*
scheduler.go - Background sweep scheduler

PURPOSE:
  Runs the two periodic maintenance jobs:
  - Lifecycle sweep: marks expired and depleted batches, raises expiry
    alerts. Default every hour.
  - Snapshot sweep: recomputes every product's snapshot from the batch
    ledger. Self-healing for any drift. Default every 5 minutes.

DESIGN:
  - One goroutine per job, each with its own ticker
  - Both jobs run once immediately on Start
  - A job failure is logged and retried on the next tick; it never stops
    the scheduler

USAGE:
  scheduler := NewSweepScheduler(handler, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - inventory/lifecycle.go: the sweep itself
  - inventory/aggregator.go: RecomputeAll
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SweepScheduler drives the periodic lifecycle and snapshot sweeps.
type SweepScheduler struct {
	Handler *Handler
	Logger  zerolog.Logger

	LifecycleInterval time.Duration
	SnapshotInterval  time.Duration
	Enabled           bool

	stop chan struct{}
	wg   sync.WaitGroup
	mu   sync.Mutex
	on   bool
}

// NewSweepScheduler creates a scheduler with default intervals.
func NewSweepScheduler(handler *Handler, logger zerolog.Logger) *SweepScheduler {
	return &SweepScheduler{
		Handler:           handler,
		Logger:            logger,
		LifecycleInterval: 1 * time.Hour,
		SnapshotInterval:  5 * time.Minute,
		Enabled:           true,
		stop:              make(chan struct{}),
	}
}

// Start begins both background jobs.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		ss.Logger.Info().Msg("sweep scheduler disabled, not starting")
		return
	}
	if ss.on {
		return
	}
	ss.on = true

	ss.wg.Add(2)
	go ss.runJob("lifecycle sweep", ss.LifecycleInterval, ss.runLifecycle)
	go ss.runJob("snapshot sweep", ss.SnapshotInterval, ss.runSnapshots)

	ss.Logger.Info().
		Dur("lifecycle_interval", ss.LifecycleInterval).
		Dur("snapshot_interval", ss.SnapshotInterval).
		Msg("sweep scheduler started")
}

// Stop stops both jobs and waits for them to finish.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.on {
		return
	}
	close(ss.stop)
	ss.wg.Wait()
	ss.on = false
	ss.Logger.Info().Msg("sweep scheduler stopped")
}

func (ss *SweepScheduler) runJob(name string, interval time.Duration, job func(context.Context)) {
	defer ss.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	job(context.Background())

	for {
		select {
		case <-ticker.C:
			job(context.Background())
		case <-ss.stop:
			ss.Logger.Debug().Str("job", name).Msg("sweep job stopping")
			return
		}
	}
}

func (ss *SweepScheduler) runLifecycle(ctx context.Context) {
	result, err := ss.Handler.Lifecycle.RunSweep(ctx)
	if err != nil {
		ss.Logger.Error().Err(err).Msg("lifecycle sweep failed, will retry next tick")
		return
	}
	if result.ExpiredCount > 0 || result.DepletedCount > 0 || len(result.Alerts) > 0 {
		ss.Logger.Info().
			Int("expired", result.ExpiredCount).
			Int("depleted", result.DepletedCount).
			Int("alerts", len(result.Alerts)).
			Msg("lifecycle sweep processed batches")
	}
}

func (ss *SweepScheduler) runSnapshots(ctx context.Context) {
	refreshed, err := ss.Handler.Aggregator.RecomputeAll(ctx)
	if err != nil {
		ss.Logger.Error().Err(err).Msg("snapshot sweep failed, will retry next tick")
		return
	}
	ss.Logger.Debug().Int("refreshed", refreshed).Msg("snapshot sweep complete")
}

// RunNow triggers both jobs immediately (for testing/admin).
func (ss *SweepScheduler) RunNow(ctx context.Context) {
	ss.runLifecycle(ctx)
	ss.runSnapshots(ctx)
}
