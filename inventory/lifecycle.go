/*
lifecycle.go - Scheduled batch status transitions

PURPOSE:
  Moves batches through their lifecycle on a schedule and raises expiry
  alerts. Runs as a background job and on demand.

RUN ORDER (matters):
  1. markExpired:  ACTIVE/DEPLETED batches past their expiry -> EXPIRED.
     EXPIRED takes precedence over DEPLETED, hence expiry runs first.
  2. markDepleted: ACTIVE batches with zero remaining -> DEPLETED. Safety
     net for any path that skipped the inline status update.
  3. expiry alerts: ACTIVE batches with stock expiring inside the horizon.
     Read-only, returned for external notification.

IDEMPOTENCE:
  Each step is idempotent per batch. A crash between steps is safe: rerun
  from step 1 and the second run changes nothing.
*/
package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultAlertHorizon is how far ahead expiry alerts look.
const DefaultAlertHorizon = 60 * 24 * time.Hour

// =============================================================================
// LIFECYCLE MANAGER
// =============================================================================

// LifecycleManager runs the scheduled expire/deplete sweep.
type LifecycleManager struct {
	Store        TxStore
	Clock        Clock
	Audit        *Recorder
	Logger       zerolog.Logger
	AlertHorizon time.Duration
}

func NewLifecycleManager(store TxStore, clock Clock, audit *Recorder, logger zerolog.Logger) *LifecycleManager {
	return &LifecycleManager{
		Store:        store,
		Clock:        clock,
		Audit:        audit,
		Logger:       logger,
		AlertHorizon: DefaultAlertHorizon,
	}
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	ExpiredCount  int
	DepletedCount int
	Alerts        []ExpiryAlert
	RanAt         time.Time
}

// RunSweep executes the three lifecycle steps in order. Each step commits
// independently so a crash between steps resumes cleanly on rerun.
func (lm *LifecycleManager) RunSweep(ctx context.Context) (*SweepResult, error) {
	now := lm.Clock.Now()
	result := &SweepResult{RanAt: now}

	expired, err := lm.markExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	result.ExpiredCount = expired

	depleted, err := lm.markDepleted(ctx)
	if err != nil {
		return nil, err
	}
	result.DepletedCount = depleted

	alerts, err := lm.generateExpiryAlerts(ctx, now)
	if err != nil {
		return nil, err
	}
	result.Alerts = alerts

	lm.Logger.Info().
		Int("expired", result.ExpiredCount).
		Int("depleted", result.DepletedCount).
		Int("alerts", len(result.Alerts)).
		Msg("lifecycle sweep complete")

	return result, nil
}

// markExpired transitions every ACTIVE or DEPLETED batch whose expiry date
// is in the past. The status records that the expiry condition held when
// it was set; it does not revert if the clock moves backward.
func (lm *LifecycleManager) markExpired(ctx context.Context, now time.Time) (int, error) {
	var transitioned []Batch

	err := lm.Store.WithTx(ctx, func(s Store) error {
		batches, err := s.ListExpirableBatches(ctx, now)
		if err != nil {
			return err
		}
		for i := range batches {
			b := batches[i]
			b.Status = BatchExpired
			if err := b.CheckInvariant(); err != nil {
				return err
			}
			if err := s.UpdateBatch(ctx, b); err != nil {
				return err
			}
			transitioned = append(transitioned, b)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, b := range transitioned {
		lm.Audit.Record(ctx, AuditEntry{
			ID:        uuid.NewString(),
			Entity:    "batch",
			EntityID:  b.ID,
			Action:    AuditBatchExpired,
			Actor:     "system",
			NewValues: map[string]any{"status": string(BatchExpired)},
			Metadata:  map[string]any{"reason": "auto-expire"},
		})
	}
	return len(transitioned), nil
}

// markDepleted transitions remaining ACTIVE batches with zero stock.
func (lm *LifecycleManager) markDepleted(ctx context.Context) (int, error) {
	var transitioned []Batch

	err := lm.Store.WithTx(ctx, func(s Store) error {
		batches, err := s.ListDepletableBatches(ctx)
		if err != nil {
			return err
		}
		for i := range batches {
			b := batches[i]
			b.Status = BatchDepleted
			if err := b.CheckInvariant(); err != nil {
				return err
			}
			if err := s.UpdateBatch(ctx, b); err != nil {
				return err
			}
			transitioned = append(transitioned, b)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, b := range transitioned {
		lm.Audit.Record(ctx, AuditEntry{
			ID:        uuid.NewString(),
			Entity:    "batch",
			EntityID:  b.ID,
			Action:    AuditBatchDepleted,
			Actor:     "system",
			NewValues: map[string]any{"status": string(BatchDepleted)},
			Metadata:  map[string]any{"reason": "sweep safety net"},
		})
	}
	return len(transitioned), nil
}

// generateExpiryAlerts collects ACTIVE batches with stock expiring inside
// the horizon. Mutates nothing.
func (lm *LifecycleManager) generateExpiryAlerts(ctx context.Context, now time.Time) ([]ExpiryAlert, error) {
	batches, err := lm.Store.ListExpiringBatches(ctx, now, lm.AlertHorizon)
	if err != nil {
		return nil, err
	}

	alerts := make([]ExpiryAlert, 0, len(batches))
	for _, b := range batches {
		alerts = append(alerts, ExpiryAlert{
			BatchID:     b.ID,
			ProductID:   b.ProductID,
			BatchNumber: b.BatchNumber,
			Remaining:   b.QuantityRemaining,
			UnitType:    b.UnitType,
			ExpiryDate:  *b.ExpiryDate,
			DaysLeft:    int(b.ExpiryDate.Sub(now).Hours() / 24),
		})
	}
	return alerts, nil
}
