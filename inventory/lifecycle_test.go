package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// EXPIRY SWEEP TESTS
// =============================================================================

func TestRunSweep_MarksExpiredBatches(t *testing.T) {
	// GIVEN: A batch expiring in 10 days
	// WHEN: The clock advances past expiry and the sweep runs
	// THEN: The batch is EXPIRED; its stock no longer counts

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	batch := seedBatch(t, e, "prod-1", 40, daysPtr(10))

	e.clock.Advance(11 * 24 * time.Hour)

	result, err := e.lifecycle.RunSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExpiredCount)

	stored, err := e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.BatchExpired, stored.Status)
	// Expiry freezes the quantities; nothing was sold.
	assert.Equal(t, 40, stored.QuantityRemaining)
}

func TestRunSweep_Idempotent(t *testing.T) {
	// GIVEN: A sweep that just expired a batch
	// WHEN: Running the sweep again immediately
	// THEN: The second run changes nothing

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	seedBatch(t, e, "prod-1", 40, daysPtr(-1))

	first, err := e.lifecycle.RunSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ExpiredCount)

	second, err := e.lifecycle.RunSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ExpiredCount)
	assert.Equal(t, 0, second.DepletedCount)
}

func TestRunSweep_ExpiredOverridesDepleted(t *testing.T) {
	// GIVEN: A batch fully sold (DEPLETED) whose expiry date then passes
	// WHEN: The sweep runs
	// THEN: Status becomes EXPIRED; expiry takes precedence

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	batch := seedBatch(t, e, "prod-1", 20, daysPtr(5))

	_, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 20, UnitType: inventory.UnitPacks,
	})
	require.NoError(t, err)

	stored, err := e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Equal(t, inventory.BatchDepleted, stored.Status)

	e.clock.Advance(6 * 24 * time.Hour)
	_, err = e.lifecycle.RunSweep(ctx)
	require.NoError(t, err)

	stored, err = e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.BatchExpired, stored.Status)
	assert.NoError(t, stored.CheckInvariant())
}

func TestRunSweep_DepletedSafetyNet(t *testing.T) {
	// GIVEN: An ACTIVE batch manually driven to zero remaining
	// WHEN: The sweep runs
	// THEN: The safety net marks it DEPLETED

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	batch := seedBatch(t, e, "prod-1", 10, nil)

	// Simulate a path that decremented stock without re-deriving status.
	batch.QuantitySold = 10
	batch.QuantityRemaining = 0
	require.NoError(t, e.store.UpdateBatch(ctx, *batch))

	result, err := e.lifecycle.RunSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DepletedCount)

	stored, err := e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.BatchDepleted, stored.Status)
}

// =============================================================================
// EXPIRY ALERT TESTS
// =============================================================================

func TestRunSweep_AlertsInsideHorizonOnly(t *testing.T) {
	// GIVEN: Batches expiring in 10 days, 90 days, and one without expiry
	// WHEN: Sweeping with a 60-day horizon
	// THEN: Only the 10-day batch is flagged, with days-left computed

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	soon := seedBatch(t, e, "prod-1", 30, daysPtr(10))
	seedBatch(t, e, "prod-1", 30, daysPtr(90))
	seedBatch(t, e, "prod-1", 30, nil)

	result, err := e.lifecycle.RunSweep(ctx)
	require.NoError(t, err)

	require.Len(t, result.Alerts, 1)
	alert := result.Alerts[0]
	assert.Equal(t, soon.ID, alert.BatchID)
	assert.Equal(t, 30, alert.Remaining)
	assert.Equal(t, 10, alert.DaysLeft)
}

func TestRunSweep_NoAlertForDrainedBatch(t *testing.T) {
	// GIVEN: A near-expiry batch that has been fully sold
	// WHEN: The sweep runs
	// THEN: No alert; alerts only cover batches still holding stock

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	seedBatch(t, e, "prod-1", 15, daysPtr(10))

	_, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 15, UnitType: inventory.UnitPacks,
	})
	require.NoError(t, err)

	result, err := e.lifecycle.RunSweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Alerts)
}
