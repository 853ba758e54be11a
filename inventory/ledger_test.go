package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	baseTime = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
	staff    = inventory.Actor{ID: "staff-1", Role: "staff"}
	manager  = inventory.Actor{ID: "mgr-1", Role: "manager"}
)

// engine bundles every service over one in-memory store and a fixed clock.
type engine struct {
	store      *sqlite.Store
	clock      *inventory.FixedClock
	ledger     *inventory.BatchLedger
	allocator  *inventory.Allocator
	aggregator *inventory.Aggregator
	lifecycle  *inventory.LifecycleManager
	opening    *inventory.OpeningStockService
}

func newTestEngine(t *testing.T) *engine {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := inventory.NewFixedClock(baseTime)
	logger := zerolog.Nop()
	audit := inventory.NewRecorder(store, clock, logger)

	return &engine{
		store:      store,
		clock:      clock,
		ledger:     inventory.NewBatchLedger(store, clock, audit, logger),
		allocator:  inventory.NewAllocator(store, clock, audit, logger),
		aggregator: inventory.NewAggregator(store, clock, logger),
		lifecycle:  inventory.NewLifecycleManager(store, clock, audit, logger),
		opening:    inventory.NewOpeningStockService(store, clock, audit, logger),
	}
}

func seedProduct(t *testing.T, e *engine, id string) {
	t.Helper()
	err := e.store.SaveProduct(context.Background(), inventory.Product{
		ID:             id,
		Name:           "Product " + id,
		CostPerPack:    decimal.NewFromInt(50),
		PacksPerPallet: 40,
		ReorderLevel:   10,
		CreatedAt:      baseTime,
	})
	require.NoError(t, err)
}

// seedBatch creates a PACKS batch with an optional expiry offset in days
// from baseTime (negative offset means already expired).
func seedBatch(t *testing.T, e *engine, productID string, qty int, expiryDays *int) *inventory.Batch {
	t.Helper()
	var expiry *time.Time
	if expiryDays != nil {
		d := baseTime.AddDate(0, 0, *expiryDays)
		expiry = &d
	}
	batch, err := e.ledger.CreateBatch(context.Background(), staff, inventory.CreateBatchInput{
		ProductID:    productID,
		Quantity:     qty,
		UnitType:     inventory.UnitPacks,
		PurchaseDate: baseTime.AddDate(0, 0, -30),
		ExpiryDate:   expiry,
	})
	require.NoError(t, err)
	return batch
}

func daysPtr(n int) *int { return &n }

// =============================================================================
// BATCH CREATION TESTS
// =============================================================================

func TestCreateBatch_InitialState(t *testing.T) {
	// GIVEN: A product
	// WHEN: Recording a 100-pack receipt
	// THEN: Batch is ACTIVE with sold=0, remaining=100

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")

	batch, err := e.ledger.CreateBatch(ctx, staff, inventory.CreateBatchInput{
		ProductID:    "prod-1",
		BatchNumber:  "LOT-001",
		Quantity:     100,
		UnitType:     inventory.UnitPacks,
		PurchaseDate: baseTime,
	})
	require.NoError(t, err)

	assert.Equal(t, inventory.BatchActive, batch.Status)
	assert.Equal(t, 100, batch.Quantity)
	assert.Equal(t, 0, batch.QuantitySold)
	assert.Equal(t, 100, batch.QuantityRemaining)
	assert.NoError(t, batch.CheckInvariant())

	stored, err := e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "LOT-001", stored.BatchNumber)
}

func TestCreateBatch_RejectsBadInput(t *testing.T) {
	// GIVEN: A product
	// WHEN: Receipts with zero quantity, bad unit, or unknown product
	// THEN: Each is rejected with a validation or not-found error

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")

	_, err := e.ledger.CreateBatch(ctx, staff, inventory.CreateBatchInput{
		ProductID: "prod-1", Quantity: 0, UnitType: inventory.UnitPacks, PurchaseDate: baseTime,
	})
	assert.ErrorIs(t, err, inventory.ErrValidation)

	_, err = e.ledger.CreateBatch(ctx, staff, inventory.CreateBatchInput{
		ProductID: "prod-1", Quantity: 5, UnitType: "CRATES", PurchaseDate: baseTime,
	})
	assert.ErrorIs(t, err, inventory.ErrValidation)

	_, err = e.ledger.CreateBatch(ctx, staff, inventory.CreateBatchInput{
		ProductID: "nope", Quantity: 5, UnitType: inventory.UnitPacks, PurchaseDate: baseTime,
	})
	assert.True(t, inventory.IsNotFound(err))
}

// =============================================================================
// INVARIANT TESTS
// =============================================================================

func TestCheckInvariant_Violations(t *testing.T) {
	// GIVEN: Batches with broken arithmetic
	// WHEN: Checking the ledger invariant
	// THEN: Each violation is reported as an InvariantError

	broken := inventory.Batch{ID: "b1", Quantity: 100, QuantitySold: 30, QuantityRemaining: 60}
	err := broken.CheckInvariant()
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrInvariantViolated)

	negative := inventory.Batch{ID: "b2", Quantity: 10, QuantitySold: 15, QuantityRemaining: -5}
	assert.Error(t, negative.CheckInvariant())

	depletedWithStock := inventory.Batch{
		ID: "b3", Quantity: 10, QuantitySold: 5, QuantityRemaining: 5,
		Status: inventory.BatchDepleted,
	}
	assert.Error(t, depletedWithStock.CheckInvariant())

	healthy := inventory.Batch{ID: "b4", Quantity: 100, QuantitySold: 30, QuantityRemaining: 70}
	assert.NoError(t, healthy.CheckInvariant())
}

func TestApplyAllocation_DepletionLifecycle(t *testing.T) {
	// GIVEN: A 100-pack batch
	// WHEN: Selling 30 then 70
	// THEN: After 30 it is ACTIVE 30/70; after the rest it is DEPLETED 100/0

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	batch := seedBatch(t, e, "prod-1", 100, nil)

	require.NoError(t, inventory.ApplyAllocation(ctx, e.store, batch, 30))
	assert.Equal(t, 30, batch.QuantitySold)
	assert.Equal(t, 70, batch.QuantityRemaining)
	assert.Equal(t, inventory.BatchActive, batch.Status)

	require.NoError(t, inventory.ApplyAllocation(ctx, e.store, batch, 70))
	assert.Equal(t, 100, batch.QuantitySold)
	assert.Equal(t, 0, batch.QuantityRemaining)
	assert.Equal(t, inventory.BatchDepleted, batch.Status)

	stored, err := e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.BatchDepleted, stored.Status)
	assert.NoError(t, stored.CheckInvariant())
}

func TestApplyAllocation_OverdrawRejected(t *testing.T) {
	// GIVEN: A batch with 10 remaining
	// WHEN: Allocating 11
	// THEN: InsufficientStockError, batch untouched

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	batch := seedBatch(t, e, "prod-1", 10, nil)

	err := inventory.ApplyAllocation(ctx, e.store, batch, 11)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 10, batch.QuantityRemaining)
}

// =============================================================================
// BATCH DELETION TESTS
// =============================================================================

func TestDeleteBatch_UnreferencedSucceeds(t *testing.T) {
	// GIVEN: A batch with no sale allocations
	// WHEN: Deleting it
	// THEN: It is gone

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	batch := seedBatch(t, e, "prod-1", 50, nil)

	require.NoError(t, e.ledger.DeleteBatch(ctx, manager, batch.ID))

	stored, err := e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestDeleteBatch_ReferencedRejected(t *testing.T) {
	// GIVEN: A batch consumed by a sale
	// WHEN: Deleting it
	// THEN: ConflictError; sale history is immutable

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	batch := seedBatch(t, e, "prod-1", 50, nil)

	_, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 5, UnitType: inventory.UnitPacks,
	})
	require.NoError(t, err)

	err = e.ledger.DeleteBatch(ctx, manager, batch.ID)
	assert.True(t, inventory.IsConflict(err))

	stored, err := e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestDeleteBatch_MissingNotFound(t *testing.T) {
	e := newTestEngine(t)
	err := e.ledger.DeleteBatch(context.Background(), manager, "nope")
	assert.True(t, inventory.IsNotFound(err))
}
