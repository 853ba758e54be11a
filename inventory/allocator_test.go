package inventory_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// FEFO ORDERING TESTS
// =============================================================================

func TestSubmitSale_ConsumesSoonestExpiryFirst(t *testing.T) {
	// GIVEN: Three batches expiring in 90, 10 and 30 days
	// WHEN: Selling a quantity that spans two batches
	// THEN: The 10-day batch drains first, then the 30-day batch

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")

	late := seedBatch(t, e, "prod-1", 50, daysPtr(90))
	soon := seedBatch(t, e, "prod-1", 20, daysPtr(10))
	mid := seedBatch(t, e, "prod-1", 30, daysPtr(30))

	result, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 35, UnitType: inventory.UnitPacks,
	})
	require.NoError(t, err)

	require.Len(t, result.Allocations, 2)
	assert.Equal(t, soon.ID, result.Allocations[0].BatchID)
	assert.Equal(t, 20, result.Allocations[0].QuantityAllocated)
	assert.Equal(t, mid.ID, result.Allocations[1].BatchID)
	assert.Equal(t, 15, result.Allocations[1].QuantityAllocated)

	untouched, err := e.store.GetBatch(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, untouched.QuantityRemaining)

	drained, err := e.store.GetBatch(ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.BatchDepleted, drained.Status)
	assert.Equal(t, 0, drained.QuantityRemaining)
}

func TestSubmitSale_NilExpirySortsLast(t *testing.T) {
	// GIVEN: One batch without expiry and one expiring in 30 days
	// WHEN: Selling less than either holds
	// THEN: The dated batch is consumed; the undated one is untouched

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")

	undated := seedBatch(t, e, "prod-1", 40, nil)
	dated := seedBatch(t, e, "prod-1", 40, daysPtr(30))

	result, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 10, UnitType: inventory.UnitPacks,
	})
	require.NoError(t, err)

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, dated.ID, result.Allocations[0].BatchID)

	stored, err := e.store.GetBatch(ctx, undated.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.QuantityRemaining)
}

func TestSubmitSale_ExactFitDepletesBatch(t *testing.T) {
	// GIVEN: One 25-pack batch
	// WHEN: Selling exactly 25
	// THEN: One allocation, batch DEPLETED, allocations sum to sale quantity

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	batch := seedBatch(t, e, "prod-1", 25, daysPtr(30))

	result, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 25, UnitType: inventory.UnitPacks,
	})
	require.NoError(t, err)

	require.Len(t, result.Allocations, 1)
	total := 0
	for _, a := range result.Allocations {
		total += a.QuantityAllocated
	}
	assert.Equal(t, result.Sale.Quantity, total)

	stored, err := e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.BatchDepleted, stored.Status)
}

// =============================================================================
// SHORTFALL AND ATOMICITY TESTS
// =============================================================================

func TestSubmitSale_ShortfallRejectedAtomically(t *testing.T) {
	// GIVEN: 30 packs across two batches
	// WHEN: Selling 40
	// THEN: InsufficientStockError with the shortfall; no sale, no
	//       allocation, and no batch decrement is committed

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	b1 := seedBatch(t, e, "prod-1", 10, daysPtr(10))
	b2 := seedBatch(t, e, "prod-1", 20, daysPtr(30))

	_, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 40, UnitType: inventory.UnitPacks,
	})
	require.Error(t, err)

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 40, stockErr.Requested)
	assert.Equal(t, 30, stockErr.Available)
	assert.Equal(t, 10, stockErr.Shortfall())

	for _, id := range []string{b1.ID, b2.ID} {
		stored, err := e.store.GetBatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.QuantitySold)
		assert.Equal(t, inventory.BatchActive, stored.Status)
	}
}

func TestSubmitSale_SkipsExpiredAndDepletedBatches(t *testing.T) {
	// GIVEN: An expired batch, a depleted batch, and one open batch
	// WHEN: Selling
	// THEN: Only the open batch is eligible; availability excludes the rest

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")

	expired := seedBatch(t, e, "prod-1", 50, daysPtr(-5))
	_, err := e.lifecycle.RunSweep(ctx)
	require.NoError(t, err)

	open := seedBatch(t, e, "prod-1", 20, daysPtr(30))

	result, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 15, UnitType: inventory.UnitPacks,
	})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, open.ID, result.Allocations[0].BatchID)

	// Expired stock is never sellable, so a larger sale now falls short.
	_, err = e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 10, UnitType: inventory.UnitPacks,
	})
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	stored, err := e.store.GetBatch(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.QuantityRemaining)
}

// =============================================================================
// VALIDATION AND RESULT TESTS
// =============================================================================

func TestSubmitSale_RejectsNonPackSales(t *testing.T) {
	e := newTestEngine(t)
	seedProduct(t, e, "prod-1")

	_, err := e.allocator.SubmitSale(context.Background(), staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 5, UnitType: inventory.UnitPallets,
	})
	assert.ErrorIs(t, err, inventory.ErrValidation)

	_, err = e.allocator.SubmitSale(context.Background(), staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 0, UnitType: inventory.UnitPacks,
	})
	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestSubmitSale_ReceiptNumberAndLookup(t *testing.T) {
	// GIVEN: A recorded sale
	// WHEN: Looking it up
	// THEN: Receipt carries the RCP- prefix and allocations round-trip

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	seedBatch(t, e, "prod-1", 50, daysPtr(30))

	result, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 8, UnitType: inventory.UnitPacks,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Sale.ReceiptNumber, "RCP-"))

	fetched, err := e.allocator.GetSale(ctx, result.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Sale.ID, fetched.Sale.ID)
	assert.Equal(t, result.Allocations, fetched.Allocations)

	_, err = e.allocator.GetSale(ctx, "nope")
	assert.True(t, inventory.IsNotFound(err))
}

func TestSubmitSale_SnapshotUpdatedInline(t *testing.T) {
	// GIVEN: 100 packs on hand
	// WHEN: Selling 30
	// THEN: The snapshot already shows 70 without any sweep running

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	seedBatch(t, e, "prod-1", 100, daysPtr(60))

	_, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
		ProductID: "prod-1", Quantity: 30, UnitType: inventory.UnitPacks,
	})
	require.NoError(t, err)

	snap, err := e.store.GetSnapshot(ctx, "prod-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 70, snap.Packs)
}

func TestSubmitSale_SequentialSalesNeverDoubleSpend(t *testing.T) {
	// GIVEN: A single 50-pack batch
	// WHEN: Submitting sales until stock runs out
	// THEN: Total sold never exceeds 50 and the ledger invariant holds

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	batch := seedBatch(t, e, "prod-1", 50, daysPtr(60))

	sold := 0
	for i := 0; i < 8; i++ {
		_, err := e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
			ProductID: "prod-1", Quantity: 10, UnitType: inventory.UnitPacks,
		})
		if err != nil {
			assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
			continue
		}
		sold += 10
	}

	assert.Equal(t, 50, sold)
	stored, err := e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.NoError(t, stored.CheckInvariant())
	assert.Equal(t, inventory.BatchDepleted, stored.Status)
}

func TestSubmitSale_SimultaneousSalesNeverDoubleSpend(t *testing.T) {
	// GIVEN: A single 50-pack batch
	// WHEN: Two sales of 30 packs each race from separate goroutines
	// THEN: Exactly one wins, the loser sees a shortfall, and the ledger
	//       never over-allocates

	e := newTestEngine(t)
	ctx := context.Background()
	seedProduct(t, e, "prod-1")
	batch := seedBatch(t, e, "prod-1", 50, daysPtr(60))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.allocator.SubmitSale(ctx, staff, inventory.SaleInput{
				ProductID: "prod-1", Quantity: 30, UnitType: inventory.UnitPacks,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, wins)

	stored, err := e.store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.NoError(t, stored.CheckInvariant())
	assert.Equal(t, 30, stored.QuantitySold)
	assert.Equal(t, 20, stored.QuantityRemaining)
	assert.Equal(t, inventory.BatchActive, stored.Status)
}
