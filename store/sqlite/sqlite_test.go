/*
sqlite_test.go - Storage-level tests

Covers the behaviors the domain layer depends on but cannot see:
transaction rollback, FEFO ordering inside the SQL, the unique
constraint on daily counts, and audit filtering.
*/
package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func saveProduct(t *testing.T, s *sqlite.Store, id string) {
	t.Helper()
	require.NoError(t, s.SaveProduct(context.Background(), inventory.Product{
		ID: id, Name: id, CreatedAt: time.Now().UTC(),
	}))
}

func packBatch(id, productID string, qty int, purchase time.Time, expiry *time.Time) inventory.Batch {
	return inventory.Batch{
		ID: id, ProductID: productID, Quantity: qty,
		UnitType: inventory.UnitPacks, QuantityRemaining: qty,
		PurchaseDate: purchase, ExpiryDate: expiry,
		Status: inventory.BatchActive, CreatedAt: purchase,
	}
}

func TestWithTx_RollbackDiscardsWrites(t *testing.T) {
	// GIVEN: A transaction that inserts a batch then fails
	// WHEN: WithTx returns the error
	// THEN: The insert is gone

	store := newStore(t)
	ctx := context.Background()
	saveProduct(t, store, "prod-1")

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s inventory.Store) error {
		if err := s.InsertBatch(ctx, packBatch("b1", "prod-1", 10, time.Now().UTC(), nil)); err != nil {
			return err
		}
		// The write is visible inside the transaction.
		b, err := s.GetBatch(ctx, "b1")
		if err != nil {
			return err
		}
		if b == nil {
			return errors.New("batch not visible inside tx")
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	b, err := store.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestListOpenBatchesFEFO_Ordering(t *testing.T) {
	// GIVEN: Batches with mixed expiry dates, one NULL, one drained
	// WHEN: Listing open batches
	// THEN: Expiry ascending, NULL last, drained excluded

	store := newStore(t)
	ctx := context.Background()
	saveProduct(t, store, "prod-1")

	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	apr := base.AddDate(0, 3, 0)
	feb := base.AddDate(0, 1, 0)

	require.NoError(t, store.InsertBatch(ctx, packBatch("b-apr", "prod-1", 10, base, &apr)))
	require.NoError(t, store.InsertBatch(ctx, packBatch("b-null", "prod-1", 10, base, nil)))
	require.NoError(t, store.InsertBatch(ctx, packBatch("b-feb", "prod-1", 10, base, &feb)))

	drained := packBatch("b-drained", "prod-1", 10, base, &feb)
	drained.QuantityRemaining = 0
	drained.QuantitySold = 10
	drained.Status = inventory.BatchDepleted
	require.NoError(t, store.InsertBatch(ctx, drained))

	batches, err := store.ListOpenBatchesFEFO(ctx, "prod-1", inventory.UnitPacks)
	require.NoError(t, err)

	require.Len(t, batches, 3)
	assert.Equal(t, "b-feb", batches[0].ID)
	assert.Equal(t, "b-apr", batches[1].ID)
	assert.Equal(t, "b-null", batches[2].ID)
}

func TestInsertOpeningStock_UniquePerProductDate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveProduct(t, store, "prod-1")

	day := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
	entry := inventory.DailyOpeningStock{
		ID: "os-1", ProductID: "prod-1", StockDate: day,
		Status: inventory.StatusPending, CreatedAt: day, UpdatedAt: day,
	}
	require.NoError(t, store.InsertOpeningStock(ctx, entry))

	dup := entry
	dup.ID = "os-2"
	err := store.InsertOpeningStock(ctx, dup)
	assert.True(t, inventory.IsConflict(err))
}

func TestQueryAudit_FiltersAndOrder(t *testing.T) {
	// GIVEN: Audit entries for two entities at different times
	// WHEN: Querying filtered by entity
	// THEN: Only matches return, newest first

	store := newStore(t)
	ctx := context.Background()

	t0 := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
	for i, tc := range []struct {
		id, entity string
		action     inventory.AuditAction
	}{
		{"a1", "batch", inventory.AuditBatchCreated},
		{"a2", "sale", inventory.AuditSaleRecorded},
		{"a3", "batch", inventory.AuditBatchExpired},
	} {
		require.NoError(t, store.AppendAudit(ctx, inventory.AuditEntry{
			ID: tc.id, Entity: tc.entity, EntityID: "x",
			Action: tc.action, Actor: "staff-1",
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := store.QueryAudit(ctx, inventory.AuditFilter{Entity: "batch"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a3", entries[0].ID)
	assert.Equal(t, "a1", entries[1].ID)

	entries, err = store.QueryAudit(ctx, inventory.AuditFilter{Action: inventory.AuditSaleRecorded})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a2", entries[0].ID)
}

func TestTotals_AsOfDateCutoffs(t *testing.T) {
	// GIVEN: Batches purchased before and after a cutoff
	// WHEN: Summing purchased-before
	// THEN: Only earlier purchases count; EXPIRED batches never count

	store := newStore(t)
	ctx := context.Background()
	saveProduct(t, store, "prod-1")

	cutoff := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	before := cutoff.AddDate(0, 0, -10)
	after := cutoff.AddDate(0, 0, 10)

	require.NoError(t, store.InsertBatch(ctx, packBatch("b-before", "prod-1", 40, before, nil)))
	require.NoError(t, store.InsertBatch(ctx, packBatch("b-after", "prod-1", 60, after, nil)))

	expired := packBatch("b-expired", "prod-1", 25, before, nil)
	expired.Status = inventory.BatchExpired
	require.NoError(t, store.InsertBatch(ctx, expired))

	total, err := store.TotalPurchasedBefore(ctx, "prod-1", inventory.UnitPacks, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 40, total)
}

func TestTimestamps_NormalizedToUTC(t *testing.T) {
	// GIVEN: A batch whose purchase date carries a non-UTC offset
	// WHEN: Comparing against a UTC cutoff
	// THEN: Chronological order wins, not the raw offset string

	store := newStore(t)
	ctx := context.Background()
	saveProduct(t, store, "prod-1")

	// 02:00 in UTC+7 on March 1 is still February 28 in UTC, so it sits
	// before a midnight-UTC March 1 cutoff. A raw "+07:00" string would
	// sort after the cutoff's "Z" form and be wrongly excluded.
	bangkok := time.FixedZone("ICT", 7*3600)
	purchase := time.Date(2025, time.March, 1, 2, 0, 0, 0, bangkok)
	cutoff := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertBatch(ctx, packBatch("b-ict", "prod-1", 35, purchase, nil)))

	total, err := store.TotalPurchasedBefore(ctx, "prod-1", inventory.UnitPacks, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 35, total)

	stored, err := store.GetBatch(ctx, "b-ict")
	require.NoError(t, err)
	assert.True(t, stored.PurchaseDate.Equal(purchase))
}
