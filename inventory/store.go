/*
store.go - Persistence interfaces for the inventory engine

PURPOSE:
  Defines the interface between domain logic and the database. The engine
  mutates the batch ledger only through these interfaces, so every write
  path shares the same transactional guarantees.

KEY INTERFACES:
  Store:      All row-level operations (batches, sales, allocations,
              snapshots, opening stock, products)
  TxStore:    Store plus WithTx for atomic multi-row operations
  AuditStore: Append-only audit log

ATOMICITY CONTRACT:
  A sale's full FEFO allocation (sale row, allocation rows, batch updates,
  inline snapshot recompute) executes inside one WithTx callback. If the
  callback returns an error, nothing is committed: a crash mid-allocation
  leaves zero partial allocation rows.

CONCURRENCY CONTRACT:
  Implementations must guarantee that two concurrent sales cannot both
  claim the same units of a batch's remaining stock. Serializable
  transaction isolation (SQLite's default) satisfies this; an
  application-level mutex alone does not.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite (also used in-memory by tests)

SEE ALSO:
  - ledger.go:    uses Store for batch arithmetic
  - allocator.go: uses TxStore for atomic allocation
  - audit.go:     uses AuditStore via the best-effort Recorder
*/
package inventory

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Row-level persistence
// =============================================================================

// Store is the full persistence surface of the engine. Methods return
// (*T, nil) (nil, nil) for lookups that find nothing; domain code decides
// whether that is a NotFoundError.
type Store interface {
	// Products (catalog copy)
	SaveProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	// Batches
	InsertBatch(ctx context.Context, b Batch) error
	GetBatch(ctx context.Context, id string) (*Batch, error)
	// UpdateBatch persists sold/remaining/status. Quantity, unit type and
	// dates are immutable after receipt; implementations must not write them.
	UpdateBatch(ctx context.Context, b Batch) error
	DeleteBatch(ctx context.Context, id string) error
	ListBatchesByProduct(ctx context.Context, productID string) ([]Batch, error)

	// ListOpenBatchesFEFO returns ACTIVE batches with remaining stock for
	// the product and unit type, in consumption order: expiry date ascending
	// with NULLs last, then purchase date ascending, then id for determinism.
	ListOpenBatchesFEFO(ctx context.Context, productID string, unit UnitType) ([]Batch, error)

	// ListExpirableBatches returns ACTIVE and DEPLETED batches whose expiry
	// date is strictly before now.
	ListExpirableBatches(ctx context.Context, now time.Time) ([]Batch, error)

	// ListDepletableBatches returns ACTIVE batches with zero remaining.
	ListDepletableBatches(ctx context.Context) ([]Batch, error)

	// ListExpiringBatches returns ACTIVE batches with remaining stock whose
	// expiry date falls inside [now, now+horizon).
	ListExpiringBatches(ctx context.Context, now time.Time, horizon time.Duration) ([]Batch, error)

	// CountAllocationsForBatch reports how many allocations reference the
	// batch. Used to refuse administrative deletes of consumed batches.
	CountAllocationsForBatch(ctx context.Context, batchID string) (int, error)

	// Sales
	InsertSale(ctx context.Context, s Sale) error
	GetSale(ctx context.Context, id string) (*Sale, error)
	InsertAllocation(ctx context.Context, a BatchAllocation) error
	ListAllocationsBySale(ctx context.Context, saleID string) ([]BatchAllocation, error)

	// Ledger history ("stock as of date"). Both opening-stock reconciliation
	// and forensic checks derive system stock from these two sums.
	//
	// TotalPurchasedBefore sums original quantity over batches of the unit
	// type purchased strictly before cutoff with status ACTIVE or DEPLETED
	// (expired stock does not count toward sellable opening stock).
	TotalPurchasedBefore(ctx context.Context, productID string, unit UnitType, cutoff time.Time) (int, error)
	// TotalSoldBefore sums allocation quantities for sales of the unit type
	// created strictly before cutoff.
	TotalSoldBefore(ctx context.Context, productID string, unit UnitType, cutoff time.Time) (int, error)

	// Snapshots (derived cache)
	SaveSnapshot(ctx context.Context, s InventorySnapshot) error
	GetSnapshot(ctx context.Context, productID string) (*InventorySnapshot, error)
	// SumRemainingByUnit sums QuantityRemaining over ACTIVE batches of the
	// product, grouped by unit type. This is the snapshot's source of truth.
	SumRemainingByUnit(ctx context.Context, productID string) (map[UnitType]int, error)
	// ListProductIDsWithBatches returns every product that has at least one
	// batch, for the periodic self-healing recompute.
	ListProductIDsWithBatches(ctx context.Context) ([]string, error)

	// Opening stock workflow
	InsertOpeningStock(ctx context.Context, e DailyOpeningStock) error
	GetOpeningStock(ctx context.Context, id string) (*DailyOpeningStock, error)
	GetOpeningStockByProductDate(ctx context.Context, productID string, stockDate time.Time) (*DailyOpeningStock, error)
	UpdateOpeningStock(ctx context.Context, e DailyOpeningStock) error
	ListOpeningStockByDate(ctx context.Context, stockDate time.Time) ([]DailyOpeningStock, error)

	InsertEditRequest(ctx context.Context, r EditRequest) error
	GetEditRequest(ctx context.Context, id string) (*EditRequest, error)
	UpdateEditRequest(ctx context.Context, r EditRequest) error
	// HasPendingEditRequest reports whether the entry already has an
	// outstanding PENDING edit request. At most one is allowed.
	HasPendingEditRequest(ctx context.Context, entryID string) (bool, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view of the store.
	// If fn returns an error the transaction is rolled back, otherwise
	// committed. Nested WithTx is not supported.
	WithTx(ctx context.Context, fn func(Store) error) error
}
