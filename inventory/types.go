/*
Package inventory provides the core batch-level warehouse engine.

PURPOSE:
  This package contains the domain model and algorithms for tracking stock
  as discrete expiry-dated lots (batches), allocating sales against those
  lots First-Expired-First-Out, keeping a derived per-product snapshot in
  sync with the batch ledger, and running the daily opening-stock
  reconciliation workflow.

KEY CONCEPTS IN THIS FILE (types.go):
  - Batch: a lot of stock received at one time, tracked for expiry/depletion
  - Sale + BatchAllocation: a sale and the per-batch quantities it consumed
  - InventorySnapshot: derived per-product stock cache, never authoritative
  - Product: catalog data the engine needs locally (cost, pack size, reorder)
  - Actor: the identity/role context attached to every mutating call

DESIGN PRINCIPLES:
  1. The batch ledger is the source of truth; the snapshot is recomputable.
  2. quantity == quantitySold + quantityRemaining holds at every observed
     state. A violation is a defect, not a business error.
  3. Precision: decimal.Decimal for money, integers for discrete stock.
  4. Deterministic time: expiry evaluation always goes through a Clock.

SEE ALSO:
  - ledger.go:     batch creation and allocation arithmetic
  - allocator.go:  FEFO sale allocation
  - aggregator.go: snapshot recomputation
  - lifecycle.go:  scheduled expire/deplete sweep
  - opening.go:    daily opening-stock workflow
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UNITS AND STATUSES
// =============================================================================

// UnitType is the unit a batch or sale is counted in.
type UnitType string

const (
	UnitPallets UnitType = "PALLETS"
	UnitPacks   UnitType = "PACKS"
	UnitUnits   UnitType = "UNITS"
)

// Valid reports whether u is one of the known unit types.
func (u UnitType) Valid() bool {
	switch u {
	case UnitPallets, UnitPacks, UnitUnits:
		return true
	}
	return false
}

// BatchStatus is the lifecycle state of a batch.
//
// Transitions:
//
//	ACTIVE -> DEPLETED  (remaining hits zero)
//	ACTIVE -> EXPIRED   (expiry date passes)
//	DEPLETED -> EXPIRED (expiry overrides depletion)
//
// EXPIRED is terminal and takes precedence when both conditions hold.
type BatchStatus string

const (
	BatchActive   BatchStatus = "ACTIVE"
	BatchDepleted BatchStatus = "DEPLETED"
	BatchExpired  BatchStatus = "EXPIRED"
)

// =============================================================================
// BATCH - The lot ledger entry
// =============================================================================

// Batch is a discrete quantity of product received at one time.
//
// INVARIANTS:
//   - Quantity == QuantitySold + QuantityRemaining, always
//   - QuantityRemaining >= 0
//   - Status == DEPLETED implies QuantityRemaining == 0
//   - Status == EXPIRED implies ExpiryDate was in the past when set
//     (status does not auto-revert if the clock changes)
type Batch struct {
	ID                string
	ProductID         string
	BatchNumber       string
	Quantity          int // original received quantity, never changes
	UnitType          UnitType
	QuantitySold      int
	QuantityRemaining int
	PurchaseDate      time.Time
	ExpiryDate        *time.Time // nil means the batch does not expire
	Status            BatchStatus
	CreatedAt         time.Time
}

// CheckInvariant re-asserts the ledger arithmetic for this batch.
// Returns an *InvariantError if violated. Callers must treat a non-nil
// result as a defect signal and abort the enclosing transaction.
func (b *Batch) CheckInvariant() error {
	if b.Quantity != b.QuantitySold+b.QuantityRemaining || b.QuantityRemaining < 0 {
		return &InvariantError{
			BatchID:   b.ID,
			Quantity:  b.Quantity,
			Sold:      b.QuantitySold,
			Remaining: b.QuantityRemaining,
		}
	}
	if b.Status == BatchDepleted && b.QuantityRemaining != 0 {
		return &InvariantError{
			BatchID:   b.ID,
			Quantity:  b.Quantity,
			Sold:      b.QuantitySold,
			Remaining: b.QuantityRemaining,
			Detail:    "status DEPLETED with non-zero remaining",
		}
	}
	return nil
}

// IsExpired reports whether the batch's expiry date has passed as of now.
// Batches without an expiry date never expire.
func (b *Batch) IsExpired(now time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(now)
}

// ExpiresWithin reports whether the batch expires inside the horizon.
func (b *Batch) ExpiresWithin(now time.Time, horizon time.Duration) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(now.Add(horizon))
}

// =============================================================================
// SALE AND ALLOCATIONS
// =============================================================================

// Sale records one sale request. The batches it consumed are recorded as
// BatchAllocation rows; for PACKS sales the allocation quantities must sum
// to Quantity.
type Sale struct {
	ID            string
	ProductID     string
	Quantity      int
	UnitType      UnitType
	ReceiptNumber string
	CreatedAt     time.Time
}

// BatchAllocation links a sale to a batch it consumed stock from.
type BatchAllocation struct {
	ID                string
	SaleID            string
	BatchID           string
	QuantityAllocated int
}

// SaleResult is returned by the allocator: the recorded sale plus the
// batches it drew from, in consumption order.
type SaleResult struct {
	Sale        Sale
	Allocations []BatchAllocation
}

// =============================================================================
// INVENTORY SNAPSHOT - Derived cache, never authoritative
// =============================================================================

// InventorySnapshot is the cached per-product stock view. It is always
// recomputable as the sum of QuantityRemaining over ACTIVE batches grouped
// by unit type, and is written by exactly one function (RecomputeSnapshot).
type InventorySnapshot struct {
	ProductID    string
	Pallets      int
	Packs        int
	Units        int
	ReorderLevel int
	LastUpdated  time.Time
}

// BelowReorder reports whether pack stock has fallen to or under the
// product's reorder level.
func (s *InventorySnapshot) BelowReorder() bool {
	return s.ReorderLevel > 0 && s.Packs <= s.ReorderLevel
}

// =============================================================================
// PRODUCT - Catalog data consumed by the engine
// =============================================================================

// Product carries the catalog fields the engine needs. The catalog itself
// is an external collaborator; these rows are the engine's local copy.
type Product struct {
	ID             string
	Name           string
	CostPerPack    decimal.Decimal
	PacksPerPallet int
	ReorderLevel   int
	CreatedAt      time.Time
}

// =============================================================================
// ACTOR - Identity context for mutating calls
// =============================================================================

// Actor identifies who performed a mutation. Authentication and role
// enforcement happen upstream; the engine records the context it is given.
type Actor struct {
	ID   string
	Role string
}

// ExpiryAlert flags a batch that is approaching its expiry date while
// still holding stock. Alerts are returned for external notification;
// generating them mutates nothing.
type ExpiryAlert struct {
	BatchID     string
	ProductID   string
	BatchNumber string
	Remaining   int
	UnitType    UnitType
	ExpiryDate  time.Time
	DaysLeft    int
}
