/*
ledger.go - The batch ledger: source of truth for lot quantities

PURPOSE:
  Batches are the authoritative record of stock. Every batch tracks its
  original received quantity, how much has been sold, and how much
  remains. The aggregate snapshot is derived from this ledger, never the
  other way around.

CRITICAL INVARIANT:
  quantity == quantitySold + quantityRemaining, at every observed state.
  ApplyAllocation re-asserts it before every write. A violation aborts the
  enclosing transaction as an InvariantError; treating it as a warning
  would let sale records and batch allocations silently drift apart.

SEE ALSO:
  - allocator.go:  drives ApplyAllocation during FEFO sales
  - lifecycle.go:  the scheduled safety net for status transitions
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// BATCH LEDGER
// =============================================================================

// BatchLedger creates and administratively mutates batches.
type BatchLedger struct {
	Store  TxStore
	Clock  Clock
	Audit  *Recorder
	Logger zerolog.Logger
}

func NewBatchLedger(store TxStore, clock Clock, audit *Recorder, logger zerolog.Logger) *BatchLedger {
	return &BatchLedger{Store: store, Clock: clock, Audit: audit, Logger: logger}
}

// CreateBatchInput describes a purchase receipt.
type CreateBatchInput struct {
	ProductID    string
	BatchNumber  string
	Quantity     int
	UnitType     UnitType
	PurchaseDate time.Time
	ExpiryDate   *time.Time
}

// CreateBatch records a received lot. Initial state: ACTIVE, sold=0,
// remaining=quantity.
func (l *BatchLedger) CreateBatch(ctx context.Context, actor Actor, input CreateBatchInput) (*Batch, error) {
	if input.Quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if !input.UnitType.Valid() {
		return nil, &ValidationError{Field: "unit_type", Message: fmt.Sprintf("unknown unit type %q", input.UnitType)}
	}
	if input.PurchaseDate.IsZero() {
		return nil, &ValidationError{Field: "purchase_date", Message: "required"}
	}

	product, err := l.Store.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &NotFoundError{Kind: "product", ID: input.ProductID}
	}

	batch := Batch{
		ID:                uuid.NewString(),
		ProductID:         input.ProductID,
		BatchNumber:       input.BatchNumber,
		Quantity:          input.Quantity,
		UnitType:          input.UnitType,
		QuantitySold:      0,
		QuantityRemaining: input.Quantity,
		PurchaseDate:      input.PurchaseDate,
		ExpiryDate:        input.ExpiryDate,
		Status:            BatchActive,
		CreatedAt:         l.Clock.Now(),
	}

	if err := l.Store.InsertBatch(ctx, batch); err != nil {
		return nil, err
	}

	l.Audit.Record(ctx, AuditEntry{
		ID:       uuid.NewString(),
		Entity:   "batch",
		EntityID: batch.ID,
		Action:   AuditBatchCreated,
		Actor:    actor.ID,
		NewValues: map[string]any{
			"product_id": batch.ProductID,
			"quantity":   batch.Quantity,
			"unit_type":  string(batch.UnitType),
		},
	})

	return &batch, nil
}

// DeleteBatch removes a batch administratively. It fails with a
// ConflictError if any sale allocation references the batch; history
// referenced by sales is immutable.
func (l *BatchLedger) DeleteBatch(ctx context.Context, actor Actor, batchID string) error {
	err := l.Store.WithTx(ctx, func(s Store) error {
		batch, err := s.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return &NotFoundError{Kind: "batch", ID: batchID}
		}

		refs, err := s.CountAllocationsForBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return &ConflictError{Message: fmt.Sprintf("batch %s is referenced by %d sale allocation(s)", batchID, refs)}
		}

		return s.DeleteBatch(ctx, batchID)
	})
	if err != nil {
		return err
	}

	l.Audit.Record(ctx, AuditEntry{
		ID:       uuid.NewString(),
		Entity:   "batch",
		EntityID: batchID,
		Action:   AuditBatchDeleted,
		Actor:    actor.ID,
	})
	return nil
}

// =============================================================================
// ALLOCATION ARITHMETIC
// =============================================================================

// ApplyAllocation consumes qty from the batch: remaining decreases, sold
// increases, status re-derives (DEPLETED when remaining hits zero). The
// ledger invariant is re-asserted before the write; a violation returns an
// *InvariantError and the caller's transaction must abort.
//
// ApplyAllocation runs against the Store view it is given so the allocator
// can call it inside WithTx.
func ApplyAllocation(ctx context.Context, s Store, batch *Batch, qty int) error {
	if qty <= 0 {
		return &ValidationError{Field: "quantity", Message: "allocation must be positive"}
	}
	if qty > batch.QuantityRemaining {
		return &InsufficientStockError{
			ProductID: batch.ProductID,
			Requested: qty,
			Available: batch.QuantityRemaining,
		}
	}

	batch.QuantityRemaining -= qty
	batch.QuantitySold += qty
	if batch.QuantityRemaining == 0 && batch.Status == BatchActive {
		batch.Status = BatchDepleted
	}

	if err := batch.CheckInvariant(); err != nil {
		return err
	}

	return s.UpdateBatch(ctx, *batch)
}
