/*
allocator.go - First-Expired-First-Out sale allocation

PURPOSE:
  Consumes a sale quantity against the product's open batches, soonest
  expiry first, inside one store transaction. The sale row, its allocation
  rows, the batch updates, and the inline snapshot recompute either all
  commit or none do: a crash mid-allocation leaves zero partial rows.

ORDERING:
  ACTIVE batches with remaining stock, expiry date ascending with NULLs
  last, then purchase date ascending, then batch id for determinism. The
  store's ListOpenBatchesFEFO owns this ordering.

POLICY:
  Only PACKS sales go through FEFO allocation. PALLETS and UNITS batches
  are received, swept and aggregated but not sellable here. Shortfalls
  reject the sale outright; AllowPartial exists as the configurable policy
  point and defaults to off (no implicit backorder).
*/
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// ALLOCATOR
// =============================================================================

// Allocator turns sale requests into batch allocations.
type Allocator struct {
	Store  TxStore
	Clock  Clock
	Audit  *Recorder
	Logger zerolog.Logger

	// AllowPartial, when set, records whatever could be allocated instead
	// of rejecting a short sale. Default false: reject outright.
	AllowPartial bool
}

func NewAllocator(store TxStore, clock Clock, audit *Recorder, logger zerolog.Logger) *Allocator {
	return &Allocator{Store: store, Clock: clock, Audit: audit, Logger: logger}
}

// SaleInput describes a sale request.
type SaleInput struct {
	ProductID string
	Quantity  int
	UnitType  UnitType
}

// SubmitSale allocates the requested quantity FEFO and records the sale.
// Returns InsufficientStockError (and commits nothing) when open batches
// cannot cover the request.
func (a *Allocator) SubmitSale(ctx context.Context, actor Actor, input SaleInput) (*SaleResult, error) {
	if input.Quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if input.UnitType != UnitPacks {
		return nil, &ValidationError{Field: "unit_type", Message: "only PACKS sales are allocated FEFO"}
	}

	product, err := a.Store.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &NotFoundError{Kind: "product", ID: input.ProductID}
	}

	now := a.Clock.Now()
	sale := Sale{
		ID:            uuid.NewString(),
		ProductID:     input.ProductID,
		Quantity:      input.Quantity,
		UnitType:      input.UnitType,
		ReceiptNumber: fmt.Sprintf("RCP-%s", uuid.NewString()[:8]),
		CreatedAt:     now,
	}

	var touched []Batch // for post-commit audit entries
	var allocations []BatchAllocation

	err = a.Store.WithTx(ctx, func(s Store) error {
		batches, err := s.ListOpenBatchesFEFO(ctx, input.ProductID, input.UnitType)
		if err != nil {
			return err
		}

		available := 0
		for _, b := range batches {
			available += b.QuantityRemaining
		}
		if available < input.Quantity && !a.AllowPartial {
			return &InsufficientStockError{
				ProductID: input.ProductID,
				Requested: input.Quantity,
				Available: available,
			}
		}

		outstanding := input.Quantity
		for i := range batches {
			if outstanding == 0 {
				break
			}
			batch := batches[i]

			take := outstanding
			if batch.QuantityRemaining < take {
				take = batch.QuantityRemaining
			}

			if err := ApplyAllocation(ctx, s, &batch, take); err != nil {
				return err
			}

			alloc := BatchAllocation{
				ID:                uuid.NewString(),
				SaleID:            sale.ID,
				BatchID:           batch.ID,
				QuantityAllocated: take,
			}
			if err := s.InsertAllocation(ctx, alloc); err != nil {
				return err
			}

			allocations = append(allocations, alloc)
			touched = append(touched, batch)
			outstanding -= take
		}

		// Partial mode records the sale at what was actually allocated.
		if outstanding > 0 {
			sale.Quantity = input.Quantity - outstanding
			if sale.Quantity == 0 {
				return &InsufficientStockError{
					ProductID: input.ProductID,
					Requested: input.Quantity,
					Available: 0,
				}
			}
		}

		if err := s.InsertSale(ctx, sale); err != nil {
			return err
		}

		// Inline snapshot recompute, same transaction, same canonical
		// function the periodic sweep uses.
		_, err = RecomputeSnapshot(ctx, s, a.Clock, input.ProductID)
		return err
	})
	if err != nil {
		if _, ok := err.(*InvariantError); ok {
			a.Logger.Error().Err(err).Str("product_id", input.ProductID).
				Msg("ledger invariant violated during allocation, transaction aborted")
		}
		return nil, err
	}

	for _, b := range touched {
		a.Audit.Record(ctx, AuditEntry{
			ID:       uuid.NewString(),
			Entity:   "batch",
			EntityID: b.ID,
			Action:   AuditBatchAllocated,
			Actor:    actor.ID,
			NewValues: map[string]any{
				"quantity_sold":      b.QuantitySold,
				"quantity_remaining": b.QuantityRemaining,
				"status":             string(b.Status),
			},
			Metadata: map[string]any{"sale_id": sale.ID},
		})
	}
	a.Audit.Record(ctx, AuditEntry{
		ID:       uuid.NewString(),
		Entity:   "sale",
		EntityID: sale.ID,
		Action:   AuditSaleRecorded,
		Actor:    actor.ID,
		NewValues: map[string]any{
			"product_id": sale.ProductID,
			"quantity":   sale.Quantity,
			"batches":    len(allocations),
		},
	})

	return &SaleResult{Sale: sale, Allocations: allocations}, nil
}

// GetSale returns a sale with its allocations.
func (a *Allocator) GetSale(ctx context.Context, saleID string) (*SaleResult, error) {
	sale, err := a.Store.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, &NotFoundError{Kind: "sale", ID: saleID}
	}
	allocs, err := a.Store.ListAllocationsBySale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return &SaleResult{Sale: *sale, Allocations: allocs}, nil
}
