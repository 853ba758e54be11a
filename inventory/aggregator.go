/*
aggregator.go - Derived per-product inventory snapshot

PURPOSE:
  The snapshot is a cache: sums of QuantityRemaining over ACTIVE batches
  grouped by unit type, plus the product's reorder level. It is never
  authoritative and always recomputable from the ledger.

SINGLE WRITER:
  RecomputeSnapshot is the only function that writes snapshot rows. It is
  called from two triggers (inline after an allocation, and the periodic
  self-healing sweep) but there is exactly one code path, so the two
  triggers cannot diverge.

FAILURE MODE:
  A failed snapshot write is not data loss; the sweep retries on the next
  tick. The Aggregator logs and moves on.
*/
package inventory

import (
	"context"

	"github.com/rs/zerolog"
)

// RecomputeSnapshot derives and overwrites the product's snapshot row from
// the batch ledger. Idempotent; safe against any Store view, including a
// transactional one.
func RecomputeSnapshot(ctx context.Context, s Store, clock Clock, productID string) (*InventorySnapshot, error) {
	sums, err := s.SumRemainingByUnit(ctx, productID)
	if err != nil {
		return nil, err
	}

	reorder := 0
	if product, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	} else if product != nil {
		reorder = product.ReorderLevel
	}

	snapshot := InventorySnapshot{
		ProductID:    productID,
		Pallets:      sums[UnitPallets],
		Packs:        sums[UnitPacks],
		Units:        sums[UnitUnits],
		ReorderLevel: reorder,
		LastUpdated:  clock.Now(),
	}

	if err := s.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// =============================================================================
// AGGREGATOR - Sweep-facing wrapper
// =============================================================================

// Aggregator runs the periodic self-healing recompute over every product
// that has batches.
type Aggregator struct {
	Store  TxStore
	Clock  Clock
	Logger zerolog.Logger
}

func NewAggregator(store TxStore, clock Clock, logger zerolog.Logger) *Aggregator {
	return &Aggregator{Store: store, Clock: clock, Logger: logger}
}

// Recompute refreshes one product's snapshot.
func (ag *Aggregator) Recompute(ctx context.Context, productID string) (*InventorySnapshot, error) {
	return RecomputeSnapshot(ctx, ag.Store, ag.Clock, productID)
}

// RecomputeAll sweeps every product with batches. Per-product failures are
// logged and do not stop the sweep; the next tick retries.
func (ag *Aggregator) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := ag.Store.ListProductIDsWithBatches(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, id := range ids {
		if _, err := RecomputeSnapshot(ctx, ag.Store, ag.Clock, id); err != nil {
			ag.Logger.Warn().Err(err).Str("product_id", id).
				Msg("snapshot recompute failed, will retry next sweep")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// GetSnapshot returns the cached snapshot, computing it on first read if
// the product has never been snapshotted.
func (ag *Aggregator) GetSnapshot(ctx context.Context, productID string) (*InventorySnapshot, error) {
	snap, err := ag.Store.GetSnapshot(ctx, productID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		product, err := ag.Store.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, &NotFoundError{Kind: "product", ID: productID}
		}
		return RecomputeSnapshot(ctx, ag.Store, ag.Clock, productID)
	}
	return snap, nil
}
