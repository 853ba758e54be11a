/*
opening.go - Daily opening-stock reconciliation workflow

PURPOSE:
  Staff submit a manual count per product per day. The service computes
  what the ledger says opening stock should have been, stores the variance
  (and its value at cost), and runs the approval state machine:

    entry:        PENDING -> {APPROVED, REJECTED}   (terminal)
    edit request: PENDING -> {APPROVED, REJECTED}   (attaches to a
                  terminal entry; at most one PENDING per entry)

SYSTEM STOCK:
  systemOpeningStock(product, date, unit) =
      totalPurchasedBefore(date, status in {ACTIVE, DEPLETED})
    - totalSoldBefore(date)
  This is the same "stock as of date" computation forensic reconciliation
  uses; ApproveEdit recomputes it freshly because ledger history may have
  changed since the original submission.

EDIT WINDOW:
  How long a terminal entry stays editable is a policy knob (EditWindow,
  zero means no limit). Past the window, entries are permanently immutable.
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SERVICE
// =============================================================================

// OpeningStockService owns the reconciliation workflow.
type OpeningStockService struct {
	Store  TxStore
	Clock  Clock
	Audit  *Recorder
	Logger zerolog.Logger

	// EditWindow limits how long after its stock date a terminal entry
	// accepts edit requests. Zero means no limit.
	EditWindow time.Duration
}

func NewOpeningStockService(store TxStore, clock Clock, audit *Recorder, logger zerolog.Logger) *OpeningStockService {
	return &OpeningStockService{Store: store, Clock: clock, Audit: audit, Logger: logger}
}

// OpeningStockInput is one product's manual count for a day.
type OpeningStockInput struct {
	ProductID string
	StockDate time.Time
	Manual    ManualCounts
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit records a manual count, computes system stock and variance, and
// stores the entry PENDING. Duplicate (product, date) submissions fail
// with a ConflictError.
func (svc *OpeningStockService) Submit(ctx context.Context, actor Actor, input OpeningStockInput) (*DailyOpeningStock, error) {
	if input.ProductID == "" {
		return nil, &ValidationError{Field: "product_id", Message: "required"}
	}
	if input.StockDate.IsZero() {
		return nil, &ValidationError{Field: "stock_date", Message: "required"}
	}
	if input.Manual.Pallets < 0 || input.Manual.Packs < 0 || input.Manual.Units < 0 {
		return nil, &ValidationError{Field: "manual_counts", Message: "must be non-negative"}
	}

	product, err := svc.Store.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, &NotFoundError{Kind: "product", ID: input.ProductID}
	}

	stockDate := DateOnly(input.StockDate)
	now := svc.Clock.Now()

	var entry DailyOpeningStock
	err = svc.Store.WithTx(ctx, func(s Store) error {
		existing, err := s.GetOpeningStockByProductDate(ctx, input.ProductID, stockDate)
		if err != nil {
			return err
		}
		if existing != nil {
			return &ConflictError{Message: fmt.Sprintf(
				"opening stock for product %s on %s already submitted",
				input.ProductID, stockDate.Format("2006-01-02"))}
		}

		system, err := computeSystemStock(ctx, s, input.ProductID, stockDate)
		if err != nil {
			return err
		}

		entry = DailyOpeningStock{
			ID:          uuid.NewString(),
			ProductID:   input.ProductID,
			StockDate:   stockDate,
			Status:      StatusPending,
			SubmittedBy: actor.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		applyCounts(&entry, input.Manual, system, product.CostPerPack)

		return s.InsertOpeningStock(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	svc.Audit.Record(ctx, AuditEntry{
		ID:       uuid.NewString(),
		Entity:   "opening_stock",
		EntityID: entry.ID,
		Action:   AuditOpeningSubmitted,
		Actor:    actor.ID,
		NewValues: map[string]any{
			"product_id":     entry.ProductID,
			"stock_date":     entry.StockDate.Format("2006-01-02"),
			"manual_packs":   entry.ManualPacks,
			"system_packs":   entry.SystemPacks,
			"variance_packs": entry.VariancePacks,
		},
	})

	return &entry, nil
}

// BulkSubmit submits many counts for one date. Each entry succeeds,
// skips (already submitted), or errors independently; one failure never
// aborts the batch.
func (svc *OpeningStockService) BulkSubmit(ctx context.Context, actor Actor, stockDate time.Time, inputs []OpeningStockInput) []BulkEntryResult {
	results := make([]BulkEntryResult, 0, len(inputs))
	for _, in := range inputs {
		in.StockDate = stockDate
		entry, err := svc.Submit(ctx, actor, in)
		switch {
		case err == nil:
			results = append(results, BulkEntryResult{ProductID: in.ProductID, Outcome: BulkSubmitted, EntryID: entry.ID})
		case IsConflict(err):
			results = append(results, BulkEntryResult{ProductID: in.ProductID, Outcome: BulkSkippedDuplicate, Error: err.Error()})
		default:
			results = append(results, BulkEntryResult{ProductID: in.ProductID, Outcome: BulkErrored, Error: err.Error()})
		}
	}
	return results
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

// Approve moves a PENDING entry to APPROVED. Role enforcement happens
// upstream; the approver is recorded here.
func (svc *OpeningStockService) Approve(ctx context.Context, actor Actor, entryID string) (*DailyOpeningStock, error) {
	return svc.decide(ctx, actor, entryID, StatusApproved, "")
}

// Reject moves a PENDING entry to REJECTED with a reason.
func (svc *OpeningStockService) Reject(ctx context.Context, actor Actor, entryID, reason string) (*DailyOpeningStock, error) {
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "required when rejecting"}
	}
	return svc.decide(ctx, actor, entryID, StatusRejected, reason)
}

func (svc *OpeningStockService) decide(ctx context.Context, actor Actor, entryID string, to EntryStatus, reason string) (*DailyOpeningStock, error) {
	now := svc.Clock.Now()

	var entry DailyOpeningStock
	err := svc.Store.WithTx(ctx, func(s Store) error {
		current, err := s.GetOpeningStock(ctx, entryID)
		if err != nil {
			return err
		}
		if current == nil {
			return &NotFoundError{Kind: "opening stock entry", ID: entryID}
		}
		if current.Status != StatusPending {
			return &ConflictError{Message: fmt.Sprintf("entry %s is %s, only PENDING entries can be decided", entryID, current.Status)}
		}

		current.Status = to
		current.ApprovedBy = actor.ID
		current.ApprovedAt = &now
		current.RejectionReason = reason
		current.UpdatedAt = now

		entry = *current
		return s.UpdateOpeningStock(ctx, *current)
	})
	if err != nil {
		return nil, err
	}

	action := AuditOpeningApproved
	if to == StatusRejected {
		action = AuditOpeningRejected
	}
	svc.Audit.Record(ctx, AuditEntry{
		ID:        uuid.NewString(),
		Entity:    "opening_stock",
		EntityID:  entry.ID,
		Action:    action,
		Actor:     actor.ID,
		NewValues: map[string]any{"status": string(to)},
		Metadata:  map[string]any{"reason": reason},
	})

	return &entry, nil
}

// =============================================================================
// EDIT REQUESTS
// =============================================================================

// RequestEdit opens an edit request against a terminal entry. Fails with
// ConflictError when the entry is still PENDING or already has an
// outstanding request, and with ValidationError when the edit window has
// closed.
func (svc *OpeningStockService) RequestEdit(ctx context.Context, actor Actor, entryID string, counts ManualCounts, reason string) (*EditRequest, error) {
	if counts.Pallets < 0 || counts.Packs < 0 || counts.Units < 0 {
		return nil, &ValidationError{Field: "manual_counts", Message: "must be non-negative"}
	}

	now := svc.Clock.Now()

	var req EditRequest
	err := svc.Store.WithTx(ctx, func(s Store) error {
		entry, err := s.GetOpeningStock(ctx, entryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return &NotFoundError{Kind: "opening stock entry", ID: entryID}
		}
		if !entry.Status.Terminal() {
			return &ConflictError{Message: fmt.Sprintf("entry %s is still PENDING, decide it before requesting edits", entryID)}
		}
		if svc.EditWindow > 0 && now.Sub(entry.StockDate) > svc.EditWindow {
			return &ValidationError{Field: "entry_id", Message: fmt.Sprintf(
				"entry for %s is outside the edit window and is immutable", entry.StockDate.Format("2006-01-02"))}
		}

		pending, err := s.HasPendingEditRequest(ctx, entryID)
		if err != nil {
			return err
		}
		if pending {
			return &ConflictError{Message: fmt.Sprintf("entry %s already has a pending edit request", entryID)}
		}

		req = EditRequest{
			ID:               uuid.NewString(),
			EntryID:          entryID,
			NewManualPallets: counts.Pallets,
			NewManualPacks:   counts.Packs,
			NewManualUnits:   counts.Units,
			Reason:           reason,
			Status:           StatusPending,
			RequestedBy:      actor.ID,
			CreatedAt:        now,
		}
		return s.InsertEditRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	svc.Audit.Record(ctx, AuditEntry{
		ID:       uuid.NewString(),
		Entity:   "edit_request",
		EntityID: req.ID,
		Action:   AuditEditRequested,
		Actor:    actor.ID,
		NewValues: map[string]any{
			"entry_id":  req.EntryID,
			"new_packs": req.NewManualPacks,
		},
		Metadata: map[string]any{"reason": reason},
	})

	return &req, nil
}

// ApproveEdit applies an edit request in one transaction: system stock is
// recomputed freshly (ledger history may have changed since submission),
// the parent entry's manual and variance fields are overwritten, and the
// request is marked APPROVED.
func (svc *OpeningStockService) ApproveEdit(ctx context.Context, actor Actor, requestID string) (*DailyOpeningStock, error) {
	now := svc.Clock.Now()

	var entry DailyOpeningStock
	var req EditRequest
	err := svc.Store.WithTx(ctx, func(s Store) error {
		current, err := s.GetEditRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current == nil {
			return &NotFoundError{Kind: "edit request", ID: requestID}
		}
		if current.Status != StatusPending {
			return &ConflictError{Message: fmt.Sprintf("edit request %s is %s, only PENDING requests can be decided", requestID, current.Status)}
		}

		parent, err := s.GetOpeningStock(ctx, current.EntryID)
		if err != nil {
			return err
		}
		if parent == nil {
			return &NotFoundError{Kind: "opening stock entry", ID: current.EntryID}
		}

		product, err := s.GetProduct(ctx, parent.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return &NotFoundError{Kind: "product", ID: parent.ProductID}
		}

		system, err := computeSystemStock(ctx, s, parent.ProductID, parent.StockDate)
		if err != nil {
			return err
		}

		applyCounts(parent, ManualCounts{
			Pallets: current.NewManualPallets,
			Packs:   current.NewManualPacks,
			Units:   current.NewManualUnits,
		}, system, product.CostPerPack)
		parent.UpdatedAt = now

		if err := s.UpdateOpeningStock(ctx, *parent); err != nil {
			return err
		}

		current.Status = StatusApproved
		current.DecidedBy = actor.ID
		current.DecidedAt = &now
		if err := s.UpdateEditRequest(ctx, *current); err != nil {
			return err
		}

		entry = *parent
		req = *current
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.Audit.Record(ctx, AuditEntry{
		ID:       uuid.NewString(),
		Entity:   "edit_request",
		EntityID: req.ID,
		Action:   AuditEditApproved,
		Actor:    actor.ID,
		NewValues: map[string]any{
			"entry_id":       entry.ID,
			"manual_packs":   entry.ManualPacks,
			"variance_packs": entry.VariancePacks,
		},
	})

	return &entry, nil
}

// RejectEdit closes an edit request without touching the parent entry.
func (svc *OpeningStockService) RejectEdit(ctx context.Context, actor Actor, requestID, reason string) (*EditRequest, error) {
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "required when rejecting"}
	}

	now := svc.Clock.Now()

	var req EditRequest
	err := svc.Store.WithTx(ctx, func(s Store) error {
		current, err := s.GetEditRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current == nil {
			return &NotFoundError{Kind: "edit request", ID: requestID}
		}
		if current.Status != StatusPending {
			return &ConflictError{Message: fmt.Sprintf("edit request %s is %s, only PENDING requests can be decided", requestID, current.Status)}
		}

		current.Status = StatusRejected
		current.DecidedBy = actor.ID
		current.DecidedAt = &now
		current.RejectionReason = reason

		req = *current
		return s.UpdateEditRequest(ctx, *current)
	})
	if err != nil {
		return nil, err
	}

	svc.Audit.Record(ctx, AuditEntry{
		ID:        uuid.NewString(),
		Entity:    "edit_request",
		EntityID:  req.ID,
		Action:    AuditEditRejected,
		Actor:     actor.ID,
		NewValues: map[string]any{"status": string(StatusRejected)},
		Metadata:  map[string]any{"reason": reason},
	})

	return &req, nil
}

// =============================================================================
// SYSTEM STOCK COMPUTATION
// =============================================================================

// systemStock holds per-unit system-computed opening stock.
type systemStock struct {
	Pallets int
	Packs   int
	Units   int
}

// computeSystemStock derives opening stock for the start of stockDate from
// ledger history: purchased before the date minus sold before the date,
// per unit type.
func computeSystemStock(ctx context.Context, s Store, productID string, stockDate time.Time) (systemStock, error) {
	var out systemStock
	for _, unit := range []UnitType{UnitPallets, UnitPacks, UnitUnits} {
		purchased, err := s.TotalPurchasedBefore(ctx, productID, unit, stockDate)
		if err != nil {
			return out, err
		}
		sold, err := s.TotalSoldBefore(ctx, productID, unit, stockDate)
		if err != nil {
			return out, err
		}
		switch unit {
		case UnitPallets:
			out.Pallets = purchased - sold
		case UnitPacks:
			out.Packs = purchased - sold
		case UnitUnits:
			out.Units = purchased - sold
		}
	}
	return out, nil
}

// applyCounts overwrites an entry's manual, system and variance fields.
// The single place variance arithmetic lives.
func applyCounts(entry *DailyOpeningStock, manual ManualCounts, system systemStock, costPerPack decimal.Decimal) {
	entry.ManualPallets = manual.Pallets
	entry.ManualPacks = manual.Packs
	entry.ManualUnits = manual.Units

	entry.SystemPallets = system.Pallets
	entry.SystemPacks = system.Packs
	entry.SystemUnits = system.Units

	entry.VariancePallets = manual.Pallets - system.Pallets
	entry.VariancePacks = manual.Packs - system.Packs
	entry.VarianceUnits = manual.Units - system.Units

	entry.VarianceValue = decimal.NewFromInt(int64(entry.VariancePacks)).Mul(costPerPack)
}
