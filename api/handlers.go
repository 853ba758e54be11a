/*
handlers.go - HTTP API handlers for the inventory engine

PURPOSE:
  Exposes the batch inventory engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Products:
    GET    /api/products               List products
    POST   /api/products               Create/update product
    GET    /api/products/{id}          Get product
    GET    /api/products/{id}/batches  List the product's batches
    GET    /api/products/{id}/snapshot Get stock snapshot

  Batches:
    POST   /api/batches                Record a purchase receipt
    GET    /api/batches/{id}           Get batch
    DELETE /api/batches/{id}           Delete unreferenced batch

  Sales:
    POST   /api/sales                  Record a sale (FEFO allocation)
    GET    /api/sales/{id}             Get sale with allocations

  Opening stock:
    POST   /api/opening-stock                    Submit a manual count
    POST   /api/opening-stock/bulk               Bulk submit for one date
    GET    /api/opening-stock?date=YYYY-MM-DD    List entries for a date
    POST   /api/opening-stock/{id}/approve       Approve entry
    POST   /api/opening-stock/{id}/reject        Reject entry
    POST   /api/opening-stock/{id}/edit-requests Request an edit

  Edit requests:
    POST   /api/edit-requests/{id}/approve
    POST   /api/edit-requests/{id}/reject

  Admin:
    POST   /api/admin/sweep            Run the lifecycle sweep now
    POST   /api/admin/recompute        Recompute all snapshots now
    GET    /api/audit-logs             Query the audit trail

ACTOR CONTEXT:
  Mutating endpoints read X-Actor-ID and X-Actor-Role headers. Real
  authentication sits in front of this service; the engine records
  whatever identity the gateway forwards.

ERROR HANDLING:
  Domain errors map onto HTTP status via their taxonomy:
  - 400: validation
  - 404: not found
  - 409: conflict, insufficient stock
  - 500: everything else, including invariant violations

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        *sqlite.Store
	Ledger       *inventory.BatchLedger
	Allocator    *inventory.Allocator
	Aggregator   *inventory.Aggregator
	Lifecycle    *inventory.LifecycleManager
	OpeningStock *inventory.OpeningStockService
	Audit        *inventory.Recorder
	Clock        inventory.Clock
	Logger       zerolog.Logger
}

// NewHandler wires the domain services over one store.
func NewHandler(store *sqlite.Store, clock inventory.Clock, logger zerolog.Logger) *Handler {
	audit := inventory.NewRecorder(store, clock, logger)
	return &Handler{
		Store:        store,
		Ledger:       inventory.NewBatchLedger(store, clock, audit, logger),
		Allocator:    inventory.NewAllocator(store, clock, audit, logger),
		Aggregator:   inventory.NewAggregator(store, clock, logger),
		Lifecycle:    inventory.NewLifecycleManager(store, clock, audit, logger),
		OpeningStock: inventory.NewOpeningStockService(store, clock, audit, logger),
		Audit:        audit,
		Clock:        clock,
		Logger:       logger,
	}
}

// actorFrom extracts the forwarded identity. Unauthenticated callers are
// recorded as anonymous staff.
func actorFrom(r *http.Request) inventory.Actor {
	actor := inventory.Actor{
		ID:   r.Header.Get("X-Actor-ID"),
		Role: r.Header.Get("X-Actor-Role"),
	}
	if actor.ID == "" {
		actor.ID = "anonymous"
	}
	if actor.Role == "" {
		actor.Role = "staff"
	}
	return actor
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns all products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = ProductDTO{
			ID:             p.ID,
			Name:           p.Name,
			CostPerPack:    p.CostPerPack.String(),
			PacksPerPallet: p.PacksPerPallet,
			ReorderLevel:   p.ReorderLevel,
			CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct creates or updates a product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	cost := decimal.Zero
	if req.CostPerPack != "" {
		var err error
		cost, err = decimal.NewFromString(req.CostPerPack)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cost_per_pack must be a decimal string", err)
			return
		}
	}

	product := inventory.Product{
		ID:             req.ID,
		Name:           req.Name,
		CostPerPack:    cost,
		PacksPerPallet: req.PacksPerPallet,
		ReorderLevel:   req.ReorderLevel,
		CreatedAt:      h.Clock.Now(),
	}
	if err := h.Store.SaveProduct(r.Context(), product); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save product", err)
		return
	}

	writeJSON(w, http.StatusCreated, ProductDTO{
		ID:             product.ID,
		Name:           product.Name,
		CostPerPack:    product.CostPerPack.String(),
		PacksPerPallet: product.PacksPerPallet,
		ReorderLevel:   product.ReorderLevel,
		CreatedAt:      product.CreatedAt.Format(time.RFC3339),
	})
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, ProductDTO{
		ID:             product.ID,
		Name:           product.Name,
		CostPerPack:    product.CostPerPack.String(),
		PacksPerPallet: product.PacksPerPallet,
		ReorderLevel:   product.ReorderLevel,
		CreatedAt:      product.CreatedAt.Format(time.RFC3339),
	})
}

// ListProductBatches returns all batches for a product, oldest first.
func (h *Handler) ListProductBatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batches, err := h.Store.ListBatchesByProduct(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list batches", err)
		return
	}

	dtos := make([]BatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = toBatchDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProductSnapshot returns the cached stock snapshot, computing it on
// first read.
func (h *Handler) GetProductSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := h.Aggregator.GetSnapshot(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(*snap))
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

// CreateBatch records a purchase receipt.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	purchaseDate, err := time.Parse("2006-01-02", req.PurchaseDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "purchase_date must be YYYY-MM-DD", err)
		return
	}
	var expiryDate *time.Time
	if req.ExpiryDate != nil && *req.ExpiryDate != "" {
		t, err := time.Parse("2006-01-02", *req.ExpiryDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expiry_date must be YYYY-MM-DD", err)
			return
		}
		expiryDate = &t
	}

	batch, err := h.Ledger.CreateBatch(r.Context(), actorFrom(r), inventory.CreateBatchInput{
		ProductID:    req.ProductID,
		BatchNumber:  req.BatchNumber,
		Quantity:     req.Quantity,
		UnitType:     inventory.UnitType(req.UnitType),
		PurchaseDate: purchaseDate,
		ExpiryDate:   expiryDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(*batch))
}

// GetBatch returns a single batch.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := h.Store.GetBatch(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get batch", err)
		return
	}
	if batch == nil {
		writeError(w, http.StatusNotFound, "Batch not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(*batch))
}

// DeleteBatch removes a batch with no sale allocations.
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Ledger.DeleteBatch(r.Context(), actorFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// SubmitSale records a sale, allocating FEFO across open batches.
func (h *Handler) SubmitSale(w http.ResponseWriter, r *http.Request) {
	var req SubmitSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	result, err := h.Allocator.SubmitSale(r.Context(), actorFrom(r), inventory.SaleInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitType:  inventory.UnitType(req.UnitType),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleResultDTO(result))
}

// GetSale returns a sale with its batch allocations.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.Allocator.GetSale(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleResultDTO(result))
}

func toSaleResultDTO(result *inventory.SaleResult) SaleResultDTO {
	allocs := make([]AllocationDTO, len(result.Allocations))
	for i, a := range result.Allocations {
		allocs[i] = AllocationDTO{BatchID: a.BatchID, QuantityAllocated: a.QuantityAllocated}
	}
	return SaleResultDTO{
		SaleID:        result.Sale.ID,
		ProductID:     result.Sale.ProductID,
		Quantity:      result.Sale.Quantity,
		UnitType:      string(result.Sale.UnitType),
		ReceiptNumber: result.Sale.ReceiptNumber,
		Allocations:   allocs,
		CreatedAt:     result.Sale.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// OPENING STOCK HANDLERS
// =============================================================================

// SubmitOpeningStock records one product's manual count for a day.
func (h *Handler) SubmitOpeningStock(w http.ResponseWriter, r *http.Request) {
	var req SubmitOpeningStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	stockDate, err := time.Parse("2006-01-02", req.StockDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "stock_date must be YYYY-MM-DD", err)
		return
	}

	entry, err := h.OpeningStock.Submit(r.Context(), actorFrom(r), inventory.OpeningStockInput{
		ProductID: req.ProductID,
		StockDate: stockDate,
		Manual: inventory.ManualCounts{
			Pallets: req.Manual.Pallets,
			Packs:   req.Manual.Packs,
			Units:   req.Manual.Units,
		},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOpeningStockDTO(*entry))
}

// BulkSubmitOpeningStock submits many products' counts for one date.
// Per-entry failures never abort the batch; the response reports each
// outcome.
func (h *Handler) BulkSubmitOpeningStock(w http.ResponseWriter, r *http.Request) {
	var req BulkOpeningStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	stockDate, err := time.Parse("2006-01-02", req.StockDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "stock_date must be YYYY-MM-DD", err)
		return
	}

	inputs := make([]inventory.OpeningStockInput, len(req.Entries))
	for i, e := range req.Entries {
		inputs[i] = inventory.OpeningStockInput{
			ProductID: e.ProductID,
			Manual: inventory.ManualCounts{
				Pallets: e.Manual.Pallets,
				Packs:   e.Manual.Packs,
				Units:   e.Manual.Units,
			},
		}
	}

	results := h.OpeningStock.BulkSubmit(r.Context(), actorFrom(r), stockDate, inputs)

	dtos := make([]BulkEntryResultDTO, len(results))
	for i, res := range results {
		dtos[i] = BulkEntryResultDTO{
			ProductID: res.ProductID,
			Outcome:   string(res.Outcome),
			EntryID:   res.EntryID,
			Error:     res.Error,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListOpeningStock returns all entries for a date.
func (h *Handler) ListOpeningStock(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required", nil)
		return
	}
	stockDate, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", err)
		return
	}

	entries, err := h.Store.ListOpeningStockByDate(r.Context(), stockDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list opening stock", err)
		return
	}

	dtos := make([]OpeningStockDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toOpeningStockDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveOpeningStock approves a PENDING entry.
func (h *Handler) ApproveOpeningStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.OpeningStock.Approve(r.Context(), actorFrom(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOpeningStockDTO(*entry))
}

// RejectOpeningStock rejects a PENDING entry with a reason.
func (h *Handler) RejectOpeningStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	entry, err := h.OpeningStock.Reject(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOpeningStockDTO(*entry))
}

// RequestEdit opens an edit request against a decided entry.
func (h *Handler) RequestEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req EditRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	editReq, err := h.OpeningStock.RequestEdit(r.Context(), actorFrom(r), id, inventory.ManualCounts{
		Pallets: req.Manual.Pallets,
		Packs:   req.Manual.Packs,
		Units:   req.Manual.Units,
	}, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEditRequestDTO(*editReq))
}

// ApproveEdit applies an edit request to its parent entry.
func (h *Handler) ApproveEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.OpeningStock.ApproveEdit(r.Context(), actorFrom(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOpeningStockDTO(*entry))
}

// RejectEdit closes an edit request without touching the parent entry.
func (h *Handler) RejectEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	editReq, err := h.OpeningStock.RejectEdit(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEditRequestDTO(*editReq))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunSweep triggers an immediate lifecycle sweep.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Lifecycle.RunSweep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}

	alerts := make([]ExpiryAlertDTO, len(result.Alerts))
	for i, a := range result.Alerts {
		alerts[i] = ExpiryAlertDTO{
			BatchID:     a.BatchID,
			ProductID:   a.ProductID,
			BatchNumber: a.BatchNumber,
			Remaining:   a.Remaining,
			UnitType:    string(a.UnitType),
			ExpiryDate:  a.ExpiryDate.Format("2006-01-02"),
			DaysLeft:    a.DaysLeft,
		}
	}
	writeJSON(w, http.StatusOK, SweepResultDTO{
		ExpiredCount:  result.ExpiredCount,
		DepletedCount: result.DepletedCount,
		Alerts:        alerts,
		RanAt:         result.RanAt.Format(time.RFC3339),
	})
}

// RecomputeSnapshots forces a full snapshot recompute.
func (h *Handler) RecomputeSnapshots(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	refreshed, err := h.Aggregator.RecomputeAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Recompute failed", err)
		return
	}

	h.Audit.Record(r.Context(), inventory.AuditEntry{
		ID:       uuid.NewString(),
		Entity:   "snapshot",
		EntityID: "all",
		Action:   inventory.AuditSnapshotRecomputed,
		Actor:    actor.ID,
		Metadata: map[string]any{"refreshed": refreshed},
	})
	writeJSON(w, http.StatusOK, map[string]int{"refreshed": refreshed})
}

// QueryAuditLogs returns audit entries matching the query, newest first.
func (h *Handler) QueryAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := inventory.AuditFilter{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		Actor:    q.Get("actor"),
		Action:   inventory.AuditAction(q.Get("action")),
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC3339", err)
			return
		}
		filter.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC3339", err)
			return
		}
		filter.To = &t
	}

	entries, err := h.Store.QueryAudit(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:        e.ID,
			Entity:    e.Entity,
			EntityID:  e.EntityID,
			Action:    string(e.Action),
			Actor:     e.Actor,
			OldValues: e.OldValues,
			NewValues: e.NewValues,
			Metadata:  e.Metadata,
			Timestamp: e.Timestamp.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Reset failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, inventory.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, inventory.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "Insufficient stock", err)
	case errors.Is(err, inventory.ErrConflict):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
