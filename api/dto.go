/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  Dates travel as "2006-01-02" strings, timestamps as RFC3339. Money
  fields are decimal strings, never floats.

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs. DTOs
  are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CostPerPack    string `json:"cost_per_pack"`
	PacksPerPallet int    `json:"packs_per_pallet"`
	ReorderLevel   int    `json:"reorder_level"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// CreateProductRequest is the request to create or update a product.
type CreateProductRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CostPerPack    string `json:"cost_per_pack"`
	PacksPerPallet int    `json:"packs_per_pallet"`
	ReorderLevel   int    `json:"reorder_level"`
}

// =============================================================================
// BATCHES
// =============================================================================

// BatchDTO represents a batch in API responses.
type BatchDTO struct {
	ID                string  `json:"id"`
	ProductID         string  `json:"product_id"`
	BatchNumber       string  `json:"batch_number,omitempty"`
	Quantity          int     `json:"quantity"`
	UnitType          string  `json:"unit_type"`
	QuantitySold      int     `json:"quantity_sold"`
	QuantityRemaining int     `json:"quantity_remaining"`
	PurchaseDate      string  `json:"purchase_date"`
	ExpiryDate        *string `json:"expiry_date,omitempty"`
	Status            string  `json:"status"`
	CreatedAt         string  `json:"created_at,omitempty"`
}

// CreateBatchRequest is the request to record a purchase receipt.
type CreateBatchRequest struct {
	ProductID    string  `json:"product_id"`
	BatchNumber  string  `json:"batch_number"`
	Quantity     int     `json:"quantity"`
	UnitType     string  `json:"unit_type"`
	PurchaseDate string  `json:"purchase_date"` // 2006-01-02
	ExpiryDate   *string `json:"expiry_date,omitempty"`
}

// =============================================================================
// SALES
// =============================================================================

// SubmitSaleRequest is the request to record a sale.
type SubmitSaleRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitType  string `json:"unit_type"`
}

// AllocationDTO is one batch's share of a sale.
type AllocationDTO struct {
	BatchID           string `json:"batch_id"`
	QuantityAllocated int    `json:"quantity_allocated"`
}

// SaleResultDTO is the response to a recorded sale.
type SaleResultDTO struct {
	SaleID        string          `json:"sale_id"`
	ProductID     string          `json:"product_id"`
	Quantity      int             `json:"quantity"`
	UnitType      string          `json:"unit_type"`
	ReceiptNumber string          `json:"receipt_number"`
	Allocations   []AllocationDTO `json:"allocations"`
	CreatedAt     string          `json:"created_at"`
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// SnapshotDTO is the cached per-product stock view.
type SnapshotDTO struct {
	ProductID    string `json:"product_id"`
	Pallets      int    `json:"pallets"`
	Packs        int    `json:"packs"`
	Units        int    `json:"units"`
	ReorderLevel int    `json:"reorder_level"`
	LowStock     bool   `json:"low_stock"`
	LastUpdated  string `json:"last_updated"`
}

// =============================================================================
// OPENING STOCK
// =============================================================================

// ManualCountsDTO carries staff-counted stock per unit type.
type ManualCountsDTO struct {
	Pallets int `json:"pallets"`
	Packs   int `json:"packs"`
	Units   int `json:"units"`
}

// SubmitOpeningStockRequest is one product's manual count for a day.
type SubmitOpeningStockRequest struct {
	ProductID string          `json:"product_id"`
	StockDate string          `json:"stock_date"` // 2006-01-02
	Manual    ManualCountsDTO `json:"manual_counts"`
}

// BulkOpeningStockRequest submits many counts for one date.
type BulkOpeningStockRequest struct {
	StockDate string `json:"stock_date"`
	Entries   []struct {
		ProductID string          `json:"product_id"`
		Manual    ManualCountsDTO `json:"manual_counts"`
	} `json:"entries"`
}

// BulkEntryResultDTO is the per-entry outcome of a bulk submission.
type BulkEntryResultDTO struct {
	ProductID string `json:"product_id"`
	Outcome   string `json:"outcome"`
	EntryID   string `json:"entry_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// OpeningStockDTO represents a reconciliation entry in API responses.
type OpeningStockDTO struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	StockDate string `json:"stock_date"`

	ManualPallets int `json:"manual_pallets"`
	ManualPacks   int `json:"manual_packs"`
	ManualUnits   int `json:"manual_units"`

	SystemPallets int `json:"system_pallets"`
	SystemPacks   int `json:"system_packs"`
	SystemUnits   int `json:"system_units"`

	VariancePallets int    `json:"variance_pallets"`
	VariancePacks   int    `json:"variance_packs"`
	VarianceUnits   int    `json:"variance_units"`
	VarianceValue   string `json:"variance_value"`

	Status          string  `json:"status"`
	SubmittedBy     string  `json:"submitted_by"`
	ApprovedBy      string  `json:"approved_by,omitempty"`
	ApprovedAt      *string `json:"approved_at,omitempty"`
	RejectionReason string  `json:"rejection_reason,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// RejectRequest carries the mandatory reason for a rejection.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// EditRequestRequest proposes new manual counts for a terminal entry.
type EditRequestRequest struct {
	Manual ManualCountsDTO `json:"manual_counts"`
	Reason string          `json:"reason"`
}

// EditRequestDTO represents an edit request in API responses.
type EditRequestDTO struct {
	ID               string  `json:"id"`
	EntryID          string  `json:"entry_id"`
	NewManualPallets int     `json:"new_manual_pallets"`
	NewManualPacks   int     `json:"new_manual_packs"`
	NewManualUnits   int     `json:"new_manual_units"`
	Reason           string  `json:"reason,omitempty"`
	Status           string  `json:"status"`
	RequestedBy      string  `json:"requested_by"`
	DecidedBy        string  `json:"decided_by,omitempty"`
	DecidedAt        *string `json:"decided_at,omitempty"`
	RejectionReason  string  `json:"rejection_reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// =============================================================================
// SWEEP AND AUDIT
// =============================================================================

// SweepResultDTO summarizes one lifecycle sweep run.
type SweepResultDTO struct {
	ExpiredCount  int              `json:"expired_count"`
	DepletedCount int              `json:"depleted_count"`
	Alerts        []ExpiryAlertDTO `json:"alerts"`
	RanAt         string           `json:"ran_at"`
}

// ExpiryAlertDTO flags a batch approaching expiry with stock remaining.
type ExpiryAlertDTO struct {
	BatchID     string `json:"batch_id"`
	ProductID   string `json:"product_id"`
	BatchNumber string `json:"batch_number,omitempty"`
	Remaining   int    `json:"remaining"`
	UnitType    string `json:"unit_type"`
	ExpiryDate  string `json:"expiry_date"`
	DaysLeft    int    `json:"days_left"`
}

// AuditEntryDTO represents one audit-log entry in API responses.
type AuditEntryDTO struct {
	ID        string         `json:"id"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor,omitempty"`
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toBatchDTO(b inventory.Batch) BatchDTO {
	dto := BatchDTO{
		ID:                b.ID,
		ProductID:         b.ProductID,
		BatchNumber:       b.BatchNumber,
		Quantity:          b.Quantity,
		UnitType:          string(b.UnitType),
		QuantitySold:      b.QuantitySold,
		QuantityRemaining: b.QuantityRemaining,
		PurchaseDate:      b.PurchaseDate.Format("2006-01-02"),
		Status:            string(b.Status),
		CreatedAt:         b.CreatedAt.Format(time.RFC3339),
	}
	if b.ExpiryDate != nil {
		s := b.ExpiryDate.Format("2006-01-02")
		dto.ExpiryDate = &s
	}
	return dto
}

func toSnapshotDTO(s inventory.InventorySnapshot) SnapshotDTO {
	return SnapshotDTO{
		ProductID:    s.ProductID,
		Pallets:      s.Pallets,
		Packs:        s.Packs,
		Units:        s.Units,
		ReorderLevel: s.ReorderLevel,
		LowStock:     s.BelowReorder(),
		LastUpdated:  s.LastUpdated.Format(time.RFC3339),
	}
}

func toOpeningStockDTO(e inventory.DailyOpeningStock) OpeningStockDTO {
	dto := OpeningStockDTO{
		ID:        e.ID,
		ProductID: e.ProductID,
		StockDate: e.StockDate.Format("2006-01-02"),

		ManualPallets: e.ManualPallets,
		ManualPacks:   e.ManualPacks,
		ManualUnits:   e.ManualUnits,

		SystemPallets: e.SystemPallets,
		SystemPacks:   e.SystemPacks,
		SystemUnits:   e.SystemUnits,

		VariancePallets: e.VariancePallets,
		VariancePacks:   e.VariancePacks,
		VarianceUnits:   e.VarianceUnits,
		VarianceValue:   e.VarianceValue.String(),

		Status:          string(e.Status),
		SubmittedBy:     e.SubmittedBy,
		ApprovedBy:      e.ApprovedBy,
		RejectionReason: e.RejectionReason,

		CreatedAt: e.CreatedAt.Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
	}
	if e.ApprovedAt != nil {
		s := e.ApprovedAt.Format(time.RFC3339)
		dto.ApprovedAt = &s
	}
	return dto
}

func toEditRequestDTO(r inventory.EditRequest) EditRequestDTO {
	dto := EditRequestDTO{
		ID:               r.ID,
		EntryID:          r.EntryID,
		NewManualPallets: r.NewManualPallets,
		NewManualPacks:   r.NewManualPacks,
		NewManualUnits:   r.NewManualUnits,
		Reason:           r.Reason,
		Status:           string(r.Status),
		RequestedBy:      r.RequestedBy,
		DecidedBy:        r.DecidedBy,
		RejectionReason:  r.RejectionReason,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
	if r.DecidedAt != nil {
		s := r.DecidedAt.Format(time.RFC3339)
		dto.DecidedAt = &s
	}
	return dto
}
