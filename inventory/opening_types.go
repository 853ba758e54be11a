package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OPENING STOCK - Daily manual-count reconciliation entries
// =============================================================================

// EntryStatus is the approval state of an opening-stock entry or edit
// request. PENDING moves to exactly one of APPROVED or REJECTED, which
// are terminal.
type EntryStatus string

const (
	StatusPending  EntryStatus = "PENDING"
	StatusApproved EntryStatus = "APPROVED"
	StatusRejected EntryStatus = "REJECTED"
)

// Terminal reports whether the status accepts no further transition.
func (s EntryStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ManualCounts is a staff count of physical stock.
type ManualCounts struct {
	Pallets int
	Packs   int
	Units   int
}

// DailyOpeningStock reconciles a staff count against system-computed
// opening stock for one product on one day. Unique per (product, date);
// after reaching a terminal status it changes only via an approved
// EditRequest.
type DailyOpeningStock struct {
	ID        string
	ProductID string
	StockDate time.Time // midnight UTC

	ManualPallets int
	ManualPacks   int
	ManualUnits   int

	SystemPallets int
	SystemPacks   int
	SystemUnits   int

	// variance = manual - system
	VariancePallets int
	VariancePacks   int
	VarianceUnits   int

	// VarianceValue = variancePacks x product cost per pack.
	VarianceValue decimal.Decimal

	Status          EntryStatus
	SubmittedBy     string
	ApprovedBy      string
	ApprovedAt      *time.Time
	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EditRequest proposes new manual counts for a terminal opening-stock
// entry. At most one PENDING request may exist per entry.
type EditRequest struct {
	ID      string
	EntryID string

	NewManualPallets int
	NewManualPacks   int
	NewManualUnits   int

	Reason          string
	Status          EntryStatus
	RequestedBy     string
	DecidedBy       string
	DecidedAt       *time.Time
	RejectionReason string

	CreatedAt time.Time
}

// BulkOutcome is the per-entry result of a bulk submission.
type BulkOutcome string

const (
	BulkSubmitted        BulkOutcome = "submitted"
	BulkSkippedDuplicate BulkOutcome = "skipped_duplicate"
	BulkErrored          BulkOutcome = "errored"
)

// BulkEntryResult reports one entry's outcome; a failure never aborts the
// rest of the batch.
type BulkEntryResult struct {
	ProductID string
	Outcome   BulkOutcome
	EntryID   string
	Error     string
}
