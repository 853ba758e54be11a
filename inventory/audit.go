/*
audit.go - Append-only audit recorder

PURPOSE:
  Every mutating operation in the engine emits audit entries so historical
  state can be reconstructed forensically. A multi-batch FEFO allocation
  emits one entry per touched batch plus one for the sale.

CONTRACT:
  - The audit log is append-only. No update, no delete. Ever.
  - Recording is best-effort: a failed append logs a warning and never
    rolls back or blocks the primary operation. Audit is an operational
    concern, not a correctness one.

SEE ALSO:
  - store/sqlite/sqlite.go: audit_log table, indexed by entity+id+timestamp
*/
package inventory

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// AUDIT ENTRIES
// =============================================================================

// AuditAction identifies the logical state change an entry records.
type AuditAction string

const (
	AuditBatchCreated        AuditAction = "batch_created"
	AuditBatchAllocated      AuditAction = "batch_allocated"
	AuditBatchDeleted        AuditAction = "batch_deleted"
	AuditBatchExpired        AuditAction = "batch_expired"
	AuditBatchDepleted       AuditAction = "batch_depleted"
	AuditSaleRecorded        AuditAction = "sale_recorded"
	AuditOpeningSubmitted    AuditAction = "opening_stock_submitted"
	AuditOpeningApproved     AuditAction = "opening_stock_approved"
	AuditOpeningRejected     AuditAction = "opening_stock_rejected"
	AuditEditRequested       AuditAction = "edit_requested"
	AuditEditApproved        AuditAction = "edit_approved"
	AuditEditRejected        AuditAction = "edit_rejected"
	AuditSnapshotRecomputed  AuditAction = "snapshot_recomputed"
)

// AuditEntry records one logical state change.
type AuditEntry struct {
	ID        string
	Entity    string // "batch", "sale", "opening_stock", "edit_request", "snapshot"
	EntityID  string
	Action    AuditAction
	Actor     string
	OldValues map[string]any
	NewValues map[string]any
	Metadata  map[string]any
	Timestamp time.Time
}

// AuditFilter narrows audit queries.
type AuditFilter struct {
	Entity   string
	EntityID string
	Actor    string
	Action   AuditAction
	From     *time.Time
	To       *time.Time
	Limit    int
}

// AuditStore persists audit entries. Append-only.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// =============================================================================
// RECORDER - Best-effort audit emission
// =============================================================================

// Recorder writes audit entries without ever failing its caller.
type Recorder struct {
	Store  AuditStore
	Clock  Clock
	Logger zerolog.Logger
}

func NewRecorder(store AuditStore, clock Clock, logger zerolog.Logger) *Recorder {
	return &Recorder{Store: store, Clock: clock, Logger: logger}
}

// Record appends an entry, stamping the clock time if unset. Failures are
// logged at warn and swallowed.
func (r *Recorder) Record(ctx context.Context, entry AuditEntry) {
	if r == nil || r.Store == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.Clock.Now()
	}
	if err := r.Store.AppendAudit(ctx, entry); err != nil {
		r.Logger.Warn().
			Err(err).
			Str("entity", entry.Entity).
			Str("entity_id", entry.EntityID).
			Str("action", string(entry.Action)).
			Msg("audit append failed, continuing")
	}
}
