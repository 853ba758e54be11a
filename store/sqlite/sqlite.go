/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements inventory.Store, inventory.TxStore and inventory.AuditStore
  using SQLite. In production, the same patterns apply to PostgreSQL; only
  minor SQL dialect differences.

KEY TABLES:
  products:            catalog copy (cost per pack, pack size, reorder level)
  batches:             the lot ledger, with CHECK constraints mirroring the
                       quantity == sold + remaining invariant
  sales:               sale records
  batch_allocations:   per-batch consumption of each sale
  inventory_snapshots: derived per-product stock cache
  daily_opening_stock: manual-count reconciliation, UNIQUE(product, date)
  edit_requests:       approval workflow for opening-stock corrections
  audit_log:           append-only mutation trail

INDEXES:
  - idx_batches_fefo: the FEFO scan (product, unit, status, expiry)
  - idx_batches_product_status: snapshot sums and sweep scans
  - idx_allocations_batch / _sale: delete guards and sale lookups
  - idx_audit_entity: forensic queries by entity+id+timestamp

CONCURRENCY:
  WAL mode plus a sync.RWMutex, and WithTx holds the write lock for the
  whole transaction. SQLite transactions are serializable, so two
  concurrent sales cannot both claim the same units of a batch: the second
  writer observes the first writer's committed decrements or fails, never
  a silent merge. Transactional views route every read through the open
  transaction so a FEFO loop sees its own writes.

USAGE:
  store, err := sqlite.New("./data/inventory.db")
  // ":memory:" for tests

SEE ALSO:
  - inventory/store.go: interface definitions and contracts
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/inventory-engine/inventory"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps transactional reads and writes on the
	// same SQLite handle.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Product catalog copy
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cost_per_pack TEXT NOT NULL DEFAULT '0',
		packs_per_pallet INTEGER NOT NULL DEFAULT 0,
		reorder_level INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- The lot ledger. The CHECK constraints are the database-level backstop
	-- for the ledger invariant; domain code re-asserts it before every write.
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		batch_number TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL,
		unit_type TEXT NOT NULL,
		quantity_sold INTEGER NOT NULL DEFAULT 0,
		quantity_remaining INTEGER NOT NULL,
		purchase_date TEXT NOT NULL,
		expiry_date TEXT,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TEXT NOT NULL,
		CHECK (quantity = quantity_sold + quantity_remaining),
		CHECK (quantity_remaining >= 0)
	);

	CREATE INDEX IF NOT EXISTS idx_batches_product_status
		ON batches(product_id, status);
	-- FEFO scan: open batches in consumption order
	CREATE INDEX IF NOT EXISTS idx_batches_fefo
		ON batches(product_id, unit_type, status, expiry_date);
	CREATE INDEX IF NOT EXISTS idx_batches_expiry
		ON batches(expiry_date) WHERE expiry_date IS NOT NULL;

	-- Sales
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_type TEXT NOT NULL,
		receipt_number TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_product_created
		ON sales(product_id, created_at);

	-- Per-batch consumption of each sale
	CREATE TABLE IF NOT EXISTS batch_allocations (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id),
		batch_id TEXT NOT NULL REFERENCES batches(id),
		quantity_allocated INTEGER NOT NULL CHECK (quantity_allocated > 0)
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_sale
		ON batch_allocations(sale_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_batch
		ON batch_allocations(batch_id);

	-- Derived per-product stock cache
	CREATE TABLE IF NOT EXISTS inventory_snapshots (
		product_id TEXT PRIMARY KEY REFERENCES products(id),
		pallets INTEGER NOT NULL DEFAULT 0,
		packs INTEGER NOT NULL DEFAULT 0,
		units INTEGER NOT NULL DEFAULT 0,
		reorder_level INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL
	);

	-- Daily manual-count reconciliation
	CREATE TABLE IF NOT EXISTS daily_opening_stock (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		stock_date TEXT NOT NULL,
		manual_pallets INTEGER NOT NULL DEFAULT 0,
		manual_packs INTEGER NOT NULL DEFAULT 0,
		manual_units INTEGER NOT NULL DEFAULT 0,
		system_pallets INTEGER NOT NULL DEFAULT 0,
		system_packs INTEGER NOT NULL DEFAULT 0,
		system_units INTEGER NOT NULL DEFAULT 0,
		variance_pallets INTEGER NOT NULL DEFAULT 0,
		variance_packs INTEGER NOT NULL DEFAULT 0,
		variance_units INTEGER NOT NULL DEFAULT 0,
		variance_value TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'PENDING',
		submitted_by TEXT NOT NULL DEFAULT '',
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(product_id, stock_date)
	);

	CREATE INDEX IF NOT EXISTS idx_opening_stock_date
		ON daily_opening_stock(stock_date);
	CREATE INDEX IF NOT EXISTS idx_opening_stock_status
		ON daily_opening_stock(status);

	-- Edit requests against terminal opening-stock entries
	CREATE TABLE IF NOT EXISTS edit_requests (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES daily_opening_stock(id),
		new_manual_pallets INTEGER NOT NULL DEFAULT 0,
		new_manual_packs INTEGER NOT NULL DEFAULT 0,
		new_manual_units INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'PENDING',
		requested_by TEXT NOT NULL DEFAULT '',
		decided_by TEXT NOT NULL DEFAULT '',
		decided_at TEXT,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_edit_requests_entry
		ON edit_requests(entry_id, status);

	-- Append-only audit trail. No UPDATE, no DELETE, ever.
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		old_values_json TEXT,
		new_values_json TEXT,
		metadata_json TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_log(entity, entity_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_actor
		ON audit_log(actor);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so every query can run either
// directly or inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *Store) SaveProduct(ctx context.Context, p inventory.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveProduct(ctx, s.db, p)
}

func (s *Store) saveProduct(ctx context.Context, db dbtx, p inventory.Product) error {
	query := `
		INSERT INTO products (id, name, cost_per_pack, packs_per_pallet, reorder_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			cost_per_pack = excluded.cost_per_pack,
			packs_per_pallet = excluded.packs_per_pallet,
			reorder_level = excluded.reorder_level
	`
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, query,
		p.ID, p.Name, p.CostPerPack.String(), p.PacksPerPallet, p.ReorderLevel,
		fmtTime(createdAt),
	)
	return err
}

func (s *Store) GetProduct(ctx context.Context, id string) (*inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProduct(ctx, s.db, id)
}

func (s *Store) getProduct(ctx context.Context, db dbtx, id string) (*inventory.Product, error) {
	var p inventory.Product
	var cost, createdAt string

	err := db.QueryRowContext(ctx,
		"SELECT id, name, cost_per_pack, packs_per_pallet, reorder_level, created_at FROM products WHERE id = ?",
		id,
	).Scan(&p.ID, &p.Name, &cost, &p.PacksPerPallet, &p.ReorderLevel, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.CostPerPack = parseDecimal(cost)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProducts(ctx, s.db)
}

func (s *Store) listProducts(ctx context.Context, db dbtx) ([]inventory.Product, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, cost_per_pack, packs_per_pallet, reorder_level, created_at FROM products ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []inventory.Product
	for rows.Next() {
		var p inventory.Product
		var cost, createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &cost, &p.PacksPerPallet, &p.ReorderLevel, &createdAt); err != nil {
			return nil, err
		}
		p.CostPerPack = parseDecimal(cost)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		products = append(products, p)
	}
	return products, rows.Err()
}

// =============================================================================
// BATCHES - The lot ledger
// =============================================================================

const batchColumns = `id, product_id, batch_number, quantity, unit_type,
	quantity_sold, quantity_remaining, purchase_date, expiry_date, status, created_at`

func (s *Store) InsertBatch(ctx context.Context, b inventory.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertBatch(ctx, s.db, b)
}

func (s *Store) insertBatch(ctx context.Context, db dbtx, b inventory.Batch) error {
	query := `
		INSERT INTO batches
		(id, product_id, batch_number, quantity, unit_type, quantity_sold,
		 quantity_remaining, purchase_date, expiry_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		b.ID, b.ProductID, b.BatchNumber, b.Quantity, string(b.UnitType),
		b.QuantitySold, b.QuantityRemaining,
		fmtTime(b.PurchaseDate),
		nullTime(b.ExpiryDate),
		string(b.Status),
		fmtTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*inventory.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBatch(ctx, s.db, id)
}

func (s *Store) getBatch(ctx context.Context, db dbtx, id string) (*inventory.Batch, error) {
	batches, err := s.queryBatches(ctx, db,
		"SELECT "+batchColumns+" FROM batches WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, nil
	}
	return &batches[0], nil
}

// UpdateBatch writes only the mutable ledger columns. Quantity, unit type
// and dates are immutable after receipt.
func (s *Store) UpdateBatch(ctx context.Context, b inventory.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateBatch(ctx, s.db, b)
}

func (s *Store) updateBatch(ctx context.Context, db dbtx, b inventory.Batch) error {
	query := `
		UPDATE batches
		SET quantity_sold = ?, quantity_remaining = ?, status = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		b.QuantitySold, b.QuantityRemaining, string(b.Status), b.ID)
	if err != nil {
		return fmt.Errorf("failed to update batch %s: %w", b.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &inventory.NotFoundError{Kind: "batch", ID: b.ID}
	}
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteBatch(ctx, s.db, id)
}

func (s *Store) deleteBatch(ctx context.Context, db dbtx, id string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM batches WHERE id = ?", id)
	return err
}

func (s *Store) ListBatchesByProduct(ctx context.Context, productID string) ([]inventory.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryBatches(ctx, s.db,
		"SELECT "+batchColumns+" FROM batches WHERE product_id = ? ORDER BY purchase_date ASC, id ASC",
		productID)
}

// ListOpenBatchesFEFO owns the consumption ordering: expiry ascending with
// NULLs last, then purchase date, then id for determinism.
func (s *Store) ListOpenBatchesFEFO(ctx context.Context, productID string, unit inventory.UnitType) ([]inventory.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOpenBatchesFEFO(ctx, s.db, productID, unit)
}

func (s *Store) listOpenBatchesFEFO(ctx context.Context, db dbtx, productID string, unit inventory.UnitType) ([]inventory.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batches
		WHERE product_id = ? AND unit_type = ? AND status = 'ACTIVE' AND quantity_remaining > 0
		ORDER BY (expiry_date IS NULL) ASC, expiry_date ASC, purchase_date ASC, id ASC
	`
	return s.queryBatches(ctx, db, query, productID, string(unit))
}

func (s *Store) ListExpirableBatches(ctx context.Context, now time.Time) ([]inventory.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listExpirableBatches(ctx, s.db, now)
}

func (s *Store) listExpirableBatches(ctx context.Context, db dbtx, now time.Time) ([]inventory.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batches
		WHERE status IN ('ACTIVE', 'DEPLETED')
		  AND expiry_date IS NOT NULL AND expiry_date < ?
		ORDER BY expiry_date ASC, id ASC
	`
	return s.queryBatches(ctx, db, query, fmtTime(now))
}

func (s *Store) ListDepletableBatches(ctx context.Context) ([]inventory.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDepletableBatches(ctx, s.db)
}

func (s *Store) listDepletableBatches(ctx context.Context, db dbtx) ([]inventory.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batches
		WHERE status = 'ACTIVE' AND quantity_remaining = 0
		ORDER BY id ASC
	`
	return s.queryBatches(ctx, db, query)
}

func (s *Store) ListExpiringBatches(ctx context.Context, now time.Time, horizon time.Duration) ([]inventory.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listExpiringBatches(ctx, s.db, now, horizon)
}

func (s *Store) listExpiringBatches(ctx context.Context, db dbtx, now time.Time, horizon time.Duration) ([]inventory.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batches
		WHERE status = 'ACTIVE' AND quantity_remaining > 0
		  AND expiry_date IS NOT NULL
		  AND expiry_date >= ? AND expiry_date < ?
		ORDER BY expiry_date ASC, id ASC
	`
	return s.queryBatches(ctx, db, query,
		fmtTime(now), fmtTime(now.Add(horizon)))
}

func (s *Store) CountAllocationsForBatch(ctx context.Context, batchID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countAllocationsForBatch(ctx, s.db, batchID)
}

func (s *Store) countAllocationsForBatch(ctx context.Context, db dbtx, batchID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM batch_allocations WHERE batch_id = ?", batchID,
	).Scan(&count)
	return count, err
}

func (s *Store) queryBatches(ctx context.Context, db dbtx, query string, args ...any) ([]inventory.Batch, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []inventory.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func scanBatch(rows *sql.Rows) (inventory.Batch, error) {
	var (
		b            inventory.Batch
		unitType     string
		status       string
		purchaseDate string
		expiryDate   sql.NullString
		createdAt    string
	)

	err := rows.Scan(
		&b.ID, &b.ProductID, &b.BatchNumber, &b.Quantity, &unitType,
		&b.QuantitySold, &b.QuantityRemaining, &purchaseDate, &expiryDate,
		&status, &createdAt,
	)
	if err != nil {
		return b, fmt.Errorf("failed to scan batch: %w", err)
	}

	b.UnitType = inventory.UnitType(unitType)
	b.Status = inventory.BatchStatus(status)
	b.PurchaseDate, _ = time.Parse(time.RFC3339, purchaseDate)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if expiryDate.Valid {
		t, _ := time.Parse(time.RFC3339, expiryDate.String)
		b.ExpiryDate = &t
	}
	return b, nil
}

// =============================================================================
// SALES AND ALLOCATIONS
// =============================================================================

func (s *Store) InsertSale(ctx context.Context, sale inventory.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertSale(ctx, s.db, sale)
}

func (s *Store) insertSale(ctx context.Context, db dbtx, sale inventory.Sale) error {
	query := `
		INSERT INTO sales (id, product_id, quantity, unit_type, receipt_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		sale.ID, sale.ProductID, sale.Quantity, string(sale.UnitType),
		sale.ReceiptNumber, fmtTime(sale.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*inventory.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSale(ctx, s.db, id)
}

func (s *Store) getSale(ctx context.Context, db dbtx, id string) (*inventory.Sale, error) {
	var sale inventory.Sale
	var unitType, createdAt string

	err := db.QueryRowContext(ctx,
		"SELECT id, product_id, quantity, unit_type, receipt_number, created_at FROM sales WHERE id = ?",
		id,
	).Scan(&sale.ID, &sale.ProductID, &sale.Quantity, &unitType, &sale.ReceiptNumber, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sale.UnitType = inventory.UnitType(unitType)
	sale.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &sale, nil
}

func (s *Store) InsertAllocation(ctx context.Context, a inventory.BatchAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAllocation(ctx, s.db, a)
}

func (s *Store) insertAllocation(ctx context.Context, db dbtx, a inventory.BatchAllocation) error {
	query := `
		INSERT INTO batch_allocations (id, sale_id, batch_id, quantity_allocated)
		VALUES (?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query, a.ID, a.SaleID, a.BatchID, a.QuantityAllocated)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

func (s *Store) ListAllocationsBySale(ctx context.Context, saleID string) ([]inventory.BatchAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAllocationsBySale(ctx, s.db, saleID)
}

func (s *Store) listAllocationsBySale(ctx context.Context, db dbtx, saleID string) ([]inventory.BatchAllocation, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, sale_id, batch_id, quantity_allocated FROM batch_allocations WHERE sale_id = ? ORDER BY id ASC",
		saleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []inventory.BatchAllocation
	for rows.Next() {
		var a inventory.BatchAllocation
		if err := rows.Scan(&a.ID, &a.SaleID, &a.BatchID, &a.QuantityAllocated); err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// =============================================================================
// LEDGER HISTORY - "Stock as of date"
// =============================================================================

func (s *Store) TotalPurchasedBefore(ctx context.Context, productID string, unit inventory.UnitType, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalPurchasedBefore(ctx, s.db, productID, unit, cutoff)
}

func (s *Store) totalPurchasedBefore(ctx context.Context, db dbtx, productID string, unit inventory.UnitType, cutoff time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM batches
		WHERE product_id = ? AND unit_type = ?
		  AND status IN ('ACTIVE', 'DEPLETED')
		  AND purchase_date < ?
	`
	var total int
	err := db.QueryRowContext(ctx, query,
		productID, string(unit), fmtTime(cutoff),
	).Scan(&total)
	return total, err
}

func (s *Store) TotalSoldBefore(ctx context.Context, productID string, unit inventory.UnitType, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSoldBefore(ctx, s.db, productID, unit, cutoff)
}

func (s *Store) totalSoldBefore(ctx context.Context, db dbtx, productID string, unit inventory.UnitType, cutoff time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(ba.quantity_allocated), 0)
		FROM batch_allocations ba
		JOIN sales sa ON sa.id = ba.sale_id
		WHERE sa.product_id = ? AND sa.unit_type = ?
		  AND sa.created_at < ?
	`
	var total int
	err := db.QueryRowContext(ctx, query,
		productID, string(unit), fmtTime(cutoff),
	).Scan(&total)
	return total, err
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func (s *Store) SaveSnapshot(ctx context.Context, snap inventory.InventorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSnapshot(ctx, s.db, snap)
}

func (s *Store) saveSnapshot(ctx context.Context, db dbtx, snap inventory.InventorySnapshot) error {
	query := `
		INSERT INTO inventory_snapshots (product_id, pallets, packs, units, reorder_level, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			pallets = excluded.pallets,
			packs = excluded.packs,
			units = excluded.units,
			reorder_level = excluded.reorder_level,
			last_updated = excluded.last_updated
	`
	_, err := db.ExecContext(ctx, query,
		snap.ProductID, snap.Pallets, snap.Packs, snap.Units,
		snap.ReorderLevel, fmtTime(snap.LastUpdated),
	)
	return err
}

func (s *Store) GetSnapshot(ctx context.Context, productID string) (*inventory.InventorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSnapshot(ctx, s.db, productID)
}

func (s *Store) getSnapshot(ctx context.Context, db dbtx, productID string) (*inventory.InventorySnapshot, error) {
	var snap inventory.InventorySnapshot
	var lastUpdated string

	err := db.QueryRowContext(ctx,
		"SELECT product_id, pallets, packs, units, reorder_level, last_updated FROM inventory_snapshots WHERE product_id = ?",
		productID,
	).Scan(&snap.ProductID, &snap.Pallets, &snap.Packs, &snap.Units, &snap.ReorderLevel, &lastUpdated)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	return &snap, nil
}

func (s *Store) SumRemainingByUnit(ctx context.Context, productID string) (map[inventory.UnitType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sumRemainingByUnit(ctx, s.db, productID)
}

func (s *Store) sumRemainingByUnit(ctx context.Context, db dbtx, productID string) (map[inventory.UnitType]int, error) {
	query := `
		SELECT unit_type, COALESCE(SUM(quantity_remaining), 0)
		FROM batches
		WHERE product_id = ? AND status = 'ACTIVE'
		GROUP BY unit_type
	`
	rows, err := db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[inventory.UnitType]int)
	for rows.Next() {
		var unit string
		var total int
		if err := rows.Scan(&unit, &total); err != nil {
			return nil, err
		}
		sums[inventory.UnitType(unit)] = total
	}
	return sums, rows.Err()
}

func (s *Store) ListProductIDsWithBatches(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProductIDsWithBatches(ctx, s.db)
}

func (s *Store) listProductIDsWithBatches(ctx context.Context, db dbtx) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT DISTINCT product_id FROM batches ORDER BY product_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// OPENING STOCK
// =============================================================================

const openingColumns = `id, product_id, stock_date,
	manual_pallets, manual_packs, manual_units,
	system_pallets, system_packs, system_units,
	variance_pallets, variance_packs, variance_units,
	variance_value, status, submitted_by, approved_by, approved_at,
	rejection_reason, created_at, updated_at`

func (s *Store) InsertOpeningStock(ctx context.Context, e inventory.DailyOpeningStock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertOpeningStock(ctx, s.db, e)
}

func (s *Store) insertOpeningStock(ctx context.Context, db dbtx, e inventory.DailyOpeningStock) error {
	query := `
		INSERT INTO daily_opening_stock
		(id, product_id, stock_date,
		 manual_pallets, manual_packs, manual_units,
		 system_pallets, system_packs, system_units,
		 variance_pallets, variance_packs, variance_units,
		 variance_value, status, submitted_by, approved_by, approved_at,
		 rejection_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		e.ID, e.ProductID, e.StockDate.Format("2006-01-02"),
		e.ManualPallets, e.ManualPacks, e.ManualUnits,
		e.SystemPallets, e.SystemPacks, e.SystemUnits,
		e.VariancePallets, e.VariancePacks, e.VarianceUnits,
		e.VarianceValue.String(), string(e.Status), e.SubmittedBy, e.ApprovedBy,
		nullTime(e.ApprovedAt), e.RejectionReason,
		fmtTime(e.CreatedAt), fmtTime(e.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &inventory.ConflictError{Message: fmt.Sprintf(
				"opening stock for product %s on %s already submitted",
				e.ProductID, e.StockDate.Format("2006-01-02"))}
		}
		return fmt.Errorf("failed to insert opening stock: %w", err)
	}
	return nil
}

func (s *Store) GetOpeningStock(ctx context.Context, id string) (*inventory.DailyOpeningStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOpeningStock(ctx, s.db, id)
}

func (s *Store) getOpeningStock(ctx context.Context, db dbtx, id string) (*inventory.DailyOpeningStock, error) {
	entries, err := s.queryOpeningStock(ctx, db,
		"SELECT "+openingColumns+" FROM daily_opening_stock WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *Store) GetOpeningStockByProductDate(ctx context.Context, productID string, stockDate time.Time) (*inventory.DailyOpeningStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOpeningStockByProductDate(ctx, s.db, productID, stockDate)
}

func (s *Store) getOpeningStockByProductDate(ctx context.Context, db dbtx, productID string, stockDate time.Time) (*inventory.DailyOpeningStock, error) {
	entries, err := s.queryOpeningStock(ctx, db,
		"SELECT "+openingColumns+" FROM daily_opening_stock WHERE product_id = ? AND stock_date = ?",
		productID, stockDate.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *Store) UpdateOpeningStock(ctx context.Context, e inventory.DailyOpeningStock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateOpeningStock(ctx, s.db, e)
}

func (s *Store) updateOpeningStock(ctx context.Context, db dbtx, e inventory.DailyOpeningStock) error {
	query := `
		UPDATE daily_opening_stock
		SET manual_pallets = ?, manual_packs = ?, manual_units = ?,
		    system_pallets = ?, system_packs = ?, system_units = ?,
		    variance_pallets = ?, variance_packs = ?, variance_units = ?,
		    variance_value = ?, status = ?, approved_by = ?, approved_at = ?,
		    rejection_reason = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		e.ManualPallets, e.ManualPacks, e.ManualUnits,
		e.SystemPallets, e.SystemPacks, e.SystemUnits,
		e.VariancePallets, e.VariancePacks, e.VarianceUnits,
		e.VarianceValue.String(), string(e.Status), e.ApprovedBy,
		nullTime(e.ApprovedAt), e.RejectionReason,
		fmtTime(e.UpdatedAt),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update opening stock %s: %w", e.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &inventory.NotFoundError{Kind: "opening stock entry", ID: e.ID}
	}
	return nil
}

func (s *Store) ListOpeningStockByDate(ctx context.Context, stockDate time.Time) ([]inventory.DailyOpeningStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryOpeningStock(ctx, s.db,
		"SELECT "+openingColumns+" FROM daily_opening_stock WHERE stock_date = ? ORDER BY product_id",
		stockDate.Format("2006-01-02"))
}

func (s *Store) queryOpeningStock(ctx context.Context, db dbtx, query string, args ...any) ([]inventory.DailyOpeningStock, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query opening stock: %w", err)
	}
	defer rows.Close()

	var entries []inventory.DailyOpeningStock
	for rows.Next() {
		var (
			e             inventory.DailyOpeningStock
			stockDate     string
			varianceValue string
			status        string
			approvedAt    sql.NullString
			createdAt     string
			updatedAt     string
		)
		err := rows.Scan(
			&e.ID, &e.ProductID, &stockDate,
			&e.ManualPallets, &e.ManualPacks, &e.ManualUnits,
			&e.SystemPallets, &e.SystemPacks, &e.SystemUnits,
			&e.VariancePallets, &e.VariancePacks, &e.VarianceUnits,
			&varianceValue, &status, &e.SubmittedBy, &e.ApprovedBy, &approvedAt,
			&e.RejectionReason, &createdAt, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opening stock: %w", err)
		}

		e.StockDate, _ = time.Parse("2006-01-02", stockDate)
		e.VarianceValue = parseDecimal(varianceValue)
		e.Status = inventory.EntryStatus(status)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		if approvedAt.Valid {
			t, _ := time.Parse(time.RFC3339, approvedAt.String)
			e.ApprovedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// EDIT REQUESTS
// =============================================================================

const editRequestColumns = `id, entry_id, new_manual_pallets, new_manual_packs,
	new_manual_units, reason, status, requested_by, decided_by, decided_at,
	rejection_reason, created_at`

func (s *Store) InsertEditRequest(ctx context.Context, r inventory.EditRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertEditRequest(ctx, s.db, r)
}

func (s *Store) insertEditRequest(ctx context.Context, db dbtx, r inventory.EditRequest) error {
	query := `
		INSERT INTO edit_requests
		(id, entry_id, new_manual_pallets, new_manual_packs, new_manual_units,
		 reason, status, requested_by, decided_by, decided_at, rejection_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		r.ID, r.EntryID, r.NewManualPallets, r.NewManualPacks, r.NewManualUnits,
		r.Reason, string(r.Status), r.RequestedBy, r.DecidedBy,
		nullTime(r.DecidedAt), r.RejectionReason,
		fmtTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert edit request: %w", err)
	}
	return nil
}

func (s *Store) GetEditRequest(ctx context.Context, id string) (*inventory.EditRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEditRequest(ctx, s.db, id)
}

func (s *Store) getEditRequest(ctx context.Context, db dbtx, id string) (*inventory.EditRequest, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+editRequestColumns+" FROM edit_requests WHERE id = ?", id)

	var (
		r         inventory.EditRequest
		status    string
		decidedAt sql.NullString
		createdAt string
	)
	err := row.Scan(
		&r.ID, &r.EntryID, &r.NewManualPallets, &r.NewManualPacks, &r.NewManualUnits,
		&r.Reason, &status, &r.RequestedBy, &r.DecidedBy, &decidedAt,
		&r.RejectionReason, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Status = inventory.EntryStatus(status)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if decidedAt.Valid {
		t, _ := time.Parse(time.RFC3339, decidedAt.String)
		r.DecidedAt = &t
	}
	return &r, nil
}

func (s *Store) UpdateEditRequest(ctx context.Context, r inventory.EditRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateEditRequest(ctx, s.db, r)
}

func (s *Store) updateEditRequest(ctx context.Context, db dbtx, r inventory.EditRequest) error {
	query := `
		UPDATE edit_requests
		SET status = ?, decided_by = ?, decided_at = ?, rejection_reason = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		string(r.Status), r.DecidedBy, nullTime(r.DecidedAt), r.RejectionReason, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update edit request %s: %w", r.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &inventory.NotFoundError{Kind: "edit request", ID: r.ID}
	}
	return nil
}

func (s *Store) HasPendingEditRequest(ctx context.Context, entryID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPendingEditRequest(ctx, s.db, entryID)
}

func (s *Store) hasPendingEditRequest(ctx context.Context, db dbtx, entryID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edit_requests WHERE entry_id = ? AND status = 'PENDING'",
		entryID,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// AUDIT LOG (inventory.AuditStore interface)
// =============================================================================

// AppendAudit adds an audit entry. This is the only write operation on
// audit_log; there is no update and no delete.
func (s *Store) AppendAudit(ctx context.Context, entry inventory.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldJSON, _ := json.Marshal(entry.OldValues)
	newJSON, _ := json.Marshal(entry.NewValues)
	metaJSON, _ := json.Marshal(entry.Metadata)

	query := `
		INSERT INTO audit_log
		(id, entity, entity_id, action, actor, old_values_json, new_values_json, metadata_json, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Entity, entry.EntityID, string(entry.Action), entry.Actor,
		string(oldJSON), string(newJSON), string(metaJSON),
		fmtTime(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns audit entries matching the filter, newest first.
func (s *Store) QueryAudit(ctx context.Context, filter inventory.AuditFilter) ([]inventory.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, entity, entity_id, action, actor, old_values_json, new_values_json, metadata_json, timestamp
		FROM audit_log
		WHERE 1=1
	`
	var args []any
	if filter.Entity != "" {
		query += " AND entity = ?"
		args = append(args, filter.Entity)
	}
	if filter.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filter.EntityID)
	}
	if filter.Actor != "" {
		query += " AND actor = ?"
		args = append(args, filter.Actor)
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, string(filter.Action))
	}
	if filter.From != nil {
		query += " AND timestamp >= ?"
		args = append(args, fmtTime(*filter.From))
	}
	if filter.To != nil {
		query += " AND timestamp <= ?"
		args = append(args, fmtTime(*filter.To))
	}
	query += " ORDER BY timestamp DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []inventory.AuditEntry
	for rows.Next() {
		var (
			e         inventory.AuditEntry
			action    string
			oldJSON   sql.NullString
			newJSON   sql.NullString
			metaJSON  sql.NullString
			timestamp string
		)
		if err := rows.Scan(&e.ID, &e.Entity, &e.EntityID, &action, &e.Actor,
			&oldJSON, &newJSON, &metaJSON, &timestamp); err != nil {
			return nil, err
		}
		e.Action = inventory.AuditAction(action)
		e.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
		if oldJSON.Valid && oldJSON.String != "" && oldJSON.String != "null" {
			json.Unmarshal([]byte(oldJSON.String), &e.OldValues)
		}
		if newJSON.Valid && newJSON.String != "" && newJSON.String != "null" {
			json.Unmarshal([]byte(newJSON.String), &e.NewValues)
		}
		if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
			json.Unmarshal([]byte(metaJSON.String), &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The transactional view
// routes every read and write through the open transaction, so fn observes
// its own uncommitted writes.
func (s *Store) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txView := &txStore{tx: sqlTx, parent: s}
	if err := fn(txView); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the transactional view of the store. It holds no locks of its
// own; WithTx already holds the write lock.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) SaveProduct(ctx context.Context, p inventory.Product) error {
	return ts.parent.saveProduct(ctx, ts.tx, p)
}
func (ts *txStore) GetProduct(ctx context.Context, id string) (*inventory.Product, error) {
	return ts.parent.getProduct(ctx, ts.tx, id)
}
func (ts *txStore) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	return ts.parent.listProducts(ctx, ts.tx)
}
func (ts *txStore) InsertBatch(ctx context.Context, b inventory.Batch) error {
	return ts.parent.insertBatch(ctx, ts.tx, b)
}
func (ts *txStore) GetBatch(ctx context.Context, id string) (*inventory.Batch, error) {
	return ts.parent.getBatch(ctx, ts.tx, id)
}
func (ts *txStore) UpdateBatch(ctx context.Context, b inventory.Batch) error {
	return ts.parent.updateBatch(ctx, ts.tx, b)
}
func (ts *txStore) DeleteBatch(ctx context.Context, id string) error {
	return ts.parent.deleteBatch(ctx, ts.tx, id)
}
func (ts *txStore) ListBatchesByProduct(ctx context.Context, productID string) ([]inventory.Batch, error) {
	return ts.parent.queryBatches(ctx, ts.tx,
		"SELECT "+batchColumns+" FROM batches WHERE product_id = ? ORDER BY purchase_date ASC, id ASC",
		productID)
}
func (ts *txStore) ListOpenBatchesFEFO(ctx context.Context, productID string, unit inventory.UnitType) ([]inventory.Batch, error) {
	return ts.parent.listOpenBatchesFEFO(ctx, ts.tx, productID, unit)
}
func (ts *txStore) ListExpirableBatches(ctx context.Context, now time.Time) ([]inventory.Batch, error) {
	return ts.parent.listExpirableBatches(ctx, ts.tx, now)
}
func (ts *txStore) ListDepletableBatches(ctx context.Context) ([]inventory.Batch, error) {
	return ts.parent.listDepletableBatches(ctx, ts.tx)
}
func (ts *txStore) ListExpiringBatches(ctx context.Context, now time.Time, horizon time.Duration) ([]inventory.Batch, error) {
	return ts.parent.listExpiringBatches(ctx, ts.tx, now, horizon)
}
func (ts *txStore) CountAllocationsForBatch(ctx context.Context, batchID string) (int, error) {
	return ts.parent.countAllocationsForBatch(ctx, ts.tx, batchID)
}
func (ts *txStore) InsertSale(ctx context.Context, sale inventory.Sale) error {
	return ts.parent.insertSale(ctx, ts.tx, sale)
}
func (ts *txStore) GetSale(ctx context.Context, id string) (*inventory.Sale, error) {
	return ts.parent.getSale(ctx, ts.tx, id)
}
func (ts *txStore) InsertAllocation(ctx context.Context, a inventory.BatchAllocation) error {
	return ts.parent.insertAllocation(ctx, ts.tx, a)
}
func (ts *txStore) ListAllocationsBySale(ctx context.Context, saleID string) ([]inventory.BatchAllocation, error) {
	return ts.parent.listAllocationsBySale(ctx, ts.tx, saleID)
}
func (ts *txStore) TotalPurchasedBefore(ctx context.Context, productID string, unit inventory.UnitType, cutoff time.Time) (int, error) {
	return ts.parent.totalPurchasedBefore(ctx, ts.tx, productID, unit, cutoff)
}
func (ts *txStore) TotalSoldBefore(ctx context.Context, productID string, unit inventory.UnitType, cutoff time.Time) (int, error) {
	return ts.parent.totalSoldBefore(ctx, ts.tx, productID, unit, cutoff)
}
func (ts *txStore) SaveSnapshot(ctx context.Context, snap inventory.InventorySnapshot) error {
	return ts.parent.saveSnapshot(ctx, ts.tx, snap)
}
func (ts *txStore) GetSnapshot(ctx context.Context, productID string) (*inventory.InventorySnapshot, error) {
	return ts.parent.getSnapshot(ctx, ts.tx, productID)
}
func (ts *txStore) SumRemainingByUnit(ctx context.Context, productID string) (map[inventory.UnitType]int, error) {
	return ts.parent.sumRemainingByUnit(ctx, ts.tx, productID)
}
func (ts *txStore) ListProductIDsWithBatches(ctx context.Context) ([]string, error) {
	return ts.parent.listProductIDsWithBatches(ctx, ts.tx)
}
func (ts *txStore) InsertOpeningStock(ctx context.Context, e inventory.DailyOpeningStock) error {
	return ts.parent.insertOpeningStock(ctx, ts.tx, e)
}
func (ts *txStore) GetOpeningStock(ctx context.Context, id string) (*inventory.DailyOpeningStock, error) {
	return ts.parent.getOpeningStock(ctx, ts.tx, id)
}
func (ts *txStore) GetOpeningStockByProductDate(ctx context.Context, productID string, stockDate time.Time) (*inventory.DailyOpeningStock, error) {
	return ts.parent.getOpeningStockByProductDate(ctx, ts.tx, productID, stockDate)
}
func (ts *txStore) UpdateOpeningStock(ctx context.Context, e inventory.DailyOpeningStock) error {
	return ts.parent.updateOpeningStock(ctx, ts.tx, e)
}
func (ts *txStore) ListOpeningStockByDate(ctx context.Context, stockDate time.Time) ([]inventory.DailyOpeningStock, error) {
	return ts.parent.queryOpeningStock(ctx, ts.tx,
		"SELECT "+openingColumns+" FROM daily_opening_stock WHERE stock_date = ? ORDER BY product_id",
		stockDate.Format("2006-01-02"))
}
func (ts *txStore) InsertEditRequest(ctx context.Context, r inventory.EditRequest) error {
	return ts.parent.insertEditRequest(ctx, ts.tx, r)
}
func (ts *txStore) GetEditRequest(ctx context.Context, id string) (*inventory.EditRequest, error) {
	return ts.parent.getEditRequest(ctx, ts.tx, id)
}
func (ts *txStore) UpdateEditRequest(ctx context.Context, r inventory.EditRequest) error {
	return ts.parent.updateEditRequest(ctx, ts.tx, r)
}
func (ts *txStore) HasPendingEditRequest(ctx context.Context, entryID string) (bool, error) {
	return ts.parent.hasPendingEditRequest(ctx, ts.tx, entryID)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"audit_log", "edit_requests", "daily_opening_stock",
		"batch_allocations", "sales", "inventory_snapshots", "batches", "products",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// fmtTime stores timestamps as UTC RFC3339 so the string comparisons in
// SQL (FEFO ordering, as-of-date cutoffs, audit ranges) match chronological
// order no matter what location the caller's time.Time carries.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
