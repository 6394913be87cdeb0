package ledger

import (
	"context"
	"time"

	"stokado/internal/core/id"
	"stokado/internal/core/types"
)

// Repository defines persistence operations for the stock ledger.
//
// Locking contract: the *ForUpdate methods must acquire row-level write locks
// and are only valid inside a transaction. Candidates are always returned in
// warehouse_id order so concurrent reservations lock rows in a deterministic
// sequence (deadlock avoidance); the allocation policy reorders them afterwards.
type Repository interface {
	// Record operations

	// CreateRecord registers a zero-quantity record, idempotently.
	CreateRecord(ctx context.Context, productID, warehouseID id.ID) error

	// GetRecord returns the record, or NotFound.
	GetRecord(ctx context.Context, productID, warehouseID id.ID) (StockRecord, error)

	// GetRecordForUpdate returns the record with a row lock, or NotFound.
	GetRecordForUpdate(ctx context.Context, productID, warehouseID id.ID) (StockRecord, error)

	// GetRecordsByProduct returns all records for a product (no lock).
	GetRecordsByProduct(ctx context.Context, productID id.ID) ([]StockRecord, error)

	// GetCandidatesForUpdate returns lockable allocation candidates for a
	// product joined with warehouse attributes, active warehouses only.
	GetCandidatesForUpdate(ctx context.Context, productID id.ID) ([]Candidate, error)

	// UpdateRecord persists new quantity/reserved values for a locked record.
	UpdateRecord(ctx context.Context, rec StockRecord) error

	// ListRecords returns paginated records for read views.
	ListRecords(ctx context.Context, filter RecordFilter) ([]StockRecord, error)

	// Movement operations

	// CreateMovements batch inserts movements (append-only).
	CreateMovements(ctx context.Context, movements []Movement) error

	// ListMovements returns paginated movement history.
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)

	// Deletion guards

	// HasProductMovements reports whether any movement references the product.
	HasProductMovements(ctx context.Context, productID id.ID) (bool, error)

	// HasWarehouseMovements reports whether any movement references the warehouse.
	HasWarehouseMovements(ctx context.Context, warehouseID id.ID) (bool, error)
}

// Candidate is a stock record enriched with the warehouse attributes the
// allocation policy ranks on.
type Candidate struct {
	StockRecord

	WarehouseCode     string `db:"warehouse_code"`
	WarehouseType     string `db:"warehouse_type"`
	WarehousePriority int    `db:"warehouse_priority"`
}

// RecordFilter for filtering stock record views.
type RecordFilter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	ExcludeZero bool
	Limit       int
	Offset      int
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	Type        *MovementType
	Reference   *DocumentRef
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}

// AvailabilityCache is an optional read-through cache for availability views.
// Implementations must treat errors as soft: the ledger ignores cache failures.
type AvailabilityCache interface {
	// GetAvailability returns the cached view or (nil, nil) on miss.
	GetAvailability(ctx context.Context, productID id.ID) (*Availability, error)

	// SetAvailability stores the view with the implementation's TTL.
	SetAvailability(ctx context.Context, av Availability) error

	// Invalidate drops the cached view for a product.
	Invalidate(ctx context.Context, productID id.ID) error
}

// sum of available quantity over candidates.
func totalAvailable(cands []Candidate) types.Quantity {
	var total types.Quantity
	for _, c := range cands {
		total += c.Available()
	}
	return total
}
