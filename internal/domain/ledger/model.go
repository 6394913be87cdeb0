// Package ledger provides the stock ledger: per-(product, warehouse)
// quantity/reservation state and the append-only movement log.
package ledger

import (
	"time"

	"stokado/internal/core/id"
	"stokado/internal/core/types"
)

// MovementType classifies ledger movements.
type MovementType string

const (
	MovementReservation   MovementType = "reservation"
	MovementRelease       MovementType = "release"
	MovementDeduction     MovementType = "deduction"
	MovementAdjustmentIn  MovementType = "adjustment_in"
	MovementAdjustmentOut MovementType = "adjustment_out"
)

// IsValid reports whether t is a known movement type.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementReservation, MovementRelease, MovementDeduction,
		MovementAdjustmentIn, MovementAdjustmentOut:
		return true
	}
	return false
}

// StockRecord is the mutable per-(product, warehouse) state.
// Invariant: 0 <= ReservedQuantity <= Quantity at all times; every ledger
// operation either preserves it or is rejected in full.
type StockRecord struct {
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// Quantity is on-hand stock.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// ReservedQuantity is stock committed to pending orders.
	ReservedQuantity types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Available returns quantity not committed to reservations.
func (r StockRecord) Available() types.Quantity {
	return r.Quantity - r.ReservedQuantity
}

// CheckInvariant verifies 0 <= reserved <= quantity.
func (r StockRecord) CheckInvariant() bool {
	return r.ReservedQuantity >= 0 && r.ReservedQuantity <= r.Quantity
}

// Movement is an append-only ledger entry. Never mutated or deleted after
// creation; it is the audit trail reconstructing any StockRecord's history.
//
// Sign convention for QuantityChange:
// reservation -q, release +q, deduction -q, adjustment_in +q, adjustment_out -q.
type Movement struct {
	// LineID is unique identifier for this movement line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Type           MovementType   `db:"type" json:"type"`
	QuantityChange types.Quantity `db:"quantity_change" json:"quantityChange"`

	// ReferenceType/ReferenceID point at the originating business document.
	ReferenceType string `db:"reference_type" json:"referenceType"`
	ReferenceID   id.ID  `db:"reference_id" json:"referenceId"`

	Notes string `db:"notes" json:"notes,omitempty"`
	Actor string `db:"actor" json:"actor"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// DocumentRef identifies the business document driving a ledger operation.
type DocumentRef struct {
	Type string
	ID   id.ID
}

// NewMovement creates a movement with generated LineID and timestamp.
func NewMovement(productID, warehouseID id.ID, mt MovementType, change types.Quantity, ref DocumentRef, notes, actor string) Movement {
	return Movement{
		LineID:         id.New(),
		ProductID:      productID,
		WarehouseID:    warehouseID,
		Type:           mt,
		QuantityChange: change,
		ReferenceType:  ref.Type,
		ReferenceID:    ref.ID,
		Notes:          notes,
		Actor:          actor,
		CreatedAt:      time.Now().UTC(),
	}
}

// WarehouseAllocation is one leg of a multi-warehouse reservation.
// The caller must persist these against its own line items: a sales order
// line may be fulfilled from several warehouses.
type WarehouseAllocation struct {
	WarehouseID id.ID          `json:"warehouseId"`
	Quantity    types.Quantity `json:"quantity"`
}

// AvailabilityLine is one requested line of an advisory availability check.
type AvailabilityLine struct {
	ProductID id.ID          `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`
}

// WarehouseAvailability is per-warehouse availability for a product.
type WarehouseAvailability struct {
	WarehouseID id.ID          `json:"warehouseId"`
	Quantity    types.Quantity `json:"quantity"`
	Reserved    types.Quantity `json:"reserved"`
	Available   types.Quantity `json:"available"`
}

// Availability aggregates a product's stock across warehouses.
type Availability struct {
	ProductID      id.ID                   `json:"productId"`
	TotalAvailable types.Quantity          `json:"totalAvailable"`
	PerWarehouse   []WarehouseAvailability `json:"perWarehouse"`
}
