package dto

import (
	"time"

	"stokado/internal/domain/ledger"
)

// --- Request DTOs for StockLedger operations ---

// DocumentRefRequest identifies the document driving a ledger operation.
type DocumentRefRequest struct {
	Type string `json:"type" binding:"required"`
	ID   string `json:"id" binding:"required"`
}

// ReserveStockRequest is the request body for POST /stock/reserve.
type ReserveStockRequest struct {
	ProductID string             `json:"productId" binding:"required"`
	Quantity  float64            `json:"quantity" binding:"required,gt=0"`
	Reference DocumentRefRequest `json:"reference" binding:"required"`
}

// ReleaseStockRequest is the request body for POST /stock/release.
// WarehouseID pins the release to one warehouse; without it the service
// walks warehouses in allocation-policy order.
type ReleaseStockRequest struct {
	ProductID   string             `json:"productId" binding:"required"`
	WarehouseID string             `json:"warehouseId"`
	Quantity    float64            `json:"quantity" binding:"required,gt=0"`
	Reference   DocumentRefRequest `json:"reference" binding:"required"`
}

// DeductStockRequest is the request body for POST /stock/deduct.
type DeductStockRequest struct {
	ProductID   string             `json:"productId" binding:"required"`
	WarehouseID string             `json:"warehouseId" binding:"required"`
	Quantity    float64            `json:"quantity" binding:"required,gt=0"`
	Reference   DocumentRefRequest `json:"reference" binding:"required"`
}

// AdjustStockRequest is the request body for POST /stock/adjust.
// Type selects the direction; quantity is always positive.
type AdjustStockRequest struct {
	ProductID   string  `json:"productId" binding:"required"`
	WarehouseID string  `json:"warehouseId" binding:"required"`
	Type        string  `json:"type" binding:"required,oneof=increase decrease"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	Reason      string  `json:"reason" binding:"required"`
}

// CheckStockLineRequest is one line of an availability check.
type CheckStockLineRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
}

// CheckStockRequest is the request body for POST /stock/check.
type CheckStockRequest struct {
	Lines []CheckStockLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// --- Response DTOs ---

// AllocationResponse is one warehouse portion of a reservation.
type AllocationResponse struct {
	WarehouseID string  `json:"warehouseId"`
	Quantity    float64 `json:"quantity"`
}

// ReserveStockResponse reports where a reservation landed.
type ReserveStockResponse struct {
	ProductID   string               `json:"productId"`
	Quantity    float64              `json:"quantity"`
	Allocations []AllocationResponse `json:"allocations"`
}

// FromAllocations converts ledger allocations to response DTOs.
func FromAllocations(allocations []ledger.WarehouseAllocation) []AllocationResponse {
	out := make([]AllocationResponse, len(allocations))
	for i, a := range allocations {
		out[i] = AllocationResponse{
			WarehouseID: a.WarehouseID.String(),
			Quantity:    a.Quantity.Float64(),
		}
	}
	return out
}

// AdjustStockResponse reports the on-hand quantity after an adjustment.
type AdjustStockResponse struct {
	ProductID   string  `json:"productId"`
	WarehouseID string  `json:"warehouseId"`
	Quantity    float64 `json:"quantity"`
}

// WarehouseAvailabilityResponse is per-warehouse stock state.
type WarehouseAvailabilityResponse struct {
	WarehouseID string  `json:"warehouseId"`
	Quantity    float64 `json:"quantity"`
	Reserved    float64 `json:"reserved"`
	Available   float64 `json:"available"`
}

// AvailabilityResponse is the aggregate availability for a product.
type AvailabilityResponse struct {
	ProductID      string                          `json:"productId"`
	TotalAvailable float64                         `json:"totalAvailable"`
	PerWarehouse   []WarehouseAvailabilityResponse `json:"perWarehouse"`
}

// FromAvailability converts domain availability to response DTO.
func FromAvailability(a ledger.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{
		ProductID:      a.ProductID.String(),
		TotalAvailable: a.TotalAvailable.Float64(),
		PerWarehouse:   make([]WarehouseAvailabilityResponse, len(a.PerWarehouse)),
	}
	for i, wh := range a.PerWarehouse {
		resp.PerWarehouse[i] = WarehouseAvailabilityResponse{
			WarehouseID: wh.WarehouseID.String(),
			Quantity:    wh.Quantity.Float64(),
			Reserved:    wh.Reserved.Float64(),
			Available:   wh.Available.Float64(),
		}
	}
	return resp
}

// CheckStockResponse reports whether every requested line is coverable.
type CheckStockResponse struct {
	Available bool `json:"available"`
}

// StockRecordResponse represents a stock record in API responses.
type StockRecordResponse struct {
	ProductID        string    `json:"productId"`
	WarehouseID      string    `json:"warehouseId"`
	Quantity         float64   `json:"quantity"`
	ReservedQuantity float64   `json:"reservedQuantity"`
	Available        float64   `json:"available"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// FromStockRecord converts entity to response DTO.
func FromStockRecord(r ledger.StockRecord) StockRecordResponse {
	return StockRecordResponse{
		ProductID:        r.ProductID.String(),
		WarehouseID:      r.WarehouseID.String(),
		Quantity:         r.Quantity.Float64(),
		ReservedQuantity: r.ReservedQuantity.Float64(),
		Available:        r.Available().Float64(),
		UpdatedAt:        r.UpdatedAt,
	}
}

// MovementResponse represents a ledger movement in API responses.
type MovementResponse struct {
	LineID         string    `json:"lineId"`
	ProductID      string    `json:"productId"`
	WarehouseID    string    `json:"warehouseId"`
	Type           string    `json:"type"`
	QuantityChange float64   `json:"quantityChange"`
	ReferenceType  string    `json:"referenceType"`
	ReferenceID    string    `json:"referenceId"`
	Notes          string    `json:"notes,omitempty"`
	Actor          string    `json:"actor"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FromMovement converts entity to response DTO.
func FromMovement(m ledger.Movement) MovementResponse {
	return MovementResponse{
		LineID:         m.LineID.String(),
		ProductID:      m.ProductID.String(),
		WarehouseID:    m.WarehouseID.String(),
		Type:           string(m.Type),
		QuantityChange: m.QuantityChange.Float64(),
		ReferenceType:  m.ReferenceType,
		ReferenceID:    m.ReferenceID.String(),
		Notes:          m.Notes,
		Actor:          m.Actor,
		CreatedAt:      m.CreatedAt,
	}
}
