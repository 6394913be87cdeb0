package dto

import (
	"time"

	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/documents/goodsreceipt"
)

// --- Request DTOs ---

// CreateGoodsReceiptRequest is the request body for creating a goods receipt.
type CreateGoodsReceiptRequest struct {
	Date         *time.Time                `json:"date"`
	WarehouseID  string                    `json:"warehouseId" binding:"required"`
	SupplierName string                    `json:"supplierName" binding:"required"`
	Comment      *string                   `json:"comment"`
	Lines        []GoodsReceiptLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// GoodsReceiptLineRequest is a line in create/update requests.
type GoodsReceiptLineRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
}

// ToEntity converts request to domain entity.
func (r *CreateGoodsReceiptRequest) ToEntity() *goodsreceipt.GoodsReceipt {
	warehouseID, _ := id.Parse(r.WarehouseID)

	doc := goodsreceipt.NewGoodsReceipt(warehouseID, r.SupplierName)
	if r.Date != nil {
		doc.Date = *r.Date
	}
	doc.Comment = r.Comment

	for _, line := range r.Lines {
		productID, _ := id.Parse(line.ProductID)
		doc.AddLine(productID, types.NewQuantityFromFloat64(line.Quantity))
	}

	return doc
}

// UpdateGoodsReceiptRequest is the request body for updating an unposted receipt.
type UpdateGoodsReceiptRequest struct {
	Date         *time.Time                `json:"date,omitempty"`
	WarehouseID  *string                   `json:"warehouseId,omitempty"`
	SupplierName *string                   `json:"supplierName,omitempty"`
	Comment      *string                   `json:"comment,omitempty"`
	Lines        []GoodsReceiptLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateGoodsReceiptRequest) ApplyTo(doc *goodsreceipt.GoodsReceipt) {
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.WarehouseID != nil {
		warehouseID, _ := id.Parse(*r.WarehouseID)
		doc.WarehouseID = warehouseID
	}
	if r.SupplierName != nil {
		doc.SupplierName = *r.SupplierName
	}
	if r.Comment != nil {
		doc.Comment = r.Comment
	}

	// If lines are provided, rebuild them
	if r.Lines != nil {
		doc.Lines = doc.Lines[:0]
		for _, line := range r.Lines {
			productID, _ := id.Parse(line.ProductID)
			doc.AddLine(productID, types.NewQuantityFromFloat64(line.Quantity))
		}
	}
}

// --- Response DTOs ---

// GoodsReceiptResponse represents a goods receipt in API responses.
type GoodsReceiptResponse struct {
	ID           string                     `json:"id"`
	Number       string                     `json:"number"`
	Date         time.Time                  `json:"date"`
	WarehouseID  string                     `json:"warehouseId"`
	SupplierName string                     `json:"supplierName"`
	Posted       bool                       `json:"posted"`
	PostedAt     *time.Time                 `json:"postedAt,omitempty"`
	Comment      *string                    `json:"comment,omitempty"`
	Lines        []GoodsReceiptLineResponse `json:"lines,omitempty"`
	Version      int                        `json:"version"`
	CreatedAt    time.Time                  `json:"createdAt"`
	UpdatedAt    time.Time                  `json:"updatedAt"`
}

// GoodsReceiptLineResponse represents a line in API responses.
type GoodsReceiptLineResponse struct {
	LineID    string  `json:"lineId"`
	LineNo    int     `json:"lineNo"`
	ProductID string  `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

// FromGoodsReceipt converts domain entity to response DTO.
func FromGoodsReceipt(doc *goodsreceipt.GoodsReceipt) *GoodsReceiptResponse {
	resp := &GoodsReceiptResponse{
		ID:           doc.ID.String(),
		Number:       doc.Number,
		Date:         doc.Date,
		WarehouseID:  doc.WarehouseID.String(),
		SupplierName: doc.SupplierName,
		Posted:       doc.Posted,
		PostedAt:     doc.PostedAt,
		Comment:      doc.Comment,
		Version:      doc.Version,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}

	resp.Lines = make([]GoodsReceiptLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		resp.Lines[i] = GoodsReceiptLineResponse{
			LineID:    line.LineID.String(),
			LineNo:    line.LineNo,
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity.Float64(),
		}
	}

	return resp
}
