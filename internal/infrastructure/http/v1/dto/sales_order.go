package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/documents/salesorder"
)

// --- Request DTOs ---

// CreateSalesOrderRequest is the request body for creating a sales order.
type CreateSalesOrderRequest struct {
	Date         *time.Time              `json:"date"`
	CustomerName string                  `json:"customerName" binding:"required"`
	Comment      *string                 `json:"comment"`
	Lines        []SalesOrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// SalesOrderLineRequest is a line in create/update requests.
type SalesOrderLineRequest struct {
	ProductID string          `json:"productId" binding:"required"`
	Quantity  float64         `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice" binding:"required"`
}

// ToEntity converts request to domain entity.
func (r *CreateSalesOrderRequest) ToEntity() *salesorder.SalesOrder {
	doc := salesorder.NewSalesOrder(r.CustomerName)
	if r.Date != nil {
		doc.Date = *r.Date
	}
	doc.Comment = r.Comment

	for _, line := range r.Lines {
		productID, _ := id.Parse(line.ProductID)
		doc.AddLine(productID, types.NewQuantityFromFloat64(line.Quantity), line.UnitPrice)
	}

	return doc
}

// UpdateSalesOrderRequest is the request body for updating a draft order.
type UpdateSalesOrderRequest struct {
	Date         *time.Time              `json:"date,omitempty"`
	CustomerName *string                 `json:"customerName,omitempty"`
	Comment      *string                 `json:"comment,omitempty"`
	Lines        []SalesOrderLineRequest `json:"lines,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateSalesOrderRequest) ApplyTo(doc *salesorder.SalesOrder) {
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.CustomerName != nil {
		doc.CustomerName = *r.CustomerName
	}
	if r.Comment != nil {
		doc.Comment = r.Comment
	}

	// If lines are provided, rebuild them
	if r.Lines != nil {
		doc.Lines = doc.Lines[:0]
		for _, line := range r.Lines {
			productID, _ := id.Parse(line.ProductID)
			doc.AddLine(productID, types.NewQuantityFromFloat64(line.Quantity), line.UnitPrice)
		}
	}
}

// --- Response DTOs ---

// SalesOrderResponse represents a sales order in API responses.
type SalesOrderResponse struct {
	ID           string                   `json:"id"`
	Number       string                   `json:"number"`
	Date         time.Time                `json:"date"`
	Status       salesorder.Status        `json:"status"`
	CustomerName string                   `json:"customerName"`
	Comment      *string                  `json:"comment,omitempty"`
	TotalAmount  decimal.Decimal          `json:"totalAmount"`
	Lines        []SalesOrderLineResponse `json:"lines,omitempty"`
	Version      int                      `json:"version"`
	CreatedAt    time.Time                `json:"createdAt"`
	UpdatedAt    time.Time                `json:"updatedAt"`
}

// SalesOrderLineResponse represents a line in API responses.
type SalesOrderLineResponse struct {
	LineID      string               `json:"lineId"`
	LineNo      int                  `json:"lineNo"`
	ProductID   string               `json:"productId"`
	Quantity    float64              `json:"quantity"`
	UnitPrice   decimal.Decimal      `json:"unitPrice"`
	Amount      decimal.Decimal      `json:"amount"`
	Allocations []AllocationResponse `json:"allocations,omitempty"`
}

// FromSalesOrder converts domain entity to response DTO.
func FromSalesOrder(doc *salesorder.SalesOrder) *SalesOrderResponse {
	resp := &SalesOrderResponse{
		ID:           doc.ID.String(),
		Number:       doc.Number,
		Date:         doc.Date,
		Status:       doc.Status,
		CustomerName: doc.CustomerName,
		Comment:      doc.Comment,
		TotalAmount:  doc.TotalAmount,
		Version:      doc.Version,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}

	resp.Lines = make([]SalesOrderLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		lineResp := SalesOrderLineResponse{
			LineID:    line.LineID.String(),
			LineNo:    line.LineNo,
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity.Float64(),
			UnitPrice: line.UnitPrice,
			Amount:    line.Amount,
		}
		for _, alloc := range line.Allocations {
			lineResp.Allocations = append(lineResp.Allocations, AllocationResponse{
				WarehouseID: alloc.WarehouseID.String(),
				Quantity:    alloc.Quantity.Float64(),
			})
		}
		resp.Lines[i] = lineResp
	}

	return resp
}
