// Package goodsreceipt provides the GoodsReceipt document.
// Posting a receipt books incoming quantities into the stock ledger.
package goodsreceipt

import (
	"context"
	"time"

	"stokado/internal/core/apperror"
	"stokado/internal/core/entity"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
)

// GoodsReceipt represents an incoming goods document.
type GoodsReceipt struct {
	entity.BaseDocument

	// Number is the human-readable document number (GR-2026-00001)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// WarehouseID is the receiving warehouse for all lines
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// SupplierName is free-form; counterparty management is out of scope
	SupplierName string `db:"supplier_name" json:"supplierName"`

	// Posted means the quantities are booked into the ledger
	Posted   bool       `db:"posted" json:"posted"`
	PostedAt *time.Time `db:"posted_at" json:"postedAt,omitempty"`

	Comment *string `db:"comment" json:"comment,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one received product position.
type Line struct {
	LineID    id.ID          `db:"line_id" json:"lineId"`
	LineNo    int            `db:"line_no" json:"lineNo"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
}

// NewGoodsReceipt creates a draft receipt.
func NewGoodsReceipt(warehouseID id.ID, supplierName string) *GoodsReceipt {
	return &GoodsReceipt{
		BaseDocument: entity.NewBaseDocument(),
		Date:         time.Now().UTC(),
		WarehouseID:  warehouseID,
		SupplierName: supplierName,
		Lines:        make([]Line, 0),
	}
}

// AddLine appends a product position.
func (r *GoodsReceipt) AddLine(productID id.ID, quantity types.Quantity) {
	r.Lines = append(r.Lines, Line{
		LineID:    id.New(),
		LineNo:    len(r.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
	})
}

// Validate implements entity.Validatable.
func (r *GoodsReceipt) Validate(ctx context.Context) error {
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("receipt must have at least one line")
	}
	for _, line := range r.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("lineNo", line.LineNo)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("lineNo", line.LineNo)
		}
	}
	return nil
}

// CanModify returns an error once the receipt is posted.
func (r *GoodsReceipt) CanModify() error {
	if r.Posted {
		return apperror.NewConflict("posted receipts cannot be modified")
	}
	return nil
}
