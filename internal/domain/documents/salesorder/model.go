// Package salesorder provides the SalesOrder document.
// Submitting an order reserves stock, shipping deducts it, cancelling
// releases it; the stock ledger records every step.
package salesorder

import (
	"context"
	"time"

	"stokado/internal/core/apperror"
	"stokado/internal/core/entity"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
)

// Status represents the sales order lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

// SalesOrder represents a customer order.
type SalesOrder struct {
	entity.BaseDocument

	// Number is the human-readable document number (SO-2026-00001)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	Status Status `db:"status" json:"status"`

	// CustomerName is free-form; counterparty management is out of scope
	CustomerName string `db:"customer_name" json:"customerName"`

	Comment *string `db:"comment" json:"comment,omitempty"`

	// TotalAmount is the sum of line amounts
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one ordered product position.
type Line struct {
	LineID    id.ID `db:"line_id" json:"lineId"`
	LineNo    int   `db:"line_no" json:"lineNo"`
	ProductID id.ID `db:"product_id" json:"productId"`

	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice types.Money    `db:"unit_price" json:"unitPrice"`
	Amount    types.Money    `db:"amount" json:"amount"`

	// Allocations records which warehouses the reservation landed in.
	// Populated on submit, consumed on ship.
	Allocations []Allocation `db:"-" json:"allocations,omitempty"`
}

// Allocation is one warehouse leg of a line's reservation.
type Allocation struct {
	LineID      id.ID          `db:"line_id" json:"-"`
	WarehouseID id.ID          `db:"warehouse_id" json:"warehouseId"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
}

// NewSalesOrder creates a draft order.
func NewSalesOrder(customerName string) *SalesOrder {
	return &SalesOrder{
		BaseDocument: entity.NewBaseDocument(),
		Date:         time.Now().UTC(),
		Status:       StatusDraft,
		CustomerName: customerName,
		TotalAmount:  types.ZeroMoney(),
		Lines:        make([]Line, 0),
	}
}

// AddLine appends a product position and recalculates totals.
func (o *SalesOrder) AddLine(productID id.ID, quantity types.Quantity, unitPrice types.Money) {
	line := Line{
		LineID:    id.New(),
		LineNo:    len(o.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Amount:    unitPrice.Mul(quantityDecimal(quantity)),
	}
	o.Lines = append(o.Lines, line)
	o.recalculateTotals()
}

func (o *SalesOrder) recalculateTotals() {
	total := types.ZeroMoney()
	for _, line := range o.Lines {
		total = total.Add(line.Amount)
	}
	o.TotalAmount = total
}

// Validate implements entity.Validatable.
func (o *SalesOrder) Validate(ctx context.Context) error {
	if o.CustomerName == "" {
		return apperror.NewValidation("customer name is required").
			WithDetail("field", "customerName")
	}
	if len(o.Lines) == 0 {
		return apperror.NewValidation("order must have at least one line")
	}
	for _, line := range o.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("lineNo", line.LineNo)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("lineNo", line.LineNo)
		}
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price must be non-negative").
				WithDetail("lineNo", line.LineNo)
		}
	}
	return nil
}

// CanModify returns an error unless the order is still a draft.
func (o *SalesOrder) CanModify() error {
	if o.Status != StatusDraft {
		return apperror.NewConflict("only draft orders can be modified").
			WithDetail("status", string(o.Status))
	}
	return nil
}

// CanTransition checks the status state machine.
func (o *SalesOrder) CanTransition(to Status) error {
	allowed := map[Status][]Status{
		StatusDraft:     {StatusSubmitted, StatusCancelled},
		StatusSubmitted: {StatusShipped, StatusCancelled},
	}
	for _, s := range allowed[o.Status] {
		if s == to {
			return nil
		}
	}
	return apperror.NewConflict("invalid status transition").
		WithDetail("from", string(o.Status)).
		WithDetail("to", string(to))
}

func quantityDecimal(q types.Quantity) types.Money {
	return types.MustMoney(q.String())
}
