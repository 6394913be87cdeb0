// Package product provides the Product catalog.
// Products are the stock-keeping items tracked by the ledger.
package product

import (
	"context"

	"github.com/shopspring/decimal"

	"stokado/internal/core/apperror"
	"stokado/internal/core/entity"
)

// UnitOfMeasure defines how product quantity is counted.
type UnitOfMeasure string

const (
	UnitPiece UnitOfMeasure = "pcs"
	UnitKg    UnitOfMeasure = "kg"
	UnitLiter UnitOfMeasure = "l"
	UnitMeter UnitOfMeasure = "m"
	UnitBox   UnitOfMeasure = "box"
)

// Product represents a stock-keeping item.
type Product struct {
	entity.Catalog

	// SKU is the stock keeping unit identifier
	SKU *string `db:"sku" json:"sku,omitempty"`

	// Barcode (EAN-13, etc.)
	Barcode *string `db:"barcode" json:"barcode,omitempty"`

	// Unit is the unit of measure for ledger quantities
	Unit UnitOfMeasure `db:"unit" json:"unit"`

	// Weight in kg (for logistics)
	Weight decimal.Decimal `db:"weight" json:"weight"`

	// Description
	Description *string `db:"description" json:"description,omitempty"`
}

// NewProduct creates a new Product with required fields.
func NewProduct(code, name string, unit UnitOfMeasure) *Product {
	return &Product{
		Catalog: entity.NewCatalog(code, name),
		Unit:    unit,
		Weight:  decimal.Zero,
	}
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidUnit(p.Unit) {
		return apperror.NewValidation("invalid unit of measure").
			WithDetail("field", "unit").
			WithDetail("value", string(p.Unit))
	}

	return nil
}

func isValidUnit(u UnitOfMeasure) bool {
	switch u {
	case UnitPiece, UnitKg, UnitLiter, UnitMeter, UnitBox:
		return true
	}
	return false
}
