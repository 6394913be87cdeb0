package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"stokado/internal/domain/catalogs/product"
)

// --- Request DTOs ---

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	Code        string                `json:"code"`
	Name        string                `json:"name" binding:"required"`
	SKU         *string               `json:"sku"`
	Barcode     *string               `json:"barcode"`
	Unit        product.UnitOfMeasure `json:"unit" binding:"required"`
	Weight      decimal.Decimal       `json:"weight"`
	Description *string               `json:"description"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Code, r.Name, r.Unit)
	p.SKU = r.SKU
	p.Barcode = r.Barcode
	p.Description = r.Description
	if !r.Weight.IsZero() {
		p.Weight = r.Weight
	}
	return p
}

// UpdateProductRequest is the request body for updating a product.
type UpdateProductRequest struct {
	Code        string                `json:"code"`
	Name        string                `json:"name" binding:"required"`
	SKU         *string               `json:"sku,omitempty"`
	Barcode     *string               `json:"barcode,omitempty"`
	Unit        product.UnitOfMeasure `json:"unit" binding:"required"`
	Weight      decimal.Decimal       `json:"weight"`
	Description *string               `json:"description,omitempty"`
	IsActive    bool                  `json:"isActive"`
	Version     int                   `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateProductRequest) ApplyTo(p *product.Product) {
	p.Code = r.Code
	p.Name = r.Name
	p.SKU = r.SKU
	p.Barcode = r.Barcode
	p.Unit = r.Unit
	p.Weight = r.Weight
	p.Description = r.Description
	p.IsActive = r.IsActive
	p.Version = r.Version
}

// --- Response DTOs ---

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID          string                `json:"id"`
	Code        string                `json:"code"`
	Name        string                `json:"name"`
	SKU         *string               `json:"sku,omitempty"`
	Barcode     *string               `json:"barcode,omitempty"`
	Unit        product.UnitOfMeasure `json:"unit"`
	Weight      decimal.Decimal       `json:"weight"`
	Description *string               `json:"description,omitempty"`
	IsActive    bool                  `json:"isActive"`
	Version     int                   `json:"version"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// FromProduct creates response DTO from domain entity.
func FromProduct(p *product.Product) *ProductResponse {
	return &ProductResponse{
		ID:          p.ID.String(),
		Code:        p.Code,
		Name:        p.Name,
		SKU:         p.SKU,
		Barcode:     p.Barcode,
		Unit:        p.Unit,
		Weight:      p.Weight,
		Description: p.Description,
		IsActive:    p.IsActive,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
