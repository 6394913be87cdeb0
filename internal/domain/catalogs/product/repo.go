package product

import (
	"context"

	"stokado/internal/core/id"
)

// Filter for listing products.
type Filter struct {
	ActiveOnly bool
	Search     string // matches code, name, sku
	Limit      int
	Offset     int
}

// Repository defines the interface for Product persistence.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id id.ID) (*Product, error)
	GetByCode(ctx context.Context, code string) (*Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id id.ID) error
	List(ctx context.Context, filter Filter) ([]*Product, error)
}
