package warehouse

import (
	"context"

	"stokado/internal/core/id"
)

// Filter for listing warehouses.
type Filter struct {
	ActiveOnly bool
	Type       *WarehouseType
	Limit      int
	Offset     int
}

// Repository defines the interface for Warehouse persistence.
type Repository interface {
	Create(ctx context.Context, w *Warehouse) error
	GetByID(ctx context.Context, id id.ID) (*Warehouse, error)
	GetByCode(ctx context.Context, code string) (*Warehouse, error)
	Update(ctx context.Context, w *Warehouse) error
	Delete(ctx context.Context, id id.ID) error
	List(ctx context.Context, filter Filter) ([]*Warehouse, error)
}
