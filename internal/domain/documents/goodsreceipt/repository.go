package goodsreceipt

import (
	"context"
	"time"

	"stokado/internal/core/id"
)

// Filter for listing goods receipts.
type Filter struct {
	WarehouseID *id.ID
	Posted      *bool
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}

// Repository defines the interface for GoodsReceipt persistence.
type Repository interface {
	Create(ctx context.Context, doc *GoodsReceipt) error
	GetByID(ctx context.Context, id id.ID) (*GoodsReceipt, error)
	Update(ctx context.Context, doc *GoodsReceipt) error
	Delete(ctx context.Context, id id.ID) error
	List(ctx context.Context, filter Filter) ([]*GoodsReceipt, error)

	SaveLines(ctx context.Context, docID id.ID, lines []Line) error
	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
}
