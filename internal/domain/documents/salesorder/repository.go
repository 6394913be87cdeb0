package salesorder

import (
	"context"
	"time"

	"stokado/internal/core/id"
)

// Filter for listing sales orders.
type Filter struct {
	Status   *Status
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

// Repository defines the interface for SalesOrder persistence.
// Lines and allocations are saved separately so services can persist
// reservation results without rewriting the document header.
type Repository interface {
	Create(ctx context.Context, doc *SalesOrder) error
	GetByID(ctx context.Context, id id.ID) (*SalesOrder, error)
	Update(ctx context.Context, doc *SalesOrder) error
	Delete(ctx context.Context, id id.ID) error
	List(ctx context.Context, filter Filter) ([]*SalesOrder, error)

	SaveLines(ctx context.Context, docID id.ID, lines []Line) error
	GetLines(ctx context.Context, docID id.ID) ([]Line, error)

	SaveAllocations(ctx context.Context, lineID id.ID, allocations []Allocation) error
	GetAllocations(ctx context.Context, docID id.ID) (map[id.ID][]Allocation, error)
	DeleteAllocations(ctx context.Context, docID id.ID) error
}
