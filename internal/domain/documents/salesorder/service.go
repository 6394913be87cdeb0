package salesorder

import (
	"context"
	"fmt"
	"time"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/tx"
	"stokado/internal/core/types"
	"stokado/internal/domain/audit"
	"stokado/internal/domain/ledger"
	"stokado/pkg/logger"
	"stokado/pkg/numerator"
)

// NumeratorStrategy for order numbers. Cached is fine here: gaps in order
// numbering are acceptable, unlike accounting documents.
const NumeratorStrategy = numerator.StrategyCached

const referenceType = "sales_order"

// StockLedger is the slice of ledger operations the order workflow drives.
type StockLedger interface {
	Reserve(ctx context.Context, productID id.ID, quantity types.Quantity, ref ledger.DocumentRef) ([]ledger.WarehouseAllocation, error)
	Release(ctx context.Context, productID id.ID, quantity types.Quantity, ref ledger.DocumentRef) error
	ReleaseAt(ctx context.Context, productID, warehouseID id.ID, quantity types.Quantity, ref ledger.DocumentRef) error
	Deduct(ctx context.Context, productID, warehouseID id.ID, quantity types.Quantity, ref ledger.DocumentRef) error
}

// Service provides business operations for sales orders.
type Service struct {
	repo      Repository
	stock     StockLedger
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Logger
}

// NewService creates a new sales order service.
func NewService(repo Repository, stock StockLedger, num numerator.Generator, txManager tx.Manager, auditLog audit.Logger) *Service {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		stock:     stock,
		numerator: num,
		txManager: txManager,
		audit:     auditLog,
	}
}

// Create persists a new draft order, generating a number when empty.
func (s *Service) Create(ctx context.Context, doc *SalesOrder) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if doc.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("SO"),
			&numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.audit.LogChange(ctx, referenceType, doc.ID, audit.ActionCreate, map[string]any{
			"number": doc.Number,
			"lines":  len(doc.Lines),
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "sales order created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves an order with lines and, past submission, allocations.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*SalesOrder, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	allocations, err := s.repo.GetAllocations(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get allocations: %w", err)
	}
	for i := range lines {
		lines[i].Allocations = allocations[lines[i].LineID]
	}
	doc.Lines = lines

	return doc, nil
}

// Update replaces lines of a draft order.
func (s *Service) Update(ctx context.Context, doc *SalesOrder) error {
	current, err := s.repo.GetByID(ctx, doc.ID)
	if err != nil {
		return err
	}
	if err := current.CanModify(); err != nil {
		return err
	}
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc.Touch()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.audit.LogChange(ctx, referenceType, doc.ID, audit.ActionUpdate, map[string]any{
			"lines": len(doc.Lines),
		})
	})
}

// Delete removes a draft order. Submitted orders must be cancelled first.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Status != StatusDraft && doc.Status != StatusCancelled {
		return apperror.NewConflict("only draft or cancelled orders can be deleted").
			WithDetail("status", string(doc.Status))
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, docID); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, referenceType, docID, audit.ActionDelete, nil)
	})
}

// Submit reserves stock for every line and moves the order to submitted.
// One transaction covers all lines: a shortage on any line rolls back the
// reservations already made for earlier lines.
func (s *Service) Submit(ctx context.Context, docID id.ID) (*SalesOrder, error) {
	var doc *SalesOrder
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanTransition(StatusSubmitted); err != nil {
			return err
		}

		ref := ledger.DocumentRef{Type: referenceType, ID: doc.ID}
		for i := range doc.Lines {
			line := &doc.Lines[i]
			allocs, err := s.stock.Reserve(ctx, line.ProductID, line.Quantity, ref)
			if err != nil {
				return err
			}

			line.Allocations = make([]Allocation, 0, len(allocs))
			for _, a := range allocs {
				line.Allocations = append(line.Allocations, Allocation{
					LineID:      line.LineID,
					WarehouseID: a.WarehouseID,
					Quantity:    a.Quantity,
				})
			}
			if err := s.repo.SaveAllocations(ctx, line.LineID, line.Allocations); err != nil {
				return fmt.Errorf("save allocations: %w", err)
			}
		}

		doc.Status = StatusSubmitted
		doc.Touch()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.audit.LogChange(ctx, referenceType, doc.ID, audit.ActionPost, map[string]any{
			"status": string(StatusSubmitted),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sales order submitted", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// Ship deducts the reserved stock per saved allocation and moves the order
// to shipped.
func (s *Service) Ship(ctx context.Context, docID id.ID) (*SalesOrder, error) {
	var doc *SalesOrder
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanTransition(StatusShipped); err != nil {
			return err
		}

		ref := ledger.DocumentRef{Type: referenceType, ID: doc.ID}
		for _, line := range doc.Lines {
			for _, alloc := range line.Allocations {
				if err := s.stock.Deduct(ctx, line.ProductID, alloc.WarehouseID, alloc.Quantity, ref); err != nil {
					return err
				}
			}
		}

		doc.Status = StatusShipped
		doc.Touch()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.audit.LogChange(ctx, referenceType, doc.ID, audit.ActionPost, map[string]any{
			"status": string(StatusShipped),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sales order shipped", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// Cancel releases reservations of a submitted order (drafts cancel without
// ledger activity) and moves it to cancelled.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*SalesOrder, error) {
	var doc *SalesOrder
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanTransition(StatusCancelled); err != nil {
			return err
		}

		if doc.Status == StatusSubmitted {
			// Release exactly what this order reserved, warehouse by
			// warehouse, so concurrent orders keep their reservations
			// where they placed them. The policy-order fallback only
			// covers lines whose allocation plan was never stored.
			ref := ledger.DocumentRef{Type: referenceType, ID: doc.ID}
			for _, line := range doc.Lines {
				if len(line.Allocations) == 0 {
					if err := s.stock.Release(ctx, line.ProductID, line.Quantity, ref); err != nil {
						return err
					}
					continue
				}
				for _, alloc := range line.Allocations {
					if err := s.stock.ReleaseAt(ctx, line.ProductID, alloc.WarehouseID, alloc.Quantity, ref); err != nil {
						return err
					}
				}
			}
			if err := s.repo.DeleteAllocations(ctx, doc.ID); err != nil {
				return fmt.Errorf("delete allocations: %w", err)
			}
		}

		doc.Status = StatusCancelled
		doc.Touch()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.audit.LogChange(ctx, referenceType, doc.ID, audit.ActionCancel, map[string]any{
			"status": string(StatusCancelled),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sales order cancelled", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*SalesOrder, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}
