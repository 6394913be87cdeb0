package goodsreceipt

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

// NumeratorStrategy for receipt numbers. Strict keeps receipts gap-free for
// reconciliation with supplier paperwork.
const NumeratorStrategy = numerator.StrategyStrict

const referenceType = "goods_receipt"

// StockLedger is the slice of ledger operations posting drives.
type StockLedger interface {
	Receive(ctx context.Context, productID, warehouseID id.ID, quantity types.Quantity, ref ledger.DocumentRef) error
}

// Service provides business operations for goods receipts.
type Service struct {
	repo      Repository
	stock     StockLedger
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Logger
}

// NewService creates a new goods receipt service.
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

// Create persists a new draft receipt, generating a number when empty.
func (s *Service) Create(ctx context.Context, doc *GoodsReceipt) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if doc.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("GR"),
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

	logger.Info(ctx, "goods receipt created", "id", doc.ID, "number", doc.Number)
	return nil
}

// GetByID retrieves a receipt with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*GoodsReceipt, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// Update replaces lines of an unposted receipt.
func (s *Service) Update(ctx context.Context, doc *GoodsReceipt) error {
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

// Delete removes an unposted receipt.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if doc.Posted {
		return apperror.NewConflict("posted receipts cannot be deleted")
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, docID); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, referenceType, docID, audit.ActionDelete, nil)
	})
}

// Post books every line into the ledger and marks the receipt posted.
// Idempotence is enforced on the Posted flag: posting twice fails.
func (s *Service) Post(ctx context.Context, docID id.ID) (*GoodsReceipt, error) {
	var doc *GoodsReceipt
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Posted {
			return apperror.NewConflict("receipt is already posted").
				WithDetail("number", doc.Number)
		}

		ref := ledger.DocumentRef{Type: referenceType, ID: doc.ID}
		for _, line := range doc.Lines {
			if err := s.stock.Receive(ctx, line.ProductID, doc.WarehouseID, line.Quantity, ref); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		doc.Posted = true
		doc.PostedAt = &now
		doc.Touch()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.audit.LogChange(ctx, referenceType, doc.ID, audit.ActionPost, map[string]any{
			"number": doc.Number,
			"lines":  len(doc.Lines),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "goods receipt posted", "id", doc.ID, "number", doc.Number)
	return doc, nil
}

// List returns receipts matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*GoodsReceipt, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}
