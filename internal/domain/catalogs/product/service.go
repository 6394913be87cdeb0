package product

import (
	"context"
	"fmt"
	"time"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/tx"
	"stokado/internal/domain/audit"
	"stokado/pkg/logger"
	"stokado/pkg/numerator"
)

// LedgerGuard is the ledger-side deletion guard: a product with movement
// history must never be deleted, only deactivated.
type LedgerGuard interface {
	HasProductMovements(ctx context.Context, productID id.ID) (bool, error)
}

// Service provides business logic for the Product catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator numerator.Generator
	guard     LedgerGuard
	audit     audit.Logger
}

// NewService creates a new Product service.
func NewService(repo Repository, txManager tx.Manager, num numerator.Generator, guard LedgerGuard, auditLog audit.Logger) *Service {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		numerator: num,
		guard:     guard,
		audit:     auditLog,
	}
}

// Create validates and persists a new product, generating a code when none
// is provided.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if p == nil {
		return apperror.NewValidation("product is required")
	}

	if p.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("PRD"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		p.Code = code
	}

	if err := p.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "product", p.ID, audit.ActionCreate, map[string]any{
			"code": p.Code,
			"name": p.Name,
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "product created", "product_id", p.ID, "code", p.Code)
	return nil
}

// Get returns the product by id.
func (s *Service) Get(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// GetByCode returns the product by catalog code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Product, error) {
	if code == "" {
		return nil, apperror.NewValidation("code is required")
	}
	return s.repo.GetByCode(ctx, code)
}

// Update validates and persists product changes.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if p == nil || id.IsNil(p.ID) {
		return apperror.NewValidation("product id is required")
	}
	if err := p.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p.Touch()
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "product", p.ID, audit.ActionUpdate, map[string]any{
			"code": p.Code,
			"name": p.Name,
		})
	})
}

// Delete removes a product without movement history. Products the ledger has
// touched are deactivated instead, preserving referential integrity of the
// movement log.
func (s *Service) Delete(ctx context.Context, productID id.ID) error {
	if id.IsNil(productID) {
		return apperror.NewValidation("product id is required")
	}

	has, err := s.guard.HasProductMovements(ctx, productID)
	if err != nil {
		return fmt.Errorf("check movements: %w", err)
	}
	if has {
		return apperror.NewConflict("product has stock movements, deactivate it instead").
			WithDetail("product_id", productID.String())
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, productID); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "product", productID, audit.ActionDelete, nil)
	})
}

// Deactivate marks the product unusable for new documents.
func (s *Service) Deactivate(ctx context.Context, productID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return nil
		}
		p.IsActive = false
		p.Touch()
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "product", productID, audit.ActionUpdate, map[string]any{
			"is_active": false,
		})
	})
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Product, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}
