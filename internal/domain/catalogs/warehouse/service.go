package warehouse

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

// LedgerGuard is the ledger-side deletion guard: a warehouse with movement
// history must never be deleted, only deactivated.
type LedgerGuard interface {
	HasWarehouseMovements(ctx context.Context, warehouseID id.ID) (bool, error)
}

// Service provides business logic for the Warehouse catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator numerator.Generator
	guard     LedgerGuard
	audit     audit.Logger
}

// NewService creates a new Warehouse service.
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

// Create validates and persists a new warehouse, generating a code when
// none is provided.
func (s *Service) Create(ctx context.Context, w *Warehouse) error {
	if w == nil {
		return apperror.NewValidation("warehouse is required")
	}

	if w.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("WH"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		w.Code = code
	}

	if err := w.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, w); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "warehouse", w.ID, audit.ActionCreate, map[string]any{
			"code":     w.Code,
			"name":     w.Name,
			"type":     string(w.Type),
			"priority": w.Priority,
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "warehouse created", "warehouse_id", w.ID, "code", w.Code)
	return nil
}

// Get returns the warehouse by id.
func (s *Service) Get(ctx context.Context, warehouseID id.ID) (*Warehouse, error) {
	return s.repo.GetByID(ctx, warehouseID)
}

// GetByCode returns the warehouse by catalog code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Warehouse, error) {
	if code == "" {
		return nil, apperror.NewValidation("code is required")
	}
	return s.repo.GetByCode(ctx, code)
}

// Update validates and persists warehouse changes. Priority changes take
// effect on the next reservation.
func (s *Service) Update(ctx context.Context, w *Warehouse) error {
	if w == nil || id.IsNil(w.ID) {
		return apperror.NewValidation("warehouse id is required")
	}
	if err := w.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		w.Touch()
		if err := s.repo.Update(ctx, w); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "warehouse", w.ID, audit.ActionUpdate, map[string]any{
			"code":     w.Code,
			"name":     w.Name,
			"priority": w.Priority,
		})
	})
}

// Delete removes a warehouse without movement history. Warehouses the
// ledger has touched are deactivated instead.
func (s *Service) Delete(ctx context.Context, warehouseID id.ID) error {
	if id.IsNil(warehouseID) {
		return apperror.NewValidation("warehouse id is required")
	}

	has, err := s.guard.HasWarehouseMovements(ctx, warehouseID)
	if err != nil {
		return fmt.Errorf("check movements: %w", err)
	}
	if has {
		return apperror.NewConflict("warehouse has stock movements, deactivate it instead").
			WithDetail("warehouse_id", warehouseID.String())
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, warehouseID); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "warehouse", warehouseID, audit.ActionDelete, nil)
	})
}

// Deactivate marks the warehouse unusable: it is excluded from allocation
// candidates on the next reservation.
func (s *Service) Deactivate(ctx context.Context, warehouseID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		w, err := s.repo.GetByID(ctx, warehouseID)
		if err != nil {
			return err
		}
		if !w.IsActive {
			return nil
		}
		w.IsActive = false
		w.Touch()
		if err := s.repo.Update(ctx, w); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "warehouse", warehouseID, audit.ActionUpdate, map[string]any{
			"is_active": false,
		})
	})
}

// List returns warehouses matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Warehouse, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}
