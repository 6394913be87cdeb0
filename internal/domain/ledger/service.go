package ledger

import (
	"context"
	"fmt"

	"stokado/internal/core/apperror"
	appctx "stokado/internal/core/context"
	"stokado/internal/core/id"
	"stokado/internal/core/tx"
	"stokado/internal/core/types"
	"stokado/pkg/logger"
)

// Service provides the ledger operations. Each mutating operation runs as one
// atomic transaction: lock the records it needs, compute the new values,
// write records and movements together, commit. There is no partial apply;
// a failed operation leaves both tables untouched.
type Service struct {
	repo      Repository
	txManager tx.Manager
	policy    AllocationPolicy
	cache     AvailabilityCache // optional
}

// Config configures the ledger service.
type Config struct {
	Repo      Repository
	TxManager tx.Manager

	// Policy orders warehouses for reservation/release walks.
	// Defaults to PriorityPolicy.
	Policy AllocationPolicy

	// Cache is an optional availability read cache.
	Cache AvailabilityCache
}

// NewService creates a new ledger service.
func NewService(cfg Config) *Service {
	policy := cfg.Policy
	if policy == nil {
		policy = PriorityPolicy{}
	}
	return &Service{
		repo:      cfg.Repo,
		txManager: cfg.TxManager,
		policy:    policy,
		cache:     cfg.Cache,
	}
}

// EnsureRecord registers a zero-quantity stock record for (product, warehouse).
// Idempotent; called when a product is first stocked at a warehouse.
func (s *Service) EnsureRecord(ctx context.Context, productID, warehouseID id.ID) error {
	if id.IsNil(productID) || id.IsNil(warehouseID) {
		return apperror.NewValidation("product and warehouse are required")
	}
	if err := s.repo.CreateRecord(ctx, productID, warehouseID); err != nil {
		return fmt.Errorf("create stock record: %w", err)
	}
	return nil
}

// Reserve allocates the requested quantity against available stock across
// warehouses, greedily in policy order. All-or-nothing: the full allocation
// plan is computed and validated before any record is touched, and a shortage
// aborts with InsufficientStock and zero side effects.
//
// Returns the per-warehouse allocation; the caller must persist it against
// its own line items, since one order line may span several warehouses.
func (s *Service) Reserve(ctx context.Context, productID id.ID, quantity types.Quantity, ref DocumentRef) ([]WarehouseAllocation, error) {
	if err := validateOperation(productID, quantity, ref); err != nil {
		return nil, err
	}

	var allocations []WarehouseAllocation
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		candidates, err := s.repo.GetCandidatesForUpdate(ctx, productID)
		if err != nil {
			return fmt.Errorf("lock stock records: %w", err)
		}

		candidates, err = s.policy.Order(ctx, candidates)
		if err != nil {
			return err
		}

		plan, short := planAllocation(candidates, quantity)
		if short > 0 {
			return apperror.NewInsufficientStock(
				productID.String(),
				quantity.Float64(),
				totalAvailable(candidates).Float64(),
			)
		}

		actor := appctx.GetActor(ctx)
		movements := make([]Movement, 0, len(plan))
		for _, c := range candidates {
			alloc, ok := plan[c.WarehouseID]
			if !ok {
				continue
			}

			rec := c.StockRecord
			rec.ReservedQuantity += alloc
			if !rec.CheckInvariant() {
				return apperror.NewInvariantViolation("reservation would exceed on-hand quantity").
					WithDetail("product_id", productID.String()).
					WithDetail("warehouse_id", c.WarehouseID.String())
			}

			if err := s.repo.UpdateRecord(ctx, rec); err != nil {
				return fmt.Errorf("update stock record: %w", err)
			}

			movements = append(movements, NewMovement(
				productID, c.WarehouseID, MovementReservation, alloc.Neg(), ref, "", actor,
			))
			allocations = append(allocations, WarehouseAllocation{
				WarehouseID: c.WarehouseID,
				Quantity:    alloc,
			})
		}

		if err := s.repo.CreateMovements(ctx, movements); err != nil {
			return fmt.Errorf("create movements: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, productID)
	logger.Info(ctx, "stock reserved",
		"product_id", productID,
		"quantity", quantity,
		"warehouses", len(allocations),
		"reference", ref.Type,
	)
	return allocations, nil
}

// Release returns previously reserved quantity for a document, walking
// warehouses in policy order. It does not know which warehouses the
// document's reservation actually landed on, so callers that persisted an
// allocation plan must use ReleaseAt per warehouse instead; the policy walk
// is only safe when no plan survives. Releasing more than is currently
// reserved is a data inconsistency and fails with InvariantViolation rather
// than silently clamping.
func (s *Service) Release(ctx context.Context, productID id.ID, quantity types.Quantity, ref DocumentRef) error {
	if err := validateOperation(productID, quantity, ref); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		candidates, err := s.repo.GetCandidatesForUpdate(ctx, productID)
		if err != nil {
			return fmt.Errorf("lock stock records: %w", err)
		}

		candidates, err = s.policy.Order(ctx, candidates)
		if err != nil {
			return err
		}

		var reserved types.Quantity
		for _, c := range candidates {
			reserved += c.ReservedQuantity
		}
		if reserved < quantity {
			logger.Error(ctx, "release exceeds reserved quantity",
				"product_id", productID,
				"requested", quantity,
				"reserved", reserved,
				"reference", ref.Type,
			)
			return apperror.NewInvariantViolation("release exceeds reserved quantity").
				WithDetail("product_id", productID.String()).
				WithDetail("requested", quantity.Float64()).
				WithDetail("reserved", reserved.Float64())
		}

		actor := appctx.GetActor(ctx)
		remaining := quantity
		var movements []Movement
		for _, c := range candidates {
			if remaining.IsZero() {
				break
			}
			portion := c.ReservedQuantity.Min(remaining)
			if !portion.IsPositive() {
				continue
			}

			rec := c.StockRecord
			rec.ReservedQuantity -= portion
			if err := s.repo.UpdateRecord(ctx, rec); err != nil {
				return fmt.Errorf("update stock record: %w", err)
			}

			movements = append(movements, NewMovement(
				productID, c.WarehouseID, MovementRelease, portion, ref, "", actor,
			))
			remaining -= portion
		}

		if err := s.repo.CreateMovements(ctx, movements); err != nil {
			return fmt.Errorf("create movements: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, productID)
	logger.Info(ctx, "stock released",
		"product_id", productID,
		"quantity", quantity,
		"reference", ref.Type,
	)
	return nil
}

// ReleaseAt returns reserved quantity at one specific warehouse. Documents
// that persisted their allocation plan release through this, warehouse by
// warehouse, so cancelling one order can never strip a reservation another
// order holds elsewhere. Releasing more than the warehouse has reserved
// fails with InvariantViolation.
func (s *Service) ReleaseAt(ctx context.Context, productID, warehouseID id.ID, quantity types.Quantity, ref DocumentRef) error {
	if err := validateOperation(productID, quantity, ref); err != nil {
		return err
	}
	if id.IsNil(warehouseID) {
		return apperror.NewValidation("warehouse is required")
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetRecordForUpdate(ctx, productID, warehouseID)
		if err != nil {
			return err
		}

		if rec.ReservedQuantity < quantity {
			logger.Error(ctx, "release exceeds reserved quantity",
				"product_id", productID,
				"warehouse_id", warehouseID,
				"requested", quantity,
				"reserved", rec.ReservedQuantity,
				"reference", ref.Type,
			)
			return apperror.NewInvariantViolation("release exceeds reserved quantity").
				WithDetail("product_id", productID.String()).
				WithDetail("warehouse_id", warehouseID.String()).
				WithDetail("requested", quantity.Float64()).
				WithDetail("reserved", rec.ReservedQuantity.Float64())
		}

		rec.ReservedQuantity -= quantity
		if err := s.repo.UpdateRecord(ctx, rec); err != nil {
			return fmt.Errorf("update stock record: %w", err)
		}

		movement := NewMovement(
			productID, warehouseID, MovementRelease, quantity, ref, "", appctx.GetActor(ctx),
		)
		if err := s.repo.CreateMovements(ctx, []Movement{movement}); err != nil {
			return fmt.Errorf("create movements: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, productID)
	logger.Info(ctx, "stock released",
		"product_id", productID,
		"warehouse_id", warehouseID,
		"quantity", quantity,
		"reference", ref.Type,
	)
	return nil
}

// Deduct removes shipped stock from a warehouse, consuming its reservation:
// both quantity and reservedQuantity drop by the deducted amount. The caller
// owns the document state machine; the ledger only guards quantities.
func (s *Service) Deduct(ctx context.Context, productID, warehouseID id.ID, quantity types.Quantity, ref DocumentRef) error {
	if err := validateOperation(productID, quantity, ref); err != nil {
		return err
	}
	if id.IsNil(warehouseID) {
		return apperror.NewValidation("warehouse is required")
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetRecordForUpdate(ctx, productID, warehouseID)
		if err != nil {
			return err
		}

		if rec.Quantity < quantity || rec.ReservedQuantity < quantity {
			return apperror.NewInsufficientStock(
				productID.String(),
				quantity.Float64(),
				rec.ReservedQuantity.Min(rec.Quantity).Float64(),
			).WithDetail("warehouse_id", warehouseID.String())
		}

		rec.Quantity -= quantity
		rec.ReservedQuantity -= quantity
		if err := s.repo.UpdateRecord(ctx, rec); err != nil {
			return fmt.Errorf("update stock record: %w", err)
		}

		movement := NewMovement(
			productID, warehouseID, MovementDeduction, quantity.Neg(), ref, "", appctx.GetActor(ctx),
		)
		if err := s.repo.CreateMovements(ctx, []Movement{movement}); err != nil {
			return fmt.Errorf("create movements: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, productID)
	logger.Info(ctx, "stock deducted",
		"product_id", productID,
		"warehouse_id", warehouseID,
		"quantity", quantity,
		"reference", ref.Type,
	)
	return nil
}

// Adjust applies a signed manual correction (stocktake, damage, loss).
// The resulting quantity must stay >= 0 and >= reserved. Returns the new
// on-hand quantity.
func (s *Service) Adjust(ctx context.Context, productID, warehouseID id.ID, delta types.Quantity, reason string, ref *DocumentRef) (types.Quantity, error) {
	if id.IsNil(productID) || id.IsNil(warehouseID) {
		return 0, apperror.NewValidation("product and warehouse are required")
	}
	if delta.IsZero() {
		return 0, apperror.NewValidation("delta must be non-zero")
	}
	if reason == "" {
		return 0, apperror.NewValidation("reason is required").WithDetail("field", "reason")
	}

	var newQuantity types.Quantity
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetRecordForUpdate(ctx, productID, warehouseID)
		if err != nil {
			return err
		}

		next := rec.Quantity + delta
		if next.IsNegative() || next < rec.ReservedQuantity {
			return apperror.NewInsufficientStock(
				productID.String(),
				delta.Abs().Float64(),
				(rec.Quantity - rec.ReservedQuantity).Float64(),
			).WithDetail("warehouse_id", warehouseID.String()).
				WithDetail("reserved", rec.ReservedQuantity.Float64())
		}

		rec.Quantity = next
		if err := s.repo.UpdateRecord(ctx, rec); err != nil {
			return fmt.Errorf("update stock record: %w", err)
		}

		mt := MovementAdjustmentIn
		if delta.IsNegative() {
			mt = MovementAdjustmentOut
		}
		docRef := DocumentRef{}
		if ref != nil {
			docRef = *ref
		}
		movement := NewMovement(
			productID, warehouseID, mt, delta, docRef, reason, appctx.GetActor(ctx),
		)
		if err := s.repo.CreateMovements(ctx, []Movement{movement}); err != nil {
			return fmt.Errorf("create movements: %w", err)
		}

		newQuantity = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx, productID)
	logger.Info(ctx, "stock adjusted",
		"product_id", productID,
		"warehouse_id", warehouseID,
		"delta", delta,
		"reason", reason,
	)
	return newQuantity, nil
}

// Receive books incoming goods (goods receipt posting) as a positive
// adjustment carrying the receipt document reference.
func (s *Service) Receive(ctx context.Context, productID, warehouseID id.ID, quantity types.Quantity, ref DocumentRef) error {
	if err := validateOperation(productID, quantity, ref); err != nil {
		return err
	}
	if err := s.EnsureRecord(ctx, productID, warehouseID); err != nil {
		return err
	}
	_, err := s.Adjust(ctx, productID, warehouseID, quantity, "goods receipt", &ref)
	return err
}

// Availability returns total and per-warehouse availability for a product.
// Pure snapshot read; served from the cache when one is configured.
func (s *Service) Availability(ctx context.Context, productID id.ID) (Availability, error) {
	if id.IsNil(productID) {
		return Availability{}, apperror.NewValidation("product is required")
	}

	if s.cache != nil {
		if cached, err := s.cache.GetAvailability(ctx, productID); err != nil {
			logger.Warn(ctx, "availability cache read failed", "error", err)
		} else if cached != nil {
			return *cached, nil
		}
	}

	records, err := s.repo.GetRecordsByProduct(ctx, productID)
	if err != nil {
		return Availability{}, fmt.Errorf("get stock records: %w", err)
	}

	av := Availability{
		ProductID:    productID,
		PerWarehouse: make([]WarehouseAvailability, 0, len(records)),
	}
	for _, r := range records {
		av.TotalAvailable += r.Available()
		av.PerWarehouse = append(av.PerWarehouse, WarehouseAvailability{
			WarehouseID: r.WarehouseID,
			Quantity:    r.Quantity,
			Reserved:    r.ReservedQuantity,
			Available:   r.Available(),
		})
	}

	if s.cache != nil {
		if err := s.cache.SetAvailability(ctx, av); err != nil {
			logger.Warn(ctx, "availability cache write failed", "error", err)
		}
	}

	return av, nil
}

// CheckAvailability is the advisory preflight for a multi-line request.
// Non-locking and conservative: a true result can still race with concurrent
// reservations, so Reserve remains the authoritative gate.
func (s *Service) CheckAvailability(ctx context.Context, lines []AvailabilityLine) (bool, error) {
	if len(lines) == 0 {
		return false, apperror.NewValidation("at least one line is required")
	}

	// Aggregate per product: two lines of the same product compete for the
	// same availability.
	requested := make(map[id.ID]types.Quantity, len(lines))
	for i, line := range lines {
		if id.IsNil(line.ProductID) {
			return false, apperror.NewValidation("product is required").WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return false, apperror.NewValidation("quantity must be positive").WithDetail("lineNo", i+1)
		}
		requested[line.ProductID] += line.Quantity
	}

	for productID, qty := range requested {
		av, err := s.Availability(ctx, productID)
		if err != nil {
			return false, err
		}
		if av.TotalAvailable < qty {
			return false, nil
		}
	}
	return true, nil
}

// Movements returns paginated movement history.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListMovements(ctx, filter)
}

// Records returns paginated stock record views.
func (s *Service) Records(ctx context.Context, filter RecordFilter) ([]StockRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListRecords(ctx, filter)
}

// HasProductMovements is the deletion guard for the product catalog.
func (s *Service) HasProductMovements(ctx context.Context, productID id.ID) (bool, error) {
	return s.repo.HasProductMovements(ctx, productID)
}

// HasWarehouseMovements is the deletion guard for the warehouse catalog.
func (s *Service) HasWarehouseMovements(ctx context.Context, warehouseID id.ID) (bool, error) {
	return s.repo.HasWarehouseMovements(ctx, warehouseID)
}

// planAllocation walks ordered candidates greedily, consuming
// min(available, remaining) per warehouse. Returns the per-warehouse plan
// and the unallocatable remainder.
func planAllocation(ordered []Candidate, quantity types.Quantity) (map[id.ID]types.Quantity, types.Quantity) {
	plan := make(map[id.ID]types.Quantity)
	remaining := quantity
	for _, c := range ordered {
		if remaining.IsZero() {
			break
		}
		portion := c.Available().Min(remaining)
		if !portion.IsPositive() {
			continue
		}
		plan[c.WarehouseID] = portion
		remaining -= portion
	}
	return plan, remaining
}

func validateOperation(productID id.ID, quantity types.Quantity, _ DocumentRef) error {
	if id.IsNil(productID) {
		return apperror.NewValidation("product is required")
	}
	if !quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", quantity.Float64())
	}
	return nil
}

// invalidate drops the cached availability view. When the ledger op ran
// nested inside a document transaction the drop is deferred to the outer
// commit; invalidating earlier would let a concurrent read re-cache the
// pre-commit view for a full TTL.
func (s *Service) invalidate(ctx context.Context, productID id.ID) {
	if s.cache == nil {
		return
	}
	tx.AfterCommit(ctx, func(ctx context.Context) {
		if err := s.cache.Invalidate(ctx, productID); err != nil {
			logger.Warn(ctx, "availability cache invalidation failed",
				"product_id", productID,
				"error", err,
			)
		}
	})
}
