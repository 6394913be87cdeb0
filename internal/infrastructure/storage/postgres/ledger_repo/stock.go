// Package ledger_repo provides the PostgreSQL implementation of the stock
// ledger repository.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/domain/ledger"
	"stokado/internal/infrastructure/storage/postgres"
)

const (
	recordsTable    = "stock_records"
	movementsTable  = "stock_movements"
	warehousesTable = "cat_warehouses"
)

// Compile-time check.
var _ ledger.Repository = (*StockRepo)(nil)

// StockRepo implements ledger.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateRecord registers a zero-quantity record, idempotently.
func (r *StockRepo) CreateRecord(ctx context.Context, productID, warehouseID id.ID) error {
	sql := `
		INSERT INTO stock_records (product_id, warehouse_id, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, 0, 0, $3)
		ON CONFLICT (product_id, warehouse_id) DO NOTHING
	`

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, productID, warehouseID, time.Now().UTC()); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert record: %w", err))
	}
	return nil
}

// GetRecord returns the record, or NotFound.
func (r *StockRepo) GetRecord(ctx context.Context, productID, warehouseID id.ID) (ledger.StockRecord, error) {
	return r.getRecord(ctx, productID, warehouseID, false)
}

// GetRecordForUpdate returns the record with a row lock, or NotFound.
func (r *StockRepo) GetRecordForUpdate(ctx context.Context, productID, warehouseID id.ID) (ledger.StockRecord, error) {
	return r.getRecord(ctx, productID, warehouseID, true)
}

func (r *StockRepo) getRecord(ctx context.Context, productID, warehouseID id.ID, forUpdate bool) (ledger.StockRecord, error) {
	var rec ledger.StockRecord

	sql := `
		SELECT product_id, warehouse_id, quantity, reserved_quantity, updated_at
		FROM stock_records
		WHERE product_id = $1 AND warehouse_id = $2
	`
	if forUpdate {
		sql += " FOR UPDATE"
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rec, sql, productID, warehouseID); err != nil {
		if pgxscan.NotFound(err) {
			return rec, apperror.NewValidation("product is not stocked at this warehouse").
				WithDetail("product_id", productID.String()).
				WithDetail("warehouse_id", warehouseID.String())
		}
		return rec, postgres.TranslateError(fmt.Errorf("get record: %w", err))
	}

	return rec, nil
}

// GetRecordsByProduct returns all records for a product (no lock).
func (r *StockRepo) GetRecordsByProduct(ctx context.Context, productID id.ID) ([]ledger.StockRecord, error) {
	q := r.builder.Select(
		"product_id", "warehouse_id", "quantity", "reserved_quantity", "updated_at",
	).From(recordsTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("warehouse_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []ledger.StockRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("select records: %w", err))
	}

	return records, nil
}

// GetCandidatesForUpdate locks and returns allocation candidates for a
// product, joined with warehouse attributes. Only active warehouses qualify.
// warehouse_id ordering keeps concurrent reservations locking rows in the
// same sequence.
func (r *StockRepo) GetCandidatesForUpdate(ctx context.Context, productID id.ID) ([]ledger.Candidate, error) {
	sql := `
		SELECT sr.product_id, sr.warehouse_id, sr.quantity, sr.reserved_quantity, sr.updated_at,
		       w.code AS warehouse_code, w.type AS warehouse_type, w.priority AS warehouse_priority
		FROM stock_records sr
		JOIN cat_warehouses w ON w.id = sr.warehouse_id
		WHERE sr.product_id = $1 AND w.is_active
		ORDER BY sr.warehouse_id
		FOR UPDATE OF sr
	`

	var candidates []ledger.Candidate
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &candidates, sql, productID); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("lock candidates: %w", err))
	}

	return candidates, nil
}

// UpdateRecord persists new quantity/reserved values for a locked record.
func (r *StockRepo) UpdateRecord(ctx context.Context, rec ledger.StockRecord) error {
	q := r.builder.Update(recordsTable).
		Set("quantity", rec.Quantity).
		Set("reserved_quantity", rec.ReservedQuantity).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{
			"product_id":   rec.ProductID,
			"warehouse_id": rec.WarehouseID,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("update record: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock record", rec.ProductID)
	}

	return nil
}

// ListRecords returns paginated records for read views.
func (r *StockRepo) ListRecords(ctx context.Context, filter ledger.RecordFilter) ([]ledger.StockRecord, error) {
	q := r.builder.Select(
		"product_id", "warehouse_id", "quantity", "reserved_quantity", "updated_at",
	).From(recordsTable)

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.Or{
			squirrel.NotEq{"quantity": int64(0)},
			squirrel.NotEq{"reserved_quantity": int64(0)},
		})
	}

	q = q.OrderBy("product_id", "warehouse_id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []ledger.StockRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("select records: %w", err))
	}

	return records, nil
}

// CreateMovements batch inserts movements via COPY when inside a transaction.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []ledger.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	columns := []string{
		"line_id", "product_id", "warehouse_id", "type", "quantity_change",
		"reference_type", "reference_id", "notes", "actor", "created_at",
	}

	if r.txManager.GetTx(ctx) != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, []any{
				m.LineID, m.ProductID, m.WarehouseID, m.Type, m.QuantityChange,
				m.ReferenceType, m.ReferenceID, m.Notes, m.Actor, m.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, columns, rows); err != nil {
			return postgres.TranslateError(fmt.Errorf("copy movements: %w", err))
		}
		return nil
	}

	// Fallback for callers outside a transaction.
	q := r.builder.Insert(movementsTable).Columns(columns...)
	for _, m := range movements {
		q = q.Values(
			m.LineID, m.ProductID, m.WarehouseID, m.Type, m.QuantityChange,
			m.ReferenceType, m.ReferenceID, m.Notes, m.Actor, m.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert movements: %w", err))
	}

	return nil
}

// ListMovements returns paginated movement history, newest first.
func (r *StockRepo) ListMovements(ctx context.Context, filter ledger.MovementFilter) ([]ledger.Movement, error) {
	q := r.builder.Select(
		"line_id", "product_id", "warehouse_id", "type", "quantity_change",
		"reference_type", "reference_id", "notes", "actor", "created_at",
	).From(movementsTable)

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.Reference != nil {
		q = q.Where(squirrel.Eq{
			"reference_type": filter.Reference.Type,
			"reference_id":   filter.Reference.ID,
		})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("created_at DESC", "line_id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []ledger.Movement
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("select movements: %w", err))
	}

	return movements, nil
}

// HasProductMovements reports whether any movement references the product.
func (r *StockRepo) HasProductMovements(ctx context.Context, productID id.ID) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"product_id": productID})
}

// HasWarehouseMovements reports whether any movement references the warehouse.
func (r *StockRepo) HasWarehouseMovements(ctx context.Context, warehouseID id.ID) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"warehouse_id": warehouseID})
}

func (r *StockRepo) exists(ctx context.Context, cond squirrel.Eq) (bool, error) {
	q := r.builder.Select("1").From(movementsTable).Where(cond).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &one, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return false, nil
		}
		return false, postgres.TranslateError(fmt.Errorf("check movements: %w", err))
	}

	return true, nil
}
