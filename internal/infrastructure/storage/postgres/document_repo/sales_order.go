// Package document_repo provides PostgreSQL implementations for document
// repositories.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/domain/documents/salesorder"
	"stokado/internal/infrastructure/storage/postgres"
)

const (
	salesOrdersTable          = "doc_sales_orders"
	salesOrderLinesTable      = "doc_sales_order_lines"
	salesOrderAllocationsTable = "doc_sales_order_allocations"
)

var salesOrderColumns = []string{
	"id", "version", "number", "date", "status", "customer_name",
	"comment", "total_amount",
	"created_at", "updated_at", "created_by", "updated_by",
}

// Compile-time check.
var _ salesorder.Repository = (*SalesOrderRepo)(nil)

// SalesOrderRepo implements salesorder.Repository.
type SalesOrderRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewSalesOrderRepo creates a new sales order repository.
func NewSalesOrderRepo(txManager *postgres.TxManager) *SalesOrderRepo {
	return &SalesOrderRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *SalesOrderRepo) Create(ctx context.Context, doc *salesorder.SalesOrder) error {
	q := r.builder.Insert(salesOrdersTable).
		Columns(salesOrderColumns...).
		Values(
			doc.ID, doc.Version, doc.Number, doc.Date, doc.Status, doc.CustomerName,
			doc.Comment, doc.TotalAmount,
			doc.CreatedAt, doc.UpdatedAt, doc.CreatedBy, doc.UpdatedBy,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert sales order: %w", err))
	}
	return nil
}

func (r *SalesOrderRepo) GetByID(ctx context.Context, docID id.ID) (*salesorder.SalesOrder, error) {
	q := r.builder.Select(salesOrderColumns...).From(salesOrdersTable).
		Where(squirrel.Eq{"id": docID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc salesorder.SalesOrder
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sales order", docID)
		}
		return nil, postgres.TranslateError(fmt.Errorf("get sales order: %w", err))
	}

	return &doc, nil
}

func (r *SalesOrderRepo) Update(ctx context.Context, doc *salesorder.SalesOrder) error {
	q := r.builder.Update(salesOrdersTable).
		Set("version", doc.Version).
		Set("date", doc.Date).
		Set("status", doc.Status).
		Set("customer_name", doc.CustomerName).
		Set("comment", doc.Comment).
		Set("total_amount", doc.TotalAmount).
		Set("updated_at", doc.UpdatedAt).
		Set("updated_by", doc.UpdatedBy).
		Where(squirrel.Eq{"id": doc.ID}).
		Where(squirrel.Lt{"version": doc.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("update sales order: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict("sales order was modified concurrently").
			WithDetail("id", doc.ID.String())
	}
	return nil
}

func (r *SalesOrderRepo) Delete(ctx context.Context, docID id.ID) error {
	querier := r.txManager.GetQuerier(ctx)

	// allocations reference lines, lines reference the document
	delAllocs := `
		DELETE FROM doc_sales_order_allocations
		WHERE line_id IN (SELECT line_id FROM doc_sales_order_lines WHERE doc_id = $1)
	`
	if _, err := querier.Exec(ctx, delAllocs, docID); err != nil {
		return postgres.TranslateError(fmt.Errorf("delete allocations: %w", err))
	}
	if _, err := querier.Exec(ctx, "DELETE FROM doc_sales_order_lines WHERE doc_id = $1", docID); err != nil {
		return postgres.TranslateError(fmt.Errorf("delete lines: %w", err))
	}

	tag, err := querier.Exec(ctx, "DELETE FROM doc_sales_orders WHERE id = $1", docID)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("delete sales order: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sales order", docID)
	}
	return nil
}

func (r *SalesOrderRepo) List(ctx context.Context, filter salesorder.Filter) ([]*salesorder.SalesOrder, error) {
	q := r.builder.Select(salesOrderColumns...).From(salesOrdersTable)

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.ToDate})
	}

	q = q.OrderBy("date DESC", "number DESC")
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

	var docs []*salesorder.SalesOrder
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &docs, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("select sales orders: %w", err))
	}

	return docs, nil
}

// SaveLines replaces the document's lines. Allocations are cascaded away
// with the old lines; the service re-saves them on submit.
func (r *SalesOrderRepo) SaveLines(ctx context.Context, docID id.ID, lines []salesorder.Line) error {
	querier := r.txManager.GetQuerier(ctx)

	delAllocs := `
		DELETE FROM doc_sales_order_allocations
		WHERE line_id IN (SELECT line_id FROM doc_sales_order_lines WHERE doc_id = $1)
	`
	if _, err := querier.Exec(ctx, delAllocs, docID); err != nil {
		return postgres.TranslateError(fmt.Errorf("delete allocations: %w", err))
	}
	if _, err := querier.Exec(ctx, "DELETE FROM doc_sales_order_lines WHERE doc_id = $1", docID); err != nil {
		return postgres.TranslateError(fmt.Errorf("delete lines: %w", err))
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.builder.Insert(salesOrderLinesTable).Columns(
		"line_id", "doc_id", "line_no", "product_id", "quantity", "unit_price", "amount",
	)
	for _, line := range lines {
		q = q.Values(line.LineID, docID, line.LineNo, line.ProductID, line.Quantity, line.UnitPrice, line.Amount)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert lines: %w", err))
	}

	return nil
}

func (r *SalesOrderRepo) GetLines(ctx context.Context, docID id.ID) ([]salesorder.Line, error) {
	q := r.builder.Select(
		"line_id", "line_no", "product_id", "quantity", "unit_price", "amount",
	).From(salesOrderLinesTable).
		Where(squirrel.Eq{"doc_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []salesorder.Line
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("select lines: %w", err))
	}

	return lines, nil
}

func (r *SalesOrderRepo) SaveAllocations(ctx context.Context, lineID id.ID, allocations []salesorder.Allocation) error {
	querier := r.txManager.GetQuerier(ctx)

	if _, err := querier.Exec(ctx, "DELETE FROM doc_sales_order_allocations WHERE line_id = $1", lineID); err != nil {
		return postgres.TranslateError(fmt.Errorf("delete allocations: %w", err))
	}

	if len(allocations) == 0 {
		return nil
	}

	q := r.builder.Insert(salesOrderAllocationsTable).Columns("line_id", "warehouse_id", "quantity")
	for _, a := range allocations {
		q = q.Values(lineID, a.WarehouseID, a.Quantity)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert allocations: %w", err))
	}

	return nil
}

func (r *SalesOrderRepo) GetAllocations(ctx context.Context, docID id.ID) (map[id.ID][]salesorder.Allocation, error) {
	sql := `
		SELECT a.line_id, a.warehouse_id, a.quantity
		FROM doc_sales_order_allocations a
		JOIN doc_sales_order_lines l ON l.line_id = a.line_id
		WHERE l.doc_id = $1
		ORDER BY a.line_id, a.warehouse_id
	`

	var allocations []salesorder.Allocation
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &allocations, sql, docID); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("select allocations: %w", err))
	}

	out := make(map[id.ID][]salesorder.Allocation)
	for _, a := range allocations {
		out[a.LineID] = append(out[a.LineID], a)
	}
	return out, nil
}

func (r *SalesOrderRepo) DeleteAllocations(ctx context.Context, docID id.ID) error {
	sql := `
		DELETE FROM doc_sales_order_allocations
		WHERE line_id IN (SELECT line_id FROM doc_sales_order_lines WHERE doc_id = $1)
	`

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, docID); err != nil {
		return postgres.TranslateError(fmt.Errorf("delete allocations: %w", err))
	}
	return nil
}
