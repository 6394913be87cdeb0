package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/domain/documents/goodsreceipt"
	"stokado/internal/infrastructure/storage/postgres"
)

const (
	goodsReceiptsTable     = "doc_goods_receipts"
	goodsReceiptLinesTable = "doc_goods_receipt_lines"
)

var goodsReceiptColumns = []string{
	"id", "version", "number", "date", "warehouse_id", "supplier_name",
	"posted", "posted_at", "comment",
	"created_at", "updated_at", "created_by", "updated_by",
}

// Compile-time check.
var _ goodsreceipt.Repository = (*GoodsReceiptRepo)(nil)

// GoodsReceiptRepo implements goodsreceipt.Repository.
type GoodsReceiptRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewGoodsReceiptRepo creates a new goods receipt repository.
func NewGoodsReceiptRepo(txManager *postgres.TxManager) *GoodsReceiptRepo {
	return &GoodsReceiptRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *GoodsReceiptRepo) Create(ctx context.Context, doc *goodsreceipt.GoodsReceipt) error {
	q := r.builder.Insert(goodsReceiptsTable).
		Columns(goodsReceiptColumns...).
		Values(
			doc.ID, doc.Version, doc.Number, doc.Date, doc.WarehouseID, doc.SupplierName,
			doc.Posted, doc.PostedAt, doc.Comment,
			doc.CreatedAt, doc.UpdatedAt, doc.CreatedBy, doc.UpdatedBy,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert goods receipt: %w", err))
	}
	return nil
}

func (r *GoodsReceiptRepo) GetByID(ctx context.Context, docID id.ID) (*goodsreceipt.GoodsReceipt, error) {
	q := r.builder.Select(goodsReceiptColumns...).From(goodsReceiptsTable).
		Where(squirrel.Eq{"id": docID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc goodsreceipt.GoodsReceipt
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("goods receipt", docID)
		}
		return nil, postgres.TranslateError(fmt.Errorf("get goods receipt: %w", err))
	}

	return &doc, nil
}

func (r *GoodsReceiptRepo) Update(ctx context.Context, doc *goodsreceipt.GoodsReceipt) error {
	q := r.builder.Update(goodsReceiptsTable).
		Set("version", doc.Version).
		Set("date", doc.Date).
		Set("warehouse_id", doc.WarehouseID).
		Set("supplier_name", doc.SupplierName).
		Set("posted", doc.Posted).
		Set("posted_at", doc.PostedAt).
		Set("comment", doc.Comment).
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
		return postgres.TranslateError(fmt.Errorf("update goods receipt: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict("goods receipt was modified concurrently").
			WithDetail("id", doc.ID.String())
	}
	return nil
}

func (r *GoodsReceiptRepo) Delete(ctx context.Context, docID id.ID) error {
	querier := r.txManager.GetQuerier(ctx)

	if _, err := querier.Exec(ctx, "DELETE FROM doc_goods_receipt_lines WHERE doc_id = $1", docID); err != nil {
		return postgres.TranslateError(fmt.Errorf("delete lines: %w", err))
	}

	tag, err := querier.Exec(ctx, "DELETE FROM doc_goods_receipts WHERE id = $1", docID)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("delete goods receipt: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("goods receipt", docID)
	}
	return nil
}

func (r *GoodsReceiptRepo) List(ctx context.Context, filter goodsreceipt.Filter) ([]*goodsreceipt.GoodsReceipt, error) {
	q := r.builder.Select(goodsReceiptColumns...).From(goodsReceiptsTable)

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Posted != nil {
		q = q.Where(squirrel.Eq{"posted": *filter.Posted})
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

	var docs []*goodsreceipt.GoodsReceipt
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &docs, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("select goods receipts: %w", err))
	}

	return docs, nil
}

// SaveLines replaces the document's lines.
func (r *GoodsReceiptRepo) SaveLines(ctx context.Context, docID id.ID, lines []goodsreceipt.Line) error {
	querier := r.txManager.GetQuerier(ctx)

	if _, err := querier.Exec(ctx, "DELETE FROM doc_goods_receipt_lines WHERE doc_id = $1", docID); err != nil {
		return postgres.TranslateError(fmt.Errorf("delete lines: %w", err))
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.builder.Insert(goodsReceiptLinesTable).Columns(
		"line_id", "doc_id", "line_no", "product_id", "quantity",
	)
	for _, line := range lines {
		q = q.Values(line.LineID, docID, line.LineNo, line.ProductID, line.Quantity)
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

func (r *GoodsReceiptRepo) GetLines(ctx context.Context, docID id.ID) ([]goodsreceipt.Line, error) {
	q := r.builder.Select(
		"line_id", "line_no", "product_id", "quantity",
	).From(goodsReceiptLinesTable).
		Where(squirrel.Eq{"doc_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []goodsreceipt.Line
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("select lines: %w", err))
	}

	return lines, nil
}
