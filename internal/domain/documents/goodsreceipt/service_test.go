package goodsreceipt

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/audit"
	"stokado/internal/domain/ledger"
	"stokado/pkg/numerator"
)

type memRepo struct {
	docs  map[id.ID]GoodsReceipt
	lines map[id.ID][]Line
}

func newMemRepo() *memRepo {
	return &memRepo{
		docs:  make(map[id.ID]GoodsReceipt),
		lines: make(map[id.ID][]Line),
	}
}

func (m *memRepo) Create(_ context.Context, doc *GoodsReceipt) error {
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memRepo) GetByID(_ context.Context, docID id.ID) (*GoodsReceipt, error) {
	doc, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("goods receipt", docID)
	}
	out := doc
	return &out, nil
}

func (m *memRepo) Update(_ context.Context, doc *GoodsReceipt) error {
	if _, ok := m.docs[doc.ID]; !ok {
		return apperror.NewNotFound("goods receipt", doc.ID)
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memRepo) Delete(_ context.Context, docID id.ID) error {
	delete(m.docs, docID)
	delete(m.lines, docID)
	return nil
}

func (m *memRepo) List(_ context.Context, _ Filter) ([]*GoodsReceipt, error) {
	var out []*GoodsReceipt
	for _, doc := range m.docs {
		d := doc
		out = append(out, &d)
	}
	return out, nil
}

func (m *memRepo) SaveLines(_ context.Context, docID id.ID, lines []Line) error {
	stored := make([]Line, len(lines))
	copy(stored, lines)
	m.lines[docID] = stored
	return nil
}

func (m *memRepo) GetLines(_ context.Context, docID id.ID) ([]Line, error) {
	out := make([]Line, len(m.lines[docID]))
	copy(out, m.lines[docID])
	return out, nil
}

type receivedCall struct {
	productID   id.ID
	warehouseID id.ID
	quantity    types.Quantity
	ref         ledger.DocumentRef
}

type fakeLedger struct {
	received []receivedCall
	failAt   int // fail the Nth Receive call, 0 disables
}

func (f *fakeLedger) Receive(_ context.Context, productID, warehouseID id.ID, quantity types.Quantity, ref ledger.DocumentRef) error {
	if f.failAt > 0 && len(f.received)+1 >= f.failAt {
		return apperror.NewValidation("unknown product")
	}
	f.received = append(f.received, receivedCall{productID, warehouseID, quantity, ref})
	return nil
}

type memTxManager struct {
	repo   *memRepo
	ledger *fakeLedger
}

func (m *memTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	docs := make(map[id.ID]GoodsReceipt, len(m.repo.docs))
	for k, v := range m.repo.docs {
		docs[k] = v
	}
	received := make([]receivedCall, len(m.ledger.received))
	copy(received, m.ledger.received)

	if err := fn(ctx); err != nil {
		m.repo.docs = docs
		m.ledger.received = received
		return err
	}
	return nil
}

type stubNumerator struct{}

func (stubNumerator) GetNextNumber(_ context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	return fmt.Sprintf("%s-%d-00001", cfg.Prefix, period.Year()), nil
}

func (stubNumerator) SetNextNumber(context.Context, numerator.Config, time.Time, int64) error {
	return nil
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func newService(repo *memRepo, fl *fakeLedger) *Service {
	return NewService(repo, fl, stubNumerator{}, &memTxManager{repo: repo, ledger: fl}, audit.Nop{})
}

func TestCreate_ValidatesAndNumbers(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, &fakeLedger{})

	doc := NewGoodsReceipt(id.New(), "Supplier GmbH")
	doc.AddLine(id.New(), qty(5))
	require.NoError(t, svc.Create(context.Background(), doc))
	assert.NotEmpty(t, doc.Number)
	assert.False(t, doc.Posted)

	empty := NewGoodsReceipt(id.New(), "Supplier GmbH")
	err := svc.Create(context.Background(), empty)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestPost_BooksEveryLine(t *testing.T) {
	repo := newMemRepo()
	fl := &fakeLedger{}
	svc := newService(repo, fl)

	wh := id.New()
	p1, p2 := id.New(), id.New()
	doc := NewGoodsReceipt(wh, "Supplier GmbH")
	doc.AddLine(p1, qty(100))
	doc.AddLine(p2, qty(40))
	require.NoError(t, svc.Create(context.Background(), doc))

	posted, err := svc.Post(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.True(t, posted.Posted)
	require.NotNil(t, posted.PostedAt)

	require.Len(t, fl.received, 2)
	assert.Equal(t, p1, fl.received[0].productID)
	assert.Equal(t, wh, fl.received[0].warehouseID)
	assert.Equal(t, qty(100), fl.received[0].quantity)
	assert.Equal(t, "goods_receipt", fl.received[0].ref.Type)
	assert.Equal(t, doc.ID, fl.received[0].ref.ID)
}

func TestPost_TwiceFails(t *testing.T) {
	repo := newMemRepo()
	fl := &fakeLedger{}
	svc := newService(repo, fl)

	doc := NewGoodsReceipt(id.New(), "Supplier GmbH")
	doc.AddLine(id.New(), qty(10))
	require.NoError(t, svc.Create(context.Background(), doc))

	_, err := svc.Post(context.Background(), doc.ID)
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))
	assert.Len(t, fl.received, 1, "second post must not book again")
}

func TestPost_FailingLineRollsBackDocument(t *testing.T) {
	repo := newMemRepo()
	fl := &fakeLedger{failAt: 2}
	svc := newService(repo, fl)

	doc := NewGoodsReceipt(id.New(), "Supplier GmbH")
	doc.AddLine(id.New(), qty(10))
	doc.AddLine(id.New(), qty(20))
	require.NoError(t, svc.Create(context.Background(), doc))

	_, err := svc.Post(context.Background(), doc.ID)
	require.Error(t, err)

	got, err := svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.False(t, got.Posted)
	assert.Empty(t, fl.received)
}

func TestUpdateAndDelete_BlockedOncePosted(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, &fakeLedger{})

	doc := NewGoodsReceipt(id.New(), "Supplier GmbH")
	doc.AddLine(id.New(), qty(10))
	require.NoError(t, svc.Create(context.Background(), doc))
	_, err := svc.Post(context.Background(), doc.ID)
	require.NoError(t, err)

	err = svc.Update(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))

	err = svc.Delete(context.Background(), doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))
}
