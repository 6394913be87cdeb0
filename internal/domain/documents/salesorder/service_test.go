package salesorder

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

// --- fakes ---

type memRepo struct {
	docs        map[id.ID]SalesOrder
	lines       map[id.ID][]Line
	allocations map[id.ID][]Allocation // keyed by line id
}

func newMemRepo() *memRepo {
	return &memRepo{
		docs:        make(map[id.ID]SalesOrder),
		lines:       make(map[id.ID][]Line),
		allocations: make(map[id.ID][]Allocation),
	}
}

func (m *memRepo) Create(_ context.Context, doc *SalesOrder) error {
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memRepo) GetByID(_ context.Context, docID id.ID) (*SalesOrder, error) {
	doc, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("sales order", docID)
	}
	out := doc
	return &out, nil
}

func (m *memRepo) Update(_ context.Context, doc *SalesOrder) error {
	if _, ok := m.docs[doc.ID]; !ok {
		return apperror.NewNotFound("sales order", doc.ID)
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memRepo) Delete(_ context.Context, docID id.ID) error {
	delete(m.docs, docID)
	delete(m.lines, docID)
	return nil
}

func (m *memRepo) List(_ context.Context, _ Filter) ([]*SalesOrder, error) {
	var out []*SalesOrder
	for _, doc := range m.docs {
		d := doc
		out = append(out, &d)
	}
	return out, nil
}

func (m *memRepo) SaveLines(_ context.Context, docID id.ID, lines []Line) error {
	stored := make([]Line, len(lines))
	copy(stored, lines)
	for i := range stored {
		stored[i].Allocations = nil
	}
	m.lines[docID] = stored
	return nil
}

func (m *memRepo) GetLines(_ context.Context, docID id.ID) ([]Line, error) {
	out := make([]Line, len(m.lines[docID]))
	copy(out, m.lines[docID])
	return out, nil
}

func (m *memRepo) SaveAllocations(_ context.Context, lineID id.ID, allocations []Allocation) error {
	stored := make([]Allocation, len(allocations))
	copy(stored, allocations)
	m.allocations[lineID] = stored
	return nil
}

func (m *memRepo) GetAllocations(_ context.Context, docID id.ID) (map[id.ID][]Allocation, error) {
	out := make(map[id.ID][]Allocation)
	for _, line := range m.lines[docID] {
		if allocs, ok := m.allocations[line.LineID]; ok {
			out[line.LineID] = allocs
		}
	}
	return out, nil
}

func (m *memRepo) DeleteAllocations(_ context.Context, docID id.ID) error {
	for _, line := range m.lines[docID] {
		delete(m.allocations, line.LineID)
	}
	return nil
}

// fakeLedger tracks per-product available stock and records calls.
type fakeLedger struct {
	available map[id.ID]types.Quantity
	warehouse id.ID

	reserves   []id.ID
	releases   []id.ID
	releaseAts []warehouseRelease
	deducts    []id.ID
}

// warehouseRelease records one ReleaseAt call.
type warehouseRelease struct {
	product   id.ID
	warehouse id.ID
	quantity  types.Quantity
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		available: make(map[id.ID]types.Quantity),
		warehouse: id.New(),
	}
}

func (f *fakeLedger) Reserve(_ context.Context, productID id.ID, quantity types.Quantity, _ ledger.DocumentRef) ([]ledger.WarehouseAllocation, error) {
	if f.available[productID] < quantity {
		return nil, apperror.NewInsufficientStock(productID.String(), quantity.Float64(), f.available[productID].Float64())
	}
	f.available[productID] -= quantity
	f.reserves = append(f.reserves, productID)
	return []ledger.WarehouseAllocation{{WarehouseID: f.warehouse, Quantity: quantity}}, nil
}

func (f *fakeLedger) Release(_ context.Context, productID id.ID, quantity types.Quantity, _ ledger.DocumentRef) error {
	f.available[productID] += quantity
	f.releases = append(f.releases, productID)
	return nil
}

func (f *fakeLedger) ReleaseAt(_ context.Context, productID, warehouseID id.ID, quantity types.Quantity, _ ledger.DocumentRef) error {
	f.available[productID] += quantity
	f.releaseAts = append(f.releaseAts, warehouseRelease{productID, warehouseID, quantity})
	return nil
}

func (f *fakeLedger) Deduct(_ context.Context, productID, _ id.ID, _ types.Quantity, _ ledger.DocumentRef) error {
	f.deducts = append(f.deducts, productID)
	return nil
}

// memTxManager restores repo and ledger state on error, standing in for
// transaction rollback.
type memTxManager struct {
	repo   *memRepo
	ledger *fakeLedger
}

func (m *memTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	docs := make(map[id.ID]SalesOrder, len(m.repo.docs))
	for k, v := range m.repo.docs {
		docs[k] = v
	}
	lines := make(map[id.ID][]Line, len(m.repo.lines))
	for k, v := range m.repo.lines {
		lines[k] = append([]Line(nil), v...)
	}
	allocs := make(map[id.ID][]Allocation, len(m.repo.allocations))
	for k, v := range m.repo.allocations {
		allocs[k] = append([]Allocation(nil), v...)
	}
	available := make(map[id.ID]types.Quantity, len(m.ledger.available))
	for k, v := range m.ledger.available {
		available[k] = v
	}

	if err := fn(ctx); err != nil {
		m.repo.docs = docs
		m.repo.lines = lines
		m.repo.allocations = allocs
		m.ledger.available = available
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

// --- fixture ---

type fixture struct {
	svc    *Service
	repo   *memRepo
	ledger *fakeLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	fl := newFakeLedger()
	svc := NewService(repo, fl, stubNumerator{}, &memTxManager{repo: repo, ledger: fl}, audit.Nop{})
	return &fixture{svc: svc, repo: repo, ledger: fl}
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func (f *fixture) draftOrder(t *testing.T, products ...id.ID) *SalesOrder {
	t.Helper()
	doc := NewSalesOrder("ACME Ltd")
	for _, p := range products {
		doc.AddLine(p, qty(10), types.MustMoney("25.50"))
	}
	require.NoError(t, f.svc.Create(context.Background(), doc))
	return doc
}

// --- tests ---

func TestCreate_GeneratesNumberAndTotals(t *testing.T) {
	f := newFixture(t)
	p := id.New()
	f.ledger.available[p] = qty(100)

	doc := f.draftOrder(t, p)
	assert.NotEmpty(t, doc.Number)
	assert.Equal(t, StatusDraft, doc.Status)
	assert.True(t, doc.TotalAmount.Equal(types.MustMoney("255")),
		"10 x 25.50, got %s", doc.TotalAmount)
}

func TestCreate_RejectsEmptyOrder(t *testing.T) {
	f := newFixture(t)
	doc := NewSalesOrder("ACME Ltd")

	err := f.svc.Create(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestSubmit_ReservesEveryLine(t *testing.T) {
	f := newFixture(t)
	p1, p2 := id.New(), id.New()
	f.ledger.available[p1] = qty(50)
	f.ledger.available[p2] = qty(50)

	doc := f.draftOrder(t, p1, p2)
	submitted, err := f.svc.Submit(context.Background(), doc.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusSubmitted, submitted.Status)
	assert.ElementsMatch(t, []id.ID{p1, p2}, f.ledger.reserves)
	for _, line := range submitted.Lines {
		require.Len(t, line.Allocations, 1)
		assert.Equal(t, qty(10), line.Allocations[0].Quantity)
	}
	assert.Equal(t, qty(40), f.ledger.available[p1])
}

func TestSubmit_ShortageOnSecondLineRollsBackFirst(t *testing.T) {
	f := newFixture(t)
	p1, p2 := id.New(), id.New()
	f.ledger.available[p1] = qty(50)
	f.ledger.available[p2] = qty(3) // not enough

	doc := f.draftOrder(t, p1, p2)
	_, err := f.svc.Submit(context.Background(), doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// rollback restored the first line's stock and the order stayed draft
	assert.Equal(t, qty(50), f.ledger.available[p1])
	got, err := f.svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status)
	for _, line := range got.Lines {
		assert.Empty(t, line.Allocations)
	}
}

func TestSubmit_OnlyFromDraft(t *testing.T) {
	f := newFixture(t)
	p := id.New()
	f.ledger.available[p] = qty(100)

	doc := f.draftOrder(t, p)
	_, err := f.svc.Submit(context.Background(), doc.ID)
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))
}

func TestShip_DeductsPerAllocation(t *testing.T) {
	f := newFixture(t)
	p := id.New()
	f.ledger.available[p] = qty(100)

	doc := f.draftOrder(t, p)
	_, err := f.svc.Submit(context.Background(), doc.ID)
	require.NoError(t, err)

	shipped, err := f.svc.Ship(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, shipped.Status)
	assert.Equal(t, []id.ID{p}, f.ledger.deducts)
}

func TestShip_RequiresSubmission(t *testing.T) {
	f := newFixture(t)
	p := id.New()
	f.ledger.available[p] = qty(100)

	doc := f.draftOrder(t, p)
	_, err := f.svc.Ship(context.Background(), doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))
	assert.Empty(t, f.ledger.deducts)
}

func TestCancel_SubmittedReleasesReservations(t *testing.T) {
	f := newFixture(t)
	p := id.New()
	f.ledger.available[p] = qty(100)

	doc := f.draftOrder(t, p)
	_, err := f.svc.Submit(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(90), f.ledger.available[p])

	cancelled, err := f.svc.Cancel(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, qty(100), f.ledger.available[p])

	// Released against the stored allocation, never the policy walk.
	assert.Empty(t, f.ledger.releases)
	require.Len(t, f.ledger.releaseAts, 1)
	assert.Equal(t, p, f.ledger.releaseAts[0].product)
	assert.Equal(t, f.ledger.warehouse, f.ledger.releaseAts[0].warehouse)
	assert.Equal(t, qty(10), f.ledger.releaseAts[0].quantity)

	got, err := f.svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	for _, line := range got.Lines {
		assert.Empty(t, line.Allocations)
	}
}

func TestCancel_WithoutStoredAllocationsFallsBack(t *testing.T) {
	f := newFixture(t)
	p := id.New()
	f.ledger.available[p] = qty(100)

	doc := f.draftOrder(t, p)
	_, err := f.svc.Submit(context.Background(), doc.ID)
	require.NoError(t, err)

	// Orders submitted before allocations were persisted have no plan
	// to replay; those release by the aggregate walk.
	for _, line := range f.repo.lines[doc.ID] {
		delete(f.repo.allocations, line.LineID)
	}

	cancelled, err := f.svc.Cancel(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, []id.ID{p}, f.ledger.releases)
	assert.Empty(t, f.ledger.releaseAts)
	assert.Equal(t, qty(100), f.ledger.available[p])
}

func TestCancel_DraftSkipsLedger(t *testing.T) {
	f := newFixture(t)
	p := id.New()
	f.ledger.available[p] = qty(100)

	doc := f.draftOrder(t, p)
	cancelled, err := f.svc.Cancel(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Empty(t, f.ledger.releases)
}

func TestCancel_ShippedIsFinal(t *testing.T) {
	f := newFixture(t)
	p := id.New()
	f.ledger.available[p] = qty(100)

	doc := f.draftOrder(t, p)
	_, err := f.svc.Submit(context.Background(), doc.ID)
	require.NoError(t, err)
	_, err = f.svc.Ship(context.Background(), doc.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))
}

func TestUpdate_SubmittedOrderRejected(t *testing.T) {
	f := newFixture(t)
	p := id.New()
	f.ledger.available[p] = qty(100)

	doc := f.draftOrder(t, p)
	_, err := f.svc.Submit(context.Background(), doc.ID)
	require.NoError(t, err)

	doc.CustomerName = "Changed"
	err = f.svc.Update(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))
}
