package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/tx"
	"stokado/internal/core/types"
)

// --- in-memory fakes ---

type recordKey struct {
	product   id.ID
	warehouse id.ID
}

// memRepo is an in-memory Repository. Not safe for concurrent use; the
// concurrency guarantees under test belong to the SQL implementation, here
// we verify the service's arithmetic and atomicity discipline.
type memRepo struct {
	records    map[recordKey]StockRecord
	warehouses map[id.ID]warehouseAttrs
	movements  []Movement

	failUpdateAfter int // fail the Nth UpdateRecord call, 0 disables
	updateCalls     int
}

type warehouseAttrs struct {
	code     string
	whType   string
	priority int
	active   bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		records:    make(map[recordKey]StockRecord),
		warehouses: make(map[id.ID]warehouseAttrs),
	}
}

func (m *memRepo) addWarehouse(whID id.ID, code string, priority int) {
	m.warehouses[whID] = warehouseAttrs{code: code, whType: "general", priority: priority, active: true}
}

func (m *memRepo) seed(productID, whID id.ID, qty, reserved float64) {
	m.records[recordKey{productID, whID}] = StockRecord{
		ProductID:        productID,
		WarehouseID:      whID,
		Quantity:         types.NewQuantityFromFloat64(qty),
		ReservedQuantity: types.NewQuantityFromFloat64(reserved),
		UpdatedAt:        time.Now().UTC(),
	}
}

func (m *memRepo) CreateRecord(_ context.Context, productID, warehouseID id.ID) error {
	key := recordKey{productID, warehouseID}
	if _, ok := m.records[key]; ok {
		return nil
	}
	m.records[key] = StockRecord{
		ProductID:   productID,
		WarehouseID: warehouseID,
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

func (m *memRepo) GetRecord(_ context.Context, productID, warehouseID id.ID) (StockRecord, error) {
	rec, ok := m.records[recordKey{productID, warehouseID}]
	if !ok {
		return StockRecord{}, apperror.NewNotFound("stock record", productID)
	}
	return rec, nil
}

func (m *memRepo) GetRecordForUpdate(ctx context.Context, productID, warehouseID id.ID) (StockRecord, error) {
	return m.GetRecord(ctx, productID, warehouseID)
}

func (m *memRepo) GetRecordsByProduct(_ context.Context, productID id.ID) ([]StockRecord, error) {
	var out []StockRecord
	for _, rec := range m.records {
		if rec.ProductID == productID {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (m *memRepo) GetCandidatesForUpdate(_ context.Context, productID id.ID) ([]Candidate, error) {
	var out []Candidate
	for _, rec := range m.records {
		if rec.ProductID != productID {
			continue
		}
		attrs := m.warehouses[rec.WarehouseID]
		if !attrs.active {
			continue
		}
		out = append(out, Candidate{
			StockRecord:       rec,
			WarehouseCode:     attrs.code,
			WarehouseType:     attrs.whType,
			WarehousePriority: attrs.priority,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WarehouseID.String() < out[j].WarehouseID.String()
	})
	return out, nil
}

func (m *memRepo) UpdateRecord(_ context.Context, rec StockRecord) error {
	m.updateCalls++
	if m.failUpdateAfter > 0 && m.updateCalls >= m.failUpdateAfter {
		return apperror.NewContention(nil)
	}
	rec.UpdatedAt = time.Now().UTC()
	m.records[recordKey{rec.ProductID, rec.WarehouseID}] = rec
	return nil
}

func (m *memRepo) ListRecords(_ context.Context, filter RecordFilter) ([]StockRecord, error) {
	var out []StockRecord
	for _, rec := range m.records {
		if filter.ProductID != nil && rec.ProductID != *filter.ProductID {
			continue
		}
		if filter.WarehouseID != nil && rec.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.ExcludeZero && rec.Quantity.IsZero() && rec.ReservedQuantity.IsZero() {
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (m *memRepo) CreateMovements(_ context.Context, movements []Movement) error {
	m.movements = append(m.movements, movements...)
	return nil
}

func (m *memRepo) ListMovements(_ context.Context, filter MovementFilter) ([]Movement, error) {
	var out []Movement
	for _, mv := range m.movements {
		if filter.ProductID != nil && mv.ProductID != *filter.ProductID {
			continue
		}
		if filter.WarehouseID != nil && mv.WarehouseID != *filter.WarehouseID {
			continue
		}
		if filter.Type != nil && mv.Type != *filter.Type {
			continue
		}
		if filter.Reference != nil && (mv.ReferenceType != filter.Reference.Type || mv.ReferenceID != filter.Reference.ID) {
			continue
		}
		out = append(out, mv)
	}
	return out, nil
}

func (m *memRepo) HasProductMovements(_ context.Context, productID id.ID) (bool, error) {
	for _, mv := range m.movements {
		if mv.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) HasWarehouseMovements(_ context.Context, warehouseID id.ID) (bool, error) {
	for _, mv := range m.movements {
		if mv.WarehouseID == warehouseID {
			return true, nil
		}
	}
	return false, nil
}

func sortRecords(recs []StockRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].WarehouseID.String() < recs[j].WarehouseID.String()
	})
}

// memTxManager snapshots state before fn and restores it on error, mirroring
// the rollback semantics of the SQL transaction manager.
type memTxManager struct {
	repo *memRepo
}

func (m *memTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	records := make(map[recordKey]StockRecord, len(m.repo.records))
	for k, v := range m.repo.records {
		records[k] = v
	}
	movements := make([]Movement, len(m.repo.movements))
	copy(movements, m.repo.movements)

	if err := fn(ctx); err != nil {
		m.repo.records = records
		m.repo.movements = movements
		return err
	}
	return nil
}

// --- fixtures ---

type fixture struct {
	svc     *Service
	repo    *memRepo
	product id.ID
	whA     id.ID
	whB     id.ID
	whC     id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	f := &fixture{
		repo:    repo,
		product: id.New(),
		whA:     id.New(),
		whB:     id.New(),
		whC:     id.New(),
	}
	repo.addWarehouse(f.whA, "WH-2024-00001", 1)
	repo.addWarehouse(f.whB, "WH-2024-00002", 2)
	repo.addWarehouse(f.whC, "WH-2024-00003", 3)
	f.svc = NewService(Config{
		Repo:      repo,
		TxManager: &memTxManager{repo: repo},
	})
	return f
}

func (f *fixture) record(t *testing.T, whID id.ID) StockRecord {
	t.Helper()
	rec, err := f.repo.GetRecord(context.Background(), f.product, whID)
	require.NoError(t, err)
	return rec
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func orderRef() DocumentRef { return DocumentRef{Type: "sales_order", ID: id.New()} }

// --- tests ---

func TestReserve_SingleWarehouse(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 100, 0)

	allocs, err := f.svc.Reserve(context.Background(), f.product, qty(30), orderRef())
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	assert.Equal(t, f.whA, allocs[0].WarehouseID)
	assert.Equal(t, qty(30), allocs[0].Quantity)

	rec := f.record(t, f.whA)
	assert.Equal(t, qty(100), rec.Quantity)
	assert.Equal(t, qty(30), rec.ReservedQuantity)
	assert.Equal(t, qty(70), rec.Available())

	require.Len(t, f.repo.movements, 1)
	mv := f.repo.movements[0]
	assert.Equal(t, MovementReservation, mv.Type)
	assert.Equal(t, qty(30).Neg(), mv.QuantityChange)
	assert.False(t, id.IsNil(mv.LineID))
}

func TestReserve_SpansWarehousesInPriorityOrder(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 10, 0)
	f.repo.seed(f.product, f.whB, 50, 0)
	f.repo.seed(f.product, f.whC, 50, 0)

	allocs, err := f.svc.Reserve(context.Background(), f.product, qty(40), orderRef())
	require.NoError(t, err)
	require.Len(t, allocs, 2)

	// priority 1 drained first, remainder from priority 2
	assert.Equal(t, f.whA, allocs[0].WarehouseID)
	assert.Equal(t, qty(10), allocs[0].Quantity)
	assert.Equal(t, f.whB, allocs[1].WarehouseID)
	assert.Equal(t, qty(30), allocs[1].Quantity)

	assert.Equal(t, qty(0), f.record(t, f.whC).ReservedQuantity)
	require.Len(t, f.repo.movements, 2)
}

func TestReserve_InsufficientStockIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 10, 5)
	f.repo.seed(f.product, f.whB, 20, 0)

	_, err := f.svc.Reserve(context.Background(), f.product, qty(26), orderRef())
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 26.0, appErr.Details["requested"])
	assert.Equal(t, 25.0, appErr.Details["available"])

	// nothing moved
	assert.Equal(t, qty(5), f.record(t, f.whA).ReservedQuantity)
	assert.Equal(t, qty(0), f.record(t, f.whB).ReservedQuantity)
	assert.Empty(t, f.repo.movements)
}

func TestReserve_ExactlyAvailableSucceeds(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 10, 4)

	allocs, err := f.svc.Reserve(context.Background(), f.product, qty(6), orderRef())
	require.NoError(t, err)
	require.Len(t, allocs, 1)

	rec := f.record(t, f.whA)
	assert.Equal(t, rec.Quantity, rec.ReservedQuantity)
	assert.Equal(t, qty(0), rec.Available())
}

func TestReserve_RejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 10, 0)

	for _, q := range []types.Quantity{qty(0), qty(-5)} {
		_, err := f.svc.Reserve(context.Background(), f.product, q, orderRef())
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	}
	assert.Empty(t, f.repo.movements)
}

func TestReserve_MidFlightFailureRollsBackEarlierWarehouses(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 10, 0)
	f.repo.seed(f.product, f.whB, 10, 0)
	f.repo.failUpdateAfter = 2 // second warehouse update fails

	_, err := f.svc.Reserve(context.Background(), f.product, qty(15), orderRef())
	require.Error(t, err)

	// first warehouse's partial reservation undone by the transaction
	assert.Equal(t, qty(0), f.record(t, f.whA).ReservedQuantity)
	assert.Equal(t, qty(0), f.record(t, f.whB).ReservedQuantity)
	assert.Empty(t, f.repo.movements)
}

func TestRelease_RoundTripRestoresAvailability(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 10, 0)
	f.repo.seed(f.product, f.whB, 50, 0)
	ref := orderRef()

	_, err := f.svc.Reserve(context.Background(), f.product, qty(40), ref)
	require.NoError(t, err)

	err = f.svc.Release(context.Background(), f.product, qty(40), ref)
	require.NoError(t, err)

	assert.Equal(t, qty(0), f.record(t, f.whA).ReservedQuantity)
	assert.Equal(t, qty(0), f.record(t, f.whB).ReservedQuantity)
	assert.Equal(t, qty(10), f.record(t, f.whA).Quantity)
	assert.Equal(t, qty(50), f.record(t, f.whB).Quantity)

	// movement signs: reservations negative, releases positive, net zero
	var net types.Quantity
	for _, mv := range f.repo.movements {
		net += mv.QuantityChange
	}
	assert.Equal(t, qty(0), net)
	require.Len(t, f.repo.movements, 4)
}

func TestRelease_ExceedingReservedFailsWithoutMutation(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 100, 20)

	err := f.svc.Release(context.Background(), f.product, qty(30), orderRef())
	require.Error(t, err)
	assert.True(t, apperror.IsInvariantViolation(err))

	assert.Equal(t, qty(20), f.record(t, f.whA).ReservedQuantity)
	assert.Empty(t, f.repo.movements)
}

func TestReleaseAt_TargetsOnlyThatWarehouse(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 100, 60)
	f.repo.seed(f.product, f.whB, 50, 40)

	err := f.svc.ReleaseAt(context.Background(), f.product, f.whB, qty(40), orderRef())
	require.NoError(t, err)

	assert.Equal(t, qty(60), f.record(t, f.whA).ReservedQuantity)
	assert.Equal(t, qty(0), f.record(t, f.whB).ReservedQuantity)

	require.Len(t, f.repo.movements, 1)
	assert.Equal(t, MovementRelease, f.repo.movements[0].Type)
	assert.Equal(t, f.whB, f.repo.movements[0].WarehouseID)
	assert.Equal(t, qty(40), f.repo.movements[0].QuantityChange)
}

func TestReleaseAt_ExceedingWarehouseReservationFails(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 100, 50)
	f.repo.seed(f.product, f.whB, 50, 10)

	// Enough reserved in total, but not at the targeted warehouse.
	err := f.svc.ReleaseAt(context.Background(), f.product, f.whB, qty(30), orderRef())
	require.Error(t, err)
	assert.True(t, apperror.IsInvariantViolation(err))

	assert.Equal(t, qty(50), f.record(t, f.whA).ReservedQuantity)
	assert.Equal(t, qty(10), f.record(t, f.whB).ReservedQuantity)
	assert.Empty(t, f.repo.movements)
}

func TestReleaseAt_CancelledOrderKeepsOthersShippable(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 100, 0)
	f.repo.seed(f.product, f.whB, 50, 0)
	refA := orderRef()
	refB := orderRef()

	// Order A fills whA, order B overflows to whB.
	allocsA, err := f.svc.Reserve(context.Background(), f.product, qty(100), refA)
	require.NoError(t, err)
	require.Len(t, allocsA, 1)
	assert.Equal(t, f.whA, allocsA[0].WarehouseID)

	allocsB, err := f.svc.Reserve(context.Background(), f.product, qty(50), refB)
	require.NoError(t, err)
	require.Len(t, allocsB, 1)
	assert.Equal(t, f.whB, allocsB[0].WarehouseID)

	// Cancelling B must drain whB, not the policy-first whA.
	err = f.svc.ReleaseAt(context.Background(), f.product, allocsB[0].WarehouseID, allocsB[0].Quantity, refB)
	require.NoError(t, err)
	assert.Equal(t, qty(100), f.record(t, f.whA).ReservedQuantity)
	assert.Equal(t, qty(0), f.record(t, f.whB).ReservedQuantity)

	// Order A ships its stored allocation untouched.
	err = f.svc.Deduct(context.Background(), f.product, allocsA[0].WarehouseID, allocsA[0].Quantity, refA)
	require.NoError(t, err)
	assert.Equal(t, qty(0), f.record(t, f.whA).Quantity)
}

func TestDeduct_ConsumesReservation(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 100, 30)

	err := f.svc.Deduct(context.Background(), f.product, f.whA, qty(30), orderRef())
	require.NoError(t, err)

	rec := f.record(t, f.whA)
	assert.Equal(t, qty(70), rec.Quantity)
	assert.Equal(t, qty(0), rec.ReservedQuantity)
	assert.Equal(t, qty(70), rec.Available())

	require.Len(t, f.repo.movements, 1)
	assert.Equal(t, MovementDeduction, f.repo.movements[0].Type)
	assert.Equal(t, qty(30).Neg(), f.repo.movements[0].QuantityChange)
}

func TestDeduct_MoreThanReservedFails(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 100, 10)

	err := f.svc.Deduct(context.Background(), f.product, f.whA, qty(20), orderRef())
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	rec := f.record(t, f.whA)
	assert.Equal(t, qty(100), rec.Quantity)
	assert.Equal(t, qty(10), rec.ReservedQuantity)
}

func TestAdjust_IncreaseAndDecrease(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 50, 10)

	newQty, err := f.svc.Adjust(context.Background(), f.product, f.whA, qty(25), "stocktake surplus", nil)
	require.NoError(t, err)
	assert.Equal(t, qty(75), newQty)

	newQty, err = f.svc.Adjust(context.Background(), f.product, f.whA, qty(5).Neg(), "damaged goods", nil)
	require.NoError(t, err)
	assert.Equal(t, qty(70), newQty)

	require.Len(t, f.repo.movements, 2)
	assert.Equal(t, MovementAdjustmentIn, f.repo.movements[0].Type)
	assert.Equal(t, qty(25), f.repo.movements[0].QuantityChange)
	assert.Equal(t, "stocktake surplus", f.repo.movements[0].Notes)
	assert.Equal(t, MovementAdjustmentOut, f.repo.movements[1].Type)
	assert.Equal(t, qty(5).Neg(), f.repo.movements[1].QuantityChange)
}

func TestAdjust_CannotDropBelowReserved(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 50, 30)

	_, err := f.svc.Adjust(context.Background(), f.product, f.whA, qty(25).Neg(), "stocktake shortage", nil)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, qty(50), f.record(t, f.whA).Quantity)
}

func TestAdjust_RequiresReason(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 50, 0)

	_, err := f.svc.Adjust(context.Background(), f.product, f.whA, qty(5), "", nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = f.svc.Adjust(context.Background(), f.product, f.whA, qty(0), "noop", nil)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestReceive_CreatesRecordAndBooksIncoming(t *testing.T) {
	f := newFixture(t)
	ref := DocumentRef{Type: "goods_receipt", ID: id.New()}

	err := f.svc.Receive(context.Background(), f.product, f.whA, qty(120), ref)
	require.NoError(t, err)

	rec := f.record(t, f.whA)
	assert.Equal(t, qty(120), rec.Quantity)
	assert.Equal(t, qty(0), rec.ReservedQuantity)

	require.Len(t, f.repo.movements, 1)
	mv := f.repo.movements[0]
	assert.Equal(t, MovementAdjustmentIn, mv.Type)
	assert.Equal(t, "goods_receipt", mv.ReferenceType)
	assert.Equal(t, ref.ID, mv.ReferenceID)
}

func TestAvailability_AggregatesAcrossWarehouses(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 100, 30)
	f.repo.seed(f.product, f.whB, 50, 0)

	av, err := f.svc.Availability(context.Background(), f.product)
	require.NoError(t, err)
	assert.Equal(t, qty(120), av.TotalAvailable)
	require.Len(t, av.PerWarehouse, 2)

	// read is pure: repeating it changes nothing
	again, err := f.svc.Availability(context.Background(), f.product)
	require.NoError(t, err)
	assert.Equal(t, av, again)
	assert.Empty(t, f.repo.movements)
}

// fakeCache records invalidations; reads always miss.
type fakeCache struct {
	invalidated []id.ID
}

func (c *fakeCache) GetAvailability(context.Context, id.ID) (*Availability, error) {
	return nil, nil
}

func (c *fakeCache) SetAvailability(context.Context, Availability) error { return nil }

func (c *fakeCache) Invalidate(_ context.Context, productID id.ID) error {
	c.invalidated = append(c.invalidated, productID)
	return nil
}

func TestCacheInvalidation_DeferredToOuterCommit(t *testing.T) {
	f := newFixture(t)
	cache := &fakeCache{}
	svc := NewService(Config{
		Repo:      f.repo,
		TxManager: &memTxManager{repo: f.repo},
		Cache:     cache,
	})
	f.repo.seed(f.product, f.whA, 100, 0)

	// Simulates running nested inside a document transaction: the drop
	// must wait for the outer commit.
	ctx, hooks := tx.WithCommitHooks(context.Background())
	_, err := svc.Reserve(ctx, f.product, qty(10), orderRef())
	require.NoError(t, err)
	assert.Empty(t, cache.invalidated)

	hooks.Run(context.Background())
	assert.Equal(t, []id.ID{f.product}, cache.invalidated)
}

func TestCacheInvalidation_ImmediateOutsideTransaction(t *testing.T) {
	f := newFixture(t)
	cache := &fakeCache{}
	svc := NewService(Config{
		Repo:      f.repo,
		TxManager: &memTxManager{repo: f.repo},
		Cache:     cache,
	})
	f.repo.seed(f.product, f.whA, 100, 0)

	_, err := svc.Reserve(context.Background(), f.product, qty(10), orderRef())
	require.NoError(t, err)
	assert.Equal(t, []id.ID{f.product}, cache.invalidated)
}

func TestCheckAvailability_AggregatesDuplicateProductLines(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 50, 0)

	ok, err := f.svc.CheckAvailability(context.Background(), []AvailabilityLine{
		{ProductID: f.product, Quantity: qty(30)},
		{ProductID: f.product, Quantity: qty(25)},
	})
	require.NoError(t, err)
	assert.False(t, ok, "two lines of the same product compete for the same stock")

	ok, err = f.svc.CheckAvailability(context.Background(), []AvailabilityLine{
		{ProductID: f.product, Quantity: qty(30)},
		{ProductID: f.product, Quantity: qty(20)},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureRecord_Idempotent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.EnsureRecord(context.Background(), f.product, f.whA))
	require.NoError(t, f.svc.EnsureRecord(context.Background(), f.product, f.whA))

	rec := f.record(t, f.whA)
	assert.True(t, rec.Quantity.IsZero())
	assert.True(t, rec.ReservedQuantity.IsZero())
}

func TestMovements_FilterByReference(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 100, 0)
	refA := orderRef()
	refB := orderRef()

	_, err := f.svc.Reserve(context.Background(), f.product, qty(10), refA)
	require.NoError(t, err)
	_, err = f.svc.Reserve(context.Background(), f.product, qty(20), refB)
	require.NoError(t, err)

	got, err := f.svc.Movements(context.Background(), MovementFilter{Reference: &refA})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, refA.ID, got[0].ReferenceID)
}

func TestDeletionGuards(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 100, 0)

	has, err := f.svc.HasProductMovements(context.Background(), f.product)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = f.svc.Reserve(context.Background(), f.product, qty(1), orderRef())
	require.NoError(t, err)

	has, err = f.svc.HasProductMovements(context.Background(), f.product)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.svc.HasWarehouseMovements(context.Background(), f.whA)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.svc.HasWarehouseMovements(context.Background(), f.whB)
	require.NoError(t, err)
	assert.False(t, has)
}

// Ledger conservation: after an arbitrary mix of operations, on-hand quantity
// per warehouse equals the sum of non-reservation movement deltas, and the
// invariant holds on every record.
func TestLedger_ConservationAcrossMixedOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	receipt := DocumentRef{Type: "goods_receipt", ID: id.New()}
	order := orderRef()

	require.NoError(t, f.svc.Receive(ctx, f.product, f.whA, qty(100), receipt))
	require.NoError(t, f.svc.Receive(ctx, f.product, f.whB, qty(40), receipt))

	allocs, err := f.svc.Reserve(ctx, f.product, qty(110), order)
	require.NoError(t, err)

	for _, a := range allocs {
		require.NoError(t, f.svc.Deduct(ctx, f.product, a.WarehouseID, a.Quantity, order))
	}
	_, err = f.svc.Adjust(ctx, f.product, f.whB, qty(3).Neg(), "damaged in handling", nil)
	require.NoError(t, err)

	perWarehouse := make(map[id.ID]types.Quantity)
	for _, mv := range f.repo.movements {
		if mv.Type == MovementReservation || mv.Type == MovementRelease {
			continue
		}
		perWarehouse[mv.WarehouseID] += mv.QuantityChange
	}

	recs, err := f.repo.GetRecordsByProduct(ctx, f.product)
	require.NoError(t, err)
	for _, rec := range recs {
		assert.Equal(t, perWarehouse[rec.WarehouseID], rec.Quantity,
			"warehouse %s on-hand must equal movement sum", rec.WarehouseID)
		assert.True(t, rec.CheckInvariant())
	}
}

// Sequential interleaving of two competing reservations: the second sees the
// post-first state, exactly one succeeds when stock covers only one.
func TestReserve_CompetingRequestsOneWins(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(f.product, f.whA, 10, 0)

	_, errA := f.svc.Reserve(context.Background(), f.product, qty(8), orderRef())
	_, errB := f.svc.Reserve(context.Background(), f.product, qty(8), orderRef())

	require.NoError(t, errA)
	require.Error(t, errB)
	assert.True(t, apperror.IsInsufficientStock(errB))
	assert.Equal(t, qty(8), f.record(t, f.whA).ReservedQuantity)
}
