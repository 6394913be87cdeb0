package warehouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/pkg/numerator"
)

// --- in-memory fakes ---

type memRepo struct {
	warehouses map[id.ID]*Warehouse
}

func newMemRepo() *memRepo {
	return &memRepo{warehouses: make(map[id.ID]*Warehouse)}
}

func (m *memRepo) Create(_ context.Context, w *Warehouse) error {
	for _, existing := range m.warehouses {
		if existing.Code == w.Code {
			return apperror.NewDuplicate("warehouse", "code", w.Code)
		}
	}
	cp := *w
	m.warehouses[w.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, warehouseID id.ID) (*Warehouse, error) {
	w, ok := m.warehouses[warehouseID]
	if !ok {
		return nil, apperror.NewNotFound("warehouse", warehouseID)
	}
	cp := *w
	return &cp, nil
}

func (m *memRepo) GetByCode(_ context.Context, code string) (*Warehouse, error) {
	for _, w := range m.warehouses {
		if w.Code == code {
			cp := *w
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("warehouse", code)
}

func (m *memRepo) Update(_ context.Context, w *Warehouse) error {
	existing, ok := m.warehouses[w.ID]
	if !ok {
		return apperror.NewNotFound("warehouse", w.ID)
	}
	if w.Version <= existing.Version {
		return apperror.NewConflict("warehouse was modified concurrently")
	}
	cp := *w
	m.warehouses[w.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, warehouseID id.ID) error {
	if _, ok := m.warehouses[warehouseID]; !ok {
		return apperror.NewNotFound("warehouse", warehouseID)
	}
	delete(m.warehouses, warehouseID)
	return nil
}

func (m *memRepo) List(_ context.Context, filter Filter) ([]*Warehouse, error) {
	var out []*Warehouse
	for _, w := range m.warehouses {
		if filter.ActiveOnly && !w.IsActive {
			continue
		}
		if filter.Type != nil && w.Type != *filter.Type {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	return out, nil
}

type memTxManager struct{}

func (memTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stubNumerator struct {
	counter int
}

func (s *stubNumerator) GetNextNumber(_ context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	s.counter++
	return fmt.Sprintf("%s-%d-%05d", cfg.Prefix, period.Year(), s.counter), nil
}

func (s *stubNumerator) SetNextNumber(_ context.Context, _ numerator.Config, _ time.Time, _ int64) error {
	return nil
}

type stubGuard struct {
	hasMovements bool
}

func (g stubGuard) HasWarehouseMovements(_ context.Context, _ id.ID) (bool, error) {
	return g.hasMovements, nil
}

func newTestService(guard stubGuard) (*Service, *memRepo) {
	repo := newMemRepo()
	svc := NewService(repo, memTxManager{}, &stubNumerator{}, guard, nil)
	return svc, repo
}

// --- tests ---

func TestCreateAssignsDefaultPriority(t *testing.T) {
	svc, _ := newTestService(stubGuard{})

	wh := NewWarehouse("", "Main", TypeMain)
	require.NoError(t, svc.Create(context.Background(), wh))

	assert.Contains(t, wh.Code, "WH-")
	assert.Equal(t, 100, wh.Priority)
}

func TestCreateRejectsNegativePriority(t *testing.T) {
	svc, _ := newTestService(stubGuard{})

	wh := NewWarehouse("WH-01", "Main", TypeMain)
	wh.Priority = -1

	err := svc.Create(context.Background(), wh)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc, _ := newTestService(stubGuard{})

	wh := NewWarehouse("WH-01", "Main", WarehouseType("hangar"))
	err := svc.Create(context.Background(), wh)

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestDeleteBlockedByMovementHistory(t *testing.T) {
	svc, repo := newTestService(stubGuard{hasMovements: true})
	ctx := context.Background()

	wh := NewWarehouse("WH-01", "Main", TypeMain)
	require.NoError(t, svc.Create(ctx, wh))

	err := svc.Delete(ctx, wh.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict))

	_, err = repo.GetByID(ctx, wh.ID)
	assert.NoError(t, err, "warehouse must survive a blocked delete")
}

func TestDeactivateExcludesFromListing(t *testing.T) {
	svc, _ := newTestService(stubGuard{hasMovements: true})
	ctx := context.Background()

	main := NewWarehouse("WH-01", "Main", TypeMain)
	require.NoError(t, svc.Create(ctx, main))

	retail := NewWarehouse("WH-02", "Shop", TypeRetail)
	require.NoError(t, svc.Create(ctx, retail))
	require.NoError(t, svc.Deactivate(ctx, retail.ID))

	active, err := svc.List(ctx, Filter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "WH-01", active[0].Code)
}

func TestListFiltersByType(t *testing.T) {
	svc, _ := newTestService(stubGuard{})
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, NewWarehouse("WH-01", "Main", TypeMain)))
	require.NoError(t, svc.Create(ctx, NewWarehouse("WH-02", "Shop", TypeRetail)))

	retail := TypeRetail
	out, err := svc.List(ctx, Filter{Type: &retail})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "WH-02", out[0].Code)
}
