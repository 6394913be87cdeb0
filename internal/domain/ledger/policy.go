package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"

	"stokado/internal/core/apperror"
)

// AllocationPolicy orders allocation candidates before the greedy allocator
// walks them. The tie-break between warehouses is deliberately explicit and
// configurable instead of inheriting incidental database ordering.
type AllocationPolicy interface {
	// Order returns candidates in allocation order. Candidates with no
	// available stock may be kept or dropped; the allocator skips them anyway.
	Order(ctx context.Context, candidates []Candidate) ([]Candidate, error)

	// Name identifies the policy in logs and config.
	Name() string
}

// --- warehouse id order ---

// WarehouseIDPolicy orders by warehouse id ascending (UUIDv7, so effectively
// by warehouse creation time). The simplest deterministic tie-break.
type WarehouseIDPolicy struct{}

func (WarehouseIDPolicy) Name() string { return "warehouse_id" }

func (WarehouseIDPolicy) Order(_ context.Context, candidates []Candidate) ([]Candidate, error) {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return bytes.Compare(out[i].WarehouseID[:], out[j].WarehouseID[:]) < 0
	})
	return out, nil
}

// --- priority order ---

// PriorityPolicy orders by warehouse allocation priority ascending (lower
// value is consumed first), then by warehouse id. This is the default.
type PriorityPolicy struct{}

func (PriorityPolicy) Name() string { return "priority" }

func (PriorityPolicy) Order(_ context.Context, candidates []Candidate) ([]Candidate, error) {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WarehousePriority != out[j].WarehousePriority {
			return out[i].WarehousePriority < out[j].WarehousePriority
		}
		return bytes.Compare(out[i].WarehouseID[:], out[j].WarehouseID[:]) < 0
	})
	return out, nil
}

// --- CEL expression policy ---

// CELPolicy ranks warehouses with a CEL expression evaluated per candidate.
// The expression sees the warehouse attributes and current quantities and
// must return a numeric score; lower scores allocate first, ties fall back
// to warehouse id.
//
// Example expressions:
//
//	"priority"
//	"warehouseType == 'transit' ? 1000 : priority"
//	"-available"
type CELPolicy struct {
	expr string
	prg  cel.Program
}

// NewCELPolicy compiles the scoring expression.
func NewCELPolicy(expr string) (*CELPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("code", cel.StringType),
		cel.Variable("warehouseType", cel.StringType),
		cel.Variable("priority", cel.IntType),
		cel.Variable("quantity", cel.DoubleType),
		cel.Variable("reserved", cel.DoubleType),
		cel.Variable("available", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile allocation expression: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build allocation program: %w", err)
	}

	return &CELPolicy{expr: expr, prg: prg}, nil
}

func (p *CELPolicy) Name() string { return "cel:" + p.expr }

func (p *CELPolicy) Order(_ context.Context, candidates []Candidate) ([]Candidate, error) {
	type scored struct {
		cand  Candidate
		score float64
	}

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		out, _, err := p.prg.Eval(map[string]any{
			"code":          c.WarehouseCode,
			"warehouseType": c.WarehouseType,
			"priority":      int64(c.WarehousePriority),
			"quantity":      c.Quantity.Float64(),
			"reserved":      c.ReservedQuantity.Float64(),
			"available":     c.Available().Float64(),
		})
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("evaluate allocation expression: %w", err))
		}

		score, err := toScore(out.Value())
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		ranked = append(ranked, scored{cand: c, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return bytes.Compare(ranked[i].cand.WarehouseID[:], ranked[j].cand.WarehouseID[:]) < 0
	})

	out := make([]Candidate, len(ranked))
	for i, s := range ranked {
		out[i] = s.cand
	}
	return out, nil
}

func toScore(v any) (float64, error) {
	switch val := v.(type) {
	case int64:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case float64:
		return val, nil
	default:
		return 0, fmt.Errorf("allocation expression must return a number, got %T", v)
	}
}
