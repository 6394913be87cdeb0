// Package audit provides the domain contract for change auditing.
// The storage implementation lives in infrastructure/storage/postgres.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"stokado/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionPost   Action = "post"
	ActionCancel Action = "cancel"
	ActionAdjust Action = "adjust"
)

// Entry is a single audit log record.
type Entry struct {
	ID         id.ID           `db:"id"`
	EntityType string          `db:"entity_type"`
	EntityID   id.ID           `db:"entity_id"`
	Action     Action          `db:"action"`
	UserID     string          `db:"user_id"`
	Changes    json.RawMessage `db:"changes"`
	CreatedAt  time.Time       `db:"created_at"`
}

// Logger records audit entries. Implementations must be non-fatal friendly:
// callers log and continue when auditing fails, a lost audit record never
// blocks the business operation.
type Logger interface {
	Log(ctx context.Context, entry Entry) error

	// LogChange marshals changes and records them against the entity.
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// Nop is a Logger that discards entries. Used in tests and when auditing
// is disabled.
type Nop struct{}

func (Nop) Log(context.Context, Entry) error { return nil }

func (Nop) LogChange(context.Context, string, id.ID, Action, map[string]any) error { return nil }
