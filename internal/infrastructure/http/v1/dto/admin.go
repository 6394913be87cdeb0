package dto

import (
	"encoding/json"
	"time"

	"stokado/internal/domain/audit"
)

// AuditEntryResponse is one audit trail row.
type AuditEntryResponse struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Action     string          `json:"action"`
	UserID     string          `json:"userId"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// FromAuditEntry converts an audit entry to response DTO.
func FromAuditEntry(e audit.Entry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID.String(),
		EntityType: e.EntityType,
		EntityID:   e.EntityID.String(),
		Action:     string(e.Action),
		UserID:     e.UserID,
		Changes:    e.Changes,
		CreatedAt:  e.CreatedAt,
	}
}

// SetSequenceRequest seeds a document number sequence, typically when
// cutting numbering over from a previous system. Period defaults to now.
type SetSequenceRequest struct {
	Prefix string     `json:"prefix" binding:"required"`
	Period *time.Time `json:"period"`
	Value  int64      `json:"value" binding:"required,gt=0"`
}
