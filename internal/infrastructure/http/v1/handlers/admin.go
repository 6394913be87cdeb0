package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/domain/audit"
	"stokado/internal/infrastructure/http/v1/dto"
	"stokado/pkg/numerator"
)

// AuditTrail reads back the recorded history of an entity.
type AuditTrail interface {
	GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error)
}

// Sequencer seeds document number sequences.
type Sequencer interface {
	SetNextNumber(ctx context.Context, cfg numerator.Config, period time.Time, value int64) error
}

// AdminHandler serves the admin-only surface: audit history reads and
// number sequence seeding.
type AdminHandler struct {
	*BaseHandler
	audit     AuditTrail
	sequences Sequencer
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(base *BaseHandler, auditTrail AuditTrail, sequences Sequencer) *AdminHandler {
	return &AdminHandler{
		BaseHandler: base,
		audit:       auditTrail,
		sequences:   sequences,
	}
}

// History handles GET /admin/audit/:entityType/:entityId
func (h *AdminHandler) History(c *gin.Context) {
	entityType := c.Param("entityType")
	entityID, err := id.Parse(c.Param("entityId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid entityId format"))
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	entries, err := h.audit.GetEntityHistory(c.Request.Context(), entityType, entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.FromAuditEntry(e))
	}
	h.OK(c, dto.ListResponse{Items: items, TotalCount: len(items), Limit: limit})
}

// SetSequence handles PUT /admin/sequences
func (h *AdminHandler) SetSequence(c *gin.Context) {
	var req dto.SetSequenceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	period := time.Now()
	if req.Period != nil {
		period = *req.Period
	}
	if err := h.sequences.SetNextNumber(c.Request.Context(), numerator.DefaultConfig(req.Prefix), period, req.Value); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "sequence updated")
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/audit/:entityType/:entityId", h.History)
	rg.PUT("/sequences", h.SetSequence)
}
