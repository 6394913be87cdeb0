package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stokado/internal/core/apperror"
	"stokado/internal/core/id"
	"stokado/internal/core/types"
	"stokado/internal/domain/ledger"
	"stokado/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewStockHandler creates a new stock ledger handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Reserve handles POST /stock/reserve
func (h *StockHandler) Reserve(c *gin.Context) {
	var req dto.ReserveStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	ref, ok := h.parseRef(c, req.Reference)
	if !ok {
		return
	}

	quantity := types.NewQuantityFromFloat64(req.Quantity)

	allocations, err := h.service.Reserve(c.Request.Context(), productID, quantity, ref)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ReserveStockResponse{
		ProductID:   productID.String(),
		Quantity:    quantity.Float64(),
		Allocations: dto.FromAllocations(allocations),
	})
}

// Release handles POST /stock/release
func (h *StockHandler) Release(c *gin.Context) {
	var req dto.ReleaseStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	ref, ok := h.parseRef(c, req.Reference)
	if !ok {
		return
	}

	quantity := types.NewQuantityFromFloat64(req.Quantity)
	if req.WarehouseID != "" {
		warehouseID, err := id.Parse(req.WarehouseID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid warehouseId format"))
			return
		}
		if err := h.service.ReleaseAt(c.Request.Context(), productID, warehouseID, quantity, ref); err != nil {
			h.Error(c, err)
			return
		}
	} else if err := h.service.Release(c.Request.Context(), productID, quantity, ref); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "reservation released")
}

// Deduct handles POST /stock/deduct
func (h *StockHandler) Deduct(c *gin.Context) {
	var req dto.DeductStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouseId format"))
		return
	}

	ref, ok := h.parseRef(c, req.Reference)
	if !ok {
		return
	}

	if err := h.service.Deduct(c.Request.Context(), productID, warehouseID, types.NewQuantityFromFloat64(req.Quantity), ref); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "stock deducted")
}

// Adjust handles POST /stock/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	warehouseID, err := id.Parse(req.WarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid warehouseId format"))
		return
	}

	delta := types.NewQuantityFromFloat64(req.Quantity)
	if req.Type == "decrease" {
		delta = delta.Neg()
	}

	newQuantity, err := h.service.Adjust(c.Request.Context(), productID, warehouseID, delta, req.Reason, nil)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.AdjustStockResponse{
		ProductID:   productID.String(),
		WarehouseID: warehouseID.String(),
		Quantity:    newQuantity.Float64(),
	})
}

// Check handles POST /stock/check
func (h *StockHandler) Check(c *gin.Context) {
	var req dto.CheckStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lines := make([]ledger.AvailabilityLine, len(req.Lines))
	for i, line := range req.Lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format").WithDetail("line", i+1))
			return
		}
		lines[i] = ledger.AvailabilityLine{
			ProductID: productID,
			Quantity:  types.NewQuantityFromFloat64(line.Quantity),
		}
	}

	available, err := h.service.CheckAvailability(c.Request.Context(), lines)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.CheckStockResponse{Available: available})
}

// GetAvailability handles GET /stock/availability/:productId
func (h *StockHandler) GetAvailability(c *gin.Context) {
	productID, err := id.Parse(c.Param("productId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format"))
		return
	}

	availability, err := h.service.Availability(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAvailability(availability))
}

// GetRecords handles GET /stock/records
func (h *StockHandler) GetRecords(c *gin.Context) {
	filter := ledger.RecordFilter{
		ExcludeZero: c.Query("excludeZero") != "false",
		Limit:       h.ParseIntQuery(c, "limit", 100),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}

	if pStr := c.Query("productId"); pStr != "" {
		parsed, err := id.Parse(pStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format"))
			return
		}
		filter.ProductID = &parsed
	}

	if whStr := c.Query("warehouseId"); whStr != "" {
		parsed, err := id.Parse(whStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid warehouseId format"))
			return
		}
		filter.WarehouseID = &parsed
	}

	records, err := h.service.Records(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockRecordResponse, len(records))
	for i, r := range records {
		items[i] = dto.FromStockRecord(r)
	}

	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: len(items),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// GetMovements handles GET /stock/movements
func (h *StockHandler) GetMovements(c *gin.Context) {
	filter := ledger.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if pStr := c.Query("productId"); pStr != "" {
		parsed, err := id.Parse(pStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format"))
			return
		}
		filter.ProductID = &parsed
	}

	if whStr := c.Query("warehouseId"); whStr != "" {
		parsed, err := id.Parse(whStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid warehouseId format"))
			return
		}
		filter.WarehouseID = &parsed
	}

	if tStr := c.Query("type"); tStr != "" {
		mt := ledger.MovementType(tStr)
		if !mt.IsValid() {
			h.Error(c, apperror.NewValidation("invalid movement type"))
			return
		}
		filter.Type = &mt
	}

	if refType, refID := c.Query("referenceType"), c.Query("referenceId"); refType != "" && refID != "" {
		parsed, err := id.Parse(refID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid referenceId format"))
			return
		}
		filter.Reference = &ledger.DocumentRef{Type: refType, ID: parsed}
	}

	if fromStr := c.Query("fromDate"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.FromDate = &parsed
		}
	}

	if toStr := c.Query("toDate"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.ToDate = &parsed
		}
	}

	movements, err := h.service.Movements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.MovementResponse, len(movements))
	for i, m := range movements {
		items[i] = dto.FromMovement(m)
	}

	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: len(items),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

func (h *StockHandler) parseRef(c *gin.Context, req dto.DocumentRefRequest) (ledger.DocumentRef, bool) {
	refID, err := id.Parse(req.ID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid reference.id format"))
		return ledger.DocumentRef{}, false
	}
	return ledger.DocumentRef{Type: req.Type, ID: refID}, true
}

// RegisterRoutes registers the authenticated stock ledger routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reserve", h.Reserve)
	rg.POST("/release", h.Release)
	rg.POST("/deduct", h.Deduct)
	rg.POST("/adjust", h.Adjust)
	rg.GET("/records", h.GetRecords)
	rg.GET("/movements", h.GetMovements)
}

// RegisterPublicRoutes registers the availability reads, served to
// storefront callers without a token.
func (h *StockHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/check", h.Check)
	rg.GET("/availability/:productId", h.GetAvailability)
}
