package dto

import (
	"time"

	"stokado/internal/domain/catalogs/warehouse"
)

// --- Request DTOs ---

// CreateWarehouseRequest is the request body for creating a warehouse.
type CreateWarehouseRequest struct {
	Code        string                  `json:"code"`
	Name        string                  `json:"name" binding:"required"`
	Type        warehouse.WarehouseType `json:"type" binding:"required"`
	Priority    *int                    `json:"priority"`
	Address     *string                 `json:"address"`
	Description *string                 `json:"description"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateWarehouseRequest) ToEntity() *warehouse.Warehouse {
	wh := warehouse.NewWarehouse(r.Code, r.Name, r.Type)
	if r.Priority != nil {
		wh.Priority = *r.Priority
	}
	wh.Address = r.Address
	wh.Description = r.Description
	return wh
}

// UpdateWarehouseRequest is the request body for updating a warehouse.
type UpdateWarehouseRequest struct {
	Code        string                  `json:"code"`
	Name        string                  `json:"name" binding:"required"`
	Type        warehouse.WarehouseType `json:"type" binding:"required"`
	Priority    int                     `json:"priority"`
	Address     *string                 `json:"address,omitempty"`
	Description *string                 `json:"description,omitempty"`
	IsActive    bool                    `json:"isActive"`
	Version     int                     `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateWarehouseRequest) ApplyTo(wh *warehouse.Warehouse) {
	wh.Code = r.Code
	wh.Name = r.Name
	wh.Type = r.Type
	wh.Priority = r.Priority
	wh.Address = r.Address
	wh.Description = r.Description
	wh.IsActive = r.IsActive
	wh.Version = r.Version
}

// --- Response DTOs ---

// WarehouseResponse is the response body for a warehouse.
type WarehouseResponse struct {
	ID          string                  `json:"id"`
	Code        string                  `json:"code"`
	Name        string                  `json:"name"`
	Type        warehouse.WarehouseType `json:"type"`
	Priority    int                     `json:"priority"`
	Address     *string                 `json:"address,omitempty"`
	Description *string                 `json:"description,omitempty"`
	IsActive    bool                    `json:"isActive"`
	Version     int                     `json:"version"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// FromWarehouse creates response DTO from domain entity.
func FromWarehouse(wh *warehouse.Warehouse) *WarehouseResponse {
	return &WarehouseResponse{
		ID:          wh.ID.String(),
		Code:        wh.Code,
		Name:        wh.Name,
		Type:        wh.Type,
		Priority:    wh.Priority,
		Address:     wh.Address,
		Description: wh.Description,
		IsActive:    wh.IsActive,
		Version:     wh.Version,
		CreatedAt:   wh.CreatedAt,
		UpdatedAt:   wh.UpdatedAt,
	}
}
