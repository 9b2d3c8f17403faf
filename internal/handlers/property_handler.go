package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/stwalsh4118/rentledger/api/internal/errors"
	"github.com/stwalsh4118/rentledger/api/internal/middleware"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/services"
)

// PropertyHandler handles property and unit inventory requests.
type PropertyHandler struct {
	properties services.PropertyService
	allocation services.AllocationService
}

// NewPropertyHandler creates a new PropertyHandler instance.
func NewPropertyHandler(properties services.PropertyService, allocation services.AllocationService) *PropertyHandler {
	return &PropertyHandler{
		properties: properties,
		allocation: allocation,
	}
}

// CreatePropertyRequest is the body of POST /api/v1/properties.
type CreatePropertyRequest struct {
	OwnerID       string                       `json:"ownerId" binding:"required,uuid"`
	Name          string                       `json:"name" binding:"required,max=200"`
	Address       string                       `json:"address" binding:"max=500"`
	OwnerPhone    string                       `json:"ownerPhone" binding:"omitempty,e164"`
	PaybillNumber string                       `json:"paybillNumber" binding:"required,numeric,max=20"`
	BillingPrefix string                       `json:"billingPrefix" binding:"required,max=20"`
	UnitTypes     []models.UnitTypeDeclaration `json:"unitTypes" binding:"required,min=1,dive"`
}

// UpdateUnitTypesRequest is the body of PUT /api/v1/properties/:id/unit-types.
type UpdateUnitTypesRequest struct {
	UnitTypes []models.UnitTypeDeclaration `json:"unitTypes" binding:"required,min=1,dive"`
}

// Create handles POST /api/v1/properties.
func (h *PropertyHandler) Create(c *gin.Context) {
	var req CreatePropertyRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.properties.Create(c.Request.Context(), services.CreatePropertyInput{
		OwnerID:       uuid.MustParse(req.OwnerID),
		Name:          req.Name,
		Address:       req.Address,
		OwnerPhone:    req.OwnerPhone,
		PaybillNumber: req.PaybillNumber,
		BillingPrefix: req.BillingPrefix,
		UnitTypes:     req.UnitTypes,
	})
	if err != nil {
		apierrors.FromError(c, err, "Failed to create property")
		return
	}

	c.JSON(http.StatusCreated, detail)
}

// Get handles GET /api/v1/properties/:id.
func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.properties.Get(c.Request.Context(), id)
	if err != nil {
		apierrors.FromError(c, err, "Failed to load property")
		return
	}

	c.JSON(http.StatusOK, detail)
}

// UpdateUnitTypes handles PUT /api/v1/properties/:id/unit-types.
func (h *PropertyHandler) UpdateUnitTypes(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req UpdateUnitTypesRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.properties.UpdateUnitTypes(c.Request.Context(), id, req.UnitTypes)
	if err != nil {
		apierrors.FromError(c, err, "Failed to update unit types")
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Delete handles DELETE /api/v1/properties/:id.
func (h *PropertyHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.properties.Delete(c.Request.Context(), id); err != nil {
		apierrors.FromError(c, err, "Failed to delete property")
		return
	}

	c.Status(http.StatusNoContent)
}

// ReleaseUnit handles POST /api/v1/properties/:id/units/:unit/release.
// Releasing a vacant unit succeeds without changes.
func (h *PropertyHandler) ReleaseUnit(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	unit := c.Param("unit")

	if err := h.allocation.Release(c.Request.Context(), id, unit); err != nil {
		apierrors.FromError(c, err, "Failed to release unit")
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Unit release requested", map[string]interface{}{
			"property_id": id.String(),
			"unit_number": unit,
		})
	}
	c.Status(http.StatusNoContent)
}
