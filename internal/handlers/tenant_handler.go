package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/stwalsh4118/rentledger/api/internal/errors"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
	"github.com/stwalsh4118/rentledger/api/internal/services"
)

// TenantHandler handles tenant lifecycle requests.
type TenantHandler struct {
	tenants    services.TenantService
	allocation services.AllocationService
	payments   services.ReconciliationService
}

// NewTenantHandler creates a new TenantHandler instance.
func NewTenantHandler(tenants services.TenantService, allocation services.AllocationService, payments services.ReconciliationService) *TenantHandler {
	return &TenantHandler{
		tenants:    tenants,
		allocation: allocation,
		payments:   payments,
	}
}

// OnboardRequest is the body of POST /api/v1/tenants.
type OnboardRequest struct {
	MoveInDate          *time.Time `json:"moveInDate"`
	OwnerID             string     `json:"ownerId" binding:"required,uuid"`
	PropertyID          string     `json:"propertyId" binding:"required,uuid"`
	Name                string     `json:"name" binding:"required,max=200"`
	Phone               string     `json:"phone" binding:"omitempty,e164"`
	Email               string     `json:"email" binding:"omitempty,email"`
	UnitType            string     `json:"unitType" binding:"required,max=50"`
	PreferredUnitNumber string     `json:"preferredUnitNumber" binding:"max=20"`
}

// TransferRequest is the body of POST /api/v1/tenants/:id/transfer.
type TransferRequest struct {
	NewPropertyID       string `json:"newPropertyId" binding:"required,uuid"`
	NewUnitType         string `json:"newUnitType" binding:"required,max=50"`
	PreferredUnitNumber string `json:"preferredUnitNumber" binding:"max=20"`
}

// MoveOutRequest is the optional body of POST /api/v1/tenants/:id/move-out.
type MoveOutRequest struct {
	MoveOutDate *time.Time `json:"moveOutDate"`
}

// ListTenantsQuery holds the filters of GET /api/v1/tenants.
type ListTenantsQuery struct {
	OwnerID    string `form:"ownerId" binding:"required,uuid"`
	PropertyID string `form:"propertyId" binding:"omitempty,uuid"`
	Active     *bool  `form:"active"`
}

// TenantListResponse is the response of GET /api/v1/tenants.
type TenantListResponse struct {
	Tenants []models.Tenant `json:"tenants"`
	Count   int             `json:"count"`
}

// Onboard handles POST /api/v1/tenants.
func (h *TenantHandler) Onboard(c *gin.Context) {
	var req OnboardRequest
	if !bindJSON(c, &req) {
		return
	}

	in := services.OnboardInput{
		OwnerID:             uuid.MustParse(req.OwnerID),
		PropertyID:          uuid.MustParse(req.PropertyID),
		Name:                req.Name,
		Phone:               req.Phone,
		Email:               req.Email,
		UnitType:            req.UnitType,
		PreferredUnitNumber: req.PreferredUnitNumber,
	}
	if req.MoveInDate != nil {
		in.MoveInDate = *req.MoveInDate
	}

	tenant, err := h.tenants.Onboard(c.Request.Context(), in)
	if err != nil {
		apierrors.FromError(c, err, "Failed to onboard tenant")
		return
	}

	c.JSON(http.StatusCreated, tenant)
}

// List handles GET /api/v1/tenants.
func (h *TenantHandler) List(c *gin.Context) {
	var q ListTenantsQuery
	if !bindQuery(c, &q) {
		return
	}

	ownerID := uuid.MustParse(q.OwnerID)
	propertyID, err := optionalUUID(q.PropertyID)
	if err != nil {
		apierrors.BadRequest(c, "Invalid propertyId", nil)
		return
	}

	tenants, err := h.tenants.List(c.Request.Context(), repository.TenantFilter{
		OwnerID:    &ownerID,
		PropertyID: propertyID,
		Active:     q.Active,
	})
	if err != nil {
		apierrors.FromError(c, err, "Failed to list tenants")
		return
	}

	c.JSON(http.StatusOK, TenantListResponse{Tenants: tenants, Count: len(tenants)})
}

// Get handles GET /api/v1/tenants/:id.
func (h *TenantHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	tenant, err := h.tenants.Get(c.Request.Context(), id)
	if err != nil {
		apierrors.FromError(c, err, "Failed to load tenant")
		return
	}

	c.JSON(http.StatusOK, tenant)
}

// MoveOut handles POST /api/v1/tenants/:id/move-out.
func (h *TenantHandler) MoveOut(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req MoveOutRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	var at time.Time
	if req.MoveOutDate != nil {
		at = *req.MoveOutDate
	}

	tenant, err := h.tenants.MoveOut(c.Request.Context(), id, at)
	if err != nil {
		apierrors.FromError(c, err, "Failed to move out tenant")
		return
	}

	c.JSON(http.StatusOK, tenant)
}

// Transfer handles POST /api/v1/tenants/:id/transfer.
func (h *TenantHandler) Transfer(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.allocation.Transfer(ctx, services.TransferInput{
		TenantID:            id,
		NewPropertyID:       uuid.MustParse(req.NewPropertyID),
		NewUnitType:         req.NewUnitType,
		PreferredUnitNumber: req.PreferredUnitNumber,
	}); err != nil {
		apierrors.FromError(c, err, "Failed to transfer tenant")
		return
	}

	tenant, err := h.tenants.Get(ctx, id)
	if err != nil {
		apierrors.FromError(c, err, "Failed to load tenant")
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// Audit handles GET /api/v1/tenants/:id/audit.
func (h *TenantHandler) Audit(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	audit, err := h.tenants.AuditBalance(c.Request.Context(), id)
	if err != nil {
		apierrors.FromError(c, err, "Failed to audit tenant balance")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"audit":      audit,
		"consistent": audit.Consistent(),
	})
}

// Payments handles GET /api/v1/tenants/:id/payments.
func (h *TenantHandler) Payments(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	payments, err := h.payments.ListPayments(c.Request.Context(), id)
	if err != nil {
		apierrors.FromError(c, err, "Failed to list payments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"count":    len(payments),
	})
}
