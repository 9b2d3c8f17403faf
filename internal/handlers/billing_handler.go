package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/rentledger/api/internal/errors"
	"github.com/stwalsh4118/rentledger/api/internal/services"
)

// BillingHandler lets operators trigger billing jobs and read notifications.
type BillingHandler struct {
	billing       services.BillingService
	notifications services.NotificationService
}

// NewBillingHandler creates a new BillingHandler instance.
func NewBillingHandler(billing services.BillingService, notifications services.NotificationService) *BillingHandler {
	return &BillingHandler{
		billing:       billing,
		notifications: notifications,
	}
}

// BillingRunRequest selects the month a billing job runs for. An empty month
// means the current one.
type BillingRunRequest struct {
	Month string `json:"month" binding:"omitempty,len=7"`
}

// NotificationsQuery holds the filters of GET /api/v1/owners/:id/notifications.
type NotificationsQuery struct {
	Unread bool `form:"unread"`
	Limit  int  `form:"limit" binding:"min=0"`
}

// RunSweep handles POST /api/v1/billing/sweep.
func (h *BillingHandler) RunSweep(c *gin.Context) {
	var req BillingRunRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	report, err := h.billing.RunMonthlySweep(c.Request.Context(), req.Month)
	if err != nil {
		apierrors.FromError(c, err, "Failed to run billing sweep")
		return
	}

	c.JSON(http.StatusOK, report)
}

// MarkOverdue handles POST /api/v1/billing/overdue.
func (h *BillingHandler) MarkOverdue(c *gin.Context) {
	var req BillingRunRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	report, err := h.billing.MarkOverdue(c.Request.Context(), req.Month)
	if err != nil {
		apierrors.FromError(c, err, "Failed to mark overdue tenants")
		return
	}

	c.JSON(http.StatusOK, report)
}

// Notifications handles GET /api/v1/owners/:id/notifications.
func (h *BillingHandler) Notifications(c *gin.Context) {
	ownerID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var q NotificationsQuery
	if !bindQuery(c, &q) {
		return
	}

	notifications, err := h.notifications.List(c.Request.Context(), ownerID, q.Unread, q.Limit)
	if err != nil {
		apierrors.FromError(c, err, "Failed to list notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
	})
}
