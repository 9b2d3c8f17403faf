package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/stwalsh4118/rentledger/api/internal/errors"
	"github.com/stwalsh4118/rentledger/api/internal/middleware"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/services"
)

// mpesaTimeLayout is the format of TransTime in M-Pesa callbacks.
const mpesaTimeLayout = "20060102150405"

// ChannelMpesa tags payments confirmed through the M-Pesa C2B callback.
const ChannelMpesa = "mpesa"

// PaymentHandler handles payment reconciliation requests.
type PaymentHandler struct {
	service services.ReconciliationService
	// loc is the zone M-Pesa timestamps are written in.
	loc *time.Location
}

// NewPaymentHandler creates a new PaymentHandler instance.
func NewPaymentHandler(service services.ReconciliationService, loc *time.Location) *PaymentHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PaymentHandler{
		service: service,
		loc:     loc,
	}
}

// SimulatePaymentRequest is the body of POST /api/v1/payments/simulate.
type SimulatePaymentRequest struct {
	ReceivedAt *time.Time `json:"receivedAt"`
	TenantID   string     `json:"tenantId" binding:"required,uuid"`
	Amount     string     `json:"amount" binding:"required"`
	Payer      string     `json:"payer" binding:"max=100"`
}

// MpesaConfirmation is the C2B confirmation body posted by the M-Pesa
// gateway. Amounts arrive as strings.
type MpesaConfirmation struct {
	TransactionType   string `json:"TransactionType"`
	TransID           string `json:"TransID" binding:"required"`
	TransTime         string `json:"TransTime"`
	TransAmount       string `json:"TransAmount" binding:"required"`
	BusinessShortCode string `json:"BusinessShortCode" binding:"required"`
	BillRefNumber     string `json:"BillRefNumber" binding:"required"`
	InvoiceNumber     string `json:"InvoiceNumber"`
	OrgAccountBalance string `json:"OrgAccountBalance"`
	ThirdPartyTransID string `json:"ThirdPartyTransID"`
	MSISDN            string `json:"MSISDN"`
	FirstName         string `json:"FirstName"`
}

// MpesaAck is the acknowledgement the gateway expects.
type MpesaAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Simulate handles POST /api/v1/payments/simulate.
func (h *PaymentHandler) Simulate(c *gin.Context) {
	var req SimulatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	amount, err := models.ParseMoney(req.Amount)
	if err != nil {
		apierrors.BadRequest(c, "Invalid amount", map[string]interface{}{"amount": req.Amount})
		return
	}

	in := services.PaymentInput{
		TenantID: uuid.MustParse(req.TenantID),
		Amount:   amount,
		Source: models.PaymentSource{
			Kind:  models.SourceSimulated,
			Payer: req.Payer,
		},
	}
	if req.ReceivedAt != nil {
		in.ReceivedAt = *req.ReceivedAt
	}

	result, err := h.service.ReconcilePayment(c.Request.Context(), in)
	if err != nil {
		apierrors.FromError(c, err, "Failed to reconcile payment")
		return
	}

	c.JSON(http.StatusOK, result)
}

// MpesaCallback handles POST /api/v1/payments/mpesa/callback.
// A replayed confirmation is acknowledged without being applied again so the
// gateway stops retrying. Payments that cannot be matched get a 4xx for the
// operator to follow up.
func (h *PaymentHandler) MpesaCallback(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req MpesaConfirmation
	if !bindJSON(c, &req) {
		return
	}

	amount, err := models.ParseMoney(req.TransAmount)
	if err != nil {
		apierrors.BadRequest(c, "Invalid TransAmount", map[string]interface{}{"TransAmount": req.TransAmount})
		return
	}

	var receivedAt time.Time
	if ts := strings.TrimSpace(req.TransTime); ts != "" {
		receivedAt, err = time.ParseInLocation(mpesaTimeLayout, ts, h.loc)
		if err != nil {
			apierrors.BadRequest(c, "Invalid TransTime", map[string]interface{}{"TransTime": req.TransTime})
			return
		}
	}

	result, err := h.service.ReconcileGatewayCallback(c.Request.Context(), services.GatewayPayment{
		TransactionID:    req.TransID,
		Amount:           amount,
		BillingReference: req.BillRefNumber,
		PaybillNumber:    req.BusinessShortCode,
		Payer:            req.MSISDN,
		Channel:          ChannelMpesa,
		ReceivedAt:       receivedAt,
	})
	if err != nil {
		if services.IsDuplicatePayment(err) {
			if log != nil {
				log.Info("Duplicate gateway confirmation acknowledged", map[string]interface{}{
					"transaction_id": req.TransID,
				})
			}
			c.JSON(http.StatusOK, MpesaAck{ResultCode: 0, ResultDesc: "Accepted"})
			return
		}
		apierrors.FromError(c, err, "Failed to reconcile gateway payment")
		return
	}

	if log != nil {
		log.Info("Gateway payment reconciled", map[string]interface{}{
			"transaction_id": req.TransID,
			"payment_id":     result.Payment.ID.String(),
			"classification": string(result.Payment.Classification),
		})
	}
	c.JSON(http.StatusOK, MpesaAck{ResultCode: 0, ResultDesc: "Accepted"})
}
