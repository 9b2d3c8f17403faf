package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Classification is the outcome of reconciling a payment against a balance.
type Classification string

// Payment classifications.
const (
	ClassificationExact        Classification = "exact"
	ClassificationOverpayment  Classification = "overpayment"
	ClassificationUnderpayment Classification = "underpayment"
)

// PaymentSourceKind tags where a payment came from.
type PaymentSourceKind string

// Payment source kinds.
const (
	SourceSimulated       PaymentSourceKind = "simulated"
	SourceGatewayCallback PaymentSourceKind = "gateway_callback"
)

// PaymentSource identifies the channel a payment arrived through. Gateway
// callbacks always carry the gateway's transaction id.
type PaymentSource struct {
	Kind          PaymentSourceKind `json:"kind"`
	Channel       string            `json:"channel,omitempty"`
	TransactionID string            `json:"transactionId,omitempty"`
	Payer         string            `json:"payer,omitempty"`
}

// Payment is an immutable record of one reconciled payment.
type Payment struct {
	CreatedAt        time.Time       `json:"createdAt"`
	Amount           decimal.Decimal `json:"amount"`
	ExpectedAmount   decimal.Decimal `json:"expectedAmount"`
	Overpayment      decimal.Decimal `json:"overpayment"`
	Shortfall        decimal.Decimal `json:"shortfall"`
	CarryForward     decimal.Decimal `json:"carryForward"`
	ResultingBalance decimal.Decimal `json:"resultingBalance"`
	Classification   Classification  `json:"classification"`
	BillingMonth     string          `json:"billingMonth"`
	Source           PaymentSource   `json:"source"`
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenantId"`
	PropertyID       uuid.UUID       `json:"propertyId"`
	OwnerID          uuid.UUID       `json:"ownerId"`
	AheadOfBilling   bool            `json:"aheadOfBilling"`
}

// Charge is an immutable record of rent debited by the monthly sweep.
type Charge struct {
	CreatedAt    time.Time       `json:"createdAt"`
	Amount       decimal.Decimal `json:"amount"`
	BillingMonth string          `json:"billingMonth"`
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenantId"`
	PropertyID   uuid.UUID       `json:"propertyId"`
}
