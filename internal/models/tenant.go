package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the tenant's standing for the current billing period.
type PaymentStatus string

// Payment statuses. MovedOut is terminal.
const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusOverdue  PaymentStatus = "overdue"
	PaymentStatusMovedOut PaymentStatus = "moved_out"
)

// HistoryTypeMonthlyBilling marks a history entry written by the billing sweep.
const HistoryTypeMonthlyBilling = "monthly billing"

// MaxPaymentHistory is the number of history entries kept on a tenant.
const MaxPaymentHistory = 12

// PaymentHistoryEntry is one line of a tenant's recent account activity.
// Payments carry positive amounts, billing entries negative ones.
type PaymentHistoryEntry struct {
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Balance      decimal.Decimal `json:"balance"`
	Type         string          `json:"type"`
	BillingMonth string          `json:"billingMonth"`
}

// Tenant is a person renting a unit. Unit fields are copied from the bound
// unit at allocation time and rewritten on transfer.
type Tenant struct {
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	MoveInDate       time.Time             `json:"moveInDate"`
	AccountBalance   decimal.Decimal       `json:"accountBalance"`
	RentAmount       decimal.Decimal       `json:"rentAmount"`
	PropertyID       *uuid.UUID            `json:"propertyId,omitempty"`
	LastPaymentDate  *time.Time            `json:"lastPaymentDate,omitempty"`
	MoveOutDate      *time.Time            `json:"moveOutDate,omitempty"`
	Name             string                `json:"name"`
	Phone            string                `json:"phone,omitempty"`
	Email            string                `json:"email,omitempty"`
	UnitNumber       string                `json:"unitNumber,omitempty"`
	UnitType         string                `json:"unitType,omitempty"`
	BillingReference string                `json:"billingReference,omitempty"`
	PaymentStatus    PaymentStatus         `json:"paymentStatus"`
	LastBilledMonth  string                `json:"lastBilledMonth,omitempty"`
	PaymentHistory   []PaymentHistoryEntry `json:"paymentHistory"`
	RowVersion       int64                 `json:"rowVersion"`
	ID               uuid.UUID             `json:"id"`
	OwnerID          uuid.UUID             `json:"ownerId"`
	IsActive         bool                  `json:"isActive"`
}

// Clone returns a deep copy of the tenant so callers can mutate it freely.
func (t *Tenant) Clone() *Tenant {
	c := *t
	if t.PropertyID != nil {
		id := *t.PropertyID
		c.PropertyID = &id
	}
	if t.LastPaymentDate != nil {
		d := *t.LastPaymentDate
		c.LastPaymentDate = &d
	}
	if t.MoveOutDate != nil {
		d := *t.MoveOutDate
		c.MoveOutDate = &d
	}
	c.PaymentHistory = append([]PaymentHistoryEntry(nil), t.PaymentHistory...)
	return &c
}

// IsBound reports whether the tenant currently occupies a unit.
func (t *Tenant) IsBound() bool {
	return t.PropertyID != nil && t.UnitNumber != ""
}
