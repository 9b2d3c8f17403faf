package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Unit is a single rentable space, addressed by (PropertyID, UnitNumber).
// IsOccupied is true exactly when TenantID is set.
type Unit struct {
	UpdatedAt        time.Time       `json:"updatedAt"`
	RentAmount       decimal.Decimal `json:"rentAmount"`
	TenantID         *uuid.UUID      `json:"tenantId,omitempty"`
	UnitNumber       string          `json:"unitNumber"`
	UnitType         string          `json:"unitType"`
	BillingReference string          `json:"billingReference"`
	Description      string          `json:"description,omitempty"`
	RowVersion       int64           `json:"rowVersion"`
	Position         int             `json:"position"`
	PropertyID       uuid.UUID       `json:"propertyId"`
	IsOccupied       bool            `json:"isOccupied"`
}

// Occupy binds the unit to a tenant.
func (u *Unit) Occupy(tenantID uuid.UUID) {
	id := tenantID
	u.TenantID = &id
	u.IsOccupied = true
}

// Vacate clears the tenant binding.
func (u *Unit) Vacate() {
	u.TenantID = nil
	u.IsOccupied = false
}
