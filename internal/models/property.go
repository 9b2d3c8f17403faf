package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnitTypeDeclaration describes a contiguous range of units of one type,
// e.g. type "bedsitter" from "A1" to "A12" at 8,000 per month.
type UnitTypeDeclaration struct {
	Type        string          `json:"type" binding:"required,max=50"`
	StartLabel  string          `json:"startLabel" binding:"required,max=20"`
	EndLabel    string          `json:"endLabel" binding:"required,max=20"`
	RentAmount  decimal.Decimal `json:"rentAmount"`
	Description string          `json:"description,omitempty" binding:"max=500"`
}

// Property is a rentable building owned by a landlord. Units live in their
// own table; the property only caches the occupancy aggregate.
type Property struct {
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
	MonthlyRevenue decimal.Decimal       `json:"monthlyRevenue"`
	Name           string                `json:"name"`
	Address        string                `json:"address,omitempty"`
	OwnerPhone     string                `json:"ownerPhone,omitempty"`
	PaybillNumber  string                `json:"paybillNumber"`
	BillingPrefix  string                `json:"billingPrefix"`
	UnitTypes      []UnitTypeDeclaration `json:"unitTypes"`
	RowVersion     int64                 `json:"rowVersion"`
	TotalUnits     int                   `json:"totalUnits"`
	OccupiedUnits  int                   `json:"occupiedUnits"`
	AvailableUnits int                   `json:"availableUnits"`
	ID             uuid.UUID             `json:"id"`
	OwnerID        uuid.UUID             `json:"ownerId"`
}

// Aggregates is the cached occupancy summary of a property.
type Aggregates struct {
	MonthlyRevenue decimal.Decimal `json:"monthlyRevenue"`
	TotalUnits     int             `json:"totalUnits"`
	OccupiedUnits  int             `json:"occupiedUnits"`
	AvailableUnits int             `json:"availableUnits"`
}

// Aggregates returns the property's cached occupancy summary.
func (p *Property) Aggregates() Aggregates {
	return Aggregates{
		MonthlyRevenue: p.MonthlyRevenue,
		TotalUnits:     p.TotalUnits,
		OccupiedUnits:  p.OccupiedUnits,
		AvailableUnits: p.AvailableUnits,
	}
}

// SetAggregates overwrites the cached occupancy summary.
func (p *Property) SetAggregates(a Aggregates) {
	p.MonthlyRevenue = a.MonthlyRevenue
	p.TotalUnits = a.TotalUnits
	p.OccupiedUnits = a.OccupiedUnits
	p.AvailableUnits = a.AvailableUnits
}
