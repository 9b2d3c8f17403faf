package inventory

import (
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

// ComputeAggregates derives a property's occupancy summary from its units.
func ComputeAggregates(units []models.Unit) models.Aggregates {
	agg := models.Aggregates{
		MonthlyRevenue: decimal.Zero,
		TotalUnits:     len(units),
	}
	for _, u := range units {
		if u.IsOccupied {
			agg.OccupiedUnits++
			agg.MonthlyRevenue = agg.MonthlyRevenue.Add(u.RentAmount)
		}
	}
	agg.AvailableUnits = agg.TotalUnits - agg.OccupiedUnits
	agg.MonthlyRevenue = models.RoundMoney(agg.MonthlyRevenue)
	return agg
}

// OccupancyDelta is the change an allocation applies to a property's
// aggregate: +1 occupied and +rent for an assignment, the negation for a
// release.
type OccupancyDelta struct {
	Revenue  decimal.Decimal
	Occupied int
}

// AssignDelta is the aggregate change of occupying a unit.
func AssignDelta(u models.Unit) OccupancyDelta {
	return OccupancyDelta{Occupied: 1, Revenue: u.RentAmount}
}

// ReleaseDelta is the aggregate change of vacating a unit.
func ReleaseDelta(u models.Unit) OccupancyDelta {
	return OccupancyDelta{Occupied: -1, Revenue: u.RentAmount.Neg()}
}

// Apply returns the aggregate after the delta. Total units never change.
func (d OccupancyDelta) Apply(a models.Aggregates) models.Aggregates {
	a.OccupiedUnits += d.Occupied
	a.AvailableUnits -= d.Occupied
	a.MonthlyRevenue = models.RoundMoney(a.MonthlyRevenue.Add(d.Revenue))
	return a
}
