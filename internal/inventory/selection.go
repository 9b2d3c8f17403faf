package inventory

import (
	"sort"
	"strings"

	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

// SelectUnit picks the unit to assign for a unit type. With a preferred unit
// number it returns that unit if it is free and of the right type, otherwise
// ErrUnitNotAvailable. Without one it returns the first free unit of the type
// in generation order. ErrNoAvailableUnits is returned when nothing of the
// type is free.
func SelectUnit(units []models.Unit, unitType, preferredUnitNumber string) (models.Unit, error) {
	free := make([]models.Unit, 0, len(units))
	for _, u := range units {
		if !u.IsOccupied && u.UnitType == unitType {
			free = append(free, u)
		}
	}
	if len(free) == 0 {
		return models.Unit{}, domainerr.Wrapf(domainerr.ErrNoAvailableUnits, "type %q", unitType)
	}

	preferred := strings.TrimSpace(preferredUnitNumber)
	if preferred != "" {
		for _, u := range free {
			if u.UnitNumber == preferred {
				return u, nil
			}
		}
		return models.Unit{}, domainerr.Wrapf(domainerr.ErrUnitNotAvailable, "unit %q", preferred)
	}

	sort.SliceStable(free, func(i, j int) bool { return free[i].Position < free[j].Position })
	return free[0], nil
}

// FindUnit returns the unit with the given number.
func FindUnit(units []models.Unit, unitNumber string) (models.Unit, bool) {
	for _, u := range units {
		if u.UnitNumber == unitNumber {
			return u, true
		}
	}
	return models.Unit{}, false
}
