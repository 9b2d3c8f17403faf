package inventory

import (
	"github.com/google/uuid"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

// Regenerate rebuilds a property's inventory from new declarations while
// keeping existing tenants in their units. An occupied unit that the new
// declarations no longer produce makes the update fail with
// ErrOccupiedUnitRemoved.
func Regenerate(propertyID uuid.UUID, existing []models.Unit, decls []models.UnitTypeDeclaration, propertyPrefix string) ([]models.Unit, error) {
	next := ExpandAll(decls, propertyPrefix)

	byNumber := make(map[string]models.Unit, len(existing))
	for _, u := range existing {
		byNumber[u.UnitNumber] = u
	}

	kept := make(map[string]bool, len(next))
	for i := range next {
		next[i].PropertyID = propertyID
		old, ok := byNumber[next[i].UnitNumber]
		if !ok {
			continue
		}
		kept[old.UnitNumber] = true
		next[i].RowVersion = old.RowVersion
		if old.IsOccupied && old.TenantID != nil {
			next[i].Occupy(*old.TenantID)
		}
	}

	for _, u := range existing {
		if u.IsOccupied && !kept[u.UnitNumber] {
			return nil, domainerr.Wrapf(domainerr.ErrOccupiedUnitRemoved, "unit %s", u.UnitNumber)
		}
	}
	return next, nil
}
