package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/inventory"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

// CreatePropertyInput is everything needed to register a property.
type CreatePropertyInput struct {
	Name          string
	Address       string
	OwnerPhone    string
	PaybillNumber string
	BillingPrefix string
	UnitTypes     []models.UnitTypeDeclaration
	OwnerID       uuid.UUID
}

// PropertyDetail is a property together with its unit inventory.
type PropertyDetail struct {
	Property *models.Property `json:"property"`
	Units    []models.Unit    `json:"units"`
}

// PropertyService defines the property and inventory operations.
type PropertyService interface {
	// Create validates the unit-type declarations, expands them into units and
	// stores the property and its inventory together. Billing references
	// already used by another property fail with ErrDuplicateBillingRef.
	Create(ctx context.Context, in CreatePropertyInput) (*PropertyDetail, error)

	// Get returns ErrPropertyNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*PropertyDetail, error)

	// UpdateUnitTypes replaces the declarations and regenerates the inventory,
	// keeping every tenant in their unit. Dropping an occupied unit fails with
	// ErrOccupiedUnitRemoved. Tenants whose unit changed rent or type are
	// updated in the same transaction.
	UpdateUnitTypes(ctx context.Context, id uuid.UUID, decls []models.UnitTypeDeclaration) (*PropertyDetail, error)

	// Delete removes a property with no occupied units.
	Delete(ctx context.Context, id uuid.UUID) error
}

type propertyService struct {
	base
}

// NewPropertyService creates a new instance of PropertyService.
func NewPropertyService(store repository.Store, log *logger.Logger, opts Options) PropertyService {
	return &propertyService{base: newBase(store, nil, log, opts)}
}

func (s *propertyService) Create(ctx context.Context, in CreatePropertyInput) (*PropertyDetail, error) {
	if err := validatePropertyInput(in); err != nil {
		s.log.Warn("Rejected property", map[string]interface{}{
			"owner_id": in.OwnerID.String(),
			"error":    err.Error(),
		})
		return nil, err
	}

	decls := normalizeDeclarations(in.UnitTypes)
	prefix := strings.TrimSpace(in.BillingPrefix)

	property := &models.Property{
		ID:            uuid.New(),
		OwnerID:       in.OwnerID,
		Name:          strings.TrimSpace(in.Name),
		Address:       strings.TrimSpace(in.Address),
		OwnerPhone:    strings.TrimSpace(in.OwnerPhone),
		PaybillNumber: strings.TrimSpace(in.PaybillNumber),
		BillingPrefix: prefix,
		UnitTypes:     decls,
	}
	units := inventory.ExpandAll(decls, prefix)
	for i := range units {
		units[i].PropertyID = property.ID
	}
	property.SetAggregates(inventory.ComputeAggregates(units))

	err := s.inTx(ctx, func(repos repository.Repositories) error {
		if err := ensureReferencesFree(ctx, repos, units, property.ID); err != nil {
			return err
		}
		if err := repos.Properties.Create(ctx, property); err != nil {
			return err
		}
		return repos.Units.CreateMany(ctx, units)
	})
	if err != nil {
		return nil, s.fail("create property", err, map[string]interface{}{"owner_id": in.OwnerID.String()})
	}

	s.log.Info("Property created", map[string]interface{}{
		"property_id": property.ID.String(),
		"owner_id":    property.OwnerID.String(),
		"total_units": property.TotalUnits,
	})
	return &PropertyDetail{Property: property, Units: units}, nil
}

func (s *propertyService) Get(ctx context.Context, id uuid.UUID) (*PropertyDetail, error) {
	repos := s.store.Repos()

	property, err := repos.Properties.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	if property == nil {
		return nil, domainerr.ErrPropertyNotFound
	}

	units, err := repos.Units.ListByProperty(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load units: %w", err)
	}
	return &PropertyDetail{Property: property, Units: units}, nil
}

func (s *propertyService) UpdateUnitTypes(ctx context.Context, id uuid.UUID, decls []models.UnitTypeDeclaration) (*PropertyDetail, error) {
	if err := inventory.ValidateDeclarations(decls); err != nil {
		return nil, err
	}
	decls = normalizeDeclarations(decls)

	var detail *PropertyDetail
	synced := 0
	err := s.inTx(ctx, func(repos repository.Repositories) error {
		synced = 0
		property, err := repos.Properties.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if property == nil {
			return domainerr.ErrPropertyNotFound
		}

		existing, err := repos.Units.ListByProperty(ctx, id)
		if err != nil {
			return err
		}
		next, err := inventory.Regenerate(id, existing, decls, property.BillingPrefix)
		if err != nil {
			return err
		}
		// replaced rows get a new version so allocations that read the old
		// rows conflict instead of writing through
		for i := range next {
			next[i].RowVersion++
		}

		if err := ensureReferencesFree(ctx, repos, next, id); err != nil {
			return err
		}
		if err := repos.Units.ReplaceForProperty(ctx, id, next); err != nil {
			return err
		}

		property.UnitTypes = decls
		property.SetAggregates(inventory.ComputeAggregates(next))
		if err := repos.Properties.UpdateIfVersion(ctx, property, property.RowVersion); err != nil {
			return err
		}

		synced, err = syncTenantsToUnits(ctx, repos, existing, next)
		if err != nil {
			return err
		}

		detail = &PropertyDetail{Property: property, Units: next}
		return nil
	})
	if err != nil {
		return nil, s.fail("update unit types", err, map[string]interface{}{"property_id": id.String()})
	}

	s.log.Info("Property unit types updated", map[string]interface{}{
		"property_id":    id.String(),
		"total_units":    detail.Property.TotalUnits,
		"tenants_synced": synced,
	})
	return detail, nil
}

func (s *propertyService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.inTx(ctx, func(repos repository.Repositories) error {
		property, err := repos.Properties.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if property == nil {
			return domainerr.ErrPropertyNotFound
		}
		if property.OccupiedUnits > 0 {
			return domainerr.Wrapf(domainerr.ErrPropertyOccupied, "%d occupied", property.OccupiedUnits)
		}
		return repos.Properties.Delete(ctx, id, property.RowVersion)
	})
	if err != nil {
		return s.fail("delete property", err, map[string]interface{}{"property_id": id.String()})
	}

	s.log.Info("Property deleted", map[string]interface{}{"property_id": id.String()})
	return nil
}

func validatePropertyInput(in CreatePropertyInput) error {
	if in.OwnerID == uuid.Nil {
		return domainerr.Validation("owner id is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return domainerr.Validation("property name is required")
	}
	if strings.TrimSpace(in.PaybillNumber) == "" {
		return domainerr.Validation("paybill number is required")
	}
	if err := inventory.ValidateBillingPrefix(strings.TrimSpace(in.BillingPrefix)); err != nil {
		return err
	}
	return inventory.ValidateDeclarations(in.UnitTypes)
}

func normalizeDeclarations(decls []models.UnitTypeDeclaration) []models.UnitTypeDeclaration {
	out := make([]models.UnitTypeDeclaration, len(decls))
	for i, d := range decls {
		out[i] = models.UnitTypeDeclaration{
			Type:        strings.TrimSpace(d.Type),
			StartLabel:  strings.TrimSpace(d.StartLabel),
			EndLabel:    strings.TrimSpace(d.EndLabel),
			RentAmount:  models.RoundMoney(d.RentAmount),
			Description: strings.TrimSpace(d.Description),
		}
	}
	return out
}

func ensureReferencesFree(ctx context.Context, repos repository.Repositories, units []models.Unit, propertyID uuid.UUID) error {
	refs := make([]string, len(units))
	for i, u := range units {
		refs[i] = u.BillingReference
	}
	taken, err := repos.Units.FindBillingReferences(ctx, refs, propertyID)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return domainerr.Wrapf(domainerr.ErrDuplicateBillingRef, "%s", strings.Join(taken, ", "))
	}
	return nil
}

// syncTenantsToUnits rewrites the unit fields of tenants whose occupied unit
// changed rent or type during regeneration.
func syncTenantsToUnits(ctx context.Context, repos repository.Repositories, before, after []models.Unit) (int, error) {
	synced := 0
	for _, u := range after {
		if !u.IsOccupied || u.TenantID == nil {
			continue
		}
		old, ok := inventory.FindUnit(before, u.UnitNumber)
		if ok && old.UnitType == u.UnitType && old.RentAmount.Equal(u.RentAmount) {
			continue
		}

		tenant, err := repos.Tenants.GetByID(ctx, *u.TenantID)
		if err != nil {
			return synced, err
		}
		if tenant == nil {
			continue
		}
		bindTenant(tenant, assignmentFor(u))
		if err := repos.Tenants.UpdateIfVersion(ctx, tenant, tenant.RowVersion); err != nil {
			return synced, err
		}
		synced++
	}
	return synced, nil
}
