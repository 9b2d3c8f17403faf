package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/inventory"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

// Assignment is the unit a tenant was bound to. Its fields are copied onto
// the tenant record.
type Assignment struct {
	RentAmount       decimal.Decimal `json:"rentAmount"`
	UnitNumber       string          `json:"unitNumber"`
	UnitType         string          `json:"unitType"`
	BillingReference string          `json:"billingReference"`
	PropertyID       uuid.UUID       `json:"propertyId"`
}

// AssignInput selects a unit for a tenant.
type AssignInput struct {
	UnitType            string
	PreferredUnitNumber string
	PropertyID          uuid.UUID
	TenantID            uuid.UUID
}

// TransferInput moves a tenant to a unit type on a (possibly different)
// property.
type TransferInput struct {
	NewUnitType         string
	PreferredUnitNumber string
	TenantID            uuid.UUID
	NewPropertyID       uuid.UUID
}

// AllocationService binds tenants to units and keeps property aggregates in
// step.
type AllocationService interface {
	// Assign occupies the preferred unit, or the first free unit of the type
	// in generation order. It does not touch the tenant record.
	Assign(ctx context.Context, in AssignInput) (*Assignment, error)

	// Release frees a unit. Releasing a free unit is a no-op. A unit held by
	// an active tenant is only freed through a move-out or transfer.
	Release(ctx context.Context, propertyID uuid.UUID, unitNumber string) error

	// Transfer assigns the new unit before releasing the old one, and rewrites
	// the tenant's unit fields, all in one transaction.
	Transfer(ctx context.Context, in TransferInput) (*Assignment, error)
}

type allocationService struct {
	base
}

// NewAllocationService creates a new instance of AllocationService.
func NewAllocationService(store repository.Store, log *logger.Logger, opts Options) AllocationService {
	return &allocationService{base: newBase(store, nil, log, opts)}
}

func (s *allocationService) Assign(ctx context.Context, in AssignInput) (*Assignment, error) {
	if err := validateAssign(in.UnitType, in.TenantID); err != nil {
		return nil, err
	}

	var assignment Assignment
	err := s.inTx(ctx, func(repos repository.Repositories) error {
		var err error
		assignment, err = assignUnit(ctx, repos, in)
		return err
	})
	if err != nil {
		return nil, s.fail("assign unit", err, map[string]interface{}{
			"property_id": in.PropertyID.String(),
			"unit_type":   in.UnitType,
			"tenant_id":   in.TenantID.String(),
		})
	}

	s.log.Info("Unit assigned", map[string]interface{}{
		"property_id": assignment.PropertyID.String(),
		"unit_number": assignment.UnitNumber,
		"tenant_id":   in.TenantID.String(),
	})
	return &assignment, nil
}

func (s *allocationService) Release(ctx context.Context, propertyID uuid.UUID, unitNumber string) error {
	released := false
	err := s.inTx(ctx, func(repos repository.Repositories) error {
		unit, err := repos.Units.Get(ctx, propertyID, unitNumber)
		if err != nil {
			return err
		}
		if unit == nil {
			return domainerr.Wrapf(domainerr.ErrUnitNotFound, "%s", unitNumber)
		}
		if unit.TenantID != nil {
			occupant, err := repos.Tenants.GetByID(ctx, *unit.TenantID)
			if err != nil {
				return err
			}
			if occupant != nil && occupant.IsActive {
				return domainerr.Wrapf(domainerr.ErrUnitHeldByTenant, "%s", unitNumber)
			}
		}
		released, err = releaseUnit(ctx, repos, propertyID, unitNumber, uuid.Nil)
		return err
	})
	if err != nil {
		return s.fail("release unit", err, map[string]interface{}{
			"property_id": propertyID.String(),
			"unit_number": unitNumber,
		})
	}

	if released {
		s.log.Info("Unit released", map[string]interface{}{
			"property_id": propertyID.String(),
			"unit_number": unitNumber,
		})
	}
	return nil
}

func (s *allocationService) Transfer(ctx context.Context, in TransferInput) (*Assignment, error) {
	if err := validateAssign(in.NewUnitType, in.TenantID); err != nil {
		return nil, err
	}

	var (
		assignment Assignment
		from       Assignment
	)
	err := s.inTx(ctx, func(repos repository.Repositories) error {
		tenant, err := repos.Tenants.GetByID(ctx, in.TenantID)
		if err != nil {
			return err
		}
		if tenant == nil {
			return domainerr.ErrTenantNotFound
		}
		if tenant.PaymentStatus == models.PaymentStatusMovedOut || !tenant.IsActive {
			return domainerr.ErrTenantMovedOut
		}
		if !tenant.IsBound() {
			return domainerr.Validation("tenant %s has no unit to transfer from", tenant.ID)
		}
		from = assignmentOf(tenant)

		assignment, err = assignUnit(ctx, repos, AssignInput{
			PropertyID:          in.NewPropertyID,
			UnitType:            in.NewUnitType,
			PreferredUnitNumber: in.PreferredUnitNumber,
			TenantID:            tenant.ID,
		})
		if err != nil {
			return err
		}
		if _, err := releaseUnit(ctx, repos, from.PropertyID, from.UnitNumber, tenant.ID); err != nil {
			return err
		}

		bindTenant(tenant, assignment)
		return repos.Tenants.UpdateIfVersion(ctx, tenant, tenant.RowVersion)
	})
	if err != nil {
		return nil, s.fail("transfer tenant", err, map[string]interface{}{
			"tenant_id":       in.TenantID.String(),
			"new_property_id": in.NewPropertyID.String(),
			"new_unit_type":   in.NewUnitType,
		})
	}

	s.log.Info("Tenant transferred", map[string]interface{}{
		"tenant_id":        in.TenantID.String(),
		"from_property_id": from.PropertyID.String(),
		"from_unit":        from.UnitNumber,
		"to_property_id":   assignment.PropertyID.String(),
		"to_unit":          assignment.UnitNumber,
	})
	return &assignment, nil
}

func validateAssign(unitType string, tenantID uuid.UUID) error {
	if strings.TrimSpace(unitType) == "" {
		return domainerr.Validation("unit type is required")
	}
	if tenantID == uuid.Nil {
		return domainerr.Validation("tenant id is required")
	}
	return nil
}

// assignUnit occupies a unit inside an open transaction.
func assignUnit(ctx context.Context, repos repository.Repositories, in AssignInput) (Assignment, error) {
	property, err := repos.Properties.GetByID(ctx, in.PropertyID)
	if err != nil {
		return Assignment{}, err
	}
	if property == nil {
		return Assignment{}, domainerr.ErrPropertyNotFound
	}

	units, err := repos.Units.ListByProperty(ctx, in.PropertyID)
	if err != nil {
		return Assignment{}, err
	}
	unit, err := inventory.SelectUnit(units, strings.TrimSpace(in.UnitType), in.PreferredUnitNumber)
	if err != nil {
		return Assignment{}, err
	}

	unit.Occupy(in.TenantID)
	if err := repos.Units.UpdateIfVersion(ctx, &unit, unit.RowVersion); err != nil {
		return Assignment{}, err
	}
	delta := inventory.AssignDelta(unit)
	if err := repos.Properties.AdjustOccupancy(ctx, in.PropertyID, delta.Occupied, delta.Revenue); err != nil {
		return Assignment{}, err
	}
	return assignmentFor(unit), nil
}

// releaseUnit frees a unit inside an open transaction and reports whether it
// was occupied. With a non-nil holder the unit is only freed while that
// tenant still occupies it.
func releaseUnit(ctx context.Context, repos repository.Repositories, propertyID uuid.UUID, unitNumber string, holder uuid.UUID) (bool, error) {
	unit, err := repos.Units.Get(ctx, propertyID, unitNumber)
	if err != nil {
		return false, err
	}
	if unit == nil {
		return false, domainerr.Wrapf(domainerr.ErrUnitNotFound, "%s", unitNumber)
	}
	if !unit.IsOccupied {
		return false, nil
	}
	if holder != uuid.Nil && (unit.TenantID == nil || *unit.TenantID != holder) {
		return false, nil
	}

	delta := inventory.ReleaseDelta(*unit)
	unit.Vacate()
	if err := repos.Units.UpdateIfVersion(ctx, unit, unit.RowVersion); err != nil {
		return false, err
	}
	if err := repos.Properties.AdjustOccupancy(ctx, propertyID, delta.Occupied, delta.Revenue); err != nil {
		return false, err
	}
	return true, nil
}

func assignmentFor(u models.Unit) Assignment {
	return Assignment{
		RentAmount:       u.RentAmount,
		UnitNumber:       u.UnitNumber,
		UnitType:         u.UnitType,
		BillingReference: u.BillingReference,
		PropertyID:       u.PropertyID,
	}
}

func assignmentOf(t *models.Tenant) Assignment {
	a := Assignment{
		RentAmount:       t.RentAmount,
		UnitNumber:       t.UnitNumber,
		UnitType:         t.UnitType,
		BillingReference: t.BillingReference,
	}
	if t.PropertyID != nil {
		a.PropertyID = *t.PropertyID
	}
	return a
}

// bindTenant copies an assignment onto the tenant record.
func bindTenant(t *models.Tenant, a Assignment) {
	propertyID := a.PropertyID
	t.PropertyID = &propertyID
	t.UnitNumber = a.UnitNumber
	t.UnitType = a.UnitType
	t.RentAmount = a.RentAmount
	t.BillingReference = a.BillingReference
}
