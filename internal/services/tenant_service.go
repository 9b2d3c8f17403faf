package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/ledger"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

// OnboardInput creates a tenant and moves them into a unit.
type OnboardInput struct {
	MoveInDate          time.Time
	Name                string
	Phone               string
	Email               string
	UnitType            string
	PreferredUnitNumber string
	OwnerID             uuid.UUID
	PropertyID          uuid.UUID
}

// TenantService manages the tenant lifecycle around the ledger.
type TenantService interface {
	// Onboard creates the tenant and assigns a unit in one transaction. The
	// tenant starts pending with a zero balance.
	Onboard(ctx context.Context, in OnboardInput) (*models.Tenant, error)

	// Get returns ErrTenantNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)

	List(ctx context.Context, filter repository.TenantFilter) ([]models.Tenant, error)

	// MoveOut releases the tenant's unit and deactivates them. The unit
	// fields stay on the record for history. Moving out twice fails with
	// ErrTenantMovedOut.
	MoveOut(ctx context.Context, id uuid.UUID, at time.Time) (*models.Tenant, error)

	// AuditBalance recomputes the balance from stored payments and charges.
	AuditBalance(ctx context.Context, id uuid.UUID) (*ledger.Audit, error)
}

type tenantService struct {
	base
}

// NewTenantService creates a new instance of TenantService.
func NewTenantService(store repository.Store, log *logger.Logger, opts Options) TenantService {
	return &tenantService{base: newBase(store, nil, log, opts)}
}

func (s *tenantService) Onboard(ctx context.Context, in OnboardInput) (*models.Tenant, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, domainerr.Validation("tenant name is required")
	}
	if in.OwnerID == uuid.Nil {
		return nil, domainerr.Validation("owner id is required")
	}
	if strings.TrimSpace(in.UnitType) == "" {
		return nil, domainerr.Validation("unit type is required")
	}

	moveIn := in.MoveInDate
	if moveIn.IsZero() {
		moveIn = s.now()
	}

	var tenant *models.Tenant
	err := s.inTx(ctx, func(repos repository.Repositories) error {
		property, err := repos.Properties.GetByID(ctx, in.PropertyID)
		if err != nil {
			return err
		}
		if property == nil {
			return domainerr.ErrPropertyNotFound
		}
		if property.OwnerID != in.OwnerID {
			return domainerr.Validation("property %s does not belong to owner %s", property.ID, in.OwnerID)
		}

		tenant = &models.Tenant{
			ID:             uuid.New(),
			OwnerID:        in.OwnerID,
			Name:           strings.TrimSpace(in.Name),
			Phone:          strings.TrimSpace(in.Phone),
			Email:          strings.TrimSpace(in.Email),
			IsActive:       true,
			PaymentStatus:  models.PaymentStatusPending,
			AccountBalance: decimal.Zero,
			PaymentHistory: []models.PaymentHistoryEntry{},
			MoveInDate:     moveIn.UTC(),
		}

		assignment, err := assignUnit(ctx, repos, AssignInput{
			PropertyID:          in.PropertyID,
			UnitType:            in.UnitType,
			PreferredUnitNumber: in.PreferredUnitNumber,
			TenantID:            tenant.ID,
		})
		if err != nil {
			return err
		}
		bindTenant(tenant, assignment)
		return repos.Tenants.Create(ctx, tenant)
	})
	if err != nil {
		return nil, s.fail("onboard tenant", err, map[string]interface{}{
			"property_id": in.PropertyID.String(),
			"unit_type":   in.UnitType,
		})
	}

	s.log.Info("Tenant onboarded", map[string]interface{}{
		"tenant_id":         tenant.ID.String(),
		"property_id":       in.PropertyID.String(),
		"unit_number":       tenant.UnitNumber,
		"billing_reference": tenant.BillingReference,
	})
	return tenant, nil
}

func (s *tenantService) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.store.Repos().Tenants.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, domainerr.ErrTenantNotFound
	}
	return tenant, nil
}

func (s *tenantService) List(ctx context.Context, filter repository.TenantFilter) ([]models.Tenant, error) {
	tenants, err := s.store.Repos().Tenants.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

func (s *tenantService) MoveOut(ctx context.Context, id uuid.UUID, at time.Time) (*models.Tenant, error) {
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	var tenant *models.Tenant
	err := s.inTx(ctx, func(repos repository.Repositories) error {
		var err error
		tenant, err = repos.Tenants.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if tenant == nil {
			return domainerr.ErrTenantNotFound
		}
		if tenant.PaymentStatus == models.PaymentStatusMovedOut {
			return domainerr.ErrTenantMovedOut
		}

		if tenant.IsBound() {
			if _, err := releaseUnit(ctx, repos, *tenant.PropertyID, tenant.UnitNumber, tenant.ID); err != nil {
				return err
			}
		}

		tenant.IsActive = false
		tenant.PaymentStatus = models.PaymentStatusMovedOut
		tenant.MoveOutDate = &at
		return repos.Tenants.UpdateIfVersion(ctx, tenant, tenant.RowVersion)
	})
	if err != nil {
		return nil, s.fail("move out tenant", err, map[string]interface{}{"tenant_id": id.String()})
	}

	s.log.Info("Tenant moved out", map[string]interface{}{
		"tenant_id":       id.String(),
		"unit_number":     tenant.UnitNumber,
		"closing_balance": tenant.AccountBalance.StringFixed(models.MoneyPlaces),
	})
	return tenant, nil
}

func (s *tenantService) AuditBalance(ctx context.Context, id uuid.UUID) (*ledger.Audit, error) {
	repos := s.store.Repos()

	tenant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := repos.Payments.ListByTenant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	charges, err := repos.Charges.ListByTenant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load charges: %w", err)
	}

	audit := ledger.AuditTenant(tenant, payments, charges)
	if !audit.Consistent() {
		s.log.Warn("Tenant balance drift detected", map[string]interface{}{
			"tenant_id":  id.String(),
			"cached":     audit.CachedBalance.StringFixed(models.MoneyPlaces),
			"recomputed": audit.RecomputedBalance.StringFixed(models.MoneyPlaces),
			"drift":      audit.Drift.StringFixed(models.MoneyPlaces),
		})
	}
	return &audit, nil
}
