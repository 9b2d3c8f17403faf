package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

// ErrVersionConflict is returned by conditional updates when the row changed
// since it was read. WithRetry re-runs the unit of work when it sees it.
var ErrVersionConflict = errors.New("row version conflict")

// ErrTooMuchContention is returned once WithRetry gives up.
var ErrTooMuchContention = fmt.Errorf("%w: too much contention, try again", domainerr.ErrConflict)

// PropertyRepository stores properties and their cached occupancy aggregate.
type PropertyRepository interface {
	// Create inserts a property. A zero ID is replaced with a new one.
	Create(ctx context.Context, p *models.Property) error

	// GetByID returns nil, nil when the property does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)

	// UpdateIfVersion writes the property's descriptive fields, unit types and
	// aggregates if its row version still equals expected. On success
	// p.RowVersion holds the new version.
	UpdateIfVersion(ctx context.Context, p *models.Property, expected int64) error

	// AdjustOccupancy atomically shifts the occupancy aggregate by the given
	// number of units and revenue. It bumps the row version so writers that
	// read the property earlier conflict.
	AdjustOccupancy(ctx context.Context, id uuid.UUID, occupied int, revenue decimal.Decimal) error

	// Delete removes a property and, by cascade, its units, if its row
	// version still equals expected.
	Delete(ctx context.Context, id uuid.UUID, expected int64) error
}

// UnitRepository stores units keyed by (property id, unit number).
type UnitRepository interface {
	CreateMany(ctx context.Context, units []models.Unit) error

	// ListByProperty returns the property's units in generation order.
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Unit, error)

	// Get returns nil, nil when the unit does not exist.
	Get(ctx context.Context, propertyID uuid.UUID, unitNumber string) (*models.Unit, error)

	// GetByBillingReference returns nil, nil when no unit has the reference.
	GetByBillingReference(ctx context.Context, ref string) (*models.Unit, error)

	// FindBillingReferences returns which of refs are already used by units
	// outside excludeProperty.
	FindBillingReferences(ctx context.Context, refs []string, excludeProperty uuid.UUID) ([]string, error)

	// UpdateIfVersion writes occupancy if the unit's row version still equals
	// expected. On success u.RowVersion holds the new version.
	UpdateIfVersion(ctx context.Context, u *models.Unit, expected int64) error

	// ReplaceForProperty swaps the property's whole inventory for units.
	ReplaceForProperty(ctx context.Context, propertyID uuid.UUID, units []models.Unit) error
}

// TenantFilter narrows tenant listings. Nil fields do not filter.
type TenantFilter struct {
	OwnerID    *uuid.UUID
	PropertyID *uuid.UUID
	Active     *bool
}

// TenantRepository stores tenants and their ledger fields.
type TenantRepository interface {
	// Create inserts a tenant. A zero ID is replaced with a new one.
	Create(ctx context.Context, t *models.Tenant) error

	// GetByID returns nil, nil when the tenant does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)

	// UpdateIfVersion writes the tenant if its row version still equals
	// expected. On success t.RowVersion holds the new version.
	UpdateIfVersion(ctx context.Context, t *models.Tenant, expected int64) error

	List(ctx context.Context, filter TenantFilter) ([]models.Tenant, error)
}

// PaymentRepository is the append-only store of reconciled payments.
type PaymentRepository interface {
	Insert(ctx context.Context, p *models.Payment) error
	ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Payment, error)
}

// ChargeRepository is the append-only store of monthly rent charges.
type ChargeRepository interface {
	Insert(ctx context.Context, c *models.Charge) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Charge, error)
}

// NotificationRepository is the append-only notification sink.
type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
}

// Repositories bundles the repositories bound to one connection or
// transaction.
type Repositories struct {
	Properties    PropertyRepository
	Units         UnitRepository
	Tenants       TenantRepository
	Payments      PaymentRepository
	Charges       ChargeRepository
	Notifications NotificationRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	// Repos returns repositories outside any transaction.
	Repos() Repositories

	// WithTx runs fn inside a transaction. Everything fn writes is committed
	// when it returns nil and discarded otherwise.
	WithTx(ctx context.Context, fn func(repos Repositories) error) error

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}

// WithRetry runs fn until it succeeds, fails with something other than a
// version conflict, or maxRetries attempts have conflicted.
func WithRetry(ctx context.Context, maxRetries int, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		// someone else updated first, retry from a fresh read
	}
	return ErrTooMuchContention
}
