package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

func TestTenantService_Onboard(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")

	tenant := f.onboard(t, detail.Property.ID, "2br", "")

	assert.True(t, tenant.IsActive)
	assert.Equal(t, models.PaymentStatusPending, tenant.PaymentStatus)
	assertMoney(t, 0, tenant.AccountBalance)
	assert.Equal(t, "B1", tenant.UnitNumber)
	assert.Equal(t, "SUN#B1", tenant.BillingReference)
	assertMoney(t, 30000, tenant.RentAmount)
	assert.True(t, f.clock.Equal(tenant.MoveInDate))

	stored := f.property(t, detail.Property.ID)
	b1 := unitByNumber(t, stored, "B1")
	require.NotNil(t, b1.TenantID)
	assert.Equal(t, tenant.ID, *b1.TenantID)
	assertAggregatesConsistent(t, stored)
}

func TestTenantService_OnboardFailuresLeaveNoTrace(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")

	_, err := f.tenants.Onboard(f.ctx, OnboardInput{
		OwnerID:    uuid.New(),
		PropertyID: detail.Property.ID,
		Name:       "Intruder",
		UnitType:   "1br",
	})
	assert.ErrorIs(t, err, domainerr.ErrValidation)

	_, err = f.tenants.Onboard(f.ctx, OnboardInput{
		OwnerID:    f.owner,
		PropertyID: detail.Property.ID,
		Name:       "Late",
		UnitType:   "studio",
	})
	assert.ErrorIs(t, err, domainerr.ErrNoAvailableUnits)

	_, err = f.tenants.Onboard(f.ctx, OnboardInput{OwnerID: f.owner, PropertyID: detail.Property.ID, UnitType: "1br"})
	assert.ErrorIs(t, err, domainerr.ErrValidation)

	tenants, err := f.tenants.List(f.ctx, repository.TenantFilter{OwnerID: &f.owner})
	require.NoError(t, err)
	assert.Empty(t, tenants)
	assert.Equal(t, 0, f.property(t, detail.Property.ID).Property.OccupiedUnits)
}

func TestTenantService_MoveOut(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")
	tenant := f.onboard(t, detail.Property.ID, "1br", "A3")

	at := f.clock.Add(48 * time.Hour)
	moved, err := f.tenants.MoveOut(f.ctx, tenant.ID, at)
	require.NoError(t, err)

	assert.False(t, moved.IsActive)
	assert.Equal(t, models.PaymentStatusMovedOut, moved.PaymentStatus)
	require.NotNil(t, moved.MoveOutDate)
	assert.True(t, at.Equal(*moved.MoveOutDate))
	assert.Equal(t, "A3", moved.UnitNumber, "unit fields are kept for history")

	stored := f.property(t, detail.Property.ID)
	assert.False(t, unitByNumber(t, stored, "A3").IsOccupied)
	assertAggregatesConsistent(t, stored)

	_, err = f.tenants.MoveOut(f.ctx, tenant.ID, at)
	assert.ErrorIs(t, err, domainerr.ErrTenantMovedOut)

	_, err = f.tenants.MoveOut(f.ctx, uuid.New(), at)
	assert.ErrorIs(t, err, domainerr.ErrTenantNotFound)
}

func TestTenantService_ListFilters(t *testing.T) {
	f := newFixture(t)
	p1 := f.createProperty(t, "SUN", "600100")
	p2 := f.createProperty(t, "MOON", "600200")

	a := f.onboard(t, p1.Property.ID, "1br", "")
	f.onboard(t, p1.Property.ID, "2br", "")
	f.onboard(t, p2.Property.ID, "1br", "")
	_, err := f.tenants.MoveOut(f.ctx, a.ID, f.clock)
	require.NoError(t, err)

	all, err := f.tenants.List(f.ctx, repository.TenantFilter{OwnerID: &f.owner})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onP1, err := f.tenants.List(f.ctx, repository.TenantFilter{OwnerID: &f.owner, PropertyID: &p1.Property.ID})
	require.NoError(t, err)
	assert.Len(t, onP1, 2)

	active := true
	activeOnP1, err := f.tenants.List(f.ctx, repository.TenantFilter{PropertyID: &p1.Property.ID, Active: &active})
	require.NoError(t, err)
	require.Len(t, activeOnP1, 1)
	assert.NotEqual(t, a.ID, activeOnP1[0].ID)

	other := uuid.New()
	none, err := f.tenants.List(f.ctx, repository.TenantFilter{OwnerID: &other})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTenantService_GetUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.tenants.Get(f.ctx, uuid.New())
	assert.ErrorIs(t, err, domainerr.ErrTenantNotFound)
}
