package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

func TestAllocationService_AssignFirstFreeInOrder(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")

	first, err := f.allocation.Assign(f.ctx, AssignInput{PropertyID: detail.Property.ID, UnitType: "1br", TenantID: uuid.New()})
	require.NoError(t, err)
	second, err := f.allocation.Assign(f.ctx, AssignInput{PropertyID: detail.Property.ID, UnitType: "1br", TenantID: uuid.New()})
	require.NoError(t, err)

	assert.Equal(t, "A1", first.UnitNumber)
	assert.Equal(t, "A2", second.UnitNumber)
	assert.Equal(t, "SUN#A2", second.BillingReference)
	assertMoney(t, 20000, second.RentAmount)

	stored := f.property(t, detail.Property.ID)
	assert.Equal(t, 2, stored.Property.OccupiedUnits)
	assert.Equal(t, 3, stored.Property.AvailableUnits)
	assertMoney(t, 40000, stored.Property.MonthlyRevenue)
	assertAggregatesConsistent(t, stored)
}

func TestAllocationService_AssignPreferred(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")
	pid := detail.Property.ID

	got, err := f.allocation.Assign(f.ctx, AssignInput{PropertyID: pid, UnitType: "2br", PreferredUnitNumber: "B2", TenantID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, "B2", got.UnitNumber)

	t.Run("preferred unit already taken", func(t *testing.T) {
		_, err := f.allocation.Assign(f.ctx, AssignInput{PropertyID: pid, UnitType: "2br", PreferredUnitNumber: "B2", TenantID: uuid.New()})
		assert.ErrorIs(t, err, domainerr.ErrUnitNotAvailable)
	})

	t.Run("preferred unit of another type", func(t *testing.T) {
		_, err := f.allocation.Assign(f.ctx, AssignInput{PropertyID: pid, UnitType: "2br", PreferredUnitNumber: "A1", TenantID: uuid.New()})
		assert.ErrorIs(t, err, domainerr.ErrUnitNotAvailable)
	})

	t.Run("preferred unit that does not exist", func(t *testing.T) {
		_, err := f.allocation.Assign(f.ctx, AssignInput{PropertyID: pid, UnitType: "2br", PreferredUnitNumber: "Z9", TenantID: uuid.New()})
		assert.ErrorIs(t, err, domainerr.ErrUnitNotAvailable)
	})

	assertAggregatesConsistent(t, f.property(t, pid))
}

func TestAllocationService_AssignErrors(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")
	pid := detail.Property.ID

	for i := 0; i < 2; i++ {
		_, err := f.allocation.Assign(f.ctx, AssignInput{PropertyID: pid, UnitType: "2br", TenantID: uuid.New()})
		require.NoError(t, err)
	}

	_, err := f.allocation.Assign(f.ctx, AssignInput{PropertyID: pid, UnitType: "2br", TenantID: uuid.New()})
	assert.ErrorIs(t, err, domainerr.ErrNoAvailableUnits)

	_, err = f.allocation.Assign(f.ctx, AssignInput{PropertyID: pid, UnitType: "penthouse", TenantID: uuid.New()})
	assert.ErrorIs(t, err, domainerr.ErrNoAvailableUnits)

	_, err = f.allocation.Assign(f.ctx, AssignInput{PropertyID: uuid.New(), UnitType: "1br", TenantID: uuid.New()})
	assert.ErrorIs(t, err, domainerr.ErrPropertyNotFound)

	_, err = f.allocation.Assign(f.ctx, AssignInput{PropertyID: pid, UnitType: "", TenantID: uuid.New()})
	assert.ErrorIs(t, err, domainerr.ErrValidation)
}

func TestAllocationService_ReleaseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")
	pid := detail.Property.ID

	_, err := f.allocation.Assign(f.ctx, AssignInput{PropertyID: pid, UnitType: "2br", TenantID: uuid.New()})
	require.NoError(t, err)

	require.NoError(t, f.allocation.Release(f.ctx, pid, "B1"))
	once := f.property(t, pid)
	require.NoError(t, f.allocation.Release(f.ctx, pid, "B1"))
	twice := f.property(t, pid)

	assert.Equal(t, 0, twice.Property.OccupiedUnits)
	assert.Equal(t, once.Property.Aggregates().OccupiedUnits, twice.Property.Aggregates().OccupiedUnits)
	assert.True(t, once.Property.MonthlyRevenue.Equal(twice.Property.MonthlyRevenue))
	assert.False(t, unitByNumber(t, twice, "B1").IsOccupied)
	assertAggregatesConsistent(t, twice)

	err = f.allocation.Release(f.ctx, pid, "Z9")
	assert.ErrorIs(t, err, domainerr.ErrUnitNotFound)
}

func TestAllocationService_TransferAcrossProperties(t *testing.T) {
	f := newFixture(t)
	p1 := f.createProperty(t, "SUN", "600100")
	p2 := f.createProperty(t, "MOON", "600200")
	tenant := f.onboard(t, p1.Property.ID, "1br", "A1")

	got, err := f.allocation.Transfer(f.ctx, TransferInput{
		TenantID:      tenant.ID,
		NewPropertyID: p2.Property.ID,
		NewUnitType:   "2br",
	})
	require.NoError(t, err)
	assert.Equal(t, "B1", got.UnitNumber)

	from := f.property(t, p1.Property.ID)
	to := f.property(t, p2.Property.ID)
	assert.Equal(t, 0, from.Property.OccupiedUnits)
	assert.False(t, unitByNumber(t, from, "A1").IsOccupied)
	assert.Equal(t, 1, to.Property.OccupiedUnits)
	assertMoney(t, 30000, to.Property.MonthlyRevenue)
	assertAggregatesConsistent(t, from)
	assertAggregatesConsistent(t, to)

	moved := f.tenant(t, tenant.ID)
	require.NotNil(t, moved.PropertyID)
	assert.Equal(t, p2.Property.ID, *moved.PropertyID)
	assert.Equal(t, "B1", moved.UnitNumber)
	assert.Equal(t, "MOON#B1", moved.BillingReference)
	assert.Equal(t, "2br", moved.UnitType)
	assertMoney(t, 30000, moved.RentAmount)
}

func TestAllocationService_TransferFailureKeepsOldUnit(t *testing.T) {
	f := newFixture(t)
	p1 := f.createProperty(t, "SUN", "600100")
	p2 := f.createProperty(t, "MOON", "600200")
	tenant := f.onboard(t, p1.Property.ID, "1br", "A1")

	_, err := f.allocation.Transfer(f.ctx, TransferInput{
		TenantID:      tenant.ID,
		NewPropertyID: p2.Property.ID,
		NewUnitType:   "studio",
	})
	assert.ErrorIs(t, err, domainerr.ErrNoAvailableUnits)

	from := f.property(t, p1.Property.ID)
	assert.True(t, unitByNumber(t, from, "A1").IsOccupied)
	assert.Equal(t, 1, from.Property.OccupiedUnits)

	stayed := f.tenant(t, tenant.ID)
	assert.Equal(t, "A1", stayed.UnitNumber)
	assert.Equal(t, "SUN#A1", stayed.BillingReference)
}

func TestAllocationService_TransferRejectsMovedOutTenant(t *testing.T) {
	f := newFixture(t)
	p1 := f.createProperty(t, "SUN", "600100")
	tenant := f.onboard(t, p1.Property.ID, "1br", "")

	_, err := f.tenants.MoveOut(f.ctx, tenant.ID, f.clock)
	require.NoError(t, err)

	_, err = f.allocation.Transfer(f.ctx, TransferInput{TenantID: tenant.ID, NewPropertyID: p1.Property.ID, NewUnitType: "2br"})
	assert.ErrorIs(t, err, domainerr.ErrTenantMovedOut)

	_, err = f.allocation.Transfer(f.ctx, TransferInput{TenantID: uuid.New(), NewPropertyID: p1.Property.ID, NewUnitType: "2br"})
	assert.ErrorIs(t, err, domainerr.ErrTenantNotFound)
}

func TestAllocationService_ConcurrentAssignNeverDoubleBooks(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")
	pid := detail.Property.ID

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		assigned []string
		failures []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.allocation.Assign(f.ctx, AssignInput{PropertyID: pid, UnitType: "1br", TenantID: uuid.New()})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			assigned = append(assigned, got.UnitNumber)
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"A1", "A2", "A3"}, assigned)
	assert.Len(t, failures, workers-3)
	for _, err := range failures {
		assert.ErrorIs(t, err, domainerr.ErrNoAvailableUnits)
	}
	assertAggregatesConsistent(t, f.property(t, pid))
}

func TestAllocationService_ReleaseRefusesActiveOccupant(t *testing.T) {
	f := newFixture(t)
	pid := f.createProperty(t, "SUN", "600100").Property.ID
	tenant := f.onboard(t, pid, "2br", "B1")

	err := f.allocation.Release(f.ctx, pid, "B1")
	assert.ErrorIs(t, err, domainerr.ErrUnitHeldByTenant)
	assert.ErrorIs(t, err, domainerr.ErrConflict)

	detail := f.property(t, pid)
	unit := unitByNumber(t, detail, "B1")
	assert.True(t, unit.IsOccupied)
	require.NotNil(t, unit.TenantID)
	assert.Equal(t, tenant.ID, *unit.TenantID)
	assert.Equal(t, 1, detail.Property.OccupiedUnits)

	_, err = f.tenants.MoveOut(f.ctx, tenant.ID, f.clock)
	require.NoError(t, err)
	require.NoError(t, f.allocation.Release(f.ctx, pid, "B1"))
	assert.False(t, unitByNumber(t, f.property(t, pid), "B1").IsOccupied)
}

func TestAllocationService_StaleHolderDoesNotEvictNewOccupant(t *testing.T) {
	f := newFixture(t)
	pid := f.createProperty(t, "SUN", "600100").Property.ID
	moon := f.createProperty(t, "MOON", "600200").Property.ID
	first := f.onboard(t, pid, "2br", "B1")

	// Free B1 behind the first tenant's back and hand it to someone else.
	require.NoError(t, f.store.WithTx(f.ctx, func(repos repository.Repositories) error {
		_, err := releaseUnit(f.ctx, repos, pid, "B1", uuid.Nil)
		return err
	}))
	second := f.onboard(t, pid, "2br", "B1")

	_, err := f.allocation.Transfer(f.ctx, TransferInput{TenantID: first.ID, NewPropertyID: moon, NewUnitType: "1br"})
	require.NoError(t, err)
	_, err = f.tenants.MoveOut(f.ctx, first.ID, f.clock)
	require.NoError(t, err)

	detail := f.property(t, pid)
	unit := unitByNumber(t, detail, "B1")
	assert.True(t, unit.IsOccupied)
	require.NotNil(t, unit.TenantID)
	assert.Equal(t, second.ID, *unit.TenantID)
	assertAggregatesConsistent(t, detail)

	still := f.tenant(t, second.ID)
	assert.True(t, still.IsActive)
	assert.Equal(t, "B1", still.UnitNumber)

	_, err = f.tenants.Onboard(f.ctx, OnboardInput{
		OwnerID:             f.owner,
		PropertyID:          pid,
		Name:                "Third",
		UnitType:            "2br",
		PreferredUnitNumber: "B1",
	})
	assert.ErrorIs(t, err, domainerr.ErrConflict)
}
