package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

func seedProperty(t *testing.T, s *Store, units int) *models.Property {
	t.Helper()
	ctx := context.Background()

	p := &models.Property{
		OwnerID:        uuid.New(),
		Name:           "Sunrise Court",
		PaybillNumber:  "123456",
		BillingPrefix:  "SUN",
		TotalUnits:     units,
		AvailableUnits: units,
	}
	require.NoError(t, s.Repos().Properties.Create(ctx, p))

	batch := make([]models.Unit, 0, units)
	for i := 0; i < units; i++ {
		num := string(rune('A'+i)) + "1"
		batch = append(batch, models.Unit{
			PropertyID:       p.ID,
			UnitNumber:       num,
			UnitType:         "1BR",
			RentAmount:       decimal.NewFromInt(20000),
			BillingReference: "SUN#" + num,
			Position:         i,
		})
	}
	require.NoError(t, s.Repos().Units.CreateMany(ctx, batch))
	return p
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// Arrange
	s := New()
	ctx := context.Background()
	p := seedProperty(t, s, 2)
	boom := errors.New("boom")

	// Act
	err := s.WithTx(ctx, func(repos repository.Repositories) error {
		require.NoError(t, repos.Properties.AdjustOccupancy(ctx, p.ID, 1, decimal.NewFromInt(20000)))
		return boom
	})

	// Assert
	assert.ErrorIs(t, err, boom)
	got, err := s.Repos().Properties.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.OccupiedUnits)
	assert.True(t, got.MonthlyRevenue.IsZero())
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProperty(t, s, 2)

	err := s.WithTx(ctx, func(repos repository.Repositories) error {
		return repos.Properties.AdjustOccupancy(ctx, p.ID, 1, decimal.NewFromInt(20000))
	})
	require.NoError(t, err)

	got, err := s.Repos().Properties.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.OccupiedUnits)
	assert.Equal(t, 1, got.AvailableUnits)
	assert.True(t, got.MonthlyRevenue.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, p.RowVersion+1, got.RowVersion)
}

func TestAdjustOccupancy_RejectsNegative(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProperty(t, s, 1)

	err := s.Repos().Properties.AdjustOccupancy(ctx, p.ID, -1, decimal.NewFromInt(-20000))
	assert.Error(t, err)
}

func TestUnitUpdateIfVersion_Conflict(t *testing.T) {
	// Arrange
	s := New()
	ctx := context.Background()
	p := seedProperty(t, s, 1)
	units := s.Repos().Units

	first, err := units.Get(ctx, p.ID, "A1")
	require.NoError(t, err)
	stale := *first

	first.Occupy(uuid.New())
	require.NoError(t, units.UpdateIfVersion(ctx, first, first.RowVersion))
	assert.Equal(t, int64(2), first.RowVersion)

	// Act
	stale.Occupy(uuid.New())
	err = units.UpdateIfVersion(ctx, &stale, stale.RowVersion)

	// Assert
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestCreateMany_DuplicateBillingReference(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProperty(t, s, 1)

	err := s.Repos().Units.CreateMany(ctx, []models.Unit{{
		PropertyID:       uuid.New(),
		UnitNumber:       "A1",
		BillingReference: "SUN#A1",
	}})
	assert.ErrorIs(t, err, domainerr.ErrDuplicateBillingRef)
	assert.ErrorIs(t, err, domainerr.ErrConflict)

	taken, err := s.Repos().Units.FindBillingReferences(ctx, []string{"SUN#A1", "SUN#Z9"}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"SUN#A1"}, taken)

	taken, err = s.Repos().Units.FindBillingReferences(ctx, []string{"SUN#A1"}, p.ID)
	require.NoError(t, err)
	assert.Empty(t, taken)
}

func TestListByProperty_OrderedByPosition(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProperty(t, s, 5)

	units, err := s.Repos().Units.ListByProperty(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, units, 5)
	for i, u := range units {
		assert.Equal(t, i, u.Position)
	}
}

func TestPaymentInsert_DuplicateTransaction(t *testing.T) {
	s := New()
	ctx := context.Background()
	payments := s.Repos().Payments

	pay := func() *models.Payment {
		return &models.Payment{
			TenantID: uuid.New(),
			Amount:   decimal.NewFromInt(100),
			Source:   models.PaymentSource{Kind: models.SourceGatewayCallback, TransactionID: "QK7XYZ"},
		}
	}

	require.NoError(t, payments.Insert(ctx, pay()))
	assert.ErrorIs(t, payments.Insert(ctx, pay()), domainerr.ErrDuplicatePayment)

	exists, err := payments.ExistsByTransactionID(ctx, "QK7XYZ")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestChargeInsert_OncePerMonth(t *testing.T) {
	s := New()
	ctx := context.Background()
	tenantID := uuid.New()

	c := models.Charge{TenantID: tenantID, BillingMonth: "2026-03", Amount: decimal.NewFromInt(20000)}
	first, second := c, c
	require.NoError(t, s.Repos().Charges.Insert(ctx, &first))
	assert.ErrorIs(t, s.Repos().Charges.Insert(ctx, &second), domainerr.ErrAlreadyBilled)
}

func TestNotifications_NewestFirstWithLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := uuid.New()
	repo := s.Repos().Notifications

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, repo.Insert(ctx, &models.Notification{OwnerID: owner, Message: msg}))
	}
	require.NoError(t, repo.Insert(ctx, &models.Notification{OwnerID: uuid.New(), Message: "other"}))

	got, err := repo.ListByOwner(ctx, owner, false, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Message)
	assert.Equal(t, "two", got[1].Message)
}

func TestPropertyDelete_CascadesUnitsAndUnbindsTenants(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProperty(t, s, 2)

	pid := p.ID
	tenant := &models.Tenant{OwnerID: p.OwnerID, Name: "Wanjiru", PropertyID: &pid, UnitNumber: "A1"}
	require.NoError(t, s.Repos().Tenants.Create(ctx, tenant))

	assert.ErrorIs(t, s.Repos().Properties.Delete(ctx, p.ID, p.RowVersion+1), repository.ErrVersionConflict)
	require.NoError(t, s.Repos().Properties.Delete(ctx, p.ID, p.RowVersion))

	units, err := s.Repos().Units.ListByProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, units)

	got, err := s.Repos().Tenants.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PropertyID)
}

func TestGetters_ReturnCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := seedProperty(t, s, 1)

	u, err := s.Repos().Units.Get(ctx, p.ID, "A1")
	require.NoError(t, err)
	u.Occupy(uuid.New())

	again, err := s.Repos().Units.Get(ctx, p.ID, "A1")
	require.NoError(t, err)
	assert.False(t, again.IsOccupied)
	assert.Nil(t, again.TenantID)
}
