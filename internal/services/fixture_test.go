package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository/memstore"
)

type sentNotification struct {
	notification models.Notification
	phone        string
}

// recordingNotifier captures what services hand off for delivery.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification, phone string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{notification: n, phone: phone})
}

func (r *recordingNotifier) all() []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentNotification(nil), r.sent...)
}

func (r *recordingNotifier) ofType(typ models.NotificationType) []sentNotification {
	var out []sentNotification
	for _, s := range r.all() {
		if s.notification.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	ctx        context.Context
	store      *memstore.Store
	notifier   *recordingNotifier
	clock      time.Time
	owner      uuid.UUID
	properties PropertyService
	allocation AllocationService
	tenants    TenantService
	payments   ReconciliationService
	billing    BillingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:      context.Background(),
		store:    memstore.New(),
		notifier: &recordingNotifier{},
		clock:    time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC),
		owner:    uuid.New(),
	}
	log := logger.New("test", logger.WithOutput(io.Discard))
	opts := Options{
		Location:   time.UTC,
		Now:        func() time.Time { return f.clock },
		MaxRetries: 50,
	}

	f.properties = NewPropertyService(f.store, log, opts)
	f.allocation = NewAllocationService(f.store, log, opts)
	f.tenants = NewTenantService(f.store, log, opts)
	f.payments = NewReconciliationService(f.store, f.notifier, log, opts)
	f.billing = NewBillingService(f.store, f.notifier, log, opts, 4)
	return f
}

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assertMoney(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, money(want).Equal(got), append([]interface{}{"want %d, got %s", want, got.String()}, msgAndArgs...)...)
}

// standardUnits declares three one-bedroom units at 20,000 and two
// two-bedroom units at 30,000.
func standardUnits() []models.UnitTypeDeclaration {
	return []models.UnitTypeDeclaration{
		{Type: "1br", StartLabel: "A1", EndLabel: "A3", RentAmount: money(20000)},
		{Type: "2br", StartLabel: "B1", EndLabel: "B2", RentAmount: money(30000)},
	}
}

func (f *fixture) createProperty(t *testing.T, prefix, paybill string) *PropertyDetail {
	t.Helper()
	detail, err := f.properties.Create(f.ctx, CreatePropertyInput{
		OwnerID:       f.owner,
		Name:          prefix + " Apartments",
		OwnerPhone:    "+254700000001",
		PaybillNumber: paybill,
		BillingPrefix: prefix,
		UnitTypes:     standardUnits(),
	})
	require.NoError(t, err)
	return detail
}

func (f *fixture) onboard(t *testing.T, propertyID uuid.UUID, unitType, preferred string) *models.Tenant {
	t.Helper()
	tenant, err := f.tenants.Onboard(f.ctx, OnboardInput{
		OwnerID:             f.owner,
		PropertyID:          propertyID,
		Name:                "Tenant " + uuid.NewString()[:8],
		Phone:               "+254711000000",
		UnitType:            unitType,
		PreferredUnitNumber: preferred,
	})
	require.NoError(t, err)
	return tenant
}

func (f *fixture) property(t *testing.T, id uuid.UUID) *PropertyDetail {
	t.Helper()
	detail, err := f.properties.Get(f.ctx, id)
	require.NoError(t, err)
	return detail
}

func (f *fixture) tenant(t *testing.T, id uuid.UUID) *models.Tenant {
	t.Helper()
	tenant, err := f.tenants.Get(f.ctx, id)
	require.NoError(t, err)
	return tenant
}

// assertAggregatesConsistent checks the cached occupancy summary against the
// unit rows.
func assertAggregatesConsistent(t *testing.T, detail *PropertyDetail) {
	t.Helper()
	p := detail.Property

	occupied := 0
	revenue := decimal.Zero
	for _, u := range detail.Units {
		assert.Equal(t, u.IsOccupied, u.TenantID != nil, "unit %s occupancy flag", u.UnitNumber)
		if u.IsOccupied {
			occupied++
			revenue = revenue.Add(u.RentAmount)
		}
	}

	assert.Equal(t, len(detail.Units), p.TotalUnits)
	assert.Equal(t, occupied, p.OccupiedUnits)
	assert.Equal(t, p.TotalUnits, p.OccupiedUnits+p.AvailableUnits)
	assert.True(t, revenue.Equal(p.MonthlyRevenue), "revenue want %s, got %s", revenue, p.MonthlyRevenue)
}

func unitByNumber(t *testing.T, detail *PropertyDetail, number string) models.Unit {
	t.Helper()
	for _, u := range detail.Units {
		if u.UnitNumber == number {
			return u
		}
	}
	t.Fatalf("unit %s not found", number)
	return models.Unit{}
}
