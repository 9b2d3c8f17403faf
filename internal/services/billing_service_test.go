package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

func TestRunMonthlySweep_DebitsRent(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")
	tenant := f.onboard(t, detail.Property.ID, "1br", "")

	// first month billed and overpaid to leave 5,000 credit
	_, err := f.billing.RunMonthlySweep(f.ctx, "2025-02")
	require.NoError(t, err)
	_, err = f.payments.ReconcilePayment(f.ctx, PaymentInput{TenantID: tenant.ID, Amount: money(25000)})
	require.NoError(t, err)
	assertMoney(t, 5000, f.tenant(t, tenant.ID).AccountBalance)

	report, err := f.billing.RunMonthlySweep(f.ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-03", report.BillingMonth)
	assert.Equal(t, 1, report.Billed)
	assert.Equal(t, 0, report.Failed)
	assertMoney(t, 20000, report.TotalCharged)

	billed := f.tenant(t, tenant.ID)
	assertMoney(t, -15000, billed.AccountBalance)
	assert.Equal(t, models.PaymentStatusPending, billed.PaymentStatus)
	assert.Equal(t, "2025-03", billed.LastBilledMonth)

	last := billed.PaymentHistory[len(billed.PaymentHistory)-1]
	assert.Equal(t, models.HistoryTypeMonthlyBilling, last.Type)
	assertMoney(t, -20000, last.Amount)
	assert.Equal(t, "2025-03", last.BillingMonth)

	reminders := f.notifier.ofType(models.NotificationReminder)
	require.Len(t, reminders, 2)
	assert.Equal(t, models.SeverityMedium, reminders[1].notification.Severity)
	assert.Contains(t, reminders[1].notification.Message, "KES 20000.00")
}

func TestRunMonthlySweep_OncePerMonth(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")
	a := f.onboard(t, detail.Property.ID, "1br", "")
	b := f.onboard(t, detail.Property.ID, "2br", "")

	first, err := f.billing.RunMonthlySweep(f.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Billed)
	assertMoney(t, 50000, first.TotalCharged)

	second, err := f.billing.RunMonthlySweep(f.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Billed)
	assert.Equal(t, 2, second.Skipped)
	assertMoney(t, 0, second.TotalCharged)

	assertMoney(t, -20000, f.tenant(t, a.ID).AccountBalance)
	assertMoney(t, -30000, f.tenant(t, b.ID).AccountBalance)

	audit, err := f.tenants.AuditBalance(f.ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent())
	assert.Equal(t, 1, audit.Charges)
}

func TestRunMonthlySweep_SkipsMovedOutTenants(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")
	stay := f.onboard(t, detail.Property.ID, "1br", "")
	leave := f.onboard(t, detail.Property.ID, "1br", "")

	_, err := f.tenants.MoveOut(f.ctx, leave.ID, f.clock)
	require.NoError(t, err)

	report, err := f.billing.RunMonthlySweep(f.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Billed)

	assertMoney(t, -20000, f.tenant(t, stay.ID).AccountBalance)
	gone := f.tenant(t, leave.ID)
	assertMoney(t, 0, gone.AccountBalance)
	assert.Equal(t, models.PaymentStatusMovedOut, gone.PaymentStatus)
}

func TestRunMonthlySweep_InvalidMonth(t *testing.T) {
	f := newFixture(t)

	_, err := f.billing.RunMonthlySweep(f.ctx, "March")
	assert.ErrorIs(t, err, domainerr.ErrValidation)
}

func TestRunMonthlySweep_CancelledContextReportsFailures(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")
	f.onboard(t, detail.Property.ID, "1br", "")

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	// listing tenants does not check the context in memory, so the per
	// tenant work is what fails
	report, err := f.billing.RunMonthlySweep(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Error, "context canceled")
}

func TestRunMonthlySweep_ManyTenantsConcurrently(t *testing.T) {
	f := newFixture(t)
	detail, err := f.properties.Create(f.ctx, CreatePropertyInput{
		OwnerID:       f.owner,
		Name:          "Tower",
		PaybillNumber: "600300",
		BillingPrefix: "TWR",
		UnitTypes: []models.UnitTypeDeclaration{
			{Type: "studio", StartLabel: "S1", EndLabel: "S40", RentAmount: money(9000)},
		},
	})
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		f.onboard(t, detail.Property.ID, "studio", "")
	}

	report, err := f.billing.RunMonthlySweep(f.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 40, report.Billed)
	assert.Equal(t, 0, report.Failed)
	assertMoney(t, 360000, report.TotalCharged)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestMarkOverdue(t *testing.T) {
	f := newFixture(t)
	detail := f.createProperty(t, "SUN", "600100")
	paid := f.onboard(t, detail.Property.ID, "1br", "")
	partial := f.onboard(t, detail.Property.ID, "1br", "")
	silent := f.onboard(t, detail.Property.ID, "2br", "")

	_, err := f.billing.RunMonthlySweep(f.ctx, "")
	require.NoError(t, err)
	_, err = f.payments.ReconcilePayment(f.ctx, PaymentInput{TenantID: paid.ID, Amount: money(20000)})
	require.NoError(t, err)
	_, err = f.payments.ReconcilePayment(f.ctx, PaymentInput{TenantID: partial.ID, Amount: money(5000)})
	require.NoError(t, err)

	f.clock = f.clock.Add(5 * 24 * time.Hour)
	report, err := f.billing.MarkOverdue(f.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Marked)
	assert.Equal(t, 1, report.Unchanged)

	assert.Equal(t, models.PaymentStatusPaid, f.tenant(t, paid.ID).PaymentStatus)
	assert.Equal(t, models.PaymentStatusOverdue, f.tenant(t, partial.ID).PaymentStatus)
	assert.Equal(t, models.PaymentStatusOverdue, f.tenant(t, silent.ID).PaymentStatus)

	overdue := f.notifier.ofType(models.NotificationOverdue)
	require.Len(t, overdue, 2)
	for _, n := range overdue {
		assert.Equal(t, models.SeverityHigh, n.notification.Severity)
		assert.Equal(t, "+254700000001", n.phone)
	}

	again, err := f.billing.MarkOverdue(f.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Marked)
	assert.Len(t, f.notifier.ofType(models.NotificationOverdue), 2)
}
