package ledger

import (
	"fmt"
	"time"

	"github.com/stwalsh4118/rentledger/api/internal/models"
)

// BillingOutcome is what debiting one tenant's monthly rent produces.
type BillingOutcome struct {
	Tenant       *models.Tenant
	Charge       models.Charge
	Notification models.Notification
	// Skipped is set when the tenant is inactive or already billed for the
	// month; nothing else is populated then.
	Skipped bool
}

// BillTenant debits one month of rent from a copy of tenant. The payment
// status is reset to pending whatever it was before.
func BillTenant(tenant *models.Tenant, billingMonth string, now time.Time) BillingOutcome {
	if !tenant.IsActive || tenant.PaymentStatus == models.PaymentStatusMovedOut || tenant.LastBilledMonth == billingMonth {
		return BillingOutcome{Tenant: tenant, Skipped: true}
	}

	now = now.UTC()
	rent := models.RoundMoney(tenant.RentAmount)
	updated := tenant.Clone()
	updated.AccountBalance = models.RoundMoney(tenant.AccountBalance).Sub(rent)
	updated.PaymentStatus = models.PaymentStatusPending
	updated.LastBilledMonth = billingMonth
	updated.PaymentHistory = AppendHistory(updated.PaymentHistory, models.PaymentHistoryEntry{
		Date:         now,
		Amount:       rent.Neg(),
		Balance:      updated.AccountBalance,
		Type:         models.HistoryTypeMonthlyBilling,
		BillingMonth: billingMonth,
	})

	charge := models.Charge{
		CreatedAt:    now,
		Amount:       rent,
		BillingMonth: billingMonth,
		TenantID:     tenant.ID,
	}
	if tenant.PropertyID != nil {
		charge.PropertyID = *tenant.PropertyID
	}

	return BillingOutcome{
		Tenant: updated,
		Charge: charge,
		Notification: models.Notification{
			CreatedAt: now,
			Type:      models.NotificationReminder,
			Severity:  models.SeverityMedium,
			Message: fmt.Sprintf("Rent of %s billed to %s (%s) for %s. Balance is now %s.",
				FormatAmount(rent), tenant.Name, tenant.BillingReference, billingMonth, FormatAmount(updated.AccountBalance)),
			OwnerID:  tenant.OwnerID,
			TenantID: tenant.ID,
		},
	}
}

// MarkOverdue moves a tenant who still owes rent for the period to overdue.
// It returns false when the tenant is settled, already overdue or inactive.
func MarkOverdue(tenant *models.Tenant, billingMonth string, now time.Time) (*models.Tenant, models.Notification, bool) {
	if !tenant.IsActive || tenant.AccountBalance.Sign() >= 0 {
		return tenant, models.Notification{}, false
	}
	if tenant.PaymentStatus != models.PaymentStatusPending && tenant.PaymentStatus != models.PaymentStatusPartial {
		return tenant, models.Notification{}, false
	}

	updated := tenant.Clone()
	updated.PaymentStatus = models.PaymentStatusOverdue

	return updated, models.Notification{
		CreatedAt: now.UTC(),
		Type:      models.NotificationOverdue,
		Severity:  models.SeverityHigh,
		Message: fmt.Sprintf("Rent for %s is overdue for %s (%s). Outstanding balance %s.",
			billingMonth, tenant.Name, tenant.BillingReference, FormatAmount(tenant.AccountBalance.Abs())),
		OwnerID:  tenant.OwnerID,
		TenantID: tenant.ID,
	}, true
}
