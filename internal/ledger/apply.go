package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

// Currency is the currency code used in notification messages.
const Currency = "KES"

// PaymentMeta carries the facts about a payment that classification does not
// depend on.
type PaymentMeta struct {
	ReceivedAt     time.Time
	Source         models.PaymentSource
	BillingMonth   string
	AheadOfBilling bool
}

// Outcome is everything a reconciled payment produces. The caller persists
// Tenant and Payment atomically and dispatches Notification afterwards.
type Outcome struct {
	Tenant       *models.Tenant
	Payment      models.Payment
	Notification models.Notification
}

// ApplyPayment applies an analysis to a copy of tenant and builds the
// payment record and owner notification. The tenant passed in is untouched.
func ApplyPayment(tenant *models.Tenant, a Analysis, meta PaymentMeta) Outcome {
	updated := tenant.Clone()
	receivedAt := meta.ReceivedAt.UTC()

	updated.AccountBalance = a.NewBalance
	updated.PaymentStatus = a.Status
	updated.LastPaymentDate = &receivedAt
	updated.PaymentHistory = AppendHistory(updated.PaymentHistory, models.PaymentHistoryEntry{
		Date:         receivedAt,
		Amount:       a.PaidAmount,
		Balance:      a.NewBalance,
		Type:         string(a.Classification),
		BillingMonth: meta.BillingMonth,
	})

	var propertyID uuid.UUID
	if tenant.PropertyID != nil {
		propertyID = *tenant.PropertyID
	}

	payment := models.Payment{
		CreatedAt:        receivedAt,
		Amount:           a.PaidAmount,
		ExpectedAmount:   models.RoundMoney(tenant.RentAmount),
		Overpayment:      a.Overpayment,
		Shortfall:        a.Shortfall,
		CarryForward:     a.CarryForward,
		ResultingBalance: a.NewBalance,
		Classification:   a.Classification,
		BillingMonth:     meta.BillingMonth,
		Source:           meta.Source,
		TenantID:         tenant.ID,
		PropertyID:       propertyID,
		OwnerID:          tenant.OwnerID,
		AheadOfBilling:   meta.AheadOfBilling,
	}

	return Outcome{
		Tenant:       updated,
		Payment:      payment,
		Notification: paymentNotification(tenant, a, receivedAt),
	}
}

// PaymentSeverity is low for good news and high for a shortfall.
func PaymentSeverity(c models.Classification) models.Severity {
	if c == models.ClassificationUnderpayment {
		return models.SeverityHigh
	}
	return models.SeverityLow
}

func paymentNotification(tenant *models.Tenant, a Analysis, at time.Time) models.Notification {
	var msg string
	switch a.Classification {
	case models.ClassificationOverpayment:
		msg = fmt.Sprintf("Payment of %s received from %s (%s). Overpayment of %s carried forward.",
			FormatAmount(a.PaidAmount), tenant.Name, tenant.BillingReference, FormatAmount(a.CarryForward))
	case models.ClassificationUnderpayment:
		msg = fmt.Sprintf("Partial payment of %s received from %s (%s). Outstanding balance %s.",
			FormatAmount(a.PaidAmount), tenant.Name, tenant.BillingReference, FormatAmount(a.Shortfall))
	default:
		msg = fmt.Sprintf("Payment of %s received from %s (%s). Account fully settled.",
			FormatAmount(a.PaidAmount), tenant.Name, tenant.BillingReference)
	}

	return models.Notification{
		CreatedAt: at,
		Type:      models.NotificationPayment,
		Severity:  PaymentSeverity(a.Classification),
		Message:   msg,
		OwnerID:   tenant.OwnerID,
		TenantID:  tenant.ID,
	}
}

// FormatAmount renders an amount with the currency code, e.g. "KES 5000.00".
func FormatAmount(d decimal.Decimal) string {
	return Currency + " " + d.StringFixed(models.MoneyPlaces)
}
