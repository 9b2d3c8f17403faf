// Package ledger holds the tenant account arithmetic: classifying payments
// against the running balance, applying them, debiting monthly rent and
// folding the stored records back into a balance for audits.
//
// The account balance is signed. Positive is credit held for the tenant,
// negative is rent owed. Payments only ever credit it and the monthly
// billing sweep is the only place rent is debited.
package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

// Analysis is the result of classifying a payment against a tenant balance.
type Analysis struct {
	PaidAmount      decimal.Decimal       `json:"paidAmount"`
	PreviousBalance decimal.Decimal       `json:"previousBalance"`
	NewBalance      decimal.Decimal       `json:"newBalance"`
	Overpayment     decimal.Decimal       `json:"overpayment"`
	Shortfall       decimal.Decimal       `json:"shortfall"`
	CarryForward    decimal.Decimal       `json:"carryForward"`
	Classification  models.Classification `json:"classification"`
	Status          models.PaymentStatus  `json:"status"`
}

// AnalyzePayment classifies paid against the tenant's current balance. It
// does not read or write anything beyond its arguments.
func AnalyzePayment(paid decimal.Decimal, tenant *models.Tenant) Analysis {
	paid = models.RoundMoney(paid)
	previous := models.RoundMoney(tenant.AccountBalance)
	newBalance := previous.Add(paid)

	a := Analysis{
		PaidAmount:      paid,
		PreviousBalance: previous,
		NewBalance:      newBalance,
		Overpayment:     decimal.Zero,
		Shortfall:       decimal.Zero,
		CarryForward:    decimal.Zero,
	}

	switch newBalance.Sign() {
	case 1:
		a.Classification = models.ClassificationOverpayment
		a.Overpayment = newBalance
		a.CarryForward = newBalance
		a.Status = models.PaymentStatusPaid
	case -1:
		a.Classification = models.ClassificationUnderpayment
		a.Shortfall = newBalance.Abs()
		a.Status = models.PaymentStatusPartial
	default:
		a.Classification = models.ClassificationExact
		a.Status = models.PaymentStatusPaid
	}
	return a
}
