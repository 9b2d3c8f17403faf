package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

// Audit compares a tenant's cached balance with the balance recomputed from
// the append-only payment and charge records.
type Audit struct {
	CachedBalance     decimal.Decimal `json:"cachedBalance"`
	RecomputedBalance decimal.Decimal `json:"recomputedBalance"`
	Drift             decimal.Decimal `json:"drift"`
	TotalPaid         decimal.Decimal `json:"totalPaid"`
	TotalCharged      decimal.Decimal `json:"totalCharged"`
	Payments          int             `json:"payments"`
	Charges           int             `json:"charges"`
}

// Consistent reports whether the cached balance matches the records.
func (a Audit) Consistent() bool {
	return a.Drift.IsZero()
}

// FoldBalance recomputes a balance from an opening balance plus every
// payment credited and every charge debited.
func FoldBalance(opening decimal.Decimal, payments []models.Payment, charges []models.Charge) decimal.Decimal {
	balance := opening
	for _, p := range payments {
		balance = balance.Add(p.Amount)
	}
	for _, c := range charges {
		balance = balance.Sub(c.Amount)
	}
	return models.RoundMoney(balance)
}

// AuditTenant folds the records for tenant, who opens at a zero balance
// when first allocated.
func AuditTenant(tenant *models.Tenant, payments []models.Payment, charges []models.Charge) Audit {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	charged := decimal.Zero
	for _, c := range charges {
		charged = charged.Add(c.Amount)
	}

	recomputed := FoldBalance(decimal.Zero, payments, charges)
	cached := models.RoundMoney(tenant.AccountBalance)
	return Audit{
		CachedBalance:     cached,
		RecomputedBalance: recomputed,
		Drift:             cached.Sub(recomputed),
		TotalPaid:         models.RoundMoney(paid),
		TotalCharged:      models.RoundMoney(charged),
		Payments:          len(payments),
		Charges:           len(charges),
	}
}
