package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places currency values are kept to.
const MoneyPlaces = 2

// billingMonthLayout is the canonical format of a billing month ("2025-03").
const billingMonthLayout = "2006-01"

// RoundMoney rounds a currency amount half away from zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ParseMoney parses a decimal currency string and rounds it.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return RoundMoney(d), nil
}

// BillingMonthOf returns the billing month containing t.
func BillingMonthOf(t time.Time) string {
	return t.Format(billingMonthLayout)
}

// ParseBillingMonth validates a billing month string and returns the first
// instant of that month in UTC.
func ParseBillingMonth(month string) (time.Time, error) {
	t, err := time.Parse(billingMonthLayout, month)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid billing month %q: expected YYYY-MM", month)
	}
	return t, nil
}
