// Package pricing derives display values from catalog prices.
package pricing

import (
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
)

const currencySymbol = "$"

// FormatAmount renders an amount of minor currency units, e.g. 500 -> "$5.00".
// The storefront sells in a single dollar currency with two decimal places,
// so the symbol and scale are fixed and the price currency is not consulted.
func FormatAmount(minor int64) string {
	return currencySymbol + decimal.New(minor, -2).StringFixed(2)
}

// CheapestNonRecurring returns the one-time price with the lowest unit amount.
//
// Ties keep the first price seen. A price without an amount never beats a
// priced one. The second result is false when no one-time price exists.
func CheapestNonRecurring(prices []domain.Price) (domain.Price, bool) {
	var (
		cheapest domain.Price
		found    bool
	)

	for _, p := range prices {
		if p.Type != domain.PriceOneTime {
			continue
		}
		if !found {
			cheapest, found = p, true
			continue
		}
		if cheaper(p, cheapest) {
			cheapest = p
		}
	}
	return cheapest, found
}

func cheaper(p, than domain.Price) bool {
	switch {
	case p.UnitAmount == nil:
		return false
	case than.UnitAmount == nil:
		return true
	default:
		return *p.UnitAmount < *than.UnitAmount
	}
}

// FormatUnitAmountRange returns a single amount when every priced entry
// shares it, otherwise "low - high". Prices without amounts are skipped.
func FormatUnitAmountRange(prices []domain.Price) string {
	var (
		low, high int64
		seen      bool
	)

	for _, p := range prices {
		if p.UnitAmount == nil {
			continue
		}
		a := *p.UnitAmount
		if !seen {
			low, high, seen = a, a, true
			continue
		}
		low = min(low, a)
		high = max(high, a)
	}

	if !seen {
		return ""
	}
	if low == high {
		return FormatAmount(low)
	}
	return FormatAmount(low) + " - " + FormatAmount(high)
}

// UniqueRecurringIntervals keeps the first recurring price of every
// distinct (interval, interval count) pair, in first-seen order.
func UniqueRecurringIntervals(prices []domain.Price) []domain.Price {
	seen := make(map[domain.Recurring]struct{})
	out := make([]domain.Price, 0)

	for _, p := range prices {
		if !p.IsRecurring() || p.Recurring == nil {
			continue
		}
		key := *p.Recurring
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// DefaultOrCheapest picks the price used when a product goes to the cart:
// its default price, or else its cheapest one-time price.
func DefaultOrCheapest(defaultPrice *domain.Price, prices []domain.Price) (domain.Price, bool) {
	if defaultPrice != nil && defaultPrice.ID != "" {
		return *defaultPrice, true
	}
	return CheapestNonRecurring(prices)
}
