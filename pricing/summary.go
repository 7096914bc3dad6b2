// Package pricing derives the cart's price summary from a snapshot and an
// external price lookup.
package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/storefront/models"
)

// PriceLookup resolves the unit price of an item. A missing entry means the
// catalog no longer knows the item.
type PriceLookup interface {
	Price(itemKey string) (decimal.Decimal, bool)
}

// PriceMap is a PriceLookup over a fixed map.
type PriceMap map[string]decimal.Decimal

func (m PriceMap) Price(itemKey string) (decimal.Decimal, bool) {
	price, ok := m[itemKey]
	return price, ok
}

// ComputeSummary prices snapshot. Items missing from lookup and negative
// prices or fees count as zero. Amounts are rounded to the currency's minor
// units and Total is always Subtotal + ShippingFee.
func ComputeSummary(snapshot models.CartSnapshot, lookup PriceLookup, policy ShippingPolicy, currency stripe.Currency) models.PricingResult {
	places := MinorUnits(currency)

	subtotal := decimal.Zero
	for _, item := range snapshot {
		if lookup == nil || item.Quantity <= 0 {
			continue
		}
		price, ok := lookup.Price(item.ItemKey)
		if !ok || price.IsNegative() {
			continue
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	shipping := decimal.Zero
	if policy != nil {
		shipping = policy(snapshot)
	}
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}

	subtotal = subtotal.Round(places)
	shipping = shipping.Round(places)

	return models.PricingResult{
		Currency:    currency,
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Total:       subtotal.Add(shipping),
	}
}
