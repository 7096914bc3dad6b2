package pricing

import (
	"github.com/shopspring/decimal"

	"goflare.io/storefront/models"
)

// ShippingPolicy derives the shipping fee for a cart.
type ShippingPolicy func(snapshot models.CartSnapshot) decimal.Decimal

// FlatRate charges fee once for any non-empty cart. It is the storefront default.
func FlatRate(fee decimal.Decimal) ShippingPolicy {
	return func(snapshot models.CartSnapshot) decimal.Decimal {
		if snapshot.IsEmpty() {
			return decimal.Zero
		}
		return fee
	}
}

func Free() ShippingPolicy {
	return func(models.CartSnapshot) decimal.Decimal {
		return decimal.Zero
	}
}

// PerUnit charges fee for every unit in the cart.
func PerUnit(fee decimal.Decimal) ShippingPolicy {
	return func(snapshot models.CartSnapshot) decimal.Decimal {
		return fee.Mul(decimal.NewFromInt(int64(snapshot.TotalQuantity())))
	}
}
