package models

import (
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
)

// PricingResult 代表購物車的價格摘要
type PricingResult struct {
	Currency    stripe.Currency `json:"currency"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
}
