package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
)

// Product 代表商品目錄中的商品及其單價
type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	CategoryID *uint64         `json:"category_id,omitempty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Currency   stripe.Currency `json:"currency"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
