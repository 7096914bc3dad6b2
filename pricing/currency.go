package pricing

import (
	"strings"

	"github.com/stripe/stripe-go/v79"
)

// zeroDecimal lists the currencies Stripe charges in whole units.
var zeroDecimal = map[stripe.Currency]struct{}{
	stripe.CurrencyBIF: {},
	stripe.CurrencyCLP: {},
	stripe.CurrencyDJF: {},
	stripe.CurrencyGNF: {},
	stripe.CurrencyJPY: {},
	stripe.CurrencyKMF: {},
	stripe.CurrencyKRW: {},
	stripe.CurrencyMGA: {},
	stripe.CurrencyPYG: {},
	stripe.CurrencyRWF: {},
	stripe.CurrencyUGX: {},
	stripe.CurrencyVND: {},
	stripe.CurrencyVUV: {},
	stripe.CurrencyXAF: {},
	stripe.CurrencyXOF: {},
	stripe.CurrencyXPF: {},
}

// MinorUnits returns the number of decimal places amounts in currency carry.
func MinorUnits(currency stripe.Currency) int32 {
	if _, ok := zeroDecimal[stripe.Currency(strings.ToLower(string(currency)))]; ok {
		return 0
	}
	return 2
}
