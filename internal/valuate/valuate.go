// Package valuate converts raw token amounts into display amounts and USD
// values.
package valuate

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"solana-buybot/internal/pricing"
)

// Valuation is the priced view of a raw transfer total.
type Valuation struct {
	TokenAmount decimal.Decimal // scaled by the mint's decimals
	PriceUSD    decimal.Decimal // zero when no price was available
	USDValue    decimal.Decimal // TokenAmount * PriceUSD
}

// TokenAmount scales a raw integer amount by the mint's decimals. The math is
// exact decimal arithmetic, never floating point.
func TokenAmount(raw uint64, decimals int) decimal.Decimal {
	return decimal.NewFromUint64(raw).Shift(-int32(decimals))
}

// Valuator prices transfer totals via a price feed.
type Valuator struct {
	feed pricing.PriceFeed
}

// NewValuator creates a Valuator on top of the given price feed.
func NewValuator(feed pricing.PriceFeed) *Valuator {
	return &Valuator{feed: feed}
}

// Valuate scales the raw amount and prices it in USD. A failed or absent
// price quote degrades to USD zero; the token amount is always returned.
func (v *Valuator) Valuate(ctx context.Context, mint string, raw uint64, decimals int) Valuation {
	amount := TokenAmount(raw, decimals)

	price, err := v.feed.GetPrice(ctx, mint)
	if err != nil {
		log.Printf("[valuate] price fetch failed for %s: %v", mint, err)
		return Valuation{TokenAmount: amount, PriceUSD: decimal.Zero, USDValue: decimal.Zero}
	}

	return Valuation{
		TokenAmount: amount,
		PriceUSD:    price,
		USDValue:    amount.Mul(price),
	}
}
