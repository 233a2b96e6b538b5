package valuate

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

type stubFeed struct {
	prices map[string]decimal.Decimal
	err    error
}

func (s *stubFeed) GetPrice(ctx context.Context, mint string) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.prices[mint], nil
}

func TestTokenAmount(t *testing.T) {
	cases := []struct {
		name     string
		raw      uint64
		decimals int
		want     string
	}{
		{"nine decimals", 1_500_000_000, 9, "1.5"},
		{"six decimals", 2_500_000, 6, "2.5"},
		{"zero decimals", 42, 0, "42"},
		{"sub unit", 1, 9, "0.000000001"},
		{"zero amount", 0, 6, "0"},
		{"max uint64", math.MaxUint64, 9, "18446744073.709551615"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TokenAmount(tc.raw, tc.decimals)
			want, err := decimal.NewFromString(tc.want)
			if err != nil {
				t.Fatalf("bad want value: %v", err)
			}
			if !got.Equal(want) {
				t.Errorf("TokenAmount(%d, %d) = %s, want %s", tc.raw, tc.decimals, got, want)
			}
		})
	}
}

func TestValuator_Valuate(t *testing.T) {
	feed := &stubFeed{prices: map[string]decimal.Decimal{
		"mintA": decimal.RequireFromString("2.5"),
	}}
	v := NewValuator(feed)

	val := v.Valuate(context.Background(), "mintA", 1_500_000_000, 9)

	if !val.TokenAmount.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("expected token amount 1.5, got %s", val.TokenAmount)
	}
	if !val.PriceUSD.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("expected price 2.5, got %s", val.PriceUSD)
	}
	if !val.USDValue.Equal(decimal.RequireFromString("3.75")) {
		t.Errorf("expected USD value 3.75, got %s", val.USDValue)
	}
}

func TestValuator_PriceFailureDegradesToZero(t *testing.T) {
	feed := &stubFeed{err: errors.New("dexscreener down")}
	v := NewValuator(feed)

	val := v.Valuate(context.Background(), "mintA", 2_500_000, 6)

	if !val.TokenAmount.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("expected token amount 2.5, got %s", val.TokenAmount)
	}
	if !val.USDValue.IsZero() {
		t.Errorf("expected zero USD value, got %s", val.USDValue)
	}
	if !val.PriceUSD.IsZero() {
		t.Errorf("expected zero price, got %s", val.PriceUSD)
	}
}
