package domain

import "github.com/shopspring/decimal"

// BuyAlert is the derived payload of one detected buy. Never persisted as-is;
// it exists to render the outgoing message (and, best effort, to feed the
// alert archive).
type BuyAlert struct {
	Mint        string
	Symbol      string // empty when metadata resolution failed at add time
	Buyer       string
	Slot        int64
	Signature   string
	TokenAmount decimal.Decimal // human units, raw / 10^decimals
	USDValue    decimal.Decimal // 0 when the price feed was unavailable
}

// ArchivedAlert is one dispatched alert read back from the archive. Amounts
// come back as floats because the archive stores them that way.
type ArchivedAlert struct {
	Signature   string
	Mint        string
	Symbol      string
	Buyer       string
	Slot        uint64
	TokenAmount float64
	USDValue    float64
	ObservedAt  uint64 // Unix timestamp in seconds
}
