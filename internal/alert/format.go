// Package alert formats buy alerts and delivers them to Telegram.
package alert

import (
	"fmt"
	"strings"

	"solana-buybot/internal/domain"
)

const solscanBase = "https://solscan.io"

// Format renders a buy alert as a Telegram Markdown message. The layout is
// fixed: headline, token, buyer, amount, USD value, slot, transaction link.
func Format(a *domain.BuyAlert) string {
	label := a.Symbol
	if label == "" {
		label = shortAddress(a.Mint)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 *New Buy Detected!*\n")
	fmt.Fprintf(&b, "Token: [%s](%s/token/%s)\n", label, solscanBase, a.Mint)
	if a.Buyer != "" {
		fmt.Fprintf(&b, "Buyer: [%s](%s/account/%s)\n", shortAddress(a.Buyer), solscanBase, a.Buyer)
	}
	fmt.Fprintf(&b, "Amount: %s %s\n", a.TokenAmount.StringFixed(2), label)
	fmt.Fprintf(&b, "Value: ~$%s USD\n", a.USDValue.StringFixed(2))
	fmt.Fprintf(&b, "Slot: %d\n", a.Slot)
	fmt.Fprintf(&b, "[🔗 View Transaction](%s/tx/%s)", solscanBase, a.Signature)
	return b.String()
}

// shortAddress abbreviates a base58 address for display.
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
