// Package extract pulls the per-mint transfer totals out of a resolved
// transaction.
package extract

import "solana-buybot/internal/domain"

// TrackedTotals accumulates raw transfer amounts per tracked mint. Returns
// only mints present in the tracked set; an empty map means the transaction
// moved none of the tracked tokens. Accumulation is on raw integer units, so
// the totals are exact regardless of decimal scale.
func TrackedTotals(detail *domain.TransactionDetail, tracked map[string]struct{}) map[string]uint64 {
	totals := make(map[string]uint64)
	if detail == nil {
		return totals
	}

	for i := range detail.Instructions {
		inst := &detail.Instructions[i]
		if inst.Kind != domain.TransferPlain && inst.Kind != domain.TransferChecked {
			continue
		}
		mint := inst.ResolvedMint()
		if mint == "" {
			continue
		}
		if _, ok := tracked[mint]; !ok {
			continue
		}
		totals[mint] += inst.RawAmount
	}

	return totals
}
