package domain

// TxKind classifies a processed transaction in the dedup ledger.
type TxKind string

const (
	// TxKindBuy marks a transaction that produced a buy alert.
	TxKindBuy TxKind = "buy"
	// TxKindOther marks a transaction that was seen but not relevant.
	// Recording it prevents rescanning the same signature later.
	TxKindOther TxKind = "other"
)

// ProcessedTransaction is one entry of the append-only dedup ledger.
// Corresponds to processed_transactions table in PostgreSQL.
// Invariant: at most one record per signature; records are never mutated
// or deleted.
type ProcessedTransaction struct {
	Signature  string // PRIMARY KEY
	Kind       TxKind
	ObservedAt int64 // Unix timestamp in seconds
}
