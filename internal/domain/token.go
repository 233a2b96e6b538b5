package domain

// TrackedToken represents a token the operator asked the bot to watch.
// Corresponds to tracked_tokens table in PostgreSQL (or one line of the
// flat-file store).
type TrackedToken struct {
	Mint     string  // token mint address, unique within the registry
	Decimals int     // decimal scale resolved from chain, never caller-supplied
	Symbol   *string // token symbol from Metaplex metadata (nullable)
	Name     *string // token name from Metaplex metadata (nullable)
	AddedAt  int64   // Unix timestamp in seconds
}
