package solana

// AccountKey is one entry of a parsed transaction's account list.
type AccountKey struct {
	Pubkey string
	Signer bool
}

// TokenInstruction is a parsed SPL token instruction extracted from a
// transaction's inner instructions. Only transfer-shaped instructions are
// surfaced; everything else is dropped at parse time.
type TokenInstruction struct {
	Type            string // "transfer" or "transferChecked"
	Mint            string // present for transferChecked
	SourceMint      string // provider-enriched, may be empty
	DestinationMint string // provider-enriched, may be empty
	Amount          uint64 // raw amount in smallest units
}

// Transaction represents a parsed Solana transaction.
type Transaction struct {
	Slot              int64
	Signature         string
	BlockTime         int64 // Unix timestamp (seconds), 0 if unknown
	Failed            bool  // meta.err was non-null
	AccountKeys       []AccountKey
	TokenInstructions []TokenInstruction
}

// Signer returns the first signing account key, or "" when unknown.
func (t *Transaction) Signer() string {
	for _, k := range t.AccountKeys {
		if k.Signer {
			return k.Pubkey
		}
	}
	return ""
}

// TokenSupply is the result of getTokenSupply for a mint.
type TokenSupply struct {
	Amount   string
	Decimals int
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       string // base64 encoded
	Executable bool
}
