package domain

// TransferKind identifies the shape of a parsed token instruction.
type TransferKind string

const (
	// TransferPlain is the SPL "transfer" instruction (no mint field of its own).
	TransferPlain TransferKind = "transfer"
	// TransferChecked is the SPL "transferChecked" instruction, which carries
	// the mint explicitly.
	TransferChecked TransferKind = "transferChecked"
)

// TransferInstruction is one transfer-shaped inner instruction of a
// transaction. Source systems are inconsistent about which field carries the
// mint, so all observed variants are kept.
type TransferInstruction struct {
	Kind       TransferKind
	Mint       string // direct mint field, empty for plain transfers
	SourceMint string // mint attributed to the source token account
	DestMint   string // mint attributed to the destination token account
	RawAmount  uint64 // smallest indivisible units
}

// ResolvedMint returns the mint for this instruction, trying the known field
// variants in priority order. Empty when no variant matched; keep this table
// open for extension as new instruction shapes show up.
func (ti *TransferInstruction) ResolvedMint() string {
	if ti.Mint != "" {
		return ti.Mint
	}
	if ti.SourceMint != "" {
		return ti.SourceMint
	}
	return ti.DestMint
}

// TransactionDetail is the fully resolved view of a transaction, fetched on
// demand. May legitimately be absent from the chain for a while after the
// log event is seen.
type TransactionDetail struct {
	Signature    string
	Slot         int64
	Signer       string // first signing account, interpreted as the buyer
	Instructions []TransferInstruction
}
