package solana

import "context"

// RPCClient defines Solana RPC HTTP interface.
type RPCClient interface {
	// GetParsedTransaction retrieves a transaction by signature with
	// jsonParsed encoding. Returns (nil, nil) when the transaction is not
	// yet available at the requested commitment.
	GetParsedTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetTokenSupply retrieves supply and decimal scale for a mint.
	// Returns (nil, nil) when the address is not a token mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns (nil, nil) when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}
