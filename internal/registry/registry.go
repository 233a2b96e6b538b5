// Package registry manages the set of tracked token mints. Adding a mint
// validates the address, resolves its decimal scale on chain and enriches it
// with Metaplex name and symbol when available.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mr-tron/base58"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/solana"
	"solana-buybot/internal/storage"
)

var (
	// ErrInvalidMint indicates the address is not a valid token mint.
	ErrInvalidMint = errors.New("invalid mint address")
	// ErrAlreadyTracked indicates the mint is already in the registry.
	ErrAlreadyTracked = errors.New("mint already tracked")
	// ErrNotTracked indicates the mint is not in the registry.
	ErrNotTracked = errors.New("mint not tracked")
)

// Service validates and persists tracked tokens.
type Service struct {
	store storage.TokenStore
	rpc   solana.RPCClient

	now func() int64
}

// NewService creates a registry service backed by the given store and RPC
// client.
func NewService(store storage.TokenStore, rpc solana.RPCClient) *Service {
	return &Service{
		store: store,
		rpc:   rpc,
		now:   func() int64 { return time.Now().Unix() },
	}
}

// Add validates the mint address, fetches its decimals from the chain and
// stores it. Metadata enrichment is best effort: a mint without a Metaplex
// account is still added, with nil symbol and name.
func (s *Service) Add(ctx context.Context, mint string) (*domain.TrackedToken, error) {
	if err := validateAddress(mint); err != nil {
		return nil, err
	}

	supply, err := s.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get token supply for %s: %w", mint, err)
	}
	if supply == nil {
		return nil, ErrInvalidMint
	}

	token := &domain.TrackedToken{
		Mint:     mint,
		Decimals: supply.Decimals,
		AddedAt:  s.now(),
	}

	md, err := solana.FetchTokenMetadata(ctx, s.rpc, mint)
	if err != nil {
		log.Printf("[registry] metadata fetch failed for %s: %v", mint, err)
	} else if md != nil {
		if md.Symbol != "" {
			symbol := md.Symbol
			token.Symbol = &symbol
		}
		if md.Name != "" {
			name := md.Name
			token.Name = &name
		}
	}

	if err := s.store.Insert(ctx, token); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrAlreadyTracked
		}
		return nil, fmt.Errorf("insert tracked token: %w", err)
	}

	return token, nil
}

// Remove deletes the mint from the registry.
func (s *Service) Remove(ctx context.Context, mint string) error {
	if err := s.store.Delete(ctx, mint); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotTracked
		}
		return fmt.Errorf("delete tracked token: %w", err)
	}
	return nil
}

// Get retrieves a tracked token by mint. Returns ErrNotTracked when absent.
func (s *Service) Get(ctx context.Context, mint string) (*domain.TrackedToken, error) {
	token, err := s.store.GetByMint(ctx, mint)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotTracked
		}
		return nil, fmt.Errorf("get tracked token: %w", err)
	}
	return token, nil
}

// List returns all tracked tokens ordered by mint.
func (s *Service) List(ctx context.Context) ([]*domain.TrackedToken, error) {
	tokens, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked tokens: %w", err)
	}
	return tokens, nil
}

// validateAddress checks that the string is valid base58 decoding to a
// 32-byte public key.
func validateAddress(addr string) error {
	if addr == "" {
		return ErrInvalidMint
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return ErrInvalidMint
	}
	if len(decoded) != 32 {
		return ErrInvalidMint
	}
	return nil
}
