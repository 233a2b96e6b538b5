package memory

import (
	"context"
	"sort"
	"sync"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TrackedToken // keyed by mint
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.TrackedToken),
	}
}

// Insert adds a new tracked token. Returns ErrDuplicateKey if the mint is
// already tracked.
func (s *TokenStore) Insert(_ context.Context, t *domain.TrackedToken) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	tokenCopy := *t
	s.data[t.Mint] = &tokenCopy
	return nil
}

// Delete removes a tracked token. Returns ErrNotFound if the mint is not
// tracked.
func (s *TokenStore) Delete(_ context.Context, mint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[mint]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, mint)
	return nil
}

// GetByMint retrieves a tracked token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(_ context.Context, mint string) (*domain.TrackedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tokenCopy := *t
	return &tokenCopy, nil
}

// List retrieves all tracked tokens ordered by mint ASC.
func (s *TokenStore) List(_ context.Context) ([]*domain.TrackedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TrackedToken, 0, len(s.data))
	for _, t := range s.data {
		tokenCopy := *t
		result = append(result, &tokenCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Mint < result[j].Mint
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TokenStore = (*TokenStore)(nil)
