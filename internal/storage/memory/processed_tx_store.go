package memory

import (
	"context"
	"sync"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/storage"
)

// ProcessedTxStore is an in-memory implementation of storage.ProcessedTxStore.
type ProcessedTxStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ProcessedTransaction // keyed by signature
}

// NewProcessedTxStore creates a new in-memory dedup ledger.
func NewProcessedTxStore() *ProcessedTxStore {
	return &ProcessedTxStore{
		data: make(map[string]*domain.ProcessedTransaction),
	}
}

// Record inserts a processed-transaction record. Returns ErrDuplicateKey if
// the signature was recorded before. The map mutation happens under the
// write lock, so exactly one concurrent caller wins.
func (s *ProcessedTxStore) Record(_ context.Context, tx *domain.ProcessedTransaction) error {
	if tx == nil || tx.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	txCopy := *tx
	s.data[tx.Signature] = &txCopy
	return nil
}

// Seen reports whether the signature was recorded before.
func (s *ProcessedTxStore) Seen(_ context.Context, signature string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[signature]
	return exists, nil
}

// Verify interface compliance at compile time.
var _ storage.ProcessedTxStore = (*ProcessedTxStore)(nil)
