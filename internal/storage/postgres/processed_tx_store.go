package postgres

import (
	"context"
	"fmt"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/storage"
)

// ProcessedTxStore implements storage.ProcessedTxStore using PostgreSQL.
// The signature primary key gives Record its atomic check-and-insert.
type ProcessedTxStore struct {
	pool *Pool
}

// NewProcessedTxStore creates a new ProcessedTxStore.
func NewProcessedTxStore(pool *Pool) *ProcessedTxStore {
	return &ProcessedTxStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProcessedTxStore = (*ProcessedTxStore)(nil)

// Record inserts a processed-transaction record. Returns ErrDuplicateKey if
// the signature was recorded before.
func (s *ProcessedTxStore) Record(ctx context.Context, tx *domain.ProcessedTransaction) error {
	if tx == nil || tx.Signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO processed_transactions (
			signature, kind, observed_at
		) VALUES ($1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query,
		tx.Signature,
		string(tx.Kind),
		tx.ObservedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("record processed transaction: %w", err)
	}
	return nil
}

// Seen reports whether the signature was recorded before.
func (s *ProcessedTxStore) Seen(ctx context.Context, signature string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM processed_transactions WHERE signature = $1
		)
	`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, signature).Scan(&exists); err != nil {
		return false, fmt.Errorf("check processed transaction: %w", err)
	}
	return exists, nil
}
