package storage

import (
	"context"

	"solana-buybot/internal/domain"
)

// TokenStore provides access to tracked_tokens storage.
// Implementations must support safe concurrent read/write: operators mutate
// the set while the pipeline reads it every cycle.
type TokenStore interface {
	// Insert adds a new tracked token. Returns ErrDuplicateKey if the mint
	// is already tracked.
	Insert(ctx context.Context, t *domain.TrackedToken) error

	// Delete removes a tracked token. Returns ErrNotFound if the mint is
	// not tracked.
	Delete(ctx context.Context, mint string) error

	// GetByMint retrieves a tracked token. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TrackedToken, error)

	// List retrieves all tracked tokens ordered by mint ASC.
	List(ctx context.Context) ([]*domain.TrackedToken, error)
}

// ProcessedTxStore is the append-only dedup ledger.
type ProcessedTxStore interface {
	// Record inserts a processed-transaction record. Returns ErrDuplicateKey
	// if the signature was recorded before. The check-and-insert is atomic:
	// under concurrent callers exactly one Record for a signature succeeds.
	Record(ctx context.Context, tx *domain.ProcessedTransaction) error

	// Seen reports whether the signature was recorded before.
	Seen(ctx context.Context, signature string) (bool, error)
}

// AlertArchive records dispatched alerts for later analysis. Best effort:
// the pipeline logs and continues when an append fails.
type AlertArchive interface {
	// Append stores one dispatched alert.
	Append(ctx context.Context, alert *domain.BuyAlert, observedAt int64) error
}

// AlertHistory reads dispatched alerts back out of the archive for operator
// commands.
type AlertHistory interface {
	// Recent returns up to limit alerts for a mint, newest first.
	Recent(ctx context.Context, mint string, limit int) ([]*domain.ArchivedAlert, error)
}
