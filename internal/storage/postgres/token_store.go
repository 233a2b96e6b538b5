package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new tracked token. Returns ErrDuplicateKey if the mint is
// already tracked.
func (s *TokenStore) Insert(ctx context.Context, t *domain.TrackedToken) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tracked_tokens (
			mint, decimals, symbol, name, added_at
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Mint,
		t.Decimals,
		t.Symbol,
		t.Name,
		t.AddedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert tracked token: %w", err)
	}
	return nil
}

// Delete removes a tracked token. Returns ErrNotFound if the mint is not
// tracked.
func (s *TokenStore) Delete(ctx context.Context, mint string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tracked_tokens WHERE mint = $1`, mint)
	if err != nil {
		return fmt.Errorf("delete tracked token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByMint retrieves a tracked token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(ctx context.Context, mint string) (*domain.TrackedToken, error) {
	query := `
		SELECT mint, decimals, symbol, name, added_at
		FROM tracked_tokens
		WHERE mint = $1
	`

	row := s.pool.QueryRow(ctx, query, mint)
	t, err := scanTrackedToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get tracked token by mint: %w", err)
	}
	return t, nil
}

// List retrieves all tracked tokens ordered by mint ASC.
func (s *TokenStore) List(ctx context.Context) ([]*domain.TrackedToken, error) {
	query := `
		SELECT mint, decimals, symbol, name, added_at
		FROM tracked_tokens
		ORDER BY mint ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tracked tokens: %w", err)
	}
	defer rows.Close()

	var result []*domain.TrackedToken
	for rows.Next() {
		t, err := scanTrackedToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracked token: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked tokens: %w", err)
	}

	return result, nil
}

// scanTrackedToken scans a single row into TrackedToken.
func scanTrackedToken(row pgx.Row) (*domain.TrackedToken, error) {
	var t domain.TrackedToken

	err := row.Scan(
		&t.Mint,
		&t.Decimals,
		&t.Symbol,
		&t.Name,
		&t.AddedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
