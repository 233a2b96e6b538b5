package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/storage"
	"solana-buybot/internal/storage/postgres"
)

func strPtr(s string) *string { return &s }

func TestTokenStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTokenStore(pool)
	ctx := context.Background()

	token := &domain.TrackedToken{
		Mint:     "So11111111111111111111111111111111111111112",
		Decimals: 9,
		Symbol:   strPtr("WSOL"),
		Name:     strPtr("Wrapped SOL"),
		AddedAt:  1700000000,
	}

	require.NoError(t, store.Insert(ctx, token))

	got, err := store.GetByMint(ctx, token.Mint)
	require.NoError(t, err)
	assert.Equal(t, token.Mint, got.Mint)
	assert.Equal(t, token.Decimals, got.Decimals)
	require.NotNil(t, got.Symbol)
	assert.Equal(t, "WSOL", *got.Symbol)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Wrapped SOL", *got.Name)
	assert.Equal(t, token.AddedAt, got.AddedAt)
}

func TestTokenStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTokenStore(pool)
	ctx := context.Background()

	token := &domain.TrackedToken{
		Mint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals: 6,
		AddedAt:  1700000000,
	}

	require.NoError(t, store.Insert(ctx, token))

	err := store.Insert(ctx, token)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTokenStore_InsertNilSymbolAndName(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTokenStore(pool)
	ctx := context.Background()

	token := &domain.TrackedToken{
		Mint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals: 6,
		AddedAt:  1700000000,
	}

	require.NoError(t, store.Insert(ctx, token))

	got, err := store.GetByMint(ctx, token.Mint)
	require.NoError(t, err)
	assert.Nil(t, got.Symbol)
	assert.Nil(t, got.Name)
}

func TestTokenStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTokenStore(pool)

	_, err := store.GetByMint(context.Background(), "UnknownMint1111111111111111111111111111111")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTokenStore(pool)
	ctx := context.Background()

	token := &domain.TrackedToken{
		Mint:     "So11111111111111111111111111111111111111112",
		Decimals: 9,
		AddedAt:  1700000000,
	}
	require.NoError(t, store.Insert(ctx, token))

	require.NoError(t, store.Delete(ctx, token.Mint))

	_, err := store.GetByMint(ctx, token.Mint)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Delete(ctx, token.Mint)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_ListOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTokenStore(pool)
	ctx := context.Background()

	mints := []string{
		"So11111111111111111111111111111111111111112",
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
	}
	for _, mint := range mints {
		require.NoError(t, store.Insert(ctx, &domain.TrackedToken{
			Mint:     mint,
			Decimals: 6,
			AddedAt:  1700000000,
		}))
	}

	tokens, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	// Ordered by mint ascending.
	assert.Equal(t, "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", tokens[0].Mint)
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", tokens[1].Mint)
	assert.Equal(t, "So11111111111111111111111111111111111111112", tokens[2].Mint)
}

func TestTokenStore_InsertInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTokenStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.TrackedToken{}), storage.ErrInvalidInput)
}
