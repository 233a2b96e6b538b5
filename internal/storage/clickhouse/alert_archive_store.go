package clickhouse

import (
	"context"
	"fmt"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/storage"
)

// AlertArchiveStore implements storage.AlertArchive using ClickHouse.
// MergeTree enforces no uniqueness; the pipeline only appends alerts whose
// signatures already passed the dedup ledger, so duplicates cannot occur in
// normal operation.
type AlertArchiveStore struct {
	conn *Conn
}

// NewAlertArchiveStore creates a new AlertArchiveStore.
func NewAlertArchiveStore(conn *Conn) *AlertArchiveStore {
	return &AlertArchiveStore{conn: conn}
}

// Compile-time interface checks.
var (
	_ storage.AlertArchive = (*AlertArchiveStore)(nil)
	_ storage.AlertHistory = (*AlertArchiveStore)(nil)
)

// Append stores one dispatched alert.
func (s *AlertArchiveStore) Append(ctx context.Context, alert *domain.BuyAlert, observedAt int64) error {
	if alert == nil || alert.Signature == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO dispatched_alerts (
			signature, mint, symbol, buyer, slot, token_amount, usd_value, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	tokenAmount, _ := alert.TokenAmount.Float64()
	usdValue, _ := alert.USDValue.Float64()

	err = batch.Append(
		alert.Signature,
		alert.Mint,
		alert.Symbol,
		alert.Buyer,
		uint64(alert.Slot),
		tokenAmount,
		usdValue,
		uint64(observedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// Recent returns up to limit archived alerts for a mint, newest first.
// Backs the /recent operator command, not the pipeline.
func (s *AlertArchiveStore) Recent(ctx context.Context, mint string, limit int) ([]*domain.ArchivedAlert, error) {
	query := `
		SELECT signature, mint, symbol, buyer, slot, token_amount, usd_value, observed_at
		FROM dispatched_alerts
		WHERE mint = ?
		ORDER BY observed_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, mint, limit)
	if err != nil {
		return nil, fmt.Errorf("query archived alerts: %w", err)
	}
	defer rows.Close()

	var result []*domain.ArchivedAlert
	for rows.Next() {
		var a domain.ArchivedAlert
		err := rows.Scan(
			&a.Signature, &a.Mint, &a.Symbol, &a.Buyer,
			&a.Slot, &a.TokenAmount, &a.USDValue, &a.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archived alert: %w", err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived alerts: %w", err)
	}

	return result, nil
}
