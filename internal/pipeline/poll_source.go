package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/observability"
	"solana-buybot/internal/pricing"
	"solana-buybot/internal/storage"
)

// TradeFetcher provides recent trade records for a mint.
type TradeFetcher interface {
	RecentTrades(ctx context.Context, mint string) ([]pricing.Trade, error)
}

// PollSource pulls recent trades from DexScreener on a fixed interval. Buy
// trades become log events for the pipeline; sell trades are recorded
// straight to the ledger so they are never refetched.
type PollSource struct {
	trades     TradeFetcher
	tokenStore storage.TokenStore
	txStore    storage.ProcessedTxStore
	interval   time.Duration
	logger     *log.Logger

	now func() int64
}

// PollSourceOptions contains configuration for creating a PollSource.
type PollSourceOptions struct {
	Trades     TradeFetcher
	TokenStore storage.TokenStore
	TxStore    storage.ProcessedTxStore
	Interval   time.Duration // Default: 60s
	Logger     *log.Logger
}

// NewPollSource creates a pull event source.
func NewPollSource(opts PollSourceOptions) *PollSource {
	interval := opts.Interval
	if interval == 0 {
		interval = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &PollSource{
		trades:     opts.Trades,
		tokenStore: opts.TokenStore,
		txStore:    opts.TxStore,
		interval:   interval,
		logger:     logger,
		now:        func() int64 { return time.Now().Unix() },
	}
}

// Compile-time interface check.
var _ EventSource = (*PollSource)(nil)

// Run polls every tracked token each interval. Blocks until the context
// ends. A failed poll cycle logs and waits for the next tick.
func (s *PollSource) Run(ctx context.Context, handle func(context.Context, domain.LogEvent)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx, handle)

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("[poll-source] stopping")
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx, handle)
		}
	}
}

// poll runs one cycle over a fresh registry snapshot.
func (s *PollSource) poll(ctx context.Context, handle func(context.Context, domain.LogEvent)) {
	tokens, err := s.tokenStore.List(ctx)
	if err != nil {
		s.logger.Printf("[poll-source] list tracked tokens: %v", err)
		return
	}

	for _, token := range tokens {
		if ctx.Err() != nil {
			return
		}
		s.pollMint(ctx, token.Mint, handle)
	}
}

// pollMint fetches the mint's recent trades oldest first and routes each
// unseen one.
func (s *PollSource) pollMint(ctx context.Context, mint string, handle func(context.Context, domain.LogEvent)) {
	trades, err := s.trades.RecentTrades(ctx, mint)
	if err != nil {
		s.logger.Printf("[poll-source] fetch trades for %s: %v", mint, err)
		return
	}

	for i := len(trades) - 1; i >= 0; i-- {
		trade := trades[i]

		seen, err := s.txStore.Seen(ctx, trade.TxHash)
		if err != nil {
			s.logger.Printf("[poll-source] seen check %s: %v", trade.TxHash, err)
			continue
		}
		if seen {
			continue
		}
		observability.RecordEventReceived("poll")

		if trade.Type != "buy" {
			s.recordNonBuy(ctx, trade.TxHash)
			continue
		}

		handle(ctx, domain.LogEvent{Signature: trade.TxHash})
	}
}

// recordNonBuy writes a sell or unknown-type trade to the ledger without
// alerting.
func (s *PollSource) recordNonBuy(ctx context.Context, signature string) {
	rec := &domain.ProcessedTransaction{
		Signature:  signature,
		Kind:       domain.TxKindOther,
		ObservedAt: s.now(),
	}
	if err := s.txStore.Record(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		s.logger.Printf("[poll-source] record %s: %v", signature, err)
	}
}
