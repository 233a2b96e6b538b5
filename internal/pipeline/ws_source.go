package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/observability"
	"solana-buybot/internal/solana"
	"solana-buybot/internal/storage"
)

// WSSource pushes log events from a logsSubscribe WebSocket stream. It keeps
// one subscription per tracked mint (the node accepts a single mentions
// address per subscription) and reconciles subscriptions against the
// registry on a fixed interval.
type WSSource struct {
	ws         solana.WSClient
	tokenStore storage.TokenStore
	refresh    time.Duration
	logger     *log.Logger
}

// WSSourceOptions contains configuration for creating a WSSource.
type WSSourceOptions struct {
	WS         solana.WSClient
	TokenStore storage.TokenStore
	Refresh    time.Duration // Default: 30s registry reconciliation interval
	Logger     *log.Logger
}

// NewWSSource creates a push event source.
func NewWSSource(opts WSSourceOptions) *WSSource {
	refresh := opts.Refresh
	if refresh == 0 {
		refresh = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &WSSource{
		ws:         opts.WS,
		tokenStore: opts.TokenStore,
		refresh:    refresh,
		logger:     logger,
	}
}

// Compile-time interface check.
var _ EventSource = (*WSSource)(nil)

// Run subscribes to logs for every tracked mint and feeds notifications to
// the handler, each in its own goroutine. Blocks until the context ends.
func (s *WSSource) Run(ctx context.Context, handle func(context.Context, domain.LogEvent)) error {
	subs := make(map[string]*solana.LogSubscription)
	var wg sync.WaitGroup

	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		wg.Wait()
	}()

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	if err := s.reconcile(ctx, subs, &wg, handle); err != nil {
		s.logger.Printf("[ws-source] initial subscribe: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("[ws-source] stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.reconcile(ctx, subs, &wg, handle); err != nil {
				s.logger.Printf("[ws-source] reconcile: %v", err)
			}
		}
	}
}

// reconcile aligns the live subscriptions with the tracked set: subscribes
// new mints, unsubscribes removed ones. A registry read failure leaves the
// current subscriptions untouched.
func (s *WSSource) reconcile(ctx context.Context, subs map[string]*solana.LogSubscription, wg *sync.WaitGroup, handle func(context.Context, domain.LogEvent)) error {
	tokens, err := s.tokenStore.List(ctx)
	if err != nil {
		return err
	}

	current := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		current[t.Mint] = struct{}{}
	}

	for mint, sub := range subs {
		if _, ok := current[mint]; !ok {
			sub.Unsubscribe()
			delete(subs, mint)
			s.logger.Printf("[ws-source] unsubscribed %s", mint)
		}
	}

	for mint := range current {
		if _, ok := subs[mint]; ok {
			continue
		}
		sub, err := s.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{mint}})
		if err != nil {
			s.logger.Printf("[ws-source] subscribe %s: %v", mint, err)
			continue
		}
		subs[mint] = sub
		s.logger.Printf("[ws-source] subscribed %s", mint)

		wg.Add(1)
		go func(sub *solana.LogSubscription) {
			defer wg.Done()
			s.consume(ctx, sub, handle)
		}(sub)
	}

	return nil
}

// consume drains one subscription, handling each notification in its own
// goroutine so a slow resolve never backs up the stream.
func (s *WSSource) consume(ctx context.Context, sub *solana.LogSubscription, handle func(context.Context, domain.LogEvent)) {
	var handlers sync.WaitGroup
	defer handlers.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case note, ok := <-sub.C:
			if !ok {
				return
			}
			if note.Err != nil {
				// Failed transaction logs still get recorded downstream;
				// the resolver sees them as transfer-free.
				continue
			}
			if note.Signature == "" {
				continue
			}
			observability.RecordEventReceived("ws")

			ev := domain.LogEvent{
				Signature: note.Signature,
				Slot:      note.Slot,
				Logs:      note.Logs,
			}
			handlers.Add(1)
			go func() {
				defer handlers.Done()
				handle(ctx, ev)
			}()
		}
	}
}
