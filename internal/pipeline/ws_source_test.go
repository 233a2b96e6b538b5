package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"solana-buybot/internal/domain"
	"solana-buybot/internal/solana"
	"solana-buybot/internal/storage/memory"
)

type stubWS struct {
	mu       sync.Mutex
	channels map[string]chan solana.LogNotification
}

func newStubWS() *stubWS {
	return &stubWS{channels: make(map[string]chan solana.LogNotification)}
}

func (s *stubWS) SubscribeLogs(ctx context.Context, filter solana.LogsFilter) (*solana.LogSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan solana.LogNotification, 16)
	if len(filter.Mentions) == 1 {
		s.channels[filter.Mentions[0]] = ch
	}
	return &solana.LogSubscription{C: ch}, nil
}

func (s *stubWS) Close() error { return nil }

func (s *stubWS) notify(mint string, note solana.LogNotification) bool {
	s.mu.Lock()
	ch, ok := s.channels[mint]
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- note
	return true
}

func (s *stubWS) subscribedMints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	mints := make([]string, 0, len(s.channels))
	for m := range s.channels {
		mints = append(mints, m)
	}
	return mints
}

func TestWSSource_SubscribesPerTrackedMintAndRoutesEvents(t *testing.T) {
	tokens := memory.NewTokenStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tokens.Insert(ctx, &domain.TrackedToken{Mint: testMint, Decimals: 9, AddedAt: 1}); err != nil {
		t.Fatalf("insert token: %v", err)
	}

	ws := newStubWS()
	src := NewWSSource(WSSourceOptions{
		WS:         ws,
		TokenStore: tokens,
		Refresh:    10 * time.Millisecond,
	})

	events := make(chan domain.LogEvent, 16)
	go src.Run(ctx, func(ctx context.Context, ev domain.LogEvent) {
		events <- ev
	})

	// Wait for the initial reconcile to subscribe.
	deadline := time.After(2 * time.Second)
	for {
		if len(ws.subscribedMints()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for subscription")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if !ws.notify(testMint, solana.LogNotification{Signature: "sigWS", Slot: 42}) {
		t.Fatal("no channel for tracked mint")
	}

	select {
	case ev := <-events:
		if ev.Signature != "sigWS" || ev.Slot != 42 {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWSSource_DropsFailedTransactionNotifications(t *testing.T) {
	tokens := memory.NewTokenStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tokens.Insert(ctx, &domain.TrackedToken{Mint: testMint, Decimals: 9, AddedAt: 1}); err != nil {
		t.Fatalf("insert token: %v", err)
	}

	ws := newStubWS()
	src := NewWSSource(WSSourceOptions{
		WS:         ws,
		TokenStore: tokens,
		Refresh:    10 * time.Millisecond,
	})

	events := make(chan domain.LogEvent, 16)
	go src.Run(ctx, func(ctx context.Context, ev domain.LogEvent) {
		events <- ev
	})

	deadline := time.After(2 * time.Second)
	for {
		if ws.notify(testMint, solana.LogNotification{Signature: "sigFailed", Err: "InstructionError"}) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for subscription")
		case <-time.After(5 * time.Millisecond):
		}
	}
	ws.notify(testMint, solana.LogNotification{Signature: "sigOK"})

	select {
	case ev := <-events:
		if ev.Signature != "sigOK" {
			t.Errorf("expected sigOK first, got %s", ev.Signature)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
