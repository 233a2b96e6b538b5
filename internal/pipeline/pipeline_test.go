package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"solana-buybot/internal/alert"
	"solana-buybot/internal/domain"
	"solana-buybot/internal/solana"
	"solana-buybot/internal/storage/memory"
	"solana-buybot/internal/valuate"
)

const (
	testMint  = "So11111111111111111111111111111111111111112"
	testBuyer = "7nYabs9dUhvxYwdTnrWVBL9MYviKSfrEbdWCUbcnwkpF"
	testSig   = "sigBuy1"
)

type stubRPC struct {
	txs map[string]*solana.Transaction
	err error
}

func (s *stubRPC) GetParsedTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.txs[signature], nil
}

func (s *stubRPC) GetTokenSupply(ctx context.Context, mint string) (*solana.TokenSupply, error) {
	return nil, nil
}

func (s *stubRPC) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	return nil, nil
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (s *stubNotifier) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, text)
	return nil
}

func (s *stubNotifier) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

type stubFeed struct {
	prices map[string]decimal.Decimal
	err    error
}

func (s *stubFeed) GetPrice(ctx context.Context, mint string) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.prices[mint], nil
}

type stubArchive struct {
	mu     sync.Mutex
	alerts []*domain.BuyAlert
	err    error
}

func (s *stubArchive) Append(ctx context.Context, a *domain.BuyAlert, observedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, a)
	return nil
}

type testPipeline struct {
	*Pipeline
	tokens   *memory.TokenStore
	txs      *memory.ProcessedTxStore
	notifier *stubNotifier
	archive  *stubArchive
}

func newTestPipeline(t *testing.T, rpc solana.RPCClient, feed *stubFeed) *testPipeline {
	t.Helper()

	tokens := memory.NewTokenStore()
	txs := memory.NewProcessedTxStore()
	notifier := &stubNotifier{}
	archive := &stubArchive{}

	if feed == nil {
		feed = &stubFeed{prices: map[string]decimal.Decimal{
			testMint: decimal.RequireFromString("2.5"),
		}}
	}

	p := New(Options{
		TokenStore: tokens,
		TxStore:    txs,
		RPC:        rpc,
		Valuator:   valuate.NewValuator(feed),
		Dispatcher: alert.NewDispatcher(notifier),
		Archive:    archive,
		Logger:     log.New(log.Writer(), "[test] ", 0),
	})
	p.now = func() int64 { return 1700000000 }

	return &testPipeline{Pipeline: p, tokens: tokens, txs: txs, notifier: notifier, archive: archive}
}

func trackToken(t *testing.T, tp *testPipeline, mint string, decimals int, symbol string) {
	t.Helper()
	token := &domain.TrackedToken{Mint: mint, Decimals: decimals, AddedAt: 1700000000}
	if symbol != "" {
		token.Symbol = &symbol
	}
	if err := tp.tokens.Insert(context.Background(), token); err != nil {
		t.Fatalf("insert token: %v", err)
	}
}

func buyTransaction(sig string, amount uint64) *solana.Transaction {
	return &solana.Transaction{
		Slot:      100,
		Signature: sig,
		AccountKeys: []solana.AccountKey{
			{Pubkey: testBuyer, Signer: true},
			{Pubkey: "someOtherAccount", Signer: false},
		},
		TokenInstructions: []solana.TokenInstruction{
			{Type: "transferChecked", Mint: testMint, Amount: amount},
		},
	}
}

func TestPipeline_HandleEvent_DispatchesBuy(t *testing.T) {
	rpc := &stubRPC{txs: map[string]*solana.Transaction{
		testSig: buyTransaction(testSig, 1_500_000_000),
	}}
	tp := newTestPipeline(t, rpc, nil)
	trackToken(t, tp, testMint, 9, "WSOL")

	outcome, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: testSig})
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if outcome != OutcomeDispatched {
		t.Fatalf("expected dispatched, got %s", outcome)
	}

	msgs := tp.notifier.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	for _, want := range []string{"New Buy Detected", "WSOL", "1.50", "3.75", testBuyer} {
		if !strings.Contains(msgs[0], want) {
			t.Errorf("message missing %q:\n%s", want, msgs[0])
		}
	}

	seen, err := tp.txs.Seen(context.Background(), testSig)
	if err != nil || !seen {
		t.Errorf("expected signature recorded, seen=%v err=%v", seen, err)
	}

	if len(tp.archive.alerts) != 1 {
		t.Errorf("expected 1 archived alert, got %d", len(tp.archive.alerts))
	}
}

func TestPipeline_HandleEvent_SameSignatureTwiceAlertsOnce(t *testing.T) {
	rpc := &stubRPC{txs: map[string]*solana.Transaction{
		testSig: buyTransaction(testSig, 1_500_000_000),
	}}
	tp := newTestPipeline(t, rpc, nil)
	trackToken(t, tp, testMint, 9, "WSOL")

	if _, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: testSig}); err != nil {
		t.Fatalf("first HandleEvent failed: %v", err)
	}
	outcome, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: testSig})
	if err != nil {
		t.Fatalf("second HandleEvent failed: %v", err)
	}
	if outcome != OutcomeDeduplicated {
		t.Errorf("expected deduplicated, got %s", outcome)
	}
	if len(tp.notifier.sent()) != 1 {
		t.Errorf("expected exactly 1 message, got %d", len(tp.notifier.sent()))
	}
}

func TestPipeline_HandleEvent_ConcurrentSameSignature(t *testing.T) {
	rpc := &stubRPC{txs: map[string]*solana.Transaction{
		testSig: buyTransaction(testSig, 1_500_000_000),
	}}
	tp := newTestPipeline(t, rpc, nil)
	trackToken(t, tp, testMint, 9, "WSOL")

	const workers = 8
	var wg sync.WaitGroup
	outcomes := make([]Outcome, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _ = tp.HandleEvent(context.Background(), domain.LogEvent{Signature: testSig})
		}(i)
	}
	wg.Wait()

	var dispatched int
	for _, o := range outcomes {
		if o == OutcomeDispatched {
			dispatched++
		}
	}
	if dispatched != 1 {
		t.Errorf("expected exactly 1 dispatched outcome, got %d", dispatched)
	}
	if len(tp.notifier.sent()) != 1 {
		t.Errorf("expected exactly 1 message, got %d", len(tp.notifier.sent()))
	}
}

func TestPipeline_HandleEvent_UnavailableTransactionSkipped(t *testing.T) {
	rpc := &stubRPC{txs: map[string]*solana.Transaction{}}
	tp := newTestPipeline(t, rpc, nil)
	trackToken(t, tp, testMint, 9, "WSOL")

	outcome, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: "missing"})
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("expected skipped, got %s", outcome)
	}

	// Skipped events are not recorded, the signature may come around again.
	seen, _ := tp.txs.Seen(context.Background(), "missing")
	if seen {
		t.Error("skipped signature must not be recorded")
	}
}

func TestPipeline_HandleEvent_RPCErrorSkipped(t *testing.T) {
	rpc := &stubRPC{err: errors.New("rpc down")}
	tp := newTestPipeline(t, rpc, nil)
	trackToken(t, tp, testMint, 9, "WSOL")

	outcome, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: testSig})
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("expected skipped, got %s", outcome)
	}
}

func TestPipeline_HandleEvent_NotRelevantRecorded(t *testing.T) {
	rpc := &stubRPC{txs: map[string]*solana.Transaction{
		"sigOther": {
			Slot:      100,
			Signature: "sigOther",
			TokenInstructions: []solana.TokenInstruction{
				{Type: "transferChecked", Mint: "UntrackedMint111", Amount: 500},
			},
		},
	}}
	tp := newTestPipeline(t, rpc, nil)
	trackToken(t, tp, testMint, 9, "WSOL")

	outcome, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: "sigOther"})
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if outcome != OutcomeNotRelevant {
		t.Errorf("expected not relevant, got %s", outcome)
	}

	seen, _ := tp.txs.Seen(context.Background(), "sigOther")
	if !seen {
		t.Error("non-relevant signature must be recorded")
	}
	if len(tp.notifier.sent()) != 0 {
		t.Errorf("expected no messages, got %d", len(tp.notifier.sent()))
	}
}

func TestPipeline_HandleEvent_FailedTransactionNotRelevant(t *testing.T) {
	tx := buyTransaction("sigFailed", 1_500_000_000)
	tx.Failed = true
	rpc := &stubRPC{txs: map[string]*solana.Transaction{"sigFailed": tx}}
	tp := newTestPipeline(t, rpc, nil)
	trackToken(t, tp, testMint, 9, "WSOL")

	outcome, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: "sigFailed"})
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if outcome != OutcomeNotRelevant {
		t.Errorf("expected not relevant for failed tx, got %s", outcome)
	}
	if len(tp.notifier.sent()) != 0 {
		t.Errorf("expected no messages for failed tx, got %d", len(tp.notifier.sent()))
	}
}

func TestPipeline_HandleEvent_PriceFailureStillAlerts(t *testing.T) {
	rpc := &stubRPC{txs: map[string]*solana.Transaction{
		testSig: buyTransaction(testSig, 1_500_000_000),
	}}
	tp := newTestPipeline(t, rpc, &stubFeed{err: errors.New("dexscreener down")})
	trackToken(t, tp, testMint, 9, "WSOL")

	outcome, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: testSig})
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if outcome != OutcomeDispatched {
		t.Fatalf("expected dispatched, got %s", outcome)
	}

	msgs := tp.notifier.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "$0.00") {
		t.Errorf("expected zero USD value in message:\n%s", msgs[0])
	}
}

func TestPipeline_HandleEvent_DispatchFailureKeepsRecord(t *testing.T) {
	rpc := &stubRPC{txs: map[string]*solana.Transaction{
		testSig: buyTransaction(testSig, 1_500_000_000),
	}}
	tp := newTestPipeline(t, rpc, nil)
	tp.notifier.err = errors.New("telegram down")
	trackToken(t, tp, testMint, 9, "WSOL")

	outcome, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: testSig})
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if outcome != OutcomeDispatched {
		t.Fatalf("expected dispatched outcome, got %s", outcome)
	}

	// At-most-once: the record stays even though delivery failed.
	seen, _ := tp.txs.Seen(context.Background(), testSig)
	if !seen {
		t.Error("expected signature recorded despite dispatch failure")
	}
	if len(tp.archive.alerts) != 0 {
		t.Errorf("expected no archived alerts on dispatch failure, got %d", len(tp.archive.alerts))
	}
}

func TestPipeline_HandleEvent_EmptyRegistrySkips(t *testing.T) {
	rpc := &stubRPC{txs: map[string]*solana.Transaction{
		testSig: buyTransaction(testSig, 1_500_000_000),
	}}
	tp := newTestPipeline(t, rpc, nil)

	outcome, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: testSig})
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("expected skipped with empty registry, got %s", outcome)
	}
}

func TestPipeline_HandleEvent_ArchiveFailureDoesNotAffectDispatch(t *testing.T) {
	rpc := &stubRPC{txs: map[string]*solana.Transaction{
		testSig: buyTransaction(testSig, 1_500_000_000),
	}}
	tp := newTestPipeline(t, rpc, nil)
	tp.archive.err = errors.New("clickhouse down")
	trackToken(t, tp, testMint, 9, "WSOL")

	outcome, err := tp.HandleEvent(context.Background(), domain.LogEvent{Signature: testSig})
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if outcome != OutcomeDispatched {
		t.Errorf("expected dispatched, got %s", outcome)
	}
	if len(tp.notifier.sent()) != 1 {
		t.Errorf("expected 1 message, got %d", len(tp.notifier.sent()))
	}
}
