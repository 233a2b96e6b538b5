// Package pipeline turns log events into buy alerts: resolve the
// transaction, extract tracked-token transfers, deduplicate, valuate and
// dispatch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-buybot/internal/alert"
	"solana-buybot/internal/domain"
	"solana-buybot/internal/extract"
	"solana-buybot/internal/observability"
	"solana-buybot/internal/solana"
	"solana-buybot/internal/storage"
	"solana-buybot/internal/valuate"
)

// EventSource feeds log events into a handler. Run blocks until the context
// is cancelled.
type EventSource interface {
	Run(ctx context.Context, handle func(context.Context, domain.LogEvent)) error
}

// Outcome is the terminal state of handling one event.
type Outcome string

const (
	// OutcomeSkipped means the transaction was not yet available; the event
	// was not recorded and may legitimately come around again.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeNotRelevant means the transaction moved no tracked tokens. It
	// is still recorded so it is never rescanned.
	OutcomeNotRelevant Outcome = "not_relevant"
	// OutcomeDeduplicated means the signature was already recorded.
	OutcomeDeduplicated Outcome = "deduplicated"
	// OutcomeDispatched means at least one buy alert went out.
	OutcomeDispatched Outcome = "dispatched"
)

// Pipeline handles events concurrently. The registry and the ledger are the
// only shared state; no lock is held across network calls.
type Pipeline struct {
	tokenStore  storage.TokenStore
	txStore     storage.ProcessedTxStore
	rpc         solana.RPCClient
	valuator    *valuate.Valuator
	dispatcher  *alert.Dispatcher
	archive     storage.AlertArchive // optional
	callTimeout time.Duration
	logger      *log.Logger

	now func() int64
}

// Options contains configuration for creating a Pipeline.
type Options struct {
	TokenStore  storage.TokenStore
	TxStore     storage.ProcessedTxStore
	RPC         solana.RPCClient
	Valuator    *valuate.Valuator
	Dispatcher  *alert.Dispatcher
	Archive     storage.AlertArchive // optional, best-effort
	CallTimeout time.Duration        // Default: 30s per external call
	Logger      *log.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	callTimeout := opts.CallTimeout
	if callTimeout == 0 {
		callTimeout = 30 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Pipeline{
		tokenStore:  opts.TokenStore,
		txStore:     opts.TxStore,
		rpc:         opts.RPC,
		valuator:    opts.Valuator,
		dispatcher:  opts.Dispatcher,
		archive:     opts.Archive,
		callTimeout: callTimeout,
		logger:      logger,
		now:         func() int64 { return time.Now().Unix() },
	}
}

// HandleEvent processes one log event end to end. Safe for concurrent use.
func (p *Pipeline) HandleEvent(ctx context.Context, ev domain.LogEvent) (Outcome, error) {
	start := time.Now()
	defer func() {
		observability.RecordEventHandling(time.Since(start).Seconds())
	}()
	observability.MarkEventSeen(p.now())

	// Live registry snapshot for this event.
	tokens, err := p.tokenStore.List(ctx)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("list tracked tokens: %w", err)
	}
	observability.UpdateTrackedTokens(len(tokens))
	if len(tokens) == 0 {
		observability.RecordSkipped()
		return OutcomeSkipped, nil
	}

	tracked := make(map[string]*domain.TrackedToken, len(tokens))
	trackedSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tracked[t.Mint] = t
		trackedSet[t.Mint] = struct{}{}
	}

	detail, err := p.resolve(ctx, ev.Signature)
	if err != nil {
		// RPC trouble counts as unavailable for this cycle.
		p.logger.Printf("[pipeline] resolve %s: %v", ev.Signature, err)
		observability.RecordSkipped()
		return OutcomeSkipped, nil
	}
	if detail == nil {
		observability.RecordSkipped()
		return OutcomeSkipped, nil
	}
	observability.RecordResolved()

	totals := extract.TrackedTotals(detail, trackedSet)
	if len(totals) == 0 {
		return p.recordOnly(ctx, ev.Signature)
	}

	// Claim the signature before dispatching. Losing the race means another
	// handler owns this transaction.
	rec := &domain.ProcessedTransaction{
		Signature:  ev.Signature,
		Kind:       domain.TxKindBuy,
		ObservedAt: p.now(),
	}
	if err := p.txStore.Record(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordDedupHit()
			return OutcomeDeduplicated, nil
		}
		return OutcomeSkipped, fmt.Errorf("record transaction %s: %w", ev.Signature, err)
	}
	observability.RecordBuyDetected()

	for mint, raw := range totals {
		p.dispatchBuy(ctx, detail, tracked[mint], raw)
	}

	return OutcomeDispatched, nil
}

// resolve fetches the parsed transaction and maps it to a TransactionDetail.
// Returns (nil, nil) when the transaction is not yet available, and treats a
// failed transaction as having no transfers.
func (p *Pipeline) resolve(ctx context.Context, signature string) (*domain.TransactionDetail, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	start := time.Now()
	tx, err := p.rpc.GetParsedTransaction(callCtx, signature)
	observability.RecordRPCLatency("getTransaction", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, nil
	}

	detail := &domain.TransactionDetail{
		Signature: tx.Signature,
		Slot:      tx.Slot,
		Signer:    tx.Signer(),
	}
	if tx.Failed {
		return detail, nil
	}

	for _, ins := range tx.TokenInstructions {
		detail.Instructions = append(detail.Instructions, domain.TransferInstruction{
			Kind:       domain.TransferKind(ins.Type),
			Mint:       ins.Mint,
			SourceMint: ins.SourceMint,
			DestMint:   ins.DestinationMint,
			RawAmount:  ins.Amount,
		})
	}

	return detail, nil
}

// recordOnly writes a non-relevant transaction to the ledger so it is never
// fetched again.
func (p *Pipeline) recordOnly(ctx context.Context, signature string) (Outcome, error) {
	rec := &domain.ProcessedTransaction{
		Signature:  signature,
		Kind:       domain.TxKindOther,
		ObservedAt: p.now(),
	}
	if err := p.txStore.Record(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordDedupHit()
			return OutcomeDeduplicated, nil
		}
		return OutcomeNotRelevant, fmt.Errorf("record transaction %s: %w", signature, err)
	}
	return OutcomeNotRelevant, nil
}

// dispatchBuy valuates one mint's transfer total and sends the alert.
// Delivery is at most once: a failed send is logged and dropped.
func (p *Pipeline) dispatchBuy(ctx context.Context, detail *domain.TransactionDetail, token *domain.TrackedToken, raw uint64) {
	valCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	val := p.valuator.Valuate(valCtx, token.Mint, raw, token.Decimals)
	cancel()
	if val.USDValue.IsZero() {
		observability.RecordPriceError()
	}

	a := &domain.BuyAlert{
		Mint:        token.Mint,
		Buyer:       detail.Signer,
		Slot:        detail.Slot,
		Signature:   detail.Signature,
		TokenAmount: val.TokenAmount,
		USDValue:    val.USDValue,
	}
	if token.Symbol != nil {
		a.Symbol = *token.Symbol
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	err := p.dispatcher.Dispatch(dispatchCtx, a)
	cancel()
	if err != nil {
		observability.RecordDispatchError()
		p.logger.Printf("[pipeline] dispatch %s for %s: %v", detail.Signature, token.Mint, err)
		return
	}
	observability.RecordAlertDispatched()
	p.logger.Printf("[pipeline] buy alert dispatched: mint=%s tx=%s amount=%s usd=%s",
		token.Mint, detail.Signature, val.TokenAmount, val.USDValue)

	p.archiveAlert(ctx, a)
}

// archiveAlert appends the dispatched alert to the archive, best effort.
func (p *Pipeline) archiveAlert(ctx context.Context, a *domain.BuyAlert) {
	if p.archive == nil {
		return
	}
	archCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	if err := p.archive.Append(archCtx, a, p.now()); err != nil {
		observability.RecordArchiveError()
		p.logger.Printf("[pipeline] archive %s: %v", a.Signature, err)
	}
}
