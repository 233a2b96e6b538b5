package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	commitment  string
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithCommitment sets the commitment level for transaction lookups.
func WithCommitment(level string) ClientOption {
	return func(c *HTTPClient) {
		c.commitment = level
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		commitment:  "confirmed",
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetParsedTransaction retrieves a transaction by signature with jsonParsed
// encoding. Returns (nil, nil) when the transaction is not yet available.
func (c *HTTPClient) GetParsedTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     c.commitment,
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *parsedTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	if result == nil || (result.Slot == 0 && result.BlockTime == nil) {
		// Transaction not found at this commitment
		return nil, nil
	}

	tx := &Transaction{
		Slot:      result.Slot,
		Signature: signature,
	}

	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}

	if result.Transaction != nil && result.Transaction.Message != nil {
		for _, k := range result.Transaction.Message.AccountKeys {
			tx.AccountKeys = append(tx.AccountKeys, AccountKey{
				Pubkey: k.Pubkey,
				Signer: k.Signer,
			})
		}
	}

	if result.Meta != nil {
		tx.Failed = result.Meta.Err != nil
		for _, inner := range result.Meta.InnerInstructions {
			for _, ins := range inner.Instructions {
				ti, ok := parseTokenInstruction(&ins)
				if ok {
					tx.TokenInstructions = append(tx.TokenInstructions, ti)
				}
			}
		}
	}

	return tx, nil
}

// parseTokenInstruction converts a raw parsed instruction into a
// TokenInstruction. Returns false for anything that is not an SPL token
// transfer.
func parseTokenInstruction(ins *parsedInstruction) (TokenInstruction, bool) {
	if ins.Program != "spl-token" || ins.Parsed == nil {
		return TokenInstruction{}, false
	}

	var parsed struct {
		Type string `json:"type"`
		Info struct {
			Amount          string `json:"amount"`
			Mint            string `json:"mint"`
			SourceMint      string `json:"sourceMint"`
			DestinationMint string `json:"destinationMint"`
			TokenAmount     *struct {
				Amount string `json:"amount"`
			} `json:"tokenAmount"`
		} `json:"info"`
	}
	if err := json.Unmarshal(ins.Parsed, &parsed); err != nil {
		return TokenInstruction{}, false
	}

	if parsed.Type != "transfer" && parsed.Type != "transferChecked" {
		return TokenInstruction{}, false
	}

	// transferChecked carries the amount inside tokenAmount
	rawAmount := parsed.Info.Amount
	if rawAmount == "" && parsed.Info.TokenAmount != nil {
		rawAmount = parsed.Info.TokenAmount.Amount
	}
	amount, err := strconv.ParseUint(rawAmount, 10, 64)
	if err != nil {
		return TokenInstruction{}, false
	}

	return TokenInstruction{
		Type:            parsed.Type,
		Mint:            parsed.Info.Mint,
		SourceMint:      parsed.Info.SourceMint,
		DestinationMint: parsed.Info.DestinationMint,
		Amount:          amount,
	}, true
}

// parsedTransactionResult is the raw RPC response for getTransaction with
// jsonParsed encoding.
type parsedTransactionResult struct {
	Slot        int64              `json:"slot"`
	BlockTime   *int64             `json:"blockTime"`
	Meta        *parsedMeta        `json:"meta"`
	Transaction *parsedTransaction `json:"transaction"`
}

type parsedMeta struct {
	Err               interface{}          `json:"err"`
	LogMessages       []string             `json:"logMessages"`
	InnerInstructions []parsedInnerInsList `json:"innerInstructions"`
}

type parsedInnerInsList struct {
	Index        int                 `json:"index"`
	Instructions []parsedInstruction `json:"instructions"`
}

type parsedInstruction struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"`
}

type parsedTransaction struct {
	Message *parsedMessage `json:"message"`
}

type parsedMessage struct {
	AccountKeys []parsedAccountKey `json:"accountKeys"`
}

type parsedAccountKey struct {
	Pubkey string `json:"pubkey"`
	Signer bool   `json:"signer"`
}

// GetTokenSupply retrieves supply and decimal scale for a mint.
// Returns (nil, nil) when the address is not a token mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error) {
	params := []interface{}{mint}

	var result getTokenSupplyResult
	if err := c.call(ctx, "getTokenSupply", params, &result); err != nil {
		// The node answers "not a Token mint" with an invalid-params error,
		// which the registry treats as an invalid mint, not an outage.
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) && rpcErr.Code == rpcErrInvalidParams {
			return nil, nil
		}
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	return &TokenSupply{
		Amount:   result.Value.Amount,
		Decimals: result.Value.Decimals,
	}, nil
}

// JSON-RPC error code for invalid params (wrong account kind, bad pubkey).
const rpcErrInvalidParams = -32602

type getTokenSupplyResult struct {
	Value *getTokenSupplyValue `json:"value"`
}

type getTokenSupplyValue struct {
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

// GetAccountInfo retrieves account info by public key.
// Returns (nil, nil) if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding": "base64",
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
	}

	if len(result.Value.Data) >= 1 {
		info.Data = result.Value.Data[0]
	}

	return info, nil
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)
