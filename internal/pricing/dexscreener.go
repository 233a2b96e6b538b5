// Package pricing fetches token prices and recent trade activity from the
// DexScreener public HTTP API.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the DexScreener API root.
const DefaultBaseURL = "https://api.dexscreener.com"

// ErrNoPrice indicates DexScreener has no USD price for the mint.
var ErrNoPrice = errors.New("no price available")

// Trade is one recent trade record for a pair.
type Trade struct {
	TxHash    string
	Type      string // "buy" or "sell"
	AmountUSD decimal.Decimal
}

// PriceFeed provides USD prices for mints.
type PriceFeed interface {
	// GetPrice returns the current USD price of the mint's primary pair.
	// Returns ErrNoPrice when DexScreener knows no pair for the mint.
	GetPrice(ctx context.Context, mint string) (decimal.Decimal, error)
}

// Client is a DexScreener HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API root, used in tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a DexScreener client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ PriceFeed = (*Client)(nil)

// pairData mirrors the relevant fields of one DexScreener pair object.
type pairData struct {
	PriceUsd string `json:"priceUsd"`
	Txns     struct {
		M5 []tradeData `json:"m5"`
	} `json:"txns"`
}

type tradeData struct {
	TxHash    string `json:"txHash"`
	Type      string `json:"type"`
	AmountUsd string `json:"amountUsd"`
}

type pairResponse struct {
	Pair  *pairData  `json:"pair"`
	Pairs []pairData `json:"pairs"`
}

// GetPrice fetches the USD price of the mint's primary Solana pair.
func (c *Client) GetPrice(ctx context.Context, mint string) (decimal.Decimal, error) {
	pair, err := c.fetchPair(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	if pair == nil || pair.PriceUsd == "" {
		return decimal.Zero, ErrNoPrice
	}

	price, err := decimal.NewFromString(pair.PriceUsd)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse priceUsd %q: %w", pair.PriceUsd, err)
	}
	return price, nil
}

// RecentTrades fetches the pair's last five minutes of trades. A mint with no
// pair returns an empty slice.
func (c *Client) RecentTrades(ctx context.Context, mint string) ([]Trade, error) {
	pair, err := c.fetchPair(ctx, mint)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, nil
	}

	trades := make([]Trade, 0, len(pair.Txns.M5))
	for _, t := range pair.Txns.M5 {
		if t.TxHash == "" {
			continue
		}
		amount := decimal.Zero
		if t.AmountUsd != "" {
			if parsed, err := decimal.NewFromString(t.AmountUsd); err == nil {
				amount = parsed
			}
		}
		trades = append(trades, Trade{
			TxHash:    t.TxHash,
			Type:      t.Type,
			AmountUSD: amount,
		})
	}
	return trades, nil
}

// fetchPair queries the Solana pairs endpoint for a mint. Returns (nil, nil)
// when DexScreener has no pair for it.
func (c *Client) fetchPair(ctx context.Context, mint string) (*pairData, error) {
	url := fmt.Sprintf("%s/latest/dex/pairs/solana/%s", c.baseURL, mint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pair for %s: %w", mint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("dexscreener returned %d: %s", resp.StatusCode, string(body))
	}

	var payload pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if payload.Pair != nil {
		return payload.Pair, nil
	}
	if len(payload.Pairs) > 0 {
		return &payload.Pairs[0], nil
	}
	return nil, nil
}
