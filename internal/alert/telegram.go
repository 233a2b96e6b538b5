package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Notifier delivers a rendered message to a chat.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Telegram sends Markdown messages to one chat via the Bot API. Sends are
// rate limited to roughly one per second per chat and 429 responses are
// retried honoring Retry-After.
type Telegram struct {
	apiBase    string
	chatID     string
	httpClient *http.Client

	mu          sync.Mutex
	nextAllowed time.Time
}

// TelegramOption configures the Telegram notifier.
type TelegramOption func(*Telegram)

// WithAPIBase overrides the Bot API root, used in tests.
func WithAPIBase(base string) TelegramOption {
	return func(t *Telegram) {
		t.apiBase = base
	}
}

// WithTelegramHTTPClient sets a custom HTTP client.
func WithTelegramHTTPClient(client *http.Client) TelegramOption {
	return func(t *Telegram) {
		t.httpClient = client
	}
}

// NewTelegram creates a Telegram notifier for one bot token and chat.
func NewTelegram(token, chatID string, opts ...TelegramOption) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram chat id is empty")
	}
	t := &Telegram{
		apiBase:     "https://api.telegram.org/bot" + token,
		chatID:      chatID,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		nextAllowed: time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Compile-time interface check.
var _ Notifier = (*Telegram)(nil)

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// waitRateLimit blocks until the next send slot for the chat. The Bot API
// allows roughly one message per second per chat.
func (t *Telegram) waitRateLimit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if now.Before(t.nextAllowed) {
		time.Sleep(t.nextAllowed.Sub(now))
	}
	t.nextAllowed = time.Now().Add(1100 * time.Millisecond)
}

// Send posts the message with parse_mode Markdown and link previews
// disabled. Retries on transport errors, 5xx and 429 with exponential
// backoff, bounded at five attempts. Other 4xx responses fail immediately.
func (t *Telegram) Send(ctx context.Context, text string) error {
	payload := sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	}
	body, err := json.Marshal(&payload)
	if err != nil {
		return fmt.Errorf("marshal sendMessage payload: %w", err)
	}

	url := t.apiBase + "/sendMessage"

	const maxAttempts = 5
	backoff := 1200 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.waitRateLimit()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create sendMessage request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			retryAfter, done := t.handleResponse(resp)
			if done {
				return nil
			}
			lastErr = fmt.Errorf("telegram sendMessage: %s", resp.Status)
			if resp.StatusCode/100 == 4 && resp.StatusCode != http.StatusTooManyRequests {
				// Client errors other than rate limiting never heal on retry.
				return lastErr
			}
			if retryAfter > backoff {
				backoff = retryAfter
			}
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = minDuration(backoff*2, 15*time.Second)
		}
	}

	return fmt.Errorf("telegram send failed after %d attempts: %w", maxAttempts, lastErr)
}

// handleResponse consumes the response body. Returns the Retry-After wait
// for 429 responses and whether the send succeeded.
func (t *Telegram) handleResponse(resp *http.Response) (time.Duration, bool) {
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		io.Copy(io.Discard, resp.Body)
		return 0, true
	}

	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode == http.StatusTooManyRequests {
		return parseRetryAfter(resp.Header.Get("Retry-After")), false
	}
	return 0, false
}

// parseRetryAfter reads a Retry-After header value in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if sec, err := strconv.Atoi(v); err == nil && sec >= 0 {
		return time.Duration(sec) * time.Second
	}
	return 5 * time.Second
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
