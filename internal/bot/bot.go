// Package bot runs the Telegram operator command loop: /add, /remove and
// /list against the token registry, over long-polled getUpdates.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"solana-buybot/internal/registry"
	"solana-buybot/internal/storage"
)

// CommandBot serves registry commands to one admin chat.
type CommandBot struct {
	apiBase     string
	adminChatID int64
	registry    *registry.Service
	history     storage.AlertHistory
	httpClient  *http.Client
	logger      *log.Logger

	pollTimeout int // getUpdates long-poll timeout in seconds
}

// Options contains configuration for creating a CommandBot.
type Options struct {
	Token       string
	AdminChatID int64
	Registry    *registry.Service
	History     storage.AlertHistory // nil when no alert archive is configured
	APIBase     string               // Default: Telegram Bot API; override in tests
	Logger      *log.Logger
}

// New creates a command bot.
func New(opts Options) (*CommandBot, error) {
	if opts.Token == "" && opts.APIBase == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	apiBase := opts.APIBase
	if apiBase == "" {
		apiBase = "https://api.telegram.org/bot" + opts.Token
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &CommandBot{
		apiBase:     apiBase,
		adminChatID: opts.AdminChatID,
		registry:    opts.Registry,
		history:     opts.History,
		httpClient:  &http.Client{Timeout: 65 * time.Second},
		logger:      logger,
		pollTimeout: 50,
	}, nil
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// Run long-polls getUpdates until the context ends. Transport errors back
// off and retry.
func (b *CommandBot) Run(ctx context.Context) error {
	b.logger.Println("[bot] command loop started")

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			b.logger.Println("[bot] command loop stopping")
			return err
		}

		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Printf("[bot] getUpdates: %v", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *CommandBot) getUpdates(ctx context.Context, offset int64) ([]update, error) {
	url := fmt.Sprintf("%s/getUpdates?offset=%d&timeout=%d", b.apiBase, offset, b.pollTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("getUpdates returned %s: %s", resp.Status, string(body))
	}

	var result struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("getUpdates returned ok=false")
	}
	return result.Result, nil
}

// handleUpdate processes one update. Messages from chats other than the
// admin chat are ignored.
func (b *CommandBot) handleUpdate(ctx context.Context, u update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	chatID := u.Message.Chat.ID
	if b.adminChatID != 0 && chatID != b.adminChatID {
		b.logger.Printf("[bot] ignoring message from chat %d", chatID)
		return
	}

	reply := b.execute(ctx, u.Message.Text)
	if reply == "" {
		return
	}
	if err := b.sendReply(ctx, chatID, reply); err != nil {
		b.logger.Printf("[bot] reply: %v", err)
	}
}

// execute runs one command and returns the reply text. Unknown input gets
// no reply.
func (b *CommandBot) execute(ctx context.Context, text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])

	switch cmd {
	case "/add":
		if len(fields) < 2 {
			return "Usage: /add <mint>"
		}
		return b.addToken(ctx, fields[1])
	case "/remove":
		if len(fields) < 2 {
			return "Usage: /remove <mint>"
		}
		return b.removeToken(ctx, fields[1])
	case "/list":
		return b.listTokens(ctx)
	case "/recent":
		if len(fields) < 2 {
			return "Usage: /recent <mint>"
		}
		return b.recentAlerts(ctx, fields[1])
	case "/start", "/help":
		return "Commands:\n" +
			"/add <mint> - track a token\n" +
			"/remove <mint> - stop tracking\n" +
			"/list - show tracked tokens\n" +
			"/recent <mint> - show recent buy alerts"
	default:
		return ""
	}
}

func (b *CommandBot) addToken(ctx context.Context, mint string) string {
	token, err := b.registry.Add(ctx, mint)
	switch {
	case err == nil:
		label := token.Mint
		if token.Symbol != nil {
			label = fmt.Sprintf("%s (%s)", *token.Symbol, token.Mint)
		}
		return fmt.Sprintf("✅ Now tracking %s, %d decimals", label, token.Decimals)
	case errors.Is(err, registry.ErrInvalidMint):
		return "❌ Not a valid token mint: " + mint
	case errors.Is(err, registry.ErrAlreadyTracked):
		return "Already tracking " + mint
	default:
		b.logger.Printf("[bot] add %s: %v", mint, err)
		return "⚠️ Could not add token, try again later"
	}
}

func (b *CommandBot) removeToken(ctx context.Context, mint string) string {
	err := b.registry.Remove(ctx, mint)
	switch {
	case err == nil:
		return "🗑 Stopped tracking " + mint
	case errors.Is(err, registry.ErrNotTracked):
		return "Not tracking " + mint
	default:
		b.logger.Printf("[bot] remove %s: %v", mint, err)
		return "⚠️ Could not remove token, try again later"
	}
}

func (b *CommandBot) listTokens(ctx context.Context) string {
	tokens, err := b.registry.List(ctx)
	if err != nil {
		b.logger.Printf("[bot] list: %v", err)
		return "⚠️ Could not read the token list, try again later"
	}
	if len(tokens) == 0 {
		return "No tokens tracked. Add one with /add <mint>"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Tracking %d token(s):\n", len(tokens)))
	for _, t := range tokens {
		if t.Symbol != nil {
			fmt.Fprintf(&sb, "• %s — %s\n", *t.Symbol, t.Mint)
		} else {
			fmt.Fprintf(&sb, "• %s\n", t.Mint)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *CommandBot) recentAlerts(ctx context.Context, mint string) string {
	if b.history == nil {
		return "Alert history is not configured"
	}
	alerts, err := b.history.Recent(ctx, mint, 10)
	if err != nil {
		b.logger.Printf("[bot] recent %s: %v", mint, err)
		return "⚠️ Could not read alert history, try again later"
	}
	if len(alerts) == 0 {
		return "No alerts recorded for " + mint
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Last %d alert(s) for %s:\n", len(alerts), mint))
	for _, a := range alerts {
		ts := time.Unix(int64(a.ObservedAt), 0).UTC().Format("2006-01-02 15:04")
		fmt.Fprintf(&sb, "• %s $%.2f at slot %d\n", ts, a.USDValue, a.Slot)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *CommandBot) sendReply(ctx context.Context, chatID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiBase+"/sendMessage", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendMessage returned %s: %s", resp.Status, string(respBody))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
