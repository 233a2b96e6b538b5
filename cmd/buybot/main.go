package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solana-buybot/internal/alert"
	"solana-buybot/internal/bot"
	"solana-buybot/internal/domain"
	"solana-buybot/internal/observability"
	"solana-buybot/internal/pipeline"
	"solana-buybot/internal/pricing"
	"solana-buybot/internal/registry"
	"solana-buybot/internal/solana"
	"solana-buybot/internal/storage"
	chstore "solana-buybot/internal/storage/clickhouse"
	filestore "solana-buybot/internal/storage/file"
	"solana-buybot/internal/storage/memory"
	"solana-buybot/internal/storage/migrations"
	pgstore "solana-buybot/internal/storage/postgres"
	"solana-buybot/internal/valuate"
)

func main() {
	// Parse flags
	source := flag.String("source", "ws", "Event source: ws (push) or poll (pull)")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint (env RPC_ENDPOINT)")
	wsEndpoint := flag.String("ws-endpoint", "", "Solana WebSocket endpoint (env WS_ENDPOINT)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (env POSTGRES_DSN)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse DSN for the alert archive, empty to disable (env CLICKHOUSE_DSN)")
	tokenFile := flag.String("token-file", "", "Flat-file token registry path instead of PostgreSQL")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	pollInterval := flag.Duration("poll-interval", 60*time.Second, "Trade poll interval for -source=poll")
	envFile := flag.String("env-file", ".env", "Path to .env file (missing file is fine)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	disableCommands := flag.Bool("disable-commands", false, "Disable the Telegram command loop")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[buybot] ", log.LstdFlags|log.Lshortfile)

	// Secrets come from the environment, optionally seeded from a .env file.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		logger.Fatalf("Load %s: %v", *envFile, err)
	}

	botToken := os.Getenv("BOT_TOKEN")
	chatID := os.Getenv("CHAT_ID")
	if botToken == "" || chatID == "" {
		logger.Fatal("BOT_TOKEN and CHAT_ID are required")
	}

	if *rpcEndpoint == "" {
		*rpcEndpoint = os.Getenv("RPC_ENDPOINT")
	}
	if *wsEndpoint == "" {
		*wsEndpoint = os.Getenv("WS_ENDPOINT")
	}
	if *postgresDSN == "" {
		*postgresDSN = os.Getenv("POSTGRES_DSN")
	}
	if *clickhouseDSN == "" {
		*clickhouseDSN = os.Getenv("CLICKHOUSE_DSN")
	}

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint (or RPC_ENDPOINT) is required")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err := run(ctx, logger, options{
		source:          *source,
		rpcEndpoint:     *rpcEndpoint,
		wsEndpoint:      *wsEndpoint,
		postgresDSN:     *postgresDSN,
		clickhouseDSN:   *clickhouseDSN,
		tokenFile:       *tokenFile,
		useMemory:       *useMemory,
		pollInterval:    *pollInterval,
		botToken:        botToken,
		chatID:          chatID,
		disableCommands: *disableCommands,
	})

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

type options struct {
	source          string
	rpcEndpoint     string
	wsEndpoint      string
	postgresDSN     string
	clickhouseDSN   string
	tokenFile       string
	useMemory       bool
	pollInterval    time.Duration
	botToken        string
	chatID          string
	disableCommands bool
}

// run wires the stores, sources and pipeline and blocks until ctx ends.
func run(ctx context.Context, logger *log.Logger, opts options) error {
	// Create stores (use interfaces)
	var tokenStore storage.TokenStore = memory.NewTokenStore()
	var txStore storage.ProcessedTxStore = memory.NewProcessedTxStore()

	switch {
	case opts.useMemory:
		logger.Println("Using in-memory storage")
	case opts.tokenFile != "":
		// Flat-file registry keeps the tracked set across restarts; the
		// dedup ledger stays in memory.
		tokenStore = filestore.NewTokenStore(opts.tokenFile)
		logger.Printf("Using flat-file token registry at %s", opts.tokenFile)
	case opts.postgresDSN != "":
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}

		tokenStore = pgstore.NewTokenStore(pool)
		txStore = pgstore.NewProcessedTxStore(pool)
		logger.Println("Using PostgreSQL storage")
	default:
		return fmt.Errorf("--postgres-dsn is required (or --use-memory / --token-file)")
	}

	// Optional ClickHouse alert archive
	var archive storage.AlertArchive
	var history storage.AlertHistory
	if opts.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()
		archiveStore := chstore.NewAlertArchiveStore(conn)
		archive = archiveStore
		history = archiveStore
		logger.Println("Alert archive enabled")
	}

	// RPC client and registry
	rpc := solana.NewHTTPClient(opts.rpcEndpoint)
	reg := registry.NewService(tokenStore, rpc)

	// Alerting
	notifier, err := alert.NewTelegram(opts.botToken, opts.chatID)
	if err != nil {
		return fmt.Errorf("create telegram notifier: %w", err)
	}
	dispatcher := alert.NewDispatcher(notifier)

	// Pricing and valuation
	prices := pricing.NewClient()
	valuator := valuate.NewValuator(prices)

	pipe := pipeline.New(pipeline.Options{
		TokenStore: tokenStore,
		TxStore:    txStore,
		RPC:        rpc,
		Valuator:   valuator,
		Dispatcher: dispatcher,
		Archive:    archive,
		Logger:     logger,
	})

	// Event source
	var src pipeline.EventSource
	switch opts.source {
	case "ws":
		if opts.wsEndpoint == "" {
			return fmt.Errorf("--ws-endpoint (or WS_ENDPOINT) is required for -source=ws")
		}
		ws, err := solana.NewWSClient(ctx, opts.wsEndpoint, nil)
		if err != nil {
			return fmt.Errorf("create websocket client: %w", err)
		}
		defer ws.Close()

		src = pipeline.NewWSSource(pipeline.WSSourceOptions{
			WS:         ws,
			TokenStore: tokenStore,
			Logger:     logger,
		})
	case "poll":
		src = pipeline.NewPollSource(pipeline.PollSourceOptions{
			Trades:     prices,
			TokenStore: tokenStore,
			TxStore:    txStore,
			Interval:   opts.pollInterval,
			Logger:     logger,
		})
	default:
		return fmt.Errorf("unknown source: %s", opts.source)
	}

	// Telegram command loop
	if !opts.disableCommands {
		adminID, err := strconv.ParseInt(opts.chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("parse CHAT_ID: %w", err)
		}
		cmdBot, err := bot.New(bot.Options{
			Token:       opts.botToken,
			AdminChatID: adminID,
			Registry:    reg,
			History:     history,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("create command bot: %w", err)
		}
		go func() {
			if err := cmdBot.Run(ctx); err != nil && err != context.Canceled {
				logger.Printf("Command loop error: %v", err)
			}
		}()
	}

	logger.Printf("Starting buy detection, source=%s", opts.source)
	return src.Run(ctx, func(ctx context.Context, ev domain.LogEvent) {
		if _, err := pipe.HandleEvent(ctx, ev); err != nil {
			logger.Printf("Handle event %s: %v", ev.Signature, err)
		}
	})
}
