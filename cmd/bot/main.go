package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gate-tg-bot/internal/audit"
	"gate-tg-bot/internal/challenge"
	"gate-tg-bot/internal/config"
	"gate-tg-bot/internal/telegram"
	"gate-tg-bot/internal/verify"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	var logLevel slog.Level
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if cfg.Logging.JSONFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Create root context with cancellation
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// WaitGroup for tracking active goroutines
	var wg sync.WaitGroup

	// Verdict ledger is optional
	var ledger audit.Store
	var recorder verify.Recorder
	if cfg.Audit.DBPath != "" {
		store, err := audit.NewSQLiteStore(cfg.Audit.DBPath)
		if err != nil {
			logger.Error("failed to open audit store", "error", err, "path", cfg.Audit.DBPath)
			os.Exit(1)
		}
		defer store.Close()
		ledger = store
		recorder = store
	}

	generator, err := challenge.NewGenerator(challenge.Params{
		OperandMin: cfg.Gate.OperandMin,
		OperandMax: cfg.Gate.OperandMax,
		DecoyMin:   cfg.Gate.DecoyMin,
		DecoyMax:   cfg.Gate.DecoyMax,
		DecoyCount: cfg.Gate.DecoyCount,
		Window:     cfg.Gate.RestrictionWindow,
	}, nil)
	if err != nil {
		logger.Error("failed to create challenge generator", "error", err)
		os.Exit(1)
	}

	api, err := telegram.NewAPI(cfg.Telegram)
	if err != nil {
		logger.Error("failed to create telegram api", "error", err)
		os.Exit(1)
	}

	engine := verify.NewEngine(verify.Config{
		SourceChatID:  cfg.Gate.SourceChatID,
		TargetChatID:  cfg.Gate.TargetChatID,
		InviteTTL:     cfg.Gate.InviteTTL,
		SweepInterval: cfg.Gate.SweepInterval,
		BanOnSuccess:  cfg.Gate.BanOnSuccess,
	},
		challenge.NewStore(),
		generator,
		telegram.NewPlatform(api, logger),
		recorder,
		verify.SystemClock{},
		logger,
	)

	access := telegram.NewAccess(cfg.Telegram.AdminUsers, logger)
	updateHandler := telegram.NewHandler(api, engine, access, ledger, logger)
	bot := telegram.NewBot(cfg.Telegram, api, updateHandler, logger)

	// Start expiry sweeper
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.RunSweeper(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweeper error", "error", err)
		}
	}()

	// Start bot in goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bot.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("bot error", "error", err)
		}
	}()

	logger.Info("gate started",
		"bot_username", bot.GetBotInfo().UserName,
		"source_chat_id", cfg.Gate.SourceChatID,
		"target_chat_id", cfg.Gate.TargetChatID,
		"restriction_window", cfg.Gate.RestrictionWindow,
		"ban_on_success", cfg.Gate.BanOnSuccess,
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig)

	// Cancel root context to signal all goroutines
	rootCancel()

	// Wait for graceful shutdown with timeout
	shutdownTimeout := 30 * time.Second
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete", "pending_challenges", engine.Pending())
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}
}
