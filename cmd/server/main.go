// granabot - chat-driven assistant for a personal budgeting ledger
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"granabot/internal/bot"
	"granabot/internal/classifier"
	"granabot/internal/config"
	"granabot/internal/ledger"
	"granabot/internal/store"
	"granabot/internal/telegram"
	"granabot/internal/webhook"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "chats", len(cfg.AllowedChats))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("Invalid BOT_TIMEZONE", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	// Initialize dependencies.
	st, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize state database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("Failed to close state database", "error", closeErr)
		}
	}()

	if err := st.Ping(context.Background()); err != nil {
		slog.Error("State database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("State database connected")

	gateway, err := ledger.NewPostgres(cfg.LedgerDSN)
	if err != nil {
		slog.Error("Failed to initialize ledger gateway", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := gateway.Close(); closeErr != nil {
			slog.Error("Failed to close ledger gateway", "error", closeErr)
		}
	}()

	if err := gateway.Ping(context.Background()); err != nil {
		slog.Error("Ledger database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Ledger database connected")

	gemini, err := classifier.NewGemini(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Error("Failed to initialize classifier", "error", err)
		os.Exit(1)
	}
	slog.Info("Classifier ready", "model", cfg.GeminiModel)

	sender := telegram.NewClient(cfg.BotToken)
	accounts := bot.NewAccountResolver(cfg.AccountKeywords, cfg.DefaultAccountID)
	dispatcher := bot.New(st, gateway, gemini, sender, cfg.AllowedChats, accounts, loc)
	webhookHandler := webhook.NewHandler(cfg.WebhookSecret, dispatcher)

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	webhookHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start expired-state sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartSweeper(ctx, st, cfg.SweepInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
