package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gwi.com/llm-chat-service/internal/api"
	"gwi.com/llm-chat-service/internal/auth"
	"gwi.com/llm-chat-service/internal/config"
	"gwi.com/llm-chat-service/internal/core"
	"gwi.com/llm-chat-service/internal/observability"
	"gwi.com/llm-chat-service/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "chat-service",
	Short:         "Chat, feedback and activity-report backend in front of an LLM API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		setupLogging(cfg.LogLevel)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, memberCmd)
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var handler slog.Handler
	if strings.EqualFold(level, "DEBUG") {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func openStore() (*store.SQLiteStore, error) {
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbStore, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfg.LogLevel == "DEBUG" {
		slog.Debug("Service starting in DEBUG mode")
	}

	dbStore, err := openStore()
	if err != nil {
		return err
	}
	defer dbStore.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	llmService, err := core.NewLLMService(cmd.Context(), cfg, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	defer llmService.Close()

	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTTTL)
	logService := core.NewLogService(dbStore, tokens, nil)
	memberService := core.NewMemberService(dbStore, tokens, logService, nil)
	chatService := core.NewChatService(dbStore, tokens, llmService, logService, metrics, nil)
	feedbackService := core.NewFeedbackService(dbStore, tokens, nil)

	apiHandler := api.NewAPIHandler(memberService, chatService, feedbackService, logService, dbStore.Ping)
	router := api.NewRouter(apiHandler, metrics)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	case <-quit:
	}
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server exiting gracefully")
	return nil
}
