package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medsecure/telehealth/internal/api"
	"github.com/medsecure/telehealth/internal/auth"
	"github.com/medsecure/telehealth/internal/config"
	"github.com/medsecure/telehealth/internal/core"
	"github.com/medsecure/telehealth/internal/events"
	"github.com/medsecure/telehealth/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger := a.cfg, a.logger

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbStore.Close()

	gemini, err := core.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.GeminiChatModel, logger)
	if err != nil {
		return err
	}
	defer gemini.Close()

	llm, err := a.newCompleter(ctx, gemini)
	if err != nil {
		return err
	}

	broker, err := a.newBroker()
	if err != nil {
		return err
	}
	defer broker.Close()

	matcher := core.NewSimilarityMatcher(gemini, dbStore, cfg.SimilarityThreshold, logger)
	knowledge := core.NewKnowledgeBase(dbStore, cfg.StaffMatchMode)
	resolver := core.NewResolver(matcher, knowledge, llm, logger)
	chats := core.NewDirectChatService(dbStore, matcher, broker, logger)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.StaffTokenTTL)

	apiHandler := api.NewAPIHandler(resolver, chats, knowledge, dbStore, tokens, logger)
	router := api.NewRouter(apiHandler)

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
		logger.Info("starting server",
			zap.String("addr", serverAddr),
			zap.String("llm_provider", cfg.LLMProvider),
			zap.String("events_backend", cfg.EventsBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited gracefully")
	return nil
}

func (a *app) newCompleter(ctx context.Context, gemini *core.GeminiService) (core.Completer, error) {
	switch a.cfg.LLMProvider {
	case config.ProviderGemini:
		return gemini, nil
	default:
		return core.NewGatewayClient(ctx, a.cfg.LLMBaseURL, a.cfg.OpenRouterAPIKey, a.cfg.LLMModel)
	}
}

func (a *app) newBroker() (events.Broker, error) {
	switch a.cfg.EventsBackend {
	case config.EventsRedis:
		return events.NewRedisBroker(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, a.logger)
	default:
		return events.NewMemoryBroker(), nil
	}
}
