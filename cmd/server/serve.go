package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/A7-pro/mikerobot/internal/api"
	"github.com/A7-pro/mikerobot/internal/config"
	"github.com/A7-pro/mikerobot/internal/core"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.KV().Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	// A nil gateway keeps the service up with assistant features disabled.
	var gateway core.Gateway
	if cfg.AssistantConfigured() {
		llmService, err := core.NewLLMService(ctx, core.LLMServiceConfig{
			APIKey:     cfg.GeminiAPIKey,
			TextModel:  cfg.GeminiTextModel,
			ImageModel: cfg.GeminiImageModel,
		})
		if err != nil {
			return err
		}
		defer llmService.Close()
		gateway = llmService
	}

	chats := core.NewChatService(repo, gateway)
	authService := core.NewAuthService(chats, cfg.AdminEmail)
	adminService := core.NewAdminService(repo, chats, cfg.AdminEmail)

	apiHandler := api.NewAPIHandler(chats, authService, adminService, cfg.RateLimitPerMinute)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // streams and image generation can take a while
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", serverAddr).
			Str("store", cfg.StoreDriver).
			Bool("assistant_configured", gateway != nil).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("server exited gracefully")
	return nil
}
