package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/A7-pro/mikerobot/internal/config"
	"github.com/A7-pro/mikerobot/internal/core"
	"github.com/A7-pro/mikerobot/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "mikerobot",
	Short: "Mike, a Saudi-flavoured chat assistant backed by Gemini",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadConfig()
		setupLogger(config.AppConfig.LogLevel)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, announceCmd, instructionCmd, templatesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func openRepository(ctx context.Context) (*store.Repository, error) {
	cfg := config.AppConfig
	kv, err := store.Open(ctx, cfg.StoreDriver, store.Options{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		RedisPrefix:   cfg.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	return store.NewRepository(kv), nil
}

// offlineAdmin serves the admin subcommands. It has no live sessions to notify; running servers pick
// the change up on the next hydration.
func offlineAdmin(repo *store.Repository) *core.AdminService {
	return core.NewAdminService(repo, core.NewChatService(repo, nil), config.AppConfig.AdminEmail)
}
