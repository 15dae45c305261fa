// Package main is the entry point for the Aligned server.
//
// COMMANDS:
//
//	aligned serve     start the HTTP server (the default when no command is given)
//	aligned migrate   create or upgrade the database schema and exit
//
// main stays minimal. It reads configuration, opens the outside world
// (database, Redis, identity provider, completion API) and hands everything
// to internal/server. All actual logic lives in the internal packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sakif/aligned/internal/config"
	"github.com/sakif/aligned/internal/generator"
	"github.com/sakif/aligned/internal/identity"
	"github.com/sakif/aligned/internal/repository"
	"github.com/sakif/aligned/internal/repository/postgres"
	"github.com/sakif/aligned/internal/repository/sqlite"
	"github.com/sakif/aligned/internal/server"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "aligned",
	Short: "Aligned turns hiring-manager notes into candidate summaries",
	Long: `Aligned signs recruiters in with emailed magic links, stores their
candidate summaries and generates structured reports through a completion API.

Configuration comes from environment variables (and a .env file if present).`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema, then exit",
	Long: `Opens the configured database, which runs every idempotent migration,
and exits. Only the DATABASE_DRIVER, DB_PATH and DATABASE_URL variables are read.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default depends on ENV)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger writes text logs in development and JSON in production.
func newLogger(environment string) *slog.Logger {
	level := slog.LevelDebug
	if environment == "production" {
		level = slog.LevelInfo
	}
	if logLevel != "" {
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			fmt.Fprintf(os.Stderr, "ignoring invalid --log-level %q\n", logLevel)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Server.Environment)

	// === 2. DATABASE ===
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		return err
	}

	// === 3. REDIS (optional) ===
	// Without Redis the code ledger is in-process and rate limiting is off.
	var rdb *redis.Client
	ledger := identity.Ledger(identity.NewMemoryLedger())
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			store.Close()
			return fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup", slog.String("error", err.Error()))
		}
		ledger = identity.NewRedisLedger(rdb)
	} else {
		logger.Warn("REDIS_URL not set: rate limiting is disabled and used sign-in codes are tracked in memory")
	}

	// === 4. IDENTITY PROVIDER ===
	idp := identity.New(identity.Config{URL: cfg.Auth.URL, AnonKey: cfg.Auth.AnonKey}, ledger, logger)

	// === 5. REPORT GENERATION ===
	completer, err := newCompleter(ctx, cfg.Completion, logger)
	if err != nil {
		store.Close()
		return err
	}
	gen := generator.New(completer, cfg.Completion.Timeout, logger)

	// === 6. SERVER ===
	srv, err := server.New(cfg, server.Deps{
		Store:        store,
		Identity:     idp,
		IdentityPing: idp.Ping,
		Generator:    gen,
		Redis:        rdb,
	}, logger)
	if err != nil {
		store.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until SIGINT or SIGTERM.
	return srv.Start()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	dbCfg := config.LoadDatabase()
	logger := newLogger(os.Getenv("ENV"))

	store, err := openStore(cmd.Context(), dbCfg)
	if err != nil {
		logger.Error("migration failed", slog.String("driver", dbCfg.Driver), slog.String("error", err.Error()))
		return err
	}
	defer store.Close()

	logger.Info("database schema is up to date", slog.String("driver", dbCfg.Driver))
	return nil
}

// openStore opens the configured backend. Both constructors migrate.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "sqlite", "":
		if cfg.Path != ":memory:" {
			dir := filepath.Dir(cfg.Path)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown DATABASE_DRIVER %q", cfg.Driver)
	}
}

func newCompleter(ctx context.Context, cfg config.CompletionConfig, logger *slog.Logger) (generator.Completer, error) {
	if cfg.Provider == "gemini" {
		c, err := generator.NewGeminiCompleter(ctx, generator.GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	c, err := generator.NewOpenAICompleter(generator.OpenAIConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
