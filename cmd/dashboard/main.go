package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gridlens/outage-insight/internal/api"
	"github.com/gridlens/outage-insight/internal/config"
	"github.com/gridlens/outage-insight/internal/llm"
	"github.com/gridlens/outage-insight/internal/narrate"
	"github.com/gridlens/outage-insight/internal/observability"
	"github.com/gridlens/outage-insight/internal/outage"
	"github.com/gridlens/outage-insight/internal/server"
	"github.com/gridlens/outage-insight/internal/session"
	"github.com/gridlens/outage-insight/internal/telemetry"
	"github.com/gridlens/outage-insight/internal/tutorial"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer("outage-insight", logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	metrics := observability.NewMetrics()

	store, err := outage.New(outage.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		log.Fatalf("Failed to open outage database: %v", err)
	}
	defer store.Close()

	if cfg.Database.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure database schema: %v", err)
		}
	}

	sessions, err := buildSessionStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}

	llmTimeout, err := cfg.OpenAI.RequestTimeout()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	clientOpts := []llm.ClientOption{llm.WithTimeout(llmTimeout)}
	if cfg.OpenAI.BaseURL != "" {
		clientOpts = append(clientOpts, llm.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	client := llm.NewClient(cfg.OpenAI.APIKey, clientOpts...)

	narrator := narrate.New(client, cfg.OpenAI.Model, logger, metrics)
	engine := tutorial.New(sessions, store, narrator, logger, metrics)

	srv := server.New(cfg.Server.Port, logger)
	api.NewHandler(engine, store, logger).Routes(srv.Router)

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	logger.Info("shutdown complete")
}

func buildSessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, error) {
	ttl, err := cfg.Sessions.SessionTTL()
	if err != nil {
		return nil, err
	}

	switch cfg.Sessions.Backend {
	case "redis":
		logger.Info("using redis session store")
		return session.NewRedisStore(ctx, cfg.Sessions.Redis.URL, ttl)
	default:
		logger.Info("using in-memory session store",
			slog.Int("max_entries", cfg.Sessions.MaxEntries),
			slog.Duration("ttl", ttl),
		)
		return session.NewMemoryStore(cfg.Sessions.MaxEntries, ttl), nil
	}
}
