package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/reelmatch/reelmatch/internal/api"
	"github.com/reelmatch/reelmatch/internal/cache"
	"github.com/reelmatch/reelmatch/internal/config"
	"github.com/reelmatch/reelmatch/internal/logger"
	"github.com/reelmatch/reelmatch/internal/match"
	"github.com/reelmatch/reelmatch/internal/match/omdb"
	"github.com/reelmatch/reelmatch/internal/match/tmdb"
	"github.com/reelmatch/reelmatch/internal/match/tvdb"
	"github.com/reelmatch/reelmatch/internal/pipeline"
	"github.com/reelmatch/reelmatch/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Optional .env for local development; environment wins over file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting ReelMatch")

	store, janitor, err := buildCache(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache")
	}
	defer store.Close()
	if janitor != nil {
		defer janitor.Stop()
	}

	providers := buildProviders(cfg, log.Logger)

	resolver, err := match.NewResolver(providers, store, match.ResolverConfig{
		Priority:            cfg.Providers.Priority,
		AutoAcceptThreshold: cfg.Matching.AutoAcceptThreshold,
		Weights: match.Weights{
			Title: cfg.Matching.TitleWeight,
			Year:  cfg.Matching.YearWeight,
		},
		CacheTTL: time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		Caller: match.CallerConfig{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Retry.BaseDelaySeconds) * time.Second,
			MaxDelay:    time.Duration(cfg.Retry.MaxDelaySeconds) * time.Second,
			CallTimeout: time.Duration(cfg.Retry.CallTimeoutSeconds) * time.Second,
		},
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize resolver")
	}
	log.Info().Strs("providers", resolver.Providers()).Msg("metadata providers ready")

	hub := websocket.NewHub()
	go hub.Run()

	pl := pipeline.New(resolver, hub, pipeline.Config{
		Workers:   cfg.Pipeline.Workers,
		QueueSize: cfg.Pipeline.QueueSize,
	}, log.Logger)

	server := api.NewServer(pl, resolver, hub, cfg, log.Logger)

	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()
	log.Info().Str("address", cfg.Server.Address()).Msg("ReelMatch ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := pl.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("pipeline shutdown incomplete")
	}

	log.Info().Msg("goodbye")
}

// buildCache constructs the configured cache backend. SQLite and memory
// backends get a janitor sweeping expired entries; Redis expires natively.
func buildCache(cfg *config.Config, log zerolog.Logger) (cache.Store, *cache.Janitor, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		store, err := cache.NewSQLiteStore(cfg.Cache.Path)
		if err != nil {
			return nil, nil, err
		}
		janitor, err := cache.StartJanitor(store, 15*time.Minute, log)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, janitor, nil

	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case "memory":
		store := cache.NewMemoryStore()
		janitor, err := cache.StartJanitor(store, 15*time.Minute, log)
		if err != nil {
			return nil, nil, err
		}
		return store, janitor, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// buildProviders constructs every known provider client. Unconfigured ones
// are filtered out by the resolver.
func buildProviders(cfg *config.Config, log zerolog.Logger) []match.Provider {
	return []match.Provider{
		tmdb.NewClient(cfg.Providers.TMDB, log),
		tvdb.NewClient(cfg.Providers.TVDB, log),
		omdb.NewClient(cfg.Providers.OMDB, log),
	}
}
