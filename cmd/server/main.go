package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rift-tracker/internal/api"
	"rift-tracker/internal/archive"
	"rift-tracker/internal/config"
	"rift-tracker/internal/db"
	"rift-tracker/internal/discord"
	"rift-tracker/internal/ingest"
	"rift-tracker/internal/logging"
	"rift-tracker/internal/riot"
	"rift-tracker/internal/stats"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "tag", "server", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(os.Stderr, level)
	slog.SetDefault(logger)
	log := logging.Tagged(logger, "server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := cfg.DatabaseURL
	if cfg.DatabaseDriver == config.DriverSQLite {
		dsn = cfg.SQLitePath
	}
	store, err := db.Open(ctx, cfg.DatabaseDriver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	log.Info("store ready", "driver", cfg.DatabaseDriver)

	clientOpts := []riot.ClientOption{
		riot.WithRegionalURL(cfg.RiotRegionalURL),
		riot.WithPlatformURL(cfg.RiotPlatformURL),
		riot.WithHTTPTimeout(cfg.RiotTimeout),
		riot.WithLogger(logger),
	}
	if cfg.RedisURL != "" {
		cache, err := riot.NewRedisMatchCache(ctx, cfg.RedisURL, cfg.MatchCacheTTL)
		if err != nil {
			log.Warn("match cache disabled", "err", err)
		} else {
			defer cache.Close()
			clientOpts = append(clientOpts, riot.WithMatchCache(cache))
			log.Info("match cache enabled", "ttl", cfg.MatchCacheTTL)
		}
	}
	client, err := riot.NewClient(cfg.RiotAPIKey, clientOpts...)
	if err != nil {
		return err
	}

	var notifier *discord.WebhookClient
	if cfg.DiscordWebhookURL != "" {
		notifier = discord.NewWebhookClient(cfg.DiscordWebhookURL)
	}
	checkKey(ctx, log, cfg, notifier)

	ingestOpts := []ingest.Option{ingest.WithMatchCount(cfg.MatchCount), ingest.WithLogger(logger)}
	if cfg.ArchiveDir != "" {
		rotator, err := archive.NewRotator(cfg.ArchiveDir)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer func() {
			if err := rotator.Close(); err != nil {
				log.Warn("failed to close archive", "err", err)
			}
			if _, err := rotator.CompressWarm(context.Background()); err != nil {
				log.Warn("failed to compress archive", "err", err)
			}
		}()
		ingestOpts = append(ingestOpts, ingest.WithMatchSink(rotator.ArchiveMatch))
		log.Info("raw archive enabled", "dir", cfg.ArchiveDir)
	}
	coordinator := ingest.NewCoordinator(client, store, ingestOpts...)

	aggOpts := []stats.Option{stats.WithLogger(logger)}
	if cfg.TursoDatabaseURL != "" {
		turso, err := db.NewTursoClient(ctx, cfg.TursoDatabaseURL, cfg.TursoAuthToken)
		if err != nil {
			log.Warn("turso mirror disabled", "err", err)
		} else if err := turso.CreateTables(ctx); err != nil {
			turso.Close()
			log.Warn("turso mirror disabled", "err", err)
		} else {
			defer turso.Close()
			aggOpts = append(aggOpts, stats.WithMirror(turso))
			log.Info("turso mirror enabled")
		}
	}
	aggregator := stats.NewAggregator(store, aggOpts...)

	if cfg.StatsRefreshInterval > 0 {
		refresher := stats.NewRefresher(aggregator, store, cfg.StatsRefreshInterval)
		if err := refresher.Start(ctx); err != nil {
			return err
		}
		defer refresher.Stop()
	}

	webDir := cfg.WebDir
	if _, err := os.Stat(webDir); err != nil {
		log.Warn("static directory not found, frontend disabled", "dir", webDir)
		webDir = ""
	}

	server := api.NewServer(api.Config{
		Store:       store,
		Source:      client,
		Coordinator: coordinator,
		Aggregator:  aggregator,
		MatchCount:  cfg.MatchCount,
		WebDir:      webDir,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", "http://localhost:"+cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// checkKey probes the API key. A rejected key is reported but the server
// still starts so stored data stays readable.
func checkKey(ctx context.Context, log *slog.Logger, cfg *config.Config, notifier *discord.WebhookClient) {
	validator := riot.NewKeyValidator(riot.WithValidatorBaseURL(cfg.RiotPlatformURL))
	status, err := validator.Check(ctx, cfg.RiotAPIKey)
	switch {
	case err != nil:
		log.Warn("could not validate API key", "err", err)
	case status == riot.KeyRejected:
		log.Warn("API key rejected by Riot", "key", riot.MaskAPIKey(cfg.RiotAPIKey))
		if notifier != nil {
			if err := notifier.SendKeyRejected(ctx, "server", cfg.RiotAPIKey, 0, 0); err != nil {
				log.Warn("failed to send key rejected notification", "err", err)
			}
		}
	default:
		log.Info("API key valid", "key", riot.MaskAPIKey(cfg.RiotAPIKey))
	}
}
