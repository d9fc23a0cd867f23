package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"rift-tracker/internal/archive"
	"rift-tracker/internal/collector"
	"rift-tracker/internal/config"
	"rift-tracker/internal/db"
	"rift-tracker/internal/discord"
	"rift-tracker/internal/ingest"
	"rift-tracker/internal/logging"
	"rift-tracker/internal/riot"
)

func main() {
	riotID := flag.String("riot-id", "", "Starting Riot ID (e.g., 'Player#NA1')")
	puuid := flag.String("puuid", "", "Starting PUUID")
	matchCount := flag.Int("count", 0, "Matches to fetch per player (default: match_count from config)")
	maxPlayers := flag.Int("max-players", collector.DefaultMaxPlayers, "Maximum players to ingest")
	workers := flag.Int("workers", collector.DefaultWorkers, "Players ingested concurrently")
	flag.Parse()

	if *riotID == "" && *puuid == "" {
		fmt.Fprintln(os.Stderr, "Usage: collector -riot-id 'Name#TAG' | -puuid <puuid> [-max-players N] [-workers N] [-count N]")
		os.Exit(2)
	}

	if err := run(*riotID, *puuid, *matchCount, *maxPlayers, *workers); err != nil {
		slog.Error("collector failed", "tag", "collector", "err", err)
		os.Exit(1)
	}
}

func run(riotID, seedPUUID string, matchCount, maxPlayers, workers int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(os.Stderr, level)
	slog.SetDefault(logger)
	log := logging.Tagged(logger, "collector")

	if matchCount <= 0 {
		matchCount = cfg.MatchCount
	}

	ctx, stop := collector.SetupSignalHandler(context.Background(), func() {
		log.Info("finishing in-flight players")
	})
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
		}
	}
	client, err := riot.NewClient(cfg.RiotAPIKey, clientOpts...)
	if err != nil {
		return err
	}

	var notifier *discord.WebhookClient
	crawlCfg := collector.Config{
		Workers:    workers,
		MaxPlayers: maxPlayers,
		APIKey:     cfg.RiotAPIKey,
		Logger:     logger,
	}
	if cfg.DiscordWebhookURL != "" {
		notifier = discord.NewWebhookClient(cfg.DiscordWebhookURL)
		crawlCfg.Notifier = notifier
	}
	crawler := collector.NewCrawler(crawlCfg)

	ingestOpts := []ingest.Option{
		ingest.WithMatchCount(matchCount),
		ingest.WithMatchSink(crawler.Discover),
		ingest.WithLogger(logger),
	}
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
	}
	coordinator := ingest.NewCoordinator(client, store, ingestOpts...)

	seed := seedPUUID
	seedLabel := seedPUUID
	if riotID != "" {
		gameName, tagLine, ok := strings.Cut(riotID, "#")
		if !ok {
			return fmt.Errorf("invalid Riot ID %q, expected 'GameName#TagLine'", riotID)
		}
		player, err := coordinator.SearchPlayer(ctx, strings.TrimSpace(gameName), strings.TrimSpace(tagLine))
		if err != nil {
			return fmt.Errorf("failed to look up %s: %w", riotID, err)
		}
		seed = player.PUUID
		seedLabel = riotID
		log.Info("seed resolved", "riot_id", riotID, "puuid", player.PUUID)
	}

	sum, err := crawler.Run(ctx, coordinator, seed)
	fmt.Printf("\n=== Crawl Summary ===\nPlayers: %d (failed %d)\nNew matches: %d\nRuntime: %s\n",
		sum.Players, sum.Failed, sum.Matches, sum.Runtime.Round(time.Second))
	if err != nil {
		return fmt.Errorf("crawl stopped: %w", err)
	}

	if notifier != nil {
		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := notifier.SendCrawlFinished(sendCtx, seedLabel, sum.Players, sum.Matches, sum.Runtime); err != nil {
			log.Warn("failed to send crawl summary", "err", err)
		}
	}
	return nil
}
