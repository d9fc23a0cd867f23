// Package stats derives per-player summary statistics from stored matches.
package stats

import (
	"context"
	"fmt"
	"log/slog"

	"rift-tracker/internal/db"
	"rift-tracker/internal/logging"
	"rift-tracker/internal/match"
	"rift-tracker/internal/metrics"
)

// Store is the subset of db.Store the aggregator reads and writes.
type Store interface {
	AggregateStats(ctx context.Context, puuid string) (*db.StatsAggregate, error)
	UpsertStatsSummary(ctx context.Context, s *db.PlayerStats) (*db.PlayerStats, error)
}

// Mirror receives a copy of every materialized summary row.
type Mirror interface {
	MirrorStats(ctx context.Context, s *db.PlayerStats) error
}

// Aggregator computes and materializes player stats. It never writes match rows.
type Aggregator struct {
	store  Store
	mirror Mirror
	log    *slog.Logger
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithMirror copies materialized rows to m. Mirror failures are logged only.
func WithMirror(m Mirror) Option {
	return func(a *Aggregator) {
		a.mirror = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.log = logging.Tagged(logger, "stats")
	}
}

// NewAggregator creates an Aggregator over store.
func NewAggregator(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store: store,
		log:   logging.Tagged(nil, "stats"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ComputeStats aggregates every stored match of the player. A player with no
// matches gets an all-zero snapshot with favorite champion "None".
func (a *Aggregator) ComputeStats(ctx context.Context, puuid string) (*db.PlayerStats, error) {
	agg, err := a.store.AggregateStats(ctx, puuid)
	if err != nil {
		return nil, fmt.Errorf("aggregating stats for %s: %w", puuid, err)
	}
	return Snapshot(puuid, agg), nil
}

// Snapshot turns raw store aggregates into a rounded snapshot.
func Snapshot(puuid string, agg *db.StatsAggregate) *db.PlayerStats {
	s := &db.PlayerStats{
		PUUID:            puuid,
		FavoriteChampion: db.NoFavoriteChampion,
	}
	if agg == nil || agg.TotalGames == 0 {
		return s
	}

	s.TotalGames = agg.TotalGames
	s.Wins = agg.Wins
	s.Losses = agg.TotalGames - agg.Wins
	s.WinRate = match.Round2(100 * float64(agg.Wins) / float64(agg.TotalGames))
	s.AvgKDA = match.Round2(agg.AvgKDA)
	if agg.FavoriteChampion != "" {
		s.FavoriteChampion = agg.FavoriteChampion
	}
	s.TotalKills = agg.TotalKills
	s.TotalDeaths = agg.TotalDeaths
	s.TotalAssists = agg.TotalAssists
	s.AvgCS = match.Round2(agg.AvgCS)
	s.AvgGold = match.Round2(agg.AvgGold)
	s.AvgDamage = match.Round2(agg.AvgDamage)
	return s
}

// MaterializeStats computes the snapshot and overwrites the player's summary row.
func (a *Aggregator) MaterializeStats(ctx context.Context, puuid string) (*db.PlayerStats, error) {
	s, err := a.ComputeStats(ctx, puuid)
	if err != nil {
		metrics.RecordStatsMaterialized(metrics.OutcomeFailure)
		return nil, err
	}

	saved, err := a.store.UpsertStatsSummary(ctx, s)
	if err != nil {
		metrics.RecordStatsMaterialized(metrics.OutcomeFailure)
		return nil, fmt.Errorf("saving stats for %s: %w", puuid, err)
	}
	metrics.RecordStatsMaterialized(metrics.OutcomeSuccess)

	if a.mirror != nil {
		if err := a.mirror.MirrorStats(ctx, saved); err != nil {
			a.log.Warn("mirror failed", "puuid", puuid, "err", err)
		}
	}

	a.log.Debug("stats materialized", "puuid", puuid, "games", saved.TotalGames, "win_rate", saved.WinRate)
	return saved, nil
}
