package db

import (
	"context"
	"errors"
)

// Error kinds shared by every Store implementation.
var (
	ErrConflict    = errors.New("duplicate key")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("store unavailable")
)

// Store is the match and player persistence used by the service.
type Store interface {
	Migrate(ctx context.Context) error

	MatchExists(ctx context.Context, matchID, puuid string) (bool, error)
	// InsertMatch never updates; an existing (match_id, puuid) row yields ErrConflict.
	InsertMatch(ctx context.Context, m *Match) error
	GetPlayerMatches(ctx context.Context, puuid string) ([]Match, error)
	GetChampionMatches(ctx context.Context, puuid, champion string) ([]Match, error)
	GetMatchParticipants(ctx context.Context, matchID string) ([]MatchParticipant, error)

	UpsertPlayer(ctx context.Context, p *Player) (*Player, error)
	GetPlayer(ctx context.Context, puuid string) (*Player, error)
	ListPlayers(ctx context.Context) ([]Player, error)

	AggregateStats(ctx context.Context, puuid string) (*StatsAggregate, error)
	UpsertStatsSummary(ctx context.Context, s *PlayerStats) (*PlayerStats, error)
	GetStatsSummary(ctx context.Context, puuid string) (*PlayerStats, error)

	Close()
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*SQLite)(nil)
)
