package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rift-tracker/internal/logging"
)

// DB is the Postgres Store.
type DB struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New creates a connection pool for databaseURL and verifies it with a ping.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w: %w", ErrUnavailable, err)
	}

	return &DB{pool: pool, log: logging.Tagged(nil, "db")}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for custom queries
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		puuid           TEXT PRIMARY KEY,
		game_name       TEXT NOT NULL DEFAULT '',
		tag_line        TEXT NOT NULL DEFAULT '',
		summoner_level  INTEGER NOT NULL DEFAULT 0,
		profile_icon_id INTEGER NOT NULL DEFAULT 0,
		last_updated    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		match_id      TEXT NOT NULL,
		puuid         TEXT NOT NULL,
		champion      TEXT NOT NULL,
		kills         INTEGER NOT NULL DEFAULT 0,
		deaths        INTEGER NOT NULL DEFAULT 0,
		assists       INTEGER NOT NULL DEFAULT 0,
		kda           DOUBLE PRECISION NOT NULL DEFAULT 0,
		win           BOOLEAN NOT NULL,
		game_mode     TEXT NOT NULL DEFAULT '',
		game_duration INTEGER NOT NULL DEFAULT 0,
		items         JSONB NOT NULL DEFAULT '{}',
		cs            INTEGER NOT NULL DEFAULT 0,
		gold          INTEGER NOT NULL DEFAULT 0,
		damage        INTEGER NOT NULL DEFAULT 0,
		game_start    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (match_id, puuid)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_puuid_game_start ON matches (puuid, game_start DESC)`,
	`CREATE TABLE IF NOT EXISTS player_stats (
		puuid             TEXT PRIMARY KEY,
		total_games       INTEGER NOT NULL DEFAULT 0,
		wins              INTEGER NOT NULL DEFAULT 0,
		losses            INTEGER NOT NULL DEFAULT 0,
		win_rate          DOUBLE PRECISION NOT NULL DEFAULT 0,
		avg_kda           DOUBLE PRECISION NOT NULL DEFAULT 0,
		favorite_champion TEXT NOT NULL DEFAULT 'None',
		total_kills       INTEGER NOT NULL DEFAULT 0,
		total_deaths      INTEGER NOT NULL DEFAULT 0,
		total_assists     INTEGER NOT NULL DEFAULT 0,
		avg_cs            DOUBLE PRECISION NOT NULL DEFAULT 0,
		avg_gold          DOUBLE PRECISION NOT NULL DEFAULT 0,
		avg_damage        DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_updated      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables if they don't exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	db.log.Info("schema ready", "driver", "postgres")
	return nil
}

// pgErr maps driver errors onto the Store error kinds.
func pgErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) && pgError.Code == "23505" {
		return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgError.ConstraintName)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
