package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// TursoClient mirrors materialized player summaries to a Turso database
type TursoClient struct {
	db *sql.DB
}

// NewTursoClient creates a new Turso client
func NewTursoClient(ctx context.Context, url, authToken string) (*TursoClient, error) {
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Turso: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Turso: %w", err)
	}

	return &TursoClient{db: db}, nil
}

// Close closes the Turso connection
func (c *TursoClient) Close() error {
	return c.db.Close()
}

// CreateTables creates the mirror table if it doesn't exist
func (c *TursoClient) CreateTables(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS player_stats (
		puuid             TEXT PRIMARY KEY,
		total_games       INTEGER NOT NULL,
		wins              INTEGER NOT NULL,
		losses            INTEGER NOT NULL,
		win_rate          REAL NOT NULL,
		avg_kda           REAL NOT NULL,
		favorite_champion TEXT NOT NULL,
		total_kills       INTEGER NOT NULL,
		total_deaths      INTEGER NOT NULL,
		total_assists     INTEGER NOT NULL,
		avg_cs            REAL NOT NULL,
		avg_gold          REAL NOT NULL,
		avg_damage        REAL NOT NULL,
		updated_at        TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create player_stats: %w", err)
	}
	return nil
}

// MirrorStats upserts one summary row
func (c *TursoClient) MirrorStats(ctx context.Context, s *PlayerStats) error {
	updated := time.Now().UTC()
	if s.LastUpdated != nil {
		updated = s.LastUpdated.UTC()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO player_stats (puuid, total_games, wins, losses, win_rate, avg_kda, favorite_champion,
			total_kills, total_deaths, total_assists, avg_cs, avg_gold, avg_damage, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (puuid) DO UPDATE SET
			total_games = excluded.total_games,
			wins = excluded.wins,
			losses = excluded.losses,
			win_rate = excluded.win_rate,
			avg_kda = excluded.avg_kda,
			favorite_champion = excluded.favorite_champion,
			total_kills = excluded.total_kills,
			total_deaths = excluded.total_deaths,
			total_assists = excluded.total_assists,
			avg_cs = excluded.avg_cs,
			avg_gold = excluded.avg_gold,
			avg_damage = excluded.avg_damage,
			updated_at = excluded.updated_at
	`, s.PUUID, s.TotalGames, s.Wins, s.Losses, s.WinRate, s.AvgKDA, s.FavoriteChampion,
		s.TotalKills, s.TotalDeaths, s.TotalAssists, s.AvgCS, s.AvgGold, s.AvgDamage,
		updated.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to mirror stats for %s: %w", s.PUUID, err)
	}
	return nil
}
