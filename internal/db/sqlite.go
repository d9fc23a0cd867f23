package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"rift-tracker/internal/logging"
)

// SQLite is the embedded Store. Instants are stored as unix milliseconds.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLite opens (or creates) the database at path. ":memory:" is accepted.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w: %w", ErrUnavailable, err)
	}

	return &SQLite{db: db, log: logging.Tagged(nil, "db")}, nil
}

// Close closes the database
func (s *SQLite) Close() {
	s.db.Close()
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		puuid           TEXT PRIMARY KEY,
		game_name       TEXT NOT NULL DEFAULT '',
		tag_line        TEXT NOT NULL DEFAULT '',
		summoner_level  INTEGER NOT NULL DEFAULT 0,
		profile_icon_id INTEGER NOT NULL DEFAULT 0,
		last_updated    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		match_id      TEXT NOT NULL,
		puuid         TEXT NOT NULL,
		champion      TEXT NOT NULL,
		kills         INTEGER NOT NULL DEFAULT 0,
		deaths        INTEGER NOT NULL DEFAULT 0,
		assists       INTEGER NOT NULL DEFAULT 0,
		kda           REAL NOT NULL DEFAULT 0,
		win           INTEGER NOT NULL,
		game_mode     TEXT NOT NULL DEFAULT '',
		game_duration INTEGER NOT NULL DEFAULT 0,
		items         TEXT NOT NULL DEFAULT '{}',
		cs            INTEGER NOT NULL DEFAULT 0,
		gold          INTEGER NOT NULL DEFAULT 0,
		damage        INTEGER NOT NULL DEFAULT 0,
		game_start    INTEGER NOT NULL,
		PRIMARY KEY (match_id, puuid)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_puuid_game_start ON matches (puuid, game_start DESC)`,
	`CREATE TABLE IF NOT EXISTS player_stats (
		puuid             TEXT PRIMARY KEY,
		total_games       INTEGER NOT NULL DEFAULT 0,
		wins              INTEGER NOT NULL DEFAULT 0,
		losses            INTEGER NOT NULL DEFAULT 0,
		win_rate          REAL NOT NULL DEFAULT 0,
		avg_kda           REAL NOT NULL DEFAULT 0,
		favorite_champion TEXT NOT NULL DEFAULT 'None',
		total_kills       INTEGER NOT NULL DEFAULT 0,
		total_deaths      INTEGER NOT NULL DEFAULT 0,
		total_assists     INTEGER NOT NULL DEFAULT 0,
		avg_cs            REAL NOT NULL DEFAULT 0,
		avg_gold          REAL NOT NULL DEFAULT 0,
		avg_damage        REAL NOT NULL DEFAULT 0,
		last_updated      INTEGER NOT NULL
	)`,
}

// Migrate creates the schema
func (s *SQLite) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	s.log.Info("schema ready", "driver", "sqlite")
	return nil
}

func sqliteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// MatchExists checks whether the match is already stored for this player
func (s *SQLite) MatchExists(ctx context.Context, matchID, puuid string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM matches WHERE match_id = ? AND puuid = ?)`,
		matchID, puuid).Scan(&exists)
	return exists, sqliteErr("match exists", err)
}

// InsertMatch inserts a match row; an existing row is left untouched and ErrConflict returned
func (s *SQLite) InsertMatch(ctx context.Context, m *Match) error {
	items, err := json.Marshal(m.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id, puuid) DO NOTHING
	`, m.MatchID, m.PUUID, m.Champion, m.Kills, m.Deaths, m.Assists, m.KDA, m.Win,
		m.GameMode, m.GameDuration, string(items), m.CS, m.Gold, m.Damage, toMillis(m.GameStart))
	if err != nil {
		return sqliteErr("insert match", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sqliteErr("insert match", err)
	}
	if n == 0 {
		return fmt.Errorf("insert match %s for %s: %w", m.MatchID, m.PUUID, ErrConflict)
	}
	return nil
}

// GetPlayerMatches returns the player's matches, newest game start first
func (s *SQLite) GetPlayerMatches(ctx context.Context, puuid string) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE puuid = ?
		ORDER BY game_start DESC, match_id DESC
	`, puuid)
	if err != nil {
		return nil, sqliteErr("player matches", err)
	}
	return s.collectMatches(rows)
}

// GetChampionMatches returns the player's matches on one champion, newest first
func (s *SQLite) GetChampionMatches(ctx context.Context, puuid, champion string) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE puuid = ? AND champion = ?
		ORDER BY game_start DESC, match_id DESC
	`, puuid, champion)
	if err != nil {
		return nil, sqliteErr("champion matches", err)
	}
	return s.collectMatches(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMatch(row rowScanner, extra ...any) (Match, error) {
	var m Match
	var items string
	var start int64
	dest := []any{&m.MatchID, &m.PUUID, &m.Champion, &m.Kills, &m.Deaths, &m.Assists, &m.KDA, &m.Win,
		&m.GameMode, &m.GameDuration, &items, &m.CS, &m.Gold, &m.Damage, &start}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(items), &m.Items); err != nil {
		return m, fmt.Errorf("failed to decode items for %s: %w", m.MatchID, err)
	}
	m.GameStart = fromMillis(start)
	return m, nil
}

func (s *SQLite) collectMatches(rows *sql.Rows) ([]Match, error) {
	defer rows.Close()

	matches := make([]Match, 0)
	for rows.Next() {
		m, err := scanSQLiteMatch(rows)
		if err != nil {
			return nil, sqliteErr("scan match", err)
		}
		matches = append(matches, m)
	}
	return matches, sqliteErr("read matches", rows.Err())
}

// GetMatchParticipants returns every stored row for a match with the player's Riot ID
func (s *SQLite) GetMatchParticipants(ctx context.Context, matchID string) ([]MatchParticipant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.match_id, m.puuid, m.champion, m.kills, m.deaths, m.assists, m.kda, m.win,
			m.game_mode, m.game_duration, m.items, m.cs, m.gold, m.damage, m.game_start,
			COALESCE(p.game_name, ''), COALESCE(p.tag_line, '')
		FROM matches m
		LEFT JOIN players p ON m.puuid = p.puuid
		WHERE m.match_id = ?
		ORDER BY m.puuid
	`, matchID)
	if err != nil {
		return nil, sqliteErr("match participants", err)
	}
	defer rows.Close()

	var result []MatchParticipant
	for rows.Next() {
		var mp MatchParticipant
		m, err := scanSQLiteMatch(rows, &mp.GameName, &mp.TagLine)
		if err != nil {
			return nil, sqliteErr("scan match participant", err)
		}
		mp.Match = m
		result = append(result, mp)
	}
	return result, sqliteErr("match participants", rows.Err())
}

const playerColumns = `puuid, game_name, tag_line, summoner_level, profile_icon_id, last_updated`

func scanSQLitePlayer(row rowScanner) (*Player, error) {
	var p Player
	var updated int64
	if err := row.Scan(&p.PUUID, &p.GameName, &p.TagLine, &p.SummonerLevel, &p.ProfileIconID, &updated); err != nil {
		return nil, err
	}
	p.LastUpdated = fromMillis(updated)
	return &p, nil
}

// UpsertPlayer inserts the player or overwrites name, tag, level and icon by PUUID
func (s *SQLite) UpsertPlayer(ctx context.Context, p *Player) (*Player, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (puuid) DO UPDATE SET
			game_name = excluded.game_name,
			tag_line = excluded.tag_line,
			summoner_level = excluded.summoner_level,
			profile_icon_id = excluded.profile_icon_id,
			last_updated = excluded.last_updated
		RETURNING `+playerColumns,
		p.PUUID, p.GameName, p.TagLine, p.SummonerLevel, p.ProfileIconID, toMillis(time.Now()))
	out, err := scanSQLitePlayer(row)
	if err != nil {
		return nil, sqliteErr("upsert player", err)
	}
	return out, nil
}

// GetPlayer returns a stored player or ErrNotFound
func (s *SQLite) GetPlayer(ctx context.Context, puuid string) (*Player, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE puuid = ?`, puuid)
	p, err := scanSQLitePlayer(row)
	if err != nil {
		return nil, sqliteErr("get player", err)
	}
	return p, nil
}

// ListPlayers returns every stored player ordered by PUUID
func (s *SQLite) ListPlayers(ctx context.Context) ([]Player, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY puuid`)
	if err != nil {
		return nil, sqliteErr("list players", err)
	}
	defer rows.Close()

	players := make([]Player, 0)
	for rows.Next() {
		p, err := scanSQLitePlayer(rows)
		if err != nil {
			return nil, sqliteErr("scan player", err)
		}
		players = append(players, *p)
	}
	return players, sqliteErr("list players", rows.Err())
}

// AggregateStats aggregates over every stored match of the player.
// The favorite champion is the most played one; ties resolve to the first
// champion in sort order, matching Postgres MODE().
func (s *SQLite) AggregateStats(ctx context.Context, puuid string) (*StatsAggregate, error) {
	var agg StatsAggregate
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN win THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(kda), 0.0),
			COALESCE((
				SELECT champion FROM matches
				WHERE puuid = ?1
				GROUP BY champion
				ORDER BY COUNT(*) DESC, champion ASC
				LIMIT 1
			), ''),
			COALESCE(SUM(kills), 0),
			COALESCE(SUM(deaths), 0),
			COALESCE(SUM(assists), 0),
			COALESCE(AVG(cs), 0.0),
			COALESCE(AVG(gold), 0.0),
			COALESCE(AVG(damage), 0.0)
		FROM matches
		WHERE puuid = ?1
	`, puuid).Scan(&agg.TotalGames, &agg.Wins, &agg.AvgKDA, &agg.FavoriteChampion,
		&agg.TotalKills, &agg.TotalDeaths, &agg.TotalAssists, &agg.AvgCS, &agg.AvgGold, &agg.AvgDamage)
	if err != nil {
		return nil, sqliteErr("aggregate stats", err)
	}
	return &agg, nil
}

func scanSQLiteStats(row rowScanner) (*PlayerStats, error) {
	var st PlayerStats
	var updated int64
	if err := row.Scan(&st.PUUID, &st.TotalGames, &st.Wins, &st.Losses, &st.WinRate, &st.AvgKDA, &st.FavoriteChampion,
		&st.TotalKills, &st.TotalDeaths, &st.TotalAssists, &st.AvgCS, &st.AvgGold, &st.AvgDamage, &updated); err != nil {
		return nil, err
	}
	t := fromMillis(updated)
	st.LastUpdated = &t
	return &st, nil
}

// UpsertStatsSummary overwrites the player's summary row
func (s *SQLite) UpsertStatsSummary(ctx context.Context, st *PlayerStats) (*PlayerStats, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO player_stats (`+statsColumns+`)
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
			last_updated = excluded.last_updated
		RETURNING `+statsColumns,
		st.PUUID, st.TotalGames, st.Wins, st.Losses, st.WinRate, st.AvgKDA, st.FavoriteChampion,
		st.TotalKills, st.TotalDeaths, st.TotalAssists, st.AvgCS, st.AvgGold, st.AvgDamage, toMillis(time.Now()))
	out, err := scanSQLiteStats(row)
	if err != nil {
		return nil, sqliteErr("upsert stats summary", err)
	}
	return out, nil
}

// GetStatsSummary returns the materialized summary row or ErrNotFound
func (s *SQLite) GetStatsSummary(ctx context.Context, puuid string) (*PlayerStats, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+statsColumns+` FROM player_stats WHERE puuid = ?`, puuid)
	out, err := scanSQLiteStats(row)
	if err != nil {
		return nil, sqliteErr("get stats summary", err)
	}
	return out, nil
}
