package db

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
)

const matchColumns = `match_id, puuid, champion, kills, deaths, assists, kda, win,
	game_mode, game_duration, items, cs, gold, damage, game_start`

const statsColumns = `puuid, total_games, wins, losses, win_rate, avg_kda, favorite_champion,
	total_kills, total_deaths, total_assists, avg_cs, avg_gold, avg_damage, last_updated`

// MatchExists checks whether the match is already stored for this player
func (db *DB) MatchExists(ctx context.Context, matchID, puuid string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM matches WHERE match_id = $1 AND puuid = $2)
	`, matchID, puuid).Scan(&exists)
	return exists, pgErr("match exists", err)
}

// InsertMatch inserts a match row; an existing row is left untouched and ErrConflict returned
func (db *DB) InsertMatch(ctx context.Context, m *Match) error {
	items, err := json.Marshal(m.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	tag, err := db.pool.Exec(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (match_id, puuid) DO NOTHING
	`, m.MatchID, m.PUUID, m.Champion, m.Kills, m.Deaths, m.Assists, m.KDA, m.Win,
		m.GameMode, m.GameDuration, items, m.CS, m.Gold, m.Damage, m.GameStart)
	if err != nil {
		return pgErr("insert match", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert match %s for %s: %w", m.MatchID, m.PUUID, ErrConflict)
	}
	return nil
}

// GetPlayerMatches returns the player's matches, newest game start first
func (db *DB) GetPlayerMatches(ctx context.Context, puuid string) ([]Match, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE puuid = $1
		ORDER BY game_start DESC, match_id DESC
	`, puuid)
	if err != nil {
		return nil, pgErr("player matches", err)
	}
	return collectMatches(rows)
}

// GetChampionMatches returns the player's matches on one champion, newest first
func (db *DB) GetChampionMatches(ctx context.Context, puuid, champion string) ([]Match, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE puuid = $1 AND champion = $2
		ORDER BY game_start DESC, match_id DESC
	`, puuid, champion)
	if err != nil {
		return nil, pgErr("champion matches", err)
	}
	return collectMatches(rows)
}

// GetMatchParticipants returns every stored row for a match with the player's Riot ID
func (db *DB) GetMatchParticipants(ctx context.Context, matchID string) ([]MatchParticipant, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT m.match_id, m.puuid, m.champion, m.kills, m.deaths, m.assists, m.kda, m.win,
			m.game_mode, m.game_duration, m.items, m.cs, m.gold, m.damage, m.game_start,
			COALESCE(p.game_name, ''), COALESCE(p.tag_line, '')
		FROM matches m
		LEFT JOIN players p ON m.puuid = p.puuid
		WHERE m.match_id = $1
		ORDER BY m.puuid
	`, matchID)
	if err != nil {
		return nil, pgErr("match participants", err)
	}
	defer rows.Close()

	var result []MatchParticipant
	for rows.Next() {
		var mp MatchParticipant
		var items []byte
		m := &mp.Match
		if err := rows.Scan(&m.MatchID, &m.PUUID, &m.Champion, &m.Kills, &m.Deaths, &m.Assists, &m.KDA, &m.Win,
			&m.GameMode, &m.GameDuration, &items, &m.CS, &m.Gold, &m.Damage, &m.GameStart,
			&mp.GameName, &mp.TagLine); err != nil {
			return nil, pgErr("scan match participant", err)
		}
		if err := json.Unmarshal(items, &m.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items for %s: %w", m.MatchID, err)
		}
		result = append(result, mp)
	}
	return result, pgErr("match participants", rows.Err())
}

func collectMatches(rows pgx.Rows) ([]Match, error) {
	defer rows.Close()

	matches := make([]Match, 0)
	for rows.Next() {
		var m Match
		var items []byte
		if err := rows.Scan(&m.MatchID, &m.PUUID, &m.Champion, &m.Kills, &m.Deaths, &m.Assists, &m.KDA, &m.Win,
			&m.GameMode, &m.GameDuration, &items, &m.CS, &m.Gold, &m.Damage, &m.GameStart); err != nil {
			return nil, pgErr("scan match", err)
		}
		if err := json.Unmarshal(items, &m.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items for %s: %w", m.MatchID, err)
		}
		matches = append(matches, m)
	}
	return matches, pgErr("read matches", rows.Err())
}

// UpsertPlayer inserts the player or overwrites name, tag, level and icon by PUUID
func (db *DB) UpsertPlayer(ctx context.Context, p *Player) (*Player, error) {
	var out Player
	err := db.pool.QueryRow(ctx, `
		INSERT INTO players (puuid, game_name, tag_line, summoner_level, profile_icon_id, last_updated)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (puuid) DO UPDATE SET
			game_name = EXCLUDED.game_name,
			tag_line = EXCLUDED.tag_line,
			summoner_level = EXCLUDED.summoner_level,
			profile_icon_id = EXCLUDED.profile_icon_id,
			last_updated = NOW()
		RETURNING puuid, game_name, tag_line, summoner_level, profile_icon_id, last_updated
	`, p.PUUID, p.GameName, p.TagLine, p.SummonerLevel, p.ProfileIconID).Scan(
		&out.PUUID, &out.GameName, &out.TagLine, &out.SummonerLevel, &out.ProfileIconID, &out.LastUpdated)
	if err != nil {
		return nil, pgErr("upsert player", err)
	}
	return &out, nil
}

// GetPlayer returns a stored player or ErrNotFound
func (db *DB) GetPlayer(ctx context.Context, puuid string) (*Player, error) {
	var p Player
	err := db.pool.QueryRow(ctx, `
		SELECT puuid, game_name, tag_line, summoner_level, profile_icon_id, last_updated
		FROM players WHERE puuid = $1
	`, puuid).Scan(&p.PUUID, &p.GameName, &p.TagLine, &p.SummonerLevel, &p.ProfileIconID, &p.LastUpdated)
	if err != nil {
		return nil, pgErr("get player", err)
	}
	return &p, nil
}

// ListPlayers returns every stored player ordered by PUUID
func (db *DB) ListPlayers(ctx context.Context) ([]Player, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT puuid, game_name, tag_line, summoner_level, profile_icon_id, last_updated
		FROM players ORDER BY puuid
	`)
	if err != nil {
		return nil, pgErr("list players", err)
	}
	defer rows.Close()

	players := make([]Player, 0)
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.PUUID, &p.GameName, &p.TagLine, &p.SummonerLevel, &p.ProfileIconID, &p.LastUpdated); err != nil {
			return nil, pgErr("scan player", err)
		}
		players = append(players, p)
	}
	return players, pgErr("list players", rows.Err())
}

// AggregateStats aggregates over every stored match of the player.
// The favorite champion is MODE() over champion; ties resolve to the first
// value in champion sort order.
func (db *DB) AggregateStats(ctx context.Context, puuid string) (*StatsAggregate, error) {
	var agg StatsAggregate
	err := db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE win),
			COALESCE(AVG(kda), 0)::float8,
			COALESCE(MODE() WITHIN GROUP (ORDER BY champion), ''),
			COALESCE(SUM(kills), 0),
			COALESCE(SUM(deaths), 0),
			COALESCE(SUM(assists), 0),
			COALESCE(AVG(cs), 0)::float8,
			COALESCE(AVG(gold), 0)::float8,
			COALESCE(AVG(damage), 0)::float8
		FROM matches
		WHERE puuid = $1
	`, puuid).Scan(&agg.TotalGames, &agg.Wins, &agg.AvgKDA, &agg.FavoriteChampion,
		&agg.TotalKills, &agg.TotalDeaths, &agg.TotalAssists, &agg.AvgCS, &agg.AvgGold, &agg.AvgDamage)
	if err != nil {
		return nil, pgErr("aggregate stats", err)
	}
	return &agg, nil
}

// UpsertStatsSummary overwrites the player's summary row
func (db *DB) UpsertStatsSummary(ctx context.Context, s *PlayerStats) (*PlayerStats, error) {
	row := db.pool.QueryRow(ctx, `
		INSERT INTO player_stats (`+statsColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (puuid) DO UPDATE SET
			total_games = EXCLUDED.total_games,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			win_rate = EXCLUDED.win_rate,
			avg_kda = EXCLUDED.avg_kda,
			favorite_champion = EXCLUDED.favorite_champion,
			total_kills = EXCLUDED.total_kills,
			total_deaths = EXCLUDED.total_deaths,
			total_assists = EXCLUDED.total_assists,
			avg_cs = EXCLUDED.avg_cs,
			avg_gold = EXCLUDED.avg_gold,
			avg_damage = EXCLUDED.avg_damage,
			last_updated = NOW()
		RETURNING `+statsColumns,
		s.PUUID, s.TotalGames, s.Wins, s.Losses, s.WinRate, s.AvgKDA, s.FavoriteChampion,
		s.TotalKills, s.TotalDeaths, s.TotalAssists, s.AvgCS, s.AvgGold, s.AvgDamage)

	out, err := scanStats(row)
	if err != nil {
		return nil, pgErr("upsert stats summary", err)
	}
	return out, nil
}

// GetStatsSummary returns the materialized summary row or ErrNotFound
func (db *DB) GetStatsSummary(ctx context.Context, puuid string) (*PlayerStats, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+statsColumns+` FROM player_stats WHERE puuid = $1`, puuid)
	out, err := scanStats(row)
	if err != nil {
		return nil, pgErr("get stats summary", err)
	}
	return out, nil
}

func scanStats(row pgx.Row) (*PlayerStats, error) {
	var s PlayerStats
	var updated time.Time
	if err := row.Scan(&s.PUUID, &s.TotalGames, &s.Wins, &s.Losses, &s.WinRate, &s.AvgKDA, &s.FavoriteChampion,
		&s.TotalKills, &s.TotalDeaths, &s.TotalAssists, &s.AvgCS, &s.AvgGold, &s.AvgDamage, &updated); err != nil {
		return nil, err
	}
	s.LastUpdated = &updated
	return &s, nil
}
