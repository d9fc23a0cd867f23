package db

import "time"

// NoFavoriteChampion is reported when a player has no stored matches.
const NoFavoriteChampion = "None"

// Player is a tracked account, unique by PUUID.
type Player struct {
	PUUID         string    `json:"puuid"`
	GameName      string    `json:"game_name"`
	TagLine       string    `json:"tag_line"`
	SummonerLevel int       `json:"summoner_level"`
	ProfileIconID int       `json:"profile_icon_id"`
	LastUpdated   time.Time `json:"last_updated"`
}

// ItemSnapshot is the end-of-game inventory; 0 means an empty slot.
type ItemSnapshot struct {
	Item0 int `json:"item0"`
	Item1 int `json:"item1"`
	Item2 int `json:"item2"`
	Item3 int `json:"item3"`
	Item4 int `json:"item4"`
	Item5 int `json:"item5"`
	Item6 int `json:"item6"`
}

// Match is one player's line in one game, unique by (MatchID, PUUID).
type Match struct {
	MatchID      string       `json:"match_id"`
	PUUID        string       `json:"puuid"`
	Champion     string       `json:"champion"`
	Kills        int          `json:"kills"`
	Deaths       int          `json:"deaths"`
	Assists      int          `json:"assists"`
	KDA          float64      `json:"kda"`
	Win          bool         `json:"win"`
	GameMode     string       `json:"game_mode"`
	GameDuration int          `json:"game_duration"`
	Items        ItemSnapshot `json:"items"`
	CS           int          `json:"cs"`
	Gold         int          `json:"gold"`
	Damage       int          `json:"damage"`
	GameStart    time.Time    `json:"game_start"`
}

// MatchParticipant is a stored match row joined with the player's Riot ID.
type MatchParticipant struct {
	Match
	GameName string `json:"game_name"`
	TagLine  string `json:"tag_line"`
}

// StatsAggregate is the raw aggregation a store computes over a player's matches.
// Averages are unrounded; FavoriteChampion is empty when TotalGames is 0.
type StatsAggregate struct {
	TotalGames       int
	Wins             int
	AvgKDA           float64
	FavoriteChampion string
	TotalKills       int
	TotalDeaths      int
	TotalAssists     int
	AvgCS            float64
	AvgGold          float64
	AvgDamage        float64
}

// PlayerStats is a stats snapshot, computed on read or materialized by PUUID.
type PlayerStats struct {
	PUUID            string     `json:"puuid,omitempty"`
	TotalGames       int        `json:"total_games"`
	Wins             int        `json:"wins"`
	Losses           int        `json:"losses"`
	WinRate          float64    `json:"win_rate"`
	AvgKDA           float64    `json:"avg_kda"`
	FavoriteChampion string     `json:"favorite_champion"`
	TotalKills       int        `json:"total_kills"`
	TotalDeaths      int        `json:"total_deaths"`
	TotalAssists     int        `json:"total_assists"`
	AvgCS            float64    `json:"avg_cs"`
	AvgGold          float64    `json:"avg_gold"`
	AvgDamage        float64    `json:"avg_damage"`
	LastUpdated      *time.Time `json:"last_updated,omitempty"`
}
