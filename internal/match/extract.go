// Package match turns Riot match details into stored per-player rows.
// Nothing here touches the network or the store.
package match

import (
	"errors"
	"math"
	"time"

	"rift-tracker/internal/db"
	"rift-tracker/internal/riot"
)

// ErrParticipantNotFound means the player is not in the match. Callers skip the match.
var ErrParticipantNotFound = errors.New("participant not found in match")

// KDA returns (kills + assists) / max(deaths, 1) rounded to 2 decimals.
// Deaths are floored at 1 so a deathless game scores kills + assists.
func KDA(kills, deaths, assists int) float64 {
	if deaths < 1 {
		deaths = 1
	}
	return Round2(float64(kills+assists) / float64(deaths))
}

// CreepScore sums lane minions, neutral monsters and epic monster kills.
func CreepScore(minions, neutral, epicMonsters int) int {
	return minions + neutral + epicMonsters
}

// Round2 rounds half away from zero to 2 decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// Extract builds the row for puuid from a match detail, or returns
// ErrParticipantNotFound when puuid did not play in it.
func Extract(detail *riot.MatchResponse, puuid string) (*db.Match, error) {
	p := detail.FindParticipant(puuid)
	if p == nil {
		return nil, ErrParticipantNotFound
	}

	minions := intOrZero(p.TotalMinionsKilled)
	neutral := intOrZero(p.NeutralMinionsKilled)
	epic := intOrZero(p.ObjectivesEpicMonsterKills)
	// jungleCsBefore10Min and objectivesMonsterKills overlap with the
	// counters above and are not part of the stored creep score.

	return &db.Match{
		MatchID:      detail.Metadata.MatchID,
		PUUID:        puuid,
		Champion:     p.ChampionName,
		Kills:        p.Kills,
		Deaths:       p.Deaths,
		Assists:      p.Assists,
		KDA:          KDA(p.Kills, p.Deaths, p.Assists),
		Win:          p.Win,
		GameMode:     detail.Info.GameMode,
		GameDuration: detail.Info.GameDuration,
		Items: db.ItemSnapshot{
			Item0: p.Item0,
			Item1: p.Item1,
			Item2: p.Item2,
			Item3: p.Item3,
			Item4: p.Item4,
			Item5: p.Item5,
			Item6: p.Item6,
		},
		CS:        CreepScore(minions, neutral, epic),
		Gold:      p.GoldEarned,
		Damage:    p.TotalDamageDealtToChampions,
		GameStart: time.UnixMilli(detail.Info.GameStartTimestamp).UTC(),
	}, nil
}
