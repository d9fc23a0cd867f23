package riot

import json "github.com/goccy/go-json"

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// SummonerResponse represents the response from /lol/summoner/v4/summoners/by-puuid
type SummonerResponse struct {
	PUUID         string `json:"puuid"`
	ProfileIconID int    `json:"profileIconId"`
	RevisionDate  int64  `json:"revisionDate"`
	SummonerLevel int    `json:"summonerLevel"`
}

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`

	raw json.RawMessage
}

// DecodeMatch decodes a match-v5 payload and keeps body for Raw.
func DecodeMatch(body []byte) (*MatchResponse, error) {
	var m MatchResponse
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	m.raw = body
	return &m, nil
}

// Raw returns the payload the match was decoded from, or nil when it was
// built in code.
func (m *MatchResponse) Raw() json.RawMessage {
	return m.raw
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation       int64              `json:"gameCreation"`
	GameStartTimestamp int64              `json:"gameStartTimestamp"` // ms since epoch
	GameDuration       int                `json:"gameDuration"`       // seconds
	GameMode           string             `json:"gameMode"`
	GameVersion        string             `json:"gameVersion"`
	QueueID            int                `json:"queueId"`
	Participants       []MatchParticipant `json:"participants"`
}

// MatchParticipant is one player's line in a match. Pointer fields are
// optional in the payload and read as 0 when absent.
type MatchParticipant struct {
	ParticipantID  int    `json:"participantId"`
	PUUID          string `json:"puuid"`
	RiotIdGameName string `json:"riotIdGameName"`
	RiotIdTagline  string `json:"riotIdTagline"`
	ChampionID     int    `json:"championId"`
	ChampionName   string `json:"championName"`
	TeamPosition   string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY
	Win            bool   `json:"win"`

	Kills                       int `json:"kills"`
	Deaths                      int `json:"deaths"`
	Assists                     int `json:"assists"`
	GoldEarned                  int `json:"goldEarned"`
	TotalDamageDealtToChampions int `json:"totalDamageDealtToChampions"`

	TotalMinionsKilled         *int        `json:"totalMinionsKilled,omitempty"`
	NeutralMinionsKilled       *int        `json:"neutralMinionsKilled,omitempty"`
	ObjectivesEpicMonsterKills *int        `json:"objectivesEpicMonsterKills,omitempty"`
	ObjectivesMonsterKills     *int        `json:"objectivesMonsterKills,omitempty"`
	Challenges                 *Challenges `json:"challenges,omitempty"`

	Item0 int `json:"item0"`
	Item1 int `json:"item1"`
	Item2 int `json:"item2"`
	Item3 int `json:"item3"`
	Item4 int `json:"item4"`
	Item5 int `json:"item5"`
	Item6 int `json:"item6"` // Trinket
}

// Challenges holds the subset of the challenges block we read.
type Challenges struct {
	JungleCsBefore10Min *float64 `json:"jungleCsBefore10Min,omitempty"`
}

// FindParticipant returns the participant with the given PUUID, or nil.
func (m *MatchResponse) FindParticipant(puuid string) *MatchParticipant {
	for i := range m.Info.Participants {
		if m.Info.Participants[i].PUUID == puuid {
			return &m.Info.Participants[i]
		}
	}
	return nil
}
