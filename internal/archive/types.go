package archive

import (
	"time"

	json "github.com/goccy/go-json"
)

// RawMatch is one archived JSONL line: the untouched match detail as fetched
// while ingesting for puuid.
type RawMatch struct {
	MatchID   string          `json:"match_id"`
	PUUID     string          `json:"puuid"`
	FetchedAt time.Time       `json:"fetched_at"`
	Detail    json.RawMessage `json:"detail"`
}
