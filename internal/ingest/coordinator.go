// Package ingest pulls a player's recent matches from Riot into the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rift-tracker/internal/db"
	"rift-tracker/internal/logging"
	"rift-tracker/internal/match"
	"rift-tracker/internal/metrics"
	"rift-tracker/internal/riot"
)

// DefaultMatchCount is how many recent match IDs are requested per run.
const DefaultMatchCount = 20

// Source is the subset of the Riot client ingestion needs.
type Source interface {
	GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*riot.AccountResponse, error)
	GetSummonerByPUUID(ctx context.Context, puuid string) (*riot.SummonerResponse, error)
	GetMatchHistory(ctx context.Context, puuid string, count int) ([]string, error)
	GetMatch(ctx context.Context, matchID string) (*riot.MatchResponse, error)
}

// Store is the subset of db.Store ingestion writes through.
type Store interface {
	MatchExists(ctx context.Context, matchID, puuid string) (bool, error)
	InsertMatch(ctx context.Context, m *db.Match) error
	UpsertPlayer(ctx context.Context, p *db.Player) (*db.Player, error)
}

// MatchSink receives every match detail fetched during a run. Sink errors
// are logged and never fail the run.
type MatchSink func(ctx context.Context, puuid string, detail *riot.MatchResponse) error

// Coordinator runs ingestion. It keeps no state between calls.
type Coordinator struct {
	source     Source
	store      Store
	matchCount int
	sinks      []MatchSink
	log        *slog.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithMatchCount overrides how many match IDs are requested per run.
func WithMatchCount(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.matchCount = n
		}
	}
}

// WithMatchSink adds a sink for fetched match details.
func WithMatchSink(sink MatchSink) Option {
	return func(c *Coordinator) {
		c.sinks = append(c.sinks, sink)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.log = logging.Tagged(logger, "ingest")
	}
}

// NewCoordinator creates a Coordinator over source and store.
func NewCoordinator(source Source, store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:     source,
		store:      store,
		matchCount: DefaultMatchCount,
		log:        logging.Tagged(nil, "ingest"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result summarizes one ingestion run.
type Result struct {
	ProcessedCount       int `json:"processedCount"`
	SkippedExisting      int `json:"skippedExisting"`
	SkippedNoParticipant int `json:"skippedNoParticipant"`
	Conflicts            int `json:"conflicts"`
}

// IngestRecentMatches stores the player's recent matches that are not stored yet.
//
// Match IDs are handled one at a time in the order the source returns them.
// The first source or store error aborts the run; rows inserted before it stay
// stored, so calling again resumes where the failed run stopped. The returned
// Result is valid in both cases.
func (c *Coordinator) IngestRecentMatches(ctx context.Context, puuid string) (Result, error) {
	var res Result
	runID := uuid.NewString()
	log := c.log.With("run", runID[:8], "puuid", shortID(puuid))
	start := time.Now()

	matchIDs, err := c.source.GetMatchHistory(ctx, puuid, c.matchCount)
	if err != nil {
		return res, c.fail(log, res, fmt.Errorf("fetching match ids: %w", err))
	}

	for _, matchID := range matchIDs {
		exists, err := c.store.MatchExists(ctx, matchID, puuid)
		if err != nil {
			return res, c.fail(log, res, fmt.Errorf("checking %s: %w", matchID, err))
		}
		if exists {
			res.SkippedExisting++
			metrics.RecordIngestMatch(metrics.MatchSkippedExisting)
			continue
		}

		detail, err := c.source.GetMatch(ctx, matchID)
		if err != nil {
			return res, c.fail(log, res, fmt.Errorf("fetching %s: %w", matchID, err))
		}
		c.emit(ctx, log, puuid, detail)

		row, err := match.Extract(detail, puuid)
		if errors.Is(err, match.ErrParticipantNotFound) {
			log.Debug("player not in match, skipping", "match", matchID)
			res.SkippedNoParticipant++
			metrics.RecordIngestMatch(metrics.MatchSkippedNoParticipant)
			continue
		}
		if err != nil {
			return res, c.fail(log, res, fmt.Errorf("extracting %s: %w", matchID, err))
		}

		err = c.store.InsertMatch(ctx, row)
		if errors.Is(err, db.ErrConflict) {
			// Another run stored it first.
			res.Conflicts++
			metrics.RecordIngestMatch(metrics.MatchConflict)
			continue
		}
		if err != nil {
			return res, c.fail(log, res, fmt.Errorf("storing %s: %w", matchID, err))
		}

		res.ProcessedCount++
		metrics.RecordIngestMatch(metrics.MatchInserted)
	}

	metrics.RecordIngestRun(metrics.OutcomeSuccess)
	log.Info("ingestion complete",
		"ids", len(matchIDs),
		"processed", res.ProcessedCount,
		"existing", res.SkippedExisting,
		"absent", res.SkippedNoParticipant,
		"conflicts", res.Conflicts,
		"took", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (c *Coordinator) fail(log *slog.Logger, res Result, err error) error {
	metrics.RecordIngestRun(metrics.OutcomeFailure)
	log.Warn("ingestion aborted", "processed", res.ProcessedCount, "err", err)
	return err
}

func (c *Coordinator) emit(ctx context.Context, log *slog.Logger, puuid string, detail *riot.MatchResponse) {
	for _, sink := range c.sinks {
		if err := sink(ctx, puuid, detail); err != nil {
			log.Warn("match sink failed", "match", detail.Metadata.MatchID, "err", err)
		}
	}
}

// SearchPlayer resolves a Riot ID, fetches the summoner profile and upserts
// the player by PUUID.
func (c *Coordinator) SearchPlayer(ctx context.Context, gameName, tagLine string) (*db.Player, error) {
	account, err := c.source.GetAccountByRiotID(ctx, gameName, tagLine)
	if err != nil {
		return nil, fmt.Errorf("looking up %s#%s: %w", gameName, tagLine, err)
	}

	summoner, err := c.source.GetSummonerByPUUID(ctx, account.PUUID)
	if err != nil {
		return nil, fmt.Errorf("fetching summoner %s: %w", shortID(account.PUUID), err)
	}

	player, err := c.store.UpsertPlayer(ctx, &db.Player{
		PUUID:         account.PUUID,
		GameName:      account.GameName,
		TagLine:       account.TagLine,
		SummonerLevel: summoner.SummonerLevel,
		ProfileIconID: summoner.ProfileIconID,
	})
	if err != nil {
		return nil, fmt.Errorf("storing player %s: %w", shortID(account.PUUID), err)
	}

	c.log.Info("player stored", "riot_id", account.GameName+"#"+account.TagLine, "puuid", shortID(account.PUUID), "level", summoner.SummonerLevel)
	return player, nil
}

func shortID(puuid string) string {
	if len(puuid) > 16 {
		return puuid[:16]
	}
	return puuid
}
