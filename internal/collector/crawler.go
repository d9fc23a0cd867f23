// Package collector crawls outward from a seed player, ingesting the recent
// matches of everyone it meets.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/sync/errgroup"

	"rift-tracker/internal/ingest"
	"rift-tracker/internal/logging"
	"rift-tracker/internal/riot"
)

const (
	DefaultWorkers    = 4
	DefaultMaxPlayers = 100

	expectedPlayers = 1_000_000
	falsePositive   = 0.001
	idlePoll        = 50 * time.Millisecond
)

// Ingester runs one player's ingestion.
type Ingester interface {
	IngestRecentMatches(ctx context.Context, puuid string) (ingest.Result, error)
}

// Notifier is told when the provider rejects the API key.
type Notifier interface {
	SendKeyRejected(ctx context.Context, source, apiKey string, processed int, runtime time.Duration) error
}

// Config holds crawl limits
type Config struct {
	Workers    int
	MaxPlayers int
	// APIKey is only shown masked in notifications.
	APIKey   string
	Notifier Notifier
	Logger   *slog.Logger
}

// Summary describes a finished crawl
type Summary struct {
	Players int           `json:"players"`
	Failed  int           `json:"failed"`
	Matches int           `json:"matches"`
	Runtime time.Duration `json:"runtime"`
}

// Crawler walks the co-participant graph breadth first. Players are
// deduplicated with a bloom filter, so a small fraction may be skipped
// without ever being visited.
type Crawler struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	visited *bloom.BloomFilter
	queue   []string

	inFlight atomic.Int64
	players  atomic.Int64
	failed   atomic.Int64
	matches  atomic.Int64
}

// NewCrawler creates a Crawler. Wire Discover into the ingester as a match
// sink before calling Run.
func NewCrawler(cfg Config) *Crawler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = DefaultMaxPlayers
	}
	return &Crawler{
		cfg:     cfg,
		log:     logging.Tagged(cfg.Logger, "collector"),
		visited: bloom.NewWithEstimates(expectedPlayers, falsePositive),
	}
}

// Discover queues every unseen participant of detail. It has the
// ingest.MatchSink signature.
func (c *Crawler) Discover(_ context.Context, _ string, detail *riot.MatchResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, puuid := range detail.Metadata.Participants {
		c.enqueueLocked(puuid)
	}
	return nil
}

func (c *Crawler) enqueueLocked(puuid string) {
	if puuid == "" || c.visited.TestAndAddString(puuid) {
		return
	}
	c.queue = append(c.queue, puuid)
}

func (c *Crawler) pop() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return "", false
	}
	puuid := c.queue[0]
	c.queue = c.queue[1:]
	return puuid, true
}

// Run crawls from seed until MaxPlayers players were started, the queue
// drains, ctx is cancelled or the provider rejects the key. Cancellation is
// a clean stop; a key rejection is returned after notifying.
func (c *Crawler) Run(ctx context.Context, ing Ingester, seed string) (Summary, error) {
	start := time.Now()
	c.mu.Lock()
	c.enqueueLocked(seed)
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	c.log.Info("crawl started", "seed", shortID(seed), "workers", c.cfg.Workers, "max_players", c.cfg.MaxPlayers)

	started := 0
	for started < c.cfg.MaxPlayers && gctx.Err() == nil {
		puuid, ok := c.pop()
		if !ok {
			if c.inFlight.Load() == 0 {
				break
			}
			select {
			case <-gctx.Done():
			case <-time.After(idlePoll):
			}
			continue
		}

		started++
		c.inFlight.Add(1)
		g.Go(func() error {
			defer c.inFlight.Add(-1)
			return c.crawlPlayer(gctx, ing, puuid)
		})
	}

	err := g.Wait()
	sum := c.summary(start)

	switch {
	case errors.Is(err, riot.ErrKeyRejected):
		c.log.Error("api key rejected, stopping crawl", "players", sum.Players, "matches", sum.Matches)
		c.notifyKeyRejected(sum)
		return sum, err
	case err != nil:
		return sum, err
	case ctx.Err() != nil:
		c.log.Info("crawl interrupted", "players", sum.Players, "matches", sum.Matches, "runtime", sum.Runtime.Round(time.Second))
		return sum, nil
	}

	c.log.Info("crawl finished", "players", sum.Players, "failed", sum.Failed, "matches", sum.Matches, "runtime", sum.Runtime.Round(time.Second))
	return sum, nil
}

// crawlPlayer ingests one player. Only a key rejection stops the crawl.
func (c *Crawler) crawlPlayer(ctx context.Context, ing Ingester, puuid string) error {
	res, err := ing.IngestRecentMatches(ctx, puuid)
	c.matches.Add(int64(res.ProcessedCount))

	switch {
	case err == nil:
		c.players.Add(1)
		c.log.Debug("player crawled", "puuid", shortID(puuid), "new_matches", res.ProcessedCount)
		return nil
	case errors.Is(err, riot.ErrKeyRejected):
		return fmt.Errorf("crawling %s: %w", shortID(puuid), err)
	case ctx.Err() != nil:
		return nil
	default:
		c.failed.Add(1)
		c.log.Warn("player failed, continuing", "puuid", shortID(puuid), "err", err)
		return nil
	}
}

func (c *Crawler) summary(start time.Time) Summary {
	return Summary{
		Players: int(c.players.Load()),
		Failed:  int(c.failed.Load()),
		Matches: int(c.matches.Load()),
		Runtime: time.Since(start),
	}
}

func (c *Crawler) notifyKeyRejected(sum Summary) {
	if c.cfg.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.cfg.Notifier.SendKeyRejected(ctx, "collector", c.cfg.APIKey, sum.Matches, sum.Runtime); err != nil {
		c.log.Warn("failed to send key rejected notification", "err", err)
	}
}

func shortID(puuid string) string {
	if len(puuid) > 16 {
		return puuid[:16]
	}
	return puuid
}
