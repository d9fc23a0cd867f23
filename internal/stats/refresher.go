package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"rift-tracker/internal/db"
	"rift-tracker/internal/logging"
)

// PlayerLister lists the players whose stats are refreshed.
type PlayerLister interface {
	ListPlayers(ctx context.Context) ([]db.Player, error)
}

// Refresher periodically re-materializes stats for every stored player.
type Refresher struct {
	agg      *Aggregator
	players  PlayerLister
	interval time.Duration
	sched    gocron.Scheduler
	log      *slog.Logger
}

// NewRefresher creates a Refresher. Start schedules it.
func NewRefresher(agg *Aggregator, players PlayerLister, interval time.Duration) *Refresher {
	return &Refresher{
		agg:      agg,
		players:  players,
		interval: interval,
		log:      logging.Tagged(nil, "refresh"),
	}
}

// Start schedules RunOnce every interval. A run still going when the next is
// due is not overlapped.
func (r *Refresher) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", r.interval)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() {
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Warn("refresh failed", "err", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("stats-refresh"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	r.sched = sched
	sched.Start()
	r.log.Info("refresher started", "interval", r.interval)
	return nil
}

// Stop shuts the scheduler down and waits for a running refresh.
func (r *Refresher) Stop() error {
	if r.sched == nil {
		return nil
	}
	err := r.sched.Shutdown()
	r.sched = nil
	return err
}

// RunOnce materializes stats for every stored player and returns how many
// succeeded. A failure for one player is logged and the run continues.
func (r *Refresher) RunOnce(ctx context.Context) (int, error) {
	players, err := r.players.ListPlayers(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing players: %w", err)
	}

	start := time.Now()
	refreshed := 0
	for _, p := range players {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		if _, err := r.agg.MaterializeStats(ctx, p.PUUID); err != nil {
			r.log.Warn("player refresh failed", "puuid", p.PUUID, "err", err)
			continue
		}
		refreshed++
	}

	r.log.Info("refresh complete", "players", len(players), "refreshed", refreshed, "took", time.Since(start).Round(time.Millisecond))
	return refreshed, nil
}
