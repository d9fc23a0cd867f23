package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"rift-tracker/internal/db"
	"rift-tracker/internal/riot"
)

type fakeSource struct {
	mu           sync.Mutex
	ids          []string
	details      map[string]*riot.MatchResponse
	historyErr   error
	matchErr     map[string]error
	accounts     map[string]*riot.AccountResponse
	summoners    map[string]*riot.SummonerResponse
	lastCount    int
	matchFetches []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		details:   make(map[string]*riot.MatchResponse),
		matchErr:  make(map[string]error),
		accounts:  make(map[string]*riot.AccountResponse),
		summoners: make(map[string]*riot.SummonerResponse),
	}
}

func (f *fakeSource) addMatch(matchID string, startMs int64, puuids ...string) {
	detail := &riot.MatchResponse{
		Metadata: riot.MatchMetadata{MatchID: matchID, Participants: puuids},
		Info:     riot.MatchInfo{GameStartTimestamp: startMs, GameMode: "CLASSIC", GameDuration: 1500},
	}
	for i, p := range puuids {
		detail.Info.Participants = append(detail.Info.Participants, riot.MatchParticipant{
			PUUID:        p,
			ChampionName: fmt.Sprintf("Champ%d", i),
			Kills:        3,
			Deaths:       4,
			Assists:      2,
		})
	}
	f.ids = append(f.ids, matchID)
	f.details[matchID] = detail
}

func (f *fakeSource) GetAccountByRiotID(_ context.Context, gameName, tagLine string) (*riot.AccountResponse, error) {
	acc, ok := f.accounts[gameName+"#"+tagLine]
	if !ok {
		return nil, &riot.StatusError{StatusCode: 404}
	}
	return acc, nil
}

func (f *fakeSource) GetSummonerByPUUID(_ context.Context, puuid string) (*riot.SummonerResponse, error) {
	s, ok := f.summoners[puuid]
	if !ok {
		return nil, &riot.StatusError{StatusCode: 404}
	}
	return s, nil
}

func (f *fakeSource) GetMatchHistory(_ context.Context, _ string, count int) ([]string, error) {
	f.mu.Lock()
	f.lastCount = count
	f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if len(f.ids) > count {
		return f.ids[:count], nil
	}
	return f.ids, nil
}

func (f *fakeSource) GetMatch(_ context.Context, matchID string) (*riot.MatchResponse, error) {
	f.mu.Lock()
	f.matchFetches = append(f.matchFetches, matchID)
	f.mu.Unlock()
	if err := f.matchErr[matchID]; err != nil {
		return nil, err
	}
	return f.details[matchID], nil
}

func newStore(t *testing.T) *db.SQLite {
	t.Helper()
	store, err := db.NewSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return store
}

// flakyStore wraps a real store and injects failures.
type flakyStore struct {
	Store
	existsErr   error
	conflictIDs map[string]bool
}

func (s *flakyStore) MatchExists(ctx context.Context, matchID, puuid string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.Store.MatchExists(ctx, matchID, puuid)
}

func (s *flakyStore) InsertMatch(ctx context.Context, m *db.Match) error {
	if s.conflictIDs[m.MatchID] {
		return fmt.Errorf("insert: %w", db.ErrConflict)
	}
	return s.Store.InsertMatch(ctx, m)
}

func TestIngest_Idempotent(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource()
	source.addMatch("NA1_3", 3000, "me", "other")
	source.addMatch("NA1_2", 2000, "me", "other")
	source.addMatch("NA1_1", 1000, "me", "other")
	store := newStore(t)
	c := NewCoordinator(source, store)

	first, err := c.IngestRecentMatches(ctx, "me")
	if err != nil {
		t.Fatalf("First ingestion failed: %v", err)
	}
	if first.ProcessedCount != 3 {
		t.Errorf("Expected 3 processed, got %d", first.ProcessedCount)
	}

	fetchesAfterFirst := len(source.matchFetches)
	second, err := c.IngestRecentMatches(ctx, "me")
	if err != nil {
		t.Fatalf("Second ingestion failed: %v", err)
	}
	if second.ProcessedCount != 0 || second.SkippedExisting != 3 {
		t.Errorf("Expected 0 processed and 3 existing, got %+v", second)
	}
	if len(source.matchFetches) != fetchesAfterFirst {
		t.Errorf("Expected stored matches not to be fetched again, got %d extra fetches", len(source.matchFetches)-fetchesAfterFirst)
	}

	rows, err := store.GetPlayerMatches(ctx, "me")
	if err != nil {
		t.Fatalf("GetPlayerMatches failed: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("Expected 3 rows, got %d", len(rows))
	}
}

func TestIngest_PreservesSourceOrder(t *testing.T) {
	source := newFakeSource()
	source.addMatch("NA1_5", 5000, "me")
	source.addMatch("NA1_9", 9000, "me")
	source.addMatch("NA1_7", 7000, "me")
	c := NewCoordinator(source, newStore(t))

	if _, err := c.IngestRecentMatches(context.Background(), "me"); err != nil {
		t.Fatalf("Ingestion failed: %v", err)
	}

	want := []string{"NA1_5", "NA1_9", "NA1_7"}
	for i, id := range want {
		if source.matchFetches[i] != id {
			t.Errorf("fetch %d = %s, want %s", i, source.matchFetches[i], id)
		}
	}
}

func TestIngest_MatchCount(t *testing.T) {
	source := newFakeSource()
	store := newStore(t)

	if _, err := NewCoordinator(source, store).IngestRecentMatches(context.Background(), "me"); err != nil {
		t.Fatalf("Ingestion failed: %v", err)
	}
	if source.lastCount != 20 {
		t.Errorf("Expected default count 20, got %d", source.lastCount)
	}

	if _, err := NewCoordinator(source, store, WithMatchCount(5)).IngestRecentMatches(context.Background(), "me"); err != nil {
		t.Fatalf("Ingestion failed: %v", err)
	}
	if source.lastCount != 5 {
		t.Errorf("Expected count 5, got %d", source.lastCount)
	}
}

func TestIngest_SkipsMatchWithoutPlayer(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource()
	source.addMatch("NA1_1", 1000, "me")
	source.addMatch("NA1_2", 2000, "someone-else")
	store := newStore(t)

	res, err := NewCoordinator(source, store).IngestRecentMatches(ctx, "me")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if res.ProcessedCount != 1 || res.SkippedNoParticipant != 1 {
		t.Errorf("Expected 1 processed and 1 skipped, got %+v", res)
	}

	exists, _ := store.MatchExists(ctx, "NA1_2", "me")
	if exists {
		t.Error("Expected no row for a match the player is not in")
	}
}

func TestIngest_AbortKeepsEarlierInserts(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource()
	source.addMatch("NA1_3", 3000, "me")
	source.addMatch("NA1_2", 2000, "me")
	source.addMatch("NA1_1", 1000, "me")
	source.matchErr["NA1_2"] = &riot.StatusError{StatusCode: 503}
	store := newStore(t)
	c := NewCoordinator(source, store)

	res, err := c.IngestRecentMatches(ctx, "me")
	if !errors.Is(err, riot.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got: %v", err)
	}
	if res.ProcessedCount != 1 {
		t.Errorf("Expected 1 processed before the failure, got %d", res.ProcessedCount)
	}

	if ok, _ := store.MatchExists(ctx, "NA1_3", "me"); !ok {
		t.Error("Expected match inserted before the failure to stay stored")
	}
	if ok, _ := store.MatchExists(ctx, "NA1_1", "me"); ok {
		t.Error("Expected matches after the failure not to be processed")
	}

	// Retry once the source recovers.
	delete(source.matchErr, "NA1_2")
	res, err = c.IngestRecentMatches(ctx, "me")
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if res.ProcessedCount != 2 || res.SkippedExisting != 1 {
		t.Errorf("Expected retry to process 2 and skip 1, got %+v", res)
	}
}

func TestIngest_SourceErrorsSurface(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"rate limited", &riot.StatusError{StatusCode: 429}, riot.ErrRateLimited},
		{"unavailable", fmt.Errorf("%w: connection refused", riot.ErrUnavailable), riot.ErrUnavailable},
		{"key rejected", &riot.StatusError{StatusCode: 403}, riot.ErrKeyRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newFakeSource()
			source.addMatch("NA1_1", 1000, "me")
			source.historyErr = tt.err

			res, err := NewCoordinator(source, newStore(t)).IngestRecentMatches(context.Background(), "me")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got: %v", tt.wantErr, err)
			}
			if res.ProcessedCount != 0 {
				t.Errorf("Expected nothing processed, got %d", res.ProcessedCount)
			}
			if len(source.matchFetches) != 0 {
				t.Errorf("Expected no detail fetches, got %d", len(source.matchFetches))
			}
		})
	}
}

func TestIngest_StoreErrorAborts(t *testing.T) {
	source := newFakeSource()
	source.addMatch("NA1_1", 1000, "me")
	store := &flakyStore{Store: newStore(t), existsErr: fmt.Errorf("exists: %w", db.ErrUnavailable)}

	_, err := NewCoordinator(source, store).IngestRecentMatches(context.Background(), "me")
	if !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("Expected db.ErrUnavailable, got: %v", err)
	}
	if len(source.matchFetches) != 0 {
		t.Error("Expected no detail fetch after the store failed")
	}
}

func TestIngest_ConflictIsSwallowed(t *testing.T) {
	source := newFakeSource()
	source.addMatch("NA1_2", 2000, "me")
	source.addMatch("NA1_1", 1000, "me")
	store := &flakyStore{Store: newStore(t), conflictIDs: map[string]bool{"NA1_2": true}}

	res, err := NewCoordinator(source, store).IngestRecentMatches(context.Background(), "me")
	if err != nil {
		t.Fatalf("Expected conflict to be swallowed, got: %v", err)
	}
	if res.ProcessedCount != 1 || res.Conflicts != 1 {
		t.Errorf("Expected 1 processed and 1 conflict, got %+v", res)
	}
}

func TestIngest_ConcurrentRunsDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource()
	for i := 0; i < 10; i++ {
		source.addMatch(fmt.Sprintf("NA1_%d", i), int64(i*1000), "me")
	}
	store := newStore(t)
	c := NewCoordinator(source, store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.IngestRecentMatches(ctx, "me")
			if err != nil {
				t.Errorf("Ingestion failed: %v", err)
				return
			}
			mu.Lock()
			total += res.ProcessedCount
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 10 {
		t.Errorf("Expected 10 inserts across all runs, got %d", total)
	}
	rows, _ := store.GetPlayerMatches(ctx, "me")
	if len(rows) != 10 {
		t.Errorf("Expected 10 rows, got %d", len(rows))
	}
}

func TestIngest_SinksSeeFetchedDetails(t *testing.T) {
	source := newFakeSource()
	source.addMatch("NA1_1", 1000, "me", "ally")
	source.addMatch("NA1_2", 2000, "someone-else")

	var seen []string
	sink := func(_ context.Context, puuid string, detail *riot.MatchResponse) error {
		seen = append(seen, detail.Metadata.MatchID)
		return nil
	}
	failing := func(context.Context, string, *riot.MatchResponse) error {
		return errors.New("disk full")
	}

	res, err := NewCoordinator(source, newStore(t), WithMatchSink(sink), WithMatchSink(failing)).
		IngestRecentMatches(context.Background(), "me")
	if err != nil {
		t.Fatalf("Expected sink failure to be ignored, got: %v", err)
	}
	if res.ProcessedCount != 1 {
		t.Errorf("Expected 1 processed, got %d", res.ProcessedCount)
	}
	if len(seen) != 2 {
		t.Errorf("Expected sink to see both fetched details, got %v", seen)
	}
}

func TestSearchPlayer_UpsertsInPlace(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource()
	source.accounts["Alpha#NA1"] = &riot.AccountResponse{PUUID: "p1", GameName: "Alpha", TagLine: "NA1"}
	source.summoners["p1"] = &riot.SummonerResponse{PUUID: "p1", SummonerLevel: 100, ProfileIconID: 7}
	store := newStore(t)
	c := NewCoordinator(source, store)

	player, err := c.SearchPlayer(ctx, "Alpha", "NA1")
	if err != nil {
		t.Fatalf("SearchPlayer failed: %v", err)
	}
	if player.PUUID != "p1" || player.SummonerLevel != 100 || player.ProfileIconID != 7 {
		t.Errorf("Unexpected player: %+v", player)
	}

	// The player renamed and levelled up.
	source.accounts["Beta#EUW"] = &riot.AccountResponse{PUUID: "p1", GameName: "Beta", TagLine: "EUW"}
	source.summoners["p1"] = &riot.SummonerResponse{PUUID: "p1", SummonerLevel: 101, ProfileIconID: 8}

	player, err = c.SearchPlayer(ctx, "Beta", "EUW")
	if err != nil {
		t.Fatalf("SearchPlayer failed: %v", err)
	}
	if player.GameName != "Beta" || player.TagLine != "EUW" || player.SummonerLevel != 101 || player.ProfileIconID != 8 {
		t.Errorf("Expected updated player, got %+v", player)
	}

	players, err := store.ListPlayers(ctx)
	if err != nil {
		t.Fatalf("ListPlayers failed: %v", err)
	}
	if len(players) != 1 {
		t.Errorf("Expected one player row, got %d", len(players))
	}
}

func TestSearchPlayer_UnknownAccount(t *testing.T) {
	_, err := NewCoordinator(newFakeSource(), newStore(t)).SearchPlayer(context.Background(), "Ghost", "000")
	if !errors.Is(err, riot.ErrNotFound) {
		t.Errorf("Expected riot.ErrNotFound, got: %v", err)
	}
}
