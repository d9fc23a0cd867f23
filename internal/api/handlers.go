package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"rift-tracker/internal/db"
	"rift-tracker/internal/match"
)

var endpoints = []string{
	"GET /api/search/{gameName}/{tagLine}",
	"GET /api/matches/{puuid}",
	"GET /api/match/{matchId}",
	"POST /api/players/{puuid}/fetch-matches",
	"POST /players",
	"GET /players/{puuid}",
	"POST /players/{puuid}/ingest",
	"GET /players/{puuid}/matches",
	"GET /players/{puuid}/stats",
	"GET /players/{puuid}/stats/summary",
	"POST /players/{puuid}/update-stats",
	"GET /players/{puuid}/champions/{champion}",
	"POST /matches",
	"GET /matches/{matchId}",
	"GET /metrics",
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "rift-tracker API is running",
		"endpoints": endpoints,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	gameName := chi.URLParam(r, "gameName")
	tagLine := chi.URLParam(r, "tagLine")
	if gameName == "" || tagLine == "" {
		badRequest(w, "gameName and tagLine are required")
		return
	}

	player, err := s.coordinator.SearchPlayer(r.Context(), gameName, tagLine)
	if err != nil {
		s.log.Warn("player search failed", "riot_id", gameName+"#"+tagLine, "err", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Player found and stored!",
		"player":  player,
		"puuid":   player.PUUID,
	})
}

func (s *Server) handleMatchIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.source.GetMatchHistory(r.Context(), chi.URLParam(r, "puuid"), s.matchCount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleMatchDetail(w http.ResponseWriter, r *http.Request) {
	body, err := s.source.GetMatchRaw(r.Context(), chi.URLParam(r, "matchId"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.log.Warn("failed to write match detail", "match", chi.URLParam(r, "matchId"), "err", err)
	}
}

// ingest is not cancelled when the client disconnects.
func (s *Server) ingest(r *http.Request, puuid string) (int, error) {
	res, err := s.coordinator.IngestRecentMatches(context.WithoutCancel(r.Context()), puuid)
	return res.ProcessedCount, err
}

func (s *Server) handleFetchMatches(w http.ResponseWriter, r *http.Request) {
	n, err := s.ingest(r, chi.URLParam(r, "puuid"))
	if err != nil {
		writeError(w, fmt.Errorf("failed to fetch matches: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        fmt.Sprintf("Processed %d new matches", n),
		"processedCount": n,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	n, err := s.ingest(r, chi.URLParam(r, "puuid"))
	if err != nil {
		writeError(w, fmt.Errorf("ingestion failed: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processedCount": n})
}

func (s *Server) handlePlayerMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.store.GetPlayerMatches(r.Context(), chi.URLParam(r, "puuid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleChampionMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.store.GetChampionMatches(r.Context(), chi.URLParam(r, "puuid"), chi.URLParam(r, "champion"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.aggregator.ComputeStats(r.Context(), chi.URLParam(r, "puuid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.aggregator.MaterializeStats(r.Context(), chi.URLParam(r, "puuid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.GetStatsSummary(r.Context(), chi.URLParam(r, "puuid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleMatchParticipants(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchId")
	rows, err := s.store.GetMatchParticipants(r.Context(), matchID)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(rows) == 0 {
		writeError(w, fmt.Errorf("match %s: %w", matchID, db.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPlayer(r.Context(), chi.URLParam(r, "puuid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpsertPlayer(w http.ResponseWriter, r *http.Request) {
	var p db.Player
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		badRequest(w, "invalid player body: "+err.Error())
		return
	}
	if strings.TrimSpace(p.PUUID) == "" {
		badRequest(w, "puuid is required")
		return
	}

	status := http.StatusOK
	if _, err := s.store.GetPlayer(r.Context(), p.PUUID); errors.Is(err, db.ErrNotFound) {
		status = http.StatusCreated
	} else if err != nil {
		writeError(w, err)
		return
	}

	saved, err := s.store.UpsertPlayer(r.Context(), &p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, saved)
}

func (s *Server) handleInsertMatch(w http.ResponseWriter, r *http.Request) {
	var m db.Match
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		badRequest(w, "invalid match body: "+err.Error())
		return
	}
	if m.MatchID == "" || m.PUUID == "" || m.Champion == "" {
		badRequest(w, "match_id, puuid and champion are required")
		return
	}
	if m.KDA == 0 {
		m.KDA = match.KDA(m.Kills, m.Deaths, m.Assists)
	}

	if err := s.store.InsertMatch(r.Context(), &m); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
