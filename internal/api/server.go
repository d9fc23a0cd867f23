// Package api is the HTTP surface over ingestion, stats and the store.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"

	"rift-tracker/internal/db"
	"rift-tracker/internal/ingest"
	"rift-tracker/internal/logging"
	"rift-tracker/internal/metrics"
	"rift-tracker/internal/stats"
)

// Source is the part of the Riot client exposed as passthrough endpoints.
type Source interface {
	GetMatchHistory(ctx context.Context, puuid string, count int) ([]string, error)
	GetMatchRaw(ctx context.Context, matchID string) ([]byte, error)
}

// Server wires the HTTP routes to the core.
type Server struct {
	store       db.Store
	source      Source
	coordinator *ingest.Coordinator
	aggregator  *stats.Aggregator
	matchCount  int
	webDir      string
	origins     []string
	log         *slog.Logger
}

// Config holds what Server needs. WebDir and Origins are optional.
type Config struct {
	Store       db.Store
	Source      Source
	Coordinator *ingest.Coordinator
	Aggregator  *stats.Aggregator
	MatchCount  int
	WebDir      string
	Origins     []string
	Logger      *slog.Logger
}

// NewServer creates a Server
func NewServer(cfg Config) *Server {
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = ingest.DefaultMatchCount
	}
	if len(cfg.Origins) == 0 {
		cfg.Origins = []string{"*"}
	}
	return &Server{
		store:       cfg.Store,
		source:      cfg.Source,
		coordinator: cfg.Coordinator,
		aggregator:  cfg.Aggregator,
		matchCount:  cfg.MatchCount,
		webDir:      cfg.WebDir,
		origins:     cfg.Origins,
		log:         logging.Tagged(cfg.Logger, "api"),
	}
}

// Handler returns the router wrapped in CORS and compression.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	s.handle(r, http.MethodGet, "/api/status", s.handleStatus)
	s.handle(r, http.MethodGet, "/api/search/{gameName}/{tagLine}", s.handleSearch)
	s.handle(r, http.MethodGet, "/api/matches/{puuid}", s.handleMatchIDs)
	s.handle(r, http.MethodGet, "/api/match/{matchId}", s.handleMatchDetail)
	s.handle(r, http.MethodPost, "/api/players/{puuid}/fetch-matches", s.handleFetchMatches)

	s.handle(r, http.MethodPost, "/players", s.handleUpsertPlayer)
	s.handle(r, http.MethodGet, "/players/{puuid}", s.handleGetPlayer)
	s.handle(r, http.MethodPost, "/players/{puuid}/ingest", s.handleIngest)
	s.handle(r, http.MethodGet, "/players/{puuid}/matches", s.handlePlayerMatches)
	s.handle(r, http.MethodGet, "/players/{puuid}/stats", s.handleStats)
	s.handle(r, http.MethodGet, "/players/{puuid}/stats/summary", s.handleStatsSummary)
	s.handle(r, http.MethodPost, "/players/{puuid}/update-stats", s.handleUpdateStats)
	s.handle(r, http.MethodGet, "/players/{puuid}/champions/{champion}", s.handleChampionMatches)
	s.handle(r, http.MethodPost, "/matches", s.handleInsertMatch)
	s.handle(r, http.MethodGet, "/matches/{matchId}", s.handleMatchParticipants)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if s.webDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.webDir)))
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return handlers.CompressHandler(cors(r))
}

// handle registers h for method and pattern, labelling metrics with pattern.
func (s *Server) handle(r chi.Router, method, pattern string, h http.HandlerFunc) {
	r.Method(method, pattern, metrics.Middleware(pattern, h))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "request_id", id, "took", time.Since(start).Round(time.Microsecond))
	})
}
