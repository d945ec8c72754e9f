// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/vibo/internal/app"
	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/internal/domain/stats"
	"github.com/okian/vibo/pkg/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errEmptyBody is returned by decodeJSON for a request without a body.
var errEmptyBody = errors.New("empty body")

// Dependencies required by HTTP handlers. *service.Service satisfies it.
type Dependencies interface {
	CreatePlayer(ctx context.Context, in service.PlayerInput) (model.Player, error)
	Player(ctx context.Context, id string) (model.Player, error)
	PlayerStats(ctx context.Context, id string) (service.PlayerStats, error)
	Partners(ctx context.Context, id string) ([]stats.Partner, error)
	PlayerMatches(ctx context.Context, id string, limit int) ([]model.Match, error)
	HeadToHead(ctx context.Context, a, b string) (stats.HeadToHead, error)

	SubmitMatch(ctx context.Context, in service.MatchInput) (service.Submission, error)
	Match(ctx context.Context, id string) (model.Match, error)

	Ranking(ctx context.Context, limit int) ([]service.RankingEntry, error)
	Recompute(ctx context.Context, from *time.Time) (service.RecomputeReport, error)

	StatsProvider
}

// Server wires HTTP routes for the rating API.
type Server struct {
	deps         Dependencies
	health       *HealthHandler
	statsHandler *StatsHandler
	log          logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for 5xx responses.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:         deps,
		health:       NewHealthHandler(),
		statsHandler: NewStatsHandler(deps),
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns a router serving every API route.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	s.Register(r)
	return r
}

// Register attaches all API routes to r.
func (s *Server) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(MetricsMiddleware)

		r.Get("/healthz", s.health.HandleHealth)
		r.Get("/stats", s.statsHandler.HandleStats)
		r.Get("/categories", s.handleCategories)

		r.Post("/players", s.handleCreatePlayer)
		r.Route("/players/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPlayer)
			r.Get("/stats", s.handlePlayerStats)
			r.Get("/partners", s.handlePartners)
			r.Get("/matches", s.handlePlayerMatches)
		})
		r.Get("/head-to-head", s.handleHeadToHead)

		r.Post("/matches", s.handleSubmitMatch)
		r.Get("/matches/{id}", s.handleGetMatch)

		r.Get("/ranking", s.handleRanking)
		r.Post("/recompute", s.handleRecompute)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps err to a status and writes the error body. Server side
// failures are logged, client errors are not.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return WrapKind(op, ErrBadRequest, errEmptyBody)
		}
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// queryInt parses an optional positive integer query parameter. Missing
// parameters yield def.
func queryInt(r *http.Request, op, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, WrapKind(op, ErrBadRequest, errors.New(name+" must be a positive integer"))
	}
	return n, nil
}
