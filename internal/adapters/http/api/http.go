// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const corsMaxAge = 300

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	BalanceDependencies
	PlayerDependencies
	MatchDependencies
	LeaderboardDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	balanceHandler     *BalanceHandler
	playersHandler     *PlayersHandler
	matchesHandler     *MatchesHandler
	leaderboardHandler *LeaderboardHandler

	allowedOrigins []string
	requestTimeout time.Duration
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS allow list. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithRequestTimeout bounds each request's context. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		balanceHandler:     NewBalanceHandler(deps),
		playersHandler:     NewPlayersHandler(deps),
		matchesHandler:     NewMatchesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		allowedOrigins:     []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds a chi router with the shared middleware stack and every
// API route registered.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", IdempotencyHeader},
		ExposedHeaders: []string{"Location"},
		MaxAge:         corsMaxAge,
	}))
	r.Use(MetricsMiddleware)
	if s.requestTimeout > 0 {
		r.Use(middleware.Timeout(s.requestTimeout))
	}

	s.Register(ctx, r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/balance", func(r chi.Router) {
		r.Post("/", s.balanceHandler.HandleBalance)
		r.Post("/players", s.balanceHandler.HandleBalancePlayers)
		r.Get("/jobs/{id}", s.balanceHandler.HandleGetJob)
		r.Delete("/jobs/{id}", s.balanceHandler.HandleCancelJob)
	})

	r.Route("/players", func(r chi.Router) {
		r.Get("/", s.playersHandler.HandleListPlayers)
		r.Post("/", s.playersHandler.HandleCreatePlayer)
		r.Patch("/{id}", s.playersHandler.HandleUpdatePlayer)
		r.Delete("/{id}", s.playersHandler.HandleDeletePlayer)
	})

	r.Route("/matches", func(r chi.Router) {
		r.Get("/", s.matchesHandler.HandleListMatches)
		r.Post("/", s.matchesHandler.HandleSaveMatch)
		r.Post("/bulk-delete", s.matchesHandler.HandleDeleteMatches)
		r.Put("/{id}", s.matchesHandler.HandleUpdateMatch)
		r.Delete("/{id}", s.matchesHandler.HandleDeleteMatch)
	})

	r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	r.Get("/duos", s.leaderboardHandler.HandleGetDuos)
}
