package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/embed"
	"github.com/dgallion1/docrank/internal/pipeline"
)

// Server is the HTTP API server for docrank.
type Server struct {
	router   chi.Router
	pipeline *pipeline.Pipeline
	stats    *embed.Stats
	model    string
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil when the
// embedder does not record call statistics.
func NewServer(p *pipeline.Pipeline, stats *embed.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		pipeline: p,
		stats:    stats,
		model:    cfg.EmbedModel,
		log:      log,
		cfg:      cfg,
	}
	if cfg.Embedder != "ollama" {
		s.model = cfg.Embedder
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(logRequests(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(requireAPIKey(s.cfg.APIKey, s.log))
		}

		r.Post("/api/outline", s.handleOutline)
		r.Post("/api/rank", s.handleRank)
		r.Get("/api/stats/embedder", s.handleEmbedderStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
