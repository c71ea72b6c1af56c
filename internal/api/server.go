package api

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/contentgen/internal/config"
	"github.com/snarg/contentgen/internal/history"
	"github.com/snarg/contentgen/internal/metrics"
	"github.com/snarg/contentgen/internal/storage"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions carries the dependencies of every route.
type ServerOptions struct {
	Config     *config.Config
	Analyzer   Analyzer
	Modifiers  ModifierService
	History    history.Store
	Artifacts  storage.ArtifactStore
	Publisher  Publisher
	Health     HealthDeps
	TokenLimit *TokenLimit
	WebFS      fs.FS // embedded UI; nil disables static serving
	OpenAPI    []byte
	Version    string
	StartTime  time.Time
	Log        zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	log := opts.Log
	r := NewRouter(opts)

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// NewRouter builds the full route tree. Split out of NewServer for tests.
func NewRouter(opts ServerOptions) chi.Router {
	cfg := opts.Config
	log := opts.Log
	tokenLimit := opts.TokenLimit
	if tokenLimit == nil {
		tokenLimit = NewTokenLimit(cfg.PromptTokenLimit)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(metrics.InstrumentHandler)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(CORSWithOrigins(cfg.AllowedOrigins()))

		// Health and navigation: no auth
		r.Get("/health", NewHealthHandler(opts.Health, opts.Version, opts.StartTime).ServeHTTP)
		if opts.WebFS != nil {
			r.Get("/pages", PagesHandler(opts.WebFS))
		}
		if len(opts.OpenAPI) > 0 {
			spec := opts.OpenAPI
			r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/yaml")
				w.Write(spec)
			})
		}

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.AuthToken))

			r.Get("/formats", FormatsHandler)
			NewGenerateHandler(opts.Analyzer, opts.History, opts.Artifacts, opts.Publisher, cfg.MaxUploadBytes(), log).Routes(r)
			NewGenerationsHandler(opts.History, opts.Artifacts, log).Routes(r)
			NewFeedbackHandler(opts.History, opts.Publisher, log).Routes(r)
			NewModifiersHandler(opts.Modifiers, opts.Publisher, log).Routes(r)
			NewSettingsHandler(tokenLimit, log).Routes(r)
		})
	})

	if opts.WebFS != nil {
		r.Handle("/*", http.FileServer(http.FS(opts.WebFS)))
	}
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
