// Package server exposes form sessions over HTTP. A client creates a session
// for one of the loaded forms, edits fields, moves between pages and submits.
// Page and field events of a session stream over a websocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-formengine/internal/metric"
	"github.com/goliatone/go-formengine/internal/session"
	"github.com/goliatone/go-formengine/internal/snapshot"
	"github.com/goliatone/go-formengine/pkg/engine"
	"github.com/goliatone/go-formengine/pkg/navigation"
	"github.com/goliatone/go-formengine/pkg/options"
	"github.com/goliatone/go-formengine/pkg/render"
	"github.com/goliatone/go-formengine/pkg/render/template"
	"github.com/goliatone/go-formengine/pkg/schema/loader"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records activity on m.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithSnapshots enables the snapshot and restore routes.
func WithSnapshots(store snapshot.Store) Option {
	return func(s *Server) {
		s.snapshots = store
	}
}

// WithOptionLists serves option list searches from reg.
func WithOptionLists(reg *options.Registry) Option {
	return func(s *Server) {
		s.options = reg
	}
}

// WithHook adds a page hook to every session navigator.
func WithHook(h navigation.Hook) Option {
	return func(s *Server) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}

// WithSessionManager replaces the session manager built from the config.
func WithSessionManager(m *session.Manager) Option {
	return func(s *Server) {
		if m != nil {
			s.sessions = m
		}
	}
}

// Server serves the loaded forms.
type Server struct {
	cfg       Config
	forms     map[string]loader.Form
	sessions  *session.Manager
	snapshots snapshot.Store
	metrics   *metric.Metrics
	renderers *render.Registry
	options   *options.Registry
	logger    *slog.Logger
	hooks     []navigation.Hook
}

// New creates a server for forms.
func New(cfg Config, forms map[string]loader.Form, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		forms:  forms,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.sessions == nil {
		s.sessions = session.NewManager(cfg.Sessions.MaxAge, cfg.Sessions.IdleTimeout)
	}
	if s.options == nil {
		s.options = options.NewRegistry()
	}
	s.renderers = render.DefaultRegistry()
	if err := template.Register(s.renderers); err != nil {
		s.logger.Warn("server: html summaries disabled", "error", err)
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/options/{name}", s.searchOptions)

	r.Route("/forms", func(r chi.Router) {
		r.Get("/", s.listForms)
		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Put("/fields/{key}", s.setField)
			r.Post("/fields/{key}/toggle", s.toggleField)
			r.Post("/validate", s.validate)
			r.Post("/next", s.next)
			r.Post("/previous", s.previous)
			r.Post("/goto", s.goTo)
			r.Post("/submit", s.submit)
			r.Get("/summary", s.summary)
			r.Post("/snapshot", s.saveSnapshot)
			r.Post("/restore", s.restoreSnapshot)
			r.Get("/events", s.events)
		})
	})
	return r
}

// Run serves until ctx is cancelled, sweeping expired sessions on the
// configured interval.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweep(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server: shutdown", "error", err)
		}
	}()

	s.logger.Info("server: listening", "addr", s.cfg.Addr, "forms", loader.IDs(s.forms))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweep(ctx context.Context) {
	interval := s.cfg.Sessions.CleanupInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Cleanup(); n > 0 {
				s.logger.Debug("server: removed expired sessions", "count", n)
			}
			s.metrics.SetActiveSessions(s.sessions.Len())
		}
	}
}

// newEngine builds a fresh engine for form.
func (s *Server) newEngine(form loader.Form) (*engine.Engine, error) {
	return engine.New(form.Pages, engine.WithLogger(s.logger.With("formId", form.ID)))
}

func (s *Server) navOptions(extra ...navigation.Option) []navigation.Option {
	opts := make([]navigation.Option, 0, len(s.hooks)+len(extra))
	for _, h := range s.hooks {
		opts = append(opts, navigation.WithHook(h))
	}
	return append(opts, extra...)
}
