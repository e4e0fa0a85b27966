// Package chi serves dataops over HTTP: the agent API (sessions, streamed
// queries, consent), a browser UI on top of it, health and metrics.
package chi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fwojciec/dataops"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jellydator/ttlcache/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultQueryTimeout = 15 * time.Minute
	defaultUITTL        = time.Hour
	shutdownTimeout     = 30 * time.Second
)

// Config configures a [Server].
type Config struct {
	// Agent serves both the API and the browser UI.
	Agent dataops.Agent
	// Sessions backs GET /api/sessions/{id}. Optional.
	Sessions dataops.SessionService

	// Shown in the UI sidebar.
	Project  string
	Location string
	Dataset  string

	UIUserID     string        // user id of UI sessions; default "web_user"
	QueryTimeout time.Duration // bound on one UI invocation, consent wait included
	UITTL        time.Duration // idle browser sessions are dropped after this

	Logger *slog.Logger
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Agent == nil {
		return fmt.Errorf("chi: agent is required: %w", dataops.ErrConfig)
	}
	return nil
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	log    *slog.Logger
	router chi.Router
	ui     *ttlcache.Cache[string, *uiSession]

	// ctx outlives requests; background UI invocations run under it and
	// are cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a Server and registers its routes.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UIUserID == "" {
		cfg.UIUserID = "web_user"
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	if cfg.UITTL <= 0 {
		cfg.UITTL = defaultUITTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		log:    cfg.Logger,
		router: chi.NewRouter(),
		ui:     ttlcache.New(ttlcache.WithTTL[string, *uiSession](cfg.UITTL)),
		ctx:    ctx,
		cancel: cancel,
	}
	s.routes()
	go s.ui.Start()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/sessions", func(api chi.Router) {
		api.Post("/", s.handleCreateSession)
		api.Get("/{id}", s.handleGetSession)
		api.Post("/{id}/query", s.handleQuery)
		api.Post("/{id}/consent", s.handleConsent)
	})

	r.Get("/", s.handleIndex)
	r.Post("/ask", s.handleAsk)
	r.Post("/consent", s.handleUIConsent)
	r.Post("/clear", s.handleClear)
	r.Post("/reset", s.handleReset)
	r.Get("/ui/stream", s.handleUIStream)
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("chi: listen: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("chi: shutdown: %w", err)
	}
	return nil
}

// Close cancels in-flight UI invocations and stops the UI session cache.
func (s *Server) Close() {
	s.cancel()
	s.ui.Stop()
}
