// Package api serves the assistant over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/galleta-assistant/galleta/agent/pkg/assistant"
	"github.com/galleta-assistant/galleta/pkg/metrics"
	"github.com/galleta-assistant/galleta/pkg/travel"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultListenAddr      = ":8000"
	defaultShutdownTimeout = 5 * time.Second
)

// Assistant answers chat requests.
type Assistant interface {
	Ask(ctx context.Context, req assistant.Request) (*assistant.Response, error)
	Chat(ctx context.Context, req assistant.Request) (*assistant.Response, error)
}

// Catalog is the mutable trip catalog behind the catalog and admin routes.
type Catalog interface {
	Trips() []travel.Trip
	Reload(ctx context.Context) (int, error)
	SetSource(ctx context.Context, spec travel.SourceSpec) (string, error)
	Set(items []map[string]any) int
}

type Server struct {
	logger          *slog.Logger
	listenAddr      string
	apiKey          string
	assistant       Assistant
	catalog         Catalog
	mcpHandler      http.Handler
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithListenAddr(addr string) Option {
	return func(s *Server) {
		s.listenAddr = addr
	}
}

// WithAPIKey protects /api/chat and the admin routes with a bearer token.
// An empty key leaves them open.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

func WithAssistant(a Assistant) Option {
	return func(s *Server) {
		s.assistant = a
	}
}

func WithCatalog(c Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithMCPHandler mounts an MCP transport at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcpHandler = h
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

func NewServer(opts ...Option) (*Server, error) {
	s := &Server{
		logger:          slog.Default(),
		listenAddr:      defaultListenAddr,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.assistant == nil {
		return nil, fmt.Errorf("assistant is required")
	}
	if s.catalog == nil {
		s.catalog = travel.NewCatalog(travel.CatalogConfig{Logger: s.logger})
	}

	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s, nil
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/viajes", s.handleGetTrips)
	r.Get("/api/viajes", s.handleListTrips)
	r.Post("/chat", s.handleChat)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/api/chat", s.handleAsk)
		r.Post("/admin/reload_catalog", s.handleReloadCatalog)
		r.Post("/admin/set_source", s.handleSetSource)
		r.Post("/admin/set_catalog", s.handleSetCatalog)
	})

	if s.mcpHandler != nil {
		r.Handle("/mcp", s.mcpHandler)
		r.Handle("/mcp/*", s.mcpHandler)
	}
	return r
}

func (s *Server) Run() error {
	s.logger.Info("api: server starting", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("could not listen on %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

func (s *Server) Shutdown() error {
	s.logger.Info("api: shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}
