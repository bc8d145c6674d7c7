// Package mcpserver exposes the assistant over the Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/galleta-assistant/galleta/agent/pkg/assistant"
	"github.com/galleta-assistant/galleta/pkg/travel"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Asker answers database questions through the role-gated pipeline.
type Asker interface {
	Ask(ctx context.Context, req assistant.Request) (*assistant.Response, error)
}

type TripLister interface {
	Trips() []travel.Trip
}

type Config struct {
	Logger  *slog.Logger
	Version string
	// Asker is optional; without it ask_database is not registered.
	Asker   Asker
	Catalog TripLister
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Asker == nil && cfg.Catalog == nil {
		return fmt.Errorf("asker or catalog is required")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return nil
}

type Server struct {
	log *slog.Logger
	mcp *mcp.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "Galleta MCP Server",
		Version: cfg.Version,
	}, nil)

	if cfg.Asker != nil {
		if err := RegisterAskDatabaseTool(cfg.Logger, mcpServer, cfg.Asker); err != nil {
			return nil, fmt.Errorf("failed to create ask_database tool: %w", err)
		}
	}
	if cfg.Catalog != nil {
		if err := RegisterListTripsTool(cfg.Logger, mcpServer, cfg.Catalog); err != nil {
			return nil, fmt.Errorf("failed to create list_trips tool: %w", err)
		}
	}
	return &Server{log: cfg.Logger, mcp: mcpServer}, nil
}

func (s *Server) MCP() *mcp.Server { return s.mcp }

// Handler serves the streamable HTTP transport. Sessions are stateless.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{
		Stateless: true,
	})
}
