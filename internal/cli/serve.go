package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/galleta-assistant/galleta/api"
	"github.com/galleta-assistant/galleta/api/mcpserver"
	"github.com/galleta-assistant/galleta/pkg/metrics"
	"github.com/spf13/cobra"
)

type ServeCmd struct {
	info BuildInfo
}

func NewServeCmd(info BuildInfo) *ServeCmd {
	return &ServeCmd{info: info}
}

func (c *ServeCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over HTTP and MCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString("listen-addr")
			if err != nil {
				return fmt.Errorf("failed to get listen-addr flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return c.run(ctx, cmd, listenAddr)
		},
	}
	cmd.Flags().String("listen-addr", "", "HTTP listen address (or set GALLETA_LISTEN_ADDR)")
	return cmd
}

func (c *ServeCmd) run(ctx context.Context, cmd *cobra.Command, listenAddr string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if listenAddr == "" {
		listenAddr = a.cfg.ListenAddr
	}

	metrics.BuildInfo.WithLabelValues(c.info.Version, c.info.Commit, c.info.Date).Set(1)

	catalog := a.catalog(ctx)
	asst, err := a.assistant(ctx, catalog)
	if err != nil {
		return err
	}

	mcpSrv, err := mcpserver.New(mcpserver.Config{
		Logger:  a.log,
		Version: c.info.Version,
		Asker:   asst,
		Catalog: catalog,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	server, err := api.NewServer(
		api.WithLogger(a.log),
		api.WithListenAddr(listenAddr),
		api.WithAPIKey(a.cfg.APIKey),
		api.WithAssistant(asst),
		api.WithCatalog(catalog),
		api.WithMCPHandler(mcpSrv.Handler()),
	)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	if a.cfg.APIKey == "" {
		a.log.Warn("AGENT_API_KEY is not set, /api/chat and admin routes are open")
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			serverErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server: shutting down", "reason", ctx.Err())
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}
