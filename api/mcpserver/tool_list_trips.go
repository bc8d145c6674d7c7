package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/galleta-assistant/galleta/pkg/metrics"
	"github.com/galleta-assistant/galleta/pkg/travel"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const listTripsToolName = "list_trips"

type ListTripsInput struct {
	Destination string `json:"destination,omitempty" jsonschema:"Optional case-insensitive substring filter on the destination"`
}

type ListTripsOutput struct {
	Trips []travel.Trip `json:"trips"`
	Total int           `json:"total"`
}

func RegisterListTripsTool(log *slog.Logger, server *mcp.Server, catalog TripLister) error {
	in, err := jsonschema.For[ListTripsInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list_trips input schema: %w", err)
	}
	out, err := jsonschema.For[ListTripsOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list_trips output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         listTripsToolName,
		Description:  "List the trips in the current travel catalog: destination, description, price, dates and available seats.",
		InputSchema:  in,
		OutputSchema: out,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req ListTripsInput) (*mcp.CallToolResult, ListTripsOutput, error) {
		return nil, handleListTrips(log, catalog, req), nil
	})
	return nil
}

func handleListTrips(log *slog.Logger, catalog TripLister, req ListTripsInput) ListTripsOutput {
	start := time.Now()
	log.Debug("mcp/tool: handling list_trips", "destination", req.Destination)

	filter := strings.ToLower(strings.TrimSpace(req.Destination))
	trips := []travel.Trip{}
	for _, t := range catalog.Trips() {
		if filter == "" || strings.Contains(strings.ToLower(t.Destination), filter) {
			trips = append(trips, t)
		}
	}

	metrics.ToolCallsTotal.WithLabelValues(listTripsToolName, "success").Inc()
	metrics.ToolCallDuration.WithLabelValues(listTripsToolName).Observe(time.Since(start).Seconds())
	return ListTripsOutput{Trips: trips, Total: len(trips)}
}
