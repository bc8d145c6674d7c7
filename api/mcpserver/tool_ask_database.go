package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/galleta-assistant/galleta/agent/pkg/assistant"
	"github.com/galleta-assistant/galleta/pkg/metrics"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const askDatabaseToolName = "ask_database"

type AskDatabaseInput struct {
	Question string `json:"question" jsonschema:"Question about the database structure or contents, in natural language"`
	Role     string `json:"role,omitempty" jsonschema:"Caller role: usuario, cliente, empleado or administrador. Defaults to usuario"`
	UserID   string `json:"user_id,omitempty" jsonschema:"Caller id, required for usuario and cliente"`
	ThreadID string `json:"thread_id,omitempty" jsonschema:"Conversation id used for memory"`
}

type AskDatabaseOutput struct {
	Reply    string `json:"reply"`
	Outcome  string `json:"outcome"`
	ThreadID string `json:"thread_id"`
}

func RegisterAskDatabaseTool(log *slog.Logger, server *mcp.Server, asker Asker) error {
	in, err := jsonschema.For[AskDatabaseInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create ask_database input schema: %w", err)
	}
	out, err := jsonschema.For[AskDatabaseOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create ask_database output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name: askDatabaseToolName,
		Description: `Ask the Galleta database assistant a question. The assistant plans safe, read-only
introspection (list/count tables, columns, row counts, sample rows) and answers in Spanish.
Access is role-gated: usuario and cliente need a user_id and cannot read global metadata.`,
		InputSchema:  in,
		OutputSchema: out,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req AskDatabaseInput) (*mcp.CallToolResult, AskDatabaseOutput, error) {
		output, err := handleAskDatabase(ctx, log, asker, req)
		return nil, output, err
	})
	return nil
}

func handleAskDatabase(ctx context.Context, log *slog.Logger, asker Asker, req AskDatabaseInput) (AskDatabaseOutput, error) {
	start := time.Now()
	defer func() {
		metrics.ToolCallDuration.WithLabelValues(askDatabaseToolName).Observe(time.Since(start).Seconds())
	}()

	log.Debug("mcp/tool: handling ask_database", "role", req.Role, "thread_id", req.ThreadID)

	res, err := asker.Ask(ctx, assistant.Request{
		Message:  req.Question,
		Role:     req.Role,
		UserID:   req.UserID,
		ThreadID: req.ThreadID,
	})
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(askDatabaseToolName, "error").Inc()
		log.Error("mcp/tool: ask_database failed", "error", err)
		return AskDatabaseOutput{}, fmt.Errorf("failed to answer question: %w", err)
	}

	metrics.ToolCallsTotal.WithLabelValues(askDatabaseToolName, "success").Inc()
	return AskDatabaseOutput{Reply: res.Reply, Outcome: string(res.Outcome), ThreadID: res.ThreadID}, nil
}
