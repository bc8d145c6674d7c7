package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/galleta-assistant/galleta/agent/pkg/llm"
	"github.com/galleta-assistant/galleta/pkg/introspect"
	"github.com/galleta-assistant/galleta/pkg/introspect/introspecttest"
	"github.com/galleta-assistant/galleta/pkg/logger"
	"github.com/stretchr/testify/require"
)

type llmCall struct {
	System   string
	Messages []llm.Message
}

// mockLLM answers with a fixed response or a function of the last message.
type mockLLM struct {
	mu       sync.Mutex
	response string
	err      error
	respond  func(system string, messages []llm.Message) (string, error)
	calls    []llmCall
}

func (m *mockLLM) Complete(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, llmCall{System: systemPrompt, Messages: append([]llm.Message(nil), messages...)})
	m.mu.Unlock()
	if m.respond != nil {
		return m.respond(systemPrompt, messages)
	}
	return m.response, m.err
}

func (m *mockLLM) Calls() []llmCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llmCall(nil), m.calls...)
}

func testCatalog() *introspecttest.Catalog {
	return introspecttest.NewCatalog(
		introspecttest.Table{
			Schema: "public", Name: "invoices",
			Columns: []introspect.Column{{Name: "id", Type: "integer", Nullable: "NO"}},
		},
		introspecttest.Table{
			Schema: "public", Name: "orders",
			Columns: []introspect.Column{
				{Name: "id", Type: "integer", Nullable: "NO"},
				{Name: "user_id", Type: "integer", Nullable: "NO"},
			},
			PrimaryKey: []string{"id"},
			Rows: []map[string]any{
				{"id": int64(1), "user_id": int64(7)},
				{"id": int64(2), "user_id": int64(8)},
				{"id": int64(3), "user_id": int64(7)},
			},
		},
		introspecttest.Table{
			Schema: "public", Name: "users",
			Columns: []introspect.Column{
				{Name: "id", Type: "integer", Nullable: "NO"},
				{Name: "email", Type: "text", Nullable: "YES"},
			},
			PrimaryKey: []string{"id"},
			Rows: []map[string]any{
				{"id": int64(7), "email": "ana@example.com"},
			},
		},
		introspecttest.Table{
			Schema: "sales", Name: "invoices",
			Columns: []introspect.Column{{Name: "id", Type: "integer", Nullable: "NO"}},
		},
	)
}

func testIntrospector(t *testing.T, c *introspecttest.Catalog) *introspect.Introspector {
	t.Helper()
	in, err := introspect.New(introspect.Config{Logger: logger.NewNop(), DB: c})
	require.NoError(t, err)
	return in
}
