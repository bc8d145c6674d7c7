package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/galleta-assistant/galleta/agent/pkg/chat"
	"github.com/galleta-assistant/galleta/agent/pkg/llm"
	"github.com/galleta-assistant/galleta/agent/pkg/pipeline"
	"github.com/galleta-assistant/galleta/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	in    pipeline.Input
	reply string
	err   error
}

func (f *fakePipeline) Run(ctx context.Context, in pipeline.Input) (*pipeline.Result, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{Reply: f.reply, Outcome: pipeline.OutcomeAnswered}, nil
}

type fakeResponder struct {
	in       chat.Input
	reply    string
	deadline bool
}

func (f *fakeResponder) Reply(ctx context.Context, in chat.Input) (string, error) {
	f.in = in
	_, f.deadline = ctx.Deadline()
	return f.reply, nil
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]memory.Message, error) {
	return nil, errors.New("store down")
}
func (failingStore) Append(context.Context, string, ...memory.Message) error {
	return errors.New("store down")
}
func (failingStore) Close() error { return nil }

func newMemory(t *testing.T) *memory.InMemory {
	t.Helper()
	m, err := memory.NewInMemory(memory.InMemoryConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestAssistant_ThreadID(t *testing.T) {
	assert.Equal(t, "abc", ThreadID(" abc ", "7"))
	assert.Equal(t, "7", ThreadID("", "7"))
	assert.Equal(t, DefaultThreadID, ThreadID("", " "))
}

func TestAssistant_Ask(t *testing.T) {
	p := &fakePipeline{reply: "Hay 4 tablas."}
	store := newMemory(t)
	a, err := New(Config{Pipeline: p, Memory: store})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "7",
		memory.Message{Role: "user", Content: "hola"},
		memory.Message{Role: "assistant", Content: "¡Hola!"},
	))

	res, err := a.Ask(ctx, Request{
		Message: "¿cuántas tablas hay?",
		Role:    "administrador",
		UserID:  "7",
		History: []llm.Message{llm.User("contexto")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hay 4 tablas.", res.Reply)
	assert.Equal(t, "7", res.ThreadID)
	assert.Equal(t, pipeline.OutcomeAnswered, res.Outcome)

	assert.Equal(t, pipeline.RoleAdministrator, p.in.Role)
	assert.Equal(t, "7", p.in.UserID)
	assert.Equal(t, []llm.Message{
		llm.User("hola"),
		llm.Assistant("¡Hola!"),
		llm.User("contexto"),
		llm.User("¿cuántas tablas hay?"),
	}, p.in.Messages)

	stored, err := store.Load(ctx, "7")
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, "¿cuántas tablas hay?", stored[2].Content)
	assert.Equal(t, "Hay 4 tablas.", stored[3].Content)
	assert.Equal(t, "assistant", stored[3].Role)
}

func TestAssistant_Ask_Errors(t *testing.T) {
	a, err := New(Config{Pipeline: &fakePipeline{err: errors.New("boom")}})
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), Request{Message: "  "})
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = a.Ask(context.Background(), Request{Message: "hola"})
	require.ErrorContains(t, err, "boom")

	_, err = a.Chat(context.Background(), Request{Message: "hola"})
	require.ErrorContains(t, err, "chat responder is not configured")
}

func TestAssistant_Chat(t *testing.T) {
	r := &fakeResponder{reply: "¡Hola Ana! Soy Galleta 🍪"}
	store := newMemory(t)
	a, err := New(Config{Responder: r, Memory: store, RequestTimeout: time.Minute})
	require.NoError(t, err)

	res, err := a.Chat(context.Background(), Request{Message: "hola", UserName: "Ana", ThreadID: "web-1"})
	require.NoError(t, err)
	assert.Equal(t, "¡Hola Ana! Soy Galleta 🍪", res.Reply)
	assert.Equal(t, "web-1", res.ThreadID)
	assert.Equal(t, "Ana", r.in.UserName)
	assert.True(t, r.deadline)

	// The second turn sees the first.
	_, err = a.Chat(context.Background(), Request{Message: "¿y tú?", ThreadID: "web-1"})
	require.NoError(t, err)
	require.Len(t, r.in.Messages, 3)
	assert.Equal(t, llm.Assistant("¡Hola Ana! Soy Galleta 🍪"), r.in.Messages[1])
}

func TestAssistant_MemoryFailuresAreNotFatal(t *testing.T) {
	r := &fakeResponder{reply: "ok"}
	a, err := New(Config{Responder: r, Memory: failingStore{}})
	require.NoError(t, err)

	res, err := a.Chat(context.Background(), Request{Message: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Reply)
	assert.Equal(t, DefaultThreadID, res.ThreadID)
	assert.False(t, r.deadline)
}

func TestAssistant_New_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{Responder: &fakeResponder{}, RequestTimeout: -time.Second})
	require.Error(t, err)
}
