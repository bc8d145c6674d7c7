package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/galleta-assistant/galleta/agent/pkg/llm"
	"github.com/galleta-assistant/galleta/pkg/travel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	reply  string
	err    error
	system string
	msgs   []llm.Message
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	f.system = systemPrompt
	f.msgs = messages
	return f.reply, f.err
}

type staticTrips []travel.Trip

func (s staticTrips) Trips() []travel.Trip { return s }

func TestChat_Reply(t *testing.T) {
	f := &fakeLLM{reply: "¡Hola Ana! Soy Galleta 🍪"}
	r, err := New(Config{LLM: f, Catalog: staticTrips{{ID: "1", Destination: "Cusco", Price: 800, Seats: 4}}})
	require.NoError(t, err)

	reply, err := r.Reply(context.Background(), Input{
		Messages: []llm.Message{llm.User("hola")},
		UserName: "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, "¡Hola Ana! Soy Galleta 🍪", reply)

	assert.True(t, strings.HasPrefix(f.system, "Tu nombre es Galleta 🍪."))
	assert.Contains(t, f.system, "El usuario se llama Ana.")
	assert.Contains(t, f.system, "- [1] Cusco: - | precio 800.00 | salida - | regreso - | plazas 4")
	assert.Equal(t, []llm.Message{llm.User("hola")}, f.msgs)
}

func TestChat_Reply_Error(t *testing.T) {
	r, err := New(Config{LLM: &fakeLLM{err: errors.New("down")}})
	require.NoError(t, err)
	_, err = r.Reply(context.Background(), Input{Messages: []llm.Message{llm.User("hola")}})
	require.ErrorContains(t, err, "chat: down")
}

func TestChat_New_RequiresLLM(t *testing.T) {
	_, err := New(Config{})
	require.ErrorContains(t, err, "LLM client is required")
}

func TestChat_FormatCatalog(t *testing.T) {
	assert.Equal(t, "Catálogo de viajes: (vacío)", FormatCatalog(nil))

	var trips []travel.Trip
	for i := range MaxCatalogTrips + 2 {
		trips = append(trips, travel.Trip{ID: fmt.Sprint(i), Destination: "X"})
	}
	out := FormatCatalog(trips)
	assert.Equal(t, MaxCatalogTrips, strings.Count(out, "\n- ["))
	assert.True(t, strings.HasSuffix(out, "... y 2 viajes más."))
}

func TestChat_PersonaOverride(t *testing.T) {
	r, err := New(Config{LLM: &fakeLLM{}, Persona: "Eres un robot."})
	require.NoError(t, err)
	assert.Equal(t, "Eres un robot.\n\nCatálogo de viajes: (vacío)", r.SystemPrompt(" "))
}
