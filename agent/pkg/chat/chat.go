// Package chat answers general conversation as the Galleta persona, with the
// travel catalog as context.
package chat

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/galleta-assistant/galleta/agent/pkg/llm"
	"github.com/galleta-assistant/galleta/pkg/travel"
)

//go:embed PERSONA.md
var personaPrompt string

// MaxCatalogTrips caps the trips rendered into the system prompt.
const MaxCatalogTrips = 30

// TripLister is the catalog view the responder needs.
type TripLister interface {
	Trips() []travel.Trip
}

type Config struct {
	Logger  *slog.Logger
	LLM     llm.Client
	Catalog TripLister
	// Persona overrides the embedded persona prompt.
	Persona string
}

func (cfg *Config) Validate() error {
	if cfg.LLM == nil {
		return fmt.Errorf("LLM client is required")
	}
	if cfg.Persona == "" {
		cfg.Persona = strings.TrimSpace(personaPrompt)
	}
	return nil
}

type Responder struct {
	cfg Config
}

func New(cfg Config) (*Responder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Responder{cfg: cfg}, nil
}

type Input struct {
	// Messages is the prior history followed by the new user message.
	Messages []llm.Message
	UserName string
}

func (r *Responder) Reply(ctx context.Context, in Input) (string, error) {
	reply, err := r.cfg.LLM.Complete(ctx, r.SystemPrompt(in.UserName), in.Messages)
	if err != nil {
		if r.cfg.Logger != nil {
			r.cfg.Logger.Error("chat: model failed", "error", err)
		}
		return "", fmt.Errorf("chat: %w", err)
	}
	return reply, nil
}

// SystemPrompt renders the persona with the caller's name and the current
// catalog.
func (r *Responder) SystemPrompt(userName string) string {
	var b strings.Builder
	b.WriteString(r.cfg.Persona)
	if name := strings.TrimSpace(userName); name != "" {
		fmt.Fprintf(&b, "\n\nEl usuario se llama %s. Llámalo por su nombre cuando sea natural.", name)
	}
	b.WriteString("\n\n")
	b.WriteString(FormatCatalog(r.trips()))
	return b.String()
}

func (r *Responder) trips() []travel.Trip {
	if r.cfg.Catalog == nil {
		return nil
	}
	return r.cfg.Catalog.Trips()
}

// FormatCatalog renders trips as a compact list for the model.
func FormatCatalog(trips []travel.Trip) string {
	if len(trips) == 0 {
		return "Catálogo de viajes: (vacío)"
	}
	var b strings.Builder
	b.WriteString("Catálogo de viajes:")
	for i, t := range trips {
		if i == MaxCatalogTrips {
			fmt.Fprintf(&b, "\n... y %d viajes más.", len(trips)-MaxCatalogTrips)
			break
		}
		fmt.Fprintf(&b, "\n- [%s] %s: %s | precio %.2f | salida %s | regreso %s | plazas %d",
			t.ID, t.Destination, orDash(t.Description), t.Price, orDash(t.Departure), orDash(t.Return), t.Seats)
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
