package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/galleta-assistant/galleta/agent/pkg/llm"
	"github.com/galleta-assistant/galleta/pkg/introspect"
)

const (
	// maxHistoryMessages bounds the prior turns passed to the finalizer.
	maxHistoryMessages = 10
	maxHistoryChars    = 500

	UnavailableMessage = "Lo siento, no pude generar una respuesta en este momento. Intenta de nuevo más tarde."
)

// Finalizer composes the user-facing reply.
type Finalizer struct {
	log    *slog.Logger
	llm    llm.Client
	prompt string
	strict bool
}

// NewFinalizer returns a finalizer. When strict is false a model failure
// degrades to the reasoned answer or a templated rendering of the results.
func NewFinalizer(log *slog.Logger, client llm.Client, prompt string, strict bool) *Finalizer {
	return &Finalizer{log: log, llm: client, prompt: prompt, strict: strict}
}

type finalizePayload struct {
	User           string     `json:"user"`
	Role           Role       `json:"role"`
	Plan           *Plan      `json:"plan"`
	DBResults      []DBResult `json:"db_results"`
	ReasonedAnswer string     `json:"reasoned_answer"`
}

// OverviewText returns the first overview result, if any.
func OverviewText(results []DBResult) (string, bool) {
	for _, r := range results {
		if r.Action == ActionOverview && r.Error == "" {
			if text, ok := r.Result.(string); ok {
				return text, true
			}
		}
	}
	return "", false
}

func (f *Finalizer) Finalize(ctx context.Context, s *ConversationState) (string, error) {
	if text, ok := OverviewText(s.DBResults); ok {
		return text, nil
	}

	payload, err := marshalPayload(finalizePayload{
		User:           s.LastUserMessage(),
		Role:           s.UserRole,
		Plan:           s.Plan,
		DBResults:      s.DBResults,
		ReasonedAnswer: s.ReasonedAnswer,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode finalizer payload: %w", err)
	}

	messages := append(historyForFinalizer(s.Messages), llm.User(payload))
	reply, err := f.llm.Complete(ctx, f.prompt, messages)
	if err == nil {
		return reply, nil
	}
	if f.strict {
		return "", fmt.Errorf("finalizer: %w", err)
	}
	if f.log != nil {
		f.log.Error("pipeline: finalizer failed, using templated reply", "error", err)
	}
	if s.ReasonedAnswer != "" {
		return s.ReasonedAnswer, nil
	}
	return FormatResults(s.DBResults), nil
}

// historyForFinalizer keeps system directives and the most recent prior
// turns, dropping the last user message which the payload replaces.
func historyForFinalizer(msgs []llm.Message) []llm.Message {
	last := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			last = i
			break
		}
	}

	var system, turns []llm.Message
	for i, m := range msgs {
		if i == last {
			continue
		}
		if m.Role == llm.RoleSystem {
			system = append(system, m)
			continue
		}
		turns = append(turns, llm.Message{Role: m.Role, Content: truncateString(m.Content, maxHistoryChars)})
	}
	if len(turns) > maxHistoryMessages {
		turns = turns[len(turns)-maxHistoryMessages:]
	}
	// Providers expect the first turn to come from the user.
	for len(turns) > 0 && turns[0].Role != llm.RoleUser {
		turns = turns[1:]
	}
	return append(system, turns...)
}

// FormatResults renders results as plain Spanish text without a model.
func FormatResults(results []DBResult) string {
	if len(results) == 0 {
		return UnavailableMessage
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if r.Error != "" {
			b.WriteString(r.Error)
			continue
		}
		switch v := r.Result.(type) {
		case string:
			b.WriteString(v)
		case int64:
			switch r.Action {
			case ActionCountTables:
				fmt.Fprintf(&b, "La base de datos tiene %d tablas.", v)
			default:
				fmt.Fprintf(&b, "La tabla %s tiene %d filas.", r.Table, v)
			}
		case []string:
			b.WriteString("Tablas disponibles:")
			for _, name := range v {
				b.WriteString("\n- " + name)
			}
		case []introspect.Column:
			fmt.Fprintf(&b, "Columnas de %s:", r.Table)
			for _, c := range v {
				fmt.Fprintf(&b, "\n- %s: %s (nullable=%s)", c.Name, c.Type, c.Nullable)
			}
		case []map[string]any:
			fmt.Fprintf(&b, "%d filas de %s:", len(v), r.Table)
			for _, row := range v {
				line, err := marshalPayload(row)
				if err != nil {
					line = fmt.Sprint(row)
				}
				b.WriteString("\n- " + line)
			}
		default:
			fmt.Fprintf(&b, "%s: %v", r.Action, v)
		}
	}
	return b.String()
}
