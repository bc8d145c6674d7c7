package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/galleta-assistant/galleta/agent/pkg/llm"
)

// MaxActions bounds the number of actions accepted from the model.
const MaxActions = 8

const maxTableTokenLen = 128

// Planner turns an utterance into a Plan. The model is advisory: anything
// it returns outside the fixed action vocabulary sends the planner to the
// deterministic fallback.
type Planner struct {
	log    *slog.Logger
	llm    llm.Client
	prompt string
	vocab  *Vocabulary
}

func NewPlanner(log *slog.Logger, client llm.Client, prompt string, vocab *Vocabulary) *Planner {
	return &Planner{log: log, llm: client, prompt: prompt, vocab: vocab}
}

// Plan never fails: model errors and malformed output degrade to the
// vocabulary fallback.
func (p *Planner) Plan(ctx context.Context, role Role, text string) Plan {
	if p.llm == nil {
		return p.vocab.FallbackPlan(text)
	}

	userPrompt := fmt.Sprintf("Rol: %s\nUsuario: %s", role, text)
	response, err := p.llm.Complete(ctx, p.prompt, []llm.Message{llm.User(userPrompt)})
	if err != nil {
		if p.log != nil {
			p.log.Warn("pipeline: planner model failed, using fallback", "error", err)
		}
		return p.vocab.FallbackPlan(text)
	}

	plan, err := parsePlan(response)
	if err != nil {
		if p.log != nil {
			p.log.Info("pipeline: planner output rejected, using fallback", "error", err, "response", truncateString(response, 200))
		}
		return p.vocab.FallbackPlan(text)
	}
	return plan
}

type rawPlan struct {
	Intent         string      `json:"intent"`
	Actions        []rawAction `json:"actions"`
	Clarifications []string    `json:"clarifications"`
}

type rawAction struct {
	Type  string          `json:"type"`
	Table string          `json:"table"`
	Limit json.RawMessage `json:"limit"`
}

// parsePlan decodes and validates model output against the fixed plan shape.
func parsePlan(response string) (Plan, error) {
	data := extractJSON(response)
	if data == "" {
		return Plan{}, errors.New("no JSON object in response")
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return Plan{}, fmt.Errorf("invalid plan JSON: %w", err)
	}
	if len(raw.Actions) > MaxActions {
		return Plan{}, fmt.Errorf("too many actions: %d", len(raw.Actions))
	}

	plan := Plan{
		Intent:         strings.TrimSpace(raw.Intent),
		Actions:        make([]Action, 0, len(raw.Actions)),
		Clarifications: []string{},
	}
	if plan.Intent == "" {
		plan.Intent = IntentGeneral
	}
	for _, c := range raw.Clarifications {
		if c = strings.TrimSpace(c); c != "" {
			plan.Clarifications = append(plan.Clarifications, c)
		}
	}

	for i, ra := range raw.Actions {
		t := ActionType(strings.ToLower(strings.TrimSpace(ra.Type)))
		if !t.Valid() {
			return Plan{}, fmt.Errorf("action %d: unknown type %q", i, ra.Type)
		}
		action := Action{Type: t}
		if t.TableScoped() {
			table := strings.TrimSpace(ra.Table)
			if table == "" {
				return Plan{}, fmt.Errorf("action %d: %s requires a table", i, t)
			}
			if len(table) > maxTableTokenLen {
				return Plan{}, fmt.Errorf("action %d: table name too long", i)
			}
			action.Table = table
		}
		if t == ActionSample {
			limit, err := parseLimit(ra.Limit)
			if err != nil {
				return Plan{}, fmt.Errorf("action %d: %w", i, err)
			}
			action.Limit = limit
		}
		plan.Actions = append(plan.Actions, action)
	}
	return plan, nil
}

// parseLimit accepts a JSON number or numeric string. Range clamping
// happens at execution.
func parseLimit(raw json.RawMessage) (int, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, nil
	}
	return int(f), nil
}
