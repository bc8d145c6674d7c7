package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/galleta-assistant/galleta/agent/pkg/llm"
)

// Reasoner produces an intermediate synthesis of plan and results with a
// second model.
type Reasoner struct {
	log    *slog.Logger
	llm    llm.Client
	prompt string
}

func NewReasoner(log *slog.Logger, client llm.Client, prompt string) *Reasoner {
	return &Reasoner{log: log, llm: client, prompt: prompt}
}

type reasonPayload struct {
	Plan      *Plan      `json:"plan"`
	User      string     `json:"user"`
	Role      Role       `json:"role"`
	DBResults []DBResult `json:"db_results"`
}

func (r *Reasoner) Reason(ctx context.Context, s *ConversationState) (string, error) {
	payload, err := marshalPayload(reasonPayload{
		Plan:      s.Plan,
		User:      s.LastUserMessage(),
		Role:      s.UserRole,
		DBResults: s.DBResults,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode reasoner payload: %w", err)
	}

	answer, err := r.llm.Complete(ctx, r.prompt, []llm.Message{llm.User(payload)})
	if err != nil {
		return "", fmt.Errorf("reasoner: %w", err)
	}
	return answer, nil
}
