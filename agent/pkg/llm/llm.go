package llm

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyResponse = errors.New("empty response from language model")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a role-tagged conversation entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Client is the language model invocation capability. Implementations must be
// safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

// splitSystem folds system-role messages into the system prompt, for
// providers that take it as a separate parameter.
func splitSystem(systemPrompt string, messages []Message) (string, []Message) {
	parts := []string{}
	if s := strings.TrimSpace(systemPrompt); s != "" {
		parts = append(parts, s)
	}
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				parts = append(parts, s)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(parts, "\n\n"), rest
}
