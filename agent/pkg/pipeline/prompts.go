package pipeline

import (
	"fmt"
	"strings"

	"github.com/galleta-assistant/galleta/agent/pkg/pipeline/prompts"
)

// Prompts contains the system prompts loaded from embedded files.
type Prompts struct {
	Plan     string // Intent planner instructions and action vocabulary
	Reason   string // Reasoner synthesis over plan and results
	Finalize string // User-facing reply composition
}

// LoadPrompts loads all prompts from the embedded filesystem.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Plan, err = loadPrompt("PLAN.md"); err != nil {
		return nil, fmt.Errorf("failed to load PLAN: %w", err)
	}
	if p.Reason, err = loadPrompt("REASON.md"); err != nil {
		return nil, fmt.Errorf("failed to load REASON: %w", err)
	}
	if p.Finalize, err = loadPrompt("FINALIZE.md"); err != nil {
		return nil, fmt.Errorf("failed to load FINALIZE: %w", err)
	}
	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := prompts.PromptsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
