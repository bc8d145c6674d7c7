// Package pipeline implements the role-gated database assistant: an access
// gate, an intent planner, a plan executor, a reasoner and a finalizer wired
// together by a fixed state machine.
package pipeline

import (
	"strings"

	"github.com/galleta-assistant/galleta/agent/pkg/llm"
)

// Role is the caller's claimed role. Values match the wire format used by
// the HTTP API.
type Role string

const (
	RoleEndUser       Role = "usuario"
	RoleCustomer      Role = "cliente"
	RoleEmployee      Role = "empleado"
	RoleAdministrator Role = "administrador"
)

var roleAliases = map[string]Role{
	"":              RoleEndUser,
	"usuario":       RoleEndUser,
	"user":          RoleEndUser,
	"end-user":      RoleEndUser,
	"cliente":       RoleCustomer,
	"customer":      RoleCustomer,
	"empleado":      RoleEmployee,
	"employee":      RoleEmployee,
	"administrador": RoleAdministrator,
	"administrator": RoleAdministrator,
	"admin":         RoleAdministrator,
}

// ParseRole normalizes a role string. Empty input maps to the least
// privileged role; unknown values are returned as-is so the access gate can
// reject them.
func ParseRole(s string) Role {
	if r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r
	}
	return Role(s)
}

// Elevated reports whether the role has full access.
func (r Role) Elevated() bool { return r == RoleEmployee || r == RoleAdministrator }

// SelfScoped reports whether the role may only see its own records.
func (r Role) SelfScoped() bool { return r == RoleEndUser || r == RoleCustomer }

type ActionType string

const (
	ActionOverview    ActionType = "overview"
	ActionCountTables ActionType = "count_tables"
	ActionListTables  ActionType = "list_tables"
	ActionColumns     ActionType = "columns"
	ActionRowCount    ActionType = "rowcount"
	ActionSample      ActionType = "sample"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionOverview, ActionCountTables, ActionListTables, ActionColumns, ActionRowCount, ActionSample:
		return true
	}
	return false
}

// Global reports whether the action reads database-wide metadata.
func (a ActionType) Global() bool {
	return a == ActionOverview || a == ActionCountTables || a == ActionListTables
}

// TableScoped reports whether the action requires a table argument.
func (a ActionType) TableScoped() bool {
	return a == ActionColumns || a == ActionRowCount || a == ActionSample
}

type Action struct {
	Type  ActionType `json:"type"`
	Table string     `json:"table,omitempty"`
	Limit int        `json:"limit,omitempty"`
}

type Plan struct {
	Intent         string   `json:"intent"`
	Actions        []Action `json:"actions"`
	Clarifications []string `json:"clarifications"`
}

// DBResult is the outcome of one executed action. Exactly one of Result or
// Error is set.
type DBResult struct {
	Action ActionType `json:"action"`
	Table  string     `json:"table,omitempty"`
	Result any        `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// ConversationState is threaded through the graph for a single invocation.
type ConversationState struct {
	Messages []llm.Message
	UserRole Role
	UserID   string

	AccessGranted bool
	accessChecked bool

	Plan *Plan

	// DBResults is nil until the executor succeeds; an empty non-nil slice
	// means the plan had no actions.
	DBResults []DBResult

	ReasonedAnswer string

	// Reply is the user-facing text produced by the terminal node.
	Reply string
}

// LastUserMessage returns the content of the most recent user message.
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llm.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

func (s *ConversationState) reply(text string) {
	s.Messages = append(s.Messages, llm.Assistant(text))
	s.Reply = text
}
