// Package assistant serves a single request end to end: it resolves the
// conversation thread, loads its history, runs the database pipeline or the
// chat persona, and records the exchange.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/galleta-assistant/galleta/agent/pkg/chat"
	"github.com/galleta-assistant/galleta/agent/pkg/llm"
	"github.com/galleta-assistant/galleta/agent/pkg/pipeline"
	"github.com/galleta-assistant/galleta/pkg/memory"
)

const DefaultThreadID = "default"

var ErrEmptyMessage = errors.New("message is required")

// Pipeline runs the role-gated database graph.
type Pipeline interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
}

// Responder answers as the chat persona.
type Responder interface {
	Reply(ctx context.Context, in chat.Input) (string, error)
}

type Config struct {
	Logger    *slog.Logger
	Pipeline  Pipeline
	Responder Responder
	// Memory is optional. Without it only the request history is used.
	Memory memory.Store
	// RequestTimeout bounds a whole request on top of per-call LLM
	// timeouts. Zero means no limit.
	RequestTimeout time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Pipeline == nil && cfg.Responder == nil {
		return fmt.Errorf("pipeline or responder is required")
	}
	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}
	return nil
}

type Assistant struct {
	log       *slog.Logger
	pipeline  Pipeline
	responder Responder
	memory    memory.Store
	timeout   time.Duration
}

func New(cfg Config) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Assistant{log: cfg.Logger, pipeline: cfg.Pipeline, responder: cfg.Responder, memory: cfg.Memory, timeout: cfg.RequestTimeout}, nil
}

type Request struct {
	Message  string
	Role     string
	UserID   string
	UserName string
	// History is caller-supplied prior turns, placed after stored memory.
	History  []llm.Message
	ThreadID string
}

type Response struct {
	Reply    string
	ThreadID string
	// Outcome is set for pipeline requests only.
	Outcome pipeline.Outcome
}

// ThreadID picks the conversation key: the explicit thread id, else the
// user id, else DefaultThreadID.
func ThreadID(threadID, userID string) string {
	if t := strings.TrimSpace(threadID); t != "" {
		return t
	}
	if u := strings.TrimSpace(userID); u != "" {
		return u
	}
	return DefaultThreadID
}

// Ask answers through the role-gated database pipeline.
func (a *Assistant) Ask(ctx context.Context, req Request) (*Response, error) {
	if a.pipeline == nil {
		return nil, fmt.Errorf("pipeline is not configured")
	}
	threadID, msgs, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := timed(ctx, a.timeout)
	defer cancel()
	res, err := a.pipeline.Run(runCtx, pipeline.Input{
		Messages: msgs,
		Role:     pipeline.ParseRole(req.Role),
		UserID:   strings.TrimSpace(req.UserID),
	})
	if err != nil {
		return nil, err
	}
	a.record(ctx, threadID, req.Message, res.Reply)
	return &Response{Reply: res.Reply, ThreadID: threadID, Outcome: res.Outcome}, nil
}

// Chat answers as the Galleta persona.
func (a *Assistant) Chat(ctx context.Context, req Request) (*Response, error) {
	if a.responder == nil {
		return nil, fmt.Errorf("chat responder is not configured")
	}
	threadID, msgs, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := timed(ctx, a.timeout)
	defer cancel()
	reply, err := a.responder.Reply(runCtx, chat.Input{Messages: msgs, UserName: req.UserName})
	if err != nil {
		return nil, err
	}
	a.record(ctx, threadID, req.Message, reply)
	return &Response{Reply: reply, ThreadID: threadID}, nil
}

func (a *Assistant) prepare(ctx context.Context, req Request) (string, []llm.Message, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", nil, ErrEmptyMessage
	}
	threadID := ThreadID(req.ThreadID, req.UserID)

	var msgs []llm.Message
	if a.memory != nil {
		stored, err := a.memory.Load(ctx, threadID)
		switch {
		case errors.Is(err, memory.ErrThreadNotFound):
		case err != nil:
			// History is best effort; answer without it.
			if a.log != nil {
				a.log.Warn("assistant: failed to load memory", "thread_id", threadID, "error", err)
			}
		default:
			for _, m := range stored {
				msgs = append(msgs, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
			}
		}
	}
	msgs = append(msgs, req.History...)
	msgs = append(msgs, llm.User(req.Message))
	return threadID, msgs, nil
}

func (a *Assistant) record(ctx context.Context, threadID, message, reply string) {
	if a.memory == nil {
		return
	}
	err := a.memory.Append(ctx, threadID,
		memory.Message{Role: string(llm.RoleUser), Content: message},
		memory.Message{Role: string(llm.RoleAssistant), Content: reply},
	)
	if err != nil && a.log != nil {
		a.log.Warn("assistant: failed to save memory", "thread_id", threadID, "error", err)
	}
}

func timed(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
