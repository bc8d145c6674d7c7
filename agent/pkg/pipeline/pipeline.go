package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/galleta-assistant/galleta/agent/pkg/llm"
	"github.com/galleta-assistant/galleta/pkg/metrics"
)

// Config holds the configuration for the pipeline.
type Config struct {
	Logger *slog.Logger

	// Planner is the fast, low-temperature model used for planning.
	Planner llm.Client
	// Reasoner is the second model used for synthesis.
	Reasoner llm.Client
	// Finalizer composes the reply. Defaults to Planner.
	Finalizer llm.Client

	Introspector Introspector
	Prompts      *Prompts
	Vocabulary   *Vocabulary

	// OwnerColumns are tried in order to scope row queries for self-scoped roles.
	OwnerColumns      []string
	OverviewMaxTables int

	// StrictLLM propagates finalizer model failures instead of degrading to
	// a templated reply.
	StrictLLM bool
}

func (cfg *Config) Validate() error {
	if cfg.Planner == nil {
		return fmt.Errorf("planner LLM client is required")
	}
	if cfg.Reasoner == nil {
		return fmt.Errorf("reasoner LLM client is required")
	}
	if cfg.Introspector == nil {
		return fmt.Errorf("introspector is required")
	}
	if cfg.OverviewMaxTables < 0 {
		return fmt.Errorf("overview max tables must not be negative")
	}
	return nil
}

// Pipeline runs the orchestration graph. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	log       *slog.Logger
	planner   *Planner
	executor  *Executor
	reasoner  *Reasoner
	finalizer *Finalizer
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prompts := cfg.Prompts
	if prompts == nil {
		var err error
		if prompts, err = LoadPrompts(); err != nil {
			return nil, err
		}
	}
	vocab := cfg.Vocabulary
	if vocab == nil {
		var err error
		if vocab, err = DefaultVocabulary(); err != nil {
			return nil, err
		}
	}
	finalizerLLM := cfg.Finalizer
	if finalizerLLM == nil {
		finalizerLLM = cfg.Planner
	}

	return &Pipeline{
		log:       cfg.Logger,
		planner:   NewPlanner(cfg.Logger, cfg.Planner, prompts.Plan, vocab),
		executor:  NewExecutor(cfg.Logger, cfg.Introspector, cfg.OwnerColumns, cfg.OverviewMaxTables),
		reasoner:  NewReasoner(cfg.Logger, cfg.Reasoner, prompts.Reason),
		finalizer: NewFinalizer(cfg.Logger, finalizerLLM, prompts.Finalize, cfg.StrictLLM),
	}, nil
}

// Input is one request to the pipeline.
type Input struct {
	// Messages is the prior history followed by the new user message.
	Messages []llm.Message
	Role     Role
	UserID   string
}

// Outcome names how an invocation terminated.
type Outcome string

const (
	OutcomeDenied    Outcome = "denied"
	OutcomeClarify   Outcome = "clarify"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeDBError   Outcome = "db_error"
	OutcomeAnswered  Outcome = "answered"
	OutcomeLLMFailed Outcome = "llm_failed"
)

type Result struct {
	Reply   string
	Outcome Outcome
	Path    []State
	State   *ConversationState
}

var (
	ErrStateRevisited = errors.New("graph revisited a state")
	ErrTooManyHops    = errors.New("graph exceeded maximum hops")
)

// Run executes the graph from check_access to end.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	s := &ConversationState{
		Messages: append([]llm.Message(nil), in.Messages...),
		UserRole: in.Role,
		UserID:   in.UserID,
	}
	if s.UserRole == "" {
		s.UserRole = RoleEndUser
	}
	res := &Result{State: s}

	visited := make(map[State]bool, MaxHops)
	for st := StateCheckAccess; st != StateEnd; st = Next(st, s) {
		if visited[st] {
			return nil, fmt.Errorf("%w: %s", ErrStateRevisited, st)
		}
		if len(res.Path) >= MaxHops {
			return nil, ErrTooManyHops
		}
		visited[st] = true
		res.Path = append(res.Path, st)

		start := time.Now()
		outcome, err := p.step(ctx, st, s)
		metrics.GraphNodeDuration.WithLabelValues(st.String()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.GraphRunsTotal.WithLabelValues(string(OutcomeLLMFailed)).Inc()
			return nil, err
		}
		if outcome != "" {
			res.Outcome = outcome
		}
	}

	res.Reply = s.Reply
	metrics.GraphRunsTotal.WithLabelValues(string(res.Outcome)).Inc()
	if p.log != nil {
		p.log.Info("pipeline: completed", "outcome", res.Outcome, "path", len(res.Path), "role", s.UserRole)
	}
	return res, nil
}

func (p *Pipeline) step(ctx context.Context, st State, s *ConversationState) (Outcome, error) {
	switch st {
	case StateCheckAccess:
		CheckAccess(s)
		if !s.AccessGranted {
			return OutcomeDenied, nil
		}

	case StatePlan:
		plan := p.planner.Plan(ctx, s.UserRole, s.LastUserMessage())
		s.Plan = &plan
		if p.log != nil {
			p.log.Debug("pipeline: plan produced", "intent", plan.Intent, "actions", len(plan.Actions), "clarifications", len(plan.Clarifications))
		}

	case StateClarify:
		question := "Necesito una aclaración adicional."
		if s.Plan != nil && len(s.Plan.Clarifications) > 0 {
			question = s.Plan.Clarifications[0]
		}
		s.reply(question)
		return OutcomeClarify, nil

	case StateExecute:
		results, err := p.executor.Execute(ctx, s.UserRole, s.UserID, *s.Plan)
		switch {
		case errors.Is(err, ErrGlobalMetadataDenied):
			s.reply(DeniedGlobalMessage)
			return OutcomeBlocked, nil
		case err != nil:
			if p.log != nil {
				p.log.Error("pipeline: database error", "error", err)
			}
			s.reply(DBUnavailableMessage)
			return OutcomeDBError, nil
		}
		s.DBResults = results

	case StateReason:
		answer, err := p.reasoner.Reason(ctx, s)
		if err != nil {
			if p.finalizer.strict {
				return "", err
			}
			if p.log != nil {
				p.log.Warn("pipeline: reasoner failed, continuing without it", "error", err)
			}
		}
		s.ReasonedAnswer = answer

	case StateFinalize:
		reply, err := p.finalizer.Finalize(ctx, s)
		if err != nil {
			return "", err
		}
		s.reply(reply)
		return OutcomeAnswered, nil
	}
	return "", nil
}
