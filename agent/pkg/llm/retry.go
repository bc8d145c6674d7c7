package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/galleta-assistant/galleta/pkg/metrics"
)

type RetryConfig struct {
	// Name labels metrics and logs, e.g. "planner" or "reasoner".
	Name   string
	Logger *slog.Logger

	// Timeout bounds each attempt.
	Timeout  time.Duration
	MaxTries uint

	// InitialInterval is the first backoff delay. Zero uses the library default.
	InitialInterval time.Duration
}

// Retrying wraps a Client with a per-attempt timeout and bounded exponential
// backoff. Empty completions count as failures.
type Retrying struct {
	next Client
	cfg  RetryConfig
}

func NewRetrying(next Client, cfg RetryConfig) (*Retrying, error) {
	if next == nil {
		return nil, errors.New("client is required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("timeout must be greater than 0")
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	return &Retrying{next: next, cfg: cfg}, nil
}

func (r *Retrying) Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	start := time.Now()
	attempt := 0
	op := func() (string, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		out, err := r.next.Complete(callCtx, systemPrompt, messages)
		if err != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(ctx.Err())
			}
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", ErrEmptyResponse
		}
		return out, nil
	}

	b := backoff.NewExponentialBackOff()
	if r.cfg.InitialInterval > 0 {
		b.InitialInterval = r.cfg.InitialInterval
	}
	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			if r.cfg.Logger != nil {
				r.cfg.Logger.Warn("llm: call failed, retrying", "client", r.cfg.Name, "attempt", attempt, "backoff", next, "error", err)
			}
		}),
	)

	metrics.LLMCallDuration.WithLabelValues(r.cfg.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues(r.cfg.Name, "error").Inc()
		if r.cfg.Logger != nil {
			r.cfg.Logger.Error("llm: call failed", "client", r.cfg.Name, "attempts", attempt, "error", err)
		}
		return "", err
	}
	metrics.LLMCallsTotal.WithLabelValues(r.cfg.Name, "ok").Inc()
	return out, nil
}
