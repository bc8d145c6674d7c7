package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/galleta-assistant/galleta/agent/pkg/assistant"
	"github.com/galleta-assistant/galleta/agent/pkg/chat"
	"github.com/galleta-assistant/galleta/agent/pkg/llm"
	"github.com/galleta-assistant/galleta/agent/pkg/pipeline"
	"github.com/galleta-assistant/galleta/config"
	"github.com/galleta-assistant/galleta/pkg/introspect"
	"github.com/galleta-assistant/galleta/pkg/logger"
	"github.com/galleta-assistant/galleta/pkg/memory"
	"github.com/galleta-assistant/galleta/pkg/travel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	plannerTemperature  = 0.2
	reasonerTemperature = 0.2
	chatTemperature     = 0.7
)

type database interface {
	introspect.DB
	ExecScript(ctx context.Context, script string) error
}

// app builds the runtime components on demand from the loaded config and
// releases them in reverse order on Close.
type app struct {
	log *slog.Logger
	cfg *config.Config

	db      database
	pool    *pgxpool.Pool
	closers []func()
}

func newApp(cmd *cobra.Command) (*app, error) {
	flags := cmd.Root().PersistentFlags()
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	dbDriver, err := flags.GetString("db-driver")
	if err != nil {
		return nil, fmt.Errorf("failed to get db-driver flag: %w", err)
	}
	memoryBackend, err := flags.GetString("memory")
	if err != nil {
		return nil, fmt.Errorf("failed to get memory flag: %w", err)
	}
	strictLLM, err := flags.GetBool("strict-llm")
	if err != nil {
		return nil, fmt.Errorf("failed to get strict-llm flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbDriver != "" {
		cfg.DB.Driver = dbDriver
	}
	if memoryBackend != "" {
		cfg.Memory.Backend = memoryBackend
	}
	if strictLLM {
		cfg.Pipeline.StrictLLM = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &app{log: logger.New(verbose), cfg: cfg}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) database(ctx context.Context) (database, error) {
	if a.db != nil {
		return a.db, nil
	}
	dsn, err := a.cfg.DB.DSN()
	if err != nil {
		return nil, err
	}

	switch a.cfg.DB.Driver {
	case config.DriverPQ:
		db, err := introspect.OpenSQLDB(ctx, dsn)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := db.Close(); err != nil {
				a.log.Error("failed to close database", "error", err)
			}
		})
		a.db = db
	default:
		db, err := introspect.NewPgxDB(ctx, dsn, a.cfg.DB.MaxConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.db = db
		a.pool = db.Pool()
	}
	a.log.Debug("connected to database", "driver", a.cfg.DB.Driver)
	return a.db, nil
}

// pgxPool returns a pgx pool for the Postgres memory store, opening one
// beside the database/sql connection when the pq driver is selected.
func (a *app) pgxPool(ctx context.Context) (*pgxpool.Pool, error) {
	if _, err := a.database(ctx); err != nil {
		return nil, err
	}
	if a.pool != nil {
		return a.pool, nil
	}
	dsn, err := a.cfg.DB.DSN()
	if err != nil {
		return nil, err
	}
	db, err := introspect.NewPgxDB(ctx, dsn, a.cfg.DB.MaxConns)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	a.pool = db.Pool()
	return a.pool, nil
}

func (a *app) introspector(ctx context.Context) (*introspect.Introspector, error) {
	db, err := a.database(ctx)
	if err != nil {
		return nil, err
	}
	return introspect.New(introspect.Config{Logger: a.log, DB: db})
}

func (a *app) anthropic(name, model string, temperature float64) (llm.Client, error) {
	client, err := llm.NewAnthropicClient(llm.AnthropicConfig{
		Logger:      a.log,
		APIKey:      a.cfg.LLM.AnthropicAPIKey,
		Model:       model,
		MaxTokens:   a.cfg.LLM.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", name, err)
	}
	return a.retrying(name, client)
}

func (a *app) retrying(name string, client llm.Client) (llm.Client, error) {
	r, err := llm.NewRetrying(client, llm.RetryConfig{
		Name:     name,
		Logger:   a.log,
		Timeout:  a.cfg.LLM.Timeout,
		MaxTries: a.cfg.LLM.MaxTries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to wrap %s client: %w", name, err)
	}
	return r, nil
}

func (a *app) reasonerLLM() (llm.Client, error) {
	if a.cfg.LLM.ReasonerProvider != config.ProviderOllama {
		return a.anthropic("reasoner", a.cfg.LLM.ReasonerModel, reasonerTemperature)
	}
	client, err := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:     a.cfg.LLM.OllamaURL,
		Model:       a.cfg.LLM.ReasonerModel,
		MaxTokens:   a.cfg.LLM.MaxTokens,
		Temperature: reasonerTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoner client: %w", err)
	}
	return a.retrying("reasoner", client)
}

func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	in, err := a.introspector(ctx)
	if err != nil {
		return nil, err
	}
	planner, err := a.anthropic("planner", a.cfg.LLM.PlannerModel, plannerTemperature)
	if err != nil {
		return nil, err
	}
	reasoner, err := a.reasonerLLM()
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Config{
		Logger:            a.log,
		Planner:           planner,
		Reasoner:          reasoner,
		Introspector:      in,
		OwnerColumns:      a.cfg.Pipeline.OwnerColumns,
		OverviewMaxTables: a.cfg.Pipeline.OverviewMaxTables,
		StrictLLM:         a.cfg.Pipeline.StrictLLM,
	})
}

// catalog loads the trip catalog from the configured source. A source that
// fails to load leaves the catalog empty; it can be fixed at runtime.
func (a *app) catalog(ctx context.Context) *travel.Catalog {
	var source travel.Provider
	switch {
	case a.cfg.Catalog.JSONPath != "":
		source = travel.NewFileProvider(a.cfg.Catalog.JSONPath)
	case a.cfg.Catalog.APIURL != "":
		p, err := travel.NewHTTPProvider(travel.HTTPProviderConfig{URL: a.cfg.Catalog.APIURL, CacheTTL: a.cfg.Catalog.CacheTTL})
		if err != nil {
			a.log.Warn("invalid catalog api url, starting with an empty catalog", "error", err)
		} else {
			source = p
		}
	}
	catalog := travel.NewCatalog(travel.CatalogConfig{Logger: a.log, Source: source})
	if source != nil {
		if _, err := catalog.Reload(ctx); err != nil {
			a.log.Warn("failed to load trip catalog, starting empty", "source", source.Source(), "error", err)
		}
	}
	return catalog
}

func (a *app) memory(ctx context.Context) (memory.Store, error) {
	var (
		store memory.Store
		err   error
	)
	switch a.cfg.Memory.Backend {
	case config.MemoryBackendPostgres:
		pool, perr := a.pgxPool(ctx)
		if perr != nil {
			return nil, perr
		}
		store, err = memory.NewPostgres(ctx, memory.PostgresConfig{Pool: pool, MaxMessages: a.cfg.Memory.MaxMessages})
	case config.MemoryBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: a.cfg.Memory.RedisAddr})
		if perr := client.Ping(ctx).Err(); perr != nil {
			client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", perr)
		}
		store, err = memory.NewRedis(memory.RedisConfig{Client: client, TTL: a.cfg.Memory.TTL, MaxMessages: a.cfg.Memory.MaxMessages})
	default:
		store, err = memory.NewInMemory(memory.InMemoryConfig{TTL: a.cfg.Memory.TTL, MaxMessages: a.cfg.Memory.MaxMessages})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s memory store: %w", a.cfg.Memory.Backend, err)
	}
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			a.log.Error("failed to close memory store", "error", err)
		}
	})
	a.log.Debug("conversation memory ready", "backend", a.cfg.Memory.Backend)
	return store, nil
}

// assistant wires the pipeline, the chat persona and memory together.
func (a *app) assistant(ctx context.Context, catalog *travel.Catalog) (*assistant.Assistant, error) {
	p, err := a.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	chatLLM, err := a.anthropic("chat", a.cfg.LLM.PlannerModel, chatTemperature)
	if err != nil {
		return nil, err
	}
	responder, err := chat.New(chat.Config{Logger: a.log, LLM: chatLLM, Catalog: catalog})
	if err != nil {
		return nil, err
	}
	store, err := a.memory(ctx)
	if err != nil {
		return nil, err
	}
	return assistant.New(assistant.Config{
		Logger:    a.log,
		Pipeline:  p,
		Responder: responder,
		Memory:    store,
	})
}
