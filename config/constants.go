package config

import "time"

const (
	DefaultListenAddr = ":8000"

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "require"
	DefaultDBDriver  = DriverPgx

	DefaultPlannerModel     = "claude-haiku-4-5"
	DefaultReasonerModel    = "claude-sonnet-4-5"
	DefaultReasonerProvider = ProviderAnthropic
	DefaultOllamaURL        = "http://localhost:11434"
	DefaultLLMTimeout       = 30 * time.Second
	DefaultLLMMaxTries      = 3
	DefaultLLMMaxTokens     = 1024

	DefaultMemoryBackend     = MemoryBackendInMemory
	DefaultMemoryTTL         = 24 * time.Hour
	DefaultMemoryMaxMessages = 40

	DefaultCatalogCacheTTL = 5 * time.Minute

	DriverPgx = "pgx"
	DriverPQ  = "pq"

	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	MemoryBackendInMemory = "memory"
	MemoryBackendPostgres = "postgres"
	MemoryBackendRedis    = "redis"
)

// DefaultOwnerColumns are the column names that tie a row to the caller's id
// for self-scoped lookups.
var DefaultOwnerColumns = []string{"user_id", "usuario_id", "cliente_id", "id_usuario"}
