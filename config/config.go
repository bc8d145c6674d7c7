package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingDBField = errors.New("missing database settings")
)

type Config struct {
	ListenAddr string         `yaml:"listen_addr"`
	APIKey     string         `yaml:"api_key"`
	DB         DBConfig       `yaml:"db"`
	LLM        LLMConfig      `yaml:"llm"`
	Memory     MemoryConfig   `yaml:"memory"`
	Catalog    CatalogConfig  `yaml:"catalog"`
	Pipeline   PipelineConfig `yaml:"pipeline"`
}

type DBConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Port     int    `yaml:"port"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`

	// ConnectionString is a .NET style "Key=Value;..." string. When set it
	// takes precedence over the discrete fields.
	ConnectionString string `yaml:"connection_string"`
}

type LLMConfig struct {
	AnthropicAPIKey  string        `yaml:"anthropic_api_key"`
	PlannerModel     string        `yaml:"planner_model"`
	ReasonerProvider string        `yaml:"reasoner_provider"`
	ReasonerModel    string        `yaml:"reasoner_model"`
	OllamaURL        string        `yaml:"ollama_url"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxTries         uint          `yaml:"max_tries"`
	MaxTokens        int64         `yaml:"max_tokens"`
}

type MemoryConfig struct {
	Backend     string        `yaml:"backend"`
	RedisAddr   string        `yaml:"redis_addr"`
	TTL         time.Duration `yaml:"ttl"`
	MaxMessages int           `yaml:"max_messages"`
}

type CatalogConfig struct {
	JSONPath string        `yaml:"json_path"`
	APIURL   string        `yaml:"api_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type PipelineConfig struct {
	OverviewMaxTables int      `yaml:"overview_max_tables"`
	StrictLLM         bool     `yaml:"strict_llm"`
	OwnerColumns      []string `yaml:"owner_columns"`
}

// Default returns a config populated with default values.
func Default() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		DB: DBConfig{
			Driver:  DefaultDBDriver,
			Port:    DefaultDBPort,
			SSLMode: DefaultDBSSLMode,
		},
		LLM: LLMConfig{
			PlannerModel:     DefaultPlannerModel,
			ReasonerProvider: DefaultReasonerProvider,
			ReasonerModel:    DefaultReasonerModel,
			OllamaURL:        DefaultOllamaURL,
			Timeout:          DefaultLLMTimeout,
			MaxTries:         DefaultLLMMaxTries,
			MaxTokens:        DefaultLLMMaxTokens,
		},
		Memory: MemoryConfig{
			Backend:     DefaultMemoryBackend,
			TTL:         DefaultMemoryTTL,
			MaxMessages: DefaultMemoryMaxMessages,
		},
		Catalog: CatalogConfig{
			CacheTTL: DefaultCatalogCacheTTL,
		},
		Pipeline: PipelineConfig{
			OwnerColumns: slices.Clone(DefaultOwnerColumns),
		},
	}
}

// Load builds the config from defaults, an optional YAML file, a .env file in
// the working directory and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	_ = godotenv.Load()

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if c.DB.Driver != DriverPgx && c.DB.Driver != DriverPQ {
		return fmt.Errorf("unsupported database driver %q", c.DB.Driver)
	}
	if c.LLM.ReasonerProvider != ProviderAnthropic && c.LLM.ReasonerProvider != ProviderOllama {
		return fmt.Errorf("unsupported reasoner provider %q", c.LLM.ReasonerProvider)
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("llm timeout must be greater than 0")
	}
	if c.LLM.MaxTries == 0 {
		return errors.New("llm max tries must be greater than 0")
	}
	switch c.Memory.Backend {
	case MemoryBackendInMemory, MemoryBackendPostgres:
	case MemoryBackendRedis:
		if c.Memory.RedisAddr == "" {
			return errors.New("redis address is required for the redis memory backend")
		}
	default:
		return fmt.Errorf("unsupported memory backend %q", c.Memory.Backend)
	}
	if c.Pipeline.OverviewMaxTables < 0 {
		return errors.New("overview max tables must not be negative")
	}
	return nil
}

// Effective resolves the connection string, if any, into discrete fields.
func (d DBConfig) Effective() (DBConfig, error) {
	if d.ConnectionString == "" {
		return d, nil
	}
	parsed, err := ParseDotNetConnString(d.ConnectionString)
	if err != nil {
		return DBConfig{}, err
	}
	parsed.Driver = d.Driver
	parsed.MaxConns = d.MaxConns
	return parsed, nil
}

// DSN returns a libpq connection URL accepted by both pgx and lib/pq.
func (d DBConfig) DSN() (string, error) {
	eff, err := d.Effective()
	if err != nil {
		return "", err
	}
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"host", eff.Host},
		{"database", eff.Name},
		{"user", eff.User},
		{"password", eff.Password},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingDBField, strings.Join(missing, ", "))
	}

	port := eff.Port
	if port == 0 {
		port = DefaultDBPort
	}
	sslmode := eff.SSLMode
	if sslmode == "" {
		sslmode = DefaultDBSSLMode
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(eff.User, eff.Password),
		Host:     net.JoinHostPort(eff.Host, strconv.Itoa(port)),
		Path:     "/" + eff.Name,
		RawQuery: url.Values{"sslmode": []string{sslmode}}.Encode(),
	}
	return u.String(), nil
}
