package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides config values with any environment variables that are set.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("GALLETA_LISTEN_ADDR", &c.ListenAddr)
	str("AGENT_API_KEY", &c.APIKey)

	str("GALLETA_DB_DRIVER", &c.DB.Driver)
	str("DB_HOST", &c.DB.Host)
	str("DB_NAME", &c.DB.Name)
	str("DB_USER", &c.DB.User)
	str("DB_PASSWORD", &c.DB.Password)
	str("DB_SSLMODE", &c.DB.SSLMode)
	str("DOTNET_DEFAULT_CONNECTION", &c.DB.ConnectionString)
	str("DB_CONNECTION_STRING", &c.DB.ConnectionString)
	if v, ok := lookup("DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		c.DB.Port = port
	}

	str("ANTHROPIC_API_KEY", &c.LLM.AnthropicAPIKey)
	str("GALLETA_PLANNER_MODEL", &c.LLM.PlannerModel)
	str("GALLETA_REASONER_PROVIDER", &c.LLM.ReasonerProvider)
	str("GALLETA_REASONER_MODEL", &c.LLM.ReasonerModel)
	str("OLLAMA_URL", &c.LLM.OllamaURL)
	if v, ok := lookup("GALLETA_LLM_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GALLETA_LLM_TIMEOUT %q: %w", v, err)
		}
		c.LLM.Timeout = d
	}
	if v, ok := lookup("GALLETA_LLM_MAX_TRIES"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid GALLETA_LLM_MAX_TRIES %q: %w", v, err)
		}
		c.LLM.MaxTries = uint(n)
	}

	str("GALLETA_MEMORY_BACKEND", &c.Memory.Backend)
	str("REDIS_ADDR", &c.Memory.RedisAddr)

	str("CATALOG_JSON_PATH", &c.Catalog.JSONPath)
	str("CATALOG_API_URL", &c.Catalog.APIURL)

	if v, ok := lookup("GALLETA_OWNER_COLUMNS"); ok && v != "" {
		var cols []string
		for _, col := range strings.Split(v, ",") {
			if col = strings.TrimSpace(col); col != "" {
				cols = append(cols, col)
			}
		}
		c.Pipeline.OwnerColumns = cols
	}
	return nil
}
