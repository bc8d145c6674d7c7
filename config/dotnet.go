package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDotNetConnString converts a .NET style PostgreSQL connection string
// ("Host=db;Database=app;Username=u;Password=p;Port=5432;SSL Mode=Require")
// into a DBConfig. Keys are case-insensitive.
func ParseDotNetConnString(s string) (DBConfig, error) {
	kv := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		kv[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	first := func(keys ...string) string {
		for _, k := range keys {
			if v := kv[k]; v != "" {
				return v
			}
		}
		return ""
	}

	cfg := DBConfig{
		Host:     first("host", "server"),
		Name:     first("database", "dbname"),
		User:     first("username", "user id", "user"),
		Password: kv["password"],
		Port:     DefaultDBPort,
		SSLMode:  strings.ToLower(first("ssl mode", "sslmode")),
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = DefaultDBSSLMode
	}
	if p := kv["port"]; p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return DBConfig{}, fmt.Errorf("invalid port %q in connection string: %w", p, err)
		}
		cfg.Port = port
	}
	return cfg, nil
}
