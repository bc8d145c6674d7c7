package travel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

var ErrNoSource = errors.New("no catalog source given")

type CatalogConfig struct {
	Logger *slog.Logger
	// Source is where Reload reads from. Defaults to an empty static list.
	Source Provider
}

// Catalog is the current trip list. The active source can be swapped at
// runtime and the list replaced outright.
type Catalog struct {
	log *slog.Logger

	mu     sync.RWMutex
	source Provider
	trips  []Trip
}

func NewCatalog(cfg CatalogConfig) *Catalog {
	source := cfg.Source
	if source == nil {
		source = NewStaticProvider(nil)
	}
	return &Catalog{log: cfg.Logger, source: source}
}

// Trips returns a copy of the current list.
func (c *Catalog) Trips() []Trip {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Trip(nil), c.trips...)
}

func (c *Catalog) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source.Source()
}

// Reload re-reads the active source. On failure the previous list is kept.
func (c *Catalog) Reload(ctx context.Context) (int, error) {
	c.mu.RLock()
	source := c.source
	c.mu.RUnlock()

	if inv, ok := source.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	trips, err := source.List(ctx)
	if err != nil {
		if c.log != nil {
			c.log.Warn("travel: catalog reload failed, keeping previous list", "source", source.Source(), "error", err)
		}
		return 0, fmt.Errorf("failed to reload catalog from %s: %w", source.Source(), err)
	}

	c.mu.Lock()
	c.trips = trips
	c.mu.Unlock()
	if c.log != nil {
		c.log.Info("travel: catalog reloaded", "source", source.Source(), "total", len(trips))
	}
	return len(trips), nil
}

// SourceSpec selects a new source. A JSON path takes precedence over an API
// URL when both are given.
type SourceSpec struct {
	APIURL   string `json:"api_url,omitempty"`
	JSONPath string `json:"json_path,omitempty"`
}

// SetSource switches to the given source and reloads from it. It returns a
// description of the source in use.
func (c *Catalog) SetSource(ctx context.Context, spec SourceSpec) (string, error) {
	var source Provider
	switch {
	case strings.TrimSpace(spec.JSONPath) != "":
		source = NewFileProvider(strings.TrimSpace(spec.JSONPath))
	case strings.TrimSpace(spec.APIURL) != "":
		p, err := NewHTTPProvider(HTTPProviderConfig{URL: strings.TrimSpace(spec.APIURL)})
		if err != nil {
			return "", err
		}
		source = p
	default:
		return "", ErrNoSource
	}

	c.mu.Lock()
	c.source = source
	c.mu.Unlock()

	if _, err := c.Reload(ctx); err != nil {
		return source.Source(), err
	}
	return source.Source(), nil
}

// Set replaces the list with loosely keyed records and makes it the static
// source. It returns the number of trips kept.
func (c *Catalog) Set(items []map[string]any) int {
	trips := Normalize(items)
	c.mu.Lock()
	c.source = NewStaticProvider(trips)
	c.trips = trips
	c.mu.Unlock()
	return len(trips)
}
