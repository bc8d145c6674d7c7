package travel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// StaticProvider serves an in-memory list.
type StaticProvider struct {
	mu    sync.RWMutex
	trips []Trip
}

func NewStaticProvider(trips []Trip) *StaticProvider {
	return &StaticProvider{trips: append([]Trip(nil), trips...)}
}

func (p *StaticProvider) List(ctx context.Context) ([]Trip, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Trip(nil), p.trips...), nil
}

func (p *StaticProvider) Set(trips []Trip) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trips = append([]Trip(nil), trips...)
}

func (p *StaticProvider) Source() string { return "static" }

// FileProvider reads a JSON catalog from disk on every List.
type FileProvider struct {
	path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) List(ctx context.Context) ([]Trip, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Decode(data)
}

func (p *FileProvider) Source() string { return "json:" + p.path }

const (
	DefaultHTTPCacheTTL = 5 * time.Minute
	defaultHTTPTimeout  = 10 * time.Second
	maxCatalogBytes     = 8 << 20
)

type HTTPProviderConfig struct {
	URL      string
	Client   *http.Client
	CacheTTL time.Duration
}

func (c *HTTPProviderConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("catalog URL is required")
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultHTTPCacheTTL
	}
	return nil
}

// HTTPProvider fetches a JSON catalog and caches it for CacheTTL.
type HTTPProvider struct {
	cfg   HTTPProviderConfig
	cache *ttlcache.Cache[string, []Trip]
}

func NewHTTPProvider(cfg HTTPProviderConfig) (*HTTPProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, []Trip](cfg.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, []Trip](),
	)
	return &HTTPProvider{cfg: cfg, cache: cache}, nil
}

func (p *HTTPProvider) List(ctx context.Context) ([]Trip, error) {
	if item := p.cache.Get(p.cfg.URL); item != nil {
		return append([]Trip(nil), item.Value()...), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog endpoint returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}
	trips, err := Decode(data)
	if err != nil {
		return nil, err
	}
	p.cache.Set(p.cfg.URL, trips, ttlcache.DefaultTTL)
	return append([]Trip(nil), trips...), nil
}

// Invalidate drops the cached catalog so the next List refetches it.
func (p *HTTPProvider) Invalidate() {
	p.cache.DeleteAll()
}

func (p *HTTPProvider) Source() string { return "api:" + p.cfg.URL }
