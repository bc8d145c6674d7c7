package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
)

type InMemoryConfig struct {
	Clock clockwork.Clock
	// TTL is how long an idle thread is kept. Reads and writes extend it.
	TTL         time.Duration
	MaxMessages int
}

func (c *InMemoryConfig) Validate() error {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl must not be negative")
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	return nil
}

// InMemory keeps threads in a TTL cache. History is lost on restart.
type InMemory struct {
	cfg   InMemoryConfig
	mu    sync.Mutex
	cache *ttlcache.Cache[string, []Message]
}

func NewInMemory(cfg InMemoryConfig) (*InMemory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []ttlcache.Option[string, []Message]{}
	if cfg.TTL > 0 {
		opts = append(opts, ttlcache.WithTTL[string, []Message](cfg.TTL))
	}
	cache := ttlcache.New(opts...)
	go cache.Start()
	return &InMemory{cfg: cfg, cache: cache}, nil
}

func (s *InMemory) Load(ctx context.Context, threadID string) ([]Message, error) {
	item := s.cache.Get(threadID)
	if item == nil || len(item.Value()) == 0 {
		return nil, ErrThreadNotFound
	}
	return append([]Message(nil), item.Value()...), nil
}

func (s *InMemory) Append(ctx context.Context, threadID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []Message
	if item := s.cache.Get(threadID); item != nil {
		history = append(history, item.Value()...)
	}
	now := s.cfg.Clock.Now().UTC()
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		history = append(history, m)
	}
	s.cache.Set(threadID, tail(history, s.cfg.MaxMessages), ttlcache.DefaultTTL)
	return nil
}

// Threads returns the number of live threads.
func (s *InMemory) Threads() int {
	return s.cache.Len()
}

func (s *InMemory) Close() error {
	s.cache.Stop()
	return nil
}
