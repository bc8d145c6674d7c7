package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "galleta:thread:"

type RedisConfig struct {
	Client *redis.Client
	Clock  clockwork.Clock
	Prefix string
	// TTL expires idle threads. Zero keeps them forever.
	TTL         time.Duration
	MaxMessages int
}

func (c *RedisConfig) Validate() error {
	if c.Client == nil {
		return fmt.Errorf("redis client is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Prefix == "" {
		c.Prefix = defaultRedisPrefix
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl must not be negative")
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	return nil
}

// Redis keeps each thread as a capped list of JSON-encoded messages.
type Redis struct {
	cfg RedisConfig
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Redis{cfg: cfg}, nil
}

func (s *Redis) key(threadID string) string {
	return s.cfg.Prefix + threadID
}

func (s *Redis) Load(ctx context.Context, threadID string) ([]Message, error) {
	vals, err := s.cfg.Client.LRange(ctx, s.key(threadID), int64(-s.cfg.MaxMessages), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}
	if len(vals) == 0 {
		return nil, ErrThreadNotFound
	}
	msgs := make([]Message, 0, len(vals))
	for _, v := range vals {
		var m Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("failed to decode message in thread %s: %w", threadID, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *Redis) Append(ctx context.Context, threadID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := s.cfg.Clock.Now().UTC()
	vals := make([]any, 0, len(msgs))
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		vals = append(vals, data)
	}

	key := s.key(threadID)
	pipe := s.cfg.Client.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	pipe.LTrim(ctx, key, int64(-s.cfg.MaxMessages), -1)
	if s.cfg.TTL > 0 {
		pipe.Expire(ctx, key, s.cfg.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to thread %s: %w", threadID, err)
	}
	return nil
}

func (s *Redis) Close() error {
	return s.cfg.Client.Close()
}
