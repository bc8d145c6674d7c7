package memory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

const migrateSQL = `
CREATE TABLE IF NOT EXISTS galleta_messages (
	id         BIGSERIAL PRIMARY KEY,
	thread_id  TEXT        NOT NULL,
	role       TEXT        NOT NULL,
	content    TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS galleta_messages_thread_idx ON galleta_messages (thread_id, id);`

const loadSQL = `
SELECT role, content, created_at FROM (
	SELECT id, role, content, created_at
	FROM galleta_messages
	WHERE thread_id = $1
	ORDER BY id DESC
	LIMIT $2
) recent
ORDER BY id`

const insertSQL = `INSERT INTO galleta_messages (thread_id, role, content, created_at) VALUES ($1, $2, $3, $4)`

type PostgresConfig struct {
	Pool        *pgxpool.Pool
	Clock       clockwork.Clock
	MaxMessages int
}

func (c *PostgresConfig) Validate() error {
	if c.Pool == nil {
		return fmt.Errorf("postgres pool is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	return nil
}

// Postgres stores messages in the galleta_messages table.
type Postgres struct {
	cfg PostgresConfig
}

// NewPostgres creates the messages table if needed.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.Pool.Exec(ctx, migrateSQL); err != nil {
		return nil, fmt.Errorf("failed to migrate memory table: %w", err)
	}
	return &Postgres{cfg: cfg}, nil
}

func (s *Postgres) Load(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.cfg.Pool.Query(ctx, loadSQL, threadID, s.cfg.MaxMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var m Message
		err := row.Scan(&m.Role, &m.Content, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan thread %s: %w", threadID, err)
	}
	if len(msgs) == 0 {
		return nil, ErrThreadNotFound
	}
	return msgs, nil
}

func (s *Postgres) Append(ctx context.Context, threadID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := s.cfg.Clock.Now().UTC()
	batch := &pgx.Batch{}
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		batch.Queue(insertSQL, threadID, m.Role, m.Content, m.CreatedAt)
	}

	tx, err := s.cfg.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append to thread %s: %w", threadID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit thread %s: %w", threadID, err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *Postgres) Close() error { return nil }
