package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// DB is the relational catalog capability. Every Query call acquires one
// connection, performs exactly one round trip and releases the connection
// before returning, whatever the outcome.
type DB interface {
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
}

// Rows is a fully materialized result set.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Maps returns the rows keyed by column name.
func (r *Rows) Maps() []map[string]any {
	out := make([]map[string]any, 0, len(r.Values))
	for _, vals := range r.Values {
		row := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(vals) {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out
}

// PgxDB implements DB over a pgx connection pool.
type PgxDB struct {
	pool *pgxpool.Pool
}

func NewPgxDB(ctx context.Context, dsn string, maxConns int32) (*PgxDB, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PgxDB{pool: pool}, nil
}

func NewPgxDBFromPool(pool *pgxpool.Pool) *PgxDB {
	return &PgxDB{pool: pool}
}

func (d *PgxDB) Pool() *pgxpool.Pool { return d.pool }

func (d *PgxDB) Close() { d.pool.Close() }

// ExecScript runs a multi-statement SQL script. Without arguments pgx uses
// the simple protocol, which accepts several statements in one call.
func (d *PgxDB) ExecScript(ctx context.Context, script string) error {
	if _, err := d.pool.Exec(ctx, script); err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	return nil
}

func (d *PgxDB) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := &Rows{Columns: make([]string, len(fields))}
	for i, f := range fields {
		out.Columns[i] = f.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		for i := range vals {
			vals[i] = normalizeValue(vals[i])
		}
		out.Values = append(out.Values, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// SQLDB implements DB over database/sql with the lib/pq driver.
type SQLDB struct {
	db *sql.DB
}

func OpenSQLDB(ctx context.Context, dsn string) (*SQLDB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLDB{db: db}, nil
}

func NewSQLDB(db *sql.DB) *SQLDB {
	return &SQLDB{db: db}
}

func (d *SQLDB) Close() error { return d.db.Close() }

func (d *SQLDB) ExecScript(ctx context.Context, script string) error {
	if _, err := d.db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	return nil
}

func (d *SQLDB) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	out := &Rows{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i := range values {
			values[i] = normalizeValue(values[i])
		}
		out.Values = append(out.Values, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return v
	}
}
