package introspect

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
)

const (
	DefaultSampleLimit = 5
	MaxSampleLimit     = 100
)

type Config struct {
	Logger *slog.Logger
	DB     DB
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.DB == nil {
		return fmt.Errorf("database is required")
	}
	return nil
}

// Introspector runs read-only catalog queries. It holds no state beyond its
// DB handle.
type Introspector struct {
	log *slog.Logger
	db  DB
}

func New(cfg Config) (*Introspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate introspector config: %w", err)
	}
	return &Introspector{log: cfg.Logger, db: cfg.DB}, nil
}

// TableIdentity is a resolved (schema, table) pair.
type TableIdentity struct {
	Schema string
	Name   string
}

func (t TableIdentity) String() string { return t.Schema + "." + t.Name }

// Quoted returns the identifier escaped for direct use in SQL text.
func (t TableIdentity) Quoted() string {
	return pgx.Identifier{t.Schema, t.Name}.Sanitize()
}

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable string `json:"nullable"`
}

type ForeignKey struct {
	Constraint string   `json:"constraint"`
	Columns    []string `json:"columns"`
	RefSchema  string   `json:"ref_schema"`
	RefTable   string   `json:"ref_table"`
	RefColumns []string `json:"ref_columns"`
}

type Index struct {
	Name string `json:"name"`
	Def  string `json:"def"`
}

// Scope restricts row-level queries to rows whose Column equals Value.
type Scope struct {
	Column string
	Value  string
}

// ClampLimit maps limits outside (0, MaxSampleLimit] to DefaultSampleLimit.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxSampleLimit {
		return DefaultSampleLimit
	}
	return limit
}

func (i *Introspector) ListTables(ctx context.Context) ([]TableIdentity, error) {
	rows, err := i.db.Query(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tableIdentities(rows), nil
}

func (i *Introspector) CountTables(ctx context.Context) (int64, error) {
	rows, err := i.db.Query(ctx, countTablesSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to count tables: %w", err)
	}
	return scalarInt(rows)
}

func (i *Introspector) Columns(ctx context.Context, t TableIdentity) ([]Column, error) {
	rows, err := i.db.Query(ctx, columnsSQL, t.Schema, t.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for %s: %w", t, err)
	}
	cols := make([]Column, 0, len(rows.Values))
	for _, v := range rows.Values {
		if len(v) < 3 {
			continue
		}
		cols = append(cols, Column{Name: asString(v[0]), Type: asString(v[1]), Nullable: asString(v[2])})
	}
	return cols, nil
}

func (i *Introspector) PrimaryKey(ctx context.Context, t TableIdentity) ([]string, error) {
	rows, err := i.db.Query(ctx, primaryKeySQL, t.Schema, t.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary key for %s: %w", t, err)
	}
	cols := make([]string, 0, len(rows.Values))
	for _, v := range rows.Values {
		if len(v) > 0 {
			cols = append(cols, asString(v[0]))
		}
	}
	return cols, nil
}

// ForeignKeys groups multi-column constraints into one entry each, in
// constraint name order.
func (i *Introspector) ForeignKeys(ctx context.Context, t TableIdentity) ([]ForeignKey, error) {
	rows, err := i.db.Query(ctx, foreignKeysSQL, t.Schema, t.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys for %s: %w", t, err)
	}
	var fks []ForeignKey
	index := make(map[string]int)
	for _, v := range rows.Values {
		if len(v) < 5 {
			continue
		}
		name := asString(v[0])
		pos, ok := index[name]
		if !ok {
			fks = append(fks, ForeignKey{
				Constraint: name,
				RefSchema:  asString(v[2]),
				RefTable:   asString(v[3]),
			})
			pos = len(fks) - 1
			index[name] = pos
		}
		fks[pos].Columns = append(fks[pos].Columns, asString(v[1]))
		fks[pos].RefColumns = append(fks[pos].RefColumns, asString(v[4]))
	}
	return fks, nil
}

func (i *Introspector) Indexes(ctx context.Context, t TableIdentity) ([]Index, error) {
	rows, err := i.db.Query(ctx, indexesSQL, t.Schema, t.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get indexes for %s: %w", t, err)
	}
	idx := make([]Index, 0, len(rows.Values))
	for _, v := range rows.Values {
		if len(v) < 2 {
			continue
		}
		idx = append(idx, Index{Name: asString(v[0]), Def: asString(v[1])})
	}
	return idx, nil
}

func (i *Introspector) RowCount(ctx context.Context, t TableIdentity, scope *Scope) (int64, error) {
	query := "SELECT COUNT(*) FROM " + t.Quoted()
	var args []any
	if scope != nil {
		query += " WHERE " + pgx.Identifier{scope.Column}.Sanitize() + "::text = $1"
		args = append(args, scope.Value)
	}
	rows, err := i.db.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows for %s: %w", t, err)
	}
	return scalarInt(rows)
}

// SampleRows returns up to limit rows keyed by column name. The limit is
// clamped with ClampLimit.
func (i *Introspector) SampleRows(ctx context.Context, t TableIdentity, limit int, scope *Scope) ([]map[string]any, error) {
	limit = ClampLimit(limit)
	query := "SELECT * FROM " + t.Quoted()
	var args []any
	if scope != nil {
		query += " WHERE " + pgx.Identifier{scope.Column}.Sanitize() + "::text = $1"
		args = append(args, scope.Value)
	}
	query += " LIMIT " + strconv.Itoa(limit)

	rows, err := i.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sample rows for %s: %w", t, err)
	}
	return rows.Maps(), nil
}

// OwnerColumn returns the first candidate present among the table's columns.
func (i *Introspector) OwnerColumn(ctx context.Context, t TableIdentity, candidates []string) (string, bool, error) {
	cols, err := i.Columns(ctx, t)
	if err != nil {
		return "", false, err
	}
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[c.Name] = true
	}
	for _, cand := range candidates {
		if present[cand] {
			return cand, true, nil
		}
	}
	return "", false, nil
}

func tableIdentities(rows *Rows) []TableIdentity {
	out := make([]TableIdentity, 0, len(rows.Values))
	for _, v := range rows.Values {
		if len(v) < 2 {
			continue
		}
		out = append(out, TableIdentity{Schema: asString(v[0]), Name: asString(v[1])})
	}
	return out
}

func scalarInt(rows *Rows) (int64, error) {
	if len(rows.Values) == 0 || len(rows.Values[0]) == 0 {
		return 0, nil
	}
	switch v := rows.Values[0][0].(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unexpected count value %q: %w", v, err)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
