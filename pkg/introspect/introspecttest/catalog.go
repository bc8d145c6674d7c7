// Package introspecttest provides an in-memory catalog that answers the
// introspector's queries without a database.
package introspecttest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/galleta-assistant/galleta/pkg/introspect"
)

type Table struct {
	Schema      string
	Name        string
	Columns     []introspect.Column
	PrimaryKey  []string
	ForeignKeys []introspect.ForeignKey
	Indexes     []introspect.Index
	Rows        []map[string]any
}

func (t Table) identity() introspect.TableIdentity {
	return introspect.TableIdentity{Schema: t.Schema, Name: t.Name}
}

// Catalog implements introspect.DB. Tables are listed in the order given, so
// callers should keep them sorted by schema and name.
type Catalog struct {
	mu      sync.Mutex
	Tables  []Table
	Err     error
	queries []string
}

func NewCatalog(tables ...Table) *Catalog {
	return &Catalog{Tables: tables}
}

// Queries returns every query received so far.
func (c *Catalog) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

func (c *Catalog) QueryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queries)
}

func (c *Catalog) Query(ctx context.Context, query string, args ...any) (*introspect.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	if c.Err != nil {
		return nil, c.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case strings.Contains(query, "FROM pg_indexes"):
		t := c.lookup(args)
		out := &introspect.Rows{Columns: []string{"indexname", "indexdef"}}
		if t != nil {
			for _, ix := range t.Indexes {
				out.Values = append(out.Values, []any{ix.Name, ix.Def})
			}
		}
		return out, nil

	case strings.Contains(query, "'FOREIGN KEY'"):
		t := c.lookup(args)
		out := &introspect.Rows{Columns: []string{"constraint_name", "column_name", "foreign_table_schema", "foreign_table_name", "foreign_column_name"}}
		if t != nil {
			for _, fk := range t.ForeignKeys {
				for i, col := range fk.Columns {
					out.Values = append(out.Values, []any{fk.Constraint, col, fk.RefSchema, fk.RefTable, fk.RefColumns[i]})
				}
			}
		}
		return out, nil

	case strings.Contains(query, "'PRIMARY KEY'"):
		t := c.lookup(args)
		out := &introspect.Rows{Columns: []string{"column_name"}}
		if t != nil {
			for _, col := range t.PrimaryKey {
				out.Values = append(out.Values, []any{col})
			}
		}
		return out, nil

	case strings.Contains(query, "FROM information_schema.columns"):
		t := c.lookup(args)
		out := &introspect.Rows{Columns: []string{"column_name", "data_type", "is_nullable"}}
		if t != nil {
			for _, col := range t.Columns {
				out.Values = append(out.Values, []any{col.Name, col.Type, col.Nullable})
			}
		}
		return out, nil

	case strings.Contains(query, "table_schema = $1 AND table_name = $2"):
		out := &introspect.Rows{Columns: []string{"table_schema", "table_name"}}
		if t := c.lookup(args); t != nil {
			out.Values = append(out.Values, []any{t.Schema, t.Name})
		}
		return out, nil

	case strings.Contains(query, "AND table_name = $1"):
		out := &introspect.Rows{Columns: []string{"table_schema", "table_name"}}
		for _, t := range c.Tables {
			if len(args) > 0 && t.Name == args[0] {
				out.Values = append(out.Values, []any{t.Schema, t.Name})
			}
		}
		return out, nil

	case strings.Contains(query, "COUNT(*)") && strings.Contains(query, "information_schema.tables"):
		return &introspect.Rows{Columns: []string{"count"}, Values: [][]any{{int64(len(c.Tables))}}}, nil

	case strings.Contains(query, "information_schema.tables"):
		out := &introspect.Rows{Columns: []string{"table_schema", "table_name"}}
		for _, t := range c.Tables {
			out.Values = append(out.Values, []any{t.Schema, t.Name})
		}
		return out, nil

	case strings.HasPrefix(query, "SELECT COUNT(*) FROM "):
		t, err := c.byQuoted(query)
		if err != nil {
			return nil, err
		}
		rows := filter(t.Rows, query, args)
		return &introspect.Rows{Columns: []string{"count"}, Values: [][]any{{int64(len(rows))}}}, nil

	case strings.HasPrefix(query, "SELECT * FROM "):
		t, err := c.byQuoted(query)
		if err != nil {
			return nil, err
		}
		rows := filter(t.Rows, query, args)
		if i := strings.LastIndex(query, " LIMIT "); i >= 0 {
			n, err := strconv.Atoi(strings.TrimSpace(query[i+len(" LIMIT "):]))
			if err == nil && n < len(rows) {
				rows = rows[:n]
			}
		}
		out := &introspect.Rows{}
		for _, col := range t.Columns {
			out.Columns = append(out.Columns, col.Name)
		}
		for _, r := range rows {
			vals := make([]any, len(out.Columns))
			for i, col := range out.Columns {
				vals[i] = r[col]
			}
			out.Values = append(out.Values, vals)
		}
		return out, nil
	}
	return nil, fmt.Errorf("introspecttest: unsupported query: %s", query)
}

func (c *Catalog) lookup(args []any) *Table {
	if len(args) < 2 {
		return nil
	}
	for i := range c.Tables {
		if c.Tables[i].Schema == args[0] && c.Tables[i].Name == args[1] {
			return &c.Tables[i]
		}
	}
	return nil
}

func (c *Catalog) byQuoted(query string) (*Table, error) {
	for i := range c.Tables {
		q := c.Tables[i].identity().Quoted()
		if strings.Contains(query, "FROM "+q+" ") || strings.HasSuffix(query, "FROM "+q) {
			return &c.Tables[i], nil
		}
	}
	return nil, fmt.Errorf("relation in %q does not exist", query)
}

func filter(rows []map[string]any, query string, args []any) []map[string]any {
	start := strings.Index(query, " WHERE ")
	end := strings.Index(query, "::text = $1")
	if start < 0 || end < 0 || len(args) == 0 {
		return rows
	}
	col := strings.Trim(query[start+len(" WHERE "):end], `"`)
	want := fmt.Sprint(args[0])
	var out []map[string]any
	for _, r := range rows {
		if fmt.Sprint(r[col]) == want {
			out = append(out, r)
		}
	}
	return out
}
