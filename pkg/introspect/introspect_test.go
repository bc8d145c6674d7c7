package introspect_test

import (
	"context"
	"errors"
	"testing"

	"github.com/galleta-assistant/galleta/pkg/introspect"
	"github.com/galleta-assistant/galleta/pkg/introspect/introspecttest"
	"github.com/galleta-assistant/galleta/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() *introspecttest.Catalog {
	return introspecttest.NewCatalog(
		introspecttest.Table{
			Schema: "public", Name: "orders",
			Columns: []introspect.Column{
				{Name: "id", Type: "integer", Nullable: "NO"},
				{Name: "user_id", Type: "integer", Nullable: "NO"},
				{Name: "total", Type: "numeric", Nullable: "YES"},
			},
			PrimaryKey: []string{"id"},
			ForeignKeys: []introspect.ForeignKey{{
				Constraint: "orders_user_id_fkey", Columns: []string{"user_id"},
				RefSchema: "public", RefTable: "users", RefColumns: []string{"id"},
			}},
			Indexes: []introspect.Index{{Name: "orders_pkey", Def: "CREATE UNIQUE INDEX orders_pkey ON public.orders USING btree (id)"}},
			Rows: []map[string]any{
				{"id": int64(1), "user_id": int64(7), "total": "10.50"},
				{"id": int64(2), "user_id": int64(8), "total": "99.00"},
				{"id": int64(3), "user_id": int64(7), "total": nil},
			},
		},
		introspecttest.Table{
			Schema: "public", Name: "users",
			Columns: []introspect.Column{
				{Name: "id", Type: "integer", Nullable: "NO"},
				{Name: "email", Type: "text", Nullable: "YES"},
			},
			PrimaryKey: []string{"id"},
		},
		introspecttest.Table{Schema: "sales", Name: "users"},
	)
}

func newIntrospector(t *testing.T, db introspect.DB) *introspect.Introspector {
	t.Helper()
	in, err := introspect.New(introspect.Config{Logger: logger.NewNop(), DB: db})
	require.NoError(t, err)
	return in
}

func TestIntrospect_New_Validation(t *testing.T) {
	_, err := introspect.New(introspect.Config{DB: sampleCatalog()})
	require.ErrorContains(t, err, "logger is required")
	_, err = introspect.New(introspect.Config{Logger: logger.NewNop()})
	require.ErrorContains(t, err, "database is required")
}

func TestIntrospect_ClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 5}, {-3, 5}, {101, 5}, {1000, 5}, {37, 37}, {1, 1}, {100, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, introspect.ClampLimit(tt.in), "limit %d", tt.in)
	}
}

func TestIntrospect_TableIdentity_Quoted(t *testing.T) {
	tbl := introspect.TableIdentity{Schema: "public", Name: `users"; DROP TABLE x; --`}
	assert.Equal(t, `"public"."users""; DROP TABLE x; --"`, tbl.Quoted())
	assert.Equal(t, "public.users\"; DROP TABLE x; --", tbl.String())
}

func TestIntrospect_Resolve(t *testing.T) {
	ctx := context.Background()
	in := newIntrospector(t, sampleCatalog())

	t.Run("unique unqualified", func(t *testing.T) {
		got, err := in.Resolve(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, introspect.TableIdentity{Schema: "public", Name: "orders"}, got)
	})

	t.Run("qualified", func(t *testing.T) {
		got, err := in.Resolve(ctx, `sales."users"`)
		require.NoError(t, err)
		assert.Equal(t, introspect.TableIdentity{Schema: "sales", Name: "users"}, got)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := in.Resolve(ctx, "ghosts")
		require.ErrorIs(t, err, introspect.ErrTableNotFound)
		assert.Equal(t, "La tabla ghosts no existe.", err.Error())
	})

	t.Run("qualified not found", func(t *testing.T) {
		_, err := in.Resolve(ctx, "sales.orders")
		require.ErrorIs(t, err, introspect.ErrTableNotFound)
		assert.Equal(t, "La tabla sales.orders no existe.", err.Error())
	})

	t.Run("ambiguous lists sorted schemas", func(t *testing.T) {
		_, err := in.Resolve(ctx, "users")
		require.ErrorIs(t, err, introspect.ErrAmbiguousTable)
		var rerr *introspect.ResolutionError
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, []string{"public", "sales"}, rerr.Schemas)
		assert.Equal(t, "La tabla users existe en múltiples esquemas: public, sales. Especifica el esquema.", err.Error())
	})

	t.Run("too many parts", func(t *testing.T) {
		_, err := in.Resolve(ctx, "a.b.c")
		require.ErrorIs(t, err, introspect.ErrTableNotFound)
	})

	t.Run("db failure is not a resolution error", func(t *testing.T) {
		db := sampleCatalog()
		db.Err = errors.New("connection refused")
		_, err := newIntrospector(t, db).Resolve(ctx, "orders")
		require.Error(t, err)
		var rerr *introspect.ResolutionError
		assert.False(t, errors.As(err, &rerr))
	})
}

func TestIntrospect_Metadata(t *testing.T) {
	ctx := context.Background()
	in := newIntrospector(t, sampleCatalog())
	orders := introspect.TableIdentity{Schema: "public", Name: "orders"}

	tables, err := in.ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 3)

	n, err := in.CountTables(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	cols, err := in.Columns(ctx, orders)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, introspect.Column{Name: "total", Type: "numeric", Nullable: "YES"}, cols[2])

	pk, err := in.PrimaryKey(ctx, orders)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, pk)

	fks, err := in.ForeignKeys(ctx, orders)
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "users", fks[0].RefTable)
}

func TestIntrospect_RowsAndScope(t *testing.T) {
	ctx := context.Background()
	in := newIntrospector(t, sampleCatalog())
	orders := introspect.TableIdentity{Schema: "public", Name: "orders"}

	n, err := in.RowCount(ctx, orders, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = in.RowCount(ctx, orders, &introspect.Scope{Column: "user_id", Value: "7"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rows, err := in.SampleRows(ctx, orders, 2, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "10.50", rows[0]["total"])

	rows, err = in.SampleRows(ctx, orders, 0, &introspect.Scope{Column: "user_id", Value: "8"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 2, rows[0]["id"])

	col, ok, err := in.OwnerColumn(ctx, orders, []string{"usuario_id", "user_id"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user_id", col)

	_, ok, err = in.OwnerColumn(ctx, introspect.TableIdentity{Schema: "public", Name: "users"}, []string{"user_id"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntrospect_Overview(t *testing.T) {
	ctx := context.Background()

	t.Run("formats tables", func(t *testing.T) {
		in := newIntrospector(t, sampleCatalog())
		got, err := in.Overview(ctx, 1)
		require.NoError(t, err)
		want := "# public.orders\n" +
			"- Columnas:\n" +
			"  - id: integer nullable=NO\n" +
			"  - user_id: integer nullable=NO\n" +
			"  - total: numeric nullable=YES\n" +
			"- PK: id\n" +
			"- FKs:\n" +
			"  - orders_user_id_fkey: (user_id) -> public.users(id)\n" +
			"- Índices:\n" +
			"  - orders_pkey: CREATE UNIQUE INDEX orders_pkey ON public.orders USING btree (id)\n"
		assert.Equal(t, want, got)
	})

	t.Run("no tables", func(t *testing.T) {
		in := newIntrospector(t, introspecttest.NewCatalog())
		got, err := in.Overview(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, introspect.NoTablesMessage, got)
	})

	t.Run("uncapped", func(t *testing.T) {
		in := newIntrospector(t, sampleCatalog())
		got, err := in.Overview(ctx, 0)
		require.NoError(t, err)
		assert.Contains(t, got, "# public.users\n")
		assert.Contains(t, got, "# sales.users\n")
	})
}
