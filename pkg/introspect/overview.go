package introspect

import (
	"context"
	"fmt"
	"strings"
)

const NoTablesMessage = "No se encontraron tablas (excluyendo schemas del sistema)."

// Overview renders every non-system table with its columns, keys and
// indexes. maxTables <= 0 means no cap.
func (i *Introspector) Overview(ctx context.Context, maxTables int) (string, error) {
	tables, err := i.ListTables(ctx)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		return NoTablesMessage, nil
	}
	if maxTables > 0 && len(tables) > maxTables {
		tables = tables[:maxTables]
	}

	var lines []string
	for _, t := range tables {
		lines = append(lines, "# "+t.String())

		cols, err := i.Columns(ctx, t)
		if err != nil {
			return "", err
		}
		if len(cols) > 0 {
			lines = append(lines, "- Columnas:")
			for _, c := range cols {
				lines = append(lines, fmt.Sprintf("  - %s: %s nullable=%s", c.Name, c.Type, c.Nullable))
			}
		}

		pk, err := i.PrimaryKey(ctx, t)
		if err != nil {
			return "", err
		}
		if len(pk) > 0 {
			lines = append(lines, "- PK: "+strings.Join(pk, ", "))
		}

		fks, err := i.ForeignKeys(ctx, t)
		if err != nil {
			return "", err
		}
		if len(fks) > 0 {
			lines = append(lines, "- FKs:")
			for _, fk := range fks {
				lines = append(lines, fmt.Sprintf("  - %s: (%s) -> %s.%s(%s)",
					fk.Constraint, strings.Join(fk.Columns, ", "), fk.RefSchema, fk.RefTable, strings.Join(fk.RefColumns, ", ")))
			}
		}

		idx, err := i.Indexes(ctx, t)
		if err != nil {
			return "", err
		}
		if len(idx) > 0 {
			lines = append(lines, "- Índices:")
			for _, ix := range idx {
				lines = append(lines, fmt.Sprintf("  - %s: %s", ix.Name, ix.Def))
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n"), nil
}
