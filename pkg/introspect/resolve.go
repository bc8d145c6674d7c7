package introspect

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrTableNotFound  = errors.New("table not found")
	ErrAmbiguousTable = errors.New("ambiguous table")
)

// ResolutionError is a user-facing table lookup failure. Its message is
// safe to show to end users.
type ResolutionError struct {
	Kind    error
	Name    string
	Schemas []string
}

func (e *ResolutionError) Error() string {
	if errors.Is(e.Kind, ErrAmbiguousTable) {
		return fmt.Sprintf("La tabla %s existe en múltiples esquemas: %s. Especifica el esquema.", e.Name, strings.Join(e.Schemas, ", "))
	}
	return fmt.Sprintf("La tabla %s no existe.", e.Name)
}

func (e *ResolutionError) Unwrap() error { return e.Kind }

// Resolve maps a raw user token to exactly one table. A "schema.table" token
// is looked up as is; a bare name is searched across all non-system schemas.
// Zero matches yield ErrTableNotFound and several yield ErrAmbiguousTable
// with the candidate schemas sorted.
func (i *Introspector) Resolve(ctx context.Context, raw string) (TableIdentity, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ".")
	for j := range parts {
		parts[j] = strings.Trim(strings.TrimSpace(parts[j]), `"`)
	}
	display := strings.Join(parts, ".")

	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		rows, err := i.db.Query(ctx, resolveQualifiedSQL, parts[0], parts[1])
		if err != nil {
			return TableIdentity{}, fmt.Errorf("failed to resolve table %s: %w", display, err)
		}
		matches := tableIdentities(rows)
		if len(matches) == 0 {
			return TableIdentity{}, &ResolutionError{Kind: ErrTableNotFound, Name: display}
		}
		return matches[0], nil

	case len(parts) == 1 && parts[0] != "":
		rows, err := i.db.Query(ctx, resolveUnqualifiedSQL, parts[0])
		if err != nil {
			return TableIdentity{}, fmt.Errorf("failed to resolve table %s: %w", display, err)
		}
		matches := tableIdentities(rows)
		switch len(matches) {
		case 0:
			return TableIdentity{}, &ResolutionError{Kind: ErrTableNotFound, Name: display}
		case 1:
			return matches[0], nil
		default:
			schemas := make([]string, 0, len(matches))
			for _, m := range matches {
				schemas = append(schemas, m.Schema)
			}
			slices.Sort(schemas)
			schemas = slices.Compact(schemas)
			return TableIdentity{}, &ResolutionError{Kind: ErrAmbiguousTable, Name: display, Schemas: schemas}
		}

	default:
		return TableIdentity{}, &ResolutionError{Kind: ErrTableNotFound, Name: display}
	}
}
