package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/galleta-assistant/galleta/pkg/introspect"
	"github.com/galleta-assistant/galleta/pkg/metrics"
)

const (
	DeniedMessage           = "❌ Acceso denegado. No tienes permisos suficientes."
	DeniedGlobalMessage     = "❌ No tienes permisos para consultar metadatos globales de BD."
	DBUnavailableMessage    = "Error al consultar la base de datos. Intenta de nuevo más tarde."
	missingTableMessage     = "Tabla no especificada"
	deniedRowsMessageFormat = "No tienes permisos para ver filas de la tabla %s."
)

// ErrGlobalMetadataDenied is returned when a self-scoped role's plan touches
// database-wide metadata.
var ErrGlobalMetadataDenied = errors.New("global metadata denied")

// Introspector is the subset of the schema introspector the executor uses.
type Introspector interface {
	ListTables(ctx context.Context) ([]introspect.TableIdentity, error)
	CountTables(ctx context.Context) (int64, error)
	Resolve(ctx context.Context, raw string) (introspect.TableIdentity, error)
	Columns(ctx context.Context, t introspect.TableIdentity) ([]introspect.Column, error)
	RowCount(ctx context.Context, t introspect.TableIdentity, scope *introspect.Scope) (int64, error)
	SampleRows(ctx context.Context, t introspect.TableIdentity, limit int, scope *introspect.Scope) ([]map[string]any, error)
	OwnerColumn(ctx context.Context, t introspect.TableIdentity, candidates []string) (string, bool, error)
	Overview(ctx context.Context, maxTables int) (string, error)
}

// Executor authorizes a plan against the caller's role and runs it action by
// action, in plan order. It is the only place where access to global
// metadata is enforced.
type Executor struct {
	log               *slog.Logger
	in                Introspector
	ownerColumns      []string
	overviewMaxTables int
}

func NewExecutor(log *slog.Logger, in Introspector, ownerColumns []string, overviewMaxTables int) *Executor {
	return &Executor{log: log, in: in, ownerColumns: ownerColumns, overviewMaxTables: overviewMaxTables}
}

// Authorize rejects the whole plan if a self-scoped role asks for any
// global action. It performs no queries.
func Authorize(role Role, plan Plan) error {
	if role.Elevated() {
		return nil
	}
	for _, a := range plan.Actions {
		if a.Type.Global() {
			return ErrGlobalMetadataDenied
		}
	}
	return nil
}

// Execute returns one result per action. Table resolution failures and
// scope denials become per-action errors; any other introspection error
// aborts the remaining actions and is returned.
func (e *Executor) Execute(ctx context.Context, role Role, userID string, plan Plan) ([]DBResult, error) {
	if err := Authorize(role, plan); err != nil {
		metrics.DBActionsTotal.WithLabelValues("plan", "denied").Inc()
		return nil, err
	}

	results := make([]DBResult, 0, len(plan.Actions))
	for _, action := range plan.Actions {
		res, err := e.run(ctx, role, userID, action)
		if err != nil {
			metrics.DBActionsTotal.WithLabelValues(string(action.Type), "failed").Inc()
			return nil, fmt.Errorf("failed to execute %s: %w", action.Type, err)
		}
		status := "ok"
		if res.Error != "" {
			status = "error"
		}
		metrics.DBActionsTotal.WithLabelValues(string(action.Type), status).Inc()
		results = append(results, res)
	}
	return results, nil
}

func (e *Executor) run(ctx context.Context, role Role, userID string, action Action) (DBResult, error) {
	res := DBResult{Action: action.Type}

	switch action.Type {
	case ActionOverview:
		text, err := e.in.Overview(ctx, e.overviewMaxTables)
		if err != nil {
			return res, err
		}
		res.Result = text
		return res, nil

	case ActionCountTables:
		n, err := e.in.CountTables(ctx)
		if err != nil {
			return res, err
		}
		res.Result = n
		return res, nil

	case ActionListTables:
		tables, err := e.in.ListTables(ctx)
		if err != nil {
			return res, err
		}
		names := make([]string, 0, len(tables))
		for _, t := range tables {
			names = append(names, t.String())
		}
		res.Result = names
		return res, nil
	}

	if !action.Type.TableScoped() {
		res.Error = fmt.Sprintf("Acción no soportada: %s", action.Type)
		return res, nil
	}
	if action.Table == "" {
		res.Error = missingTableMessage
		return res, nil
	}

	table, err := e.in.Resolve(ctx, action.Table)
	if err != nil {
		var rerr *introspect.ResolutionError
		if errors.As(err, &rerr) {
			res.Error = rerr.Error()
			return res, nil
		}
		return res, err
	}
	res.Table = table.String()

	if action.Type == ActionColumns {
		cols, err := e.in.Columns(ctx, table)
		if err != nil {
			return res, err
		}
		res.Result = cols
		return res, nil
	}

	var scope *introspect.Scope
	if role.SelfScoped() {
		col, ok, err := e.in.OwnerColumn(ctx, table, e.ownerColumns)
		if err != nil {
			return res, err
		}
		if !ok {
			res.Error = fmt.Sprintf(deniedRowsMessageFormat, table)
			return res, nil
		}
		scope = &introspect.Scope{Column: col, Value: userID}
	}

	if action.Type == ActionRowCount {
		n, err := e.in.RowCount(ctx, table, scope)
		if err != nil {
			return res, err
		}
		res.Result = n
		return res, nil
	}

	rows, err := e.in.SampleRows(ctx, table, introspect.ClampLimit(action.Limit), scope)
	if err != nil {
		return res, err
	}
	res.Result = rows
	return res, nil
}
