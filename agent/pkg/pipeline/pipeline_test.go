package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/galleta-assistant/galleta/agent/pkg/llm"
	"github.com/galleta-assistant/galleta/pkg/introspect"
	"github.com/galleta-assistant/galleta/pkg/introspect/introspecttest"
	"github.com/galleta-assistant/galleta/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrompts = &Prompts{Plan: "PLAN", Reason: "REASON", Finalize: "FINALIZE"}

type testPipeline struct {
	pipeline *Pipeline
	planner  *mockLLM
	reasoner *mockLLM
	catalog  *introspecttest.Catalog
}

func newTestPipeline(t *testing.T, planner, reasoner *mockLLM, strict bool) *testPipeline {
	t.Helper()
	catalog := testCatalog()
	p, err := New(Config{
		Logger:       logger.NewNop(),
		Planner:      planner,
		Reasoner:     reasoner,
		Introspector: testIntrospector(t, catalog),
		Prompts:      testPrompts,
		OwnerColumns: testOwnerColumns,
		StrictLLM:    strict,
	})
	require.NoError(t, err)
	return &testPipeline{pipeline: p, planner: planner, reasoner: reasoner, catalog: catalog}
}

// plannerAndFinalizer answers planning calls with plan and finalizer calls
// with reply.
func plannerAndFinalizer(plan, reply string) *mockLLM {
	return &mockLLM{respond: func(system string, _ []llm.Message) (string, error) {
		if system == "PLAN" {
			return plan, nil
		}
		return reply, nil
	}}
}

func TestPipeline_New_Validation(t *testing.T) {
	_, err := New(Config{})
	require.ErrorContains(t, err, "planner")
	_, err = New(Config{Planner: &mockLLM{}})
	require.ErrorContains(t, err, "reasoner")
	_, err = New(Config{Planner: &mockLLM{}, Reasoner: &mockLLM{}})
	require.ErrorContains(t, err, "introspector")

	in := testIntrospector(t, testCatalog())
	p, err := New(Config{Planner: &mockLLM{}, Reasoner: &mockLLM{}, Introspector: in})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestPipeline_Run_AdministratorCountsTables(t *testing.T) {
	planner := plannerAndFinalizer(
		`{"intent":"count","actions":[{"type":"count_tables"}],"clarifications":[]}`,
		"La base de datos tiene 4 tablas.",
	)
	reasoner := &mockLLM{response: "Hay 4 tablas en total."}
	tp := newTestPipeline(t, planner, reasoner, false)

	res, err := tp.pipeline.Run(context.Background(), Input{
		Messages: []llm.Message{llm.User("¿cuántas tablas tiene la base de datos?")},
		Role:     RoleAdministrator,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, res.Outcome)
	assert.Equal(t, []State{StateCheckAccess, StatePlan, StateExecute, StateReason, StateFinalize}, res.Path)
	assert.Contains(t, res.Reply, "4")
	assert.Equal(t, &Plan{Intent: "count", Actions: []Action{{Type: ActionCountTables}}, Clarifications: []string{}}, res.State.Plan)
	assert.Equal(t, []DBResult{{Action: ActionCountTables, Result: int64(4)}}, res.State.DBResults)
	assert.Equal(t, "Hay 4 tablas en total.", res.State.ReasonedAnswer)

	msgs := res.State.Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.Assistant(res.Reply), msgs[2])

	// The finalizer sees the reasoned answer in its payload.
	calls := planner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "FINALIZE", calls[1].System)
	last := calls[1].Messages[len(calls[1].Messages)-1]
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(last.Content), &payload))
	assert.Equal(t, "Hay 4 tablas en total.", payload["reasoned_answer"])
}

func TestPipeline_Run_CustomerWithoutIDDenied(t *testing.T) {
	planner := &mockLLM{response: "{}"}
	reasoner := &mockLLM{response: "x"}
	tp := newTestPipeline(t, planner, reasoner, false)

	res, err := tp.pipeline.Run(context.Background(), Input{
		Messages: []llm.Message{llm.User("muéstrame mis datos")},
		Role:     RoleCustomer,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Equal(t, []State{StateCheckAccess}, res.Path)
	assert.Equal(t, DirectiveNoValidID, res.Reply)
	assert.Nil(t, res.State.Plan)
	assert.Empty(t, planner.Calls())
	assert.Empty(t, reasoner.Calls())
	assert.Zero(t, tp.catalog.QueryCount())

	// The directive is the only message added.
	require.Len(t, res.State.Messages, 2)
	assert.Equal(t, llm.System(DirectiveNoValidID), res.State.Messages[0])
}

func TestPipeline_Run_EmployeeDescribesColumns(t *testing.T) {
	planner := plannerAndFinalizer(
		`{"intent":"columns","actions":[{"type":"columns","table":"users"}],"clarifications":[]}`,
		"La tabla public.users tiene id (integer, no nulo) y email (text, nulo).",
	)
	tp := newTestPipeline(t, planner, &mockLLM{response: "ok"}, false)

	res, err := tp.pipeline.Run(context.Background(), Input{
		Messages: []llm.Message{llm.User("columnas de users")},
		Role:     RoleEmployee,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, res.Outcome)
	require.Len(t, res.State.DBResults, 1)
	r := res.State.DBResults[0]
	assert.Equal(t, "public.users", r.Table)
	assert.Equal(t, []introspect.Column{
		{Name: "id", Type: "integer", Nullable: "NO"},
		{Name: "email", Type: "text", Nullable: "YES"},
	}, r.Result)
	assert.Contains(t, res.Reply, "email")
}

func TestPipeline_Run_GlobalMetadataBlocked(t *testing.T) {
	for _, role := range []Role{RoleEndUser, RoleCustomer} {
		t.Run(string(role), func(t *testing.T) {
			// The model fails, so the fallback plans count_tables.
			planner := &mockLLM{err: errors.New("unavailable")}
			reasoner := &mockLLM{response: "x"}
			tp := newTestPipeline(t, planner, reasoner, false)

			res, err := tp.pipeline.Run(context.Background(), Input{
				Messages: []llm.Message{llm.User("¿cuántas tablas hay?")},
				Role:     role,
				UserID:   "7",
			})
			require.NoError(t, err)

			assert.Equal(t, OutcomeBlocked, res.Outcome)
			assert.Equal(t, DeniedGlobalMessage, res.Reply)
			assert.Equal(t, []State{StateCheckAccess, StatePlan, StateExecute}, res.Path)
			assert.Nil(t, res.State.DBResults)
			assert.Zero(t, tp.catalog.QueryCount())
			assert.Empty(t, reasoner.Calls())

			var assistant int
			for _, m := range res.State.Messages {
				if m.Role == llm.RoleAssistant {
					assistant++
				}
			}
			assert.Equal(t, 1, assistant)
		})
	}
}

func TestPipeline_Run_Clarification(t *testing.T) {
	planner := &mockLLM{response: "no es JSON"}
	reasoner := &mockLLM{response: "x"}
	tp := newTestPipeline(t, planner, reasoner, false)

	res, err := tp.pipeline.Run(context.Background(), Input{
		Messages: []llm.Message{llm.User("muéstrame las columnas")},
		Role:     RoleAdministrator,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeClarify, res.Outcome)
	assert.Equal(t, ClarifyTable, res.Reply)
	assert.Equal(t, []State{StateCheckAccess, StatePlan, StateClarify}, res.Path)
	assert.Empty(t, res.State.Plan.Actions)
	assert.Zero(t, tp.catalog.QueryCount())
	assert.Empty(t, reasoner.Calls())
}

func TestPipeline_Run_OverviewPassthrough(t *testing.T) {
	planner := plannerAndFinalizer(`{"intent":"overview","actions":[{"type":"overview"}]}`, "resumen inventado")
	tp := newTestPipeline(t, planner, &mockLLM{response: "x"}, false)

	res, err := tp.pipeline.Run(context.Background(), Input{
		Messages: []llm.Message{llm.User("dame la estructura completa")},
		Role:     RoleEmployee,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnswered, res.Outcome)
	assert.True(t, strings.HasPrefix(res.Reply, "# public.invoices\n"))
	assert.Contains(t, res.Reply, "# sales.invoices")
	assert.NotContains(t, res.Reply, "resumen inventado")
	require.Len(t, planner.Calls(), 1)
}

func TestPipeline_Run_DatabaseErrorSanitized(t *testing.T) {
	planner := &mockLLM{err: errors.New("unavailable")}
	reasoner := &mockLLM{response: "x"}
	tp := newTestPipeline(t, planner, reasoner, false)
	tp.catalog.Err = errors.New(`pq: password authentication failed for user "galleta"`)

	res, err := tp.pipeline.Run(context.Background(), Input{
		Messages: []llm.Message{llm.User("lista de tablas")},
		Role:     RoleAdministrator,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDBError, res.Outcome)
	assert.Equal(t, DBUnavailableMessage, res.Reply)
	assert.NotContains(t, res.Reply, "password")
	assert.Empty(t, reasoner.Calls())
}

func TestPipeline_Run_ModelFailures(t *testing.T) {
	plan := `{"intent":"rowcount","actions":[{"type":"rowcount","table":"orders"}]}`
	failingFinalizer := func() *mockLLM {
		return &mockLLM{respond: func(system string, _ []llm.Message) (string, error) {
			if system == "PLAN" {
				return plan, nil
			}
			return "", llm.ErrEmptyResponse
		}}
	}

	t.Run("degrades to templated reply", func(t *testing.T) {
		tp := newTestPipeline(t, failingFinalizer(), &mockLLM{err: errors.New("down")}, false)
		res, err := tp.pipeline.Run(context.Background(), Input{
			Messages: []llm.Message{llm.User("cuántas filas tiene orders")},
			Role:     RoleCustomer,
			UserID:   "7",
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeAnswered, res.Outcome)
		assert.Equal(t, "La tabla public.orders tiene 2 filas.", res.Reply)
		assert.Empty(t, res.State.ReasonedAnswer)
	})

	t.Run("strict propagates", func(t *testing.T) {
		tp := newTestPipeline(t, failingFinalizer(), &mockLLM{err: errors.New("down")}, true)
		_, err := tp.pipeline.Run(context.Background(), Input{
			Messages: []llm.Message{llm.User("cuántas filas tiene orders")},
			Role:     RoleEmployee,
		})
		require.ErrorContains(t, err, "reasoner: down")
	})
}

func TestPipeline_Run_DefaultsToEndUser(t *testing.T) {
	tp := newTestPipeline(t, &mockLLM{}, &mockLLM{}, false)
	res, err := tp.pipeline.Run(context.Background(), Input{Messages: []llm.Message{llm.User("hola")}})
	require.NoError(t, err)
	assert.Equal(t, RoleEndUser, res.State.UserRole)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Equal(t, DirectiveNoValidID, res.Reply)
}

func TestPipeline_Run_DoesNotMutateInput(t *testing.T) {
	planner := plannerAndFinalizer(`{"intent":"general","actions":[]}`, "¡Hola!")
	tp := newTestPipeline(t, planner, &mockLLM{response: "x"}, false)

	history := []llm.Message{llm.User("hola")}
	res, err := tp.pipeline.Run(context.Background(), Input{Messages: history, Role: RoleEmployee})
	require.NoError(t, err)
	assert.Equal(t, "¡Hola!", res.Reply)
	assert.Equal(t, []llm.Message{llm.User("hola")}, history)
}
