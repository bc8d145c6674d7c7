package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_Vocabulary_Classify(t *testing.T) {
	v, err := DefaultVocabulary()
	require.NoError(t, err)

	tests := []struct {
		text string
		want string
	}{
		{"¿cuántas tablas hay?", IntentCount},
		{"¿Cuantas tablas tiene la base de datos?", IntentCount},
		{"How many tables are there?", IntentCount},
		{"muéstrame las tablas", IntentList},
		{"qué tablas existen", IntentList},
		{"tablas disponibles por favor", IntentList},
		{"muéstrame las columnas", IntentColumns},
		{"describe la tabla users", IntentColumns},
		{"estructura completa de la base", IntentOverview},
		{"todas las tablas y columnas", IntentOverview},
		{"¿Cuántas filas tiene orders?", IntentRowCount},
		{"muéstrame los primeros 10 registros de orders", IntentSample},
		{"muestra 10 filas de users", IntentSample},
		{"dame 10 filas de la tabla ventas.pedidos", IntentSample},
		{"¿cuántas filas de users hay?", IntentRowCount},
		{"hola, ¿cómo estás?", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Classify(tt.text))
		})
	}
}

func TestPipeline_Vocabulary_TableMention(t *testing.T) {
	v, err := DefaultVocabulary()
	require.NoError(t, err)

	tests := []struct {
		text string
		want string
	}{
		{"columnas de users", "users"},
		{"columnas de la tabla sales.users", "sales.users"},
		{"cuántas filas tiene la tabla de clientes", "clientes"},
		{"describe table Orders", "Orders"},
		{"estructura de public.orders.", "public.orders"},
		{"dame inventory.items por favor", "inventory.items"},
		{"muéstrame las columnas", ""},
		{"cuántos registros hay en la base de datos", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, v.TableMention(tt.text))
		})
	}
}

func TestPipeline_Vocabulary_FallbackPlan(t *testing.T) {
	v, err := DefaultVocabulary()
	require.NoError(t, err)

	tests := []struct {
		text string
		want Plan
	}{
		{
			text: "¿cuántas tablas hay?",
			want: Plan{Intent: IntentCount, Actions: []Action{{Type: ActionCountTables}}, Clarifications: []string{}},
		},
		{
			text: "muéstrame las columnas",
			want: Plan{Intent: IntentColumns, Actions: []Action{}, Clarifications: []string{ClarifyTable}},
		},
		{
			text: "columnas de users",
			want: Plan{Intent: IntentColumns, Actions: []Action{{Type: ActionColumns, Table: "users"}}, Clarifications: []string{}},
		},
		{
			text: "muéstrame las primeras 20 filas de la tabla orders",
			want: Plan{Intent: IntentSample, Actions: []Action{{Type: ActionSample, Table: "orders", Limit: 20}}, Clarifications: []string{}},
		},
		{
			text: "ver filas de orders",
			want: Plan{Intent: IntentSample, Actions: []Action{{Type: ActionSample, Table: "orders", Limit: 5}}, Clarifications: []string{}},
		},
		{
			text: "muestra 10 filas de users",
			want: Plan{Intent: IntentSample, Actions: []Action{{Type: ActionSample, Table: "users", Limit: 10}}, Clarifications: []string{}},
		},
		{
			text: "dame 10 filas de la tabla ventas.pedidos",
			want: Plan{Intent: IntentSample, Actions: []Action{{Type: ActionSample, Table: "ventas.pedidos", Limit: 10}}, Clarifications: []string{}},
		},
		{
			text: "dame el esquema completo",
			want: Plan{Intent: IntentOverview, Actions: []Action{{Type: ActionOverview}}, Clarifications: []string{}},
		},
		{
			text: "hola Galleta",
			want: Plan{Intent: IntentGeneral, Actions: []Action{}, Clarifications: []string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := v.FallbackPlan(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FallbackPlan() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPipeline_NewVocabulary_Errors(t *testing.T) {
	_, err := NewVocabulary([]byte("intents: ["))
	require.Error(t, err)
	_, err = NewVocabulary([]byte("intents: []\ntable_markers: [de]"))
	require.ErrorContains(t, err, "no intents")
	_, err = NewVocabulary([]byte("intents:\n  - name: count\n    phrases: [x]\n"))
	require.ErrorContains(t, err, "no table markers")
}

func TestPipeline_FoldText(t *testing.T) {
	assert.Equal(t, "¿cuantas tablas hay? muestrame", foldText("¿Cuántas TABLAS hay? MUÉSTRAME"))
	assert.Equal(t, "informacion", foldText("Información"))
}
