package pipeline

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed intents.yaml
var intentsYAML []byte

const (
	IntentOverview = "overview"
	IntentCount    = "count"
	IntentList     = "list"
	IntentColumns  = "columns"
	IntentRowCount = "rowcount"
	IntentSample   = "sample"
	IntentGeneral  = "general"
)

// ClarifyTable is asked when a table-scoped request names no table.
const ClarifyTable = "¿De qué tabla? Indica 'schema.tabla' o solo 'tabla'."

type vocabularyConfig struct {
	Intents      []intentConfig `yaml:"intents"`
	TableMarkers []string       `yaml:"table_markers"`
	Stopwords    []string       `yaml:"stopwords"`
}

type intentConfig struct {
	Name     string   `yaml:"name"`
	Phrases  []string `yaml:"phrases"`
	Contains string   `yaml:"contains"`
	Unless   string   `yaml:"unless"`
}

// Vocabulary classifies utterances by phrase matching.
type Vocabulary struct {
	intents   []intentConfig
	mention   *regexp.Regexp
	stopwords map[string]bool
}

var (
	dottedTableRe = regexp.MustCompile(`([A-Za-z_]\w*)\.([A-Za-z_]\w*)`)
	limitRe       = regexp.MustCompile(`\b(\d{1,4})\b`)

	defaultVocabulary     *Vocabulary
	defaultVocabularyOnce sync.Once
	defaultVocabularyErr  error
)

// DefaultVocabulary returns the embedded vocabulary. It's safe to call
// concurrently.
func DefaultVocabulary() (*Vocabulary, error) {
	defaultVocabularyOnce.Do(func() {
		defaultVocabulary, defaultVocabularyErr = NewVocabulary(intentsYAML)
	})
	return defaultVocabulary, defaultVocabularyErr
}

func NewVocabulary(data []byte) (*Vocabulary, error) {
	var cfg vocabularyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse intent vocabulary: %w", err)
	}
	if len(cfg.Intents) == 0 {
		return nil, fmt.Errorf("intent vocabulary has no intents")
	}
	if len(cfg.TableMarkers) == 0 {
		return nil, fmt.Errorf("intent vocabulary has no table markers")
	}

	v := &Vocabulary{stopwords: make(map[string]bool)}
	for _, in := range cfg.Intents {
		if in.Name == "" {
			return nil, fmt.Errorf("intent without name")
		}
		folded := intentConfig{Name: in.Name, Contains: foldText(in.Contains), Unless: foldText(in.Unless)}
		for _, p := range in.Phrases {
			folded.Phrases = append(folded.Phrases, foldText(p))
		}
		v.intents = append(v.intents, folded)
	}
	for _, w := range cfg.Stopwords {
		v.stopwords[foldText(w)] = true
	}

	markers := make([]string, 0, len(cfg.TableMarkers))
	for _, m := range cfg.TableMarkers {
		markers = append(markers, regexp.QuoteMeta(m))
	}
	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(markers, "|") + `)\s+([A-Za-z_][\w."]*)`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile table marker pattern: %w", err)
	}
	v.mention = re
	return v, nil
}

// Classify returns the first matching intent, or "" when nothing matches.
func (v *Vocabulary) Classify(text string) string {
	t := foldText(text)
	for _, in := range v.intents {
		for _, p := range in.Phrases {
			if p != "" && strings.Contains(t, p) {
				return in.Name
			}
		}
		if in.Contains != "" && strings.Contains(t, in.Contains) &&
			(in.Unless == "" || !strings.Contains(t, in.Unless)) {
			return in.Name
		}
	}
	return ""
}

// TableMention extracts a table token following a marker word, or a dotted
// schema.table pair anywhere in the text.
func (v *Vocabulary) TableMention(text string) string {
	// Matches may chain ("tabla de clientes"), so resume each search at the
	// skipped token rather than after the whole match.
	for offset := 0; offset < len(text); {
		loc := v.mention.FindStringSubmatchIndex(text[offset:])
		if loc == nil {
			break
		}
		raw := text[offset+loc[2] : offset+loc[3]]
		token := strings.TrimRight(strings.Trim(raw, `"`), ".")
		if token != "" && !v.stopwords[foldText(token)] {
			return token
		}
		offset += loc[2]
	}
	if m := dottedTableRe.FindStringSubmatch(text); m != nil {
		return m[1] + "." + m[2]
	}
	return ""
}

// FallbackPlan builds a plan from phrase matching alone.
func (v *Vocabulary) FallbackPlan(text string) Plan {
	intent := v.Classify(text)
	plan := Plan{Intent: intent, Actions: []Action{}, Clarifications: []string{}}
	switch intent {
	case IntentOverview:
		plan.Actions = append(plan.Actions, Action{Type: ActionOverview})
	case IntentCount:
		plan.Actions = append(plan.Actions, Action{Type: ActionCountTables})
	case IntentList:
		plan.Actions = append(plan.Actions, Action{Type: ActionListTables})
	case IntentColumns, IntentRowCount, IntentSample:
		table := v.TableMention(text)
		if table == "" {
			plan.Clarifications = append(plan.Clarifications, ClarifyTable)
			break
		}
		action := Action{Type: intentAction(intent), Table: table}
		if intent == IntentSample {
			action.Limit = requestedLimit(text, table)
		}
		plan.Actions = append(plan.Actions, action)
	default:
		plan.Intent = IntentGeneral
	}
	return plan
}

func intentAction(intent string) ActionType {
	switch intent {
	case IntentColumns:
		return ActionColumns
	case IntentRowCount:
		return ActionRowCount
	default:
		return ActionSample
	}
}

// requestedLimit picks the first standalone number outside the table name,
// defaulting to 5.
func requestedLimit(text, table string) int {
	for _, m := range limitRe.FindAllString(strings.Replace(text, table, "", 1), -1) {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	return 5
}

// foldText lower-cases and strips diacritics.
func foldText(s string) string {
	s = strings.ToLower(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
