// Package prompt compiles the per-turn instruction block and keeps it within
// the token budget.
package prompt

import (
	"errors"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/xiaot623/gogo/convo/internal/classifier"
	"github.com/xiaot623/gogo/convo/internal/health"
)

// DefaultBudget is the instruction-block ceiling in estimated tokens.
const DefaultBudget = 600

// Stage records how far compression had to go.
type Stage string

const (
	StageNone       Stage = "none"
	StageWhitespace Stage = "whitespace"
	StageAggressive Stage = "aggressive"
	StageTruncated  Stage = "truncated"
)

// Identity carries the minimal facts about the assistant and the user.
type Identity struct {
	AssistantName string
	UserName      string
	Location      string
	Timezone      string
	Now           time.Time
}

// SearchFact is the output of search augmentation.
type SearchFact struct {
	Fact    string
	Sources []string
}

type Input struct {
	Identity       Identity
	Classification classifier.Result
	Health         *health.Verdict
	Search         *SearchFact
}

type Result struct {
	Text      string
	Tokens    int
	Stage     Stage
	Truncated bool
	Dropped   []string
}

type Compiler struct {
	Budget int
}

func New(budget int) *Compiler {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Compiler{Budget: budget}
}

// Sections returns the instruction sections for in, ordered by layer.
func Sections(in Input) []Section {
	c := in.Classification
	name := in.Identity.AssistantName
	if name == "" {
		name = "Saathi"
	}

	var out []Section
	switch c.SafetyLevel {
	case classifier.SafetyDangerous:
		out = append(out, blockedSection())
	case classifier.SafetyEscalate:
		out = append(out, crisisSection())
	}
	if in.Health != nil {
		out = append(out, healthSection(*in.Health))
	}
	out = append(out,
		coreSection(name),
		identitySection(in.Identity),
		languageSection(c),
		toneSection(c),
		hintSection(c),
		contextSection(in.Search),
	)

	kept := out[:0]
	for _, s := range out {
		if s.Text != "" {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Layer < kept[j].Layer })
	return kept
}

// Compile builds the instruction block. Over budget, it normalizes
// whitespace, then strips decoration and drops non-essential sections from
// the highest layer down, and only then hard-truncates. Safety text renders
// first so truncation cuts flavor before constraints.
func (c *Compiler) Compile(in Input) Result {
	budget := c.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	sections := Sections(in)
	text := render(sections)
	if EstimateTokens(text) <= budget {
		return Result{Text: text, Tokens: EstimateTokens(text), Stage: StageNone}
	}

	for i := range sections {
		sections[i].Text = normalizeWhitespace(sections[i].Text)
	}
	text = render(sections)
	if EstimateTokens(text) <= budget {
		return Result{Text: text, Tokens: EstimateTokens(text), Stage: StageWhitespace}
	}

	for i := range sections {
		sections[i].Text = stripDecoration(sections[i].Text)
	}
	var dropped []string
	text = render(sections)
	for i := len(sections) - 1; i >= 0 && EstimateTokens(text) > budget; i-- {
		if sections[i].Essential {
			continue
		}
		dropped = append(dropped, sections[i].Name)
		sections = append(sections[:i], sections[i+1:]...)
		text = render(sections)
	}
	if EstimateTokens(text) <= budget {
		return Result{Text: text, Tokens: EstimateTokens(text), Stage: StageAggressive, Dropped: dropped}
	}

	text = TrimToTokens(text, budget)
	return Result{Text: text, Tokens: EstimateTokens(text), Stage: StageTruncated, Truncated: true, Dropped: dropped}
}

func render(sections []Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

var errNoZone = errors.New("no timezone")

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, errNoZone
	}
	return time.LoadLocation(name)
}
