// Package personas selects a role-specific system prompt by keyword matching
// against the assembled context. Selection is a pure function of the text:
// the table is evaluated in fixed priority order, first match wins, and no
// match falls back to the generic analyst persona.
package personas

import "strings"

// Persona pairs a keyword set with a specialized system prompt.
type Persona struct {
	ID           string
	Keywords     []string
	SystemPrompt string
}

// Default is the generic persona used when no keyword set matches.
var Default = Persona{
	ID:           "analyst",
	SystemPrompt: "You are an expert business analyst. Provide clear, actionable insights based on the content.",
}

// table is evaluated top to bottom. Keyword sets are lower-case and
// intentionally multilingual; matching is plain substring containment.
var table = []Persona{
	{
		ID:           "finance",
		Keywords:     []string{"revenue", "финанс", "бюджет", "p&l"},
		SystemPrompt: "You are a CFO-level financial analyst. Focus on financial metrics, trends, risks, and actionable recommendations.",
	},
	{
		ID:           "competitive",
		Keywords:     []string{"competitor", "конкурент", "market share"},
		SystemPrompt: "You are a competitive intelligence analyst. Focus on competitive positioning, market dynamics, and strategic implications.",
	},
	{
		ID:           "product",
		Keywords:     []string{"product", "feature", "roadmap", "продукт"},
		SystemPrompt: "You are a CPO-level product strategist. Focus on product opportunities, user needs, and prioritization.",
	},
	{
		ID:           "sales",
		Keywords:     []string{"sales", "deal", "pipeline", "продажи"},
		SystemPrompt: "You are a VP Sales analyst. Focus on deal analysis, win/loss patterns, and sales strategy.",
	},
	{
		ID:           "operations",
		Keywords:     []string{"ops", "process", "efficiency", "процесс"},
		SystemPrompt: "You are a COO-level operations analyst. Focus on operational efficiency, bottlenecks, and process improvements.",
	},
}

// Classify picks the persona for the given context text.
func Classify(text string) Persona {
	haystack := strings.ToLower(text)
	for _, p := range table {
		for _, kw := range p.Keywords {
			if strings.Contains(haystack, kw) {
				return p
			}
		}
	}
	return Default
}

// All returns the selectable personas, default last.
func All() []Persona {
	out := make([]Persona, 0, len(table)+1)
	out = append(out, table...)
	return append(out, Default)
}
