package specificity

import (
	"strings"
)

// Renderer turns results into the score and breakdown lines shown to users.
type Renderer struct {
	scorer Scorer
	rules  *Rules
}

// NewRenderer creates a renderer. A nil scorer selects a Calculator built
// from the same rules; nil rules select the defaults.
func NewRenderer(scorer Scorer, rules *Rules) *Renderer {
	if rules == nil {
		rules = DefaultRules()
	}
	if scorer == nil {
		scorer = NewCalculatorWithRules(rules)
	}
	return &Renderer{scorer: scorer, rules: rules}
}

// Score renders the specificity vector, e.g. "0, 1, 2, 0".
func (r *Renderer) Score(res Result) string {
	return res.String()
}

// Label returns the display label for a category.
func (r *Renderer) Label(category Category) string {
	if label, ok := r.rules.Labels[category]; ok {
		return label
	}
	return string(category)
}

// Breakdown renders each token as "text → label". A result without tokens
// renders as the configured empty message, even though its score is zero
// as well.
func (r *Renderer) Breakdown(res Result) string {
	if !res.HasTokens() {
		return r.rules.Empty
	}

	parts := make([]string, len(res.Tokens))
	for i, tok := range res.Tokens {
		parts[i] = tok.Text + " " + r.rules.Arrow + " " + r.Label(tok.Category)
	}
	return strings.Join(parts, r.rules.Separator)
}

// Render scores the selector and returns both display lines. Blank input
// yields a zero score and an empty breakdown, which is distinct from the
// message shown when text was given but nothing in it could be scored.
func (r *Renderer) Render(selector string) (score, breakdown string) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return Result{}.String(), ""
	}

	res := r.scorer.Calculate(selector)
	return r.Score(res), r.Breakdown(res)
}
