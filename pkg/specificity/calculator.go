package specificity

import (
	"regexp"
	"strings"
)

// Regular expressions for selector fragments
var (
	idRegex            = regexp.MustCompile(`#[a-zA-Z_][\w-]*`)
	pseudoElementRegex = regexp.MustCompile(`::[a-zA-Z][\w-]*`)
	classRegex         = regexp.MustCompile(`\.[a-zA-Z_][\w-]*`)
	attributeRegex     = regexp.MustCompile(`\[[^\]]*\]`)
	pseudoClassRegex   = regexp.MustCompile(`:[a-zA-Z][\w-]*(?:\([^)]*\))?`)
	combinatorRegex    = regexp.MustCompile(`[>+~*]`)
	typeSelectorRegex  = regexp.MustCompile(`^[a-zA-Z][\w-]*$`)

	// Selector whitespace: ASCII spaces, the Unicode space separators and
	// U+FEFF. U+0085 is not whitespace here.
	whitespaceRegex = regexp.MustCompile(`[\t\n\v\f\r \x{a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}]+`)
)

// pattern is a single extraction pass. Passes run in table order and each one
// removes what it matched, so later passes never see classified text.
type pattern struct {
	name     string
	re       *regexp.Regexp
	category Category
}

// Pseudo-elements must be taken before pseudo-classes, otherwise the second
// colon of "::before" would be read as a pseudo-class.
var passes = []pattern{
	{"id", idRegex, Identifier},
	{"pseudo-element", pseudoElementRegex, ElementLike},
	{"class", classRegex, ClassLike},
	{"attribute", attributeRegex, ClassLike},
	{"pseudo-class", pseudoClassRegex, ClassLike},
}

// Scorer is anything that can compute the specificity of a selector.
type Scorer interface {
	Calculate(selector string) Result
}

// Calculator computes selector specificity. It holds no mutable state and
// is safe for concurrent use.
type Calculator struct {
	rules *Rules
}

var defaultCalculator = NewCalculator()

// NewCalculator creates a calculator with the default rules.
func NewCalculator() *Calculator {
	return NewCalculatorWithRules(DefaultRules())
}

// NewCalculatorWithRules creates a calculator with custom rules. A nil rules
// value selects the defaults.
func NewCalculatorWithRules(rules *Rules) *Calculator {
	if rules == nil || rules.negationRegex == nil {
		rules = DefaultRules()
	}
	return &Calculator{rules: rules}
}

// Compute returns the specificity of selector using the default rules.
func Compute(selector string) Result {
	return defaultCalculator.Calculate(selector)
}

// Calculate returns the specificity of selector. It never fails: fragments
// it does not recognise contribute nothing.
func (c *Calculator) Calculate(selector string) Result {
	var result Result
	s := selector

	// Negation arguments are scored recursively; the negation adds no weight
	// of its own.
	s = replaceAll(c.rules.negationRegex, s, func(match []string) string {
		result.merge(c.Calculate(match[1]))
		return ""
	})

	for _, p := range passes {
		s = replaceAll(p.re, s, func(match []string) string {
			result.add(NewToken(match[0], p.category))
			return ""
		})
	}

	s = combinatorRegex.ReplaceAllString(s, " ")

	for _, part := range whitespaceRegex.Split(s, -1) {
		if part != "" && typeSelectorRegex.MatchString(part) {
			result.add(NewToken(part, ElementLike))
		}
	}

	return result
}

// replaceAll replaces every non-overlapping match of re in s, left to right,
// with the output of repl, which receives the match and its submatches.
func replaceAll(re *regexp.Regexp, s string, repl func(match []string) string) string {
	indexes := re.FindAllStringSubmatchIndex(s, -1)
	if len(indexes) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, loc := range indexes {
		match := make([]string, len(loc)/2)
		for i := range match {
			if loc[2*i] >= 0 {
				match[i] = s[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(repl(match))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
