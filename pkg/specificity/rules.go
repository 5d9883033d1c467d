package specificity

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RulesFile represents the structure of a YAML rules file
type RulesFile struct {
	Negation  []string   `yaml:"negation,omitempty"`
	Labels    LabelRules `yaml:"labels,omitempty"`
	Arrow     string     `yaml:"arrow,omitempty"`
	Separator string     `yaml:"separator,omitempty"`
	Empty     string     `yaml:"empty,omitempty"`
}

// LabelRules holds the display label of each category
type LabelRules struct {
	ID      string `yaml:"id,omitempty"`
	Class   string `yaml:"class,omitempty"`
	Element string `yaml:"element,omitempty"`
}

// Rules holds everything a Calculator and a Renderer can be customised with
type Rules struct {
	// Functional pseudo-classes whose argument is scored in place of the
	// pseudo-class itself, without the leading colon.
	Negation []string

	Labels    map[Category]string
	Arrow     string
	Separator string
	Empty     string

	// Precompiled from Negation
	negationRegex *regexp.Regexp
}

// DefaultRules returns the default calculator rules
func DefaultRules() *Rules {
	rules := &Rules{
		Negation: []string{"not"},
		Labels: map[Category]string{
			Identifier:  "ID",
			ClassLike:   "Class/Attr/Pseudo",
			ElementLike: "Element/Pseudo-el",
		},
		Arrow:     "→",
		Separator: "  |  ",
		Empty:     "No scorable tokens found.",
	}

	// Default rules should never fail to compile, so we panic if they do
	if err := rules.BuildNegationPattern(); err != nil {
		panic(fmt.Sprintf("Invalid default rules: %v", err))
	}

	return rules
}

// LoadRulesFile loads and parses a YAML rules file
func LoadRulesFile(filename string) (*RulesFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file '%s': %w", filename, err)
	}

	var rules RulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in rules file '%s': %w", filename, err)
	}

	return &rules, nil
}

// ApplyRulesToDefaults applies the rules from a RulesFile on top of DefaultRules.
// Fields left empty in the file keep their default value.
func ApplyRulesToDefaults(rules *RulesFile) (*Rules, error) {
	calcRules := DefaultRules()
	if rules == nil {
		return calcRules, nil
	}

	if len(rules.Negation) > 0 {
		calcRules.Negation = append([]string(nil), rules.Negation...)
	}

	if rules.Labels.ID != "" {
		calcRules.Labels[Identifier] = rules.Labels.ID
	}
	if rules.Labels.Class != "" {
		calcRules.Labels[ClassLike] = rules.Labels.Class
	}
	if rules.Labels.Element != "" {
		calcRules.Labels[ElementLike] = rules.Labels.Element
	}

	if rules.Arrow != "" {
		calcRules.Arrow = rules.Arrow
	}
	if rules.Separator != "" {
		calcRules.Separator = rules.Separator
	}
	if rules.Empty != "" {
		calcRules.Empty = rules.Empty
	}

	if err := calcRules.BuildNegationPattern(); err != nil {
		return nil, err
	}

	return calcRules, nil
}

// RulesFile converts r back into its YAML file form.
func (r *Rules) RulesFile() *RulesFile {
	return &RulesFile{
		Negation: append([]string(nil), r.Negation...),
		Labels: LabelRules{
			ID:      r.Labels[Identifier],
			Class:   r.Labels[ClassLike],
			Element: r.Labels[ElementLike],
		},
		Arrow:     r.Arrow,
		Separator: r.Separator,
		Empty:     r.Empty,
	}
}

// BuildNegationPattern compiles the negation names into the pattern used by
// the first calculator pass. Returns an error if a name is not a plain
// identifier or is listed twice.
func (r *Rules) BuildNegationPattern() error {
	if len(r.Negation) == 0 {
		return fmt.Errorf("at least one negation pseudo-class is required")
	}

	seen := make(map[string]bool, len(r.Negation))
	alternatives := make([]string, 0, len(r.Negation))
	for _, name := range r.Negation {
		name = strings.TrimPrefix(name, ":")
		if !typeSelectorRegex.MatchString(name) {
			return fmt.Errorf("negation pseudo-class '%s' is not a valid identifier", name)
		}
		if seen[name] {
			return fmt.Errorf("negation pseudo-class '%s' is defined more than once", name)
		}
		seen[name] = true
		alternatives = append(alternatives, regexp.QuoteMeta(name))
	}

	re, err := regexp.Compile(`:(?:` + strings.Join(alternatives, "|") + `)\(([^)]*)\)`)
	if err != nil {
		return fmt.Errorf("failed to compile negation pattern: %w", err)
	}
	r.negationRegex = re
	return nil
}
