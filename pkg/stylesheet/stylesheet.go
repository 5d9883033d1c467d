// Package stylesheet scores every selector found in CSS stylesheets.
package stylesheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spicery/selector-specificity/pkg/specificity"
)

// Rule is a single selector of a stylesheet with its specificity.
type Rule struct {
	Source   string             `json:"source,omitempty"`
	Context  string             `json:"context,omitempty"` // Enclosing at-rule preludes, outermost first
	Index    int                `json:"index"`             // Position of the selector within the sheet
	Selector string             `json:"selector"`
	Result   specificity.Result `json:"specificity"`
}

// Sheet holds the scored selectors of one stylesheet in source order.
type Sheet struct {
	Source string `json:"source,omitempty"`
	Rules  []Rule `json:"rules"`
}

// Ranked returns the rules ordered from most to least specific. Rules of
// equal specificity keep their source order.
func (s *Sheet) Ranked() []Rule {
	ranked := slices.Clone(s.Rules)
	slices.SortStableFunc(ranked, func(a, b Rule) int {
		return specificity.Compare(b.Result, a.Result)
	})
	return ranked
}

// At-rules whose blocks contain ordinary style rules. Blocks of any other
// at-rule (@font-face, @keyframes, @page...) are skipped.
var groupingAtRules = map[string]bool{
	"@media":     true,
	"@supports":  true,
	"@layer":     true,
	"@container": true,
	"@document":  true,
}

// Parser extracts and scores the selectors of CSS stylesheets.
type Parser struct {
	scorer specificity.Scorer
	log    *zap.Logger
}

// NewParser creates a new stylesheet parser. A nil scorer selects a cached
// calculator with the default rules.
func NewParser(scorer specificity.Scorer, log *zap.Logger) *Parser {
	if scorer == nil {
		scorer = specificity.NewCachedCalculator(nil, 0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{scorer: scorer, log: log.Named("stylesheet")}
}

// Parse scores the selectors of CSS text. The parser is error tolerant:
// malformed input yields whatever rules could be recognised.
//
// Only the selectors of top-level rules and of rules inside grouping
// at-rules are reported. Rules nested inside another style rule (CSS
// nesting) are skipped along with the declarations of their parent.
func (p *Parser) Parse(data []byte, source string) *Sheet {
	sheet := &Sheet{
		Source: source,
		Rules:  make([]Rule, 0),
	}

	p.log.Debug("Parsing stylesheet", zap.String("source", source), zap.Int("bytes", len(data)))

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)

	var context []string
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				p.log.Warn("CSS parse error", zap.String("source", source), zap.Error(err))
			}
			p.log.Debug("Parsed stylesheet", zap.String("source", source), zap.Int("rules", len(sheet.Rules)))
			return sheet

		case css.BeginAtRuleGrammar:
			name := string(data)
			if !groupingAtRules[strings.ToLower(name)] {
				p.log.Debug("Skipping @-rule", zap.String("rule", name))
				skipBlock(parser)
				continue
			}
			prelude := strings.Fields(joinTokens([]byte(name+" "), parser.Values()))
			context = append(context, strings.Join(prelude, " "))

		case css.EndAtRuleGrammar:
			if len(context) > 0 {
				context = context[:len(context)-1]
			}

		case css.BeginRulesetGrammar:
			enclosing := strings.Join(context, " ")
			for _, sel := range SplitSelectorList(joinTokens(data, parser.Values())) {
				sheet.Rules = append(sheet.Rules, Rule{
					Source:   source,
					Context:  enclosing,
					Index:    len(sheet.Rules),
					Selector: sel,
					Result:   p.scorer.Calculate(sel),
				})
			}
			// Declarations carry no selectors
			skipBlock(parser)
		}
	}
}

// ParseFile reads and scores a stylesheet from disk.
func (p *Parser) ParseFile(path string) (*Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stylesheet '%s': %w", path, err)
	}
	return p.Parse(data, path), nil
}

// ParseFiles scores several stylesheets. A file that cannot be read does
// not stop the others; all failures are returned together.
func (p *Parser) ParseFiles(paths []string) ([]*Sheet, error) {
	var (
		sheets []*Sheet
		err    error
	)
	for _, path := range paths {
		sheet, er := p.ParseFile(path)
		if er != nil {
			err = multierr.Append(err, er)
			continue
		}
		sheets = append(sheets, sheet)
	}
	return sheets, err
}

// skipBlock consumes tokens until the block that was just opened is closed.
func skipBlock(parser *css.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

func joinTokens(data []byte, values []css.Token) string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}
	return strings.TrimSpace(sb.String())
}

// SplitSelectorList splits a selector list on top-level commas. Commas
// inside parentheses, brackets or quotes belong to their selector. Empty
// entries are dropped.
func SplitSelectorList(list string) []string {
	var (
		selectors []string
		depth     int
		quote     byte
		start     int
	)

	flush := func(end int) {
		if s := strings.TrimSpace(list[start:end]); s != "" {
			selectors = append(selectors, s)
		}
	}

	for i := 0; i < len(list); i++ {
		c := list[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			flush(i)
			start = i + 1
		}
	}
	flush(len(list))

	return selectors
}
