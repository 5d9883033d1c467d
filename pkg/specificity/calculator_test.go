package specificity

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCounts(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		ids      int
		classes  int
		elements int
	}{
		{"Empty input", "", 0, 0, 0},
		{"Whitespace only", "  \t\n ", 0, 0, 0},
		{"Single id", "#main", 1, 0, 0},
		{"Two classes", ".btn.primary", 0, 2, 0},
		{"Descendant with pseudo-element", "div.card > p::first-line", 0, 1, 3},
		{"Negation", "a:not(.active)", 0, 1, 1},
		{"Attribute", "[data-state='open']", 0, 1, 0},
		{"Universal only", "*", 0, 0, 0},
		{"All combinators", "ul > li + li ~ li", 0, 0, 4},
		{"Pseudo-class with argument", "li:nth-child(2n+1)", 0, 1, 1},
		{"Pseudo-class and pseudo-element", "a:hover::before", 0, 1, 2},
		{"Mixed", "#nav ul li.active a[href]:focus", 1, 3, 3},
		{"Negation with id", "div:not(#main)", 1, 0, 1},
		{"Negation with compound argument", "p:not(.a.b)", 0, 2, 1},
		{"Stray colon", "a : b", 0, 0, 2},
		{"Leading digit is not an id", "#1abc", 0, 0, 0},
		{"Hyphenated names", "my-el.some-class#the_id", 1, 1, 1},
		{"Underscore class", "._private", 0, 1, 0},
		{"Unclosed attribute", "a[href", 0, 0, 0},
		{"Punctuation is dropped", "a, b", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compute(tt.input)

			assert.Equal(t, tt.ids, res.IDs, "ids")
			assert.Equal(t, tt.classes, res.Classes, "classes")
			assert.Equal(t, tt.elements, res.Elements, "elements")
			assert.Len(t, res.Tokens, tt.ids+tt.classes+tt.elements)
		})
	}
}

func TestComputeTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected []Token
	}{
		{"#main", []Token{{"#main", Identifier}}},
		{".btn.primary", []Token{{".btn", ClassLike}, {".primary", ClassLike}}},
		{
			"div.card > p::first-line",
			[]Token{
				{"::first-line", ElementLike},
				{".card", ClassLike},
				{"div", ElementLike},
				{"p", ElementLike},
			},
		},
		{"a:not(.active)", []Token{{".active", ClassLike}, {"a", ElementLike}}},
		{"[data-state='open']", []Token{{"[data-state='open']", ClassLike}}},
		{
			// Detection order, not source order
			"a:hover[title].x#y::after",
			[]Token{
				{"#y", Identifier},
				{"::after", ElementLike},
				{".x", ClassLike},
				{"[title]", ClassLike},
				{":hover", ClassLike},
				{"a", ElementLike},
			},
		},
		{"li:nth-child(2n+1)", []Token{{":nth-child(2n+1)", ClassLike}, {"li", ElementLike}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := Compute(tt.input)
			assert.Equal(t, tt.expected, res.Tokens)
		})
	}
}

func TestEmptyResult(t *testing.T) {
	res := Compute("")

	assert.True(t, res.IsZero())
	assert.False(t, res.HasTokens())
	assert.Empty(t, res.Tokens)
	assert.Equal(t, "0, 0, 0, 0", res.String())
}

func TestZeroCountsAreIndependentOfTokens(t *testing.T) {
	// Only unscorable fragments: all counts zero and no tokens.
	res := Compute("* > ~ :")
	assert.True(t, res.IsZero())
	assert.False(t, res.HasTokens())

	res = Compute("p")
	assert.False(t, res.IsZero())
	assert.True(t, res.HasTokens())
}

func TestNegationTokensComeFirst(t *testing.T) {
	res := Compute("#app a:not(.x)")

	require.Len(t, res.Tokens, 3)
	assert.Equal(t, Token{".x", ClassLike}, res.Tokens[0])
	assert.Equal(t, Token{"#app", Identifier}, res.Tokens[1])
	assert.Equal(t, Token{"a", ElementLike}, res.Tokens[2])
}

func TestMultipleNegations(t *testing.T) {
	res := Compute("li:not(.a):not(#b)")

	assert.Equal(t, 1, res.IDs)
	assert.Equal(t, 1, res.Classes)
	assert.Equal(t, 1, res.Elements)
}

func TestNestedNegationRecursesOnFirstParen(t *testing.T) {
	// The argument runs up to the first ")". Inside it ".b" is a class and
	// the unclosed ":not" a bare pseudo-class; the stray ")" left glued to
	// "a" keeps it from reading as a type selector.
	res := Compute("a:not(:not(.b))")

	assert.Equal(t, 0, res.IDs)
	assert.Equal(t, 2, res.Classes)
	assert.Equal(t, 0, res.Elements)
	assert.Equal(t, []Token{{".b", ClassLike}, {":not", ClassLike}}, res.Tokens)
}

func TestNegationArgumentList(t *testing.T) {
	// "a," is not a type selector shape and contributes nothing.
	res := Compute("p:not(a, b)")

	assert.Equal(t, 0, res.Classes)
	assert.Equal(t, 2, res.Elements)
}

func TestTypeSelectorWhitespace(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		elements int
	}{
		{"Byte order mark separates", "\ufeffdiv- ]", 1},
		{"No-break space separates", "ul\u00a0li", 2},
		{"Ideographic space separates", "ul\u3000li", 2},
		{"Line separator separates", "ul\u2028li", 2},
		{"Next line does not separate", "ul\u0085li", 0},
		{"Vertical tab separates", "ul\vli", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compute(tt.input)
			assert.Equal(t, tt.elements, res.Elements)
			assert.Len(t, res.Tokens, tt.elements)
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	inputs := []string{"", "#main", "div.card > p::first-line", "a:not(.active)", "[x][y]:hover"}
	for _, in := range inputs {
		assert.Equal(t, Compute(in), Compute(in), in)
	}
}

func TestComputeIsTotal(t *testing.T) {
	inputs := []string{
		"(((", ")))", "[[[", "]]]", ":not(", ":not()", "::", "#", ".", "##..::",
		"\x00\xff", "日本語 .クラス", strings.Repeat(":not(", 200),
		strings.Repeat("a ", 1000),
	}
	for _, in := range inputs {
		res := Compute(in)
		assert.GreaterOrEqual(t, res.IDs, 0)
		assert.GreaterOrEqual(t, res.Classes, 0)
		assert.GreaterOrEqual(t, res.Elements, 0)
		assert.Len(t, res.Tokens, res.IDs+res.Classes+res.Elements)
	}
}

func TestConcurrentCompute(t *testing.T) {
	expected := Compute("#a .b c:not(.d)::e")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.Equal(t, expected, Compute("#a .b c:not(.d)::e"))
			}
		}()
	}
	wg.Wait()
}

func TestCustomNegation(t *testing.T) {
	rules, err := ApplyRulesToDefaults(&RulesFile{Negation: []string{"not", "is"}})
	require.NoError(t, err)

	calc := NewCalculatorWithRules(rules)
	res := calc.Calculate("a:is(#x, .y)")

	assert.Equal(t, 1, res.IDs)
	assert.Equal(t, 1, res.Classes)
	assert.Equal(t, 1, res.Elements)

	// With the defaults the id and class passes run before ":is(...)" is
	// taken as an ordinary pseudo-class, so all three count.
	res = Compute("a:is(#x, .y)")
	assert.Equal(t, 1, res.IDs)
	assert.Equal(t, 2, res.Classes)
	assert.Equal(t, 1, res.Elements)
}

func TestNilRulesUseDefaults(t *testing.T) {
	calc := NewCalculatorWithRules(nil)
	assert.Equal(t, Compute("a:not(.b)"), calc.Calculate("a:not(.b)"))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"#a", ".a.b.c.d", 1},
		{".a", "a b c d", 1},
		{"a", "a", 0},
		{"div p", "div.x", -1},
		{"", "*", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compare(Compute(tt.a), Compute(tt.b)))
			assert.Equal(t, -tt.expected, Compare(Compute(tt.b), Compute(tt.a)))
		})
	}
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Compute("a:not(.active)"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"score": [0, 0, 1, 1],
		"ids": 0,
		"classes": 1,
		"elements": 1,
		"tokens": [
			{"text": ".active", "type": "class"},
			{"text": "a", "type": "element"}
		]
	}`, string(data))

	data, err = json.Marshal(Compute(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":[0,0,0,0],"ids":0,"classes":0,"elements":0,"tokens":[]}`, string(data))
}

func TestClone(t *testing.T) {
	res := Compute(".a .b")
	c := res.Clone()
	c.Tokens[0].Text = "changed"

	assert.Equal(t, ".a", res.Tokens[0].Text)
}
