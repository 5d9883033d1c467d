package specificity

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Category represents the specificity tier a matched token counts towards.
type Category string

const (
	Identifier  Category = "id"      // #id selectors
	ClassLike   Category = "class"   // Classes, attribute selectors and pseudo-classes
	ElementLike Category = "element" // Type selectors and pseudo-elements
)

// Token represents a single scorable fragment of a selector.
type Token struct {
	Text     string   `json:"text"`
	Category Category `json:"type"`
}

// NewToken creates a new token.
func NewToken(text string, category Category) Token {
	return Token{
		Text:     text,
		Category: category,
	}
}

// Result holds the specificity counts of a selector together with the
// tokens that produced them, in detection order.
type Result struct {
	IDs      int
	Classes  int
	Elements int
	Tokens   []Token
}

// add records a token and bumps the counter for its category.
func (r *Result) add(token Token) {
	switch token.Category {
	case Identifier:
		r.IDs++
	case ClassLike:
		r.Classes++
	case ElementLike:
		r.Elements++
	default:
		return
	}
	r.Tokens = append(r.Tokens, token)
}

// merge folds the counts and tokens of other into r.
func (r *Result) merge(other Result) {
	r.IDs += other.IDs
	r.Classes += other.Classes
	r.Elements += other.Elements
	r.Tokens = append(r.Tokens, other.Tokens...)
}

// IsZero reports whether all counts are zero.
func (r Result) IsZero() bool {
	return r.IDs == 0 && r.Classes == 0 && r.Elements == 0
}

// HasTokens reports whether any scorable token was found.
func (r Result) HasTokens() bool {
	return len(r.Tokens) > 0
}

// Vector returns the four-part specificity vector. The leading inline-style
// tier is always zero for selector text.
func (r Result) Vector() [4]int {
	return [4]int{0, r.IDs, r.Classes, r.Elements}
}

// String renders the vector as "0, a, b, c".
func (r Result) String() string {
	v := r.Vector()
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// Clone returns a copy of r that shares no memory with it.
func (r Result) Clone() Result {
	c := r
	if r.Tokens != nil {
		c.Tokens = make([]Token, len(r.Tokens))
		copy(c.Tokens, r.Tokens)
	}
	return c
}

// MarshalJSON implements custom JSON marshaling for Result.
func (r Result) MarshalJSON() ([]byte, error) {
	tokens := r.Tokens
	if tokens == nil {
		tokens = []Token{}
	}
	return json.Marshal(struct {
		Score    [4]int  `json:"score"`
		IDs      int     `json:"ids"`
		Classes  int     `json:"classes"`
		Elements int     `json:"elements"`
		Tokens   []Token `json:"tokens"`
	}{
		Score:    r.Vector(),
		IDs:      r.IDs,
		Classes:  r.Classes,
		Elements: r.Elements,
		Tokens:   tokens,
	})
}

// Compare orders two results by specificity. It returns -1 if a is less
// specific than b, +1 if it is more specific, and 0 on a tie.
func Compare(a, b Result) int {
	va, vb := a.Vector(), b.Vector()
	for i := range va {
		switch {
		case va[i] < vb[i]:
			return -1
		case va[i] > vb[i]:
			return 1
		}
	}
	return 0
}
