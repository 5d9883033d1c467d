package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with the given arguments and stdin, returning stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &errOut

	err := app.Run(context.Background(), append([]string{"selector-specificity"}, args...))
	return out.String(), err
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var objs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &obj), line)
		objs = append(objs, obj)
	}
	return objs
}

func TestScoreArguments(t *testing.T) {
	out, err := run(t, "", "score", "#main", "div.card > p::first-line")
	require.NoError(t, err)

	objs := decodeLines(t, out)
	require.Len(t, objs, 2)

	assert.Equal(t, "#main", objs[0]["selector"])
	spec := objs[0]["specificity"].(map[string]any)
	assert.Equal(t, []any{0.0, 1.0, 0.0, 0.0}, spec["score"])

	assert.Equal(t, "div.card > p::first-line", objs[1]["selector"])
	spec = objs[1]["specificity"].(map[string]any)
	assert.Equal(t, []any{0.0, 0.0, 1.0, 3.0}, spec["score"])
}

func TestScoreStdin(t *testing.T) {
	out, err := run(t, ".btn.primary\n\n  a:not(.active)  \n", "score")
	require.NoError(t, err)

	objs := decodeLines(t, out)
	require.Len(t, objs, 2)
	assert.Equal(t, ".btn.primary", objs[0]["selector"])
	assert.Equal(t, "a:not(.active)", objs[1]["selector"])
}

func TestScoreText(t *testing.T) {
	out, err := run(t, "", "score", "--format", "text", "#main", "*")
	require.NoError(t, err)

	assert.Equal(t, "#main: 0, 1, 0, 0\n  #main → ID\n*: 0, 0, 0, 0\n  No scorable tokens found.\n", out)
}

func TestScoreUnknownFormat(t *testing.T) {
	_, err := run(t, "", "score", "--format", "xml", "a")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestScoreWithRulesFile(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte("negation: [not, is]\nlabels:\n  element: Type\n"), 0644))

	out, err := run(t, "", "--rules", rulesPath, "score", "-f", "text", "a:is(.x)")
	require.NoError(t, err)
	assert.Equal(t, "a:is(.x): 0, 0, 1, 1\n  .x → Class/Attr/Pseudo  |  a → Type\n", out)
}

func TestBadRulesFile(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte("negation: ['']\n"), 0644))

	_, err := run(t, "", "--rules", rulesPath, "score", "a")
	assert.ErrorContains(t, err, "error applying rules")
}

func TestSheet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.css"), []byte("p {} #x .y {} .z {}"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "lib.css"), []byte("q {}"), 0644))

	out, err := run(t, "", "sheet", "--rank", dir)
	require.NoError(t, err)

	objs := decodeLines(t, out)
	require.Len(t, objs, 3)
	assert.Equal(t, "#x .y", objs[0]["selector"])
	assert.Equal(t, ".z", objs[1]["selector"])
	assert.Equal(t, "p", objs[2]["selector"])
	assert.Equal(t, filepath.Join(dir, "a.css"), objs[0]["source"])
}

func TestSheetRequiresPath(t *testing.T) {
	_, err := run(t, "", "sheet")
	assert.ErrorContains(t, err, "no stylesheet has been specified")
}

func TestMakeRules(t *testing.T) {
	out, err := run(t, "", "make-rules")
	require.NoError(t, err)

	assert.Contains(t, out, "negation:")
	assert.Contains(t, out, "- not")
	assert.Contains(t, out, "Class/Attr/Pseudo")
}

func TestExecuteReportsError(t *testing.T) {
	var errOut bytes.Buffer
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &errOut

	code := execute(context.Background(), app, []string{"selector-specificity", "sheet"})

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "Error: no stylesheet has been specified\n")
}

func TestExecuteSuccess(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	assert.Equal(t, 0, execute(context.Background(), app, []string{"selector-specificity", "score", "a"}))
}
