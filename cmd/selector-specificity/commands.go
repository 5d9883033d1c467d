package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spicery/selector-specificity/pkg/specificity"
	"github.com/spicery/selector-specificity/pkg/stylesheet"
)

const (
	formatJSON = "json"
	formatText = "text"
)

// scored is the JSON line written for each selector by the score command.
type scored struct {
	Selector    string             `json:"selector"`
	Specificity specificity.Result `json:"specificity"`
}

func runScore(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	out := cmd.Root().Writer

	format := cmd.String("format")
	if format != formatJSON && format != formatText {
		return fmt.Errorf("unknown output format '%s' (expected %s or %s)", format, formatJSON, formatText)
	}

	selectors := cmd.Args().Slice()
	if len(selectors) == 0 {
		var err error
		if selectors, err = readLines(cmd.Root().Reader); err != nil {
			return fmt.Errorf("error reading from stdin: %w", err)
		}
	}
	e.log.Debug("Scoring selectors", zap.Int("count", len(selectors)))

	renderer := specificity.NewRenderer(e.calc, e.rules)
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	for _, sel := range selectors {
		if format == formatText {
			score, breakdown := renderer.Render(sel)
			fmt.Fprintf(out, "%s: %s\n", strings.TrimSpace(sel), score)
			if breakdown != "" {
				fmt.Fprintf(out, "  %s\n", breakdown)
			}
			continue
		}

		if err := enc.Encode(scored{Selector: sel, Specificity: e.calc.Calculate(sel)}); err != nil {
			return fmt.Errorf("JSON encoding error: %w", err)
		}
	}
	return nil
}

// readLines returns the non-blank lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func runSheet(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)

	files, err := sheetFiles(cmd)
	if err != nil {
		return err
	}

	parser := stylesheet.NewParser(e.calc, e.log)
	sheets, parseErr := parser.ParseFiles(files)

	w := &sheetWriter{out: cmd.Root().Writer, rank: cmd.Bool("rank")}
	for _, sheet := range sheets {
		if err := w.write(sheet); err != nil {
			return err
		}
	}

	e.log.Info("Scored stylesheets", zap.Int("files", len(sheets)))
	return parseErr
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)

	files, err := sheetFiles(cmd)
	if err != nil {
		return err
	}

	parser := stylesheet.NewParser(e.calc, e.log)
	w := &sheetWriter{out: cmd.Root().Writer, rank: cmd.Bool("rank")}

	// Initial scoring, then one sheet per change
	sheets, err := parser.ParseFiles(files)
	if err != nil {
		e.log.Warn("Some stylesheets could not be scored", zap.Error(err))
	}
	for _, sheet := range sheets {
		if err := w.write(sheet); err != nil {
			return err
		}
	}

	opts := stylesheet.DefaultWatchOptions()
	opts.Debounce = cmd.Duration("debounce")
	opts.Excludes = append(opts.Excludes, cmd.StringSlice("exclude")...)

	watcher, err := stylesheet.NewWatcher(parser, func(sheet *stylesheet.Sheet) {
		if err := w.write(sheet); err != nil {
			e.log.Error("Unable to write results", zap.Error(err))
		}
	}, opts, e.log)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx, cmd.Args().Slice()...); err != nil {
		return err
	}

	<-ctx.Done()
	return watcher.Stop()
}

func runMakeRules(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)

	data, err := yaml.Marshal(e.rules.RulesFile())
	if err != nil {
		return fmt.Errorf("failed to marshal rules to YAML: %w", err)
	}
	_, err = cmd.Root().Writer.Write(data)
	return err
}

func sheetFiles(cmd *cli.Command) ([]string, error) {
	if cmd.Args().Len() == 0 {
		return nil, errors.New("no stylesheet has been specified")
	}
	excludes := append(append([]string(nil), stylesheet.DefaultExcludes...), cmd.StringSlice("exclude")...)
	return stylesheet.ExpandPaths(cmd.Args().Slice(), excludes)
}

// sheetWriter emits one JSON line per rule. Writes may come from the
// watcher's timers, so they are serialized.
type sheetWriter struct {
	mu   sync.Mutex
	out  io.Writer
	rank bool
}

func (w *sheetWriter) write(sheet *stylesheet.Sheet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rules := sheet.Rules
	if w.rank {
		rules = sheet.Ranked()
	}

	enc := json.NewEncoder(w.out)
	enc.SetEscapeHTML(false)
	for _, rule := range rules {
		if err := enc.Encode(rule); err != nil {
			return fmt.Errorf("JSON encoding error: %w", err)
		}
	}
	return nil
}
