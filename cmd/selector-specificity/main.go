package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/spicery/selector-specificity/pkg/logging"
	"github.com/spicery/selector-specificity/pkg/specificity"
)

const version = "0.1.0"

// env carries what every subcommand needs. It is prepared once the command
// line has been parsed.
type env struct {
	log   *zap.Logger
	rules *specificity.Rules
	calc  *specificity.CachedCalculator
}

type envKey struct{}

func envFromContext(ctx context.Context) *env {
	if e, ok := ctx.Value(envKey{}).(*env); ok {
		return e
	}
	rules := specificity.DefaultRules()
	return &env{
		log:   zap.NewNop(),
		rules: rules,
		calc:  specificity.NewCachedCalculator(specificity.NewCalculatorWithRules(rules), 0),
	}
}

func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := logging.LevelNone
	if cmd.Bool("debug") {
		level = logging.LevelDebug
	} else if cmd.Bool("verbose") {
		level = logging.LevelNormal
	}
	log, err := logging.NewWithWriter(level, cmd.Root().ErrWriter)
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}

	rules := specificity.DefaultRules()
	if rulesFile := cmd.String("rules"); rulesFile != "" {
		file, err := specificity.LoadRulesFile(rulesFile)
		if err != nil {
			return ctx, err
		}
		if rules, err = specificity.ApplyRulesToDefaults(file); err != nil {
			return ctx, fmt.Errorf("error applying rules: %w", err)
		}
		log.Debug("Loaded rules file", zap.String("file", rulesFile), zap.Strings("negation", rules.Negation))
	}

	e := &env{
		log:   log,
		rules: rules,
		calc:  specificity.NewCachedCalculator(specificity.NewCalculatorWithRules(rules), int(cmd.Int("cache-size"))),
	}
	return context.WithValue(ctx, envKey{}, e), nil
}

func destroyAppContext(ctx context.Context, _ *cli.Command) error {
	e := envFromContext(ctx)
	stats := e.calc.Stats()
	e.log.Debug("Program ended", zap.Int64("cache hits", stats.Hits), zap.Int64("cache misses", stats.Misses))
	// stderr cannot be synced everywhere
	_ = e.log.Sync()
	return nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:            "selector-specificity",
		Usage:           "computes CSS selector specificity",
		Version:         version,
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rules", Aliases: []string{"r"}, Usage: "load calculator rules from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "verbose", Usage: "log progress to stderr"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log debugging details to stderr"},
			&cli.IntFlag{Name: "cache-size", Value: specificity.DefaultCacheSize, Usage: "number of selector results to memoize"},
		},
		Commands: []*cli.Command{
			{
				Name:      "score",
				Usage:     "Scores selectors given as arguments, or one per line on stdin",
				ArgsUsage: "[SELECTOR...]",
				Action:    runScore,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: formatJSON, Usage: "output `FORMAT` (json or text)"},
				},
			},
			{
				Name:      "sheet",
				Usage:     "Scores every selector of CSS files; directories are searched for .css files",
				ArgsUsage: "PATH...",
				Action:    runSheet,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "exclude", Aliases: []string{"x"}, Usage: "skip files matching `GLOB` when walking directories"},
					&cli.BoolFlag{Name: "rank", Usage: "order rules from most to least specific"},
				},
			},
			{
				Name:      "watch",
				Usage:     "Like sheet, and rescores files whenever they change",
				ArgsUsage: "PATH...",
				Action:    runWatch,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "exclude", Aliases: []string{"x"}, Usage: "skip files matching `GLOB` when walking directories"},
					&cli.BoolFlag{Name: "rank", Usage: "order rules from most to least specific"},
					&cli.DurationFlag{Name: "debounce", Value: 200 * time.Millisecond, Usage: "wait this long after a change before rescoring"},
				},
			},
			{
				Name:   "make-rules",
				Usage:  "Prints the default rules file (YAML)",
				Action: runMakeRules,
			},
		},
	}
}

// execute runs app and returns the process exit code. A terminal error is
// printed to the app's error writer.
func execute(ctx context.Context, app *cli.Command, args []string) int {
	if err := app.Run(ctx, args); err != nil {
		errOut := app.ErrWriter
		if errOut == nil {
			errOut = os.Stderr
		}
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newApp(), os.Args)
	stop()
	os.Exit(code)
}
