package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mlint/internal/config"
	"github.com/standardbeagle/mlint/internal/debug"
	"github.com/standardbeagle/mlint/internal/rules"
	"github.com/standardbeagle/mlint/internal/version"
)

// Exit codes: 0 clean, 1 issues found, 2 usage or runtime error
const (
	exitIssues = 1
	exitError  = 2
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, version.FullInfo())
	}
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

// reportError prints err and picks the process exit code
func reportError(w io.Writer, err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(w, msg)
		}
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "mlint: %v\n", err)
	return exitError
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:                      "mlint",
		Usage:                     "Static analysis for Wolfram Language sources with configurable template rules",
		Version:                   version.Info(),
		UseShortOptionHandling:    true,
		DisableSliceFlagSeparator: true, // patterns and messages may contain commas
		Writer:                    stdout,
		ErrWriter:                 stderr,
		// Exit codes are handled by main so commands stay testable
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root holding .mlint.kdl or .mlint.toml",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path, overriding the project config lookup",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Only analyze files matching glob patterns (e.g., --include 'Kernel/**')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/Tests/**')",
			},
			&cli.BoolFlag{
				Name:   "debug-log",
				Usage:  "Write debug output to a log file in the temp directory",
				Hidden: true,
			},
		},
		Before: func(c *cli.Context) error {
			if !c.Bool("debug-log") {
				return nil
			}
			path, err := debug.InitDebugLogFile()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.ErrWriter, "debug log: %s\n", path)
			debug.Printf("%s args=%q\n", version.FullInfo(), c.Args().Slice())
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Aliases:   []string{"a"},
				Usage:     "Analyze files or directories (default: the project root)",
				ArgsUsage: "[paths...]",
				Flags: append(ruleFlags(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json, compact",
						Value:   "text",
					},
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON (same as --format json)",
					},
					&cli.BoolFlag{
						Name:  "counts",
						Usage: "Show per-rule issue counts",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Omit the summary line",
					},
					&cli.BoolFlag{
						Name:  "exit-zero",
						Usage: "Exit 0 even when issues are found",
					},
				),
				Action: analyzeCommand,
			},
			{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Analyze the project, then re-analyze files as they change",
				Flags:   ruleFlags(),
				Action:  watchCommand,
			},
			{
				Name:    "templates",
				Aliases: []string{"t"},
				Usage:   "List rule templates and their parameters",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: templatesCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Start MCP (Model Context Protocol) server with stdio transport",
				Action: mcpCommand,
			},
			{
				Name:  "config",
				Usage: "Configuration management commands",
				Subcommands: []*cli.Command{
					{
						Name:    "init",
						Aliases: []string{"i"},
						Usage:   "Write a starter configuration file",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "format",
								Aliases: []string{"f"},
								Usage:   "Output format: kdl, toml",
								Value:   "kdl",
							},
							&cli.StringFlag{
								Name:    "output",
								Aliases: []string{"o"},
								Usage:   "Output file (default .mlint.kdl or .mlint.toml in the root)",
							},
							&cli.BoolFlag{
								Name:  "force",
								Usage: "Overwrite an existing file",
							},
						},
						Action: configInitCommand,
					},
					{
						Name:   "show",
						Usage:  "Print the effective configuration as KDL",
						Action: configShowCommand,
					},
					{
						Name:   "validate",
						Usage:  "Check the configuration and its rules",
						Flags:  ruleFlags(),
						Action: configValidateCommand,
					},
				},
			},
		},
	}
}

// ruleFlags are shared by every command that runs rules
func ruleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "rule",
			Aliases: []string{"R"},
			Usage:   "Add a rule instance as key=template (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:    "param",
			Aliases: []string{"p"},
			Usage:   "Set a rule parameter as key.param=value (repeatable)",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Files analyzed in parallel (0 = CPU count - 1)",
		},
		&cli.IntFlag{
			Name:  "max-lines",
			Usage: "Skip files with more lines than this (0 = config value)",
		},
	}
}

// loadConfig loads configuration and applies CLI flag overrides
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.LoadWithRoot(c.String("root"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if rootFlag := c.String("root"); rootFlag != "" && c.String("config") != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if c.IsSet("workers") {
		cfg.Performance.Workers = c.Int("workers")
	}
	if c.Int("max-lines") > 0 {
		cfg.Index.MaxLines = c.Int("max-lines")
	}
	return cfg, nil
}

// loadRules merges --rule and --param flags into the configured rules and
// validates the result. A --rule with a configured key replaces that rule;
// a --param may target flag rules and configured rules alike.
func loadRules(c *cli.Context, cfg *config.Config) error {
	flagRules, err := rules.BuildInstances(c.StringSlice("rule"), nil)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	merged := make([]rules.RuleInstance, 0, len(cfg.Rules)+len(flagRules))
	index := make(map[string]int, cap(merged))
	for _, r := range append(append([]rules.RuleInstance{}, cfg.Rules...), flagRules...) {
		params := make(map[string]string, len(r.Params))
		for k, v := range r.Params {
			params[k] = v
		}
		r.Params = params
		if i, ok := index[r.Key]; ok {
			merged[i] = r
			continue
		}
		index[r.Key] = len(merged)
		merged = append(merged, r)
	}

	for _, spec := range c.StringSlice("param") {
		key, param, value, err := rules.ParseParam(spec)
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}
		i, ok := index[key]
		if !ok {
			return cli.Exit(fmt.Sprintf("parameter %q for undefined rule %q", param, key), exitError)
		}
		merged[i].Params[param] = value
	}

	cfg.Rules = merged
	if err := config.ValidateConfig(cfg); err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	if len(cfg.Rules) == 0 {
		return cli.Exit("no rules configured: use --rule key=template or add rule nodes to .mlint.kdl", exitError)
	}
	return nil
}

// warnInactiveRules prints the rules that will not run. The engine skips
// them too, so this is the only place the user hears about it.
func warnInactiveRules(w io.Writer, instances []rules.RuleInstance) int {
	inactive := 0
	for _, instance := range instances {
		if instance.TemplateKey == "" {
			continue
		}
		if _, err := rules.Activate(instance); err != nil {
			fmt.Fprintf(w, "warning: %v\n", err)
			inactive++
		}
	}
	return inactive
}

func newLogger(c *cli.Context) *slog.Logger {
	return debug.NewLogger(c.App.ErrWriter)
}
