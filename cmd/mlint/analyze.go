package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mlint/internal/config"
	"github.com/standardbeagle/mlint/internal/debug"
	"github.com/standardbeagle/mlint/internal/display"
	"github.com/standardbeagle/mlint/internal/indexing"
	"github.com/standardbeagle/mlint/internal/report"
	"github.com/standardbeagle/mlint/internal/rules"
	"github.com/standardbeagle/mlint/pkg/pathutil"
)

func analyzeCommand(c *cli.Context) error {
	format := c.String("format")
	if c.Bool("json") {
		format = display.FormatJSON
	}
	if !display.ValidFormat(format) {
		return cli.Exit(fmt.Sprintf("unknown format %q: want text, json or compact", format), exitError)
	}

	setup, err := newAnalysisSetup(c, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tasks, err := collectTasks(ctx, setup.analyzer.Scanner(), setup.cfg.Project.Root, c.Args().Slice())
	if err != nil {
		setup.flush()
		return cli.Exit(err.Error(), exitError)
	}

	summary, err := setup.analyzer.AnalyzeAll(ctx, tasks)
	setup.flush()
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	for _, fileErr := range summary.Errors {
		fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", fileErr)
	}

	formatter := display.NewIssueFormatter(display.FormatterOptions{
		Format:      format,
		ShowSummary: !c.Bool("quiet"),
		ShowCounts:  c.Bool("counts"),
	})
	fmt.Fprint(c.App.Writer, formatter.Format(setup.collector.Issues(), totalsOf(summary)))

	if summary.Issues > 0 && !c.Bool("exit-zero") {
		return cli.Exit("", exitIssues)
	}
	return nil
}

// collectTasks expands the command line paths. Directories are scanned with
// the project filters; files named explicitly are analyzed whatever their
// extension. Display paths are relative to the project root when possible.
func collectTasks(ctx context.Context, scanner *indexing.FileScanner, root string, paths []string) ([]indexing.FileTask, error) {
	if len(paths) == 0 {
		paths = []string{root}
	}

	seen := make(map[string]bool)
	var tasks []indexing.FileTask
	add := func(task indexing.FileTask) {
		if seen[task.Path] {
			return
		}
		seen[task.Path] = true
		task.RelPath = pathutil.ToRelative(task.Path, root)
		tasks = append(tasks, task)
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("cannot analyze %q: %w", p, err)
		}
		if !info.IsDir() {
			add(indexing.FileTask{Path: abs, Size: info.Size()})
			continue
		}
		found, err := scanner.Collect(ctx, abs)
		if err != nil {
			return nil, err
		}
		for _, task := range found {
			add(task)
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].RelPath < tasks[j].RelPath })
	return tasks, nil
}

func totalsOf(s indexing.Summary) display.Totals {
	return display.Totals{
		Files:    s.Files,
		Analyzed: s.Analyzed,
		Skipped:  s.Skipped,
		Issues:   s.Issues,
		Faults:   s.Faults,
	}
}

func templatesCommand(c *cli.Context) error {
	format := display.FormatText
	if c.Bool("json") {
		format = display.FormatJSON
	}
	formatter := display.NewIssueFormatter(display.FormatterOptions{Format: format})
	fmt.Fprint(c.App.Writer, formatter.FormatTemplates(rules.Templates()))
	return nil
}

// analysisSetup holds the pieces shared by analyze and watch
type analysisSetup struct {
	cfg       *config.Config
	collector *report.Collector
	async     *report.AsyncSink // nil when the engine reports to the collector directly
	analyzer  *indexing.Analyzer
}

// newAnalysisSetup loads config and rules and wires engine, sink and
// analyzer. With async the engine reports through a queue drained by flush.
func newAnalysisSetup(c *cli.Context, async bool) (*analysisSetup, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if err := loadRules(c, cfg); err != nil {
		return nil, err
	}
	warnInactiveRules(c.App.ErrWriter, cfg.Rules)

	setup := &analysisSetup{cfg: cfg, collector: report.NewCollector()}
	var sink report.Sink = setup.collector
	if async {
		setup.async = report.NewAsyncSink(setup.collector, cfg.Performance.QueueSize)
		sink = setup.async
	}

	logger := newLogger(c)
	engine := rules.NewEngine(sink, rules.WithLogger(logger))
	setup.analyzer = indexing.NewAnalyzer(cfg, engine, cfg.Rules, logger)
	return setup, nil
}

// flush delivers queued issues to the collector. The sink accepts nothing
// afterwards.
func (s *analysisSetup) flush() {
	if s.async != nil {
		s.async.Close()
		debug.LogAnalysis("async sink forwarded %d issues, dropped %d\n", s.async.Forwarded(), s.async.Dropped())
	}
}
