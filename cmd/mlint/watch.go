package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mlint/internal/debug"
	"github.com/standardbeagle/mlint/internal/display"
	"github.com/standardbeagle/mlint/internal/indexing"
	"github.com/standardbeagle/mlint/pkg/pathutil"
)

// watchCommand runs a full analysis, then re-analyzes changed files until
// interrupted. Unchanged content (same xxhash) is not re-reported.
func watchCommand(c *cli.Context) error {
	setup, err := newAnalysisSetup(c, false)
	if err != nil {
		return err
	}
	cfg := setup.cfg

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter := display.NewIssueFormatter(display.FormatterOptions{Format: display.FormatCompact})

	summary, err := setup.analyzer.Run(ctx, cfg.Project.Root)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	fmt.Fprint(c.App.Writer, formatter.Format(setup.collector.Issues(), display.Totals{}))
	fmt.Fprintf(c.App.Writer, "watching %s: %d issues in %d files\n", cfg.Project.Root, summary.Issues, summary.Analyzed)
	setup.collector.Reset()

	onBatch := func(events []indexing.FileEvent) {
		var totals display.Totals
		for _, event := range events {
			if event.Type == indexing.FileEventRemove || event.Type == indexing.FileEventRename {
				setup.analyzer.Forget(event.Path)
				continue
			}
			r, err := setup.analyzer.AnalyzeChanged(event.Path, pathutil.ToRelative(event.Path, cfg.Project.Root))
			if err != nil {
				fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", err)
				continue
			}
			if r.SkipReason == indexing.SkipUnchanged {
				continue
			}
			totals.Files++
			if r.SkipReason != "" {
				totals.Skipped++
				continue
			}
			totals.Analyzed++
			totals.Issues += r.Result.Issues
		}
		if totals.Files == 0 {
			return
		}
		out := display.NewIssueFormatter(display.FormatterOptions{Format: display.FormatCompact, ShowSummary: true})
		fmt.Fprint(c.App.Writer, out.Format(setup.collector.Issues(), totals))
		setup.collector.Reset()
	}

	debounce := time.Duration(cfg.Index.WatchDebounceMs) * time.Millisecond
	watcher, err := indexing.NewFileWatcher(setup.analyzer.Scanner(), debounce, onBatch, newLogger(c))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	if err := watcher.Start(cfg.Project.Root); err != nil {
		_ = watcher.Stop()
		return cli.Exit(err.Error(), exitError)
	}

	<-ctx.Done()
	err = watcher.Stop()
	events, batches := watcher.Stats()
	debug.LogAnalysis("watch stopped: %d events in %d batches, %d files analyzed\n", events, batches, setup.analyzer.FilesAnalyzed())
	return err
}
