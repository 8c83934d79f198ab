package indexing

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/mlint/internal/config"
	"github.com/standardbeagle/mlint/internal/core"
	"github.com/standardbeagle/mlint/internal/debug"
	mlerrors "github.com/standardbeagle/mlint/internal/errors"
	"github.com/standardbeagle/mlint/internal/regex_analyzer"
	"github.com/standardbeagle/mlint/internal/rules"
	"github.com/standardbeagle/mlint/internal/security"
)

// Skip reasons reported in FileResult
const (
	SkipTooManyLines = "too_many_lines"
	SkipNotSource    = "not_source"
	SkipUnchanged    = "unchanged"
)

// FileResult is the outcome of analyzing one file
type FileResult struct {
	Path       string
	Result     rules.Result
	SkipReason string // empty when the file was analyzed
	Duration   time.Duration
}

// Summary aggregates a batch of analyzed files
type Summary struct {
	Files    int
	Analyzed int
	Skipped  int
	Issues   int
	Faults   int
	Errors   []error
	Duration time.Duration
}

// Add folds one file result into the summary
func (s *Summary) Add(r FileResult) {
	s.Files++
	if r.SkipReason != "" {
		s.Skipped++
		return
	}
	s.Analyzed++
	s.Issues += r.Result.Issues
	if r.Result.HasFaults() {
		s.Faults++
	}
}

// Analyzer runs rule instances over project files. Each worker builds its
// own analysis context per file; only the engine and its sink are shared.
type Analyzer struct {
	config    *config.Config
	engine    *rules.Engine
	scanner   *FileScanner
	instances []rules.RuleInstance
	logger    *slog.Logger

	// content hash of the last analysis per path, for AnalyzeChanged
	hashes sync.Map // map[string]uint64

	filesAnalyzed atomic.Int64
}

// NewAnalyzer creates an analyzer. A nil logger means slog.Default.
func NewAnalyzer(cfg *config.Config, engine *rules.Engine, instances []rules.RuleInstance, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		config:    cfg,
		engine:    engine,
		scanner:   NewFileScanner(cfg, logger),
		instances: instances,
		logger:    logger,
	}
}

// Scanner returns the scanner used to select files
func (a *Analyzer) Scanner() *FileScanner { return a.scanner }

// FilesAnalyzed counts files run through the engine since creation
func (a *Analyzer) FilesAnalyzed() int64 { return a.filesAnalyzed.Load() }

// Run scans root and analyzes every selected file. Scanning and analysis
// overlap: the walk feeds a bounded worker pool.
func (a *Analyzer) Run(ctx context.Context, root string) (Summary, error) {
	start := time.Now()
	tasks := make(chan FileTask, a.config.Workers()*8)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(tasks)
		return a.scanner.Walk(gctx, root, func(task FileTask) error {
			select {
			case tasks <- task:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	var mu sync.Mutex
	var summary Summary
	for i := 0; i < a.config.Workers(); i++ {
		g.Go(func() error {
			for task := range tasks {
				r, err := a.AnalyzeFile(task.Path, task.RelPath)
				mu.Lock()
				if err != nil {
					summary.Errors = append(summary.Errors, err)
				} else {
					summary.Add(r)
				}
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	summary.Duration = time.Since(start)
	logSummary("run", summary)
	return summary, err
}

// AnalyzeAll analyzes tasks with at most Workers files in flight
func (a *Analyzer) AnalyzeAll(ctx context.Context, tasks []FileTask) (Summary, error) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Workers())

	var mu sync.Mutex
	var summary Summary
	for _, task := range tasks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := a.AnalyzeFile(task.Path, task.RelPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors = append(summary.Errors, err)
				return nil
			}
			summary.Add(r)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	summary.Duration = time.Since(start)
	logSummary("batch", summary)
	return summary, err
}

func logSummary(kind string, s Summary) {
	debug.LogAnalysis("%s: %d files, %d analyzed, %d issues in %v (pattern cache hit ratio %.2f)\n",
		kind, s.Files, s.Analyzed, s.Issues, s.Duration, regex_analyzer.Default().GetHitRatio())
}

// AnalyzeFile reads path and runs every rule instance over it. Issues are
// reported under displayPath. Read failures are returned as errors; files
// that are not source or are too long are skipped, not failed.
func (a *Analyzer) AnalyzeFile(path, displayPath string) (FileResult, error) {
	content, err := a.readSource(path)
	if err != nil {
		if !errors.Is(err, security.ErrNotSource) {
			return FileResult{}, err
		}
		a.logger.Info("skipping file", "file", displayPath, "reason", err)
		return FileResult{Path: displayPath, SkipReason: SkipNotSource}, nil
	}
	return a.analyzeContent(path, displayPath, content, 0), nil
}

// AnalyzeChanged is AnalyzeFile that skips files whose content hash matches
// the previous analysis of the same path
func (a *Analyzer) AnalyzeChanged(path, displayPath string) (FileResult, error) {
	content, err := a.readSource(path)
	if err != nil {
		if !errors.Is(err, security.ErrNotSource) {
			return FileResult{}, err
		}
		return FileResult{Path: displayPath, SkipReason: SkipNotSource}, nil
	}
	hash := xxhash.Sum64String(content)
	if prev, ok := a.hashes.Load(path); ok && prev.(uint64) == hash {
		return FileResult{Path: displayPath, SkipReason: SkipUnchanged}, nil
	}
	return a.analyzeContent(path, displayPath, content, hash), nil
}

// Forget drops the remembered hash of a removed file
func (a *Analyzer) Forget(path string) {
	a.hashes.Delete(path)
}

// analyzeContent runs the engine and remembers the content hash. hash is
// the caller's xxhash of content, or 0 when it has none.
func (a *Analyzer) analyzeContent(path, displayPath, content string, hash uint64) FileResult {
	start := time.Now()
	if limit := a.config.Index.MaxLines; limit > 0 {
		if lines := core.CountLines(content); lines > limit {
			a.logger.Info("skipping file", "file", displayPath, "lines", lines, "limit", limit)
			return FileResult{Path: displayPath, SkipReason: SkipTooManyLines, Duration: time.Since(start)}
		}
	}

	result := a.engine.Run(displayPath, content, a.instances)
	switch {
	case result.Hash != 0:
		hash = result.Hash
	case hash == 0:
		// no rules ran, so no context hashed the content
		hash = xxhash.Sum64String(content)
	}
	a.hashes.Store(path, hash)
	a.filesAnalyzed.Add(1)
	return FileResult{Path: displayPath, Result: result, Duration: time.Since(start)}
}

func (a *Analyzer) readSource(path string) (string, error) {
	if err := a.scanner.Validator().ValidateFile(path); err != nil {
		if errors.Is(err, security.ErrNotSource) {
			return "", err
		}
		return "", mlerrors.NewFileError("stat", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", mlerrors.NewFileError("read", path, err)
	}
	return string(data), nil
}
