package indexing

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/mlint/internal/config"
	"github.com/standardbeagle/mlint/internal/security"
	"github.com/standardbeagle/mlint/pkg/pathutil"
)

// validationThresholdKB is the size above which a file's header is
// checked for binary content before it is read in full
const validationThresholdKB = 100

// FileTask is a source file selected for analysis
type FileTask struct {
	Path    string // absolute
	RelPath string // slash-separated, relative to the scan root
	Size    int64
}

// FileScanner walks a project tree and selects Wolfram Language sources
type FileScanner struct {
	config          *config.Config
	logger          *slog.Logger
	gitignoreParser *config.GitignoreParser
	validator       *security.FileValidator
	extensions      map[string]bool

	exclusions []string
	inclusions []string
}

// NewFileScanner creates a scanner for cfg. A nil logger means slog.Default.
func NewFileScanner(cfg *config.Config, logger *slog.Logger) *FileScanner {
	if logger == nil {
		logger = slog.Default()
	}
	fs := &FileScanner{
		config:     cfg,
		logger:     logger,
		validator:  security.NewFileValidator(validationThresholdKB, cfg.Index.MaxFileSize),
		extensions: make(map[string]bool, len(cfg.Index.Extensions)),
		exclusions: append([]string(nil), cfg.Exclude...),
		inclusions: append([]string(nil), cfg.Include...),
	}
	exts := cfg.Index.Extensions
	if len(exts) == 0 {
		exts = config.DefaultExtensions
	}
	for _, ext := range exts {
		fs.extensions[strings.ToLower(ext)] = true
	}

	if cfg.Index.RespectGitignore {
		fs.gitignoreParser = config.NewGitignoreParser()
		if err := fs.gitignoreParser.LoadGitignore(cfg.Project.Root); err != nil {
			logger.Warn("failed to load .gitignore", "root", cfg.Project.Root, "error", err)
		}
	}
	return fs
}

// Validator returns the validator applied to files before reading them
func (fs *FileScanner) Validator() *security.FileValidator { return fs.validator }

// Collect walks root and returns the selected files sorted by path
func (fs *FileScanner) Collect(ctx context.Context, root string) ([]FileTask, error) {
	var tasks []FileTask
	err := fs.Walk(ctx, root, func(task FileTask) error {
		tasks = append(tasks, task)
		return nil
	})
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].RelPath < tasks[j].RelPath })
	return tasks, err
}

// Walk calls fn for every selected file under root. Excluded directories
// are pruned; symlink cycles are skipped. An error from fn stops the walk.
func (fs *FileScanner) Walk(ctx context.Context, root string, fn func(FileTask) error) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	visitedDirs := make(map[string]bool)

	return filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			fs.logger.Debug("scanner error", "path", path, "error", err)
			return nil
		}

		relPath := fs.relativePath(absRoot, path)

		if info.IsDir() {
			realPath, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			if visitedDirs[realPath] {
				return filepath.SkipDir
			}
			visitedDirs[realPath] = true

			if path != absRoot && fs.excludedDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if !fs.shouldProcessFile(relPath, info) {
			return nil
		}
		return fn(FileTask{Path: path, RelPath: relPath, Size: info.Size()})
	})
}

// Matches reports whether a file at path (absolute, under the project
// root) would be selected by a scan. Used for watcher events, where the
// file may already be gone.
func (fs *FileScanner) Matches(path string) bool {
	relPath := fs.relativePath(fs.config.Project.Root, path)
	if !fs.hasSourceExtension(relPath) {
		return false
	}
	if fs.excludedFile(relPath) {
		return false
	}
	for dir := filepath.ToSlash(filepath.Dir(relPath)); dir != "." && dir != "/" && dir != ""; dir = filepath.ToSlash(filepath.Dir(dir)) {
		if fs.excludedDir(dir) {
			return false
		}
	}
	return true
}

// ExcludedDir reports whether the directory at path should not be walked
// or watched
func (fs *FileScanner) ExcludedDir(path string) bool {
	relPath := fs.relativePath(fs.config.Project.Root, path)
	if relPath == "." {
		return false
	}
	return fs.excludedDir(relPath)
}

func (fs *FileScanner) shouldProcessFile(relPath string, info os.FileInfo) bool {
	if !fs.hasSourceExtension(relPath) {
		return false
	}
	if fs.excludedFile(relPath) {
		return false
	}
	if fs.config.Index.MaxFileSize > 0 && info.Size() > fs.config.Index.MaxFileSize {
		fs.logger.Debug("skipping oversized file", "path", relPath, "size", info.Size(), "limit", fs.config.Index.MaxFileSize)
		return false
	}
	if !fs.config.Index.FollowSymlinks && info.Mode()&os.ModeSymlink != 0 {
		return false
	}
	return true
}

func (fs *FileScanner) hasSourceExtension(path string) bool {
	return fs.extensions[strings.ToLower(filepath.Ext(path))]
}

func (fs *FileScanner) excludedDir(relPath string) bool {
	if fs.matchesAny(fs.exclusions, relPath) || fs.matchesAny(fs.exclusions, relPath+"/") {
		return true
	}
	return fs.gitignoreParser != nil && fs.gitignoreParser.ShouldIgnore(relPath)
}

func (fs *FileScanner) excludedFile(relPath string) bool {
	if fs.matchesAny(fs.exclusions, relPath) {
		return true
	}
	if len(fs.inclusions) > 0 && !fs.matchesAny(fs.inclusions, relPath) {
		return true
	}
	return fs.gitignoreParser != nil && fs.gitignoreParser.ShouldIgnore(relPath)
}

// matchesAny skips malformed patterns rather than failing the scan
func (fs *FileScanner) matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

func (fs *FileScanner) relativePath(root, path string) string {
	return pathutil.ToRelative(path, root)
}
