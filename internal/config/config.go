package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/standardbeagle/mlint/internal/core"
	mlerrors "github.com/standardbeagle/mlint/internal/errors"
	"github.com/standardbeagle/mlint/internal/rules"
)

// Defaults shared by the KDL and TOML loaders
const (
	DefaultMaxFileSize     = 10 * 1024 * 1024
	DefaultMaxLines        = 25_000
	DefaultWatchDebounceMs = 300
	DefaultQueueSize       = 256

	kdlFileName  = ".mlint.kdl"
	tomlFileName = ".mlint.toml"
)

// DefaultExtensions are the Wolfram Language source extensions analyzed
// when a config names none. Notebooks (.nb) are data, not source.
var DefaultExtensions = []string{".m", ".wl", ".wls"}

type Config struct {
	Version     int
	Project     Project
	Index       Index
	Performance Performance
	Include     []string
	Exclude     []string
	Rules       []rules.RuleInstance

	// Source is the file the config was read from, "" for defaults
	Source string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSize      int64
	MaxLines         int      // Files with more lines are skipped entirely
	Extensions       []string // File extensions to analyze, with leading dot
	FollowSymlinks   bool
	RespectGitignore bool // Add .gitignore entries to the exclusions
	WatchDebounceMs  int  // Debounce time for file change events in watch mode
}

type Performance struct {
	Workers    int // 0 = auto-detect (NumCPU-1)
	ParseLimit int // Content length from which parsing is skipped
	QueueSize  int // Issue queue between workers and the output sink
}

// Default returns the configuration used when no config file exists
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{Root: root, Name: filepath.Base(root)},
		Index: Index{
			MaxFileSize:      DefaultMaxFileSize,
			MaxLines:         DefaultMaxLines,
			Extensions:       append([]string(nil), DefaultExtensions...),
			RespectGitignore: true,
			WatchDebounceMs:  DefaultWatchDebounceMs,
		},
		Performance: Performance{
			Workers:    0,
			ParseLimit: core.MaxParseSize,
			QueueSize:  DefaultQueueSize,
		},
		Include: []string{},
		Exclude: []string{
			"**/.git/**",
			"**/.*/**",
			"**/build/**",
			"**/node_modules/**",
			"**/*.nb",
			"**/*.mx",
		},
	}
}

// Load reads configuration for the current directory
func Load() (*Config, error) {
	return LoadWithRoot("")
}

// LoadWithRoot reads configuration for rootDir. A global ~/.mlint.kdl
// provides base settings; the project's .mlint.kdl or .mlint.toml
// overrides them. Without any file the defaults apply.
func LoadWithRoot(rootDir string) (*Config, error) {
	searchDir := rootDir
	if searchDir == "" {
		searchDir = "."
	}
	absRoot, err := filepath.Abs(searchDir)
	if err != nil {
		absRoot = searchDir
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil && filepath.Clean(homeDir) != absRoot {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	projectConfig, err := loadProject(absRoot)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch {
	case baseConfig != nil && projectConfig != nil:
		cfg = mergeConfigs(baseConfig, projectConfig)
	case projectConfig != nil:
		cfg = projectConfig
	case baseConfig != nil:
		baseConfig.Project.Root = absRoot
		baseConfig.Project.Name = filepath.Base(absRoot)
		cfg = baseConfig
	default:
		cfg = Default(absRoot)
	}

	if cfg.Index.RespectGitignore {
		cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, LoadGitignorePatterns(cfg.Project.Root)...))
	}
	return cfg, nil
}

// LoadFile reads one config file by path, TOML when the extension is
// .toml and KDL otherwise. Gitignore handling matches LoadWithRoot.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, mlerrors.NewFileError("read", path, err)
	}

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = parseTOML(content)
	} else {
		cfg, err = parseKDL(string(content))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Source = path
	resolveRoot(cfg, filepath.Dir(path))

	if cfg.Index.RespectGitignore {
		cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, LoadGitignorePatterns(cfg.Project.Root)...))
	}
	return cfg, nil
}

// loadProject prefers .mlint.kdl over .mlint.toml
func loadProject(root string) (*Config, error) {
	cfg, err := LoadKDL(root)
	if err != nil || cfg != nil {
		return cfg, err
	}
	return LoadTOML(root)
}

// mergeConfigs merges a base config with a project config. The project
// wins everywhere except exclusions, which are combined, and rules, where
// base rules not redefined by the project are kept.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	defined := make(map[string]bool, len(project.Rules))
	for _, r := range project.Rules {
		defined[r.Key] = true
	}
	rulesOut := make([]rules.RuleInstance, 0, len(base.Rules)+len(project.Rules))
	for _, r := range base.Rules {
		if !defined[r.Key] {
			rulesOut = append(rulesOut, r)
		}
	}
	merged.Rules = append(rulesOut, project.Rules...)

	return &merged
}

// Workers resolves the worker count, 0 meaning NumCPU-1 (at least 1)
func (c *Config) Workers() int {
	if c.Performance.Workers > 0 {
		return c.Performance.Workers
	}
	return max(1, runtime.NumCPU()-1)
}

// DeduplicatePatterns removes duplicate patterns, keeping first occurrences
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
