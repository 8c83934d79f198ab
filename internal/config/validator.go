package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	mlerrors "github.com/standardbeagle/mlint/internal/errors"
	"github.com/standardbeagle/mlint/internal/rules"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults.
// Rule instances are only checked structurally here; template keys and
// parameters are checked at activation so one bad rule never blocks the rest.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return mlerrors.NewConfigError("project", "", err)
	}

	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return mlerrors.NewConfigError("index", "", err)
	}

	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return mlerrors.NewConfigError("performance", "", err)
	}

	if err := v.validateRules(cfg.Rules); err != nil {
		return mlerrors.NewConfigError("rule", "", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateIndexConfig(index *Index) error {
	if index.MaxFileSize < 0 {
		return fmt.Errorf("MaxFileSize cannot be negative, got %d", index.MaxFileSize)
	}
	if index.MaxFileSize > 100*1024*1024 {
		return fmt.Errorf("MaxFileSize should not exceed 100MB, got %d", index.MaxFileSize)
	}
	if index.MaxLines < 0 {
		return fmt.Errorf("MaxLines cannot be negative, got %d", index.MaxLines)
	}
	if index.WatchDebounceMs < 0 {
		return fmt.Errorf("WatchDebounceMs cannot be negative, got %d", index.WatchDebounceMs)
	}
	for _, ext := range index.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	return nil
}

func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	// 0 means auto-detect for all three
	if perf.Workers < 0 {
		return fmt.Errorf("Workers cannot be negative, got %d", perf.Workers)
	}
	if perf.ParseLimit < 0 {
		return fmt.Errorf("ParseLimit cannot be negative, got %d", perf.ParseLimit)
	}
	if perf.QueueSize < 0 {
		return fmt.Errorf("QueueSize cannot be negative, got %d", perf.QueueSize)
	}
	return nil
}

func (v *Validator) validateRules(instances []rules.RuleInstance) error {
	seen := make(map[string]bool, len(instances))
	for _, r := range instances {
		if strings.TrimSpace(r.Key) == "" {
			return errors.New("rule key cannot be empty")
		}
		if seen[r.Key] {
			return fmt.Errorf("duplicate rule key %q", r.Key)
		}
		seen[r.Key] = true
	}
	return nil
}

func (v *Validator) setSmartDefaults(cfg *Config) {
	// Leave one core for the OS, minimum of 1
	if cfg.Performance.Workers == 0 {
		cfg.Performance.Workers = max(1, runtime.NumCPU()-1)
	}
	if cfg.Performance.ParseLimit == 0 {
		cfg.Performance.ParseLimit = Default("").Performance.ParseLimit
	}
	if cfg.Performance.QueueSize == 0 {
		cfg.Performance.QueueSize = DefaultQueueSize
	}
	if cfg.Index.MaxFileSize == 0 {
		cfg.Index.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Index.MaxLines == 0 {
		cfg.Index.MaxLines = DefaultMaxLines
	}
	if len(cfg.Index.Extensions) == 0 {
		cfg.Index.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if cfg.Index.WatchDebounceMs == 0 {
		cfg.Index.WatchDebounceMs = DefaultWatchDebounceMs
	}
	if cfg.Project.Name == "" {
		cfg.Project.Name = Default(cfg.Project.Root).Project.Name
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
