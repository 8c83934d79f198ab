// Package testhelpers provides shared utilities for testing mlint
package testhelpers

import (
	"github.com/standardbeagle/mlint/internal/config"
	"github.com/standardbeagle/mlint/internal/rules"
)

// TestConfigBuilder provides a fluent API for building test configs with
// predictable defaults. Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(root).
//		WithExclusions("**/Legacy/**").
//		WithRules(testhelpers.ForbiddenRule("no-get", "Get")).
//		Build()
type TestConfigBuilder struct {
	cfg *config.Config
}

// NewTestConfigBuilder starts from config.Default with two workers so
// concurrency is exercised without depending on the CPU count
func NewTestConfigBuilder(projectRoot string) *TestConfigBuilder {
	cfg := config.Default(projectRoot)
	cfg.Performance.Workers = 2
	return &TestConfigBuilder{cfg: cfg}
}

// NewConfig is NewTestConfigBuilder(projectRoot).Build()
func NewConfig(projectRoot string) *config.Config {
	return NewTestConfigBuilder(projectRoot).Build()
}

// WithWorkers sets the analysis worker count
func (b *TestConfigBuilder) WithWorkers(n int) *TestConfigBuilder {
	b.cfg.Performance.Workers = n
	return b
}

// WithExclusions adds exclusion patterns to the defaults
func (b *TestConfigBuilder) WithExclusions(patterns ...string) *TestConfigBuilder {
	b.cfg.Exclude = append(b.cfg.Exclude, patterns...)
	return b
}

// WithIncludePatterns sets the include patterns (replaces defaults)
func (b *TestConfigBuilder) WithIncludePatterns(patterns ...string) *TestConfigBuilder {
	b.cfg.Include = patterns
	return b
}

// WithMaxLines sets the per-file line limit
func (b *TestConfigBuilder) WithMaxLines(n int) *TestConfigBuilder {
	b.cfg.Index.MaxLines = n
	return b
}

// WithGitignore toggles .gitignore handling
func (b *TestConfigBuilder) WithGitignore(respect bool) *TestConfigBuilder {
	b.cfg.Index.RespectGitignore = respect
	return b
}

// WithRules appends rule instances
func (b *TestConfigBuilder) WithRules(instances ...rules.RuleInstance) *TestConfigBuilder {
	b.cfg.Rules = append(b.cfg.Rules, instances...)
	return b
}

// Build returns the config. The builder must not be reused afterwards.
func (b *TestConfigBuilder) Build() *config.Config {
	return b.cfg
}

// ForbiddenRule is a custom-forbidden-api instance for apiName
func ForbiddenRule(key, apiName string) rules.RuleInstance {
	return rules.RuleInstance{
		Key:         key,
		TemplateKey: rules.ForbiddenAPIKey,
		Params:      map[string]string{rules.ParamAPIName: apiName},
	}
}

// PatternRule is a custom-pattern-match instance
func PatternRule(key, pattern string) rules.RuleInstance {
	return rules.RuleInstance{
		Key:         key,
		TemplateKey: rules.PatternMatchKey,
		Params:      map[string]string{rules.ParamPattern: pattern},
	}
}
