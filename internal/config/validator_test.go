package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mlerrors "github.com/standardbeagle/mlint/internal/errors"
	"github.com/standardbeagle/mlint/internal/rules"
)

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := &Config{Project: Project{Root: "/work/paclet"}}

	require.NoError(t, ValidateConfig(cfg))

	assert.GreaterOrEqual(t, cfg.Performance.Workers, 1)
	assert.Equal(t, 2_000_000, cfg.Performance.ParseLimit)
	assert.Equal(t, DefaultQueueSize, cfg.Performance.QueueSize)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Index.MaxFileSize)
	assert.Equal(t, DefaultMaxLines, cfg.Index.MaxLines)
	assert.Equal(t, DefaultExtensions, cfg.Index.Extensions)
	assert.Equal(t, DefaultWatchDebounceMs, cfg.Index.WatchDebounceMs)
	assert.Equal(t, "paclet", cfg.Project.Name)
}

func TestValidateAndSetDefaults_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
	}{
		{"empty root", func(c *Config) { c.Project.Root = "" }, "project"},
		{"negative size", func(c *Config) { c.Index.MaxFileSize = -1 }, "index"},
		{"huge size", func(c *Config) { c.Index.MaxFileSize = 200 * 1024 * 1024 }, "index"},
		{"negative lines", func(c *Config) { c.Index.MaxLines = -5 }, "index"},
		{"extension without dot", func(c *Config) { c.Index.Extensions = []string{"wl"} }, "index"},
		{"negative workers", func(c *Config) { c.Performance.Workers = -1 }, "performance"},
		{"negative parse limit", func(c *Config) { c.Performance.ParseLimit = -1 }, "performance"},
		{"blank rule key", func(c *Config) { c.Rules = []rules.RuleInstance{{Key: " "}} }, "rule"},
		{"duplicate rule key", func(c *Config) {
			c.Rules = []rules.RuleInstance{{Key: "a"}, {Key: "a"}}
		}, "rule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/work")
			tt.mutate(cfg)

			err := NewValidator().ValidateAndSetDefaults(cfg)
			var configErr *mlerrors.ConfigError
			require.True(t, errors.As(err, &configErr))
			assert.Equal(t, tt.section, configErr.Field)
		})
	}
}

func TestValidate_UnknownTemplateIsNotAConfigError(t *testing.T) {
	cfg := Default("/work")
	cfg.Rules = []rules.RuleInstance{{Key: "r", TemplateKey: "no-such-template"}}
	assert.NoError(t, ValidateConfig(cfg))
}
