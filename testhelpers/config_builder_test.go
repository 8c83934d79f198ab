package testhelpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/mlint/internal/config"
	"github.com/standardbeagle/mlint/internal/rules"
)

func TestTestConfigBuilder(t *testing.T) {
	cfg := NewTestConfigBuilder("/p").
		WithWorkers(3).
		WithExclusions("**/Legacy/**").
		WithMaxLines(10).
		WithGitignore(false).
		WithRules(ForbiddenRule("no-get", "Get"), PatternRule("todo", "TODO")).
		Build()

	assert.Equal(t, "/p", cfg.Project.Root)
	assert.Equal(t, 3, cfg.Performance.Workers)
	assert.Contains(t, cfg.Exclude, "**/Legacy/**")
	assert.Contains(t, cfg.Exclude, "**/*.nb")
	assert.Equal(t, 10, cfg.Index.MaxLines)
	assert.False(t, cfg.Index.RespectGitignore)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, rules.ForbiddenAPIKey, cfg.Rules[0].TemplateKey)
	assert.Equal(t, "TODO", cfg.Rules[1].Param(rules.ParamPattern))

	require.NoError(t, config.ValidateConfig(cfg))
	for _, r := range cfg.Rules {
		_, err := rules.Activate(r)
		assert.NoError(t, err, r.Key)
	}
}

func TestWriteTree(t *testing.T) {
	root := WriteTree(t, map[string]string{
		"A.wl":            "a",
		"Kernel/Sub/B.wl": "b",
	})
	data, err := os.ReadFile(filepath.Join(root, "Kernel", "Sub", "B.wl"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}
