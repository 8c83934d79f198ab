package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mlerrors "github.com/standardbeagle/mlint/internal/errors"
	"github.com/standardbeagle/mlint/internal/rules"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)

	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Index.MaxFileSize)
	assert.Equal(t, DefaultMaxLines, cfg.Index.MaxLines)
	assert.Equal(t, []string{".m", ".wl", ".wls"}, cfg.Index.Extensions)
	assert.Equal(t, 2_000_000, cfg.Performance.ParseLimit)
	assert.True(t, cfg.Index.RespectGitignore)
	assert.Empty(t, cfg.Rules)
}

func TestParseKDL_FullConfig(t *testing.T) {
	content := `
version 1
project {
    root "src"
    name "paclet"
}
index {
    max_file_size "2MB"
    max_lines 1000
    extensions "m" ".WL"
    follow_symlinks true
    respect_gitignore false
    watch_debounce_ms 50
}
performance {
    workers 3
    parse_limit 5000
    queue_size 16
}
include "Kernel/**"
exclude {
    "**/Tests/**"
}
rule "no-appendto" template="custom-forbidden-api" {
    apiName "AppendTo"
    reason "Use Sow/Reap"
}
rule "legacy" template="custom-function-name-pattern" function_name_pattern="^old" message="Legacy name"
`
	cfg, err := parseKDL(content)
	require.NoError(t, err)

	assert.Equal(t, "src", cfg.Project.Root)
	assert.Equal(t, "paclet", cfg.Project.Name)
	assert.Equal(t, int64(2*1024*1024), cfg.Index.MaxFileSize)
	assert.Equal(t, 1000, cfg.Index.MaxLines)
	assert.Equal(t, []string{".m", ".wl"}, cfg.Index.Extensions)
	assert.True(t, cfg.Index.FollowSymlinks)
	assert.False(t, cfg.Index.RespectGitignore)
	assert.Equal(t, 50, cfg.Index.WatchDebounceMs)
	assert.Equal(t, 3, cfg.Performance.Workers)
	assert.Equal(t, 5000, cfg.Performance.ParseLimit)
	assert.Equal(t, 16, cfg.Performance.QueueSize)
	assert.Equal(t, []string{"Kernel/**"}, cfg.Include)
	assert.Equal(t, []string{"**/Tests/**"}, cfg.Exclude)

	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, rules.RuleInstance{
		Key:         "no-appendto",
		TemplateKey: rules.ForbiddenAPIKey,
		Params:      map[string]string{"apiName": "AppendTo", "reason": "Use Sow/Reap"},
	}, cfg.Rules[0])
	assert.Equal(t, rules.RuleInstance{
		Key:         "legacy",
		TemplateKey: rules.FunctionNamePatternKey,
		Params:      map[string]string{"function_name_pattern": "^old", "message": "Legacy name"},
	}, cfg.Rules[1])
}

func TestParseKDL_RuleWithoutTemplate(t *testing.T) {
	cfg, err := parseKDL(`rule "pending" { pattern "Foo" }`)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)
	assert.Empty(t, cfg.Rules[0].TemplateKey)
	assert.Equal(t, "Foo", cfg.Rules[0].Param("pattern"))
}

func TestParseKDL_Errors(t *testing.T) {
	_, err := parseKDL(`rule template="custom-pattern-match"`)
	var configErr *mlerrors.ConfigError
	require.True(t, errors.As(err, &configErr))

	_, err = parseKDL(`index {`)
	assert.Error(t, err)
}

func TestParseTOML(t *testing.T) {
	content := `
exclude = ["**/Old/**"]

[project]
name = "paclet"

[index]
max_file_size = "1MB"
max_lines = 10
extensions = ["wl"]

[performance]
workers = 2

[[rule]]
key = "no-get"
template = "custom-forbidden-api"
[rule.params]
apiName = "Get"

[[rule]]
key = "limit"
template = "custom-pattern-match"
[rule.params]
pattern = "Do\\["
count = 3
`
	cfg, err := parseTOML([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, "paclet", cfg.Project.Name)
	assert.Equal(t, int64(1024*1024), cfg.Index.MaxFileSize)
	assert.Equal(t, 10, cfg.Index.MaxLines)
	assert.Equal(t, []string{".wl"}, cfg.Index.Extensions)
	assert.Equal(t, 2, cfg.Performance.Workers)
	assert.Equal(t, []string{"**/Old/**"}, cfg.Exclude)

	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "Get", cfg.Rules[0].Param(rules.ParamAPIName))
	assert.Equal(t, `Do\[`, cfg.Rules[1].Param(rules.ParamPattern))
	assert.Equal(t, "3", cfg.Rules[1].Param("count"))
}

func TestParseTOML_Errors(t *testing.T) {
	_, err := parseTOML([]byte("[[rule]]\ntemplate = \"custom-pattern-match\"\n"))
	var configErr *mlerrors.ConfigError
	require.True(t, errors.As(err, &configErr))

	_, err = parseTOML([]byte("[index]\nmax_file_size = \"lots\"\n"))
	require.True(t, errors.As(err, &configErr))

	_, err = parseTOML([]byte("not toml ["))
	assert.Error(t, err)
}

func TestMergeConfigs(t *testing.T) {
	base := Default("/home")
	base.Exclude = []string{"**/a/**", "**/shared/**"}
	base.Include = []string{"**/*.wl"}
	base.Rules = []rules.RuleInstance{
		{Key: "global-only", TemplateKey: rules.PatternMatchKey},
		{Key: "shared", TemplateKey: rules.PatternMatchKey},
	}

	project := Default("/proj")
	project.Exclude = []string{"**/shared/**", "**/b/**"}
	project.Index.MaxLines = 7
	project.Rules = []rules.RuleInstance{{Key: "shared", TemplateKey: rules.ForbiddenAPIKey}}

	merged := mergeConfigs(base, project)

	assert.Equal(t, []string{"**/a/**", "**/shared/**", "**/b/**"}, merged.Exclude)
	assert.Equal(t, []string{"**/*.wl"}, merged.Include)
	assert.Equal(t, 7, merged.Index.MaxLines)
	assert.Equal(t, "/proj", merged.Project.Root)
	require.Len(t, merged.Rules, 2)
	assert.Equal(t, "global-only", merged.Rules[0].Key)
	assert.Equal(t, rules.ForbiddenAPIKey, merged.Rules[1].TemplateKey)
}

func TestLoadWithRoot_MergesGlobalAndProjectConfigs(t *testing.T) {
	tmpHome := t.TempDir()
	tmpProject := t.TempDir()
	t.Setenv("HOME", tmpHome)

	global := `
exclude {
    "**/Vendor/**"
}
rule "no-print" template="custom-forbidden-api" apiName="Print"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpHome, ".mlint.kdl"), []byte(global), 0644))

	project := `
project {
    name "demo"
}
exclude {
    "**/Build/**"
}
index {
    max_lines 99
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpProject, ".mlint.kdl"), []byte(project), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpProject, ".gitignore"), []byte("# generated\nScratch/\n"), 0644))

	cfg, err := LoadWithRoot(tmpProject)
	require.NoError(t, err)

	assert.Contains(t, cfg.Exclude, "**/Vendor/**")
	assert.Contains(t, cfg.Exclude, "**/Build/**")
	assert.Contains(t, cfg.Exclude, "**/Scratch/**")
	assert.Equal(t, 99, cfg.Index.MaxLines)
	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, filepath.Join(tmpProject, ".mlint.kdl"), cfg.Source)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "no-print", cfg.Rules[0].Key)
}

func TestLoadWithRoot_TOMLProject(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tmpProject := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpProject, ".mlint.toml"), []byte("[index]\nmax_lines = 12\n"), 0644))

	cfg, err := LoadWithRoot(tmpProject)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Index.MaxLines)
	assert.Equal(t, tmpProject, cfg.Project.Root)
	assert.Equal(t, filepath.Base(tmpProject), cfg.Project.Name)
}

func TestLoadWithRoot_DefaultConfigFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tmpProject := t.TempDir()

	cfg, err := LoadWithRoot(tmpProject)
	require.NoError(t, err)
	assert.Equal(t, tmpProject, cfg.Project.Root)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, Default(tmpProject).Exclude, cfg.Exclude)
}

func TestLoadWithRoot_InvalidProjectConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tmpProject := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpProject, ".mlint.kdl"), []byte("index {"), 0644))

	_, err := LoadWithRoot(tmpProject)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	kdlPath := filepath.Join(dir, "ci.kdl")
	require.NoError(t, os.WriteFile(kdlPath, []byte(`rule "no-print" template="custom-forbidden-api" apiName="Print"`), 0644))
	tomlPath := filepath.Join(dir, "ci.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[[rule]]\nkey = \"no-get\"\ntemplate = \"custom-forbidden-api\"\n"), 0644))

	cfg, err := LoadFile(kdlPath)
	require.NoError(t, err)
	assert.Equal(t, kdlPath, cfg.Source)
	assert.Equal(t, dir, cfg.Project.Root)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "Print", cfg.Rules[0].Param("apiName"))

	cfg, err = LoadFile(tomlPath)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "no-get", cfg.Rules[0].Key)

	_, err = LoadFile(filepath.Join(dir, "missing.kdl"))
	var fileErr *mlerrors.FileError
	assert.True(t, errors.As(err, &fileErr))
}

func TestWorkers(t *testing.T) {
	cfg := Default("/x")
	assert.GreaterOrEqual(t, cfg.Workers(), 1)
	cfg.Performance.Workers = 5
	assert.Equal(t, 5, cfg.Workers())
}
