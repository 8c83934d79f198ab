package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/goleak"

	"github.com/standardbeagle/mlint/internal/display"
	"github.com/standardbeagle/mlint/internal/report"
	"github.com/standardbeagle/mlint/internal/rules"
	"github.com/standardbeagle/mlint/testhelpers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// syncBuffer is a bytes.Buffer safe for the watcher goroutine to write to
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// setupTestProject writes files under a temp root with HOME isolated
func setupTestProject(t *testing.T, files map[string]string) string {
	t.Helper()
	testhelpers.IsolateHome(t)
	return testhelpers.WriteTree(t, files)
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut syncBuffer
	err = newApp(&out, &errOut).Run(append([]string{"mlint"}, args...))
	return out.String(), errOut.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return exitError
}

var appendToFlags = []string{
	"--rule", "no-appendto=" + rules.ForbiddenAPIKey,
	"--param", "no-appendto.apiName=AppendTo",
	"--param", "no-appendto.reason=Use Reap/Sow, or Table",
}

func TestAnalyze_ReportsIssues(t *testing.T) {
	root := setupTestProject(t, map[string]string{
		"Kernel/A.wl": "x = {};\nAppendTo[x, 1]\n",
		"Kernel/B.m":  "f[] := 1\n",
		"notes.txt":   "AppendTo[x, 1]",
	})

	stdout, _, err := runCLI(t, append(append([]string{"--root", root, "analyze"}, appendToFlags...), "--workers", "2")...)
	assert.Equal(t, exitIssues, exitCode(err))

	assert.Contains(t, stdout, "Kernel/A.wl\n")
	assert.Contains(t, stdout, "2  no-appendto  Forbidden API 'AppendTo': Use Reap/Sow, or Table")
	assert.Contains(t, stdout, "1 issue in 2 files")
	assert.NotContains(t, stdout, "notes.txt")
}

func TestAnalyze_CleanProject(t *testing.T) {
	root := setupTestProject(t, map[string]string{"A.wl": "f[x_] := x + 1\n"})

	stdout, _, err := runCLI(t, append([]string{"--root", root, "analyze"}, appendToFlags...)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No issues found")
}

func TestAnalyze_JSONAndExplicitFile(t *testing.T) {
	root := setupTestProject(t, map[string]string{
		"A.wl":       "AppendTo[x, 1]\n",
		"Script.txt": "AppendTo[x, 1]\nAppendTo[x, 2]\n",
	})

	args := append([]string{"--root", root, "analyze", "--json", "--exit-zero"}, appendToFlags...)
	stdout, _, err := runCLI(t, append(args, filepath.Join(root, "Script.txt"))...)
	require.NoError(t, err)

	var decoded struct {
		Issues []report.Issue   `json:"issues"`
		Totals *display.Totals `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	require.Len(t, decoded.Issues, 2)
	assert.Equal(t, "Script.txt", decoded.Issues[0].File)
	assert.Equal(t, 2, decoded.Issues[1].Line)
	require.NotNil(t, decoded.Totals)
	assert.Equal(t, 1, decoded.Totals.Analyzed)
}

func TestAnalyze_ProjectConfigRules(t *testing.T) {
	root := setupTestProject(t, map[string]string{
		".mlint.kdl": `rule "no-legacy" template="custom-function-name-pattern" {
    functionNamePattern "^old"
    message "Legacy name"
}
`,
		"Kernel/A.wl": "oldHelper[x_] := x\nnewHelper[x_] := x\n",
	})

	stdout, _, err := runCLI(t, "--root", root, "analyze", "--format", "compact", "--quiet")
	assert.Equal(t, exitIssues, exitCode(err))
	assert.Equal(t, "Kernel/A.wl:1: [no-legacy] Legacy name: oldHelper\n", stdout)

	// A --param can retarget a configured rule
	stdout, _, err = runCLI(t, "--root", root, "analyze", "--format", "compact", "--quiet",
		"--param", "no-legacy.functionNamePattern=^new")
	assert.Equal(t, exitIssues, exitCode(err))
	assert.Equal(t, "Kernel/A.wl:2: [no-legacy] Legacy name: newHelper\n", stdout)
}

func TestAnalyze_PatternWithCommas(t *testing.T) {
	root := setupTestProject(t, map[string]string{"A.wl": "Table[i, {i, 1, 10}]\n"})

	stdout, _, err := runCLI(t, "--root", root, "analyze", "--format", "compact", "--quiet",
		"--rule", "explicit-range="+rules.PatternMatchKey,
		"--param", `explicit-range.pattern=\{i, 1, \d+\}`)
	assert.Equal(t, exitIssues, exitCode(err))
	assert.Contains(t, stdout, "A.wl:1: [explicit-range]")
}

func TestAnalyze_WarnsAboutInactiveRules(t *testing.T) {
	root := setupTestProject(t, map[string]string{"A.wl": "AppendTo[x, 1]\n"})

	args := append([]string{"--root", root, "analyze", "--rule", "typo=custom-forbiden-api"}, appendToFlags...)
	_, stderr, err := runCLI(t, args...)
	assert.Equal(t, exitIssues, exitCode(err))
	assert.Contains(t, stderr, "warning: rule typo: unknown template")
	assert.Contains(t, stderr, rules.ForbiddenAPIKey)
}

func TestAnalyze_Errors(t *testing.T) {
	root := setupTestProject(t, map[string]string{"A.wl": "a[]\n"})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no rules", []string{"analyze"}, "no rules configured"},
		{"bad rule", []string{"analyze", "--rule", "no-template"}, "want key=template"},
		{"unknown param target", []string{"analyze", "--rule", "a=" + rules.PatternMatchKey, "--param", "b.pattern=x"}, "undefined rule"},
		{"bad format", append([]string{"analyze", "--format", "xml"}, appendToFlags...), "unknown format"},
		{"missing path", append(append([]string{"analyze"}, appendToFlags...), "nope.wl"), "nope.wl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, append([]string{"--root", root}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, exitError, exitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTemplatesCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "templates")
	require.NoError(t, err)
	for _, key := range rules.TemplateKeys() {
		assert.Contains(t, stdout, key)
	}

	stdout, _, err = runCLI(t, "templates", "--json")
	require.NoError(t, err)
	var decoded []rules.TemplateInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	assert.Len(t, decoded, len(rules.TemplateKeys()))
}

func TestConfigCommands(t *testing.T) {
	for _, format := range []string{"kdl", "toml"} {
		t.Run(format, func(t *testing.T) {
			root := setupTestProject(t, nil)

			stdout, _, err := runCLI(t, "--root", root, "config", "init", "--format", format)
			require.NoError(t, err)
			assert.Contains(t, stdout, "Configuration file created")

			_, _, err = runCLI(t, "--root", root, "config", "init", "--format", format)
			assert.Equal(t, exitError, exitCode(err))

			stdout, _, err = runCLI(t, "--root", root, "config", "validate")
			require.NoError(t, err, stdout)
			assert.Contains(t, stdout, "Configuration is valid")

			stdout, _, err = runCLI(t, "--root", root, "config", "show")
			require.NoError(t, err)
			assert.Contains(t, stdout, `rule "no-appendto" template="custom-forbidden-api"`)
			assert.Contains(t, stdout, `apiName "AppendTo"`)
		})
	}
}

func TestConfigShow_RoundTrips(t *testing.T) {
	root := setupTestProject(t, map[string]string{
		".mlint.kdl": `rule "quoted" template="custom-pattern-match" {
    pattern "Print\\[\"x\""
}
`,
	})

	shown, _, err := runCLI(t, "--root", root, "config", "show")
	require.NoError(t, err)

	other := t.TempDir()
	path := filepath.Join(other, "shown.kdl")
	require.NoError(t, os.WriteFile(path, []byte(shown), 0644))

	stdout, _, err := runCLI(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, `pattern "Print\\[\"x\""`)
}

func TestConfigValidate_ReportsInactiveRules(t *testing.T) {
	root := setupTestProject(t, map[string]string{
		".mlint.kdl": `rule "broken" template="custom-pattern-match" {
    pattern "("
}
`,
	})

	stdout, _, err := runCLI(t, "--root", root, "config", "validate")
	assert.Equal(t, exitError, exitCode(err))
	assert.Contains(t, stdout, "warning: ")
	assert.Contains(t, err.Error(), "1 of 1 rules cannot run")
}

func TestWatchCommand(t *testing.T) {
	root := setupTestProject(t, map[string]string{
		".mlint.kdl": "index {\n    watch_debounce_ms 20\n}\n",
		"A.wl":       "AppendTo[x, 1]\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	var out, errOut syncBuffer
	done := make(chan error, 1)
	go func() {
		args := append([]string{"mlint", "--root", root, "watch"}, appendToFlags...)
		done <- newApp(&out, &errOut).RunContext(ctx, args)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "watching ")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "A.wl:1: [no-appendto]")

	// The watch is in place once the initial report is printed; keep
	// rewriting until the batch shows up
	changed := filepath.Join(root, "B.wl")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(changed, []byte("y = 1;\nAppendTo[y, 2]\n"), 0644)
		return strings.Contains(out.String(), "B.wl:2: [no-appendto]")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, exitIssues, reportError(&buf, cli.Exit("", exitIssues)))
	assert.Empty(t, buf.String())

	assert.Equal(t, exitError, reportError(&buf, errors.New("boom")))
	assert.Equal(t, "mlint: boom\n", buf.String())
}
