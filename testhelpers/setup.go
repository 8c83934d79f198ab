package testhelpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTree creates files (slash-separated relative paths) under a new
// temp dir and returns it
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
	return root
}

// WriteFile writes content to root/rel, creating parent directories
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// IsolateHome points HOME at an empty temp dir so a developer's global
// ~/.mlint.kdl cannot leak into config loading. Not usable with t.Parallel.
func IsolateHome(t testing.TB) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}
