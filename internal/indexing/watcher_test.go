package indexing

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/mlint/internal/debug"
	"github.com/standardbeagle/mlint/testhelpers"
)

type batchRecorder struct {
	mu     sync.Mutex
	events map[string]FileEventType
}

func (r *batchRecorder) handle(events []FileEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.events[e.Path] = e.Type
	}
}

func (r *batchRecorder) get(path string) (FileEventType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.events[path]
	return t, ok
}

func startWatcher(t *testing.T, root string) (*FileWatcher, *batchRecorder) {
	t.Helper()
	rec := &batchRecorder{events: map[string]FileEventType{}}
	scanner := NewFileScanner(testhelpers.NewConfig(root), debug.Discard())

	fw, err := NewFileWatcher(scanner, 20*time.Millisecond, rec.handle, debug.Discard())
	require.NoError(t, err)
	require.NoError(t, fw.Start(root))
	t.Cleanup(func() { _ = fw.Stop() })
	return fw, rec
}

func TestFileWatcher_DeliversSourceChanges(t *testing.T) {
	root := testhelpers.WriteTree(t, map[string]string{"Kernel/Existing.wl": "a[]"})
	fw, rec := startWatcher(t, root)

	created := filepath.Join(root, "Kernel", "New.wl")
	require.NoError(t, os.WriteFile(created, []byte("b[]"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Kernel", "notes.txt"), []byte("x"), 0644))

	require.Eventually(t, func() bool {
		_, ok := rec.get(created)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	_, ok := rec.get(filepath.Join(root, "Kernel", "notes.txt"))
	assert.False(t, ok)

	existing := filepath.Join(root, "Kernel", "Existing.wl")
	require.NoError(t, os.Remove(existing))
	require.Eventually(t, func() bool {
		typ, ok := rec.get(existing)
		return ok && typ == FileEventRemove
	}, 5*time.Second, 10*time.Millisecond)

	events, batches := fw.Stats()
	assert.GreaterOrEqual(t, events, int64(2))
	assert.GreaterOrEqual(t, batches, int64(2))
}

func TestFileWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	_, rec := startWatcher(t, root)

	dir := filepath.Join(root, "Sub")
	require.NoError(t, os.Mkdir(dir, 0755))

	// The watch on the new directory is added asynchronously; keep writing
	// until an event arrives
	file := filepath.Join(dir, "F.m")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(file, []byte("f[]"), 0644)
		_, ok := rec.get(file)
		return ok
	}, 5*time.Second, 50*time.Millisecond)
}

func TestFileWatcher_IgnoresExcludedDirectories(t *testing.T) {
	root := testhelpers.WriteTree(t, map[string]string{"build/Gen.wl": "g[]"})
	_, rec := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "build", "Gen.wl"), []byte("g2[]"), 0644))
	marker := filepath.Join(root, "Marker.wl")
	require.NoError(t, os.WriteFile(marker, []byte("m[]"), 0644))

	require.Eventually(t, func() bool {
		_, ok := rec.get(marker)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	_, ok := rec.get(filepath.Join(root, "build", "Gen.wl"))
	assert.False(t, ok)
}

func TestFileWatcher_StopIsIdempotent(t *testing.T) {
	fw, _ := startWatcher(t, t.TempDir())
	require.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}

func TestFileEventType_String(t *testing.T) {
	assert.Equal(t, "create", FileEventCreate.String())
	assert.Equal(t, "write", FileEventWrite.String())
	assert.Equal(t, "remove", FileEventRemove.String())
	assert.Equal(t, "rename", FileEventRename.String())
	assert.Equal(t, "unknown", FileEventType(42).String())
}
