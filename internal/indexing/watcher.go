package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreate FileEventType = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
)

func (t FileEventType) String() string {
	switch t {
	case FileEventCreate:
		return "create"
	case FileEventWrite:
		return "write"
	case FileEventRemove:
		return "remove"
	case FileEventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// FileEvent is a debounced change to one source file
type FileEvent struct {
	Path string
	Type FileEventType
}

// BatchHandler receives debounced events sorted by path
type BatchHandler func(events []FileEvent)

// FileWatcher monitors a project tree and delivers batches of changed
// source files once events have been quiet for the debounce interval
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	scanner  *FileScanner
	debounce time.Duration
	logger   *slog.Logger
	onBatch  BatchHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce        sync.Once
	eventsProcessed atomic.Int64
	batches         atomic.Int64
}

// NewFileWatcher creates a watcher. Events are selected with scanner and
// delivered to onBatch from the watcher goroutine.
func NewFileWatcher(scanner *FileScanner, debounce time.Duration, onBatch BatchHandler, logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FileWatcher{
		watcher:  watcher,
		scanner:  scanner,
		debounce: debounce,
		logger:   logger,
		onBatch:  onBatch,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start adds watches for root and its non-excluded subdirectories and
// begins processing events
func (fw *FileWatcher) Start(root string) error {
	if err := fw.addWatches(root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}

	fw.wg.Add(1)
	go fw.processEvents()

	fw.logger.Debug("file watcher started", "root", root)
	return nil
}

// Stop stops the watcher and waits for its goroutine. Pending events that
// have not reached the debounce deadline are dropped.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		fw.cancel()
		err = fw.watcher.Close()
		fw.wg.Wait()
		fw.logger.Debug("file watcher stopped", "events", fw.eventsProcessed.Load(), "batches", fw.batches.Load())
	})
	return err
}

// Stats returns the number of accepted events and delivered batches
func (fw *FileWatcher) Stats() (events, batches int64) {
	return fw.eventsProcessed.Load(), fw.batches.Load()
}

func (fw *FileWatcher) addWatches(root string) error {
	visitedDirs := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visitedDirs[realPath] {
			return filepath.SkipDir
		}
		visitedDirs[realPath] = true

		if path != root && fw.scanner.ExcludedDir(path) {
			return filepath.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("failed to add watch", "path", path, "error", err)
		}
		return nil
	})
}

// processEvents owns the pending set and the debounce timer
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	pending := make(map[string]FileEventType)
	timer := time.NewTimer(fw.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.handleEvent(event, pending) {
				timer.Reset(fw.debounce)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)

		case <-timer.C:
			fw.flush(pending)
			pending = make(map[string]FileEventType)
		}
	}
}

// handleEvent records event in pending and reports whether it was accepted
func (fw *FileWatcher) handleEvent(event fsnotify.Event, pending map[string]FileEventType) bool {
	path := event.Name

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		if event.Has(fsnotify.Create) && !fw.scanner.ExcludedDir(path) {
			if err := fw.addWatches(path); err != nil {
				fw.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
		}
		return false
	}

	if !fw.scanner.Matches(path) {
		return false
	}

	var eventType FileEventType
	switch {
	case event.Has(fsnotify.Remove):
		eventType = FileEventRemove
	case event.Has(fsnotify.Rename):
		eventType = FileEventRename
	case event.Has(fsnotify.Create):
		eventType = FileEventCreate
	case event.Has(fsnotify.Write):
		eventType = FileEventWrite
	default:
		return false
	}

	// A file that vanished before we saw the event is a removal
	if err != nil && os.IsNotExist(err) {
		eventType = FileEventRemove
	}

	// Keep "create" when a write follows it within one batch
	if prev, ok := pending[path]; ok && prev == FileEventCreate && eventType == FileEventWrite {
		eventType = FileEventCreate
	}
	pending[path] = eventType
	fw.eventsProcessed.Add(1)
	return true
}

func (fw *FileWatcher) flush(pending map[string]FileEventType) {
	if len(pending) == 0 || fw.onBatch == nil {
		return
	}

	events := make([]FileEvent, 0, len(pending))
	for path, t := range pending {
		events = append(events, FileEvent{Path: path, Type: t})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	fw.batches.Add(1)
	fw.logger.Debug("processing debounced file events", "count", len(events))

	defer func() {
		if r := recover(); r != nil {
			fw.logger.Error("batch handler panicked", "panic", r)
		}
	}()
	fw.onBatch(events)
}
