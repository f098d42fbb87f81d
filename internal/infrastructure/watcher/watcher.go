package watcher

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// invalidator is the single thing the watcher drives.
type invalidator interface {
	Invalidate()
}

// DirWatcher drives an invalidation when the extension directories change
// on disk, so out-of-band edits (a manually dropped plugin directory, a
// deleted theme) become visible without a restart. What invalidation means
// is the caller's choice; the server wires it to a full reload covering
// both the discovery cache and per-process binding state. Events are
// debounced; bulk copies produce one invalidation, not one per file.
type DirWatcher struct {
	registry invalidator
	logger   *log.Logger
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewDirWatcher creates a watcher driving registry.
func NewDirWatcher(registry invalidator, logger *log.Logger) *DirWatcher {
	return &DirWatcher{
		registry: registry,
		logger:   logger,
		debounce: 500 * time.Millisecond,
	}
}

// Watch blocks until ctx is done, invalidating the registry on changes
// under the given directories.
func (w *DirWatcher) Watch(ctx context.Context, dirs ...string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Printf("watch: cannot watch %s: %v", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				w.scheduleInvalidate(event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("watch: %v", err)
		}
	}
}

func (w *DirWatcher) scheduleInvalidate(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Printf("watch: %s changed, reloading extensions", path)
		w.registry.Invalidate()
	})
}
