package reference

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the default debounce interval for file events.
// Editors and config management tools often emit several events per save.
const debounceDefault = 200 * time.Millisecond

// SourceWatcher watches declarative source files (rule set, reference
// lists) and invokes the registered reload callback when one changes.
// Watches the parent directory rather than the file itself, so atomic
// rename-into-place updates are seen.
type SourceWatcher struct {
	mu       sync.Mutex
	targets  map[string]func() error // absolute path -> reload
	debounce time.Duration
}

// NewSourceWatcher creates an empty watcher.
func NewSourceWatcher() *SourceWatcher {
	return &SourceWatcher{
		targets:  make(map[string]func() error),
		debounce: debounceDefault,
	}
}

// Watch registers a reload callback for the given file path.
func (w *SourceWatcher) Watch(path string, reload func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.targets[abs] = reload
	w.mu.Unlock()
	return nil
}

// Run watches the registered files until ctx is cancelled.
func (w *SourceWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	w.mu.Lock()
	dirs := make(map[string]struct{})
	for path := range w.targets {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	w.mu.Unlock()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	// A single timer resets on each event; when it fires, all paths
	// that changed since the last flush reload together.
	var timer *time.Timer
	pending := make(map[string]struct{})
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			_, tracked := w.targets[abs]
			w.mu.Unlock()
			if !tracked {
				continue
			}
			pending[abs] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			for path := range pending {
				delete(pending, path)
				w.mu.Lock()
				reload := w.targets[path]
				w.mu.Unlock()
				if reload == nil {
					continue
				}
				if err := reload(); err != nil {
					// Keep serving the previous set; the operator
					// sees the failure and fixes the source.
					slog.Error("source reload failed",
						"path", path,
						"error", err,
					)
					continue
				}
				slog.Info("source reloaded", "path", path)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("source watcher error", "error", err)
		}
	}
}
