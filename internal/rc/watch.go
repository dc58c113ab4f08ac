package rc

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for more events before
// reloading.
const DefaultDebounce = 200 * time.Millisecond

// Watcher calls a reload function when a command file changes.
//
// The parent directory is watched rather than the file, so editors that
// save by writing a temporary file and renaming it over the original are
// seen. Bursts of events within the debounce window cause one reload.
type Watcher struct {
	path     string
	fw       *fsnotify.Watcher
	reload   func() error
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher starts watching path. Call Run to process events and Close to
// release the watch.
func NewWatcher(path string, reload func() error, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     abs,
		fw:       fw,
		reload:   reload,
		debounce: DefaultDebounce,
		logger:   logger,
	}, nil
}

// SetDebounce changes the debounce window. Must be called before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run processes events until ctx is done or the watcher is closed.
// Reload errors are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("command file watch error", "file", w.path, "error", err)

		case <-timer.C:
			if err := w.reload(); err != nil {
				w.logger.Warn("command file reload failed", "file", w.path, "error", err)
				continue
			}
			w.logger.Info("command file reloaded", "file", w.path)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
