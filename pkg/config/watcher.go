package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the configuration file when it changes on disk.
//
// The parent directory is watched rather than the file itself, because
// editors and config-management tools typically replace the file instead
// of writing it in place. Events are debounced so one save produces one
// reload. A file that fails to parse or validate is ignored and the
// previous configuration stays active.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   *slog.Logger
	debounce time.Duration

	fsWatcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWatcher creates a watcher for the given configuration file.
// onChange is called with each successfully reloaded configuration.
func NewWatcher(path string, onChange func(*Config)) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		logger:   slog.Default().With("component", "config.watcher"),
		debounce: 200 * time.Millisecond,
	}
}

// Start begins watching. It returns an error if the directory cannot be
// watched. Watching stops when ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsWatcher = fsWatcher
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.loop(ctx)

	w.logger.Info("watching configuration file", "path", w.path)
	return nil
}

// Stop stops watching and waits for the watch loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done
}

// loop consumes file events until the context is cancelled.
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer w.fsWatcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			// Debounce: editors fire several events per save.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			w.reload()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// reload loads the file and hands the result to the callback.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("configuration reload failed, keeping previous configuration",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.logger.Info("configuration reloaded", "path", w.path)

	if w.onChange != nil {
		w.onChange(cfg)
	}
}
