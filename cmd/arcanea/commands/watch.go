package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// ChangeFunc is called with the path of a watched file after it changed.
type ChangeFunc func(ctx context.Context, path string) error

// Watcher re-runs a callback when any of a set of files is written.
// Directories are watched rather than files so that editors which replace
// the file on save keep triggering.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	onChange ChangeFunc
	debounce time.Duration
	pending  map[string]time.Time
	logger   *zap.Logger
}

func NewWatcher(files []string, onChange ChangeFunc, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool),
		onChange: onChange,
		debounce: DefaultDebounce,
		pending:  make(map[string]time.Time),
		logger:   logger,
	}

	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logger.Debug("watching directory", zap.String("dir", dir))
	}
	return w, nil
}

// Run blocks until ctx is done, calling the change callback once per
// settled change. Callback errors are logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	ticker := time.NewTicker(max(w.debounce/4, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, time.Now())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", zap.Error(err))

		case now := <-ticker.C:
			for _, path := range w.due(now) {
				w.logger.Info("file changed", zap.String("file", path))
				if err := w.onChange(ctx, path); err != nil {
					w.logger.Warn("re-run failed", zap.String("file", path), zap.Error(err))
				}
			}
		}
	}
}

// handleEvent records writes and creates of watched files.
func (w *Watcher) handleEvent(event fsnotify.Event, now time.Time) {
	name := filepath.Clean(event.Name)
	if !w.files[name] {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	w.pending[name] = now
}

// due returns, in path order, the pending files quiet for at least the
// debounce interval and forgets them.
func (w *Watcher) due(now time.Time) []string {
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}
