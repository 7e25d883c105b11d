package configwatch

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls config files and invokes a callback when one changes.
type Watcher struct {
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*watchEntry
}

type watchEntry struct {
	stamp stamp
	cb    func(path string)
}

// stamp identifies a file version. Size catches rewrites that land within
// the filesystem's mtime resolution.
type stamp struct {
	modTime time.Time
	size    int64
}

// New creates a Watcher that polls at the given interval.
func New(interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		interval: interval,
		logger:   logger,
		entries:  make(map[string]*watchEntry),
	}
}

// Watch registers cb for path, replacing any earlier callback for the same
// path. The file does not need to exist yet.
func (w *Watcher) Watch(path string, cb func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries[path] = &watchEntry{
		stamp: fileStamp(path),
		cb:    cb,
	}
}

// Unwatch stops watching path.
func (w *Watcher) Unwatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, path)
}

// Run polls until the context is cancelled. It blocks, so call it in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	w.mu.Lock()
	var changed []string
	var callbacks []func(string)
	for path, e := range w.entries {
		current := fileStamp(path)

		// Skip if file doesn't exist (may be mid-save) or unchanged.
		if current.modTime.IsZero() || current == e.stamp {
			continue
		}
		e.stamp = current
		changed = append(changed, path)
		callbacks = append(callbacks, e.cb)
	}
	w.mu.Unlock()

	// Callbacks run unlocked so they may call Watch or Unwatch.
	for i, path := range changed {
		w.logger.Info("config file changed", "path", path)
		callbacks[i](path)
	}
}

func fileStamp(path string) stamp {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{}
	}
	return stamp{modTime: info.ModTime(), size: info.Size()}
}
