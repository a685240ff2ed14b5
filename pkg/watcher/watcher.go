// Package watcher turns bursts of task file changes into single reload
// signals, using fsnotify with a polling fallback.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is used when fsnotify is unavailable.
const DefaultPollInterval = 2 * time.Second

// FileWatcher signals on Changes after a watched file is written, replaced
// or removed. Bursts collapse into one Change.
type FileWatcher struct {
	path      string
	quiet     time.Duration
	maxWait   time.Duration
	burst     *coalescer
	poll      time.Duration
	changes   chan Change
	logger    *slog.Logger
	forcePoll bool
}

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithDebounce sets the quiet period that ends a burst.
func WithDebounce(d time.Duration) Option {
	return func(w *FileWatcher) { w.quiet = d }
}

// WithMaxWait caps how long a burst can hold back its Change. The default
// is four quiet periods.
func WithMaxWait(d time.Duration) Option {
	return func(w *FileWatcher) { w.maxWait = d }
}

// WithPolling forces mtime polling at the given interval.
func WithPolling(interval time.Duration) Option {
	return func(w *FileWatcher) {
		w.forcePoll = true
		if interval > 0 {
			w.poll = interval
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *FileWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher for path. The file need not exist yet.
func New(path string, opts ...Option) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	w := &FileWatcher{
		path:    abs,
		poll:    DefaultPollInterval,
		changes: make(chan Change, 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("path", abs)
	w.burst = newCoalescer(w.quiet, w.maxWait, w.signal)
	return w, nil
}

// Changes delivers one Change per settled burst. A burst that settles while
// the previous Change is still unread is dropped; the reader reloads the
// whole file either way.
func (w *FileWatcher) Changes() <-chan Change {
	return w.changes
}

func (w *FileWatcher) signal(c Change) {
	c.Exists = w.stamp().exists
	select {
	case w.changes <- c:
	default:
		w.logger.Debug("change dropped, previous one unread", "events", c.Events)
	}
}

// Run watches until ctx is done. It watches the parent directory so that
// editors replacing the file by rename are seen.
func (w *FileWatcher) Run(ctx context.Context) error {
	defer w.burst.stop()
	if w.forcePoll {
		return w.runPolling(ctx)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("file watcher unavailable, falling back to polling", "error", err)
		return w.runPolling(ctx)
	}
	defer fsw.Close()
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		w.logger.Warn("cannot watch directory, falling back to polling", "error", err)
		return w.runPolling(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("file event", "op", event.Op.String())
			w.burst.add(event.Op, time.Now())
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *FileWatcher) runPolling(ctx context.Context) error {
	last := w.stamp()
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if cur := w.stamp(); cur != last {
				last = cur
				w.burst.add(0, time.Now())
			}
		}
	}
}

type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

func (w *FileWatcher) stamp() fileStamp {
	info, err := os.Stat(w.path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, size: info.Size(), modTime: info.ModTime()}
}
