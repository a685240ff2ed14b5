package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, quiet, maxWait time.Duration) (*coalescer, <-chan Change) {
	t.Helper()
	out := make(chan Change, 16)
	c := newCoalescer(quiet, maxWait, func(ch Change) { out <- ch })
	t.Cleanup(c.stop)
	return c, out
}

func TestCoalescerMergesBurst(t *testing.T) {
	c, out := collect(t, 20*time.Millisecond, time.Second)
	start := time.Now()
	c.add(fsnotify.Write, start)
	c.add(fsnotify.Write, start)
	c.add(fsnotify.Rename, start)

	select {
	case ch := <-out:
		assert.Equal(t, 3, ch.Events)
		assert.Equal(t, fsnotify.Write|fsnotify.Rename, ch.Op)
		assert.Equal(t, start, ch.First)
	case <-time.After(time.Second):
		t.Fatal("burst never settled")
	}
	select {
	case ch := <-out:
		t.Fatalf("unexpected second change %+v", ch)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestCoalescerMaxWaitEndsLongBurst(t *testing.T) {
	c, out := collect(t, 100*time.Millisecond, 100*time.Millisecond)
	var got atomic.Int32
	go func() {
		for range out {
			got.Add(1)
		}
	}()

	// Events keep arriving faster than the quiet period.
	for i := 0; i < 25; i++ {
		c.add(fsnotify.Write, time.Now())
		time.Sleep(20 * time.Millisecond)
	}
	assert.Positive(t, got.Load())
}

func TestCoalescerStop(t *testing.T) {
	c, out := collect(t, 10*time.Millisecond, 0)
	c.add(fsnotify.Write, time.Now())
	c.stop()
	select {
	case ch := <-out:
		t.Fatalf("stopped burst delivered %+v", ch)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 40*time.Millisecond, c.maxWait)
	assert.Equal(t, DefaultDebounceDuration, newCoalescer(0, 0, nil).quiet)
}

func waitChange(t *testing.T, w *FileWatcher) Change {
	t.Helper()
	select {
	case ch := <-w.Changes():
		return ch
	case <-time.After(5 * time.Second):
		t.Fatal("no change signalled")
	}
	return Change{}
}

func runWatcher(t *testing.T, path string, opts ...Option) *FileWatcher {
	t.Helper()
	w, err := New(path, opts...)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return w
}

func TestFileWatcherPolling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	w := runWatcher(t, path, WithPolling(10*time.Millisecond), WithDebounce(10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	ch := waitChange(t, w)
	assert.True(t, ch.Exists)
	assert.Positive(t, ch.Events)

	require.NoError(t, os.Remove(path))
	// A late burst from the write can still be in flight.
	for ch = waitChange(t, w); ch.Exists; ch = waitChange(t, w) {
	}
}

func TestFileWatcherNotify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.jsonl")
	w := runWatcher(t, path, WithDebounce(10*time.Millisecond))

	// Unrelated files in the same directory are ignored.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o644))
	select {
	case <-w.Changes():
		t.Fatal("unexpected signal for unrelated file")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	ch := waitChange(t, w)
	assert.True(t, ch.Exists)
	assert.NotZero(t, ch.Op&(fsnotify.Write|fsnotify.Create))
}
