package watcher

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceDuration is the quiet period that ends a burst.
const DefaultDebounceDuration = 250 * time.Millisecond

// maxWaitFactor bounds a burst at this many quiet periods when no explicit
// limit is set, so a file rewritten continuously still reloads.
const maxWaitFactor = 4

// Change summarizes one settled burst of activity on the task file.
type Change struct {
	Op     fsnotify.Op // union of the ops seen; zero when found by polling
	Events int
	First  time.Time
	Exists bool // whether the file was present when the burst settled
}

// coalescer merges file events into one Change per burst. A burst ends
// after quiet passes with no new event, or maxWait after its first event.
type coalescer struct {
	mu      sync.Mutex
	quiet   time.Duration
	maxWait time.Duration
	flush   func(Change)
	timer   *time.Timer
	seq     uint64
	pending Change
}

func newCoalescer(quiet, maxWait time.Duration, flush func(Change)) *coalescer {
	if quiet <= 0 {
		quiet = DefaultDebounceDuration
	}
	if maxWait <= 0 {
		maxWait = maxWaitFactor * quiet
	}
	return &coalescer{quiet: quiet, maxWait: maxWait, flush: flush}
}

func (c *coalescer) add(op fsnotify.Op, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending.Events == 0 {
		c.pending.First = now
	}
	c.pending.Op |= op
	c.pending.Events++

	delay := c.quiet
	if left := c.pending.First.Add(c.maxWait).Sub(now); left < delay {
		delay = max(left, 0)
	}
	c.seq++
	seq := c.seq
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, func() { c.fire(seq) })
}

// fire delivers the burst unless a newer event or stop superseded seq. A
// timer that fired while being stopped loses here.
func (c *coalescer) fire(seq uint64) {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return
	}
	ch := c.pending
	c.pending = Change{}
	c.timer = nil
	c.mu.Unlock()
	c.flush(ch)
}

// stop drops the burst in progress.
func (c *coalescer) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.pending = Change{}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
