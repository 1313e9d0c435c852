package preview

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet window after the last change before a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// debouncer coalesces bursts of Trigger calls into one request on C. C holds
// at most one request, so a burst during a running build queues exactly one
// follow-up build.
type debouncer struct {
	C chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	window  time.Duration
	stopped bool
}

func newDebouncer(window time.Duration) *debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &debouncer{C: make(chan struct{}, 1), window: window}
}

// Trigger (re)starts the quiet window.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

// Request queues a rebuild immediately, bypassing the quiet window.
func (d *debouncer) Request() { d.fire() }

func (d *debouncer) fire() {
	select {
	case d.C <- struct{}{}:
	default:
	}
}

// Stop cancels a pending window. Later triggers are ignored.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
