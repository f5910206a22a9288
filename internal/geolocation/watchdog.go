package geolocation

import (
	"sync"
	"time"
)

// watchdog raises a timeout when no fix arrives within the configured window.
// Each fix re-arms it. It fires at most once per arm.
type watchdog struct {
	mu      sync.Mutex
	timeout time.Duration
	timer   *time.Timer
	onFire  func()
	stopped bool
}

func newWatchdog(timeout time.Duration, onFire func()) *watchdog {
	w := &watchdog{timeout: timeout, onFire: onFire}
	w.reset()
	return w
}

// reset re-arms the timer after a fix
func (w *watchdog) reset() {
	if w.timeout <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.timeout, w.fire)
}

func (w *watchdog) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	w.onFire()
}

func (w *watchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}
