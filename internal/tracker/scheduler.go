// Package tracker is the location sync and geofencing engine. All tracker
// state is owned by a single event loop: source callbacks, timer ticks and
// network completions are posted to it and run one at a time.
package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/pkg/logger"
)

// Cancel stops a timer. Calling it more than once is a no-op.
type Cancel func()

// Scheduler runs tracker work serially
type Scheduler interface {
	// Now is the evaluation clock
	Now() time.Time
	// Post queues fn to run on the loop. Safe from any goroutine.
	Post(fn func())
	// Go runs fn off the loop; fn reports back through Post
	Go(fn func(ctx context.Context))
	// Every runs fn on the loop every d until cancelled
	Every(d time.Duration, fn func()) Cancel
	// After runs fn on the loop once after d unless cancelled first
	After(d time.Duration, fn func()) Cancel
}

// EventLoop is the production Scheduler
type EventLoop struct {
	logger *logger.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup
	done   chan struct{}
}

// NewEventLoop creates a loop; call Run to start processing
func NewEventLoop(log *logger.Logger) *EventLoop {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventLoop{
		logger: log.WithComponent("event-loop"),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Run processes posted work until ctx is done. Off-loop jobs are cancelled
// and awaited before Run returns.
func (l *EventLoop) Run(ctx context.Context) {
	defer close(l.done)
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()

		l.cancel()
		l.jobs.Wait()
	}()

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.run(fn)
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// Done is closed once Run has returned
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

func (l *EventLoop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *EventLoop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered from panic in event loop", zap.Any("panic", r))
		}
	}()
	fn()
}

func (l *EventLoop) Now() time.Time {
	return time.Now()
}

// Post never blocks; work posted after Run returns is dropped
func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *EventLoop) Go(fn func(ctx context.Context)) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.jobs.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.jobs.Done()
		fn(l.ctx)
	}()
}

func (l *EventLoop) Every(d time.Duration, fn func()) Cancel {
	var cancelled atomic.Bool
	ticker := time.NewTicker(d)
	stop := make(chan struct{})

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-l.ctx.Done():
				return
			case <-ticker.C:
				l.Post(func() {
					if !cancelled.Load() {
						fn()
					}
				})
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelled.Store(true)
			ticker.Stop()
			close(stop)
		})
	}
}

func (l *EventLoop) After(d time.Duration, fn func()) Cancel {
	var cancelled atomic.Bool
	timer := time.AfterFunc(d, func() {
		l.Post(func() {
			if !cancelled.Load() {
				fn()
			}
		})
	})

	return func() {
		if cancelled.CompareAndSwap(false, true) {
			timer.Stop()
		}
	}
}

// Do runs fn on the loop and waits for it to finish
func (l *EventLoop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}
