// Package loop runs tasks one at a time on a single goroutine.
//
// Every DOM access of an assistant goes through its Loop, which gives the
// engine the single-threaded model of a page script: mutation callbacks,
// timers, click dispatches and generation results are queued and never run
// concurrently.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entrhq/mailwright/pkg/logging"
)

// ErrStopped is returned when posting to a stopped loop.
var ErrStopped = errors.New("event loop stopped")

// Loop is a serial task queue. Posting never blocks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	quit    chan struct{}
	stopped atomic.Bool
	once    sync.Once
	wg      sync.WaitGroup
	log     *logging.Logger
	idle    func()
}

// Option configures a Loop.
type Option func(*Loop)

// WithIdle runs fn on the loop each time the queue drains after a task.
func WithIdle(fn func()) Option {
	return func(l *Loop) { l.idle = fn }
}

// New starts a loop.
func New(log *logging.Logger, opts ...Option) *Loop {
	if log == nil {
		log = logging.Discard()
	}
	l := &Loop{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		log:  log,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.quit:
			return
		case <-l.wake:
		}
		ran := false
		for {
			task, ok := l.next()
			if !ok {
				break
			}
			l.exec(task)
			if l.stopped.Load() {
				return
			}
			ran = true
		}
		if ran && l.idle != nil {
			l.exec(l.idle)
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("task panicked: %v", r)
		}
	}()
	task()
}

// Post queues fn. It reports false when the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	if l.stopped.Load() {
		return false
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to return. It must not be
// called from a task.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-l.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop discards queued tasks and ends the loop after the running task.
// Timers and tickers created from the loop stop with it. Stop is safe to
// call from a task.
func (l *Loop) Stop() {
	l.once.Do(func() {
		l.stopped.Store(true)
		close(l.quit)
		l.mu.Lock()
		l.queue = nil
		l.mu.Unlock()
	})
}

// Wait blocks until the loop goroutine and its tickers have exited.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Done is closed when the loop is stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.quit
}

// Stopped reports whether Stop was called.
func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// Timer is a one-shot task scheduled on a loop.
type Timer struct {
	timer   *time.Timer
	stopped atomic.Bool
}

// AfterFunc runs fn on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if !t.stopped.Load() {
				fn()
			}
		})
	})
	return t
}

// Stop cancels the timer. A task already queued by it is skipped.
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	t.stopped.Store(true)
	t.timer.Stop()
}

// Ticker is a repeating task scheduled on a loop.
type Ticker struct {
	stop    chan struct{}
	once    sync.Once
	stopped atomic.Bool
	exited  chan struct{}
}

// Every runs fn on the loop every d until the ticker or the loop stops.
// Ticks are dropped while the previous one is still queued.
func (l *Loop) Every(d time.Duration, fn func()) *Ticker {
	t := &Ticker{stop: make(chan struct{}), exited: make(chan struct{})}
	var pending atomic.Bool
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(t.exited)
		tick := time.NewTicker(d)
		defer tick.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-l.quit:
				return
			case <-tick.C:
				if !pending.CompareAndSwap(false, true) {
					continue
				}
				l.Post(func() {
					pending.Store(false)
					if !t.stopped.Load() {
						fn()
					}
				})
			}
		}
	}()
	return t
}

// Stop cancels the ticker and waits for its goroutine to exit.
func (t *Ticker) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.stop)
	})
	<-t.exited
}
