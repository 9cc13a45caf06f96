// Package schedule runs periodic tasks that can be paused and resumed.
package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Func is the body of one tick.
type Func func(ctx context.Context)

// Task fires Func every interval while resumed. A tick that comes due while
// the previous one is still running is skipped, so runs of one task never
// overlap. A new Task starts paused.
type Task struct {
	name     string
	interval time.Duration
	fn       Func
	onSkip   func(name string)
	logger   *zap.Logger

	paused  atomic.Bool
	running atomic.Bool

	// mu orders wg.Add in Tick against the final wg.Wait in Run.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option customizes a Task.
type Option func(*Task)

// WithSkipHook registers fn to be called with the task name for every skipped tick.
func WithSkipHook(fn func(name string)) Option {
	return func(t *Task) {
		t.onSkip = fn
	}
}

// WithLogger sets the logger used for tick diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Task) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTask creates a paused task.
func NewTask(name string, interval time.Duration, fn Func, opts ...Option) *Task {
	t := &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   zap.NewNop(),
	}
	t.paused.Store(true)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.name
}

// Pause stops future ticks from firing. A tick already running completes.
func (t *Task) Pause() {
	t.paused.Store(true)
}

// Resume lets ticks fire again.
func (t *Task) Resume() {
	t.paused.Store(false)
}

// Paused reports whether the task is paused.
func (t *Task) Paused() bool {
	return t.paused.Load()
}

// Tick starts a run immediately, regardless of the pause state, unless one is
// already in flight or Run has returned. It reports whether a run was started.
func (t *Task) Tick(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	if !t.running.CompareAndSwap(false, true) {
		t.logger.Debug("tick skipped, previous run still in flight", zap.String("task", t.name))
		if t.onSkip != nil {
			t.onSkip(t.name)
		}
		return false
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.running.Store(false)
		t.fn(ctx)
	}()
	return true
}

// Run fires the task every interval until ctx is done, then waits for the
// run in flight to return. Later calls to Tick start nothing.
func (t *Task) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.closed = true
			t.mu.Unlock()
			t.wg.Wait()
			return nil
		case <-ticker.C:
			if t.Paused() {
				continue
			}
			t.Tick(ctx)
		}
	}
}

// Wait blocks until the run in flight, if any, returns.
func (t *Task) Wait() {
	t.wg.Wait()
}
