package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Ticker is the wall-clock Scheduler. Each periodic task gets its own
// goroutine; a panicking task is logged and keeps its schedule.
type Ticker struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
	clock  func() time.Time
	unit   time.Duration

	mu      sync.Mutex
	stopped bool
}

// TickerOption configures a Ticker.
type TickerOption func(*Ticker)

// WithLogger sets the logger used to report task panics.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) TickerOption {
	return func(t *Ticker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock overrides the wall clock read by Now.
func WithClock(clock func() time.Time) TickerOption {
	return func(t *Ticker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithUnit sets the real duration of one interval unit.
// Default: time.Second
//
// Shortening the unit is useful for demos and integration tests that
// cannot wait whole seconds per tick.
func WithUnit(d time.Duration) TickerOption {
	return func(t *Ticker) {
		if d > 0 {
			t.unit = d
		}
	}
}

// NewTicker creates a Ticker whose tasks stop when ctx is done or Stop is
// called.
func NewTicker(ctx context.Context, opts ...TickerOption) *Ticker {
	t := &Ticker{
		logger: slog.Default(),
		clock:  time.Now,
		unit:   time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	return t
}

// Now returns the wall clock in unix seconds.
func (t *Ticker) Now() int64 {
	return t.clock().Unix()
}

// AddPeriodicTask starts a goroutine that runs task every interval units.
// Non-positive intervals and tasks added after Stop are ignored.
func (t *Ticker) AddPeriodicTask(task func(), interval int64) {
	if task == nil || interval <= 0 {
		t.logger.Warn("ignoring periodic task", slog.Int64("interval", interval))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	t.wg.Add(1)
	go t.loop(task, time.Duration(interval)*t.unit)
}

func (t *Ticker) loop(task func(), every time.Duration) {
	defer t.wg.Done()

	tick := time.NewTicker(every)
	defer tick.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-tick.C:
			t.run(task)
		}
	}
}

func (t *Ticker) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("periodic task panicked",
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	task()
}

// Stop cancels every task and waits for running ones to return.
func (t *Ticker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}

// Compile-time interface check.
var _ Scheduler = (*Ticker)(nil)
