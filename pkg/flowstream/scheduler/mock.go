package scheduler

import (
	"sync"
)

// Mock is a deterministic Scheduler for tests. Its clock only moves when
// SetTime or ProcessEventTime is called, and due tasks run synchronously
// on the caller's goroutine.
type Mock struct {
	mu    sync.Mutex
	now   int64
	tasks []*mockTask
}

type mockTask struct {
	fn       func()
	interval int64
	next     int64
}

// NewMock returns a Mock with its clock at 0.
func NewMock() *Mock {
	return &Mock{}
}

// Now returns the mock clock.
func (m *Mock) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AddPeriodicTask registers task to fire every interval seconds, starting
// one interval after the current mock time.
func (m *Mock) AddPeriodicTask(task func(), interval int64) {
	if task == nil || interval <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, &mockTask{fn: task, interval: interval, next: m.now + interval})
}

// SetTime moves the clock to t without firing tasks.
func (m *Mock) SetTime(t int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// ProcessEventTime advances the clock to t, firing every task whose
// deadline is <= t in deadline order. A task fires once per elapsed
// interval, and Now reports the deadline while it runs. Ties fire in
// registration order.
func (m *Mock) ProcessEventTime(t int64) {
	for {
		m.mu.Lock()
		due := m.nextDue(t)
		if due == nil {
			if t > m.now {
				m.now = t
			}
			m.mu.Unlock()
			return
		}
		m.now = due.next
		due.next += due.interval
		fn := due.fn
		m.mu.Unlock()

		fn()
	}
}

// nextDue returns the task with the earliest deadline <= t. Callers hold mu.
func (m *Mock) nextDue(t int64) *mockTask {
	var due *mockTask
	for _, task := range m.tasks {
		if task.next > t {
			continue
		}
		if due == nil || task.next < due.next {
			due = task
		}
	}
	return due
}

// Tasks returns the number of registered tasks.
func (m *Mock) Tasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Clear removes every task and resets the clock to 0.
func (m *Mock) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = nil
	m.now = 0
}

// Compile-time interface check.
var _ Scheduler = (*Mock)(nil)
