// Package scheduler provides the clock and periodic-task contract consumed by
// time-aware flowstream operators and the index sweep.
//
// Two implementations are provided:
//
//   - Ticker runs each periodic task on its own goroutine driven by a
//     time.Ticker and reads the wall clock.
//   - Mock keeps a manually advanced clock and fires due tasks
//     synchronously, which makes windowing and expiry deterministic in
//     tests.
package scheduler

// Scheduler supplies the current time and runs periodic tasks.
//
// Times and intervals are unix seconds.
type Scheduler interface {
	// Now returns the current time in unix seconds.
	Now() int64

	// AddPeriodicTask arranges for task to run every interval seconds for
	// the lifetime of the scheduler. Tasks may run concurrently with each
	// other and with event processing.
	AddPeriodicTask(task func(), interval int64)
}
