// Package index holds the latest event per key in a sharded, concurrently
// accessible map and expires entries whose TTL has elapsed.
//
// Keys are routed to one of N shards by xxhash. Each shard has its own
// mutex, so writers to different shards never contend. Reads copy events
// out; no caller ever holds a reference into the index.
package index

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/observability"
	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
)

// ErrNilScheduler indicates New was called without a scheduler.
var ErrNilScheduler = errors.New("index: scheduler cannot be nil")

// Defaults for New.
const (
	DefaultShards         = 16
	DefaultExpireInterval = 10
)

type shard struct {
	mu     sync.Mutex
	events map[string]event.Event
}

// Index maps keys to the most recent event stored under them.
type Index struct {
	shards   []*shard
	sched    scheduler.Scheduler
	sweeping atomic.Bool

	onExpired func(event.Event)
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
}

// New creates an index. Unless disabled with WithExpireInterval(0), it
// registers a periodic sweep with sched.
func New(sched scheduler.Scheduler, opts ...Option) *Index {
	if sched == nil {
		panic(ErrNilScheduler)
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	idx := &Index{
		shards:    make([]*shard, cfg.shards),
		sched:     sched,
		onExpired: cfg.onExpired,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
	}
	for i := range idx.shards {
		idx.shards[i] = &shard{events: map[string]event.Event{}}
	}

	if cfg.expireInterval > 0 {
		sched.AddPeriodicTask(func() { idx.Expire() }, cfg.expireInterval)
	}
	return idx
}

func (idx *Index) shardFor(key string) *shard {
	return idx.shards[xxhash.Sum64String(key)%uint64(len(idx.shards))]
}

// AddEvent stores e under its host and service.
func (idx *Index) AddEvent(e event.Event) {
	idx.AddEventWithKey(event.Key(e), e)
}

// AddEventWithKey stores e under key, replacing any previous event.
func (idx *Index) AddEventWithKey(key string, e event.Event) {
	e = e.Clone()
	s := idx.shardFor(key)
	s.mu.Lock()
	s.events[key] = e
	s.mu.Unlock()
}

// Get returns a copy of the event stored under key.
func (idx *Index) Get(key string) (event.Event, bool) {
	s := idx.shardFor(key)
	s.mu.Lock()
	e, ok := s.events[key]
	s.mu.Unlock()
	if !ok {
		return event.Event{}, false
	}
	return e.Clone(), true
}

// AllEvents returns a copy of every stored event. Shards are read one at
// a time, so the result is consistent per shard but not across shards.
func (idx *Index) AllEvents() []event.Event {
	var out []event.Event
	for _, s := range idx.shards {
		s.mu.Lock()
		out = slices.Grow(out, len(s.events))
		for _, e := range s.events {
			out = append(out, e.Clone())
		}
		s.mu.Unlock()
	}
	return out
}

// Len returns the number of stored events.
func (idx *Index) Len() int {
	n := 0
	for _, s := range idx.shards {
		s.mu.Lock()
		n += len(s.events)
		s.mu.Unlock()
	}
	return n
}

// Expire removes every entry that is expired at the scheduler's current
// time and returns how many were removed. If another sweep is running,
// Expire returns -1 immediately.
//
// Removed events are passed to the expired handler, with their state set
// to "expired", after all shard locks are released.
func (idx *Index) Expire() int {
	ctx := context.Background()
	if !idx.sweeping.CompareAndSwap(false, true) {
		observability.LogSweepSkipped(idx.logger)
		idx.metrics.RecordSweepSkipped(ctx)
		return -1
	}
	defer idx.sweeping.Store(false)

	start := time.Now()
	now := idx.sched.Now()

	var expired []event.Event
	remaining := 0
	for _, s := range idx.shards {
		s.mu.Lock()
		for key, e := range s.events {
			if e.Expired(now) {
				delete(s.events, key)
				expired = append(expired, e)
			}
		}
		remaining += len(s.events)
		s.mu.Unlock()
	}

	elapsed := time.Since(start)
	idx.metrics.RecordSweep(ctx, len(expired), elapsed)
	observability.LogSweep(idx.logger, len(expired), remaining, float64(elapsed.Microseconds())/1000)

	if idx.onExpired != nil {
		for _, e := range expired {
			e.State = event.StateExpired
			idx.onExpired(e)
		}
	}
	return len(expired)
}
