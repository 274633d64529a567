// Package atom provides Cell, an optimistic-concurrency container for an
// immutable snapshot.
//
// A Cell replaces locks in every stateful flowstream operator. Writers
// compute a new snapshot from the current one and publish it with a
// compare-and-swap; on conflict they recompute from the snapshot that won.
//
// The transition passed to Update may run several times under contention.
// It must be a pure function of its argument: no forwarding, no logging,
// no writes to shared variables, and no in-place modification of the
// snapshot it receives (copy slices and maps before changing them).
// Side effects belong in the commit callback, which runs exactly once per
// Update with the snapshot that was replaced and the snapshot that was
// published.
package atom

import (
	"sync/atomic"
)

// Cell holds a snapshot of type T. The zero Cell is not usable; use New.
type Cell[T any] struct {
	ptr     atomic.Pointer[T]
	retries atomic.Uint64
}

// New creates a Cell holding initial.
func New[T any](initial T) *Cell[T] {
	c := &Cell[T]{}
	c.ptr.Store(&initial)
	return c
}

// Load returns the current snapshot. The result must be treated as
// read-only.
func (c *Cell[T]) Load() T {
	return *c.ptr.Load()
}

// Update applies transition to the current snapshot and publishes the
// result. If another writer published first, transition is applied again
// to the newer snapshot. Once the publish succeeds, commit (if non-nil) is
// called with the previous and the published snapshot.
//
// Update returns the published snapshot.
func (c *Cell[T]) Update(transition func(T) T, commit func(old, new T)) T {
	for {
		cur := c.ptr.Load()
		next := transition(*cur)
		if c.ptr.CompareAndSwap(cur, &next) {
			if commit != nil {
				commit(*cur, next)
			}
			return next
		}
		c.retries.Add(1)
	}
}

// Swap publishes v unconditionally and calls commit (if non-nil) with the
// previous and the new snapshot.
func (c *Cell[T]) Swap(v T, commit func(old, new T)) T {
	old := c.ptr.Swap(&v)
	if commit != nil {
		commit(*old, v)
	}
	return v
}

// Retries returns how many compare-and-swap attempts lost a race since the
// Cell was created.
func (c *Cell[T]) Retries() uint64 {
	return c.retries.Load()
}
