package atom

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_LoadReturnsInitial(t *testing.T) {
	c := New("a")
	assert.Equal(t, "a", c.Load())
}

func TestCell_UpdateCommitsOnce(t *testing.T) {
	c := New(1)

	var commits int
	got := c.Update(
		func(v int) int { return v + 1 },
		func(old, new int) {
			commits++
			assert.Equal(t, 1, old)
			assert.Equal(t, 2, new)
		},
	)

	assert.Equal(t, 2, got)
	assert.Equal(t, 1, commits)
	assert.Equal(t, 2, c.Load())
}

func TestCell_NilCommit(t *testing.T) {
	c := New(0)
	c.Update(func(v int) int { return v + 5 }, nil)
	c.Swap(9, nil)
	assert.Equal(t, 9, c.Load())
}

func TestCell_SwapReportsPrevious(t *testing.T) {
	c := New("ok")

	var prev string
	c.Swap("critical", func(old, _ string) { prev = old })

	assert.Equal(t, "ok", prev)
	assert.Equal(t, "critical", c.Load())
}

// TestCell_ConcurrentUpdates checks that no increment is lost and every
// update commits exactly once, no matter how many retries happen.
func TestCell_ConcurrentUpdates(t *testing.T) {
	const (
		workers = 16
		perG    = 1000
	)
	c := New(0)

	var commits atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				c.Update(
					func(v int) int { return v + 1 },
					func(old, new int) {
						commits.Add(1)
						if new != old+1 {
							t.Errorf("commit saw %d -> %d", old, new)
						}
					},
				)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perG, c.Load())
	assert.Equal(t, int64(workers*perG), commits.Load())
}

// TestCell_TransitionRetriedFromWinner forces a lost race and checks the
// transition is re-run against the snapshot that won.
func TestCell_TransitionRetriedFromWinner(t *testing.T) {
	c := New([]int{})

	var calls int
	var seen [][]int
	c.Update(func(v []int) []int {
		calls++
		seen = append(seen, v)
		if calls == 1 {
			c.Swap([]int{42}, nil)
		}
		next := make([]int, len(v), len(v)+1)
		copy(next, v)
		return append(next, 1)
	}, nil)

	require.Equal(t, 2, calls)
	assert.Empty(t, seen[0])
	assert.Equal(t, []int{42}, seen[1])
	assert.Equal(t, []int{42, 1}, c.Load())
	assert.Equal(t, uint64(1), c.Retries())
}
