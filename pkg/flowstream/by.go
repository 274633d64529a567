package flowstream

import (
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/randalmurphal/flowstream/pkg/flowstream/atom"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/observability"
)

// missingKeyLogInterval bounds how often By reports events that lack a
// grouping field.
const missingKeyLogInterval = 10 * time.Second

type by struct {
	fields   []string
	factory  func() *Node
	children *atom.Cell[map[string]*Node]
	inflight singleflight.Group
	warn     rate.Sometimes
}

// By partitions events by the values of fields and pushes each event into
// a subgraph dedicated to its partition. The subgraph is built by factory
// the first time a partition is seen; concurrent first events of the same
// partition share a single factory call. Subgraph output does not rejoin
// By's downstream.
//
// A field an event lacks reads as event.Missing, so every event missing
// that field lands in the same partition. With no fields, every event is
// dropped.
func By(fields []string, factory func() *Node) *Node {
	if factory == nil {
		argPanic("By", ErrNilFunc)
	}
	b := &by{
		fields:   slices.Clone(fields),
		factory:  factory,
		children: atom.New(map[string]*Node{}),
		warn:     rate.Sometimes{First: 1, Interval: missingKeyLogInterval},
	}
	return NewNode(b.process)
}

func (b *by) process(_ Forward, e event.Event) {
	if len(b.fields) == 0 {
		return
	}
	key, missing := b.key(e)
	if missing != "" {
		b.warn.Do(func() { observability.LogMissingKey(logger(), missing, key) })
	}
	b.child(key).Push(e)
}

// key joins the field values, each followed by a space. missing names the
// first absent field, if any.
func (b *by) key(e event.Event) (key, missing string) {
	var sb strings.Builder
	for _, f := range b.fields {
		v := e.Lookup(f)
		if v.IsAbsent() && missing == "" {
			missing = f
		}
		sb.WriteString(v.String())
		sb.WriteByte(' ')
	}
	return sb.String(), missing
}

func (b *by) child(key string) *Node {
	if n, ok := b.children.Load()[key]; ok {
		return n
	}
	v, _, _ := b.inflight.Do(key, func() (any, error) {
		if n, ok := b.children.Load()[key]; ok {
			return n, nil
		}
		n := b.factory()
		if n == nil {
			argPanic("By", ErrNilNode)
		}
		b.children.Update(func(m map[string]*Node) map[string]*Node {
			if _, ok := m[key]; ok {
				return m
			}
			next := maps.Clone(m)
			next[key] = n
			return next
		}, nil)
		return b.children.Load()[key], nil
	})
	return v.(*Node)
}
