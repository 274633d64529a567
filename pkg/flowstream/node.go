package flowstream

import (
	"slices"

	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

// Forward passes an event to the rest of the graph.
type Forward func(event.Event)

// Body is the behavior of a Node: given an event, call forward zero or
// more times, synchronously, before returning.
//
// A Body must not modify the event it receives in place; mutate a Clone.
type Body func(forward Forward, e event.Event)

// Fold summarizes a sequence of events into one event. Window and
// aggregation operators forward the result of a Fold.
type Fold func(events []event.Event) event.Event

// Predicate reports whether an event matches.
type Predicate func(e event.Event) bool

// Node is a unit of the processing graph. Nodes are immutable once built
// and safe for concurrent use.
type Node struct {
	body Body
}

// NewNode wraps body into a Node.
func NewNode(body Body) *Node {
	if body == nil {
		argPanic("NewNode", ErrNilFunc)
	}
	return &Node{body: body}
}

// Push runs the node on e. Whatever the node forwards past its last
// operator is discarded.
func (n *Node) Push(e event.Event) {
	n.body(discard, e)
}

// Push runs n on e.
func Push(n *Node, e event.Event) {
	n.Push(e)
}

// Then returns a node that feeds n's output to every node in next.
// Then with no arguments returns n.
func (n *Node) Then(next ...*Node) *Node {
	if len(next) == 0 {
		return n
	}
	return Chain(n, Fanout(next...))
}

func discard(event.Event) {}

// Chain returns a node that runs nodes in sequence: each event forwarded
// by nodes[i] is pushed into nodes[i+1], and events forwarded by the last
// node continue to the chain's own downstream.
//
// Chain of no nodes is Pass().
func Chain(nodes ...*Node) *Node {
	checkNodes("Chain", nodes)
	switch len(nodes) {
	case 0:
		return Pass()
	case 1:
		return nodes[0]
	}
	nodes = slices.Clone(nodes)
	return NewNode(func(forward Forward, e event.Event) {
		runFrom(nodes, 0, forward, e)
	})
}

func runFrom(nodes []*Node, i int, forward Forward, e event.Event) {
	if i == len(nodes) {
		forward(e)
		return
	}
	nodes[i].body(func(out event.Event) {
		runFrom(nodes, i+1, forward, out)
	}, e)
}

// Fanout returns a node that pushes a copy of each event into every child,
// in order. Events the children forward continue to the fan-out node's
// downstream. A child's whole subtree runs before the next child starts.
//
// Fanout of no nodes drops every event.
func Fanout(nodes ...*Node) *Node {
	checkNodes("Fanout", nodes)
	if len(nodes) == 1 {
		return nodes[0]
	}
	nodes = slices.Clone(nodes)
	return NewNode(func(forward Forward, e event.Event) {
		for _, child := range nodes {
			child.body(forward, e.Clone())
		}
	})
}

func checkNodes(op string, nodes []*Node) {
	for _, n := range nodes {
		if n == nil {
			argPanic(op, ErrNilNode)
		}
	}
}

// pushAll pushes e into every node as an independent subgraph.
func pushAll(nodes []*Node, e event.Event) {
	for _, n := range nodes {
		n.Push(e.Clone())
	}
}
