// Package flowstream builds and runs graphs of composable event operators.
//
// A graph is made of Nodes. Pushing an event into a Node runs its body,
// which calls the forwarding continuation zero or more times before
// returning. Nodes compose in three ways:
//
//   - Chain(a, b, c) feeds every event a forwards into b, and so on.
//   - Fanout(a, b) pushes an unaliased copy of each event to every child.
//   - n.Then(a, b) is Chain(n, Fanout(a, b)).
//
// Example:
//
//	sched := scheduler.NewTicker(ctx)
//	idx := index.New(sched)
//
//	stream := flowstream.Chain(
//	    flowstream.Where(flowstream.ServicePred("cpu")),
//	    flowstream.MovingTimeWindow(60, flowstream.Mean),
//	    flowstream.Above(0.9),
//	    flowstream.With(flowstream.Changes{"state": event.String("critical")}),
//	    flowstream.IndexSink(idx),
//	)
//
//	streams := flowstream.NewStreams()
//	streams.AddStream(stream)
//	streams.ProcessMessage(ctx, msg)
//
// # Concurrency
//
// Nodes are immutable once built and may be pushed into from any number of
// goroutines, including scheduler tasks. Stateful operators keep their
// state in an atom.Cell: the state transition may be retried under
// contention and never forwards; forwarding happens once, after the new
// state is published. Forwarding inside a single Push is synchronous and
// depth-first.
//
// # Bad input
//
// Operators never fail on unusual events. A missing metric compares as 0,
// a missing grouping field groups under event.Missing, and time windows
// ignore events without a time.
package flowstream
