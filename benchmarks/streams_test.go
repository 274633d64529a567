package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/flowstream/pkg/flowstream"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

func batch(n int) event.Message {
	msg := event.Message{Events: make([]event.Event, n)}
	for i := range msg.Events {
		msg.Events[i] = metricEvent(i)
	}
	return msg
}

func benchmarkProcessMessage(b *testing.B, size int, opts ...flowstream.Option) {
	streams := flowstream.NewStreams(opts...)
	streams.AddStream(flowstream.Chain(flowstream.Above(50), flowstream.Tag("hot")))
	streams.AddStream(flowstream.By([]string{"host"}, func() *flowstream.Node {
		return flowstream.ChangedState("ok")
	}))
	msg := batch(size)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = streams.ProcessMessage(ctx, msg)
	}
}

// BenchmarkProcessMessage_1 processes single-event batches.
func BenchmarkProcessMessage_1(b *testing.B) { benchmarkProcessMessage(b, 1) }

// BenchmarkProcessMessage_100 processes 100-event batches.
func BenchmarkProcessMessage_100(b *testing.B) { benchmarkProcessMessage(b, 100) }

// BenchmarkProcessMessage_100_Observed adds metrics and tracing overhead.
func BenchmarkProcessMessage_100_Observed(b *testing.B) {
	benchmarkProcessMessage(b, 100, flowstream.WithMetrics(true), flowstream.WithTracing(true))
}
