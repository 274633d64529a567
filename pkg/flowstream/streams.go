package flowstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/flowstream/pkg/flowstream/atom"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/observability"
)

// Streams is the ingress of a flowstream process: it receives batches of
// events and pushes each event into every registered root node.
//
// Streams is safe for concurrent use. Roots may be added while batches
// are being processed; a batch sees the roots registered when it starts.
type Streams struct {
	roots *atom.Cell[[]*Node]
	cfg   streamsConfig
}

// NewStreams creates an entry point with no roots.
func NewStreams(opts ...Option) *Streams {
	cfg := defaultStreamsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Streams{roots: atom.New[[]*Node](nil), cfg: cfg}
}

// AddStream registers n as a root.
func (s *Streams) AddStream(n *Node) {
	if n == nil {
		argPanic("AddStream", ErrNilNode)
	}
	s.roots.Update(func(roots []*Node) []*Node {
		return append(slices.Clip(roots), n)
	}, nil)
}

// Len returns the number of registered roots.
func (s *Streams) Len() int {
	return len(s.roots.Load())
}

// ProcessMessage pushes the events of msg, in order, into every root. Each
// root receives its own copy of an event.
// Events without a time are stamped with the current wall-clock second,
// read once per batch. A panic inside a root is recovered, logged and
// counted; the remaining roots and events are still processed.
//
// The returned error joins the PanicErrors recovered while processing,
// or is nil.
func (s *Streams) ProcessMessage(ctx context.Context, msg event.Message) error {
	batchID := uuid.NewString()
	start := time.Now()
	batchLog := observability.EnrichLogger(s.cfg.logger, batchID)

	ctx, span := s.cfg.spans.StartBatchSpan(ctx, batchID, len(msg.Events))

	now := s.cfg.clock().Unix()
	roots := s.roots.Load()

	var errs []error
	for _, e := range msg.Events {
		if !e.HasTime {
			e = e.Clone()
			e.SetTime(now)
		}
		for i, root := range roots {
			if err := s.push(i, root, e); err != nil {
				observability.LogPanic(batchLog, i, err)
				s.cfg.metrics.RecordPanic(ctx, i)
				s.cfg.spans.AddSpanEvent(ctx, "panic", attribute.Int("root", i))
				errs = append(errs, err)
			}
		}
	}

	err := errors.Join(errs...)
	elapsed := time.Since(start)
	s.cfg.metrics.RecordBatch(ctx, len(msg.Events), elapsed)
	s.cfg.spans.EndSpanWithError(span, err)
	observability.LogBatch(batchLog, len(msg.Events), float64(elapsed.Microseconds())/1000)
	return err
}

// PushEvent pushes a copy of e, otherwise unchanged, into every root. Panics are recovered
// and returned as PanicErrors.
func (s *Streams) PushEvent(e event.Event) error {
	var errs []error
	for i, root := range s.roots.Load() {
		if err := s.push(i, root, e); err != nil {
			s.cfg.logger.Error("stream panicked",
				slog.Int("root", i),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Streams) push(i int, root *Node, e event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Root: i, Value: r, Stack: string(debug.Stack())}
		}
	}()
	root.Push(e.Clone())
	return nil
}

// String implements fmt.Stringer.
func (s *Streams) String() string {
	return fmt.Sprintf("Streams(%d roots)", s.Len())
}
