package influx

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowstream/pkg/flowstream"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

type writeServer struct {
	*httptest.Server

	mu     sync.Mutex
	bodies []string
	query  string
	status int
}

func newWriteServer(t *testing.T, status int) *writeServer {
	t.Helper()
	ws := &writeServer{status: status}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		ws.mu.Lock()
		ws.bodies = append(ws.bodies, string(body))
		ws.query = r.URL.RawQuery
		ws.mu.Unlock()

		if ws.status != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(ws.status)
			_, _ = w.Write([]byte(`{"code":"invalid","message":"rejected"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ws.Close)
	return ws
}

func (ws *writeServer) lines() []string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	var out []string
	for _, b := range ws.bodies {
		for line := range strings.SplitSeq(strings.TrimSpace(b), "\n") {
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

func lineOf(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Second))
}

func TestPoint_TagsAndFields(t *testing.T) {
	e := event.Event{
		Host:        "web-1",
		Service:     "cpu",
		State:       "ok",
		Description: "load",
		Tags:        []string{"prod", "eu"},
		Attributes:  []event.Attribute{{Key: "rack", Value: "r7"}, {Key: "empty"}},
	}
	e.SetTime(100)
	e.SetTTL(30)
	e.SetMetricDouble(0.5)

	got := lineOf(Point("events", e, time.Unix(999, 0)))
	assert.Equal(t,
		`events,host=web-1,rack=r7,service=cpu,state=ok,tags=eu\,prod description="load",metric=0.5,ttl=30i 100`,
		got)
}

func TestPoint_IntMetricAndDefaults(t *testing.T) {
	e := event.Event{Host: "db"}
	e.SetMetricInt(7)

	got := lineOf(Point("events", e, time.Unix(42, 0)))
	assert.Equal(t, `events,host=db metric=7,ttl=60i 42`, got)
}

func TestPoint_MixedMetricKindsShareFieldType(t *testing.T) {
	var counted, scaled, folded event.Event
	counted.SetMetricInt(3)
	scaled.SetMetricDouble(3.5)
	folded.SetMetricFloat(1.25)

	for _, e := range []event.Event{counted, scaled, folded} {
		fields := Point("events", e, time.Unix(1, 0)).FieldList()
		var metric any
		for _, f := range fields {
			if f.Key == "metric" {
				metric = f.Value
			}
		}
		assert.IsType(t, float64(0), metric)
	}
}

func TestPoint_NoMetric(t *testing.T) {
	e := event.Event{Service: "heartbeat"}
	e.SetTime(5)

	got := lineOf(Point("events", e, time.Time{}))
	assert.Equal(t, `events,service=heartbeat ttl=60i 5`, got)
}

func TestSink_WritesThroughNode(t *testing.T) {
	srv := newWriteServer(t, http.StatusNoContent)
	sink := New(srv.URL, "token", "ops", "events",
		WithBatchSize(10),
		WithFlushInterval(time.Hour),
		WithClock(func() time.Time { return time.Unix(50, 0) }),
	)
	defer sink.Close()

	out := make([]event.Event, 0, 2)
	node := flowstream.Chain(sink.Node(), flowstream.NewNode(func(_ flowstream.Forward, e event.Event) {
		out = append(out, e)
	}))

	a := event.Event{Host: "a"}
	a.SetMetricInt(1)
	b := event.Event{Host: "b"}
	b.SetMetricInt(2)
	node.Push(a)
	node.Push(b)

	assert.Len(t, out, 2)
	assert.Equal(t, int64(2), sink.Written())

	sink.Flush()
	require.Eventually(t, func() bool { return len(srv.lines()) == 2 }, 2*time.Second, 10*time.Millisecond)

	lines := srv.lines()
	assert.Contains(t, lines[0], "flowstream,host=a metric=1,")
	assert.Contains(t, lines[1], "flowstream,host=b metric=2,")

	srv.mu.Lock()
	query := srv.query
	srv.mu.Unlock()
	assert.Contains(t, query, "org=ops")
	assert.Contains(t, query, "bucket=events")
	assert.Zero(t, sink.Failures())
}

func TestSink_CloseFlushes(t *testing.T) {
	srv := newWriteServer(t, http.StatusNoContent)
	sink := New(srv.URL, "token", "ops", "events", WithMeasurement("m"), WithFlushInterval(time.Hour))

	e := event.Event{Host: "late"}
	e.SetTime(1)
	sink.Write(e)
	sink.Close()
	sink.Close()

	assert.Equal(t, []string{"m,host=late ttl=60i 1000000000"}, srv.lines())
}

func TestSink_LogsRejectedWrites(t *testing.T) {
	srv := newWriteServer(t, http.StatusBadRequest)

	var mu sync.Mutex
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&lockedWriter{mu: &mu, w: &buf}, nil))

	sink := New(srv.URL, "token", "ops", "events", WithLogger(logger), WithFlushInterval(time.Hour))
	sink.Write(event.Event{Host: "x"})
	sink.Flush()

	require.Eventually(t, func() bool { return sink.Failures() == 1 }, 2*time.Second, 10*time.Millisecond)
	sink.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, buf.String(), "influx write failed")
	assert.Contains(t, buf.String(), "bucket=events")
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
