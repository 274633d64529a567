package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowstream/pkg/flowstream"
	"github.com/randalmurphal/flowstream/pkg/flowstream/config"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestApp(t *testing.T, s config.Settings) (*app, *scheduler.Mock, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sched := scheduler.NewMock()
	a, err := newApp(s, discard, sched)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(context.Background()) })
	return a, sched, a.router()
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeEvents(t *testing.T, body []byte) []event.Event {
	t.Helper()
	var msg event.Message
	require.NoError(t, json.Unmarshal(body, &msg))
	return msg.Events
}

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   string
	}{
		{"json", "json", `"msg":"hello"`},
		{"text", "text", "msg=hello"},
		{"auto off terminal", "auto", `"msg":"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, config.LogSettings{Level: "info", Format: tt.format})
			logger.Debug("hidden")
			logger.Info("hello")
			assert.Contains(t, buf.String(), tt.want)
			assert.NotContains(t, buf.String(), "hidden")
		})
	}
}

func TestRootOptions_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  shards: 4\nlog:\n  level: warn\n"), 0o600))

	opts := &rootOptions{configPath: path, logFormat: "json"}
	require.NoError(t, opts.load(io.Discard))

	assert.Equal(t, 4, opts.settings.Index.Shards)
	assert.Equal(t, "warn", opts.settings.Log.Level)
	assert.Equal(t, "json", opts.settings.Log.Format)
	assert.NotNil(t, opts.logger)
}

func TestRootOptions_LoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowstream.toml")
	require.NoError(t, os.WriteFile(path, []byte("[index]\nshards = 0\n"), 0o600))

	opts := &rootOptions{configPath: path}
	err := opts.load(io.Discard)

	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "index.shards", cerr.Field)

	opts = &rootOptions{logLevel: "loud"}
	assert.Error(t, opts.load(io.Discard))
}

func TestServer_PostAndQueryEvents(t *testing.T) {
	_, _, r := newTestApp(t, config.DefaultSettings())

	rec := do(t, r, http.MethodPost, "/events", `{"events":[
		{"host":"a","service":"cpu","state":"ok","metric":0.5,"time":100},
		{"host":"b","service":"cpu","state":"critical","metric":0.99,"time":100},
		{"host":"a","service":"disk","state":"ok","metric":3,"time":100}
	]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"events":3}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeEvents(t, rec.Body.Bytes())
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a cpu", "a disk", "b cpu"},
		[]string{event.Key(all[0]), event.Key(all[1]), event.Key(all[2])})

	rec = do(t, r, http.MethodGet, "/events?host=a&service=disk", "")
	filtered := decodeEvents(t, rec.Body.Bytes())
	require.Len(t, filtered, 1)
	assert.Equal(t, event.IntMetric(3), filtered[0].Metric)

	rec = do(t, r, http.MethodGet, "/events?state=critical", "")
	assert.Len(t, decodeEvents(t, rec.Body.Bytes()), 1)

	rec = do(t, r, http.MethodGet, "/healthz", "")
	assert.JSONEq(t, `{"status":"ok","roots":1,"events":3}`, rec.Body.String())
}

func TestServer_RejectsBadBody(t *testing.T) {
	_, _, r := newTestApp(t, config.DefaultSettings())

	rec := do(t, r, http.MethodPost, "/events", `{"events":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/events", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_PanickingRootReported(t *testing.T) {
	a, _, r := newTestApp(t, config.DefaultSettings())
	a.streams.AddStream(flowstream.NewNode(func(flowstream.Forward, event.Event) {
		panic("bad rule")
	}))

	rec := do(t, r, http.MethodPost, "/events", `{"events":[{"host":"a","service":"cpu","time":1}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad rule")
	assert.Equal(t, 1, a.index.Len())
}

func TestApp_ExpiredEventsReinjected(t *testing.T) {
	s := config.DefaultSettings()
	s.Index.ExpireInterval = 5
	a, sched, r := newTestApp(t, s)

	var mu sync.Mutex
	var seen []event.Event
	a.streams.AddStream(flowstream.NewNode(func(_ flowstream.Forward, e event.Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	}))

	rec := do(t, r, http.MethodPost, "/events", `{"events":[{"host":"a","service":"cpu","time":0,"ttl":2}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	sched.ProcessEventTime(5)
	assert.Zero(t, a.index.Len())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, event.StateExpired, seen[1].State)
	assert.Equal(t, "a", seen[1].Host)
}

func TestApp_Metrics(t *testing.T) {
	s := config.DefaultSettings()
	s.Metrics = true
	_, sched, r := newTestApp(t, s)

	rec := do(t, r, http.MethodPost, "/events", `{"events":[{"host":"a","service":"cpu","time":0,"ttl":1}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	sched.ProcessEventTime(10)

	rec = do(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "flowstream_batches")
	assert.Contains(t, body, "flowstream_events_processed")
	assert.Contains(t, body, "flowstream_index_expired")
	assert.Contains(t, body, "go_goroutines")
}

func TestApp_MetricsRouteOnlyWhenEnabled(t *testing.T) {
	_, _, r := newTestApp(t, config.DefaultSettings())
	rec := do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApp_InfluxSink(t *testing.T) {
	var mu sync.Mutex
	var body strings.Builder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		body.Write(data)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := config.DefaultSettings()
	s.Influx.Enabled = true
	s.Influx.URL = srv.URL
	s.Influx.Org = "ops"
	s.Influx.Bucket = "events"

	gin.SetMode(gin.TestMode)
	a, err := newApp(s, discard, scheduler.NewMock())
	require.NoError(t, err)
	assert.Equal(t, 2, a.streams.Len())

	rec := do(t, a.router(), http.MethodPost, "/events", `{"events":[{"host":"a","service":"cpu","metric":2,"time":7}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, a.close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, body.String(), "flowstream,host=a,service=cpu metric=2,ttl=60i 7000000000")
}

func TestApp_HostStats(t *testing.T) {
	s := config.DefaultSettings()
	s.HostStats.Enabled = true
	s.HostStats.Interval = 3
	s.HostStats.Host = "test-host"
	a, sched, _ := newTestApp(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.start(ctx)
	sched.ProcessEventTime(3)

	events := a.index.AllEvents()
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.Equal(t, "test-host", e.Host)
		assert.True(t, e.HasTag("hoststats"))
	}
}

func TestIngestCommand(t *testing.T) {
	input := strings.Join([]string{
		`{"host":"a","service":"svc","time":0,"ttl":5}`,
		`not json`,
		`{"host":"b","service":"svc","time":10,"metric":1.5}`,
		``,
		`{"host":"c","service":"svc","state":"ok"}`,
	}, "\n")
	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o600))

	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs([]string{"ingest", path})
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var b, c event.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &b))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &c))
	assert.Equal(t, "b", b.Host)
	assert.Equal(t, event.DoubleMetric(1.5), b.Metric)
	assert.Equal(t, "c", c.Host)
	assert.Equal(t, int64(10), c.Time)

	logs := errOut.String()
	assert.Contains(t, logs, "skipping malformed event")
	assert.Contains(t, logs, `"expired":1`)
	assert.Contains(t, logs, `"skipped":1`)
}

func TestIngestCommand_Stdin(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs([]string{"ingest", "--keep-expired"})
	cmd.SetIn(strings.NewReader(`{"host":"old","service":"s","time":0,"ttl":1}` + "\n" + `{"host":"new","service":"s","time":5}` + "\n"))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	assert.Equal(t, 2, strings.Count(out.String(), "\n"))
	assert.Contains(t, out.String(), `"host":"old"`)
}

func TestIngestCommand_MissingFile(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"ingest", filepath.Join(t.TempDir(), "missing.ndjson")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.ErrorContains(t, cmd.Execute(), "open input")
}

func TestServer_Snapshots(t *testing.T) {
	a, sched, r := newTestApp(t, config.DefaultSettings())
	sched.SetTime(42)

	rec := do(t, r, http.MethodGet, "/snapshots", "")
	assert.JSONEq(t, `{"snapshots":[]}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/events", `{"events":[{"host":"a","service":"cpu","time":40},{"host":"b","service":"cpu","time":40}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, r, http.MethodPost, "/snapshots/before", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"name":"before","events":2}`, rec.Body.String())

	a.index.AddEvent(event.Event{Host: "c", Service: "cpu"})

	rec = do(t, r, http.MethodGet, "/snapshots/before", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeEvents(t, rec.Body.Bytes()), 2)

	rec = do(t, r, http.MethodGet, "/snapshots", "")
	var list struct {
		Snapshots []struct {
			Name   string `json:"name"`
			At     int64  `json:"at"`
			Events int    `json:"events"`
		} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Snapshots, 1)
	assert.Equal(t, int64(42), list.Snapshots[0].At)

	rec = do(t, r, http.MethodPost, "/snapshots/bad%20name", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodDelete, "/snapshots/before", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, r, http.MethodGet, "/snapshots/before", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApp_SQLiteSnapshots(t *testing.T) {
	s := config.DefaultSettings()
	s.Snapshot.Path = filepath.Join(t.TempDir(), "snapshots.db")
	a, _, r := newTestApp(t, s)
	a.index.AddEvent(event.Event{Host: "a", Service: "cpu"})

	rec := do(t, r, http.MethodPost, "/snapshots/one", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, a.close(context.Background()))

	store, err := openSnapshots(s.Snapshot)
	require.NoError(t, err)
	defer store.Close()
	events, err := store.Load("one")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Host)
}

func TestIngestCommand_Snapshot(t *testing.T) {
	db := filepath.Join(t.TempDir(), "snapshots.db")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"ingest", "--snapshot", "replay-1", "--snapshot-db", db})
	cmd.SetIn(strings.NewReader(`{"host":"a","service":"s","time":3}` + "\n"))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.NoError(t, cmd.Execute())

	store, err := openSnapshots(config.SnapshotSettings{Path: db})
	require.NoError(t, err)
	defer store.Close()

	infos, err := store.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "replay-1", infos[0].Name)
	assert.Equal(t, int64(3), infos[0].At)
	assert.Equal(t, 1, infos[0].Events)
}

func TestIngestCommand_SnapshotNeedsPath(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"ingest", "--snapshot", "x"})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.ErrorContains(t, cmd.Execute(), "snapshot.path")
}
