package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowstream/pkg/flowstream"
	"github.com/randalmurphal/flowstream/pkg/flowstream/config"
	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/index"
	"github.com/randalmurphal/flowstream/pkg/flowstream/scheduler"
	"github.com/randalmurphal/flowstream/pkg/flowstream/snapshot"
)

const maxLineBytes = 1 << 20

func newIngestCommand(root *rootOptions) *cobra.Command {
	var (
		keepExpired  bool
		snapshotName string
		snapshotDB   string
	)

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Replay NDJSON events and print the resulting index",
		Long: `Ingest reads one JSON event per line from a file, or stdin when no file
is given, and replays it through an index on an event-time clock: the
clock advances to each event's time, running expiry sweeps as it goes.
The final index is written to stdout as NDJSON ordered by host and service.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}
			settings := root.settings
			if snapshotDB != "" {
				settings.Snapshot.Path = snapshotDB
			}
			if snapshotName != "" {
				if !snapshot.ValidName(snapshotName) {
					return fmt.Errorf("%w: %q", snapshot.ErrInvalidName, snapshotName)
				}
				if settings.Snapshot.Path == "" {
					return errors.New("--snapshot needs snapshot.path or --snapshot-db")
				}
			}
			return ingest(cmd.Context(), in, cmd.OutOrStdout(), settings, root.logger, keepExpired, snapshotName)
		},
	}

	cmd.Flags().BoolVar(&keepExpired, "keep-expired", false, "skip the final sweep at the last event time")
	cmd.Flags().StringVar(&snapshotName, "snapshot", "", "also save the final index as this snapshot name")
	cmd.Flags().StringVar(&snapshotDB, "snapshot-db", "", "override snapshot.path")
	return cmd
}

// ingest replays r into a fresh index and writes the result to w. When
// snapshotName is set the result is also saved to the snapshot store.
func ingest(ctx context.Context, r io.Reader, w io.Writer, s config.Settings, logger *slog.Logger, keepExpired bool, snapshotName string) error {
	sched := scheduler.NewMock()
	expired := 0
	idx := index.New(sched,
		index.WithShards(s.Index.Shards),
		index.WithExpireInterval(s.Index.ExpireInterval),
		index.WithLogger(logger),
		index.WithExpiredHandler(func(event.Event) { expired++ }),
	)

	streams := flowstream.NewStreams(
		flowstream.WithLogger(logger),
		flowstream.WithClock(func() time.Time { return time.Unix(sched.Now(), 0) }),
	)
	streams.AddStream(flowstream.IndexSink(idx))

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lines, skipped := 0, 0
	for scanner.Scan() {
		lines++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e event.Event
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			logger.Warn("skipping malformed event", slog.Int("line", lines), slog.String("error", err.Error()))
			continue
		}
		if e.HasTime && e.Time > sched.Now() {
			sched.ProcessEventTime(e.Time)
		}
		if err := streams.ProcessMessage(ctx, event.Message{Events: []event.Event{e}}); err != nil {
			return fmt.Errorf("line %d: %w", lines, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	if !keepExpired {
		idx.Expire()
	}

	events := idx.AllEvents()
	sortByKey(events)
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if err := writeJSONLine(w, data); err != nil {
			return err
		}
	}

	if snapshotName != "" {
		store, err := snapshot.NewSQLiteStore(s.Snapshot.Path)
		if err != nil {
			return fmt.Errorf("snapshot store: %w", err)
		}
		defer store.Close()
		if err := store.Save(snapshotName, sched.Now(), events); err != nil {
			return err
		}
	}

	logger.Info("ingest complete",
		slog.Int("lines", lines),
		slog.Int("skipped", skipped),
		slog.Int("expired", expired),
		slog.Int("indexed", len(events)),
	)
	return nil
}
