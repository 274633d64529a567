package snapshot

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

// SQLiteStore persists snapshots to a SQLite file. Events are stored one
// row each, JSON encoded.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates the database at path.
// The path should be a file path (e.g., "./snapshots.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			name TEXT PRIMARY KEY,
			sequence INTEGER NOT NULL,
			at INTEGER NOT NULL,
			saved TEXT NOT NULL,
			events INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_events (
			name TEXT NOT NULL,
			key TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (name, key)
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(name string, at int64, events []event.Event) (err error) {
	if !ValidName(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	events = sortedCopy(events)
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = deleteSnapshot(tx, name); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	if _, err = tx.Exec(`
		INSERT INTO snapshots (name, sequence, at, saved, events)
		VALUES (?, COALESCE((SELECT MAX(sequence) FROM snapshots), 0) + 1, ?, ?, ?)
	`, name, at, time.Now().UTC().Format(time.RFC3339Nano), len(events)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO snapshot_events (name, key, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare events: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		data, merr := json.Marshal(e)
		if merr != nil {
			err = fmt.Errorf("encode event: %w", merr)
			return err
		}
		if _, err = stmt.Exec(name, event.Key(e), data); err != nil {
			return fmt.Errorf("save event: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(name string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var count int
	err := s.db.QueryRow(`SELECT events FROM snapshots WHERE name = ?`, name).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT data FROM snapshot_events
		WHERE name = ?
		ORDER BY key
	`, name)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0, count)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e event.Event
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// List implements Store.
func (s *SQLiteStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT name, sequence, at, saved, events
		FROM snapshots
		ORDER BY sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		var saved string
		if err := rows.Scan(&info.Name, &info.Sequence, &info.At, &saved, &info.Events); err != nil {
			return nil, fmt.Errorf("scan snapshot info: %w", err)
		}
		info.Saved, _ = time.Parse(time.RFC3339Nano, saved)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	if err := deleteSnapshot(tx, name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func deleteSnapshot(tx *sql.Tx, name string) error {
	if _, err := tx.Exec(`DELETE FROM snapshot_events WHERE name = ?`, name); err != nil {
		return err
	}
	_, err := tx.Exec(`DELETE FROM snapshots WHERE name = ?`, name)
	return err
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Compile-time interface checks.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
