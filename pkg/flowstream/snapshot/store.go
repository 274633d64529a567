// Package snapshot stores named copies of an index's contents for offline
// inspection. A snapshot is written once and read back as a whole; it is
// never used to restore a running index.
package snapshot

import (
	"errors"
	"regexp"
	"time"

	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

// Store persists snapshots.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores events under name, taken at scheduler time at.
	// An existing snapshot with the same name is replaced.
	Save(name string, at int64, events []event.Event) error

	// Load returns the events of a snapshot ordered by host and service.
	// Returns ErrNotFound if the snapshot doesn't exist.
	Load(name string) ([]event.Event, error)

	// List returns every snapshot, oldest save first.
	List() ([]Info, error)

	// Delete removes a snapshot. Deleting a missing snapshot is not an error.
	Delete(name string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info describes a snapshot without loading its events.
type Info struct {
	Name     string    `json:"name"`
	Sequence int       `json:"sequence"`
	At       int64     `json:"at"`
	Events   int       `json:"events"`
	Saved    time.Time `json:"saved"`
}

// Sentinel errors for snapshot operations.
var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")

	// ErrInvalidName indicates a name outside [A-Za-z0-9._-]{1,128}.
	ErrInvalidName = errors.New("invalid snapshot name")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidName reports whether name can be used for a snapshot.
func ValidName(name string) bool {
	return validName.MatchString(name)
}
