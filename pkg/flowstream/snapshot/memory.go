package snapshot

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
)

// MemoryStore keeps snapshots in memory. Data is lost when the process
// exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]stored
	seq    int
	closed bool
}

type stored struct {
	events   []event.Event
	sequence int
	at       int64
	saved    time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]stored)}
}

// Save implements Store.
func (m *MemoryStore) Save(name string, at int64, events []event.Event) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.seq++
	m.data[name] = stored{
		events:   sortedCopy(events),
		sequence: m.seq,
		at:       at,
		saved:    time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(name string) ([]event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	s, ok := m.data[name]
	if !ok {
		return nil, ErrNotFound
	}
	return sortedCopy(s.events), nil
}

// List implements Store.
func (m *MemoryStore) List() ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.data))
	for name, s := range m.data {
		infos = append(infos, Info{
			Name:     name,
			Sequence: s.sequence,
			At:       s.at,
			Events:   len(s.events),
			Saved:    s.saved,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, name)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of snapshots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// sortedCopy deep-copies events and orders them by key. Later events win
// duplicate keys, as they would in an index.
func sortedCopy(events []event.Event) []event.Event {
	byKey := make(map[string]event.Event, len(events))
	for _, e := range events {
		byKey[event.Key(e)] = e.Clone()
	}
	out := make([]event.Event, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b event.Event) int {
		return strings.Compare(event.Key(a), event.Key(b))
	})
	return out
}
