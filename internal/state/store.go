package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/songbook/internal/docstore"
	"github.com/five82/songbook/internal/song"
)

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Records             []song.Record
	Loaded              bool // at least one snapshot has been applied
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // subscription failures since the last good snapshot
}

// IsOffline reports whether the subscription has failed since the last
// snapshot was applied.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures > 0
}

// Mirror is the local copy of one collection. It is only ever replaced
// wholesale by a delivered snapshot, never patched.
type Mirror struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// Replace installs docs as the new contents, in delivery order, and clears
// any recorded failure.
func (m *Mirror) Replace(docs []docstore.Document) {
	records := make([]song.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, song.FromDocument(d.Key, d.Fields))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Records = records
	m.snapshot.Loaded = true
	m.snapshot.LastError = nil
	m.snapshot.LastUpdated = m.clock()
	m.snapshot.ConsecutiveFailures = 0
}

// Fail records a subscription failure. The previous records are kept so the
// view can keep showing them.
func (m *Mirror) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.LastError = err
	m.snapshot.ConsecutiveFailures++
}

// Records returns a copy of the current records.
func (m *Mirror) Records() []song.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRecords(m.snapshot.Records)
}

// Lookup returns the record with key, if present.
func (m *Mirror) Lookup(key string) (song.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.snapshot.Records {
		if r.Key == key {
			return r, true
		}
	}
	return song.Record{}, false
}

// Len returns the number of records.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshot.Records)
}

// Snapshot returns a copy of the current snapshot.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.Records = cloneRecords(m.snapshot.Records)
	if m.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", m.snapshot.LastError)
	}
	return snap
}

func (m *Mirror) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func cloneRecords(records []song.Record) []song.Record {
	if len(records) == 0 {
		return nil
	}
	dup := make([]song.Record, len(records))
	copy(dup, records)
	return dup
}
