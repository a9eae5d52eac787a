package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/QuantTune-Labs/optimizer-core/internal/study"
)

// MemoryStore keeps study records in process memory. It satisfies the same
// contract as the file store and is the backend of choice for tests and
// short-lived embedded searches.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*study.Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*study.Record)}
}

// LoadOrCreate returns a copy of the record stored under name, creating an
// empty one when absent. Reopening with a different direction fails.
func (m *MemoryStore) LoadOrCreate(name string, direction study.Direction) (*study.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[name]
	if !ok {
		rec = &study.Record{
			Name:            name,
			Direction:       direction,
			CreatedAtUnixMs: time.Now().UnixMilli(),
		}
		m.records[name] = rec
	}
	if rec.Direction != direction {
		return nil, &StorageError{Op: "load", Study: name, Err: ErrDirectionMismatch}
	}
	return copyRecord(rec), nil
}

// AppendTrial appends one terminal trial to the named study
func (m *MemoryStore) AppendTrial(studyName string, t *study.Trial) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[studyName]
	if !ok {
		return &StorageError{Op: "append", Study: studyName, Err: errors.New("unknown study")}
	}
	rec.Trials = append(rec.Trials, t)
	return nil
}

// copyRecord returns a record copy whose trial slice is detached from the
// stored one
func copyRecord(rec *study.Record) *study.Record {
	out := &study.Record{
		Name:            rec.Name,
		Direction:       rec.Direction,
		CreatedAtUnixMs: rec.CreatedAtUnixMs,
		Trials:          make([]*study.Trial, len(rec.Trials)),
	}
	copy(out.Trials, rec.Trials)
	return out
}
