package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/QuantTune-Labs/optimizer-core/internal/study"
	"github.com/QuantTune-Labs/optimizer-core/pkg/logger"
	"github.com/QuantTune-Labs/optimizer-core/pkg/utils"
)

const writeAttempts = 3

// FileStore persists one JSON document per study under a base directory.
// Writes go through a temp file and an atomic rename, so a crash mid-write
// never corrupts the study on disk. Transient write failures are retried
// with exponential backoff before they surface to the caller.
type FileStore struct {
	dir     string
	backoff utils.BackoffStrategy

	mu      sync.Mutex
	records map[string]*study.Record
}

// NewFileStore creates a file store rooted at dir, creating the directory
// when it does not exist
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "init", Study: "", Err: err}
	}
	return &FileStore{
		dir:     dir,
		backoff: utils.NewExponentialBackoff(50*time.Millisecond, time.Second, 2.0, true),
		records: make(map[string]*study.Record),
	}, nil
}

// LoadOrCreate reads the study's JSON document, creating an empty record
// when none exists yet. Reopening with a different direction fails.
func (f *FileStore) LoadOrCreate(name string, direction study.Direction) (*study.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[name]
	if !ok {
		loaded, err := f.readRecord(name)
		switch {
		case err == nil:
			rec = loaded
		case errors.Is(err, fs.ErrNotExist):
			rec = &study.Record{
				Name:            name,
				Direction:       direction,
				CreatedAtUnixMs: time.Now().UnixMilli(),
			}
			if err := f.writeRecord(rec); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
		f.records[name] = rec
	}

	if rec.Direction != direction {
		return nil, &StorageError{Op: "load", Study: name, Err: fmt.Errorf(
			"%w: stored %q, requested %q", ErrDirectionMismatch, rec.Direction, direction)}
	}
	return copyRecord(rec), nil
}

// AppendTrial appends one terminal trial and rewrites the study's document
func (f *FileStore) AppendTrial(studyName string, t *study.Trial) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[studyName]
	if !ok {
		return &StorageError{Op: "append", Study: studyName, Err: errors.New("unknown study")}
	}
	rec.Trials = append(rec.Trials, t)
	if err := f.writeRecord(rec); err != nil {
		// Roll back the cached record so memory and disk stay in step
		rec.Trials = rec.Trials[:len(rec.Trials)-1]
		return err
	}
	return nil
}

// Path returns the on-disk location of the named study
func (f *FileStore) Path(name string) string {
	return filepath.Join(f.dir, sanitizeName(name)+".json")
}

// ListStudies returns the names of all studies present on disk
func (f *FileStore) ListStudies() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, &StorageError{Op: "list", Study: "", Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

func (f *FileStore) readRecord(name string) (*study.Record, error) {
	data, err := os.ReadFile(f.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, &StorageError{Op: "read", Study: name, Err: err}
	}
	var rec study.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &StorageError{Op: "decode", Study: name, Err: err}
	}
	return &rec, nil
}

func (f *FileStore) writeRecord(rec *study.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Study: rec.Name, Err: err}
	}

	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if attempt > 0 {
			delay := f.backoff.NextDelay(attempt - 1)
			logger.Warn("retrying study write",
				"study", rec.Name, "attempt", attempt+1, "delay", delay)
			time.Sleep(delay)
		}
		if lastErr = f.writeAtomic(f.Path(rec.Name), data); lastErr == nil {
			return nil
		}
	}
	return &StorageError{Op: "write", Study: rec.Name, Err: lastErr}
}

// writeAtomic writes data next to the target and renames it into place
func (f *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".study-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// sanitizeName maps a study name onto a safe file name
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
