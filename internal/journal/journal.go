// Package journal implements ProgressJournal (§4.8): a single mutable
// on-disk document holding the latest ProgressSnapshot for one batch,
// written via write-to-temp-then-atomic-rename so a crash mid-write never
// leaves a partially updated file.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const maxRetainedErrors = 50

// ProgressSnapshot is the durable form of PipelineOrchestrator state.
type ProgressSnapshot struct {
	BatchID         string    `msgpack:"batch_id"`
	Exchanges       []string  `msgpack:"exchanges"`
	CurrentExchange string    `msgpack:"current_exchange"`
	Total           int       `msgpack:"total"`
	Processed       int       `msgpack:"processed"`
	Successful      int       `msgpack:"successful"`
	Failed          int       `msgpack:"failed"`
	TotalQuotes     int       `msgpack:"total_quotes"`
	QualityIssues   int       `msgpack:"quality_issues"`
	Errors          []string  `msgpack:"errors"`
	StartedAt       time.Time `msgpack:"started_at"`
	UpdatedAt       time.Time `msgpack:"updated_at"`
	Done            bool      `msgpack:"done"`
}

// AddError appends msg to the rolling error buffer, trimming to the
// oldest-dropped-first policy of keeping only the last maxRetainedErrors.
func (s *ProgressSnapshot) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
	if len(s.Errors) > maxRetainedErrors {
		s.Errors = s.Errors[len(s.Errors)-maxRetainedErrors:]
	}
}

// Journal persists a ProgressSnapshot to a fixed path on disk.
type Journal struct {
	path string
	mu   sync.Mutex
}

// New builds a Journal writing to path (e.g. "<reportsDir>/progress.msgpack").
func New(path string) *Journal {
	return &Journal{path: path}
}

// Save atomically overwrites the journal file with snap.
func (j *Journal) Save(snap ProgressSnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("journal: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("journal: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("journal: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("journal: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("journal: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("journal: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, j.path); err != nil {
		return fmt.Errorf("journal: rename temp file: %w", err)
	}
	return nil
}

// Load reads the current snapshot. Returns (ProgressSnapshot{}, false, nil)
// if no journal file exists yet.
func (j *Journal) Load() (ProgressSnapshot, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return ProgressSnapshot{}, false, nil
	}
	if err != nil {
		return ProgressSnapshot{}, false, fmt.Errorf("journal: read file: %w", err)
	}

	var snap ProgressSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return ProgressSnapshot{}, false, fmt.Errorf("journal: unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// Resumable reports whether snap represents a batch worth resuming into,
// per §4.6's resume check: a snapshot exists with total > 0 and
// processed > 0.
func Resumable(snap ProgressSnapshot, ok bool) bool {
	return ok && snap.Total > 0 && snap.Processed > 0
}
