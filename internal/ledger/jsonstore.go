package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the full ledger snapshot in memory and flushes it to disk
// atomically on every Put, the way papapumpkin-quasar's nebula.SaveState
// writes a temp file and renames it over the target — a reader (a resumed
// run's All call) never observes a half-written snapshot.
type FileStore struct {
	path string

	mu      sync.Mutex
	records map[string]Record
}

// NewFileStore loads an existing snapshot at path, if any, or starts empty.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, records: make(map[string]Record)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	if len(data) == 0 {
		return fs, nil
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse ledger file: %w", err)
	}
	for _, r := range recs {
		fs.records[r.ID] = r
	}
	return fs, nil
}

// Put upserts rec and flushes the whole snapshot atomically.
func (fs *FileStore) Put(_ context.Context, rec Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.records[rec.ID] = rec
	return fs.flushLocked()
}

// All returns every record in the ledger, in no particular order.
func (fs *FileStore) All(_ context.Context) ([]Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make([]Record, 0, len(fs.records))
	for _, r := range fs.records {
		out = append(out, r)
	}
	return out, nil
}

// Close flushes one last time; the file store holds no other resources.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.flushLocked()
}

func (fs *FileStore) flushLocked() error {
	out := make([]Record, 0, len(fs.records))
	for _, r := range fs.records {
		out = append(out, r)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if dir := filepath.Dir(fs.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename ledger file: %w", err)
	}
	return nil
}
