// Package local keeps this client's copy of the current result: an in-memory
// snapshot mirrored to a msgpack file so it survives restarts.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aevon-lab/salestrack/internal/core/aggregation"
	"github.com/aevon-lab/salestrack/internal/core/storage"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotStore implements storage.ResultStore for the local tier.
// An empty path keeps the snapshot in memory only.
type SnapshotStore struct {
	path string

	mu      sync.RWMutex
	current *aggregation.CachedResult
	loaded  bool
}

var _ storage.ResultStore = (*SnapshotStore)(nil)

// NewSnapshotStore returns a store backed by the file at path.
// The file is read lazily on the first Read.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Read returns the local snapshot or storage.ErrNotFound.
// A file that cannot be decoded is logged and treated as absent.
func (s *SnapshotStore) Read(_ context.Context) (*aggregation.CachedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		result, err := s.readFile()
		if err != nil {
			return nil, err
		}
		s.current = result
		s.loaded = true
	}

	if s.current == nil {
		return nil, storage.ErrNotFound
	}
	return s.current, nil
}

// readFile returns (nil, nil) for a missing or corrupt file.
func (s *SnapshotStore) readFile() (*aggregation.CachedResult, error) {
	if s.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local snapshot %s: %w", s.path, err)
	}

	var result aggregation.CachedResult
	if err := msgpack.Unmarshal(data, &result); err != nil {
		slog.Warn("[LocalCache] Snapshot file is corrupt, ignoring",
			"path", s.path,
			"error", err,
		)
		return nil, nil
	}
	return &result, nil
}

// Write replaces the in-memory snapshot and persists it atomically.
// The in-memory copy is updated even when persisting fails.
func (s *SnapshotStore) Write(_ context.Context, result aggregation.CachedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &result
	s.loaded = true

	if s.path == "" {
		return nil
	}
	if err := s.writeFile(result); err != nil {
		return fmt.Errorf("persist local snapshot: %w", err)
	}

	slog.Debug("[LocalCache] Snapshot persisted",
		"path", s.path,
		"result_id", result.ID,
	)
	return nil
}

func (s *SnapshotStore) writeFile(result aggregation.CachedResult) error {
	data, err := msgpack.Marshal(&result)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
