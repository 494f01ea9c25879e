// Package checkpoint persists the done-set: the mapping from chunk name to
// verified frame count that lets a future run resume without redoing work.
//
// The store is shared by reference across all workers. Insert and Persist are
// combined into a single critical section (Complete) per chunk completion so
// two workers finishing at nearly the same instant cannot lose an update or
// tear the on-disk file.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileName is the checkpoint file created inside the temp directory.
const FileName = "done.json"

// Store is the in-memory done-set backed by a single JSON file.
//
// The on-disk state is rewritten wholesale after every completed chunk, so it
// is at most one chunk stale at any crash point.
type Store struct {
	mu   sync.Mutex
	path string

	// Done maps chunk name to the number of frames verified for that chunk.
	Done map[string]int `json:"done"`
}

// New returns an empty store that persists to path.
func New(path string) *Store {
	return &Store{
		path: path,
		Done: make(map[string]int),
	}
}

// Load reads the checkpoint file at path. A missing file yields an empty
// store; a present but unreadable or malformed file is an error, since
// silently discarding prior progress would cause completed chunks to be
// re-encoded.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	s := New(path)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint file %s: %w", path, err)
	}
	if s.Done == nil {
		s.Done = make(map[string]int)
	}
	return s, nil
}

// Complete records a verified chunk and rewrites the checkpoint file.
//
// The insert and the persist happen under one lock acquisition: the on-disk
// file must never reflect a state the in-memory map did not pass through.
func (s *Store) Complete(name string, frames int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Done[name] = frames
	if err := s.persistLocked(); err != nil {
		return fmt.Errorf("failed to persist checkpoint for chunk %s: %w", name, err)
	}
	return nil
}

// Frames returns the recorded frame count for a chunk name, and whether the
// chunk is present in the done-set.
func (s *Store) Frames(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames, ok := s.Done[name]
	return frames, ok
}

// Len returns the number of completed chunks in the done-set.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.Done)
}

// Persist rewrites the checkpoint file from the current in-memory state.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.persistLocked()
}

// persistLocked serializes the whole store and overwrites the checkpoint
// file. Caller must hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	return nil
}
