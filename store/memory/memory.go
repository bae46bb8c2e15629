// Package memory provides an in-memory SnapshotStore.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/warehouse-engine/warehouse"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps encoded snapshots so callers never share state with it.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]entry
}

type entry struct {
	info warehouse.SnapshotInfo
	data []byte
}

func New() *Store {
	return &Store{snapshots: make(map[string]entry)}
}

// Save replaces the snapshot stored under name.
func (s *Store) Save(_ context.Context, name string, state *warehouse.State) (warehouse.SnapshotInfo, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	info := warehouse.NewSnapshotInfo(name, state)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[name] = entry{info: info, data: data}
	return info, nil
}

// Load returns a fresh copy of the snapshot stored under name.
func (s *Store) Load(_ context.Context, name string) (*warehouse.State, error) {
	s.mu.RLock()
	e, ok := s.snapshots[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", warehouse.ErrSnapshotNotFound, name)
	}

	var state warehouse.State
	if err := json.Unmarshal(e.data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", warehouse.ErrCorruptSnapshot, err)
	}
	return &state, nil
}

func (s *Store) Exists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.snapshots[name]
	return ok, nil
}

// List returns the stored snapshots by name.
func (s *Store) List() []warehouse.SnapshotInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]warehouse.SnapshotInfo, 0, len(s.snapshots))
	for _, e := range s.snapshots {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
