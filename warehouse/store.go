/*
store.go - Snapshot persistence interface

PURPOSE:
  The engine never touches disk. Persistence layers implement
  SnapshotStore and move whole State values in and out.

IMPLEMENTATIONS:
  store/memory: In-memory (tests, development)
  store/file:   zstd-compressed JSON files
  store/sqlite: Relational tables in SQLite

ERRORS:
  Load returns ErrSnapshotNotFound for unknown names and
  ErrCorruptSnapshot for data that cannot be decoded. Other errors are
  I/O failures.
*/
package warehouse

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SnapshotInfo describes one saved snapshot.
type SnapshotInfo struct {
	Name         string
	Revision     uuid.UUID
	SavedAt      time.Time
	Date         Date
	Transactions int
}

// SnapshotStore persists named warehouse snapshots. Saving under an
// existing name replaces it.
type SnapshotStore interface {
	Save(ctx context.Context, name string, state *State) (SnapshotInfo, error)
	Load(ctx context.Context, name string) (*State, error)
	Exists(ctx context.Context, name string) (bool, error)
}

// NewSnapshotInfo stamps a snapshot about to be saved with a fresh,
// time-ordered revision.
func NewSnapshotInfo(name string, state *State) SnapshotInfo {
	rev, err := uuid.NewV7()
	if err != nil {
		rev = uuid.New()
	}
	return SnapshotInfo{
		Name:         name,
		Revision:     rev,
		SavedAt:      time.Now().UTC(),
		Date:         state.Date,
		Transactions: len(state.Transactions),
	}
}
