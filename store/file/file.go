/*
Package file provides a SnapshotStore backed by zstd-compressed JSON files.

PURPOSE:
  Persists each named snapshot as one file in a directory. A name maps to
  <dir>/<name>.wh.zst, or to <dir>/<name> when it already has an
  extension. Names must stay inside dir: absolute paths and names that
  climb out with ".." are rejected.

FILE FORMAT:
  zstd frame wrapping a JSON document:
    {"revision": "...", "saved_at": "...", "state": {...}}

ATOMICITY:
  Writes go to a temporary file in the same directory which is then
  renamed over the target, so a crash never leaves a half-written
  snapshot under the real name.

ERRORS:
  Name outside dir     -> warehouse.ErrInvalidSnapshotName
  Missing file         -> warehouse.ErrSnapshotNotFound
  Bad zstd or JSON     -> warehouse.ErrCorruptSnapshot
  Anything else        -> wrapped I/O error
*/
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/warp/warehouse-engine/warehouse"
)

// Extension is appended to bare snapshot names.
const Extension = ".wh.zst"

// Store reads and writes snapshot files under Dir.
type Store struct {
	Dir string

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

type document struct {
	Revision uuid.UUID        `json:"revision"`
	SavedAt  time.Time        `json:"saved_at"`
	State    *warehouse.State `json:"state"`
}

// New creates the directory if needed and prepares the codec.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Store{Dir: dir, encoder: encoder, decoder: decoder}, nil
}

// Close releases the codec resources.
func (s *Store) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

// Path returns the file a snapshot name maps to.
func (s *Store) Path(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", warehouse.ErrInvalidSnapshotName, name)
	}
	if filepath.Ext(name) == "" {
		name += Extension
	}
	return filepath.Join(s.Dir, name), nil
}

func (s *Store) Save(ctx context.Context, name string, state *warehouse.State) (warehouse.SnapshotInfo, error) {
	if err := ctx.Err(); err != nil {
		return warehouse.SnapshotInfo{}, err
	}

	info := warehouse.NewSnapshotInfo(name, state)
	raw, err := json.Marshal(document{Revision: info.Revision, SavedAt: info.SavedAt, State: state})
	if err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	compressed := s.encoder.EncodeAll(raw, nil)

	path, err := s.Path(name)
	if err != nil {
		return warehouse.SnapshotInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return info, nil
}

func (s *Store) Load(ctx context.Context, name string) (*warehouse.State, error) {
	doc, err := s.read(ctx, name)
	if err != nil {
		return nil, err
	}
	return doc.State, nil
}

// Info returns the metadata of a stored snapshot.
func (s *Store) Info(ctx context.Context, name string) (warehouse.SnapshotInfo, error) {
	doc, err := s.read(ctx, name)
	if err != nil {
		return warehouse.SnapshotInfo{}, err
	}
	info := warehouse.SnapshotInfo{
		Name:         name,
		Revision:     doc.Revision,
		SavedAt:      doc.SavedAt,
		Date:         doc.State.Date,
		Transactions: len(doc.State.Transactions),
	}
	return info, nil
}

func (s *Store) read(ctx context.Context, name string) (*document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	compressed, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", warehouse.ErrSnapshotNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	raw, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", warehouse.ErrCorruptSnapshot, name, err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", warehouse.ErrCorruptSnapshot, name, err)
	}
	if doc.State == nil {
		return nil, fmt.Errorf("%w: %s: no state", warehouse.ErrCorruptSnapshot, name)
	}
	return &doc, nil
}

func (s *Store) Exists(_ context.Context, name string) (bool, error) {
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	return true, nil
}
