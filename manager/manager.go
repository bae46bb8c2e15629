/*
manager.go - Session facade over a single warehouse

PURPOSE:
  Owns the live Warehouse for a running process and everything around it
  that the engine does not care about: which snapshot the state is
  associated with, whether there are unsaved changes, persistence through
  a SnapshotStore, bulk import, and logging.

CONCURRENCY:
  The engine is single-threaded. Every call takes the manager's mutex, so
  HTTP handlers and the autosave scheduler are serialized. Read and Write
  hand the warehouse to a callback under the lock; callers must not keep
  engine pointers after the callback returns.

DIRTY FLAG:
  Set by every successful Write, Import and Reset, and by ShowPartner when
  it drained notifications. Cleared by Save, SaveAs and Load. Save with a
  clean state is a no-op.

ASSOCIATION:
  Save needs a snapshot name (ErrMissingFileAssociation otherwise). SaveAs
  and Load set it; Reset clears it, so a reset state is never written over
  the snapshot it replaced. A failed Load leaves both the warehouse and the
  association untouched.

SEE ALSO:
  - warehouse/store.go: SnapshotStore
  - importer: Bulk text import
  - api/handlers.go: HTTP surface built on Read/Write
*/
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/warp/warehouse-engine/importer"
	"github.com/warp/warehouse-engine/pkg/logger"
	"github.com/warp/warehouse-engine/warehouse"
)

var (
	// ErrMissingFileAssociation is returned by Save before any SaveAs or Load.
	ErrMissingFileAssociation = errors.New("no snapshot associated with the current state")

	// ErrUnavailableFile is returned when a snapshot cannot be loaded.
	ErrUnavailableFile = errors.New("snapshot unavailable")
)

// Manager serializes access to one warehouse and its persistence.
type Manager struct {
	mu    sync.Mutex
	w     *warehouse.Warehouse
	store warehouse.SnapshotStore
	name  string
	dirty bool
	log   *logger.Logger
}

// New returns a manager holding an empty warehouse with no association.
func New(store warehouse.SnapshotStore, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		w:     warehouse.New(),
		store: store,
		log:   log.WithComponent("manager"),
	}
}

func (m *Manager) logFor(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, m.log)
}

// =============================================================================
// ENGINE ACCESS
// =============================================================================

// Read runs fn against the warehouse without marking it dirty.
func (m *Manager) Read(fn func(w *warehouse.Warehouse) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.w)
}

// Write runs fn against the warehouse and marks it dirty when fn succeeds.
// Engine operations never leave partial changes, so a failed fn leaves the
// flag as it was.
func (m *Manager) Write(ctx context.Context, op string, fn func(w *warehouse.Warehouse) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := fn(m.w); err != nil {
		m.logFor(ctx).Debugw("operation rejected", "op", op, "error", err)
		return err
	}
	m.dirty = true
	m.logFor(ctx).Debugw("operation committed", "op", op, "date", m.w.Date())
	return nil
}

// PartnerView is a partner line followed by the notifications that were
// pending for it.
type PartnerView struct {
	Partner       string
	Notifications []string
}

// ShowPartner renders a partner and consumes its pending notifications.
// The state only becomes dirty when there was something to consume.
func (m *Manager) ShowPartner(ctx context.Context, key string) (PartnerView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.w.Partner(key)
	if err != nil {
		return PartnerView{}, err
	}
	notifications, err := m.w.PartnerNotifications(key)
	if err != nil {
		return PartnerView{}, err
	}

	view := PartnerView{Partner: p.String(), Notifications: make([]string, len(notifications))}
	for i, n := range notifications {
		view.Notifications[i] = n.String()
	}
	if len(notifications) > 0 {
		m.dirty = true
		m.logFor(ctx).Debugw("notifications consumed", "partner", p.Key(), "count", len(notifications))
	}
	return view, nil
}

// =============================================================================
// SESSION STATE
// =============================================================================

// Dirty reports whether there are changes since the last save or load.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// Association returns the snapshot name Save writes to, or "".
func (m *Manager) Association() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Reset replaces the state with an empty warehouse and drops the
// association. Save fails with ErrMissingFileAssociation until SaveAs.
func (m *Manager) Reset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logFor(ctx).Infow("warehouse reset", "previous_snapshot", m.name)
	m.w = warehouse.New()
	m.name = ""
	m.dirty = true
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Save writes the state to the associated snapshot if anything changed.
func (m *Manager) Save(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.name == "" {
		return false, ErrMissingFileAssociation
	}
	if !m.dirty {
		return false, nil
	}
	return true, m.save(ctx, m.name)
}

// SaveAs writes the state under name and associates it.
func (m *Manager) SaveAs(ctx context.Context, name string) error {
	if name == "" {
		return ErrMissingFileAssociation
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.save(ctx, name); err != nil {
		return err
	}
	m.name = name
	return nil
}

func (m *Manager) save(ctx context.Context, name string) error {
	info, err := m.store.Save(ctx, name, m.w.Snapshot())
	if err != nil {
		m.logFor(ctx).Errorw("save failed", "snapshot", name, "error", err)
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	m.dirty = false
	m.logFor(ctx).Infow("state saved",
		"snapshot", name,
		"revision", info.Revision.String(),
		"date", info.Date,
		"transactions", info.Transactions,
	)
	return nil
}

// Load replaces the state with the snapshot stored under name.
func (m *Manager) Load(ctx context.Context, name string) error {
	state, err := m.store.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailableFile, name, err)
	}
	w, err := warehouse.Restore(state)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailableFile, name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.w = w
	m.name = name
	m.dirty = false
	m.logFor(ctx).Infow("state loaded", "snapshot", name, "date", w.Date(),
		"products", len(w.Products()), "partners", len(w.Partners()))
	return nil
}

// Import applies a bulk text import. Nothing changes unless every line
// applies.
func (m *Manager) Import(ctx context.Context, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, err := importer.Import(ctx, m.w, r)
	if err != nil {
		m.logFor(ctx).Warnw("import rejected", "error", err)
		return err
	}
	m.w = w
	m.dirty = true
	m.logFor(ctx).Infow("import applied",
		"products", len(w.Products()), "partners", len(w.Partners()))
	return nil
}

// ImportFile is Import reading from the file at path.
func (m *Manager) ImportFile(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, err := importer.ImportFile(ctx, m.w, path)
	if err != nil {
		m.logFor(ctx).Warnw("import rejected", "file", path, "error", err)
		return err
	}
	m.w = w
	m.dirty = true
	m.logFor(ctx).Infow("import applied", "file", path,
		"products", len(w.Products()), "partners", len(w.Partners()))
	return nil
}

// Snapshot copies the current state.
func (m *Manager) Snapshot() *warehouse.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.w.Snapshot()
}
