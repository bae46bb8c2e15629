/*
Package sqlite provides a SQLite-backed SnapshotStore.

PURPOSE:
  Persists warehouse snapshots as relational rows instead of an opaque
  blob, so saved state can be inspected and queried with plain SQL.

KEY TABLES:
  snapshots:             One row per snapshot name (revision, date)
  products:              Products with kind, max price and aggravation
  recipe_components:     Recipe lines of derivate products
  batches:               Remaining batches in consumption order
  partners:              Partners with rank, points and running totals
  subscriptions:         Partner -> product notification subscriptions
  notifications:         Pending notification queues
  transactions:          The ledger, one row per transaction
  breakdown_components:  Components yielded by breakdown transactions

  Every table references snapshots(name) with ON DELETE CASCADE.

SAVE SEMANTICS:
  Save runs in a single SQL transaction: delete the old snapshot under the
  name (cascading to every child row), then insert the new rows. Readers
  never see a half-written snapshot.

ORDERING:
  Every child row carries a position column; Load reads rows back in that
  order, so batch tie order, recipe order and notification order survive.

CONCURRENCY:
  Uses sync.RWMutex plus a single open connection. SQLite serializes
  writers anyway, and ":memory:" databases are per-connection.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging).

USAGE:
  store, err := sqlite.New("./data/warehouse.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  info, err := store.Save(ctx, "main", w.Snapshot())

SEE ALSO:
  - warehouse/store.go: SnapshotStore interface
  - store/file: Compressed file implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/warehouse-engine/warehouse"
)

// Store implements warehouse.SnapshotStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		revision TEXT NOT NULL,
		warehouse_date INTEGER NOT NULL,
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		snapshot TEXT NOT NULL REFERENCES snapshots(name) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		key TEXT NOT NULL,
		kind TEXT NOT NULL,
		max_price TEXT NOT NULL,
		aggravation TEXT NOT NULL,
		PRIMARY KEY (snapshot, key)
	);

	CREATE TABLE IF NOT EXISTS recipe_components (
		snapshot TEXT NOT NULL REFERENCES snapshots(name) ON DELETE CASCADE,
		product_key TEXT NOT NULL,
		position INTEGER NOT NULL,
		component_key TEXT NOT NULL,
		amount INTEGER NOT NULL,
		PRIMARY KEY (snapshot, product_key, position)
	);

	CREATE TABLE IF NOT EXISTS batches (
		snapshot TEXT NOT NULL REFERENCES snapshots(name) ON DELETE CASCADE,
		product_key TEXT NOT NULL,
		position INTEGER NOT NULL,
		partner_key TEXT NOT NULL,
		price TEXT NOT NULL,
		amount INTEGER NOT NULL CHECK (amount > 0),
		PRIMARY KEY (snapshot, product_key, position)
	);

	CREATE TABLE IF NOT EXISTS partners (
		snapshot TEXT NOT NULL REFERENCES snapshots(name) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		key TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		rank TEXT NOT NULL,
		points TEXT NOT NULL,
		acquisitions_value TEXT NOT NULL,
		sales_value TEXT NOT NULL,
		paid_sales_value TEXT NOT NULL,
		PRIMARY KEY (snapshot, key)
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		snapshot TEXT NOT NULL REFERENCES snapshots(name) ON DELETE CASCADE,
		partner_key TEXT NOT NULL,
		position INTEGER NOT NULL,
		product_key TEXT NOT NULL,
		PRIMARY KEY (snapshot, partner_key, position)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		snapshot TEXT NOT NULL REFERENCES snapshots(name) ON DELETE CASCADE,
		partner_key TEXT NOT NULL,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		product_key TEXT NOT NULL,
		price TEXT NOT NULL,
		PRIMARY KEY (snapshot, partner_key, position)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		snapshot TEXT NOT NULL REFERENCES snapshots(name) ON DELETE CASCADE,
		id INTEGER NOT NULL,
		tx_type TEXT NOT NULL,
		tx_date INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		product_key TEXT NOT NULL,
		partner_key TEXT NOT NULL,
		price TEXT NOT NULL,
		value TEXT NOT NULL,
		base_value TEXT NOT NULL,
		deadline INTEGER NOT NULL,
		real_value TEXT NOT NULL,
		payment_date INTEGER NOT NULL,
		paid_value TEXT NOT NULL,
		PRIMARY KEY (snapshot, id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_partner
		ON transactions(snapshot, partner_key);

	CREATE TABLE IF NOT EXISTS breakdown_components (
		snapshot TEXT NOT NULL REFERENCES snapshots(name) ON DELETE CASCADE,
		tx_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		product_key TEXT NOT NULL,
		amount INTEGER NOT NULL,
		price TEXT NOT NULL,
		PRIMARY KEY (snapshot, tx_id, position)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SAVE
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Save replaces the snapshot stored under name.
func (s *Store) Save(ctx context.Context, name string, state *warehouse.State) (warehouse.SnapshotInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := warehouse.NewSnapshotInfo(name, state)

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to delete old snapshot: %w", err)
	}
	if _, err := sqlTx.ExecContext(ctx,
		`INSERT INTO snapshots (name, revision, warehouse_date, saved_at) VALUES (?, ?, ?, ?)`,
		name, info.Revision.String(), int(state.Date), info.SavedAt.Format(time.RFC3339Nano),
	); err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := saveProducts(ctx, sqlTx, name, state.Products); err != nil {
		return warehouse.SnapshotInfo{}, err
	}
	if err := savePartners(ctx, sqlTx, name, state.Partners); err != nil {
		return warehouse.SnapshotInfo{}, err
	}
	if err := saveTransactions(ctx, sqlTx, name, state.Transactions); err != nil {
		return warehouse.SnapshotInfo{}, err
	}

	if err := sqlTx.Commit(); err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return info, nil
}

func saveProducts(ctx context.Context, db execer, name string, products []warehouse.ProductState) error {
	for i, p := range products {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO products (snapshot, position, key, kind, max_price, aggravation)
			VALUES (?, ?, ?, ?, ?, ?)`,
			name, i, p.Key, p.Kind, p.MaxPrice, p.Aggravation,
		); err != nil {
			return fmt.Errorf("failed to insert product %s: %w", p.Key, err)
		}
		for j, c := range p.Components {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO recipe_components (snapshot, product_key, position, component_key, amount)
				VALUES (?, ?, ?, ?, ?)`,
				name, p.Key, j, c.Product, c.Amount,
			); err != nil {
				return fmt.Errorf("failed to insert recipe of %s: %w", p.Key, err)
			}
		}
		for j, b := range p.Batches {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO batches (snapshot, product_key, position, partner_key, price, amount)
				VALUES (?, ?, ?, ?, ?, ?)`,
				name, p.Key, j, b.Partner, b.Price, b.Amount,
			); err != nil {
				return fmt.Errorf("failed to insert batch of %s: %w", p.Key, err)
			}
		}
	}
	return nil
}

func savePartners(ctx context.Context, db execer, name string, partners []warehouse.PartnerState) error {
	for i, p := range partners {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO partners (snapshot, position, key, name, address, rank, points,
				acquisitions_value, sales_value, paid_sales_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			name, i, p.Key, p.Name, p.Address, p.Rank, p.Points,
			p.AcquisitionsValue, p.SalesValue, p.PaidSalesValue,
		); err != nil {
			return fmt.Errorf("failed to insert partner %s: %w", p.Key, err)
		}
		for j, product := range p.Subscriptions {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO subscriptions (snapshot, partner_key, position, product_key)
				VALUES (?, ?, ?, ?)`,
				name, p.Key, j, product,
			); err != nil {
				return fmt.Errorf("failed to insert subscription of %s: %w", p.Key, err)
			}
		}
		for j, n := range p.Notifications {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO notifications (snapshot, partner_key, position, kind, product_key, price)
				VALUES (?, ?, ?, ?, ?, ?)`,
				name, p.Key, j, n.Kind, n.Product, n.Price,
			); err != nil {
				return fmt.Errorf("failed to insert notification of %s: %w", p.Key, err)
			}
		}
	}
	return nil
}

func saveTransactions(ctx context.Context, db execer, name string, txs []warehouse.TransactionState) error {
	for _, t := range txs {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO transactions (snapshot, id, tx_type, tx_date, amount, product_key, partner_key,
				price, value, base_value, deadline, real_value, payment_date, paid_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			name, int(t.ID), t.Type, int(t.Date), t.Amount, t.Product, t.Partner,
			t.Price, t.Value, t.BaseValue, int(t.Deadline), t.RealValue, int(t.PaymentDate), t.PaidValue,
		); err != nil {
			return fmt.Errorf("failed to insert transaction %d: %w", t.ID, err)
		}
		for j, c := range t.Components {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO breakdown_components (snapshot, tx_id, position, product_key, amount, price)
				VALUES (?, ?, ?, ?, ?, ?)`,
				name, int(t.ID), j, c.Product, c.Amount, c.Price,
			); err != nil {
				return fmt.Errorf("failed to insert breakdown component of %d: %w", t.ID, err)
			}
		}
	}
	return nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load reassembles the snapshot stored under name.
func (s *Store) Load(ctx context.Context, name string) (*warehouse.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := s.info(ctx, name)
	if err != nil {
		return nil, err
	}
	state := &warehouse.State{
		Date:         info.Date,
		Products:     []warehouse.ProductState{},
		Partners:     []warehouse.PartnerState{},
		Transactions: []warehouse.TransactionState{},
	}

	if err := s.loadProducts(ctx, name, state); err != nil {
		return nil, err
	}
	if err := s.loadPartners(ctx, name, state); err != nil {
		return nil, err
	}
	if err := s.loadTransactions(ctx, name, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Info returns the metadata of the snapshot stored under name.
func (s *Store) Info(ctx context.Context, name string) (warehouse.SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info(ctx, name)
}

func (s *Store) info(ctx context.Context, name string) (warehouse.SnapshotInfo, error) {
	var (
		revision, savedAt string
		date              int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, warehouse_date, saved_at FROM snapshots WHERE name = ?`, name,
	).Scan(&revision, &date, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return warehouse.SnapshotInfo{}, fmt.Errorf("%w: %s", warehouse.ErrSnapshotNotFound, name)
	}
	if err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to query snapshot: %w", err)
	}

	rev, err := uuid.Parse(revision)
	if err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("%w: revision %q: %v", warehouse.ErrCorruptSnapshot, revision, err)
	}
	at, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("%w: saved_at %q: %v", warehouse.ErrCorruptSnapshot, savedAt, err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE snapshot = ?`, name,
	).Scan(&count); err != nil {
		return warehouse.SnapshotInfo{}, fmt.Errorf("failed to count transactions: %w", err)
	}

	return warehouse.SnapshotInfo{
		Name:         name,
		Revision:     rev,
		SavedAt:      at,
		Date:         warehouse.Date(date),
		Transactions: count,
	}, nil
}

// Exists reports whether a snapshot is stored under name.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE name = ?`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return n > 0, nil
}

// queryEach runs query and calls scan once per row.
func (s *Store) queryEach(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("%w: %v", warehouse.ErrCorruptSnapshot, err)
		}
	}
	return rows.Err()
}

func (s *Store) loadProducts(ctx context.Context, name string, state *warehouse.State) error {
	index := make(map[string]int)
	err := s.queryEach(ctx, `
		SELECT key, kind, max_price, aggravation FROM products
		WHERE snapshot = ? ORDER BY position`,
		func(rows *sql.Rows) error {
			var p warehouse.ProductState
			if err := rows.Scan(&p.Key, &p.Kind, &p.MaxPrice, &p.Aggravation); err != nil {
				return err
			}
			index[p.Key] = len(state.Products)
			state.Products = append(state.Products, p)
			return nil
		}, name)
	if err != nil {
		return err
	}

	err = s.queryEach(ctx, `
		SELECT product_key, component_key, amount FROM recipe_components
		WHERE snapshot = ? ORDER BY product_key, position`,
		func(rows *sql.Rows) error {
			var key string
			var c warehouse.ComponentState
			if err := rows.Scan(&key, &c.Product, &c.Amount); err != nil {
				return err
			}
			i, ok := index[key]
			if !ok {
				return fmt.Errorf("recipe of unknown product %s", key)
			}
			state.Products[i].Components = append(state.Products[i].Components, c)
			return nil
		}, name)
	if err != nil {
		return err
	}

	return s.queryEach(ctx, `
		SELECT product_key, partner_key, price, amount FROM batches
		WHERE snapshot = ? ORDER BY product_key, position`,
		func(rows *sql.Rows) error {
			var key string
			var b warehouse.BatchState
			if err := rows.Scan(&key, &b.Partner, &b.Price, &b.Amount); err != nil {
				return err
			}
			i, ok := index[key]
			if !ok {
				return fmt.Errorf("batch of unknown product %s", key)
			}
			state.Products[i].Batches = append(state.Products[i].Batches, b)
			return nil
		}, name)
}

func (s *Store) loadPartners(ctx context.Context, name string, state *warehouse.State) error {
	index := make(map[string]int)
	err := s.queryEach(ctx, `
		SELECT key, name, address, rank, points, acquisitions_value, sales_value, paid_sales_value
		FROM partners WHERE snapshot = ? ORDER BY position`,
		func(rows *sql.Rows) error {
			p := warehouse.PartnerState{Subscriptions: []string{}}
			if err := rows.Scan(&p.Key, &p.Name, &p.Address, &p.Rank, &p.Points,
				&p.AcquisitionsValue, &p.SalesValue, &p.PaidSalesValue); err != nil {
				return err
			}
			index[p.Key] = len(state.Partners)
			state.Partners = append(state.Partners, p)
			return nil
		}, name)
	if err != nil {
		return err
	}

	err = s.queryEach(ctx, `
		SELECT partner_key, product_key FROM subscriptions
		WHERE snapshot = ? ORDER BY partner_key, position`,
		func(rows *sql.Rows) error {
			var partner, product string
			if err := rows.Scan(&partner, &product); err != nil {
				return err
			}
			i, ok := index[partner]
			if !ok {
				return fmt.Errorf("subscription of unknown partner %s", partner)
			}
			state.Partners[i].Subscriptions = append(state.Partners[i].Subscriptions, product)
			return nil
		}, name)
	if err != nil {
		return err
	}

	return s.queryEach(ctx, `
		SELECT partner_key, kind, product_key, price FROM notifications
		WHERE snapshot = ? ORDER BY partner_key, position`,
		func(rows *sql.Rows) error {
			var partner string
			var n warehouse.NotificationState
			if err := rows.Scan(&partner, &n.Kind, &n.Product, &n.Price); err != nil {
				return err
			}
			i, ok := index[partner]
			if !ok {
				return fmt.Errorf("notification of unknown partner %s", partner)
			}
			state.Partners[i].Notifications = append(state.Partners[i].Notifications, n)
			return nil
		}, name)
}

func (s *Store) loadTransactions(ctx context.Context, name string, state *warehouse.State) error {
	err := s.queryEach(ctx, `
		SELECT id, tx_type, tx_date, amount, product_key, partner_key,
		       price, value, base_value, deadline, real_value, payment_date, paid_value
		FROM transactions WHERE snapshot = ? ORDER BY id`,
		func(rows *sql.Rows) error {
			var (
				t                            warehouse.TransactionState
				id, date, deadline, payDate  int
				price, value, base, real, pd decimal.Decimal
			)
			if err := rows.Scan(&id, &t.Type, &date, &t.Amount, &t.Product, &t.Partner,
				&price, &value, &base, &deadline, &real, &payDate, &pd); err != nil {
				return err
			}
			t.ID = warehouse.TransactionID(id)
			t.Date = warehouse.Date(date)
			t.Deadline = warehouse.Date(deadline)
			t.PaymentDate = warehouse.Date(payDate)
			t.Price, t.Value, t.BaseValue, t.RealValue, t.PaidValue = price, value, base, real, pd
			state.Transactions = append(state.Transactions, t)
			return nil
		}, name)
	if err != nil {
		return err
	}

	return s.queryEach(ctx, `
		SELECT tx_id, product_key, amount, price FROM breakdown_components
		WHERE snapshot = ? ORDER BY tx_id, position`,
		func(rows *sql.Rows) error {
			var id int
			var c warehouse.BreakdownComponentState
			if err := rows.Scan(&id, &c.Product, &c.Amount, &c.Price); err != nil {
				return err
			}
			if id < 0 || id >= len(state.Transactions) || int(state.Transactions[id].ID) != id {
				return fmt.Errorf("component of unknown transaction %d", id)
			}
			state.Transactions[id].Components = append(state.Transactions[id].Components, c)
			return nil
		}, name)
}
