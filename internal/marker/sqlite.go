package marker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the marker in a local SQLite file so it survives an
// unclean shutdown. The table holds at most one row (slot = 1).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the marker database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create marker directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open marker database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between the recovery monitor and checkout.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate marker database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS pending_retail_order (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		order_id TEXT NOT NULL,
		created_unix_millis INTEGER NOT NULL
	)`)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context) (Marker, error) {
	var (
		orderID string
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT order_id, created_unix_millis FROM pending_retail_order WHERE slot = 1`,
	).Scan(&orderID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Marker{}, ErrNoMarker
	}
	if err != nil {
		return Marker{}, fmt.Errorf("get marker: %w", err)
	}
	return Marker{OrderID: orderID, CreatedAt: time.UnixMilli(created)}, nil
}

func (s *SQLiteStore) Set(ctx context.Context, m Marker) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_retail_order (slot, order_id, created_unix_millis) VALUES (1, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET order_id = excluded.order_id, created_unix_millis = excluded.created_unix_millis`,
		m.OrderID, m.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set marker: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_retail_order`); err != nil {
		return fmt.Errorf("clear marker: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
