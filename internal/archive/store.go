// Package archive reads archived orders straight from the archive database.
// It is an alternative snapshot.ArchiveSource to the backend HTTP endpoint.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kiwari-pos/terminal/internal/money"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	"github.com/shopspring/decimal"
)

// DBTX is the subset of pgx used here. Satisfied by *pgxpool.Pool, *pgx.Conn
// and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS archived_orders (
	order_id         TEXT PRIMARY KEY,
	receipt_number   TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	table_id         TEXT,
	table_name       TEXT,
	zone_id          TEXT,
	zone_name        TEXT,
	is_retail        BOOLEAN NOT NULL DEFAULT false,
	guest_count      INTEGER NOT NULL DEFAULT 0,
	member_id        TEXT,
	created_at_ms    BIGINT NOT NULL,
	ended_at_ms      BIGINT,
	total_amount     NUMERIC(14,2) NOT NULL,
	discount_amount  NUMERIC(14,2) NOT NULL DEFAULT 0,
	surcharge_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
	tax              NUMERIC(14,2) NOT NULL DEFAULT 0,
	items            JSONB NOT NULL DEFAULT '[]',
	payments         JSONB NOT NULL DEFAULT '[]',
	events           JSONB NOT NULL DEFAULT '[]'
)`

const selectSQL = `
SELECT order_id, receipt_number, status, table_id, table_name, zone_id, zone_name,
       is_retail, guest_count, member_id, created_at_ms, ended_at_ms,
       total_amount::text, discount_amount::text, surcharge_amount::text, tax::text,
       items, payments, events
FROM archived_orders
WHERE order_id = $1`

const upsertSQL = `
INSERT INTO archived_orders (
	order_id, receipt_number, status, table_id, table_name, zone_id, zone_name,
	is_retail, guest_count, member_id, created_at_ms, ended_at_ms,
	total_amount, discount_amount, surcharge_amount, tax, items, payments, events
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (order_id) DO UPDATE SET
	receipt_number = EXCLUDED.receipt_number,
	status = EXCLUDED.status,
	ended_at_ms = EXCLUDED.ended_at_ms,
	total_amount = EXCLUDED.total_amount,
	discount_amount = EXCLUDED.discount_amount,
	surcharge_amount = EXCLUDED.surcharge_amount,
	tax = EXCLUDED.tax,
	items = EXCLUDED.items,
	payments = EXCLUDED.payments,
	events = EXCLUDED.events`

// Store reads and writes the archived_orders table.
type Store struct {
	db DBTX
}

var _ snapshot.ArchiveSource = (*Store)(nil)

// NewStore creates a Store on db.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Migrate creates the archived_orders table if it is missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create archived_orders: %w", err)
	}
	return nil
}

// FetchArchived loads one archived order.
func (s *Store) FetchArchived(ctx context.Context, orderID string) (*snapshot.ArchivedOrder, error) {
	var (
		rec                                 snapshot.ArchivedOrder
		total, discount, surcharge, tax     string
		itemsJSON, paymentsJSON, eventsJSON []byte
	)
	err := s.db.QueryRow(ctx, selectSQL, orderID).Scan(
		&rec.OrderID, &rec.ReceiptNumber, &rec.Status,
		&rec.TableID, &rec.TableName, &rec.ZoneID, &rec.ZoneName,
		&rec.IsRetail, &rec.GuestCount, &rec.MemberID,
		&rec.CreatedAt, &rec.EndedAt,
		&total, &discount, &surcharge, &tax,
		&itemsJSON, &paymentsJSON, &eventsJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("archived order %s: %w", orderID, snapshot.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query archived order %s: %w", orderID, err)
	}

	for _, col := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{total, &rec.Total},
		{discount, &rec.DiscountAmount},
		{surcharge, &rec.SurchargeAmount},
		{tax, &rec.TaxAmount},
	} {
		v, err := money.Parse(col.raw)
		if err != nil {
			return nil, fmt.Errorf("archived order %s: %w", orderID, err)
		}
		*col.dst = v
	}

	if err := decodeColumn(itemsJSON, &rec.Items); err != nil {
		return nil, fmt.Errorf("archived order %s items: %w", orderID, err)
	}
	if err := decodeColumn(paymentsJSON, &rec.Payments); err != nil {
		return nil, fmt.Errorf("archived order %s payments: %w", orderID, err)
	}
	if err := decodeColumn(eventsJSON, &rec.Events); err != nil {
		return nil, fmt.Errorf("archived order %s events: %w", orderID, err)
	}
	return &rec, nil
}

// Put inserts or replaces an archived order.
func (s *Store) Put(ctx context.Context, rec *snapshot.ArchivedOrder) error {
	items, err := encodeColumn(rec.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	payments, err := encodeColumn(rec.Payments)
	if err != nil {
		return fmt.Errorf("encode payments: %w", err)
	}
	events, err := encodeColumn(rec.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	_, err = s.db.Exec(ctx, upsertSQL,
		rec.OrderID, rec.ReceiptNumber, rec.Status,
		rec.TableID, rec.TableName, rec.ZoneID, rec.ZoneName,
		rec.IsRetail, rec.GuestCount, rec.MemberID,
		rec.CreatedAt, rec.EndedAt,
		money.Format(rec.Total), money.Format(rec.DiscountAmount),
		money.Format(rec.SurchargeAmount), money.Format(rec.TaxAmount),
		items, payments, events,
	)
	if err != nil {
		return fmt.Errorf("upsert archived order %s: %w", rec.OrderID, err)
	}
	return nil
}

func decodeColumn[T any](raw []byte, dst *[]T) error {
	if len(raw) == 0 {
		*dst = []T{}
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeColumn[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}
