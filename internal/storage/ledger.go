// Package storage implements the purchase-attempt ledger using SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vkoval/fragsnipe/internal/model"
	"github.com/vkoval/fragsnipe/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLedger records every purchase attempt this process makes. It is
// an audit trail of our own actions only; listing snapshots are never
// persisted.
type SQLiteLedger struct {
	db     *sql.DB
	dbPath string
}

var _ service.Ledger = (*SQLiteLedger)(nil)

// NewSQLiteLedger opens (or creates) the ledger database and applies the
// schema.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath cannot be empty")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l := &SQLiteLedger{db: db, dbPath: dbPath}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS purchase_attempts (
		id TEXT PRIMARY KEY,
		attempted_at TIMESTAMP NOT NULL,
		item_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		bid_ton INTEGER NOT NULL,
		status TEXT NOT NULL,
		tx_ref TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_purchase_attempts_item
		ON purchase_attempts(item_id, attempted_at);`

	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return nil
}

// RecordAttempt appends one purchase attempt to the ledger.
func (l *SQLiteLedger) RecordAttempt(ctx context.Context, rec model.PurchaseRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	if rec.AttemptedAt.IsZero() {
		rec.AttemptedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO purchase_attempts (id, attempted_at, item_id, kind, bid_ton, status, tx_ref, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AttemptedAt, rec.ItemID, string(rec.Kind), rec.BidTON,
		string(rec.Status), rec.TxRef, rec.Detail)
	if err != nil {
		return fmt.Errorf("failed to record purchase attempt: %w", err)
	}
	return nil
}

// AttemptsForItem returns this process's recorded attempts for one item,
// oldest first.
func (l *SQLiteLedger) AttemptsForItem(ctx context.Context, itemID string) ([]model.PurchaseRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, attempted_at, item_id, kind, bid_ton, status, tx_ref, detail
		FROM purchase_attempts
		WHERE item_id = ?
		ORDER BY attempted_at`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.PurchaseRecord
	for rows.Next() {
		var rec model.PurchaseRecord
		var kind, status string
		if err := rows.Scan(&rec.ID, &rec.AttemptedAt, &rec.ItemID, &kind, &rec.BidTON, &status, &rec.TxRef, &rec.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan purchase attempt: %w", err)
		}
		rec.Kind = model.ListingKind(kind)
		rec.Status = model.TransferStatus(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purchase attempts: %w", err)
	}

	return records, nil
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
