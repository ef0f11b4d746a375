// Package history keeps a queryable journal of past transactions and the
// export events they produced.
//
// The journal is an index over what already happened; the TOML files under
// the state directory remain the authoritative state. Journal writes are
// best-effort: a failure is logged and never aborts a transaction.
package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Journal provides SQLite operations for the transaction history.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at dbPath. Use ":memory:" for
// in-memory databases (useful for testing).
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// SQLite only allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Transaction is one recorded package-manager run.
type Transaction struct {
	ID         int64
	Box        string
	Command    string
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
	Changed    int
	Exported   int
	Skipped    int
}

// ExportEvent is one artifact disposition within a transaction.
type ExportEvent struct {
	ID            int64
	TransactionID int64
	HostPath      string
	Package       string
	Kind          string
	Outcome       string
}

// RecordTransaction inserts a completed transaction and returns its id.
func (j *Journal) RecordTransaction(tx Transaction) (int64, error) {
	res, err := j.db.Exec(`
		INSERT INTO transactions (box, command, exit_code, started_at, finished_at, changed, exported, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.Box, tx.Command, tx.ExitCode, tx.StartedAt, tx.FinishedAt, tx.Changed, tx.Exported, tx.Skipped)
	if err != nil {
		return 0, fmt.Errorf("failed to record transaction: %w", err)
	}
	return res.LastInsertId()
}

// RecordExportEvent inserts one export event under a transaction.
func (j *Journal) RecordExportEvent(ev ExportEvent) error {
	_, err := j.db.Exec(`
		INSERT INTO export_events (transaction_id, host_path, package, kind, outcome)
		VALUES (?, ?, ?, ?, ?)`,
		ev.TransactionID, ev.HostPath, ev.Package, ev.Kind, ev.Outcome)
	if err != nil {
		return fmt.Errorf("failed to record export event: %w", err)
	}
	return nil
}

// ListTransactions returns the most recent transactions, newest first. box
// narrows to one box when non-empty; limit <= 0 means no limit.
func (j *Journal) ListTransactions(box string, limit int) ([]Transaction, error) {
	query := `
		SELECT id, box, command, exit_code, started_at, finished_at, changed, exported, skipped
		FROM transactions`
	var args []interface{}
	if box != "" {
		query += " WHERE box = ?"
		args = append(args, box)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.Box, &tx.Command, &tx.ExitCode,
			&tx.StartedAt, &tx.FinishedAt, &tx.Changed, &tx.Exported, &tx.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// EventsFor returns the export events of one transaction in insertion order.
func (j *Journal) EventsFor(transactionID int64) ([]ExportEvent, error) {
	rows, err := j.db.Query(`
		SELECT id, transaction_id, host_path, package, kind, outcome
		FROM export_events WHERE transaction_id = ? ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query export events: %w", err)
	}
	defer rows.Close()

	var events []ExportEvent
	for rows.Next() {
		var ev ExportEvent
		if err := rows.Scan(&ev.ID, &ev.TransactionID, &ev.HostPath, &ev.Package, &ev.Kind, &ev.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan export event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CommandString joins a package-manager argv for journal display.
func CommandString(argv []string) string {
	return strings.Join(argv, " ")
}
