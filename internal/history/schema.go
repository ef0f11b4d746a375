package history

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    box TEXT NOT NULL,
    command TEXT NOT NULL,
    exit_code INTEGER NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    changed INTEGER NOT NULL,
    exported INTEGER NOT NULL,
    skipped INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS export_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    transaction_id INTEGER NOT NULL,
    host_path TEXT NOT NULL,
    package TEXT NOT NULL,
    kind TEXT NOT NULL,
    outcome TEXT NOT NULL,
    FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_transactions_box ON transactions(box);
CREATE INDEX IF NOT EXISTS idx_transactions_started ON transactions(started_at);
CREATE INDEX IF NOT EXISTS idx_export_events_tx ON export_events(transaction_id);
`
