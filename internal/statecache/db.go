// Package statecache implements the Subscription State Cache (C16): a
// small local SQLite-backed cache of the last negotiated AccountCapability
// and the last known StreamSubscription states. The orchestrator reads
// both at startup and only logs them: capability is still negotiated live
// and streams are opened fresh.
package statecache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS capability_snapshot (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	tier            TEXT NOT NULL,
	can_trade_stocks  INTEGER NOT NULL,
	can_trade_crypto  INTEGER NOT NULL,
	can_trade_options INTEGER NOT NULL,
	can_trade_forex   INTEGER NOT NULL,
	can_trade_futures INTEGER NOT NULL,
	can_short         INTEGER NOT NULL,
	can_margin        INTEGER NOT NULL,
	can_after_hours   INTEGER NOT NULL,
	can_pre_market    INTEGER NOT NULL,
	feed              TEXT NOT NULL,
	data_flags        TEXT NOT NULL,
	negotiated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stream_subscription (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	symbols    TEXT NOT NULL,
	endpoint_url TEXT NOT NULL,
	status     TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// DB wraps the state cache's SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if absent) the state cache at path and applies the
// schema. WAL mode matches the teacher's own sqlite connection string.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("statecache: create directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("statecache: open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("statecache: ping: %w", err)
	}
	conn.SetMaxOpenConns(1) // single-file sqlite; avoid writer contention

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("statecache: migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
