// Package index provides the SQLite-backed image catalogue, keyword
// vocabulary and image-keyword links.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS images (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	filename   TEXT NOT NULL UNIQUE,
	type       TEXT NOT NULL DEFAULT 'SD',
	details    TEXT NOT NULL DEFAULT '',
	is_hidden  INTEGER NOT NULL DEFAULT 0,
	checksum   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS keywords (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	keyword TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS image_keywords (
	image_id   INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
	keyword_id INTEGER NOT NULL REFERENCES keywords(id),
	UNIQUE(image_id, keyword_id)
);

CREATE INDEX IF NOT EXISTS idx_images_created ON images(created_at);
CREATE INDEX IF NOT EXISTS idx_image_keywords_keyword ON image_keywords(keyword_id);
`

// timeLayout is fixed-width so created_at sorts correctly as text.
const timeLayout = "2006-01-02 15:04:05.000000"

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the SQLite database and applies the schema.
// Write transactions start IMMEDIATE so concurrent writers queue on the
// busy timeout instead of failing on lock upgrade.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn, now: time.Now}, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
