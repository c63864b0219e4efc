// Package sqlstore implements the storage contract on SQLite. Image bytes
// stay on disk under the same data root as the flat-file backend.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/quackstagram/internal/storage"
	"github.com/starford/quackstagram/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	salt          TEXT NOT NULL,
	bio           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS follows (
	follower TEXT NOT NULL,
	followed TEXT NOT NULL,
	UNIQUE(follower, followed)
);

CREATE INDEX IF NOT EXISTS idx_follows_followed ON follows(followed);

CREATE TABLE IF NOT EXISTS pictures (
	image_id   TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	caption    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	likes      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_pictures_owner ON pictures(owner);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT NOT NULL,
	receiver   TEXT NOT NULL,
	sender     TEXT NOT NULL,
	image_id   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	type       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_receiver ON notifications(receiver);
CREATE INDEX IF NOT EXISTS idx_notifications_id ON notifications(id);

CREATE TABLE IF NOT EXISTS sync_state (
	file     TEXT PRIMARY KEY,
	checksum TEXT NOT NULL
);
`

// Verify *DB satisfies store.Backend at compile time.
var _ store.Backend = (*DB)(nil)

// DB wraps a sql.DB and exposes the four stores over it.
type DB struct {
	conn   *sql.DB
	images *storage.Engine
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database and applies the schema.
// images holds the uploaded image files.
func Open(dsn string, images *storage.Engine, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: apply schema: %w", err)
	}
	return &DB{conn: conn, images: images, logger: logger}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Accounts() store.AccountStore           { return (*accounts)(db) }
func (db *DB) Follows() store.FollowStore             { return (*follows)(db) }
func (db *DB) Notifications() store.NotificationStore { return (*notifications)(db) }
func (db *DB) Pictures() store.PictureStore           { return (*pictures)(db) }

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
