package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/starford/quackstagram/internal/codec"
	"github.com/starford/quackstagram/internal/models"
)

// SyncState records which content of a source file a table was loaded from.
type SyncState struct {
	File     string
	Checksum string
}

// SyncChecksum returns the checksum recorded for file, or "" if the file
// was never loaded.
func (db *DB) SyncChecksum(ctx context.Context, file string) (string, error) {
	var cs string
	err := db.conn.QueryRowContext(ctx, `SELECT checksum FROM sync_state WHERE file = ?`, file).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageErr("sync checksum", err)
	}
	return cs, nil
}

// ReplaceAccounts swaps the users table for accs in one transaction.
func (db *DB) ReplaceAccounts(ctx context.Context, accs []models.Account, st SyncState) error {
	return db.replace(ctx, "users", st, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO users (username, password_hash, salt, bio) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, a := range accs {
			if _, err := stmt.ExecContext(ctx, a.Username, a.PasswordHash, a.Salt, a.Bio); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceFollows swaps the follows table for edges in one transaction.
func (db *DB) ReplaceFollows(ctx context.Context, edges []models.FollowEdge, st SyncState) error {
	return db.replace(ctx, "follows", st, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO follows (follower, followed) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range edges {
			if _, err := stmt.ExecContext(ctx, e.Follower, e.Followed); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplacePictures swaps the pictures table for ps in one transaction.
func (db *DB) ReplacePictures(ctx context.Context, ps []models.Picture, st SyncState) error {
	return db.replace(ctx, "pictures", st, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO pictures (`+pictureColumns+`) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range ps {
			if _, err := stmt.ExecContext(ctx, p.ImageID, p.Owner, p.Caption, p.Timestamp.Unix(), p.LikesCount); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceNotifications swaps the notifications table for ns in one
// transaction, keeping their order.
func (db *DB) ReplaceNotifications(ctx context.Context, ns []models.Notification, st SyncState) error {
	return db.replace(ctx, "notifications", st, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, n := range ns {
			if _, err := stmt.ExecContext(ctx,
				codec.NotificationID(n), n.Receiver, n.Sender, n.ImageID, n.Timestamp.Unix(), string(n.Type)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) replace(ctx context.Context, table string, st SyncState, fill func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return storageErr("clear "+table, err)
	}
	if err := fill(tx); err != nil {
		return storageErr("fill "+table, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_state (file, checksum) VALUES (?, ?)
		ON CONFLICT(file) DO UPDATE SET checksum = excluded.checksum`, st.File, st.Checksum)
	if err != nil {
		return storageErr("record sync state", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	db.logger.Debug("sqlstore: replaced table", slog.String("table", table), slog.String("file", st.File))
	return nil
}
