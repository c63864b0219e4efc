package sqlstore

import (
	"context"
	"fmt"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/codec"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/store"
)

var _ store.NotificationStore = (*notifications)(nil)

// notifications keeps the derived id of each row so that ids agree with the
// flat-file backend. Identical events share an id.
type notifications DB

const notificationColumns = `id, receiver, sender, image_id, created_at, type`

func (s *notifications) ForReceiver(ctx context.Context, receiver string) ([]models.Notification, error) {
	return s.query(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE receiver = ?
		 ORDER BY created_at DESC, rowid DESC`, receiver)
}

func (s *notifications) Save(ctx context.Context, n models.Notification) error {
	if n.SelfAddressed() {
		return nil
	}
	if err := n.Validate(); err != nil {
		return fmt.Errorf("sqlstore: save notification: %w: %w", apperr.ErrInvalid, err)
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		codec.NotificationID(n), n.Receiver, n.Sender, n.ImageID, n.Timestamp.Unix(), string(n.Type))
	if err != nil {
		return storageErr("save notification", err)
	}
	return nil
}

func (s *notifications) Delete(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete notification", err)
	}
	return expectRows(res, "notification "+id)
}

func (s *notifications) All(ctx context.Context) ([]models.Notification, error) {
	return s.query(ctx, `SELECT `+notificationColumns+` FROM notifications ORDER BY rowid`)
}

func (s *notifications) DeleteInvolving(ctx context.Context, username string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM notifications WHERE receiver = ? OR sender = ?`, username, username)
	if err != nil {
		return storageErr("delete notifications", err)
	}
	return nil
}

func (s *notifications) query(ctx context.Context, q string, args ...any) ([]models.Notification, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("query notifications", err)
	}
	defer rows.Close()
	out := []models.Notification{}
	for rows.Next() {
		var (
			n  models.Notification
			ts int64
			nt string
		)
		if err := rows.Scan(&n.ID, &n.Receiver, &n.Sender, &n.ImageID, &ts, &nt); err != nil {
			return nil, storageErr("scan notification", err)
		}
		n.Timestamp = unixTime(ts)
		n.Type = models.NotificationType(nt)
		out = append(out, n)
	}
	return out, rows.Err()
}
