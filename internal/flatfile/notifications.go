package flatfile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/codec"
	"github.com/starford/quackstagram/internal/models"
	"github.com/starford/quackstagram/internal/storage"
	"github.com/starford/quackstagram/internal/store"
)

var _ store.NotificationStore = (*Notifications)(nil)

// Notifications appends one line per event to data/notifications.txt.
type Notifications struct {
	e      *storage.Engine
	logger *slog.Logger
}

func (s *Notifications) ForReceiver(_ context.Context, receiver string) ([]models.Notification, error) {
	lines, err := s.e.ReadMatching(NotificationsFile, func(line string) bool {
		return codec.NotificationReceiver(line) == receiver
	})
	if err != nil {
		return nil, err
	}
	out := decodeLines(s.logger, NotificationsFile, lines, codec.DecodeNotification)
	sortNewestFirst(out)
	return out, nil
}

// sortNewestFirst orders by timestamp descending; equal timestamps keep
// reverse file order, so the last appended comes first.
func sortNewestFirst(ns []models.Notification) {
	slices.Reverse(ns)
	slices.SortStableFunc(ns, func(a, b models.Notification) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}

func (s *Notifications) Save(_ context.Context, n models.Notification) error {
	if n.SelfAddressed() {
		return nil
	}
	if err := n.Validate(); err != nil {
		return fmt.Errorf("flatfile: save notification: %w: %w", apperr.ErrInvalid, err)
	}
	defer s.e.Lock(NotificationsFile)()
	return s.e.AppendLine(NotificationsFile, codec.EncodeNotification(n))
}

func (s *Notifications) Delete(_ context.Context, id string) error {
	defer s.e.Lock(NotificationsFile)()

	n, err := s.e.DeleteMatching(NotificationsFile, func(line string) bool {
		dec, err := codec.DecodeNotification(line)
		return err != nil || dec.ID != id
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("flatfile: notification %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *Notifications) All(_ context.Context) ([]models.Notification, error) {
	lines, err := s.e.ReadAll(NotificationsFile)
	if err != nil {
		return nil, err
	}
	return decodeLines(s.logger, NotificationsFile, lines, codec.DecodeNotification), nil
}

func (s *Notifications) DeleteInvolving(_ context.Context, username string) error {
	defer s.e.Lock(NotificationsFile)()

	_, err := s.e.DeleteMatching(NotificationsFile, func(line string) bool {
		dec, err := codec.DecodeNotification(line)
		return err != nil || (dec.Receiver != username && dec.Sender != username)
	})
	return err
}
