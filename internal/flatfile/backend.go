// Package flatfile implements the storage contract on top of the flat-file
// engine: one text file per record kind under the data root.
package flatfile

import (
	"io"
	"log/slog"
	"strings"

	"github.com/starford/quackstagram/internal/storage"
	"github.com/starford/quackstagram/internal/store"
)

// Files owned by the flat-file backend, relative to the data root.
const (
	CredentialsFile   = "data/credentials.txt"
	FollowingFile     = "data/following.txt"
	NotificationsFile = "data/notifications.txt"
	SessionFile       = "data/users.txt"
	PicturesFile      = "img/image_details.txt"
)

// DataFiles lists every record file of the backend.
var DataFiles = []string{CredentialsFile, FollowingFile, NotificationsFile, PicturesFile}

// Verify *Backend satisfies store.Backend at compile time.
var _ store.Backend = (*Backend)(nil)

// Backend bundles the four flat-file stores over one engine.
type Backend struct {
	accounts      *Accounts
	follows       *Follows
	notifications *Notifications
	pictures      *Pictures
}

// New creates the record files if needed and returns the stores.
func New(e *storage.Engine, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	for _, f := range append(DataFiles, SessionFile) {
		if err := e.EnsureExists(f); err != nil {
			return nil, err
		}
	}
	follows := &Follows{e: e, logger: logger}
	return &Backend{
		accounts:      &Accounts{e: e, logger: logger},
		follows:       follows,
		notifications: &Notifications{e: e, logger: logger},
		pictures:      &Pictures{e: e, logger: logger, follows: follows},
	}, nil
}

func (b *Backend) Accounts() store.AccountStore           { return b.accounts }
func (b *Backend) Follows() store.FollowStore             { return b.follows }
func (b *Backend) Notifications() store.NotificationStore { return b.notifications }
func (b *Backend) Pictures() store.PictureStore           { return b.pictures }

// Close is a no-op; every call opens and closes its own file handles.
func (b *Backend) Close() error { return nil }

// decodeLines decodes every non-blank line, skipping (and logging) lines
// that match no known shape so one corrupt line never blocks the rest.
func decodeLines[T any](logger *slog.Logger, file string, lines []string, decode func(string) (T, error)) []T {
	out := make([]T, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		v, err := decode(line)
		if err != nil {
			logger.Warn("flatfile: skipping malformed line",
				slog.String("file", file),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, v)
	}
	return out
}
