// Package mirror loads the flat-file records into the SQLite backend and
// keeps them in step while the files change.
package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/starford/quackstagram/internal/apperr"
	"github.com/starford/quackstagram/internal/checksum"
	"github.com/starford/quackstagram/internal/flatfile"
	"github.com/starford/quackstagram/internal/sqlstore"
	"github.com/starford/quackstagram/internal/storage"
)

// Mirror copies records from a flat-file data root into a SQLite database.
type Mirror struct {
	engine *storage.Engine
	src    *flatfile.Backend
	dst    *sqlstore.DB
	logger *slog.Logger
}

// New returns a mirror from the data root behind engine into dst.
func New(engine *storage.Engine, dst *sqlstore.DB, logger *slog.Logger) (*Mirror, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	src, err := flatfile.New(engine, logger)
	if err != nil {
		return nil, err
	}
	return &Mirror{engine: engine, src: src, dst: dst, logger: logger}, nil
}

// Result lists which record files were reloaded and which were unchanged.
type Result struct {
	Synced  []string
	Skipped []string
}

// Sync brings every table up to date. Files whose content matches the
// recorded checksum are skipped.
func (m *Mirror) Sync(ctx context.Context) (Result, error) {
	var res Result
	for _, file := range flatfile.DataFiles {
		synced, err := m.SyncFile(ctx, file)
		if err != nil {
			return res, err
		}
		if synced {
			res.Synced = append(res.Synced, file)
		} else {
			res.Skipped = append(res.Skipped, file)
		}
	}
	return res, nil
}

// SyncFile reloads the table backed by file if the file changed since the
// last load and reports whether it did.
func (m *Mirror) SyncFile(ctx context.Context, file string) (bool, error) {
	before, err := m.fileChecksum(file)
	if err != nil {
		return false, err
	}
	recorded, err := m.dst.SyncChecksum(ctx, file)
	if err != nil {
		return false, err
	}
	if before == recorded {
		return false, nil
	}

	load, ok := m.loaders()[file]
	if !ok {
		return false, nil
	}
	// Loading may rewrite the file (legacy credential upgrades), so the
	// checksum recorded is the one taken afterwards.
	return true, load(ctx, func() (sqlstore.SyncState, error) {
		cs, err := m.fileChecksum(file)
		return sqlstore.SyncState{File: file, Checksum: cs}, err
	})
}

type loader func(ctx context.Context, state func() (sqlstore.SyncState, error)) error

func (m *Mirror) loaders() map[string]loader {
	return map[string]loader{
		flatfile.CredentialsFile: func(ctx context.Context, state func() (sqlstore.SyncState, error)) error {
			accs, err := m.src.Accounts().All(ctx)
			if err != nil {
				return err
			}
			st, err := state()
			if err != nil {
				return err
			}
			m.logger.Debug("mirror: loading accounts", slog.Int("count", len(accs)))
			return m.dst.ReplaceAccounts(ctx, accs, st)
		},
		flatfile.FollowingFile: func(ctx context.Context, state func() (sqlstore.SyncState, error)) error {
			edges, err := m.src.Follows().Edges(ctx)
			if err != nil {
				return err
			}
			st, err := state()
			if err != nil {
				return err
			}
			m.logger.Debug("mirror: loading follows", slog.Int("count", len(edges)))
			return m.dst.ReplaceFollows(ctx, edges, st)
		},
		flatfile.PicturesFile: func(ctx context.Context, state func() (sqlstore.SyncState, error)) error {
			ps, err := m.src.Pictures().All(ctx)
			if err != nil {
				return err
			}
			st, err := state()
			if err != nil {
				return err
			}
			m.logger.Debug("mirror: loading pictures", slog.Int("count", len(ps)))
			return m.dst.ReplacePictures(ctx, ps, st)
		},
		flatfile.NotificationsFile: func(ctx context.Context, state func() (sqlstore.SyncState, error)) error {
			ns, err := m.src.Notifications().All(ctx)
			if err != nil {
				return err
			}
			st, err := state()
			if err != nil {
				return err
			}
			m.logger.Debug("mirror: loading notifications", slog.Int("count", len(ns)))
			return m.dst.ReplaceNotifications(ctx, ns, st)
		},
	}
}

func (m *Mirror) fileChecksum(file string) (string, error) {
	data, err := m.engine.ReadFile(file)
	if errors.Is(err, apperr.ErrNotFound) {
		return checksum.Sum(nil), nil
	}
	if err != nil {
		return "", err
	}
	return checksum.Sum(data), nil
}
