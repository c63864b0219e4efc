package mirror

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quackstagram/internal/flatfile"
)

// debounce is how long a file must stay quiet before it is reloaded.
// Writers replace files by rename, which fires several events in a row.
const debounce = 200 * time.Millisecond

// EventCallback is called after a watcher-driven reload of file.
type EventCallback func(file string)

// Watch syncs once, then reloads each record file shortly after it changes
// until ctx is cancelled.
func (m *Mirror) Watch(ctx context.Context, cb EventCallback) error {
	if _, err := m.Sync(ctx); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Files are swapped in by rename, so watch their directories.
	dirs := map[string]struct{}{}
	for _, f := range flatfile.DataFiles {
		abs, err := m.engine.Abs(filepath.Dir(f))
		if err != nil {
			return err
		}
		dirs[abs] = struct{}{}
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return err
		}
	}
	m.logger.Info("mirror: watching", slog.String("root", m.engine.Root()))

	pending := map[string]struct{}{}
	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			m.logger.Info("mirror: stopped")
			return nil

		case <-timerCh:
			for file := range pending {
				synced, err := m.SyncFile(ctx, file)
				if err != nil {
					m.logger.Warn("mirror: reload failed", slog.String("file", file), slog.String("error", err.Error()))
					continue
				}
				if synced {
					m.logger.Debug("mirror: reloaded", slog.String("file", file))
					if cb != nil {
						cb(file)
					}
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(m.engine.Root(), ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !slices.Contains(flatfile.DataFiles, rel) {
				continue
			}
			pending[rel] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("mirror: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
