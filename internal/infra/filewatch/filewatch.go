// Package filewatch provides change notifications for a single file.
package filewatch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
)

// Watcher signals when a file was written, replaced or removed.
// The parent directory is watched so that editors which save by renaming
// a temporary file over the original are noticed too.
type Watcher struct {
	path     string
	debounce time.Duration
	changes  chan struct{}
}

// New creates a watcher for path. Bursts of events closer together than
// debounce produce a single signal.
func New(path string, debounce time.Duration) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		changes:  make(chan struct{}, 1),
	}
}

// Changes returns the signal channel. Signals not yet consumed are coalesced.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}
	zlog.Info().Msgf("watching blocklist file: path=%s", w.path)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !isRelevant(ev) {
				continue
			}
			zlog.Debug().Msgf("blocklist file event: %s", ev)
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Err(err).Msg("file watcher error")

		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

func isRelevant(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
