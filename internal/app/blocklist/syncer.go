package blocklist

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Update is a freshly loaded set for one source.
type Update struct {
	Source   string
	Set      Set
	Warnings []ParseWarning
}

// Syncer reloads a source periodically and publishes the result.
// The first load happens as soon as Run starts.
type Syncer struct {
	source   Source
	interval time.Duration
	updates  chan<- Update
}

// NewSyncer creates a syncer for src that publishes to updates.
// Several syncers may share one channel.
func NewSyncer(src Source, interval time.Duration, updates chan<- Update) *Syncer {
	return &Syncer{
		source:   src,
		interval: interval,
		updates:  updates,
	}
}

// Run loads the source until ctx is done. Load failures are logged and retried
// on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.syncOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Syncer) syncOnce(ctx context.Context) {
	set, warnings, err := s.source.Load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			zlog.Warn().Err(err).Msgf("blocklist sync failed: source=%s", s.source.Name())
		}
		return
	}
	zlog.Debug().Msgf("blocklist sync done: source=%s entries=%d", s.source.Name(), set.Len())

	select {
	case s.updates <- Update{Source: s.source.Name(), Set: set, Warnings: warnings}:
	case <-ctx.Done():
	}
}
