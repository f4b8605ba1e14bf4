package enforcer

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/audiowarden/internal/app/blocklist"
	"github.com/osa030/audiowarden/internal/app/command"
	"github.com/osa030/audiowarden/internal/domain/playback"
	"github.com/osa030/audiowarden/internal/domain/track"
	"github.com/osa030/audiowarden/internal/infra/metrics"
	"github.com/osa030/audiowarden/internal/infra/mpris"
)

// Skipper asks the player to move to the next track.
type Skipper interface {
	Skip(ctx context.Context) error
}

// Persister records a runtime block so that it survives restarts.
type Persister interface {
	Append(md track.Metadata) error
}

// Inputs are the producer channels consumed by Run. Nil channels are never selected.
type Inputs struct {
	Snapshots <-chan playback.Snapshot
	Commands  <-chan command.Command
	Reloads   <-chan struct{}
	Updates   <-chan blocklist.Update
}

// Config holds the coordinator collaborators.
type Config struct {
	Store      *blocklist.Store
	FileSource blocklist.Source
	Skipper    Skipper
	Persister  Persister // nil disables persistence of runtime blocks
	Metrics    *metrics.Metrics
}

// Coordinator is the only writer of the skip ledger and the blocklist,
// and the only caller of the skipper. All Handle methods must be called
// from a single goroutine; Run does that.
type Coordinator struct {
	store      *blocklist.Store
	fileSource blocklist.Source
	skipper    Skipper
	persister  Persister
	metrics    *metrics.Metrics

	current playback.Snapshot

	mu     sync.RWMutex
	state  State
	ledger track.ID
}

// New creates a coordinator in the idle state with no current track.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		store:      cfg.Store,
		fileSource: cfg.FileSource,
		skipper:    cfg.Skipper,
		persister:  cfg.Persister,
		metrics:    cfg.Metrics,
		current:    playback.Stopped(),
		state:      StateIdle,
	}
}

// State returns the current skip state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ledger returns the track a skip was issued for, or track.Unknown.
func (c *Coordinator) Ledger() track.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger
}

// Run consumes the inputs until ctx is done.
func (c *Coordinator) Run(ctx context.Context, in Inputs) error {
	zlog.Info().Msgf("enforcer started: blocked=%d", c.store.Len())
	for {
		select {
		case <-ctx.Done():
			zlog.Info().Msg("enforcer stopped")
			return nil

		case snap, ok := <-in.Snapshots:
			if !ok {
				in.Snapshots = nil
				continue
			}
			c.HandleSnapshot(ctx, snap)

		case cmd, ok := <-in.Commands:
			if !ok {
				in.Commands = nil
				continue
			}
			c.HandleCommand(ctx, cmd)

		case _, ok := <-in.Reloads:
			if !ok {
				in.Reloads = nil
				continue
			}
			c.HandleReload(ctx)

		case u, ok := <-in.Updates:
			if !ok {
				in.Updates = nil
				continue
			}
			c.HandleUpdate(ctx, u)
		}
	}
}

// HandleSnapshot records a new player state and skips the track if it is blocked.
func (c *Coordinator) HandleSnapshot(ctx context.Context, snap playback.Snapshot) {
	c.current = snap

	// A different track (or none) starts a new occurrence.
	if ledger := c.Ledger(); ledger != track.Unknown && snap.TrackID() != ledger {
		zlog.Debug().Msgf("track changed, clearing skip ledger: was=%s", ledger)
		c.setState(StateIdle, track.Unknown)
	}

	c.evaluate(ctx)
}

// HandleCommand executes a control socket command.
func (c *Coordinator) HandleCommand(ctx context.Context, cmd command.Command) {
	c.metrics.Command(cmd.String())
	switch cmd {
	case command.BlockCurrentSong:
		c.blockCurrentSong(ctx)
	case command.ReloadBlocklist:
		c.HandleReload(ctx)
	default:
		zlog.Warn().Msgf("ignoring unsupported command: %d", int(cmd))
	}
}

// HandleReload re-reads the blocklist file. On failure the previous list is kept.
func (c *Coordinator) HandleReload(ctx context.Context) {
	if c.fileSource == nil {
		return
	}
	warnings, err := c.store.Reload(ctx, c.fileSource)
	c.metrics.Reload(c.fileSource.Name(), err)
	if err != nil {
		zlog.Error().Err(err).Msg("failed to reload blocklist, keeping the previous one")
		return
	}
	logWarnings(c.fileSource.Name(), warnings)
	zlog.Info().Msgf("blocklist reloaded: source=%s entries=%d", c.fileSource.Name(), c.store.SourceLen(c.fileSource.Name()))

	c.evaluate(ctx)
}

// HandleUpdate replaces the set of a remote source.
func (c *Coordinator) HandleUpdate(ctx context.Context, u blocklist.Update) {
	c.store.Replace(u.Source, u.Set)
	c.metrics.Reload(u.Source, nil)
	logWarnings(u.Source, u.Warnings)
	zlog.Info().Msgf("blocklist updated: source=%s entries=%d", u.Source, u.Set.Len())

	c.evaluate(ctx)
}

func (c *Coordinator) blockCurrentSong(ctx context.Context) {
	if !c.current.HasTrack() {
		zlog.Warn().Msg("block requested but no track is loaded")
		return
	}
	md := *c.current.Track
	if !md.ID.IsKnown() {
		zlog.Warn().Msgf("block requested but the current track has no usable URL: %s", md)
		return
	}

	if c.store.Insert(md.ID) {
		zlog.Info().Msgf("blocked current track: %s", md)
		if c.persister != nil {
			if err := c.persister.Append(md); err != nil {
				zlog.Error().Err(err).Msgf("failed to save blocked track: %s", md.ID)
			}
		}
	} else {
		zlog.Info().Msgf("current track is already blocked: %s", md.ID)
	}

	c.evaluate(ctx)
}

// evaluate skips the current track if it is playing, blocked and not yet skipped.
func (c *Coordinator) evaluate(ctx context.Context) {
	snap := c.current
	if !snap.IsPlaying() {
		return
	}
	id := snap.TrackID()
	if !id.IsKnown() || !c.store.Contains(id) {
		return
	}
	if c.State() == StateSkipPending && c.Ledger() == id {
		return
	}

	zlog.Info().Msgf("skipping blocked track: %s", snap.Track)
	err := c.skipper.Skip(ctx)
	switch {
	case err == nil:
		c.setState(StateSkipPending, id)
		c.metrics.Skip(metrics.SkipOK)
	case errors.Is(err, mpris.ErrPlayerUnavailable):
		c.metrics.Skip(metrics.SkipPlayerUnavailable)
		zlog.Info().Err(err).Msgf("player went away before skip: %s", id)
	default:
		c.metrics.Skip(metrics.SkipBusError)
		zlog.Warn().Err(err).Msgf("failed to skip track: %s", id)
	}
}

func (c *Coordinator) setState(state State, ledger track.ID) {
	c.mu.Lock()
	c.state = state
	c.ledger = ledger
	c.mu.Unlock()
}

func logWarnings(source string, warnings []blocklist.ParseWarning) {
	for _, w := range warnings {
		if w.Line > 0 {
			zlog.Warn().Msgf("ignoring invalid blocklist entry: source=%s line=%d text=%q", source, w.Line, w.Text)
		} else {
			zlog.Warn().Msgf("ignoring invalid blocklist entry: source=%s text=%q", source, w.Text)
		}
	}
}
