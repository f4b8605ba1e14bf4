package mpris

import (
	"github.com/godbus/dbus/v5"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/audiowarden/internal/domain/playback"
)

// sessionState is the attachment state of the watcher to a player.
type sessionState int

const (
	awaitingSession sessionState = iota // No owner for the bus name
	attached                            // Following the current owner
)

// String returns the string representation of the state.
func (s sessionState) String() string {
	switch s {
	case awaitingSession:
		return "awaiting_session"
	case attached:
		return "attached"
	default:
		return "unknown"
	}
}

// tracker folds bus events into snapshots. It does no I/O.
// Every method returns the snapshot to publish and whether it differs
// from the last one published.
type tracker struct {
	state   sessionState
	owner   string // Unique bus name of the attached player
	current playback.Snapshot
	last    playback.Snapshot // Last published snapshot
}

func newTracker() *tracker {
	return &tracker{
		state:   awaitingSession,
		current: playback.Stopped(),
		last:    playback.Stopped(),
	}
}

// attach follows a new owner with its full current state.
func (t *tracker) attach(owner string, snap playback.Snapshot) (playback.Snapshot, bool) {
	t.state = attached
	t.owner = owner
	t.current = snap
	return t.publish()
}

// detach handles the disappearance of the player.
func (t *tracker) detach() (playback.Snapshot, bool) {
	t.state = awaitingSession
	t.owner = ""
	t.current = playback.Stopped()
	return t.publish()
}

// propertiesChanged merges a PropertiesChanged payload from sender.
// Signals from anyone but the attached owner are ignored.
func (t *tracker) propertiesChanged(sender string, changed map[string]dbus.Variant) (playback.Snapshot, bool) {
	if t.state != attached || sender != t.owner {
		return t.last, false
	}

	next := t.current
	if v, ok := changed["Metadata"]; ok {
		md, err := metadataFromVariant(v)
		if err != nil {
			zlog.Warn().Err(err).Msg("ignoring malformed metadata")
		} else {
			next.Track = md
		}
	}
	if v, ok := changed["PlaybackStatus"]; ok {
		s, err := statusFromVariant(v)
		if err != nil {
			zlog.Warn().Err(err).Msg("ignoring malformed playback status")
		} else {
			next.Status = playback.ParseStatus(s)
		}
	}

	t.current = next
	return t.publish()
}

// isOwner reports whether sender is the attached player.
func (t *tracker) isOwner(sender string) bool {
	return t.state == attached && sender == t.owner
}

func (t *tracker) publish() (playback.Snapshot, bool) {
	if t.current.Equal(t.last) {
		return t.last, false
	}
	t.last = t.current
	return t.current, true
}
