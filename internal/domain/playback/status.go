// Package playback provides the player state observed over the bus.
package playback

import "github.com/osa030/audiowarden/internal/domain/track"

// Status represents the playback status reported by the player.
type Status int

const (
	StatusStopped Status = iota // No playback (also used when the player is gone)
	StatusPlaying               // Track is playing
	StatusPaused                // Track is paused
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// ParseStatus converts an MPRIS PlaybackStatus value ("Playing", "Paused",
// "Stopped") into a Status. Unrecognized values are treated as stopped.
func ParseStatus(s string) Status {
	switch s {
	case "Playing":
		return StatusPlaying
	case "Paused":
		return StatusPaused
	default:
		return StatusStopped
	}
}

// Snapshot is the latest known state of the player.
type Snapshot struct {
	Track  *track.Metadata // Current track (nil if no track is loaded)
	Status Status
}

// Stopped returns the snapshot used when the player session is gone.
func Stopped() Snapshot {
	return Snapshot{Status: StatusStopped}
}

// TrackID returns the current track ID, or track.Unknown if no track is loaded.
func (s Snapshot) TrackID() track.ID {
	if s.Track == nil {
		return track.Unknown
	}
	return s.Track.ID
}

// HasTrack reports whether a track is loaded.
func (s Snapshot) HasTrack() bool {
	return s.Track != nil
}

// IsPlaying reports whether the current track is actively playing.
func (s Snapshot) IsPlaying() bool {
	return s.Track != nil && s.Status == StatusPlaying
}

// Equal reports whether two snapshots describe the same player state.
// Tracks are compared by identifier and reported metadata.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Status != o.Status {
		return false
	}
	if s.Track == nil || o.Track == nil {
		return s.Track == nil && o.Track == nil
	}
	if s.Track.ID != o.Track.ID || s.Track.URL != o.Track.URL || s.Track.Title != o.Track.Title {
		return false
	}
	if len(s.Track.Artists) != len(o.Track.Artists) {
		return false
	}
	for i := range s.Track.Artists {
		if s.Track.Artists[i] != o.Track.Artists[i] {
			return false
		}
	}
	return true
}

// String returns a short description for log lines.
func (s Snapshot) String() string {
	if s.Track == nil {
		return "status=" + s.Status.String() + " track=none"
	}
	return "status=" + s.Status.String() + " track=" + s.Track.ID.String()
}
