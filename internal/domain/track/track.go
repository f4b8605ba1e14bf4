// Package track provides the track identity used to match played songs against the blocklist.
package track

import (
	"net/url"
	"strings"
)

// ID is the canonical identifier of a track.
// Two IDs denote the same track if and only if the strings are equal.
type ID string

// Unknown is the identifier for input that could not be resolved.
// It never matches a blocklist entry.
const Unknown ID = ""

const (
	spotifyHost      = "open.spotify.com"
	spotifyURIPrefix = "spotify:track:"
)

// IsKnown reports whether the ID was resolved from well-formed input.
func (id ID) IsKnown() bool {
	return id != Unknown
}

// String returns the identifier as a string.
func (id ID) String() string {
	return string(id)
}

// Metadata describes the track reported by the player.
type Metadata struct {
	ID      ID       // Canonical identifier
	URL     string   // URL as reported by the player
	Title   string   // Track title
	Artists []string // Artist names
}

// NewMetadata builds metadata and resolves the ID from the raw URL.
func NewMetadata(rawURL, title string, artists []string) Metadata {
	return Metadata{
		ID:      Resolve(rawURL),
		URL:     rawURL,
		Title:   title,
		Artists: artists,
	}
}

// Artist returns all artists joined by ", ".
func (m Metadata) Artist() string {
	return strings.Join(m.Artists, ", ")
}

// String returns a human readable description for log lines.
func (m Metadata) String() string {
	artist := m.Artist()
	if artist == "" {
		artist = "Unknown"
	}
	title := m.Title
	if title == "" {
		title = "Unknown"
	}
	return "Artist: " + artist + ", Title: " + title + ", URL: " + m.URL
}

// Resolve converts a player-reported or user-supplied URI into a canonical ID.
//
// Query strings and fragments are dropped, so links shared with tracking
// parameters (?si=...) match the plain URL the player reports. Spotify URIs and
// localized Spotify URLs are rewritten to https://open.spotify.com/track/<id>.
// Malformed input resolves to Unknown.
func Resolve(raw string) ID {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return Unknown
	}

	if strings.HasPrefix(raw, spotifyURIPrefix) {
		id := strings.TrimPrefix(raw, spotifyURIPrefix)
		id = strings.SplitN(id, "?", 2)[0]
		if id == "" || strings.Contains(id, ":") {
			return Unknown
		}
		return spotifyTrackID(id)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return Unknown
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	if u.Opaque != "" {
		return ID(u.String())
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return Unknown
		}
	}

	if strings.EqualFold(u.Host, spotifyHost) {
		if id := extractTrackID(u.Path); id != "" {
			return spotifyTrackID(id)
		}
	}

	return ID(u.String())
}

// IsSpotify reports whether the ID points to a Spotify track.
func (id ID) IsSpotify() bool {
	return strings.HasPrefix(string(id), "https://"+spotifyHost+"/track/")
}

func spotifyTrackID(id string) ID {
	return ID("https://" + spotifyHost + "/track/" + id)
}

// extractTrackID extracts the track ID from a Spotify URL path such as
// /track/ID or /intl-XX/track/ID.
func extractTrackID(path string) string {
	parts := strings.Split(path, "/track/")
	if len(parts) < 2 {
		return ""
	}
	id := strings.TrimRight(parts[len(parts)-1], "/")
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// PlaylistEntry is a track URL taken from a remote playlist.
type PlaylistEntry struct {
	URL      string // Track URL as returned by the remote service
	Playlist string // Name of the playlist it came from
}
