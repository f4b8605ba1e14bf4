package blocklist

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/audiowarden/internal/domain/track"
)

// Source names.
const (
	FileSourceName    = "file"
	SpotifySourceName = "spotify"
)

// Source loads a complete blocklist set.
type Source interface {
	// Name returns the identifier of the source inside the store.
	Name() string
	// Load reads the full set. Unresolvable entries are returned as warnings.
	Load(ctx context.Context) (Set, []ParseWarning, error)
}

// FileSource reads the blocklist file.
type FileSource struct {
	path string
}

// NewFileSource creates a source for the blocklist file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the source name.
func (s *FileSource) Name() string {
	return FileSourceName
}

// Path returns the file path.
func (s *FileSource) Path() string {
	return s.path
}

// Load parses the blocklist file. A missing file yields an empty set.
func (s *FileSource) Load(_ context.Context) (Set, []ParseWarning, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			zlog.Warn().Msgf("blocklist file not found, nothing is blocked: path=%s", s.path)
			return NewSet(), nil, nil
		}
		return nil, nil, errors.Wrapf(err, "failed to open blocklist file %s", s.path)
	}
	defer f.Close()

	set, warnings, err := Parse(f)
	if err != nil {
		return nil, warnings, errors.Wrapf(err, "failed to parse blocklist file %s", s.path)
	}
	return set, warnings, nil
}

// PlaylistReader lists the tracks of the playlists marked with a keyword.
type PlaylistReader interface {
	MarkedPlaylistTracks(ctx context.Context, keyword string) ([]track.PlaylistEntry, error)
}

// EntryCache persists the last successful playlist read.
type EntryCache interface {
	Load() ([]track.PlaylistEntry, error)
	Save(entries []track.PlaylistEntry) error
}

// SpotifySource reads blocked tracks from the user's marked Spotify playlists.
// When Spotify cannot be reached, the last cached result is used.
type SpotifySource struct {
	client  PlaylistReader
	cache   EntryCache // optional
	keyword string
}

// NewSpotifySource creates a source for playlists whose description contains keyword.
func NewSpotifySource(client PlaylistReader, cache EntryCache, keyword string) *SpotifySource {
	return &SpotifySource{client: client, cache: cache, keyword: keyword}
}

// Name returns the source name.
func (s *SpotifySource) Name() string {
	return SpotifySourceName
}

// Load reads the marked playlists, falling back to the cache on failure.
func (s *SpotifySource) Load(ctx context.Context) (Set, []ParseWarning, error) {
	entries, err := s.client.MarkedPlaylistTracks(ctx, s.keyword)
	if err != nil {
		if s.cache == nil {
			return nil, nil, errors.Wrap(err, "failed to read marked playlists")
		}
		cached, cacheErr := s.cache.Load()
		if cacheErr != nil {
			return nil, nil, errors.CombineErrors(
				errors.Wrap(err, "failed to read marked playlists"),
				errors.Wrap(cacheErr, "failed to read playlist cache"))
		}
		zlog.Warn().Err(err).Msgf("spotify unreachable, using cached blocklist: entries=%d", len(cached))
		entries = cached
	} else if s.cache != nil {
		if err := s.cache.Save(entries); err != nil {
			zlog.Warn().Err(err).Msg("failed to write playlist cache")
		}
	}

	set, warnings := entriesToSet(entries)
	return set, warnings, nil
}

// entriesToSet keeps Spotify track links only. Anything else in a playlist
// becomes a warning.
func entriesToSet(entries []track.PlaylistEntry) (Set, []ParseWarning) {
	set := NewSet()
	var warnings []ParseWarning
	for _, e := range entries {
		id := track.Resolve(e.URL)
		if !id.IsSpotify() {
			warnings = append(warnings, ParseWarning{Text: e.Playlist + ": " + e.URL})
			continue
		}
		set.Add(id)
	}
	return set, warnings
}
