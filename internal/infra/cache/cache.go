// Package cache provides the on-disk cache of tracks read from Spotify playlists.
package cache

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/osa030/audiowarden/internal/domain/track"
)

// Version is the current document version.
const Version = 1

// ErrUnsupportedVersion is returned for documents written by an incompatible release.
var ErrUnsupportedVersion = errors.New("unsupported cache version")

type document struct {
	Version      int     `json:"version"`
	BlockedSongs []entry `json:"blocked_songs"`
}

type entry struct {
	SpotifyURL   string `json:"spotify_url"`
	PlaylistName string `json:"playlist_name"`
}

// File is a gzip-compressed JSON cache file.
type File struct {
	path string
}

// New creates a cache stored at path.
func New(path string) *File {
	return &File{path: path}
}

// Load reads the cached entries. A missing file yields an error matching os.ErrNotExist.
func (f *File) Load() ([]track.PlaylistEntry, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cache")
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress cache")
	}
	defer zr.Close()

	var doc document
	if err := json.NewDecoder(zr).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode cache")
	}
	if doc.Version != Version {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got %d, want %d", doc.Version, Version)
	}

	entries := make([]track.PlaylistEntry, 0, len(doc.BlockedSongs))
	for _, e := range doc.BlockedSongs {
		entries = append(entries, track.PlaylistEntry{URL: e.SpotifyURL, Playlist: e.PlaylistName})
	}
	return entries, nil
}

// Save replaces the cache with entries. The file is written next to the
// target and renamed over it.
func (f *File) Save(entries []track.PlaylistEntry) error {
	doc := document{Version: Version, BlockedSongs: make([]entry, 0, len(entries))}
	for _, e := range entries {
		doc.BlockedSongs = append(doc.BlockedSongs, entry{SpotifyURL: e.URL, PlaylistName: e.Playlist})
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create cache directory")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary cache file")
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to encode cache")
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to compress cache")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write cache")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrap(err, "failed to replace cache")
	}
	return nil
}
