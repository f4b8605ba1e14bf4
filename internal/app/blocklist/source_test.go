package blocklist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/audiowarden/internal/domain/track"
	"github.com/osa030/audiowarden/internal/infra/config"
)

func TestFileSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_songs.conf")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nhttps://open.spotify.com/track/a?si=1\nbogus entry\n"), 0o600))

	set, warnings, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []track.ID{idA}, set.IDs())
	assert.Equal(t, []ParseWarning{{Line: 3, Text: "bogus entry"}}, warnings)
}

func TestFileSource_MissingFileIsEmpty(t *testing.T) {
	set, _, err := NewFileSource(filepath.Join(t.TempDir(), "nope.conf")).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestFileSource_UnreadableFileFails(t *testing.T) {
	// A directory can be opened but not read as lines
	_, _, err := NewFileSource(t.TempDir()).Load(context.Background())
	assert.Error(t, err)
}

type fakePlaylists struct {
	entries []track.PlaylistEntry
	err     error
	calls   int
}

func (f *fakePlaylists) MarkedPlaylistTracks(_ context.Context, keyword string) ([]track.PlaylistEntry, error) {
	f.calls++
	return f.entries, f.err
}

type memoryCache struct {
	entries []track.PlaylistEntry
	loadErr error
	saved   int
}

func (c *memoryCache) Load() ([]track.PlaylistEntry, error) {
	return c.entries, c.loadErr
}

func (c *memoryCache) Save(entries []track.PlaylistEntry) error {
	c.entries = entries
	c.saved++
	return nil
}

func TestSpotifySource_Load(t *testing.T) {
	client := &fakePlaylists{entries: []track.PlaylistEntry{
		{URL: "https://open.spotify.com/track/a", Playlist: "Nope"},
		{URL: "https://open.spotify.com/track/b", Playlist: "Nope"},
		{URL: "", Playlist: "Nope"},
		{URL: "https://music.example.com/songs/1", Playlist: "Nope"},
	}}
	cache := &memoryCache{}

	set, warnings, err := NewSpotifySource(client, cache, "audiowarden:block_songs").Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []track.ID{idA, idB}, set.IDs())
	assert.Equal(t, []ParseWarning{
		{Text: "Nope: "},
		{Text: "Nope: https://music.example.com/songs/1"},
	}, warnings)
	assert.Equal(t, 1, cache.saved)
	assert.Len(t, cache.entries, 4)
}

func TestSpotifySource_FallsBackToCache(t *testing.T) {
	client := &fakePlaylists{err: errors.New("connection refused")}
	cache := &memoryCache{entries: []track.PlaylistEntry{{URL: "https://open.spotify.com/track/c", Playlist: "Old"}}}

	set, _, err := NewSpotifySource(client, cache, "kw").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []track.ID{idC}, set.IDs())
	assert.Equal(t, 0, cache.saved)
}

func TestSpotifySource_Errors(t *testing.T) {
	tests := []struct {
		name  string
		cache EntryCache
	}{
		{name: "no cache", cache: nil},
		{name: "cache unreadable", cache: &memoryCache{loadErr: os.ErrNotExist}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakePlaylists{err: errors.New("connection refused")}
			_, _, err := NewSpotifySource(client, tt.cache, "kw").Load(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "connection refused")
		})
	}
}

func TestNewSourcesFromConfig(t *testing.T) {
	cfg := &config.Config{
		Blocklist: config.BlocklistConfig{File: "/tmp/blocked_songs.conf"},
		Spotify:   config.SpotifyConfig{Keyword: "audiowarden:block_songs"},
	}

	sources, err := NewSourcesFromConfig(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/blocked_songs.conf", sources.File.Path())
	assert.Empty(t, sources.Remote)

	cfg.Spotify.Enabled = true
	_, err = NewSourcesFromConfig(cfg, nil, nil)
	assert.Error(t, err)

	sources, err = NewSourcesFromConfig(cfg, &fakePlaylists{}, nil)
	require.NoError(t, err)
	require.Len(t, sources.Remote, 1)
	assert.Equal(t, SpotifySourceName, sources.Remote[0].Name())
}

func TestSyncer_PublishesUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &stubSource{name: SpotifySourceName, set: NewSet(idA)}
	updates := make(chan Update)
	syncer := NewSyncer(src, time.Hour, updates)

	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx) }()

	select {
	case u := <-updates:
		assert.Equal(t, SpotifySourceName, u.Source)
		assert.True(t, u.Set.Contains(idA))
	case <-time.After(2 * time.Second):
		t.Fatal("no update published")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("syncer did not stop")
	}
}

func TestSyncer_FailedLoadPublishesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	src := &stubSource{name: SpotifySourceName, err: errors.New("offline")}
	updates := make(chan Update)
	syncer := NewSyncer(src, time.Hour, updates)

	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx) }()

	select {
	case <-updates:
		t.Fatal("unexpected update")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}
