package cache

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/audiowarden/internal/domain/track"
)

func TestFile_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "blocked_songs.json.gz")
	c := New(path)

	entries := []track.PlaylistEntry{
		{URL: "https://open.spotify.com/track/a", Playlist: "Never again"},
		{URL: "https://open.spotify.com/track/b", Playlist: "Never again"},
	}
	require.NoError(t, c.Save(entries))

	loaded, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)

	// No temporary files are left behind
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFile_LoadMissing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.json.gz")).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestFile_LoadDocumentFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_songs.json.gz")
	writeGzip(t, path, `{"version":1,"blocked_songs":[{"spotify_url":"https://open.spotify.com/track/x","playlist_name":"P"}]}`)

	loaded, err := New(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []track.PlaylistEntry{{URL: "https://open.spotify.com/track/x", Playlist: "P"}}, loaded)
}

func TestFile_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		write   func(t *testing.T, path string)
		wantErr error
	}{
		{
			name: "not gzip",
			write: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
			},
		},
		{
			name: "invalid json",
			write: func(t *testing.T, path string) {
				writeGzip(t, path, "{")
			},
		},
		{
			name: "future version",
			write: func(t *testing.T, path string) {
				writeGzip(t, path, `{"version":2,"blocked_songs":[]}`)
			},
			wantErr: ErrUnsupportedVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "blocked_songs.json.gz")
			tt.write(t, path)

			_, err := New(path).Load()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
