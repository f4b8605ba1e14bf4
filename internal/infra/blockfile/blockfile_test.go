package blockfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/audiowarden/internal/app/blocklist"
	"github.com/osa030/audiowarden/internal/domain/track"
)

func TestEnsureExists_CreatesFileWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blocked_songs.conf")
	f := New(path)

	created, err := f.EnsureExists()
	require.NoError(t, err)
	assert.True(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "#"))
	assert.True(t, strings.HasSuffix(string(data), DemoTrackURL+"\n"))

	// The header parses to exactly the demo entry
	set, warnings, err := blocklist.Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []track.ID{DemoTrackURL}, set.IDs())
}

func TestEnsureExists_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_songs.conf")
	require.NoError(t, os.WriteFile(path, []byte("mine\n"), 0o600))

	created, err := New(path).EnsureExists()
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mine\n", string(data))
}

func TestEnsureExists_UnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	path := filepath.Join(t.TempDir(), "blocked_songs.conf")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o000))

	_, err := New(path).EnsureExists()
	assert.Error(t, err)
}

func TestEntry(t *testing.T) {
	tests := []struct {
		name     string
		md       track.Metadata
		expected string
	}{
		{
			name:     "full metadata",
			md:       track.NewMetadata("https://open.spotify.com/track/abc?si=1", "Song", []string{"A", "B"}),
			expected: "\n# Artist: A, B, Title: Song\nhttps://open.spotify.com/track/abc\n",
		},
		{
			name:     "missing metadata",
			md:       track.NewMetadata("https://open.spotify.com/track/abc", "", nil),
			expected: "\n# Artist: Unknown, Title: Unknown\nhttps://open.spotify.com/track/abc\n",
		},
		{
			name:     "line breaks in title and artist",
			md:       track.NewMetadata("https://open.spotify.com/track/abc", "Intro\r\nPart 2", []string{"A\nB"}),
			expected: "\n# Artist: A B, Title: Intro Part 2\nhttps://open.spotify.com/track/abc\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Entry(tt.md))
		})
	}
}

func TestAppend_RoundTripsThroughParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_songs.conf")
	f := New(path)
	_, err := f.EnsureExists()
	require.NoError(t, err)

	require.NoError(t, f.Append(track.NewMetadata("https://open.spotify.com/track/new", "New", []string{"X"})))

	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()
	set, _, err := blocklist.Parse(r)
	require.NoError(t, err)
	assert.True(t, set.Contains("https://open.spotify.com/track/new"))
	assert.True(t, set.Contains(DemoTrackURL))
}

func TestAppend_MultilineMetadataStaysInComment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_songs.conf")
	f := New(path)

	md := track.NewMetadata(
		"https://open.spotify.com/track/A",
		"Intro\nhttps://open.spotify.com/track/other",
		[]string{"Band\rhttps://open.spotify.com/track/another"},
	)
	require.NoError(t, f.Append(md))

	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()
	set, warnings, err := blocklist.Parse(r)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []track.ID{"https://open.spotify.com/track/A"}, set.IDs())
}
