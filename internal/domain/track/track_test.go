package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected ID
	}{
		{
			name:     "plain spotify URL",
			input:    "https://open.spotify.com/track/6CE6xXEI29e6X0noaNugIW",
			expected: "https://open.spotify.com/track/6CE6xXEI29e6X0noaNugIW",
		},
		{
			name:     "spotify URL with tracking param",
			input:    "https://open.spotify.com/track/6CE6xXEI29e6X0noaNugIW?si=7764fc00aa",
			expected: "https://open.spotify.com/track/6CE6xXEI29e6X0noaNugIW",
		},
		{
			name:     "spotify URL with multiple query params",
			input:    "https://open.spotify.com/track/abc123?si=xyz&utm_source=copy",
			expected: "https://open.spotify.com/track/abc123",
		},
		{
			name:     "localized spotify URL",
			input:    "https://open.spotify.com/intl-de/track/abc123",
			expected: "https://open.spotify.com/track/abc123",
		},
		{
			name:     "spotify URI",
			input:    "spotify:track:abc123",
			expected: "https://open.spotify.com/track/abc123",
		},
		{
			name:     "surrounding whitespace",
			input:    "  https://open.spotify.com/track/abc123  ",
			expected: "https://open.spotify.com/track/abc123",
		},
		{
			name:     "trailing slash",
			input:    "https://open.spotify.com/track/abc123/",
			expected: "https://open.spotify.com/track/abc123",
		},
		{
			name:     "non spotify URL keeps path",
			input:    "https://music.example.com/songs/42?ref=share#t=10",
			expected: "https://music.example.com/songs/42",
		},
		{
			name:     "file URL",
			input:    "file:///home/user/music/song.mp3",
			expected: "file:///home/user/music/song.mp3",
		},
		{
			name:     "empty string",
			input:    "",
			expected: Unknown,
		},
		{
			name:     "not a URL",
			input:    "this is not a url",
			expected: Unknown,
		},
		{
			name:     "relative path",
			input:    "/track/abc123",
			expected: Unknown,
		},
		{
			name:     "https without host",
			input:    "https:///track/abc",
			expected: Unknown,
		},
		{
			name:     "empty spotify URI",
			input:    "spotify:track:",
			expected: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.input),
				"Resolve(%q) should return %q", tt.input, tt.expected)
		})
	}
}

func TestResolve_QueryParamsDenoteSameTrack(t *testing.T) {
	a := Resolve("https://open.spotify.com/track/ABC")
	b := Resolve("https://open.spotify.com/track/ABC?si=xyz")

	assert.Equal(t, a, b)
	assert.True(t, a.IsKnown())
}

func TestID_IsSpotify(t *testing.T) {
	assert.True(t, Resolve("spotify:track:abc").IsSpotify())
	assert.False(t, Resolve("https://music.example.com/songs/1").IsSpotify())
	assert.False(t, Unknown.IsSpotify())
}

func TestMetadata_String(t *testing.T) {
	tests := []struct {
		name     string
		metadata Metadata
		expected string
	}{
		{
			name:     "all fields",
			metadata: NewMetadata("https://open.spotify.com/track/a", "Song", []string{"A", "B"}),
			expected: "Artist: A, B, Title: Song, URL: https://open.spotify.com/track/a",
		},
		{
			name:     "missing artist and title",
			metadata: NewMetadata("https://open.spotify.com/track/a", "", nil),
			expected: "Artist: Unknown, Title: Unknown, URL: https://open.spotify.com/track/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.metadata.String())
		})
	}
}
