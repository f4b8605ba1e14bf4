package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/audiowarden/internal/domain/track"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected Status
	}{
		{input: "Playing", expected: StatusPlaying},
		{input: "Paused", expected: StatusPaused},
		{input: "Stopped", expected: StatusStopped},
		{input: "", expected: StatusStopped},
		{input: "playing", expected: StatusStopped},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseStatus(tt.input))
		})
	}
}

func TestSnapshot_Equal(t *testing.T) {
	a := track.NewMetadata("https://open.spotify.com/track/a", "A", []string{"X"})
	aAgain := track.NewMetadata("https://open.spotify.com/track/a", "A", []string{"X"})
	aOtherArtist := track.NewMetadata("https://open.spotify.com/track/a", "A", []string{"Y"})
	b := track.NewMetadata("https://open.spotify.com/track/b", "B", nil)

	tests := []struct {
		name     string
		left     Snapshot
		right    Snapshot
		expected bool
	}{
		{
			name:     "both stopped without track",
			left:     Stopped(),
			right:    Stopped(),
			expected: true,
		},
		{
			name:     "same track different pointers",
			left:     Snapshot{Track: &a, Status: StatusPlaying},
			right:    Snapshot{Track: &aAgain, Status: StatusPlaying},
			expected: true,
		},
		{
			name:     "same track different status",
			left:     Snapshot{Track: &a, Status: StatusPlaying},
			right:    Snapshot{Track: &a, Status: StatusPaused},
			expected: false,
		},
		{
			name:     "different track",
			left:     Snapshot{Track: &a, Status: StatusPlaying},
			right:    Snapshot{Track: &b, Status: StatusPlaying},
			expected: false,
		},
		{
			name:     "track versus none",
			left:     Snapshot{Track: &a, Status: StatusStopped},
			right:    Stopped(),
			expected: false,
		},
		{
			name:     "artist list differs",
			left:     Snapshot{Track: &a, Status: StatusPlaying},
			right:    Snapshot{Track: &aOtherArtist, Status: StatusPlaying},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.left.Equal(tt.right))
			assert.Equal(t, tt.expected, tt.right.Equal(tt.left))
		})
	}
}

func TestSnapshot_IsPlaying(t *testing.T) {
	a := track.NewMetadata("https://open.spotify.com/track/a", "A", nil)

	assert.True(t, Snapshot{Track: &a, Status: StatusPlaying}.IsPlaying())
	assert.False(t, Snapshot{Track: &a, Status: StatusPaused}.IsPlaying())
	assert.False(t, Snapshot{Status: StatusPlaying}.IsPlaying())
	assert.Equal(t, track.Unknown, Stopped().TrackID())
}
