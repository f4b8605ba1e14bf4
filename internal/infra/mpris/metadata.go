package mpris

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/audiowarden/internal/domain/track"
)

const (
	noTrackPath       = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
	spotifyTrackIDRef = "/com/spotify/track/"
)

// rawMetadata is the subset of the MPRIS metadata map used for matching.
type rawMetadata struct {
	TrackID string   `mapstructure:"mpris:trackid"`
	URL     string   `mapstructure:"xesam:url"`
	Title   string   `mapstructure:"xesam:title"`
	Artists []string `mapstructure:"xesam:artist"`
}

// decodeMetadata converts an MPRIS Metadata map into track metadata.
// It returns nil when the map describes no loaded track.
func decodeMetadata(m map[string]dbus.Variant) (*track.Metadata, error) {
	if len(m) == 0 {
		return nil, nil
	}

	values := make(map[string]any, len(m))
	for k, v := range m {
		values[k] = v.Value()
	}

	var raw rawMetadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &raw,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create metadata decoder")
	}
	if err := decoder.Decode(values); err != nil {
		return nil, errors.Wrap(err, "failed to decode metadata")
	}

	if raw.TrackID == noTrackPath || (raw.TrackID == "" && raw.URL == "" && raw.Title == "") {
		return nil, nil
	}

	url := raw.URL
	if url == "" && strings.HasPrefix(raw.TrackID, spotifyTrackIDRef) {
		// Some Spotify builds leave xesam:url empty but keep the id in the object path
		url = "spotify:track:" + strings.TrimPrefix(raw.TrackID, spotifyTrackIDRef)
	}

	md := track.NewMetadata(url, raw.Title, raw.Artists)
	return &md, nil
}

// metadataFromVariant unwraps the Metadata property value.
func metadataFromVariant(v dbus.Variant) (*track.Metadata, error) {
	m, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, errors.Newf("unexpected Metadata type %s", v.Signature())
	}
	return decodeMetadata(m)
}

// statusFromVariant unwraps the PlaybackStatus property value.
func statusFromVariant(v dbus.Variant) (string, error) {
	s, ok := v.Value().(string)
	if !ok {
		return "", errors.Newf("unexpected PlaybackStatus type %s", v.Signature())
	}
	return s, nil
}
