package blocklist

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/audiowarden/internal/infra/config"
)

// Sources holds the configured blocklist sources.
type Sources struct {
	File   *FileSource
	Remote []Source // Sources refreshed periodically by a Syncer
}

// NewSourcesFromConfig creates the blocklist sources from configuration.
// spotify and cache may be nil when Spotify sync is disabled.
func NewSourcesFromConfig(cfg *config.Config, spotify PlaylistReader, cache EntryCache) (*Sources, error) {
	sources := &Sources{File: NewFileSource(cfg.Blocklist.File)}
	zlog.Debug().Msgf("registered blocklist source: name=%s path=%s", FileSourceName, cfg.Blocklist.File)

	if cfg.Spotify.Enabled {
		if spotify == nil {
			return nil, errors.New("spotify sync is enabled but no spotify client was provided")
		}
		sources.Remote = append(sources.Remote, NewSpotifySource(spotify, cache, cfg.Spotify.Keyword))
		zlog.Info().Msgf("registered blocklist source: name=%s keyword=%q", SpotifySourceName, cfg.Spotify.Keyword)
	}

	return sources, nil
}
