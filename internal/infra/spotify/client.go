// Package spotify provides a client for the Spotify API.
package spotify

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/audiowarden/internal/domain/track"
)

const pageLimit = 50

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	// Reading private playlists is all we need
	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(spotifyauth.ScopePlaylistReadPrivate),
	)

	// Get HTTP client with auto-refresh capability
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := auth.Client(ctx, token)

	return newClient(spotify.New(httpClient)), nil
}

func newClient(c *spotify.Client) *Client {
	return &Client{
		client:     c,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// MarkedPlaylistTracks returns the tracks of every playlist of the current user
// whose description contains keyword. Local files and podcast episodes are skipped.
func (c *Client) MarkedPlaylistTracks(ctx context.Context, keyword string) ([]track.PlaylistEntry, error) {
	playlists, err := c.markedPlaylists(ctx, keyword)
	if err != nil {
		return nil, err
	}

	var entries []track.PlaylistEntry
	var failed error
	read := 0
	for _, p := range playlists {
		urls, err := c.playlistTrackURLs(ctx, p.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.CombineErrors(ctx.Err(), err)
			}
			zlog.Warn().Err(err).Msgf("skipping unreadable playlist: name=%q", p.Name)
			failed = errors.CombineErrors(failed, errors.Wrapf(err, "failed to read playlist %q", p.Name))
			continue
		}
		read++
		zlog.Debug().Msgf("read marked playlist: name=%q tracks=%d", p.Name, len(urls))
		for _, u := range urls {
			entries = append(entries, track.PlaylistEntry{URL: u, Playlist: p.Name})
		}
	}
	// Nothing readable: report it so the caller can fall back to its cache
	if read == 0 && failed != nil {
		return nil, failed
	}
	return entries, nil
}

// markedPlaylists lists the current user's playlists whose description contains keyword.
func (c *Client) markedPlaylists(ctx context.Context, keyword string) ([]spotify.SimplePlaylist, error) {
	var page *spotify.SimplePlaylistPage
	err := c.retry(ctx, func() error {
		p, err := c.client.CurrentUsersPlaylists(ctx, spotify.Limit(pageLimit))
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list playlists")
	}

	var marked []spotify.SimplePlaylist
	for {
		for _, p := range page.Playlists {
			if strings.Contains(p.Description, keyword) {
				marked = append(marked, p)
			}
		}

		err := c.retry(ctx, func() error {
			return c.client.NextPage(ctx, page)
		})
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to list playlists")
		}
	}
	return marked, nil
}

// playlistTrackURLs returns the track URLs of a playlist.
func (c *Client) playlistTrackURLs(ctx context.Context, id spotify.ID) ([]string, error) {
	var page *spotify.PlaylistItemPage
	err := c.retry(ctx, func() error {
		p, err := c.client.GetPlaylistItems(ctx, id, spotify.Limit(100))
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist items")
	}

	var urls []string
	for {
		for _, item := range page.Items {
			// Only process streamable tracks (exclude local files and episodes)
			if item.IsLocal || item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			urls = append(urls, trackURL(item.Track.Track))
		}

		err := c.retry(ctx, func() error {
			return c.client.NextPage(ctx, page)
		})
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}
	}
	return urls, nil
}

// trackURL returns the open.spotify.com URL of a track.
func trackURL(t *spotify.FullTrack) string {
	if u, ok := t.ExternalURLs["spotify"]; ok && u != "" {
		return u
	}
	return "https://open.spotify.com/track/" + string(t.ID)
}

// retry retries an operation with linear backoff until it succeeds,
// fails with a non-retryable error, or ctx is done.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.CombineErrors(ctx.Err(), lastErr)
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// emptyBodyError matches the error returned for error responses without a body.
var emptyBodyError = regexp.MustCompile(`^spotify: HTTP (\d{3}):`)

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, spotify.ErrNoMorePages) {
		return false
	}
	status, ok := statusOf(err)
	return ok && retryableStatus(status)
}

// statusOf returns the HTTP status carried by an API error.
func statusOf(err error) (int, bool) {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status, true
	}
	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Status, true
	}
	m := emptyBodyError.FindStringSubmatch(errors.UnwrapAll(err).Error())
	if m == nil {
		return 0, false
	}
	status, convErr := strconv.Atoi(m[1])
	return status, convErr == nil
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
