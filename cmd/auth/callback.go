package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

const donePage = `<!DOCTYPE html>
<html>
<head><title>audiowarden</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">
<h1>Authorization complete</h1>
<p>audiowarden can now read your playlists. Return to the terminal.</p>
</body>
</html>
`

// tokenExchanger is the part of spotifyauth.Authenticator used by the callback.
type tokenExchanger interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Token(ctx context.Context, state string, r *http.Request, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

var _ tokenExchanger = (*spotifyauth.Authenticator)(nil)

// callback handles the OAuth redirect and hands over the first token.
type callback struct {
	auth   tokenExchanger
	state  string
	tokens chan *oauth2.Token
	once   sync.Once
}

func newCallback(auth tokenExchanger) *callback {
	return &callback{
		auth:   auth,
		state:  uuid.NewString(),
		tokens: make(chan *oauth2.Token, 1),
	}
}

func (c *callback) authURL() string {
	return c.auth.AuthURL(c.state)
}

func (c *callback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if st := r.FormValue("state"); st != c.state {
		http.Error(w, "State mismatch", http.StatusForbidden)
		zlog.Warn().Msgf("rejected callback with unexpected state: %q", st)
		return
	}

	token, err := c.auth.Token(r.Context(), c.state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusForbidden)
		zlog.Error().Err(err).Msg("Failed to get token")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, donePage)

	c.once.Do(func() { c.tokens <- token })
}

// configSnippet is the part of config.yaml filled in by this tool.
type configSnippet struct {
	Spotify struct {
		Enabled      bool   `yaml:"enabled"`
		ClientID     string `yaml:"client_id"`
		RefreshToken string `yaml:"refresh_token"`
	} `yaml:"spotify"`
}

// printConfig writes the refresh token as a config.yaml snippet.
func printConfig(w io.Writer, clientID, refreshToken string) error {
	if refreshToken == "" {
		return errors.New("spotify returned no refresh token")
	}

	var s configSnippet
	s.Spotify.Enabled = true
	s.Spotify.ClientID = clientID
	s.Spotify.RefreshToken = refreshToken

	out, err := yaml.Marshal(&s)
	if err != nil {
		return errors.Wrap(err, "failed to render config snippet")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Authorization Successful ===")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Add this to your config.yaml, with client_secret or SPOTIFY_CLIENT_SECRET:")
	fmt.Fprintln(w)
	if _, err := w.Write(out); err != nil {
		return errors.Wrap(err, "failed to write config snippet")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Or set as environment variable:")
	fmt.Fprintf(w, "export SPOTIFY_REFRESH_TOKEN=%q\n", refreshToken)
	return nil
}
