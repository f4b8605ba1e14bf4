// Package blockfile provides creation of and appending to the blocklist file.
package blockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/audiowarden/internal/domain/track"
)

// DemoTrackURL is the sample entry written into a new blocklist file.
const DemoTrackURL = "https://open.spotify.com/track/6CE6xXEI29e6X0noaNugIW"

const header = `# Songs listed in this file are skipped whenever they start playing.
#
# Put one Spotify song link per line. In the Spotify app, open the menu of a
# song and choose Share > Copy Song Link. Selecting several songs and pressing
# Ctrl+C copies all of their links at once.
# Lines starting with '#' are comments. Query parameters such as ?si=... are
# ignored when matching.
#
# You can also block the song that is playing right now with:
#   awctl block
#
# The entry below is an example and can be removed.
` + DemoTrackURL + "\n"

// File is the blocklist file.
type File struct {
	path string
	mu   sync.Mutex
}

// New creates a handle for the blocklist file at path.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// EnsureExists creates the file with an explanatory header if it does not exist.
// It reports whether the file was created. An existing file is left untouched,
// but it must be readable.
func (f *File) EnsureExists() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return false, errors.Wrap(err, "failed to create blocklist directory")
	}

	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		r, err := os.Open(f.path)
		if err != nil {
			return false, errors.Wrapf(err, "blocklist file %s is not readable", f.path)
		}
		return false, r.Close()
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to create blocklist file %s", f.path)
	}
	defer file.Close()

	if _, err := file.WriteString(header); err != nil {
		return true, errors.Wrap(err, "failed to write blocklist header")
	}
	zlog.Info().Msgf("created blocklist file: path=%s", f.path)
	return true, nil
}

// Append adds a track to the end of the file, preceded by a comment naming it.
func (f *File) Append(md track.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open blocklist file %s", f.path)
	}
	defer file.Close()

	if _, err := file.WriteString(Entry(md)); err != nil {
		return errors.Wrap(err, "failed to append to blocklist file")
	}
	return file.Close()
}

// commentSafe keeps player-supplied text on the comment line.
var commentSafe = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Entry formats a track as it is appended to the file.
// Line breaks in the artist or title are replaced with spaces.
func Entry(md track.Metadata) string {
	artist := commentSafe.Replace(md.Artist())
	if strings.TrimSpace(artist) == "" {
		artist = "Unknown"
	}
	title := commentSafe.Replace(md.Title)
	if strings.TrimSpace(title) == "" {
		title = "Unknown"
	}
	return fmt.Sprintf("\n# Artist: %s, Title: %s\n%s\n", artist, title, md.ID)
}
