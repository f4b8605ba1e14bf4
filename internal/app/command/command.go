// Package command provides the local control socket.
package command

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnknownCommand is returned for tokens that name no command.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a request received on the control socket.
type Command int

const (
	BlockCurrentSong Command = iota + 1 // Block the current track and skip it
	ReloadBlocklist                     // Re-read the blocklist file
)

const (
	blockCurrentSongToken = "block_current_song"
	reloadBlocklistToken  = "reload_blocklist"
)

// String returns the wire token of the command.
func (c Command) String() string {
	switch c {
	case BlockCurrentSong:
		return blockCurrentSongToken
	case ReloadBlocklist:
		return reloadBlocklistToken
	default:
		return "unknown"
	}
}

// Parse converts a wire token into a Command. Surrounding whitespace is ignored.
func Parse(token string) (Command, error) {
	token = strings.TrimSpace(token)
	for _, c := range All() {
		if c.String() == token {
			return c, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownCommand, "%q", token)
}

// All returns every command, in wire order.
func All() []Command {
	return []Command{BlockCurrentSong, ReloadBlocklist}
}
