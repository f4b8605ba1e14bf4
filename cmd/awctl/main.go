// Package main provides the audiowarden control client.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/osa030/audiowarden/internal/app/command"
	"github.com/osa030/audiowarden/internal/infra/config"
)

var (
	app     = kingpin.New("awctl", "Control a running audiowarden daemon")
	socket  = app.Flag("socket", "Path to the command socket (default: <runtime dir>/audiowarden.sock)").String()
	timeout = app.Flag("timeout", "Time to wait for the daemon").Default("3s").Duration()

	// block command
	blockCmd = app.Command("block", "Block the song that is playing now and skip it")

	// reload command
	reloadCmd = app.Command("reload", "Re-read the blocklist file")
)

func main() {
	// Parse command
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	path, err := socketPath(*socket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var c command.Command
	switch cmd {
	case blockCmd.FullCommand():
		c = command.BlockCurrentSong
	case reloadCmd.FullCommand():
		c = command.ReloadBlocklist
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := command.Send(ctx, path, c); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sent %s\n", c)
}

func socketPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	dir, err := config.RuntimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.SocketFileName), nil
}
