package command

import (
	"context"
	"net"
	"time"

	"github.com/cockroachdb/errors"
)

// Send delivers a command to the server listening at path.
func Send(ctx context.Context, path string, cmd Command) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", path)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "failed to set write deadline")
	}

	if _, err := conn.Write([]byte(cmd.String() + "\n")); err != nil {
		return errors.Wrapf(err, "failed to send %s", cmd)
	}
	return nil
}
