package mpris

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	zlog "github.com/rs/zerolog/log"
)

// Skip errors. Match with errors.Is.
var (
	// ErrPlayerUnavailable is returned when no player owns the bus name.
	ErrPlayerUnavailable = errors.New("player unavailable")
	// ErrBus is returned for any other bus failure, including timeouts.
	ErrBus = errors.New("bus error")
)

const (
	errServiceUnknown = "org.freedesktop.DBus.Error.ServiceUnknown"
	errNameHasNoOwner = "org.freedesktop.DBus.Error.NameHasNoOwner"
	errUnknownObject  = "org.freedesktop.DBus.Error.UnknownObject"
)

// Caller is the part of dbus.BusObject used to send method calls.
type Caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Dispatcher sends Next to the player. It holds its own bus connection,
// opened on first use and reopened after a transport failure.
type Dispatcher struct {
	busName string
	timeout time.Duration
	dial    func() (*dbus.Conn, error)

	mu     sync.Mutex
	conn   *dbus.Conn
	player Caller
}

// NewDispatcher creates a dispatcher for the player at busName.
func NewDispatcher(busName string, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		busName: busName,
		timeout: timeout,
		dial:    dialSessionBus,
	}
}

// newDispatcherWithCaller creates a dispatcher bound to a fixed object.
func newDispatcherWithCaller(player Caller, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		timeout: timeout,
		player:  player,
	}
}

// Skip asks the player to advance to the next track. The call is never retried.
func (d *Dispatcher) Skip(ctx context.Context) error {
	player, err := d.playerObject()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to connect to session bus"), ErrBus)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	call := player.CallWithContext(ctx, playerInterface+".Next", 0)
	if call.Err == nil {
		return nil
	}

	err = classifyCallError(call.Err)
	if isTransportError(call.Err) {
		d.resetConn()
	}
	return err
}

func (d *Dispatcher) playerObject() (Caller, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.player != nil {
		return d.player, nil
	}

	conn, err := d.dial()
	if err != nil {
		return nil, err
	}
	d.conn = conn
	d.player = conn.Object(d.busName, objectPath)
	return d.player, nil
}

// resetConn drops the connection so that the next Skip dials again.
func (d *Dispatcher) resetConn() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return
	}
	if err := d.conn.Close(); err != nil {
		zlog.Debug().Err(err).Msg("failed to close dispatcher connection")
	}
	d.conn = nil
	d.player = nil
}

// Close releases the bus connection.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.player = nil
	return err
}

// classifyCallError maps a method call error to ErrPlayerUnavailable or ErrBus.
func classifyCallError(err error) error {
	switch dbusErrorName(err) {
	case errServiceUnknown, errNameHasNoOwner, errUnknownObject:
		return errors.Mark(errors.Wrap(err, "player is not on the bus"), ErrPlayerUnavailable)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Mark(errors.Wrap(err, "player did not answer in time"), ErrBus)
	}
	return errors.Mark(errors.Wrap(err, "call to player failed"), ErrBus)
}

// isTransportError reports whether err came from the connection rather than the player.
func isTransportError(err error) bool {
	return dbusErrorName(err) == "" && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
}

// dbusErrorName returns the D-Bus error name carried by err, if any.
func dbusErrorName(err error) string {
	var value dbus.Error
	if errors.As(err, &value) {
		return value.Name
	}
	var ptr *dbus.Error
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Name
	}
	return ""
}
