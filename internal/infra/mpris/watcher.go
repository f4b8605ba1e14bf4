// Package mpris provides the MPRIS player adapter on the D-Bus session bus.
package mpris

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/audiowarden/internal/domain/playback"
	"github.com/osa030/audiowarden/internal/infra/metrics"
)

const (
	objectPath          = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerInterface     = "org.mpris.MediaPlayer2.Player"
	propertiesInterface = "org.freedesktop.DBus.Properties"
	busInterface        = "org.freedesktop.DBus"

	propertiesChangedSignal = propertiesInterface + ".PropertiesChanged"
	nameOwnerChangedSignal  = busInterface + ".NameOwnerChanged"
)

// errConnectionLost is returned by watch when the bus closes the signal channel.
var errConnectionLost = errors.New("session bus connection lost")

const (
	defaultRetryInterval = 500 * time.Millisecond
	maxRetryInterval     = 30 * time.Second

	// A watch session that lasted this long resets the reconnect backoff.
	defaultHealthyAfter = 30 * time.Second
)

// busConn is the part of *dbus.Conn used by the watcher.
type busConn interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	BusObject() dbus.BusObject
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Close() error
}

// Watcher follows the playback state of one player and publishes snapshots.
type Watcher struct {
	busName       string
	maxElapsed    time.Duration
	retryInterval time.Duration
	healthyAfter  time.Duration
	dial          func() (busConn, error)
	metrics       *metrics.Metrics
	snapshots     chan playback.Snapshot
	tracker       *tracker
	conn          busConn
	sessionID     string // Correlation id of the current player session
}

// NewWatcher creates a watcher for the player at busName.
// Reconnect attempts share one exponential backoff; once maxElapsed passes
// without a healthy session, Run gives up.
func NewWatcher(busName string, maxElapsed time.Duration, m *metrics.Metrics) *Watcher {
	return &Watcher{
		busName:       busName,
		maxElapsed:    maxElapsed,
		retryInterval: defaultRetryInterval,
		healthyAfter:  defaultHealthyAfter,
		dial:          dialWatcherConn,
		metrics:       m,
		snapshots:     make(chan playback.Snapshot, 16),
		tracker:       newTracker(),
	}
}

// Snapshots returns the channel of playback transitions.
func (w *Watcher) Snapshots() <-chan playback.Snapshot {
	return w.snapshots
}

// Connect opens the session bus connection. Run calls it when needed;
// calling it up front surfaces a missing bus as a startup error.
func (w *Watcher) Connect() error {
	if w.conn != nil {
		return nil
	}
	conn, err := w.dial()
	if err != nil {
		return errors.Wrap(err, "failed to connect to session bus")
	}
	w.conn = conn
	return nil
}

// Run watches the player until ctx is done.
// It returns an error if the first connection fails or reconnecting gives up.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Connect(); err != nil {
		return err
	}
	defer w.closeConn()

	b := w.newBackOff()
	for {
		started := time.Now()
		err := w.watch(ctx, w.conn)
		if ctx.Err() != nil {
			return nil
		}
		zlog.Warn().Err(err).Msg("lost session bus, reconnecting")
		w.publish(ctx, w.tracker.detach)
		w.closeConn()

		if time.Since(started) >= w.healthyAfter {
			b.Reset()
		}
		conn, err := w.reconnect(ctx, b, err)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		w.conn = conn
		w.metrics.Reconnect()
		zlog.Info().Msg("reconnected to session bus")
	}
}

func (w *Watcher) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.retryInterval
	b.MaxInterval = maxRetryInterval
	b.MaxElapsedTime = w.maxElapsed
	b.Reset()
	return b
}

// reconnect waits out the next backoff interval before every dial.
// cause is the failure that ended the last session; it is returned,
// wrapped, together with the last dial error once b is exhausted.
func (w *Watcher) reconnect(ctx context.Context, b backoff.BackOff, cause error) (busConn, error) {
	for {
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return nil, errors.Wrap(cause, "gave up reconnecting to session bus")
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		conn, err := w.dial()
		if err == nil {
			return conn, nil
		}
		zlog.Debug().Err(err).Msgf("session bus reconnect attempt failed: next_in=%s", wait)
		cause = err
	}
}

func (w *Watcher) closeConn() {
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(); err != nil {
		zlog.Debug().Err(err).Msg("failed to close session bus connection")
	}
	w.conn = nil
}

// watch subscribes to the player's signals and processes them until the
// connection drops or ctx is done.
func (w *Watcher) watch(ctx context.Context, conn busConn) error {
	matches := [][]dbus.MatchOption{
		{
			dbus.WithMatchObjectPath(objectPath),
			dbus.WithMatchInterface(propertiesInterface),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchArg(0, playerInterface),
		},
		{
			dbus.WithMatchSender(busInterface),
			dbus.WithMatchInterface(busInterface),
			dbus.WithMatchMember("NameOwnerChanged"),
			dbus.WithMatchArg(0, w.busName),
		},
	}
	for _, m := range matches {
		if err := conn.AddMatchSignal(m...); err != nil {
			return errors.Wrap(err, "failed to add match rule")
		}
	}
	defer func() {
		for _, m := range matches {
			if err := conn.RemoveMatchSignal(m...); err != nil {
				zlog.Debug().Err(err).Msg("failed to remove match rule")
			}
		}
	}()

	signals := make(chan *dbus.Signal, 32)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	// Subscribe first, then read the current state so no change is missed.
	w.refresh(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return errConnectionLost
			}
			w.handleSignal(ctx, conn, sig)
		}
	}
}

func (w *Watcher) handleSignal(ctx context.Context, conn busConn, sig *dbus.Signal) {
	switch sig.Name {
	case nameOwnerChangedSignal:
		var name, oldOwner, newOwner string
		if err := dbus.Store(sig.Body, &name, &oldOwner, &newOwner); err != nil || name != w.busName {
			return
		}
		zlog.Debug().Msgf("player owner changed: name=%s old=%q new=%q", name, oldOwner, newOwner)
		if newOwner == "" {
			zlog.Info().Str("session", w.sessionID).Msgf("player left the bus: name=%s", w.busName)
			w.publish(ctx, w.tracker.detach)
			return
		}
		w.attach(ctx, conn, newOwner)

	case propertiesChangedSignal:
		var iface string
		var changed map[string]dbus.Variant
		var invalidated []string
		if err := dbus.Store(sig.Body, &iface, &changed, &invalidated); err != nil || iface != playerInterface {
			return
		}
		if !w.tracker.isOwner(sig.Sender) {
			return
		}
		if needsRefresh(invalidated) {
			w.attach(ctx, conn, sig.Sender)
			return
		}
		w.publish(ctx, func() (playback.Snapshot, bool) {
			return w.tracker.propertiesChanged(sig.Sender, changed)
		})
	}
}

// needsRefresh reports whether a property we track was invalidated without a value.
func needsRefresh(invalidated []string) bool {
	for _, p := range invalidated {
		if p == "Metadata" || p == "PlaybackStatus" {
			return true
		}
	}
	return false
}

// refresh looks up the current owner of the bus name and attaches to it.
func (w *Watcher) refresh(ctx context.Context, conn busConn) {
	var owner string
	err := conn.BusObject().CallWithContext(ctx, busInterface+".GetNameOwner", 0, w.busName).Store(&owner)
	if err != nil || owner == "" {
		zlog.Info().Msgf("waiting for player: name=%s", w.busName)
		w.publish(ctx, w.tracker.detach)
		return
	}
	w.attach(ctx, conn, owner)
}

// attach reads the full state of the player at owner and follows it.
func (w *Watcher) attach(ctx context.Context, conn busConn, owner string) {
	if !w.tracker.isOwner(owner) {
		w.sessionID = uuid.NewString()
		zlog.Info().Str("session", w.sessionID).Msgf("player on the bus: name=%s owner=%s", w.busName, owner)
	}

	snap := playback.Stopped()
	obj := conn.Object(owner, objectPath)

	if v, err := obj.GetProperty(playerInterface + ".Metadata"); err != nil {
		zlog.Debug().Err(err).Msg("failed to read Metadata")
	} else if md, err := metadataFromVariant(v); err != nil {
		zlog.Warn().Err(err).Msg("ignoring malformed metadata")
	} else {
		snap.Track = md
	}

	if v, err := obj.GetProperty(playerInterface + ".PlaybackStatus"); err != nil {
		zlog.Debug().Err(err).Msg("failed to read PlaybackStatus")
	} else if s, err := statusFromVariant(v); err != nil {
		zlog.Warn().Err(err).Msg("ignoring malformed playback status")
	} else {
		snap.Status = playback.ParseStatus(s)
	}

	w.publish(ctx, func() (playback.Snapshot, bool) {
		return w.tracker.attach(owner, snap)
	})
}

// publish applies a tracker transition and sends the result if it changed.
func (w *Watcher) publish(ctx context.Context, transition func() (playback.Snapshot, bool)) {
	snap, changed := transition()
	if !changed {
		return
	}
	zlog.Debug().Str("session", w.sessionID).Msgf("player state: %s", snap)
	w.metrics.Snapshot()
	select {
	case w.snapshots <- snap:
	case <-ctx.Done():
	}
}

func dialSessionBus() (*dbus.Conn, error) {
	return dbus.ConnectSessionBus()
}

func dialWatcherConn() (busConn, error) {
	conn, err := dialSessionBus()
	if err != nil {
		return nil, err
	}
	return conn, nil
}
