package command

import (
	"bufio"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

const maxTokenSize = 256

// ErrSocketInUse is returned when another process is serving the socket path.
var ErrSocketInUse = errors.New("socket is in use by another process")

// Server accepts one command per connection on a Unix socket.
type Server struct {
	path        string
	readTimeout time.Duration
	commands    chan Command

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a server for the socket at path.
func NewServer(path string, readTimeout time.Duration) *Server {
	return &Server{
		path:        path,
		readTimeout: readTimeout,
		commands:    make(chan Command, 16),
	}
}

// Commands returns the channel of received commands.
func (s *Server) Commands() <-chan Command {
	return s.commands
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Listen binds the socket. A stale socket file left by a previous run is removed first.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create socket directory")
	}
	if err := removeStaleSocket(s.path); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return errors.Wrapf(err, "failed to bind socket %s", s.path)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		ln.Close()
		return errors.Wrap(err, "failed to restrict socket permissions")
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	zlog.Info().Msgf("command socket listening: path=%s", s.path)
	return nil
}

// removeStaleSocket deletes a leftover socket file nobody is serving.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to stat socket path")
	}
	if info.Mode()&os.ModeSocket == 0 {
		return errors.Newf("socket path %s exists and is not a socket", path)
	}
	if conn, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
		conn.Close()
		return errors.Wrapf(ErrSocketInUse, "%s", path)
	}
	zlog.Debug().Msgf("removing stale socket: path=%s", path)
	if err := os.Remove(path); err != nil {
		return errors.Wrap(err, "failed to remove stale socket")
	}
	return nil
}

// Serve accepts connections until ctx is done or the server is closed.
// Listen must be called first.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("command server is not listening")
	}

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			zlog.Warn().Err(err).Msg("failed to accept command connection")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn reads a single token, forwards the command and closes the connection.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	connID := uuid.NewString()
	logger := zlog.With().Str("conn", connID).Logger()

	if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		logger.Warn().Err(err).Msg("failed to set read deadline")
	}

	token, err := bufio.NewReaderSize(io.LimitReader(conn, maxTokenSize), maxTokenSize).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Warn().Err(err).Msg("failed to read command")
		return
	}
	if token == "" {
		logger.Debug().Msg("connection closed without a command")
		return
	}

	cmd, err := Parse(token)
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring unrecognized command")
		return
	}
	logger.Info().Msgf("received command: %s", cmd)

	select {
	case s.commands <- cmd:
	case <-ctx.Done():
	}
}

// Close stops accepting connections and removes the socket file.
// It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	err := ln.Close()
	// net.UnixListener unlinks the path on Close; make sure it is gone either way.
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.CombineErrors(err, rmErr)
	}
	return err
}
