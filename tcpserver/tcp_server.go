// Package tcpserver implements the echo server: it listens on a port, accepts
// a single client for its whole lifetime and answers each message with "OK",
// or with "Goodbye" to "Quit", after which the session ends.
package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/go-echo/echoerr"
	"github.com/cyberinferno/go-echo/logger"
	"github.com/cyberinferno/go-echo/perfmonitor"
	"github.com/cyberinferno/go-echo/protocol"
	"github.com/cyberinferno/go-echo/sessionstore"
)

var (
	// ErrAlreadyAccepted is returned by AcceptOne after the server has already
	// accepted its one connection.
	ErrAlreadyAccepted = errors.New("server already accepted its connection")
	// ErrServerClosed is returned when Close interrupts a pending accept or an
	// active session.
	ErrServerClosed = errors.New("server closed")
	// ErrNotStarted is returned by AcceptOne and Run before Start.
	ErrNotStarted = errors.New("server not started")
)

// EchoServer is a single-session TCP echo server. Create one with New, then
// call Start followed by Run (or AcceptOne and ServeLoop).
type EchoServer struct {
	Logger logger.Logger
	Name   string
	// Store receives a summary of the session when it ends. Optional.
	Store sessionstore.Store

	listener net.Listener
	session  atomic.Pointer[Session]
	accepted atomic.Bool
	closed   atomic.Bool
	lastID   atomic.Uint32
}

// New creates an EchoServer. store may be nil.
//
// Parameters:
//   - name: Server name used in log messages
//   - log: Logger for diagnostics
//   - store: Where session summaries are recorded, or nil
//
// Returns:
//   - A server ready for Start
func New(name string, log logger.Logger, store sessionstore.Store) *EchoServer {
	return &EchoServer{
		Logger: log,
		Name:   name,
		Store:  store,
	}
}

// Start binds a listening socket on all IPv4 interfaces at port. Port 0 picks
// an ephemeral port; Addr reports the one chosen.
//
// Returns:
//   - An error of kind echoerr.SocketCreate, echoerr.Bind or echoerr.Listen
//     when the listener cannot be created, or if the server was already started
func (s *EchoServer) Start(port int) error {
	if s.listener != nil {
		return fmt.Errorf("server %s already started", s.Name)
	}

	addr := net.JoinHostPort("", strconv.Itoa(port))
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		err = echoerr.ClassifyListen("listen tcp "+addr, err)
		s.Logger.Error(fmt.Sprintf("%s server failed to start", s.Name), logger.Field{Key: "error", Value: err})
		return err
	}

	s.listener = ln
	s.Logger.Info(fmt.Sprintf("%s server started, waiting for a connection", s.Name), logger.Field{Key: "addr", Value: ln.Addr().String()})

	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *EchoServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// AcceptOne blocks until a client connects and returns its session. It
// succeeds at most once per server.
//
// Returns:
//   - The session, or ErrAlreadyAccepted, ErrServerClosed, ErrNotStarted, or
//     an error of kind echoerr.Accept
func (s *EchoServer) AcceptOne() (*Session, error) {
	if s.listener == nil {
		return nil, ErrNotStarted
	}

	if !s.accepted.CompareAndSwap(false, true) {
		return nil, ErrAlreadyAccepted
	}

	conn, err := s.listener.Accept()
	if err != nil {
		if s.closed.Load() {
			return nil, ErrServerClosed
		}

		err = echoerr.New(echoerr.Accept, "accept", err)
		s.Logger.Error(fmt.Sprintf("%s server accept error", s.Name), logger.Field{Key: "error", Value: err})
		return nil, err
	}

	session := newSession(s.lastID.Add(1), conn, s.Logger)
	s.session.Store(session)
	if s.closed.Load() {
		_ = session.Close()
		return nil, ErrServerClosed
	}

	session.log.Info("client connected")
	return session, nil
}

// ServeLoop answers messages on session until the quit handshake completes or
// the client disconnects, then closes the session. Each read uses a fresh
// zeroed buffer of protocol.BufferSize bytes.
//
// Returns:
//   - A summary of the session, which is filled in even on error
//   - nil on quit or peer disconnect; ErrServerClosed if Close interrupted the
//     session; otherwise an error of kind echoerr.Read or echoerr.Send
func (s *EchoServer) ServeLoop(session *Session) (sessionstore.Summary, error) {
	defer session.Close()

	pm := perfmonitor.NewPerformanceMonitor()
	pm.Start()

	summary := sessionstore.Summary{
		ID:         session.ID(),
		RemoteAddr: session.RemoteAddr(),
		StartedAt:  time.Now(),
	}

	end := func(reason sessionstore.EndReason, err error) (sessionstore.Summary, error) {
		pm.Stop()
		summary.EndReason = reason
		summary.DurationMs = pm.ElapsedMilliseconds()
		return summary, err
	}

	for {
		msg, n, err := protocol.ReadMessage(session.conn)
		if errors.Is(err, io.EOF) {
			session.log.Info("connection closed by client")
			return end(sessionstore.EndPeerClosed, nil)
		}

		if err != nil {
			if s.closed.Load() {
				return end(sessionstore.EndShutdown, ErrServerClosed)
			}

			err = echoerr.New(echoerr.Read, "read message", err)
			session.log.Error("read failed", logger.Field{Key: "error", Value: err})
			return end(sessionstore.EndError, err)
		}

		summary.Messages++
		summary.BytesIn += n

		reply, quit := protocol.Reply(msg)
		session.log.Info("received from client", logger.Field{Key: "message", Value: msg}, logger.Field{Key: "reply", Value: reply})

		if err := session.Send([]byte(reply)); err != nil {
			if s.closed.Load() {
				return end(sessionstore.EndShutdown, ErrServerClosed)
			}

			err = echoerr.New(echoerr.Send, "send reply", err)
			session.log.Error("send failed", logger.Field{Key: "error", Value: err})
			return end(sessionstore.EndError, err)
		}

		if quit {
			session.log.Info("quit handshake completed")
			return end(sessionstore.EndQuit, nil)
		}
	}
}

// Run performs the whole server lifetime: accept one client, serve it, record
// the session summary, and close the listener. Cancelling ctx closes the
// server, which interrupts a pending accept or the active session.
//
// Returns:
//   - The session summary (zero if no client was accepted)
//   - nil after a normal session, or the first failure
func (s *EchoServer) Run(ctx context.Context) (sessionstore.Summary, error) {
	if s.listener == nil {
		return sessionstore.Summary{}, ErrNotStarted
	}

	stop := context.AfterFunc(ctx, func() {
		_ = s.Close()
	})
	defer stop()
	defer s.Close()

	session, err := s.AcceptOne()
	if err != nil {
		return sessionstore.Summary{}, err
	}

	summary, err := s.ServeLoop(session)
	s.record(summary)

	return summary, err
}

// record saves the summary to the store. A store failure is logged but does
// not fail the session.
func (s *EchoServer) record(summary sessionstore.Summary) {
	fields := []logger.Field{
		{Key: "session", Value: summary.ID},
		{Key: "messages", Value: summary.Messages},
		{Key: "bytes_in", Value: summary.BytesIn},
		{Key: "duration_ms", Value: summary.DurationMs},
		{Key: "end_reason", Value: string(summary.EndReason)},
	}
	s.Logger.Info(fmt.Sprintf("%s session ended", s.Name), fields...)

	if s.Store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Store.Save(ctx, summary); err != nil {
		s.Logger.Warn("failed to record session summary", logger.Field{Key: "error", Value: err})
	}
}

// Close stops the server: it closes the listener and the active session, if
// any. It is safe to call more than once and before Start.
func (s *EchoServer) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	if session := s.session.Load(); session != nil {
		_ = session.Close()
	}

	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
	return err
}
