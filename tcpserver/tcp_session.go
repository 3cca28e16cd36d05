package tcpserver

import (
	"net"
	"sync"

	"github.com/cyberinferno/go-echo/logger"
)

// Session is the one accepted connection of an EchoServer. It owns the
// connection exclusively; Close releases it and is safe to call more than once.
type Session struct {
	id   uint32
	conn net.Conn
	log  logger.Logger

	closeOnce sync.Once
	closeErr  error
}

func newSession(id uint32, conn net.Conn, log logger.Logger) *Session {
	return &Session{
		id:   id,
		conn: conn,
		log: log.With(
			logger.Field{Key: "session", Value: id},
			logger.Field{Key: "remote", Value: conn.RemoteAddr().String()},
		),
	}
}

// ID returns the session's identifier assigned by the server.
func (s *Session) ID() uint32 {
	return s.id
}

// RemoteAddr returns the client's address.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// Send writes data to the client.
func (s *Session) Send(data []byte) error {
	_, err := s.conn.Write(data)
	return err
}

// Close closes the connection.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		s.log.Debug("session closed")
	})

	return s.closeErr
}
