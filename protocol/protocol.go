// Package protocol holds the wire contract shared by the echo server and
// client: raw unframed bytes read into a fixed-size buffer and interpreted as
// NUL-terminated text, plus the "Quit"/"Goodbye" handshake.
package protocol

import (
	"bytes"
	"io"
)

const (
	// BufferSize is the capacity of every receive buffer. A message longer than
	// this cannot be carried in a single turn.
	BufferSize = 1024

	QuitMessage  = "Quit"
	GoodbyeReply = "Goodbye"
	OKReply      = "OK"
)

// DefaultServerPort and DefaultClientPort are the ports the two programs use
// when none is configured. The client default of 123 does not match the
// server's 12345, so a client run without -port cannot reach a server run
// with defaults. echo-client warns about this at startup.
const (
	DefaultServerPort = 12345
	DefaultClientPort = 123
	DefaultClientHost = "127.0.0.1"
)

// Reply returns the server's reply for a decoded message and whether the
// message ends the session.
func Reply(message string) (reply string, quit bool) {
	if message == QuitMessage {
		return GoodbyeReply, true
	}

	return OKReply, false
}

// IsQuitHandshake reports whether a sent message and the reply received for it
// form the session-ending handshake.
func IsQuitHandshake(sent, reply string) bool {
	return sent == QuitMessage && reply == GoodbyeReply
}

// Encode returns the bytes to put on the wire for message. An empty message is
// sent as a single NUL byte, because a zero-length write puts nothing on a
// stream and the peer would never see the turn.
func Encode(message string) []byte {
	if message == "" {
		return []byte{0}
	}

	return []byte(message)
}

// Decode interprets buf as NUL-terminated text. It returns everything before
// the first zero byte, or the whole buffer when there is none.
func Decode(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i != -1 {
		return string(buf[:i])
	}

	return string(buf)
}

// ReadMessage performs a single read of at most BufferSize bytes from r into a
// freshly zeroed buffer, so nothing from an earlier turn can leak into the
// result. It returns the raw byte count alongside the decoded text. A
// zero-length read is reported as io.EOF.
func ReadMessage(r io.Reader) (string, int, error) {
	buf := make([]byte, BufferSize)
	n, err := r.Read(buf)
	if n > 0 {
		return Decode(buf[:n]), n, nil
	}

	if err == nil {
		err = io.EOF
	}

	return "", 0, err
}
