// Package tcpclient implements the interactive echo client: it connects to the
// server, sends each operator line as one message, waits for the reply and
// stops once "Quit" has been answered with "Goodbye".
package tcpclient

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cyberinferno/go-echo/echoerr"
	"github.com/cyberinferno/go-echo/logger"
	"github.com/cyberinferno/go-echo/perfmonitor"
	"github.com/cyberinferno/go-echo/protocol"
)

var (
	// ErrNotConnected is returned by Exchange before Connect or after Close.
	ErrNotConnected = errors.New("not connected")
	// ErrMessageTooLarge is returned by Exchange for messages longer than
	// protocol.BufferSize; nothing is sent.
	ErrMessageTooLarge = fmt.Errorf("message exceeds %d bytes", protocol.BufferSize)
)

// Operator-facing text.
const (
	Prompt      = "Enter your message: "
	ReplyFormat = "Server replied: %s\n"
	ExitMessage = "Exiting..."
)

// ConnectionState represents the current state of the connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected
	Connecting                          // Dial in progress
	Connected                           // Connected to the server
	Closed                              // Client has been closed and cannot be reused
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnectionStateEvent is passed to the handler registered with OnConnectionState.
type ConnectionStateEvent struct {
	State     ConnectionState // The new connection state
	Address   string          // The remote address (e.g. "host:port")
	Timestamp time.Time       // When the state change occurred
	Error     error           // Non-nil if the state change was due to an error
}

// ConnectionStateHandler is called synchronously on every state change.
type ConnectionStateHandler func(event ConnectionStateEvent)

// Config holds configuration for the client.
type Config struct {
	// ConnectionTimeout bounds the dial; 0 means no timeout.
	ConnectionTimeout time.Duration
}

// DefaultConfig returns a Config with no timeouts, matching the fully blocking
// behaviour of the protocol.
func DefaultConfig() Config {
	return Config{}
}

// Client is a blocking echo client. It is meant to be driven by one goroutine;
// the mutex only guards state that Close and State may observe.
type Client struct {
	config Config
	log    logger.Logger

	mu                sync.Mutex
	conn              net.Conn
	address           string
	state             ConnectionState
	onConnectionState ConnectionStateHandler
}

// NewClient creates a client in Disconnected state.
//
// Parameters:
//   - config: Connection settings (e.g. from DefaultConfig)
//   - log: Logger for diagnostics
//
// Returns:
//   - A new *Client; call Connect to reach the server
func NewClient(config Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		log:    log,
		state:  Disconnected,
	}
}

// OnConnectionState registers the handler for connection state changes.
// Repeated calls replace the previous handler; nil clears it.
func (c *Client) OnConnectionState(handler ConnectionStateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnectionState = handler
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the server at host:port.
//
// Returns:
//   - nil on success; an error of kind echoerr.Connect if the server is
//     unreachable or refuses, or a plain error if the client is closed or
//     already connected
func (c *Client) Connect(host string, port int) error {
	c.mu.Lock()
	switch c.state {
	case Closed:
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	case Connected, Connecting:
		c.mu.Unlock()
		return fmt.Errorf("already connected or connecting")
	}
	c.address = net.JoinHostPort(host, strconv.Itoa(port))
	c.mu.Unlock()

	c.setState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.Dial("tcp", c.address)
	if err != nil {
		err = echoerr.New(echoerr.Connect, "dial "+c.address, err)
		c.setState(Disconnected, err)
		c.log.Error("connection failed", logger.Field{Key: "error", Value: err})
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(Connected, nil)
	c.log.Debug("connected to server", logger.Field{Key: "addr", Value: c.address})

	return nil
}

// Exchange sends message verbatim and blocks for the reply, which is read into
// a freshly zeroed buffer so a short reply never carries bytes of a longer one.
//
// Returns:
//   - The decoded reply
//   - ErrMessageTooLarge, ErrNotConnected, or an error of kind echoerr.Send
//     or echoerr.Read
func (c *Client) Exchange(message string) (string, error) {
	if len(message) > protocol.BufferSize {
		return "", ErrMessageTooLarge
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return "", ErrNotConnected
	}

	pm := perfmonitor.NewPerformanceMonitor()
	pm.Start()

	if _, err := conn.Write(protocol.Encode(message)); err != nil {
		return "", echoerr.New(echoerr.Send, "send message", err)
	}

	reply, _, err := protocol.ReadMessage(conn)
	if errors.Is(err, io.EOF) {
		return "", echoerr.New(echoerr.Read, "read reply", fmt.Errorf("server closed the connection: %w", err))
	}

	if err != nil {
		return "", echoerr.New(echoerr.Read, "read reply", err)
	}

	pm.Stop()
	c.log.Debug("exchange completed",
		logger.Field{Key: "message", Value: message},
		logger.Field{Key: "reply", Value: reply},
		logger.Field{Key: "rtt_ms", Value: pm.ElapsedMilliseconds()},
	)

	return reply, nil
}

// InteractLoop prompts on out for a line from in, exchanges it with the server
// and prints the reply, until the quit handshake completes. The connection is
// closed when the loop ends. End of input also ends the loop cleanly.
//
// Returns:
//   - nil after the quit handshake or end of input; otherwise the fatal
//     error from Exchange or from reading input
func (c *Client) InteractLoop(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(out, Prompt)
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			fmt.Fprintln(out)
			if !errors.Is(err, io.EOF) {
				_ = c.Close()
				return fmt.Errorf("failed to read input: %w", err)
			}

			c.log.Info("input closed, disconnecting")
			return c.Close()
		}

		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		reply, err := c.Exchange(line)
		if errors.Is(err, ErrMessageTooLarge) {
			fmt.Fprintf(out, "Message too long, limit is %d bytes\n", protocol.BufferSize)
			continue
		}

		if err != nil {
			c.log.Error("exchange failed", logger.Field{Key: "error", Value: err})
			_ = c.Close()
			return err
		}

		fmt.Fprintf(out, ReplyFormat, reply)

		if protocol.IsQuitHandshake(line, reply) {
			fmt.Fprintln(out, ExitMessage)
			return c.Close()
		}
	}
}

// Close closes the connection and moves to Closed state. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}

	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.setState(Closed, nil)
	return err
}

func (c *Client) setState(state ConnectionState, err error) {
	c.mu.Lock()
	c.state = state
	handler := c.onConnectionState
	event := ConnectionStateEvent{
		State:     state,
		Address:   c.address,
		Timestamp: time.Now(),
		Error:     err,
	}
	c.mu.Unlock()

	if handler != nil {
		handler(event)
	}
}
