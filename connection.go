package orchid

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var connectionCounter atomic.Uint64

// Connection owns one accepted socket and the read loop that serves it for its whole lifetime.
type Connection struct {
	id      uint64
	conn    net.Conn
	loop    *ReadLoop
	logger  zerolog.Logger
	writeMu sync.Mutex
}

// NewConnection wraps an accepted socket. The optional config replaces DefaultReadLoopSettings.
func NewConnection(conn net.Conn, strategy FramingStrategy, config ...ReadLoopConfig) (*Connection, error) {
	theconfig := DefaultReadLoopSettings
	if len(config) >= 1 {
		theconfig = config[0].withDefaults()
	}

	if strategy == nil {
		return nil, ErrNoStrategy
	}
	if strategy.RoundBufferSize() <= 0 {
		return nil, ErrInvalidRoundBuffer
	}

	return newConnection(conn, strategy, newTransport(conn, strategy.RoundBufferSize(), theconfig), theconfig), nil
}

func newConnection(conn net.Conn, strategy FramingStrategy, transport Transport, config ReadLoopConfig) *Connection {
	c := &Connection{
		id:   connectionCounter.Add(1),
		conn: conn,
	}
	c.logger = log.With().
		Uint64("conn", c.id).
		Str("remote", conn.RemoteAddr().String()).
		Logger()
	c.loop = newReadLoop(c, strategy, transport, config)
	return c
}

// Serve runs the read loop on the calling goroutine until the connection terminated.
func (c *Connection) Serve(ctx context.Context) {
	c.loop.Run(ctx)
}

// Start runs the read loop on its own goroutine.
func (c *Connection) Start(ctx context.Context) {
	go c.loop.Run(ctx)
}

// Done is closed after the read loop terminated and OnDisconnect returned.
func (c *Connection) Done() <-chan struct{} {
	return c.loop.Done()
}

func (c *Connection) ID() uint64 {
	return c.id
}

// ReadState exposes the buffering state. Only the read loop and the framing strategy
// callbacks running inside it may touch it.
func (c *Connection) ReadState() *ReadState {
	return c.loop.state
}

func (c *Connection) Logger() *zerolog.Logger {
	return &c.logger
}

// RemoteAddress returns the peer host without port.
func (c *Connection) RemoteAddress() string {
	addr := c.conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send writes data as is. Framing is up to the caller; concurrent calls are serialized.
func (c *Connection) Send(data []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(data)
}

// Write implements io.Writer on top of Send.
func (c *Connection) Write(p []byte) (int, error) {
	return c.Send(p)
}

// Close closes the socket from outside the loop. The loop notices on its next poll or
// receive and terminates through the error path.
func (c *Connection) Close() error {
	return c.conn.Close()
}
