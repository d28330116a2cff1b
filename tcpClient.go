package orchid

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

// TCPClient dials a server and serves the resulting socket with the same read loop a
// TCPServer uses. One client holds at most one connection at a time.
type TCPClient struct {
	address  string
	strategy FramingStrategy
	config   TCPClientConfiguration

	mu      sync.Mutex
	current *Connection
	cancel  context.CancelFunc
	stopped bool
}

func CreateNewTCPClient(address string, strategy FramingStrategy, config ...TCPClientConfiguration) *TCPClient {
	theconfig := DefaultTCPClientSettings
	if len(config) >= 1 {
		theconfig = config[0]
	}

	return &TCPClient{
		address:  address,
		strategy: strategy,
		config:   theconfig,
	}
}

// Connect dials once and starts the read loop on its own goroutine.
func (c *TCPClient) Connect(ctx context.Context) (*Connection, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	conn.Start(ctx)
	return conn, nil
}

// Run keeps the client connected until ctx is cancelled or Stop is called. After every
// disconnect or failed dial it reconnects with exponential backoff.
func (c *TCPClient) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.cancel = cancel
	c.mu.Unlock()

	retry := &backoff.Backoff{
		Min:    c.config.ReconnectBackoffMin,
		Max:    c.config.ReconnectBackoffMax,
		Factor: 2,
		Jitter: true,
	}

	for {
		conn, err := c.dial(ctx)
		if err == nil {
			retry.Reset()
			conn.Serve(ctx)
		} else if ctx.Err() == nil {
			log.Warn().Err(err).Stringer("type", ErrorConnect).Str("address", c.address).Msg("connect failed")
		}

		if ctx.Err() != nil {
			return nil
		}

		select {
		case <-time.After(retry.Duration()):
		case <-ctx.Done():
			return nil
		}
	}
}

// Stop ends Run and closes the current connection.
func (c *TCPClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.current != nil {
		_ = c.current.Close()
	}
}

// Connection returns the most recent connection, nil before the first successful dial.
func (c *TCPClient) Connection() *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Send writes data to the current connection as is.
func (c *TCPClient) Send(data []byte) (int, error) {
	conn := c.Connection()
	if conn == nil {
		return 0, ErrNotConnected
	}
	return conn.Send(data)
}

func (c *TCPClient) dial(ctx context.Context) (*Connection, error) {
	dialer := net.Dialer{Timeout: c.config.DialTimeout}
	socket, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, err
	}

	conn, err := NewConnection(socket, c.strategy, c.config.ReadLoop)
	if err != nil {
		_ = socket.Close()
		return nil, err
	}

	c.mu.Lock()
	c.current = conn
	c.mu.Unlock()

	conn.Logger().Debug().Str("address", c.address).Msg("connected")
	return conn, nil
}
