package orchid

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Transport is the socket side of a read loop: a short readiness check followed by a
// receive that never waits for data.
type Transport interface {
	// Poll waits at most timeout for the socket to become readable. A peer close counts
	// as readable; Receive then reports io.EOF.
	Poll(timeout time.Duration) (readable bool, err error)
	// Receive reads what is available into p. ErrWouldBlock means nothing was available.
	Receive(p []byte) (int, error)
	// Shutdown closes both directions and releases the socket.
	Shutdown() error
}

func newTransport(conn net.Conn, roundBufferSize int, config ReadLoopConfig) Transport {
	if config.ReadinessPoll {
		if transport, ok := newReadinessTransport(conn); ok {
			return transport
		}
	}
	return newDeadlineTransport(conn, roundBufferSize)
}

// deadlineTransport polls by peeking one byte under a read deadline. Once the peek
// succeeded the bytes sit in the bufio.Reader and a Read returns them without blocking.
type deadlineTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	eof    bool
}

func newDeadlineTransport(conn net.Conn, roundBufferSize int) *deadlineTransport {
	return &deadlineTransport{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, roundBufferSize),
	}
}

func (t *deadlineTransport) Poll(timeout time.Duration) (bool, error) {
	if t.eof || t.reader.Buffered() > 0 {
		return true, nil
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}

	_, err := t.reader.Peek(1)
	switch {
	case err == nil:
		return true, nil
	case isTimeout(err):
		return false, nil
	case errors.Is(err, io.EOF):
		t.eof = true
		return true, nil
	default:
		return false, err
	}
}

func (t *deadlineTransport) Receive(p []byte) (int, error) {
	if t.reader.Buffered() == 0 {
		if t.eof {
			return 0, io.EOF
		}
		return 0, ErrWouldBlock
	}
	return t.reader.Read(p)
}

func (t *deadlineTransport) Shutdown() error {
	return shutdownConn(t.conn)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// shutdownConn half-closes both directions where the conn supports it and closes it.
func shutdownConn(conn net.Conn) error {
	var errs []error
	if c, ok := conn.(interface{ CloseWrite() error }); ok {
		errs = append(errs, c.CloseWrite())
	}
	if c, ok := conn.(interface{ CloseRead() error }); ok {
		errs = append(errs, c.CloseRead())
	}
	errs = append(errs, conn.Close())
	return errors.Join(errs...)
}
