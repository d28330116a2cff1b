//go:build linux || darwin || freebsd

package orchid

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// readinessTransport polls the raw socket with poll(2) and receives with a single
// non-blocking read(2). Only plain TCP and unix sockets qualify: wrapped conns may hold
// bytes in user space that the descriptor knows nothing about.
type readinessTransport struct {
	conn net.Conn
	raw  syscall.RawConn
}

func newReadinessTransport(conn net.Conn) (Transport, bool) {
	var sc syscall.Conn
	switch c := conn.(type) {
	case *net.TCPConn:
		sc = c
	case *net.UnixConn:
		sc = c
	default:
		return nil, false
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, false
	}
	return &readinessTransport{conn: conn, raw: raw}, true
}

func (t *readinessTransport) Poll(timeout time.Duration) (readable bool, err error) {
	ms := int(timeout / time.Millisecond)
	if ms < 1 {
		ms = 1
	}

	cerr := t.raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, perr := unix.Poll(fds, ms)
		switch {
		case errors.Is(perr, unix.EINTR):
			return
		case perr != nil:
			err = perr
			return
		case n == 0:
			return
		}

		revents := fds[0].Revents
		if revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			readable = true
			return
		}
		if revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			err = pendingSocketError(int(fd))
		}
	})
	if cerr != nil {
		return false, cerr
	}
	return readable, err
}

func (t *readinessTransport) Receive(p []byte) (n int, err error) {
	cerr := t.raw.Read(func(fd uintptr) bool {
		n, err = unix.Read(int(fd), p)
		return true
	})
	if cerr != nil {
		return 0, cerr
	}

	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (t *readinessTransport) Shutdown() error {
	return shutdownConn(t.conn)
}

func pendingSocketError(fd int) error {
	code, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if code != 0 {
		return syscall.Errno(code)
	}
	return errors.New("socket reported an error condition")
}
