//go:build !(linux || darwin || freebsd)

package orchid

import "net"

func newReadinessTransport(conn net.Conn) (Transport, bool) {
	return nil, false
}
