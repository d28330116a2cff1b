package orchid

import (
	"time"
)

// ReadLoopConfig tunes one connection's read loop.
type ReadLoopConfig struct {
	// PollTimeout bounds a single readiness check. Cancellation is observed within one timeout.
	PollTimeout time.Duration
	// MaxBufferSize caps the accumulated, not yet consumed bytes. 0 keeps the default cap,
	// a negative value disables it.
	MaxBufferSize int
	// ReadinessPoll selects the fd based poller where the platform and the conn allow it.
	// Each poll blocks an OS thread for up to PollTimeout, one per connection.
	ReadinessPoll bool
}

type TCPServerConfiguration struct {
	ReadLoop           ReadLoopConfig
	AcceptBackoffMin   time.Duration
	AcceptBackoffMax   time.Duration
	ShutdownTimeout    time.Duration
	ProxyHeaderTimeout time.Duration
	HandshakeTimeout   time.Duration
}

var DefaultReadLoopSettings = ReadLoopConfig{
	PollTimeout:   time.Millisecond * 100,
	MaxBufferSize: 4 * 1024 * 1024,
	ReadinessPoll: false,
}

// withDefaults fills unset fields from DefaultReadLoopSettings.
func (c ReadLoopConfig) withDefaults() ReadLoopConfig {
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultReadLoopSettings.PollTimeout
	}
	if c.MaxBufferSize == 0 {
		c.MaxBufferSize = DefaultReadLoopSettings.MaxBufferSize
	}
	return c
}

type TCPClientConfiguration struct {
	ReadLoop            ReadLoopConfig
	DialTimeout         time.Duration
	ReconnectBackoffMin time.Duration
	ReconnectBackoffMax time.Duration
}

var DefaultTCPClientSettings = TCPClientConfiguration{
	ReadLoop:            DefaultReadLoopSettings,
	DialTimeout:         time.Second * 5,
	ReconnectBackoffMin: time.Millisecond * 100,
	ReconnectBackoffMax: time.Second * 30,
}

var DefaultTCPServerSettings = TCPServerConfiguration{
	ReadLoop:           DefaultReadLoopSettings,
	AcceptBackoffMin:   time.Millisecond * 5,
	AcceptBackoffMax:   time.Second,
	ShutdownTimeout:    time.Second * 5,
	ProxyHeaderTimeout: time.Second * 3,
	HandshakeTimeout:   time.Second * 5,
}

type ProxyType int

const (
	NoLoadBalancer     ProxyType = 1
	HAProxySendProxyV2 ProxyType = 2
)

func (p ProxyType) String() string {
	switch p {
	case NoLoadBalancer:
		return "none"
	case HAProxySendProxyV2:
		return "haproxy-v2"
	default:
		return "unknown"
	}
}

type ErrorType int

const (
	ErrorConnect         ErrorType = 1 // client only
	ErrorReceive         ErrorType = 3
	ErrorInternal        ErrorType = 5
	ErrorAccept          ErrorType = 7 // error for Server
	ErrorMaxConnections  ErrorType = 8
	ErrorCreateSession   ErrorType = 9 // server only
	ErrorProtocol        ErrorType = 10
	ErrorBufferExhausted ErrorType = 11
)

func (e ErrorType) String() string {
	switch e {
	case ErrorConnect:
		return "connect"
	case ErrorReceive:
		return "receive"
	case ErrorInternal:
		return "internal"
	case ErrorAccept:
		return "accept"
	case ErrorMaxConnections:
		return "max-connections"
	case ErrorCreateSession:
		return "create-session"
	case ErrorProtocol:
		return "protocol"
	case ErrorBufferExhausted:
		return "buffer-exhausted"
	default:
		return "unknown"
	}
}
