package orchid

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pires/go-proxyproto"
	"github.com/rs/zerolog/log"
)

// TCPServer accepts connections and runs one read loop per connection on its own goroutine.
type TCPServer struct {
	listenAddress  string
	strategy       FramingStrategy
	proxy          ProxyType
	maxConnections int
	config         TCPServerConfiguration
	upgrade        func(net.Conn) error

	listener     net.Listener
	ctx          context.Context
	cancel       context.CancelFunc
	isRunning    atomic.Bool
	sessionCount atomic.Int32
	sessions     sync.Map
	sessionsWG   sync.WaitGroup
	acceptDone   chan struct{}
}

func CreateNewTCPServerInstance(listenAddress string, strategy FramingStrategy, proxy ProxyType,
	maxConnections int, config ...TCPServerConfiguration) *TCPServer {
	theconfig := DefaultTCPServerSettings
	if len(config) >= 1 {
		theconfig = config[0]
	}

	return &TCPServer{
		listenAddress:  listenAddress,
		strategy:       strategy,
		proxy:          proxy,
		maxConnections: maxConnections,
		config:         theconfig,
	}
}

// WithUpgrade installs a handshake that runs on every accepted socket before its read loop
// starts, on the connection's goroutine. A failing upgrade drops the socket.
func (s *TCPServer) WithUpgrade(upgrade func(net.Conn) error) *TCPServer {
	s.upgrade = upgrade
	return s
}

// Start listens and returns once the accept loop is running.
func (s *TCPServer) Start() error {
	if s.strategy == nil {
		return ErrNoStrategy
	}
	if s.isRunning.Load() {
		return ErrServerRunning
	}

	listener, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		return err
	}

	if s.proxy == HAProxySendProxyV2 {
		listener = &proxyproto.Listener{
			Listener:          listener,
			ReadHeaderTimeout: s.config.ProxyHeaderTimeout,
		}
	}

	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.acceptDone = make(chan struct{})
	s.isRunning.Store(true)

	log.Info().Str("address", listener.Addr().String()).Stringer("proxy", s.proxy).Msg("tcp server listening")

	go s.acceptLoop()
	return nil
}

// Run starts the server and blocks until Stop was called.
func (s *TCPServer) Run() error {
	if err := s.Start(); err != nil {
		return err
	}
	<-s.acceptDone
	return nil
}

// Stop closes the listener, cancels every read loop and waits for them to finish,
// at most ShutdownTimeout.
func (s *TCPServer) Stop() error {
	if !s.isRunning.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()
	err := s.listener.Close()
	<-s.acceptDone

	done := make(chan struct{})
	go func() {
		s.sessionsWG.Wait()
		close(done)
	}()

	if s.config.ShutdownTimeout > 0 {
		select {
		case <-done:
		case <-time.After(s.config.ShutdownTimeout):
			log.Warn().Int32("sessions", s.sessionCount.Load()).Msg("timeout waiting for connections to close")
		}
	} else {
		<-done
	}

	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *TCPServer) SessionCount() int {
	return int(s.sessionCount.Load())
}

// FindConnectionsByIp returns the live connections whose peer host equals ip.
func (s *TCPServer) FindConnectionsByIp(ip string) []*Connection {
	connections := make([]*Connection, 0)
	s.sessions.Range(func(_, value any) bool {
		if c, ok := value.(*Connection); ok && c.RemoteAddress() == ip {
			connections = append(connections, c)
		}
		return true
	})
	return connections
}

func (s *TCPServer) acceptLoop() {
	defer close(s.acceptDone)

	retry := &backoff.Backoff{
		Min:    s.config.AcceptBackoffMin,
		Max:    s.config.AcceptBackoffMax,
		Factor: 2,
		Jitter: true,
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !s.isRunning.Load() {
				return
			}
			delay := retry.Duration()
			log.Warn().Err(err).Stringer("type", ErrorAccept).Dur("retry", delay).Msg("accept failed")
			select {
			case <-time.After(delay):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		retry.Reset()

		if s.maxConnections > 0 && s.SessionCount() >= s.maxConnections {
			log.Warn().Stringer("type", ErrorMaxConnections).Int("max", s.maxConnections).Msg("max connection reached, forcing disconnect")
			_ = conn.Close()
			continue
		}

		s.sessionCount.Add(1)
		s.sessionsWG.Add(1)
		go s.serveConnection(conn)
	}
}

func (s *TCPServer) serveConnection(conn net.Conn) {
	defer func() {
		s.sessionCount.Add(-1)
		s.sessionsWG.Done()
	}()

	if s.upgrade != nil {
		if err := s.runUpgrade(conn); err != nil {
			log.Warn().Err(err).Stringer("type", ErrorCreateSession).Msg("connection upgrade failed")
			_ = conn.Close()
			return
		}
	}

	session, err := NewConnection(conn, s.strategy, s.config.ReadLoop)
	if err != nil {
		log.Error().Err(err).Stringer("type", ErrorCreateSession).Msg("can not create session")
		_ = conn.Close()
		return
	}

	s.sessions.Store(session.ID(), session)
	defer s.sessions.Delete(session.ID())

	session.logger.Debug().Msg("connection accepted")
	session.Serve(s.ctx)
}

func (s *TCPServer) runUpgrade(conn net.Conn) error {
	if s.config.HandshakeTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.config.HandshakeTimeout)); err != nil {
			return err
		}
		defer conn.SetDeadline(time.Time{})
	}
	return s.upgrade(conn)
}
