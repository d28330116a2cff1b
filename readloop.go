package orchid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ReadLoop drives one connection: poll, receive, append, classify, consume, until the
// connection reaches a terminal state. It is not re-entrant and runs at most once.
type ReadLoop struct {
	conn      *Connection
	strategy  FramingStrategy
	transport Transport
	config    ReadLoopConfig
	state     *ReadState
	logger    zerolog.Logger
	started   atomic.Bool
	done      chan struct{}
}

func newReadLoop(conn *Connection, strategy FramingStrategy, transport Transport, config ReadLoopConfig) *ReadLoop {
	return &ReadLoop{
		conn:      conn,
		strategy:  strategy,
		transport: transport,
		config:    config.withDefaults(),
		state:     newReadState(),
		logger:    conn.logger,
		done:      make(chan struct{}),
	}
}

// Run blocks until the connection terminated. Cancelling ctx ends the loop like an orderly
// close from the peer. Calls after the first return immediately.
func (l *ReadLoop) Run(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	defer close(l.done)

	rs := l.state
	for !rs.state.IsTerminal() {
		if ctx.Err() != nil {
			l.logger.Debug().Msg("read loop cancelled")
			rs.state = LostConnection
			break
		}
		l.cycle()
	}

	l.terminate()
}

// Done is closed once Run returned.
func (l *ReadLoop) Done() <-chan struct{} {
	return l.done
}

func (l *ReadLoop) cycle() {
	rs := l.state

	if rs.state == None || rs.state == ReadAllData {
		rs.prime(l.strategy.RoundBufferSize())
	}

	readable, err := l.transport.Poll(l.config.PollTimeout)
	if err != nil {
		rs.fail(&TransportError{Op: "poll", Err: err})
		return
	}
	if !readable {
		runtime.Gosched()
		return
	}

	n, err := l.transport.Receive(rs.roundBuffer)
	if errors.Is(err, ErrWouldBlock) {
		return
	}
	if n > 0 {
		rs.commit(n)
		l.logger.Trace().Int("bytes", n).Int("buffered", rs.Len()).Msg("received")
		l.drain()
	}

	switch {
	case rs.state.IsTerminal():
	case errors.Is(err, io.EOF):
		rs.availableBytes = 0
		rs.state = LostConnection
	case err != nil:
		rs.fail(&TransportError{Op: "receive", Err: err})
	case n == 0:
		rs.availableBytes = 0
		rs.state = LostConnection
	}
}

// drain hands every complete frame that is already in memory to the strategy.
func (l *ReadLoop) drain() {
	rs := l.state

	for rs.Len() > 0 {
		var verdict Classification
		if err := l.guard("Classify", func() { verdict = l.strategy.Classify(rs.Buffer()) }); err != nil {
			rs.fail(err)
			return
		}

		switch verdict {
		case Incomplete:
			l.enforceLimit()
			return
		case Invalid:
			rs.fail(ErrProtocolViolation)
			return
		}

		before := rs.Len()
		rs.state = ReadAllData
		var next State
		if err := l.guard("ConsumeComplete", func() { next = l.strategy.ConsumeComplete(l.conn, rs) }); err != nil {
			rs.fail(err)
			return
		}
		l.logger.Trace().Stringer("next", next).Int("buffered", rs.Len()).Msg("frame consumed")

		switch next {
		case ReadAllData:
			if rs.Len() == before {
				rs.fail(fmt.Errorf("%w: complete frame was not consumed", ErrProtocolViolation))
				return
			}
			continue
		case Error:
			rs.fail(fmt.Errorf("%w: rejected by framing strategy", ErrProtocolViolation))
			return
		case LostConnection:
			rs.state = LostConnection
			return
		default:
			rs.state = AwaitingData
			l.enforceLimit()
			return
		}
	}
}

func (l *ReadLoop) enforceLimit() {
	rs := l.state
	if l.config.MaxBufferSize > 0 && rs.Len() > l.config.MaxBufferSize {
		rs.fail(fmt.Errorf("%w: %d bytes buffered, limit %d", ErrBufferLimitExceeded, rs.Len(), l.config.MaxBufferSize))
	}
}

func (l *ReadLoop) terminate() {
	rs := l.state

	if rs.state == Error {
		l.logger.Debug().Err(rs.lastError).Msg("read loop failed")
		_ = l.guard("OnError", func() { l.strategy.OnError(l.conn) })
	}

	if err := l.transport.Shutdown(); err != nil {
		l.logger.Debug().Err(err).Msg("shutdown")
	}

	_ = l.guard("OnDisconnect", func() { l.strategy.OnDisconnect(l.conn) })
	l.logger.Debug().Stringer("state", rs.state).Msg("connection closed")

	rs.release()
}

// guard runs a strategy callback and turns a panic into ErrStrategyPanic so that a faulty
// strategy only takes down its own connection.
func (l *ReadLoop) guard(callback string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrStrategyPanic, callback, r)
			l.logger.Error().Err(err).Str("stack", string(debug.Stack())).Msg("framing strategy panicked")
		}
	}()
	fn()
	return nil
}
