package orchid

import (
	"errors"
	"fmt"
)

var (
	ErrProtocolViolation   = errors.New("protocol violation")
	ErrBufferLimitExceeded = errors.New("receive buffer limit exceeded")
	ErrStrategyPanic       = errors.New("framing strategy panicked")
	ErrWouldBlock          = errors.New("receive would block")
	ErrNoStrategy          = errors.New("framing strategy is required")
	ErrInvalidRoundBuffer  = errors.New("round buffer size must be greater than zero")
	ErrNotConnected        = errors.New("not connected")
	ErrServerRunning       = errors.New("server is already running")
)

// TransportError is a failure reported by the socket during poll or receive.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorTypeOf maps a terminal read loop error onto the ErrorType reported to handlers.
func ErrorTypeOf(err error) ErrorType {
	var te *TransportError
	switch {
	case err == nil:
		return ErrorInternal
	case errors.As(err, &te):
		return ErrorReceive
	case errors.Is(err, ErrBufferLimitExceeded):
		return ErrorBufferExhausted
	case errors.Is(err, ErrProtocolViolation):
		return ErrorProtocol
	default:
		return ErrorInternal
	}
}
