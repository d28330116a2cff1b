package orchid

import (
	"github.com/valyala/bytebufferpool"
)

// State is the read state of one connection.
type State int

const (
	None State = iota
	AwaitingData
	ReadAllData
	Error
	LostConnection
)

func (s State) String() string {
	switch s {
	case None:
		return "None"
	case AwaitingData:
		return "AwaitingData"
	case ReadAllData:
		return "ReadAllData"
	case Error:
		return "Error"
	case LostConnection:
		return "LostConnection"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further receive may happen in this state.
func (s State) IsTerminal() bool {
	return s == Error || s == LostConnection
}

// ReadState is the buffering state of a single connection. It is owned by that connection's
// read loop; framing strategies may only shrink the buffer from the front (Consume/Discard).
type ReadState struct {
	buffer         *bytebufferpool.ByteBuffer
	roundBuffer    []byte
	availableBytes int
	lastError      error
	state          State
}

func newReadState() *ReadState {
	return &ReadState{
		buffer: bytebufferpool.Get(),
		state:  None,
	}
}

// NewReadState returns a detached state holding initial, for driving a FramingStrategy
// outside of a read loop.
func NewReadState(initial []byte) *ReadState {
	rs := newReadState()
	_, _ = rs.buffer.Write(initial)
	rs.state = AwaitingData
	return rs
}

// Buffer returns the bytes received but not yet consumed. The slice is only valid until the
// next Consume, Discard or receive.
func (rs *ReadState) Buffer() []byte {
	if rs.buffer == nil {
		return nil
	}
	return rs.buffer.B
}

func (rs *ReadState) Len() int {
	if rs.buffer == nil {
		return 0
	}
	return len(rs.buffer.B)
}

// Consume removes the first n bytes of the buffer and returns them as a fresh slice.
// n is clamped to the buffered length.
func (rs *ReadState) Consume(n int) []byte {
	b := rs.Buffer()
	if n > len(b) {
		n = len(b)
	}
	if n <= 0 {
		return []byte{}
	}
	frame := make([]byte, n)
	copy(frame, b[:n])
	rs.Discard(n)
	return frame
}

// Discard drops the first n bytes of the buffer.
func (rs *ReadState) Discard(n int) {
	b := rs.Buffer()
	if n > len(b) {
		n = len(b)
	}
	if n <= 0 {
		return
	}
	rest := copy(b, b[n:])
	rs.buffer.B = b[:rest]
}

// AvailableBytes is the byte count of the last receive.
func (rs *ReadState) AvailableBytes() int {
	return rs.availableBytes
}

func (rs *ReadState) LastError() error {
	return rs.lastError
}

func (rs *ReadState) State() State {
	return rs.state
}

// prime starts a fresh awaiting cycle with a zeroed round buffer of size bytes.
func (rs *ReadState) prime(size int) {
	if cap(rs.roundBuffer) != size {
		rs.roundBuffer = make([]byte, size)
	} else {
		rs.roundBuffer = rs.roundBuffer[:size]
		clear(rs.roundBuffer)
	}
	rs.state = AwaitingData
}

// commit appends the n bytes of the last receive to the buffer and resets the round buffer.
func (rs *ReadState) commit(n int) {
	rs.availableBytes = n
	if rs.buffer == nil {
		rs.buffer = bytebufferpool.Get()
	}
	_, _ = rs.buffer.Write(rs.roundBuffer[:n])
	clear(rs.roundBuffer)
	rs.state = AwaitingData
}

func (rs *ReadState) fail(err error) {
	rs.lastError = err
	rs.state = Error
}

func (rs *ReadState) release() {
	if rs.buffer != nil {
		bytebufferpool.Put(rs.buffer)
		rs.buffer = nil
	}
	rs.roundBuffer = nil
}
