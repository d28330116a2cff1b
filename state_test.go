package orchid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateIsTerminal(t *testing.T) {
	assert.False(t, None.IsTerminal())
	assert.False(t, AwaitingData.IsTerminal())
	assert.False(t, ReadAllData.IsTerminal())
	assert.True(t, Error.IsTerminal())
	assert.True(t, LostConnection.IsTerminal())

	assert.Equal(t, "ReadAllData", ReadAllData.String())
	assert.Equal(t, "Unknown", State(42).String())
	assert.Equal(t, "Invalid", Invalid.String())
}

func TestReadStateConsume(t *testing.T) {
	rs := NewReadState([]byte("HelloWorld"))
	defer rs.release()

	assert.Equal(t, AwaitingData, rs.State())

	frame := rs.Consume(5)
	assert.Equal(t, []byte("Hello"), frame)
	assert.Equal(t, []byte("World"), rs.Buffer())

	// the returned frame does not alias the buffer
	frame[0] = 'J'
	assert.Equal(t, []byte("World"), rs.Buffer())

	assert.Equal(t, []byte("World"), rs.Consume(99))
	assert.Equal(t, 0, rs.Len())
	assert.Equal(t, []byte{}, rs.Consume(1))
}

func TestReadStateDiscard(t *testing.T) {
	rs := NewReadState([]byte("abcdef"))
	defer rs.release()

	rs.Discard(0)
	assert.Equal(t, "abcdef", string(rs.Buffer()))
	rs.Discard(-1)
	assert.Equal(t, "abcdef", string(rs.Buffer()))
	rs.Discard(2)
	assert.Equal(t, "cdef", string(rs.Buffer()))
	rs.Discard(10)
	assert.Equal(t, 0, rs.Len())
}

func TestReadStatePrimeAndCommit(t *testing.T) {
	rs := newReadState()
	assert.Equal(t, None, rs.State())

	rs.prime(4)
	assert.Equal(t, AwaitingData, rs.State())
	assert.Len(t, rs.roundBuffer, 4)

	copy(rs.roundBuffer, "abcd")
	rs.commit(3)
	assert.Equal(t, "abc", string(rs.Buffer()))
	assert.Equal(t, 3, rs.AvailableBytes())
	assert.Equal(t, []byte{0, 0, 0, 0}, rs.roundBuffer)

	copy(rs.roundBuffer, "zz")
	rs.prime(4)
	assert.Equal(t, []byte{0, 0, 0, 0}, rs.roundBuffer)

	rs.prime(8)
	assert.Len(t, rs.roundBuffer, 8)

	rs.release()
	assert.Nil(t, rs.Buffer())
	assert.Equal(t, 0, rs.Len())
}

func TestReadStateFail(t *testing.T) {
	rs := newReadState()
	defer rs.release()

	rs.fail(ErrProtocolViolation)
	assert.Equal(t, Error, rs.State())
	assert.ErrorIs(t, rs.LastError(), ErrProtocolViolation)
}
