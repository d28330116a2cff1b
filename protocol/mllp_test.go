package protocol

import (
	"io"
	"testing"
	"time"

	"github.com/blutspende/orchid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMLLPProtocolReceive(t *testing.T) {
	handler := newRecordingHandler()
	_, instrument := serve(t, Logger(MLLP(handler)))

	_, err := instrument.Write([]byte("\x0BHello\x0D"))
	require.NoError(t, err)
	_, err = instrument.Write([]byte("IsItMeYoureLookingFor\x0D"))
	require.NoError(t, err)
	_, err = instrument.Write([]byte("Done\x1C\x0D"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(handler.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Hello\x0DIsItMeYoureLookingFor\x0DDone"}, handler.received())
}

func TestMLLPProtocolReceiveWithExtraPrecedingCharacters(t *testing.T) {
	handler := newRecordingHandler()
	instance := MLLP(handler)

	rs, verdict := drive(t, instance, []byte("IShouldBeIgnored\x0BHello\x0DDone\x1C\x0D\x0BSecond\x1C\x0D\x0BPart"))

	assert.Equal(t, orchid.Incomplete, verdict)
	// without start and end byte
	assert.Equal(t, []string{"Hello\x0DDone", "Second"}, handler.received())
	assert.Equal(t, "\x0BPart", string(rs.Buffer()))
}

func TestMLLPProtocolLateLineBreakIsDropped(t *testing.T) {
	handler := newRecordingHandler()
	instance := MLLP(handler)

	rs, _ := drive(t, instance, []byte("\x0BFirst\x1C"))
	require.Equal(t, []string{"First"}, handler.received())
	require.Equal(t, 0, rs.Len())

	_, verdict := drive(t, instance, []byte("\x0D\x0BSecond\x1C\x0D"))
	assert.Equal(t, orchid.Incomplete, verdict)
	assert.Equal(t, []string{"First", "Second"}, handler.received())
}

func TestMLLPProtocolCustomBytes(t *testing.T) {
	handler := newRecordingHandler()
	settings := DefaultMLLPProtocolSettings().SetStartByte(STX).SetEndByte(ETX).SetLineBreakByte(LF)
	instance := MLLP(handler, settings)

	_, verdict := drive(t, instance, []byte("\x02Custom\x03\x0A"))
	assert.Equal(t, orchid.Incomplete, verdict)
	assert.Equal(t, []string{"Custom"}, handler.received())
}

func TestMLLPProtocolSend(t *testing.T) {
	handler := newRecordingHandler()
	instance := Logger(MLLP(handler))
	conn, instrument := serve(t, instance)

	go func() { _, _ = instance.Send(conn, []byte("First frame\x0DLast frame")) }()

	received := make([]byte, 25)
	_, err := io.ReadFull(instrument, received)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x0BFirst frame\x0DLast frame\x1C\x0D"), received)
}
