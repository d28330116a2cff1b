package protocol

import (
	"io"
	"testing"
	"time"

	"github.com/blutspende/orchid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSTXETXClassify(t *testing.T) {
	instance := STXETX(nil, DefaultSTXETXProtocolSettings().SetMaxBufferSize(8))

	assert.Equal(t, orchid.Incomplete, instance.Classify([]byte("\x02Hello")))
	assert.Equal(t, orchid.Complete, instance.Classify([]byte("\x02Hello\x03")))
	assert.Equal(t, orchid.Complete, instance.Classify([]byte("garbage\x03")))
	assert.Equal(t, orchid.Invalid, instance.Classify([]byte("\x02123456789")))
}

func TestSTXETXIgnoresDataOutsideFrames(t *testing.T) {
	handler := newRecordingHandler()
	instance := STXETX(handler)

	rs, verdict := drive(t, instance, []byte("IShouldBeIgnored\x02First\x03noise\x03\x02old\x02Second\x03\x02Thi"))

	assert.Equal(t, orchid.Incomplete, verdict)
	assert.Equal(t, []string{"First", "Second"}, handler.received())
	assert.Equal(t, "\x02Thi", string(rs.Buffer()))
}

func TestSTXETXOverConnection(t *testing.T) {
	handler := newRecordingHandler()
	instance := STXETX(handler)
	conn, instrument := serve(t, instance)

	_, err := instrument.Write([]byte("\x02Hel"))
	require.NoError(t, err)
	_, err = instrument.Write([]byte("lo\x03\x02World\x03"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(handler.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Hello", "World"}, handler.received())

	reply := make([]byte, 5)
	go func() { _, _ = instance.Send(conn, []byte("ACK")) }()
	_, err = io.ReadFull(instrument, reply)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x02ACK\x03"), reply)
}
