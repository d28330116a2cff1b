package protocol

import (
	"testing"
	"time"

	"github.com/blutspende/orchid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawDeliversEveryReceive(t *testing.T) {
	handler := newRecordingHandler()
	instance := Raw(handler)

	assert.Equal(t, orchid.Incomplete, instance.Classify(nil))

	rs, verdict := drive(t, instance, []byte("\x02anything\x03goes"))
	assert.Equal(t, orchid.Incomplete, verdict)
	assert.Equal(t, 0, rs.Len())
	assert.Equal(t, []string{"\x02anything\x03goes"}, handler.received())
}

func TestRawOverConnection(t *testing.T) {
	handler := newRecordingHandler()
	_, instrument := serve(t, Raw(handler, DefaultRawProtocolSettings().SetRoundBufferSize(4)))

	_, err := instrument.Write([]byte("abcdefgh"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		received := ""
		for _, chunk := range handler.received() {
			received += chunk
		}
		return received == "abcdefgh"
	}, time.Second, 5*time.Millisecond)

	for _, chunk := range handler.received() {
		assert.LessOrEqual(t, len(chunk), 4)
	}
}
