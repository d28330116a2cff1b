package protocol

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/blutspende/orchid"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientFrame(t *testing.T, frame ws.Frame) []byte {
	t.Helper()
	var buffer bytes.Buffer
	require.NoError(t, ws.WriteFrame(&buffer, ws.MaskFrame(frame)))
	return buffer.Bytes()
}

func TestWebSocketClassify(t *testing.T) {
	instance := WebSocket(nil, DefaultWebSocketProtocolSettings().SetMaxPayloadSize(16))

	complete := clientFrame(t, ws.NewTextFrame([]byte("Hello")))
	assert.Equal(t, orchid.Complete, instance.Classify(complete))
	assert.Equal(t, orchid.Incomplete, instance.Classify(complete[:1]))
	assert.Equal(t, orchid.Incomplete, instance.Classify(complete[:len(complete)-1]))

	var unmasked bytes.Buffer
	require.NoError(t, ws.WriteFrame(&unmasked, ws.NewTextFrame([]byte("Hello"))))
	assert.Equal(t, orchid.Invalid, instance.Classify(unmasked.Bytes()), "client frames must be masked")

	fragment := clientFrame(t, ws.NewFrame(ws.OpText, false, []byte("Hel")))
	assert.Equal(t, orchid.Invalid, instance.Classify(fragment))

	oversized := clientFrame(t, ws.NewBinaryFrame(make([]byte, 17)))
	assert.Equal(t, orchid.Invalid, instance.Classify(oversized))
}

func TestWebSocketDrainsPipelinedFrames(t *testing.T) {
	handler := newRecordingHandler()
	instance := WebSocket(handler)

	data := clientFrame(t, ws.NewTextFrame([]byte("first")))
	data = append(data, clientFrame(t, ws.NewPingFrame([]byte("p")))...)
	data = append(data, clientFrame(t, ws.NewBinaryFrame([]byte("second")))...)
	partial := clientFrame(t, ws.NewTextFrame([]byte("third")))
	data = append(data, partial[:4]...)

	rs, verdict := drive(t, instance, data)

	assert.Equal(t, orchid.Incomplete, verdict)
	assert.Equal(t, []string{"first", "second"}, handler.received())
	assert.Equal(t, partial[:4], rs.Buffer())
}

func TestWebSocketControlFramesOverConnection(t *testing.T) {
	handler := newRecordingHandler()
	instance := WebSocket(handler)
	conn, instrument := serve(t, instance)

	ping := clientFrame(t, ws.NewPingFrame([]byte("are you there")))
	go func() { _, _ = instrument.Write(ping) }()
	pong, err := ws.ReadFrame(instrument)
	require.NoError(t, err)
	assert.Equal(t, ws.OpPong, pong.Header.OpCode)
	assert.Equal(t, []byte("are you there"), pong.Payload)

	go func() { _, _ = instance.Send(conn, []byte("news")) }()
	message, err := ws.ReadFrame(instrument)
	require.NoError(t, err)
	assert.Equal(t, ws.OpBinary, message.Header.OpCode)
	assert.False(t, message.Header.Masked)
	assert.Equal(t, []byte("news"), message.Payload)

	goingAway := clientFrame(t, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusGoingAway, "")))
	go func() { _, _ = instrument.Write(goingAway) }()
	closing, err := ws.ReadFrame(instrument)
	require.NoError(t, err)
	assert.Equal(t, ws.OpClose, closing.Header.OpCode)

	handler.waitDisconnected(t)
	assert.Empty(t, handler.errorTypes())
}

type echoHandler struct {
	*recordingHandler
	protocol Implementation
}

func (h *echoHandler) DataReceived(conn *orchid.Connection, data []byte, receiveTimestamp time.Time) {
	h.recordingHandler.DataReceived(conn, data, receiveTimestamp)
	_, _ = h.protocol.Send(conn, data)
}

func TestWebSocketServerWithUpgrade(t *testing.T) {
	handler := &echoHandler{recordingHandler: newRecordingHandler()}
	handler.protocol = WebSocket(handler, DefaultWebSocketProtocolSettings().SetTextMessages())

	server := orchid.CreateNewTCPServerInstance("127.0.0.1:0", handler.protocol, orchid.NoLoadBalancer, 10).
		WithUpgrade(UpgradeWebSocket)
	require.NoError(t, server.Start())
	defer func() { require.NoError(t, server.Stop()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, _, _, err := ws.Dial(ctx, "ws://"+server.Addr().String()+"/")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, wsutil.WriteClientText(client, []byte("Hello over websocket")))

	reply, op, err := wsutil.ReadServerData(client)
	require.NoError(t, err)
	assert.Equal(t, ws.OpText, op)
	assert.Equal(t, "Hello over websocket", string(reply))
	assert.Equal(t, []string{"Hello over websocket"}, handler.received())
}
