package protocol

import (
	"bytes"
	"errors"
	"io"
	"net"

	"github.com/blutspende/orchid"
	"github.com/gobwas/ws"
	"github.com/valyala/bytebufferpool"
)

type WebSocketProtocolSettings struct {
	roundBufferSize int
	maxPayloadSize  int64
	messageOpCode   ws.OpCode
}

func DefaultWebSocketProtocolSettings() *WebSocketProtocolSettings {
	return &WebSocketProtocolSettings{
		roundBufferSize: 4096,
		maxPayloadSize:  1024 * 1024,
		messageOpCode:   ws.OpBinary,
	}
}

func (set *WebSocketProtocolSettings) SetRoundBufferSize(size int) *WebSocketProtocolSettings {
	set.roundBufferSize = size
	return set
}

func (set *WebSocketProtocolSettings) SetMaxPayloadSize(size int64) *WebSocketProtocolSettings {
	set.maxPayloadSize = size
	return set
}

// SetTextMessages makes Send emit text frames instead of binary frames.
func (set *WebSocketProtocolSettings) SetTextMessages() *WebSocketProtocolSettings {
	set.messageOpCode = ws.OpText
	return set
}

type webSocket struct {
	dispatcher
	settings *WebSocketProtocolSettings
}

// WebSocket reads the server side of an already upgraded RFC 6455 connection. Every text or
// binary frame is one message; pings are answered and a close frame ends the connection.
// Fragmented messages are not supported and fail the connection.
func WebSocket(handler Handler, settings ...*WebSocketProtocolSettings) Implementation {
	var thesettings *WebSocketProtocolSettings
	if len(settings) >= 1 {
		thesettings = settings[0]
	} else {
		thesettings = DefaultWebSocketProtocolSettings()
	}

	return &webSocket{
		dispatcher: dispatcher{handler: handler},
		settings:   thesettings,
	}
}

// UpgradeWebSocket performs the HTTP upgrade handshake on a freshly accepted socket.
// Pass it to TCPServer.WithUpgrade.
func UpgradeWebSocket(conn net.Conn) error {
	_, err := ws.Upgrade(conn)
	return err
}

func (proto *webSocket) RoundBufferSize() int {
	return proto.settings.roundBufferSize
}

func (proto *webSocket) Classify(buffer []byte) orchid.Classification {
	header, err := ws.ReadHeader(bytes.NewReader(buffer))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return orchid.Incomplete
		}
		return orchid.Invalid
	}

	if ws.CheckHeader(header, ws.StateServerSide) != nil {
		return orchid.Invalid
	}
	if !header.Fin || header.OpCode == ws.OpContinuation {
		return orchid.Invalid
	}
	if header.Length > proto.settings.maxPayloadSize {
		return orchid.Invalid
	}

	if int64(len(buffer)) >= int64(ws.HeaderSize(header))+header.Length {
		return orchid.Complete
	}
	return orchid.Incomplete
}

func (proto *webSocket) ConsumeComplete(conn *orchid.Connection, rs *orchid.ReadState) orchid.State {
	header, err := ws.ReadHeader(bytes.NewReader(rs.Buffer()))
	if err != nil {
		return orchid.Error
	}

	headerSize := ws.HeaderSize(header)
	frame := rs.Consume(headerSize + int(header.Length))
	payload := frame[headerSize:]
	if header.Masked {
		ws.Cipher(payload, header.Mask, 0)
	}

	switch header.OpCode {
	case ws.OpText, ws.OpBinary:
		proto.dataReceived(conn, payload)
	case ws.OpPing:
		if err := proto.reply(conn, ws.NewPongFrame(payload)); err != nil {
			return orchid.LostConnection
		}
	case ws.OpClose:
		_ = proto.reply(conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))
		return orchid.LostConnection
	}

	return nextState(proto, rs)
}

func (proto *webSocket) Send(conn *orchid.Connection, data []byte) (int, error) {
	if int64(len(data)) > proto.settings.maxPayloadSize {
		return 0, ErrMaxLenExceeded
	}
	if err := proto.reply(conn, ws.NewFrame(proto.settings.messageOpCode, true, data)); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (proto *webSocket) reply(conn *orchid.Connection, frame ws.Frame) error {
	if conn == nil {
		return nil
	}

	buffer := bytebufferpool.Get()
	defer bytebufferpool.Put(buffer)

	if err := ws.WriteFrame(buffer, frame); err != nil {
		return err
	}
	_, err := conn.Send(buffer.B)
	return err
}
