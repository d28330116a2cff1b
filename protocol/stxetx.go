package protocol

import (
	"bytes"

	"github.com/blutspende/orchid"
)

type STXETXProtocolSettings struct {
	roundBufferSize int
	maxBufferSize   int
}

func DefaultSTXETXProtocolSettings() *STXETXProtocolSettings {
	return &STXETXProtocolSettings{
		roundBufferSize: 4096,
		maxBufferSize:   4096,
	}
}

func (set *STXETXProtocolSettings) SetRoundBufferSize(size int) *STXETXProtocolSettings {
	set.roundBufferSize = size
	return set
}

// SetMaxBufferSize bounds how many bytes may pile up without an ETX.
func (set *STXETXProtocolSettings) SetMaxBufferSize(size int) *STXETXProtocolSettings {
	set.maxBufferSize = size
	return set
}

type stxetx struct {
	dispatcher
	settings *STXETXProtocolSettings
}

// STXETX frames messages as <STX>data<ETX>. Bytes outside a frame are dropped and a later
// STX obsoletes everything before it.
func STXETX(handler Handler, settings ...*STXETXProtocolSettings) Implementation {
	var thesettings *STXETXProtocolSettings
	if len(settings) >= 1 {
		thesettings = settings[0]
	} else {
		thesettings = DefaultSTXETXProtocolSettings()
	}

	return &stxetx{
		dispatcher: dispatcher{handler: handler},
		settings:   thesettings,
	}
}

func (proto *stxetx) RoundBufferSize() int {
	return proto.settings.roundBufferSize
}

func (proto *stxetx) Classify(buffer []byte) orchid.Classification {
	if bytes.IndexByte(buffer, ETX) >= 0 {
		return orchid.Complete
	}
	if proto.settings.maxBufferSize > 0 && len(buffer) > proto.settings.maxBufferSize {
		return orchid.Invalid
	}
	return orchid.Incomplete
}

func (proto *stxetx) ConsumeComplete(conn *orchid.Connection, rs *orchid.ReadState) orchid.State {
	buffer := rs.Buffer()
	end := bytes.IndexByte(buffer, ETX)
	start := bytes.LastIndexByte(buffer[:end], STX)

	frame := rs.Consume(end + 1)
	if start < 0 {
		if conn != nil {
			conn.Logger().Debug().Int("bytes", len(frame)).Msg("dropping data without STX")
		}
		return nextState(proto, rs)
	}

	proto.dataReceived(conn, frame[start+1:end])
	return nextState(proto, rs)
}

func (proto *stxetx) Send(conn *orchid.Connection, data []byte) (int, error) {
	sendbytes := make([]byte, len(data)+2)
	sendbytes[0] = STX
	copy(sendbytes[1:], data)
	sendbytes[len(data)+1] = ETX
	return conn.Send(sendbytes)
}
