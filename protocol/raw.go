package protocol

import (
	"github.com/blutspende/orchid"
)

type RawProtocolSettings struct {
	roundBufferSize int
}

func DefaultRawProtocolSettings() *RawProtocolSettings {
	return &RawProtocolSettings{
		roundBufferSize: 4096,
	}
}

func (set *RawProtocolSettings) SetRoundBufferSize(size int) *RawProtocolSettings {
	set.roundBufferSize = size
	return set
}

type rawprotocol struct {
	dispatcher
	settings *RawProtocolSettings
}

// Raw passes incoming data on unchanged: whatever one receive delivered is one message.
func Raw(handler Handler, settings ...*RawProtocolSettings) Implementation {
	var thesettings *RawProtocolSettings
	if len(settings) >= 1 {
		thesettings = settings[0]
	} else {
		thesettings = DefaultRawProtocolSettings()
	}

	return &rawprotocol{
		dispatcher: dispatcher{handler: handler},
		settings:   thesettings,
	}
}

func (proto *rawprotocol) RoundBufferSize() int {
	return proto.settings.roundBufferSize
}

func (proto *rawprotocol) Classify(buffer []byte) orchid.Classification {
	if len(buffer) == 0 {
		return orchid.Incomplete
	}
	return orchid.Complete
}

func (proto *rawprotocol) ConsumeComplete(conn *orchid.Connection, rs *orchid.ReadState) orchid.State {
	proto.dataReceived(conn, rs.Consume(rs.Len()))
	return orchid.AwaitingData
}

func (proto *rawprotocol) Send(conn *orchid.Connection, data []byte) (int, error) {
	return conn.Send(data)
}
