package protocol

import (
	"errors"
	"io"

	"github.com/blutspende/orchid"
	"google.golang.org/protobuf/encoding/protowire"
)

type VarintProtocolSettings struct {
	roundBufferSize int
	maxMessageSize  int
}

func DefaultVarintProtocolSettings() *VarintProtocolSettings {
	return &VarintProtocolSettings{
		roundBufferSize: 4096,
		maxMessageSize:  1024 * 1024,
	}
}

func (set *VarintProtocolSettings) SetRoundBufferSize(size int) *VarintProtocolSettings {
	set.roundBufferSize = size
	return set
}

func (set *VarintProtocolSettings) SetMaxMessageSize(size int) *VarintProtocolSettings {
	set.maxMessageSize = size
	return set
}

type varintDelimited struct {
	dispatcher
	settings *VarintProtocolSettings
}

// VarintDelimited frames messages with a protobuf base-128 varint length, the way
// length-delimited protobuf streams are written.
func VarintDelimited(handler Handler, settings ...*VarintProtocolSettings) Implementation {
	var thesettings *VarintProtocolSettings
	if len(settings) >= 1 {
		thesettings = settings[0]
	} else {
		thesettings = DefaultVarintProtocolSettings()
	}

	return &varintDelimited{
		dispatcher: dispatcher{handler: handler},
		settings:   thesettings,
	}
}

func (proto *varintDelimited) RoundBufferSize() int {
	return proto.settings.roundBufferSize
}

func (proto *varintDelimited) Classify(buffer []byte) orchid.Classification {
	size, n := protowire.ConsumeVarint(buffer)
	if n < 0 {
		if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
			return orchid.Incomplete
		}
		return orchid.Invalid
	}

	if size > uint64(proto.settings.maxMessageSize) {
		return orchid.Invalid
	}
	if uint64(len(buffer)-n) >= size {
		return orchid.Complete
	}
	return orchid.Incomplete
}

func (proto *varintDelimited) ConsumeComplete(conn *orchid.Connection, rs *orchid.ReadState) orchid.State {
	size, n := protowire.ConsumeVarint(rs.Buffer())
	frame := rs.Consume(n + int(size))

	proto.dataReceived(conn, frame[n:])
	return nextState(proto, rs)
}

func (proto *varintDelimited) Send(conn *orchid.Connection, data []byte) (int, error) {
	if len(data) > proto.settings.maxMessageSize {
		return 0, ErrMaxLenExceeded
	}
	return conn.Send(EncodeVarintDelimited(data))
}

// EncodeVarintDelimited prefixes data with its varint encoded length.
func EncodeVarintDelimited(data []byte) []byte {
	frame := make([]byte, 0, protowire.SizeVarint(uint64(len(data)))+len(data))
	frame = protowire.AppendVarint(frame, uint64(len(data)))
	return append(frame, data...)
}
