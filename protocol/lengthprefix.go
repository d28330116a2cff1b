package protocol

import (
	"encoding/binary"
	"errors"

	"github.com/blutspende/orchid"
)

// LengthPrefixHeaderSize is the size of the length field. The length counts itself.
const LengthPrefixHeaderSize = 2

var ErrMaxLenExceeded = errors.New("maximum message length exceeded")

type LengthPrefixProtocolSettings struct {
	roundBufferSize int
	maxFrameSize    int
	byteOrder       binary.ByteOrder
}

func DefaultLengthPrefixProtocolSettings() *LengthPrefixProtocolSettings {
	return &LengthPrefixProtocolSettings{
		roundBufferSize: 1024,
		maxFrameSize:    1024,
		byteOrder:       binary.LittleEndian,
	}
}

func (set *LengthPrefixProtocolSettings) SetRoundBufferSize(size int) *LengthPrefixProtocolSettings {
	set.roundBufferSize = size
	return set
}

// SetMaxFrameSize bounds the declared frame length, header included. Values above 65535
// can not be expressed by the header and are clamped.
func (set *LengthPrefixProtocolSettings) SetMaxFrameSize(size int) *LengthPrefixProtocolSettings {
	if size > 0xFFFF {
		size = 0xFFFF
	}
	set.maxFrameSize = size
	return set
}

func (set *LengthPrefixProtocolSettings) SetByteOrder(order binary.ByteOrder) *LengthPrefixProtocolSettings {
	set.byteOrder = order
	return set
}

type lengthPrefix struct {
	dispatcher
	settings *LengthPrefixProtocolSettings
}

// LengthPrefix frames messages with a 2-byte length that includes the length field itself.
// Declared lengths below 2 or above the max frame size are protocol violations.
func LengthPrefix(handler Handler, settings ...*LengthPrefixProtocolSettings) Implementation {
	var thesettings *LengthPrefixProtocolSettings
	if len(settings) >= 1 {
		thesettings = settings[0]
	} else {
		thesettings = DefaultLengthPrefixProtocolSettings()
	}

	return &lengthPrefix{
		dispatcher: dispatcher{handler: handler},
		settings:   thesettings,
	}
}

func (proto *lengthPrefix) RoundBufferSize() int {
	return proto.settings.roundBufferSize
}

func (proto *lengthPrefix) Classify(buffer []byte) orchid.Classification {
	if len(buffer) < LengthPrefixHeaderSize {
		return orchid.Incomplete
	}

	size := int(proto.settings.byteOrder.Uint16(buffer))
	if size < LengthPrefixHeaderSize || size > proto.settings.maxFrameSize {
		return orchid.Invalid
	}

	if len(buffer) >= size {
		return orchid.Complete
	}
	return orchid.Incomplete
}

func (proto *lengthPrefix) ConsumeComplete(conn *orchid.Connection, rs *orchid.ReadState) orchid.State {
	size := int(proto.settings.byteOrder.Uint16(rs.Buffer()))
	frame := rs.Consume(size)

	proto.dataReceived(conn, frame[LengthPrefixHeaderSize:])

	return nextState(proto, rs)
}

func (proto *lengthPrefix) Send(conn *orchid.Connection, data []byte) (int, error) {
	frame, err := proto.Encode(data)
	if err != nil {
		return 0, err
	}
	return conn.Send(frame)
}

// Encode prefixes data with its length header.
func (proto *lengthPrefix) Encode(data []byte) ([]byte, error) {
	return EncodeLengthPrefix(data, proto.settings)
}

// EncodeLengthPrefix frames data for a peer that reads with LengthPrefix.
func EncodeLengthPrefix(data []byte, settings ...*LengthPrefixProtocolSettings) ([]byte, error) {
	thesettings := DefaultLengthPrefixProtocolSettings()
	if len(settings) >= 1 {
		thesettings = settings[0]
	}

	size := len(data) + LengthPrefixHeaderSize
	if size > thesettings.maxFrameSize {
		return nil, ErrMaxLenExceeded
	}

	frame := make([]byte, size)
	thesettings.byteOrder.PutUint16(frame, uint16(size))
	copy(frame[LengthPrefixHeaderSize:], data)
	return frame, nil
}

// nextState tells the read loop whether another complete frame is already buffered.
func nextState(strategy orchid.FramingStrategy, rs *orchid.ReadState) orchid.State {
	if rs.Len() > 0 && strategy.Classify(rs.Buffer()) == orchid.Complete {
		return orchid.ReadAllData
	}
	return orchid.AwaitingData
}
