/*
Implementation of the minimal Low Level Protocol.

In order to introduce message orientation to a stream-oriented TCP/IP protocol, a
Minimal Low-Level Protocol (MLLP) was proposed. HL7 messages are enclosed by special
characters to form a block.

The format is as follows:
<SB>dddd<EB><CR>

The characters used for begin and end of the message are configurable.
By default, the values are <VT> for <SB> and <FS> for <EB>.
*/
package protocol

import (
	"bytes"

	"github.com/blutspende/orchid"
)

type MLLPProtocolSettings struct {
	startByte       byte
	endByte         byte
	lineBreakByte   byte
	roundBufferSize int
	maxBufferSize   int
}

func DefaultMLLPProtocolSettings() *MLLPProtocolSettings {
	return &MLLPProtocolSettings{
		startByte:       VT,
		endByte:         FS,
		lineBreakByte:   CR,
		roundBufferSize: 4096,
		maxBufferSize:   1024 * 1024,
	}
}

func (set *MLLPProtocolSettings) SetStartByte(startByte byte) *MLLPProtocolSettings {
	set.startByte = startByte
	return set
}

func (set *MLLPProtocolSettings) SetEndByte(endByte byte) *MLLPProtocolSettings {
	set.endByte = endByte
	return set
}

func (set *MLLPProtocolSettings) SetLineBreakByte(lineBreakByte byte) *MLLPProtocolSettings {
	set.lineBreakByte = lineBreakByte
	return set
}

func (set *MLLPProtocolSettings) SetRoundBufferSize(size int) *MLLPProtocolSettings {
	set.roundBufferSize = size
	return set
}

func (set *MLLPProtocolSettings) SetMaxBufferSize(size int) *MLLPProtocolSettings {
	set.maxBufferSize = size
	return set
}

type mllp struct {
	dispatcher
	settings *MLLPProtocolSettings
}

func MLLP(handler Handler, settings ...*MLLPProtocolSettings) Implementation {
	var thesettings *MLLPProtocolSettings
	if len(settings) >= 1 {
		thesettings = settings[0]
	} else {
		thesettings = DefaultMLLPProtocolSettings()
	}

	return &mllp{
		dispatcher: dispatcher{handler: handler},
		settings:   thesettings,
	}
}

func (proto *mllp) RoundBufferSize() int {
	return proto.settings.roundBufferSize
}

func (proto *mllp) Classify(buffer []byte) orchid.Classification {
	if bytes.IndexByte(buffer, proto.settings.endByte) >= 0 {
		return orchid.Complete
	}
	if proto.settings.maxBufferSize > 0 && len(buffer) > proto.settings.maxBufferSize {
		return orchid.Invalid
	}
	return orchid.Incomplete
}

func (proto *mllp) ConsumeComplete(conn *orchid.Connection, rs *orchid.ReadState) orchid.State {
	buffer := rs.Buffer()
	end := bytes.IndexByte(buffer, proto.settings.endByte)
	start := bytes.LastIndexByte(buffer[:end], proto.settings.startByte)

	consumed := end + 1
	// the trailing line break belongs to the block, but may still be in flight
	if consumed < len(buffer) && buffer[consumed] == proto.settings.lineBreakByte {
		consumed++
	}

	block := rs.Consume(consumed)
	if start < 0 {
		if conn != nil {
			conn.Logger().Debug().Int("bytes", len(block)).Msg("dropping block without start byte")
		}
		return nextState(proto, rs)
	}

	proto.dataReceived(conn, block[start+1:end])
	return nextState(proto, rs)
}

func (proto *mllp) Send(conn *orchid.Connection, data []byte) (int, error) {
	sendbytes := make([]byte, len(data)+3)
	sendbytes[0] = proto.settings.startByte
	copy(sendbytes[1:], data)
	sendbytes[len(data)+1] = proto.settings.endByte
	sendbytes[len(data)+2] = proto.settings.lineBreakByte
	return conn.Send(sendbytes)
}
