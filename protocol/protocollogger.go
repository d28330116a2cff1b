package protocol

import (
	"os"
	"strings"

	"github.com/blutspende/orchid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const peekLength = 30

type protocolLogger struct {
	enableLog bool
	protocol  Implementation
}

// Logger wraps protocol and traces every frame, send and disconnect when PROTOLOG_ENABLE is set.
func Logger(protocol Implementation) Implementation {
	return &protocolLogger{
		enableLog: os.Getenv("PROTOLOG_ENABLE") != "",
		protocol:  protocol,
	}
}

func (pl *protocolLogger) RoundBufferSize() int {
	return pl.protocol.RoundBufferSize()
}

func (pl *protocolLogger) Classify(buffer []byte) orchid.Classification {
	return pl.protocol.Classify(buffer)
}

func (pl *protocolLogger) ConsumeComplete(conn *orchid.Connection, rs *orchid.ReadState) orchid.State {
	if !pl.enableLog {
		return pl.protocol.ConsumeComplete(conn, rs)
	}

	before := rs.Len()
	peek := peekBytes(rs.Buffer())
	next := pl.protocol.ConsumeComplete(conn, rs)

	pl.logger(conn).Info().
		Int("bytes", before-rs.Len()).
		Str("data", peek).
		Stringer("next", next).
		Msg("PL recv")
	return next
}

func (pl *protocolLogger) OnError(conn *orchid.Connection) {
	if pl.enableLog {
		pl.logger(conn).Info().Err(conn.ReadState().LastError()).Msg("PL error")
	}
	pl.protocol.OnError(conn)
}

func (pl *protocolLogger) OnDisconnect(conn *orchid.Connection) {
	if pl.enableLog {
		pl.logger(conn).Info().Msg("PL close")
	}
	pl.protocol.OnDisconnect(conn)
}

func (pl *protocolLogger) Send(conn *orchid.Connection, data []byte) (int, error) {
	n, err := pl.protocol.Send(conn, data)
	if !pl.enableLog {
		return n, err
	}

	if err != nil {
		pl.logger(conn).Info().Err(err).Msg("PL send")
	} else {
		pl.logger(conn).Info().Int("bytes", n).Str("data", peekBytes(data)).Msg("PL send")
	}
	return n, err
}

func (pl *protocolLogger) logger(conn *orchid.Connection) *zerolog.Logger {
	if conn == nil {
		return &log.Logger
	}
	return conn.Logger()
}

var ASCIIMap = map[byte]string{
	0:  "<NUL>",
	1:  "<SOH>",
	2:  "<STX>",
	3:  "<ETX>",
	4:  "<EOT>",
	5:  "<ENQ>",
	6:  "<ACK>",
	7:  "<BEL>",
	8:  "<BS>",
	9:  "<HT>",
	10: "<LF>",
	11: "<VT>",
	12: "<FF>",
	13: "<CR>",
	14: "<SO>",
	15: "<SI>",
	16: "<DLE>",
	17: "<DC1>",
	18: "<DC2>",
	19: "<DC3>",
	20: "<DC4>",
	21: "<NAK>",
	22: "<SYN>",
	23: "<ETB>",
	24: "<CAN>",
	25: "<EM>",
	26: "<SUB>",
	27: "<ESC>",
	28: "<FS>",
	29: "<GS>",
	30: "<RS>",
	31: "<US>",
}

func makeBytesReadable(in []byte) string {
	var sb strings.Builder
	for _, b := range in {
		if b < 32 {
			sb.WriteString(ASCIIMap[b])
		} else {
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

func substr(input string, start int, length int) string {
	asRunes := []rune(input)

	if start >= len(asRunes) {
		return ""
	}

	if start+length > len(asRunes) {
		length = len(asRunes) - start
	}

	return string(asRunes[start : start+length])
}

func peekBytes(data []byte) string {
	readable := makeBytesReadable(data)
	peek := substr(readable, 0, peekLength)
	if len(peek) < len(readable) {
		peek += "..."
	}
	return peek
}
