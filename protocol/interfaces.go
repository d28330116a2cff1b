package protocol

import (
	"time"

	"github.com/blutspende/orchid"
)

// Implementation is a framing strategy that can also frame outgoing data.
type Implementation interface {
	orchid.FramingStrategy
	Send(conn *orchid.Connection, data []byte) (int, error)
}

// Handler receives the application side of a framed connection.
type Handler interface {
	// DataReceived is called once per frame, in arrival order, with the frame payload
	// stripped of its framing bytes.
	DataReceived(conn *orchid.Connection, data []byte, receiveTimestamp time.Time)
	// Error is called before Disconnected when the connection failed.
	Error(conn *orchid.Connection, typeOfError orchid.ErrorType, err error)
	// Disconnected is called once when the connection is gone.
	Disconnected(conn *orchid.Connection)
}

// dispatcher forwards the terminal callbacks of a strategy to its Handler.
type dispatcher struct {
	handler Handler
}

func (d dispatcher) dataReceived(conn *orchid.Connection, data []byte) {
	if d.handler != nil {
		d.handler.DataReceived(conn, data, time.Now())
	}
}

func (d dispatcher) OnError(conn *orchid.Connection) {
	if d.handler == nil {
		return
	}
	err := conn.ReadState().LastError()
	d.handler.Error(conn, orchid.ErrorTypeOf(err), err)
}

func (d dispatcher) OnDisconnect(conn *orchid.Connection) {
	if d.handler != nil {
		d.handler.Disconnected(conn)
	}
}
