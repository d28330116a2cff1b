package orchid

// Classification is a framing strategy's verdict on the accumulated buffer.
type Classification int

const (
	Incomplete Classification = iota
	Complete
	Invalid
)

func (c Classification) String() string {
	switch c {
	case Incomplete:
		return "Incomplete"
	case Complete:
		return "Complete"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// FramingStrategy decides where application messages begin and end on a byte stream.
// Implementations hold no per-connection state; one value may serve any number of
// connections concurrently.
type FramingStrategy interface {
	// RoundBufferSize is the number of bytes requested per receive. Must be > 0.
	RoundBufferSize() int

	// Classify inspects a non-empty buffer without side effects.
	// Invalid reports a protocol violation and terminates the connection.
	Classify(buffer []byte) Classification

	// ConsumeComplete is only called right after Classify returned Complete. It removes the
	// front frame(s) from rs, dispatches them, and returns ReadAllData when the remaining bytes
	// already hold another complete frame, AwaitingData otherwise. Returning Error or
	// LostConnection terminates the connection.
	ConsumeComplete(conn *Connection, rs *ReadState) State

	// OnError is called once, before OnDisconnect, on transport errors and protocol violations.
	// Do not close the connection here, the read loop shuts it down.
	OnError(conn *Connection)

	// OnDisconnect is called once after shutdown on every terminal path.
	// The connection must not be used afterwards.
	OnDisconnect(conn *Connection)
}
