package protocol

const (
	STX = 0x02
	ETX = 0x03
	LF  = 0x0A
	VT  = 0x0B
	CR  = 0x0D
	FS  = 0x1C
)
