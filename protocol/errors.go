package protocol

import "errors"

const MaxPacketSize = 1 << 16

var (
	ErrPacketSize  = errors.New("protocol: packet size is invalid")
	ErrMalformed   = errors.New("protocol: malformed message")
	ErrUnknownKind = errors.New("protocol: unknown request kind")
)
