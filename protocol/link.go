package protocol

import (
	"encoding/binary"
	"io"
)

type Marshaler interface {
	Marshal() ([]byte, error)
}

type Unmarshaler interface {
	Unmarshal([]byte) error
}

// Receive reads one length-prefixed message.
func Receive(c io.Reader, m Unmarshaler) error {
	var length uint32

	err := binary.Read(c, binary.BigEndian, &(length))
	if err != nil {
		return err
	}

	if length == 0 || length > MaxPacketSize {
		return ErrPacketSize
	}

	data := make([]byte, length)

	_, err = io.ReadFull(c, data)
	if err != nil {
		return err
	}

	return m.Unmarshal(data)
}

// Send writes one length-prefixed message.
func Send(c io.Writer, m Marshaler) error {
	out, err := m.Marshal()
	if err != nil {
		return err
	}

	if len(out) == 0 || len(out) > MaxPacketSize {
		return ErrPacketSize
	}

	buf := make([]byte, 4, 4+len(out))
	binary.BigEndian.PutUint32(buf, uint32(len(out)))
	_, err = c.Write(append(buf, out...))
	return err
}
