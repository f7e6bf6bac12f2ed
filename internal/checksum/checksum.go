package checksum

import (
	"errors"
	"fmt"
)

const (
	polynomial = 0x07
	initial    = 0xFF
)

// Error reports a trailing checksum byte that does not match the payload.
type Error struct {
	Expected byte
	Actual   byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("bad crc: expected 0x%02x got 0x%02x", e.Expected, e.Actual)
}

var ErrShortPacket = errors.New("packet too short to carry a checksum")

// Checksum computes the CRC-8 of every byte in b except the last, which is
// the slot that carries the checksum itself.
func Checksum(b []byte) byte {
	crc := byte(initial)
	if len(b) == 0 {
		return crc
	}
	for _, v := range b[:len(b)-1] {
		crc ^= v
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Verify checks the trailing byte of b against the checksum of the rest.
func Verify(b []byte) error {
	if len(b) < 2 {
		return ErrShortPacket
	}
	expected := Checksum(b)
	if actual := b[len(b)-1]; actual != expected {
		return &Error{Expected: expected, Actual: actual}
	}
	return nil
}

// Seal writes the checksum into the last byte of b and returns it.
func Seal(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	b[len(b)-1] = Checksum(b)
	return b
}
