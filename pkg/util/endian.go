package util

import (
	"encoding/binary"
	"math/bits"
)

// BigEndian reports whether the host is big-endian.
func BigEndian() bool {
	return binary.NativeEndian.Uint16([]byte{0x12, 0x34}) == 0x1234
}

// Net2Host16 converts a 16-bit word from network order to host order.
func Net2Host16(v uint16) uint16 {
	if BigEndian() {
		return v
	}
	return bits.ReverseBytes16(v)
}

// Net2Host32 converts a 32-bit word from network order to host order.
func Net2Host32(v uint32) uint32 {
	if BigEndian() {
		return v
	}
	return bits.ReverseBytes32(v)
}
