// Package fixint reads and writes fixed-width little-endian integers.
//
// The width is the size of the integer type itself, so an int16 always
// occupies two bytes and a uint64 eight. Callers size buffers with Size.
package fixint

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Size returns the encoded width of T in bytes.
func Size[T constraints.Integer]() int {
	var x T
	return int(unsafe.Sizeof(x))
}

func Append[T constraints.Integer](buf []byte, x T) []byte {
	u := uint64(x)
	switch Size[T]() {
	case 1:
		return append(buf, byte(u))
	case 2:
		return append(buf, byte(u), byte(u>>8))
	case 4:
		return append(buf, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	default:
		return append(buf, byte(u), byte(u>>8), byte(u>>16), byte(u>>24), byte(u>>32), byte(u>>40), byte(u>>48), byte(u>>56))
	}
}

func Put[T constraints.Integer](buf []byte, x T) {
	u := uint64(x)
	switch Size[T]() {
	case 1:
		buf[0] = byte(u)
	case 2:
		_ = buf[1]
		buf[0] = byte(u)
		buf[1] = byte(u >> 8)
	case 4:
		_ = buf[3]
		buf[0] = byte(u)
		buf[1] = byte(u >> 8)
		buf[2] = byte(u >> 16)
		buf[3] = byte(u >> 24)
	default:
		_ = buf[7]
		buf[0] = byte(u)
		buf[1] = byte(u >> 8)
		buf[2] = byte(u >> 16)
		buf[3] = byte(u >> 24)
		buf[4] = byte(u >> 32)
		buf[5] = byte(u >> 40)
		buf[6] = byte(u >> 48)
		buf[7] = byte(u >> 56)
	}
}

func Get[T constraints.Integer](buf []byte) T {
	switch Size[T]() {
	case 1:
		return T(buf[0])
	case 2:
		_ = buf[1]
		return T(uint16(buf[0]) | uint16(buf[1])<<8)
	case 4:
		_ = buf[3]
		return T(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
	default:
		_ = buf[7]
		return T(uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
			uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56)
	}
}
