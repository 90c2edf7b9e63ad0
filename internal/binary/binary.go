// Package binary provides positioned readers and writers for the HDF5 file
// format, where addresses ("offsets") and lengths have a per-file width.
package binary

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidSize is returned when an invalid offset or length size is specified.
var ErrInvalidSize = errors.New("invalid offset/length size: must be 2, 4, or 8")

// ErrInvalidWidth is returned when an integer field is wider than 8 bytes.
var ErrInvalidWidth = errors.New("invalid integer width")

// Config describes the encoding of a file, normally taken from its superblock.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int // 2, 4, or 8 bytes
	LengthSize int // 2, 4, or 8 bytes
}

// DefaultConfig is little-endian with 8-byte offsets and lengths. It is what
// the writer produces and what superblock detection starts from.
func DefaultConfig() Config {
	return Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: 8,
		LengthSize: 8,
	}
}

// Validate reports whether the offset and length widths are supported.
func (c Config) Validate() error {
	if !validSize(c.OffsetSize) || !validSize(c.LengthSize) {
		return ErrInvalidSize
	}
	return nil
}

func validSize(n int) bool {
	return n == 2 || n == 4 || n == 8
}

// Undefined returns the all-ones sentinel HDF5 uses for an unset address of
// the given width.
func Undefined(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(uint(size)*8) - 1
}

// DecodeUint decodes an unsigned integer of size bytes.
func DecodeUint(buf []byte, size int, order binary.ByteOrder) uint64 {
	switch size {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(order.Uint16(buf))
	case 4:
		return uint64(order.Uint32(buf))
	case 8:
		return order.Uint64(buf)
	}
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

// PutUint encodes v into the first size bytes of buf.
func PutUint(buf []byte, v uint64, size int, order binary.ByteOrder) {
	switch size {
	case 1:
		buf[0] = uint8(v)
	case 2:
		order.PutUint16(buf, uint16(v))
	case 4:
		order.PutUint32(buf, uint32(v))
	case 8:
		order.PutUint64(buf, v)
	default:
		for i := 0; i < size; i++ {
			buf[i] = byte(v >> (8 * i))
		}
	}
}
