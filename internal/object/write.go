package object

import (
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/message"
)

// MinGroupSize is the chunk size reserved for group headers, matching the
// headers of groups created by the reference HDF5 tools.
const MinGroupSize = 120

const maxMessageSize = 0xffff

// Encode builds a single-block object header for msgs. The message block is
// padded with a NIL message to at least minSize bytes. The result does not
// depend on where it will be written.
func Encode(cfg binary.Config, msgs []message.Encoder, minSize int) ([]byte, error) {
	var body binary.Buffer
	bw := binary.NewWriter(&body, cfg)
	for _, m := range msgs {
		data, err := message.Bytes(m, cfg)
		if err != nil {
			return nil, err
		}
		if len(data) > maxMessageSize {
			return nil, fmt.Errorf("message %#02x is %d bytes, limit %d", uint16(m.Type()), len(data), maxMessageSize)
		}
		bw.WriteUint8(uint8(m.Type()))
		bw.WriteUint16(uint16(len(data)))
		bw.WriteUint8(0)
		bw.WriteBytes(data)
	}
	if gap := minSize - body.Len(); gap > 0 {
		// A NIL message needs its own 4-byte header; a smaller gap is
		// absorbed by growing it to 4.
		gap = max(gap, 4)
		bw.WriteUint8(uint8(message.TypeNIL))
		bw.WriteUint16(uint16(gap - 4))
		bw.WriteUint8(0)
		bw.WriteZeros(gap - 4)
	}
	if err := bw.Err(); err != nil {
		return nil, fmt.Errorf("encoding header messages: %w", err)
	}

	size := body.Len()
	width := sizeWidth(size)
	var out binary.Buffer
	ow := binary.NewWriter(&out, cfg)
	ow.WriteBytes(signature)
	ow.WriteUint8(2)
	ow.WriteUint8(uint8(widthFlag(width)))
	ow.WriteUintN(uint64(size), width)
	ow.WriteBytes(body.Bytes())
	ow.WriteUint32(binary.Lookup3Checksum(out.Bytes()))
	if err := ow.Err(); err != nil {
		return nil, fmt.Errorf("encoding header prefix: %w", err)
	}
	return out.Bytes(), nil
}

func sizeWidth(n int) int {
	switch {
	case n <= 0xff:
		return 1
	case n <= 0xffff:
		return 2
	case n <= 0xffffffff:
		return 4
	}
	return 8
}

func widthFlag(width int) int {
	switch width {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	}
	return 3
}
