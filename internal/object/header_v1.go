package object

import (
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/message"
)

// Version 1 headers have a 12-byte prefix padded to 16: version, reserved,
// message count (2), reference count (4) and message block size (4). Each
// message has an 8-byte header (type 2, size 2, flags 1, reserved 3) and a
// body padded to 8 bytes.
const (
	v1PrefixSize    = 16
	v1MsgHeaderSize = 8
	msgFlagShared   = 0x02
)

func readV1(r *binary.Reader, addr uint64) (*Header, error) {
	prefix, err := r.At(int64(addr)).ReadBytes(12)
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}
	order := r.ByteOrder()
	h := &Header{Address: addr, Version: 1}
	size := order.Uint32(prefix[8:])

	block, err := r.At(int64(addr) + v1PrefixSize).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}
	conts, err := h.parseMessagesV1(block, r.Config())
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}
	err = h.follow(conts, func(c *message.Continuation) ([]*message.Continuation, error) {
		block, err := r.At(int64(c.Offset)).ReadBytes(int(c.Length))
		if err != nil {
			return nil, fmt.Errorf("continuation at %d: %w", c.Offset, err)
		}
		return h.parseMessagesV1(block, r.Config())
	})
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}
	return h, nil
}

func (h *Header) parseMessagesV1(body []byte, cfg binary.Config) ([]*message.Continuation, error) {
	var conts []*message.Continuation
	order := cfg.ByteOrder
	for pos := 0; pos+v1MsgHeaderSize <= len(body); {
		typ := message.Type(order.Uint16(body[pos:]))
		n := int(order.Uint16(body[pos+2:]))
		flags := body[pos+4]
		pos += v1MsgHeaderSize
		if pos+n > len(body) {
			return nil, fmt.Errorf("%w: message %#04x overruns block", ErrInvalidHeader, uint16(typ))
		}
		data := body[pos : pos+n]
		pos += (n + 7) &^ 7
		if typ == message.TypeNIL {
			continue
		}
		if flags&msgFlagShared != 0 {
			return nil, fmt.Errorf("%w: message %#04x", ErrSharedMessage, uint16(typ))
		}
		m, err := message.Parse(typ, data, cfg)
		if err != nil {
			return nil, err
		}
		if c, ok := m.(*message.Continuation); ok {
			conts = append(conts, c)
			continue
		}
		h.Messages = append(h.Messages, m)
	}
	return conts, nil
}
