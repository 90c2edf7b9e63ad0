package heap

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/binary"
)

var signature = []byte("GCOL")

const (
	// MinCollectionSize is the smallest collection HDF5 will create.
	MinCollectionSize = 4096
	// MaxCollectionSize bounds collections holding many small objects.
	MaxCollectionSize = 1 << 20
	maxObjects        = 0xffff
)

var (
	ErrBadSignature = errors.New("invalid global heap signature")
	ErrNoObject     = errors.New("global heap object not found")
)

// ID locates an object in a global heap collection.
type ID struct {
	Collection uint64
	Index      uint32
}

// IsNil reports whether the ID refers to no object (an empty payload).
func (id ID) IsNil() bool { return id.Collection == 0 && id.Index == 0 }

// Size returns the encoded size of an ID.
func Size(offsetSize int) int { return offsetSize + 4 }

// DecodeID reads an ID from buf.
func DecodeID(buf []byte, cfg binary.Config) (ID, error) {
	if len(buf) < Size(cfg.OffsetSize) {
		return ID{}, fmt.Errorf("global heap ID: need %d bytes, have %d", Size(cfg.OffsetSize), len(buf))
	}
	return ID{
		Collection: binary.DecodeUint(buf, cfg.OffsetSize, cfg.ByteOrder),
		Index:      uint32(binary.DecodeUint(buf[cfg.OffsetSize:], 4, cfg.ByteOrder)),
	}, nil
}

// PutID encodes id into buf.
func PutID(buf []byte, id ID, cfg binary.Config) {
	binary.PutUint(buf, id.Collection, cfg.OffsetSize, cfg.ByteOrder)
	binary.PutUint(buf[cfg.OffsetSize:], uint64(id.Index), 4, cfg.ByteOrder)
}

// Collection is a parsed global heap collection.
type Collection struct {
	Address uint64
	Size    uint64
	objects map[uint16][]byte
}

// Read parses the collection at addr.
func Read(r *binary.Reader, addr uint64) (*Collection, error) {
	hr := r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", addr, err)
	}
	if string(head[:4]) != string(signature) {
		return nil, fmt.Errorf("%w at %d", ErrBadSignature, addr)
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("global heap at %d: unsupported version %d", addr, head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	hdr := uint64(8 + r.LengthSize())
	if size < hdr {
		return nil, fmt.Errorf("global heap at %d: collection size %d too small", addr, size)
	}
	body, err := hr.ReadBytes(int(size - hdr))
	if err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", addr, err)
	}

	c := &Collection{Address: addr, Size: size, objects: make(map[uint16][]byte)}
	ls := r.LengthSize()
	order := r.ByteOrder()
	objHdr := 8 + ls
	for pos := 0; pos+objHdr <= len(body); {
		index := order.Uint16(body[pos:])
		if index == 0 {
			break // free space runs to the end
		}
		n := int(binary.DecodeUint(body[pos+8:], ls, order))
		start := pos + objHdr
		if start+n > len(body) {
			return nil, fmt.Errorf("global heap at %d: object %d overruns collection", addr, index)
		}
		c.objects[index] = body[start : start+n]
		pos = start + pad8(n)
	}
	return c, nil
}

// Object returns the payload of object index.
func (c *Collection) Object(index uint32) ([]byte, error) {
	data, ok := c.objects[uint16(index)]
	if !ok || index > maxObjects {
		return nil, fmt.Errorf("%w: %d in collection at %d", ErrNoObject, index, c.Address)
	}
	return data, nil
}

// Len returns the number of objects in the collection.
func (c *Collection) Len() int { return len(c.objects) }

func pad8(n int) int { return (n + 7) &^ 7 }
