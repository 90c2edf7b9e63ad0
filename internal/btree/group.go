package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/heap"
)

var snodSignature = []byte("SNOD")

const (
	v1GroupNode = 0

	// cacheSoftLink marks a symbol table entry whose scratch pad holds the
	// heap offset of a soft link value.
	cacheSoftLink = 2

	maxGroupDepth = 64
)

// Symbol is one member of an old-style group.
type Symbol struct {
	Name string

	// Address is the member's object header. It is undefined for soft
	// links.
	Address uint64

	// SoftTarget is the link value when the entry is a soft link.
	SoftTarget string
}

// ReadGroup returns the members of the symbol-table group whose version 1
// B-tree is at addr, in name order. names is the group's local heap.
func ReadGroup(r *binary.Reader, addr uint64, names *heap.Local) ([]Symbol, error) {
	var out []Symbol
	if err := walkGroup(r, addr, names, -1, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkGroup(r *binary.Reader, addr uint64, names *heap.Local, level int, out *[]Symbol) error {
	nr := r.At(int64(addr))
	if err := expectSignature(nr, v1Signature); err != nil {
		return fmt.Errorf("group btree at %d: %w", addr, err)
	}
	head, err := nr.ReadBytes(4)
	if err != nil {
		return err
	}
	if head[0] != v1GroupNode {
		return fmt.Errorf("group btree at %d: node type %d is not a group node", addr, head[0])
	}
	lvl := int(head[1])
	if (level >= 0 && lvl != level) || lvl > maxGroupDepth {
		return fmt.Errorf("group btree at %d: bad level %d", addr, lvl)
	}
	used := int(r.ByteOrder().Uint16(head[2:]))
	nr.Skip(2 * int64(r.OffsetSize())) // siblings

	// Keys are heap offsets of the largest name below each child. Members
	// are read from the leaves, so only the children matter here.
	for i := 0; i < used; i++ {
		nr.Skip(int64(r.LengthSize()))
		child, err := nr.ReadOffset()
		if err != nil {
			return fmt.Errorf("group btree at %d: child %d: %w", addr, i, err)
		}
		if lvl > 0 {
			err = walkGroup(r, child, names, lvl-1, out)
		} else {
			err = readSymbolNode(r, child, names, out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func readSymbolNode(r *binary.Reader, addr uint64, names *heap.Local, out *[]Symbol) error {
	nr := r.At(int64(addr))
	if err := expectSignature(nr, snodSignature); err != nil {
		return fmt.Errorf("symbol node at %d: %w", addr, err)
	}
	head, err := nr.ReadBytes(4)
	if err != nil {
		return err
	}
	if head[0] != 1 {
		return fmt.Errorf("symbol node at %d: unsupported version %d", addr, head[0])
	}
	n := int(r.ByteOrder().Uint16(head[2:]))
	for i := 0; i < n; i++ {
		s, err := readEntry(nr, names)
		if err != nil {
			return fmt.Errorf("symbol node at %d: entry %d: %w", addr, i, err)
		}
		*out = append(*out, s)
	}
	return nil
}

// readEntry reads a symbol table entry: name offset, object header
// address, cache type, 4 reserved bytes and a 16-byte scratch pad.
func readEntry(nr *binary.Reader, names *heap.Local) (Symbol, error) {
	var s Symbol
	nameOff, err := nr.ReadOffset()
	if err != nil {
		return s, err
	}
	if s.Address, err = nr.ReadOffset(); err != nil {
		return s, err
	}
	cache, err := nr.ReadUint32()
	if err != nil {
		return s, err
	}
	nr.Skip(4)
	scratch, err := nr.ReadBytes(16)
	if err != nil {
		return s, err
	}
	if s.Name, err = names.String(nameOff); err != nil {
		return s, err
	}
	if cache == cacheSoftLink {
		off := uint64(nr.ByteOrder().Uint32(scratch))
		if s.SoftTarget, err = names.String(off); err != nil {
			return s, fmt.Errorf("soft link %q: %w", s.Name, err)
		}
	}
	return s, nil
}
