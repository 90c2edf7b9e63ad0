package btree

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/binary"
)

// Chunk locates one stored chunk of a dataset.
type Chunk struct {
	// Offset is the element coordinate of the chunk's first element.
	Offset []uint64

	// Size is the stored size in bytes. Zero means the chunk is stored
	// unfiltered at its nominal size.
	Size uint64

	// FilterMask has bit i set when filter i was skipped for this chunk.
	FilterMask uint32

	// Address is the file offset of the chunk data.
	Address uint64
}

var v1Signature = []byte("TREE")

const v1ChunkNode = 1

// ReadV1 returns every chunk indexed by the version 1 B-tree at addr. rank
// is the dataset rank; node keys carry one extra element-size dimension.
func ReadV1(r *binary.Reader, addr uint64, rank int) ([]Chunk, error) {
	var chunks []Chunk
	if err := walkV1(r, addr, rank, -1, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func walkV1(r *binary.Reader, addr uint64, rank, level int, out *[]Chunk) error {
	nr := r.At(int64(addr))
	if err := expectSignature(nr, v1Signature); err != nil {
		return fmt.Errorf("chunk btree at %d: %w", addr, err)
	}
	typ, err := nr.ReadUint8()
	if err != nil {
		return err
	}
	if typ != v1ChunkNode {
		return fmt.Errorf("chunk btree at %d: node type %d is not a chunk node", addr, typ)
	}
	lvl, err := nr.ReadUint8()
	if err != nil {
		return err
	}
	if level >= 0 && int(lvl) != level {
		return fmt.Errorf("chunk btree at %d: level %d, parent expects %d", addr, lvl, level)
	}
	used, err := nr.ReadUint16()
	if err != nil {
		return err
	}
	nr.Skip(2 * int64(r.OffsetSize())) // siblings

	for i := 0; i < int(used); i++ {
		c, err := readV1Key(nr, rank)
		if err != nil {
			return fmt.Errorf("chunk btree at %d: key %d: %w", addr, i, err)
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return err
		}
		if lvl > 0 {
			if err := walkV1(r, child, rank, int(lvl)-1, out); err != nil {
				return err
			}
			continue
		}
		if r.IsUndefinedOffset(child) {
			continue
		}
		c.Address = child
		*out = append(*out, c)
	}
	return nil
}

// readV1Key reads a chunk key: stored size, filter mask and rank+1 element
// offsets, the last of which is always zero.
func readV1Key(nr *binary.Reader, rank int) (Chunk, error) {
	var c Chunk
	size, err := nr.ReadUint32()
	if err != nil {
		return c, err
	}
	c.Size = uint64(size)
	if c.FilterMask, err = nr.ReadUint32(); err != nil {
		return c, err
	}
	c.Offset = make([]uint64, rank)
	for d := range c.Offset {
		if c.Offset[d], err = nr.ReadUint64(); err != nil {
			return c, err
		}
	}
	nr.Skip(8)
	return c, nil
}

func expectSignature(nr *binary.Reader, want []byte) error {
	sig, err := nr.ReadBytes(len(want))
	if err != nil {
		return err
	}
	if !bytes.Equal(sig, want) {
		return fmt.Errorf("signature %q, want %q", sig, want)
	}
	return nil
}
