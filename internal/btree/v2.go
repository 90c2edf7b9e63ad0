package btree

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-tables/internal/binary"
)

// Record types of version 2 B-trees that index chunks.
const (
	TypeChunk         uint8 = 10
	TypeFilteredChunk uint8 = 11
)

var (
	v2Header   = []byte("BTHD")
	v2Internal = []byte("BTIN")
	v2Leaf     = []byte("BTLF")
)

// v2NodePrefix is the signature, version, type and checksum bytes of a node.
const v2NodePrefix = 10

type v2Tree struct {
	r         *binary.Reader
	typ       uint8
	nodeSize  int
	recSize   int
	depth     int
	chunkDims []uint64
	sizeLen   int

	// nrecSize encodes a child's record count; cumSize[d] encodes the total
	// records below a child at depth d.
	nrecSize int
	cumSize  []int
}

// ReadV2 returns every chunk indexed by the version 2 B-tree at addr.
// Stored coordinates are scaled by chunkDims into element offsets.
func ReadV2(r *binary.Reader, addr uint64, chunkDims []uint64) ([]Chunk, error) {
	nr := r.At(int64(addr))
	if err := expectSignature(nr, v2Header); err != nil {
		return nil, fmt.Errorf("chunk btree at %d: %w", addr, err)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("chunk btree at %d: version %d not supported", addr, version)
	}
	t := &v2Tree{r: r, chunkDims: chunkDims}
	if t.typ, err = nr.ReadUint8(); err != nil {
		return nil, err
	}
	if t.typ != TypeChunk && t.typ != TypeFilteredChunk {
		return nil, fmt.Errorf("chunk btree at %d: record type %d does not index chunks", addr, t.typ)
	}
	nodeSize, err := nr.ReadUint32()
	if err != nil {
		return nil, err
	}
	recSize, err := nr.ReadUint16()
	if err != nil {
		return nil, err
	}
	depth, err := nr.ReadUint16()
	if err != nil {
		return nil, err
	}
	nr.Skip(2) // split and merge percentages
	root, err := nr.ReadOffset()
	if err != nil {
		return nil, err
	}
	rootRecs, err := nr.ReadUint16()
	if err != nil {
		return nil, err
	}
	total, err := nr.ReadLength()
	if err != nil {
		return nil, err
	}
	t.nodeSize, t.recSize, t.depth = int(nodeSize), int(recSize), int(depth)

	fixed := r.OffsetSize() + 8*len(chunkDims)
	if t.typ == TypeFilteredChunk {
		fixed += 4
		t.sizeLen = t.recSize - fixed
		if t.sizeLen < 1 || t.sizeLen > 8 {
			return nil, fmt.Errorf("chunk btree at %d: record size %d does not fit rank %d", addr, recSize, len(chunkDims))
		}
	} else if t.recSize != fixed {
		return nil, fmt.Errorf("chunk btree at %d: record size %d does not fit rank %d", addr, recSize, len(chunkDims))
	}
	if total == 0 || r.IsUndefinedOffset(root) {
		return nil, nil
	}
	if t.nodeSize <= v2NodePrefix+t.recSize {
		return nil, fmt.Errorf("chunk btree at %d: node size %d too small", addr, nodeSize)
	}
	t.sizeFields()

	var chunks []Chunk
	if err := t.walk(root, int(rootRecs), t.depth, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// sizeFields derives the widths of the child pointer count fields, which
// depend on how many records fit in a node at each depth.
func (t *v2Tree) sizeFields() {
	maxRec := uint64((t.nodeSize - v2NodePrefix) / t.recSize)
	cum := maxRec
	t.nrecSize = encodedSize(maxRec)
	t.cumSize = make([]int, t.depth+1)
	for d := 1; d <= t.depth; d++ {
		ptr := t.r.OffsetSize() + t.nrecSize
		if d > 1 {
			ptr += t.cumSize[d-1]
		}
		n := uint64((t.nodeSize - v2NodePrefix - ptr) / (t.recSize + ptr))
		cum = (n+1)*cum + n
		t.cumSize[d] = encodedSize(cum)
	}
}

// encodedSize is the number of bytes needed to store n.
func encodedSize(n uint64) int {
	if n == 0 {
		return 1
	}
	return (bits.Len64(n)-1)/8 + 1
}

func (t *v2Tree) walk(addr uint64, nrec, depth int, out *[]Chunk) error {
	sig := v2Leaf
	if depth > 0 {
		sig = v2Internal
	}
	nr := t.r.At(int64(addr))
	if err := expectSignature(nr, sig); err != nil {
		return fmt.Errorf("chunk btree node at %d: %w", addr, err)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return err
	}
	typ, err := nr.ReadUint8()
	if err != nil {
		return err
	}
	if version != 0 || typ != t.typ {
		return fmt.Errorf("chunk btree node at %d: version %d type %d", addr, version, typ)
	}

	for i := 0; i < nrec; i++ {
		c, err := t.record(nr)
		if err != nil {
			return fmt.Errorf("chunk btree node at %d: record %d: %w", addr, i, err)
		}
		if !t.r.IsUndefinedOffset(c.Address) {
			*out = append(*out, c)
		}
	}
	if depth == 0 {
		return nil
	}
	for i := 0; i <= nrec; i++ {
		child, err := nr.ReadOffset()
		if err != nil {
			return err
		}
		n, err := nr.ReadUintN(t.nrecSize)
		if err != nil {
			return err
		}
		if depth > 1 {
			nr.Skip(int64(t.cumSize[depth-1]))
		}
		if err := t.walk(child, int(n), depth-1, out); err != nil {
			return err
		}
	}
	return nil
}

func (t *v2Tree) record(nr *binary.Reader) (Chunk, error) {
	var c Chunk
	var err error
	if c.Address, err = nr.ReadOffset(); err != nil {
		return c, err
	}
	if t.typ == TypeFilteredChunk {
		if c.Size, err = nr.ReadUintN(t.sizeLen); err != nil {
			return c, err
		}
		if c.FilterMask, err = nr.ReadUint32(); err != nil {
			return c, err
		}
	}
	c.Offset = make([]uint64, len(t.chunkDims))
	for d, dim := range t.chunkDims {
		scaled, err := nr.ReadUint64()
		if err != nil {
			return c, err
		}
		c.Offset[d] = scaled * dim
	}
	return c, nil
}
