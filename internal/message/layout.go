package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-tables/internal/binary"
)

// LayoutClass is the storage layout of a dataset.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
)

// ChunkIndex identifies how chunk addresses are looked up.
type ChunkIndex uint8

const (
	IndexBTreeV1    ChunkIndex = 0
	IndexSingle     ChunkIndex = 1
	IndexImplicit   ChunkIndex = 2
	IndexFixedArray ChunkIndex = 3
	IndexExtArray   ChunkIndex = 4
	IndexBTreeV2    ChunkIndex = 5
)

func (i ChunkIndex) String() string {
	switch i {
	case IndexBTreeV1:
		return "v1 B-tree"
	case IndexSingle:
		return "single chunk"
	case IndexImplicit:
		return "implicit"
	case IndexFixedArray:
		return "fixed array"
	case IndexExtArray:
		return "extensible array"
	case IndexBTreeV2:
		return "v2 B-tree"
	}
	return fmt.Sprintf("index(%d)", uint8(i))
}

// Layout is the data layout message (0x0008).
type Layout struct {
	Version uint8
	Class   LayoutClass

	// Address of contiguous data, the single chunk, or the chunk index.
	Address uint64
	// Size of contiguous data.
	Size uint64
	// Data holds compact storage.
	Data []byte

	// ChunkDims excludes the trailing element-size dimension.
	ChunkDims   []uint64
	ElementSize uint32
	Index       ChunkIndex
	// FilteredSize and FilterMask describe a filtered single chunk.
	FilteredSize uint64
	FilterMask   uint32
}

func (m *Layout) Type() Type { return TypeDataLayout }

// Contiguous returns a contiguous layout.
func Contiguous(addr, size uint64) *Layout {
	return &Layout{Version: 3, Class: LayoutContiguous, Address: addr, Size: size}
}

// SingleChunk returns a chunked layout whose only chunk covers the dataset.
// filteredSize is zero when the dataset has no filters.
func SingleChunk(addr uint64, dims []uint64, elemSize uint32, filteredSize uint64, mask uint32) *Layout {
	return &Layout{
		Version: 4, Class: LayoutChunked, Address: addr,
		ChunkDims: dims, ElementSize: elemSize, Index: IndexSingle,
		FilteredSize: filteredSize, FilterMask: mask,
	}
}

func parseLayout(c *cursor) (*Layout, error) {
	m := &Layout{Version: c.u8()}
	if m.Version < 3 || m.Version > 4 {
		return nil, fmt.Errorf("unsupported layout version %d", m.Version)
	}
	m.Class = LayoutClass(c.u8())

	switch m.Class {
	case LayoutCompact:
		n := int(c.u16())
		m.Data = c.take(n)
	case LayoutContiguous:
		m.Address = c.offset()
		m.Size = c.length()
	case LayoutChunked:
		if m.Version == 3 {
			rank := int(c.u8())
			m.Index = IndexBTreeV1
			m.Address = c.offset()
			dims := make([]uint64, rank)
			for i := range dims {
				dims[i] = uint64(c.u32())
			}
			if rank > 0 {
				m.ChunkDims, m.ElementSize = dims[:rank-1], uint32(dims[rank-1])
			}
			return m, nil
		}
		return parseChunkedV4(c, m)
	default:
		return nil, fmt.Errorf("unknown layout class %d", m.Class)
	}
	return m, nil
}

func parseChunkedV4(c *cursor, m *Layout) (*Layout, error) {
	flags := c.u8()
	rank := int(c.u8())
	width := int(c.u8())
	dims := make([]uint64, rank)
	for i := range dims {
		dims[i] = c.num(width)
	}
	if rank > 0 {
		m.ChunkDims, m.ElementSize = dims[:rank-1], uint32(dims[rank-1])
	}

	m.Index = ChunkIndex(c.u8())
	switch m.Index {
	case IndexSingle:
		if flags&0x02 != 0 {
			m.FilteredSize = c.length()
			m.FilterMask = c.u32()
		}
	case IndexImplicit:
	case IndexFixedArray:
		c.skip(1)
	case IndexExtArray:
		c.skip(5)
	case IndexBTreeV2:
		c.skip(6)
	default:
		return nil, fmt.Errorf("unknown chunk index type %d", m.Index)
	}
	m.Address = c.offset()
	return m, nil
}

// Encode writes compact and contiguous layouts as version 3. Chunked
// layouts indexed by a version 1 B-tree are version 3; single-chunk and
// version 2 B-tree indexes are version 4.
func (m *Layout) Encode(w *binpkg.Writer) error {
	switch m.Class {
	case LayoutCompact:
		if err := w.WriteBytes([]byte{3, byte(LayoutCompact)}); err != nil {
			return err
		}
		if err := w.WriteUint16(uint16(len(m.Data))); err != nil {
			return err
		}
		return w.WriteBytes(m.Data)

	case LayoutContiguous:
		if err := w.WriteBytes([]byte{3, byte(LayoutContiguous)}); err != nil {
			return err
		}
		if err := w.WriteOffset(m.Address); err != nil {
			return err
		}
		return w.WriteLength(m.Size)

	case LayoutChunked:
		switch m.Index {
		case IndexSingle:
		case IndexBTreeV1:
			return m.encodeV3Chunked(w)
		case IndexBTreeV2:
			return m.encodeBTreeV2(w)
		default:
			return fmt.Errorf("cannot encode %s chunk index", m.Index)
		}
		var flags uint8
		if m.FilteredSize > 0 {
			flags = 0x02
		}
		head := []byte{4, byte(LayoutChunked), flags, uint8(len(m.ChunkDims) + 1), 8}
		if err := w.WriteBytes(head); err != nil {
			return err
		}
		for _, d := range m.ChunkDims {
			if err := w.WriteUint64(d); err != nil {
				return err
			}
		}
		if err := w.WriteUint64(uint64(m.ElementSize)); err != nil {
			return err
		}
		if err := w.WriteUint8(uint8(IndexSingle)); err != nil {
			return err
		}
		if flags != 0 {
			if err := w.WriteLength(m.FilteredSize); err != nil {
				return err
			}
			if err := w.WriteUint32(m.FilterMask); err != nil {
				return err
			}
		}
		return w.WriteOffset(m.Address)
	}
	return fmt.Errorf("unknown layout class %d", m.Class)
}

// v2 B-tree index parameters: node size, split and merge percentages.
const (
	btreeV2NodeSize = 512
	btreeV2Split    = 100
	btreeV2Merge    = 40
)

func (m *Layout) encodeV3Chunked(w *binpkg.Writer) error {
	if err := w.WriteBytes([]byte{3, byte(LayoutChunked), uint8(len(m.ChunkDims) + 1)}); err != nil {
		return err
	}
	if err := w.WriteOffset(m.Address); err != nil {
		return err
	}
	for _, d := range m.ChunkDims {
		if err := w.WriteUint32(uint32(d)); err != nil {
			return err
		}
	}
	return w.WriteUint32(m.ElementSize)
}

func (m *Layout) encodeBTreeV2(w *binpkg.Writer) error {
	head := []byte{4, byte(LayoutChunked), 0, uint8(len(m.ChunkDims) + 1), 8}
	if err := w.WriteBytes(head); err != nil {
		return err
	}
	for _, d := range m.ChunkDims {
		if err := w.WriteUint64(d); err != nil {
			return err
		}
	}
	if err := w.WriteUint64(uint64(m.ElementSize)); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(IndexBTreeV2)); err != nil {
		return err
	}
	if err := w.WriteUint32(btreeV2NodeSize); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte{btreeV2Split, btreeV2Merge}); err != nil {
		return err
	}
	return w.WriteOffset(m.Address)
}
