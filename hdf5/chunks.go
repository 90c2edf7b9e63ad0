package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/btree"
	"github.com/robert-malhotra/go-tables/internal/filter"
	"github.com/robert-malhotra/go-tables/internal/message"
)

// chunks lists the stored chunks of a B-tree indexed dataset.
func (d *Dataset) chunks() ([]btree.Chunk, error) {
	l := d.layout
	if d.file.reader.IsUndefinedOffset(l.Address) {
		return nil, nil
	}
	switch l.Index {
	case message.IndexBTreeV1:
		return btree.ReadV1(d.file.reader, l.Address, len(l.ChunkDims))
	case message.IndexBTreeV2:
		return btree.ReadV2(d.file.reader, l.Address, l.ChunkDims)
	}
	return nil, fmt.Errorf("%w: %s chunk index", ErrUnsupported, l.Index)
}

// readIndexedChunks assembles a dataset stored as many chunks. Chunks that
// were never written read as zeros.
func (d *Dataset) readIndexedChunks(want uint64) ([]byte, error) {
	l := d.layout
	dims := d.dataspace.Dims
	if len(dims) != len(l.ChunkDims) {
		return nil, fmt.Errorf("dataset %s: rank %d with %d chunk dimensions", d.path, len(dims), len(l.ChunkDims))
	}
	out := make([]byte, want)
	if want == 0 {
		return out, nil
	}
	entries, err := d.chunks()
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.path, err)
	}
	p, err := filter.NewPipeline(d.filters)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.path, err)
	}

	nominal := d.chunkBytes()
	for _, c := range entries {
		size := c.Size
		if size == 0 {
			size = nominal
		}
		stored, err := d.file.reader.At(int64(c.Address)).ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("dataset %s: chunk %v: %w", d.path, c.Offset, err)
		}
		data, err := p.Decode(stored, c.FilterMask)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: chunk %v: %w", d.path, c.Offset, err)
		}
		if uint64(len(data)) < nominal {
			return nil, fmt.Errorf("dataset %s: chunk %v decodes to %d bytes, need %d", d.path, c.Offset, len(data), nominal)
		}
		placeChunk(out, data, dims, l.ChunkDims, c.Offset, uint64(d.datatype.Size))
	}
	return out, nil
}

// placeChunk copies the part of a chunk that lies inside dims into the
// row-major dataset buffer dst. Edge chunks are clipped.
func placeChunk(dst, chunk []byte, dims, chunkDims, offset []uint64, elem uint64) {
	rank := len(dims)
	last := rank - 1
	if offset[last] >= dims[last] {
		return
	}
	run := min(chunkDims[last], dims[last]-offset[last])

	// pos walks the chunk's rows; its last coordinate stays zero.
	pos := make([]uint64, rank)
	for {
		var src, at uint64
		inside := true
		for k := range rank {
			p := offset[k] + pos[k]
			if p >= dims[k] {
				inside = false
			}
			src = src*chunkDims[k] + pos[k]
			at = at*dims[k] + p
		}
		if inside {
			copy(dst[at*elem:(at+run)*elem], chunk[src*elem:(src+run)*elem])
		}

		k := last - 1
		for ; k >= 0; k-- {
			pos[k]++
			if pos[k] < chunkDims[k] {
				break
			}
			pos[k] = 0
		}
		if k < 0 {
			return
		}
	}
}
