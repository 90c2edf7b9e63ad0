package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/dtype"
	"github.com/robert-malhotra/go-tables/internal/filter"
	"github.com/robert-malhotra/go-tables/internal/heap"
	"github.com/robert-malhotra/go-tables/internal/message"
	"github.com/robert-malhotra/go-tables/internal/object"
)

// Dataset represents an HDF5 dataset.
type Dataset struct {
	file      *File
	path      string
	header    *object.Header
	dataspace *message.Dataspace
	datatype  *message.Datatype
	layout    *message.Layout
	filters   *message.FilterPipeline
}

func newDataset(f *File, path string, header *object.Header) (*Dataset, error) {
	ds := &Dataset{
		file:      f,
		path:      path,
		header:    header,
		dataspace: header.Dataspace(),
		datatype:  header.Datatype(),
		layout:    header.Layout(),
		filters:   header.FilterPipeline(),
	}
	switch {
	case ds.dataspace == nil:
		return nil, fmt.Errorf("dataset %s: missing dataspace message", path)
	case ds.datatype == nil:
		return nil, fmt.Errorf("dataset %s: missing datatype message", path)
	case ds.layout == nil:
		return nil, fmt.Errorf("dataset %s: missing layout message", path)
	}
	return ds, nil
}

// Name returns the dataset name (last component of path).
func (d *Dataset) Name() string {
	return path.Base(d.path)
}

// Path returns the full path to this dataset.
func (d *Dataset) Path() string {
	return d.path
}

// Address returns the address of the dataset's object header.
func (d *Dataset) Address() uint64 {
	return d.header.Address
}

// Shape returns the dimensions of the dataset, or nil for a scalar.
func (d *Dataset) Shape() []uint64 {
	if d.dataspace.Kind == message.SpaceScalar {
		return nil
	}
	return d.dataspace.Dims
}

// MaxShape returns the maximum dimensions. Unlimited dimensions are
// message.Unlimited.
func (d *Dataset) MaxShape() []uint64 {
	if d.dataspace.MaxDims == nil {
		return d.Shape()
	}
	return d.dataspace.MaxDims
}

// Rank returns the number of dimensions.
func (d *Dataset) Rank() int {
	return len(d.Shape())
}

// NumElements returns the total number of elements.
func (d *Dataset) NumElements() int {
	return int(d.dataspace.NumElements())
}

// IsScalar returns true if the dataset is a scalar (single value).
func (d *Dataset) IsScalar() bool {
	return d.dataspace.Kind == message.SpaceScalar
}

// Datatype returns the element datatype.
func (d *Dataset) Datatype() *message.Datatype {
	return d.datatype
}

// Filters returns the filter pipeline, or nil if the dataset is unfiltered.
func (d *Dataset) Filters() *message.FilterPipeline {
	return d.filters
}

// Layout returns the data layout message.
func (d *Dataset) Layout() *message.Layout {
	return d.layout
}

// StorageSize returns the number of bytes the raw data occupies in the
// file, excluding global heap payloads and chunk index nodes. It is zero
// when a chunk index cannot be read.
func (d *Dataset) StorageSize() uint64 {
	l := d.layout
	switch l.Class {
	case message.LayoutCompact:
		return uint64(len(l.Data))
	case message.LayoutContiguous:
		if d.file.reader.IsUndefinedOffset(l.Address) {
			return 0
		}
		return l.Size
	}
	if d.file.reader.IsUndefinedOffset(l.Address) {
		return 0
	}
	if l.Index != message.IndexSingle {
		entries, err := d.chunks()
		if err != nil {
			return 0
		}
		var n uint64
		for _, c := range entries {
			if c.Size == 0 {
				n += d.chunkBytes()
			} else {
				n += c.Size
			}
		}
		return n
	}
	if l.FilteredSize > 0 {
		return l.FilteredSize
	}
	return d.chunkBytes()
}

func (d *Dataset) chunkBytes() uint64 {
	n := uint64(d.layout.ElementSize)
	for _, c := range d.layout.ChunkDims {
		n *= c
	}
	return n
}

// ReadRaw returns the dataset's elements as stored, after undoing filters.
// Unallocated storage reads as zeros.
func (d *Dataset) ReadRaw() ([]byte, error) {
	if d.file.isClosed() {
		return nil, ErrClosed
	}
	want := uint64(d.NumElements()) * uint64(d.datatype.Size)
	l := d.layout

	switch l.Class {
	case message.LayoutCompact:
		if uint64(len(l.Data)) < want {
			return nil, fmt.Errorf("dataset %s: compact data is %d bytes, need %d", d.path, len(l.Data), want)
		}
		return l.Data[:want], nil

	case message.LayoutContiguous:
		if d.file.reader.IsUndefinedOffset(l.Address) || want == 0 {
			return make([]byte, want), nil
		}
		if l.Size < want {
			return nil, fmt.Errorf("dataset %s: contiguous storage is %d bytes, need %d", d.path, l.Size, want)
		}
		return d.file.reader.At(int64(l.Address)).ReadBytes(int(want))

	case message.LayoutChunked:
		switch l.Index {
		case message.IndexSingle:
			return d.readSingleChunk(want)
		case message.IndexBTreeV1, message.IndexBTreeV2:
			return d.readIndexedChunks(want)
		}
		return nil, fmt.Errorf("dataset %s: %w: %s chunk index", d.path, ErrUnsupported, l.Index)
	}
	return nil, fmt.Errorf("dataset %s: %w: layout class %d", d.path, ErrUnsupported, l.Class)
}

func (d *Dataset) readSingleChunk(want uint64) ([]byte, error) {
	l := d.layout
	if d.file.reader.IsUndefinedOffset(l.Address) || want == 0 {
		return make([]byte, want), nil
	}
	size := d.chunkBytes()
	if l.FilteredSize > 0 {
		size = l.FilteredSize
	}
	stored, err := d.file.reader.At(int64(l.Address)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: reading chunk: %w", d.path, err)
	}
	p, err := filter.NewPipeline(d.filters)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.path, err)
	}
	data, err := p.Decode(stored, l.FilterMask)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.path, err)
	}
	if uint64(len(data)) < want {
		return nil, fmt.Errorf("dataset %s: chunk decodes to %d bytes, need %d", d.path, len(data), want)
	}
	return data[:want], nil
}

// Read decodes all elements into dest, which must point to a slice of a
// numeric, bool or string type. Array datatypes decode flat.
func (d *Dataset) Read(dest any) error {
	if d.datatype.Class == message.ClassVarLen {
		return fmt.Errorf("dataset %s: variable-length data needs ReadVarLen", d.path)
	}
	raw, err := d.ReadRaw()
	if err != nil {
		return err
	}
	return dtype.DecodeInto(d.datatype, raw, d.NumElements(), dest)
}

// ReadVarLen returns the payload of every element of a variable-length
// dataset. Sequences return their base elements' raw bytes; strings return
// their bytes.
func (d *Dataset) ReadVarLen() ([][]byte, error) {
	if d.datatype.Class != message.ClassVarLen {
		return nil, fmt.Errorf("dataset %s: %s is not variable-length", d.path, d.datatype)
	}
	raw, err := d.ReadRaw()
	if err != nil {
		return nil, err
	}
	return d.file.readVarLen(d.datatype, raw, d.NumElements())
}

// Attrs returns the attribute names of this dataset in header order.
func (d *Dataset) Attrs() []string {
	return attrNames(d.header)
}

// Attr returns an attribute by name, or nil if not found.
func (d *Dataset) Attr(name string) *Attribute {
	return findAttr(d.file, d.header, name)
}

// HasAttr returns true if the dataset has an attribute with the given name.
func (d *Dataset) HasAttr(name string) bool {
	return d.Attr(name) != nil
}

// readVarLen resolves n variable-length elements through the global heap.
func (f *File) readVarLen(dt *message.Datatype, data []byte, n int) ([][]byte, error) {
	cfg := f.reader.Config()
	elem := varLenSize(cfg)
	if len(data) < n*elem {
		return nil, fmt.Errorf("variable-length data is %d bytes, need %d", len(data), n*elem)
	}
	baseSize := 1
	if !dt.VarLenString && dt.Base != nil {
		baseSize = int(dt.Base.Size)
	}

	rows := make([][]byte, n)
	for i := range rows {
		b := data[i*elem:]
		count := int(binary.DecodeUint(b, 4, cfg.ByteOrder))
		id, err := heap.DecodeID(b[4:], cfg)
		if err != nil {
			return nil, err
		}
		obj, err := f.heapObject(id)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		size := count * baseSize
		if len(obj) < size {
			return nil, fmt.Errorf("element %d: heap object is %d bytes, need %d", i, len(obj), size)
		}
		rows[i] = obj[:size:size]
	}
	return rows, nil
}

// varLenSize is the stored size of one variable-length element: a 4-byte
// count and a global heap ID.
func varLenSize(cfg binary.Config) int {
	return 4 + heap.Size(cfg.OffsetSize)
}
