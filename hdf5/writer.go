package hdf5

import (
	"fmt"
	"os"
	"reflect"

	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-tables/internal/alloc"
	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/dtype"
	"github.com/robert-malhotra/go-tables/internal/filter"
	"github.com/robert-malhotra/go-tables/internal/heap"
	"github.com/robert-malhotra/go-tables/internal/message"
	"github.com/robert-malhotra/go-tables/internal/object"
	"github.com/robert-malhotra/go-tables/internal/superblock"
)

const (
	minGroupHeader = object.MinGroupSize
	// compact layout message: version, class and a 2-byte size precede
	// the data.
	maxCompact = 0xffff - 4
)

// Writer creates a new HDF5 file bottom-up. Every object is written
// exactly once, after the objects it links to, so hard links always target
// known addresses and no header is ever rewritten. The superblock is
// written last by Finish.
type Writer struct {
	path  string
	file  *os.File
	w     *binary.Writer
	alloc *alloc.Allocator
	opts  *writerOptions
	done  bool
}

// Create truncates or creates path and returns a Writer for it.
func Create(path string, opts ...WriterOption) (*Writer, error) {
	o := defaultWriterOptions()
	for _, opt := range opts {
		opt(o)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	sb := superblock.New(0, 0)
	return &Writer{
		path:  path,
		file:  f,
		w:     binary.NewWriter(f, sb.Config()),
		alloc: alloc.New(uint64(sb.Size())),
		opts:  o,
	}, nil
}

// Path returns the path of the file being written.
func (w *Writer) Path() string {
	return w.path
}

// Stats returns the space allocated so far, by kind.
func (w *Writer) Stats() alloc.Stats {
	return w.alloc.Stats()
}

// DatasetSpec describes a dataset to write.
type DatasetSpec struct {
	Datatype *message.Datatype
	// Dims is nil for a scalar dataset.
	Dims []uint64
	// MaxDims may mark dimensions message.Unlimited; nil means fixed. It
	// only applies to chunked (filtered) datasets.
	MaxDims []uint64
	// Data holds the raw elements. WriteVarLen fills it in.
	Data  []byte
	Attrs []*message.Attribute
	// Filters selects chunked storage with a single chunk covering the
	// whole dataset.
	Filters *message.FilterPipeline
}

func (s *DatasetSpec) dataspace() *message.Dataspace {
	if s.Dims == nil {
		return message.Scalar()
	}
	return message.Simple(s.Dims, s.MaxDims)
}

func (s *DatasetSpec) filtered() bool {
	return s.Filters != nil && len(s.Filters.Filters) > 0
}

// WriteDataset writes the dataset's data and object header and returns the
// header address.
func (w *Writer) WriteDataset(spec DatasetSpec) (uint64, error) {
	if w.done {
		return 0, ErrClosed
	}
	if spec.Datatype == nil {
		return 0, fmt.Errorf("dataset has no datatype")
	}
	space := spec.dataspace()
	want := space.NumElements() * uint64(spec.Datatype.Size)
	if uint64(len(spec.Data)) != want {
		return 0, fmt.Errorf("dataset data is %d bytes, %s%v needs %d", len(spec.Data), spec.Datatype, spec.Dims, want)
	}

	layout, err := w.writeData(&spec)
	if err != nil {
		return 0, err
	}
	if layout.Class != message.LayoutChunked {
		// Only chunked storage may grow past its dimensions.
		space.MaxDims = nil
	}
	msgs := []message.Encoder{space, spec.Datatype, layout}
	if spec.filtered() {
		msgs = append(msgs, spec.Filters)
	}
	for _, a := range spec.Attrs {
		msgs = append(msgs, a)
	}
	return w.writeHeader(msgs, 0)
}

func (w *Writer) writeData(spec *DatasetSpec) (*message.Layout, error) {
	undefined := binary.Undefined(w.w.OffsetSize())
	n := uint64(len(spec.Data))

	if !spec.filtered() {
		switch {
		case w.opts.compactLimit > 0 && len(spec.Data) <= w.opts.compactLimit:
			return &message.Layout{Version: 3, Class: message.LayoutCompact, Data: spec.Data}, nil
		case n == 0:
			return message.Contiguous(undefined, 0), nil
		}
		addr := w.alloc.Alloc(n, alloc.Raw)
		if err := w.w.At(int64(addr)).WriteBytes(spec.Data); err != nil {
			return nil, fmt.Errorf("writing data: %w", err)
		}
		return message.Contiguous(addr, n), nil
	}

	if spec.Dims == nil {
		return nil, fmt.Errorf("%w: filters on a scalar dataset", ErrUnsupported)
	}
	chunk := make([]uint64, len(spec.Dims))
	for i, d := range spec.Dims {
		chunk[i] = max(d, 1)
	}
	if n == 0 {
		return message.SingleChunk(undefined, chunk, spec.Datatype.Size, 0, 0), nil
	}

	p, err := filter.NewPipeline(spec.Filters)
	if err != nil {
		return nil, err
	}
	enc, err := p.Encode(spec.Data)
	if err != nil {
		return nil, err
	}
	addr := w.alloc.Alloc(uint64(len(enc)), alloc.Raw)
	if err := w.w.At(int64(addr)).WriteBytes(enc); err != nil {
		return nil, fmt.Errorf("writing chunk: %w", err)
	}
	return message.SingleChunk(addr, chunk, spec.Datatype.Size, uint64(len(enc)), 0), nil
}

// WriteVarLen stores rows in global heap collections and writes a
// variable-length dataset referencing them. Each row holds whole base
// elements. Dims defaults to one dimension of len(rows).
func (w *Writer) WriteVarLen(spec DatasetSpec, rows [][]byte) (uint64, error) {
	if w.done {
		return 0, ErrClosed
	}
	dt := spec.Datatype
	if dt == nil || dt.Class != message.ClassVarLen || dt.Base == nil {
		return 0, fmt.Errorf("WriteVarLen needs a variable-length datatype, got %v", dt)
	}
	if spec.Dims == nil {
		spec.Dims = []uint64{uint64(len(rows))}
	}
	if n := spec.dataspace().NumElements(); n != uint64(len(rows)) {
		return 0, fmt.Errorf("dataspace holds %d elements, got %d rows", n, len(rows))
	}
	baseSize := 1
	if !dt.VarLenString {
		baseSize = int(dt.Base.Size)
	}

	ids, err := heap.WriteObjects(w.w, w.alloc.Func(alloc.Heap), rows)
	if err != nil {
		return 0, fmt.Errorf("writing global heap: %w", err)
	}
	cfg := w.w.Config()
	elem := varLenSize(cfg)
	data := make([]byte, len(rows)*elem)
	for i, row := range rows {
		if len(row)%baseSize != 0 {
			return 0, fmt.Errorf("row %d is %d bytes, not a multiple of %d", i, len(row), baseSize)
		}
		binary.PutUint(data[i*elem:], uint64(len(row)/baseSize), 4, cfg.ByteOrder)
		heap.PutID(data[i*elem+4:], ids[i], cfg)
	}
	spec.Data = data
	return w.WriteDataset(spec)
}

// WriteGroup writes a group header holding links and attrs and returns
// its address.
func (w *Writer) WriteGroup(links []*message.Link, attrs []*message.Attribute) (uint64, error) {
	if w.done {
		return 0, ErrClosed
	}
	undefined := binary.Undefined(w.w.OffsetSize())
	msgs := []message.Encoder{
		&message.LinkInfo{FractalHeapAddress: undefined, NameIndexAddress: undefined},
		&message.GroupInfo{},
	}
	for _, l := range links {
		msgs = append(msgs, l)
	}
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return w.writeHeader(msgs, w.opts.groupSize)
}

func (w *Writer) writeHeader(msgs []message.Encoder, minSize int) (uint64, error) {
	data, err := object.Encode(w.w.Config(), msgs, minSize)
	if err != nil {
		return 0, fmt.Errorf("encoding object header: %w", err)
	}
	addr := w.alloc.Alloc(uint64(len(data)), alloc.Meta)
	if err := w.w.At(int64(addr)).WriteBytes(data); err != nil {
		return 0, fmt.Errorf("writing object header: %w", err)
	}
	return addr, nil
}

// Finish writes the superblock pointing at the root group and closes the
// file.
func (w *Writer) Finish(rootAddr uint64) error {
	if w.done {
		return ErrClosed
	}
	w.done = true
	if err := w.alloc.Validate(); err != nil {
		return multierr.Append(err, w.file.Close())
	}
	sb := superblock.New(rootAddr, w.alloc.EOF())
	if err := sb.Write(w.w.At(0)); err != nil {
		return multierr.Append(fmt.Errorf("writing superblock: %w", err), w.file.Close())
	}
	return multierr.Append(w.file.Sync(), w.file.Close())
}

// Abort closes and removes the partially written file.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	return multierr.Append(w.file.Close(), os.Remove(w.path))
}

// NewAttribute builds an attribute message for a scalar or slice of
// bools, integers, floats or strings. Slices get a 1-D dataspace; strings
// are stored as fixed-length UTF-8.
func NewAttribute(name string, value any) (*message.Attribute, error) {
	dt, n, err := dtype.Infer(value)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	data, err := dtype.Encode(dt, value)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", name, err)
	}
	space := message.Scalar()
	if k := reflect.ValueOf(value).Kind(); k == reflect.Slice || k == reflect.Array {
		space = message.Simple([]uint64{uint64(n)}, nil)
	}
	return &message.Attribute{Name: name, Datatype: dt, Dataspace: space, Data: data}, nil
}
