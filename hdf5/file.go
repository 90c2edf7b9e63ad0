package hdf5

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/heap"
	"github.com/robert-malhotra/go-tables/internal/object"
	"github.com/robert-malhotra/go-tables/internal/superblock"
)

// File is an HDF5 file opened for reading. It is safe for concurrent use.
type File struct {
	path       string
	file       *os.File
	reader     *binary.Reader
	superblock *superblock.Superblock
	root       *Group

	mu     sync.Mutex
	closed bool
	heaps  map[uint64]*heap.Collection
}

// Open opens an HDF5 file for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	sb, err := superblock.Read(f)
	if err != nil {
		f.Close()
		if errors.Is(err, superblock.ErrNotHDF5) {
			return nil, fmt.Errorf("%w: %s", ErrNotHDF5, path)
		}
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	hdf := &File{
		path:       path,
		file:       f,
		reader:     binary.NewReader(f, sb.Config()),
		superblock: sb,
		heaps:      make(map[uint64]*heap.Collection),
	}

	hdr, err := object.Read(hdf.reader, sb.RootGroupAddress)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	hdf.root = &Group{file: hdf, path: "/", header: hdr}
	return hdf, nil
}

// Close releases the file. Closing twice is a no-op.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.heaps = nil
	return f.file.Close()
}

func (f *File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Root returns the root group of the file.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Version returns the superblock version.
func (f *File) Version() int {
	return int(f.superblock.Version)
}

// Size returns the end-of-file address recorded in the superblock.
func (f *File) Size() uint64 {
	return f.superblock.EOFAddress
}

// OpenGroup opens a group by absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens a dataset by absolute path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

// GetAttr returns an attribute by path, e.g. "/@version" or
// "/sensors/temp@units".
func (f *File) GetAttr(path string) (*Attribute, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	objectPath, attrName, err := ParseAttrPath(path)
	if err != nil {
		return nil, err
	}
	obj, err := f.root.open(objectPath)
	if err != nil {
		return nil, fmt.Errorf("opening object %s: %w", objectPath, err)
	}

	var attr *Attribute
	switch o := obj.(type) {
	case *Group:
		attr = o.Attr(attrName)
	case *Dataset:
		attr = o.Attr(attrName)
	}
	if attr == nil {
		return nil, fmt.Errorf("attribute %q on %s: %w", attrName, objectPath, ErrNotFound)
	}
	return attr, nil
}

// ReadAttr reads an attribute value by path. See GetAttr and
// Attribute.Value.
func (f *File) ReadAttr(path string) (any, error) {
	attr, err := f.GetAttr(path)
	if err != nil {
		return nil, err
	}
	return attr.Value()
}

// heapObject returns the payload of a global heap object. Collections are
// parsed once and cached.
func (f *File) heapObject(id heap.ID) ([]byte, error) {
	if id.IsNil() {
		return nil, nil
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	c, ok := f.heaps[id.Collection]
	f.mu.Unlock()

	if !ok {
		var err error
		c, err = heap.Read(f.reader, id.Collection)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		if f.heaps != nil {
			f.heaps[id.Collection] = c
		}
		f.mu.Unlock()
	}
	return c.Object(id.Index)
}

// findByAbsolutePath resolves an absolute path to an object header. It is
// used for soft links; visited tracks link targets to detect cycles.
func (f *File) findByAbsolutePath(absPath string, visited map[string]bool) (*object.Header, error) {
	current := f.root
	parts := SplitPath(absPath)
	if len(parts) == 0 {
		return current.header, nil
	}
	for i, name := range parts {
		hdr, err := current.findChild(name, visited)
		if err != nil {
			return nil, fmt.Errorf("resolving %q in %s: %w", name, absPath, err)
		}
		if i == len(parts)-1 {
			return hdr, nil
		}
		if !hdr.IsGroup() {
			return nil, fmt.Errorf("%q in %s: %w", name, absPath, ErrNotGroup)
		}
		current = &Group{file: f, path: JoinPath(current.path, name), header: hdr}
	}
	return nil, ErrInvalidPath
}
