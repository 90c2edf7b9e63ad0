package tables

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-tables/hdf5"
	"github.com/robert-malhotra/go-tables/internal/alloc"
	"github.com/robert-malhotra/go-tables/internal/message"
)

// flushLocked writes the image to a temporary file next to the original
// and renames it into place. The caller holds the write lock.
func (f *File) flushLocked() error {
	if f.mode == ModeRead || !f.dirty {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("flushing %s: %w", f.path, err)
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		return multierr.Append(fmt.Errorf("flushing %s: %w", f.path, err), os.Remove(name))
	}

	w, err := hdf5.Create(name)
	if err != nil {
		return multierr.Append(fmt.Errorf("flushing %s: %w", f.path, err), os.Remove(name))
	}
	root, err := f.writeObject(w, f.root)
	if err != nil {
		return multierr.Append(fmt.Errorf("flushing %s: %w", f.path, err), w.Abort())
	}
	stats := w.Stats()
	if err := w.Finish(root); err != nil {
		return multierr.Append(fmt.Errorf("flushing %s: %w", f.path, err), os.Remove(name))
	}

	if f.reader != nil {
		if err := f.reader.Close(); err != nil {
			f.log.Warn("closing previous reader", zap.Error(err))
		}
		f.reader = nil
	}
	if err := os.Rename(name, f.path); err != nil {
		err = fmt.Errorf("flushing %s: %w", f.path, err)
		if r, rerr := hdf5.Open(f.path); rerr == nil {
			f.reader = r
		}
		return multierr.Append(err, os.Remove(name))
	}
	if f.reader, err = hdf5.Open(f.path); err != nil {
		return fmt.Errorf("reopening %s: %w", f.path, err)
	}

	nodes := f.markClean(f.root, "/")
	f.dirty = false
	f.log.Debug("flushed file",
		zap.Int("nodes", nodes),
		zap.Uint64("bytes", f.reader.Size()),
		zap.Uint64("heap_bytes", stats.Bytes[alloc.Heap]))
	return nil
}

// writeObject writes o after its children and returns its address.
func (f *File) writeObject(w *hdf5.Writer, o *object) (uint64, error) {
	if err := f.meta(o); err != nil {
		return 0, err
	}
	switch o.kind {
	case objGroup:
		if _, err := f.children(o); err != nil {
			return 0, err
		}
		var links []*message.Link
		for _, c := range o.sortedChildren() {
			addr, err := f.writeObject(w, c)
			if err != nil {
				return 0, err
			}
			links = append(links, message.HardLink(c.h5name, addr))
		}
		return w.WriteGroup(links, f.attrMessages(o))

	case objArray:
		p, err := f.leafData(o, false)
		if err != nil {
			return 0, err
		}
		spec := hdf5.DatasetSpec{
			Datatype: o.dtype,
			Data:     p.raw,
			Attrs:    f.attrMessages(o),
			Filters:  o.filters.pipeline(int(o.dtype.Scalar().Size)),
		}
		for _, d := range o.shape {
			spec.Dims = append(spec.Dims, uint64(d))
		}
		o.chunk = nil
		if spec.Filters != nil {
			for _, d := range o.shape {
				o.chunk = append(o.chunk, max(d, 1))
			}
		}
		addr, err := w.WriteDataset(spec)
		if err != nil {
			return 0, fmt.Errorf("writing %s: %w", o.path(), err)
		}
		return addr, nil

	case objVLArray:
		p, err := f.leafData(o, false)
		if err != nil {
			return 0, err
		}
		spec := hdf5.DatasetSpec{
			Datatype: message.Sequence(o.dtype),
			Dims:     []uint64{uint64(len(p.rows))},
			Attrs:    f.attrMessages(o),
			Filters:  o.filters.pipeline(hdf5VarLenSize),
		}
		if spec.Filters != nil {
			spec.MaxDims = []uint64{message.Unlimited}
		}
		addr, err := w.WriteVarLen(spec, p.rows)
		if err != nil {
			return 0, fmt.Errorf("writing %s: %w", o.path(), err)
		}
		return addr, nil
	}
	return 0, fmt.Errorf("writing %s: unknown node kind %d", o.path(), o.kind)
}

// hdf5VarLenSize is the stored size of one variable-length element,
// which the shuffle filter of a VLArray works on.
const hdf5VarLenSize = 16

// markClean records that the loaded tree under o now matches the file at
// src and moves pinned payloads to the data cache. It returns the number
// of objects visited.
func (f *File) markClean(o *object, src string) int {
	o.src = src
	if o.data != nil {
		if f.data != nil {
			f.data.Add(o.id, o.data)
		}
		o.data = nil
	}
	n := 1
	for _, c := range o.children {
		n += f.markClean(c, hdf5.JoinPath(src, c.h5name))
	}
	return n
}
