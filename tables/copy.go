package tables

import (
	"fmt"
	"math"
	"slices"
)

// copyLocked copies src of sf into df. The caller holds the write locks of
// both files.
func copyLocked(src *object, sf, df *File, opts CopyOptions) (Node, error) {
	if err := df.checkWritable(); err != nil {
		return nil, err
	}
	parent := src.parent
	if opts.NewParent != nil {
		pb := opts.NewParent.base()
		if err := pb.check(); err != nil {
			return nil, fmt.Errorf("%w: destination group: %v", ErrNode, err)
		}
		parent = pb.obj
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: copying the root group needs a destination group", ErrNode)
	}
	name := opts.NewName
	if name == "" {
		name = src.name
	}
	if opts.Filters != nil {
		if err := opts.Filters.validate(); err != nil {
			return nil, err
		}
	}

	if sf == df {
		if parent == src.parent && name == src.name {
			return nil, fmt.Errorf("%w: cannot copy %s over itself", ErrNode, src.path())
		}
		if opts.Recursive && src.kind == objGroup && parent.isWithin(src) {
			return nil, fmt.Errorf("%w: cannot copy %s recursively into itself", ErrNode, src.path())
		}
		children, err := df.children(parent)
		if err != nil {
			return nil, err
		}
		if old, ok := children[name]; ok && src.isWithin(old) {
			return nil, fmt.Errorf("%w: cannot overwrite %s with its own copy", ErrNode, old.path())
		}
	}
	if err := checkName(df.log, name); err != nil {
		return nil, err
	}
	if err := df.maybeRemove(parent, name, opts.Overwrite); err != nil {
		return nil, err
	}

	stats := opts.Stats
	if stats == nil {
		stats = &CopyStats{}
	}
	o, err := copyObject(sf, src, df, parent, name, opts, stats, true)
	if err != nil {
		return nil, err
	}
	return df.handle(o)
}

func copyObject(sf *File, src *object, df *File, parent *object, name string, opts CopyOptions, stats *CopyStats, top bool) (*object, error) {
	if err := sf.meta(src); err != nil {
		return nil, err
	}
	title, _ := src.attrs["TITLE"].(string)
	if top && opts.Title != nil {
		title = *opts.Title
	}

	var o *object
	var err error
	if src.kind == objGroup {
		if o, err = df.createGroupLocked(parent, name, title); err != nil {
			return nil, err
		}
		stats.Groups++
		if opts.Recursive {
			if _, err := sf.children(src); err != nil {
				return nil, err
			}
			for _, c := range src.sortedChildren() {
				if _, err := copyObject(sf, c, df, o, c.name, opts, stats, false); err != nil {
					return nil, err
				}
			}
		}
	} else {
		if o, err = copyLeaf(sf, src, df, parent, name, title, opts, stats); err != nil {
			return nil, err
		}
		stats.Leaves++
	}

	if opts.CopyUserAttrs {
		if err := copyUserAttrs(sf, src, df, o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// copyLeaf copies the selected rows of leaf src one at a time.
func copyLeaf(sf *File, src *object, df *File, parent *object, name, title string, opts CopyOptions, stats *CopyStats) (*object, error) {
	filters := src.filters
	if opts.Filters != nil {
		filters = opts.Filters.normalize()
	}
	step := opts.Step
	if step == 0 {
		step = 1
	}
	stop := opts.Stop
	if stop == 0 {
		stop = math.MaxInt
	}
	start, stop, step, err := rowRange(opts.Start, stop, step, src.nrows())
	if err != nil {
		return nil, err
	}
	if src.kind == objArray && len(src.shape) == 0 && filters.pipeline(src.atom.ItemSize) != nil {
		return nil, fmt.Errorf("%w: filters need at least one dimension", ErrShape)
	}
	p, err := sf.leafData(src, false)
	if err != nil {
		return nil, err
	}

	data := &payload{}
	var shape []int
	if src.kind == objVLArray {
		data.rows = make([][]byte, 0, rangeLen(start, stop, step))
		for i := start; i < stop; i += step {
			row := slices.Clone(p.rows[i])
			data.rows = append(data.rows, row)
			stats.Bytes += int64(len(row))
		}
		shape = []int{len(data.rows)}
	} else if len(src.shape) == 0 {
		data.raw = slices.Clone(p.raw)
		stats.Bytes += int64(len(data.raw))
	} else {
		rowBytes := int(src.dtype.Size)
		for _, d := range src.shape[1:] {
			rowBytes *= d
		}
		n := 0
		for i := start; i < stop; i += step {
			data.raw = append(data.raw, p.raw[i*rowBytes:(i+1)*rowBytes]...)
			n++
		}
		stats.Bytes += int64(len(data.raw))
		shape = append([]int{n}, src.shape[1:]...)
	}

	o, err := df.addChild(parent, name, src.kind)
	if err != nil {
		return nil, err
	}
	o.atom = src.atom
	o.atom.Shape = slices.Clone(src.atom.Shape)
	o.dtype = src.dtype
	o.shape = shape
	o.filters = filters
	o.expectedMB = src.expectedMB
	o.data = data
	if src.kind == objVLArray {
		leafAttrs(o, classVLArray, versionVLArray, title)
	} else {
		if filters.pipeline(src.atom.ItemSize) != nil {
			for _, d := range shape {
				o.chunk = append(o.chunk, max(d, 1))
			}
		}
		leafAttrs(o, classArray, versionArray, title)
	}
	return o, nil
}
