package tables

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-tables/hdf5"
	"github.com/robert-malhotra/go-tables/internal/message"
)

type objectKind int

const (
	objGroup objectKind = iota
	objArray
	objVLArray
)

// System attribute values per node class.
const (
	classGroup   = "GROUP"
	classArray   = "ARRAY"
	classVLArray = "VLARRAY"

	versionGroup   = "1.0"
	versionArray   = "2.3"
	versionVLArray = "1.2"
	formatVersion  = "1.6"
)

// payload is the data of a leaf: the raw elements of an Array or the raw
// base elements of every VLArray row.
type payload struct {
	raw  []byte
	rows [][]byte
}

func (p *payload) clone() *payload {
	c := &payload{raw: slices.Clone(p.raw)}
	if p.rows != nil {
		c.rows = make([][]byte, len(p.rows))
		for i, r := range p.rows {
			c.rows[i] = slices.Clone(r)
		}
	}
	return c
}

func (p *payload) size() int64 {
	n := int64(len(p.raw))
	for _, r := range p.rows {
		n += int64(len(r))
	}
	return n
}

// object is one node of the in-memory image. Objects loaded from disk
// remember their stored path in src and load their attributes, children
// and data on first use.
type object struct {
	id     uint64
	kind   objectKind
	name   string
	h5name string
	parent *object
	// src is the object's path in the file on disk, "" if never written.
	src     string
	removed bool

	metaLoaded bool
	attrs      map[string]any

	// children is nil until loaded.
	children map[string]*object

	// Leaf metadata. dtype is the stored element type of an Array or the
	// stored base type of a VLArray row.
	atom       Atom
	dtype      *message.Datatype
	shape      []int
	filters    Filters
	expectedMB float64
	chunk      []int

	// data is pinned while the leaf has unflushed changes.
	data *payload
}

func (o *object) path() string {
	if o.parent == nil {
		return "/"
	}
	return hdf5.JoinPath(o.parent.path(), o.name)
}

func (o *object) depth() int {
	d := 0
	for p := o.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// isWithin reports whether o is anc or one of its descendants.
func (o *object) isWithin(anc *object) bool {
	for p := o; p != nil; p = p.parent {
		if p == anc {
			return true
		}
	}
	return false
}

func (o *object) nrows() int {
	if len(o.shape) == 0 {
		return 1
	}
	return o.shape[0]
}

func (o *object) sortedChildren() []*object {
	names := make([]string, 0, len(o.children))
	for name := range o.children {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]*object, len(names))
	for i, name := range names {
		out[i] = o.children[name]
	}
	return out
}

func (f *File) newObject(kind objectKind, parent *object, name string) *object {
	f.lastID++
	o := &object{
		id:         f.lastID,
		kind:       kind,
		name:       name,
		h5name:     f.tr.h5Name(name),
		parent:     parent,
		metaLoaded: true,
		attrs:      map[string]any{},
		expectedMB: 1.0,
	}
	if kind == objGroup {
		o.children = map[string]*object{}
	}
	return o
}

// children returns the loaded children of group o.
func (f *File) children(o *object) (map[string]*object, error) {
	f.imgMu.Lock()
	defer f.imgMu.Unlock()
	if err := f.loadChildren(o); err != nil {
		return nil, err
	}
	return o.children, nil
}

func (f *File) loadChildren(o *object) error {
	if o.children != nil {
		return nil
	}
	g, err := f.reader.OpenGroup(o.src)
	if err != nil {
		return fmt.Errorf("loading group %s: %w", o.path(), err)
	}
	members, err := g.Members()
	if err != nil {
		return fmt.Errorf("loading group %s: %w", o.path(), err)
	}

	children := make(map[string]*object, len(members))
	base := o.path()
	for _, h5name := range members {
		k, err := g.Kind(h5name)
		if err != nil || k == hdf5.KindUnknown {
			f.log.Warn("skipping unreadable member",
				zap.String("path", hdf5.JoinPath(o.src, h5name)), zap.Error(err))
			continue
		}
		f.lastID++
		child := &object{
			id:     f.lastID,
			kind:   objArray,
			name:   f.tr.ptName(h5name),
			h5name: h5name,
			parent: o,
			src:    hdf5.JoinPath(o.src, h5name),
		}
		if k == hdf5.KindGroup {
			child.kind = objGroup
		}
		children[child.name] = child
		f.index[hdf5.JoinPath(base, child.name)] = child
	}
	o.children = children
	return nil
}

// meta loads the attributes and leaf metadata of o.
func (f *File) meta(o *object) error {
	f.imgMu.Lock()
	defer f.imgMu.Unlock()
	return f.loadMeta(o)
}

func (f *File) loadMeta(o *object) error {
	if o.metaLoaded {
		return nil
	}
	if o.kind == objGroup {
		g, err := f.reader.OpenGroup(o.src)
		if err != nil {
			return fmt.Errorf("loading group %s: %w", o.path(), err)
		}
		o.attrs = f.loadAttrs(o.src, g.Attrs(), g.Attr)
		o.metaLoaded = true
		return nil
	}

	ds, err := f.reader.OpenDataset(o.src)
	if err != nil {
		return fmt.Errorf("loading leaf %s: %w", o.path(), err)
	}
	attrs := f.loadAttrs(o.src, ds.Attrs(), ds.Attr)
	flavor, _ := attrs["FLAVOR"].(string)
	dt := ds.Datatype()

	o.attrs = attrs
	o.filters = filtersFromPipeline(ds.Filters())
	o.expectedMB = 1.0
	if dt.Class == message.ClassVarLen {
		if dt.VarLenString && flavor == "" {
			flavor = FlavorVLString
			attrs["FLAVOR"] = flavor
		}
		o.kind = objVLArray
		o.dtype = dt.Base
		o.shape = []int{ds.NumElements()}
	} else {
		o.kind = objArray
		o.dtype = dt
		for _, d := range ds.Shape() {
			o.shape = append(o.shape, int(d))
		}
		if l := ds.Layout(); l != nil && l.Class == message.LayoutChunked {
			for _, d := range l.ChunkDims {
				o.chunk = append(o.chunk, int(d))
			}
		}
	}
	if o.dtype == nil {
		return fmt.Errorf("loading leaf %s: %w: no element type", o.path(), ErrType)
	}
	if o.atom, err = atomFromDatatype(o.dtype, flavor); err != nil {
		return fmt.Errorf("loading leaf %s: %w", o.path(), err)
	}
	o.metaLoaded = true
	return nil
}

func (f *File) loadAttrs(src string, names []string, get func(string) *hdf5.Attribute) map[string]any {
	attrs := make(map[string]any, len(names))
	for _, name := range names {
		v, err := get(name).Value()
		if err != nil {
			f.log.Warn("skipping unreadable attribute",
				zap.String("path", src), zap.String("name", name), zap.Error(err))
			continue
		}
		attrs[name] = v
	}
	return attrs
}

// lookup resolves an absolute path to its image object, loading groups
// along the way.
func (f *File) lookup(path string) (*object, error) {
	path = hdf5.CleanPath(path)
	f.imgMu.Lock()
	defer f.imgMu.Unlock()
	if o, ok := f.index[path]; ok {
		return o, nil
	}
	o := f.root
	for _, name := range hdf5.SplitPath(path) {
		if o.kind != objGroup {
			return nil, fmt.Errorf("%s: %w", o.path(), ErrNotGroup)
		}
		if err := f.loadChildren(o); err != nil {
			return nil, err
		}
		child, ok := o.children[name]
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, ErrNoSuchNode)
		}
		o = child
	}
	return o, nil
}

// indexTree adds o and its loaded descendants to the path index.
func (f *File) indexTree(o *object) {
	f.index[o.path()] = o
	for _, c := range o.children {
		f.indexTree(c)
	}
}

// unindexTree removes o and its loaded descendants from the path index
// and the node cache.
func (f *File) unindexTree(o *object) {
	p := o.path()
	delete(f.index, p)
	f.forgetHandle(p)
	for _, c := range o.children {
		f.unindexTree(c)
	}
}

// markRemoved flags o and its loaded descendants as removed so that their
// handles report ErrClosedNode.
func (f *File) markRemoved(o *object) {
	o.removed = true
	o.data = nil
	if f.data != nil {
		f.data.Remove(o.id)
	}
	for _, c := range o.children {
		f.markRemoved(c)
	}
}

// leafData returns the payload of leaf o. Clean payloads come from the
// data cache or disk; cache controls whether a disk load is cached.
func (f *File) leafData(o *object, cache bool) (*payload, error) {
	if o.data != nil {
		return o.data, nil
	}
	if f.data != nil {
		if p, ok := f.data.Get(o.id); ok {
			f.hits.Add(1)
			return p, nil
		}
	}
	f.misses.Add(1)

	if o.src == "" {
		return &payload{}, nil
	}
	ds, err := f.reader.OpenDataset(o.src)
	if err != nil {
		return nil, fmt.Errorf("loading data of %s: %w", o.path(), err)
	}
	p := &payload{}
	if o.kind == objVLArray {
		p.rows, err = ds.ReadVarLen()
	} else {
		p.raw, err = ds.ReadRaw()
	}
	if err != nil {
		return nil, fmt.Errorf("loading data of %s: %w", o.path(), err)
	}
	if cache && f.data != nil {
		f.data.Add(o.id, p)
	}
	return p, nil
}

// pin returns a private payload of o for modification and marks the
// file dirty. The caller holds the write lock.
func (f *File) pin(o *object) (*payload, error) {
	if o.data != nil {
		f.dirty = true
		return o.data, nil
	}
	p, err := f.leafData(o, false)
	if err != nil {
		return nil, err
	}
	o.data = p.clone()
	if f.data != nil {
		f.data.Remove(o.id)
	}
	f.dirty = true
	return o.data, nil
}
