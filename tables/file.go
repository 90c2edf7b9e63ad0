package tables

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-tables/hdf5"
)

// ErrStopWalk stops WalkNodes and WalkGroups without an error.
var ErrStopWalk = errors.New("walk stopped")

// fileSeq orders the locks of two files taken by one operation.
var fileSeq atomic.Uint64

// File is an open hierarchy of nodes. A File and its nodes are safe for
// concurrent use.
type File struct {
	path   string
	mode   Mode
	params Parameters
	log    *zap.Logger
	tr     translator
	seq    uint64

	// mu guards the image: readers share it, mutators hold it exclusively.
	mu sync.RWMutex
	// imgMu serializes lazy loading under the read lock.
	imgMu  sync.Mutex
	reader *hdf5.File
	root   *object
	index  map[string]*object
	lastID uint64
	dirty  bool
	closed atomic.Bool

	nodes  *lru.Cache[string, Node]
	data   *lru.Cache[uint64, *payload]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Open opens or creates the file at path.
func Open(path string, mode Mode, opts ...Option) (*File, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("opening %s: invalid mode %q", path, mode)
	}
	o := defaultFileOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.params.Validate(); err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	f := &File{
		path:   path,
		mode:   mode,
		params: o.params,
		log:    o.log.With(zap.String("file", path)),
		tr:     newTranslator(o.trMap),
		seq:    fileSeq.Add(1),
		index:  map[string]*object{},
	}
	var err error
	if n := o.params.NodeCacheSlots; n > 0 {
		if f.nodes, err = lru.New[string, Node](n); err != nil {
			return nil, err
		}
	}
	if n := o.params.DataCacheSlots; n > 0 {
		if f.data, err = lru.New[uint64, *payload](n); err != nil {
			return nil, err
		}
	}

	_, statErr := os.Stat(path)
	create := mode == ModeWrite || mode == ModeAppend && errors.Is(statErr, os.ErrNotExist)
	if !create && statErr != nil {
		return nil, fmt.Errorf("opening %s: %w", path, statErr)
	}

	if create {
		f.root = f.newObject(objGroup, nil, "/")
		f.root.h5name = "/"
		f.root.attrs = map[string]any{
			"CLASS":                   classGroup,
			"VERSION":                 versionGroup,
			"TITLE":                   o.title,
			"PYTABLES_FORMAT_VERSION": formatVersion,
		}
		f.index["/"] = f.root
		f.dirty = true
		if err := f.flushLocked(); err != nil {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}
	} else {
		if f.reader, err = hdf5.Open(path); err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		f.lastID++
		f.root = &object{id: f.lastID, kind: objGroup, name: "/", h5name: "/", src: "/"}
		f.index["/"] = f.root
	}
	f.log.Debug("opened file", zap.String("mode", string(mode)), zap.Bool("created", create))
	return f, nil
}

// Path returns the file name.
func (f *File) Path() string {
	return f.path
}

// Mode returns the mode the file was opened with.
func (f *File) Mode() Mode {
	return f.mode
}

// IsOpen reports whether the file has not been closed.
func (f *File) IsOpen() bool {
	return !f.closed.Load()
}

// Parameters returns the file's tuning.
func (f *File) Parameters() Parameters {
	return f.params
}

func (f *File) checkOpen() error {
	if f.closed.Load() {
		return ErrClosedFile
	}
	return nil
}

func (f *File) checkWritable() error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.mode == ModeRead {
		return fmt.Errorf("%s: %w", f.path, ErrReadOnly)
	}
	return nil
}

// Root returns the root group.
func (f *File) Root() *Group {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, err := f.handle(f.root)
	if err != nil {
		f.log.Warn("loading root group", zap.Error(err))
		return newGroup(f, f.root)
	}
	return n.(*Group)
}

// Title returns the root group title.
func (f *File) Title() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.meta(f.root); err != nil {
		return ""
	}
	s, _ := f.root.attrs["TITLE"].(string)
	return s
}

// handle returns the handle of o, reusing a cached one while it is open.
func (f *File) handle(o *object) (Node, error) {
	if err := f.meta(o); err != nil {
		return nil, err
	}
	p := o.path()
	if f.nodes != nil {
		if n, ok := f.nodes.Get(p); ok && n.base().obj == o && n.base().isOpen() {
			return n, nil
		}
	}
	var n Node
	switch o.kind {
	case objGroup:
		n = newGroup(f, o)
	case objArray:
		n = newArray(f, o)
	case objVLArray:
		n = newVLArray(f, o)
	}
	if f.nodes != nil {
		f.nodes.Add(p, n)
	}
	return n, nil
}

func (f *File) forgetHandle(path string) {
	if f.nodes != nil {
		f.nodes.Remove(path)
	}
}

// GetNode returns the node at the absolute path where.
func (f *File) GetNode(where string) (Node, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	o, err := f.lookup(where)
	if err != nil {
		return nil, err
	}
	return f.handle(o)
}

// GetGroup returns the group at where.
func (f *File) GetGroup(where string) (*Group, error) {
	n, err := f.GetNode(where)
	if err != nil {
		return nil, err
	}
	g, ok := n.(*Group)
	if !ok {
		return nil, fmt.Errorf("%s: %w", where, ErrNotGroup)
	}
	return g, nil
}

// GetLeaf returns the leaf at where.
func (f *File) GetLeaf(where string) (Leaf, error) {
	n, err := f.GetNode(where)
	if err != nil {
		return nil, err
	}
	l, ok := n.(Leaf)
	if !ok {
		return nil, fmt.Errorf("%s: %w", where, ErrNotLeaf)
	}
	return l, nil
}

func (f *File) lookupGroup(where string) (*object, error) {
	o, err := f.lookup(where)
	if err != nil {
		return nil, err
	}
	if o.kind != objGroup {
		return nil, fmt.Errorf("%s: %w", where, ErrNotGroup)
	}
	return o, nil
}

// CreateGroup creates a group named name in the group at where.
func (f *File) CreateGroup(where, name string, opts ...NodeOption) (*Group, error) {
	no, err := applyNodeOptions(opts)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	parent, err := f.lookupGroup(where)
	if err != nil {
		return nil, err
	}
	o, err := f.createGroupLocked(parent, name, no.title)
	if err != nil {
		return nil, err
	}
	n, err := f.handle(o)
	if err != nil {
		return nil, err
	}
	return n.(*Group), nil
}

// CreateArray creates an Array named name in the group at where holding
// data, a scalar or a slice, nested for more than one dimension.
func (f *File) CreateArray(where, name string, data any, opts ...NodeOption) (*Array, error) {
	no, err := applyNodeOptions(opts)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	parent, err := f.lookupGroup(where)
	if err != nil {
		return nil, err
	}
	o, err := f.createArrayLocked(parent, name, data, no)
	if err != nil {
		return nil, err
	}
	n, err := f.handle(o)
	if err != nil {
		return nil, err
	}
	return n.(*Array), nil
}

// CreateVLArray creates an empty VLArray of atom named name in the group
// at where.
func (f *File) CreateVLArray(where, name string, atom Atom, opts ...NodeOption) (*VLArray, error) {
	no, err := applyNodeOptions(opts)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWritable(); err != nil {
		return nil, err
	}
	parent, err := f.lookupGroup(where)
	if err != nil {
		return nil, err
	}
	o, err := f.createVLArrayLocked(parent, name, atom, no)
	if err != nil {
		return nil, err
	}
	n, err := f.handle(o)
	if err != nil {
		return nil, err
	}
	return n.(*VLArray), nil
}

// RemoveNode removes the node at where. Groups with children need
// recursive.
func (f *File) RemoveNode(where string, recursive bool) error {
	n, err := f.GetNode(where)
	if err != nil {
		return err
	}
	return n.Remove(recursive)
}

// RenameNode renames the node at where within its group.
func (f *File) RenameNode(where, newName string) error {
	n, err := f.GetNode(where)
	if err != nil {
		return err
	}
	return n.Rename(newName)
}

// MoveNode moves the node at where under the group at newParent, which
// may be "" to keep the current parent.
func (f *File) MoveNode(where, newParent, newName string, overwrite bool) error {
	n, err := f.GetNode(where)
	if err != nil {
		return err
	}
	var parent *Group
	if newParent != "" {
		if parent, err = f.GetGroup(newParent); err != nil {
			return err
		}
	}
	return n.Move(parent, newName, overwrite)
}

// CopyNode copies the node at where.
func (f *File) CopyNode(where string, opts CopyOptions) (Node, error) {
	n, err := f.GetNode(where)
	if err != nil {
		return nil, err
	}
	return n.Copy(opts)
}

// WalkNodes calls fn for the node at where and, if it is a group, every
// descendant in pre-order with children sorted by name. Returning
// ErrStopWalk stops the walk without an error.
func (f *File) WalkNodes(where string, fn func(Node) error) error {
	nodes, err := f.collect(where, false)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := fn(n); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
	}
	return nil
}

// WalkGroups is WalkNodes restricted to groups.
func (f *File) WalkGroups(where string, fn func(*Group) error) error {
	nodes, err := f.collect(where, true)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := fn(n.(*Group)); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
	}
	return nil
}

// collect gathers the handles of a subtree so callbacks run without the
// lock held.
func (f *File) collect(where string, groupsOnly bool) ([]Node, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	start, err := f.lookup(where)
	if err != nil {
		return nil, err
	}
	var out []Node
	var visit func(o *object) error
	visit = func(o *object) error {
		if groupsOnly && o.kind != objGroup {
			return nil
		}
		n, err := f.handle(o)
		if err != nil {
			return err
		}
		out = append(out, n)
		if o.kind != objGroup {
			return nil
		}
		if _, err := f.children(o); err != nil {
			return err
		}
		for _, c := range o.sortedChildren() {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	return out, visit(start)
}

// IsVisiblePath reports whether the node at path and its ancestors are
// visible.
func (f *File) IsVisiblePath(path string) bool {
	return IsVisiblePath(path)
}

// CacheStats describes the node and data caches.
type CacheStats struct {
	Nodes     int
	NodeSlots int
	Data      int
	DataSlots int
	Hits      uint64
	Misses    uint64
}

// CacheStats returns the current cache occupancy and data cache
// counters.
func (f *File) CacheStats() CacheStats {
	s := CacheStats{
		NodeSlots: f.params.NodeCacheSlots,
		DataSlots: f.params.DataCacheSlots,
		Hits:      f.hits.Load(),
		Misses:    f.misses.Load(),
	}
	if f.nodes != nil {
		s.Nodes = f.nodes.Len()
	}
	if f.data != nil {
		s.Data = f.data.Len()
	}
	return s
}

// Flush writes pending changes to disk. It does nothing for read-only or
// unchanged files.
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return err
	}
	return f.flushLocked()
}

// Close flushes pending changes, closes every alive node and releases the
// file. Closing a closed file does nothing.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed.Load() {
		return nil
	}
	var err error
	if f.mode != ModeRead {
		err = multierr.Append(err, f.flushLocked())
	}
	if f.nodes != nil {
		for _, p := range f.nodes.Keys() {
			if n, ok := f.nodes.Peek(p); ok {
				n.base().closed.Store(true)
			}
		}
		f.nodes.Purge()
	}
	if f.data != nil {
		f.data.Purge()
	}
	if f.reader != nil {
		err = multierr.Append(err, f.reader.Close())
	}
	f.closed.Store(true)
	f.log.Debug("closed file", zap.Error(err))
	return err
}

// lockPair write-locks f and g in a fixed order. g may be f.
func lockPair(f, g *File) (unlock func()) {
	if f == g {
		f.mu.Lock()
		return f.mu.Unlock
	}
	first, second := f, g
	if second.seq < first.seq {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
