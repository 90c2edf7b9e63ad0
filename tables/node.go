package tables

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-tables/hdf5"
)

// Node is a group or leaf of a File. Handles stay attached to their node
// across moves and renames; closing a handle detaches it.
type Node interface {
	File() *File
	// Parent returns the parent group, or nil for the root.
	Parent() *Group
	Name() string
	// HDF5Name returns the name stored in the file, which differs from
	// Name for translated names.
	HDF5Name() string
	Path() string
	// Depth returns the number of ancestors; the root has depth 0.
	Depth() int
	IsVisible() bool

	Attrs() *AttributeSet
	GetAttr(name string) (any, error)
	SetAttr(name string, value any) error
	DelAttr(name string) error
	Title() string
	SetTitle(title string) error

	IsOpen() bool
	Close() error
	Remove(recursive bool) error
	Rename(newName string) error
	Move(newParent *Group, newName string, overwrite bool) error
	Copy(opts CopyOptions) (Node, error)

	base() *nodeBase
}

// nodeBase implements the location and attribute methods shared by every
// node.
type nodeBase struct {
	file   *File
	obj    *object
	closed atomic.Bool

	attrsOnce sync.Once
	attrs     *AttributeSet
}

func (n *nodeBase) base() *nodeBase { return n }

// isOpen is called with the file lock held.
func (n *nodeBase) isOpen() bool {
	return !n.closed.Load() && !n.obj.removed && !n.file.closed.Load()
}

// check is called with the file lock held.
func (n *nodeBase) check() error {
	if n.file.closed.Load() {
		return ErrClosedFile
	}
	if n.closed.Load() || n.obj.removed {
		return fmt.Errorf("%s: %w", n.obj.path(), ErrClosedNode)
	}
	return nil
}

func (n *nodeBase) checkWritable() error {
	if err := n.check(); err != nil {
		return err
	}
	return n.file.checkWritable()
}

// rlock read-locks the file and checks the handle.
func (n *nodeBase) rlock() error {
	n.file.mu.RLock()
	if err := n.check(); err != nil {
		n.file.mu.RUnlock()
		return err
	}
	return nil
}

// lock write-locks the file and checks the handle is writable.
func (n *nodeBase) lock() error {
	n.file.mu.Lock()
	if err := n.checkWritable(); err != nil {
		n.file.mu.Unlock()
		return err
	}
	return nil
}

func (n *nodeBase) File() *File {
	return n.file
}

func (n *nodeBase) Parent() *Group {
	n.file.mu.RLock()
	defer n.file.mu.RUnlock()
	p := n.obj.parent
	if p == nil {
		return nil
	}
	h, err := n.file.handle(p)
	if err != nil {
		return nil
	}
	return h.(*Group)
}

func (n *nodeBase) Name() string {
	n.file.mu.RLock()
	defer n.file.mu.RUnlock()
	return n.obj.name
}

func (n *nodeBase) HDF5Name() string {
	n.file.mu.RLock()
	defer n.file.mu.RUnlock()
	return n.obj.h5name
}

func (n *nodeBase) Path() string {
	n.file.mu.RLock()
	defer n.file.mu.RUnlock()
	return n.obj.path()
}

func (n *nodeBase) Depth() int {
	n.file.mu.RLock()
	defer n.file.mu.RUnlock()
	return n.obj.depth()
}

func (n *nodeBase) IsVisible() bool {
	return IsVisiblePath(n.Path())
}

func (n *nodeBase) IsOpen() bool {
	n.file.mu.RLock()
	defer n.file.mu.RUnlock()
	return n.isOpen()
}

// Close detaches the handle. It does not close descendants.
func (n *nodeBase) Close() error {
	n.file.mu.RLock()
	defer n.file.mu.RUnlock()
	if n.closed.Swap(true) {
		return nil
	}
	if c := n.file.nodes; c != nil {
		p := n.obj.path()
		if cached, ok := c.Peek(p); ok && cached.base() == n {
			c.Remove(p)
		}
	}
	return nil
}

// Attrs returns the attribute set of the node.
func (n *nodeBase) Attrs() *AttributeSet {
	n.attrsOnce.Do(func() {
		n.attrs = &AttributeSet{node: n}
	})
	return n.attrs
}

func (n *nodeBase) GetAttr(name string) (any, error) {
	return n.Attrs().Get(name)
}

func (n *nodeBase) SetAttr(name string, value any) error {
	return n.Attrs().Set(name, value)
}

func (n *nodeBase) DelAttr(name string) error {
	return n.Attrs().Delete(name)
}

// Title returns the TITLE attribute, or "" if it is absent.
func (n *nodeBase) Title() string {
	v, err := n.Attrs().Get("TITLE")
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (n *nodeBase) SetTitle(title string) error {
	return n.Attrs().Set("TITLE", title)
}

// Remove removes the node from the hierarchy and closes every handle to
// it and its descendants.
func (n *nodeBase) Remove(recursive bool) error {
	if err := n.lock(); err != nil {
		return err
	}
	defer n.file.mu.Unlock()
	return n.file.removeLocked(n.obj, recursive)
}

// Rename changes the node's name within its group.
func (n *nodeBase) Rename(newName string) error {
	return n.Move(nil, newName, false)
}

// Move moves the node under newParent as newName. A nil newParent keeps
// the parent and an empty newName keeps the name.
func (n *nodeBase) Move(newParent *Group, newName string, overwrite bool) error {
	if newParent == nil && newName == "" {
		return fmt.Errorf("%w: move needs a new parent or a new name", ErrNode)
	}
	if err := n.lock(); err != nil {
		return err
	}
	defer n.file.mu.Unlock()

	parent := n.obj.parent
	if newParent != nil {
		pb := newParent.base()
		if pb.file != n.file {
			return fmt.Errorf("%w: cannot move %s to another file", ErrNode, n.obj.path())
		}
		if err := pb.check(); err != nil {
			return fmt.Errorf("%w: destination group: %v", ErrNode, err)
		}
		parent = pb.obj
	}
	if parent == nil {
		return fmt.Errorf("%w: cannot move the root group", ErrNode)
	}
	if newName == "" {
		newName = n.obj.name
	}
	return n.file.moveLocked(n.obj, parent, newName, overwrite)
}

// Copy copies the node, possibly into another file.
func (n *nodeBase) Copy(opts CopyOptions) (Node, error) {
	var dst *File
	if opts.NewParent != nil {
		dst = opts.NewParent.base().file
	} else {
		dst = n.file
	}
	unlock := lockPair(n.file, dst)
	defer unlock()
	if err := n.check(); err != nil {
		return nil, err
	}
	return copyLocked(n.obj, n.file, dst, opts)
}

// removeLocked detaches o from its parent.
func (f *File) removeLocked(o *object, recursive bool) error {
	if o.parent == nil {
		return fmt.Errorf("%w: cannot remove the root group", ErrNode)
	}
	if o.kind == objGroup && !recursive {
		children, err := f.children(o)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return fmt.Errorf("%w: group %s has children; remove it recursively", ErrNode, o.path())
		}
	}
	f.unindexTree(o)
	delete(o.parent.children, o.name)
	f.markRemoved(o)
	f.dirty = true
	return nil
}

// moveLocked relocates o under parent as name.
func (f *File) moveLocked(o, parent *object, name string, overwrite bool) error {
	if o.parent == parent && o.name == name {
		return nil
	}
	if err := checkName(f.log, name); err != nil {
		return err
	}
	if parent.isWithin(o) {
		return fmt.Errorf("%w: cannot move %s into itself or a descendant", ErrNode, o.path())
	}
	if old, ok := parent.children[name]; ok && o.isWithin(old) {
		return fmt.Errorf("%w: cannot overwrite an ancestor of %s", ErrNode, o.path())
	}
	if err := f.maybeRemove(parent, name, overwrite); err != nil {
		return err
	}
	f.checkDepth(parent, name)
	f.checkWidth(parent)

	f.unindexTree(o)
	delete(o.parent.children, o.name)
	o.parent = parent
	o.name = name
	o.h5name = f.tr.h5Name(name)
	parent.children[name] = o
	f.indexTree(o)
	f.dirty = true
	return nil
}

// maybeRemove clears the destination name in parent, which must exist
// only when overwrite is set.
func (f *File) maybeRemove(parent *object, name string, overwrite bool) error {
	children, err := f.children(parent)
	if err != nil {
		return err
	}
	old, ok := children[name]
	if !ok {
		return nil
	}
	if !overwrite {
		return fmt.Errorf("%w: destination %s already exists", ErrNode, old.path())
	}
	return f.removeLocked(old, true)
}

func (f *File) checkDepth(parent *object, name string) {
	if d := parent.depth(); d >= f.params.MaxTreeDepth {
		f.log.Warn("node is deeper than the recommended tree depth",
			zap.String("path", hdf5.JoinPath(parent.path(), name)),
			zap.Int("depth", d+1),
			zap.Int("limit", f.params.MaxTreeDepth))
	}
}

func (f *File) checkWidth(parent *object) {
	if n := len(parent.children); n >= f.params.MaxGroupWidth {
		f.log.Warn("group has more children than recommended",
			zap.String("path", parent.path()),
			zap.Int("children", n),
			zap.Int("limit", f.params.MaxGroupWidth))
	}
}

// addChild validates name and attaches a new object of kind to parent.
func (f *File) addChild(parent *object, name string, kind objectKind) (*object, error) {
	if err := checkName(f.log, name); err != nil {
		return nil, err
	}
	children, err := f.children(parent)
	if err != nil {
		return nil, err
	}
	if old, ok := children[name]; ok {
		return nil, fmt.Errorf("%w: %s already exists", ErrNode, old.path())
	}
	f.checkDepth(parent, name)
	f.checkWidth(parent)

	o := f.newObject(kind, parent, name)
	children[name] = o
	f.index[o.path()] = o
	f.dirty = true
	return o, nil
}
