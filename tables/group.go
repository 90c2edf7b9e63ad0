package tables

import (
	"errors"
	"fmt"
)

// Group is a node holding other nodes by name.
type Group struct {
	nodeBase
}

func newGroup(f *File, o *object) *Group {
	return &Group{nodeBase: nodeBase{file: f, obj: o}}
}

// childObjects returns the children sorted by name under the read lock.
func (g *Group) childObjects() ([]Node, error) {
	if err := g.rlock(); err != nil {
		return nil, err
	}
	defer g.file.mu.RUnlock()
	if _, err := g.file.children(g.obj); err != nil {
		return nil, err
	}
	var out []Node
	for _, c := range g.obj.sortedChildren() {
		n, err := g.file.handle(c)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Children returns the child nodes sorted by name. It is nil for a closed
// group.
func (g *Group) Children() []Node {
	nodes, _ := g.childObjects()
	return nodes
}

// ChildNames returns the child names, sorted.
func (g *Group) ChildNames() []string {
	if err := g.rlock(); err != nil {
		return nil
	}
	defer g.file.mu.RUnlock()
	if _, err := g.file.children(g.obj); err != nil {
		return nil
	}
	cs := g.obj.sortedChildren()
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.name
	}
	return names
}

// Child returns the child named name.
func (g *Group) Child(name string) (Node, error) {
	if err := g.rlock(); err != nil {
		return nil, err
	}
	defer g.file.mu.RUnlock()
	children, err := g.file.children(g.obj)
	if err != nil {
		return nil, err
	}
	c, ok := children[name]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", g.obj.path(), name, ErrNoSuchNode)
	}
	return g.file.handle(c)
}

// Contains reports whether the group has a child named name.
func (g *Group) Contains(name string) bool {
	_, err := g.Child(name)
	return err == nil
}

// Groups returns the child groups sorted by name.
func (g *Group) Groups() []*Group {
	var out []*Group
	for _, n := range g.Children() {
		if c, ok := n.(*Group); ok {
			out = append(out, c)
		}
	}
	return out
}

// Leaves returns the child leaves sorted by name.
func (g *Group) Leaves() []Leaf {
	var out []Leaf
	for _, n := range g.Children() {
		if l, ok := n.(Leaf); ok {
			out = append(out, l)
		}
	}
	return out
}

// Walk calls fn for the group and its descendants in pre-order. Returning
// ErrStopWalk stops the walk without an error.
func (g *Group) Walk(fn func(Node) error) error {
	if err := g.rlock(); err != nil {
		return err
	}
	p := g.obj.path()
	g.file.mu.RUnlock()
	return g.file.WalkNodes(p, fn)
}

// CreateGroup creates a child group.
func (g *Group) CreateGroup(name string, opts ...NodeOption) (*Group, error) {
	return createIn[*Group](g, func(o *nodeOptions) (*object, error) {
		return g.file.createGroupLocked(g.obj, name, o.title)
	}, opts)
}

// CreateArray creates a child Array holding data.
func (g *Group) CreateArray(name string, data any, opts ...NodeOption) (*Array, error) {
	return createIn[*Array](g, func(o *nodeOptions) (*object, error) {
		return g.file.createArrayLocked(g.obj, name, data, o)
	}, opts)
}

// CreateVLArray creates an empty child VLArray.
func (g *Group) CreateVLArray(name string, atom Atom, opts ...NodeOption) (*VLArray, error) {
	return createIn[*VLArray](g, func(o *nodeOptions) (*object, error) {
		return g.file.createVLArrayLocked(g.obj, name, atom, o)
	}, opts)
}

func createIn[T Node](g *Group, create func(*nodeOptions) (*object, error), opts []NodeOption) (T, error) {
	var zero T
	no, err := applyNodeOptions(opts)
	if err != nil {
		return zero, err
	}
	if err := g.lock(); err != nil {
		return zero, err
	}
	defer g.file.mu.Unlock()
	o, err := create(no)
	if err != nil {
		return zero, err
	}
	n, err := g.file.handle(o)
	if err != nil {
		return zero, err
	}
	t, ok := n.(T)
	if !ok {
		return zero, errors.New("created node has an unexpected type")
	}
	return t, nil
}

func (f *File) createGroupLocked(parent *object, name, title string) (*object, error) {
	o, err := f.addChild(parent, name, objGroup)
	if err != nil {
		return nil, err
	}
	o.attrs["CLASS"] = classGroup
	o.attrs["VERSION"] = versionGroup
	o.attrs["TITLE"] = title
	return o, nil
}
