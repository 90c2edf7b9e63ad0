package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-tables/internal/btree"
	"github.com/robert-malhotra/go-tables/internal/heap"
	"github.com/robert-malhotra/go-tables/internal/message"
	"github.com/robert-malhotra/go-tables/internal/object"
)

// ObjectKind is the kind of object a link resolves to.
type ObjectKind int

const (
	KindUnknown ObjectKind = iota
	KindGroup
	KindDataset
)

func (k ObjectKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	}
	return "unknown"
}

func kindOf(h *object.Header) ObjectKind {
	switch {
	case h.IsDataset():
		return KindDataset
	case h.IsGroup():
		return KindGroup
	}
	return KindUnknown
}

// Group represents an HDF5 group.
type Group struct {
	file   *File
	path   string
	header *object.Header
}

// Name returns the group name (last component of path).
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

// Path returns the full path to this group.
func (g *Group) Path() string {
	return g.path
}

// Address returns the address of the group's object header.
func (g *Group) Address() uint64 {
	return g.header.Address
}

// OpenGroup opens a subgroup by relative path.
func (g *Group) OpenGroup(relativePath string) (*Group, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}
	group, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%s: %w", relativePath, ErrNotGroup)
	}
	return group, nil
}

// OpenDataset opens a dataset by relative path.
func (g *Group) OpenDataset(relativePath string) (*Dataset, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%s: %w", relativePath, ErrNotDataset)
	}
	return ds, nil
}

// open resolves a relative path to a *Group or *Dataset.
func (g *Group) open(relativePath string) (any, error) {
	parts := SplitPath(relativePath)
	if len(parts) == 0 {
		return g, nil
	}

	current := g
	visited := make(map[string]bool)
	for i, name := range parts {
		hdr, err := current.findChild(name, visited)
		if err != nil {
			return nil, fmt.Errorf("finding %q: %w", name, err)
		}
		fullPath := JoinPath(current.path, name)
		kind := kindOf(hdr)

		if i == len(parts)-1 {
			switch kind {
			case KindDataset:
				return newDataset(g.file, fullPath, hdr)
			case KindGroup:
				return &Group{file: g.file, path: fullPath, header: hdr}, nil
			}
			return nil, fmt.Errorf("%s: %w: object is neither group nor dataset", fullPath, ErrUnsupported)
		}
		if kind != KindGroup {
			return nil, fmt.Errorf("%s: %w", fullPath, ErrNotGroup)
		}
		current = &Group{file: g.file, path: fullPath, header: hdr}
	}
	return current, nil
}

// links returns the group's links. Old-style groups have their symbol
// table entries converted to links in name order. Dense link storage
// (fractal heap and v2 B-tree) is not supported.
func (g *Group) links() ([]*message.Link, error) {
	if st := g.header.SymbolTable(); st != nil {
		return g.symbolLinks(st)
	}
	if li := g.header.LinkInfo(); li != nil && li.Dense(g.file.reader.OffsetSize()) {
		return nil, fmt.Errorf("%s: %w: dense link storage", g.path, ErrUnsupported)
	}
	return g.header.Links(), nil
}

func (g *Group) symbolLinks(st *message.SymbolTable) ([]*message.Link, error) {
	names, err := heap.ReadLocal(g.file.reader, st.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.path, err)
	}
	syms, err := btree.ReadGroup(g.file.reader, st.BTreeAddress, names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.path, err)
	}
	links := make([]*message.Link, len(syms))
	for i, s := range syms {
		if s.SoftTarget != "" {
			links[i] = message.SoftLink(s.Name, s.SoftTarget)
		} else {
			links[i] = message.HardLink(s.Name, s.Address)
		}
	}
	return links, nil
}

// findChild finds the child named name and returns its object header,
// following soft links.
func (g *Group) findChild(name string, visited map[string]bool) (*object.Header, error) {
	links, err := g.links()
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if link.Name == name {
			return g.resolveLink(link, visited)
		}
	}
	return nil, fmt.Errorf("%s: %w", JoinPath(g.path, name), ErrNotFound)
}

func (g *Group) resolveLink(link *message.Link, visited map[string]bool) (*object.Header, error) {
	switch link.Kind {
	case message.LinkHard:
		return object.Read(g.file.reader, link.Address)

	case message.LinkSoft:
		if len(visited) >= MaxLinkDepth {
			return nil, ErrLinkDepth
		}
		target := CleanPath(link.Target)
		if visited[target] {
			return nil, fmt.Errorf("circular soft link to %s", target)
		}
		visited[target] = true
		return g.file.findByAbsolutePath(target, visited)

	case message.LinkExternal:
		// Files are opened one at a time; links into other files are
		// listed by Members but never followed.
		return nil, fmt.Errorf("external link %q: %w", link.Name, ErrUnsupported)
	}
	return nil, fmt.Errorf("link %q: %w: link type %d", link.Name, ErrUnsupported, link.Kind)
}

// Members returns the names of the group's members in link order.
func (g *Group) Members() ([]string, error) {
	links, err := g.links()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, l := range links {
		names[i] = l.Name
	}
	return names, nil
}

// Kind reports whether the member name is a group or a dataset.
func (g *Group) Kind(name string) (ObjectKind, error) {
	hdr, err := g.findChild(name, make(map[string]bool))
	if err != nil {
		return KindUnknown, err
	}
	return kindOf(hdr), nil
}

// NumObjects returns the number of members in this group.
func (g *Group) NumObjects() (int, error) {
	members, err := g.Members()
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// Attrs returns the attribute names of this group in header order.
func (g *Group) Attrs() []string {
	return attrNames(g.header)
}

// Attr returns an attribute by name, or nil if not found.
func (g *Group) Attr(name string) *Attribute {
	return findAttr(g.file, g.header, name)
}

// HasAttr returns true if the group has an attribute with the given name.
func (g *Group) HasAttr(name string) bool {
	return g.Attr(name) != nil
}
