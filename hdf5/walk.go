package hdf5

import (
	"errors"
)

// ErrStopWalk can be returned from a walk callback to end the walk early.
// Walk and WalkAttrs then return nil.
var ErrStopWalk = errors.New("walk stopped")

// WalkFunc is called for each object during traversal. obj is a *Group or
// a *Dataset, or nil when err reports why the object could not be opened.
type WalkFunc func(path string, obj any, err error) error

// Walk visits g and everything below it in pre-order, members in link
// order.
//
//	hdf5.Walk(f.Root(), func(path string, obj any, err error) error {
//	    if ds, ok := obj.(*hdf5.Dataset); ok {
//	        fmt.Println(path, ds.Shape())
//	    }
//	    return err
//	})
func Walk(g *Group, fn WalkFunc) error {
	if err := walkGroup(g, fn); err != nil && !errors.Is(err, ErrStopWalk) {
		return err
	}
	return nil
}

func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g, nil); err != nil {
		return err
	}
	members, err := g.Members()
	if err != nil {
		return err
	}
	for _, name := range members {
		childPath := JoinPath(g.Path(), name)
		obj, err := g.open(name)
		if err != nil {
			if err := fn(childPath, nil, err); err != nil {
				return err
			}
			continue
		}
		switch o := obj.(type) {
		case *Group:
			if err := walkGroup(o, fn); err != nil {
				return err
			}
		case *Dataset:
			if err := fn(childPath, o, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// AttrInfo describes one attribute visited by WalkAttrs.
type AttrInfo struct {
	// Path is the full attribute path, e.g. "/group/dataset@attr".
	Path       string
	ObjectPath string
	ObjectKind ObjectKind
	Name       string
	Attr       *Attribute

	// Value is the decoded value, or nil when Err is set.
	Value any
	Err   error
}

// WalkAttrsFunc is the callback type for WalkAttrs.
type WalkAttrsFunc func(info AttrInfo) error

// WalkAttrs visits every attribute of every group and dataset in the file.
// Objects that cannot be opened are skipped.
func (f *File) WalkAttrs(fn WalkAttrsFunc) error {
	if f.isClosed() {
		return ErrClosed
	}
	return Walk(f.root, func(path string, obj any, err error) error {
		if err != nil {
			return nil
		}
		var (
			kind  ObjectKind
			names []string
			get   func(string) *Attribute
		)
		switch o := obj.(type) {
		case *Group:
			kind, names, get = KindGroup, o.Attrs(), o.Attr
		case *Dataset:
			kind, names, get = KindDataset, o.Attrs(), o.Attr
		}
		for _, name := range names {
			attr := get(name)
			info := AttrInfo{
				Path:       JoinAttrPath(path, name),
				ObjectPath: path,
				ObjectKind: kind,
				Name:       name,
				Attr:       attr,
			}
			info.Value, info.Err = attr.Value()
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}
