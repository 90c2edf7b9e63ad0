package tables

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"go.uber.org/zap"

	"github.com/robert-malhotra/go-tables/hdf5"
	"github.com/robert-malhotra/go-tables/internal/message"
)

// systemAttrs are maintained by the library, in storage order.
var systemAttrs = []string{"CLASS", "VERSION", "TITLE", "FLAVOR", "PYTABLES_FORMAT_VERSION"}

func isSystemAttr(name string) bool {
	return slices.Contains(systemAttrs, name)
}

// AttributeSet holds the attributes of a node. It is closed with its
// node.
type AttributeSet struct {
	node *nodeBase
}

// Node returns the node the set belongs to.
func (s *AttributeSet) Node() Node {
	s.node.file.mu.RLock()
	defer s.node.file.mu.RUnlock()
	n, err := s.node.file.handle(s.node.obj)
	if err != nil {
		return nil
	}
	return n
}

// read calls fn with the attributes under the read lock.
func (s *AttributeSet) read(fn func(attrs map[string]any)) error {
	if err := s.node.rlock(); err != nil {
		return err
	}
	defer s.node.file.mu.RUnlock()
	if err := s.node.file.meta(s.node.obj); err != nil {
		return err
	}
	fn(s.node.obj.attrs)
	return nil
}

func (s *AttributeSet) names(system bool) []string {
	var out []string
	_ = s.read(func(attrs map[string]any) {
		for name := range attrs {
			if isSystemAttr(name) == system {
				out = append(out, name)
			}
		}
	})
	slices.Sort(out)
	return out
}

// Names returns the user attribute names, sorted. It is nil for a closed
// node or when the attributes cannot be loaded; use Get to see the error.
func (s *AttributeSet) Names() []string {
	return s.names(false)
}

// SystemNames returns the names of the system attributes present, sorted.
// Like Names, it is nil for a closed node.
func (s *AttributeSet) SystemNames() []string {
	return s.names(true)
}

// All returns a copy of every attribute. It is nil for a closed node.
func (s *AttributeSet) All() map[string]any {
	var out map[string]any
	_ = s.read(func(attrs map[string]any) {
		out = maps.Clone(attrs)
	})
	return out
}

// Get returns the value of attribute name.
func (s *AttributeSet) Get(name string) (any, error) {
	var (
		v  any
		ok bool
	)
	if err := s.read(func(attrs map[string]any) { v, ok = attrs[name] }); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNoAttribute)
	}
	return v, nil
}

// Contains reports whether attribute name exists.
func (s *AttributeSet) Contains(name string) bool {
	_, err := s.Get(name)
	return err == nil
}

// Set stores an attribute. Values may be bools, integers, floats or
// strings, or slices of them. Bools are stored as uint8 and read back as
// uint8.
func (s *AttributeSet) Set(name string, value any) error {
	if name == "" {
		return fmt.Errorf("%w: empty attribute name", ErrInvalidName)
	}
	v, err := normalizeAttr(value)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	if err := s.node.lock(); err != nil {
		return err
	}
	defer s.node.file.mu.Unlock()
	f, o := s.node.file, s.node.obj
	if err := f.meta(o); err != nil {
		return err
	}
	setAttrLocked(f, o, name, v)
	return nil
}

func setAttrLocked(f *File, o *object, name string, v any) {
	if _, ok := o.attrs[name]; !ok && len(o.attrs) >= f.params.MaxNodeAttrs {
		f.log.Warn("node has more attributes than recommended",
			zap.String("path", o.path()),
			zap.Int("attrs", len(o.attrs)+1),
			zap.Int("limit", f.params.MaxNodeAttrs))
	}
	o.attrs[name] = v
	f.dirty = true
}

// Delete removes attribute name.
func (s *AttributeSet) Delete(name string) error {
	if err := s.node.lock(); err != nil {
		return err
	}
	defer s.node.file.mu.Unlock()
	f, o := s.node.file, s.node.obj
	if err := f.meta(o); err != nil {
		return err
	}
	if _, ok := o.attrs[name]; !ok {
		return fmt.Errorf("%s: %q: %w", o.path(), name, ErrNoAttribute)
	}
	delete(o.attrs, name)
	f.dirty = true
	return nil
}

// CopyTo copies the user attributes to dst, which may belong to another
// file.
func (s *AttributeSet) CopyTo(dst Node) error {
	src := s.node
	db := dst.base()
	unlock := lockPair(src.file, db.file)
	defer unlock()
	if err := src.check(); err != nil {
		return err
	}
	if err := db.checkWritable(); err != nil {
		return err
	}
	return copyUserAttrs(src.file, src.obj, db.file, db.obj)
}

func copyUserAttrs(sf *File, so *object, df *File, do *object) error {
	if err := sf.meta(so); err != nil {
		return err
	}
	if err := df.meta(do); err != nil {
		return err
	}
	for name, v := range so.attrs {
		if !isSystemAttr(name) {
			setAttrLocked(df, do, name, v)
		}
	}
	return nil
}

// normalizeAttr converts value to the type it reads back as.
func normalizeAttr(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return boolByte(v), nil
	case []bool:
		out := make([]uint8, len(v))
		for i, b := range v {
			out[i] = boolByte(b)
		}
		return out, nil
	case int:
		return int64(v), nil
	case uint:
		return uint64(v), nil
	case []int:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	case []uint:
		out := make([]uint64, len(v))
		for i, x := range v {
			out[i] = uint64(x)
		}
		return out, nil
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return nil, fmt.Errorf("%w: nil value", ErrType)
	}
	t := rv.Type()
	if rv.Kind() == reflect.Slice {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
	default:
		return nil, fmt.Errorf("%w: unsupported attribute type %T", ErrType, value)
	}
	if rv.Kind() == reflect.Slice {
		c := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(c, rv)
		return c.Interface(), nil
	}
	return value, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// attrMessages returns the stored attributes of o, system attributes
// first. Values that cannot be stored are dropped with a warning.
func (f *File) attrMessages(o *object) []*message.Attribute {
	var user []string
	for name := range o.attrs {
		if !isSystemAttr(name) {
			user = append(user, name)
		}
	}
	slices.Sort(user)

	var out []*message.Attribute
	for _, name := range append(slices.Clone(systemAttrs), user...) {
		v, ok := o.attrs[name]
		if !ok {
			continue
		}
		a, err := hdf5.NewAttribute(name, v)
		if err != nil {
			f.log.Warn("dropping attribute", zap.String("path", o.path()), zap.Error(err))
			continue
		}
		out = append(out, a)
	}
	return out
}
