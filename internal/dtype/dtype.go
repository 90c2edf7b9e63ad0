package dtype

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-tables/internal/message"
)

// ErrUnsupported is returned for datatypes with no Go mapping.
var ErrUnsupported = errors.New("unsupported datatype")

var (
	boolType   = reflect.TypeOf(false)
	stringType = reflect.TypeOf("")
)

// GoType returns the Go element type for dt. Array types map to their base
// element type.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("%w: nil datatype", ErrUnsupported)
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		return intType(int(dt.Size), dt.Signed)
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return reflect.TypeOf(float32(0)), nil
		case 8:
			return reflect.TypeOf(float64(0)), nil
		}
	case message.ClassBitfield:
		if dt.Size == 1 {
			return boolType, nil
		}
		return intType(int(dt.Size), false)
	case message.ClassString:
		return stringType, nil
	case message.ClassArray:
		return GoType(dt.Base)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, dt)
}

func intType(size int, signed bool) (reflect.Type, error) {
	var v any
	switch {
	case size == 1 && signed:
		v = int8(0)
	case size == 1:
		v = uint8(0)
	case size == 2 && signed:
		v = int16(0)
	case size == 2:
		v = uint16(0)
	case size == 4 && signed:
		v = int32(0)
	case size == 4:
		v = uint32(0)
	case size == 8 && signed:
		v = int64(0)
	case size == 8:
		v = uint64(0)
	default:
		return nil, fmt.Errorf("%w: %d-byte integer", ErrUnsupported, size)
	}
	return reflect.TypeOf(v), nil
}

// FromType returns the datatype for a Go scalar type. Strings need a
// length and are handled by [Infer].
func FromType(t reflect.Type) (*message.Datatype, error) {
	switch t.Kind() {
	case reflect.Bool:
		return message.Bitfield(1), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return message.Integer(int(t.Size()), true), nil
	case reflect.Int:
		return message.Integer(8, true), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return message.Integer(int(t.Size()), false), nil
	case reflect.Uint:
		return message.Integer(8, false), nil
	case reflect.Float32, reflect.Float64:
		return message.Float(int(t.Size())), nil
	}
	return nil, fmt.Errorf("%w: Go type %s", ErrUnsupported, t)
}

// Infer returns the datatype and element count for a scalar or slice value.
// Strings become fixed-length UTF-8 strings as wide as the longest element.
func Infer(v any) (*message.Datatype, int, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, 0, fmt.Errorf("%w: nil value", ErrUnsupported)
	}
	n := 1
	et := rv.Type()
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		n = rv.Len()
		et = et.Elem()
	}
	if et.Kind() != reflect.String {
		dt, err := FromType(et)
		return dt, n, err
	}

	width := 1
	if rv.Kind() == reflect.String {
		width = max(width, rv.Len())
	} else {
		for i := 0; i < n; i++ {
			width = max(width, rv.Index(i).Len())
		}
	}
	return message.FixedString(width, message.CharsetUTF8), n, nil
}
