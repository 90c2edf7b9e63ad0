package dtype

import (
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/message"
)

// Encode converts a scalar or slice to raw elements of dt. Numeric kinds
// convert freely; strings longer than a fixed-length type are truncated.
func Encode(dt *message.Datatype, v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, fmt.Errorf("encode %s: nil value", dt)
	}
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		one := reflect.MakeSlice(reflect.SliceOf(rv.Type()), 1, 1)
		one.Index(0).Set(rv)
		rv = one
	}

	scalar := dt.Scalar()
	size := int(scalar.Size)
	out := make([]byte, rv.Len()*size)
	for i := 0; i < rv.Len(); i++ {
		ev := rv.Index(i)
		if ev.Kind() == reflect.Interface {
			ev = ev.Elem()
		}
		if err := putElem(out[i*size:(i+1)*size], scalar, ev); err != nil {
			return nil, fmt.Errorf("encode %s element %d: %w", dt, i, err)
		}
	}
	return out, nil
}

func putElem(b []byte, dt *message.Datatype, ev reflect.Value) error {
	order := dt.Endian()
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassBitfield:
		u, err := asUint(ev)
		if err != nil {
			return err
		}
		binary.PutUint(b, u, len(b), order)
		return nil

	case message.ClassFloatPoint:
		f, err := asFloat(ev)
		if err != nil {
			return err
		}
		switch len(b) {
		case 4:
			order.PutUint32(b, math.Float32bits(float32(f)))
		case 8:
			order.PutUint64(b, math.Float64bits(f))
		default:
			return fmt.Errorf("%w: %d-byte float", ErrUnsupported, len(b))
		}
		return nil

	case message.ClassString:
		if ev.Kind() != reflect.String {
			return fmt.Errorf("cannot encode %s as string", ev.Type())
		}
		n := copy(b, ev.String())
		pad := byte(0)
		if dt.Padding == message.PadSpacePad {
			pad = ' '
		}
		for i := n; i < len(b); i++ {
			b[i] = pad
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, dt)
}

func asUint(ev reflect.Value) (uint64, error) {
	switch ev.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(ev.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return ev.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return uint64(int64(ev.Float())), nil
	case reflect.Bool:
		if ev.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot encode %s as integer", ev.Type())
}

func asFloat(ev reflect.Value) (float64, error) {
	switch ev.Kind() {
	case reflect.Float32, reflect.Float64:
		return ev.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(ev.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(ev.Uint()), nil
	}
	return 0, fmt.Errorf("cannot encode %s as float", ev.Type())
}
