package dtype

import (
	"fmt"
	"math"
	"reflect"

	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/message"
)

// Decode converts n elements of dt from data into a new typed slice. For
// array types the result holds n times the array element count values.
func Decode(dt *message.Datatype, data []byte, n int) (any, error) {
	et, err := GoType(dt)
	if err != nil {
		return nil, err
	}
	out, err := decodeSlice(dt, data, n, reflect.SliceOf(et))
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// DecodeInto converts n elements into *dest, which must point to a slice.
// Numeric values convert to the slice's element kind.
func DecodeInto(dt *message.Datatype, data []byte, n int, dest any) error {
	pv := reflect.ValueOf(dest)
	if pv.Kind() != reflect.Pointer || pv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("destination must be a pointer to a slice, got %T", dest)
	}
	out, err := decodeSlice(dt, data, n, pv.Elem().Type())
	if err != nil {
		return err
	}
	pv.Elem().Set(out)
	return nil
}

func decodeSlice(dt *message.Datatype, data []byte, n int, st reflect.Type) (reflect.Value, error) {
	scalar := dt.Scalar()
	total := n * dt.Count()
	size := int(scalar.Size)
	if len(data) < total*size {
		return reflect.Value{}, fmt.Errorf("decode %s: need %d bytes, have %d", dt, total*size, len(data))
	}

	out := reflect.MakeSlice(st, total, total)
	for i := 0; i < total; i++ {
		if err := setElem(out.Index(i), scalar, data[i*size:(i+1)*size]); err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

func setElem(ev reflect.Value, dt *message.Datatype, b []byte) error {
	order := dt.Endian()
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassBitfield:
		u := binary.DecodeUint(b, len(b), order)
		if dt.Class == message.ClassBitfield && ev.Kind() == reflect.Bool {
			ev.SetBool(u != 0)
			return nil
		}
		if dt.Signed {
			shift := 64 - 8*uint(len(b))
			return setInt(ev, int64(u<<shift)>>shift)
		}
		return setUint(ev, u)

	case message.ClassFloatPoint:
		var f float64
		switch len(b) {
		case 4:
			f = float64(math.Float32frombits(order.Uint32(b)))
		case 8:
			f = math.Float64frombits(order.Uint64(b))
		default:
			return fmt.Errorf("%w: %d-byte float", ErrUnsupported, len(b))
		}
		return setFloat(ev, f)

	case message.ClassString:
		if ev.Kind() != reflect.String {
			return fmt.Errorf("cannot store string in %s", ev.Type())
		}
		ev.SetString(TrimString(b, dt.Padding))
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, dt)
}

// TrimString removes HDF5 string padding.
func TrimString(b []byte, pad message.StringPadding) string {
	if pad == message.PadSpacePad {
		end := len(b)
		for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
			end--
		}
		return string(b[:end])
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func setInt(ev reflect.Value, v int64) error {
	switch ev.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		ev.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		ev.SetUint(uint64(v))
	case reflect.Float32, reflect.Float64:
		ev.SetFloat(float64(v))
	case reflect.Bool:
		ev.SetBool(v != 0)
	case reflect.Interface:
		ev.Set(reflect.ValueOf(v))
	default:
		return fmt.Errorf("cannot store integer in %s", ev.Type())
	}
	return nil
}

func setUint(ev reflect.Value, v uint64) error {
	switch ev.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		ev.SetInt(int64(v))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		ev.SetUint(v)
	case reflect.Float32, reflect.Float64:
		ev.SetFloat(float64(v))
	case reflect.Bool:
		ev.SetBool(v != 0)
	case reflect.Interface:
		ev.Set(reflect.ValueOf(v))
	default:
		return fmt.Errorf("cannot store integer in %s", ev.Type())
	}
	return nil
}

func setFloat(ev reflect.Value, v float64) error {
	switch ev.Kind() {
	case reflect.Float32, reflect.Float64:
		ev.SetFloat(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		ev.SetInt(int64(v))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		ev.SetUint(uint64(v))
	case reflect.Interface:
		ev.Set(reflect.ValueOf(v))
	default:
		return fmt.Errorf("cannot store float in %s", ev.Type())
	}
	return nil
}
