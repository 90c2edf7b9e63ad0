package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	for _, size := range []int{2, 4, 8} {
		cfg := Config{ByteOrder: binary.LittleEndian, OffsetSize: size, LengthSize: size}
		var buf Buffer
		w := NewWriter(&buf, cfg)

		if err := w.WriteUint8(0xAB); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteUint16(0x1234); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteUint32(0xDEADBEEF); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteOffset(0x0102); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteLength(0x0304); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteUndefinedOffset(); err != nil {
			t.Fatal(err)
		}

		want := int64(1 + 2 + 4 + 3*size)
		if w.Pos() != want || int64(buf.Len()) != want {
			t.Fatalf("size %d: wrote %d bytes (buffer %d), want %d", size, w.Pos(), buf.Len(), want)
		}

		r := NewReader(bytes.NewReader(buf.Bytes()), cfg)
		if v, _ := r.ReadUint8(); v != 0xAB {
			t.Errorf("size %d: uint8 = %#x", size, v)
		}
		if v, _ := r.ReadUint16(); v != 0x1234 {
			t.Errorf("size %d: uint16 = %#x", size, v)
		}
		if v, _ := r.ReadUint32(); v != 0xDEADBEEF {
			t.Errorf("size %d: uint32 = %#x", size, v)
		}
		if v, _ := r.ReadOffset(); v != 0x0102 {
			t.Errorf("size %d: offset = %#x", size, v)
		}
		if v, _ := r.ReadLength(); v != 0x0304 {
			t.Errorf("size %d: length = %#x", size, v)
		}
		v, err := r.ReadOffset()
		if err != nil {
			t.Fatal(err)
		}
		if !r.IsUndefinedOffset(v) {
			t.Errorf("size %d: %#x should be the undefined sentinel", size, v)
		}
	}
}

func TestReaderAtIsIndependent(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2, 3, 4}), DefaultConfig())
	sub := r.At(2)
	if b, _ := sub.ReadUint8(); b != 3 {
		t.Errorf("At(2) read %d, want 3", b)
	}
	if r.Pos() != 0 {
		t.Errorf("parent reader moved to %d", r.Pos())
	}
	if _, err := sub.ReadBytes(8); err == nil {
		t.Error("reading past the end should fail")
	}
}

func TestBufferGrowsOnSparseWrites(t *testing.T) {
	var b Buffer
	if _, err := b.WriteAt([]byte{9}, 5); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 6 || b.Bytes()[5] != 9 || b.Bytes()[0] != 0 {
		t.Errorf("unexpected buffer %v", b.Bytes())
	}
}

type failingWriterAt struct {
	calls int
}

var errDiskFull = errors.New("disk full")

func (f *failingWriterAt) WriteAt(p []byte, off int64) (int, error) {
	f.calls++
	return 0, errDiskFull
}

func TestWriterLatchesFirstError(t *testing.T) {
	dst := &failingWriterAt{}
	w := NewWriter(dst, DefaultConfig())
	if err := w.WriteUint32(1); !errors.Is(err, errDiskFull) {
		t.Fatalf("WriteUint32 err = %v", err)
	}
	if err := w.WriteBytes([]byte{1, 2}); !errors.Is(err, errDiskFull) {
		t.Errorf("WriteBytes after failure err = %v", err)
	}
	if dst.calls != 1 {
		t.Errorf("destination written %d times after failure, want 1", dst.calls)
	}
	if !errors.Is(w.Err(), errDiskFull) {
		t.Errorf("Err() = %v", w.Err())
	}
	if w.At(0).Err() != nil {
		t.Error("At should start without a latched error")
	}
}

func TestWriterRejectsWideIntegers(t *testing.T) {
	var b Buffer
	cfg := DefaultConfig()
	cfg.OffsetSize = 16
	w := NewWriter(&b, cfg)
	if err := w.WriteOffset(1); !errors.Is(err, ErrInvalidWidth) {
		t.Fatalf("WriteOffset err = %v, want ErrInvalidWidth", err)
	}
	if err := w.WriteUint8(1); !errors.Is(err, ErrInvalidWidth) {
		t.Errorf("later write err = %v", err)
	}
	if b.Len() != 0 {
		t.Errorf("buffer holds %d bytes after failed writes", b.Len())
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	bad := Config{ByteOrder: binary.LittleEndian, OffsetSize: 3, LengthSize: 8}
	if err := bad.Validate(); err != ErrInvalidSize {
		t.Errorf("got %v, want ErrInvalidSize", err)
	}
}

func TestUndefined(t *testing.T) {
	cases := map[int]uint64{2: 0xFFFF, 4: 0xFFFFFFFF, 8: 0xFFFFFFFFFFFFFFFF}
	for size, want := range cases {
		if got := Undefined(size); got != want {
			t.Errorf("Undefined(%d) = %#x, want %#x", size, got, want)
		}
	}
}
