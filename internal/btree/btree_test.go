package btree

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/heap"
)

var cfg = binary.DefaultConfig()

// image builds a file fragment; write errors cannot occur on a Buffer.
type image struct {
	buf binary.Buffer
}

func (im *image) at(off int64) *field {
	return &field{w: binary.NewWriter(&im.buf, cfg).At(off)}
}

func (im *image) reader() *binary.Reader {
	return binary.NewReader(bytes.NewReader(im.buf.Bytes()), cfg)
}

type field struct {
	w *binary.Writer
}

func (f *field) raw(s string) *field { f.w.WriteBytes([]byte(s)); return f }
func (f *field) u8(v uint8) *field { f.w.WriteUint8(v); return f }
func (f *field) u16(v uint16) *field { f.w.WriteUint16(v); return f }
func (f *field) u32(v uint32) *field { f.w.WriteUint32(v); return f }
func (f *field) u64(v uint64) *field { f.w.WriteUint64(v); return f }
func (f *field) un(v uint64, n int) *field { f.w.WriteUintN(v, n); return f }
func (f *field) undef() *field { f.w.WriteUndefinedOffset(); return f }

// v1Node writes a chunk node header.
func (im *image) v1Node(off int64, level uint8, used uint16) *field {
	return im.at(off).raw("TREE").u8(v1ChunkNode).u8(level).u16(used).undef().undef()
}

func (f *field) v1Key(size, mask uint32, offsets ...uint64) *field {
	f.u32(size).u32(mask)
	for _, o := range offsets {
		f.u64(o)
	}
	return f.u64(0)
}

func TestReadV1(t *testing.T) {
	var im image
	im.v1Node(0, 1, 2).
		v1Key(0, 0, 0, 0).u64(200).
		v1Key(0, 0, 4, 0).u64(400).
		v1Key(0, 0, 8, 0)
	im.v1Node(200, 0, 2).
		v1Key(40, 0, 0, 0).u64(1000).
		v1Key(36, 1, 0, 4).u64(1100).
		v1Key(0, 0, 4, 0)
	im.v1Node(400, 0, 2).
		v1Key(40, 0, 4, 0).u64(1200).
		v1Key(40, 0, 4, 4).undef().
		v1Key(0, 0, 8, 0)

	got, err := ReadV1(im.reader(), 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []Chunk{
		{Offset: []uint64{0, 0}, Size: 40, Address: 1000},
		{Offset: []uint64{0, 4}, Size: 36, FilterMask: 1, Address: 1100},
		{Offset: []uint64{4, 0}, Size: 40, Address: 1200},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("chunks = %+v\nwant %+v", got, want)
	}
}

func TestReadV1Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(*image)
		want  string
	}{
		{"signature", func(im *image) { im.at(0).raw("XXXX").u64(0) }, "signature"},
		{"group node", func(im *image) {
			im.at(0).raw("TREE").u8(0).u8(0).u16(0).undef().undef()
		}, "not a chunk node"},
		{"level", func(im *image) {
			im.v1Node(0, 1, 1).v1Key(0, 0, 0).u64(200).v1Key(0, 0, 0)
			im.v1Node(200, 1, 0).v1Key(0, 0, 0)
		}, "parent expects 0"},
		{"truncated", func(im *image) { im.v1Node(0, 0, 3).u32(8) }, "key 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var im image
			tt.build(&im)
			_, err := ReadV1(im.reader(), 0, 1)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

// v2Header writes a chunk B-tree header with a 512-byte node size.
func (im *image) v2Header(typ uint8, recSize, depth uint16, root uint64, rootRecs uint16, total uint64) {
	im.at(0).raw("BTHD").u8(0).u8(typ).u32(512).u16(recSize).u16(depth).
		u8(100).u8(40).u64(root).u16(rootRecs).u64(total).u32(0)
}

func TestReadV2Unfiltered(t *testing.T) {
	var im image
	im.v2Header(TypeChunk, 16, 0, 100, 2, 2)
	im.at(100).raw("BTLF").u8(0).u8(TypeChunk).
		u64(1000).u64(0).
		u64(2000).u64(1)

	got, err := ReadV2(im.reader(), 0, []uint64{5})
	if err != nil {
		t.Fatal(err)
	}
	want := []Chunk{
		{Offset: []uint64{0}, Address: 1000},
		{Offset: []uint64{5}, Address: 2000},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("chunks = %+v\nwant %+v", got, want)
	}
}

func TestReadV2Filtered(t *testing.T) {
	var im image
	// address, 2-byte size, mask, two scaled offsets
	im.v2Header(TypeFilteredChunk, 8+2+4+16, 0, 100, 1, 1)
	im.at(100).raw("BTLF").u8(0).u8(TypeFilteredChunk).
		u64(1000).un(300, 2).u32(4).u64(1).u64(2)

	got, err := ReadV2(im.reader(), 0, []uint64{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []Chunk{{Offset: []uint64{2, 6}, Size: 300, FilterMask: 4, Address: 1000}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("chunks = %+v\nwant %+v", got, want)
	}
}

func TestReadV2Internal(t *testing.T) {
	var im image
	im.v2Header(TypeChunk, 16, 1, 100, 1, 4)
	// A 512-byte node holds 31 leaf records, so child counts take one byte.
	im.at(100).raw("BTIN").u8(0).u8(TypeChunk).
		u64(3000).u64(2).
		u64(200).u8(2).
		u64(300).u8(1)
	im.at(200).raw("BTLF").u8(0).u8(TypeChunk).
		u64(1000).u64(0).
		u64(2000).u64(1)
	im.at(300).raw("BTLF").u8(0).u8(TypeChunk).
		u64(4000).u64(3)

	got, err := ReadV2(im.reader(), 0, []uint64{10})
	if err != nil {
		t.Fatal(err)
	}
	var addrs, offsets []uint64
	for _, c := range got {
		addrs = append(addrs, c.Address)
		offsets = append(offsets, c.Offset[0])
	}
	if want := []uint64{3000, 1000, 2000, 4000}; !reflect.DeepEqual(addrs, want) {
		t.Errorf("addresses = %v, want %v", addrs, want)
	}
	if want := []uint64{20, 0, 10, 30}; !reflect.DeepEqual(offsets, want) {
		t.Errorf("offsets = %v, want %v", offsets, want)
	}
}

func TestReadV2Empty(t *testing.T) {
	var im image
	im.v2Header(TypeChunk, 16, 0, binary.Undefined(8), 0, 0)
	got, err := ReadV2(im.reader(), 0, []uint64{4})
	if err != nil || got != nil {
		t.Errorf("ReadV2 = %v, %v; want nil, nil", got, err)
	}
}

func TestReadV2Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(*image)
		want  string
	}{
		{"signature", func(im *image) { im.at(0).raw("BTHX").u64(0) }, "signature"},
		{"version", func(im *image) { im.at(0).raw("BTHD").u8(1).u64(0) }, "version 1"},
		{"record type", func(im *image) { im.v2Header(5, 16, 0, 100, 1, 1) }, "does not index chunks"},
		{"record size", func(im *image) { im.v2Header(TypeChunk, 24, 0, 100, 1, 1) }, "does not fit rank"},
		{"filtered size", func(im *image) { im.v2Header(TypeFilteredChunk, 20, 0, 100, 1, 1) }, "does not fit rank"},
		{"leaf signature", func(im *image) {
			im.v2Header(TypeChunk, 16, 0, 100, 1, 1)
			im.at(100).raw("BTIN").u8(0).u8(TypeChunk).u64(1000).u64(0)
		}, "signature"},
		{"leaf type", func(im *image) {
			im.v2Header(TypeChunk, 16, 0, 100, 1, 1)
			im.at(100).raw("BTLF").u8(0).u8(TypeFilteredChunk).u64(1000).u64(0)
		}, "type 11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var im image
			tt.build(&im)
			_, err := ReadV2(im.reader(), 0, []uint64{4})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestEncodedSize(t *testing.T) {
	for n, want := range map[uint64]int{0: 1, 1: 1, 255: 1, 256: 2, 639: 2, 1 << 24: 4} {
		if got := encodedSize(n); got != want {
			t.Errorf("encodedSize(%d) = %d, want %d", n, got, want)
		}
	}
}

// groupNode writes a group B-tree node header.
func (im *image) groupNode(off int64, level uint8, used uint16) *field {
	return im.at(off).raw("TREE").u8(v1GroupNode).u8(level).u16(used).undef().undef()
}

// entry writes a symbol table entry whose scratch pad starts with scratch.
func (f *field) entry(nameOff, addr uint64, cache, scratch uint32) *field {
	f.u64(nameOff).u64(addr).u32(cache).u32(0).u32(scratch)
	return f.u32(0).u64(0)
}

// localHeap writes a local heap at off whose data segment follows at
// off+64.
func (im *image) localHeap(off int64, data string) {
	im.at(off).raw("HEAP").u32(0).u64(uint64(len(data))).undef().u64(uint64(off + 64))
	im.at(off + 64).raw(data)
}

func TestReadGroup(t *testing.T) {
	var im image
	im.localHeap(0, "\x00\x00\x00\x00\x00\x00\x00\x00data\x00\x00\x00\x00link\x00\x00\x00\x00/data\x00\x00\x00zeta\x00\x00\x00\x00")
	im.groupNode(200, 1, 2).u64(0).u64(300).u64(16).u64(400).u64(32)
	im.groupNode(300, 0, 1).u64(0).u64(600).u64(16)
	im.groupNode(400, 0, 1).u64(16).u64(800).u64(32)
	im.at(600).raw("SNOD").u8(1).u8(0).u16(2).
		entry(8, 1000, 0, 0).
		entry(16, binary.Undefined(8), cacheSoftLink, 24)
	im.at(800).raw("SNOD").u8(1).u8(0).u16(1).
		entry(32, 1100, 1, 0)

	r := im.reader()
	names, err := heap.ReadLocal(r, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadGroup(r, 200, names)
	if err != nil {
		t.Fatal(err)
	}
	want := []Symbol{
		{Name: "data", Address: 1000},
		{Name: "link", Address: binary.Undefined(8), SoftTarget: "/data"},
		{Name: "zeta", Address: 1100},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("symbols = %+v\nwant %+v", got, want)
	}
}

func TestReadGroupErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(*image)
		want  string
	}{
		{"chunk node", func(im *image) { im.v1Node(200, 0, 0) }, "not a group node"},
		{"level", func(im *image) {
			im.groupNode(200, 1, 1).u64(0).u64(300).u64(0)
			im.groupNode(300, 1, 0)
		}, "bad level"},
		{"symbol node signature", func(im *image) {
			im.groupNode(200, 0, 1).u64(0).u64(600).u64(0)
			im.at(600).raw("SNOX")
		}, "signature"},
		{"name offset", func(im *image) {
			im.groupNode(200, 0, 1).u64(0).u64(600).u64(0)
			im.at(600).raw("SNOD").u8(1).u8(0).u16(1).entry(99, 1000, 0, 0)
		}, "offset 99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var im image
			im.localHeap(0, "\x00name\x00\x00\x00")
			tt.build(&im)
			r := im.reader()
			names, err := heap.ReadLocal(r, 0)
			if err != nil {
				t.Fatal(err)
			}
			_, err = ReadGroup(r, 200, names)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
