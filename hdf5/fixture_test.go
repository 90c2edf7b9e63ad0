package hdf5

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robert-malhotra/go-tables/internal/binary"
	"github.com/robert-malhotra/go-tables/internal/message"
	"github.com/robert-malhotra/go-tables/internal/object"
	"github.com/robert-malhotra/go-tables/internal/superblock"
)

var fixtureCfg = binary.DefaultConfig()

// fixture assembles a file image by hand, for structures the writer never
// produces: version 0 superblocks, version 1 headers, symbol-table groups
// and B-tree chunk indexes. Writes to a Buffer cannot fail.
type fixture struct {
	buf  binary.Buffer
	next uint64
}

// newFixture leaves room for a superblock at address 0.
func newFixture() *fixture { return &fixture{next: 128} }

func (f *fixture) alloc(n int) uint64 {
	addr := f.next
	f.next += uint64((n + 7) &^ 7)
	return addr
}

func (f *fixture) at(addr uint64) *binary.Writer {
	return binary.NewWriter(&f.buf, fixtureCfg).At(int64(addr))
}

func (f *fixture) put(data []byte) uint64 {
	addr := f.alloc(len(data))
	f.at(addr).WriteBytes(data)
	return addr
}

func encodeMessage(t *testing.T, m message.Encoder) []byte {
	t.Helper()
	data, err := message.Bytes(m, fixtureCfg)
	if err != nil {
		t.Fatalf("encoding message: %v", err)
	}
	return data
}

// headerV1 writes a version 1 object header holding msgs.
func (f *fixture) headerV1(t *testing.T, msgs ...message.Encoder) uint64 {
	t.Helper()
	var body binary.Buffer
	bw := binary.NewWriter(&body, fixtureCfg)
	for _, m := range msgs {
		data := encodeMessage(t, m)
		padded := (len(data) + 7) &^ 7
		bw.WriteUint16(uint16(m.Type()))
		bw.WriteUint16(uint16(padded))
		bw.WriteUint8(0)
		bw.WriteZeros(3)
		bw.WriteBytes(data)
		bw.WriteZeros(padded - len(data))
	}
	addr := f.alloc(16 + body.Len())
	w := f.at(addr)
	w.WriteUint8(1)
	w.WriteUint8(0)
	w.WriteUint16(uint16(len(msgs)))
	w.WriteUint32(1) // reference count
	w.WriteUint32(uint32(body.Len()))
	w.WriteZeros(4)
	w.WriteBytes(body.Bytes())
	return addr
}

// headerV2 writes a version 2 object header holding msgs.
func (f *fixture) headerV2(t *testing.T, msgs ...message.Encoder) uint64 {
	t.Helper()
	data, err := object.Encode(fixtureCfg, msgs, 0)
	if err != nil {
		t.Fatalf("object.Encode: %v", err)
	}
	return f.put(data)
}

// symbol is a member of an old-style group: a hard link to addr, or a
// soft link when soft is set.
type symbol struct {
	name string
	addr uint64
	soft string
}

// symbolGroup writes an old-style group: a local heap with the member
// names, one symbol node, a single-leaf group B-tree and a version 1
// header. members must be sorted by name.
func (f *fixture) symbolGroup(t *testing.T, members []symbol, msgs ...message.Encoder) uint64 {
	t.Helper()
	// Offset 0 holds the empty name.
	data := make([]byte, 8)
	str := func(s string) uint64 {
		off := uint64(len(data))
		data = append(data, s...)
		data = append(data, make([]byte, 8-len(s)%8)...)
		return off
	}
	nameOffs := make([]uint64, len(members))
	softOffs := make([]uint64, len(members))
	for i, m := range members {
		nameOffs[i] = str(m.name)
		if m.soft != "" {
			softOffs[i] = str(m.soft)
		}
	}
	dataAddr := f.put(data)

	heapAddr := f.alloc(32)
	w := f.at(heapAddr)
	w.WriteBytes([]byte("HEAP\x00\x00\x00\x00"))
	w.WriteLength(uint64(len(data)))
	w.WriteLength(binary.Undefined(8)) // no free list
	w.WriteOffset(dataAddr)

	snod := f.alloc(8 + 40*len(members))
	w = f.at(snod)
	w.WriteBytes([]byte("SNOD\x01\x00"))
	w.WriteUint16(uint16(len(members)))
	for i, m := range members {
		w.WriteOffset(nameOffs[i])
		if m.soft != "" {
			w.WriteUndefinedOffset()
			w.WriteUint32(2)
			w.WriteUint32(0)
			w.WriteUint32(uint32(softOffs[i]))
			w.WriteZeros(12)
			continue
		}
		w.WriteOffset(m.addr)
		w.WriteUint32(0)
		w.WriteUint32(0)
		w.WriteZeros(16)
	}

	var lastKey uint64
	if n := len(members); n > 0 {
		lastKey = nameOffs[n-1]
	}
	tree := f.alloc(24 + 3*8)
	w = f.at(tree)
	w.WriteBytes([]byte("TREE\x00\x00"))
	w.WriteUint16(1)
	w.WriteUndefinedOffset()
	w.WriteUndefinedOffset()
	w.WriteLength(0)
	w.WriteOffset(snod)
	w.WriteLength(lastKey)

	st := &message.SymbolTable{BTreeAddress: tree, LocalHeapAddress: heapAddr}
	return f.headerV1(t, append([]message.Encoder{st}, msgs...)...)
}

// superblockV0 writes a version 0 superblock whose root symbol table entry
// names root.
func (f *fixture) superblockV0(root uint64) {
	w := f.at(0)
	w.WriteBytes(superblock.Signature)
	w.WriteBytes([]byte{0, 0, 0, 0, 0, 8, 8, 0})
	w.WriteUint16(4)
	w.WriteUint16(16)
	w.WriteUint32(0)
	w.WriteOffset(0)
	w.WriteUndefinedOffset()
	w.WriteOffset(f.next)
	w.WriteUndefinedOffset()
	w.WriteOffset(0)
	w.WriteOffset(root)
	w.WriteUint32(1)
	w.WriteUint32(0)
	w.WriteZeros(16)
}

func (f *fixture) superblockV3(t *testing.T, root uint64) {
	t.Helper()
	if err := superblock.New(root, f.next).Write(f.at(0)); err != nil {
		t.Fatalf("superblock: %v", err)
	}
}

// open writes the image to a temporary file and opens it.
func (f *fixture) open(t *testing.T) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.h5")
	if err := os.WriteFile(path, f.buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	file, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { file.Close() })
	return file
}

// rawMessage is a header message given as its encoded body.
type rawMessage struct {
	typ  message.Type
	data []byte
}

func (m rawMessage) Type() message.Type { return m.typ }

func (m rawMessage) Encode(w *binary.Writer) error { return w.WriteBytes(m.data) }
