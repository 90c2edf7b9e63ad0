package heap

import (
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/binary"
)

// Allocator reserves size bytes of file space and returns their address.
type Allocator func(size int64) uint64

// WriteObjects stores objects in as few collections as the size and index
// limits allow and returns one ID per object. Empty objects are not stored
// and get the nil ID.
func WriteObjects(w *binary.Writer, alloc Allocator, objects [][]byte) ([]ID, error) {
	ids := make([]ID, len(objects))
	objHdr := 8 + w.LengthSize()
	colHdr := 8 + w.LengthSize()

	var batch []int
	used := colHdr
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := writeCollection(w, alloc, objects, batch, used, ids); err != nil {
			return err
		}
		batch, used = batch[:0], colHdr
		return nil
	}

	for i, obj := range objects {
		if len(obj) == 0 {
			continue
		}
		need := objHdr + pad8(len(obj))
		if len(batch) > 0 && (len(batch) == maxObjects || used+need > MaxCollectionSize) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, i)
		used += need
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return ids, nil
}

func writeCollection(w *binary.Writer, alloc Allocator, objects [][]byte, batch []int, used int, ids []ID) error {
	size := max(used, MinCollectionSize)
	size = pad8(size)
	addr := alloc(int64(size))

	var buf binary.Buffer
	bw := binary.NewWriter(&buf, w.Config())
	bw.WriteBytes(signature)
	bw.WriteBytes([]byte{1, 0, 0, 0})
	bw.WriteLength(uint64(size))

	for n, i := range batch {
		obj := objects[i]
		index := uint16(n + 1)
		bw.WriteUint16(index)
		bw.WriteUint16(1) // reference count
		bw.WriteZeros(4)
		bw.WriteLength(uint64(len(obj)))
		bw.WriteBytes(obj)
		bw.WriteZeros(pad8(len(obj)) - len(obj))
		ids[i] = ID{Collection: addr, Index: uint32(index)}
	}

	// The free-space object covers the rest of the collection, header included.
	if free := size - int(bw.Pos()); free >= 8+w.LengthSize() {
		bw.WriteUint16(0)
		bw.WriteUint16(0)
		bw.WriteZeros(4)
		bw.WriteLength(uint64(free))
	}
	bw.WriteZeros(size - int(bw.Pos()))
	if err := bw.Err(); err != nil {
		return fmt.Errorf("global heap collection at %d: %w", addr, err)
	}

	return w.At(int64(addr)).WriteBytes(buf.Bytes())
}
