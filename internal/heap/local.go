package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/binary"
)

var localSignature = []byte("HEAP")

// Local is a local heap. Symbol-table groups keep their member names and
// soft link values in one.
type Local struct {
	Address     uint64
	DataAddress uint64
	data        []byte
}

// ReadLocal parses the local heap at addr and loads its data segment.
func ReadLocal(r *binary.Reader, addr uint64) (*Local, error) {
	hr := r.At(int64(addr))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", addr, err)
	}
	if !bytes.Equal(head[:4], localSignature) {
		return nil, fmt.Errorf("%w: local heap at %d", ErrBadSignature, addr)
	}
	if head[4] != 0 {
		return nil, fmt.Errorf("local heap at %d: unsupported version %d", addr, head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil { // free list head
		return nil, err
	}
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}
	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("local heap data at %d: %w", dataAddr, err)
	}
	return &Local{Address: addr, DataAddress: dataAddr, data: data}, nil
}

// String returns the NUL-terminated string starting at off.
func (h *Local) String(off uint64) (string, error) {
	if off >= uint64(len(h.data)) {
		return "", fmt.Errorf("%w: offset %d past local heap at %d", ErrNoObject, off, h.Address)
	}
	rest := h.data[off:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		rest = rest[:i]
	}
	return string(rest), nil
}

// Size returns the length of the data segment.
func (h *Local) Size() int { return len(h.data) }
