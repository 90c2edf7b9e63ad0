package alloc

import (
	"fmt"
	"sync"
)

// Kind classifies an allocation.
type Kind uint8

const (
	Meta Kind = iota // object headers
	Raw              // dataset storage
	Heap             // global heap collections
	numKinds
)

func (k Kind) String() string {
	switch k {
	case Meta:
		return "meta"
	case Raw:
		return "raw"
	case Heap:
		return "heap"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

const alignment = 8

// Block is one allocation.
type Block struct {
	Addr uint64
	Size uint64
	Kind Kind
}

// Stats summarizes allocations.
type Stats struct {
	Blocks  int
	Bytes   [numKinds]uint64
	Padding uint64
}

// Total returns the number of bytes allocated across all kinds.
func (s Stats) Total() uint64 {
	var n uint64
	for _, b := range s.Bytes {
		n += b
	}
	return n
}

// Allocator is an append-only, 8-byte aligned space allocator. It is safe
// for concurrent use.
type Allocator struct {
	mu     sync.Mutex
	base   uint64
	eof    uint64
	blocks []Block
	stats  Stats
}

// New returns an allocator whose first block starts at or after base.
func New(base uint64) *Allocator {
	return &Allocator{base: base, eof: base}
}

// Alloc reserves size bytes and returns their address. Zero-size requests
// return the current end of file without reserving anything.
func (a *Allocator) Alloc(size uint64, kind Kind) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rem := a.eof % alignment; rem != 0 {
		a.stats.Padding += alignment - rem
		a.eof += alignment - rem
	}
	addr := a.eof
	if size == 0 {
		return addr
	}
	a.eof += size
	a.blocks = append(a.blocks, Block{Addr: addr, Size: size, Kind: kind})
	a.stats.Blocks++
	a.stats.Bytes[kind] += size
	return addr
}

// Func adapts the allocator to callers that take an allocation function.
func (a *Allocator) Func(kind Kind) func(size int64) uint64 {
	return func(size int64) uint64 {
		if size < 0 {
			panic("alloc: negative size")
		}
		return a.Alloc(uint64(size), kind)
	}
}

// EOF returns the current end-of-file address.
func (a *Allocator) EOF() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eof
}

// Stats returns a snapshot of allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Validate checks that no block precedes the base or overlaps another.
// Blocks are handed out in address order, so neighbours suffice.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	prevEnd := a.base
	for _, b := range a.blocks {
		if b.Addr < prevEnd {
			return fmt.Errorf("alloc: %s block at %#x overlaps data ending at %#x", b.Kind, b.Addr, prevEnd)
		}
		prevEnd = b.Addr + b.Size
	}
	if prevEnd > a.eof {
		return fmt.Errorf("alloc: blocks end at %#x past EOF %#x", prevEnd, a.eof)
	}
	return nil
}
