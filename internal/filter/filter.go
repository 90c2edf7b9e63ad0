package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/message"
)

// ErrUnsupported is returned for mandatory filters with no implementation.
var ErrUnsupported = errors.New("unsupported filter")

// Filter is a reversible chunk transformation.
type Filter interface {
	ID() uint16
	Encode(input []byte) ([]byte, error)
	Decode(input []byte) ([]byte, error)
}

var registry = map[uint16]func(cd []uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func(cd []uint32) Filter { return Fletcher32{} },
	message.FilterLZ4:        func(cd []uint32) Filter { return NewLZ4(cd) },
}

var names = map[uint16]string{
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "n-bit",
	message.FilterScaleOffset: "scale-offset",
}

// New builds the filter described by info. It returns nil, nil for an
// unknown optional filter.
func New(info message.FilterInfo) (Filter, error) {
	ctor, ok := registry[info.ID]
	if ok {
		return ctor(info.ClientData), nil
	}
	if info.IsOptional() {
		return nil, nil
	}
	if name, known := names[info.ID]; known {
		return nil, fmt.Errorf("%w: %s (id %d)", ErrUnsupported, name, info.ID)
	}
	return nil, fmt.Errorf("%w: id %d", ErrUnsupported, info.ID)
}
