package message

import (
	binpkg "github.com/robert-malhotra/go-tables/internal/binary"
)

// SpaceKind is the dataspace type.
type SpaceKind uint8

const (
	SpaceScalar SpaceKind = 0
	SpaceSimple SpaceKind = 1
	SpaceNull   SpaceKind = 2
)

// Unlimited marks an extendible maximum dimension.
const Unlimited = ^uint64(0)

// Dataspace is the dataspace message (0x0001).
type Dataspace struct {
	Kind SpaceKind
	Dims []uint64
	// MaxDims is nil when the maximum equals Dims.
	MaxDims []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// Scalar returns a single-element dataspace.
func Scalar() *Dataspace { return &Dataspace{Kind: SpaceScalar} }

// Simple returns an N-dimensional dataspace.
func Simple(dims []uint64, maxDims []uint64) *Dataspace {
	return &Dataspace{Kind: SpaceSimple, Dims: dims, MaxDims: maxDims}
}

// NumElements returns the number of elements the dataspace selects.
func (m *Dataspace) NumElements() uint64 {
	switch m.Kind {
	case SpaceScalar:
		return 1
	case SpaceSimple:
		n := uint64(1)
		for _, d := range m.Dims {
			n *= d
		}
		return n
	}
	return 0
}

func parseDataspace(c *cursor) (*Dataspace, error) {
	version := c.u8()
	rank := int(c.u8())
	flags := c.u8()
	m := &Dataspace{Kind: SpaceSimple}
	switch version {
	case 1:
		c.skip(5) // reserved
		if rank == 0 {
			m.Kind = SpaceScalar
		}
	default:
		m.Kind = SpaceKind(c.u8())
	}
	if m.Kind != SpaceSimple {
		return m, nil
	}

	m.Dims = make([]uint64, rank)
	for i := range m.Dims {
		m.Dims[i] = c.length()
	}
	if flags&0x01 != 0 {
		m.MaxDims = make([]uint64, rank)
		undef := binpkg.Undefined(c.cfg.LengthSize)
		for i := range m.MaxDims {
			if m.MaxDims[i] = c.length(); m.MaxDims[i] == undef {
				m.MaxDims[i] = Unlimited
			}
		}
	}
	return m, nil
}

// Encode writes a version 2 dataspace.
func (m *Dataspace) Encode(w *binpkg.Writer) error {
	var flags uint8
	if m.MaxDims != nil {
		flags = 0x01
	}
	if err := w.WriteBytes([]byte{2, uint8(len(m.Dims)), flags, uint8(m.Kind)}); err != nil {
		return err
	}
	if m.Kind != SpaceSimple {
		return nil
	}
	for _, d := range m.Dims {
		if err := w.WriteLength(d); err != nil {
			return err
		}
	}
	for _, d := range m.MaxDims {
		if d == Unlimited {
			d = binpkg.Undefined(w.LengthSize())
		}
		if err := w.WriteLength(d); err != nil {
			return err
		}
	}
	return nil
}
