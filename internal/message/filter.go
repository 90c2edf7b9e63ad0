package message

import (
	"fmt"

	binpkg "github.com/robert-malhotra/go-tables/internal/binary"
)

// Filter identifiers.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
	FilterLZ4         uint16 = 32004
)

// FilterInfo is one entry of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether the filter may be skipped when unavailable.
func (f *FilterInfo) IsOptional() bool { return f.Flags&0x01 != 0 }

// FilterPipeline is the filter pipeline message (0x000B).
type FilterPipeline struct {
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// Has reports whether the pipeline contains filter id.
func (m *FilterPipeline) Has(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// Get returns the entry for filter id.
func (m *FilterPipeline) Get(id uint16) (FilterInfo, bool) {
	for _, f := range m.Filters {
		if f.ID == id {
			return f, true
		}
	}
	return FilterInfo{}, false
}

func parseFilterPipeline(c *cursor) (*FilterPipeline, error) {
	version := c.u8()
	n := int(c.u8())
	if version == 1 {
		c.skip(6)
	} else if version != 2 {
		return nil, fmt.Errorf("unsupported filter pipeline version %d", version)
	}

	m := &FilterPipeline{Filters: make([]FilterInfo, n)}
	for i := range m.Filters {
		f := &m.Filters[i]
		f.ID = c.u16()
		var nameLen int
		if version == 1 || f.ID >= 256 {
			nameLen = int(c.u16())
		}
		f.Flags = c.u16()
		ncd := int(c.u16())
		if nameLen > 0 {
			if version == 1 {
				nameLen = (nameLen + 7) &^ 7
			}
			f.Name = c.cstring(nameLen)
		}
		f.ClientData = make([]uint32, ncd)
		for j := range f.ClientData {
			f.ClientData[j] = c.u32()
		}
		if version == 1 && ncd%2 != 0 {
			c.skip(4)
		}
		if c.err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, c.err)
		}
	}
	return m, nil
}

// Encode writes a version 2 pipeline.
func (m *FilterPipeline) Encode(w *binpkg.Writer) error {
	if err := w.WriteBytes([]byte{2, uint8(len(m.Filters))}); err != nil {
		return err
	}
	for _, f := range m.Filters {
		if err := w.WriteUint16(f.ID); err != nil {
			return err
		}
		if f.ID >= 256 {
			if err := w.WriteUint16(0); err != nil {
				return err
			}
		}
		if err := w.WriteUint16(f.Flags); err != nil {
			return err
		}
		if err := w.WriteUint16(uint16(len(f.ClientData))); err != nil {
			return err
		}
		for _, v := range f.ClientData {
			if err := w.WriteUint32(v); err != nil {
				return err
			}
		}
	}
	return nil
}
