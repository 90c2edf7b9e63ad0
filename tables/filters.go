package tables

import (
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/message"
)

// Compression libraries.
const (
	ComplibZlib = "zlib"
	ComplibLZ4  = "lz4"
)

// Filters selects the compression and checksum filters of a leaf. The zero
// value disables all filters.
type Filters struct {
	// Complevel is 0 (no compression) to 9.
	Complevel int
	// Complib is ComplibZlib (the default) or ComplibLZ4. LZ4 has no
	// levels; any Complevel above 0 reads back as 1.
	Complib string
	// Shuffle reorders bytes before compression. It only applies when
	// Complevel is above 0.
	Shuffle bool
	// Fletcher32 adds a checksum.
	Fletcher32 bool
}

func (f Filters) validate() error {
	if f.Complevel < 0 || f.Complevel > 9 {
		return fmt.Errorf("%w: complevel %d is not in 0..9", ErrType, f.Complevel)
	}
	switch f.Complib {
	case "", ComplibZlib, ComplibLZ4:
		return nil
	}
	return fmt.Errorf("%w: unknown complib %q", ErrType, f.Complib)
}

// normalize returns the filters as they read back from disk.
func (f Filters) normalize() Filters {
	if f.Complevel == 0 {
		return Filters{Fletcher32: f.Fletcher32}
	}
	if f.Complib == "" {
		f.Complib = ComplibZlib
	}
	if f.Complib == ComplibLZ4 {
		f.Complevel = 1
	}
	return f
}

func (f Filters) String() string {
	f = f.normalize()
	return fmt.Sprintf("Filters(complevel=%d, complib=%q, shuffle=%t, fletcher32=%t)",
		f.Complevel, f.Complib, f.Shuffle, f.Fletcher32)
}

// pipeline returns the HDF5 filter pipeline for values of itemsize bytes,
// or nil when no filter is enabled.
func (f Filters) pipeline(itemsize int) *message.FilterPipeline {
	f = f.normalize()
	var fs []message.FilterInfo
	if f.Complevel > 0 {
		if f.Shuffle {
			fs = append(fs, message.FilterInfo{
				ID: message.FilterShuffle, ClientData: []uint32{uint32(itemsize)},
			})
		}
		if f.Complib == ComplibLZ4 {
			fs = append(fs, message.FilterInfo{
				ID: message.FilterLZ4, Flags: 0x01, Name: "lz4", ClientData: []uint32{},
			})
		} else {
			fs = append(fs, message.FilterInfo{
				ID: message.FilterDeflate, ClientData: []uint32{uint32(f.Complevel)},
			})
		}
	}
	if f.Fletcher32 {
		fs = append(fs, message.FilterInfo{ID: message.FilterFletcher32})
	}
	if len(fs) == 0 {
		return nil
	}
	return &message.FilterPipeline{Filters: fs}
}

// filtersFromPipeline reconstructs Filters from a stored pipeline.
// Filters with no equivalent are ignored.
func filtersFromPipeline(fp *message.FilterPipeline) Filters {
	var f Filters
	if fp == nil {
		return f
	}
	if info, ok := fp.Get(message.FilterDeflate); ok {
		f.Complib = ComplibZlib
		f.Complevel = 6
		if len(info.ClientData) > 0 {
			f.Complevel = int(info.ClientData[0])
		}
	}
	if fp.Has(message.FilterLZ4) {
		f.Complib = ComplibLZ4
		f.Complevel = 1
	}
	f.Shuffle = fp.Has(message.FilterShuffle)
	f.Fletcher32 = fp.Has(message.FilterFletcher32)
	return f
}
