package tables

import "fmt"

// Parameters tunes caches and advisory limits.
type Parameters struct {
	// NodeCacheSlots is the number of node handles kept alive by the
	// file. 0 disables the cache.
	NodeCacheSlots int `koanf:"node_cache_slots"`
	// DataCacheSlots is the number of decoded clean leaf payloads kept in
	// memory. 0 disables the cache.
	DataCacheSlots int `koanf:"data_cache_slots"`
	// MaxTreeDepth is the depth above which node creation logs a
	// performance warning.
	MaxTreeDepth int `koanf:"max_tree_depth"`
	// MaxGroupWidth is the number of children above which adding a child
	// logs a performance warning.
	MaxGroupWidth int `koanf:"max_group_width"`
	// MaxNodeAttrs is the number of attributes above which setting one
	// logs a performance warning.
	MaxNodeAttrs int `koanf:"max_node_attrs"`
	// ChunkTimes divides the I/O buffer size to get a VLArray chunk size.
	ChunkTimes int `koanf:"chunk_times"`
	// IterBufferRows is the number of rows a row iterator reads at once.
	IterBufferRows int `koanf:"iter_buffer_rows"`
}

// DefaultParameters returns the default tuning.
func DefaultParameters() Parameters {
	return Parameters{
		NodeCacheSlots: 256,
		DataCacheSlots: 64,
		MaxTreeDepth:   2048,
		MaxGroupWidth:  16384,
		MaxNodeAttrs:   4096,
		ChunkTimes:     4,
		IterBufferRows: 100,
	}
}

// Validate reports the first out-of-range parameter.
func (p Parameters) Validate() error {
	switch {
	case p.NodeCacheSlots < 0:
		return fmt.Errorf("node_cache_slots must be >= 0, got %d", p.NodeCacheSlots)
	case p.DataCacheSlots < 0:
		return fmt.Errorf("data_cache_slots must be >= 0, got %d", p.DataCacheSlots)
	case p.MaxTreeDepth < 1:
		return fmt.Errorf("max_tree_depth must be >= 1, got %d", p.MaxTreeDepth)
	case p.MaxGroupWidth < 1:
		return fmt.Errorf("max_group_width must be >= 1, got %d", p.MaxGroupWidth)
	case p.MaxNodeAttrs < 1:
		return fmt.Errorf("max_node_attrs must be >= 1, got %d", p.MaxNodeAttrs)
	case p.ChunkTimes < 1:
		return fmt.Errorf("chunk_times must be >= 1, got %d", p.ChunkTimes)
	case p.IterBufferRows < 1:
		return fmt.Errorf("iter_buffer_rows must be >= 1, got %d", p.IterBufferRows)
	}
	return nil
}
