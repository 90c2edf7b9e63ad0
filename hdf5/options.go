package hdf5

// WriterOption configures a Writer.
type WriterOption func(*writerOptions)

type writerOptions struct {
	compactLimit int
	groupSize    int
}

func defaultWriterOptions() *writerOptions {
	return &writerOptions{
		groupSize: minGroupHeader,
	}
}

// WithCompactLimit stores unfiltered datasets of at most n bytes inside
// their object header instead of a separate data block. n is capped at
// the compact layout limit of 64 KiB minus header overhead.
func WithCompactLimit(n int) WriterOption {
	return func(o *writerOptions) {
		if n >= 0 {
			o.compactLimit = min(n, maxCompact)
		}
	}
}

// WithGroupHeaderSize reserves at least n bytes of message space in every
// group header, leaving room for tools that add links in place.
func WithGroupHeaderSize(n int) WriterOption {
	return func(o *writerOptions) {
		if n >= 0 {
			o.groupSize = n
		}
	}
}
