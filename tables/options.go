package tables

import (
	"fmt"

	"go.uber.org/zap"
)

// Mode selects how Open treats the file.
type Mode string

const (
	// ModeRead opens an existing file read-only.
	ModeRead Mode = "r"
	// ModeAppend opens an existing file for writing or creates it.
	ModeAppend Mode = "a"
	// ModeWrite creates the file, replacing any existing one.
	ModeWrite Mode = "w"
	// ModeReadWrite opens an existing file for writing.
	ModeReadWrite Mode = "r+"
)

func (m Mode) valid() bool {
	switch m {
	case ModeRead, ModeAppend, ModeWrite, ModeReadWrite:
		return true
	}
	return false
}

// Option configures Open.
type Option func(*fileOptions)

type fileOptions struct {
	log    *zap.Logger
	params Parameters
	title  string
	trMap  map[string]string
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		log:    zap.NewNop(),
		params: DefaultParameters(),
	}
}

// WithLogger sets the logger for warnings and debug records.
func WithLogger(log *zap.Logger) Option {
	return func(o *fileOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithParameters replaces the default tuning.
func WithParameters(p Parameters) Option {
	return func(o *fileOptions) {
		o.params = p
	}
}

// WithTitle sets the root group title of a newly created file.
func WithTitle(title string) Option {
	return func(o *fileOptions) {
		o.title = title
	}
}

// WithTranslationMap maps node names to the names stored in the HDF5
// file, for stored names that are not valid node names.
func WithTranslationMap(m map[string]string) Option {
	return func(o *fileOptions) {
		o.trMap = m
	}
}

// NodeOption configures node creation.
type NodeOption func(*nodeOptions)

type nodeOptions struct {
	title      string
	filters    Filters
	expectedMB float64
}

func defaultNodeOptions() *nodeOptions {
	return &nodeOptions{expectedMB: 1.0}
}

// NodeTitle sets the TITLE attribute of a new node.
func NodeTitle(title string) NodeOption {
	return func(o *nodeOptions) {
		o.title = title
	}
}

// NodeFilters sets the filters of a new leaf.
func NodeFilters(f Filters) NodeOption {
	return func(o *nodeOptions) {
		o.filters = f
	}
}

// ExpectedSizeMB sets the expected final size of a VLArray in megabytes.
// It tunes the chunk shape.
func ExpectedSizeMB(mb float64) NodeOption {
	return func(o *nodeOptions) {
		o.expectedMB = mb
	}
}

func applyNodeOptions(opts []NodeOption) (*nodeOptions, error) {
	o := defaultNodeOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.filters.validate(); err != nil {
		return nil, err
	}
	if o.expectedMB <= 0 {
		return nil, fmt.Errorf("%w: expected size %g MB", ErrShape, o.expectedMB)
	}
	return o, nil
}

// CopyOptions controls Node.Copy.
type CopyOptions struct {
	// NewParent is the destination group, possibly in another file. Nil
	// keeps the source's parent.
	NewParent *Group
	// NewName is the destination name. Empty keeps the source's name.
	NewName   string
	Overwrite bool
	// Recursive copies the descendants of a group.
	Recursive bool
	// Title replaces the copy's title when set.
	Title *string
	// Filters replaces the filters of copied leaves when set.
	Filters       *Filters
	CopyUserAttrs bool
	// Start, Stop and Step select the rows of a copied leaf. Stop 0 means
	// through the last row; Step 0 means 1.
	Start, Stop, Step int
	// Stats, when set, accumulates what was copied.
	Stats *CopyStats
}

// DefaultCopyOptions returns options copying user attributes and every
// row.
func DefaultCopyOptions() CopyOptions {
	return CopyOptions{CopyUserAttrs: true, Step: 1}
}

// CopyStats counts the nodes and bytes copied.
type CopyStats struct {
	Groups int
	Leaves int
	Bytes  int64
}
