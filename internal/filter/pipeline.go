package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-tables/internal/message"
)

// Pipeline applies a filter pipeline message to whole chunks.
type Pipeline struct {
	filters []Filter
}

// NewPipeline builds a pipeline from a filter pipeline message. A nil
// message gives an empty pipeline.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for _, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, err
		}
		if f != nil {
			p.filters = append(p.filters, f)
		}
	}
	return p, nil
}

// Encode runs every filter in order.
func (p *Pipeline) Encode(data []byte) ([]byte, error) {
	var err error
	for _, f := range p.filters {
		data, err = f.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d encode: %w", f.ID(), err)
		}
	}
	return data, nil
}

// Decode runs the filters in reverse, skipping those whose bit is set in mask.
func (p *Pipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	var err error
	for i := len(p.filters) - 1; i >= 0; i-- {
		if mask&(1<<uint(i)) != 0 {
			continue
		}
		data, err = p.filters[i].Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d decode: %w", p.filters[i].ID(), err)
		}
	}
	return data, nil
}

// Len returns the number of active filters.
func (p *Pipeline) Len() int { return len(p.filters) }
