// internal/diagnostic/extractor.go
package diagnostic

import (
	"github.com/xkilldash9x/measurediff/internal/dom"
	"github.com/xkilldash9x/measurediff/internal/measure"
)

// Extractor decomposes a component's box into padding, header and content heights.
// It runs unchanged on both layers; only the final unit conversion differs.
type Extractor struct {
	header dom.Selector
	item   dom.Selector
}

// NewExtractor builds an extractor from the header and item selectors in opts.
func NewExtractor(opts Options) (*Extractor, error) {
	c, err := opts.compile()
	if err != nil {
		return nil, err
	}
	return newExtractor(c), nil
}

func newExtractor(c *compiled) *Extractor {
	return &Extractor{header: c.header, item: c.item}
}

// Extract returns the breakdown of el in its own pixel space. At most one header is
// counted. Items nested in another item, or inside the header, are not counted.
func (x *Extractor) Extract(el dom.Element) measure.HeightBreakdown {
	var headerHeight float64
	header := dom.QueryFirst(el, x.header)
	if header != nil {
		headerHeight = header.Box().Height
	}

	var content float64
	count := 0
	for _, item := range dom.QueryOutermost(el, x.item) {
		if header != nil && dom.Contains(header, item) {
			continue
		}
		content += item.Box().Height
		count++
	}

	return measure.NewHeightBreakdown(el.Box().Height, el.Padding().Vertical(), headerHeight, content, count)
}

// ExtractLogical is Extract converted to logical pixels with scale.
func (x *Extractor) ExtractLogical(el dom.Element, scale measure.ScaleTransform) measure.HeightBreakdown {
	return x.Extract(el).ToLogical(scale.Factor)
}
