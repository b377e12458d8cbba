// internal/measure/breakdown.go
package measure

// HeightBreakdown decomposes one rendered component's total height. Unaccounted is
// whatever the explicit fields do not cover (margins, gaps, wrapper boxes); it is a
// diagnostic signal and is never clamped.
type HeightBreakdown struct {
	TotalHeight   float64 `json:"total_height"`
	PaddingTotal  float64 `json:"padding_total"`
	HeaderHeight  float64 `json:"header_height"`
	ContentHeight float64 `json:"content_height"`
	Unaccounted   float64 `json:"unaccounted"`
	ItemCount     int     `json:"item_count"`
}

// NewHeightBreakdown builds a breakdown and derives Unaccounted from the other fields.
func NewHeightBreakdown(total, padding, header, content float64, items int) HeightBreakdown {
	h := HeightBreakdown{
		TotalHeight:   total,
		PaddingTotal:  padding,
		HeaderHeight:  header,
		ContentHeight: content,
		ItemCount:     items,
	}
	h.Unaccounted = total - h.Accounted()
	return h
}

// ToLogical divides every length by factor, converting visible-layer pixels into the
// measurement layer's logical space.
func (h HeightBreakdown) ToLogical(factor float64) HeightBreakdown {
	return NewHeightBreakdown(
		h.TotalHeight/factor,
		h.PaddingTotal/factor,
		h.HeaderHeight/factor,
		h.ContentHeight/factor,
		h.ItemCount,
	)
}

// Accounted is the part of the total explained by padding, header and content.
func (h HeightBreakdown) Accounted() float64 {
	return h.PaddingTotal + h.HeaderHeight + h.ContentHeight
}
