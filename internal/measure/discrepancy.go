// internal/measure/discrepancy.go
package measure

import "math"

// DefaultAccuracyTolerance is the largest |delta| (logical px) still classed as accurate.
const DefaultAccuracyTolerance = 5.0

// Contributor names one field of a HeightBreakdown.
type Contributor string

const (
	ContributorContent     Contributor = "content"
	ContributorPadding     Contributor = "padding"
	ContributorHeader      Contributor = "header"
	ContributorUnaccounted Contributor = "unaccounted"
)

// contributorPriority is the tie-break order for the dominant contributor. Content-size
// mismatches are the most common real cause, so they win ties.
var contributorPriority = []Contributor{
	ContributorContent,
	ContributorPadding,
	ContributorHeader,
	ContributorUnaccounted,
}

// Accuracy classifies a component's overall measured-vs-rendered delta.
type Accuracy string

const (
	AccuracyAccurate        Accuracy = "accurate"
	AccuracyOverEstimating  Accuracy = "over-estimating"
	AccuracyUnderEstimating Accuracy = "under-estimating"
)

// ComponentDiscrepancy is the per-component comparison result. Both breakdowns are in
// logical pixels. Delta is rendered minus measured: positive means the measurement
// layer under-estimated the height.
type ComponentDiscrepancy struct {
	Measured         HeightBreakdown `json:"measured"`
	Rendered         HeightBreakdown `json:"rendered"`
	Delta            float64         `json:"delta"`
	PaddingDelta     float64         `json:"padding_delta"`
	HeaderDelta      float64         `json:"header_delta"`
	ContentDelta     float64         `json:"content_delta"`
	UnaccountedDelta float64         `json:"unaccounted_delta"`
	Dominant         Contributor     `json:"dominant_contributor"`
	Accuracy         Accuracy        `json:"accuracy"`
}

// FieldDelta returns the signed delta for one contributor.
func (d ComponentDiscrepancy) FieldDelta(c Contributor) float64 {
	switch c {
	case ContributorContent:
		return d.ContentDelta
	case ContributorPadding:
		return d.PaddingDelta
	case ContributorHeader:
		return d.HeaderDelta
	case ContributorUnaccounted:
		return d.UnaccountedDelta
	}
	return 0
}

// Compare builds the discrepancy between a measured and a rendered breakdown, both
// already in logical pixels.
func Compare(measured, rendered HeightBreakdown, tolerance float64) ComponentDiscrepancy {
	d := ComponentDiscrepancy{
		Measured:         measured,
		Rendered:         rendered,
		Delta:            rendered.TotalHeight - measured.TotalHeight,
		PaddingDelta:     rendered.PaddingTotal - measured.PaddingTotal,
		HeaderDelta:      rendered.HeaderHeight - measured.HeaderHeight,
		ContentDelta:     rendered.ContentHeight - measured.ContentHeight,
		UnaccountedDelta: rendered.Unaccounted - measured.Unaccounted,
	}
	d.Dominant = DominantContributor(map[Contributor]float64{
		ContributorContent:     d.ContentDelta,
		ContributorPadding:     d.PaddingDelta,
		ContributorHeader:      d.HeaderDelta,
		ContributorUnaccounted: d.UnaccountedDelta,
	})
	d.Accuracy = Classify(d.Delta, tolerance)
	return d
}

// DominantContributor picks the contributor with the largest absolute delta. Ties go
// to the earlier entry of content, padding, header, unaccounted.
func DominantContributor(deltas map[Contributor]float64) Contributor {
	best := ContributorContent
	bestAbs := -1.0
	for _, c := range contributorPriority {
		abs := math.Abs(deltas[c])
		if abs > bestAbs {
			best, bestAbs = c, abs
		}
	}
	return best
}

// Classify maps a signed delta to an Accuracy. The tolerance boundary is inclusive.
func Classify(delta, tolerance float64) Accuracy {
	switch {
	case math.Abs(delta) <= tolerance:
		return AccuracyAccurate
	case delta < 0:
		return AccuracyOverEstimating
	default:
		return AccuracyUnderEstimating
	}
}
