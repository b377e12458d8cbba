// internal/measure/key.go
package measure

import (
	"fmt"
	"strconv"
	"strings"
)

// KeySeparator joins the fields of a serialized MeasurementKey.
const KeySeparator = ":"

// MeasurementKey identifies one paginated content unit for cross-layer lookup.
// Two keys are equal iff all five fields match, so the struct is comparable with ==.
type MeasurementKey struct {
	ComponentID  string `json:"component_id"`
	ListKind     string `json:"list_kind"`
	StartIndex   int    `json:"start_index"`
	Count        int    `json:"count"`
	TotalAtLevel int    `json:"total_at_level"`
}

// String serializes the key in the form the measurement layer tags its nodes with:
// componentId:listKind:startIndex:count:totalAtLevel.
func (k MeasurementKey) String() string {
	return strings.Join([]string{
		k.ComponentID,
		k.ListKind,
		strconv.Itoa(k.StartIndex),
		strconv.Itoa(k.Count),
		strconv.Itoa(k.TotalAtLevel),
	}, KeySeparator)
}

// SameComponent reports whether both keys refer to the same source component.
func (k MeasurementKey) SameComponent(other MeasurementKey) bool {
	return k.ComponentID == other.ComponentID
}

// End returns the exclusive index of the last item covered by this segment.
func (k MeasurementKey) End() int {
	return k.StartIndex + k.Count
}

// Validate checks the segment bounds against the number of items in the source list.
func (k MeasurementKey) Validate(totalItemsInSource int) error {
	if k.StartIndex < 0 || k.Count < 0 || k.TotalAtLevel < 0 {
		return fmt.Errorf("measurement key %q has negative bounds", k.String())
	}
	if k.End() > totalItemsInSource {
		return fmt.Errorf("measurement key %q covers items [%d, %d) but the source only has %d",
			k.String(), k.StartIndex, k.End(), totalItemsInSource)
	}
	return nil
}

// ParseKey parses a serialized MeasurementKey. The string is split from the right,
// so the component id may itself contain the separator; the list kind may not.
func ParseKey(s string) (MeasurementKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MeasurementKey{}, fmt.Errorf("empty measurement key")
	}

	// Peel the three integer fields and the list kind off the right-hand side.
	fields := make([]string, 4)
	rest := s
	for i := 3; i >= 0; i-- {
		idx := strings.LastIndex(rest, KeySeparator)
		if idx == -1 {
			return MeasurementKey{}, fmt.Errorf("invalid measurement key format: expected 'component:kind:start:count:total', got '%s'", s)
		}
		fields[i] = rest[idx+1:]
		rest = rest[:idx]
	}

	key := MeasurementKey{ComponentID: rest, ListKind: fields[0]}
	if key.ComponentID == "" {
		return MeasurementKey{}, fmt.Errorf("measurement key '%s' has an empty component id", s)
	}
	if key.ListKind == "" {
		return MeasurementKey{}, fmt.Errorf("measurement key '%s' has an empty list kind", s)
	}

	ints := []*int{&key.StartIndex, &key.Count, &key.TotalAtLevel}
	names := []string{"start index", "count", "total at level"}
	for i, target := range ints {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return MeasurementKey{}, fmt.Errorf("invalid %s in measurement key '%s': %w", names[i], s, err)
		}
		if v < 0 {
			return MeasurementKey{}, fmt.Errorf("negative %s in measurement key '%s'", names[i], s)
		}
		*target = v
	}
	return key, nil
}
