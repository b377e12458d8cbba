// internal/browser/parser/values.go
package parser

import (
	"math"
	"strconv"
	"strings"
)

// DefaultFontSize is the browser default used when a font size cannot be resolved.
const DefaultFontSize = 16.0

// ParseLength converts a CSS length to pixels. Percentages resolve against reference,
// em against fontSize and rem against rootFontSize. Unitless numbers are treated as px.
// Keywords and unparseable values yield 0.
func ParseLength(value string, fontSize, rootFontSize, reference float64) float64 {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "auto" || value == "normal" || value == "none" {
		return 0
	}

	number := func(suffix string) (float64, bool) {
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(value, suffix)), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}

	// Order matters: "rem" must be checked before "em".
	switch {
	case strings.HasSuffix(value, "%"):
		if v, ok := number("%"); ok {
			return reference * v / 100
		}
	case strings.HasSuffix(value, "px"):
		if v, ok := number("px"); ok {
			return v
		}
	case strings.HasSuffix(value, "rem"):
		if v, ok := number("rem"); ok {
			return v * rootFontSize
		}
	case strings.HasSuffix(value, "em"):
		if v, ok := number("em"); ok {
			return v * fontSize
		}
	default:
		if v, ok := number(""); ok {
			return v
		}
	}
	return 0
}
