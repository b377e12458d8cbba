// internal/measure/transform.go
package measure

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// -- CSS Transforms (2D) --

// Matrix represents a 2D affine transformation matrix (3x3), laid out the way
// getComputedStyle reports it as matrix(a, b, c, d, e, f).
// [ a c e ]
// [ b d f ]
// [ 0 0 1 ]
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity returns the identity matrix (no transformation).
func Identity() Matrix {
	return Matrix{A: 1, D: 1}
}

// Multiply combines two matrices (m1 * m2). Order matters.
func (m1 Matrix) Multiply(m2 Matrix) Matrix {
	return Matrix{
		A: m1.A*m2.A + m1.C*m2.B,
		B: m1.B*m2.A + m1.D*m2.B,
		C: m1.A*m2.C + m1.C*m2.D,
		D: m1.B*m2.C + m1.D*m2.D,
		E: m1.A*m2.E + m1.C*m2.F + m1.E,
		F: m1.B*m2.E + m1.D*m2.F + m1.F,
	}
}

// Apply transforms a point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// TranslateMatrix creates a translation matrix.
func TranslateMatrix(tx, ty float64) Matrix {
	return Matrix{A: 1, D: 1, E: tx, F: ty}
}

// ScaleMatrix creates a scaling matrix.
func ScaleMatrix(sx, sy float64) Matrix {
	return Matrix{A: sx, D: sy}
}

// RotateMatrix creates a rotation matrix. Angle is in radians.
func RotateMatrix(angle float64) Matrix {
	cosA, sinA := math.Cos(angle), math.Sin(angle)
	return Matrix{A: cosA, B: sinA, C: -sinA, D: cosA}
}

// SkewMatrix creates a skewing matrix. Angles are in radians.
func SkewMatrix(ax, ay float64) Matrix {
	return Matrix{A: 1, B: math.Tan(ay), C: math.Tan(ax), D: 1}
}

// ErrNoTransform is returned by ParseTransform for "none" and empty input.
var ErrNoTransform = errors.New("no transform present")

// ParseTransform parses a CSS transform value into a single matrix. It accepts the
// computed form matrix(a, b, c, d, e, f) and the authored 2D functions, composed
// left to right. Translations must be absolute lengths (px or unitless).
func ParseTransform(value string) (Matrix, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "none" {
		return Matrix{}, ErrNoTransform
	}

	final := Identity()
	rest := value
	parsedAny := false
	for {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		open := strings.IndexByte(rest, '(')
		closeIdx := strings.IndexByte(rest, ')')
		if open <= 0 || closeIdx < open {
			return Matrix{}, fmt.Errorf("malformed transform function in %q", value)
		}
		name := strings.TrimSpace(rest[:open])
		args := strings.Fields(strings.ReplaceAll(rest[open+1:closeIdx], ",", " "))
		rest = rest[closeIdx+1:]

		current, err := transformFunction(name, args)
		if err != nil {
			return Matrix{}, fmt.Errorf("transform %q: %w", value, err)
		}
		final = final.Multiply(current)
		parsedAny = true
	}
	if !parsedAny {
		return Matrix{}, fmt.Errorf("malformed transform %q", value)
	}
	return final, nil
}

func transformFunction(name string, args []string) (Matrix, error) {
	nums := func(want ...int) ([]float64, error) {
		ok := false
		for _, n := range want {
			if len(args) == n {
				ok = true
			}
		}
		if !ok {
			return nil, fmt.Errorf("%s() takes %v arguments, got %d", name, want, len(args))
		}
		out := make([]float64, len(args))
		for i, a := range args {
			v, err := parseNumber(a)
			if err != nil {
				return nil, fmt.Errorf("%s(): %w", name, err)
			}
			out[i] = v
		}
		return out, nil
	}
	angles := func(want ...int) ([]float64, error) {
		ok := false
		for _, n := range want {
			if len(args) == n {
				ok = true
			}
		}
		if !ok {
			return nil, fmt.Errorf("%s() takes %v arguments, got %d", name, want, len(args))
		}
		out := make([]float64, len(args))
		for i, a := range args {
			v, err := parseAngle(a)
			if err != nil {
				return nil, fmt.Errorf("%s(): %w", name, err)
			}
			out[i] = v
		}
		return out, nil
	}

	switch name {
	case "matrix":
		v, err := nums(6)
		if err != nil {
			return Matrix{}, err
		}
		return Matrix{A: v[0], B: v[1], C: v[2], D: v[3], E: v[4], F: v[5]}, nil
	case "translate":
		v, err := nums(1, 2)
		if err != nil {
			return Matrix{}, err
		}
		if len(v) == 1 {
			return TranslateMatrix(v[0], 0), nil
		}
		return TranslateMatrix(v[0], v[1]), nil
	case "translateX":
		v, err := nums(1)
		if err != nil {
			return Matrix{}, err
		}
		return TranslateMatrix(v[0], 0), nil
	case "translateY":
		v, err := nums(1)
		if err != nil {
			return Matrix{}, err
		}
		return TranslateMatrix(0, v[0]), nil
	case "scale":
		v, err := nums(1, 2)
		if err != nil {
			return Matrix{}, err
		}
		if len(v) == 1 {
			return ScaleMatrix(v[0], v[0]), nil
		}
		return ScaleMatrix(v[0], v[1]), nil
	case "scaleX":
		v, err := nums(1)
		if err != nil {
			return Matrix{}, err
		}
		return ScaleMatrix(v[0], 1), nil
	case "scaleY":
		v, err := nums(1)
		if err != nil {
			return Matrix{}, err
		}
		return ScaleMatrix(1, v[0]), nil
	case "rotate":
		v, err := angles(1)
		if err != nil {
			return Matrix{}, err
		}
		return RotateMatrix(v[0]), nil
	case "skew":
		v, err := angles(1, 2)
		if err != nil {
			return Matrix{}, err
		}
		if len(v) == 1 {
			return SkewMatrix(v[0], 0), nil
		}
		return SkewMatrix(v[0], v[1]), nil
	case "skewX":
		v, err := angles(1)
		if err != nil {
			return Matrix{}, err
		}
		return SkewMatrix(v[0], 0), nil
	case "skewY":
		v, err := angles(1)
		if err != nil {
			return Matrix{}, err
		}
		return SkewMatrix(0, v[0]), nil
	}
	return Matrix{}, fmt.Errorf("unsupported transform function %q", name)
}

// parseNumber accepts plain numbers and px lengths.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

// parseAngle converts deg, rad, turn and unitless (degrees) values to radians.
func parseAngle(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "deg"):
		v, err := parseNumber(strings.TrimSuffix(s, "deg"))
		return v * math.Pi / 180.0, err
	case strings.HasSuffix(s, "grad"):
		v, err := parseNumber(strings.TrimSuffix(s, "grad"))
		return v * math.Pi / 200.0, err
	case strings.HasSuffix(s, "rad"):
		return parseNumber(strings.TrimSuffix(s, "rad"))
	case strings.HasSuffix(s, "turn"):
		v, err := parseNumber(strings.TrimSuffix(s, "turn"))
		return v * 2 * math.Pi, err
	}
	v, err := parseNumber(s)
	return v * math.Pi / 180.0, err
}
