// internal/measure/scale.go
package measure

import (
	"errors"
	"math"
)

// ScaleTransform is the uniform scale applied to the visible layer relative to the
// measurement layer's logical pixel space.
type ScaleTransform struct {
	Factor float64 `json:"factor"`
	Matrix Matrix  `json:"matrix"`
}

// IdentityScale is the fallback used when no usable transform is found.
func IdentityScale() ScaleTransform {
	return ScaleTransform{Factor: 1, Matrix: Identity()}
}

// ToLogical converts a visible-layer pixel value to logical pixels.
func (s ScaleTransform) ToLogical(px float64) float64 {
	return px / s.Factor
}

// Uniform reports whether the matrix is a pure uniform scale (no rotation, skew or
// differing axis scales). Translation is ignored.
func (s ScaleTransform) Uniform() bool {
	const tol = 1e-9
	m := s.Matrix
	return math.Abs(m.B) < tol && math.Abs(m.C) < tol && math.Abs(m.A-m.D) < tol
}

// ResolveScale extracts the scale factor from a CSS transform value. Only the x-scale
// term (a) is used; the transform is assumed to be a uniform scale.
func ResolveScale(transform string) (ScaleTransform, error) {
	m, err := ParseTransform(transform)
	if err != nil {
		reason := "transform could not be parsed"
		if errors.Is(err, ErrNoTransform) {
			reason = "no transform present"
		}
		return ScaleTransform{}, &ScaleResolutionError{Transform: transform, Reason: reason, Err: err}
	}
	if !(m.A > 0) || math.IsInf(m.A, 0) {
		return ScaleTransform{}, &ScaleResolutionError{Transform: transform, Reason: "x-scale term is not a positive finite number"}
	}
	return ScaleTransform{Factor: m.A, Matrix: m}, nil
}

// ResolveScaleOrIdentity behaves like ResolveScale but never leaves the caller without a
// usable scale: on failure it returns the identity scale together with the error.
func ResolveScaleOrIdentity(transform string) (ScaleTransform, error) {
	s, err := ResolveScale(transform)
	if err != nil {
		return IdentityScale(), err
	}
	return s, nil
}

// Axes returns how far the matrix stretches the unit x and y vectors. Both equal
// Factor for a uniform scale.
func (s ScaleTransform) Axes() (sx, sy float64) {
	ox, oy := s.Matrix.Apply(0, 0)
	x1, y1 := s.Matrix.Apply(1, 0)
	x2, y2 := s.Matrix.Apply(0, 1)
	return math.Hypot(x1-ox, y1-oy), math.Hypot(x2-ox, y2-oy)
}
