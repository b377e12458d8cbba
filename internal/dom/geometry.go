// internal/dom/geometry.go
package dom

// Rect is an axis-aligned box in a layer's on-screen pixel space.
type Rect struct {
	X, Y, Width, Height float64
}

// IsZero reports whether the rect carries no geometry at all.
func (r Rect) IsZero() bool { return r == Rect{} }

// ContractedBy returns the rectangle shrunk by the edge sizes (border box to content box).
func (r Rect) ContractedBy(e Edges) Rect {
	return Rect{
		X:      r.X + e.Left,
		Y:      r.Y + e.Top,
		Width:  r.Width - e.Left - e.Right,
		Height: r.Height - e.Top - e.Bottom,
	}
}

// Edges holds the four sides of a box-model edge such as padding.
type Edges struct {
	Top, Right, Bottom, Left float64
}

// Vertical is Top + Bottom.
func (e Edges) Vertical() float64 { return e.Top + e.Bottom }

// Scaled multiplies every side by f.
func (e Edges) Scaled(f float64) Edges {
	return Edges{Top: e.Top * f, Right: e.Right * f, Bottom: e.Bottom * f, Left: e.Left * f}
}
