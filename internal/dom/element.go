// internal/dom/element.go
package dom

// Element is a read-only view of one node of a laid-out document. Implementations
// back it with a parsed snapshot or an in-memory fixture; the diagnostic never
// mutates it.
type Element interface {
	Tag() string
	Attr(name string) (string, bool)
	Classes() []string
	// Box is the border box in the layer's on-screen pixel space.
	Box() Rect
	// Padding is the resolved padding in the same pixel space as Box.
	Padding() Edges
	// Transform is the element's own computed transform, "" or "none" when absent.
	Transform() string
	// Parent is nil at the root of the tree.
	Parent() Element
	Children() []Element
}

// HasClass reports whether el carries the given class.
func HasClass(el Element, class string) bool {
	for _, c := range el.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

// Describe renders a short human-readable locator such as `ul.spells[data-list-kind=spell-list]`.
func Describe(el Element) string {
	if el == nil {
		return "<nil>"
	}
	out := el.Tag()
	if id, ok := el.Attr("id"); ok && id != "" {
		out += "#" + id
	}
	for _, c := range el.Classes() {
		out += "." + c
	}
	return out
}

// Ancestors returns the parents of el from nearest to the root.
func Ancestors(el Element) []Element {
	var out []Element
	for p := el.Parent(); p != nil; p = p.Parent() {
		out = append(out, p)
	}
	return out
}
