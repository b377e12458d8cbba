// internal/dom/node.go
package dom

import "strings"

// Node is a mutable in-memory Element. Tests and callers that already hold layout
// data build trees from it directly.
type Node struct {
	tag       string
	attrs     map[string]string
	box       Rect
	padding   Edges
	transform string
	parent    *Node
	children  []*Node
}

var _ Element = (*Node)(nil)

// NewNode creates a detached node with the given tag.
func NewNode(tag string) *Node {
	return &Node{tag: strings.ToLower(tag), attrs: make(map[string]string)}
}

// WithClass appends one or more classes.
func (n *Node) WithClass(classes ...string) *Node {
	existing := strings.Fields(n.attrs["class"])
	n.attrs["class"] = strings.Join(append(existing, classes...), " ")
	return n
}

// WithAttr sets an attribute.
func (n *Node) WithAttr(name, value string) *Node {
	n.attrs[strings.ToLower(name)] = value
	return n
}

// WithBox sets the on-screen border box.
func (n *Node) WithBox(x, y, width, height float64) *Node {
	n.box = Rect{X: x, Y: y, Width: width, Height: height}
	return n
}

// WithHeight is WithBox for callers that only care about height.
func (n *Node) WithHeight(height float64) *Node {
	n.box.Height = height
	return n
}

// WithPadding sets the vertical padding; horizontal padding is rarely relevant here.
func (n *Node) WithPadding(top, bottom float64) *Node {
	n.padding.Top, n.padding.Bottom = top, bottom
	return n
}

// WithTransform sets the computed transform string.
func (n *Node) WithTransform(transform string) *Node {
	n.transform = transform
	return n
}

// Append attaches children and returns the receiver, so trees nest naturally.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

func (n *Node) Tag() string { return n.tag }

func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.attrs[strings.ToLower(name)]
	return v, ok
}

func (n *Node) Classes() []string { return strings.Fields(n.attrs["class"]) }

func (n *Node) Box() Rect { return n.box }

func (n *Node) Padding() Edges { return n.padding }

func (n *Node) Transform() string { return n.transform }

func (n *Node) Parent() Element {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) Children() []Element {
	out := make([]Element, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}
