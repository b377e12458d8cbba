// internal/snapshot/element.go
package snapshot

import (
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/measurediff/internal/browser/parser"
	"github.com/xkilldash9x/measurediff/internal/dom"
	"github.com/xkilldash9x/measurediff/internal/measure"
)

// Element adapts an html.Node from a snapshot to dom.Element.
type Element struct {
	doc       *Document
	node      *html.Node
	box       dom.Rect
	padding   dom.Edges
	transform string
	// cssScale is the product of the x-scale terms of this element's transform and
	// all of its ancestors' transforms.
	cssScale float64
}

var _ dom.Element = (*Element)(nil)

func newElement(d *Document, n *html.Node) *Element {
	el := &Element{doc: d, node: n}

	decls := parser.ParseDeclarations(htmlquery.SelectAttr(n, "style"))
	decls = parser.ExpandBoxShorthand(decls, "padding")
	style := parser.Resolve(decls)
	el.transform = strings.TrimSpace(string(style["transform"]))
	el.box = el.parseRect()

	parentScale := 1.0
	parentWidth := 0.0
	if p := el.parentElement(); p != nil {
		parentScale = p.cssScale
		parentWidth = p.box.Width / p.cssScale
	}
	el.cssScale = parentScale * ownScale(el.transform)

	fontSize := parser.ParseLength(string(style["font-size"]), parser.DefaultFontSize, parser.DefaultFontSize, parser.DefaultFontSize)
	if fontSize <= 0 {
		fontSize = parser.DefaultFontSize
	}
	length := func(p parser.Property) float64 {
		return parser.ParseLength(string(style[p]), fontSize, parser.DefaultFontSize, parentWidth)
	}
	// Computed padding is in CSS pixels; bring it into the same on-screen space as the box.
	el.padding = dom.Edges{
		Top:    length("padding-top"),
		Right:  length("padding-right"),
		Bottom: length("padding-bottom"),
		Left:   length("padding-left"),
	}.Scaled(el.cssScale)
	return el
}

// ownScale returns the x-scale term of a transform, or 1 when there is none or it
// cannot be used.
func ownScale(transform string) float64 {
	if transform == "" || transform == "none" {
		return 1
	}
	m, err := measure.ParseTransform(transform)
	if err != nil || !(m.A > 0) {
		return 1
	}
	return m.A
}

func (e *Element) parseRect() dom.Rect {
	raw, ok := e.Attr(e.doc.opts.RectAttribute)
	if !ok {
		return dom.Rect{}
	}
	fields := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	if len(fields) != 4 {
		e.doc.logger.Warn("Ignoring malformed rect attribute.", zap.String("element", dom.Describe(e)), zap.String("value", raw))
		return dom.Rect{}
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			e.doc.logger.Warn("Ignoring malformed rect attribute.", zap.String("element", dom.Describe(e)), zap.String("value", raw))
			return dom.Rect{}
		}
		v[i] = n
	}
	return dom.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
}

func (e *Element) parentElement() *Element {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return e.doc.wrap(p)
		}
	}
	return nil
}

func (e *Element) Tag() string { return strings.ToLower(e.node.Data) }

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) Classes() []string {
	return strings.Fields(htmlquery.SelectAttr(e.node, "class"))
}

func (e *Element) Box() dom.Rect { return e.box }

func (e *Element) Padding() dom.Edges { return e.padding }

func (e *Element) Transform() string { return e.transform }

func (e *Element) Parent() dom.Element {
	if p := e.parentElement(); p != nil {
		return p
	}
	return nil
}

func (e *Element) Children() []dom.Element {
	var out []dom.Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}
