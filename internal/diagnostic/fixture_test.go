// internal/diagnostic/fixture_test.go
package diagnostic

import (
	"fmt"

	"github.com/xkilldash9x/measurediff/internal/dom"
)

// block builds a component box in logical pixels, multiplied by scale: vertical
// padding split evenly, an optional header and a list of the given kind with one
// li per item height.
func block(tag, kind string, scale, padding, header float64, items ...float64) *dom.Node {
	total := padding + header
	for _, h := range items {
		total += h
	}
	n := dom.NewNode(tag).WithHeight(total*scale).WithPadding(padding*scale/2, padding*scale/2)
	if header > 0 {
		n.Append(dom.NewNode("h3").WithClass("section-header").WithHeight(header * scale))
	}
	list := dom.NewNode("ul").WithAttr(ListKindAttribute, kind)
	for _, h := range items {
		list.Append(dom.NewNode("li").WithHeight(h * scale))
	}
	return n.Append(list)
}

func measured(key, kind string, padding, header float64, items ...float64) *dom.Node {
	return block("section", kind, 1, padding, header, items...).WithAttr(DefaultKeyAttribute, key)
}

func entry(kind string, scale, padding, header float64, items ...float64) *dom.Node {
	return block("div", kind, scale, padding, header, items...).WithClass("column-entry")
}

func column(scale, logicalHeight float64, entries ...*dom.Node) *dom.Node {
	return dom.NewNode("div").WithClass("page-column").WithHeight(logicalHeight * scale).Append(entries...)
}

func measurementLayer(components ...*dom.Node) *dom.Node {
	return dom.NewNode("div").WithAttr("data-layer", "measurement").Append(components...)
}

func visibleLayer(scale float64, columns ...*dom.Node) *dom.Node {
	return dom.NewNode("div").
		WithAttr("data-layer", "visible").
		WithTransform(fmt.Sprintf("matrix(%g, 0, 0, %g, 0, 0)", scale, scale)).
		Append(columns...)
}
