// internal/snapshot/snapshot.go
package snapshot

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/measurediff/internal/dom"
	"github.com/xkilldash9x/measurediff/internal/measure"
)

const (
	// DefaultMeasurementLayerXPath locates the offscreen measurement container.
	DefaultMeasurementLayerXPath = `//*[@data-layer="measurement"]`
	// DefaultVisibleLayerXPath locates the scaled on-screen container.
	DefaultVisibleLayerXPath = `//*[@data-layer="visible"]`
	// DefaultRectAttribute carries "x y width height" in on-screen pixels.
	DefaultRectAttribute = "data-rect"

	// Meta names written into the <head> of a captured document.
	MetaSourceURL  = "measurediff:source-url"
	MetaCapturedAt = "measurediff:captured-at"
	MetaViewport   = "measurediff:viewport"
)

// Options controls how a snapshot is interpreted.
type Options struct {
	MeasurementLayerXPath string
	VisibleLayerXPath     string
	RectAttribute         string
	Logger                *zap.Logger
}

// DefaultOptions returns the layer locators the capture script and fixtures use.
func DefaultOptions() Options {
	return Options{
		MeasurementLayerXPath: DefaultMeasurementLayerXPath,
		VisibleLayerXPath:     DefaultVisibleLayerXPath,
		RectAttribute:         DefaultRectAttribute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MeasurementLayerXPath == "" {
		o.MeasurementLayerXPath = d.MeasurementLayerXPath
	}
	if o.VisibleLayerXPath == "" {
		o.VisibleLayerXPath = d.VisibleLayerXPath
	}
	if o.RectAttribute == "" {
		o.RectAttribute = d.RectAttribute
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Document is a parsed snapshot. Elements are wrapped lazily and cached, so the same
// html.Node always yields the same *Element.
type Document struct {
	root     *html.Node
	opts     Options
	logger   *zap.Logger
	elements map[*html.Node]*Element
}

// Load parses a snapshot document.
func Load(r io.Reader, opts Options) (*Document, error) {
	opts = opts.withDefaults()
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot HTML: %w", err)
	}
	return &Document{
		root:     root,
		opts:     opts,
		logger:   opts.Logger.Named("snapshot"),
		elements: make(map[*html.Node]*Element),
	}, nil
}

// LoadFile opens and parses a snapshot from disk.
func LoadFile(path string, opts Options) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// MeasurementLayer returns the root of the measurement layer.
func (d *Document) MeasurementLayer() (dom.Element, error) {
	return d.layer(measure.LayerMeasurement, d.opts.MeasurementLayerXPath)
}

// VisibleLayer returns the root of the visible layer.
func (d *Document) VisibleLayer() (dom.Element, error) {
	return d.layer(measure.LayerVisible, d.opts.VisibleLayerXPath)
}

// Layers returns both layer roots, failing on the first one that is missing.
func (d *Document) Layers() (measurement, visible dom.Element, err error) {
	if measurement, err = d.MeasurementLayer(); err != nil {
		return nil, nil, err
	}
	if visible, err = d.VisibleLayer(); err != nil {
		return nil, nil, err
	}
	return measurement, visible, nil
}

func (d *Document) layer(name, expr string) (dom.Element, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s layer XPath %q: %w", name, expr, err)
	}
	if len(nodes) == 0 {
		return nil, &measure.MissingLayerError{Layer: name, Locator: expr}
	}
	if len(nodes) > 1 {
		d.logger.Warn("Multiple layer roots matched, using the first.",
			zap.String("layer", name),
			zap.String("xpath", expr),
			zap.Int("matches", len(nodes)))
	}
	return d.wrap(nodes[0]), nil
}

// Meta returns the content of <meta name="..."> from the document head.
func (d *Document) Meta(name string) (string, bool) {
	node := htmlquery.FindOne(d.root, fmt.Sprintf(`//meta[@name=%q]`, name))
	if node == nil {
		return "", false
	}
	for _, a := range node.Attr {
		if a.Key == "content" {
			return a.Val, true
		}
	}
	return "", false
}

// Title returns the trimmed document title, if any.
func (d *Document) Title() string {
	if n := htmlquery.FindOne(d.root, "//title"); n != nil {
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
	return ""
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := newElement(d, n)
	d.elements[n] = el
	return el
}
