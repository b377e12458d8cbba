// internal/diagnostic/options.go
package diagnostic

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/dom"
	"github.com/xkilldash9x/measurediff/internal/measure"
)

// ColumnHeightSource selects which layer's entry heights are stacked in the column check.
type ColumnHeightSource string

const (
	ColumnHeightRendered ColumnHeightSource = "rendered"
	ColumnHeightMeasured ColumnHeightSource = "measured"
)

// Default selectors for the paginated page structure.
const (
	DefaultKeyAttribute   = "data-measurement-key"
	DefaultColumnSelector = ".page-column"
	DefaultEntrySelector  = ".column-entry"
	DefaultHeaderSelector = ".section-header"
	DefaultItemSelector   = "li, dt, dd, hr, .list-item"
	// ListKindAttribute is used to build the fallback list selector for a list kind.
	ListKindAttribute = "data-list-kind"
)

// Options configures one diagnostic run. Start from DefaultOptions: empty selectors
// fall back to their defaults, but numeric fields are taken as given since zero is a
// legitimate spacing, epsilon or tolerance.
type Options struct {
	KeyAttribute   string
	ColumnSelector string
	EntrySelector  string
	HeaderSelector string
	ItemSelector   string
	// ListSelectors maps a list kind to the selector of its list container in the
	// visible layer. Kinds match case-insensitively, since config loaders fold map
	// keys to lower case. Kinds without an entry use [data-list-kind="<kind>"].
	ListSelectors map[string]string

	EntrySpacing       float64
	OverrunEpsilon     float64
	AccuracyTolerance  float64
	ColumnHeightSource ColumnHeightSource

	Logger *zap.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		KeyAttribute:       DefaultKeyAttribute,
		ColumnSelector:     DefaultColumnSelector,
		EntrySelector:      DefaultEntrySelector,
		HeaderSelector:     DefaultHeaderSelector,
		ItemSelector:       DefaultItemSelector,
		EntrySpacing:       measure.DefaultEntrySpacing,
		OverrunEpsilon:     measure.DefaultOverrunEpsilon,
		AccuracyTolerance:  measure.DefaultAccuracyTolerance,
		ColumnHeightSource: ColumnHeightRendered,
	}
}

// withDefaults fills unset fields. Negative numeric fields are replaced.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.KeyAttribute == "" {
		o.KeyAttribute = d.KeyAttribute
	}
	if o.ColumnSelector == "" {
		o.ColumnSelector = d.ColumnSelector
	}
	if o.EntrySelector == "" {
		o.EntrySelector = d.EntrySelector
	}
	if o.HeaderSelector == "" {
		o.HeaderSelector = d.HeaderSelector
	}
	if o.ItemSelector == "" {
		o.ItemSelector = d.ItemSelector
	}
	if o.EntrySpacing < 0 {
		o.EntrySpacing = d.EntrySpacing
	}
	if o.OverrunEpsilon < 0 {
		o.OverrunEpsilon = d.OverrunEpsilon
	}
	if o.AccuracyTolerance < 0 {
		o.AccuracyTolerance = d.AccuracyTolerance
	}
	if o.ColumnHeightSource == "" {
		o.ColumnHeightSource = d.ColumnHeightSource
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// compiled holds the parsed selectors of an Options value.
type compiled struct {
	opts   Options
	key    dom.Selector
	column dom.Selector
	entry  dom.Selector
	header dom.Selector
	item   dom.Selector
	lists  map[string]dom.Selector
}

func (o Options) compile() (*compiled, error) {
	o = o.withDefaults()
	switch o.ColumnHeightSource {
	case ColumnHeightRendered, ColumnHeightMeasured:
	default:
		return nil, fmt.Errorf("unknown column height source %q", o.ColumnHeightSource)
	}

	c := &compiled{opts: o, lists: make(map[string]dom.Selector, len(o.ListSelectors))}
	targets := []struct {
		name string
		src  string
		dst  *dom.Selector
	}{
		{"key", fmt.Sprintf("[%s]", o.KeyAttribute), &c.key},
		{"column", o.ColumnSelector, &c.column},
		{"entry", o.EntrySelector, &c.entry},
		{"header", o.HeaderSelector, &c.header},
		{"item", o.ItemSelector, &c.item},
	}
	for _, t := range targets {
		sel, err := dom.Compile(t.src)
		if err != nil {
			return nil, fmt.Errorf("invalid %s selector: %w", t.name, err)
		}
		*t.dst = sel
	}

	kinds := make([]string, 0, len(o.ListSelectors))
	for kind := range o.ListSelectors {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	folded := make(map[string]string, len(kinds))
	for _, kind := range kinds {
		lower := strings.ToLower(kind)
		if prev, dup := folded[lower]; dup {
			return nil, fmt.Errorf("list selector kinds %q and %q differ only in case", prev, kind)
		}
		folded[lower] = kind
		sel, err := dom.Compile(o.ListSelectors[kind])
		if err != nil {
			return nil, fmt.Errorf("invalid list selector for kind %q: %w", kind, err)
		}
		c.lists[lower] = sel
	}
	return c, nil
}

// listSelector returns the configured selector for a list kind, or the attribute fallback.
func (c *compiled) listSelector(kind string) (dom.Selector, error) {
	if sel, ok := c.lists[strings.ToLower(kind)]; ok {
		return sel, nil
	}
	return dom.Compile(fmt.Sprintf("[%s=%q]", ListKindAttribute, kind))
}
