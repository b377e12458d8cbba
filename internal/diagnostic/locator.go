// internal/diagnostic/locator.go
package diagnostic

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/dom"
	"github.com/xkilldash9x/measurediff/internal/measure"
)

// ErrUnsupportedLookup is returned when a reader is asked for a lookup its layer
// cannot answer: the visible layer carries no keys, and the measurement layer is
// never searched structurally.
var ErrUnsupportedLookup = errors.New("lookup not supported by this layer")

// LayerReader is the read-only data-access surface of one layer.
type LayerReader interface {
	FindByKey(key measure.MeasurementKey) (dom.Element, error)
	FindByPredicate(p Predicate) ([]Candidate, error)
}

// Predicate describes the shape of a rendered entry: it must contain an element
// matching Selector with exactly ChildCount element children.
type Predicate struct {
	Selector   dom.Selector
	ChildCount int
}

func (p Predicate) String() string {
	return fmt.Sprintf("entry containing %s with %d children", p.Selector, p.ChildCount)
}

// Matches reports whether entry has the predicate's shape.
func (p Predicate) Matches(entry dom.Element) bool {
	for _, el := range dom.QueryAll(entry, p.Selector) {
		if dom.ElementChildCount(el) == p.ChildCount {
			return true
		}
	}
	return false
}

// Candidate is one rendered entry that satisfied a predicate.
type Candidate struct {
	// Column is the column index in page order, or -1 when the layer has no columns.
	Column  int
	Entry   int
	Element dom.Element
}

func (c Candidate) String() string {
	if c.Column < 0 {
		return fmt.Sprintf("entry %d (%s)", c.Entry, dom.Describe(c.Element))
	}
	return fmt.Sprintf("column %d entry %d (%s)", c.Column, c.Entry, dom.Describe(c.Element))
}

type keyedElement struct {
	key measure.MeasurementKey
	el  dom.Element
}

// MeasurementReader answers exact key lookups against the measurement layer.
type MeasurementReader struct {
	attr      string
	entries   []keyedElement
	malformed []string
	logger    *zap.Logger
}

var _ LayerReader = (*MeasurementReader)(nil)

// NewMeasurementReader indexes every keyed node under root. Attribute values that do
// not parse as keys are skipped and remembered.
func NewMeasurementReader(root dom.Element, opts Options) (*MeasurementReader, error) {
	c, err := opts.compile()
	if err != nil {
		return nil, err
	}
	return newMeasurementReader(root, c), nil
}

func newMeasurementReader(root dom.Element, c *compiled) *MeasurementReader {
	r := &MeasurementReader{attr: c.opts.KeyAttribute, logger: c.opts.Logger.Named("locator")}
	for _, el := range dom.QueryAll(root, c.key) {
		raw, _ := el.Attr(r.attr)
		key, err := measure.ParseKey(raw)
		if err != nil {
			r.logger.Warn("Skipping malformed measurement key.", zap.String("value", raw), zap.Error(err))
			r.malformed = append(r.malformed, raw)
			continue
		}
		r.entries = append(r.entries, keyedElement{key: key, el: el})
	}
	return r
}

// Keys returns every well-formed key in document order. Duplicates are kept.
func (r *MeasurementReader) Keys() []measure.MeasurementKey {
	keys := make([]measure.MeasurementKey, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.key
	}
	return keys
}

// Malformed returns the raw attribute values that failed to parse.
func (r *MeasurementReader) Malformed() []string {
	return r.malformed
}

// KeysForComponent returns the keys sharing key's component id, excluding key itself.
func (r *MeasurementReader) KeysForComponent(key measure.MeasurementKey) []measure.MeasurementKey {
	var out []measure.MeasurementKey
	for _, e := range r.entries {
		if e.key.SameComponent(key) && e.key != key {
			out = append(out, e.key)
		}
	}
	return out
}

// FindByKey returns the first node tagged with key.
func (r *MeasurementReader) FindByKey(key measure.MeasurementKey) (dom.Element, error) {
	if all := r.FindAllByKey(key); len(all) > 0 {
		return all[0], nil
	}
	return nil, &measure.EntryNotFoundError{
		Key:        key,
		Layer:      measure.LayerMeasurement,
		Candidates: r.KeysForComponent(key),
	}
}

// FindAllByKey returns every node tagged with key, in document order.
func (r *MeasurementReader) FindAllByKey(key measure.MeasurementKey) []dom.Element {
	var out []dom.Element
	for _, e := range r.entries {
		if e.key == key {
			out = append(out, e.el)
		}
	}
	return out
}

// FindByPredicate is not supported on the measurement layer.
func (r *MeasurementReader) FindByPredicate(Predicate) ([]Candidate, error) {
	return nil, ErrUnsupportedLookup
}

// VisibleReader answers structural lookups against the paginated visible layer.
type VisibleReader struct {
	root    dom.Element
	c       *compiled
	columns []dom.Element
	logger  *zap.Logger
}

var _ LayerReader = (*VisibleReader)(nil)

// NewVisibleReader prepares structural lookups under root.
func NewVisibleReader(root dom.Element, opts Options) (*VisibleReader, error) {
	c, err := opts.compile()
	if err != nil {
		return nil, err
	}
	return newVisibleReader(root, c), nil
}

func newVisibleReader(root dom.Element, c *compiled) *VisibleReader {
	return &VisibleReader{
		root:    root,
		c:       c,
		columns: dom.QueryAll(root, c.column),
		logger:  c.opts.Logger.Named("locator"),
	}
}

// Columns returns the page columns in document order, which is page order.
func (r *VisibleReader) Columns() []dom.Element {
	return r.columns
}

// Entries returns the outermost entries of one column.
func (r *VisibleReader) Entries(column dom.Element) []dom.Element {
	return dom.QueryOutermost(column, r.c.entry)
}

// PredicateFor derives the structural predicate for a key: the list container of its
// kind holding exactly Count items.
func (r *VisibleReader) PredicateFor(key measure.MeasurementKey) (Predicate, error) {
	sel, err := r.c.listSelector(key.ListKind)
	if err != nil {
		return Predicate{}, fmt.Errorf("no usable selector for list kind %q: %w", key.ListKind, err)
	}
	return Predicate{Selector: sel, ChildCount: key.Count}, nil
}

// FindByKey is not supported on the visible layer.
func (r *VisibleReader) FindByKey(measure.MeasurementKey) (dom.Element, error) {
	return nil, ErrUnsupportedLookup
}

// FindByPredicate scans entries in column order and returns every match. Without
// any columns it scans the layer's entries directly.
func (r *VisibleReader) FindByPredicate(p Predicate) ([]Candidate, error) {
	var out []Candidate
	if len(r.columns) == 0 {
		for j, entry := range dom.QueryOutermost(r.root, r.c.entry) {
			if p.Matches(entry) {
				out = append(out, Candidate{Column: -1, Entry: j, Element: entry})
			}
		}
		return out, nil
	}
	for i, col := range r.columns {
		for j, entry := range r.Entries(col) {
			if p.Matches(entry) {
				out = append(out, Candidate{Column: i, Entry: j, Element: entry})
			}
		}
	}
	r.logger.Debug("Structural lookup finished.", zap.Stringer("predicate", p), zap.Int("candidates", len(out)))
	return out, nil
}
