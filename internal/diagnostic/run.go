// internal/diagnostic/run.go
package diagnostic

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/measurediff/internal/dom"
	"github.com/xkilldash9x/measurediff/internal/measure"
)

// Run compares every keyed component of the measurement layer with its rendered entry
// and checks every visible column for overrun. Only a missing layer or invalid
// options fail the run; everything else is reported inline.
func Run(measurementRoot, visibleRoot dom.Element, opts Options) (*Report, error) {
	return run(measurementRoot, visibleRoot, nil, opts)
}

// RunKeys is Run restricted to the given keys. Keys absent from the measurement layer
// are reported as not found.
func RunKeys(measurementRoot, visibleRoot dom.Element, keys []measure.MeasurementKey, opts Options) (*Report, error) {
	if keys == nil {
		keys = []measure.MeasurementKey{}
	}
	return run(measurementRoot, visibleRoot, keys, opts)
}

type runner struct {
	c         *compiled
	logger    *zap.Logger
	report    *Report
	scale     measure.ScaleTransform
	extractor *Extractor
	mr        *MeasurementReader
	vr        *VisibleReader
	// measured holds the logical measured height of each matched visible entry.
	measured map[dom.Element]float64
}

func run(measurementRoot, visibleRoot dom.Element, keys []measure.MeasurementKey, opts Options) (*Report, error) {
	if isNil(measurementRoot) {
		return nil, &measure.MissingLayerError{Layer: measure.LayerMeasurement}
	}
	if isNil(visibleRoot) {
		return nil, &measure.MissingLayerError{Layer: measure.LayerVisible}
	}
	c, err := opts.compile()
	if err != nil {
		return nil, fmt.Errorf("invalid diagnostic options: %w", err)
	}

	r := &runner{
		c:         c,
		logger:    c.opts.Logger.Named("diagnostic"),
		extractor: newExtractor(c),
		mr:        newMeasurementReader(measurementRoot, c),
		vr:        newVisibleReader(visibleRoot, c),
		measured:  make(map[dom.Element]float64),
		report: &Report{
			RunID:      uuid.NewString(),
			StartedAt:  time.Now().UTC(),
			Components: []ComponentResult{},
			Columns:    []measure.ColumnOverrunReport{},
			Warnings:   []Warning{},
		},
	}
	r.logger.Info("Starting diagnostic run.", zap.String("run_id", r.report.RunID))

	r.resolveScale(visibleRoot)
	for _, raw := range r.mr.Malformed() {
		r.report.warn(WarnMalformedKey, raw, fmt.Sprintf("measurement key %q could not be parsed and was skipped", raw))
	}

	if keys == nil {
		keys = r.mr.Keys()
	}
	for _, key := range uniqueKeys(keys) {
		r.report.Components = append(r.report.Components, r.compareComponent(key))
	}
	r.checkColumns()

	r.report.summarize()
	r.report.FinishedAt = time.Now().UTC()
	r.logger.Info("Diagnostic run complete.",
		zap.String("run_id", r.report.RunID),
		zap.Int("components", r.report.Summary.Components),
		zap.Int("accurate", r.report.Summary.Accurate),
		zap.Int("unmatched", r.report.Summary.Unmatched),
		zap.Int("overrun_columns", r.report.Summary.OverrunColumns),
		zap.Int("warnings", len(r.report.Warnings)))
	return r.report, nil
}

// uniqueKeys drops repeated keys, keeping the first occurrence.
func uniqueKeys(keys []measure.MeasurementKey) []measure.MeasurementKey {
	seen := make(map[measure.MeasurementKey]struct{}, len(keys))
	out := make([]measure.MeasurementKey, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// resolveScale reads the transform of the nearest element, from the visible root
// upwards, that has one.
func (r *runner) resolveScale(visibleRoot dom.Element) {
	var source dom.Element
	transform := ""
	for el := visibleRoot; el != nil; el = el.Parent() {
		t := strings.TrimSpace(el.Transform())
		if t != "" && t != "none" {
			source, transform = el, t
			break
		}
	}

	scale, err := measure.ResolveScaleOrIdentity(transform)
	outcome := ScaleOutcome{
		Factor:    scale.Factor,
		Transform: transform,
		Resolved:  err == nil,
		Uniform:   scale.Uniform(),
	}
	if source != nil {
		outcome.Source = dom.Describe(source)
	}
	if err != nil {
		outcome.Error = err.Error()
		r.report.warn(WarnScaleFallback, "", fmt.Sprintf("%s; using factor 1.0", err))
		r.logger.Warn("Falling back to identity scale.", zap.Error(err))
	} else if !outcome.Uniform {
		sx, sy := scale.Axes()
		r.report.warn(WarnScaleNonUniform, "",
			fmt.Sprintf("transform %q is not a uniform scale (axes %.4g x %.4g); only its x-scale %.4g is used",
				transform, sx, sy, scale.Factor))
	}
	if source != nil {
		r.checkOuterScale(source, scale.Factor)
	}
	r.scale = scale
	r.report.Scale = outcome
}

// checkOuterScale warns when an ancestor of the element the scale was read from also
// scales the page. Bounding boxes carry the product of every scale, while only the
// nearest one is divided out.
func (r *runner) checkOuterScale(source dom.Element, factor float64) {
	cumulative := factor
	var outer []string
	for _, el := range dom.Ancestors(source) {
		t := strings.TrimSpace(el.Transform())
		if t == "" || t == "none" {
			continue
		}
		s, err := measure.ResolveScale(t)
		if err != nil || math.Abs(s.Factor-1) < 1e-9 {
			continue
		}
		cumulative *= s.Factor
		outer = append(outer, fmt.Sprintf("%q on %s", t, dom.Describe(el)))
	}
	if len(outer) == 0 {
		return
	}
	msg := fmt.Sprintf("outer transform %s also scales the visible layer; cumulative x-scale is %.4g but only %.4g is divided out",
		strings.Join(outer, ", "), cumulative, factor)
	r.report.warn(WarnScaleNested, "", msg)
	r.logger.Warn("Visible layer sits under more than one scale.",
		zap.Float64("factor", factor), zap.Float64("cumulative", cumulative))
}

func (r *runner) compareComponent(key measure.MeasurementKey) ComponentResult {
	res := ComponentResult{Key: key, Column: -1, Entry: -1}
	log := r.logger.With(zap.Stringer("key", key))

	if err := key.Validate(key.TotalAtLevel); err != nil {
		r.report.warn(WarnKeyOutOfBounds, key.String(), err.Error())
	}

	measuredEl, err := r.mr.FindByKey(key)
	if err != nil {
		return r.notFound(res, err)
	}
	tagged := r.mr.FindAllByKey(key)

	pred, err := r.vr.PredicateFor(key)
	if err != nil {
		r.report.warn(WarnPredicateInvalid, key.String(), err.Error())
		return r.notFound(res, &measure.EntryNotFoundError{
			Key:        key,
			Layer:      measure.LayerVisible,
			Candidates: r.mr.KeysForComponent(key),
		})
	}
	candidates, err := r.vr.FindByPredicate(pred)
	if err != nil {
		return r.notFound(res, err)
	}
	if len(candidates) == 0 {
		return r.notFound(res, &measure.EntryNotFoundError{
			Key:        key,
			Layer:      measure.LayerVisible,
			Candidates: r.mr.KeysForComponent(key),
		})
	}

	chosen := candidates[0]
	res.Status = StatusCompared
	res.Column, res.Entry = chosen.Column, chosen.Entry
	if len(candidates) > 1 {
		descs := make([]string, len(candidates))
		for i, c := range candidates {
			descs[i] = c.String()
		}
		ambiguous := &measure.AmbiguousMatchError{Key: key, Candidates: descs}
		res.Status = StatusAmbiguous
		res.Candidates = descs
		res.Err = ambiguous
		res.Error = ambiguous.Error()
		r.report.warn(WarnAmbiguousMatch, key.String(), ambiguous.Error()+"; reporting against the first")
		log.Warn("Ambiguous structural match.", zap.Int("candidates", len(candidates)))
	}

	r.checkGeometry(key, measure.LayerMeasurement, measuredEl)
	r.checkGeometry(key, measure.LayerVisible, chosen.Element)

	measured := r.extractor.ExtractLogical(measuredEl, measure.IdentityScale())
	rendered := r.extractor.ExtractLogical(chosen.Element, r.scale)
	d := measure.Compare(measured, rendered, r.c.opts.AccuracyTolerance)
	res.Discrepancy = &d

	if len(tagged) > 1 {
		res = r.duplicateKey(res, tagged, rendered)
	}

	if _, seen := r.measured[chosen.Element]; !seen {
		r.measured[chosen.Element] = measured.TotalHeight
	}
	log.Debug("Compared component.",
		zap.Float64("measured", measured.TotalHeight),
		zap.Float64("rendered", rendered.TotalHeight),
		zap.Float64("delta", d.Delta),
		zap.String("accuracy", string(d.Accuracy)),
		zap.String("dominant", string(d.Dominant)))
	return res
}

// duplicateKey flags a key that tags several measurement nodes. The first node stays
// the one compared; every node is listed with its own comparison against rendered.
func (r *runner) duplicateKey(res ComponentResult, tagged []dom.Element, rendered measure.HeightBreakdown) ComponentResult {
	descs := make([]string, len(tagged))
	for i, el := range tagged {
		b := r.extractor.ExtractLogical(el, measure.IdentityScale())
		d := measure.Compare(b, rendered, r.c.opts.AccuracyTolerance)
		descs[i] = fmt.Sprintf("measurement node %d (%s): %.2f px, delta %+.2f, %s",
			i, dom.Describe(el), b.TotalHeight, d.Delta, d.Accuracy)
	}
	dup := &measure.AmbiguousMatchError{Key: res.Key, Layer: measure.LayerMeasurement, Candidates: descs}

	res.Status = StatusAmbiguous
	res.Candidates = append(res.Candidates, descs...)
	if res.Err != nil {
		res.Err = errors.Join(res.Err, dup)
	} else {
		res.Err = dup
	}
	res.Error = res.Err.Error()
	r.report.warn(WarnDuplicateKey, res.Key.String(), dup.Error()+"; reporting against the first")
	r.logger.Warn("Measurement key tags more than one node.", zap.Stringer("key", res.Key), zap.Int("nodes", len(tagged)))
	return res
}

// checkGeometry warns when a compared element carries no box at all, which usually
// means the snapshot was taken without stamped geometry.
func (r *runner) checkGeometry(key measure.MeasurementKey, layer string, el dom.Element) {
	if !el.Box().IsZero() {
		return
	}
	r.report.warn(WarnMissingGeometry, key.String(),
		fmt.Sprintf("%s layer node %s has no geometry; its heights read as 0", layer, dom.Describe(el)))
}

func (r *runner) notFound(res ComponentResult, err error) ComponentResult {
	res.Status = StatusNotFound
	res.Err = err
	res.Error = err.Error()
	var nf *measure.EntryNotFoundError
	if errors.As(err, &nf) {
		for _, k := range nf.Candidates {
			res.Candidates = append(res.Candidates, k.String())
		}
	}
	r.report.warn(WarnEntryNotFound, res.Key.String(), err.Error())
	r.logger.Warn("Component not located.", zap.Stringer("key", res.Key), zap.Error(err))
	return res
}

// checkColumns stacks each column's entries in logical pixels and checks the stack
// against the column's content box.
func (r *runner) checkColumns() {
	columns := r.vr.Columns()
	if len(columns) == 0 {
		r.report.warn(WarnNoColumns, "", fmt.Sprintf("no columns matched %q; overrun checks skipped", r.c.opts.ColumnSelector))
		return
	}
	for i, col := range columns {
		entries := r.vr.Entries(col)
		heights := make([]float64, len(entries))
		sources := make([]string, len(entries))
		for j, entry := range entries {
			heights[j], sources[j] = r.scale.ToLogical(entry.Box().Height), string(ColumnHeightRendered)
			if r.c.opts.ColumnHeightSource == ColumnHeightMeasured {
				if h, ok := r.measured[entry]; ok {
					heights[j], sources[j] = h, string(ColumnHeightMeasured)
				}
			}
		}

		content := col.Box().ContractedBy(col.Padding())
		height := r.scale.ToLogical(content.Height)
		report := measure.CheckColumn(height, heights, r.c.opts.EntrySpacing, r.c.opts.OverrunEpsilon)
		report.ColumnIndex = i
		for j := range report.Entries {
			report.Entries[j].Source = sources[j]
		}
		if report.HasOverrun {
			r.logger.Warn("Column overrun detected.",
				zap.Int("column", i),
				zap.Float64("overrun", report.Overrun),
				zap.Int("first_overflow", report.FirstOverflow))
		}
		r.report.Columns = append(r.report.Columns, report)
	}
}

// isNil catches typed nil pointers stored in a non-nil interface.
func isNil(el dom.Element) bool {
	if el == nil {
		return true
	}
	v := reflect.ValueOf(el)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
