package measure

import (
	"math"
	"sort"
	"time"

	"SketchSpectra/internal/config"
	"SketchSpectra/internal/data"
	"SketchSpectra/internal/sketch"
	"SketchSpectra/internal/trace"
)

// PODFValue couples the PODF tolerance with the fraction of flows within
// it.
type PODFValue struct {
	Threshold float64 `json:"threshold"`
	Fraction  float64 `json:"fraction"`
}

// DistValue is the empirical CDF of the relative error over the requested
// quantiles.
type DistValue struct {
	Quantiles []float64 `json:"quantiles"`
	Fractions []float64 `json:"fractions"`
}

// Result maps requested metrics of one operation family to their values.
type Result map[Metric]interface{}

// Report is everything one measurement run produced for one sketch.
type Report struct {
	Sketch string            `json:"sketch"`
	Ops    map[string]Result `json:"ops"`
}

// Bench drives one sketch through its configured tests. Each TestXXX
// method reads its own metric list from the test node, times every
// individual operation with the monotonic clock and stores the requested
// aggregates.
type Bench struct {
	showName string
	tests    *config.TestNode
	report   *Report
}

// NewBench builds a bench for a sketch with the given display name.
func NewBench(showName string, tests *config.TestNode) *Bench {
	return &Bench{
		showName: showName,
		tests:    tests,
		report:   &Report{Sketch: showName, Ops: make(map[string]Result)},
	}
}

// Report returns the accumulated results.
func (b *Bench) Report() *Report { return b.report }

func (b *Bench) result(op string) Result {
	r, ok := b.report.Ops[op]
	if !ok {
		r = make(Result)
		b.report.Ops[op] = r
	}
	return r
}

// TestSize records the sketch footprint, and the compression ratio when the
// sketch can report one.
func (b *Bench) TestSize(s sketch.Sketch) error {
	vec, err := ParseMetricVec(b.tests, "size")
	if err != nil {
		return err
	}
	res := b.result("size")
	res[SIZE] = s.Size()
	if vec.Has(RATIO) {
		if r, ok := s.(sketch.Ratioed); ok {
			res[RATIO] = r.CompressionRatio()
		}
	}
	return nil
}

// TestInsert inserts the records in order, timing each insertion.
func (b *Bench) TestInsert(s sketch.Sketch, recs []trace.Record) error {
	vec, err := ParseMetricVec(b.tests, "insert")
	if err != nil {
		return err
	}
	var elapsed time.Duration
	for i := range recs {
		tick := time.Now()
		s.Insert(recs[i].Key)
		elapsed += time.Since(tick)
	}
	if vec.Has(RATE) {
		b.result("insert")[RATE] = rate(len(recs), elapsed)
	}
	if vec.Has(TIME) {
		b.result("insert")[TIME] = elapsed.Microseconds()
	}
	return nil
}

// TestUpdate updates the records in order under the counting method.
func (b *Bench) TestUpdate(s sketch.Sketch, recs []trace.Record, method trace.CntMethod) error {
	vec, err := ParseMetricVec(b.tests, "update")
	if err != nil {
		return err
	}
	var elapsed time.Duration
	for i := range recs {
		v := recs[i].Count(method)
		tick := time.Now()
		s.Update(recs[i].Key, v)
		elapsed += time.Since(tick)
	}
	if vec.Has(RATE) {
		b.result("update")[RATE] = rate(len(recs), elapsed)
	}
	if vec.Has(TIME) {
		b.result("update")[TIME] = elapsed.Microseconds()
	}
	return nil
}

// TestQuery queries every flow of the ground truth and scores the
// estimates.
func (b *Bench) TestQuery(s sketch.Sketch, truth *data.GndTruth) error {
	vec, err := ParseMetricVec(b.tests, "query")
	if err != nil {
		return err
	}
	var (
		elapsed                  time.Duration
		are, aae, correct, indef float64
		dist                     = make([]float64, len(vec.quantiles))
	)
	for _, e := range truth.Entries() {
		tick := time.Now()
		est := s.Query(e.Key)
		elapsed += time.Since(tick)

		re := math.Abs(float64(e.Value-est)) / float64(e.Value)
		if re <= vec.podf {
			indef++
		}
		are += re
		aae += math.Abs(float64(e.Value - est))
		if e.Value == est {
			correct++
		}
		if vec.Has(DIST) {
			i := sort.SearchFloat64s(vec.quantiles, re)
			dist[i]++
		}
	}

	n := float64(truth.Size())
	res := b.result("query")
	if vec.Has(RATE) {
		res[RATE] = rate(truth.Size(), elapsed)
	}
	if vec.Has(TIME) {
		res[TIME] = elapsed.Microseconds()
	}
	if vec.Has(ARE) {
		res[ARE] = are / n
	}
	if vec.Has(AAE) {
		res[AAE] = aae / n
	}
	if vec.Has(ACC) {
		res[ACC] = correct / n
	}
	if vec.Has(PODF) {
		res[PODF] = PODFValue{Threshold: vec.podf, Fraction: indef / n}
	}
	if vec.Has(DIST) {
		for i := range dist {
			dist[i] /= n
		}
		res[DIST] = DistValue{Quantiles: vec.quantiles, Fractions: dist}
	}
	return nil
}

// TestLookup probes every flow of the ground truth; a flow counts as
// positive when it belongs to the inserted sample.
func (b *Bench) TestLookup(s sketch.Sketch, truth, sample *data.GndTruth) error {
	vec, err := ParseMetricVec(b.tests, "lookup")
	if err != nil {
		return err
	}
	var (
		elapsed                time.Duration
		tp, fp, tn, fn float64
	)
	for _, e := range truth.Entries() {
		tick := time.Now()
		existed := s.Lookup(e.Key)
		elapsed += time.Since(tick)

		inSample := sample.Count(e.Key) > 0
		switch {
		case existed && inSample:
			tp++
		case existed && !inSample:
			fp++
		case !existed && inSample:
			fn++
		default:
			tn++
		}
	}

	n := float64(truth.Size())
	res := b.result("lookup")
	if vec.Has(RATE) {
		res[RATE] = rate(truth.Size(), elapsed)
	}
	if vec.Has(TIME) {
		res[TIME] = elapsed.Microseconds()
	}
	setConfusion(res, vec, tp, fp, tn, fn, n)
	return nil
}

// TestHeavyHitter extracts heavy hitters at the absolute threshold and
// scores them against the ground-truth heavy hitters.
func (b *Bench) TestHeavyHitter(s sketch.Sketch, threshold float64, truthHH *data.GndTruth) error {
	vec, err := ParseMetricVec(b.tests, "heavyhitter")
	if err != nil {
		return err
	}
	tick := time.Now()
	detected := s.HeavyHitters(threshold)
	elapsed := time.Since(tick)

	b.scoreEstimation("heavyhitter", vec, detected, truthHH, elapsed)
	return nil
}

// TestHeavyChanger extracts heavy changers between two sketches and scores
// them against the ground-truth heavy changers.
func (b *Bench) TestHeavyChanger(s1, s2 sketch.Sketch, threshold float64, truthHC *data.GndTruth) error {
	vec, err := ParseMetricVec(b.tests, "heavychanger")
	if err != nil {
		return err
	}
	tick := time.Now()
	detected := s1.HeavyChangers(s2, threshold)
	elapsed := time.Since(tick)

	b.scoreEstimation("heavychanger", vec, detected, truthHC, elapsed)
	return nil
}

// TestDecode decodes the whole sketch and scores the flow set against the
// full ground truth.
func (b *Bench) TestDecode(s sketch.Sketch, truth *data.GndTruth) error {
	vec, err := ParseMetricVec(b.tests, "decode")
	if err != nil {
		return err
	}
	tick := time.Now()
	decoded := s.Decode()
	elapsed := time.Since(tick)

	b.scoreEstimation("decode", vec, decoded, truth, elapsed)

	// Exactness of the decoded counters, over the whole ground truth.
	if vec.Has(ACC) {
		exact := 0
		for _, e := range truth.Entries() {
			if v, err := decoded.At(e.Key); err == nil && v == e.Value {
				exact++
			}
		}
		b.result("decode")[ACC] = float64(exact) / float64(truth.Size())
	}
	return nil
}

// scoreEstimation computes the detection metrics of an estimation against
// its ground truth.
func (b *Bench) scoreEstimation(op string, vec *MetricVec, detected *data.Estimation,
	truth *data.GndTruth, elapsed time.Duration) {
	var tp, fn, are float64
	for _, e := range truth.Entries() {
		if v, err := detected.At(e.Key); err == nil {
			tp++
			are += math.Abs(float64(v-e.Value)) / float64(e.Value)
		} else {
			fn++
		}
	}
	fp := float64(detected.Size()) - tp

	res := b.result(op)
	if vec.Has(TIME) {
		res[TIME] = elapsed.Microseconds()
	}
	if vec.Has(RATE) {
		res[RATE] = rate(truth.Size(), elapsed)
	}
	if vec.Has(ARE) {
		res[ARE] = are / tp
	}
	if vec.Has(TP) {
		res[TP] = tp / float64(truth.Size())
	}
	if vec.Has(FP) {
		res[FP] = fp / float64(truth.Size())
	}
	if vec.Has(FN) {
		res[FN] = fn / float64(truth.Size())
	}
	precision := tp / (tp + fp)
	recall := tp / (tp + fn)
	if vec.Has(PRC) {
		res[PRC] = precision
	}
	if vec.Has(RCL) {
		res[RCL] = recall
	}
	if vec.Has(F1) {
		res[F1] = 2 * precision * recall / (precision + recall)
	}
}

func setConfusion(res Result, vec *MetricVec, tp, fp, tn, fn, n float64) {
	if vec.Has(TP) {
		res[TP] = tp / n
	}
	if vec.Has(FP) {
		res[FP] = fp / n
	}
	if vec.Has(TN) {
		res[TN] = tn / n
	}
	if vec.Has(FN) {
		res[FN] = fn / n
	}
	precision := tp / (tp + fp)
	recall := tp / (tp + fn)
	if vec.Has(PRC) {
		res[PRC] = precision
	}
	if vec.Has(RCL) {
		res[RCL] = recall
	}
	if vec.Has(F1) {
		res[F1] = 2 * precision * recall / (precision + recall)
	}
}

// rate converts a count and a duration into operations per second.
func rate(n int, elapsed time.Duration) float64 {
	us := elapsed.Microseconds()
	if us == 0 {
		us = 1
	}
	return float64(n) / float64(us) * 1e6
}
