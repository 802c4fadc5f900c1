// Package data holds the exact per-flow containers that sketches are scored
// against: the ground truth (a value-sorted bidirectional map) and the
// estimation that sketches return from heavy-hitter, heavy-changer and
// decode queries.
package data

import (
	"sort"

	"github.com/pkg/errors"

	"SketchSpectra/internal/pkg/logger"
	"SketchSpectra/internal/trace"
	"SketchSpectra/pkg/flowkey"
)

// HXMethod selects the defining rule of heavy hitters and heavy changers.
type HXMethod int

const (
	// TopK keeps the heaviest floor(threshold) flows.
	TopK HXMethod = iota
	// Percentile keeps flows strictly above threshold * total.
	Percentile
)

// ParseHXMethod maps the configuration spelling to an HXMethod. Unknown
// spellings default to TopK.
func ParseHXMethod(s string) HXMethod {
	if s == "Percentile" {
		return Percentile
	}
	return TopK
}

var (
	// ErrKeyNotFound reports a lookup for an absent flow key.
	ErrKeyNotFound = errors.New("data: flowkey not found")
	// ErrBadThreshold reports a threshold outside its policy's legal range.
	ErrBadThreshold = errors.New("data: threshold out of range")
)

// Entry pairs a flow key with its counter.
type Entry struct {
	Key   flowkey.Key
	Value int64
}

// GndTruth is a bidirectional mapping between flow keys and counters. After
// construction the right view (Entries) is sorted by value in descending
// order; the left view answers key lookups in O(1). Each instance may be
// constructed at most once: repeat calls are no-ops with a warning.
type GndTruth struct {
	entries []Entry
	index   map[string]int
	total   int64
	called  int
}

// NewGndTruth returns an empty instance.
func NewGndTruth() *GndTruth {
	return &GndTruth{index: make(map[string]int)}
}

// checkOnce bumps the call counter and reports whether the construction may
// proceed.
func (g *GndTruth) checkOnce() bool {
	g.called++
	if g.called > 1 {
		logger.Warningf("Ground truth is constructed for the %d-th time. The instance is left unmodified.", g.called)
		return false
	}
	return true
}

// Empty reports whether the instance holds no flows.
func (g *GndTruth) Empty() bool { return len(g.entries) == 0 }

// Size returns the number of flows.
func (g *GndTruth) Size() int { return len(g.entries) }

// Min returns the smallest value. Calling it on an empty instance panics.
func (g *GndTruth) Min() int64 { return g.entries[len(g.entries)-1].Value }

// Max returns the largest value. Calling it on an empty instance panics.
func (g *GndTruth) Max() int64 { return g.entries[0].Value }

// TotalValue returns the sum of all counters.
func (g *GndTruth) TotalValue() int64 { return g.total }

// Entries returns the right view: flows in descending value order.
func (g *GndTruth) Entries() []Entry { return g.entries }

// Count reports whether a flow key is present, as 0 or 1.
func (g *GndTruth) Count(k flowkey.Key) int {
	if _, ok := g.index[string(k)]; ok {
		return 1
	}
	return 0
}

// At returns the value of a flow key.
func (g *GndTruth) At(k flowkey.Key) (int64, error) {
	i, ok := g.index[string(k)]
	if !ok {
		return 0, errors.Wrapf(ErrKeyNotFound, "key %s", k)
	}
	return g.entries[i].Value, nil
}

// EqualRange returns all flows sharing the given value, as a window of the
// sorted right view. The search is logarithmic.
func (g *GndTruth) EqualRange(value int64) []Entry {
	lo := sort.Search(len(g.entries), func(i int) bool { return g.entries[i].Value <= value })
	hi := sort.Search(len(g.entries), func(i int) bool { return g.entries[i].Value < value })
	return g.entries[lo:hi]
}

// Swap exchanges the content of two instances, calling histories included.
func (g *GndTruth) Swap(o *GndTruth) {
	g.entries, o.entries = o.entries, g.entries
	g.index, o.index = o.index, g.index
	g.total, o.total = o.total, g.total
	g.called, o.called = o.called, g.called
}

// sortDesc re-sorts the right view in descending value order and rebuilds
// the left view.
func (g *GndTruth) sortDesc() {
	sort.SliceStable(g.entries, func(i, j int) bool { return g.entries[i].Value > g.entries[j].Value })
	g.rebuildIndex()
}

func (g *GndTruth) rebuildIndex() {
	g.index = make(map[string]int, len(g.entries))
	for i := range g.entries {
		g.index[string(g.entries[i].Key)] = i
	}
}

// add accumulates v onto k, creating the flow on first sight.
func (g *GndTruth) add(k flowkey.Key, v int64) {
	if i, ok := g.index[string(k)]; ok {
		g.entries[i].Value += v
	} else {
		g.index[string(k)] = len(g.entries)
		g.entries = append(g.entries, Entry{Key: k.Clone(), Value: v})
	}
}

// BuildFromRecords aggregates a record range into the flow summary. Under
// InLength, records whose length lies outside (0, 1500] are reported once
// with a warning but still counted.
func (g *GndTruth) BuildFromRecords(recs []trace.Record, method trace.CntMethod) {
	if !g.checkOnce() {
		return
	}
	g.buildLocked(recs, method)
	g.sortDesc()
}

func (g *GndTruth) buildLocked(recs []trace.Record, method trace.CntMethod) {
	spurious := false
	for i := range recs {
		r := &recs[i]
		if method == trace.InLength && (r.Length <= 0 || r.Length > 1500) {
			spurious = true
		}
		v := r.Count(method)
		g.add(r.Key, v)
		g.total += v
	}
	if spurious {
		logger.Warningf("There are some flows with spurious length. Please check the raw data.")
	}
}

// truncate keeps the heavy prefix of the sorted right view according to the
// policy, recomputing the total from the kept flows. save is the total of
// the summary the policy is applied over.
func (g *GndTruth) truncate(threshold float64, method HXMethod, save int64) error {
	switch method {
	case TopK:
		if threshold < 1 {
			return errors.Wrapf(ErrBadThreshold, "Top-K wants >= 1, got %g", threshold)
		}
		n := int(threshold)
		if n > len(g.entries) {
			n = len(g.entries)
		}
		g.entries = g.entries[:n]
	case Percentile:
		if threshold < 0 || threshold > 1 {
			return errors.Wrapf(ErrBadThreshold, "Percentile wants [0,1], got %g", threshold)
		}
		// Integer comparison against the floor of threshold*save keeps
		// exactly the flows strictly above the real-valued cut.
		cut := int64(threshold * float64(save))
		hi := sort.Search(len(g.entries), func(i int) bool { return g.entries[i].Value <= cut })
		g.entries = g.entries[:hi]
	}
	g.total = 0
	for i := range g.entries {
		g.total += g.entries[i].Value
	}
	g.rebuildIndex()
	return nil
}

// HeavyHitter extracts heavy hitters from a flow summary, copying the kept
// flows.
func (g *GndTruth) HeavyHitter(summary *GndTruth, threshold float64, method HXMethod) error {
	if !g.checkOnce() {
		return nil
	}
	g.entries = make([]Entry, len(summary.entries))
	for i := range summary.entries {
		g.entries[i] = Entry{Key: summary.entries[i].Key.Clone(), Value: summary.entries[i].Value}
	}
	return g.truncate(threshold, method, summary.total)
}

// HeavyHitterMove is the moving variant of HeavyHitter: it takes the
// summary's storage instead of copying it, leaving the summary empty.
func (g *GndTruth) HeavyHitterMove(summary *GndTruth, threshold float64, method HXMethod) error {
	if !g.checkOnce() {
		return nil
	}
	save := summary.total
	g.entries, summary.entries = summary.entries, nil
	summary.index = make(map[string]int)
	summary.total = 0
	return g.truncate(threshold, method, save)
}

// HeavyHitterFromRecords builds the flow summary and extracts heavy hitters
// in one pass over a record range.
func (g *GndTruth) HeavyHitterFromRecords(recs []trace.Record, method trace.CntMethod,
	threshold float64, hx HXMethod) error {
	if !g.checkOnce() {
		return nil
	}
	g.buildLocked(recs, method)
	g.sortDesc()
	return g.truncate(threshold, hx, g.total)
}

// diffAbs folds |self - other| per key into g, missing keys contributing 0
// on their side, and re-sorts.
func (g *GndTruth) diffAbs(other *GndTruth) {
	for i := range other.entries {
		e := &other.entries[i]
		if j, ok := g.index[string(e.Key)]; ok {
			d := g.entries[j].Value - e.Value
			if d < 0 {
				d = -d
			}
			g.total += d - g.entries[j].Value
			g.entries[j].Value = d
		} else {
			g.add(e.Key, e.Value)
			g.total += e.Value
		}
	}
	g.sortDesc()
}

// HeavyChanger extracts flows whose counters differ most between two flow
// summaries, copying from the first.
func (g *GndTruth) HeavyChanger(s1, s2 *GndTruth, threshold float64, method HXMethod) error {
	if !g.checkOnce() {
		return nil
	}
	g.entries = make([]Entry, len(s1.entries))
	for i := range s1.entries {
		g.entries[i] = Entry{Key: s1.entries[i].Key.Clone(), Value: s1.entries[i].Value}
	}
	g.rebuildIndex()
	g.total = s1.total
	g.diffAbs(s2)
	return g.truncate(threshold, method, g.total)
}

// HeavyChangerMove is the moving variant of HeavyChanger; the first summary
// is left empty.
func (g *GndTruth) HeavyChangerMove(s1, s2 *GndTruth, threshold float64, method HXMethod) error {
	if !g.checkOnce() {
		return nil
	}
	g.entries, s1.entries = s1.entries, nil
	g.index, s1.index = s1.index, make(map[string]int)
	g.total, s1.total = s1.total, 0
	g.diffAbs(s2)
	return g.truncate(threshold, method, g.total)
}

// HeavyChangerFromRecords computes the difference of two record ranges
// streaming, then extracts the heavy changers.
func (g *GndTruth) HeavyChangerFromRecords(recs1, recs2 []trace.Record, method trace.CntMethod,
	threshold float64, hx HXMethod) error {
	if !g.checkOnce() {
		return nil
	}
	g.buildLocked(recs1, method)

	spurious := false
	for i := range recs2 {
		r := &recs2[i]
		if method == trace.InLength && (r.Length <= 0 || r.Length > 1500) {
			spurious = true
		}
		v := r.Count(method)
		g.add(r.Key, -v)
		g.total -= v
	}
	// Flip the negatives at the very end.
	for i := range g.entries {
		if g.entries[i].Value < 0 {
			g.entries[i].Value = -g.entries[i].Value
			g.total += 2 * g.entries[i].Value
		}
	}
	if spurious {
		logger.Warningf("There are some flows with spurious length. Please check the raw data.")
	}
	g.sortDesc()
	return g.truncate(threshold, hx, g.total)
}
