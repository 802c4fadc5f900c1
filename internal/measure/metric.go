// Package measure drives sketches across record streams, timing every
// operation and scoring the answers against ground truth.
package measure

import (
	"math"
	"sort"

	"SketchSpectra/internal/config"
	"SketchSpectra/internal/pkg/logger"
)

// Metric names one aggregate statistic of a test.
type Metric string

const (
	SIZE  Metric = "SIZE"  // footprint in bytes
	TIME  Metric = "TIME"  // microseconds
	RATE  Metric = "RATE"  // packets per second
	ARE   Metric = "ARE"   // average relative error
	AAE   Metric = "AAE"   // average absolute error
	ACC   Metric = "ACC"   // fraction of exact answers
	TP    Metric = "TP"    // true positives
	FP    Metric = "FP"    // false positives
	TN    Metric = "TN"    // true negatives
	FN    Metric = "FN"    // false negatives
	PRC   Metric = "PRC"   // precision
	RCL   Metric = "RCL"   // recall
	F1    Metric = "F1"    // harmonic mean of precision and recall
	DIST  Metric = "DIST"  // empirical CDF of the relative error
	PODF  Metric = "PODF"  // portion of desired flows
	RATIO Metric = "RATIO" // compressed over original footprint
)

var knownMetrics = map[string]Metric{
	"SIZE": SIZE, "TIME": TIME, "RATE": RATE, "ARE": ARE, "AAE": AAE,
	"ACC": ACC, "TP": TP, "FP": FP, "TN": TN, "FN": FN, "PRC": PRC,
	"RCL": RCL, "F1": F1, "DIST": DIST, "PODF": PODF, "RATIO": RATIO,
}

// MetricVec is the set of metrics requested for one test term, along with
// the PODF threshold and the DIST quantiles where declared.
type MetricVec struct {
	set       map[Metric]bool
	podf      float64
	quantiles []float64
}

// ParseMetricVec reads the term's metric list from the test node. A PODF
// entry requires `<term>_podf = <threshold>` alongside; a DIST entry
// requires `<term>_dist = [quantiles...]`. The quantile vector is sorted,
// deduplicated and implicitly terminated by +Inf.
func ParseMetricVec(t *config.TestNode, term string) (*MetricVec, error) {
	v := &MetricVec{set: make(map[Metric]bool)}

	names, ok, err := t.StringList(term)
	if err != nil {
		return nil, err
	}
	if !ok {
		return v, nil
	}
	for _, name := range names {
		if m, known := knownMetrics[name]; known {
			v.set[m] = true
		}
	}

	if v.set[DIST] {
		quantiles, ok, err := t.FloatList(term + "_dist")
		if err != nil || !ok {
			logger.Errorf("Bad quantiles for distribution in test %s", term)
			delete(v.set, DIST)
		} else {
			sort.Float64s(quantiles)
			v.quantiles = quantiles[:0]
			for i, q := range quantiles {
				if i == 0 || q != v.quantiles[len(v.quantiles)-1] {
					v.quantiles = append(v.quantiles, q)
				}
			}
			if len(v.quantiles) == 0 || !math.IsInf(v.quantiles[len(v.quantiles)-1], 1) {
				v.quantiles = append(v.quantiles, math.Inf(1))
			}
		}
	}
	if v.set[PODF] {
		podf, ok, err := t.Float(term + "_podf")
		if err != nil || !ok {
			logger.Errorf("Bad threshold for PODF in test %s", term)
			delete(v.set, PODF)
		} else {
			v.podf = podf
		}
	}
	return v, nil
}

// Has reports whether a metric was requested.
func (v *MetricVec) Has(m Metric) bool { return v.set[m] }

// Empty reports whether no metric was requested.
func (v *MetricVec) Empty() bool { return len(v.set) == 0 }
