package data

import (
	"github.com/pkg/errors"

	"SketchSpectra/pkg/flowkey"
)

// Estimation is the container sketches report heavy hitters, heavy changers
// and decoded flows in. It shares the bidirectional shape of GndTruth but
// keeps no sorted-order invariant.
type Estimation struct {
	entries []Entry
	index   map[string]int
}

// NewEstimation returns an empty estimation.
func NewEstimation() *Estimation {
	return &Estimation{index: make(map[string]int)}
}

// Size returns the number of flows.
func (e *Estimation) Size() int { return len(e.entries) }

// Entries returns the flows in insertion order.
func (e *Estimation) Entries() []Entry { return e.entries }

// Count reports whether a flow key is present, as 0 or 1.
func (e *Estimation) Count(k flowkey.Key) int {
	if _, ok := e.index[string(k)]; ok {
		return 1
	}
	return 0
}

// At returns the value of a flow key.
func (e *Estimation) At(k flowkey.Key) (int64, error) {
	i, ok := e.index[string(k)]
	if !ok {
		return 0, errors.Wrapf(ErrKeyNotFound, "key %s", k)
	}
	return e.entries[i].Value, nil
}

// Insert records a flow with a zero counter. It reports whether the flow
// was new.
func (e *Estimation) Insert(k flowkey.Key) bool {
	if _, ok := e.index[string(k)]; ok {
		return false
	}
	e.index[string(k)] = len(e.entries)
	e.entries = append(e.entries, Entry{Key: k.Clone()})
	return true
}

// Add accumulates v onto a flow, creating it at zero first. It reports
// whether the flow was new.
func (e *Estimation) Add(k flowkey.Key, v int64) bool {
	if i, ok := e.index[string(k)]; ok {
		e.entries[i].Value += v
		return false
	}
	e.index[string(k)] = len(e.entries)
	e.entries = append(e.entries, Entry{Key: k.Clone(), Value: v})
	return true
}

// Put sets a flow's counter, creating the flow if needed.
func (e *Estimation) Put(k flowkey.Key, v int64) {
	if i, ok := e.index[string(k)]; ok {
		e.entries[i].Value = v
		return
	}
	e.index[string(k)] = len(e.entries)
	e.entries = append(e.entries, Entry{Key: k.Clone(), Value: v})
}
