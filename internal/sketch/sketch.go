// Package sketch implements the shared sketch contract and the concrete
// sketches: Bloom filter, counting Bloom filter, Count-Min (plain and
// CH-backed), Count-Sketch, Hash-Pipe and Flow-Radar.
package sketch

import (
	"github.com/pkg/errors"

	"SketchSpectra/internal/data"
	"SketchSpectra/internal/pkg/logger"
	"SketchSpectra/pkg/flowkey"
)

// ErrBadArgument reports an illegal sketch parameter.
var ErrBadArgument = errors.New("sketch: bad argument")

// Sketch is the polymorphic contract every sketch exposes. Operations are
// optional: a sketch that does not support one inherits the Base behaviour,
// which reports an error once and returns defaults.
type Sketch interface {
	// Size reports the steady-state footprint in bytes, vectors and
	// hashes included.
	Size() int
	// Insert records set membership of a flow key.
	Insert(k flowkey.Key)
	// Update adds val to the flow's counter.
	Update(k flowkey.Key, val int64)
	// Query estimates the flow's volume.
	Query(k flowkey.Key) int64
	// Lookup tests set membership.
	Lookup(k flowkey.Key) bool
	// HeavyHitters returns flows with estimated volume >= threshold.
	HeavyHitters(threshold float64) *data.Estimation
	// HeavyChangers returns flows whose volume differs from the other
	// sketch's by at least threshold.
	HeavyChangers(other Sketch, threshold float64) *data.Estimation
	// Decode enumerates every flow with its volume. Only reversible
	// sketches support it.
	Decode() *data.Estimation
}

// Ratioed is implemented by CH-backed sketches that can report how much the
// hierarchy compresses the plain counter array.
type Ratioed interface {
	CompressionRatio() float64
}

// Base provides the defaults for unimplemented operations. Each first
// misuse is logged once.
type Base struct {
	warned [8]bool
}

func (b *Base) complain(op int, name string) {
	if !b.warned[op] {
		logger.Errorf("Erroneously called the default %s.", name)
		b.warned[op] = true
	}
}

const (
	opSize = iota
	opInsert
	opUpdate
	opQuery
	opLookup
	opHeavyHitters
	opHeavyChangers
	opDecode
)

func (b *Base) Size() int {
	b.complain(opSize, "Size()")
	return 0
}

func (b *Base) Insert(flowkey.Key) {
	b.complain(opInsert, "Insert(key)")
}

func (b *Base) Update(flowkey.Key, int64) {
	b.complain(opUpdate, "Update(key, val)")
}

func (b *Base) Query(flowkey.Key) int64 {
	b.complain(opQuery, "Query(key)")
	return 0
}

func (b *Base) Lookup(flowkey.Key) bool {
	b.complain(opLookup, "Lookup(key)")
	return false
}

func (b *Base) HeavyHitters(float64) *data.Estimation {
	b.complain(opHeavyHitters, "HeavyHitters(threshold)")
	return data.NewEstimation()
}

func (b *Base) HeavyChangers(Sketch, float64) *data.Estimation {
	b.complain(opHeavyChangers, "HeavyChangers(other, threshold)")
	return data.NewEstimation()
}

func (b *Base) Decode() *data.Estimation {
	b.complain(opDecode, "Decode()")
	return data.NewEstimation()
}
