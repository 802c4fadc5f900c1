package sketch

import (
	"sort"

	"github.com/pkg/errors"

	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/hash"
	"SketchSpectra/pkg/util"
)

// CountSketch keeps depth x width signed counters. The first depth hashes
// pick the column, the last depth hashes pick the sign; queries return the
// absolute value of the median estimate.
type CountSketch struct {
	Base
	depth   int
	width   int
	hashes  []hash.Hasher // 2*depth: columns first, then signs
	counter [][]int64
}

// NewCountSketch builds a Count-Sketch of the given depth and width.
func NewCountSketch(depth, width int) (*CountSketch, error) {
	if depth <= 0 || width <= 0 {
		return nil, errors.Wrapf(ErrBadArgument, "count-sketch of depth %d, width %d", depth, width)
	}
	c := &CountSketch{
		depth:  depth,
		width:  util.NextPrime(width),
		hashes: make([]hash.Hasher, 2*depth),
	}
	for i := range c.hashes {
		c.hashes[i] = hash.NewAware()
	}
	c.counter = make([][]int64, depth)
	backing := make([]int64, depth*c.width)
	for i := range c.counter {
		c.counter[i] = backing[i*c.width : (i+1)*c.width]
	}
	return c, nil
}

// sign maps the low bit of the sign hash to -1 or +1.
func (c *CountSketch) sign(row int, k flowkey.Key) int64 {
	return int64(c.hashes[c.depth+row].Hash(k)&1)*2 - 1
}

// Update adds the signed val to one counter per row.
func (c *CountSketch) Update(k flowkey.Key, val int64) {
	for i := 0; i < c.depth; i++ {
		idx := c.hashes[i].Hash(k) % uint64(c.width)
		c.counter[i][idx] += val * c.sign(i, k)
	}
}

// Query returns the absolute value of the median of the per-row signed
// estimates; an even depth takes the mean of the two middle values.
func (c *CountSketch) Query(k flowkey.Key) int64 {
	values := make([]int64, c.depth)
	for i := 0; i < c.depth; i++ {
		idx := c.hashes[i].Hash(k) % uint64(c.width)
		values[i] = c.counter[i][idx] * c.sign(i, k)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	var med int64
	if c.depth%2 == 0 {
		med = (values[c.depth/2-1] + values[c.depth/2]) / 2
	} else {
		med = values[c.depth/2]
	}
	if med < 0 {
		med = -med
	}
	return med
}

// Size reports the counter array plus the two hash vectors.
func (c *CountSketch) Size() int {
	return c.depth*c.width*8 + 2*c.depth*hash.SizeOf
}

// Clear resets the counters.
func (c *CountSketch) Clear() {
	for i := range c.counter {
		for j := range c.counter[i] {
			c.counter[i][j] = 0
		}
	}
}
