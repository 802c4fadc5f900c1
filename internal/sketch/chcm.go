package sketch

import (
	"math"

	"github.com/pkg/errors"

	"SketchSpectra/internal/hierarchy"
	"SketchSpectra/internal/pkg/logger"
	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/hash"
	"SketchSpectra/pkg/util"
)

// CHCMSketch is a Count-Min whose counter array lives in a counter
// hierarchy: row i, column j maps to the serialized index i*width + j on
// layer 0, and each further layer holds next_prime(ceil(m * ratio))
// counters.
type CHCMSketch struct {
	Base
	depth  int
	width  int
	hashes []hash.Hasher
	ch     *hierarchy.Hierarchy
}

// NewCHCMSketch builds a CH-backed Count-Min. cntNoRatio is the counter
// count ratio of adjacent layers and must be in (0, 1); widthCnt and noHash
// describe the hierarchy layers as in the hierarchy package.
func NewCHCMSketch(depth, width int, cntNoRatio float64, widthCnt, noHash []int) (*CHCMSketch, error) {
	if depth <= 0 || width <= 0 {
		return nil, errors.Wrapf(ErrBadArgument, "count-min of depth %d, width %d", depth, width)
	}
	if cntNoRatio <= 0 || cntNoRatio >= 1 {
		return nil, errors.Wrapf(ErrBadArgument,
			"ratio of counters of adjacent layers should be in (0, 1), got %g", cntNoRatio)
	}
	c := &CHCMSketch{
		depth:  depth,
		width:  util.NextPrime(width),
		hashes: make([]hash.Hasher, depth),
	}
	for i := range c.hashes {
		c.hashes[i] = hash.NewAware()
	}

	noCnt := make([]int, len(widthCnt))
	if len(noCnt) > 0 {
		noCnt[0] = c.depth * c.width
	}
	for i := 1; i < len(noCnt); i++ {
		noCnt[i] = util.NextPrime(int(math.Ceil(float64(noCnt[i-1]) * cntNoRatio)))
	}
	ch, err := hierarchy.New(noCnt, widthCnt, noHash)
	if err != nil {
		return nil, err
	}
	c.ch = ch
	return c, nil
}

// Update adds val to one hierarchy counter per row.
func (c *CHCMSketch) Update(k flowkey.Key, val int64) {
	for i, fn := range c.hashes {
		idx := i*c.width + int(fn.Hash(k)%uint64(c.width))
		c.ch.Update(idx, val)
	}
}

// Query returns the minimum of the decoded counters across the rows. A
// decoding failure aborts the read: it is logged and the estimate degrades
// to zero.
func (c *CHCMSketch) Query(k flowkey.Key) int64 {
	min := int64(math.MaxInt64)
	for i, fn := range c.hashes {
		idx := i*c.width + int(fn.Hash(k)%uint64(c.width))
		v, err := c.ch.Count(idx)
		if err != nil {
			logger.Errorf("CH-backed count-min read failed: %v", err)
			return 0
		}
		if v < min {
			min = v
		}
	}
	return min
}

// Size reports the hierarchy plus the row hash vector.
func (c *CHCMSketch) Size() int {
	return c.ch.Size() + c.depth*hash.SizeOf
}

// CompressionRatio relates the hierarchy footprint to the plain counter
// array it replaces.
func (c *CHCMSketch) CompressionRatio() float64 {
	return float64(c.ch.Size()) / float64(c.ch.OriginalSize())
}

// Clear resets the hierarchy.
func (c *CHCMSketch) Clear() {
	c.ch.Clear()
}
