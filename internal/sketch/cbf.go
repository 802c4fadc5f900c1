package sketch

import (
	"github.com/pkg/errors"

	"SketchSpectra/internal/hierarchy"
	"SketchSpectra/internal/pkg/logger"
	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/hash"
	"SketchSpectra/pkg/util"
)

// CountingBloomFilter backs its counters with a single-layer counter
// hierarchy of a configurable width.
type CountingBloomFilter struct {
	Base
	ncnt   int
	nhash  int
	hashes []hash.Hasher
	cnt    *hierarchy.Hierarchy
}

// NewCountingBloomFilter builds a filter of numCnt counters (rounded to the
// next prime), numHash hash functions and cntLength-bit counters.
func NewCountingBloomFilter(numCnt, numHash, cntLength int) (*CountingBloomFilter, error) {
	if numCnt <= 0 || numHash <= 0 {
		return nil, errors.Wrapf(ErrBadArgument, "counting bloom filter with %d counters, %d hashes", numCnt, numHash)
	}
	c := &CountingBloomFilter{
		ncnt:   util.NextPrime(numCnt),
		nhash:  numHash,
		hashes: make([]hash.Hasher, numHash),
	}
	for i := range c.hashes {
		c.hashes[i] = hash.NewAware()
	}
	cnt, err := hierarchy.New([]int{c.ncnt}, []int{cntLength}, nil)
	if err != nil {
		return nil, err
	}
	c.cnt = cnt
	return c, nil
}

func (c *CountingBloomFilter) at(idx int) int64 {
	v, err := c.cnt.Count(idx)
	if err != nil {
		logger.Errorf("Counting bloom filter read failed: %v", err)
		return 0
	}
	return v
}

// Insert increments every hashed counter, but only when at least one of
// them is still zero — re-inserting a present key is a no-op.
func (c *CountingBloomFilter) Insert(k flowkey.Key) {
	i := 0
	for ; i < c.nhash; i++ {
		if c.at(int(c.hashes[i].Hash(k)%uint64(c.ncnt))) == 0 {
			break
		}
	}
	if i == c.nhash {
		return
	}
	for j := 0; j < c.nhash; j++ {
		c.cnt.Update(int(c.hashes[j].Hash(k)%uint64(c.ncnt)), 1)
	}
}

// Lookup reports true iff every hashed counter is non-zero.
func (c *CountingBloomFilter) Lookup(k flowkey.Key) bool {
	for _, fn := range c.hashes {
		if c.at(int(fn.Hash(k)%uint64(c.ncnt))) == 0 {
			return false
		}
	}
	return true
}

// Remove decrements every hashed counter, but only when all of them are
// non-zero.
func (c *CountingBloomFilter) Remove(k flowkey.Key) {
	for _, fn := range c.hashes {
		if c.at(int(fn.Hash(k)%uint64(c.ncnt))) == 0 {
			return
		}
	}
	for _, fn := range c.hashes {
		c.cnt.Update(int(fn.Hash(k)%uint64(c.ncnt)), -1)
	}
}

// Size reports the counter bank plus the hash vector.
func (c *CountingBloomFilter) Size() int {
	return c.cnt.Size() + c.nhash*hash.SizeOf
}

// Clear resets the filter.
func (c *CountingBloomFilter) Clear() {
	c.cnt.Clear()
}
