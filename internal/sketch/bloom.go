package sketch

import (
	"github.com/pkg/errors"

	"SketchSpectra/pkg/bitarray"
	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/hash"
	"SketchSpectra/pkg/util"
)

// BloomFilter is the classic bit-array membership sketch. The bit count is
// rounded up to the next prime.
type BloomFilter struct {
	Base
	nbits  int
	nhash  int
	arr    *bitarray.BitArray
	hashes []hash.Hasher
}

// NewBloomFilter builds a filter of numBits bits (rounded to the next
// prime) and numHash hash functions.
func NewBloomFilter(numBits, numHash int) (*BloomFilter, error) {
	if numBits <= 0 || numHash <= 0 {
		return nil, errors.Wrapf(ErrBadArgument, "bloom filter with %d bits, %d hashes", numBits, numHash)
	}
	b := &BloomFilter{
		nbits:  util.NextPrime(numBits),
		nhash:  numHash,
		hashes: make([]hash.Hasher, numHash),
	}
	b.arr = bitarray.New(b.nbits)
	for i := range b.hashes {
		b.hashes[i] = hash.NewAware()
	}
	return b, nil
}

// Insert sets every hashed bit of the key.
func (b *BloomFilter) Insert(k flowkey.Key) {
	for _, fn := range b.hashes {
		b.arr.Set(int(fn.Hash(k) % uint64(b.nbits)))
	}
}

// Lookup reports true iff every hashed bit is set.
func (b *BloomFilter) Lookup(k flowkey.Key) bool {
	for _, fn := range b.hashes {
		if !b.arr.Get(int(fn.Hash(k) % uint64(b.nbits))) {
			return false
		}
	}
	return true
}

// Size reports the bit array plus the hash vector.
func (b *BloomFilter) Size() int {
	return (b.nbits+7)>>3 + b.nhash*hash.SizeOf
}

// Clear resets the filter.
func (b *BloomFilter) Clear() {
	b.arr.Reset()
}
