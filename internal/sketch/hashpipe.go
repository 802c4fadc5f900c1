package sketch

import (
	"github.com/pkg/errors"

	"SketchSpectra/internal/data"
	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/hash"
	"SketchSpectra/pkg/util"
)

// HashPipe tracks heavy flows in a pipeline of stages, each a prime-width
// array of (key, value) slots with its own hash. Updates cascade: a miss
// evicts the occupant and carries it to the next stage, where it lands only
// if the slot holds a strictly smaller value. Carried pairs that fall off
// the last stage are dropped, so the sketch is order-sensitive.
type HashPipe struct {
	Base
	keyLen int
	depth  int
	width  int
	hashes []hash.Hasher
	slots  [][]pipeEntry
}

type pipeEntry struct {
	key flowkey.Key
	val int64
}

// NewHashPipe builds a pipe of depth stages of the given width for keys of
// keyLen bytes.
func NewHashPipe(keyLen, depth, width int) (*HashPipe, error) {
	if !flowkey.ValidLen(keyLen) {
		return nil, errors.Wrapf(ErrBadArgument, "key length %d", keyLen)
	}
	if depth <= 0 || width <= 0 {
		return nil, errors.Wrapf(ErrBadArgument, "hash-pipe of depth %d, width %d", depth, width)
	}
	h := &HashPipe{
		keyLen: keyLen,
		depth:  depth,
		width:  util.NextPrime(width),
		hashes: make([]hash.Hasher, depth),
	}
	for i := range h.hashes {
		h.hashes[i] = hash.NewAware()
	}
	h.slots = make([][]pipeEntry, depth)
	for i := range h.slots {
		h.slots[i] = make([]pipeEntry, h.width)
		for j := range h.slots[i] {
			h.slots[i][j].key = make(flowkey.Key, keyLen)
		}
	}
	return h, nil
}

// Update cascades (k, val) through the stages.
func (h *HashPipe) Update(k flowkey.Key, val int64) {
	idx := h.hashes[0].Hash(k) % uint64(h.width)
	slot := &h.slots[0][idx]

	var cKey flowkey.Key
	var cVal int64
	switch {
	case slot.key.Equal(k):
		slot.val += val
		return
	case slot.key.IsZero():
		copy(slot.key, k)
		slot.val = val
		return
	default:
		cKey = slot.key.Clone()
		cVal = slot.val
		copy(slot.key, k)
		slot.val = val
	}

	for i := 1; i < h.depth; i++ {
		idx = h.hashes[i].Hash(cKey) % uint64(h.width)
		slot = &h.slots[i][idx]
		switch {
		case slot.key.Equal(cKey):
			slot.val += cVal
			return
		case slot.key.IsZero():
			copy(slot.key, cKey)
			slot.val = cVal
			return
		case slot.val < cVal:
			slot.key, cKey = cKey, slot.key
			slot.val, cVal = cVal, slot.val
		}
	}
}

// Query sums the matching slots across the stages.
func (h *HashPipe) Query(k flowkey.Key) int64 {
	var sum int64
	for i := 0; i < h.depth; i++ {
		idx := h.hashes[i].Hash(k) % uint64(h.width)
		if h.slots[i][idx].key.Equal(k) {
			sum += h.slots[i][idx].val
		}
	}
	return sum
}

// HeavyHitters scans every slot, dedupes the keys and keeps those whose
// estimate reaches the threshold.
func (h *HashPipe) HeavyHitters(threshold float64) *data.Estimation {
	est := data.NewEstimation()
	checked := make(map[string]bool)
	for i := 0; i < h.depth; i++ {
		for j := 0; j < h.width; j++ {
			key := h.slots[i][j].key
			if checked[string(key)] {
				continue
			}
			checked[string(key)] = true
			if v := h.Query(key); float64(v) >= threshold {
				est.Put(key, v)
			}
		}
	}
	return est
}

// HeavyChangers compares the keys held by this pipe (and by the other one,
// when it is also a HashPipe) against the other sketch's estimates and
// keeps the flows whose volumes differ by at least the threshold.
func (h *HashPipe) HeavyChangers(other Sketch, threshold float64) *data.Estimation {
	est := data.NewEstimation()
	checked := make(map[string]bool)

	scan := func(p *HashPipe) {
		for i := 0; i < p.depth; i++ {
			for j := 0; j < p.width; j++ {
				key := p.slots[i][j].key
				if key.IsZero() || checked[string(key)] {
					continue
				}
				checked[string(key)] = true
				d := h.Query(key) - other.Query(key)
				if d < 0 {
					d = -d
				}
				if float64(d) >= threshold {
					est.Put(key, d)
				}
			}
		}
	}
	scan(h)
	if o, ok := other.(*HashPipe); ok {
		scan(o)
	}
	return est
}

// Size reports the slot arrays plus the stage hashes.
func (h *HashPipe) Size() int {
	return h.depth*h.width*(h.keyLen+8) + h.depth*hash.SizeOf
}

// Clear resets every slot.
func (h *HashPipe) Clear() {
	for i := range h.slots {
		for j := range h.slots[i] {
			for b := range h.slots[i][j].key {
				h.slots[i][j].key[b] = 0
			}
			h.slots[i][j].val = 0
		}
	}
}
