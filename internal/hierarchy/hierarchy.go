// Package hierarchy implements the counter hierarchy (CH): a cascading bank
// of narrow counters that carries overflow to hashed upper-layer counters
// and recovers layer-0 values by sparse least squares.
//
// Counters are serialized: callers convert multi-dimensional indices into a
// single serial number. Updates follow a lazy policy — only a read
// propagates the buffered updates up the layers and decodes them back down.
// The hierarchy cannot improve accuracy: if layer 0 never overflows, the
// backing sketch behaves exactly as it would without it.
//
// Values of the original counters must stay non-negative throughout
// (negative updates are fine), or decoding error is unbounded. Layer sizes
// are best chosen prime.
package hierarchy

import (
	"github.com/pkg/errors"

	"SketchSpectra/pkg/bitarray"
	"SketchSpectra/pkg/hash"
	"SketchSpectra/pkg/util"
)

var (
	// ErrMisconfigured reports a construction-time shape violation.
	ErrMisconfigured = errors.New("hierarchy: misconfigured")
	// ErrOutOfRange reports a layer-0 index outside [0, m0).
	ErrOutOfRange = errors.New("hierarchy: index out of range")
	// ErrCounterOverflow reports a carry out of the top layer.
	ErrCounterOverflow = errors.New("hierarchy: counter overflow at the last layer")
)

// Hierarchy is a multi-layer counter bank. See the package comment.
type Hierarchy struct {
	noCnt    []int
	widthCnt []int
	noHash   []int

	hashes [][]hash.Hasher        // per layer below the top
	cnt    [][]util.PackedInt     // packed counters per layer
	status []*bitarray.BitArray   // overflow witnesses per layer

	original []int64   // exact shadow of the layer-0 updates
	decoded  []float64 // cached decoding of layer 0
	pending  map[int]int64
}

// New builds a hierarchy with the default hash family.
func New(noCnt, widthCnt, noHash []int) (*Hierarchy, error) {
	return NewWithHasher(noCnt, widthCnt, noHash, func() hash.Hasher { return hash.NewAware() })
}

// NewWithHasher builds a hierarchy drawing its layer hashes from newHasher.
// Tests inject deterministic hashes here.
//
// Shape requirements: len(noCnt) == len(widthCnt) == n >= 1 with no zero
// entries, len(noHash) == n-1 with no zero entries, and the widths must sum
// to at most 64 bits.
func NewWithHasher(noCnt, widthCnt, noHash []int, newHasher func() hash.Hasher) (*Hierarchy, error) {
	n := len(noCnt)
	if n < 1 {
		return nil, errors.Wrap(ErrMisconfigured, "no layers")
	}
	if len(widthCnt) != n {
		return nil, errors.Wrapf(ErrMisconfigured, "width_cnt should be of size %d, got %d", n, len(widthCnt))
	}
	if len(noHash) != n-1 {
		return nil, errors.Wrapf(ErrMisconfigured, "no_hash should be of size %d, got %d", n-1, len(noHash))
	}
	for _, m := range noCnt {
		if m <= 0 {
			return nil, errors.Wrap(ErrMisconfigured, "zero in no_cnt")
		}
	}
	for _, w := range widthCnt {
		if w <= 0 {
			return nil, errors.Wrap(ErrMisconfigured, "zero in width_cnt")
		}
	}
	for _, h := range noHash {
		if h <= 0 {
			return nil, errors.Wrap(ErrMisconfigured, "zero in no_hash")
		}
	}
	total := 0
	for _, w := range widthCnt {
		total += w
		if total > 64 {
			return nil, errors.Wrap(ErrMisconfigured, "aggregate width of counters exceeds 64 bits")
		}
	}

	h := &Hierarchy{
		noCnt:    append([]int(nil), noCnt...),
		widthCnt: append([]int(nil), widthCnt...),
		noHash:   append([]int(nil), noHash...),
		original: make([]int64, noCnt[0]),
		pending:  make(map[int]int64),
	}

	h.hashes = make([][]hash.Hasher, n-1)
	for i := 0; i < n-1; i++ {
		h.hashes[i] = make([]hash.Hasher, noHash[i])
		for j := range h.hashes[i] {
			h.hashes[i][j] = newHasher()
		}
	}

	h.cnt = make([][]util.PackedInt, n)
	h.status = make([]*bitarray.BitArray, n)
	for i := 0; i < n; i++ {
		h.cnt[i] = make([]util.PackedInt, noCnt[i])
		for j := range h.cnt[i] {
			p, err := util.NewPackedInt(widthCnt[i])
			if err != nil {
				return nil, errors.Wrapf(ErrMisconfigured, "layer %d: %v", i, err)
			}
			h.cnt[i][j] = p
		}
		h.status[i] = bitarray.New(noCnt[i])
	}
	return h, nil
}

// Layers returns the number of layers.
func (h *Hierarchy) Layers() int { return len(h.noCnt) }

// Update buffers a delta for the layer-0 counter at index. No hashing, no
// propagation happens until the next read.
func (h *Hierarchy) Update(index int, val int64) error {
	if index < 0 || index >= h.noCnt[0] {
		return errors.Wrapf(ErrOutOfRange, "index %d of [0, %d)", index, h.noCnt[0])
	}
	h.pending[index] += val
	h.original[index] += val
	return nil
}

// Count returns the decoded value of the layer-0 counter at index, flushing
// buffered updates first. Two reads without an intervening update return
// identical values from the cache.
func (h *Hierarchy) Count(index int) (int64, error) {
	if index < 0 || index >= h.noCnt[0] {
		return 0, errors.Wrapf(ErrOutOfRange, "index %d of [0, %d)", index, h.noCnt[0])
	}
	if len(h.pending) > 0 {
		if err := h.flush(); err != nil {
			return 0, err
		}
		if err := h.decode(); err != nil {
			return 0, err
		}
	}
	if h.decoded == nil {
		return 0, nil
	}
	return int64(h.decoded[index]), nil
}

// OriginalAt returns the exact value the counter would hold without the
// hierarchy — the diagnostics shadow.
func (h *Hierarchy) OriginalAt(index int) (int64, error) {
	if index < 0 || index >= h.noCnt[0] {
		return 0, errors.Wrapf(ErrOutOfRange, "index %d of [0, %d)", index, h.noCnt[0])
	}
	return h.original[index], nil
}

// flush propagates the buffered updates layer by layer. A counter whose
// carry-out is nonzero gets its witness bit set and distributes the carry
// to its hashed upper-layer counters; a carry out of the top layer is
// fatal.
func (h *Hierarchy) flush() error {
	updates := h.pending
	h.pending = make(map[int]int64)
	last := len(h.noCnt) - 1

	for layer := 0; layer <= last; layer++ {
		next := make(map[int]int64)
		for idx, delta := range updates {
			carry, err := h.cnt[layer][idx].Add(delta)
			if err != nil {
				return err
			}
			if carry == 0 {
				continue
			}
			h.status[layer].Set(idx)
			if layer == last {
				return errors.Wrapf(ErrCounterOverflow, "overflow by %d", carry)
			}
			for _, fn := range h.hashes[layer] {
				u := int(hash.HashUint64(fn, uint64(idx)) % uint64(h.noCnt[layer+1]))
				next[u] += carry
			}
		}
		updates = next
	}
	return nil
}

// decode recovers the layer-0 values from the flushed state, caching the
// result.
func (h *Hierarchy) decode() error {
	last := len(h.noCnt) - 1
	higher := make([]float64, h.noCnt[last])
	for i := range higher {
		higher[i] = float64(h.cnt[last][i].Value())
	}
	for layer := last - 1; layer >= 0; layer-- {
		higher = h.decodeLayer(layer, higher)
	}
	h.decoded = higher
	return nil
}

// decodeLayer solves A*y ~= higher in the least-squares sense, where column
// i of A holds one 1.0 per layer hash iff counter i overflowed, then
// reassembles the layer's values from the rounded solution and the packed
// residues.
func (h *Hierarchy) decodeLayer(layer int, higher []float64) []float64 {
	m := h.noCnt[layer]

	var cols []sparseCol
	for i := 0; i < m; i++ {
		if !h.status[layer].Get(i) {
			continue
		}
		rows := make([]int, len(h.hashes[layer]))
		for j, fn := range h.hashes[layer] {
			rows[j] = int(hash.HashUint64(fn, uint64(i)) % uint64(h.noCnt[layer+1]))
		}
		cols = append(cols, sparseCol{idx: i, rows: rows})
	}
	x := solveLSQ(cols, m, higher)

	ret := make([]float64, m)
	for i := 0; i < m; i++ {
		if h.status[layer].Get(i) {
			ret[i] = float64(int64(x[i]+0.5) << h.widthCnt[layer])
		}
		ret[i] += float64(h.cnt[layer][i].Value())
	}
	return ret
}

// Size reports the steady-state footprint: counters plus witness bits
// rounded up to bytes, plus the hash vectors.
func (h *Hierarchy) Size() int {
	bits := 0
	for i := range h.noCnt {
		bits += h.noCnt[i] * (h.widthCnt[i] + 1)
	}
	size := (bits + 7) >> 3
	for _, n := range h.noHash {
		size += n * hash.SizeOf
	}
	return size
}

// OriginalSize reports the footprint of the plain 64-bit counters the
// hierarchy replaces.
func (h *Hierarchy) OriginalSize() int { return 8 * h.noCnt[0] }

// Clear resets counters, witnesses, the shadow array and the buffered
// updates.
func (h *Hierarchy) Clear() {
	for i := range h.cnt {
		for j := range h.cnt[i] {
			h.cnt[i][j].Reset()
		}
		h.status[i].Reset()
	}
	for i := range h.original {
		h.original[i] = 0
	}
	h.decoded = nil
	h.pending = make(map[int]int64)
}
