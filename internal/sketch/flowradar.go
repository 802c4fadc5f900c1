package sketch

import (
	"container/heap"

	"github.com/pkg/errors"

	"SketchSpectra/internal/data"
	"SketchSpectra/pkg/flowkey"
	"SketchSpectra/pkg/hash"
	"SketchSpectra/pkg/util"
)

// FlowRadar pairs a Bloom "flow filter" with a count table of
// (flow_xor, flow_count, packet_count) rows. Rows whose flow_count decays
// to 1 are peelable: the xor is a live key and the packet count its volume.
// The flow filter is not perfect — a false positive silently drops a true
// new flow, which is accepted sketch error.
type FlowRadar struct {
	Base
	keyLen        int
	numBitmap     int
	numBitHash    int
	numCountTable int
	numCountHash  int
	numFlows      int

	hashes     []hash.Hasher
	flowFilter *BloomFilter
	countTable []radarEntry
}

type radarEntry struct {
	flowXOR     flowkey.Key
	flowCount   int64
	packetCount int64
}

// NewFlowRadar builds a radar with a flow filter of flowFilterSize bits and
// flowFilterHash hashes, and a count table of countTableSize rows indexed
// by countTableHash hashes. Sizes are rounded up to the next prime.
func NewFlowRadar(keyLen, flowFilterSize, flowFilterHash, countTableSize, countTableHash int) (*FlowRadar, error) {
	if !flowkey.ValidLen(keyLen) {
		return nil, errors.Wrapf(ErrBadArgument, "key length %d", keyLen)
	}
	if countTableSize <= 0 || countTableHash <= 0 {
		return nil, errors.Wrapf(ErrBadArgument, "count table of %d rows, %d hashes", countTableSize, countTableHash)
	}
	filter, err := NewBloomFilter(flowFilterSize, flowFilterHash)
	if err != nil {
		return nil, err
	}
	f := &FlowRadar{
		keyLen:        keyLen,
		numBitmap:     util.NextPrime(flowFilterSize),
		numBitHash:    flowFilterHash,
		numCountTable: util.NextPrime(countTableSize),
		numCountHash:  countTableHash,
		hashes:        make([]hash.Hasher, countTableHash),
		flowFilter:    filter,
	}
	for i := range f.hashes {
		f.hashes[i] = hash.NewAware()
	}
	f.countTable = make([]radarEntry, f.numCountTable)
	for i := range f.countTable {
		f.countTable[i].flowXOR = make(flowkey.Key, keyLen)
	}
	return f, nil
}

// Update folds the record into every hashed row; flow count and xor move
// only when the flow filter believes the key is new.
func (f *FlowRadar) Update(k flowkey.Key, val int64) {
	exist := f.flowFilter.Lookup(k)
	if !exist {
		f.flowFilter.Insert(k)
		f.numFlows++
	}
	for _, fn := range f.hashes {
		row := &f.countTable[fn.Hash(k)%uint64(f.numCountTable)]
		if !exist {
			row.flowCount++
			row.flowXOR.Xor(k)
		}
		row.packetCount += val
	}
}

// radarHeap orders candidate rows by (flow_count, row index); entries carry
// a snapshot of the count and are revalidated lazily on pop.
type radarHeap []radarHeapItem

type radarHeapItem struct {
	count int64
	index int
}

func (h radarHeap) Len() int { return len(h) }
func (h radarHeap) Less(i, j int) bool {
	if h[i].count != h[j].count {
		return h[i].count < h[j].count
	}
	return h[i].index < h[j].index
}
func (h radarHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *radarHeap) Push(x interface{}) { *h = append(*h, x.(radarHeapItem)) }
func (h *radarHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Decode peels the count table: as long as a row with flow_count == 1
// exists, its xor is a live key; the flow is emitted and removed from every
// row it hashes to. The loop stops when no peelable row remains.
func (f *FlowRadar) Decode() *data.Estimation {
	h := make(radarHeap, 0, f.numCountTable)
	for i := range f.countTable {
		h = append(h, radarHeapItem{count: f.countTable[i].flowCount, index: i})
	}
	heap.Init(&h)

	est := data.NewEstimation()
	for h.Len() > 0 {
		top := heap.Pop(&h).(radarHeapItem)
		row := &f.countTable[top.index]
		if row.flowCount != top.count {
			continue // stale snapshot
		}
		if top.count > 1 {
			break // nothing left to peel
		}
		if top.count <= 0 {
			continue // vacant row
		}

		key := row.flowXOR.Clone()
		size := row.packetCount
		for _, fn := range f.hashes {
			l := int(fn.Hash(key) % uint64(f.numCountTable))
			f.countTable[l].flowCount--
			f.countTable[l].packetCount -= size
			f.countTable[l].flowXOR.Xor(key)
			heap.Push(&h, radarHeapItem{count: f.countTable[l].flowCount, index: l})
		}
		est.Put(key, size)
	}
	return est
}

// Size reports the count table, its hashes and the flow filter.
func (f *FlowRadar) Size() int {
	return f.numCountHash*hash.SizeOf +
		f.numCountTable*(16+f.keyLen) +
		f.flowFilter.Size()
}

// Clear resets the filter and the count table.
func (f *FlowRadar) Clear() {
	f.numFlows = 0
	f.flowFilter.Clear()
	for i := range f.countTable {
		for b := range f.countTable[i].flowXOR {
			f.countTable[i].flowXOR[b] = 0
		}
		f.countTable[i].flowCount = 0
		f.countTable[i].packetCount = 0
	}
}
