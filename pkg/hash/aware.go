// Package hash provides the seeded 64-bit hash family shared by every
// sketch. Instances constructed with NewAware are effectively independent:
// their parameters derive from a per-process monotonically increasing
// counter combined with a randomiser drawn at process start. ResetSeed pins
// the sequence for deterministic cross-run tests.
package hash

import (
	"encoding/binary"
	"math/bits"
	"math/rand/v2"
	"sync"
)

// Hasher maps a byte span to a 64-bit value, deterministically per instance.
type Hasher interface {
	Hash(p []byte) uint64
}

// SizeOf is the steady-state footprint of one Aware instance, counted by the
// size() accounting of sketches: the three 64-bit parameters.
const SizeOf = 24

// Bootstrap constants of the generator hash, fixed to reproduce cross-run
// behaviour.
const (
	genInitMagic     = 388650253
	genScaleMagic    = 388650319
	genHardenerMagic = 1176845762
	mangleMagic      = 2083697005
)

var (
	seedMu    sync.Mutex
	seedBase  uint64
	seedIndex uint64
)

func init() {
	seedBase = rand.Uint64()
}

// ResetSeed restarts the per-process seeding sequence from base. Tests call
// this before constructing hashers to obtain identical instances across
// runs.
func ResetSeed(base uint64) {
	seedMu.Lock()
	seedBase = base
	seedIndex = 0
	seedMu.Unlock()
}

// mangle byte-reverses the seed and multiplies it by a fixed odd constant.
func mangle(x uint64) uint64 {
	return bits.ReverseBytes64(x) * mangleMagic
}

// Aware is a keyed multiplicative hash: h = init; h = h*scale + b per byte;
// the result is hardened by a final xor.
type Aware struct {
	init     uint64
	scale    uint64
	hardener uint64
}

// NewAware draws the next instance from the process-wide seeding sequence.
func NewAware() *Aware {
	gen := Aware{init: genInitMagic, scale: genScaleMagic, hardener: genHardenerMagic}

	seedMu.Lock()
	defer seedMu.Unlock()

	var param [3]uint64
	for i := range param {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], mangle(seedBase+seedIndex))
		seedIndex++
		param[i] = gen.Hash(b[:])
	}
	return &Aware{init: param[0], scale: param[1], hardener: param[2]}
}

// Hash hashes a byte span.
func (a *Aware) Hash(p []byte) uint64 {
	h := a.init
	for _, b := range p {
		h = h*a.scale + uint64(b)
	}
	return h ^ a.hardener
}

// HashUint64 hashes the native byte representation of v. Serialized counter
// indices go through here.
func HashUint64(h Hasher, v uint64) uint64 {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], v)
	return h.Hash(b[:])
}
