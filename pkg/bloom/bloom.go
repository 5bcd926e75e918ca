// Package bloom implements the per-SST-block bloom filter (§3): a
// double-hashing scheme over a bits-and-blooms/bitset backing store sized
// for ~10 bits per key and a ~1% false-positive rate.
package bloom

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/bits-and-blooms/bitset"
)

const bitsPerKey = 10

// Filter is a fixed-size bloom filter built once from a known key count
// and never resized; stonedb builds one per SST data block at write time.
type Filter struct {
	bits    *bitset.BitSet
	numBits uint
	numHash uint
}

// New allocates a Filter sized for numKeys entries at ~1% false positives.
func New(numKeys int) *Filter {
	if numKeys < 1 {
		numKeys = 1
	}
	numBits := uint(numKeys) * bitsPerKey
	if numBits < 64 {
		numBits = 64
	}
	// k = (bits/key) * ln(2) is the classic optimum for the target FPR.
	numHash := uint(math.Round(bitsPerKey * math.Ln2))
	if numHash < 1 {
		numHash = 1
	}
	return &Filter{bits: bitset.New(numBits), numBits: numBits, numHash: numHash}
}

// hashPair implements Kirsch-Mitzenmacher double hashing: two independent
// 64-bit hashes combine to simulate numHash independent hash functions.
func hashPair(key []byte) (uint64, uint64) {
	h1 := fnv.New64a()
	h1.Write(key)
	sum1 := h1.Sum64()

	h2 := fnv.New64()
	h2.Write(key)
	var salt [8]byte
	binary.LittleEndian.PutUint64(salt[:], sum1)
	h2.Write(salt[:])
	sum2 := h2.Sum64()
	return sum1, sum2
}

// Add records key's presence in the filter.
func (f *Filter) Add(key []byte) {
	h1, h2 := hashPair(key)
	for i := uint(0); i < f.numHash; i++ {
		idx := (h1 + uint64(i)*h2) % uint64(f.numBits)
		f.bits.Set(uint(idx))
	}
}

// MayContain reports whether key might be present. false is authoritative
// (key is definitely absent); true may be a false positive.
func (f *Filter) MayContain(key []byte) bool {
	h1, h2 := hashPair(key)
	for i := uint(0); i < f.numHash; i++ {
		idx := (h1 + uint64(i)*h2) % uint64(f.numBits)
		if !f.bits.Test(uint(idx)) {
			return false
		}
	}
	return true
}

// Bytes serializes the filter to its on-disk representation: numBits and
// numHash as u32-LE, followed by the bitset's own marshaled words.
func (f *Filter) Bytes() ([]byte, error) {
	body, err := f.bits.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(f.numBits))
	binary.LittleEndian.PutUint32(out[4:8], uint32(f.numHash))
	copy(out[8:], body)
	return out, nil
}

// FromBytes parses a filter previously produced by Bytes.
func FromBytes(buf []byte) (*Filter, error) {
	numBits := binary.LittleEndian.Uint32(buf[0:4])
	numHash := binary.LittleEndian.Uint32(buf[4:8])
	bs := &bitset.BitSet{}
	if err := bs.UnmarshalBinary(buf[8:]); err != nil {
		return nil, err
	}
	return &Filter{bits: bs, numBits: uint(numBits), numHash: uint(numHash)}, nil
}
