// Package signature holds the comparison math behind the fuzzy scan modes:
// 64-bit bit signatures compared by Hamming distance, shingle sets compared by
// Jaccard index, and the LSH band keys used to bucket either kind.
package signature

import (
	"encoding/binary"
	"math"
	"math/bits"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// MinHashSize is the number of MinHash slots kept per set signature.
	MinHashSize = 32
	// MinHashRows is the number of slots folded into one band key.
	MinHashRows = 2
)

// BandKey identifies one LSH bucket. Two signatures sharing any key are
// compared pairwise.
type BandKey struct {
	Band  int
	Value uint64
}

func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func BitSimilarity(a, b uint64) float64 {
	return 1 - float64(Hamming(a, b))/64
}

// MaxDistance converts a similarity threshold to the largest Hamming distance
// that still satisfies it.
func MaxDistance(threshold float64) int {
	if threshold >= 1 {
		return 0
	}
	if threshold <= 0 {
		return 64
	}
	return int(math.Floor((1-threshold)*64 + 1e-9))
}

// BitBands splits v into maxDist+1 contiguous bands. Any two values within
// maxDist bits of each other agree on at least one band.
func BitBands(v uint64, maxDist int) []BandKey {
	n := maxDist + 1
	if n >= 64 {
		return []BandKey{{Band: -1}}
	}
	out := make([]BandKey, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		width := 64 / n
		if i < 64%n {
			width++
		}
		mask := uint64(1)<<uint(width) - 1
		out = append(out, BandKey{Band: i, Value: (v >> uint(start)) & mask})
		start += width
	}
	return out
}

// Shingles hashes every window of k consecutive tokens into a sorted,
// de-duplicated set. Inputs shorter than k produce a single shingle.
func Shingles(tokens []string, k int) []uint64 {
	if len(tokens) == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if len(tokens) < k {
		k = len(tokens)
	}
	seen := make(map[uint64]struct{}, len(tokens))
	for i := 0; i+k <= len(tokens); i++ {
		seen[xxhash.Sum64String(strings.Join(tokens[i:i+k], "\x00"))] = struct{}{}
	}
	return sortedSet(seen)
}

// SetOf returns the sorted, de-duplicated form of hashes.
func SetOf(hashes []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(hashes))
	for _, h := range hashes {
		seen[h] = struct{}{}
	}
	return sortedSet(seen)
}

func sortedSet(m map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Jaccard expects both inputs sorted and de-duplicated.
func Jaccard(a, b []uint64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	i, j, inter := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// SimHash folds weighted feature hashes into one 64-bit value whose Hamming
// distance tracks feature overlap.
func SimHash(features []uint64) uint64 {
	var weights [64]int
	for _, f := range features {
		for i := 0; i < 64; i++ {
			if f&(1<<uint(i)) != 0 {
				weights[i]++
			} else {
				weights[i]--
			}
		}
	}
	var out uint64
	for i, w := range weights {
		if w > 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

func MinHash(set []uint64) []uint64 {
	out := make([]uint64, MinHashSize)
	for i := range out {
		out[i] = math.MaxUint64
	}
	for _, h := range set {
		for i := range out {
			if v := mix(h ^ seed(i)); v < out[i] {
				out[i] = v
			}
		}
	}
	return out
}

func MinHashBands(sig []uint64) []BandKey {
	out := make([]BandKey, 0, len(sig)/MinHashRows)
	buf := make([]byte, 8*MinHashRows)
	for b := 0; b+MinHashRows <= len(sig); b += MinHashRows {
		for r := 0; r < MinHashRows; r++ {
			binary.LittleEndian.PutUint64(buf[r*8:], sig[b+r])
		}
		out = append(out, BandKey{Band: b / MinHashRows, Value: xxhash.Sum64(buf)})
	}
	return out
}

func seed(i int) uint64 {
	return mix(uint64(i+1) * 0x9e3779b97f4a7c15)
}

// mix is the splitmix64 finalizer.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
