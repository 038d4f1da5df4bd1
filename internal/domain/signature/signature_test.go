package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHammingAndBitSimilarity(t *testing.T) {
	assert.Equal(t, 0, Hamming(0xff, 0xff))
	assert.Equal(t, 8, Hamming(0xff, 0x00))
	assert.InDelta(t, 1.0, BitSimilarity(42, 42), 1e-9)
	assert.InDelta(t, 0.0, BitSimilarity(0, ^uint64(0)), 1e-9)
}

func TestMaxDistance(t *testing.T) {
	assert.Equal(t, 9, MaxDistance(0.85))
	assert.Equal(t, 0, MaxDistance(1))
	assert.Equal(t, 64, MaxDistance(0))
	assert.Equal(t, 32, MaxDistance(0.5))
}

func TestBitBandsPigeonhole(t *testing.T) {
	maxDist := MaxDistance(0.85)
	a := uint64(0x0123456789abcdef)
	// flip maxDist bits spread across the word
	b := a
	for i := 0; i < maxDist; i++ {
		b ^= 1 << uint(i*7)
	}
	require.LessOrEqual(t, Hamming(a, b), maxDist)

	bandsA := BitBands(a, maxDist)
	bandsB := BitBands(b, maxDist)
	require.Len(t, bandsA, maxDist+1)

	shared := false
	for i := range bandsA {
		if bandsA[i] == bandsB[i] {
			shared = true
		}
	}
	assert.True(t, shared, "values within max distance must share a band")
}

func TestBitBandsSingleBucketForLowThreshold(t *testing.T) {
	assert.Equal(t, []BandKey{{Band: -1}}, BitBands(7, 64))
	assert.Equal(t, BitBands(1, 70), BitBands(^uint64(0), 70))
}

func TestShinglesAndJaccard(t *testing.T) {
	a := Shingles([]string{"func", "main", "(", ")", "{", "}"}, 4)
	b := Shingles([]string{"func", "main", "(", ")", "{", "}"}, 4)
	c := Shingles([]string{"package", "other"}, 4)

	require.Len(t, a, 3)
	assert.InDelta(t, 1.0, Jaccard(a, b), 1e-9)
	assert.Len(t, c, 1)
	assert.InDelta(t, 0.0, Jaccard(a, c), 1e-9)
	assert.Nil(t, Shingles(nil, 4))
	assert.InDelta(t, 1.0, Jaccard(nil, nil), 1e-9)
}

func TestJaccardPartialOverlap(t *testing.T) {
	assert.InDelta(t, 0.5, Jaccard([]uint64{1, 2, 3}, []uint64{2, 3, 4, 5}[:3]), 1e-9)
	assert.Equal(t, []uint64{1, 2, 9}, SetOf([]uint64{9, 2, 1, 2}))
}

func TestSimHashStableUnderSmallChange(t *testing.T) {
	base := make([]uint64, 0, 200)
	for i := 0; i < 200; i++ {
		base = append(base, mix(uint64(i)))
	}
	changed := append([]uint64(nil), base...)
	changed[0] = mix(10_000)

	assert.Equal(t, SimHash(base), SimHash(base))
	assert.GreaterOrEqual(t, BitSimilarity(SimHash(base), SimHash(changed)), 0.85)
}

func TestMinHashBandsAgreeForEqualSets(t *testing.T) {
	set := SetOf([]uint64{11, 22, 33, 44})
	a := MinHash(set)
	b := MinHash(append([]uint64(nil), set...))
	require.Len(t, a, MinHashSize)
	assert.Equal(t, MinHashBands(a), MinHashBands(b))
	assert.Len(t, MinHashBands(a), MinHashSize/MinHashRows)
}
