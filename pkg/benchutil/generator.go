// Package benchutil provides synthetic dataset generation for benchmarks.
package benchutil

import (
	"encoding/binary"
	"math/rand"

	"github.com/eunmann/tilescan/pkg/potree"
)

// BenchmarkSeed is the default seed for reproducible benchmark data generation.
const BenchmarkSeed = 42

// GenerateCounts returns n synthetic per-node point counts. The counts
// have a long tail, resembling the spread between dense interior tiles
// and sparse leaves.
func GenerateCounts(n int, seed int64) []uint64 {
	rng := rand.New(rand.NewSource(seed))
	counts := make([]uint64, n)
	for i := range counts {
		counts[i] = 1 + uint64(rng.ExpFloat64()*50000)
	}
	return counts
}

// GenerateHierarchy returns a packed hierarchy of n records. Roughly
// proxyFraction of the records are proxy placeholders, which analyzers
// skip.
func GenerateHierarchy(n int, proxyFraction float64, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, 0, n*potree.RecordSize)
	rec := make([]byte, potree.RecordSize)
	for i := 0; i < n; i++ {
		rec[0] = potree.NodeNormal
		rec[1] = 0
		if rng.Float64() < proxyFraction {
			rec[0] = potree.NodeProxy
			rec[1] = 0xFF
		}
		binary.LittleEndian.PutUint32(rec[2:], uint32(1+rng.ExpFloat64()*50000))
		data = append(data, rec...)
	}
	return data
}
