// Package histogram buckets sorted per-node point counts into linear or
// logarithmic histograms.
package histogram

import (
	"fmt"
	"math"
	"sort"
)

// Mode selects how bucket boundaries are spaced.
type Mode int

const (
	// Linear spaces bucket boundaries evenly over [0, max+1).
	Linear Mode = iota
	// Logarithmic spaces bucket boundaries evenly in log2 space: narrow
	// buckets near small counts, wide ones near the maximum.
	Logarithmic
)

// String returns the mode name used in log fields.
func (m Mode) String() string {
	switch m {
	case Linear:
		return "linear"
	case Logarithmic:
		return "logarithmic"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Config selects the spacing mode and bucket count for one histogram.
// It is immutable once constructed; one config serves one analysis run.
type Config struct {
	Mode    Mode
	Buckets int
}

// Bucket counts the nodes whose point count falls in [Start, End).
type Bucket struct {
	Count int
	Start uint64
	End   uint64
}

// String formats the bucket the way results are printed.
func (b Bucket) String() string {
	return fmt.Sprintf("%d in [%d;%d)", b.Count, b.Start, b.End)
}

// Build buckets counts into cfg.Buckets buckets. counts must already be
// sorted ascending; Build never sorts. An empty counts slice or a
// non-positive bucket count yields an empty histogram.
//
// Adjacent buckets share their boundary value (bucket i's End equals
// bucket i+1's Start) because both come from the same monotone formula,
// so the buckets partition the covered range without gaps or overlap.
func Build(counts []uint64, cfg Config) []Bucket {
	if len(counts) == 0 || cfg.Buckets <= 0 {
		return nil
	}
	if cfg.Mode == Logarithmic {
		return logarithmic(counts, cfg.Buckets)
	}
	return linear(counts, cfg.Buckets)
}

// linear spaces boundaries evenly over [0, max+1); the +1 keeps the
// largest count inside the half-open final bucket.
func linear(counts []uint64, n int) []Bucket {
	max := float64(counts[len(counts)-1] + 1)

	buckets := make([]Bucket, 0, n)
	for i := range n {
		start := uint64(math.Round(max * float64(i) / float64(n)))
		end := uint64(math.Round(max * float64(i+1) / float64(n)))
		buckets = append(buckets, bucket(counts, start, end))
	}
	return buckets
}

// logarithmic spaces boundaries evenly in log2 space over [1, max+1);
// the 1+x offset keeps log2 defined when the largest count is 0.
func logarithmic(counts []uint64, n int) []Bucket {
	logMax := math.Log2(float64(counts[len(counts)-1] + 1))

	buckets := make([]Bucket, 0, n)
	for i := range n {
		start := uint64(math.Round(math.Exp2(logMax * float64(i) / float64(n))))
		end := uint64(math.Round(math.Exp2(logMax * float64(i+1) / float64(n))))
		buckets = append(buckets, bucket(counts, start, end))
	}
	return buckets
}

// bucket counts the elements of the sorted slice falling in [start, end).
func bucket(counts []uint64, start, end uint64) Bucket {
	lo := sort.Search(len(counts), func(i int) bool { return counts[i] >= start })
	hi := sort.Search(len(counts), func(i int) bool { return counts[i] >= end })
	return Bucket{Count: hi - lo, Start: start, End: end}
}
