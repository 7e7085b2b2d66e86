// Package analyzer inspects tiled point cloud datasets and reports node
// counts and per-node point count histograms.
//
// Two dataset layouts are supported: directories of per-node .las/.laz
// files (Entwine trees and legacy Potree conversions) and the packed
// hierarchy file of PotreeConverter v2. Each layout has its own Analyzer
// implementation; callers pick one from the dataset's marker files.
package analyzer

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/eunmann/tilescan/pkg/histogram"
)

// Analyzer is the capability shared by all dataset layouts: one pass over
// the dataset producing the requested results.
type Analyzer interface {
	// Run analyzes the dataset and returns the requested results in a
	// fixed order: node count first, then histogram. Any I/O or format
	// failure fails the whole run; an empty result slice is returned
	// only when nothing was requested.
	Run(ctx context.Context) ([]Result, error)
}

// Config selects what an Analyzer computes.
type Config struct {
	// RootDir is the dataset directory. It must exist when the Analyzer
	// is constructed.
	RootDir string

	// CountNodes requests the valid node count.
	CountNodes bool

	// Histogram requests a per-node point count histogram. nil means no
	// histogram was requested.
	Histogram *histogram.Config

	// Workers bounds the parallelism of per-file header scans.
	// Zero or negative selects DefaultWorkers().
	Workers int
}

// DefaultWorkers returns the default scan parallelism: NumCPU clamped to
// [4, 16]. Header reads are I/O bound.
func DefaultWorkers() int {
	workers := runtime.NumCPU()
	if workers < 4 {
		workers = 4
	}
	if workers > 16 {
		workers = 16
	}
	return workers
}

// Result is one typed analysis output. The concrete types are NodeCount
// and Histogram; String renders the result block the CLI prints.
type Result interface {
	fmt.Stringer
	result()
}

// NodeCount is the number of valid nodes in the dataset.
type NodeCount uint64

func (NodeCount) result() {}

// String formats the node count block.
func (n NodeCount) String() string {
	return fmt.Sprintf("Number of nodes: %d\n", uint64(n))
}

// Histogram is the bucketed distribution of per-node point counts.
type Histogram []histogram.Bucket

func (Histogram) result() {}

// String formats the histogram block, one bucket per line.
func (h Histogram) String() string {
	var sb strings.Builder
	sb.WriteString("Histogram:\n")
	for _, b := range h {
		sb.WriteString(b.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
