package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/eunmann/tilescan/internal/logctx"
	"github.com/eunmann/tilescan/pkg/histogram"
	"github.com/eunmann/tilescan/pkg/humanfmt"
	"github.com/eunmann/tilescan/pkg/potree"
)

// PackedHierarchy analyzes PotreeConverter v2 datasets, whose nodes live
// as fixed-size records in a single hierarchy file.
type PackedHierarchy struct {
	hierarchyPath string
	countNodes    bool
	histCfg       *histogram.Config
}

// NewPackedHierarchy validates that cfg.RootDir exists and contains the
// hierarchy file. Workers is ignored; the record pass is sequential.
func NewPackedHierarchy(cfg Config) (*PackedHierarchy, error) {
	if _, err := os.Stat(cfg.RootDir); err != nil {
		return nil, fmt.Errorf("dataset directory: %w", err)
	}

	path := filepath.Join(cfg.RootDir, potree.HierarchyFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("hierarchy file: %w", err)
	}

	return &PackedHierarchy{
		hierarchyPath: path,
		countNodes:    cfg.CountNodes,
		histCfg:       cfg.Histogram,
	}, nil
}

// Run counts the valid node records and optionally histograms their
// point counts. When nothing was requested the hierarchy file is never
// opened.
func (a *PackedHierarchy) Run(ctx context.Context) ([]Result, error) {
	if !a.countNodes && a.histCfg == nil {
		return nil, nil
	}

	log := logctx.FromContext(ctx)

	h, err := potree.OpenHierarchy(a.hierarchyPath)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	log.Info().
		Str("hierarchy", h.Path()).
		Str("size_h", humanfmt.Bytes(h.Size())).
		Int("records_count", h.NumRecords()).
		Msg("analyzing packed hierarchy dataset")

	valid := 0
	var counts []uint64
	for i := range h.NumRecords() {
		if !h.Valid(i) {
			continue
		}
		valid++
		if a.histCfg != nil {
			counts = append(counts, uint64(h.PointCount(i)))
		}
	}

	log.Info().
		Int("records_count", h.NumRecords()).
		Str("valid_count_h", humanfmt.Count(int64(valid))).
		Msg("hierarchy records scanned")

	var results []Result
	if a.countNodes {
		results = append(results, NodeCount(valid))
	}
	if a.histCfg != nil {
		slices.Sort(counts)
		results = append(results, Histogram(histogram.Build(counts, *a.histCfg)))
	}

	return results, nil
}
