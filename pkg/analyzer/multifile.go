package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/eunmann/tilescan/internal/logctx"
	"github.com/eunmann/tilescan/pkg/histogram"
	"github.com/eunmann/tilescan/pkg/las"
	"github.com/eunmann/tilescan/pkg/progress"
	"golang.org/x/sync/errgroup"
)

// filePattern matches the per-node point cloud files, recursively. The
// extensions are matched exactly, without case folding.
const filePattern = "**/*.{las,laz}"

// progressStep is the raw-progress interval between scan status lines;
// one file contributes one unit.
const progressStep = 1000

// MultiFile analyzes datasets stored as one point cloud file per node,
// such as the ept-data tree of an Entwine dataset or a legacy Potree
// conversion. One node is one file; point counts come from the file
// headers alone.
type MultiFile struct {
	root       string
	files      []string
	countNodes bool
	histCfg    *histogram.Config
	workers    int
}

// NewMultiFile enumerates the point cloud files under cfg.RootDir. The
// enumeration is eager: Run works off the file list captured here.
func NewMultiFile(cfg Config) (*MultiFile, error) {
	if _, err := os.Stat(cfg.RootDir); err != nil {
		return nil, fmt.Errorf("dataset directory: %w", err)
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(cfg.RootDir, filePattern))
	if err != nil {
		return nil, fmt.Errorf("enumerate point cloud files: %w", err)
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", match, err)
		}
		if info.IsDir() {
			continue
		}
		files = append(files, match)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	return &MultiFile{
		root:       cfg.RootDir,
		files:      files,
		countNodes: cfg.CountNodes,
		histCfg:    cfg.Histogram,
		workers:    workers,
	}, nil
}

// Run produces the requested results: the node count (one node per file)
// and the histogram of the declared per-file point counts.
func (a *MultiFile) Run(ctx context.Context) ([]Result, error) {
	if len(a.files) == 0 {
		return nil, fmt.Errorf("no .las or .laz files found under %s", a.root)
	}

	log := logctx.FromContext(ctx)
	log.Info().
		Str("dir", a.root).
		Int("files_count", len(a.files)).
		Msg("analyzing multi-file dataset")

	var results []Result
	if a.countNodes {
		results = append(results, NodeCount(len(a.files)))
	}

	if a.histCfg != nil {
		counts, err := a.pointCounts(ctx)
		if err != nil {
			return nil, err
		}
		results = append(results, Histogram(histogram.Build(counts, *a.histCfg)))
	}

	return results, nil
}

// pointCounts reads the public header of every file in parallel and
// returns the declared point counts sorted ascending. The first header
// failure fails the whole scan.
func (a *MultiFile) pointCounts(ctx context.Context) ([]uint64, error) {
	log := logctx.FromContext(ctx)
	log.Info().Int("workers", a.workers).Msg("scanning point cloud headers")

	tracker := progress.NewTracker(float64(len(a.files)-1), progress.OnProgressChanged(progressStep), log)

	counts := make([]uint64, len(a.files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, path := range a.files {
		g.Go(func() error {
			// A failed sibling cancels the group; skip the read.
			if err := ctx.Err(); err != nil {
				return err
			}

			hdr, err := las.ReadHeader(path)
			if err != nil {
				return err
			}

			mu.Lock()
			counts[i] = hdr.PointRecords
			mu.Unlock()

			tracker.IncProgress(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan headers: %w", err)
	}

	slices.Sort(counts)
	return counts, nil
}
