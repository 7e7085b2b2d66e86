// Package cli implements the command-line interface for tilescan.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eunmann/tilescan/internal/logctx"
	"github.com/eunmann/tilescan/pkg/analyzer"
	"github.com/eunmann/tilescan/pkg/fileutil"
	"github.com/eunmann/tilescan/pkg/histogram"
	"github.com/eunmann/tilescan/pkg/humanfmt"
	"github.com/eunmann/tilescan/pkg/potree"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Markers probed to detect the tiling layout of a dataset directory.
const (
	entwineDataDir     = "ept-data"
	potreeLegacyMarker = "cloud.js"
)

// options holds the parsed command line flags.
type options struct {
	input        string
	countNodes   bool
	histogramLin int
	histogramLog int
	workers      int
	debug        bool
	logPretty    bool
}

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "tilescan",
		Short:         "Inspect tiled point cloud datasets",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Dataset directory to inspect")
	cmd.Flags().BoolVarP(&opts.countNodes, "count-nodes", "c", false, "Report the number of valid nodes")
	cmd.Flags().IntVar(&opts.histogramLin, "histogram-lin", 0, "Report a point count histogram with the given number of linear buckets")
	cmd.Flags().IntVar(&opts.histogramLog, "histogram-log", 0, "Report a point count histogram with the given number of logarithmic buckets")
	cmd.Flags().IntVar(&opts.workers, "workers", analyzer.DefaultWorkers(), "Concurrent header readers for multi-file datasets")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.logPretty, "log-pretty", false, "Write human-friendly console logs instead of JSON")
	_ = cmd.MarkFlagRequired("input")
	cmd.MarkFlagsMutuallyExclusive("histogram-lin", "histogram-log")

	return cmd
}

func runAnalysis(cmd *cobra.Command, opts *options) error {
	logger := logctx.NewConfiguredLogger(cmd.ErrOrStderr(), opts.debug, opts.logPretty)
	ctx := logctx.WithLogger(cmd.Context(), logger)
	ctx = logctx.WithStr(ctx, "run_id", uuid.New().String())

	cfg := analyzer.Config{
		RootDir:    opts.input,
		CountNodes: opts.countNodes,
		Histogram:  histogramConfig(cmd, opts),
		Workers:    opts.workers,
	}

	a, err := newAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	results, err := a.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, result := range results {
		fmt.Fprint(out, result)
	}

	log := logctx.FromContext(ctx)
	log.Info().
		Str("dataset", opts.input).
		Str("duration_h", humanfmt.Duration(time.Since(start))).
		Msg("analysis complete")

	return nil
}

// histogramConfig translates the histogram flags into a request. A flag
// given with zero buckets is still a request; it yields an empty histogram.
func histogramConfig(cmd *cobra.Command, opts *options) *histogram.Config {
	flags := cmd.Flags()
	switch {
	case flags.Changed("histogram-lin"):
		return &histogram.Config{Mode: histogram.Linear, Buckets: opts.histogramLin}
	case flags.Changed("histogram-log"):
		return &histogram.Config{Mode: histogram.Logarithmic, Buckets: opts.histogramLog}
	default:
		return nil
	}
}

// newAnalyzer probes the dataset directory for a known tiling layout and
// returns the matching analyzer.
func newAnalyzer(ctx context.Context, cfg analyzer.Config) (analyzer.Analyzer, error) {
	info, err := os.Stat(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("dataset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset path %s is not a directory", cfg.RootDir)
	}

	log := logctx.FromContext(ctx)

	switch {
	case fileutil.IsDir(filepath.Join(cfg.RootDir, entwineDataDir)):
		log.Debug().Str("layout", "ept").Str("dataset", cfg.RootDir).Msg("detected dataset layout")
		cfg.RootDir = filepath.Join(cfg.RootDir, entwineDataDir)
		return analyzer.NewMultiFile(cfg)
	case fileutil.IsRegular(filepath.Join(cfg.RootDir, potreeLegacyMarker)):
		log.Debug().Str("layout", "potree_legacy").Str("dataset", cfg.RootDir).Msg("detected dataset layout")
		return analyzer.NewMultiFile(cfg)
	case fileutil.IsRegular(filepath.Join(cfg.RootDir, potree.HierarchyFileName)):
		log.Debug().Str("layout", "potree_v2").Str("dataset", cfg.RootDir).Msg("detected dataset layout")
		return analyzer.NewPackedHierarchy(cfg)
	default:
		return nil, fmt.Errorf("tiling layout of %s not recognized: expected an %s directory, a %s file, or a %s file",
			cfg.RootDir, entwineDataDir, potreeLegacyMarker, potree.HierarchyFileName)
	}
}
