package analyzer

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eunmann/tilescan/internal/logctx"
	"github.com/eunmann/tilescan/pkg/histogram"
	"github.com/rs/zerolog"
)

// quietCtx returns a context whose logger discards all output.
func quietCtx() context.Context {
	return logctx.WithLogger(context.Background(), zerolog.Nop())
}

// writeLasFile writes a minimal LAS 1.2 public header declaring the given
// point count, creating parent directories as needed.
func writeLasFile(t *testing.T, path string, points uint32) {
	t.Helper()

	buf := make([]byte, 227)
	copy(buf, "LASF")
	buf[24] = 1 // version 1.2
	buf[25] = 2
	binary.LittleEndian.PutUint32(buf[107:], points)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create fixture dirs: %v", err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("write las fixture: %v", err)
	}
}

func TestNewMultiFileMissingRoot(t *testing.T) {
	_, err := NewMultiFile(Config{RootDir: filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatal("expected error for missing dataset directory")
	}
}

func TestMultiFileRunEmptyDataset(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("not a tile"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	a, err := NewMultiFile(Config{RootDir: root, CountNodes: true})
	if err != nil {
		t.Fatalf("NewMultiFile failed: %v", err)
	}

	_, err = a.Run(quietCtx())
	if err == nil {
		t.Fatal("expected error for dataset without point cloud files")
	}
	if !strings.Contains(err.Error(), "no .las or .laz files") {
		t.Errorf("error = %v, want empty-dataset message", err)
	}
}

func TestMultiFileRunUppercaseExtensionIgnored(t *testing.T) {
	root := t.TempDir()
	writeLasFile(t, filepath.Join(root, "NODE.LAS"), 10)

	a, err := NewMultiFile(Config{RootDir: root, CountNodes: true})
	if err != nil {
		t.Fatalf("NewMultiFile failed: %v", err)
	}

	if _, err := a.Run(quietCtx()); err == nil {
		t.Fatal("expected empty-dataset error, extensions match case-sensitively")
	}
}

func TestMultiFileRunCountsFilesAcrossSubdirs(t *testing.T) {
	root := t.TempDir()
	writeLasFile(t, filepath.Join(root, "a.las"), 1)
	writeLasFile(t, filepath.Join(root, "sub", "b.laz"), 2)
	writeLasFile(t, filepath.Join(root, "sub", "deep", "c.las"), 3)

	a, err := NewMultiFile(Config{RootDir: root, CountNodes: true})
	if err != nil {
		t.Fatalf("NewMultiFile failed: %v", err)
	}

	results, err := a.Run(quietCtx())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if got := results[0].(NodeCount); got != 3 {
		t.Errorf("node count = %d, want 3", got)
	}
}

func TestMultiFileRunHistogram(t *testing.T) {
	root := t.TempDir()
	writeLasFile(t, filepath.Join(root, "a.las"), 10)
	writeLasFile(t, filepath.Join(root, "b.laz"), 20)

	a, err := NewMultiFile(Config{
		RootDir:    root,
		CountNodes: true,
		Histogram:  &histogram.Config{Mode: histogram.Linear, Buckets: 1},
		Workers:    2,
	})
	if err != nil {
		t.Fatalf("NewMultiFile failed: %v", err)
	}

	results, err := a.Run(quietCtx())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	if got := results[0].(NodeCount); got != 2 {
		t.Errorf("node count = %d, want 2", got)
	}

	hist := results[1].(Histogram)
	want := Histogram{{Count: 2, Start: 0, End: 21}}
	if len(hist) != 1 || hist[0] != want[0] {
		t.Errorf("histogram = %v, want %v", hist, want)
	}
}

func TestMultiFileRunHeaderErrorFailsRun(t *testing.T) {
	root := t.TempDir()
	writeLasFile(t, filepath.Join(root, "good.las"), 10)
	if err := os.WriteFile(filepath.Join(root, "bad.las"), []byte("LASF"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	a, err := NewMultiFile(Config{
		RootDir:   root,
		Histogram: &histogram.Config{Mode: histogram.Linear, Buckets: 1},
	})
	if err != nil {
		t.Fatalf("NewMultiFile failed: %v", err)
	}

	if _, err := a.Run(quietCtx()); err == nil {
		t.Fatal("expected run to fail on the truncated header")
	}
}

func TestMultiFileRunNothingRequested(t *testing.T) {
	root := t.TempDir()
	writeLasFile(t, filepath.Join(root, "a.las"), 1)

	a, err := NewMultiFile(Config{RootDir: root})
	if err != nil {
		t.Fatalf("NewMultiFile failed: %v", err)
	}

	results, err := a.Run(quietCtx())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want none", len(results))
	}
}
