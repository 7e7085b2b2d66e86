package cli

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eunmann/tilescan/pkg/potree"
)

// writeLasFile writes a minimal LAS 1.2 header declaring the given
// point count, creating parent directories as needed.
func writeLasFile(t *testing.T, path string, points uint32) {
	t.Helper()
	header := make([]byte, 227)
	copy(header, "LASF")
	header[24] = 1
	header[25] = 2
	binary.LittleEndian.PutUint32(header[107:], points)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, header, 0644); err != nil {
		t.Fatal(err)
	}
}

func hierarchyRecord(nodeType, childMask uint8, points uint32) []byte {
	rec := make([]byte, potree.RecordSize)
	rec[0] = nodeType
	rec[1] = childMask
	binary.LittleEndian.PutUint32(rec[2:], points)
	return rec
}

func writeHierarchy(t *testing.T, dir string, records ...[]byte) {
	t.Helper()
	var data []byte
	for _, rec := range records {
		data = append(data, rec...)
	}
	if err := os.WriteFile(filepath.Join(dir, potree.HierarchyFileName), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRunMissingInput(t *testing.T) {
	err := Run([]string{"--count-nodes"})
	if err == nil {
		t.Fatal("expected error with missing --input")
	}
	if !strings.Contains(err.Error(), "input") {
		t.Errorf("expected 'input' in error, got: %v", err)
	}
}

func TestRunHistogramFlagsMutuallyExclusive(t *testing.T) {
	err := Run([]string{"-i", t.TempDir(), "--histogram-lin", "4", "--histogram-log", "4"})
	if err == nil {
		t.Fatal("expected error with both histogram flags")
	}
	if !strings.Contains(err.Error(), "histogram-lin") || !strings.Contains(err.Error(), "histogram-log") {
		t.Errorf("expected both flag names in error, got: %v", err)
	}
}

func TestRunMissingDatasetDir(t *testing.T) {
	err := Run([]string{"-i", filepath.Join(t.TempDir(), "absent"), "-c"})
	if err == nil {
		t.Fatal("expected error for missing dataset directory")
	}
	if !strings.Contains(err.Error(), "dataset directory") {
		t.Errorf("expected 'dataset directory' in error, got: %v", err)
	}
}

func TestRunUnknownLayout(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	err := Run([]string{"-i", root, "-c"})
	if err == nil {
		t.Fatal("expected error for unrecognized layout")
	}
	if !strings.Contains(err.Error(), "not recognized") {
		t.Errorf("expected 'not recognized' in error, got: %v", err)
	}
}

func TestRunPotreeV2EndToEnd(t *testing.T) {
	root := t.TempDir()
	writeHierarchy(t, root,
		hierarchyRecord(potree.NodeNormal, 0, 10),
		hierarchyRecord(potree.NodeLeaf, 0, 20),
	)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-i", root, "-c", "--histogram-lin", "1"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := "Number of nodes: 2\nHistogram:\n2 in [0;21)\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunEntwineEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeLasFile(t, filepath.Join(root, "ept-data", "0-0-0-0.laz"), 100)
	writeLasFile(t, filepath.Join(root, "ept-data", "1-0-0-0", "2-0-0-0.laz"), 50)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-i", root, "--count-nodes"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := "Number of nodes: 2\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunPotreeLegacyEndToEnd(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "cloud.js"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	writeLasFile(t, filepath.Join(root, "data", "r", "r.las"), 10)
	writeLasFile(t, filepath.Join(root, "data", "r", "r0.las"), 20)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-i", root, "-c", "--histogram-log", "2"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := "Number of nodes: 2\nHistogram:\n0 in [1;5)\n2 in [5;21)\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunNothingRequestedPrintsNothing(t *testing.T) {
	root := t.TempDir()
	writeHierarchy(t, root, hierarchyRecord(potree.NodeNormal, 0, 10))

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-i", root})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestRunLogsCompletionToStderr(t *testing.T) {
	root := t.TempDir()
	writeHierarchy(t, root, hierarchyRecord(potree.NodeNormal, 0, 10))

	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"-i", root, "-c"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	logs := errOut.String()
	if !strings.Contains(logs, `"message":"analysis complete"`) {
		t.Errorf("expected completion log on stderr, got: %s", logs)
	}
	if !strings.Contains(logs, `"run_id":`) || !strings.Contains(logs, `"dataset":`) {
		t.Errorf("expected run_id and dataset fields in logs, got: %s", logs)
	}
	if strings.Contains(out.String(), "analysis complete") {
		t.Errorf("logs leaked into stdout: %q", out.String())
	}
}
