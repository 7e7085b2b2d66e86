// Package potree reads the packed node hierarchy written by
// PotreeConverter v2 alongside its point data.
//
// The hierarchy file is a flat array of fixed-size records with no file
// header and no version field; its identity is inferred purely from the
// file size being a multiple of the record size.
package potree

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	// HierarchyFileName is the fixed marker name of the hierarchy file
	// inside a converted dataset directory.
	HierarchyFileName = "hierarchy.bin"

	// RecordSize is the size of one node record in bytes.
	RecordSize = 22
)

// Node type tags stored in byte 0 of each record.
const (
	NodeNormal uint8 = 0
	NodeLeaf   uint8 = 1
	NodeProxy  uint8 = 2
)

// Record byte offsets. The remaining bytes hold chunk offsets the
// analyzers never read.
const (
	typeOffset       = 0
	childMaskOffset  = 1
	pointCountOffset = 2
)

// Hierarchy provides record-level access to a hierarchy file via a
// read-only memory mapping.
//
// Thread Safety: Hierarchy is safe for concurrent read access from
// multiple goroutines. Close should only be called once, after all read
// operations have completed.
type Hierarchy struct {
	path string
	data []byte
	size int64
}

// OpenHierarchy maps the hierarchy file at path and validates that its
// size is an exact multiple of RecordSize.
func OpenHierarchy(path string) (*Hierarchy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hierarchy: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat hierarchy: %w", err)
	}

	size := info.Size()
	if size%RecordSize != 0 {
		return nil, fmt.Errorf("hierarchy size of %d bytes in %s is not a multiple of the %d-byte record size", size, path, RecordSize)
	}
	if size == 0 {
		return &Hierarchy{path: path, data: nil, size: 0}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap hierarchy: %w", err)
	}

	return &Hierarchy{
		path: path,
		data: data,
		size: size,
	}, nil
}

// Close unmaps the file.
func (h *Hierarchy) Close() error {
	if h.data == nil {
		return nil
	}
	if err := unix.Munmap(h.data); err != nil {
		return fmt.Errorf("munmap hierarchy: %w", err)
	}
	h.data = nil
	return nil
}

// Path returns the file path the hierarchy was opened from.
func (h *Hierarchy) Path() string {
	return h.path
}

// Size returns the hierarchy file size in bytes.
func (h *Hierarchy) Size() int64 {
	return h.size
}

// NumRecords returns the number of node records.
func (h *Hierarchy) NumRecords() int {
	return int(h.size / RecordSize)
}

// Valid reports whether record i describes a materialized node. Proxy
// records with a non-zero child mask point at another hierarchy chunk
// instead of a node and are excluded from counts and histograms. Only
// bytes 0 and 1 of the record are inspected.
//
// i must be in [0, NumRecords()).
func (h *Hierarchy) Valid(i int) bool {
	rec := h.data[i*RecordSize:]
	return rec[typeOffset] != NodeProxy || rec[childMaskOffset] == 0
}

// PointCount returns the little-endian point count of record i. Callers
// filter with Valid first; placeholder records carry no meaningful count.
//
// i must be in [0, NumRecords()).
func (h *Hierarchy) PointCount(i int) uint32 {
	return binary.LittleEndian.Uint32(h.data[i*RecordSize+pointCountOffset:])
}
