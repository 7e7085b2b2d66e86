// Package las reads the public header block of LAS and LAZ point cloud
// files.
//
// Only the header is ever read. LAZ compression starts after the public
// header block, so the same reader serves both extensions without
// touching point data.
package las

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const signature = "LASF"

// Public header block layout shared by all LAS versions (byte offsets).
const (
	versionMajorOffset  = 24
	versionMinorOffset  = 25
	legacyCountOffset   = 107
	extendedCountOffset = 247

	// legacyHeaderSize is the LAS 1.0-1.2 public header size and the
	// minimum any version allows.
	legacyHeaderSize = 227
	// extendedHeaderSize is the LAS 1.4 public header size, which adds
	// the 64-bit point record counts.
	extendedHeaderSize = 375
)

var (
	// ErrBadSignature indicates the file does not start with "LASF".
	ErrBadSignature = errors.New("missing LASF signature")
	// ErrUnsupportedVersion indicates a LAS version this reader does not know.
	ErrUnsupportedVersion = errors.New("unsupported LAS version")
)

// Header holds the fields of the LAS public header block the analyzers
// consume.
type Header struct {
	VersionMajor uint8
	VersionMinor uint8

	// PointRecords is the declared number of point records: the 64-bit
	// count for LAS 1.4+, the legacy 32-bit count before that.
	PointRecords uint64
}

// ReadHeader opens the file at path and parses its public header block.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("open point cloud file: %w", err)
	}
	defer f.Close()

	hdr, err := DecodeHeader(f)
	if err != nil {
		return Header{}, fmt.Errorf("read header of %s: %w", path, err)
	}
	return hdr, nil
}

// DecodeHeader parses a public header block from r, which must be
// positioned at the start of the file.
func DecodeHeader(r io.Reader) (Header, error) {
	buf := make([]byte, legacyHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("public header block: %w", err)
	}
	if string(buf[:len(signature)]) != signature {
		return Header{}, ErrBadSignature
	}

	hdr := Header{
		VersionMajor: buf[versionMajorOffset],
		VersionMinor: buf[versionMinorOffset],
	}
	if hdr.VersionMajor != 1 {
		return Header{}, fmt.Errorf("%w: %d.%d", ErrUnsupportedVersion, hdr.VersionMajor, hdr.VersionMinor)
	}

	hdr.PointRecords = uint64(binary.LittleEndian.Uint32(buf[legacyCountOffset:]))
	if hdr.VersionMinor >= 4 {
		// LAS 1.4 moved the authoritative count to a 64-bit field past
		// the legacy header; the legacy field stays as a fallback for
		// writers that only fill one of the two.
		rest := make([]byte, extendedHeaderSize-legacyHeaderSize)
		if _, err := io.ReadFull(r, rest); err != nil {
			return Header{}, fmt.Errorf("extended header block: %w", err)
		}
		if n := binary.LittleEndian.Uint64(rest[extendedCountOffset-legacyHeaderSize:]); n != 0 {
			hdr.PointRecords = n
		}
	}

	return hdr, nil
}
