// Package layout describes the bytes of a ledger file: a fixed-size header
// at offset 0 followed by row_capacity rows of row_size bytes each.
package layout

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jordanwade90/ledger/internal/fixint"
)

const (
	// HeaderSize is the size of the file header. Row 0 starts here.
	HeaderSize = 256

	// Version is the only format version this package reads or writes.
	Version = 1

	// MinGrowth is the smallest capacity a growing ledger moves to.
	MinGrowth = 16

	NameSize        = 32
	DescriptionSize = 128
)

// Magic identifies a ledger file.
var Magic = [4]byte{'L', 'D', 'G', 'R'}

// Header field offsets.
const (
	offMagic       = 0
	offVersion     = 4
	offFingerprint = 8
	offRowSize     = 16
	offFlags       = 20
	offCapacity    = 24
	offNextRowID   = 32
	offID          = 40
	offCreated     = 56
	offName        = 64
	offDescription = 96
	offReserved    = 224
)

var (
	ErrBadMagic    = errors.New("not a ledger file")
	ErrBadVersion  = errors.New("unsupported ledger version")
	ErrFieldLength = errors.New("header field too long")
)

// Header is the decoded file header.
type Header struct {
	Version     uint32
	Fingerprint uint64
	RowSize     uint32
	Flags       uint32
	Capacity    uint64
	NextRowID   uint64
	ID          uuid.UUID
	// Created is in Unix nanoseconds.
	Created     int64
	Name        string
	Description string
}

// Validate checks the fields that Put cannot store faithfully.
func (h *Header) Validate() error {
	if len(h.Name) > NameSize {
		return fmt.Errorf("%w: name is %d bytes, at most %d allowed", ErrFieldLength, len(h.Name), NameSize)
	}
	if len(h.Description) > DescriptionSize {
		return fmt.Errorf("%w: description is %d bytes, at most %d allowed", ErrFieldLength, len(h.Description), DescriptionSize)
	}
	return nil
}

// Put writes h into the first HeaderSize bytes of p.
// The name and description are truncated to their slots.
func (h *Header) Put(p []byte) {
	p = p[:HeaderSize]
	copy(p[offMagic:], Magic[:])
	fixint.Put(p[offVersion:], h.Version)
	fixint.Put(p[offFingerprint:], h.Fingerprint)
	fixint.Put(p[offRowSize:], h.RowSize)
	fixint.Put(p[offFlags:], h.Flags)
	fixint.Put(p[offCapacity:], h.Capacity)
	fixint.Put(p[offNextRowID:], h.NextRowID)
	copy(p[offID:offCreated], h.ID[:])
	fixint.Put(p[offCreated:], h.Created)
	putPadded(p[offName:offDescription], h.Name)
	putPadded(p[offDescription:offReserved], h.Description)
	clear(p[offReserved:])
}

func putPadded(p []byte, s string) {
	n := copy(p, s)
	clear(p[n:])
}

// Decode parses a header, checking the magic number and version.
func Decode(p []byte) (Header, error) {
	if len(p) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrBadMagic, len(p))
	}
	if !bytes.Equal(p[offMagic:offMagic+len(Magic)], Magic[:]) {
		return Header{}, fmt.Errorf("%w: magic %q", ErrBadMagic, p[offMagic:offMagic+len(Magic)])
	}
	h := Fields(p)
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}
	return h, nil
}

// Fields reads the header fields of p without checking the magic number or
// version. p must hold at least HeaderSize bytes.
func Fields(p []byte) Header {
	_ = p[HeaderSize-1]
	h := Header{
		Version:     fixint.Get[uint32](p[offVersion:]),
		Fingerprint: fixint.Get[uint64](p[offFingerprint:]),
		RowSize:     fixint.Get[uint32](p[offRowSize:]),
		Flags:       fixint.Get[uint32](p[offFlags:]),
		Capacity:    fixint.Get[uint64](p[offCapacity:]),
		NextRowID:   fixint.Get[uint64](p[offNextRowID:]),
		Created:     fixint.Get[int64](p[offCreated:]),
		Name:        getPadded(p[offName:offDescription]),
		Description: getPadded(p[offDescription:offReserved]),
	}
	copy(h.ID[:], p[offID:offCreated])
	return h
}

func getPadded(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}

// The header fields that change while a ledger is open are read and written
// in place on the mapping.

func Capacity(p []byte) uint64         { return fixint.Get[uint64](p[offCapacity:]) }
func SetCapacity(p []byte, n uint64)   { fixint.Put(p[offCapacity:], n) }
func NextRowID(p []byte) uint64        { return fixint.Get[uint64](p[offNextRowID:]) }
func SetNextRowID(p []byte, id uint64) { fixint.Put(p[offNextRowID:], id) }

// Offset returns the file offset of row id.
func Offset(id uint64, rowSize int) int64 {
	return HeaderSize + int64(id)*int64(rowSize)
}

// FileSize returns the file length needed for capacity rows.
// ok is false when the length does not fit in an int64.
func FileSize(capacity uint64, rowSize int) (size int64, ok bool) {
	if rowSize <= 0 {
		return 0, false
	}
	if capacity > uint64(math.MaxInt64-HeaderSize)/uint64(rowSize) {
		return 0, false
	}
	return HeaderSize + int64(capacity)*int64(rowSize), true
}

// NextCapacity returns the capacity to grow to from cur: double, at least
// MinGrowth, never above limit. ok is false when cur is already at the
// limit or the resulting file would be too large to address.
func NextCapacity(cur, limit uint64, rowSize int) (next uint64, ok bool) {
	if cur >= limit {
		return cur, false
	}
	next = MinGrowth
	if cur >= MinGrowth {
		next = cur * 2
		if next < cur {
			next = math.MaxUint64
		}
	}
	next = min(next, limit)
	if _, ok := FileSize(next, rowSize); !ok {
		return cur, false
	}
	return next, true
}

// Reserve returns the capacity needed to hold want rows, growing from cur
// by repeated NextCapacity steps.
func Reserve(cur, want, limit uint64, rowSize int) (uint64, bool) {
	next := cur
	for next < want {
		step, ok := NextCapacity(next, limit, rowSize)
		if !ok || step <= next {
			return cur, false
		}
		next = step
	}
	return next, true
}
