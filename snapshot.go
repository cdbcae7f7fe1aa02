package ledger

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/jordanwade90/ledger/internal/layout"
	"github.com/jordanwade90/ledger/internal/mmap"
	"github.com/jordanwade90/ledger/schema"
)

// Snapshot writes a compact copy of the ledger to w as a snappy framed
// stream. The copy is a valid ledger file whose capacity equals its length,
// so unused slots are not stored. w is not closed.
func (l *Ledger) Snapshot(w io.Writer) error {
	if l.m == nil {
		return ErrClosed
	}
	n := l.Len()
	b := l.m.Bytes()

	hdr := make([]byte, layout.HeaderSize)
	copy(hdr, b)
	layout.SetCapacity(hdr, n)

	sw := snappy.NewBufferedWriter(w)
	if _, err := sw.Write(hdr); err != nil {
		return fmt.Errorf("%w: snapshot header: %w", ErrIO, err)
	}
	if _, err := sw.Write(b[layout.HeaderSize:layout.Offset(n, l.rowSize)]); err != nil {
		return fmt.Errorf("%w: snapshot rows: %w", ErrIO, err)
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("%w: snapshot: %w", ErrIO, err)
	}
	l.log.Debug("wrote snapshot", "rows", n)
	return nil
}

// Restore creates a ledger at path from a stream written by Snapshot.
// s must match the snapshot's schema. path must not exist.
func Restore(path string, s *schema.Schema, r io.Reader, opts *Options) (*Ledger, error) {
	o := opts.withDefaults()
	sr := snappy.NewReader(r)

	buf := make([]byte, layout.HeaderSize)
	if _, err := io.ReadFull(sr, buf); err != nil {
		return nil, restoreErr("header", err)
	}
	h, err := layout.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %w", ErrBadFormat, err)
	}
	if h.Fingerprint != s.Fingerprint() || int(h.RowSize) != s.RowSize() {
		return nil, fmt.Errorf("%w: snapshot has fingerprint %016x, schema has %016x", ErrSchemaMismatch, h.Fingerprint, s.Fingerprint())
	}
	if h.Capacity != h.NextRowID {
		return nil, fmt.Errorf("%w: snapshot capacity %d differs from its length %d", ErrBadFormat, h.Capacity, h.NextRowID)
	}
	size, ok := layout.FileSize(h.Capacity, s.RowSize())
	if !ok {
		return nil, fmt.Errorf("%w: snapshot of %d rows", ErrCapacityOverflow, h.Capacity)
	}

	m, err := mmap.Create(path, size)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrIO, path, err)
	}
	fail := func(err error) (*Ledger, error) {
		_ = m.Close()
		_ = os.Remove(path)
		return nil, err
	}
	data := m.Bytes()
	if _, err := io.ReadFull(sr, data[layout.HeaderSize:]); err != nil {
		return fail(restoreErr("rows", err))
	}
	if _, err := sr.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		return fail(fmt.Errorf("%w: snapshot has trailing data", ErrBadFormat))
	}
	copy(data, buf)

	l := newLedger(m, s, path, o)
	l.log.Debug("restored ledger", "id", h.ID, "name", h.Name, "rows", h.NextRowID)
	return l, nil
}

func restoreErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, snappy.ErrCorrupt) {
		return fmt.Errorf("%w: snapshot %s: %w", ErrBadFormat, what, err)
	}
	return fmt.Errorf("%w: snapshot %s: %w", ErrIO, what, err)
}
