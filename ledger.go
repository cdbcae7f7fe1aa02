package ledger

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jordanwade90/ledger/internal/layout"
	"github.com/jordanwade90/ledger/internal/mmap"
	"github.com/jordanwade90/ledger/record"
	"github.com/jordanwade90/ledger/schema"
)

const (
	// HeaderSize is the file offset of row 0.
	HeaderSize = layout.HeaderSize

	// DefaultInitialCapacity is the row capacity of a new ledger when
	// Options.InitialCapacity is zero.
	DefaultInitialCapacity = 1024

	// DefaultMaxRows caps the number of rows when Options.MaxRows is zero.
	DefaultMaxRows = math.MaxUint32

	// MaxNameLen and MaxDescriptionLen bound the metadata stored in the header.
	MaxNameLen        = layout.NameSize
	MaxDescriptionLen = layout.DescriptionSize
)

// Options tune a Ledger. The zero value, or a nil *Options, uses defaults.
type Options struct {
	// InitialCapacity is the number of rows a new ledger has room for
	// before it first grows.
	InitialCapacity uint64
	// MaxRows is the largest capacity the ledger may grow to.
	// Insert fails with ErrCapacityOverflow past it.
	MaxRows uint64
	// FlushOnClose makes Close call Flush before unmapping.
	FlushOnClose bool
	// Logger receives lifecycle and growth events.
	Logger *slog.Logger
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.InitialCapacity == 0 {
		out.InitialCapacity = DefaultInitialCapacity
	}
	if out.MaxRows == 0 {
		out.MaxRows = DefaultMaxRows
	}
	out.InitialCapacity = min(out.InitialCapacity, out.MaxRows)
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// Header describes a ledger file.
type Header struct {
	ID          uuid.UUID
	Name        string
	Description string
	Created     time.Time
	Version     uint32
	Fingerprint uint64
	RowSize     int
	Capacity    uint64
	Len         uint64
}

func headerFrom(h layout.Header) Header {
	return Header{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
		Created:     time.Unix(0, h.Created),
		Version:     h.Version,
		Fingerprint: h.Fingerprint,
		RowSize:     int(h.RowSize),
		Capacity:    h.Capacity,
		Len:         h.NextRowID,
	}
}

// Ledger is an open ledger file: a header followed by fixed-size rows,
// accessed through a shared memory mapping.
//
// A Ledger is not safe for concurrent use. Views returned by Row and RowMut
// point into the mapping; any call that may grow the ledger (Insert, Grow)
// or Close invalidates them, and using one afterwards panics with
// record.ErrStaleView.
type Ledger struct {
	m       *mmap.File
	schema  *schema.Schema
	rowSize int
	path    string
	opts    Options
	log     *slog.Logger

	// epoch advances whenever the mapping moves or goes away.
	epoch record.Epoch
	// scratch holds a row while Insert validates it.
	scratch []byte
}

// Create makes a new ledger file at path for rows of schema s.
// It fails if path already exists.
func Create(path string, s *schema.Schema, name, description string, opts *Options) (*Ledger, error) {
	o := opts.withDefaults()
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("%w: generate ledger id: %w", ErrIO, err)
	}
	h := layout.Header{
		Version:     layout.Version,
		Fingerprint: s.Fingerprint(),
		RowSize:     uint32(s.RowSize()),
		Capacity:    o.InitialCapacity,
		ID:          id,
		Created:     time.Now().UnixNano(),
		Name:        name,
		Description: description,
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStringTooLong, err)
	}
	size, ok := layout.FileSize(h.Capacity, s.RowSize())
	if !ok {
		return nil, fmt.Errorf("%w: %d rows of %d bytes", ErrCapacityOverflow, h.Capacity, s.RowSize())
	}

	m, err := mmap.Create(path, size)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrIO, path, err)
	}
	h.Put(m.Bytes())

	l := newLedger(m, s, path, o)
	l.log.Debug("created ledger", "id", id, "name", name, "row_size", s.RowSize(), "capacity", h.Capacity)
	return l, nil
}

// Open maps an existing ledger file. s must have the same layout as the
// schema the file was created with; field names may differ.
func Open(path string, s *schema.Schema, opts *Options) (*Ledger, error) {
	o := opts.withDefaults()
	m, err := mmap.Open(path)
	if err != nil {
		if errors.Is(err, mmap.ErrEmpty) {
			return nil, fmt.Errorf("%w: %w", ErrBadFormat, err)
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	h, err := checkFile(m, s, o.Logger)
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	l := newLedger(m, s, path, o)
	l.log.Debug("opened ledger", "id", h.ID, "name", h.Name, "len", h.NextRowID, "capacity", h.Capacity)
	return l, nil
}

func newLedger(m *mmap.File, s *schema.Schema, path string, o Options) *Ledger {
	return &Ledger{
		m:       m,
		schema:  s,
		rowSize: s.RowSize(),
		path:    path,
		opts:    o,
		log:     o.Logger.With("ledger", path),
		scratch: make([]byte, s.RowSize()),
	}
}

// checkFile validates the header of a freshly mapped file against s.
func checkFile(m *mmap.File, s *schema.Schema, log *slog.Logger) (layout.Header, error) {
	h, err := layout.Decode(m.Bytes())
	if err != nil {
		return h, fmt.Errorf("%w: %s: %w", ErrBadFormat, m.Name(), err)
	}
	if h.Fingerprint != s.Fingerprint() || int(h.RowSize) != s.RowSize() {
		return h, fmt.Errorf("%w: %s has fingerprint %016x and %d-byte rows, schema has %016x and %d-byte rows",
			ErrSchemaMismatch, m.Name(), h.Fingerprint, h.RowSize, s.Fingerprint(), s.RowSize())
	}
	if h.NextRowID > h.Capacity {
		return h, fmt.Errorf("%w: %s: next row id %d past capacity %d", ErrBadFormat, m.Name(), h.NextRowID, h.Capacity)
	}

	want, ok := layout.FileSize(h.Capacity, s.RowSize())
	switch {
	case !ok || m.Size() < want:
		return h, fmt.Errorf("%w: %s is %d bytes, header describes %d rows of %d bytes",
			ErrBadFormat, m.Name(), m.Size(), h.Capacity, h.RowSize)
	case m.Size() > want:
		// An interrupted growth leaves the file extended but the header not
		// yet updated. Whole extra rows are adopted.
		extra := m.Size() - want
		if extra%int64(s.RowSize()) != 0 {
			return h, fmt.Errorf("%w: %s is %d bytes, not a whole number of %d-byte rows",
				ErrBadFormat, m.Name(), m.Size(), h.RowSize)
		}
		grown := h.Capacity + uint64(extra/int64(s.RowSize()))
		log.Warn("adopting capacity of interrupted growth", "ledger", m.Name(), "from", h.Capacity, "to", grown)
		h.Capacity = grown
		layout.SetCapacity(m.Bytes(), grown)
	}
	return h, nil
}

// ReadHeader reads the header of the ledger at path without mapping it or
// knowing its schema.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the caller.
	if err != nil {
		return Header{}, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	buf := make([]byte, layout.HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: %s: truncated header", ErrBadFormat, path)
		}
		return Header{}, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	h, err := layout.Decode(buf)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %s: %w", ErrBadFormat, path, err)
	}
	return headerFrom(h), nil
}

// Path returns the file the ledger was opened from.
func (l *Ledger) Path() string { return l.path }

// Schema returns the row schema.
func (l *Ledger) Schema() *schema.Schema { return l.schema }

// Header returns a copy of the current header.
// The magic number and version were checked when the ledger was opened.
func (l *Ledger) Header() Header {
	if l.m == nil {
		return Header{}
	}
	return headerFrom(layout.Fields(l.m.Bytes()))
}

// Len returns the number of rows inserted, which is also the next row id.
func (l *Ledger) Len() uint64 {
	if l.m == nil {
		return 0
	}
	return layout.NextRowID(l.m.Bytes())
}

// Cap returns the number of rows the file has room for.
func (l *Ledger) Cap() uint64 {
	if l.m == nil {
		return 0
	}
	return layout.Capacity(l.m.Bytes())
}

func (l *Ledger) row(id uint64) []byte {
	off := layout.Offset(id, l.rowSize)
	return l.m.Bytes()[off : off+int64(l.rowSize) : off+int64(l.rowSize)]
}

// Insert validates values against the schema, appends them as a new row and
// returns its id. The ledger grows first if it is full, which invalidates
// existing views. On error nothing is written and Len is unchanged.
func (l *Ledger) Insert(values ...any) (uint64, error) {
	if l.m == nil {
		return 0, ErrClosed
	}
	if err := record.Encode(l.schema, l.scratch, values...); err != nil {
		return 0, err
	}

	id := l.Len()
	if id >= l.Cap() {
		next, ok := layout.NextCapacity(l.Cap(), l.opts.MaxRows, l.rowSize)
		if !ok {
			return 0, fmt.Errorf("%w: %d rows, limit is %d", ErrCapacityOverflow, l.Cap(), l.opts.MaxRows)
		}
		if err := l.growTo(next); err != nil {
			return 0, err
		}
	}

	copy(l.row(id), l.scratch)
	layout.SetNextRowID(l.m.Bytes(), id+1)
	return id, nil
}

// InsertUnchecked appends values as a new row without validating them and
// without checking capacity. Strings that are too long are truncated.
//
// The caller must ensure Len() < Cap(), for example with Grow; otherwise
// InsertUnchecked panics. A value of the wrong type also panics.
func (l *Ledger) InsertUnchecked(values ...any) uint64 {
	b := l.m.Bytes()
	id := layout.NextRowID(b)
	record.EncodeUnchecked(l.schema, l.row(id), values...)
	layout.SetNextRowID(b, id+1)
	return id
}

// Row returns a read-only view of row id, or false if id >= Len.
func (l *Ledger) Row(id uint64) (record.View, bool) {
	if l.m == nil || id >= l.Len() {
		return record.View{}, false
	}
	return record.NewView(l.schema, l.row(id), &l.epoch), true
}

// RowUnchecked returns a view of row id without a bounds check.
// id must be below Cap; rows at or past Len read as zeros.
func (l *Ledger) RowUnchecked(id uint64) record.View {
	return record.NewView(l.schema, l.row(id), &l.epoch)
}

// RowMut returns a writable view of row id, or false if id >= Len.
func (l *Ledger) RowMut(id uint64) (record.ViewMut, bool) {
	if l.m == nil || id >= l.Len() {
		return record.ViewMut{}, false
	}
	return record.NewViewMut(l.schema, l.row(id), &l.epoch), true
}

// RowMutUnchecked returns a writable view of row id without a bounds check.
func (l *Ledger) RowMutUnchecked(id uint64) record.ViewMut {
	return record.NewViewMut(l.schema, l.row(id), &l.epoch)
}

// Update overwrites row id with values, validated as Insert does.
// On error the row is unchanged.
func (l *Ledger) Update(id uint64, values ...any) error {
	if l.m == nil {
		return ErrClosed
	}
	v, ok := l.RowMut(id)
	if !ok {
		return fmt.Errorf("%w: row %d, ledger has %d", ErrOutOfBounds, id, l.Len())
	}
	return v.SetAll(values...)
}

// All iterates over every row in id order.
// The views are invalidated if the loop body grows the ledger.
func (l *Ledger) All() iter.Seq2[uint64, record.View] {
	return func(yield func(uint64, record.View) bool) {
		for id := uint64(0); id < l.Len(); id++ {
			v, ok := l.Row(id)
			if !ok || !yield(id, v) {
				return
			}
		}
	}
}

// Grow makes room for at least minCap rows, following the same doubling
// policy as Insert. It invalidates existing views when the file grows.
func (l *Ledger) Grow(minCap uint64) error {
	if l.m == nil {
		return ErrClosed
	}
	if minCap <= l.Cap() {
		return nil
	}
	next, ok := layout.Reserve(l.Cap(), minCap, l.opts.MaxRows, l.rowSize)
	if !ok {
		return fmt.Errorf("%w: cannot reserve %d rows, limit is %d", ErrCapacityOverflow, minCap, l.opts.MaxRows)
	}
	return l.growTo(next)
}

// growTo extends the file and mapping to capacity rows and records the new
// capacity in the header. On failure the ledger keeps its old capacity.
func (l *Ledger) growTo(capacity uint64) error {
	old := l.Cap()
	size, ok := layout.FileSize(capacity, l.rowSize)
	if capacity <= old || !ok {
		return fmt.Errorf("%w: cannot grow from %d to %d rows", ErrCapacityOverflow, old, capacity)
	}
	if err := l.m.Grow(size); err != nil {
		if l.m.Size() != size {
			l.log.Warn("growth rolled back", "from", old, "to", capacity, "err", err)
			return fmt.Errorf("%w: grow to %d rows: %w", ErrIO, capacity, err)
		}
		// The new mapping is in place; only releasing the old one failed.
		l.log.Warn("growth left the old mapping behind", "err", err)
	}
	l.epoch.Advance()
	layout.SetCapacity(l.m.Bytes(), capacity)
	l.log.Info("ledger grew", "from", old, "to", capacity)
	return nil
}

// Flush writes every change made so far to stable storage.
func (l *Ledger) Flush() error {
	if l.m == nil {
		return ErrClosed
	}
	if err := l.m.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrIO, err)
	}
	return nil
}

// Close unmaps the ledger. It does not flush unless Options.FlushOnClose is
// set; writes not yet flushed are left to the operating system.
func (l *Ledger) Close() error {
	if l.m == nil {
		return ErrClosed
	}
	var err error
	if l.opts.FlushOnClose {
		err = l.Flush()
	}
	l.epoch.Advance()
	if cerr := l.m.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("%w: close: %w", ErrIO, cerr))
	}
	l.m = nil
	l.log.Debug("closed ledger")
	return err
}
