package ledger

import (
	"errors"

	"github.com/jordanwade90/ledger/record"
)

// ErrIO is returned when the file system or the memory mapping fails.
// The underlying error is wrapped alongside it.
var ErrIO = errors.New("ledger i/o error")

// ErrSchemaMismatch is returned by Open when the file was written with a
// different row layout.
var ErrSchemaMismatch = errors.New("schema does not match ledger file")

// ErrCapacityOverflow is returned when the ledger cannot grow any further.
var ErrCapacityOverflow = errors.New("ledger capacity overflow")

// ErrStringTooLong is returned when a string does not fit its field.
var ErrStringTooLong = record.ErrStringTooLong

// ErrOutOfBounds is returned for a row id at or past Len.
var ErrOutOfBounds = errors.New("row id out of bounds")

// ErrBadFormat is returned when a file is not a ledger this package can read.
var ErrBadFormat = errors.New("bad ledger file")

// ErrClosed is returned by operations on a closed Ledger.
var ErrClosed = errors.New("ledger closed")

// ErrCorrupt is returned by Verify when a stored row is malformed.
var ErrCorrupt = errors.New("ledger corrupt")
