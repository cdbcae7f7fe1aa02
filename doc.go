// Package ledger implements a fixed-schema row store backed by a single
// memory-mapped file.
//
// A ledger file is a 256-byte header followed by a contiguous array of rows.
// Every row has the same size, fixed by a schema.Schema, so row id maps to
// file offset HeaderSize + id*RowSize and reading or writing a row is a plain
// memory access through the mapping. There is no serialization step and no
// page cache of our own: the operating system pages the file in on demand.
//
// Rows are appended with Insert and never move. Ids are dense, start at 0
// and are never reused; deletion is not modeled. When the file is full,
// Insert doubles its capacity, remapping the file.
//
// Every operation comes in two families. The checked family (Insert, Row,
// RowMut, record.ViewMut.SetString) validates ids, types, ranges and string
// lengths and reports problems as errors. The unchecked family
// (InsertUnchecked, RowUnchecked, RowMutUnchecked, SetStringUnchecked) trusts
// the caller: it truncates strings, skips bounds checks and panics where the
// checked family would return an error.
//
// Views returned by Row and RowMut alias the mapping. Growth may move the
// mapping, so a view must not be kept across Insert, Grow or Close. Each
// view remembers the ledger's epoch and panics with record.ErrStaleView when
// used after the epoch has moved, instead of reading unmapped memory. Use
// record.View.Values, or Table.Get, to copy a row out.
//
// Writes reach the file through the shared mapping, but only Flush makes
// them durable. Close does not flush unless Options.FlushOnClose is set.
//
// A ledger has exactly one owner. It is not safe for concurrent use, and no
// other process may modify the file while it is open.
package ledger
